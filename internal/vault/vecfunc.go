package vault

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"

	sqlite "modernc.org/sqlite"
)

func init() {
	// Deterministic: the same pair of embeddings always yields the same
	// distance, so SQLite may cache and reorder calls freely.
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, geoidEmbeddingDistance)
}

// geoidEmbeddingDistance exposes cosine distance between two stored geoid
// embeddings as a SQL scalar. Embeddings live in the geoids table as
// little-endian float32 blobs; running the distance inside the query lets
// SearchGeoidsBySimilarity rank candidates without pulling every embedding
// into Go first.
func geoidEmbeddingDistance(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_cos expects 2 embeddings")
	}
	a, err := decodeEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeEmbedding(args[1])
	if err != nil {
		return nil, err
	}
	// A geoid with no embedding is maximally distant from everything.
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_cos: embedding dimensions differ, %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float64(1 - cos), nil
}

// decodeEmbedding converts the driver.Value forms an embedding column can
// arrive in into a float32 vector.
func decodeEmbedding(v driver.Value) ([]float32, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vector_distance_cos: embedding blob length %d is not a multiple of 4", len(x))
		}
		out := make([]float32, len(x)/4)
		for i := 0; i < len(out); i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
		}
		return out, nil
	case string:
		return decodeEmbedding([]byte(x))
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vector_distance_cos: embedding has unsupported type %T", v)
	}
}
