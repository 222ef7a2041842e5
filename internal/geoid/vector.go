package geoid

import (
	"bytes"
	"encoding/binary"
	"math"
)

// CosineSimilarity computes cosine similarity between two float32 vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeVector scales a vector to unit length in place. Zero vectors are
// left untouched.
func NormalizeVector(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
}

// EncodeVectorBlob serializes a float32 vector as little-endian bytes for
// SQLite blob storage.
func EncodeVectorBlob(vec []float32) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// DecodeVectorBlob deserializes a little-endian float32 blob. Trailing bytes
// that do not fill a full float are ignored.
func DecodeVectorBlob(blob []byte) []float32 {
	n := len(blob) / 4
	if n == 0 {
		return nil
	}
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// FeatureEmbedding projects a geoid's semantic features into a fixed-size
// vector with a deterministic hash of feature names. It stands in when no
// external embedding is attached.
func FeatureEmbedding(s *State, dimension int) []float32 {
	if s == nil || dimension <= 0 {
		return nil
	}
	vec := make([]float32, dimension)
	for _, name := range s.FeatureNames() {
		idx := int(fnv32(name)) % dimension
		vec[idx] += float32(s.SemanticFeatures[name])
	}
	NormalizeVector(vec)
	return vec
}

// fnv32 is the 32-bit FNV-1a hash.
func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
