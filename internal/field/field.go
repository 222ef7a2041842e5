// Package field implements cognitive field dynamics: geoids are projected
// into a shared embedding space where waves of semantic influence propagate
// and resonance between fields drives neighbor discovery.
package field

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// Default field tuning.
const (
	DefaultFieldStrength  = 1.0
	DefaultDecayRate      = 0.1
	DefaultResonanceFloor = 0.1
	defaultBatchSize      = 64
)

// SemanticField is one geoid's presence in the field space.
type SemanticField struct {
	GeoidID            string    `json:"geoid_id"`
	Embedding          []float32 `json:"-"`
	FieldStrength      float64   `json:"field_strength"`
	ResonanceFrequency float64   `json:"resonance_frequency"`
	DecayRate          float64   `json:"decay_rate"`
	AddedAt            time.Time `json:"added_at"`
}

// Neighbor is a resonance-ranked match for a query field.
type Neighbor struct {
	GeoidID    string  `json:"geoid_id"`
	Resonance  float64 `json:"resonance"`
	Similarity float64 `json:"similarity"`
}

// PerformanceStats reports field engine throughput counters.
type PerformanceStats struct {
	TotalFields    int     `json:"total_fields"`
	PendingFields  int     `json:"pending_fields"`
	FieldsAdded    int64   `json:"fields_added"`
	BatchesFlushed int64   `json:"batches_flushed"`
	SearchesRun    int64   `json:"searches_run"`
	AvgSearchMs    float64 `json:"avg_search_ms"`
	Dimension      int     `json:"dimension"`
}

// Dynamics is the cognitive field engine. Incoming geoids queue in a pending
// batch so bursts of additions amortize into one flush.
type Dynamics struct {
	dimension int
	batchSize int

	mu      sync.RWMutex
	fields  map[string]*SemanticField
	pending []*SemanticField

	added       int64
	flushes     int64
	searches    int64
	searchTotal time.Duration
}

// NewDynamics creates a field engine for the given embedding dimension.
func NewDynamics(dimension int) (*Dynamics, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("field dimension must be positive, got %d", dimension)
	}
	return &Dynamics{
		dimension: dimension,
		batchSize: defaultBatchSize,
		fields:    make(map[string]*SemanticField),
	}, nil
}

// SetBatchSize overrides the pending batch size.
func (d *Dynamics) SetBatchSize(n int) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	d.batchSize = n
	d.mu.Unlock()
}

// AddGeoid queues a geoid into the field. Geoids without embeddings get one
// projected from their semantic features. The pending batch is flushed
// automatically once it reaches the batch size.
func (d *Dynamics) AddGeoid(st *geoid.State) (*SemanticField, error) {
	if st == nil || st.GeoidID == "" {
		return nil, fmt.Errorf("geoid with an ID is required")
	}

	var emb []float32
	if len(st.EmbeddingVector) > 0 {
		emb = make([]float32, len(st.EmbeddingVector))
		copy(emb, st.EmbeddingVector)
	} else {
		emb = geoid.FeatureEmbedding(st, d.dimension)
	}
	if len(emb) != d.dimension {
		return nil, fmt.Errorf("embedding dimension %d does not match field dimension %d", len(emb), d.dimension)
	}

	freq := resonanceFrequency(emb)
	geoid.NormalizeVector(emb)
	f := &SemanticField{
		GeoidID:            st.GeoidID,
		Embedding:          emb,
		FieldStrength:      DefaultFieldStrength,
		ResonanceFrequency: freq,
		DecayRate:          DefaultDecayRate,
		AddedAt:            time.Now().UTC(),
	}

	d.mu.Lock()
	d.pending = append(d.pending, f)
	d.added++
	shouldFlush := len(d.pending) >= d.batchSize
	d.mu.Unlock()

	if shouldFlush {
		d.Flush()
	}
	return f, nil
}

// Flush promotes all pending fields into the active field set.
func (d *Dynamics) Flush() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.pending)
	if n == 0 {
		return 0
	}
	for _, f := range d.pending {
		d.fields[f.GeoidID] = f
	}
	d.pending = d.pending[:0]
	d.flushes++
	logging.FieldDebug("Flushed %d pending fields (%d total)", n, len(d.fields))
	return n
}

// FindSemanticNeighbors returns fields resonating with the given geoid,
// strongest first. The pending batch is flushed first so fresh additions are
// searchable. Search over large field sets fans out across workers.
func (d *Dynamics) FindSemanticNeighbors(ctx context.Context, geoidID string, limit int) ([]Neighbor, error) {
	start := time.Now()
	d.Flush()

	d.mu.RLock()
	query, ok := d.fields[geoidID]
	if !ok {
		d.mu.RUnlock()
		return nil, fmt.Errorf("geoid %s is not in the field", geoidID)
	}
	candidates := make([]*SemanticField, 0, len(d.fields)-1)
	for id, f := range d.fields {
		if id != geoidID {
			candidates = append(candidates, f)
		}
	}
	d.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(candidates) + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	results := make([][]Neighbor, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(candidates) {
			break
		}
		hi := lo + chunk
		if hi > len(candidates) {
			hi = len(candidates)
		}
		slot := w
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			local := make([]Neighbor, 0, hi-lo)
			for _, cand := range candidates[lo:hi] {
				res, sim := resonance(query, cand)
				if res >= DefaultResonanceFloor {
					local = append(local, Neighbor{GeoidID: cand.GeoidID, Resonance: res, Similarity: sim})
				}
			}
			results[slot] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Neighbor
	for _, local := range results {
		out = append(out, local...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resonance > out[j].Resonance })
	if len(out) > limit {
		out = out[:limit]
	}

	d.mu.Lock()
	d.searches++
	d.searchTotal += time.Since(start)
	d.mu.Unlock()

	return out, nil
}

// InfluenceField computes the field's aggregate influence at a probe
// embedding: each active field contributes its strength scaled by proximity
// and decay.
func (d *Dynamics) InfluenceField(probe []float32) (float64, error) {
	if len(probe) != d.dimension {
		return 0, fmt.Errorf("probe dimension %d does not match field dimension %d", len(probe), d.dimension)
	}
	unit := make([]float32, len(probe))
	copy(unit, probe)
	geoid.NormalizeVector(unit)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var total float64
	now := time.Now()
	for _, f := range d.fields {
		sim := geoid.CosineSimilarity(unit, f.Embedding)
		if sim <= 0 {
			continue
		}
		age := now.Sub(f.AddedAt).Seconds()
		total += f.FieldStrength * sim * math.Exp(-f.DecayRate*age/3600)
	}
	return total, nil
}

// Stats returns throughput counters.
func (d *Dynamics) Stats() PerformanceStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := PerformanceStats{
		TotalFields:    len(d.fields),
		PendingFields:  len(d.pending),
		FieldsAdded:    d.added,
		BatchesFlushed: d.flushes,
		SearchesRun:    d.searches,
		Dimension:      d.dimension,
	}
	if d.searches > 0 {
		stats.AvgSearchMs = float64(d.searchTotal.Milliseconds()) / float64(d.searches)
	}
	return stats
}

// resonance blends embedding similarity with frequency alignment. Both
// fields must share the space, so dimensions always match here.
func resonance(a, b *SemanticField) (score, similarity float64) {
	similarity = geoid.CosineSimilarity(a.Embedding, b.Embedding)
	freqAlign := 1.0 - math.Abs(a.ResonanceFrequency-b.ResonanceFrequency)/
		math.Max(a.ResonanceFrequency+b.ResonanceFrequency, 1e-9)
	score = 0.7*math.Max(similarity, 0) + 0.3*freqAlign
	return score, similarity
}

// resonanceFrequency derives a stable per-field frequency from embedding
// energy.
func resonanceFrequency(emb []float32) float64 {
	var energy float64
	for _, v := range emb {
		energy += float64(v) * float64(v)
	}
	if energy == 0 {
		return 1.0
	}
	return 1.0 + math.Log1p(energy)
}
