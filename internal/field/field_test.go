package field

import (
	"context"
	"testing"

	"kimera/internal/geoid"
)

func fieldGeoid(id string, emb []float32) *geoid.State {
	st := geoid.NewState(id, map[string]float64{"f": 1.0})
	st.EmbeddingVector = emb
	return st
}

func TestNewDynamicsValidation(t *testing.T) {
	if _, err := NewDynamics(0); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewDynamics(-3); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestAddGeoidPendingAndFlush(t *testing.T) {
	d, err := NewDynamics(4)
	if err != nil {
		t.Fatalf("NewDynamics failed: %v", err)
	}

	if _, err := d.AddGeoid(fieldGeoid("GEOID_1", []float32{1, 0, 0, 0})); err != nil {
		t.Fatalf("AddGeoid failed: %v", err)
	}
	stats := d.Stats()
	if stats.PendingFields != 1 || stats.TotalFields != 0 {
		t.Errorf("stats before flush = %+v", stats)
	}

	if n := d.Flush(); n != 1 {
		t.Errorf("Flush returned %d, want 1", n)
	}
	stats = d.Stats()
	if stats.PendingFields != 0 || stats.TotalFields != 1 || stats.BatchesFlushed != 1 {
		t.Errorf("stats after flush = %+v", stats)
	}
}

func TestAddGeoidAutoFlushAtBatchSize(t *testing.T) {
	d, err := NewDynamics(4)
	if err != nil {
		t.Fatalf("NewDynamics failed: %v", err)
	}
	d.batchSize = 3

	for i := 0; i < 3; i++ {
		if _, err := d.AddGeoid(fieldGeoid("", []float32{1, 0, 0, float32(i)})); err != nil {
			t.Fatalf("AddGeoid %d failed: %v", i, err)
		}
	}
	stats := d.Stats()
	if stats.PendingFields != 0 || stats.TotalFields != 3 {
		t.Errorf("batch did not auto-flush: %+v", stats)
	}
}

func TestAddGeoidDimensionMismatch(t *testing.T) {
	d, _ := NewDynamics(4)
	if _, err := d.AddGeoid(fieldGeoid("GEOID_bad", []float32{1, 0})); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestAddGeoidProjectsMissingEmbedding(t *testing.T) {
	d, _ := NewDynamics(8)
	st := geoid.NewState("", map[string]float64{"alpha": 0.7, "beta": 0.3})

	f, err := d.AddGeoid(st)
	if err != nil {
		t.Fatalf("AddGeoid failed: %v", err)
	}
	if len(f.Embedding) != 8 {
		t.Errorf("projected embedding length = %d, want 8", len(f.Embedding))
	}
}

func TestFindSemanticNeighborsRanking(t *testing.T) {
	d, _ := NewDynamics(4)

	query := fieldGeoid("GEOID_q", []float32{1, 0, 0, 0})
	near := fieldGeoid("GEOID_near", []float32{0.9, 0.1, 0, 0})
	mid := fieldGeoid("GEOID_mid", []float32{0.5, 0.5, 0, 0})
	far := fieldGeoid("GEOID_far", []float32{0, 0, 1, 0})
	for _, st := range []*geoid.State{query, near, mid, far} {
		if _, err := d.AddGeoid(st); err != nil {
			t.Fatalf("AddGeoid failed: %v", err)
		}
	}

	neighbors, err := d.FindSemanticNeighbors(context.Background(), "GEOID_q", 10)
	if err != nil {
		t.Fatalf("FindSemanticNeighbors failed: %v", err)
	}
	if len(neighbors) < 2 {
		t.Fatalf("got %d neighbors, want at least 2", len(neighbors))
	}
	if neighbors[0].GeoidID != "GEOID_near" {
		t.Errorf("top neighbor = %s, want GEOID_near", neighbors[0].GeoidID)
	}
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].Resonance > neighbors[i-1].Resonance {
			t.Errorf("neighbors not sorted by resonance at %d", i)
		}
	}
}

func TestFindSemanticNeighborsFlushesPending(t *testing.T) {
	d, _ := NewDynamics(4)

	if _, err := d.AddGeoid(fieldGeoid("GEOID_q", []float32{1, 0, 0, 0})); err != nil {
		t.Fatalf("AddGeoid failed: %v", err)
	}
	if _, err := d.AddGeoid(fieldGeoid("GEOID_n", []float32{1, 0.1, 0, 0})); err != nil {
		t.Fatalf("AddGeoid failed: %v", err)
	}

	// Both are still pending; search must see them anyway.
	neighbors, err := d.FindSemanticNeighbors(context.Background(), "GEOID_q", 5)
	if err != nil {
		t.Fatalf("FindSemanticNeighbors failed: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].GeoidID != "GEOID_n" {
		t.Errorf("neighbors = %+v, want GEOID_n", neighbors)
	}
}

func TestFindSemanticNeighborsUnknownGeoid(t *testing.T) {
	d, _ := NewDynamics(4)
	if _, err := d.FindSemanticNeighbors(context.Background(), "GEOID_ghost", 5); err == nil {
		t.Error("expected error for unknown geoid")
	}
}

func TestFindSemanticNeighborsLimit(t *testing.T) {
	d, _ := NewDynamics(4)
	if _, err := d.AddGeoid(fieldGeoid("GEOID_q", []float32{1, 0, 0, 0})); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err := d.AddGeoid(fieldGeoid("", []float32{1, float32(i) * 0.01, 0, 0})); err != nil {
			t.Fatal(err)
		}
	}
	neighbors, err := d.FindSemanticNeighbors(context.Background(), "GEOID_q", 5)
	if err != nil {
		t.Fatalf("FindSemanticNeighbors failed: %v", err)
	}
	if len(neighbors) != 5 {
		t.Errorf("got %d neighbors, want limit 5", len(neighbors))
	}
}

func TestInfluenceField(t *testing.T) {
	d, _ := NewDynamics(4)
	if _, err := d.AddGeoid(fieldGeoid("GEOID_a", []float32{1, 0, 0, 0})); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddGeoid(fieldGeoid("GEOID_b", []float32{0, 1, 0, 0})); err != nil {
		t.Fatal(err)
	}
	d.Flush()

	aligned, err := d.InfluenceField([]float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("InfluenceField failed: %v", err)
	}
	orthogonalish, err := d.InfluenceField([]float32{0, 0, 0, 1})
	if err != nil {
		t.Fatalf("InfluenceField failed: %v", err)
	}
	if aligned <= orthogonalish {
		t.Errorf("aligned influence %.4f not above orthogonal %.4f", aligned, orthogonalish)
	}
	if _, err := d.InfluenceField([]float32{1}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestStatsCountsSearches(t *testing.T) {
	d, _ := NewDynamics(4)
	if _, err := d.AddGeoid(fieldGeoid("GEOID_q", []float32{1, 0, 0, 0})); err != nil {
		t.Fatal(err)
	}
	if _, err := d.FindSemanticNeighbors(context.Background(), "GEOID_q", 5); err != nil {
		t.Fatal(err)
	}
	stats := d.Stats()
	if stats.SearchesRun != 1 {
		t.Errorf("searches = %d, want 1", stats.SearchesRun)
	}
	if stats.FieldsAdded != 1 {
		t.Errorf("fields added = %d, want 1", stats.FieldsAdded)
	}
}
