package bench

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func smallStress() *Stress {
	s := NewStress(16)
	s.GeoidCount = 40
	s.BatchSizes = []int{8, 16}
	s.SearchCount = 20
	s.Workers = 2
	return s
}

func TestStressRun(t *testing.T) {
	report, err := smallStress().Run(context.Background())
	if err != nil {
		t.Fatalf("stress run failed: %v", err)
	}
	if len(report.Creation) != 2 {
		t.Fatalf("expected 2 creation phases, got %d", len(report.Creation))
	}
	for _, phase := range report.Creation {
		if phase.Geoids != 40 {
			t.Errorf("batch %d: expected 40 geoids, got %d", phase.BatchSize, phase.Geoids)
		}
		if phase.GeoidsPerSec <= 0 {
			t.Errorf("batch %d: throughput not recorded", phase.BatchSize)
		}
	}
	if report.Search.Searches != 20 {
		t.Errorf("expected 20 searches, got %d", report.Search.Searches)
	}
	if report.Search.SearchesPerSec <= 0 {
		t.Error("search throughput not recorded")
	}
	if report.TotalMs <= 0 {
		t.Error("total duration not recorded")
	}
}

func TestStressRejectsBadDimension(t *testing.T) {
	s := NewStress(0)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestStressHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := smallStress().Run(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestSaveStressReport(t *testing.T) {
	report, err := smallStress().Run(context.Background())
	if err != nil {
		t.Fatalf("stress run failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "stress.json")
	if err := SaveReport(report, path); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if loaded.Dimension != 16 {
		t.Errorf("expected dimension 16, got %d", loaded.Dimension)
	}
}
