// Package bench stress-tests the semantic field engine: geoid creation
// throughput across batch sizes, neighbor search throughput, and parallel
// batch operations, with a background memory poller sampling runtime
// statistics while the load runs.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kimera/internal/field"
	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// Stress configures a field engine stress run.
type Stress struct {
	Dimension   int
	GeoidCount  int
	BatchSizes  []int
	SearchCount int
	Workers     int
	Seed        int64
}

// NewStress returns a stress harness with the standard load shape.
func NewStress(dimension int) *Stress {
	return &Stress{
		Dimension:   dimension,
		GeoidCount:  1000,
		BatchSizes:  []int{16, 64, 256},
		SearchCount: 200,
		Workers:     runtime.NumCPU(),
		Seed:        1,
	}
}

// BatchResult is the creation throughput for one batch size.
type BatchResult struct {
	BatchSize    int     `json:"batch_size"`
	Geoids       int     `json:"geoids"`
	DurationMs   float64 `json:"duration_ms"`
	GeoidsPerSec float64 `json:"geoids_per_sec"`
}

// SearchResult is the neighbor search throughput.
type SearchResult struct {
	Searches       int     `json:"searches"`
	Workers        int     `json:"workers"`
	DurationMs     float64 `json:"duration_ms"`
	SearchesPerSec float64 `json:"searches_per_sec"`
}

// MemorySample is one snapshot from the background poller.
type MemorySample struct {
	ElapsedMs  float64 `json:"elapsed_ms"`
	HeapMB     float64 `json:"heap_mb"`
	Goroutines int     `json:"goroutines"`
	NumGC      uint32  `json:"num_gc"`
}

// Report collects every phase of a stress run.
type Report struct {
	Dimension int            `json:"dimension"`
	Creation  []BatchResult  `json:"creation"`
	Search    SearchResult   `json:"search"`
	Memory    []MemorySample `json:"memory"`
	TotalMs   float64        `json:"total_ms"`
}

// Run executes the full stress sequence and returns the report.
func (s *Stress) Run(ctx context.Context) (*Report, error) {
	if s.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", s.Dimension)
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}

	start := time.Now()
	report := &Report{Dimension: s.Dimension}

	pollerCtx, stopPoller := context.WithCancel(ctx)
	samples := make(chan MemorySample, 64)
	var pollerDone sync.WaitGroup
	pollerDone.Add(1)
	go func() {
		defer pollerDone.Done()
		s.pollMemory(pollerCtx, start, samples)
	}()

	logging.Stats("Stress run start: dim=%d geoids=%d workers=%d", s.Dimension, s.GeoidCount, s.Workers)

	for _, batch := range s.BatchSizes {
		res, err := s.creationPhase(ctx, batch)
		if err != nil {
			stopPoller()
			pollerDone.Wait()
			return nil, err
		}
		report.Creation = append(report.Creation, res)
	}

	dyn, ids, err := s.populate(ctx)
	if err != nil {
		stopPoller()
		pollerDone.Wait()
		return nil, err
	}
	searchRes, err := s.searchPhase(ctx, dyn, ids)
	if err != nil {
		stopPoller()
		pollerDone.Wait()
		return nil, err
	}
	report.Search = searchRes

	stopPoller()
	pollerDone.Wait()
	close(samples)
	for sample := range samples {
		report.Memory = append(report.Memory, sample)
	}
	report.TotalMs = float64(time.Since(start).Microseconds()) / 1000

	logging.Stats("Stress run done in %.1fms (%d memory samples)", report.TotalMs, len(report.Memory))
	return report, nil
}

// creationPhase measures geoid ingestion throughput at one batch size,
// spreading the inserts over the worker pool.
func (s *Stress) creationPhase(ctx context.Context, batchSize int) (BatchResult, error) {
	dyn, err := field.NewDynamics(s.Dimension)
	if err != nil {
		return BatchResult{}, err
	}
	dyn.SetBatchSize(batchSize)

	states := s.randomStates(s.GeoidCount, s.Seed)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for _, st := range states {
		st := st
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			_, err := dyn.AddGeoid(st)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	dyn.Flush()

	elapsed := time.Since(started)
	ms := float64(elapsed.Microseconds()) / 1000
	res := BatchResult{
		BatchSize:  batchSize,
		Geoids:     len(states),
		DurationMs: ms,
	}
	if elapsed > 0 {
		res.GeoidsPerSec = float64(len(states)) / elapsed.Seconds()
	}
	return res, nil
}

// searchPhase runs parallel neighbor lookups against a populated field.
func (s *Stress) searchPhase(ctx context.Context, dyn *field.Dynamics, ids []string) (SearchResult, error) {
	if len(ids) == 0 {
		return SearchResult{}, fmt.Errorf("no geoids to search")
	}
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i := 0; i < s.SearchCount; i++ {
		id := ids[i%len(ids)]
		g.Go(func() error {
			_, err := dyn.FindSemanticNeighbors(gctx, id, 10)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, err
	}

	elapsed := time.Since(started)
	res := SearchResult{
		Searches:   s.SearchCount,
		Workers:    s.Workers,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	}
	if elapsed > 0 {
		res.SearchesPerSec = float64(s.SearchCount) / elapsed.Seconds()
	}
	return res, nil
}

// populate builds the field used by the search phase.
func (s *Stress) populate(ctx context.Context) (*field.Dynamics, []string, error) {
	dyn, err := field.NewDynamics(s.Dimension)
	if err != nil {
		return nil, nil, err
	}
	states := s.randomStates(s.GeoidCount, s.Seed+1)
	ids := make([]string, 0, len(states))
	for _, st := range states {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		if _, err := dyn.AddGeoid(st); err != nil {
			return nil, nil, err
		}
		ids = append(ids, st.GeoidID)
	}
	dyn.Flush()
	return dyn, ids, nil
}

// randomStates generates seeded geoids with dense feature sets.
func (s *Stress) randomStates(n int, seed int64) []*geoid.State {
	rng := rand.New(rand.NewSource(seed))
	states := make([]*geoid.State, 0, n)
	for i := 0; i < n; i++ {
		features := make(map[string]float64, 8)
		for f := 0; f < 8; f++ {
			features[fmt.Sprintf("f%d", rng.Intn(s.Dimension))] = rng.Float64()
		}
		states = append(states, geoid.NewState(fmt.Sprintf("BENCH_%d_%d", seed, i), features))
	}
	return states
}

// pollMemory samples heap and goroutine counts until cancelled.
func (s *Stress) pollMemory(ctx context.Context, start time.Time, out chan<- MemorySample) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			sample := MemorySample{
				ElapsedMs:  float64(time.Since(start).Microseconds()) / 1000,
				HeapMB:     float64(ms.HeapAlloc) / (1024 * 1024),
				Goroutines: runtime.NumGoroutine(),
				NumGC:      ms.NumGC,
			}
			select {
			case out <- sample:
			default:
			}
		}
	}
}

// SaveReport writes a stress report as indented JSON.
func SaveReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
