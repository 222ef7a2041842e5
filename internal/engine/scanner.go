package engine

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kimera/internal/geoid"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

// ScanResult is the outcome of one proactive scan pass.
type ScanResult struct {
	PairsExamined   int           `json:"pairs_examined"`
	TotalPairs      int           `json:"total_pairs"`
	TensionsFound   int           `json:"tensions_found"`
	ScarsCreated    int           `json:"scars_created"`
	UtilizationRate float64       `json:"utilization_rate"`
	Duration        time.Duration `json:"duration"`
}

// UtilizationStats aggregates scanner usage across all scans so far.
type UtilizationStats struct {
	TotalScans       int     `json:"total_scans"`
	PairsExamined    int     `json:"pairs_examined"`
	TensionsFound    int     `json:"tensions_found"`
	ScarsCreated     int     `json:"scars_created"`
	AvgUtilization   float64 `json:"avg_utilization_rate"`
	LastScanDuration string  `json:"last_scan_duration"`
}

// ProactiveScanner sweeps geoid pairs for latent contradictions in bounded
// batches so each scan stays cheap even on large vaults.
type ProactiveScanner struct {
	vault  *vault.Manager
	cycle  *CognitiveCycle
	contra *ContradictionEngine

	// BatchLimit caps pairs examined per scan. Workers bounds the scoring
	// goroutines; zero means GOMAXPROCS.
	BatchLimit int
	Workers    int

	mu           sync.Mutex
	offset       int
	scans        int
	pairsSeen    int
	tensionsSeen int
	scarsMade    int
	utilSum      float64
	lastDuration time.Duration
}

// DefaultScanBatchLimit bounds pairs per proactive scan.
const DefaultScanBatchLimit = 500

// NewProactiveScanner builds a scanner sharing the cycle's vault and engine.
func NewProactiveScanner(v *vault.Manager, e *ContradictionEngine, c *CognitiveCycle) *ProactiveScanner {
	return &ProactiveScanner{
		vault:      v,
		contra:     e,
		cycle:      c,
		BatchLimit: DefaultScanBatchLimit,
	}
}

// Scan examines the next batch of geoid pairs, collapsing any tension above
// the engine threshold into scars. Successive scans rotate through the pair
// space so the whole vault is eventually covered.
func (p *ProactiveScanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryEngine, "ProactiveScan")
	defer timer.Stop()

	geoids, err := p.vault.ListActiveGeoids()
	if err != nil {
		return nil, err
	}

	n := len(geoids)
	total := n * (n - 1) / 2
	res := &ScanResult{TotalPairs: total}
	if total == 0 {
		res.Duration = time.Since(start)
		p.record(res)
		return res, nil
	}

	limit := p.BatchLimit
	if limit <= 0 {
		limit = DefaultScanBatchLimit
	}
	if limit > total {
		limit = total
	}

	p.mu.Lock()
	startOffset := p.offset % total
	p.offset = (p.offset + limit) % total
	p.mu.Unlock()

	pairs := pairWindow(n, startOffset, limit)
	res.PairsExamined = len(pairs)

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		tensionMu sync.Mutex
		tensions  []TensionGradient
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pr := range pairs {
		a, b := geoids[pr[0]], geoids[pr[1]]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			t := p.contra.ScoreTension(a, b)
			if t.TensionScore > p.contra.TensionThreshold {
				tensionMu.Lock()
				tensions = append(tensions, t)
				tensionMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.TensionsFound = len(tensions)

	byID := make(map[string]*geoid.State, n)
	for _, st := range geoids {
		byID[st.GeoidID] = st
	}
	pre := p.cycle.measure(geoids).ShannonEntropy
	for _, t := range tensions {
		if _, err := p.cycle.Collapse(t, byID[t.GeoidA], byID[t.GeoidB], pre); err != nil {
			return nil, err
		}
		res.ScarsCreated++
	}

	res.UtilizationRate = float64(res.PairsExamined) / float64(total)
	res.Duration = time.Since(start)
	p.record(res)

	logging.Engine("Proactive scan: %d/%d pairs (%.1f%%), %d tensions, %d scars",
		res.PairsExamined, total, res.UtilizationRate*100, res.TensionsFound, res.ScarsCreated)
	return res, nil
}

// Stats returns cumulative scanner utilization.
func (p *ProactiveScanner) Stats() UtilizationStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := UtilizationStats{
		TotalScans:       p.scans,
		PairsExamined:    p.pairsSeen,
		TensionsFound:    p.tensionsSeen,
		ScarsCreated:     p.scarsMade,
		LastScanDuration: p.lastDuration.String(),
	}
	if p.scans > 0 {
		stats.AvgUtilization = p.utilSum / float64(p.scans)
	}
	return stats
}

func (p *ProactiveScanner) record(res *ScanResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scans++
	p.pairsSeen += res.PairsExamined
	p.tensionsSeen += res.TensionsFound
	p.scarsMade += res.ScarsCreated
	p.utilSum += res.UtilizationRate
	p.lastDuration = res.Duration
}

// pairWindow enumerates `limit` index pairs of an n-set starting at the
// given linear offset, wrapping around the pair space.
func pairWindow(n, offset, limit int) [][2]int {
	total := n * (n - 1) / 2
	if total == 0 || limit <= 0 {
		return nil
	}
	out := make([][2]int, 0, limit)
	idx := 0
	// Two passes at most because of wraparound.
	for pass := 0; pass < 2 && len(out) < limit; pass++ {
		idx = 0
		for i := 0; i < n && len(out) < limit; i++ {
			for j := i + 1; j < n && len(out) < limit; j++ {
				if pass == 0 && idx < offset {
					idx++
					continue
				}
				if pass == 1 && idx >= offset {
					idx++
					continue
				}
				idx++
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
