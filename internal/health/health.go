// Package health runs dependency probes for the readiness endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// ProbeRunner runs every checker concurrently, each bounded by timeout. A fully healthy
// result is reused for cacheFor so load balancer polling does not hit the database each time.
type ProbeRunner struct {
	timeout  time.Duration
	cacheFor time.Duration
	checkers []Checker
	now      func() time.Time

	mu       sync.Mutex
	cachedAt time.Time
	cached   []CheckResult
}

func NewProbeRunner(timeout, cacheFor time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheFor: cacheFor, checkers: checkers, now: time.Now}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if results, ok := p.fromCache(); ok {
		return true, results
	}

	results := make([]CheckResult, len(p.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range p.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()
			start := time.Now()
			res := c.Check(cctx)
			if res.Healthy && cctx.Err() != nil {
				res.Healthy = false
				res.Error = "probe timed out"
			}
			res.LatencyMS = time.Since(start).Milliseconds()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, r := range results {
		if !r.Healthy {
			ready = false
			break
		}
	}
	if ready {
		p.store(results)
	}
	return ready, results
}

func (p *ProbeRunner) fromCache() ([]CheckResult, bool) {
	if p.cacheFor <= 0 {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil || p.now().Sub(p.cachedAt) >= p.cacheFor {
		return nil, false
	}
	out := make([]CheckResult, len(p.cached))
	copy(out, p.cached)
	return out, true
}

func (p *ProbeRunner) store(results []CheckResult) {
	if p.cacheFor <= 0 {
		return
	}
	p.mu.Lock()
	p.cached = results
	p.cachedAt = p.now()
	p.mu.Unlock()
}
