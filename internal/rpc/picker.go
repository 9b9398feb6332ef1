package rpc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no healthy RPC endpoint is available.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm defines how an RPC endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Nodes more than this many blocks behind the best head are stale.
	staleBlockThreshold = 3
	// A fastest winner is reused for this long.
	cacheTTL = 5 * time.Minute
)

// ParseAlgorithm validates an algorithm name. "" means fastest.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	default:
		return "", fmt.Errorf("invalid algorithm %q: choose fastest, round-robin or failover", s)
	}
}

// Endpoint represents a single RPC endpoint with its measured attributes.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Healthy     bool // meaningful only when Checked
	Checked     bool
}

// Stale reports whether e lags more than the threshold behind best.
func (e Endpoint) Stale(best uint64) bool {
	return best > e.BlockNumber && best-e.BlockNumber > staleBlockThreshold
}

// Picker selects an RPC endpoint according to its algorithm.
type Picker struct {
	algo Algorithm

	mu          sync.Mutex
	rrIndex     int
	cachedURL   string
	cacheExpiry time.Time
	now         func() time.Time
	onRank      func()
}

// NewPicker creates a Picker for algo.
func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo, now: time.Now}
}

// OnRank registers a hook called whenever the fastest algorithm re-ranks
// endpoints instead of reusing its cached winner.
func (p *Picker) OnRank(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRank = fn
}

// Pick selects an endpoint from endpoints.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyRPC
	}

	switch p.algo {
	case AlgorithmRoundRobin:
		return p.pickRoundRobin(endpoints)
	case AlgorithmFailover:
		return pickFailover(endpoints)
	default:
		return p.pickFastest(endpoints)
	}
}

func (p *Picker) pickFastest(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedURL != "" && p.now().Before(p.cacheExpiry) {
		for i := range endpoints {
			if endpoints[i].URL == p.cachedURL && (!endpoints[i].Checked || endpoints[i].Healthy) {
				return &endpoints[i], nil
			}
		}
	}

	if p.onRank != nil {
		p.onRank()
	}

	candidates := candidates(endpoints)
	best := bestBlock(candidates)

	var winner *Endpoint
	var bestScore float64
	for _, e := range candidates {
		if e.Stale(best) {
			continue
		}
		if s := score(e, best); winner == nil || s > bestScore {
			winner, bestScore = e, s
		}
	}
	if winner == nil {
		return nil, ErrNoHealthyRPC
	}

	p.cachedURL = winner.URL
	p.cacheExpiry = p.now().Add(cacheTTL)
	return winner, nil
}

func (p *Picker) pickRoundRobin(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := candidates(endpoints)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyRPC
	}

	idx := p.rrIndex % len(healthy)
	p.rrIndex = (idx + 1) % len(healthy)
	return healthy[idx], nil
}

// pickFailover returns the first endpoint not known to be down.
func pickFailover(endpoints []Endpoint) (*Endpoint, error) {
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			return e, nil
		}
	}
	return nil, ErrNoHealthyRPC
}

// score favours low latency, minus a point per block behind the best head.
func score(e *Endpoint, best uint64) float64 {
	var s float64
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s += 1000.0 / float64(ms)
	} else if e.Latency > 0 {
		s += 1000.0
	}
	if best > e.BlockNumber {
		s -= float64(best - e.BlockNumber)
	}
	return s
}

// candidates drops endpoints checked and found down. Unchecked endpoints
// are always candidates.
func candidates(endpoints []Endpoint) []*Endpoint {
	var out []*Endpoint
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			out = append(out, e)
		}
	}
	return out
}

func bestBlock(eps []*Endpoint) uint64 {
	var best uint64
	for _, e := range eps {
		best = max(best, e.BlockNumber)
	}
	return best
}
