package rpc

import (
	"context"
	"sort"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"golang.org/x/sync/errgroup"
)

// Pinger measures one endpoint: round-trip latency and the head it reports.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, uint64, error)
}

// Dialer builds a Pinger for an endpoint URL.
type Dialer func(url string) Pinger

// EVMDialer returns a Dialer producing JSON-RPC clients with the given
// per-request timeout.
func EVMDialer(timeout time.Duration) Dialer {
	return func(url string) Pinger {
		return chain.NewEVMClientWithTimeout(url, timeout)
	}
}

// BenchmarkResult holds the result of a single endpoint benchmark.
type BenchmarkResult struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Err         error
}

// Benchmark pings every URL concurrently. Results keep the order of urls.
func Benchmark(ctx context.Context, urls []string, dial Dialer) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))

	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			latency, block, err := dial(u).Ping(ctx)
			results[i] = BenchmarkResult{URL: u, Latency: latency, BlockNumber: block, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// SortByLatency orders results healthy-first, fastest first.
func SortByLatency(results []BenchmarkResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		return a.Latency < b.Latency
	})
}

// ResultsToEndpoints converts benchmark results to picker Endpoints.
// Every returned endpoint is Checked.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		endpoints = append(endpoints, Endpoint{
			URL:         r.URL,
			Latency:     r.Latency,
			BlockNumber: r.BlockNumber,
			Healthy:     r.Err == nil,
			Checked:     true,
		})
	}
	return endpoints
}
