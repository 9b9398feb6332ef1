package rpc

import "context"

// Select picks one URL from urls with the named algorithm, benchmarking the
// candidates through dial when there is more than one.
//
// The fastest algorithm ranks by measured latency. Round-robin and failover
// use benchmark health only. An empty algorithm means fastest.
func Select(ctx context.Context, urls []string, algorithm string, dial Dialer) (string, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return "", err
	}
	if len(urls) == 0 {
		return "", ErrNoHealthyRPC
	}
	if len(urls) == 1 {
		return urls[0], nil
	}

	endpoints := ResultsToEndpoints(Benchmark(ctx, urls, dial))
	winner, err := NewPicker(algo).Pick(endpoints)
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
