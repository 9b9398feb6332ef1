// Package scanner recovers the transaction history of an address by walking
// recent blocks from the chain head downwards.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/checksum"
	"github.com/Mohsinsiddi/w3scan/internal/retry"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockCount is the number of blocks scanned when no count is given.
const DefaultBlockCount = 1000

// ErrCancelled is returned when the scan context is cancelled mid-scan.
var ErrCancelled = errors.New("scan cancelled")

// ChainProvider supplies chain data to the scanner. BlockWithTransactions
// returns nil, nil when there is no block at height.
type ChainProvider interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	BlockWithTransactions(ctx context.Context, height uint64) (*chain.Block, error)
}

// ProviderError reports a provider failure. Height is the block that could
// not be read; it is meaningless when Op is OpCurrentHeight.
type ProviderError struct {
	Op     string
	Height uint64
	Err    error
}

const (
	OpCurrentHeight = "current height"
	OpFetchBlock    = "fetch block"
	OpDecodeBlock   = "decode block"
)

func (e *ProviderError) Error() string {
	if e.Op == OpCurrentHeight {
		return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("provider: %s %d: %v", e.Op, e.Height, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Result is the outcome of a completed scan. Transactions are ordered by
// descending block height, then by position within the block.
type Result struct {
	Target       string
	FromHeight   uint64 // first (highest) height visited
	ToHeight     uint64 // last (lowest) height visited
	Scanned      int    // heights visited
	Missing      int    // heights with no block
	Transactions []chain.Transaction
}

// Progress is reported after every visited height.
type Progress struct {
	Height  uint64
	Done    int
	Total   uint64
	Matches int
}

// Scanner walks block ranges on a ChainProvider. It holds no per-scan state
// and is safe for concurrent use.
type Scanner struct {
	provider   ChainProvider
	workers    int
	policy     retry.Policy
	logger     *slog.Logger
	onProgress func(Progress)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets how many heights are fetched concurrently. Results are
// still matched in descending height order. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithRetry sets the per-call retry policy. The default makes one attempt.
func WithRetry(p retry.Policy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithLogger sets the logger for scan diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback invoked after every visited height.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scanner) { s.onProgress = fn }
}

// New returns a Scanner reading from p.
func New(p ChainProvider, opts ...Option) *Scanner {
	s := &Scanner{
		provider: p,
		workers:  1,
		policy:   retry.Once,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scanParams struct {
	count     uint64
	start     uint64
	haveStart bool
}

// ScanOption configures a single Scan call.
type ScanOption func(*scanParams)

// WithBlockCount sets how many heights to visit. Zero visits none.
func WithBlockCount(n uint64) ScanOption {
	return func(p *scanParams) { p.count = n }
}

// FromHeight starts the scan at h instead of the current chain head. Use it
// with ProviderError.Height to resume an aborted scan.
func FromHeight(h uint64) ScanOption {
	return func(p *scanParams) {
		p.start = h
		p.haveStart = true
	}
}

// Scan visits up to the configured number of heights, from the start height
// downwards, and returns every transaction sent from or to target.
//
// Any provider failure aborts the scan with a *ProviderError and no partial
// result. Cancellation of ctx yields an error matching ErrCancelled.
func (s *Scanner) Scan(ctx context.Context, target string, opts ...ScanOption) (*Result, error) {
	params := scanParams{count: DefaultBlockCount}
	for _, opt := range opts {
		opt(&params)
	}

	normTarget, err := checksum.Encode(target)
	if err != nil {
		return nil, fmt.Errorf("target address: %w", err)
	}

	res := &Result{Target: normTarget, Transactions: []chain.Transaction{}}
	if params.count == 0 {
		return res, nil
	}

	start := params.start
	if !params.haveStart {
		if err := s.checkCancelled(ctx); err != nil {
			return nil, err
		}
		start, err = s.head(ctx)
		if err != nil {
			return nil, err
		}
	}

	// Heights below genesis are never visited.
	count := params.count
	if count-1 > start {
		count = start + 1
	}

	res.FromHeight = start
	s.logger.Debug("scan started", "target", normTarget, "from", start, "blocks", count, "workers", s.workers)
	began := time.Now()

	for offset := uint64(0); offset < count; {
		if err := s.checkCancelled(ctx); err != nil {
			return nil, err
		}

		window := uint64(s.workers)
		if remaining := count - offset; window > remaining {
			window = remaining
		}

		blocks, err := s.fetchWindow(ctx, start-offset, window)
		if err != nil {
			return nil, err
		}

		for i, b := range blocks {
			height := start - offset - uint64(i)
			res.Scanned++
			res.ToHeight = height
			if b == nil {
				res.Missing++
				s.logger.Debug("no block at height", "height", height)
			} else if err := matchBlock(res, b, height); err != nil {
				return nil, err
			}
			if s.onProgress != nil {
				s.onProgress(Progress{
					Height:  height,
					Done:    res.Scanned,
					Total:   count,
					Matches: len(res.Transactions),
				})
			}
		}
		offset += window
	}

	s.logger.Debug("scan finished",
		"target", normTarget,
		"scanned", res.Scanned,
		"missing", res.Missing,
		"matches", len(res.Transactions),
		"elapsed", time.Since(began),
	)
	return res, nil
}

func (s *Scanner) head(ctx context.Context) (uint64, error) {
	var h uint64
	err := retry.Do(ctx, s.withRetryLog(OpCurrentHeight, 0), func(ctx context.Context) error {
		var err error
		h, err = s.provider.CurrentHeight(ctx)
		return err
	})
	if err != nil {
		if cerr := s.checkCancelled(ctx); cerr != nil {
			return 0, cerr
		}
		return 0, &ProviderError{Op: OpCurrentHeight, Err: err}
	}
	return h, nil
}

// fetchWindow fetches n heights descending from top. Blocks come back in
// visit order; the error, if any, belongs to the first failing height in
// that order. A failure cancels the fetches that come after it in visit
// order, never the ones before it.
func (s *Scanner) fetchWindow(ctx context.Context, top, n uint64) ([]*chain.Block, error) {
	blocks := make([]*chain.Block, n)
	errs := make([]error, n)

	if n == 1 {
		blocks[0], errs[0] = s.fetch(ctx, top)
	} else {
		ctxs := make([]context.Context, n)
		cancels := make([]context.CancelFunc, n)
		for i := range ctxs {
			ctxs[i], cancels[i] = context.WithCancel(ctx)
		}
		defer func() {
			for _, cancel := range cancels {
				cancel()
			}
		}()

		var g errgroup.Group
		g.SetLimit(s.workers)
		for i := uint64(0); i < n; i++ {
			g.Go(func() error {
				blocks[i], errs[i] = s.fetch(ctxs[i], top-i)
				if errs[i] != nil {
					for _, cancel := range cancels[i+1:] {
						cancel()
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		if cerr := s.checkCancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, &ProviderError{Op: OpFetchBlock, Height: top - uint64(i), Err: err}
	}
	return blocks, nil
}

func (s *Scanner) fetch(ctx context.Context, height uint64) (*chain.Block, error) {
	var b *chain.Block
	err := retry.Do(ctx, s.withRetryLog(OpFetchBlock, height), func(ctx context.Context) error {
		var err error
		b, err = s.provider.BlockWithTransactions(ctx, height)
		return err
	})
	return b, err
}

// withRetryLog returns the scanner's policy with a logging OnRetry hook
// unless the caller supplied one.
func (s *Scanner) withRetryLog(op string, height uint64) retry.Policy {
	p := s.policy
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.logger.Warn("retrying provider call", "op", op, "height", height, "attempt", attempt, "wait", wait, "err", err)
		}
	}
	return p
}

func (s *Scanner) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// matchBlock appends the transactions of b that involve res.Target.
func matchBlock(res *Result, b *chain.Block, height uint64) error {
	for i := range b.Transactions {
		tx := &b.Transactions[i]

		from, err := checksum.Encode(tx.From)
		if err != nil {
			return &ProviderError{Op: OpDecodeBlock, Height: height, Err: fmt.Errorf("tx %s sender: %w", tx.Hash, err)}
		}
		var to string
		if !tx.IsContractCreation() {
			to, err = checksum.Encode(tx.To)
			if err != nil {
				return &ProviderError{Op: OpDecodeBlock, Height: height, Err: fmt.Errorf("tx %s recipient: %w", tx.Hash, err)}
			}
		}

		// A missing recipient never matches.
		if from == res.Target || (to != "" && to == res.Target) {
			res.Transactions = append(res.Transactions, *tx)
		}
	}
	return nil
}
