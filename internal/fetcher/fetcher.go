// Package fetcher retrieves and validates the bio document from the remote
// configuration store with bounded, backed-off retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gurkanfikretgunak/bio/internal/metrics"
	"github.com/gurkanfikretgunak/bio/internal/models"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

// DefaultKey is the store parameter holding the bio document.
const DefaultKey = "bio"

const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 5 * time.Second
)

// AttemptFunc is told about each attempt before it starts.
type AttemptFunc func(attempt, maxAttempts int)

type Fetcher struct {
	store remoteconfig.Store
	key   string
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Fetcher)

// WithKey reads the document from a parameter other than DefaultKey.
func WithKey(key string) Option {
	return func(f *Fetcher) {
		if key != "" {
			f.key = key
		}
	}
}

func New(store remoteconfig.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		store: store,
		key:   DefaultKey,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Backoff is the delay after failed attempt n (1-indexed):
// min(1s * 2^(n-1), 5s).
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := baseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

// FetchWithRetry fetches the bio document, making at most maxAttempts
// attempts of at most perAttemptTimeout each.
func (f *Fetcher) FetchWithRetry(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration) (*models.BioDocument, error) {
	return f.FetchWithRetryNotify(ctx, maxAttempts, perAttemptTimeout, nil)
}

// FetchWithRetryNotify is FetchWithRetry with a progress callback. On
// exhaustion the last attempt's *Error is returned. Cancelling ctx stops
// the sequence with the context's error.
func (f *Fetcher) FetchWithRetryNotify(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration, onAttempt AttemptFunc) (*models.BioDocument, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidArgument, maxAttempts)
	}
	if perAttemptTimeout <= 0 {
		return nil, fmt.Errorf("%w: attempt timeout must be positive, got %s", ErrInvalidArgument, perAttemptTimeout)
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		if onAttempt != nil {
			onAttempt(n, maxAttempts)
		}
		slog.Debug("Fetching bio document", slog.Int("attempt", n), slog.Int("max_attempts", maxAttempts))

		doc, err := f.attempt(ctx, n, perAttemptTimeout)
		if err == nil {
			slog.Info("Fetched bio document", slog.Int("attempt", n))
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		slog.Warn("Bio fetch attempt failed",
			slog.Int("attempt", n),
			slog.Int("max_attempts", maxAttempts),
			slog.String("code", KindOf(err).Code()),
			slog.Any("error", err),
		)

		if n < maxAttempts {
			delay := Backoff(n)
			slog.Debug("Retrying bio fetch", slog.Duration("delay", delay))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	slog.Error("All bio fetch attempts failed",
		slog.Int("attempts", maxAttempts),
		slog.Any("error", lastErr),
	)
	return nil, lastErr
}

type result struct {
	doc *models.BioDocument
	err error
}

// attempt races one fetch-and-parse against the per-attempt deadline.
// Exactly one side settles the attempt; a fetch that finishes after the
// deadline won is dropped without touching anything.
func (f *Fetcher) attempt(ctx context.Context, n int, timeout time.Duration) (*models.BioDocument, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var settled atomic.Bool
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		doc, err := f.fetchAndParse(attemptCtx, n)
		if !settled.CompareAndSwap(false, true) {
			metrics.FetchLateResults.Inc()
			slog.Debug("Discarding late bio fetch result",
				slog.Int("attempt", n),
				slog.Duration("elapsed", time.Since(start)),
			)
			return
		}
		done <- result{doc: doc, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-attemptCtx.Done():
		if settled.CompareAndSwap(false, true) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r = result{err: &Error{Kind: KindTimeout, Attempt: n, Err: fmt.Errorf("no response within %s", timeout)}}
		} else {
			r = <-done
		}
	}

	outcome := "success"
	if r.err != nil {
		outcome = KindOf(r.err).Code()
	}
	metrics.FetchAttempts.WithLabelValues(outcome).Inc()
	metrics.FetchAttemptDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return r.doc, r.err
}

func (f *Fetcher) fetchAndParse(ctx context.Context, n int) (*models.BioDocument, error) {
	values, err := f.store.Fetch(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Attempt: n, Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindNetwork, Attempt: n, Err: err}
	}

	raw, ok := values[f.key]
	if !ok {
		return nil, &Error{Kind: KindConfiguration, Attempt: n, Err: fmt.Errorf("parameter %q not found", f.key)}
	}
	if raw == "" {
		return nil, &Error{Kind: KindConfiguration, Attempt: n, Err: fmt.Errorf("parameter %q is empty", f.key)}
	}

	slog.Debug("Received bio parameter", slog.Int("length", len(raw)))

	doc, err := models.DecodeBioDocument([]byte(raw))
	if err != nil {
		return nil, &Error{Kind: KindParse, Attempt: n, Err: err}
	}
	return doc, nil
}

// Available reports whether the store answers and holds a non-empty bio
// parameter. It makes a single request without retries.
func (f *Fetcher) Available(ctx context.Context) (bool, error) {
	values, err := f.store.Fetch(ctx)
	if err != nil {
		return false, err
	}
	return values[f.key] != "", nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
