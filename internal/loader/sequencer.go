// Package loader owns the load state of the page content and moves it
// between loading, error and ready as the fetcher reports back.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gurkanfikretgunak/bio/internal/fetcher"
	"github.com/gurkanfikretgunak/bio/internal/metrics"
	"github.com/gurkanfikretgunak/bio/internal/models"
)

var (
	ErrAlreadyStarted = errors.New("loader: already started")
	ErrNotStarted     = errors.New("loader: not started")
	ErrNotRetryable   = errors.New("loader: retry is only possible after a failed load")
	ErrLoadInProgress = errors.New("loader: a load is already in progress")
	ErrClosed         = errors.New("loader: closed")
)

// DocumentFetcher is satisfied by *fetcher.Fetcher.
type DocumentFetcher interface {
	FetchWithRetryNotify(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration, onAttempt fetcher.AttemptFunc) (*models.BioDocument, error)
}

type Options struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
}

var DefaultOptions = Options{
	MaxAttempts:    3,
	AttemptTimeout: 30 * time.Second,
}

// Sequencer is the only writer of the load state. Every load runs under a
// generation number; results from a superseded generation, or arriving
// after Close, are dropped.
type Sequencer struct {
	fetcher DocumentFetcher
	opts    Options

	mu      sync.Mutex
	state   State
	base    context.Context
	cancel  context.CancelFunc
	started bool
	closed  bool
	subs    map[int]chan State
	nextSub int

	wg sync.WaitGroup
}

func New(f DocumentFetcher, opts Options) *Sequencer {
	s := &Sequencer{
		fetcher: f,
		opts:    opts,
		subs:    make(map[int]chan State),
	}
	s.state = State{Phase: PhaseLoading, StatusText: StatusConnecting, UpdatedAt: time.Now()}
	return s
}

// Start begins the first load. ctx bounds every load the sequencer runs;
// once it is done, loads end in the Error phase until Close.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.base = ctx
	s.beginLocked()
	return nil
}

// Retry starts a fresh fetch sequence after a failed load. It can be
// called any number of times.
func (s *Sequencer) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.state.Phase != PhaseError {
		return ErrNotRetryable
	}
	slog.Info("Retrying bio load", slog.Uint64("previous_generation", s.state.Generation))
	s.beginLocked()
	return nil
}

// Reset discards the current document or error and loads again.
func (s *Sequencer) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.state.Phase == PhaseLoading {
		return ErrLoadInProgress
	}
	slog.Info("Resetting bio load", slog.String("phase", s.state.Phase.String()))
	s.beginLocked()
	return nil
}

// State returns the current snapshot.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe delivers state changes, starting with the current state. A
// slow reader only ever sees the most recent state. The channel is closed
// by the returned cancel func or by Close.
func (s *Sequencer) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close stops any load in flight and waits for it to return. Nothing
// changes the state afterwards.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sequencer) checkLocked() error {
	if s.closed {
		return ErrClosed
	}
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Sequencer) beginLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	gen := s.state.Generation + 1
	s.setLocked(State{Phase: PhaseLoading, StatusText: StatusConnecting, Generation: gen})

	s.wg.Add(1)
	go s.load(ctx, gen)
}

func (s *Sequencer) load(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	s.setStatus(gen, StatusLoading)

	doc, err := s.fetcher.FetchWithRetryNotify(ctx, s.opts.MaxAttempts, s.opts.AttemptTimeout, func(attempt, maxAttempts int) {
		if attempt > 1 {
			s.setStatus(gen, fmt.Sprintf("Retrying (%d/%d)…", attempt, maxAttempts))
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.state.Generation {
		slog.Debug("Discarding stale bio load result", slog.Uint64("generation", gen))
		return
	}
	if ctx.Err() != nil && s.base.Err() == nil {
		return
	}

	if err != nil && s.base.Err() != nil {
		slog.Warn("Bio load stopped before the sequencer was closed",
			slog.Uint64("generation", gen),
			slog.Any("error", s.base.Err()),
		)
		s.setLocked(State{Phase: PhaseError, Message: Message(fetcher.KindUnknown), Kind: fetcher.KindUnknown, Generation: gen})
		return
	}

	if err != nil {
		kind := fetcher.KindOf(err)
		slog.Error("Failed to load bio document",
			slog.String("code", kind.Code()),
			slog.Uint64("generation", gen),
			slog.Any("error", err),
		)
		s.setLocked(State{Phase: PhaseError, Message: Message(kind), Kind: kind, Generation: gen})
		return
	}

	slog.Info("Bio document ready",
		slog.Uint64("generation", gen),
		slog.Int("links", len(doc.Links)),
		slog.Int("favorites", len(doc.Favorites)),
	)
	s.setLocked(State{Phase: PhaseReady, Document: doc, Generation: gen})
}

func (s *Sequencer) setStatus(gen uint64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.state.Generation || s.state.Phase != PhaseLoading {
		return
	}
	next := s.state
	next.StatusText = status
	s.setLocked(next)
}

func (s *Sequencer) setLocked(next State) {
	next.UpdatedAt = time.Now()
	if next.Phase != s.state.Phase {
		metrics.LoadTransitions.WithLabelValues(next.Phase.String()).Inc()
	}
	s.state = next

	for _, p := range []Phase{PhaseLoading, PhaseError, PhaseReady} {
		v := 0.0
		if p == next.Phase {
			v = 1
		}
		metrics.LoadPhase.WithLabelValues(p.String()).Set(v)
	}

	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}
