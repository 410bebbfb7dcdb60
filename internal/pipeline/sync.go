// Package pipeline maintains live, deterministically ordered views of the
// lead set. A view prefers the store's ordered watch; when the store cannot
// serve that shape (a missing composite index, typically) it falls back to an
// unordered watch and sorts each snapshot client-side.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"leadpipe/internal/lead"
	"leadpipe/internal/platform/metrics"
	pkgerrors "leadpipe/pkg/errors"
	"leadpipe/pkg/sentinel"
)

// Watcher is the slice of the lead store a view needs.
type Watcher interface {
	Watch(ctx context.Context, q lead.Query) (lead.Subscription, error)
}

// Filter selects which leads a view covers.
type Filter struct {
	Stage *lead.Stage
	Limit int
}

// State of a view's subscription protocol.
type State int

const (
	StateIdle State = iota
	StatePrimary
	StateFallback
)

func (s State) String() string {
	switch s {
	case StatePrimary:
		return "primary"
	case StateFallback:
		return "fallback"
	default:
		return "idle"
	}
}

// Sync owns one live view. Snapshots are delivered to the observer callback
// from a single goroutine, in order, as full replacements; the callback must
// not block. After Close returns, no further callbacks fire.
type Sync struct {
	watcher    Watcher
	onSnapshot func([]lead.Lead)
	onError    func(error)
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Sync)

// WithErrorHandler registers a callback for terminal sync failures (the
// fallback watch failing too). Without one, failures are only logged.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Sync) { s.onError = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sync) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sync) { s.logger = logger }
}

func New(watcher Watcher, onSnapshot func([]lead.Lead), opts ...Option) *Sync {
	s := &Sync{
		watcher:    watcher,
		onSnapshot: onSnapshot,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts the view for a filter. Calling Open on an already-open view
// closes the previous subscription first, so no two subscriptions are ever
// live for one Sync; changing the filter is exactly Close + Open and
// observers never see a mixed-filter snapshot.
func (s *Sync) Open(filter Filter) error {
	s.Close()

	ctx, cancel := context.WithCancel(context.Background())

	primary := lead.Query{Stage: filter.Stage, OrderByCreatedAt: true, Limit: filter.Limit}
	sub, err := s.watcher.Watch(ctx, primary)
	state := StatePrimary
	if errors.Is(err, sentinel.ErrOrderedUnsupported) {
		// The ordered shape was refused outright; go straight to fallback.
		s.logger.Warn("ordered subscription unsupported, opening fallback")
		if s.metrics != nil {
			s.metrics.IncSyncFallback()
		}
		sub, err = s.openFallback(ctx, filter)
		state = StateFallback
	}
	if err != nil {
		cancel()
		return pkgerrors.New(pkgerrors.CodeSyncUnavailable, fmt.Sprintf("opening subscription: %v", err))
	}

	s.mu.Lock()
	s.cancel = cancel
	s.state = state
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, sub, filter, state == StateFallback)
	return nil
}

// Close cancels the subscription and waits for the delivery goroutine to
// exit, guaranteeing no observer callback after it returns. Safe to call from
// any state, any number of times.
func (s *Sync) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.state = StateIdle
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// State reports the current protocol state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sync) openFallback(ctx context.Context, filter Filter) (lead.Subscription, error) {
	unordered := lead.Query{Stage: filter.Stage, Limit: filter.Limit}
	return s.watcher.Watch(ctx, unordered)
}

// run is the single consumer of the subscription and the only goroutine that
// invokes observer callbacks.
func (s *Sync) run(ctx context.Context, sub lead.Subscription, filter Filter, fallback bool) {
	defer s.wg.Done()
	defer func() { sub.Close() }()

	snaps, errs := sub.Snapshots(), sub.Errors()
	for snaps != nil || errs != nil {
		select {
		case <-ctx.Done():
			return

		case snapshot, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			if fallback {
				SortSnapshot(snapshot)
			}
			if ctx.Err() == nil {
				s.onSnapshot(snapshot)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if fallback {
				// The fallback path has no second net.
				s.fail(ctx, err)
				return
			}
			s.logger.Warn("ordered subscription failed, switching to fallback", "error", err)
			if s.metrics != nil {
				s.metrics.IncSyncFallback()
			}
			sub.Close()
			replacement, ferr := s.openFallback(ctx, filter)
			if ferr != nil {
				s.fail(ctx, errors.Join(err, ferr))
				return
			}
			sub = replacement
			snaps, errs = sub.Snapshots(), sub.Errors()
			fallback = true
			s.setState(StateFallback)
		}
	}
}

func (s *Sync) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Sync) fail(ctx context.Context, cause error) {
	if ctx.Err() != nil {
		return
	}
	err := pkgerrors.New(pkgerrors.CodeSyncUnavailable, fmt.Sprintf("sync unavailable: %v", cause))
	s.logger.Error("pipeline view failed", "error", cause)
	if s.onError != nil {
		s.onError(err)
	}
}

// Snapshot opens a temporary view, waits for its first snapshot, and tears it
// down. Used by one-shot readers that do not want to hold a subscription.
func Snapshot(ctx context.Context, watcher Watcher, filter Filter) ([]lead.Lead, error) {
	result := make(chan []lead.Lead, 1)
	failure := make(chan error, 1)

	view := New(watcher,
		func(snapshot []lead.Lead) {
			select {
			case result <- snapshot:
			default:
			}
		},
		WithErrorHandler(func(err error) {
			select {
			case failure <- err:
			default:
			}
		}),
	)
	if err := view.Open(filter); err != nil {
		return nil, err
	}
	defer view.Close()

	select {
	case snapshot := <-result:
		return snapshot, nil
	case err := <-failure:
		return nil, err
	case <-ctx.Done():
		return nil, pkgerrors.New(pkgerrors.CodeSyncUnavailable, "timed out waiting for snapshot")
	}
}
