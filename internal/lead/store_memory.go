package lead

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"leadpipe/pkg/sentinel"
)

// InMemoryStore keeps leads in a map and supports live watches. It backs
// local development and the unit tests; watch semantics (full-snapshot
// replace, coalesced change notifications) match the postgres store.
type InMemoryStore struct {
	mu    sync.RWMutex
	leads map[string]Lead
	subs  map[*memorySubscription]struct{}

	// orderedUnavailable makes ordered watches fail, simulating a store
	// whose composite index is not provisioned. Tests use this to drive the
	// fallback path on demand.
	orderedUnavailable bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads: make(map[string]Lead),
		subs:  make(map[*memorySubscription]struct{}),
	}
}

// SetOrderedUnavailable toggles refusal of ordered watch shapes.
func (s *InMemoryStore) SetOrderedUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderedUnavailable = v
}

func (s *InMemoryStore) Insert(_ context.Context, l *Lead) error {
	s.mu.Lock()
	l.ID = uuid.NewString()
	s.leads[l.ID] = *l
	s.mu.Unlock()
	s.broadcast()
	return nil
}

func (s *InMemoryStore) Merge(_ context.Context, id string, l Lead) error {
	s.mu.Lock()
	current, ok := s.leads[id]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	current.Name = l.Name
	current.Company = l.Company
	current.Stage = l.Stage
	current.Notes = l.Notes
	current.Email = l.Email
	current.Phone = l.Phone
	current.Consent = l.Consent
	current.UpdatedAt = l.UpdatedAt
	current.ExpiresAt = l.ExpiresAt
	s.leads[id] = current
	s.mu.Unlock()
	s.broadcast()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.leads[id]; !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(s.leads, id)
	s.mu.Unlock()
	s.broadcast()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return Lead{}, sentinel.ErrNotFound
	}
	return l, nil
}

func (s *InMemoryStore) Watch(ctx context.Context, q Query) (Subscription, error) {
	s.mu.Lock()
	if q.OrderByCreatedAt && s.orderedUnavailable {
		s.mu.Unlock()
		return nil, sentinel.ErrOrderedUnsupported
	}
	sub := &memorySubscription{
		store:  s,
		query:  q,
		snaps:  make(chan []Lead),
		errs:   make(chan error, 1),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

// broadcast wakes every subscription; pending wakeups coalesce.
func (s *InMemoryStore) broadcast() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subs {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// evaluate computes the full result set for a query. Unordered results come
// out in map order: arbitrary, and deliberately not stable across snapshots.
func (s *InMemoryStore) evaluate(q Query) []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if q.Stage != nil && l.Stage != *q.Stage {
			continue
		}
		out = append(out, l)
	}
	if q.OrderByCreatedAt {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *InMemoryStore) unsubscribe(sub *memorySubscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

type memorySubscription struct {
	store *InMemoryStore
	query Query

	snaps  chan []Lead
	errs   chan error
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (sub *memorySubscription) Snapshots() <-chan []Lead { return sub.snaps }
func (sub *memorySubscription) Errors() <-chan error     { return sub.errs }

func (sub *memorySubscription) Close() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub)
		close(sub.done)
	})
}

// run is the sole sender on snaps and errs and closes both on exit. The
// transport serializes deliveries: no two snapshots for one subscription are
// ever in flight concurrently.
func (sub *memorySubscription) run(ctx context.Context) {
	defer close(sub.snaps)
	defer close(sub.errs)

	// Initial snapshot, then one per coalesced change.
	if !sub.deliver(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-sub.notify:
			if !sub.deliver(ctx) {
				return
			}
		}
	}
}

func (sub *memorySubscription) deliver(ctx context.Context) bool {
	snapshot := sub.store.evaluate(sub.query)
	select {
	case sub.snaps <- snapshot:
		return true
	case <-ctx.Done():
		return false
	case <-sub.done:
		return false
	}
}
