package roles

import (
	"context"
	"sync"

	"leadpipe/pkg/sentinel"
)

// InMemoryStore keeps capability sets in a map. It backs local development
// and the unit tests; semantics match the postgres store, including the
// atomicity of CreateIfAbsent.
type InMemoryStore struct {
	mu   sync.RWMutex
	sets map[string]CapabilitySet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sets: make(map[string]CapabilitySet)}
}

func (s *InMemoryStore) Find(_ context.Context, identity string) (CapabilitySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	caps, ok := s.sets[identity]
	if !ok {
		return CapabilitySet{}, sentinel.ErrNotFound
	}
	return caps, nil
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, identity string, caps CapabilitySet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[identity]; ok {
		return false, nil
	}
	s.sets[identity] = caps
	return true, nil
}

func (s *InMemoryStore) Save(_ context.Context, identity string, caps CapabilitySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[identity] = caps
	return nil
}
