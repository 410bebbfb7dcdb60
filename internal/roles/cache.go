package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheTTL bounds staleness of cached capability sets. Sets are read-mostly,
// so a short TTL keeps administrative changes visible quickly without hitting
// the store on every resolve.
const CacheTTL = 5 * time.Minute

// CachedStore is a read-through Redis cache in front of another Store.
// Cache failures degrade to the underlying store rather than failing the
// request.
type CachedStore struct {
	inner  Store
	client *redis.Client
	logger *slog.Logger
}

func NewCachedStore(inner Store, client *redis.Client, logger *slog.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, logger: logger}
}

func cacheKey(identity string) string {
	return "leadpipe:caps:" + identity
}

func (s *CachedStore) Find(ctx context.Context, identity string) (CapabilitySet, error) {
	raw, err := s.client.Get(ctx, cacheKey(identity)).Bytes()
	if err == nil {
		var caps CapabilitySet
		if err := json.Unmarshal(raw, &caps); err == nil {
			return caps, nil
		}
		// Unreadable entries are dropped and refetched.
		s.client.Del(ctx, cacheKey(identity))
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "capability cache read failed", "error", err)
	}

	caps, err := s.inner.Find(ctx, identity)
	if err != nil {
		return CapabilitySet{}, err
	}
	s.fill(ctx, identity, caps)
	return caps, nil
}

func (s *CachedStore) CreateIfAbsent(ctx context.Context, identity string, caps CapabilitySet) (bool, error) {
	created, err := s.inner.CreateIfAbsent(ctx, identity, caps)
	if err != nil {
		return false, err
	}
	// Whatever the race outcome, the cached entry may now be stale.
	s.invalidate(ctx, identity)
	return created, nil
}

func (s *CachedStore) Save(ctx context.Context, identity string, caps CapabilitySet) error {
	if err := s.inner.Save(ctx, identity, caps); err != nil {
		return err
	}
	s.invalidate(ctx, identity)
	return nil
}

func (s *CachedStore) fill(ctx context.Context, identity string, caps CapabilitySet) {
	raw, err := json.Marshal(caps)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, cacheKey(identity), raw, CacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "capability cache write failed", "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, identity string) {
	if err := s.client.Del(ctx, cacheKey(identity)).Err(); err != nil {
		s.logger.WarnContext(ctx, "capability cache invalidation failed",
			"error", fmt.Errorf("del %s: %w", cacheKey(identity), err))
	}
}
