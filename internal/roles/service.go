package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadpipe/internal/audit"
	"leadpipe/internal/platform/metrics"
	pkgerrors "leadpipe/pkg/errors"
	"leadpipe/pkg/sentinel"
)

// Service resolves capability sets and owns the first-contact bootstrap.
type Service struct {
	store   Store
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, auditPub *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, audit: auditPub, metrics: m, logger: logger}
}

// Resolve returns the persisted capability set for an identity, creating the
// minimal default on first contact. The bootstrap is idempotent: under
// concurrent first resolution, exactly one caller creates the set and every
// other caller reads it back.
func (s *Service) Resolve(ctx context.Context, identity string) (CapabilitySet, error) {
	if identity == "" {
		return CapabilitySet{}, pkgerrors.New(pkgerrors.CodeValidation, "identity is required")
	}

	caps, err := s.store.Find(ctx, identity)
	if err == nil {
		return caps, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return CapabilitySet{}, fmt.Errorf("resolve capabilities: %w", err)
	}

	created, err := s.store.CreateIfAbsent(ctx, identity, DefaultSet())
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("bootstrap capabilities: %w", err)
	}
	if created {
		s.metrics.IncCapabilityBootstrap()
		s.logger.InfoContext(ctx, "bootstrapped default capabilities", "identity", identity)
		_ = s.audit.Emit(ctx, audit.Event{
			Actor:  identity,
			Action: audit.ActionCapabilitiesBootstrapped,
		})
		return DefaultSet(), nil
	}

	// Lost the bootstrap race; the winner's row is authoritative.
	caps, err = s.store.Find(ctx, identity)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("resolve capabilities after bootstrap race: %w", err)
	}
	return caps, nil
}

// Grant replaces an identity's capability set. This is the only mutation path
// besides the bootstrap and it is restricted to admins (the same bar as
// record deletion).
func (s *Service) Grant(ctx context.Context, actor, identity string, caps CapabilitySet) error {
	actorCaps, err := s.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	if !actorCaps.Admin {
		return pkgerrors.New(pkgerrors.CodePermissionDenied, "granting capabilities requires admin")
	}
	if identity == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "identity is required")
	}

	if err := s.store.Save(ctx, identity, caps); err != nil {
		return fmt.Errorf("save capabilities: %w", err)
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Actor:  actor,
		Action: audit.ActionCapabilitiesGranted,
		Detail: identity,
	})
	return nil
}
