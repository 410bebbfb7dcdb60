package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"leadpipe/internal/audit"
	"leadpipe/internal/platform/metrics"
	"leadpipe/internal/policy"
	"leadpipe/internal/roles"
	pkgerrors "leadpipe/pkg/errors"
	"leadpipe/pkg/sentinel"
)

// RoleResolver yields the capability set for an identity, bootstrapping a
// default set on first sight.
type RoleResolver interface {
	Resolve(ctx context.Context, identity string) (roles.CapabilitySet, error)
}

// Service is the sole write path for leads. Every write runs the same
// sequence: authorize, redact, stamp retention, persist. Nothing reaches the
// store without passing through redaction.
type Service struct {
	store           Store
	roles           RoleResolver
	audit           *audit.Publisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
	retentionMonths int
	now             func() time.Time
}

type ServiceOption func(*Service)

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithRetentionMonths(months int) ServiceOption {
	return func(s *Service) { s.retentionMonths = months }
}

// WithClock overrides the service clock. Tests use this to pin timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, resolver RoleResolver, publisher *audit.Publisher, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:           store,
		roles:           resolver,
		audit:           publisher,
		logger:          logger,
		tracer:          otel.Tracer("leadpipe/lead"),
		retentionMonths: DefaultRetentionMonths,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, actor string, p Payload) (Lead, error) {
	ctx, span := s.tracer.Start(ctx, "lead.Create")
	defer span.End()

	if err := p.Validate(); err != nil {
		return Lead{}, err
	}
	caps, err := s.roles.Resolve(ctx, actor)
	if err != nil {
		return Lead{}, err
	}
	if !policy.MayWrite(caps) {
		return Lead{}, pkgerrors.New(pkgerrors.CodePermissionDenied, "not allowed to create leads")
	}

	now := s.now()
	l := Lead{
		Name:      p.Name,
		Company:   p.Company,
		Stage:     p.Stage,
		Notes:     p.Notes,
		Consent:   p.Consent,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: RetentionExpiry(now, s.retentionMonths),
	}
	s.applyPII(&l, p, caps)

	if err := s.store.Insert(ctx, &l); err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	span.SetAttributes(attribute.String("lead.id", l.ID))

	s.metrics.IncLeadsCreated()
	s.logger.Info("lead created", "lead_id", l.ID, "actor", actor, "stage", l.Stage)
	s.audit.Emit(ctx, audit.Event{Actor: actor, RecordID: l.ID, Action: audit.ActionLeadCreated})
	return l, nil
}

func (s *Service) Update(ctx context.Context, actor, id string, p Payload) (Lead, error) {
	ctx, span := s.tracer.Start(ctx, "lead.Update", trace.WithAttributes(attribute.String("lead.id", id)))
	defer span.End()

	if err := p.Validate(); err != nil {
		return Lead{}, err
	}
	caps, err := s.roles.Resolve(ctx, actor)
	if err != nil {
		return Lead{}, err
	}
	if !policy.MayWrite(caps) {
		return Lead{}, pkgerrors.New(pkgerrors.CodePermissionDenied, "not allowed to update leads")
	}

	// The retention window restarts on every write, not just creation.
	now := s.now()
	l := Lead{
		Name:      p.Name,
		Company:   p.Company,
		Stage:     p.Stage,
		Notes:     p.Notes,
		Consent:   p.Consent,
		UpdatedAt: now,
		ExpiresAt: RetentionExpiry(now, s.retentionMonths),
	}
	s.applyPII(&l, p, caps)

	if err := s.store.Merge(ctx, id, l); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Lead{}, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return Lead{}, fmt.Errorf("update lead: %w", err)
	}
	updated, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Lead{}, fmt.Errorf("update lead: %w", err)
	}

	s.metrics.IncLeadsUpdated()
	s.logger.Info("lead updated", "lead_id", id, "actor", actor, "stage", updated.Stage)
	s.audit.Emit(ctx, audit.Event{Actor: actor, RecordID: id, Action: audit.ActionLeadUpdated})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor, id string) error {
	ctx, span := s.tracer.Start(ctx, "lead.Delete", trace.WithAttributes(attribute.String("lead.id", id)))
	defer span.End()

	caps, err := s.roles.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	if !policy.MayDelete(caps) {
		return pkgerrors.New(pkgerrors.CodePermissionDenied, "not allowed to delete leads")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return fmt.Errorf("delete lead: %w", err)
	}

	s.metrics.IncLeadsDeleted()
	s.logger.Info("lead deleted", "lead_id", id, "actor", actor)
	s.audit.Emit(ctx, audit.Event{Actor: actor, RecordID: id, Action: audit.ActionLeadDeleted})
	return nil
}

func (s *Service) Get(ctx context.Context, actor, id string) (Lead, error) {
	ctx, span := s.tracer.Start(ctx, "lead.Get", trace.WithAttributes(attribute.String("lead.id", id)))
	defer span.End()

	if _, err := s.roles.Resolve(ctx, actor); err != nil {
		return Lead{}, err
	}
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Lead{}, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (s *Service) applyPII(l *Lead, p Payload, caps roles.CapabilitySet) {
	pii := Redact(p, caps)
	l.Email = pii.Email
	l.Phone = pii.Phone
	if pii.Stripped {
		s.metrics.IncPIIRedaction()
		s.logger.Debug("contact details withheld", "actor_caps", caps)
	}
}
