package lead

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpipe/internal/audit"
	"leadpipe/internal/roles"
	pkgerrors "leadpipe/pkg/errors"
)

// capsByIdentity resolves capabilities from a fixed table, defaulting to the
// bootstrap set for unknown identities.
type capsByIdentity map[string]roles.CapabilitySet

func (c capsByIdentity) Resolve(_ context.Context, identity string) (roles.CapabilitySet, error) {
	if caps, ok := c[identity]; ok {
		return caps, nil
	}
	return roles.DefaultSet(), nil
}

type serviceFixture struct {
	service *Service
	store   *InMemoryStore
	events  *audit.InMemoryStore
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:  NewInMemoryStore(),
		events: audit.NewInMemoryStore(),
		now:    time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	resolver := capsByIdentity{
		"viewer": {Viewer: true},
		"rm":     {Viewer: true, RecordManager: true},
		"owner":  {Viewer: true, LeadOwner: true},
		"admin":  {Admin: true},
	}
	publisher := audit.NewPublisher(f.events)
	t.Cleanup(publisher.Close)
	f.service = NewService(f.store, resolver, publisher, slog.New(slog.DiscardHandler),
		WithClock(func() time.Time { return f.now }))
	return f
}

func piiPayload() Payload {
	return Payload{
		Name:    "Acme deal",
		Company: "Acme",
		Stage:   StageNew,
		Email:   "buyer@acme.test",
		Phone:   "+31 6 1234",
		Consent: true,
	}
}

func TestServiceCreate(t *testing.T) {
	t.Run("viewer may not create", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Create(context.Background(), "viewer", piiPayload())
		assert.Equal(t, pkgerrors.CodePermissionDenied, pkgerrors.CodeOf(err))
	})

	t.Run("record manager creates but never holds PII", func(t *testing.T) {
		f := newServiceFixture(t)
		l, err := f.service.Create(context.Background(), "rm", piiPayload())
		require.NoError(t, err)

		assert.Nil(t, l.Email)
		assert.Nil(t, l.Phone)
		assert.Equal(t, "rm", l.CreatedBy)
		assert.True(t, l.CreatedAt.Equal(f.now))

		stored, err := f.store.FindByID(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.Email)
	})

	t.Run("admin with consent keeps PII and gets a retention stamp", func(t *testing.T) {
		f := newServiceFixture(t)
		l, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)

		require.NotNil(t, l.Email)
		assert.Equal(t, "buyer@acme.test", *l.Email)
		assert.True(t, l.ExpiresAt.Equal(f.now.AddDate(2, 0, 0)))
	})

	t.Run("consent withdrawn strips PII even for admins", func(t *testing.T) {
		f := newServiceFixture(t)
		p := piiPayload()
		p.Consent = false
		l, err := f.service.Create(context.Background(), "admin", p)
		require.NoError(t, err)
		assert.Nil(t, l.Email)
		assert.Nil(t, l.Phone)
	})

	t.Run("rejects a nameless payload", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Create(context.Background(), "admin", Payload{Stage: StageNew})
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	})

	t.Run("emits an audit event", func(t *testing.T) {
		f := newServiceFixture(t)
		l, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)

		events, err := f.events.ListByActor(context.Background(), "admin")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionLeadCreated, events[0].Action)
		assert.Equal(t, l.ID, events[0].RecordID)
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Run("refreshes retention and preserves provenance", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)

		f.now = f.now.Add(30 * 24 * time.Hour)
		p := piiPayload()
		p.Stage = StageQualified
		updated, err := f.service.Update(context.Background(), "admin", created.ID, p)
		require.NoError(t, err)

		assert.Equal(t, StageQualified, updated.Stage)
		assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
		assert.Equal(t, "admin", updated.CreatedBy)
		assert.True(t, updated.UpdatedAt.Equal(f.now))
		assert.True(t, updated.ExpiresAt.Equal(f.now.AddDate(2, 0, 0)),
			"retention window must restart on update")
	})

	t.Run("an update by a non-holder wipes stored PII", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)
		require.NotNil(t, created.Email)

		updated, err := f.service.Update(context.Background(), "rm", created.ID, piiPayload())
		require.NoError(t, err)
		assert.Nil(t, updated.Email)
		assert.Nil(t, updated.Phone)
	})

	t.Run("viewer may not update", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)

		_, err = f.service.Update(context.Background(), "viewer", created.ID, piiPayload())
		assert.Equal(t, pkgerrors.CodePermissionDenied, pkgerrors.CodeOf(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Update(context.Background(), "admin", "missing", piiPayload())
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})
}

func TestServiceDelete(t *testing.T) {
	t.Run("only admins delete", func(t *testing.T) {
		f := newServiceFixture(t)
		created, err := f.service.Create(context.Background(), "admin", piiPayload())
		require.NoError(t, err)

		err = f.service.Delete(context.Background(), "rm", created.ID)
		assert.Equal(t, pkgerrors.CodePermissionDenied, pkgerrors.CodeOf(err))

		err = f.service.Delete(context.Background(), "owner", created.ID)
		assert.Equal(t, pkgerrors.CodePermissionDenied, pkgerrors.CodeOf(err))

		require.NoError(t, f.service.Delete(context.Background(), "admin", created.ID))
		_, err = f.service.Get(context.Background(), "admin", created.ID)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newServiceFixture(t)
		err := f.service.Delete(context.Background(), "admin", "missing")
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})
}

func TestServiceGet(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.service.Create(context.Background(), "admin", piiPayload())
	require.NoError(t, err)

	got, err := f.service.Get(context.Background(), "viewer", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.service.Get(context.Background(), "viewer", "missing")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
