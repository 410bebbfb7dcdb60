package roles

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpipe/internal/audit"
	pkgerrors "leadpipe/pkg/errors"
)

func newTestService(store Store) (*Service, *audit.InMemoryStore) {
	auditStore := audit.NewInMemoryStore()
	return NewService(
		store,
		audit.NewPublisher(auditStore),
		nil,
		slog.New(slog.DiscardHandler),
	), auditStore
}

func TestResolve_BootstrapsDefaultOnFirstContact(t *testing.T) {
	store := NewInMemoryStore()
	svc, auditStore := newTestService(store)
	ctx := context.Background()

	caps, err := svc.Resolve(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, CapabilitySet{Viewer: true, RecordManager: true}, caps)

	// The default must have been persisted, not just returned.
	persisted, err := store.Find(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSet(), persisted)

	events, err := auditStore.ListByActor(ctx, "caller-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCapabilitiesBootstrapped, events[0].Action)
}

func TestResolve_ReturnsPersistedSetWithoutRewriting(t *testing.T) {
	store := NewInMemoryStore()
	svc, auditStore := newTestService(store)
	ctx := context.Background()

	admin := CapabilitySet{Viewer: true, Admin: true}
	require.NoError(t, store.Save(ctx, "caller-2", admin))

	caps, err := svc.Resolve(ctx, "caller-2")
	require.NoError(t, err)
	assert.Equal(t, admin, caps)

	events, err := auditStore.ListByActor(ctx, "caller-2")
	require.NoError(t, err)
	assert.Empty(t, events, "no bootstrap event for an existing set")
}

// TestResolve_ConcurrentBootstrapIsIdempotent verifies that N concurrent
// first resolutions produce exactly one persisted capability set.
func TestResolve_ConcurrentBootstrapIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	svc, auditStore := newTestService(store)
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	results := make([]CapabilitySet, goroutines)
	errs := make([]error, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(ctx, "caller-3")
		}()
	}
	wg.Wait()

	for i := range goroutines {
		require.NoError(t, errs[i])
		assert.Equal(t, DefaultSet(), results[i])
	}

	events, err := auditStore.ListByActor(ctx, "caller-3")
	require.NoError(t, err)
	assert.Len(t, events, 1, "exactly one bootstrap should win")
}

func TestResolve_RejectsEmptyIdentity(t *testing.T) {
	svc, _ := newTestService(NewInMemoryStore())

	_, err := svc.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestGrant_RequiresAdmin(t *testing.T) {
	store := NewInMemoryStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	// Bootstrapped caller gets viewer+record-manager, not admin.
	_, err := svc.Resolve(ctx, "plain-caller")
	require.NoError(t, err)

	err = svc.Grant(ctx, "plain-caller", "someone-else", CapabilitySet{Admin: true})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePermissionDenied, pkgerrors.CodeOf(err))
}

func TestGrant_AdminUpdatesSetAndAudits(t *testing.T) {
	store := NewInMemoryStore()
	svc, auditStore := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "root", CapabilitySet{Admin: true}))

	granted := CapabilitySet{Viewer: true, RecordManager: true, LeadOwner: true}
	require.NoError(t, svc.Grant(ctx, "root", "promoted", granted))

	caps, err := svc.Resolve(ctx, "promoted")
	require.NoError(t, err)
	assert.Equal(t, granted, caps)

	events, err := auditStore.ListByActor(ctx, "root")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCapabilitiesGranted, events[0].Action)
	assert.Equal(t, "promoted", events[0].Detail)
}
