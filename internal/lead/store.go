package lead

import "context"

// Query shapes a read or watch against the store.
type Query struct {
	// Stage, when set, restricts results to one pipeline stage.
	Stage *Stage

	// OrderByCreatedAt asks the store to order results newest-first. Stores
	// may refuse this shape (sentinel.ErrOrderedUnsupported); callers fall
	// back to an unordered query and sort client-side.
	OrderByCreatedAt bool

	// Limit bounds the result set. Zero means no limit.
	Limit int
}

// Subscription is a live query. Snapshots delivers the full result set after
// every relevant change, starting with the current state; this is a
// full-snapshot replace, never an incremental patch. Errors carries
// query-capability failures detected after the subscription opened.
//
// Both channels are closed when the subscription ends. Close is idempotent
// and safe from any goroutine.
type Subscription interface {
	Snapshots() <-chan []Lead
	Errors() <-chan error
	Close()
}

// Store is the document-store port for leads. Implementations return
// pkg/sentinel values for infrastructure facts. The store owns id assignment
// and provides last-write-wins semantics; no record-level locking exists.
type Store interface {
	// Insert persists a new lead and assigns its server-side id and nothing
	// else; all timestamps are set by the caller.
	Insert(ctx context.Context, l *Lead) error

	// Merge updates the mutable fields of an existing lead: name, company,
	// stage, notes, email, phone, consent, updated_at, expires_at. The id,
	// created_at, and created_by of the stored record are never touched.
	// Returns sentinel.ErrNotFound for an unknown id.
	Merge(ctx context.Context, id string, l Lead) error

	// Delete removes a lead. Returns sentinel.ErrNotFound for an unknown id.
	Delete(ctx context.Context, id string) error

	// FindByID returns a lead or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id string) (Lead, error)

	// Watch opens a subscription for the query. An immediate
	// sentinel.ErrOrderedUnsupported means the ordered query shape cannot be
	// served; capability failures discovered later arrive on the
	// subscription's error channel.
	Watch(ctx context.Context, q Query) (Subscription, error)
}
