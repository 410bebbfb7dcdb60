package roles

import "context"

// Store persists capability sets. Implementations return pkg/sentinel values
// for infrastructure facts; the service layer translates them.
type Store interface {
	// Find returns the capability set for an identity, or sentinel.ErrNotFound.
	Find(ctx context.Context, identity string) (CapabilitySet, error)

	// CreateIfAbsent performs the conditional bootstrap write. It reports
	// whether this call created the set; losing the race to another writer is
	// not an error (created=false, err=nil).
	CreateIfAbsent(ctx context.Context, identity string, caps CapabilitySet) (created bool, err error)

	// Save upserts a capability set. Reserved for explicit administrative
	// mutation; the bootstrap never goes through here.
	Save(ctx context.Context, identity string, caps CapabilitySet) error
}
