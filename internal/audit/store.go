package audit

import "context"

// Sink receives audit events. It is append-only so tests and deployments can
// swap persistence (memory, kafka) without touching emitters.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
