package observability

import "context"

// Checker is implemented by components that report their health in the
// readiness probe. Implementations must be safe for concurrent use and must
// respect the context deadline.
type Checker interface {
	// Name returns the component identifier (e.g. "redis", "postgres").
	Name() string
	// Check returns nil when the component is healthy.
	Check(ctx context.Context) error
}
