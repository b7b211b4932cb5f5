package identity

import (
	"log/slog"
	"sync"
)

// Change describes an identity transition observed by the resolver.
type Change struct {
	Previous []Identifier
	Current  []Identifier

	// BecameIdentified is true for the anonymous -> identified transition,
	// the only case where last-user data may seed the new identity's state.
	BecameIdentified bool
}

// Resolver tracks the current identity set and detects login/logout/switch
// transitions by polling the host-supplied Provider.
type Resolver struct {
	logger   *slog.Logger
	provider Provider

	mu      sync.Mutex
	current []Identifier
}

// NewResolver creates a resolver seeded with the provider's current
// credentials. Invalid credential combinations degrade to anonymous rather
// than failing construction.
func NewResolver(logger *slog.Logger, provider Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		panic("identity: provider cannot be nil")
	}

	r := &Resolver{logger: logger, provider: provider}
	r.current = r.resolve()
	return r
}

// Current returns the identity set as of the last CheckUserChanges call.
func (r *Resolver) Current() []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Identifier, len(r.current))
	copy(out, r.current)
	return out
}

// CurrentKey returns the cache key for the current identity set.
func (r *Resolver) CurrentKey() string {
	return CacheKey(r.Current())
}

// CheckUserChanges re-resolves the provider's credentials and reports
// whether the user changed since the last check. The second return value is
// only meaningful when the first is true.
func (r *Resolver) CheckUserChanges() (bool, Change) {
	next := r.resolve()

	r.mu.Lock()
	defer r.mu.Unlock()

	if Equal(r.current, next) {
		return false, Change{}
	}

	change := Change{
		Previous:         r.current,
		Current:          next,
		BecameIdentified: IsAnonymous(r.current) && !IsAnonymous(next),
	}
	r.current = next

	r.logger.Info("user identity changed",
		slog.Int("previous_identifiers", len(change.Previous)),
		slog.Int("current_identifiers", len(change.Current)),
		slog.Bool("became_identified", change.BecameIdentified),
	)
	return true, change
}

func (r *Resolver) resolve() []Identifier {
	creds, err := NewCredentials(r.provider.UserID(), r.provider.IDTrackingIdentifier(), r.provider.AccessToken())
	if err != nil {
		// Fail open to anonymous: a token without a user ID must never
		// address another user's container.
		r.logger.Warn("invalid credential combination, treating user as anonymous",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return creds.Identifiers()
}
