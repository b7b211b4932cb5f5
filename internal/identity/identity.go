// Package identity resolves the current user's identifier set from the host
// application's credential provider and derives the deterministic cache key
// that partitions persisted campaign state per user.
package identity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// IdentifierType distinguishes the kinds of user identifiers the mixer
// understands. The numeric values mirror the wire contract.
type IdentifierType int

const (
	TypeInvalid IdentifierType = iota
	TypeUserID
	TypeIDTrackingIdentifier
)

// Identifier is one element of the current user's identity set. Equality of
// identity sets is order-insensitive; the access token is never part of it.
type Identifier struct {
	Type       IdentifierType `json:"type"`
	Identifier string         `json:"id"`
}

// AnonymousKey is the cache key used when no identifier is registered.
const AnonymousKey = "anonymous"

// LastUserKey is the distinguished slot mirroring the most recently active
// identity's persisted data. It seeds state across anonymous/identified
// transitions without cross-contaminating two different registered users.
const LastUserKey = "last-user"

// Provider exposes the host application's current credentials. The engine
// polls it on every logged event; implementations must be safe for
// concurrent use.
type Provider interface {
	UserID() string
	IDTrackingIdentifier() string
	AccessToken() string
}

// Credentials is a validated snapshot of the provider's values. An access
// token without a user ID is rejected at this boundary so the invalid
// combination can never reach matching or persistence logic.
type Credentials struct {
	UserID               string
	IDTrackingIdentifier string
	AccessToken          string
}

// NewCredentials validates and normalizes a credential combination. Blank
// strings are treated as absent.
func NewCredentials(userID, trackingID, accessToken string) (Credentials, error) {
	userID = strings.TrimSpace(userID)
	trackingID = strings.TrimSpace(trackingID)
	if accessToken != "" && userID == "" {
		return Credentials{}, fmt.Errorf("identity: access token requires a user ID")
	}
	return Credentials{
		UserID:               userID,
		IDTrackingIdentifier: trackingID,
		AccessToken:          accessToken,
	}, nil
}

// Identifiers returns the identity set for these credentials in a stable
// order (user ID before tracking identifier). Absent values are omitted; an
// empty result means the anonymous user.
func (c Credentials) Identifiers() []Identifier {
	var ids []Identifier
	if c.UserID != "" {
		ids = append(ids, Identifier{Type: TypeUserID, Identifier: c.UserID})
	}
	if c.IDTrackingIdentifier != "" {
		ids = append(ids, Identifier{Type: TypeIDTrackingIdentifier, Identifier: c.IDTrackingIdentifier})
	}
	return ids
}

// Equal reports whether two identity sets denote the same user. The
// comparison is order-insensitive and ignores access tokens by construction
// (tokens are never part of the set).
func Equal(a, b []Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	remaining := make([]Identifier, len(b))
	copy(remaining, b)
outer:
	for _, id := range a {
		for i, other := range remaining {
			if id == other {
				remaining[i] = remaining[len(remaining)-1]
				remaining = remaining[:len(remaining)-1]
				continue outer
			}
		}
		return false
	}
	return true
}

// IsAnonymous reports whether the identity set denotes the anonymous user.
func IsAnonymous(ids []Identifier) bool {
	return len(ids) == 0
}

// CacheKey derives the persisted-store key for an identity set. The key is
// order-insensitive: the set is sorted by (type, value) before hashing with
// murmur3, so any permutation of the same identifiers addresses the same
// container. The empty set maps to AnonymousKey.
func CacheKey(ids []Identifier) string {
	if len(ids) == 0 {
		return AnonymousKey
	}

	sorted := make([]Identifier, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].Identifier < sorted[j].Identifier
	})

	hasher := murmur3.New128()
	for _, id := range sorted {
		// The separator prevents ambiguous concatenations such as
		// ("ab", "c") vs ("a", "bc").
		fmt.Fprintf(hasher, "%d\x1f%s\x1e", id.Type, id.Identifier)
	}
	h1, h2 := hasher.Sum128()
	return fmt.Sprintf("%016x%016x", h1, h2)
}
