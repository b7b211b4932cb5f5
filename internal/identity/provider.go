package identity

import "sync"

// MutableProvider is a thread-safe Provider whose credentials can be
// swapped at runtime. The daemon's host API uses it to register and clear
// user identifiers; embedded hosts may implement Provider directly
// instead.
type MutableProvider struct {
	mu          sync.RWMutex
	userID      string
	trackingID  string
	accessToken string
}

// NewMutableProvider returns a provider with no credentials, i.e. an
// anonymous user.
func NewMutableProvider() *MutableProvider {
	return &MutableProvider{}
}

// Set replaces all three credential fields in one step so a reader never
// observes a half-applied identity.
func (p *MutableProvider) Set(userID, trackingID, accessToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
	p.trackingID = trackingID
	p.accessToken = accessToken
}

// Clear removes all credentials, returning the provider to anonymous.
func (p *MutableProvider) Clear() {
	p.Set("", "", "")
}

func (p *MutableProvider) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

func (p *MutableProvider) IDTrackingIdentifier() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trackingID
}

func (p *MutableProvider) AccessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accessToken
}

var _ Provider = (*MutableProvider)(nil)
