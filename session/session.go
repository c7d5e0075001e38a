package session

import (
	"time"

	"github.com/yukimura/storypost/platform"
)

// State is the persisted authentication state for one platform
// account: the cookie set plus an expiry policy. It contains no
// credentials, only the session artifacts a login produced.
type State struct {
	Platform      string            `json:"platform"`
	CredentialRef string            `json:"credential_ref"`
	Cookies       []platform.Cookie `json:"cookies"`
	SavedAt       time.Time         `json:"saved_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

// Expired reports whether the persisted state should not be reused.
func (s *State) Expired(now time.Time) bool {
	return s == nil || len(s.Cookies) == 0 || now.After(s.ExpiresAt)
}

// Session is an authenticated browser session. It is owned by the
// Manager; consumers borrow the Surface for one submission and must
// hand the session back through Release rather than closing it.
type Session struct {
	Platform      string
	CredentialRef string
	Surface       platform.Surface

	unlock func()
}
