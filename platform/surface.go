package platform

import (
	"context"
	"time"
)

// Credentials are resolved from the environment by the session manager
// and never persisted anywhere.
type Credentials struct {
	Username string
	Password string
}

// Cookie is the persisted slice of browser authentication state. It is
// deliberately narrower than the CDP cookie type so the session store
// stays independent of the automation library.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

// DraftEntry is one row of the platform's drafts listing, used by the
// verification step to locate a draft no external id is known for yet.
type DraftEntry struct {
	ExternalID string
	Title      string
	UpdatedAt  time.Time
}

// Surface is one authenticated browser context driving a platform's
// content-entry UI. Every call blocks for a bounded wait and returns a
// classified error, so callers above it stay free of browser concerns.
//
// Composition calls only ever reach a ready-to-submit state; SaveDraft
// is the single place the draft-save control is triggered.
type Surface interface {
	Login(ctx context.Context, creds Credentials) error
	LoggedIn(ctx context.Context) (bool, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error

	OpenEditor(ctx context.Context) error
	SetTitle(ctx context.Context, title string) error
	AppendHeading(ctx context.Context, level int, text string) error
	AppendParagraph(ctx context.Context, text string) error
	AppendMediaStub(ctx context.Context, ref, caption string) error

	SaveDraft(ctx context.Context) error
	ListDrafts(ctx context.Context) ([]DraftEntry, error)

	// DumpDebug writes the current page URL, HTML and a screenshot
	// under the state dir for post-mortems. Best effort.
	DumpDebug(ctx context.Context, tag string)

	Close() error
}
