package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yukimura/storypost/platform"
)

type stubSurface struct {
	logins     int
	setCookies int
	loggedIn   bool
	closed     bool
	loginErr   error
}

func (s *stubSurface) Login(ctx context.Context, creds platform.Credentials) error {
	s.logins++
	if s.loginErr != nil {
		return s.loginErr
	}
	s.loggedIn = true
	return nil
}

func (s *stubSurface) LoggedIn(ctx context.Context) (bool, error) { return s.loggedIn, nil }

func (s *stubSurface) Cookies(ctx context.Context) ([]platform.Cookie, error) {
	if !s.loggedIn {
		return nil, nil
	}
	return []platform.Cookie{{Name: "sid", Value: "secret", Domain: "example.com"}}, nil
}

func (s *stubSurface) SetCookies(ctx context.Context, cookies []platform.Cookie) error {
	s.setCookies++
	s.loggedIn = len(cookies) > 0
	return nil
}

func (s *stubSurface) OpenEditor(ctx context.Context) error             { return nil }
func (s *stubSurface) SetTitle(ctx context.Context, title string) error { return nil }
func (s *stubSurface) AppendHeading(ctx context.Context, level int, text string) error {
	return nil
}
func (s *stubSurface) AppendParagraph(ctx context.Context, text string) error { return nil }
func (s *stubSurface) AppendMediaStub(ctx context.Context, ref, caption string) error {
	return nil
}
func (s *stubSurface) SaveDraft(ctx context.Context) error { return nil }
func (s *stubSurface) ListDrafts(ctx context.Context) ([]platform.DraftEntry, error) {
	return nil, nil
}
func (s *stubSurface) DumpDebug(ctx context.Context, tag string) {}
func (s *stubSurface) Close() error {
	s.closed = true
	return nil
}

type testEnv struct {
	manager   *Manager
	surfaces  []*stubSurface
	credCalls int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	registry := platform.NewRegistry()
	registry.Register("note", func(opts platform.Options) (platform.Surface, error) {
		surf := &stubSurface{}
		env.surfaces = append(env.surfaces, surf)
		return surf, nil
	})

	creds := func(credentialRef string) (platform.Credentials, error) {
		env.credCalls++
		return platform.Credentials{Username: "u", Password: "p"}, nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.manager = NewManager(registry, NewFileStore(t.TempDir()), creds, platform.Options{}, logger)
	return env
}

func TestAcquireLogsInOnceThenReuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.manager.Acquire(ctx, "note", "NOTE")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if env.surfaces[0].logins != 1 {
		t.Fatalf("first acquire should log in once, got %d", env.surfaces[0].logins)
	}
	if err := env.manager.Release(ctx, sess); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !env.surfaces[0].closed {
		t.Error("release must close the surface")
	}

	sess2, err := env.manager.Acquire(ctx, "note", "NOTE")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	defer env.manager.Release(ctx, sess2)

	second := env.surfaces[1]
	if second.logins != 0 {
		t.Errorf("second acquire should reuse persisted state, got %d logins", second.logins)
	}
	if second.setCookies != 1 {
		t.Errorf("second acquire should restore cookies exactly once, got %d", second.setCookies)
	}
	if env.credCalls != 1 {
		t.Errorf("credentials should be resolved only for the actual login, got %d calls", env.credCalls)
	}
}

func TestAcquireIgnoresExpiredState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Persist state that has already expired.
	err := env.manager.store.Save(&State{
		Platform:      "note",
		CredentialRef: "NOTE",
		Cookies:       []platform.Cookie{{Name: "sid", Value: "stale"}},
		SavedAt:       time.Now().Add(-1000 * time.Hour),
		ExpiresAt:     time.Now().Add(-1 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := env.manager.Acquire(ctx, "note", "NOTE")
	if err != nil {
		t.Fatal(err)
	}
	defer env.manager.Release(ctx, sess)

	if env.surfaces[0].logins != 1 {
		t.Errorf("expired state must force a fresh login, got %d logins", env.surfaces[0].logins)
	}
}

func TestAcquireCredentialFailureClosesSurface(t *testing.T) {
	registry := platform.NewRegistry()
	var surf *stubSurface
	registry.Register("note", func(opts platform.Options) (platform.Surface, error) {
		surf = &stubSurface{}
		return surf, nil
	})
	creds := func(string) (platform.Credentials, error) {
		return platform.Credentials{}, platform.Errorf(platform.KindAuth, "test", "not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(registry, NewFileStore(t.TempDir()), creds, platform.Options{}, logger)

	if _, err := m.Acquire(context.Background(), "note", "NOTE"); err == nil {
		t.Fatal("expected credential resolution failure")
	} else if platform.KindOf(err) != platform.KindAuth {
		t.Errorf("expected auth error, got %v", err)
	}
	if !surf.closed {
		t.Error("the surface must be closed when acquisition fails")
	}
}

func TestAcquireSerializesSameAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.manager.Acquire(ctx, "note", "NOTE")
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan *Session)
	go func() {
		s, err := env.manager.Acquire(ctx, "note", "NOTE")
		if err != nil {
			t.Error(err)
		}
		acquired <- s
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire for the same account must block until release")
	case <-time.After(50 * time.Millisecond):
	}

	if err := env.manager.Release(ctx, sess); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-acquired:
		env.manager.Release(ctx, s)
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestReacquireKeepsLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.manager.Acquire(ctx, "note", "NOTE")
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := env.manager.Reacquire(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if !env.surfaces[0].closed {
		t.Error("reacquire must close the stale surface")
	}
	if fresh.Surface == sess.Surface {
		t.Error("reacquire must produce a fresh surface")
	}

	// The account lock must still be held by the fresh session.
	acquired := make(chan struct{})
	go func() {
		s, err := env.manager.Acquire(ctx, "note", "NOTE")
		if err == nil {
			env.manager.Release(ctx, s)
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("lock was dropped during reacquire")
	case <-time.After(50 * time.Millisecond):
	}

	if err := env.manager.Release(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock never released")
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("NOTE_USERNAME", "someone@example.com")
	t.Setenv("NOTE_PASSWORD", "hunter2")

	creds, err := EnvCredentials("NOTE")
	if err != nil {
		t.Fatal(err)
	}
	if creds.Username != "someone@example.com" || creds.Password != "hunter2" {
		t.Errorf("unexpected credentials: %+v", creds)
	}

	t.Setenv("NOTE_PASSWORD", "")
	if _, err := EnvCredentials("NOTE"); err == nil {
		t.Fatal("expected an error for missing password")
	} else if platform.KindOf(err) != platform.KindAuth {
		t.Errorf("expected auth error, got %v", err)
	}
}
