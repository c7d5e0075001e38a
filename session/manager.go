package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/yukimura/storypost/platform"
)

const defaultStateTTL = 720 * time.Hour

// CredentialSource resolves an opaque credential reference into login
// credentials. The default reads <REF>_USERNAME / <REF>_PASSWORD from
// the environment so secrets never touch configuration files.
type CredentialSource func(credentialRef string) (platform.Credentials, error)

func EnvCredentials(credentialRef string) (platform.Credentials, error) {
	user := os.Getenv(credentialRef + "_USERNAME")
	pass := os.Getenv(credentialRef + "_PASSWORD")
	if user == "" || pass == "" {
		return platform.Credentials{}, platform.Errorf(platform.KindAuth, "session.credentials",
			"%s_USERNAME / %s_PASSWORD not set", credentialRef, credentialRef)
	}
	return platform.Credentials{Username: user, Password: pass}, nil
}

// Manager establishes authenticated sessions, reusing persisted state
// when it is still valid so runs skip the login UI entirely. Pipelines
// targeting the same platform account are serialized: Acquire holds a
// per-account lock until Release.
type Manager struct {
	registry *platform.Registry
	store    Store
	creds    CredentialSource
	opts     platform.Options
	ttl      time.Duration
	logger   *slog.Logger

	locks sync.Map // "platform|credentialRef" -> *sync.Mutex
}

func NewManager(registry *platform.Registry, store Store, creds CredentialSource, opts platform.Options, logger *slog.Logger) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		creds:    creds,
		opts:     opts,
		ttl:      defaultStateTTL,
		logger:   logger,
	}
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Acquire yields an authenticated session for the platform, logging in
// only when no valid persisted state exists.
func (m *Manager) Acquire(ctx context.Context, platformName, credentialRef string) (*Session, error) {
	mu := m.lockFor(platformName + "|" + credentialRef)
	mu.Lock()

	sess, err := m.open(ctx, platformName, credentialRef)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	sess.unlock = mu.Unlock
	return sess, nil
}

func (m *Manager) open(ctx context.Context, platformName, credentialRef string) (*Session, error) {
	surf, err := m.registry.Open(platformName, m.opts)
	if err != nil {
		return nil, err
	}

	state, err := m.store.Load(platformName, credentialRef)
	if err != nil {
		m.logger.Warn("session state unreadable, forcing login", slog.String("error", err.Error()))
		state = nil
	}

	now := time.Now()
	if !state.Expired(now) {
		if err := surf.SetCookies(ctx, state.Cookies); err == nil {
			if ok, lerr := surf.LoggedIn(ctx); lerr == nil && ok {
				m.logger.Info("session reused",
					slog.String("platform", platformName),
					slog.String("credential_ref", credentialRef))
				return &Session{Platform: platformName, CredentialRef: credentialRef, Surface: surf}, nil
			}
		}
		m.logger.Info("persisted session rejected by platform, logging in",
			slog.String("platform", platformName))
	}

	creds, err := m.creds(credentialRef)
	if err != nil {
		surf.Close()
		return nil, err
	}
	if err := surf.Login(ctx, creds); err != nil {
		surf.Close()
		return nil, err
	}
	m.logger.Info("login performed", slog.String("platform", platformName))

	if err := m.persist(ctx, platformName, credentialRef, surf); err != nil {
		m.logger.Warn("persisting session state failed", slog.String("error", err.Error()))
	}
	return &Session{Platform: platformName, CredentialRef: credentialRef, Surface: surf}, nil
}

// Release flushes updated authentication state and closes the browser
// context. Sessions are long-lived server-side; nothing is invalidated.
func (m *Manager) Release(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	defer func() {
		if sess.unlock != nil {
			sess.unlock()
			sess.unlock = nil
		}
	}()
	err := m.persist(ctx, sess.Platform, sess.CredentialRef, sess.Surface)
	if cerr := sess.Surface.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Reacquire replaces a session whose persisted state went stale
// mid-run (repeated login redirects). The account lock stays held.
func (m *Manager) Reacquire(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil {
		return nil, fmt.Errorf("no session to reacquire")
	}
	unlock := sess.unlock
	sess.unlock = nil
	sess.Surface.Close()

	fresh, err := m.open(ctx, sess.Platform, sess.CredentialRef)
	if err != nil {
		if unlock != nil {
			unlock()
		}
		return nil, err
	}
	fresh.unlock = unlock
	return fresh, nil
}

func (m *Manager) persist(ctx context.Context, platformName, credentialRef string, surf platform.Surface) error {
	cookies, err := surf.Cookies(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	return m.store.Save(&State{
		Platform:      platformName,
		CredentialRef: credentialRef,
		Cookies:       cookies,
		SavedAt:       now,
		ExpiresAt:     now.Add(m.ttl),
	})
}
