// package auth owns the login handshakes and token lifecycle of each platform.
//
// A [Session] carries the state machine shared by all platforms; [SpotifySession],
// [DeezerSession] and [QobuzSession] add the platform handshake on top of it.
// Token material lives only in the [models.CredentialStore].
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Authenticating
	Connected
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ProfileFetcher loads the account profile with the session's current token.
type ProfileFetcher func(ctx context.Context) (*models.UserProfile, error)

// Authenticator is the view of a session an API client needs.
type Authenticator interface {
	Platform() models.PlatformID
	// Token returns the stored access token and whether its known expiry has passed.
	Token() (token string, expired bool, err error)
	// Refresh obtains a new token. It wraps [shared.ErrAuthExpired] on failure.
	Refresh(ctx context.Context) error
	Disconnect() error
	OnDisconnect(fn func())
}

// Options carries the collaborators shared by every session.
type Options struct {
	Store      models.CredentialStore
	Logger     *log.Logger
	HTTPClient *http.Client
	// BaseURL overrides the platform's accounts or API host.
	BaseURL string
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Session is the platform-independent part of an authentication session.
type Session struct {
	platform models.PlatformID
	store    models.CredentialStore
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	hooks   []func()
	profile ProfileFetcher

	refreshGroup singleflight.Group
}

func newSession(platform models.PlatformID, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Session{
		platform: platform,
		store:    opts.Store,
		logger:   shared.WithLogger(logger, "platform", string(platform)),
		state:    Disconnected,
	}

	if st, err := s.store.Get(platform); err != nil {
		s.logger.Warn("could not read stored auth state", "error", err)
	} else if st.Connected && st.Usable() {
		s.state = Connected
	}
	return s
}

// Platform returns the platform this session authenticates against.
func (s *Session) Platform() models.PlatformID { return s.platform }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// AuthState returns the persisted state of the platform.
func (s *Session) AuthState() (*models.AuthState, error) {
	return s.store.Get(s.platform)
}

// Token implements [Authenticator].
func (s *Session) Token() (string, bool, error) {
	st, err := s.store.Get(s.platform)
	if err != nil {
		return "", false, err
	}
	if st.AccessToken == "" {
		return "", false, fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, s.platform.Label())
	}
	return st.AccessToken, st.Expired(time.Now()), nil
}

// SetProfileFetcher installs the call used to load the profile after a token is obtained.
func (s *Session) SetProfileFetcher(fn ProfileFetcher) {
	s.mu.Lock()
	s.profile = fn
	s.mu.Unlock()
}

// OnDisconnect registers fn to run whenever the session is disconnected.
func (s *Session) OnDisconnect(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Disconnect clears stored credentials and runs disconnect hooks. Calling it
// on a disconnected session is harmless.
func (s *Session) Disconnect() error {
	if err := s.store.Clear(s.platform); err != nil {
		return fmt.Errorf("failed to clear %s credentials: %w", s.platform, err)
	}

	s.mu.Lock()
	s.state = Disconnected
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	s.logger.Debug("disconnected")
	return nil
}

// FetchUserProfile loads the profile and stores it alongside the token. On
// failure it logs and returns nil without touching the connection state.
func (s *Session) FetchUserProfile(ctx context.Context) *models.UserProfile {
	s.mu.Lock()
	fetch := s.profile
	s.mu.Unlock()

	if fetch == nil {
		s.logger.Warn("no profile fetcher configured")
		return nil
	}

	profile, err := fetch(ctx)
	if err != nil || profile == nil {
		s.logger.Error("failed to fetch user profile", "error", err)
		return nil
	}

	err = s.store.Update(s.platform, func(st *models.AuthState) error {
		if st.AccessToken == "" {
			return shared.ErrNotAuthenticated
		}
		st.Profile = profile
		return nil
	})
	if err != nil {
		s.logger.Warn("profile fetched but not stored", "error", err)
	}
	return profile
}

// complete finishes a handshake: the token is stored first so the profile
// fetch can use it, then the session is marked connected once a profile exists.
func (s *Session) complete(ctx context.Context, state *models.AuthState, profile *models.UserProfile) error {
	state.Platform = s.platform
	state.Connected = false
	state.Profile = nil
	if err := s.store.Set(state); err != nil {
		s.fail()
		return fmt.Errorf("failed to store %s token: %w", s.platform, err)
	}

	if profile == nil {
		profile = s.FetchUserProfile(ctx)
	}
	if profile == nil {
		s.fail()
		return fmt.Errorf("%w: could not load %s profile", shared.ErrAuthFailed, s.platform.Label())
	}

	err := s.store.Update(s.platform, func(st *models.AuthState) error {
		st.Profile = profile
		st.Connected = st.AccessToken != ""
		return nil
	})
	if err != nil {
		s.fail()
		return fmt.Errorf("failed to store %s profile: %w", s.platform, err)
	}

	s.setState(Connected)
	s.logger.Info("connected", "user", profile.DisplayName)
	return nil
}

// fail drops the session back to disconnected after a failed handshake.
func (s *Session) fail() {
	if err := s.Disconnect(); err != nil {
		s.logger.Error("failed to reset session", "error", err)
	}
}

// refreshOnce collapses concurrent refreshes of this platform into one call.
func (s *Session) refreshOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err, joined := s.refreshGroup.Do(string(s.platform), func() (any, error) {
		return nil, fn(ctx)
	})
	if joined {
		s.logger.Debug("joined in-flight refresh")
	}
	if err != nil && !errors.Is(err, shared.ErrAuthExpired) {
		err = fmt.Errorf("%w: %v", shared.ErrAuthExpired, err)
	}
	return err
}
