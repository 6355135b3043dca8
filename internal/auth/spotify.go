package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

const spotifyAccountsURL = "https://accounts.spotify.com"

// DefaultSpotifyScopes covers playlist reads and playback control.
var DefaultSpotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-read-playback-state",
	"user-modify-playback-state",
}

// SpotifySession authenticates with the PKCE authorization-code flow. No client
// secret is involved.
type SpotifySession struct {
	*Session

	config         *oauth2.Config
	verifierLength int
	opts           Options

	pendingMu sync.Mutex
	pending   *PKCE
}

// NewSpotifySession creates a Spotify session from config. verifierLength of zero
// selects [DefaultVerifierLength].
func NewSpotifySession(cfg shared.SpotifyConfig, verifierLength int, opts Options) (*SpotifySession, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if verifierLength == 0 {
		verifierLength = DefaultVerifierLength
	}
	if verifierLength < MinVerifierLength || verifierLength > MaxVerifierLength {
		return nil, fmt.Errorf("%w: verifier_length %d", shared.ErrInvalidConfig, verifierLength)
	}

	base := opts.BaseURL
	if base == "" {
		base = spotifyAccountsURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultSpotifyScopes
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   strings.TrimRight(base, "/") + "/authorize",
			TokenURL:  strings.TrimRight(base, "/") + "/api/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &SpotifySession{
		Session:        newSession(models.Spotify, opts),
		config:         config,
		verifierLength: verifierLength,
		opts:           opts,
	}, nil
}

// BeginLogin starts a login attempt and returns the URL the user must open.
// A second call replaces the verifier of the first.
func (s *SpotifySession) BeginLogin() (string, error) {
	pkce, err := NewPKCE(s.verifierLength)
	if err != nil {
		return "", err
	}

	s.pendingMu.Lock()
	s.pending = pkce
	s.pendingMu.Unlock()
	s.setState(Authenticating)

	return s.config.AuthCodeURL(pkce.State, oauth2.S256ChallengeOption(pkce.Verifier)), nil
}

// takePending returns and clears the verifier of the current attempt.
func (s *SpotifySession) takePending() *PKCE {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// HandleCallback completes the login with the redirect the provider sent back.
// A provider error is returned verbatim as a [shared.CallbackError].
func (s *SpotifySession) HandleCallback(ctx context.Context, callbackURL string) error {
	pending := s.takePending()

	u, err := url.Parse(callbackURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: malformed callback: %v", shared.ErrAuthFailed, err)
	}
	q := u.Query()

	if reason := q.Get("error"); reason != "" {
		s.fail()
		return &shared.CallbackError{Platform: string(models.Spotify), Reason: reason}
	}

	if pending == nil {
		return fmt.Errorf("%w: no login in progress", shared.ErrAuthFailed)
	}
	code := q.Get("code")
	if code == "" {
		s.fail()
		return fmt.Errorf("%w: callback carried no code", shared.ErrAuthFailed)
	}
	if state := q.Get("state"); state != "" && state != pending.State {
		s.fail()
		return fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.httpClient())
	token, err := s.config.Exchange(ctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
	}

	return s.complete(ctx, &models.AuthState{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil)
}

// Refresh trades the stored refresh token for a new access token. A response
// without a refresh token keeps the old one. Failure leaves the stored state untouched.
func (s *SpotifySession) Refresh(ctx context.Context) error {
	return s.refreshOnce(ctx, func(ctx context.Context) error {
		st, err := s.store.Get(models.Spotify)
		if err != nil {
			return err
		}
		if st.RefreshToken == "" {
			return fmt.Errorf("%w: %w", shared.ErrAuthExpired, shared.ErrNoRefreshToken)
		}

		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.httpClient())
		stale := &oauth2.Token{RefreshToken: st.RefreshToken, Expiry: time.Unix(1, 0)}
		token, err := s.config.TokenSource(ctx, stale).Token()
		if err != nil {
			s.logger.Warn("token refresh failed", "error", err)
			return fmt.Errorf("%w: %v", shared.ErrAuthExpired, err)
		}

		err = s.store.Update(models.Spotify, func(st *models.AuthState) error {
			st.AccessToken = token.AccessToken
			if token.RefreshToken != "" {
				st.RefreshToken = token.RefreshToken
			}
			st.ExpiresAt = token.Expiry
			return nil
		})
		if err != nil {
			return err
		}
		s.logger.Debug("token refreshed", "expires_at", token.Expiry)
		return nil
	})
}
