package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

const (
	deezerConnectURL = "https://connect.deezer.com"
	deezerPerms      = "basic_access,email,offline_access,manage_library"
)

// DeezerSession authenticates with Deezer's authorization-code flow. Deezer
// tokens never expire on their own; they stay valid until an API call reports
// an invalid session.
type DeezerSession struct {
	*Session

	cfg  shared.DeezerConfig
	base string
	opts Options
}

// NewDeezerSession creates a Deezer session from config.
func NewDeezerSession(cfg shared.DeezerConfig, opts Options) (*DeezerSession, error) {
	if cfg.AppID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("%w: deezer app_id and secret", shared.ErrMissingCredentials)
	}
	if cfg.Perms == "" {
		cfg.Perms = deezerPerms
	}
	base := opts.BaseURL
	if base == "" {
		base = deezerConnectURL
	}
	return &DeezerSession{
		Session: newSession(models.Deezer, opts),
		cfg:     cfg,
		base:    strings.TrimRight(base, "/"),
		opts:    opts,
	}, nil
}

// BeginLogin returns the authorize URL and marks the session as authenticating.
func (s *DeezerSession) BeginLogin() string {
	q := url.Values{}
	q.Set("app_id", s.cfg.AppID)
	q.Set("redirect_uri", s.cfg.RedirectURI)
	q.Set("perms", s.cfg.Perms)

	s.setState(Authenticating)
	return s.base + "/oauth/auth.php?" + q.Encode()
}

// HandleCallback completes the login. Deezer reports refusals in error_reason.
func (s *DeezerSession) HandleCallback(ctx context.Context, callbackURL string) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: malformed callback: %v", shared.ErrAuthFailed, err)
	}
	q := u.Query()

	if reason := q.Get("error_reason"); reason != "" {
		s.fail()
		return &shared.CallbackError{Platform: string(models.Deezer), Reason: reason}
	}

	code := q.Get("code")
	if code == "" {
		s.fail()
		return fmt.Errorf("%w: callback carried no code", shared.ErrAuthFailed)
	}

	token, err := s.exchange(ctx, code)
	if err != nil {
		s.fail()
		return err
	}

	return s.complete(ctx, &models.AuthState{AccessToken: token}, nil)
}

// exchange trades code for a token. The endpoint only accepts GET.
func (s *DeezerSession) exchange(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("app_id", s.cfg.AppID)
	q.Set("secret", s.cfg.Secret)
	q.Set("code", code)
	q.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/oauth/access_token.php?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.opts.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token exchange status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.AccessToken == "" {
		// Deezer answers a bad code with plain text such as "wrong code".
		return "", fmt.Errorf("%w: %s", shared.ErrAuthFailed, strings.TrimSpace(string(body)))
	}
	return result.AccessToken, nil
}

// Refresh always fails: a rejected Deezer token can only be replaced by logging in again.
func (s *DeezerSession) Refresh(ctx context.Context) error {
	return fmt.Errorf("%w: deezer session must be re-authorized", shared.ErrAuthExpired)
}
