package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

const qobuzAPIURL = "https://www.qobuz.com/api.json/0.2"

// QobuzSession authenticates with an email and password. The credentials are
// held in memory so a rejected token can be replaced by logging in again; they
// are never persisted.
type QobuzSession struct {
	*Session

	appID string
	base  string
	opts  Options

	credMu       sync.Mutex
	email        string
	passwordHash string
}

// NewQobuzSession creates a Qobuz session from config.
func NewQobuzSession(cfg shared.QobuzConfig, opts Options) (*QobuzSession, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("%w: qobuz app_id", shared.ErrMissingCredentials)
	}
	base := opts.BaseURL
	if base == "" {
		base = qobuzAPIURL
	}
	return &QobuzSession{
		Session: newSession(models.Qobuz, opts),
		appID:   cfg.AppID,
		base:    strings.TrimRight(base, "/"),
		opts:    opts,
	}, nil
}

// AppID is sent as X-App-Id on every Qobuz request.
func (s *QobuzSession) AppID() string { return s.appID }

type qobuzLoginResponse struct {
	UserAuthToken string `json:"user_auth_token"`
	User          struct {
		ID          json.Number `json:"id"`
		Login       string      `json:"login"`
		Email       string      `json:"email"`
		DisplayName string      `json:"display_name"`
		Avatar      string      `json:"avatar"`
		Credential  struct {
			Parameters struct {
				ShortLabel string `json:"short_label"`
			} `json:"parameters"`
		} `json:"credential"`
	} `json:"user"`
	Message string `json:"message"`
}

// Login signs in with email and password and connects the session.
func (s *QobuzSession) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument)
	}
	s.setState(Authenticating)

	hash := md5.Sum([]byte(password))
	passwordHash := hex.EncodeToString(hash[:])

	token, profile, err := s.login(ctx, email, passwordHash)
	if err != nil {
		s.fail()
		return err
	}

	s.credMu.Lock()
	s.email, s.passwordHash = email, passwordHash
	s.credMu.Unlock()

	return s.complete(ctx, &models.AuthState{AccessToken: token}, profile)
}

func (s *QobuzSession) login(ctx context.Context, email, passwordHash string) (string, *models.UserProfile, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("password", passwordHash)
	q.Set("app_id", s.appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/user/login?"+q.Encode(), nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-App-Id", s.appID)

	resp, err := s.opts.httpClient().Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: qobuz login: %v", shared.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read login response: %w", err)
	}

	var result qobuzLoginResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Message
		if msg == "" {
			msg = "status " + strconv.Itoa(resp.StatusCode)
		}
		return "", nil, fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, msg)
	}
	if decodeErr != nil {
		return "", nil, fmt.Errorf("%w: undecodable login response: %v", shared.ErrAuthFailed, decodeErr)
	}
	if result.UserAuthToken == "" {
		return "", nil, fmt.Errorf("%w: login response carried no token", shared.ErrAuthFailed)
	}

	return result.UserAuthToken, qobuzProfile(result, email), nil
}

// qobuzProfile fills gaps in the login payload: display name falls back to the
// login name, then to the email used to sign in.
func qobuzProfile(r qobuzLoginResponse, email string) *models.UserProfile {
	name := r.User.DisplayName
	if name == "" {
		name = r.User.Login
	}
	if name == "" {
		name = email
	}
	userEmail := r.User.Email
	if userEmail == "" {
		userEmail = email
	}
	return &models.UserProfile{
		ID:          r.User.ID.String(),
		DisplayName: name,
		Email:       userEmail,
		ImageURL:    r.User.Avatar,
		Tier:        r.User.Credential.Parameters.ShortLabel,
	}
}

// Refresh logs in again with the in-memory credentials and stores the new token.
func (s *QobuzSession) Refresh(ctx context.Context) error {
	return s.refreshOnce(ctx, func(ctx context.Context) error {
		s.credMu.Lock()
		email, hash := s.email, s.passwordHash
		s.credMu.Unlock()

		if email == "" || hash == "" {
			return fmt.Errorf("%w: qobuz credentials not available", shared.ErrAuthExpired)
		}

		token, profile, err := s.login(ctx, email, hash)
		if err != nil {
			return err
		}

		return s.store.Update(models.Qobuz, func(st *models.AuthState) error {
			st.AccessToken = token
			st.Profile = profile
			st.Connected = true
			return nil
		})
	})
}

// Disconnect also forgets the in-memory credentials.
func (s *QobuzSession) Disconnect() error {
	s.credMu.Lock()
	s.email, s.passwordHash = "", ""
	s.credMu.Unlock()
	return s.Session.Disconnect()
}
