// Shared HTTP plumbing for the platform clients
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/linkport/internal/auth"
	"github.com/desertthunder/linkport/internal/shared"
)

// APIService issues rate-limited HTTP requests against one platform host.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAPIService creates a new API service instance for baseURL. A nil client gets a
// 30 second timeout; a nil limiter means no limit.
func NewAPIService(baseURL string, client *http.Client, limiter *rate.Limiter) *APIService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    limiter,
	}
}

// NewLimiter builds the per-client limiter from config values. Non-positive
// rates disable limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Request describes one call. Path is joined to the base URL unless it is
// already absolute, as paging cursors are.
type Request struct {
	Method string
	Path   string
	Params url.Values
	Header http.Header
	Body   []byte
}

// Do performs the request and returns the raw response. Transport failures are
// errors; HTTP error statuses are not.
func (a *APIService) Do(ctx context.Context, r Request) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL, err := a.resolve(r.Path, r.Params)
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// Get performs a GET request to path with params.
func (a *APIService) Get(ctx context.Context, path string, params url.Values, header http.Header) (*APIResponse, error) {
	return a.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params, Header: header})
}

func (a *APIService) resolve(path string, params url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = a.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// doAuthorized runs call with the session's token. An expired token is refreshed
// before the first attempt; otherwise a 401 triggers one refresh and one retry.
// A request never causes more than one refresh.
func doAuthorized(ctx context.Context, sess auth.Authenticator, call func(token string) (*APIResponse, error)) (*APIResponse, error) {
	token, expired, err := sess.Token()
	if err != nil {
		return nil, err
	}

	refreshed := false
	if expired {
		if token, err = refreshToken(ctx, sess); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := call(token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if !refreshed {
		if token, err = refreshToken(ctx, sess); err != nil {
			return nil, err
		}
		if resp, err = call(token); err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%w: %s rejected the refreshed token", shared.ErrAuthExpired, sess.Platform().Label())
}

func refreshToken(ctx context.Context, sess auth.Authenticator) (string, error) {
	if err := sess.Refresh(ctx); err != nil {
		return "", err
	}
	token, _, err := sess.Token()
	return token, err
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// unknown substitutes the placeholder used for missing names.
func unknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
