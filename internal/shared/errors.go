package shared

import (
	"fmt"
	"strings"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrNoMigrations       = fmt.Errorf("no migrations to rollback")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthExpired      = fmt.Errorf("authentication expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrPlaybackFailed     = fmt.Errorf("playback command failed")

	// Resolution errors
	ErrInvalidURL            = fmt.Errorf("invalid URL")
	ErrResolutionUnreachable = fmt.Errorf("link resolution service unreachable")
	ErrResolutionNotFound    = fmt.Errorf("no match found")
	ErrNoMatch               = fmt.Errorf("no matching tracks")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// APIError is a failed platform call. Status is the HTTP status; Code is the
// platform's own error code when the body embeds one (Deezer).
type APIError struct {
	Platform string
	Status   int
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Platform)
	b.WriteString(" API error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return ErrAPIRequest }

// CallbackError carries the error string a provider returned on its redirect.
type CallbackError struct {
	Platform string
	Reason   string
}

func (e *CallbackError) Error() string { return e.Reason }

func (e *CallbackError) Unwrap() error { return ErrAuthFailed }

// ResolutionError is a miss reported to the user with a platform-specific message.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string { return e.Message }

func (e *ResolutionError) Unwrap() error { return ErrResolutionNotFound }
