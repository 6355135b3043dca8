package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/shared"
	"github.com/desertthunder/linkport/internal/tasks"
)

// CallbackRouter completes a login from a redirect URL. [tasks.Importer] implements it.
type CallbackRouter interface {
	HandleCallback(ctx context.Context, callbackURL string) (bool, error)
}

// CallbackResult reports one completed redirect.
type CallbackResult struct {
	Path string
	Err  error
}

// CallbackHandler receives provider redirects on the local callback paths and
// hands the full URL to a [CallbackRouter].
type CallbackHandler struct {
	router  CallbackRouter
	results chan CallbackResult
	logger  *log.Logger
}

// NewCallbackHandler creates a handler forwarding redirects to router.
func NewCallbackHandler(router CallbackRouter, logger *log.Logger) *CallbackHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CallbackHandler{
		router:  router,
		results: make(chan CallbackResult, 4),
		logger:  logger,
	}
}

// Routes implements [Handler].
func (h *CallbackHandler) Routes() []string {
	return []string{"/" + tasks.SpotifyCallback, "/" + tasks.DeezerCallback}
}

// Results delivers completed callbacks. Results nobody reads are dropped once
// the buffer is full.
func (h *CallbackHandler) Results() <-chan CallbackResult { return h.results }

// ServeHTTP rebuilds the redirect URL and completes the login. The token
// exchange outlives a closed browser tab.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	callbackURL := scheme + "://" + r.Host + r.URL.RequestURI()

	handled, err := h.router.HandleCallback(context.WithoutCancel(r.Context()), callbackURL)
	if !handled && err == nil {
		http.NotFound(w, r)
		return
	}

	select {
	case h.results <- CallbackResult{Path: r.URL.Path, Err: err}:
	default:
		h.logger.Warn("callback result dropped", "path", r.URL.Path)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		h.logger.Error("login failed", "path", r.URL.Path, "error", err)
		status := http.StatusBadRequest
		var cbErr *shared.CallbackError
		if !errors.As(err, &cbErr) && !errors.Is(err, shared.ErrAuthFailed) {
			status = http.StatusInternalServerError
		}
		w.WriteHeader(status)
		fmt.Fprintf(w, resultPage, "#c0392b", "Authorization Failed", html.EscapeString(err.Error()))
		return
	}

	h.logger.Info("login completed", "path", r.URL.Path)
	fmt.Fprintf(w, resultPage, "#1DB954", "Authorization Successful", "You can close this window and return to the terminal.")
}

const resultPage = `<!DOCTYPE html>
<html>
<head>
    <title>linkport</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1 style="color: %s">%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`
