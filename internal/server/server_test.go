package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/linkport/internal/shared"
	"github.com/desertthunder/linkport/internal/tasks"
	tu "github.com/desertthunder/linkport/internal/testing"
)

type stubRouter struct {
	mu      sync.Mutex
	urls    []string
	handled bool
	err     error
}

func (s *stubRouter) HandleCallback(ctx context.Context, callbackURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, callbackURL)
	return s.handled, s.err
}

func (s *stubRouter) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router := &stubRouter{handled: true}
		h := NewCallbackHandler(router, tu.QuietLogger())
		srv := httptest.NewServer(NewMux(h, nil, tu.QuietLogger()))
		defer srv.Close()

		status, body := get(t, srv.URL+"/spotify-callback?code=abc&state=xyz")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		tu.AssertContains(t, body, "Authorization Successful")

		if urls := router.seen(); len(urls) != 1 || urls[0] != srv.URL+"/spotify-callback?code=abc&state=xyz" {
			t.Errorf("expected full redirect URL, got %v", urls)
		}

		select {
		case res := <-h.Results():
			if res.Err != nil || res.Path != "/spotify-callback" {
				t.Errorf("unexpected result %+v", res)
			}
		case <-time.After(time.Second):
			t.Fatal("expected a callback result")
		}
	})

	t.Run("Failure", func(t *testing.T) {
		router := &stubRouter{handled: true, err: &shared.CallbackError{Platform: "deezer", Reason: "user_denied"}}
		h := NewCallbackHandler(router, tu.QuietLogger())
		srv := httptest.NewServer(NewMux(h, nil, tu.QuietLogger()))
		defer srv.Close()

		status, body := get(t, srv.URL+"/deezer-callback?error_reason=user_denied")
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
		tu.AssertContains(t, body, "Authorization Failed")

		res := <-h.Results()
		var cbErr *shared.CallbackError
		if !errors.As(res.Err, &cbErr) {
			t.Errorf("expected callback error, got %v", res.Err)
		}
	})

	t.Run("Unexpected Failure", func(t *testing.T) {
		router := &stubRouter{handled: true, err: errors.New("disk full")}
		srv := httptest.NewServer(NewMux(NewCallbackHandler(router, tu.QuietLogger()), nil, tu.QuietLogger()))
		defer srv.Close()

		if status, _ := get(t, srv.URL+"/spotify-callback?code=1"); status != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", status)
		}
	})

	t.Run("Unhandled", func(t *testing.T) {
		router := &stubRouter{}
		h := NewCallbackHandler(router, tu.QuietLogger())
		srv := httptest.NewServer(NewMux(h, nil, tu.QuietLogger()))
		defer srv.Close()

		if status, _ := get(t, srv.URL+"/spotify-callback?code=1"); status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
		select {
		case res := <-h.Results():
			t.Errorf("expected no result, got %+v", res)
		default:
		}
	})

	t.Run("Routes", func(t *testing.T) {
		h := NewCallbackHandler(&stubRouter{}, nil)
		routes := h.Routes()
		if len(routes) != 2 || routes[0] != "/"+tasks.SpotifyCallback || routes[1] != "/"+tasks.DeezerCallback {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}

func TestMux(t *testing.T) {
	metrics := tasks.NewMetrics()
	metrics.ImportsTotal.WithLabelValues("spotify", "success").Inc()
	srv := httptest.NewServer(NewMux(nil, metrics.Registry, tu.QuietLogger()))
	defer srv.Close()

	t.Run("Metrics", func(t *testing.T) {
		status, body := get(t, srv.URL+"/metrics")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		tu.AssertContains(t, body, `linkport_imports_total{outcome="success",source="spotify"} 1`)
	})

	t.Run("Healthz", func(t *testing.T) {
		status, body := get(t, srv.URL+"/healthz")
		if status != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
			t.Errorf("unexpected health response %d %s", status, body)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/healthz", "text/plain", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("Callbacks Absent", func(t *testing.T) {
		if status, _ := get(t, srv.URL+"/spotify-callback"); status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(tu.QuietLogger()))
		router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestServer(t *testing.T) {
	metrics := tasks.NewMetrics()
	srv, err := New(Options{Addr: "127.0.0.1:0", Registry: metrics.Registry, Logger: tu.QuietLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var status int
	for range 50 {
		resp, err := http.Get("http://" + srv.Addr() + "/healthz")
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != http.StatusOK {
		t.Errorf("expected healthz to answer 200, got %d", status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	t.Run("Port In Use", func(t *testing.T) {
		busy, err := New(Options{Addr: "127.0.0.1:0", Logger: tu.QuietLogger()})
		if err != nil {
			t.Fatal(err)
		}
		defer busy.Shutdown(context.Background())
		busy.Start()

		if _, err := New(Options{Addr: busy.Addr(), Logger: tu.QuietLogger()}); err == nil {
			t.Error("expected error for a bound address")
		}
	})
}
