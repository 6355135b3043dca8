// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// MemoryCredentialStore is an in-memory [models.CredentialStore].
type MemoryCredentialStore struct {
	mu     sync.Mutex
	states map[models.PlatformID]models.AuthState
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{states: make(map[models.PlatformID]models.AuthState)}
}

func (m *MemoryCredentialStore) Get(p models.PlatformID) (*models.AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(p), nil
}

func (m *MemoryCredentialStore) get(p models.PlatformID) *models.AuthState {
	st, ok := m.states[p]
	if !ok {
		return models.Disconnected(p)
	}
	if st.Profile != nil {
		profile := *st.Profile
		st.Profile = &profile
	}
	return &st
}

func (m *MemoryCredentialStore) Set(state *models.AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Platform] = *state
	return nil
}

func (m *MemoryCredentialStore) Clear(p models.PlatformID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, p)
	return nil
}

func (m *MemoryCredentialStore) Update(p models.PlatformID, fn func(*models.AuthState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.get(p)
	if err := fn(st); err != nil {
		return err
	}
	st.Platform = p
	m.states[p] = *st
	return nil
}

// MemoryPlaylistStore is an in-memory [models.PlaylistStore].
type MemoryPlaylistStore struct {
	mu        sync.Mutex
	playlists map[string]*models.ImportedPlaylist
	order     []string
	AddErr    error
}

func NewMemoryPlaylistStore() *MemoryPlaylistStore {
	return &MemoryPlaylistStore{playlists: make(map[string]*models.ImportedPlaylist)}
}

func (m *MemoryPlaylistStore) Add(p *models.ImportedPlaylist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	if _, ok := m.playlists[p.ID]; ok {
		return fmt.Errorf("duplicate playlist %s", p.ID)
	}
	m.playlists[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryPlaylistStore) Update(p *models.ImportedPlaylist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[p.ID]; !ok {
		return shared.ErrPlaylistNotFound
	}
	m.playlists[p.ID] = p
	return nil
}

func (m *MemoryPlaylistStore) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return shared.ErrPlaylistNotFound
	}
	delete(m.playlists, id)
	return nil
}

func (m *MemoryPlaylistStore) Get(id string) (*models.ImportedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return p, nil
}

func (m *MemoryPlaylistStore) List(criteria map[string]any) ([]*models.ImportedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	source := fmt.Sprint(criteria["source"])
	out := []*models.ImportedPlaylist{}
	for _, id := range m.order {
		p, ok := m.playlists[id]
		if !ok {
			continue
		}
		if criteria["source"] != nil && string(p.Source) != source {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Route is a canned response for [JSONMux].
type Route struct {
	Status int
	Body   any
}

// JSONMux serves canned JSON keyed by "METHOD /path" and counts hits per key.
// Unknown routes answer 404.
type JSONMux struct {
	mu     sync.Mutex
	routes map[string][]Route
	hits   map[string]int
	Seen   []*http.Request
}

func NewJSONMux() *JSONMux {
	return &JSONMux{routes: make(map[string][]Route), hits: make(map[string]int)}
}

// Handle queues responses for key; the last one repeats once the queue is drained.
func (m *JSONMux) Handle(key string, responses ...Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[key] = append(m.routes[key], responses...)
}

// Hits returns how many requests matched key.
func (m *JSONMux) Hits(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[key]
}

// Keys returns every key that received a request, sorted.
func (m *JSONMux) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.hits))
	for k := range m.hits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *JSONMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	m.mu.Lock()
	m.hits[key]++
	m.Seen = append(m.Seen, r)
	queue := m.routes[key]
	var route Route
	found := len(queue) > 0
	if found {
		route = queue[0]
		if len(queue) > 1 {
			m.routes[key] = queue[1:]
		}
	}
	m.mu.Unlock()

	if !found {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no route " + key})
		return
	}
	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	WriteJSON(w, status, route.Body)
}

// WriteJSON writes v as a JSON response. Strings are written raw.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	switch body := v.(type) {
	case nil:
	case string:
		io.WriteString(w, body)
	default:
		_ = json.NewEncoder(w).Encode(body)
	}
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *log.Logger {
	return log.New(io.Discard)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// AssertContains fails when s lacks any of parts.
func AssertContains(t *testing.T, s string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(s, p) {
			t.Errorf("expected output to contain %q, got:\n%s", p, s)
		}
	}
}
