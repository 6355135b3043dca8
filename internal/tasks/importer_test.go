package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/linkport/internal/auth"
	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/resolver"
	"github.com/desertthunder/linkport/internal/services"
	"github.com/desertthunder/linkport/internal/shared"
	tu "github.com/desertthunder/linkport/internal/testing"
)

var importedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type importFixture struct {
	mux      *tu.JSONMux
	creds    *tu.MemoryCredentialStore
	store    *tu.MemoryPlaylistStore
	status   *Status
	metrics  *Metrics
	deezer   *auth.DeezerSession
	importer *Importer
}

// newImportFixture wires real sessions and clients against one fake server.
// Spotify lives under /spotify, Deezer under /deezer and Odesli under /odesli.
func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	mux := tu.NewJSONMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := tu.QuietLogger()
	creds := tu.NewMemoryCredentialStore()
	for _, p := range []models.PlatformID{models.Spotify, models.Deezer} {
		creds.Set(&models.AuthState{
			Platform:    p,
			Connected:   true,
			AccessToken: "tok-" + string(p),
			Profile:     &models.UserProfile{ID: "1", DisplayName: "Listener"},
		})
	}

	aopts := auth.Options{Store: creds, Logger: logger}
	spotifySession, err := auth.NewSpotifySession(shared.SpotifyConfig{ClientID: "cid"}, 0, aopts)
	if err != nil {
		t.Fatalf("failed to create Spotify session: %v", err)
	}
	deezerSession, err := auth.NewDeezerSession(shared.DeezerConfig{AppID: "a", Secret: "s"}, aopts)
	if err != nil {
		t.Fatalf("failed to create Deezer session: %v", err)
	}

	f := &importFixture{
		mux:     mux,
		creds:   creds,
		store:   tu.NewMemoryPlaylistStore(),
		status:  &Status{},
		metrics: NewMetrics(),
		deezer:  deezerSession,
	}
	f.importer = NewImporter(Deps{
		Spotify:  services.NewSpotifyService(spotifySession, services.Options{BaseURL: server.URL + "/spotify", Logger: logger}),
		Deezer:   services.NewDeezerService(deezerSession, services.Options{BaseURL: server.URL + "/deezer", Logger: logger}),
		Links:    resolver.NewOdesliClient(shared.ResolverConfig{BaseURL: server.URL + "/odesli"}, logger),
		Store:    f.store,
		Notifier: f.status,
		Metrics:  f.metrics,
		Logger:   logger,
		Now:      func() time.Time { return importedAt },
	})
	return f
}

func spotifyTrackBody(id, name string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        name,
		"duration_ms": 200000,
		"uri":         "spotify:track:" + id,
		"artists":     []map[string]any{{"name": "Artist"}},
		"album":       map[string]any{"name": "Album", "images": []map[string]any{{"url": "http://img/" + id}}},
	}
}

func deezerTrackBody(id int, title string) map[string]any {
	return map[string]any{
		"id": id, "title": title, "duration": 180,
		"artist": map[string]any{"name": "Artist"},
		"album":  map[string]any{"title": "Album"},
	}
}

var deezerInvalidSession = map[string]any{
	"error": map[string]any{"type": "OAuthException", "message": "Invalid OAuth access token.", "code": 300},
}

func TestImportFromURL(t *testing.T) {
	ctx := context.Background()

	t.Run("Spotify Playlist Round Trip", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/playlists/p1", tu.Route{Body: map[string]any{
			"id": "p1", "name": "Road Trip", "images": []map[string]any{{"url": "http://img/p1"}},
		}})
		f.mux.Handle("GET /spotify/playlists/p1/tracks", tu.Route{Body: map[string]any{
			"items": []map[string]any{
				{"track": spotifyTrackBody("t1", "One")},
				{"track": spotifyTrackBody("t2", "Two")},
			},
		}})

		playlist, err := f.importer.ImportFromURL(ctx, "https://open.spotify.com/playlist/p1?si=abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Source != models.Spotify || playlist.Name != "Road Trip" || playlist.TrackCount != 2 {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if !strings.HasPrefix(playlist.ID, "spotify_p1_") {
			t.Errorf("unexpected id %q", playlist.ID)
		}

		stored, err := f.store.Get(playlist.ID)
		if err != nil {
			t.Fatalf("expected playlist in store, got %v", err)
		}
		if len(stored.Tracks) != 2 || stored.Tracks[1].Name != "Two" {
			t.Errorf("stored tracks differ: %+v", stored.Tracks)
		}
		if f.status.Loading() || f.status.Error() != "" {
			t.Errorf("expected idle status without error, got loading=%v error=%q", f.status.Loading(), f.status.Error())
		}
	})

	t.Run("Spotify Track Becomes Single Track Playlist", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/tracks/t9", tu.Route{Body: spotifyTrackBody("t9", "Single")})

		playlist, err := f.importer.ImportFromURL(ctx, "spotify:track:t9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "Single" || playlist.TrackCount != 1 || playlist.ImageURL != "http://img/t9" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
	})

	t.Run("Apple Music Resolves Through Spotify Link", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /odesli/links", tu.Route{Body: map[string]any{
			"entityUniqueId": "ITUNES_SONG::456",
			"entitiesByUniqueId": map[string]any{
				"ITUNES_SONG::456": map[string]any{"id": "456", "title": "Song", "artistName": "Artist"},
			},
			"linksByPlatform": map[string]any{
				"spotify": map[string]any{"url": "https://open.spotify.com/track/sp1"},
			},
		}})
		f.mux.Handle("GET /spotify/tracks/sp1", tu.Route{Body: spotifyTrackBody("sp1", "Song")})

		playlist, err := f.importer.ImportFromURL(ctx, "https://music.apple.com/us/album/x/123?i=456")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Source != models.Spotify || playlist.TrackCount != 1 {
			t.Errorf("expected a Spotify playlist, got %+v", playlist)
		}
		if f.mux.Hits("GET /spotify/search") != 0 {
			t.Error("expected no text search after the link succeeded")
		}
		if got := f.mux.Seen[0].URL.Query().Get("url"); got != "https://music.apple.com/us/album/x/123?i=456" {
			t.Errorf("expected Odesli to receive the pasted link, got %q", got)
		}
	})

	t.Run("YouTube Music Falls Back To Text Search", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /odesli/links", tu.Route{Body: map[string]any{
			"entityUniqueId": "YOUTUBE_VIDEO::v1",
			"entitiesByUniqueId": map[string]any{
				"YOUTUBE_VIDEO::v1": map[string]any{"id": "v1", "title": "Song (Official Video)", "artistName": "Artist", "thumbnailUrl": "http://img/yt"},
			},
		}})
		f.mux.Handle("GET /spotify/search", tu.Route{Body: map[string]any{
			"tracks": map[string]any{"items": []map[string]any{spotifyTrackBody("s1", "Song")}},
		}})

		playlist, err := f.importer.ImportFromURL(ctx, "https://music.youtube.com/watch?v=v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Source != models.SourceURL || playlist.ImageURL != "http://img/yt" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if playlist.Tracks[0].ID != "s1" {
			t.Errorf("expected best search hit, got %+v", playlist.Tracks)
		}
	})

	t.Run("Resolution Miss Is Not Found", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /odesli/links", tu.Route{Body: map[string]any{"entityUniqueId": "ITUNES_SONG::1"}})

		playlist, err := f.importer.ImportFromURL(ctx, "https://music.apple.com/us/album/x/1")
		if playlist != nil || !errors.Is(err, shared.ErrResolutionNotFound) {
			t.Fatalf("expected not found, got %v, %v", playlist, err)
		}
		if f.status.Error() != "Could not find Apple Music track on Spotify" {
			t.Errorf("unexpected status error %q", f.status.Error())
		}
	})

	t.Run("Resolution Outage Is Unreachable", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /odesli/links", tu.Route{Status: http.StatusBadGateway, Body: map[string]any{}})

		_, err := f.importer.ImportFromURL(ctx, "https://music.apple.com/us/album/x/1")
		if !errors.Is(err, shared.ErrResolutionUnreachable) {
			t.Fatalf("expected unreachable, got %v", err)
		}
		if errors.Is(err, shared.ErrResolutionNotFound) {
			t.Error("unreachable must not read as not found")
		}
	})

	t.Run("Malformed URL", func(t *testing.T) {
		f := newImportFixture(t)
		for _, raw := range []string{"", "   ", "not a link", "ftp://open.spotify.com/playlist/p1"} {
			playlist, err := f.importer.ImportFromURL(ctx, raw)
			if playlist != nil || !errors.Is(err, shared.ErrInvalidURL) {
				t.Errorf("ImportFromURL(%q) = %v, %v; want ErrInvalidURL", raw, playlist, err)
			}
			if f.status.Error() == "" {
				t.Errorf("expected status error for %q", raw)
			}
		}
		if len(f.mux.Seen) != 0 {
			t.Errorf("expected no requests, got %v", f.mux.Keys())
		}
	})

	t.Run("Deezer Metadata Falls Back To Generic Name", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /deezer/playlist/42", tu.Route{Status: http.StatusInternalServerError, Body: map[string]any{}})
		f.mux.Handle("GET /deezer/playlist/42/tracks", tu.Route{Body: map[string]any{
			"data": []map[string]any{deezerTrackBody(1, "One"), deezerTrackBody(2, "Two")},
		}})

		playlist, err := f.importer.ImportFromURL(ctx, "https://www.deezer.com/en/playlist/42")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "Deezer Playlist" || playlist.TrackCount != 2 {
			t.Errorf("unexpected playlist %+v", playlist)
		}
	})

	t.Run("Deezer Invalid Session Disconnects", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /deezer/playlist/42", tu.Route{Body: deezerInvalidSession})
		f.mux.Handle("GET /deezer/playlist/42/tracks", tu.Route{Body: deezerInvalidSession})

		playlist, err := f.importer.ImportFromURL(ctx, "https://www.deezer.com/en/playlist/42")
		if playlist != nil || !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected expired session, got %v, %v", playlist, err)
		}
		if f.deezer.State() != auth.Disconnected {
			t.Errorf("expected Deezer to be disconnected, got %v", f.deezer.State())
		}
		if st, _ := f.creds.Get(models.Deezer); st.AccessToken != "" {
			t.Error("expected stored Deezer token to be cleared")
		}
		if f.mux.Seen[1].URL.Query().Has("access_token") {
			t.Error("expected the tracks request to go out without the cleared token")
		}
		if list, _ := f.store.List(nil); len(list) != 0 {
			t.Errorf("expected nothing stored, got %d playlists", len(list))
		}
	})

	t.Run("Deezer Link Without Id", func(t *testing.T) {
		f := newImportFixture(t)
		if _, err := f.importer.ImportFromURL(ctx, "https://www.deezer.com/en/artist/1"); !errors.Is(err, shared.ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})

	t.Run("Link Without Scheme", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/playlists/p1", tu.Route{Body: map[string]any{"id": "p1", "name": "Pasted"}})
		f.mux.Handle("GET /spotify/playlists/p1/tracks", tu.Route{Body: map[string]any{
			"items": []map[string]any{{"track": spotifyTrackBody("t1", "One")}},
		}})

		playlist, err := f.importer.ImportFromURL(ctx, "  open.spotify.com/playlist/p1 ")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "Pasted" || playlist.SourceURL != "https://open.spotify.com/playlist/p1" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
	})

	t.Run("Deezer Short Link Resolves", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /odesli/links", tu.Route{Body: map[string]any{
			"entityUniqueId": "DEEZER_SONG::7",
			"entitiesByUniqueId": map[string]any{
				"DEEZER_SONG::7": map[string]any{"id": "7", "title": "Song", "artistName": "Artist"},
			},
			"linksByPlatform": map[string]any{
				"spotify": map[string]any{"url": "https://open.spotify.com/track/sp7"},
			},
		}})
		f.mux.Handle("GET /spotify/tracks/sp7", tu.Route{Body: spotifyTrackBody("sp7", "Song")})

		playlist, err := f.importer.ImportFromURL(ctx, "deezer.page.link/AbCd")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Source != models.Spotify || playlist.TrackCount != 1 {
			t.Errorf("expected a Spotify playlist, got %+v", playlist)
		}
		if got := f.mux.Seen[0].URL.Query().Get("url"); got != "https://deezer.page.link/AbCd" {
			t.Errorf("expected Odesli to receive the short link, got %q", got)
		}
		if f.mux.Hits("GET /deezer/playlist/AbCd") != 0 {
			t.Error("expected no direct Deezer request")
		}
	})

	t.Run("Missing Client", func(t *testing.T) {
		f := newImportFixture(t)
		if _, err := f.importer.ImportFromURL(ctx, "https://play.qobuz.com/playlist/9"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		f := newImportFixture(t)
		f.store.AddErr = errors.New("disk full")
		f.mux.Handle("GET /spotify/tracks/t1", tu.Route{Body: spotifyTrackBody("t1", "One")})

		if _, err := f.importer.ImportFromURL(ctx, "spotify:track:t1"); err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Errorf("expected store error, got %v", err)
		}
	})

	t.Run("No Resolver", func(t *testing.T) {
		imp := NewImporter(Deps{Store: tu.NewMemoryPlaylistStore(), Logger: tu.QuietLogger()})
		if _, err := imp.ImportFromURL(ctx, "https://music.apple.com/us/album/x/1"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Progress", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/tracks/t1", tu.Route{Body: spotifyTrackBody("t1", "One")})
		progress := make(chan ProgressUpdate, 10)
		f.importer.SetProgress(progress)

		if _, err := f.importer.ImportFromURL(ctx, "spotify:track:t1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if len(phases) < 2 || phases[0] != Detect || phases[len(phases)-1] != Persist {
			t.Errorf("unexpected phases %v", phases)
		}
	})
}

func TestImportMetrics(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	f.mux.Handle("GET /spotify/tracks/t1", tu.Route{Body: spotifyTrackBody("t1", "One")})

	f.importer.ImportFromURL(ctx, "spotify:track:t1")
	f.importer.ImportFromURL(ctx, "not a link")

	if got := testutil.ToFloat64(f.metrics.ImportsTotal.WithLabelValues("spotify", "success")); got != 1 {
		t.Errorf("expected 1 successful import, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.ImportsTotal.WithLabelValues("unknown", "invalid_url")); got != 1 {
		t.Errorf("expected 1 invalid import, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.TracksImported.WithLabelValues("spotify")); got != 1 {
		t.Errorf("expected 1 imported track, got %v", got)
	}
	if n := testutil.CollectAndCount(f.metrics.ResolutionDuration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestSearchAndImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Blank Query", func(t *testing.T) {
		f := newImportFixture(t)
		got := f.importer.SearchAndImport(ctx, "  ")
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
		if len(f.mux.Seen) != 0 {
			t.Error("expected no search request")
		}
	})

	t.Run("Results", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/search", tu.Route{Body: map[string]any{
			"tracks": map[string]any{"items": []map[string]any{spotifyTrackBody("a", "A"), spotifyTrackBody("b", "B")}},
		}})

		got := f.importer.SearchAndImport(ctx, "some song")
		if len(got) != 2 {
			t.Fatalf("expected 2 results, got %d", len(got))
		}
		if limit := f.mux.Seen[0].URL.Query().Get("limit"); limit != "20" {
			t.Errorf("expected limit 20, got %q", limit)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/search", tu.Route{Status: http.StatusInternalServerError, Body: map[string]any{}})

		got := f.importer.SearchAndImport(ctx, "some song")
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("No Spotify Client", func(t *testing.T) {
		rec := &recordingNotifier{}
		imp := NewImporter(Deps{Logger: tu.QuietLogger(), Notifier: rec})
		if got := imp.SearchAndImport(ctx, "q"); got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
		if last := rec.errs[len(rec.errs)-1]; !strings.Contains(last, "service unavailable") {
			t.Errorf("expected unavailable error, got %q", last)
		}
	})

	t.Run("Notifier Around Failure", func(t *testing.T) {
		f := newImportFixture(t)
		rec := &recordingNotifier{errs: []string{"stale"}}
		f.importer.notifier = rec

		if got := f.importer.SearchAndImport(ctx, "some query"); len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
		if len(rec.loading) != 2 || !rec.loading[0] || rec.loading[1] {
			t.Errorf("expected loading raised then cleared, got %v", rec.loading)
		}
		if len(rec.errs) != 3 || rec.errs[1] != "" || rec.errs[2] == "" {
			t.Errorf("expected error cleared then set, got %q", rec.errs)
		}
	})

	t.Run("Notifier Around Success", func(t *testing.T) {
		f := newImportFixture(t)
		f.mux.Handle("GET /spotify/search", tu.Route{Body: map[string]any{
			"tracks": map[string]any{"items": []map[string]any{spotifyTrackBody("a", "A")}},
		}})
		f.status.SetError("previous failure")

		if got := f.importer.SearchAndImport(ctx, "some song"); len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
		if f.status.Loading() || f.status.Error() != "" {
			t.Errorf("expected idle status without error, got loading=%v error=%q", f.status.Loading(), f.status.Error())
		}
	})
}

type recordingNotifier struct {
	loading []bool
	errs    []string
}

func (r *recordingNotifier) SetLoading(loading bool) { r.loading = append(r.loading, loading) }
func (r *recordingNotifier) SetError(message string) { r.errs = append(r.errs, message) }

type recordingCallback struct {
	urls []string
	err  error
}

func (r *recordingCallback) HandleCallback(ctx context.Context, callbackURL string) error {
	r.urls = append(r.urls, callbackURL)
	return r.err
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()
	spotify := &recordingCallback{}
	deezer := &recordingCallback{err: shared.ErrAuthFailed}
	imp := NewImporter(Deps{
		Logger:    tu.QuietLogger(),
		Callbacks: map[string]CallbackHandler{SpotifyCallback: spotify, DeezerCallback: deezer},
	})

	tests := []struct {
		url     string
		handled bool
		wantErr error
	}{
		{"linkport://spotify-callback?code=abc&state=s", true, nil},
		{"http://127.0.0.1:8888/spotify-callback/?code=abc", true, nil},
		{"http://127.0.0.1:8888/deezer-callback?code=x", true, shared.ErrAuthFailed},
		{"http://127.0.0.1:8888/other?code=x", false, nil},
	}
	for _, tc := range tests {
		handled, err := imp.HandleCallback(ctx, tc.url)
		if handled != tc.handled || !errors.Is(err, tc.wantErr) {
			t.Errorf("HandleCallback(%q) = %v, %v; want %v, %v", tc.url, handled, err, tc.handled, tc.wantErr)
		}
	}
	if len(spotify.urls) != 2 || len(deezer.urls) != 1 {
		t.Errorf("unexpected routing spotify=%v deezer=%v", spotify.urls, deezer.urls)
	}

	t.Run("Unregistered Route", func(t *testing.T) {
		bare := NewImporter(Deps{Logger: tu.QuietLogger()})
		if handled, err := bare.HandleCallback(ctx, "http://localhost/spotify-callback?code=1"); handled || err != nil {
			t.Errorf("expected unhandled, got %v, %v", handled, err)
		}
	})
}

func TestStatus(t *testing.T) {
	s := &Status{}
	s.SetLoading(true)
	s.SetLoading(true)
	s.SetLoading(false)
	if !s.Loading() {
		t.Error("expected nested load to keep the flag raised")
	}
	s.SetLoading(false)
	s.SetLoading(false)
	if s.Loading() {
		t.Error("expected flag cleared")
	}

	s.SetError("boom")
	if s.Error() != "boom" {
		t.Errorf("unexpected error %q", s.Error())
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := map[string]error{
		"success":     nil,
		"invalid_url": shared.ErrInvalidURL,
		"auth":        shared.ErrAuthExpired,
		"unreachable": shared.ErrResolutionUnreachable,
		"not_found":   resolver.NotFound(models.AppleMusic),
		"error":       errors.New("other"),
	}
	for want, err := range tests {
		if got := outcomeLabel(err); got != want {
			t.Errorf("outcomeLabel(%v) = %q, want %q", err, got, want)
		}
	}
}
