package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func samplePlaylist(sourceID string, at time.Time) *models.ImportedPlaylist {
	tracks := []models.StreamingTrack{
		{ID: "t1", Name: "First", Artist: "A", Album: "X", DurationMs: 1000, PlayableURI: "spotify:track:t1", IsPlayable: true, Platform: models.Spotify},
		{ID: "t2", Name: "Second", Artist: "B", Album: "Y", DurationMs: 2000, PlayableURI: "spotify:track:t2", IsPlayable: true, Platform: models.Spotify},
		{ID: "t3", Name: "Third", Artist: "C", Album: "Z", PlayableURI: "spotify:track:t3", Platform: models.Spotify},
	}
	return models.NewImportedPlaylist(models.Spotify, sourceID, "Mix "+sourceID, "https://open.spotify.com/playlist/"+sourceID, "", tracks, at)
}

func TestCredentialStore(t *testing.T) {
	t.Run("Get missing platform is disconnected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		state, err := store.Get(models.Deezer)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if state.Connected || state.AccessToken != "" || state.Platform != models.Deezer {
			t.Errorf("expected disconnected deezer state, got %+v", state)
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		expires := time.Now().Add(time.Hour).Truncate(time.Second)
		want := &models.AuthState{
			Platform:     models.Spotify,
			Connected:    true,
			Profile:      &models.UserProfile{ID: "u1", DisplayName: "Ada", Tier: "premium"},
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    expires,
		}

		if err := store.Set(want); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := store.Get(models.Spotify)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if !got.Connected || got.AccessToken != "access" || got.RefreshToken != "refresh" {
			t.Errorf("unexpected state %+v", got)
		}
		if !got.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt)
		}
		if got.Profile == nil || got.Profile.DisplayName != "Ada" || got.Profile.Tier != "premium" {
			t.Errorf("unexpected profile %+v", got.Profile)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("expected updated_at to be set")
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		_ = store.Set(&models.AuthState{Platform: models.Qobuz, AccessToken: "one", Connected: true, Profile: &models.UserProfile{ID: "q"}})
		_ = store.Set(&models.AuthState{Platform: models.Qobuz, AccessToken: "two"})

		got, _ := store.Get(models.Qobuz)
		if got.AccessToken != "two" || got.Connected || got.Profile != nil {
			t.Errorf("expected latest write to win, got %+v", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		_ = store.Set(&models.AuthState{Platform: models.Deezer, AccessToken: "tok", Connected: true})

		if err := store.Clear(models.Deezer); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if err := store.Clear(models.Deezer); err != nil {
			t.Fatalf("second Clear failed: %v", err)
		}

		got, _ := store.Get(models.Deezer)
		if got.Connected || got.AccessToken != "" {
			t.Errorf("expected cleared state, got %+v", got)
		}
	})

	t.Run("Set requires platform", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewCredentialStore(db).Set(&models.AuthState{}); err == nil {
			t.Error("expected error for missing platform")
		}
	})

	t.Run("Update is atomic per platform", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		const workers = 20

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Update(models.Spotify, func(s *models.AuthState) error {
					n := 0
					fmt.Sscanf(s.AccessToken, "n%d", &n)
					s.AccessToken = fmt.Sprintf("n%d", n+1)
					return nil
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := store.Get(models.Spotify)
		if got.AccessToken != fmt.Sprintf("n%d", workers) {
			t.Errorf("expected n%d after serialized updates, got %s", workers, got.AccessToken)
		}
	})

	t.Run("Update error aborts write", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewCredentialStore(db)
		_ = store.Set(&models.AuthState{Platform: models.Spotify, AccessToken: "keep"})

		boom := errors.New("boom")
		err := store.Update(models.Spotify, func(s *models.AuthState) error {
			s.AccessToken = "lost"
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		got, _ := store.Get(models.Spotify)
		if got.AccessToken != "keep" {
			t.Errorf("expected unchanged token, got %s", got.AccessToken)
		}
	})
}

func TestPlaylistStore(t *testing.T) {
	t.Run("Add and Get keeps track order", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewPlaylistStore(db)
		p := samplePlaylist("abc", time.Now())

		if err := store.Add(p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		got, err := store.Get(p.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if got.Name != p.Name || got.Source != models.Spotify || got.TrackCount != 3 {
			t.Errorf("unexpected playlist %+v", got)
		}
		if len(got.Tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(got.Tracks))
		}
		for i, want := range []string{"t1", "t2", "t3"} {
			if got.Tracks[i].ID != want {
				t.Errorf("track %d: expected %s, got %s", i, want, got.Tracks[i].ID)
			}
		}
		if got.Tracks[2].IsPlayable {
			t.Error("expected third track to stay non-playable")
		}
	})

	t.Run("Add rejects invalid playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		p := samplePlaylist("abc", time.Now())
		p.Name = ""
		if err := NewPlaylistStore(db).Add(p); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Add duplicate id fails", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewPlaylistStore(db)
		p := samplePlaylist("abc", time.Now())
		if err := store.Add(p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := store.Add(p); err == nil {
			t.Error("expected duplicate id to fail")
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewPlaylistStore(db).Get("nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Update replaces tracks", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewPlaylistStore(db)
		p := samplePlaylist("abc", time.Now())
		if err := store.Add(p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		p.Name = "Renamed"
		p.Tracks = p.Tracks[:1]
		if err := store.Update(p); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := store.Get(p.ID)
		if got.Name != "Renamed" || got.TrackCount != 1 || len(got.Tracks) != 1 {
			t.Errorf("unexpected playlist after update %+v", got)
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		p := samplePlaylist("abc", time.Now())
		if err := NewPlaylistStore(db).Update(p); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewPlaylistStore(db)
		p := samplePlaylist("abc", time.Now())
		_ = store.Add(p)

		if err := store.Remove(p.ID); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := store.Get(p.ID); err == nil {
			t.Error("expected error getting removed playlist")
		}
		if err := store.Remove(p.ID); err == nil {
			t.Error("expected error removing twice")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		store := NewPlaylistStore(db)
		now := time.Now()
		first := samplePlaylist("one", now)
		second := samplePlaylist("two", now.Add(time.Second))
		third := models.NewImportedPlaylist(models.Deezer, "3", "Deezer Mix", "", "", nil, now)
		for _, p := range []*models.ImportedPlaylist{first, second, third} {
			if err := store.Add(p); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		all, err := store.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 || all[0].ID != first.ID || all[2].ID != third.ID {
			t.Errorf("expected insertion order, got %d playlists", len(all))
		}

		spotify, _ := store.List(map[string]any{"source": models.Spotify})
		if len(spotify) != 2 {
			t.Errorf("expected 2 spotify playlists, got %d", len(spotify))
		}

		named, _ := store.List(map[string]any{"name": "Deezer"})
		if len(named) != 1 || named[0].ID != third.ID {
			t.Errorf("expected name filter to match deezer playlist")
		}

		_ = store.Remove(first.ID)
		remaining, _ := store.List(map[string]any{"source": "spotify"})
		if len(remaining) != 1 {
			t.Errorf("expected removed playlist excluded, got %d", len(remaining))
		}
	})

	t.Run("NextSequence", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		a, err := NextSequence(db, "imported_playlists")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		b, _ := NextSequence(db, "imported_playlists")
		if b != a+1 {
			t.Errorf("expected consecutive sequences, got %d then %d", a, b)
		}
	})
}
