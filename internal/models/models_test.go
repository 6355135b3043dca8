package models

import (
	"strings"
	"testing"
	"time"
)

func TestImportedPlaylist(t *testing.T) {
	t.Run("ids differ across import times", func(t *testing.T) {
		tracks := []StreamingTrack{{ID: "t1", Name: "One"}}
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		a := NewImportedPlaylist(Spotify, "abc", "Mix", "https://open.spotify.com/playlist/abc", "", tracks, at)
		b := NewImportedPlaylist(Spotify, "abc", "Mix", "https://open.spotify.com/playlist/abc", "", tracks, at.Add(time.Millisecond))

		if a.ID == b.ID {
			t.Fatalf("expected distinct ids, both were %s", a.ID)
		}
		if !strings.HasPrefix(a.ID, "spotify_abc_") {
			t.Errorf("expected id to embed source and source id, got %s", a.ID)
		}
		if a.TrackCount != 1 {
			t.Errorf("expected track count 1, got %d", a.TrackCount)
		}
	})

	t.Run("nil tracks become empty", func(t *testing.T) {
		p := NewImportedPlaylist(Deezer, "1", "Empty", "", "", nil, time.Now())
		if p.Tracks == nil {
			t.Error("expected non-nil tracks")
		}
		if err := p.Validate(); err != nil {
			t.Errorf("expected valid playlist, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(p *ImportedPlaylist)
			wantErr bool
		}{
			{"valid", func(p *ImportedPlaylist) {}, false},
			{"missing id", func(p *ImportedPlaylist) { p.ID = "" }, true},
			{"missing name", func(p *ImportedPlaylist) { p.Name = "" }, true},
			{"missing source", func(p *ImportedPlaylist) { p.Source = "" }, true},
			{"count mismatch", func(p *ImportedPlaylist) { p.TrackCount = 5 }, true},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				p := NewImportedPlaylist(Qobuz, "9", "Jazz", "", "", []StreamingTrack{{ID: "x"}}, time.Now())
				tc.mutate(p)
				if err := p.Validate(); (err != nil) != tc.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
				}
			})
		}
	})
}

func TestAuthState(t *testing.T) {
	now := time.Now()

	t.Run("Usable requires token and profile", func(t *testing.T) {
		if (&AuthState{AccessToken: "tok"}).Usable() {
			t.Error("token without profile should not be usable")
		}
		if (&AuthState{Profile: &UserProfile{ID: "u"}}).Usable() {
			t.Error("profile without token should not be usable")
		}
		if !(&AuthState{AccessToken: "tok", Profile: &UserProfile{ID: "u"}}).Usable() {
			t.Error("token and profile should be usable")
		}
		var nilState *AuthState
		if nilState.Usable() {
			t.Error("nil state should not be usable")
		}
	})

	t.Run("Expired", func(t *testing.T) {
		if (&AuthState{}).Expired(now) {
			t.Error("zero expiry should never expire")
		}
		if !(&AuthState{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
			t.Error("past expiry should be expired")
		}
		if (&AuthState{ExpiresAt: now.Add(time.Hour)}).Expired(now) {
			t.Error("future expiry should not be expired")
		}
	})
}

func TestPlatformID(t *testing.T) {
	t.Run("Streamable", func(t *testing.T) {
		for _, p := range []PlatformID{Spotify, Deezer, Qobuz} {
			if !p.Streamable() {
				t.Errorf("%s should be streamable", p)
			}
		}
		for _, p := range []PlatformID{YouTubeMusic, AppleMusic, Unknown} {
			if p.Streamable() {
				t.Errorf("%s should not be streamable", p)
			}
		}
	})

	t.Run("ParsePlatform", func(t *testing.T) {
		if p, err := ParsePlatform("deezer"); err != nil || p != Deezer {
			t.Errorf("expected deezer, got %s (%v)", p, err)
		}
		if _, err := ParsePlatform("napster"); err == nil {
			t.Error("expected error for unknown platform")
		}
	})
}
