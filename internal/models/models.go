// package models defines the data model shared by the auth, service, resolver and import layers
package models

import (
	"errors"
	"fmt"
	"time"
)

// PlatformID identifies a streaming platform.
type PlatformID string

const (
	Spotify      PlatformID = "spotify"
	Deezer       PlatformID = "deezer"
	Qobuz        PlatformID = "qobuz"
	YouTubeMusic PlatformID = "youtube_music"
	AppleMusic   PlatformID = "apple_music"
	Unknown      PlatformID = "unknown"

	// SourceURL marks playlists assembled from a text search on a pasted link
	// rather than from a platform playlist.
	SourceURL PlatformID = "url"
)

// Platforms lists every detectable platform in detection order.
var Platforms = []PlatformID{Spotify, Deezer, Qobuz, YouTubeMusic, AppleMusic, Unknown}

// Label returns the user-facing platform name.
func (p PlatformID) Label() string {
	switch p {
	case Spotify:
		return "Spotify"
	case Deezer:
		return "Deezer"
	case Qobuz:
		return "Qobuz"
	case YouTubeMusic:
		return "YouTube Music"
	case AppleMusic:
		return "Apple Music"
	case SourceURL:
		return "Link"
	default:
		return "Unknown"
	}
}

// Streamable reports whether tracks can be fetched directly from the platform.
func (p PlatformID) Streamable() bool {
	return p == Spotify || p == Deezer || p == Qobuz
}

// ParsePlatform maps a name (as typed on the command line) to a [PlatformID].
func ParsePlatform(name string) (PlatformID, error) {
	switch name {
	case "spotify", "spot":
		return Spotify, nil
	case "deezer":
		return Deezer, nil
	case "qobuz":
		return Qobuz, nil
	case "youtube_music", "ytmusic", "youtube":
		return YouTubeMusic, nil
	case "apple_music", "apple":
		return AppleMusic, nil
	}
	return Unknown, fmt.Errorf("unknown platform %q", name)
}

// UserProfile is the platform-neutral projection of an account.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

// AuthState is the persisted authentication state of one platform.
//
// RefreshToken and ExpiresAt are only populated for Spotify; Deezer and Qobuz
// tokens are treated as non-expiring until the server rejects them.
type AuthState struct {
	Platform     PlatformID   `json:"platform"`
	Connected    bool         `json:"connected"`
	Profile      *UserProfile `json:"profile,omitempty"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
	UpdatedAt    time.Time    `json:"updated_at,omitzero"`
}

// Disconnected returns the reset state for a platform.
func Disconnected(p PlatformID) *AuthState {
	return &AuthState{Platform: p}
}

// Usable reports whether the state carries both a token and a profile.
func (a *AuthState) Usable() bool {
	return a != nil && a.AccessToken != "" && a.Profile != nil
}

// Expired reports whether a known expiry has passed at now.
func (a *AuthState) Expired(now time.Time) bool {
	if a == nil || a.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.ExpiresAt)
}

// StreamingTrack is a platform-neutral track.
type StreamingTrack struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album"`
	DurationMs  int        `json:"duration_ms"`
	ImageURL    string     `json:"image_url,omitempty"`
	PlayableURI string     `json:"playable_uri"`
	PreviewURL  string     `json:"preview_url,omitempty"`
	IsPlayable  bool       `json:"is_playable"`
	Platform    PlatformID `json:"platform"`
}

// PlaylistSummary describes a playlist without its tracks.
type PlaylistSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	TrackCount  int        `json:"track_count"`
	Owner       string     `json:"owner,omitempty"`
	Platform    PlatformID `json:"platform"`
}

// ImportedPlaylist is a playlist snapshot taken from a URL.
type ImportedPlaylist struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Source     PlatformID       `json:"source"`
	SourceURL  string           `json:"source_url"`
	ImageURL   string           `json:"image_url,omitempty"`
	Tracks     []StreamingTrack `json:"tracks"`
	TrackCount int              `json:"track_count"`
	ImportedAt time.Time        `json:"imported_at"`
}

// NewImportedPlaylist assembles a playlist whose id combines the source platform,
// the source id and the import time, so repeated imports never collide.
func NewImportedPlaylist(source PlatformID, sourceID, name, sourceURL, imageURL string, tracks []StreamingTrack, at time.Time) *ImportedPlaylist {
	if tracks == nil {
		tracks = []StreamingTrack{}
	}
	return &ImportedPlaylist{
		ID:         PlaylistID(source, sourceID, at),
		Name:       name,
		Source:     source,
		SourceURL:  sourceURL,
		ImageURL:   imageURL,
		Tracks:     tracks,
		TrackCount: len(tracks),
		ImportedAt: at,
	}
}

// PlaylistID builds the composite imported playlist id.
func PlaylistID(source PlatformID, sourceID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", source, sourceID, at.UnixNano())
}

// Validate checks required fields.
func (p *ImportedPlaylist) Validate() error {
	if p.ID == "" {
		return errors.New("playlist id is required")
	}
	if p.Name == "" {
		return errors.New("playlist name is required")
	}
	if p.Source == "" {
		return errors.New("playlist source is required")
	}
	if p.TrackCount != len(p.Tracks) {
		return fmt.Errorf("track count %d does not match %d tracks", p.TrackCount, len(p.Tracks))
	}
	return nil
}

// CredentialStore holds per-platform [AuthState] across restarts.
//
// Writes for one platform are serialized; the latest write wins.
type CredentialStore interface {
	Get(platform PlatformID) (*AuthState, error)                      // Get returns the stored state, or a disconnected state
	Set(state *AuthState) error                                       // Set replaces the state for state.Platform
	Clear(platform PlatformID) error                                  // Clear resets the platform to disconnected
	Update(platform PlatformID, fn func(state *AuthState) error) error // Update runs an atomic read-modify-write
}

// PlaylistStore is the imported-playlist collection.
type PlaylistStore interface {
	Add(playlist *ImportedPlaylist) error
	Update(playlist *ImportedPlaylist) error
	Remove(id string) error
	Get(id string) (*ImportedPlaylist, error)
	List(criteria map[string]any) ([]*ImportedPlaylist, error)
}
