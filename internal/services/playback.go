package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/platform"
	"github.com/desertthunder/linkport/internal/shared"
)

// Opener hands a URL to the operating system.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to [Opener].
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// PlaybackState is the current state of the user's active Spotify device.
type PlaybackState struct {
	IsPlaying  bool                   `json:"is_playing"`
	ProgressMs int                    `json:"progress_ms"`
	Device     string                 `json:"device"`
	Track      *models.StreamingTrack `json:"track,omitempty"`
}

type spotifyPlayer struct {
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *SpotifyTrack `json:"item"`
	Device     struct {
		Name string `json:"name"`
	} `json:"device"`
}

// Play starts uri on the active device. A track uri is queued as a single item,
// any other uri as a context. When remote playback fails for any reason the
// uri is opened externally instead, and openedExternally reports it.
func (s *SpotifyService) Play(ctx context.Context, uri string) (openedExternally bool, err error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return false, fmt.Errorf("%w: empty uri", shared.ErrInvalidArgument)
	}

	body := map[string]any{"context_uri": uri}
	if strings.HasPrefix(uri, "spotify:track:") {
		body = map[string]any{"uris": []string{uri}}
	}

	_, err = s.request(ctx, http.MethodPut, "/me/player/play", nil, body)
	if err == nil {
		return false, nil
	}
	s.logger.Warn("remote playback failed, opening externally", "uri", uri, "error", err)

	if err := s.opener.Open(externalURL(uri)); err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrPlaybackFailed, err)
	}
	return true, nil
}

// Pause pauses playback.
func (s *SpotifyService) Pause(ctx context.Context) error {
	return s.transport(ctx, http.MethodPut, "/me/player/pause", nil)
}

// Resume continues playback of the current item.
func (s *SpotifyService) Resume(ctx context.Context) error {
	return s.transport(ctx, http.MethodPut, "/me/player/play", nil)
}

// Seek moves to positionMs within the current track.
func (s *SpotifyService) Seek(ctx context.Context, positionMs int) error {
	if positionMs < 0 {
		return fmt.Errorf("%w: negative position", shared.ErrInvalidArgument)
	}
	return s.transport(ctx, http.MethodPut, "/me/player/seek", url.Values{"position_ms": {strconv.Itoa(positionMs)}})
}

func (s *SpotifyService) SkipNext(ctx context.Context) error {
	return s.transport(ctx, http.MethodPost, "/me/player/next", nil)
}

func (s *SpotifyService) SkipPrevious(ctx context.Context) error {
	return s.transport(ctx, http.MethodPost, "/me/player/previous", nil)
}

// PlaybackState returns the active playback, or nil when nothing is playing.
func (s *SpotifyService) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	raw, err := s.request(ctx, http.MethodGet, "/me/player", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}

	var player spotifyPlayer
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("failed to decode playback state: %w", err)
	}

	state := &PlaybackState{IsPlaying: player.IsPlaying, ProgressMs: player.ProgressMS, Device: player.Device.Name}
	if player.Item != nil {
		t := spotifyTrack(*player.Item)
		state.Track = &t
	}
	return state, nil
}

func (s *SpotifyService) transport(ctx context.Context, method, endpoint string, params url.Values) error {
	if _, err := s.request(ctx, method, endpoint, params, nil); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
	}
	return nil
}

// externalURL converts a spotify: uri into its open.spotify.com link.
func externalURL(uri string) string {
	ref, ok := platform.ParseSpotifyURL(uri)
	if !ok || !strings.HasPrefix(uri, "spotify:") {
		return uri
	}
	return "https://open.spotify.com/" + string(ref.Kind) + "/" + ref.ID
}
