package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/auth"
	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

const (
	qobuzBaseURL  = "https://www.qobuz.com/api.json/0.2"
	qobuzPageSize = 500
)

// QobuzAuthenticator is a session that also knows the application id.
type QobuzAuthenticator interface {
	auth.Authenticator
	AppID() string
}

type qobuzImage struct {
	Small     string `json:"small"`
	Thumbnail string `json:"thumbnail"`
	Large     string `json:"large"`
}

type qobuzTrackItem struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	Version    string      `json:"version"`
	Duration   int         `json:"duration"`
	Streamable *bool       `json:"streamable"`
	Performer  *struct {
		Name string `json:"name"`
	} `json:"performer"`
	Album *struct {
		Title  string     `json:"title"`
		Image  qobuzImage `json:"image"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"album"`
}

type qobuzPage[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type qobuzPlaylist struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	TracksCount int         `json:"tracks_count"`
	Images300   []string    `json:"images300"`
	Owner       struct {
		Name string `json:"name"`
	} `json:"owner"`
	Tracks *qobuzPage[qobuzTrackItem] `json:"tracks"`
}

type qobuzUser struct {
	ID          json.Number `json:"id"`
	Login       string      `json:"login"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Avatar      string      `json:"avatar"`
	Credential  struct {
		Parameters struct {
			ShortLabel string `json:"short_label"`
		} `json:"parameters"`
	} `json:"credential"`
}

// QobuzService is the Qobuz API client.
type QobuzService struct {
	api     *APIService
	session QobuzAuthenticator
	cache   *playlistCache
	logger  *log.Logger
}

// NewQobuzService creates a Qobuz client bound to session.
func NewQobuzService(session QobuzAuthenticator, opts Options) *QobuzService {
	s := &QobuzService{
		api:     opts.api(qobuzBaseURL),
		session: session,
		cache:   opts.cache(),
		logger:  opts.logger(models.Qobuz),
	}
	session.OnDisconnect(s.cache.Purge)
	return s
}

func (s *QobuzService) Name() string { return "Qobuz" }

func (s *QobuzService) Platform() models.PlatformID { return models.Qobuz }

// APIRequest performs an authenticated GET. A rejected token triggers one
// re-login; if that fails or the retry is rejected too, the session is
// disconnected.
func (s *QobuzService) APIRequest(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	resp, err := doAuthorized(ctx, s.session, func(token string) (*APIResponse, error) {
		h := http.Header{}
		h.Set("X-App-Id", s.session.AppID())
		h.Set("X-User-Auth-Token", token)
		return s.api.Get(ctx, endpoint, params, h)
	})
	if err != nil {
		if errors.Is(err, shared.ErrAuthExpired) {
			s.logger.Warn("session rejected, disconnecting", "endpoint", endpoint)
			if derr := s.session.Disconnect(); derr != nil {
				s.logger.Error("disconnect failed", "error", derr)
			}
		}
		return nil, err
	}

	if !resp.OK() {
		var body struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		_ = json.Unmarshal(resp.Body, &body)
		return nil, &shared.APIError{Platform: "qobuz", Status: resp.StatusCode, Message: body.Message}
	}
	return json.RawMessage(resp.Body), nil
}

func (s *QobuzService) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	raw, err := s.APIRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *QobuzService) UserProfile(ctx context.Context) (*models.UserProfile, error) {
	var user qobuzUser
	if err := s.get(ctx, "/user/get", nil, &user); err != nil {
		return nil, err
	}
	return &models.UserProfile{
		ID:          user.ID.String(),
		DisplayName: unknown(firstNonEmpty(user.DisplayName, user.Login, user.Email)),
		Email:       user.Email,
		ImageURL:    user.Avatar,
		Tier:        user.Credential.Parameters.ShortLabel,
	}, nil
}

// FetchPlaylists pages through the user's playlists by offset.
func (s *QobuzService) FetchPlaylists(ctx context.Context) ([]models.PlaylistSummary, error) {
	if cached, ok := s.cache.Get(playlistsKey); ok {
		return cached, nil
	}

	playlists := []models.PlaylistSummary{}
	for offset := 0; ; {
		var result struct {
			Playlists qobuzPage[qobuzPlaylist] `json:"playlists"`
		}
		params := url.Values{"limit": {strconv.Itoa(qobuzPageSize)}, "offset": {strconv.Itoa(offset)}}
		if err := s.get(ctx, "/playlist/getUserPlaylists", params, &result); err != nil {
			return nil, err
		}
		for _, p := range result.Playlists.Items {
			playlists = append(playlists, qobuzPlaylistSummary(p))
		}
		offset += len(result.Playlists.Items)
		if len(result.Playlists.Items) == 0 || offset >= result.Playlists.Total {
			break
		}
	}

	s.cache.Add(playlistsKey, playlists)
	return playlists, nil
}

func (s *QobuzService) FetchPlaylistMetadata(ctx context.Context, playlistID string) (*models.PlaylistSummary, error) {
	var p qobuzPlaylist
	params := url.Values{"playlist_id": {playlistID}, "limit": {"0"}}
	if err := s.get(ctx, "/playlist/get", params, &p); err != nil {
		return nil, err
	}
	summary := qobuzPlaylistSummary(p)
	return &summary, nil
}

// FetchPlaylistTracks pages the playlist by offset; non-streamable tracks are dropped.
func (s *QobuzService) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error) {
	tracks := []models.StreamingTrack{}
	for offset := 0; ; {
		var p qobuzPlaylist
		params := url.Values{
			"playlist_id": {playlistID},
			"extra":       {"tracks"},
			"limit":       {strconv.Itoa(qobuzPageSize)},
			"offset":      {strconv.Itoa(offset)},
		}
		if err := s.get(ctx, "/playlist/get", params, &p); err != nil {
			return nil, err
		}
		if p.Tracks == nil {
			break
		}
		for _, item := range p.Tracks.Items {
			if t := qobuzTrack(item); t.IsPlayable {
				tracks = append(tracks, t)
			}
		}
		offset += len(p.Tracks.Items)
		if len(p.Tracks.Items) == 0 || offset >= p.Tracks.Total {
			break
		}
	}
	return tracks, nil
}

func (s *QobuzService) SearchTracks(ctx context.Context, query string, limit int) ([]models.StreamingTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.StreamingTrack{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var result struct {
		Tracks qobuzPage[qobuzTrackItem] `json:"tracks"`
	}
	if err := s.get(ctx, "/track/search", url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}}, &result); err != nil {
		return nil, err
	}
	tracks := make([]models.StreamingTrack, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		tracks = append(tracks, qobuzTrack(item))
	}
	return tracks, nil
}

// qobuzTrack maps a Qobuz track. The performer wins over the album artist and
// the version is appended to the title.
func qobuzTrack(t qobuzTrackItem) models.StreamingTrack {
	name := t.Title
	if t.Version != "" && name != "" {
		name += " (" + t.Version + ")"
	}
	track := models.StreamingTrack{
		ID:         t.ID.String(),
		Name:       unknown(name),
		Artist:     "Unknown",
		Album:      "Unknown",
		DurationMs: max(t.Duration, 0) * 1000,
		IsPlayable: t.Streamable == nil || *t.Streamable,
		Platform:   models.Qobuz,
	}
	if t.Album != nil {
		track.Album = unknown(t.Album.Title)
		track.Artist = unknown(t.Album.Artist.Name)
		track.ImageURL = firstNonEmpty(t.Album.Image.Large, t.Album.Image.Small, t.Album.Image.Thumbnail)
	}
	if t.Performer != nil && t.Performer.Name != "" {
		track.Artist = t.Performer.Name
	}
	if track.ID != "" {
		track.PlayableURI = "https://open.qobuz.com/track/" + track.ID
	}
	return track
}

func qobuzPlaylistSummary(p qobuzPlaylist) models.PlaylistSummary {
	summary := models.PlaylistSummary{
		ID:          p.ID.String(),
		Name:        unknown(p.Name),
		Description: p.Description,
		TrackCount:  p.TracksCount,
		Owner:       p.Owner.Name,
		Platform:    models.Qobuz,
	}
	if len(p.Images300) > 0 {
		summary.ImageURL = p.Images300[0]
	}
	return summary
}
