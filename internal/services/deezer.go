package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/auth"
	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

const deezerBaseURL = "https://api.deezer.com"

// deezerInvalidSession is the error code Deezer embeds when a token is no longer valid.
const deezerInvalidSession = 300

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerEnvelope struct {
	Error *deezerError `json:"error"`
}

type deezerUser struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	PictureMedium string      `json:"picture_medium"`
	Status        int         `json:"status"`
}

type deezerPlaylist struct {
	ID            json.Number `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	NbTracks      int         `json:"nb_tracks"`
	PictureMedium string      `json:"picture_medium"`
	Creator       struct {
		Name string `json:"name"`
	} `json:"creator"`
}

type deezerTrackItem struct {
	ID       json.Number `json:"id"`
	Title    string      `json:"title"`
	Duration int         `json:"duration"`
	Readable *bool       `json:"readable"`
	Link     string      `json:"link"`
	Preview  string      `json:"preview"`
	Artist   *struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album *struct {
		Title       string `json:"title"`
		CoverMedium string `json:"cover_medium"`
	} `json:"album"`
}

type deezerPage[T any] struct {
	Data  []T    `json:"data"`
	Total int    `json:"total"`
	Next  string `json:"next"`
}

// DeezerService is the Deezer API client. Public endpoints work without a
// session; the access token is attached when one is stored.
type DeezerService struct {
	api     *APIService
	session auth.Authenticator
	cache   *playlistCache
	logger  *log.Logger
}

// NewDeezerService creates a Deezer client bound to session.
func NewDeezerService(session auth.Authenticator, opts Options) *DeezerService {
	s := &DeezerService{
		api:     opts.api(deezerBaseURL),
		session: session,
		cache:   opts.cache(),
		logger:  opts.logger(models.Deezer),
	}
	session.OnDisconnect(s.cache.Purge)
	return s
}

func (s *DeezerService) Name() string { return "Deezer" }

func (s *DeezerService) Platform() models.PlatformID { return models.Deezer }

// APIRequest performs a GET with the access_token parameter. Deezer reports most
// failures inside a 200 body; code 300 ends the session.
func (s *DeezerService) APIRequest(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	token, _, err := s.session.Token()
	switch {
	case err == nil:
		q.Set("access_token", token)
	case !errors.Is(err, shared.ErrNotAuthenticated):
		return nil, err
	}

	resp, err := s.api.Get(ctx, endpoint, q, nil)
	if err != nil {
		return nil, err
	}

	var env deezerEnvelope
	_ = json.Unmarshal(resp.Body, &env)
	if env.Error != nil {
		if env.Error.Code == deezerInvalidSession {
			s.logger.Warn("session rejected, disconnecting", "endpoint", endpoint, "message", env.Error.Message)
			if err := s.session.Disconnect(); err != nil {
				s.logger.Error("disconnect failed", "error", err)
			}
			return nil, fmt.Errorf("%w: %s", shared.ErrAuthExpired, env.Error.Message)
		}
		return nil, &shared.APIError{Platform: "deezer", Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if !resp.OK() {
		return nil, &shared.APIError{Platform: "deezer", Status: resp.StatusCode}
	}
	return json.RawMessage(resp.Body), nil
}

func (s *DeezerService) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	raw, err := s.APIRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// UserProfile retrieves the account of the stored token.
func (s *DeezerService) UserProfile(ctx context.Context) (*models.UserProfile, error) {
	var user deezerUser
	if err := s.get(ctx, "/user/me", nil, &user); err != nil {
		return nil, err
	}
	tier := "free"
	if user.Status > 0 {
		tier = "premium"
	}
	return &models.UserProfile{
		ID:          user.ID.String(),
		DisplayName: unknown(user.Name),
		Email:       user.Email,
		ImageURL:    user.PictureMedium,
		Tier:        tier,
	}, nil
}

// FetchPlaylists follows next links through the user's playlists.
func (s *DeezerService) FetchPlaylists(ctx context.Context) ([]models.PlaylistSummary, error) {
	if cached, ok := s.cache.Get(playlistsKey); ok {
		return cached, nil
	}

	playlists := []models.PlaylistSummary{}
	next := "/user/me/playlists"
	for next != "" {
		var page deezerPage[deezerPlaylist]
		if err := s.get(ctx, next, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			playlists = append(playlists, deezerPlaylistSummary(p))
		}
		next = page.Next
	}

	s.cache.Add(playlistsKey, playlists)
	return playlists, nil
}

func (s *DeezerService) FetchPlaylistMetadata(ctx context.Context, playlistID string) (*models.PlaylistSummary, error) {
	var p deezerPlaylist
	if err := s.get(ctx, "/playlist/"+url.PathEscape(playlistID), nil, &p); err != nil {
		return nil, err
	}
	summary := deezerPlaylistSummary(p)
	return &summary, nil
}

// FetchPlaylistTracks follows next links; unreadable tracks are dropped.
func (s *DeezerService) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error) {
	tracks := []models.StreamingTrack{}
	next := "/playlist/" + url.PathEscape(playlistID) + "/tracks"
	params := url.Values{"limit": {"100"}}

	for next != "" {
		var page deezerPage[deezerTrackItem]
		if err := s.get(ctx, next, params, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			if t := deezerTrack(item); t.IsPlayable {
				tracks = append(tracks, t)
			}
		}
		next, params = page.Next, nil
	}
	return tracks, nil
}

func (s *DeezerService) SearchTracks(ctx context.Context, query string, limit int) ([]models.StreamingTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.StreamingTrack{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var page deezerPage[deezerTrackItem]
	if err := s.get(ctx, "/search/track", url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}, &page); err != nil {
		return nil, err
	}
	tracks := make([]models.StreamingTrack, 0, len(page.Data))
	for _, item := range page.Data {
		tracks = append(tracks, deezerTrack(item))
	}
	return tracks, nil
}

// deezerTrack maps a Deezer track; durations arrive in seconds.
func deezerTrack(t deezerTrackItem) models.StreamingTrack {
	track := models.StreamingTrack{
		ID:          t.ID.String(),
		Name:        unknown(t.Title),
		Artist:      "Unknown",
		Album:       "Unknown",
		DurationMs:  max(t.Duration, 0) * 1000,
		PlayableURI: t.Link,
		PreviewURL:  t.Preview,
		IsPlayable:  t.Readable == nil || *t.Readable,
		Platform:    models.Deezer,
	}
	if t.Artist != nil {
		track.Artist = unknown(t.Artist.Name)
	}
	if t.Album != nil {
		track.Album = unknown(t.Album.Title)
		track.ImageURL = t.Album.CoverMedium
	}
	if track.PlayableURI == "" && track.ID != "" {
		track.PlayableURI = "https://www.deezer.com/track/" + track.ID
	}
	return track
}

func deezerPlaylistSummary(p deezerPlaylist) models.PlaylistSummary {
	return models.PlaylistSummary{
		ID:          p.ID.String(),
		Name:        unknown(p.Title),
		Description: p.Description,
		ImageURL:    p.PictureMedium,
		TrackCount:  p.NbTracks,
		Owner:       p.Creator.Name,
		Platform:    models.Deezer,
	}
}
