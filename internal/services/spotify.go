// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
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
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyPageSize = 100
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track. IsPlayable is only present when a market is requested.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      *SpotifyAlbum   `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
	PreviewURL string          `json:"preview_url"`
	IsPlayable *bool           `json:"is_playable"`
	IsLocal    bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album. Tracks is only set on full album objects.
type SpotifyAlbum struct {
	ID      string                     `json:"id"`
	Name    string                     `json:"name"`
	Artists []SpotifyArtist            `json:"artists"`
	Images  []SpotifyImage             `json:"images"`
	URI     string                     `json:"uri"`
	Tracks  *spotifyPage[SpotifyTrack] `json:"tracks"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylist represents a simplified or full playlist object.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       spotifyOwner   `json:"owner"`
	Images      []SpotifyImage `json:"images"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPlaylistItem struct {
	Track *SpotifyTrack `json:"track"`
}

type spotifyPage[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Next  string `json:"next"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService is the Spotify Web API client, including playback transport.
type SpotifyService struct {
	api     *APIService
	session auth.Authenticator
	cache   *playlistCache
	logger  *log.Logger
	opener  Opener
}

// NewSpotifyService creates a client that authenticates through session.
func NewSpotifyService(session auth.Authenticator, opts Options) *SpotifyService {
	s := &SpotifyService{
		api:     opts.api(spotifyBaseURL),
		session: session,
		cache:   opts.cache(),
		logger:  opts.logger(models.Spotify),
		opener:  OpenerFunc(shared.OpenBrowser),
	}
	session.OnDisconnect(s.cache.Purge)
	return s
}

func (s *SpotifyService) Name() string { return "Spotify" }

func (s *SpotifyService) Platform() models.PlatformID { return models.Spotify }

// SetOpener replaces the handler used when remote playback fails.
func (s *SpotifyService) SetOpener(o Opener) { s.opener = o }

// APIRequest performs an authenticated GET.
func (s *SpotifyService) APIRequest(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return s.request(ctx, http.MethodGet, endpoint, params, nil)
}

// request attaches the bearer token and recovers from one expired token. A
// failed refresh surfaces [shared.ErrAuthExpired] without disconnecting.
func (s *SpotifyService) request(ctx context.Context, method, endpoint string, params url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	resp, err := doAuthorized(ctx, s.session, func(token string) (*APIResponse, error) {
		return s.api.Do(ctx, Request{Method: method, Path: endpoint, Params: params, Header: bearer(token), Body: payload})
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		var eb spotifyErrorBody
		_ = json.Unmarshal(resp.Body, &eb)
		return nil, &shared.APIError{Platform: "spotify", Status: resp.StatusCode, Message: eb.Error.Message}
	}
	return json.RawMessage(resp.Body), nil
}

func (s *SpotifyService) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	raw, err := s.APIRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*models.UserProfile, error) {
	var user SpotifyUser
	if err := s.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &models.UserProfile{
		ID:          user.ID,
		DisplayName: unknown(firstNonEmpty(user.DisplayName, user.ID)),
		Email:       user.Email,
		ImageURL:    firstImage(user.Images),
		Tier:        user.Product,
	}, nil
}

// FetchPlaylists retrieves all playlists of the current user.
func (s *SpotifyService) FetchPlaylists(ctx context.Context) ([]models.PlaylistSummary, error) {
	if cached, ok := s.cache.Get(playlistsKey); ok {
		return cached, nil
	}

	playlists := []models.PlaylistSummary{}
	next := "/me/playlists"
	params := url.Values{"limit": {"50"}}
	for next != "" {
		var page spotifyPage[SpotifyPlaylist]
		if err := s.get(ctx, next, params, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			playlists = append(playlists, spotifyPlaylistSummary(p))
		}
		next, params = page.Next, nil
	}

	s.cache.Add(playlistsKey, playlists)
	return playlists, nil
}

// FetchPlaylistMetadata retrieves a playlist's name, owner, image and size.
func (s *SpotifyService) FetchPlaylistMetadata(ctx context.Context, playlistID string) (*models.PlaylistSummary, error) {
	var p SpotifyPlaylist
	params := url.Values{"fields": {"id,name,description,images,owner(id,display_name),tracks(total)"}}
	if err := s.get(ctx, "/playlists/"+url.PathEscape(playlistID), params, &p); err != nil {
		return nil, err
	}
	summary := spotifyPlaylistSummary(p)
	return &summary, nil
}

// FetchPlaylistTracks pages through a playlist 100 tracks at a time. Local,
// removed and unplayable tracks are dropped.
func (s *SpotifyService) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error) {
	tracks := []models.StreamingTrack{}
	next := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	params := url.Values{"limit": {strconv.Itoa(spotifyPageSize)}, "market": {"from_token"}}

	for next != "" {
		var page spotifyPage[spotifyPlaylistItem]
		if err := s.get(ctx, next, params, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			t := spotifyTrack(*item.Track)
			if !t.IsPlayable {
				continue
			}
			tracks = append(tracks, t)
		}
		next, params = page.Next, nil
	}
	return tracks, nil
}

// FetchAlbumTracks retrieves an album and all of its playable tracks.
func (s *SpotifyService) FetchAlbumTracks(ctx context.Context, albumID string) (*models.PlaylistSummary, []models.StreamingTrack, error) {
	var album SpotifyAlbum
	if err := s.get(ctx, "/albums/"+url.PathEscape(albumID), url.Values{"market": {"from_token"}}, &album); err != nil {
		return nil, nil, err
	}

	tracks := []models.StreamingTrack{}
	page := album.Tracks
	for page != nil {
		for _, item := range page.Items {
			if item.Album == nil {
				item.Album = &SpotifyAlbum{Name: album.Name, Images: album.Images}
			}
			t := spotifyTrack(item)
			if t.IsPlayable {
				tracks = append(tracks, t)
			}
		}
		if page.Next == "" {
			break
		}
		var nextPage spotifyPage[SpotifyTrack]
		if err := s.get(ctx, page.Next, nil, &nextPage); err != nil {
			return nil, nil, err
		}
		page = &nextPage
	}

	summary := &models.PlaylistSummary{
		ID:         album.ID,
		Name:       unknown(album.Name),
		ImageURL:   firstImage(album.Images),
		TrackCount: len(tracks),
		Owner:      joinArtists(album.Artists),
		Platform:   models.Spotify,
	}
	return summary, tracks, nil
}

// FetchTrack retrieves a single track by id.
func (s *SpotifyService) FetchTrack(ctx context.Context, trackID string) (*models.StreamingTrack, error) {
	var track SpotifyTrack
	if err := s.get(ctx, "/tracks/"+url.PathEscape(trackID), url.Values{"market": {"from_token"}}, &track); err != nil {
		return nil, err
	}
	t := spotifyTrack(track)
	return &t, nil
}

// SearchTracks runs a track search. An empty query returns no results without a request.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.StreamingTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.StreamingTrack{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var result struct {
		Tracks spotifyPage[SpotifyTrack] `json:"tracks"`
	}
	params := url.Values{"q": {query}, "type": {"track"}, "limit": {strconv.Itoa(limit)}}
	if err := s.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}

	tracks := make([]models.StreamingTrack, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		tracks = append(tracks, spotifyTrack(item))
	}
	return tracks, nil
}

// spotifyTrack maps a Spotify track onto [models.StreamingTrack].
func spotifyTrack(t SpotifyTrack) models.StreamingTrack {
	track := models.StreamingTrack{
		ID:          t.ID,
		Name:        unknown(t.Name),
		Artist:      joinArtists(t.Artists),
		Album:       "Unknown",
		DurationMs:  max(t.DurationMS, 0),
		PlayableURI: t.URI,
		PreviewURL:  t.PreviewURL,
		IsPlayable:  t.IsPlayable == nil || *t.IsPlayable,
		Platform:    models.Spotify,
	}
	if t.Album != nil {
		track.Album = unknown(t.Album.Name)
		track.ImageURL = firstImage(t.Album.Images)
	}
	if track.PlayableURI == "" && t.ID != "" {
		track.PlayableURI = "spotify:track:" + t.ID
	}
	return track
}

func spotifyPlaylistSummary(p SpotifyPlaylist) models.PlaylistSummary {
	return models.PlaylistSummary{
		ID:          p.ID,
		Name:        unknown(p.Name),
		Description: p.Description,
		ImageURL:    firstImage(p.Images),
		TrackCount:  p.Tracks.Total,
		Owner:       firstNonEmpty(p.Owner.DisplayName, p.Owner.ID),
		Platform:    models.Spotify,
	}
}

func joinArtists(artists []SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return unknown(strings.Join(names, ", "))
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
