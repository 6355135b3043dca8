// package services defines interface Service for interacting with streaming platform APIs
//
// Spotify, Deezer, Qobuz
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// Service is the read surface shared by every streaming platform client.
type Service interface {
	// Name returns the user-facing platform name.
	Name() string

	Platform() models.PlatformID

	// APIRequest performs an authenticated GET against endpoint and returns the raw body.
	APIRequest(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)

	// FetchPlaylists lists the user's playlists. Results are cached until the
	// session disconnects or the cache entry expires.
	FetchPlaylists(ctx context.Context) ([]models.PlaylistSummary, error)

	// FetchPlaylistMetadata retrieves one playlist without tracks.
	FetchPlaylistMetadata(ctx context.Context, playlistID string) (*models.PlaylistSummary, error)

	// FetchPlaylistTracks retrieves every playable track of a playlist in order.
	FetchPlaylistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error)

	// SearchTracks searches the catalog. Unplayable tracks are kept and flagged.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.StreamingTrack, error)

	// UserProfile loads the authenticated account.
	UserProfile(ctx context.Context) (*models.UserProfile, error)
}

// Options configures a platform client.
type Options struct {
	// BaseURL overrides the platform API host.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
	// RequestsPerSecond and Burst configure the outbound limiter; zero disables it.
	RequestsPerSecond float64
	Burst             int
	// CacheTTL bounds how long playlist lists are reused.
	CacheTTL time.Duration
}

// OptionsFromConfig maps the [http] config section onto client options.
func OptionsFromConfig(cfg shared.HTTPConfig, logger *log.Logger) Options {
	return Options{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout()},
		Logger:            logger,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		CacheTTL:          cfg.CacheTTL(),
	}
}

func (o Options) logger(platform models.PlatformID) *log.Logger {
	l := o.Logger
	if l == nil {
		l = shared.NewLogger(nil)
	}
	return shared.WithLogger(l, "service", string(platform))
}

func (o Options) api(defaultBase string) *APIService {
	base := o.BaseURL
	if base == "" {
		base = defaultBase
	}
	return NewAPIService(base, o.HTTPClient, NewLimiter(o.RequestsPerSecond, o.Burst))
}

const playlistsKey = "playlists"

// playlistCache holds user playlist lists per platform client.
type playlistCache = expirable.LRU[string, []models.PlaylistSummary]

func (o Options) cache() *playlistCache {
	ttl := o.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return expirable.NewLRU[string, []models.PlaylistSummary](8, nil, ttl)
}
