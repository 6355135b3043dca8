package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/desertthunder/linkport/internal/services"
	"github.com/desertthunder/linkport/internal/shared"
)

const (
	odesliBaseURL    = "https://api.song.link/v1-alpha.1"
	defaultCacheSize = 256
)

// Entity is one platform's view of the looked-up song or album.
type Entity struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	ArtistName   string `json:"artistName"`
	ThumbnailURL string `json:"thumbnailUrl"`
	APIProvider  string `json:"apiProvider"`
}

// PlatformLink is a link to the same entity on another platform.
type PlatformLink struct {
	URL            string `json:"url"`
	EntityUniqueID string `json:"entityUniqueId"`
}

// Lookup is the Odesli links response.
type Lookup struct {
	EntityUniqueID     string                  `json:"entityUniqueId"`
	UserCountry        string                  `json:"userCountry"`
	PageURL            string                  `json:"pageUrl"`
	EntitiesByUniqueID map[string]Entity       `json:"entitiesByUniqueId"`
	LinksByPlatform    map[string]PlatformLink `json:"linksByPlatform"`
}

// Primary returns the entity the lookup was made for.
func (l *Lookup) Primary() (Entity, bool) {
	if l == nil {
		return Entity{}, false
	}
	e, ok := l.EntitiesByUniqueID[l.EntityUniqueID]
	return e, ok
}

// SpotifyURL returns the Spotify equivalent link, if any.
func (l *Lookup) SpotifyURL() string {
	if l == nil {
		return ""
	}
	return l.LinksByPlatform["spotify"].URL
}

// OdesliClient queries the Odesli links API. Results are cached per URL.
type OdesliClient struct {
	api         *services.APIService
	userCountry string
	cache       *expirable.LRU[string, *Lookup]
	logger      *log.Logger
}

// NewOdesliClient builds a client from the [resolver] config section.
func NewOdesliClient(cfg shared.ResolverConfig, logger *log.Logger) *OdesliClient {
	base := cfg.BaseURL
	if base == "" {
		base = odesliBaseURL
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	// Odesli allows 10 requests per minute without an API key.
	limiter := rate.NewLimiter(rate.Every(6*time.Second), 10)
	client := &http.Client{Timeout: cfg.Timeout()}

	return &OdesliClient{
		api:         services.NewAPIService(base, client, limiter),
		userCountry: cfg.UserCountry,
		cache:       expirable.NewLRU[string, *Lookup](size, nil, cfg.CacheTTL()),
		logger:      shared.WithLogger(logger, "component", "odesli"),
	}
}

// Lookup resolves rawURL to its equivalents on other platforms. Every transport,
// status or decoding failure is reported as [shared.ErrResolutionUnreachable].
func (c *OdesliClient) Lookup(ctx context.Context, rawURL string) (*Lookup, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached, nil
	}

	params := url.Values{"url": {rawURL}}
	if c.userCountry != "" {
		params.Set("userCountry", c.userCountry)
	}

	resp, err := c.api.Get(ctx, "/links", params, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionUnreachable, err)
	}
	if !resp.OK() {
		c.logger.Warn("lookup rejected", "url", rawURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", shared.ErrResolutionUnreachable, resp.StatusCode)
	}

	var lookup Lookup
	if err := json.Unmarshal(resp.Body, &lookup); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", shared.ErrResolutionUnreachable, err)
	}

	c.cache.Add(rawURL, &lookup)
	return &lookup, nil
}
