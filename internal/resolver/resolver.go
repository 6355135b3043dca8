// package resolver imports links from platforms that cannot be read directly
// (YouTube Music, Apple Music, anything unrecognized) by finding the same
// music on Spotify.
//
// A [Resolver] asks Odesli for equivalent links, then runs its strategies in
// order until one produces a playlist:
//
//  1. spotify-link: import the Spotify equivalent directly
//  2. text-search: search Spotify for "{title} {artist}" and keep the first hit
//
// A failed Odesli call is [shared.ErrResolutionUnreachable]; exhausting every
// strategy is a [shared.ResolutionError] wrapping [shared.ErrResolutionNotFound].
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/platform"
	"github.com/desertthunder/linkport/internal/shared"
)

// LinkLookup finds a URL's equivalents on other platforms.
type LinkLookup interface {
	Lookup(ctx context.Context, rawURL string) (*Lookup, error)
}

// SpotifyImporter performs a direct import of a Spotify link.
type SpotifyImporter interface {
	ImportSpotify(ctx context.Context, rawURL string) (*models.ImportedPlaylist, error)
}

// TrackSearcher searches the Spotify catalog.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.StreamingTrack, error)
}

// Request is the input shared by every strategy.
type Request struct {
	URL      string
	Platform models.PlatformID
	Lookup   *Lookup
}

// Strategy turns a lookup into a playlist. A nil playlist with a nil error
// means the strategy does not apply.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, req Request) (*models.ImportedPlaylist, error)
}

// Resolver runs the ordered strategies.
type Resolver struct {
	links      LinkLookup
	strategies []Strategy
	logger     *log.Logger
}

// New returns a resolver with the default strategy order.
func New(links LinkLookup, importer SpotifyImporter, searcher TrackSearcher, logger *log.Logger) *Resolver {
	return NewWithStrategies(links, logger,
		SpotifyLinkStrategy(importer),
		TextSearchStrategy(searcher, time.Now),
	)
}

// NewWithStrategies returns a resolver that tries strategies in the given order.
func NewWithStrategies(links LinkLookup, logger *log.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resolver{
		links:      links,
		strategies: strategies,
		logger:     shared.WithLogger(logger, "component", "resolver"),
	}
}

// Resolve imports rawURL through its Spotify equivalent.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*models.ImportedPlaylist, error) {
	source := platform.DetectPlatform(rawURL)

	lookup, err := r.links.Lookup(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	req := Request{URL: rawURL, Platform: source, Lookup: lookup}
	for _, s := range r.strategies {
		playlist, err := s.Run(ctx, req)
		switch {
		case err != nil && isAuthError(err):
			return nil, err
		case err != nil:
			r.logger.Warn("strategy failed", "strategy", s.Name, "url", rawURL, "error", err)
		case playlist != nil && len(playlist.Tracks) > 0:
			r.logger.Info("resolved", "strategy", s.Name, "url", rawURL, "tracks", playlist.TrackCount)
			return playlist, nil
		default:
			r.logger.Debug("strategy not applicable", "strategy", s.Name)
		}
	}

	return nil, NotFound(source)
}

// NotFound builds the user-facing miss for a source platform.
func NotFound(source models.PlatformID) error {
	kind := "this"
	switch source {
	case models.YouTubeMusic, models.AppleMusic:
		kind = source.Label()
	}
	return &shared.ResolutionError{Message: fmt.Sprintf("Could not find %s track on Spotify", kind)}
}

// SpotifyLinkStrategy imports the Spotify equivalent link once, without
// resolving again.
func SpotifyLinkStrategy(importer SpotifyImporter) Strategy {
	return Strategy{
		Name: "spotify-link",
		Run: func(ctx context.Context, req Request) (*models.ImportedPlaylist, error) {
			link := req.Lookup.SpotifyURL()
			if link == "" {
				return nil, nil
			}
			return importer.ImportSpotify(ctx, link)
		},
	}
}

// TextSearchStrategy searches Spotify for the primary entity and adopts the
// first hit as a one-track playlist named after the entity.
func TextSearchStrategy(searcher TrackSearcher, now func() time.Time) Strategy {
	return Strategy{
		Name: "text-search",
		Run: func(ctx context.Context, req Request) (*models.ImportedPlaylist, error) {
			entity, ok := req.Lookup.Primary()
			if !ok || entity.Title == "" || entity.ArtistName == "" {
				return nil, nil
			}

			tracks, err := searcher.SearchTracks(ctx, shared.SearchQuery(entity.Title, entity.ArtistName), 1)
			if err != nil {
				return nil, err
			}
			if len(tracks) == 0 {
				return nil, fmt.Errorf("%w: %s by %s", shared.ErrNoMatch, entity.Title, entity.ArtistName)
			}

			best := tracks[0]
			image := entity.ThumbnailURL
			if image == "" {
				image = best.ImageURL
			}
			return models.NewImportedPlaylist(models.SourceURL, best.ID, entity.Title, req.URL, image, []models.StreamingTrack{best}, now()), nil
		},
	}
}

// isAuthError reports failures every later Spotify strategy would repeat.
func isAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrAuthExpired)
}
