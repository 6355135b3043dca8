package tasks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/platform"
	"github.com/desertthunder/linkport/internal/resolver"
	"github.com/desertthunder/linkport/internal/services"
	"github.com/desertthunder/linkport/internal/shared"
)

// Callback names the redirect paths the auth sessions listen on.
const (
	SpotifyCallback = "spotify-callback"
	DeezerCallback  = "deezer-callback"
)

const searchLimit = 20

// SpotifyClient is the Spotify surface the importer needs beyond [services.Service].
type SpotifyClient interface {
	services.Service
	FetchAlbumTracks(ctx context.Context, albumID string) (*models.PlaylistSummary, []models.StreamingTrack, error)
	FetchTrack(ctx context.Context, trackID string) (*models.StreamingTrack, error)
}

// CallbackHandler completes a login from the provider's redirect URL.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, callbackURL string) error
}

// Deps are the importer's collaborators. Missing platform clients make the
// matching imports fail with [shared.ErrServiceUnavailable].
type Deps struct {
	Spotify SpotifyClient
	Deezer  services.Service
	Qobuz   services.Service

	// Links enables cross-platform resolution; without it only direct imports work.
	Links resolver.LinkLookup

	Store     models.PlaylistStore
	Notifier  Notifier
	Metrics   *Metrics
	Callbacks map[string]CallbackHandler
	Logger    *log.Logger
	Now       func() time.Time
}

// Importer turns pasted links into stored playlists.
type Importer struct {
	spotify   SpotifyClient
	clients   map[models.PlatformID]services.Service
	resolver  *resolver.Resolver
	store     models.PlaylistStore
	notifier  Notifier
	metrics   *Metrics
	callbacks map[string]CallbackHandler
	logger    *log.Logger
	now       func() time.Time
	progress  chan<- ProgressUpdate
}

// NewImporter wires an importer from deps.
func NewImporter(deps Deps) *Importer {
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	i := &Importer{
		spotify:   deps.Spotify,
		clients:   make(map[models.PlatformID]services.Service),
		store:     deps.Store,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		callbacks: deps.Callbacks,
		logger:    shared.WithLogger(logger, "component", "importer"),
		now:       deps.Now,
	}
	if i.notifier == nil {
		i.notifier = nopNotifier{}
	}
	if i.now == nil {
		i.now = time.Now
	}
	if deps.Spotify != nil {
		i.clients[models.Spotify] = deps.Spotify
	}
	if deps.Deezer != nil {
		i.clients[models.Deezer] = deps.Deezer
	}
	if deps.Qobuz != nil {
		i.clients[models.Qobuz] = deps.Qobuz
	}
	if deps.Links != nil && deps.Spotify != nil {
		strategies := []resolver.Strategy{
			resolver.SpotifyLinkStrategy(i),
			resolver.TextSearchStrategy(deps.Spotify, i.now),
		}
		i.resolver = resolver.NewWithStrategies(deps.Links, logger, strategies...)
	}
	return i
}

// SetProgress directs progress updates to ch. Sends never block.
func (i *Importer) SetProgress(ch chan<- ProgressUpdate) { i.progress = ch }

// ImportFromURL imports the playlist behind rawURL and adds it to the store.
//
// The notifier's loading flag is raised for the duration of the call and its
// error slot is cleared at the start and set to the failure message on error.
func (i *Importer) ImportFromURL(ctx context.Context, rawURL string) (*models.ImportedPlaylist, error) {
	i.notifier.SetLoading(true)
	i.notifier.SetError("")
	defer i.notifier.SetLoading(false)

	start := i.now()
	rawURL = withScheme(rawURL)
	source := platform.DetectPlatform(rawURL)

	playlist, err := i.importURL(ctx, rawURL, source)
	if err == nil {
		if err = i.store.Add(playlist); err != nil {
			err = fmt.Errorf("failed to store playlist: %w", err)
		}
	}
	i.metrics.observe(source, playlist, err, i.now().Sub(start))

	if err != nil {
		i.logger.Error("import failed", "url", rawURL, "source", source, "error", err)
		i.notifier.SetError(err.Error())
		return nil, err
	}

	i.logger.Info("imported playlist", "id", playlist.ID, "source", playlist.Source, "tracks", playlist.TrackCount)
	sendProgress(i.progress, persistUpdate(playlist))
	return playlist, nil
}

func (i *Importer) importURL(ctx context.Context, rawURL string, source models.PlatformID) (*models.ImportedPlaylist, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	sendProgress(i.progress, detectUpdate(source))

	switch source {
	case models.Spotify:
		return i.ImportSpotify(ctx, rawURL)
	case models.Deezer, models.Qobuz:
		id, ok := platform.ExtractPlaylistID(rawURL, source)
		if !ok && platform.IsShortLink(rawURL) {
			return i.resolve(ctx, rawURL, source)
		}
		if !ok {
			return nil, fmt.Errorf("%w: no %s playlist id in %q", shared.ErrInvalidURL, source.Label(), rawURL)
		}
		client, err := i.client(source)
		if err != nil {
			return nil, err
		}
		return i.importPlaylist(ctx, client, source, id, rawURL)
	default:
		return i.resolve(ctx, rawURL, source)
	}
}

// resolve imports rawURL through its Spotify equivalent.
func (i *Importer) resolve(ctx context.Context, rawURL string, source models.PlatformID) (*models.ImportedPlaylist, error) {
	if i.resolver == nil {
		return nil, fmt.Errorf("%w: link resolution is not configured", shared.ErrServiceUnavailable)
	}
	sendProgress(i.progress, resolveUpdate(source))
	return i.resolver.Resolve(ctx, rawURL)
}

// ImportSpotify imports a Spotify playlist, album or track link without
// storing it. Albums and tracks become playlists of their own.
func (i *Importer) ImportSpotify(ctx context.Context, rawURL string) (*models.ImportedPlaylist, error) {
	ref, ok := platform.ParseSpotifyURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: not a Spotify playlist, album or track link", shared.ErrInvalidURL)
	}
	if i.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify client not initialized", shared.ErrServiceUnavailable)
	}

	switch ref.Kind {
	case platform.KindAlbum:
		sendProgress(i.progress, fetchTracksUpdate("album "+ref.ID))
		summary, tracks, err := i.spotify.FetchAlbumTracks(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return models.NewImportedPlaylist(models.Spotify, ref.ID, summary.Name, rawURL, summary.ImageURL, tracks, i.now()), nil
	case platform.KindTrack:
		track, err := i.spotify.FetchTrack(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return models.NewImportedPlaylist(models.Spotify, ref.ID, track.Name, rawURL, track.ImageURL, []models.StreamingTrack{*track}, i.now()), nil
	default:
		return i.importPlaylist(ctx, i.spotify, models.Spotify, ref.ID, rawURL)
	}
}

// importPlaylist reads metadata best-effort, then the full track list.
func (i *Importer) importPlaylist(ctx context.Context, client services.Service, source models.PlatformID, id, rawURL string) (*models.ImportedPlaylist, error) {
	sendProgress(i.progress, fetchMetadataUpdate(source, id))

	name := source.Label() + " Playlist"
	image := ""
	if meta, err := client.FetchPlaylistMetadata(ctx, id); err != nil {
		i.logger.Warn("metadata unavailable, using generic name", "source", source, "id", id, "error", err)
	} else {
		name = meta.Name
		image = meta.ImageURL
	}

	sendProgress(i.progress, fetchTracksUpdate(name))
	tracks, err := client.FetchPlaylistTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewImportedPlaylist(source, id, name, rawURL, image, tracks, i.now()), nil
}

// SearchAndImport searches Spotify for query. Failures yield an empty slice
// and land in the notifier's error slot, like [Importer.ImportFromURL].
func (i *Importer) SearchAndImport(ctx context.Context, query string) []models.StreamingTrack {
	i.notifier.SetLoading(true)
	i.notifier.SetError("")
	defer i.notifier.SetLoading(false)

	if i.spotify == nil {
		i.logger.Warn("search skipped, Spotify client not initialized")
		i.notifier.SetError(fmt.Sprintf("%v: Spotify client not initialized", shared.ErrServiceUnavailable))
		return []models.StreamingTrack{}
	}
	tracks, err := i.spotify.SearchTracks(ctx, query, searchLimit)
	if err != nil {
		i.logger.Error("search failed", "query", query, "error", err)
		i.notifier.SetError(err.Error())
		return []models.StreamingTrack{}
	}
	if tracks == nil {
		return []models.StreamingTrack{}
	}
	return tracks
}

// HandleCallback routes a provider redirect to the session that started the
// login. It reports false when no route matches callbackURL.
func (i *Importer) HandleCallback(ctx context.Context, callbackURL string) (bool, error) {
	u, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrInvalidURL, err)
	}
	route := strings.TrimRight(u.Host+u.Path, "/")

	for _, name := range []string{SpotifyCallback, DeezerCallback} {
		if !strings.HasSuffix(route, name) {
			continue
		}
		handler, ok := i.callbacks[name]
		if !ok {
			return false, nil
		}
		return true, handler.HandleCallback(ctx, callbackURL)
	}
	return false, nil
}

func (i *Importer) client(source models.PlatformID) (services.Service, error) {
	client, ok := i.clients[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s client not initialized", shared.ErrServiceUnavailable, source.Label())
	}
	return client, nil
}

// withScheme trims rawURL and prefixes https:// when it is a recognized link
// pasted without a scheme, such as "open.spotify.com/playlist/p1".
func withScheme(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" || strings.Contains(s, "://") || strings.HasPrefix(strings.ToLower(s), "spotify:") {
		return s
	}
	if !platform.IsStreamingURL(s) {
		return s
	}
	return "https://" + strings.TrimPrefix(s, "//")
}

// validateURL accepts http(s) links and spotify: URIs.
func validateURL(rawURL string) error {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return fmt.Errorf("%w: empty link", shared.ErrInvalidURL)
	}
	if strings.HasPrefix(strings.ToLower(s), "spotify:") {
		return nil
	}
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", shared.ErrInvalidURL, rawURL)
	}
	return nil
}
