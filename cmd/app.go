package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/linkport/internal/auth"
	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/repositories"
	"github.com/desertthunder/linkport/internal/resolver"
	"github.com/desertthunder/linkport/internal/server"
	"github.com/desertthunder/linkport/internal/services"
	"github.com/desertthunder/linkport/internal/shared"
	"github.com/desertthunder/linkport/internal/tasks"
)

// Endpoints overrides provider hosts. Empty fields keep the real ones.
type Endpoints struct {
	SpotifyAccounts string
	SpotifyAPI      string
	DeezerConnect   string
	DeezerAPI       string
	QobuzAPI        string
}

// AppOptions configures [NewApp].
type AppOptions struct {
	Config *shared.Config
	Logger *log.Logger
	// DB is used as is when set; otherwise the configured database is opened and migrated.
	DB        *sql.DB
	Endpoints Endpoints
	Opener    services.Opener
}

// App is the wired object graph shared by the commands. Platform fields are
// nil when the platform has no credentials configured.
type App struct {
	DB          *sql.DB
	Credentials models.CredentialStore
	Playlists   models.PlaylistStore

	Spotify *auth.SpotifySession
	Deezer  *auth.DeezerSession
	Qobuz   *auth.QobuzSession

	SpotifyAPI *services.SpotifyService
	DeezerAPI  *services.DeezerService
	QobuzAPI   *services.QobuzService

	Importer  *tasks.Importer
	Status    *tasks.Status
	Metrics   *tasks.Metrics
	Callbacks *server.CallbackHandler

	ownsDB bool
}

// platformSession is the part of a session the auth commands use.
type platformSession interface {
	Platform() models.PlatformID
	State() auth.State
	AuthState() (*models.AuthState, error)
	Disconnect() error
}

// NewApp opens storage and wires sessions, clients and the importer from config.
func NewApp(opts AppOptions) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	app := &App{DB: opts.DB}
	if app.DB == nil {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		app.DB = db
		app.ownsDB = true
	}

	app.Credentials = repositories.NewCredentialStore(app.DB)
	app.Playlists = repositories.NewPlaylistStore(app.DB)

	ep := opts.Endpoints
	sessionOpts := func(base string) auth.Options {
		return auth.Options{
			Store:      app.Credentials,
			Logger:     logger,
			HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout()},
			BaseURL:    base,
		}
	}
	clientOpts := func(base string) services.Options {
		o := services.OptionsFromConfig(cfg.HTTP, logger)
		o.BaseURL = base
		return o
	}

	deps := tasks.Deps{
		Store:     app.Playlists,
		Logger:    logger,
		Callbacks: map[string]tasks.CallbackHandler{},
	}

	if sess, err := auth.NewSpotifySession(cfg.Credentials.Spotify, cfg.Auth.VerifierLength, sessionOpts(ep.SpotifyAccounts)); err != nil {
		logger.Debug("spotify disabled", "reason", err)
	} else {
		app.Spotify = sess
		app.SpotifyAPI = services.NewSpotifyService(sess, clientOpts(ep.SpotifyAPI))
		if opts.Opener != nil {
			app.SpotifyAPI.SetOpener(opts.Opener)
		}
		sess.SetProfileFetcher(app.SpotifyAPI.UserProfile)
		deps.Spotify = app.SpotifyAPI
		deps.Callbacks[tasks.SpotifyCallback] = sess
	}

	if sess, err := auth.NewDeezerSession(cfg.Credentials.Deezer, sessionOpts(ep.DeezerConnect)); err != nil {
		logger.Debug("deezer disabled", "reason", err)
	} else {
		app.Deezer = sess
		app.DeezerAPI = services.NewDeezerService(sess, clientOpts(ep.DeezerAPI))
		sess.SetProfileFetcher(app.DeezerAPI.UserProfile)
		deps.Deezer = app.DeezerAPI
		deps.Callbacks[tasks.DeezerCallback] = sess
	}

	if sess, err := auth.NewQobuzSession(cfg.Credentials.Qobuz, sessionOpts(ep.QobuzAPI)); err != nil {
		logger.Debug("qobuz disabled", "reason", err)
	} else {
		app.Qobuz = sess
		app.QobuzAPI = services.NewQobuzService(sess, clientOpts(ep.QobuzAPI))
		sess.SetProfileFetcher(app.QobuzAPI.UserProfile)
		deps.Qobuz = app.QobuzAPI
	}

	deps.Links = resolver.NewOdesliClient(cfg.Resolver, logger)

	app.Status = &tasks.Status{}
	app.Metrics = tasks.NewMetrics()
	deps.Notifier = app.Status
	deps.Metrics = app.Metrics

	app.Importer = tasks.NewImporter(deps)
	app.Callbacks = server.NewCallbackHandler(app.Importer, logger)
	return app, nil
}

func openDatabase(cfg shared.DatabaseConfig) (*sql.DB, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close releases the database when the app opened it.
func (a *App) Close() error {
	if a.ownsDB && a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// session returns the session for a platform name.
func (a *App) session(name string) (platformSession, error) {
	p := models.PlatformID(strings.ToLower(strings.TrimSpace(name)))
	var sess platformSession
	switch p {
	case models.Spotify:
		if a.Spotify != nil {
			sess = a.Spotify
		}
	case models.Deezer:
		if a.Deezer != nil {
			sess = a.Deezer
		}
	case models.Qobuz:
		if a.Qobuz != nil {
			sess = a.Qobuz
		}
	default:
		return nil, fmt.Errorf("%w: platform %q (want spotify, deezer or qobuz)", shared.ErrInvalidArgument, name)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s credentials are not configured", shared.ErrMissingCredentials, p.Label())
	}
	return sess, nil
}

// sessions lists the configured sessions in display order.
func (a *App) sessions() []platformSession {
	var out []platformSession
	for _, name := range []string{"spotify", "deezer", "qobuz"} {
		if sess, err := a.session(name); err == nil {
			out = append(out, sess)
		}
	}
	return out
}

func (a *App) player() (*services.SpotifyService, error) {
	if a.SpotifyAPI == nil {
		return nil, fmt.Errorf("%w: Spotify credentials are not configured", shared.ErrMissingCredentials)
	}
	return a.SpotifyAPI, nil
}
