// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the default config.toml",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "current",
						Usage: "Write the effective configuration, including .env overrides",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect streaming accounts",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Connect spotify, deezer or qobuz",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Qobuz account email",
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Qobuz account password",
						Sources: cli.EnvVars("LINKPORT_QOBUZ_PASSWORD"),
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: loginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the connection state of every platform",
				Flags:  outputFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:  "logout",
				Usage: "Forget stored credentials for a platform",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Action: r.AuthLogout,
			},
		},
	}
}

// importCommand handles importing links and searching.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import playlists from streaming links",
		Commands: []*cli.Command{
			{
				Name:  "url",
				Usage: "Import a Spotify, Deezer, Qobuz, Apple Music or YouTube Music link",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags:  outputFlags(),
				Action: r.ImportURL,
			},
			{
				Name:  "search",
				Usage: "Search Spotify for tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags:  outputFlags(),
				Action: r.ImportSearch,
			},
		},
	}
}

// playlistsCommand manages the local library.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage imported playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List imported playlists",
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only playlists imported from this platform",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Only playlists whose name contains this text",
					},
				),
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Show a playlist and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.PlaylistsShow,
			},
			{
				Name:  "rename",
				Usage: "Rename a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistsRename,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: linkport_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "cover",
						Usage: "Download cover images for markdown exports",
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

// detectCommand reports what linkport makes of a link.
func detectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "detect",
		Usage: "Identify the platform of a link",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags:  outputFlags(),
		Action: r.Detect,
	}
}

// playerCommand drives Spotify Connect playback.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Control Spotify playback",
		Commands: []*cli.Command{
			{
				Name:  "play",
				Usage: "Play a Spotify URI or link on the active device",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "uri"},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlayerPause,
			},
			{
				Name:   "resume",
				Usage:  "Resume playback",
				Action: r.PlayerResume,
			},
			{
				Name:  "seek",
				Usage: "Seek to a position in milliseconds",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Action: r.PlayerSeek,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlayerNext,
			},
			{
				Name:   "previous",
				Usage:  "Skip to the previous track",
				Action: r.PlayerPrevious,
			},
			{
				Name:   "state",
				Usage:  "Show what is playing",
				Flags:  outputFlags(),
				Action: r.PlayerState,
			},
		},
	}
}

// serveCommand runs the callback and metrics server in the foreground.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve login callbacks and /metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: r.Serve,
	}
}
