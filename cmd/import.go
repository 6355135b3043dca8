package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/platform"
	"github.com/desertthunder/linkport/internal/shared"
	"github.com/desertthunder/linkport/internal/tasks"
)

// ImportURL imports the playlist behind a link into the library.
func (r *Runner) ImportURL(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	stop := r.watchProgress(app.Importer, !useJSON)
	playlist, err := app.Importer.ImportFromURL(ctx, rawURL)
	stop()
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writeOK("Imported %q", playlist.Name)
	r.writeField("ID", playlist.ID)
	r.writeField("Source", playlist.Source.Label())
	r.writeField("Tracks", playlist.TrackCount)
	return nil
}

// watchProgress prints importer progress until the returned func is called.
func (r *Runner) watchProgress(imp *tasks.Importer, show bool) func() {
	if !show {
		return func() {}
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	imp.SetProgress(progress)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			r.writePlain("%s\n", r.styles.help.Render("→ "+u.Message))
		}
	}()

	return func() {
		imp.SetProgress(nil)
		close(progress)
		wg.Wait()
	}
}

// ImportSearch searches Spotify and lists the matches.
func (r *Runner) ImportSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}

	tracks := app.Importer.SearchAndImport(ctx, query)
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writeWarn("No tracks found for %q", query)
	}
	r.writeHeader(fmt.Sprintf("%d results for %q", len(tracks), query))
	r.writeTracks(tracks)
	return nil
}

func (r *Runner) writeTracks(tracks []models.StreamingTrack) {
	for i, t := range tracks {
		line := fmt.Sprintf("%d. %s - %s [%s]", i+1, t.Artist, t.Name, shared.FormatDuration(t.DurationMs))
		if !t.IsPlayable {
			line += " " + r.styles.warn.Render("(unavailable)")
		}
		r.writePlain("%s\n", line)
		r.writePlain("   %s\n", r.styles.help.Render(t.PlayableURI))
	}
}

type detection struct {
	URL        string            `json:"url"`
	Platform   models.PlatformID `json:"platform"`
	Label      string            `json:"label"`
	Streamable bool              `json:"streamable"`
	Importable bool              `json:"importable"`
	PlaylistID string            `json:"playlist_id,omitempty"`
	Kind       platform.Kind     `json:"kind,omitempty"`
}

// Detect reports the platform of a link and the id linkport would import.
func (r *Runner) Detect(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	p := platform.DetectPlatform(rawURL)
	d := detection{
		URL:        rawURL,
		Platform:   p,
		Label:      p.Label(),
		Streamable: p.Streamable(),
		Importable: platform.IsStreamingURL(rawURL),
	}
	if ref, ok := platform.ParseSpotifyURL(rawURL); ok && p == models.Spotify {
		d.Kind = ref.Kind
		d.PlaylistID = ref.ID
	} else if id, ok := platform.ExtractPlaylistID(rawURL, p); ok {
		d.Kind = platform.KindPlaylist
		d.PlaylistID = id
	}

	if cmd.Bool("json") {
		return r.writeJSON(d, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", r.styles.title.Render(d.Label))
	if d.Streamable {
		r.writeField("Import", "direct")
	} else if d.Importable {
		r.writeField("Import", "resolved to Spotify")
	} else {
		r.writeField("Import", "unsupported")
	}
	if d.PlaylistID != "" {
		r.writeField(string(d.Kind), d.PlaylistID)
	}
	return nil
}
