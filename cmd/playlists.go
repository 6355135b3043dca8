package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
	"github.com/desertthunder/linkport/internal/tasks"
)

// PlaylistsList lists imported playlists, newest first.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	app, err := r.deps()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if source := cmd.String("source"); source != "" {
		p, err := models.ParsePlatform(strings.ToLower(source))
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		criteria["source"] = p
	}
	if name := cmd.String("name"); name != "" {
		criteria["name"] = name
	}

	playlists, err := app.Playlists.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}
	if len(playlists) == 0 {
		return r.writeWarn("No playlists imported yet. Run: linkport import url <link>")
	}

	r.writeHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%s %s\n", r.styles.title.Render(p.Name), r.styles.help.Render(fmt.Sprintf("(%d tracks)", p.TrackCount)))
		r.writeField("ID", p.ID)
		r.writeField("Source", p.Source.Label())
		r.writeField("Imported", p.ImportedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// PlaylistsShow prints one playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}
	playlist, err := app.Playlists.Get(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writeHeader(playlist.Name)
	r.writeField("Source", playlist.Source.Label())
	if playlist.SourceURL != "" {
		r.writeField("Link", playlist.SourceURL)
	}
	r.writeField("Tracks", playlist.TrackCount)
	r.writePlain("\n")
	r.writeTracks(playlist.Tracks)
	return nil
}

// PlaylistsRename changes the display name of a stored playlist.
func (r *Runner) PlaylistsRename(ctx context.Context, cmd *cli.Command) error {
	id, name := cmd.StringArg("id"), strings.TrimSpace(cmd.StringArg("name"))
	if id == "" || name == "" {
		return fmt.Errorf("%w: id and name", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}
	playlist, err := app.Playlists.Get(id)
	if err != nil {
		return err
	}

	old := playlist.Name
	playlist.Name = name
	if err := app.Playlists.Update(playlist); err != nil {
		return err
	}
	return r.writeOK("Renamed %q to %q", old, name)
}

// PlaylistsRemove deletes a playlist and its tracks.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}
	if err := app.Playlists.Remove(id); err != nil {
		return err
	}
	return r.writeOK("Removed %s", id)
}

// PlaylistsExport writes the named playlists, or the whole library, to disk.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	app, err := r.deps()
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		summaries, err := app.Playlists.List(nil)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return r.writeWarn("Nothing to export")
	}

	playlists := make([]*models.ImportedPlaylist, 0, len(ids))
	for _, id := range ids {
		p, err := app.Playlists.Get(id)
		if err != nil {
			return err
		}
		playlists = append(playlists, p)
	}

	progress := make(chan tasks.ProgressUpdate, len(playlists))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			style := r.styles.help
			if strings.Contains(u.Message, "✗") {
				style = r.styles.err
			}
			r.writePlain("%s\n", style.Render(u.Message))
		}
	}()

	result, err := tasks.BulkExport(ctx, progress, playlists, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		Cover:      cmd.Bool("cover"),
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlainln("%s", r.styles.title.Render("Export complete"))
	r.writeField("Exported", fmt.Sprintf("%d/%d", result.SuccessfulExports, result.TotalPlaylists))
	r.writeField("Directory", result.OutputDirectory)
	r.writeField("Manifest", result.ManifestPath)
	if result.FailedExports > 0 {
		return r.writeWarn("%d playlists failed to export", result.FailedExports)
	}
	return nil
}
