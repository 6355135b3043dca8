package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/platform"
	"github.com/desertthunder/linkport/internal/services"
	"github.com/desertthunder/linkport/internal/shared"
)

// PlayerPlay starts a Spotify uri or link on the active device, falling back
// to the Spotify app when no device accepts it.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}
	if ref, ok := platform.ParseSpotifyURL(uri); ok {
		uri = ref.URI()
	}

	player, err := r.player()
	if err != nil {
		return err
	}
	external, err := player.Play(ctx, uri)
	if err != nil {
		return err
	}
	if external {
		return r.writeWarn("No active device, opened %s in Spotify", uri)
	}
	return r.writeOK("Playing %s", uri)
}

// PlayerPause pauses the active device.
func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.transport(ctx, "Paused", (*services.SpotifyService).Pause)
}

// PlayerResume resumes the active device.
func (r *Runner) PlayerResume(ctx context.Context, cmd *cli.Command) error {
	return r.transport(ctx, "Resumed", (*services.SpotifyService).Resume)
}

func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.transport(ctx, "Skipped to next track", (*services.SpotifyService).SkipNext)
}

func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.transport(ctx, "Skipped to previous track", (*services.SpotifyService).SkipPrevious)
}

// PlayerSeek moves the playhead to a position in milliseconds.
func (r *Runner) PlayerSeek(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("position")
	if raw == "" {
		return fmt.Errorf("%w: position", shared.ErrMissingArgument)
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return fmt.Errorf("%w: position %q must be milliseconds", shared.ErrInvalidArgument, raw)
	}

	player, err := r.player()
	if err != nil {
		return err
	}
	if err := player.Seek(ctx, ms); err != nil {
		return err
	}
	return r.writeOK("Seeked to %s", shared.FormatDuration(ms))
}

// PlayerState shows the track on the active device.
func (r *Runner) PlayerState(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player()
	if err != nil {
		return err
	}
	state, err := player.PlaybackState(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, cmd.Bool("pretty"))
	}
	if state == nil || state.Track == nil {
		return r.writeWarn("Nothing playing")
	}

	status := "Paused"
	if state.IsPlaying {
		status = "Playing"
	}
	r.writeHeader(fmt.Sprintf("%s on %s", status, state.Device))
	r.writePlain("%s - %s\n", state.Track.Artist, r.styles.title.Render(state.Track.Name))
	r.writeField("Album", state.Track.Album)
	r.writeField("Position", fmt.Sprintf("%s / %s", shared.FormatDuration(state.ProgressMs), shared.FormatDuration(state.Track.DurationMs)))
	return nil
}

func (r *Runner) player() (*services.SpotifyService, error) {
	app, err := r.deps()
	if err != nil {
		return nil, err
	}
	return app.player()
}

func (r *Runner) transport(ctx context.Context, done string, fn func(*services.SpotifyService, context.Context) error) error {
	player, err := r.player()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := fn(player, ctx); err != nil {
		return err
	}
	return r.writeOK("%s", done)
}
