package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	pinned     bool
	logger     *log.Logger
	output     io.Writer
	styles     *palette
	app        *App
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config pins the configuration; the --config flag is then ignored.
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	// App replaces the lazily opened database and clients.
	App *App
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	pinned := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		pinned:     pinned,
		logger:     opts.Logger,
		output:     opts.Output,
		styles:     defaultPalette(),
		app:        opts.App,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, importCommand, playlistsCommand, detectCommand, playerCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// globalFlags are accepted by every command.
func (r *Runner) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Path to a .env file with client ids and secrets",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// before loads the configuration named by --config unless one was pinned.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.pinned {
		return ctx, nil
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := r.config.ApplyEnv(cmd.String("env")); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// after releases the database opened by [Runner.deps].
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

// deps opens the database and builds the platform clients on first use.
func (r *Runner) deps() (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := NewApp(AppOptions{Config: r.config, Logger: r.logger})
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeHeader(title string) {
	r.writePlain("%s\n\n", r.styles.title.Render(title))
}

func (r *Runner) writeOK(format string, args ...any) error {
	return r.writePlain("%s\n", r.styles.ok.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (r *Runner) writeWarn(format string, args ...any) error {
	return r.writePlain("%s\n", r.styles.warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

func (r *Runner) writeField(label string, value any) {
	r.writePlain("  %s %v\n", r.styles.label.Render(label+":"), value)
}
