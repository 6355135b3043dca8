package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/server"
	"github.com/desertthunder/linkport/internal/shared"
)

const loginTimeout = 2 * time.Minute

// AuthLogin connects a platform. Spotify and Deezer go through the browser and
// the local callback server; Qobuz signs in with email and password.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("platform")
	if name == "" {
		return fmt.Errorf("%w: platform (spotify, deezer or qobuz)", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}
	sess, err := app.session(name)
	if err != nil {
		return err
	}

	switch sess.Platform() {
	case models.Qobuz:
		r.logger.Info("signing in to qobuz", "email", cmd.String("email"))
		if err := app.Qobuz.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
			return err
		}
	case models.Spotify:
		authURL, err := app.Spotify.BeginLogin()
		if err != nil {
			return err
		}
		if err := r.awaitRedirect(ctx, app, sess.Platform(), authURL, cmd); err != nil {
			return err
		}
	case models.Deezer:
		if err := r.awaitRedirect(ctx, app, sess.Platform(), app.Deezer.BeginLogin(), cmd); err != nil {
			return err
		}
	}

	st, err := sess.AuthState()
	if err != nil {
		return err
	}
	r.writeOK("Connected to %s", sess.Platform().Label())
	if st.Profile != nil {
		r.writeField("User", st.Profile.DisplayName)
		if st.Profile.Tier != "" {
			r.writeField("Plan", st.Profile.Tier)
		}
	}
	return nil
}

// awaitRedirect runs the callback server, sends the user to authURL and waits
// for the provider to redirect back.
func (r *Runner) awaitRedirect(ctx context.Context, app *App, p models.PlatformID, authURL string, cmd *cli.Command) error {
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv, err := server.New(server.Options{Addr: addr, Callbacks: app.Callbacks, Logger: r.logger})
	if err != nil {
		return err
	}
	serverErrors := srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	opened := false
	if !cmd.Bool("no-browser") {
		r.writePlain("→ Opening browser for %s authorization...\n", p.Label())
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = loginTimeout
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case res := <-app.Callbacks.Results():
		if res.Err != nil {
			return fmt.Errorf("authorization failed: %w", res.Err)
		}
		return nil
	case err, ok := <-serverErrors:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return fmt.Errorf("%w: callback server stopped", shared.ErrServiceUnavailable)
	case <-waitCtx.Done():
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	}
}

type authStatus struct {
	Platform  models.PlatformID   `json:"platform"`
	State     string              `json:"state"`
	Profile   *models.UserProfile `json:"profile,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}

// AuthStatus prints the connection state of every configured platform.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	app, err := r.deps()
	if err != nil {
		return err
	}

	statuses := []authStatus{}
	for _, sess := range app.sessions() {
		st, err := sess.AuthState()
		if err != nil {
			return err
		}
		status := authStatus{Platform: sess.Platform(), State: sess.State().String(), Profile: st.Profile}
		if !st.ExpiresAt.IsZero() {
			status.ExpiresAt = &st.ExpiresAt
		}
		statuses = append(statuses, status)
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}

	if len(statuses) == 0 {
		return r.writeWarn("No platform credentials configured. Run: linkport setup config")
	}

	r.writeHeader("Accounts")
	for _, s := range statuses {
		r.writePlain("%-8s %s\n", s.Platform.Label(), r.styles.stateStyle(s.State).Render(s.State))
		if s.Profile != nil {
			r.writeField("User", s.Profile.DisplayName)
		}
		if s.ExpiresAt != nil {
			r.writeField("Expires", s.ExpiresAt.Local().Format(time.RFC822))
		}
	}
	return nil
}

// AuthLogout clears stored credentials for one platform.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("platform"))
	if name == "" {
		return fmt.Errorf("%w: platform", shared.ErrMissingArgument)
	}

	app, err := r.deps()
	if err != nil {
		return err
	}
	sess, err := app.session(name)
	if err != nil {
		return err
	}
	if err := sess.Disconnect(); err != nil {
		return err
	}
	return r.writeOK("Disconnected from %s", sess.Platform().Label())
}
