package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/server"
	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 3 * time.Minute

// authStatus is what `auth status --json` prints.
type authStatus struct {
	SignedIn  bool       `json:"signed_in"`
	UserID    string     `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
	LoginTime *time.Time `json:"login_time,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// AuthLogin signs the terminal in through the backend's Spotify flow.
//
// Starts a one-shot callback server on localhost, asks the backend for the authorization URL
// with that server as redirect_uri, opens the browser and waits for the redirect.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	m, err := r.sessions()
	if err != nil {
		return err
	}

	handler := server.NewCallbackHandler(m)
	router := server.NewBasicRouter()
	router.Use(server.Recovery(r.logger), server.Logging(r.logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", r.config.CLI.CallbackPort))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	redirectURI := fmt.Sprintf("http://%s%s", ln.Addr(), server.CallbackPath)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL, err := m.StartLogin(ctx, redirectURI)
	start := flow.OnStartLogin(authURL, err)
	if start.Kind == flow.ShowError {
		r.logger.Error("login could not start", "error", err)
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, start.Message)
	}

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser to log in with Spotify:\n%s\n\n", start.Path)
	} else {
		r.writePlain("→ Opening browser for Spotify login...\n")
		if err := r.openBrowser(start.Path); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", start.Path)
		}
	}

	timeout := r.config.CLI.LoginTimeout.Duration
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		if result.ShouldErase() {
			m.Erase()
		}
		if errors.Is(err, shared.ErrAccessDenied) {
			return fmt.Errorf("%s: %w", flow.MsgAccessDenied, err)
		}
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.writePlainln("✓ Signed in as user %s", result.Session.UserID)
	if result.Session.HasExpiry() {
		r.writePlain("Session expires %s\n", result.Session.Expiry.Local().Format(time.RFC1123))
	}
	r.writePlain("You can now use: melodymatch profile\n")
	return nil
}

// AuthStatus reports the stored session and whether the backend still accepts it.
//
// The check is a dashboard load: an expired or rejected session is erased on the way.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	d, m, err := r.driver()
	if err != nil {
		return err
	}

	acq := m.AcquireFromStore()
	a := d.Load(ctx, flow.PageDashboard, nil)
	status := newAuthStatus(acq, a)

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.SignedIn {
		return r.writePlain("✗ %s\n", status.Message)
	}

	if status.Username != "" {
		r.writePlain("✓ Signed in as %s (user %s)\n", status.Username, status.UserID)
	} else {
		r.writePlain("⚠ Signed in as user %s, not verified: %s\n", status.UserID, status.Message)
	}
	if status.LoginTime != nil {
		r.writePlain("Logged in: %s\n", status.LoginTime.Local().Format(time.RFC1123))
	}
	if status.Expiry != nil {
		r.writePlain("Expires:   %s\n", status.Expiry.Local().Format(time.RFC1123))
	}
	return nil
}

func newAuthStatus(acq session.Acquisition, a flow.Action) authStatus {
	switch a.Kind {
	case flow.Render, flow.ShowError:
		s := acq.Session
		status := authStatus{SignedIn: true, UserID: s.UserID}
		if !s.LoginTime.IsZero() {
			status.LoginTime = &s.LoginTime
		}
		if s.HasExpiry() {
			status.Expiry = &s.Expiry
		}
		if a.Kind == flow.ShowError {
			status.Message = a.Message
		} else if a.Profile != nil {
			status.Username = a.Profile.DisplayName()
		}
		return status
	}

	switch acq.Status {
	case session.StatusExpired:
		return authStatus{Message: "Session expired. Run `melodymatch auth login` to sign in again."}
	case session.StatusValid:
		return authStatus{UserID: acq.Session.UserID, Message: "Session was rejected by the server. Run `melodymatch auth login` to sign in again."}
	}
	return authStatus{Message: "Not signed in. Run `melodymatch auth login` to sign in."}
}

// AuthLogout erases the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	d, _, err := r.driver()
	if err != nil {
		return err
	}

	d.Logout()
	r.logger.Info("session erased", "origin", r.config.CLI.Origin)
	return r.writePlain("✓ Signed out\n")
}
