package flow

import (
	"context"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
)

// Sessions is the part of [session.Manager] a page load needs.
type Sessions interface {
	AcquireFromRedirect(u *url.URL) session.Acquisition
	ValidateRemotely(ctx context.Context, token string) session.Validation
	ExchangeAuthorizationCode(ctx context.Context, code string) (session.Session, error)
	Erase()
}

var _ Sessions = (*session.Manager)(nil)

// maxSteps bounds a load; the longest legal chain is OnLoad then one backend call.
const maxSteps = 4

// Driver runs page loads against a [Sessions] until they reach a terminal [Action].
type Driver struct {
	sessions Sessions
	logger   *log.Logger
}

// NewDriver creates a [Driver].
func NewDriver(s Sessions, logger *log.Logger) *Driver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Driver{sessions: s, logger: logger}
}

// Load handles one page load of page at u and returns what to show the visitor.
//
// The returned action is terminal. Its CleanURL is the first history replacement any
// step asked for, and every Erase along the way has already been performed.
func (d *Driver) Load(ctx context.Context, page Page, u *url.URL) Action {
	acq := d.sessions.AcquireFromRedirect(u)
	a := OnLoad(page, acq, u)
	d.logger.Debug("page load", "page", page, "session", acq.Status, "action", a.Kind)
	return d.Continue(ctx, page, a)
}

// Continue performs a and everything it leads to.
func (d *Driver) Continue(ctx context.Context, page Page, a Action) Action {
	clean := a.CleanURL

	for step := 0; ; step++ {
		if a.Erase {
			d.sessions.Erase()
			a.Erase = false
		}
		if a.CleanURL == "" {
			a.CleanURL = clean
		} else if clean == "" {
			clean = a.CleanURL
		}

		if a.Terminal() || step >= maxSteps {
			break
		}

		var next Action
		switch a.Kind {
		case FetchProfile:
			v := d.sessions.ValidateRemotely(ctx, a.Token)
			d.logger.Debug("session validated", "page", page, "outcome", v.Outcome, "status", v.StatusCode)
			next = OnProfile(page, v)
		case ExchangeCode:
			_, err := d.sessions.ExchangeAuthorizationCode(ctx, a.Code)
			next = OnExchange(err)
		}
		a = next
	}

	if !a.Terminal() {
		d.logger.Error("page load did not settle", "page", page, "action", a.Kind)
		return Action{Kind: ShowError, Message: MsgOAuthFailed, CleanURL: clean, State: StateError}
	}
	return a
}

// Logout erases the session and returns the redirect to the landing page.
func (d *Driver) Logout() Action {
	return d.Continue(context.Background(), PageLanding, OnLogout())
}
