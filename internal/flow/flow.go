package flow

import (
	"fmt"
	"net/url"

	"github.com/desertthunder/melodymatch/internal/models"
	"github.com/desertthunder/melodymatch/internal/session"
)

// Page is one of the front-end's routes.
type Page int

const (
	PageLanding Page = iota
	PageLogin
	PageDashboard
)

// Route paths.
const (
	PathLanding   = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

func (p Page) String() string {
	switch p {
	case PageLanding:
		return "landing"
	case PageLogin:
		return "login"
	case PageDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Path returns the route path of p.
func (p Page) Path() string {
	switch p {
	case PageLogin:
		return PathLogin
	case PageDashboard:
		return PathDashboard
	default:
		return PathLanding
	}
}

// PageFor maps a request path to its page.
func PageFor(path string) (Page, bool) {
	switch path {
	case PathLanding, "":
		return PageLanding, true
	case PathLogin:
		return PageLogin, true
	case PathDashboard:
		return PageDashboard, true
	default:
		return PageLanding, false
	}
}

// OAuth callback parameters read on the login page.
const (
	ParamCode  = "code"
	ParamError = "error"
	ParamState = "state"
)

// Messages shown to the visitor.
const (
	MsgAccessDenied       = "Access denied. You need to authorize the app to continue."
	MsgOAuthFailed        = "Authentication failed. Please try again."
	MsgExchangeFailed     = "Authentication failed. Please try logging in again."
	MsgServerError        = "Server error (%d). Please try again later."
	MsgUnableToConnect    = "Unable to connect. Please check your internet connection."
	MsgUnexpectedResponse = "Unexpected response from server. Please try again later."
)

// Kind discriminates [Action].
type Kind int

const (
	Render Kind = iota
	Redirect
	FetchProfile
	ExchangeCode
	ShowError
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case FetchProfile:
		return "fetch_profile"
	case ExchangeCode:
		return "exchange_code"
	case ShowError:
		return "show_error"
	default:
		return "unknown"
	}
}

// Action is the next step of a page load.
type Action struct {
	Kind Kind

	Path    string              // Redirect target
	Token   string              // FetchProfile bearer token
	Code    string              // ExchangeCode authorization code
	Message string              // ShowError text
	Profile *models.UserProfile // Render; nil renders the signed-out page

	Erase    bool   // remove the stored session first
	CleanURL string // replace the address bar with this URL; empty for none
	State    State  // where the load stands after this action
}

// Terminal reports whether a reaches the visitor directly; non-terminal actions call the backend.
func (a Action) Terminal() bool {
	return a.Kind == Render || a.Kind == Redirect || a.Kind == ShowError
}

func (a Action) String() string {
	switch a.Kind {
	case Redirect:
		return fmt.Sprintf("%v %s", a.Kind, a.Path)
	case ShowError:
		return fmt.Sprintf("%v %q", a.Kind, a.Message)
	default:
		return a.Kind.String()
	}
}

// OnLoad decides what a freshly loaded page does with what acquisition found in u or the store.
func OnLoad(page Page, acq session.Acquisition, u *url.URL) Action {
	var clean string
	if acq.CleanURL != nil {
		clean = acq.CleanURL.String()
	}

	if page == PageLogin && u != nil {
		q := u.Query()
		stripped := session.StripParams(u, ParamCode, ParamError, ParamState).String()

		// the provider refused; whatever is already stored stays
		if e := q.Get(ParamError); e != "" {
			msg := MsgOAuthFailed
			if e == "access_denied" {
				msg = MsgAccessDenied
			}
			return Action{Kind: ShowError, Message: msg, CleanURL: stripped, State: Transition(StateUnauthenticated, EventCallbackError)}
		}
		if code := q.Get(ParamCode); code != "" {
			return Action{Kind: ExchangeCode, Code: code, CleanURL: stripped, State: StateUnauthenticated}
		}
	}

	switch acq.Status {
	case session.StatusExpired:
		a := signedOut(page, EventExpired)
		a.Erase = true
		a.CleanURL = clean
		return a
	case session.StatusValid:
		state := Transition(StateUnauthenticated, EventLocalSession)
		if page == PageLogin {
			return Action{Kind: Redirect, Path: PathDashboard, CleanURL: clean, State: state}
		}
		return Action{Kind: FetchProfile, Token: acq.Session.Token, CleanURL: clean, State: state}
	default:
		a := signedOut(page, EventNoSession)
		a.CleanURL = clean
		return a
	}
}

// OnProfile decides what page does with the result of validating the session remotely.
// Only a rejection erases; an inconclusive answer leaves the session for the next load.
func OnProfile(page Page, v session.Validation) Action {
	switch v.Outcome {
	case session.OutcomeValid:
		state := Transition(StatePendingValidation, EventServerValid)
		if page == PageDashboard {
			return Action{Kind: Render, Profile: v.Profile, State: state}
		}
		return Action{Kind: Redirect, Path: PathDashboard, State: state}
	case session.OutcomeRejected:
		a := signedOut(page, EventRejected)
		a.Erase = true
		return a
	default:
		state := Transition(StatePendingValidation, EventInconclusive)
		if page != PageDashboard {
			return Action{Kind: Render, State: state}
		}
		return Action{Kind: ShowError, Message: InconclusiveMessage(v), State: state}
	}
}

// InconclusiveMessage returns the banner for a validation that neither confirmed nor rejected the session.
func InconclusiveMessage(v session.Validation) string {
	switch {
	case v.Malformed:
		return MsgUnexpectedResponse
	case v.NetworkFailure():
		return MsgUnableToConnect
	default:
		return fmt.Sprintf(MsgServerError, v.StatusCode)
	}
}

// OnExchange decides what the login page does after trading its code.
func OnExchange(err error) Action {
	if err != nil {
		return Action{Kind: ShowError, Message: MsgExchangeFailed, Erase: true, State: Transition(StateUnauthenticated, EventCallbackError)}
	}
	return Action{Kind: Redirect, Path: PathDashboard, State: Transition(StateUnauthenticated, EventExchanged)}
}

// OnLogout signs the visitor out.
func OnLogout() Action {
	return Action{Kind: Redirect, Path: PathLanding, Erase: true, State: Transition(StateAuthenticated, EventLogout)}
}

// OnStartLogin decides where "Login with Spotify" goes given the backend's answer.
func OnStartLogin(authURL string, err error) Action {
	if err != nil || authURL == "" {
		return Action{Kind: ShowError, Message: MsgUnableToConnect, State: StateUnauthenticated}
	}
	return Action{Kind: Redirect, Path: authURL, State: StateUnauthenticated}
}

// signedOut is what page shows a visitor without a usable session.
func signedOut(page Page, e Event) Action {
	state := Transition(StateUnauthenticated, e)
	if page == PageDashboard {
		return Action{Kind: Redirect, Path: PathLanding, State: state}
	}
	return Action{Kind: Render, State: state}
}
