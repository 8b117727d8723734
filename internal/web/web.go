// Package web serves the Melody Match front-end pages.
//
// Every browser is identified by the visitor cookie set by [server.Visitor]; its session lives in
// the store namespace named by that cookie, playing the part of the browser's local storage. Each
// page request builds a [session.Manager] over that namespace and hands the load to a [flow.Driver].
//
// Routes
//
//	GET  /            → landing; a signed-in visitor moves on to the dashboard
//	GET  /login       → login, also receives the OAuth code or error
//	GET  /login/start → asks the backend for the Spotify URL and redirects there
//	GET  /dashboard   → profile, validated against the backend on every load
//	POST /logout      → erase and return to the landing page
//	GET  /healthz     → liveness
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/server"
	"github.com/desertthunder/melodymatch/internal/services"
	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/storage"
)

// StoreFunc returns the store of one visitor.
type StoreFunc func(visitor string) storage.Store

// Pinger reports whether a dependency is reachable. [*sql.DB] is one.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures an [App].
type Options struct {
	Backend services.Backend
	Stores  StoreFunc
	Origin  string // public origin, used to build the OAuth redirect_uri
	Logger  *log.Logger
	Clock   func() time.Time
	Health  Pinger
}

// App is the web front-end.
type App struct {
	backend   services.Backend
	stores    StoreFunc
	origin    string
	logger    *log.Logger
	clock     func() time.Time
	health    Pinger
	templates templates
}

// New creates an [App], parsing its embedded templates.
func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &App{
		backend:   opts.Backend,
		stores:    opts.Stores,
		origin:    opts.Origin,
		logger:    opts.Logger,
		clock:     opts.Clock,
		health:    opts.Health,
		templates: t,
	}, nil
}

// Register adds the front-end routes to r.
func (a *App) Register(r server.Router) {
	r.Handle(http.MethodGet, flow.PathLanding, a.page(flow.PageLanding))
	r.Handle(http.MethodGet, flow.PathLogin, a.page(flow.PageLogin))
	r.Handle(http.MethodGet, flow.PathDashboard, a.page(flow.PageDashboard))
	r.Handle(http.MethodGet, "/login/start", http.HandlerFunc(a.startLogin))
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(a.logout))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.healthz))
}

// Handler returns the front-end behind the standard middleware stack.
//
// Login routes are rate limited per visitor; visits are recorded through visitors.
func (a *App) Handler(visitors server.Visitors, cfg shared.ServerConfig) http.Handler {
	r := server.NewBasicRouter()
	r.Use(
		server.Recovery(a.logger),
		server.Visitor(visitors, a.logger, strings.HasPrefix(a.origin, "https://")),
		server.Logging(a.logger),
		server.CORS(cfg.AllowedOrigins),
		server.NewRateLimiter(cfg.LoginRateLimit, flow.PathLogin).Middleware(),
	)
	a.Register(r)
	return r
}

// manager builds the session manager over the requesting visitor's store.
func (a *App) manager(r *http.Request) *session.Manager {
	visitor := server.VisitorID(r.Context())

	var store storage.Store
	if visitor != "" && a.stores != nil {
		store = a.stores(visitor)
	} else {
		a.logger.Warn("request without visitor, session will not persist", "path", r.URL.Path)
	}

	return session.NewManager(session.Options{
		Store:   store,
		Backend: a.backend,
		Logger:  shared.WithLogger(a.logger, "visitor", visitor),
		Clock:   a.clock,
	})
}

func (a *App) page(p flow.Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		driver := flow.NewDriver(a.manager(r), a.logger)
		a.respond(w, r, p, driver.Load(r.Context(), p, r.URL))
	})
}

func (a *App) startLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := a.manager(r).StartLogin(r.Context(), a.origin+flow.PathLogin)
	if err != nil {
		a.logger.Warn("could not start login", "error", err)
	}
	a.respond(w, r, flow.PageLogin, flow.OnStartLogin(authURL, err))
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	driver := flow.NewDriver(a.manager(r), a.logger)
	a.respond(w, r, flow.PageLanding, driver.Logout())
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if a.health != nil {
		if err := a.health.PingContext(r.Context()); err != nil {
			a.logger.Error("health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// respond turns a terminal action into an HTTP response.
func (a *App) respond(w http.ResponseWriter, r *http.Request, p flow.Page, act flow.Action) {
	w.Header().Set("Cache-Control", "no-store")

	switch act.Kind {
	case flow.Redirect:
		code := http.StatusFound
		if r.Method == http.MethodPost {
			code = http.StatusSeeOther
		}
		http.Redirect(w, r, act.Path, code)
		return
	case flow.Render, flow.ShowError:
	default:
		a.logger.Error("unexpected action", "page", p, "action", act)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := page{
		Title:    titles[p],
		Profile:  act.Profile,
		Error:    act.Message,
		CleanURL: act.CleanURL,
	}

	var buf bytes.Buffer
	if err := a.templates.render(&buf, p, data); err != nil {
		a.logger.Error("failed to render page", "page", p, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

var titles = map[flow.Page]string{
	flow.PageLanding:   "Welcome",
	flow.PageLogin:     "Sign in",
	flow.PageDashboard: "Dashboard",
}
