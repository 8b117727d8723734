package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
)

// CallbackPath is where the CLI asks the backend to send the browser back.
const CallbackPath = "/callback"

// CallbackSessions is what [CallbackHandler] needs from [session.Manager].
type CallbackSessions interface {
	AcquireFromRedirect(u *url.URL) session.Acquisition
	ExchangeAuthorizationCode(ctx context.Context, code string) (session.Session, error)
}

// CallbackResult is the outcome of the CLI login round trip.
type CallbackResult struct {
	Session session.Session
	err     error
	erase   bool
}

func (c CallbackResult) Error() error {
	return c.err
}

// ShouldErase reports whether the failure invalidates any stored session.
//
// A failed or malformed code exchange does; an OAuth error from the provider does not.
func (c CallbackResult) ShouldErase() bool {
	return c.erase
}

// CallbackHandler receives the backend's redirect on localhost during `auth login`.
//
// The redirect either carries a session directly (token, user_id, expires_in) or an OAuth
// code to exchange, or an OAuth error. The session is persisted through [CallbackSessions]
// and one result is sent on [CallbackHandler.Result]. Later hits are refused.
type CallbackHandler struct {
	sessions   CallbackSessions
	resultChan chan CallbackResult
	once       sync.Once
	hit        bool
	mu         sync.Mutex
}

// NewCallbackHandler creates a [CallbackHandler] persisting through sessions.
func NewCallbackHandler(sessions CallbackSessions) *CallbackHandler {
	return &CallbackHandler{
		sessions:   sessions,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{CallbackPath}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		err := fmt.Errorf("%w: %s", shared.ErrAuthFailed, e)
		if e == "access_denied" {
			err = fmt.Errorf("%w: you need to authorize the app to continue", shared.ErrAccessDenied)
		}
		h.Send(CallbackResult{err: err})
		writeCallbackPage(w, http.StatusBadRequest, "Authorization Failed", "Return to the terminal for details.")
		return
	}

	if acq := h.sessions.AcquireFromRedirect(r.URL); acq.FromRedirect {
		h.Send(CallbackResult{Session: acq.Session})
		writeCallbackPage(w, http.StatusOK, "Authorization Successful", "You can close this window and return to the terminal.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(CallbackResult{err: fmt.Errorf("%w: callback carried neither a session nor a code", shared.ErrAuthFailed), erase: true})
		writeCallbackPage(w, http.StatusBadRequest, "Authorization Failed", "The login response was incomplete.")
		return
	}

	s, err := h.sessions.ExchangeAuthorizationCode(r.Context(), code)
	if err != nil {
		h.Send(CallbackResult{err: err, erase: true})
		writeCallbackPage(w, http.StatusBadGateway, "Authorization Failed", "Authentication failed. Please try logging in again.")
		return
	}

	h.Send(CallbackResult{Session: s})
	writeCallbackPage(w, http.StatusOK, "Authorization Successful", "You can close this window and return to the terminal.")
}

// Send sends the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving login completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func writeCallbackPage(w http.ResponseWriter, status int, title, message string) {
	color := "#1DB954"
	if status >= 400 {
		color = "#E22134"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s · Melody Match</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: %[3]s; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
    <script>window.history.replaceState({}, document.title, window.location.pathname);</script>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message), color)
}
