package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodymatch/internal/shared"
)

// VisitorCookie names the cookie that identifies a browser. Its value selects the browser's store namespace.
const VisitorCookie = "melody_match_visitor"

type visitorKey struct{}

// Visitors records when a visitor was last seen.
type Visitors interface {
	Touch(id string, t time.Time) error
}

// VisitorID returns the visitor identified by [Visitor], or "" outside it.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

// WithVisitorID returns ctx carrying id.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorKey{}, id)
}

// Visitor assigns every browser a random identifier kept in [VisitorCookie] and records the visit.
// Cookies holding anything but a UUID are replaced. secure marks the cookie HTTPS-only.
func Visitor(visitors Visitors, logger *log.Logger, secure bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(VisitorCookie); err == nil {
				id, _ = shared.CanonicalID(c.Value)
			}

			if id == "" {
				id = shared.GenerateID()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if visitors != nil {
				if err := visitors.Touch(id, time.Now()); err != nil {
					logger.Warn("failed to record visit", "visitor", id, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), id)))
		})
	}
}
