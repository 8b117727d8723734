package server

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Logging logs one line per request. Query strings are never logged: they may carry tokens.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(started).Round(time.Microsecond),
			}
			if id := VisitorID(r.Context()); id != "" {
				kv = append(kv, "visitor", id)
			}

			switch {
			case rec.status >= 500:
				logger.Error("request", kv...)
			case rec.status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// Recovery turns a panicking handler into a 500.
func Recovery(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("panic recovered", "error", fmt.Sprintf("%v", recovered), "path", r.URL.Path, "stack", string(debug.Stack()))
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the listed origins to call the front-end. An empty list allows none.
func CORS(origins []string) Middleware {
	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		MaxAge:           3600,
		AllowCredentials: true,
	})

	return handler.Handler
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests to path prefixes per visitor (or per client IP before a visitor cookie exists).
type RateLimiter struct {
	perMinute int
	prefixes  []string
	idle      time.Duration

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewRateLimiter limits each client to perMinute requests on paths starting with one of prefixes.
// A non-positive perMinute disables the limit.
func NewRateLimiter(perMinute int, prefixes ...string) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		prefixes:  prefixes,
		idle:      10 * time.Minute,
		clients:   map[string]*clientLimiter{},
		now:       time.Now,
	}
}

// Middleware returns the limiter as [Middleware].
func (m *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.perMinute <= 0 || !m.applies(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if !m.limiter(clientKey(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimiter) applies(path string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (m *RateLimiter) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, c := range m.clients {
		if now.Sub(c.lastSeen) > m.idle {
			delete(m.clients, k)
		}
	}

	c, ok := m.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute)}
		m.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func clientKey(r *http.Request) string {
	if id := VisitorID(r.Context()); id != "" {
		return "visitor:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
