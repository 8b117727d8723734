// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/desertthunder/melodymatch/internal/models"
)

// FakeBackend is a test double for services.Backend.
//
// Each call is counted; the configured result for that endpoint is returned.
type FakeBackend struct {
	mu sync.Mutex

	AuthURL   string
	LoginErr  error
	Callback  *models.CallbackResponse
	ExchErr   error
	Profile   *models.UserProfile
	ProfErr   error
	LastToken string
	LastCode  string

	LastRedirectURI string

	LoginCalls    int
	ExchangeCalls int
	ProfileCalls  int
}

func (f *FakeBackend) StartLogin(ctx context.Context, redirectURI string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	f.LastRedirectURI = redirectURI
	return f.AuthURL, f.LoginErr
}

func (f *FakeBackend) ExchangeCode(ctx context.Context, code string) (*models.CallbackResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExchangeCalls++
	f.LastCode = code
	if f.ExchErr != nil {
		return nil, f.ExchErr
	}
	return f.Callback, nil
}

func (f *FakeBackend) FetchProfile(ctx context.Context, token string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProfileCalls++
	f.LastToken = token
	if f.ProfErr != nil {
		return nil, f.ProfErr
	}
	return f.Profile, nil
}

// SampleProfile returns a fully populated profile.
func SampleProfile() *models.UserProfile {
	return &models.UserProfile{
		User: models.User{ID: 42, Username: "melo", Email: "melo@example.com"},
		Profile: &models.Profile{
			Bio:       "crate digger",
			Age:       29,
			Location:  "Lisbon",
			Interests: []string{"jazz", "techno"},
		},
		MusicData: &models.MusicData{
			PersonalityVector: []float64{0.25, 0.75, 0.5},
			LastUpdated:       "2026-10-01T12:00:00Z",
		},
	}
}

// BackendServer is an httptest server speaking the backend's three endpoints.
type BackendServer struct {
	*httptest.Server

	mu            sync.Mutex
	ProfileStatus int
	Profile       *models.UserProfile
	CallbackBody  string
	CallbackCode  int
	LoginURL      string
	Requests      []*http.Request
}

// NewBackendServer starts a [BackendServer] answering 200 with [SampleProfile] by default.
// It is closed when the test ends.
func NewBackendServer(t *testing.T) *BackendServer {
	t.Helper()

	b := &BackendServer{
		ProfileStatus: http.StatusOK,
		Profile:       SampleProfile(),
		CallbackCode:  http.StatusOK,
		CallbackBody:  `{"token":"abc","user_id":42,"expires_in":3600}`,
		LoginURL:      "https://accounts.spotify.com/authorize?client_id=test",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		b.mu.Lock()
		loginURL := b.LoginURL
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(loginURL))
	})
	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		b.mu.Lock()
		code, body := b.CallbackCode, b.CallbackBody
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		b.mu.Lock()
		status, profile := b.ProfileStatus, b.Profile
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			_ = json.NewEncoder(w).Encode(profile)
			return
		}
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// SetProfileStatus changes the status /user/profile answers with.
func (b *BackendServer) SetProfileStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ProfileStatus = status
}

// SetCallback changes the /auth/callback answer.
func (b *BackendServer) SetCallback(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CallbackCode = status
	b.CallbackBody = body
}

// SetLoginURL changes the /auth/login answer.
func (b *BackendServer) SetLoginURL(u string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoginURL = u
}

// LastRequest returns the most recent request, or nil.
func (b *BackendServer) LastRequest() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Requests) == 0 {
		return nil
	}
	return b.Requests[len(b.Requests)-1]
}

// RequestCount returns how many requests hit path.
func (b *BackendServer) RequestCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.Requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

func (b *BackendServer) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Requests = append(b.Requests, r.Clone(context.Background()))
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// Redirect returns the URL the backend sends the browser to after login.
func (f *FakeBackend) Redirect() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LastRedirectURI
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}
