package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodymatch/internal/services"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/storage"
)

// Manager reads, writes, validates and erases the session of one origin.
//
// Its lock serializes access to the store so a reader going through the Manager never
// observes a half-written session. Nothing coordinates two Managers over the same store:
// the last writer wins.
type Manager struct {
	store   storage.Store
	backend services.Backend
	logger  *log.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// Options configures a [Manager].
type Options struct {
	Store   storage.Store
	Backend services.Backend
	Logger  *log.Logger
	Clock   func() time.Time // defaults to time.Now
}

// NewManager creates a [Manager]. A nil store degrades to an empty in-memory one.
func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Manager{
		store:   opts.Store,
		backend: opts.Backend,
		logger:  opts.Logger,
		now:     opts.Clock,
	}
}

// NewSession builds a session established now, expiring expiresIn seconds from now when expiresIn > 0.
//
// Lifetimes beyond [MaxExpiresIn] are clamped.
func (m *Manager) NewSession(token, userID string, expiresIn int64) Session {
	now := m.now()
	s := Session{Token: token, UserID: userID, LoginTime: now}
	if expiresIn > 0 {
		s.Expiry = now.Add(time.Duration(ClampExpiresIn(expiresIn)) * time.Second)
	}
	return s
}

// AcquireFromRedirect consumes token, user_id and expires_in from u's query.
//
// With token and user_id present the session is persisted and returned as valid together with
// a copy of u without those parameters. Otherwise it falls through to [Manager.AcquireFromStore].
// u itself is never modified.
func (m *Manager) AcquireFromRedirect(u *url.URL) Acquisition {
	if u == nil {
		return m.AcquireFromStore()
	}

	q := u.Query()
	token, userID := q.Get(ParamToken), q.Get(ParamUserID)
	if token == "" || userID == "" {
		return m.AcquireFromStore()
	}

	var expiresIn int64
	if raw := q.Get(ParamExpiresIn); raw != "" {
		n, ok := parseExpiresIn(raw)
		if !ok {
			m.logger.Warn("ignoring unusable expires_in", "value", raw)
		}
		expiresIn = n
	}

	s := m.NewSession(token, userID, expiresIn)
	if err := m.Persist(s); err != nil {
		m.logger.Warn("session from redirect not persisted, using it for this load only", "error", err)
	}

	return Acquisition{
		Session:      s,
		Status:       StatusValid,
		FromRedirect: true,
		CleanURL:     StripParams(u, ParamToken, ParamUserID, ParamExpiresIn),
	}
}

// AcquireFromStore reads the persisted session.
//
// Missing token or user_id, or an unreadable store, yields [StatusAbsent]. A known expiry in
// the past yields [StatusExpired]; the caller is responsible for erasing.
func (m *Manager) AcquireFromStore() Acquisition {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.read()
	if err != nil {
		m.logger.Warn("session store unreadable, treating as signed out", "error", err)
		return Acquisition{Status: StatusAbsent}
	}
	if !s.Valid() {
		return Acquisition{Status: StatusAbsent}
	}
	if s.ExpiredAt(m.now()) {
		m.logger.Info("session expired locally", "user_id", s.UserID, "expiry", s.Expiry)
		return Acquisition{Session: s, Status: StatusExpired}
	}
	return Acquisition{Session: s, Status: StatusValid}
}

// read loads the session fields. Caller holds m.mu.
func (m *Manager) read() (Session, error) {
	var s Session

	token, ok, err := m.store.Get(KeyToken)
	if err != nil || !ok {
		return s, err
	}
	userID, ok, err := m.store.Get(KeyUserID)
	if err != nil || !ok {
		return s, err
	}
	s.Token, s.UserID = token, userID

	if raw, ok, err := m.store.Get(KeyTokenExpiry); err != nil {
		return Session{}, err
	} else if ok {
		if t, ok := parseMillis(raw); ok {
			s.Expiry = t
		} else {
			m.logger.Warn("ignoring unparsable token expiry", "value", raw)
		}
	}

	if raw, ok, err := m.store.Get(KeyLoginTime); err != nil {
		return Session{}, err
	} else if ok {
		s.LoginTime, _ = parseMillis(raw)
	}

	return s, nil
}

// ValidateRemotely confirms token with GET /user/profile.
func (m *Manager) ValidateRemotely(ctx context.Context, token string) Validation {
	if m.backend == nil {
		return Validation{Outcome: OutcomeInconclusive, Err: fmt.Errorf("%w: no backend configured", shared.ErrServiceUnavailable)}
	}

	profile, err := m.backend.FetchProfile(ctx, token)
	switch {
	case err == nil:
		return Validation{Outcome: OutcomeValid, Profile: profile, StatusCode: http.StatusOK}
	case services.IsUnauthorized(err):
		m.logger.Info("token rejected by server")
		return Validation{Outcome: OutcomeRejected, StatusCode: http.StatusUnauthorized, Err: fmt.Errorf("%w: %v", shared.ErrTokenRejected, err)}
	case errors.Is(err, shared.ErrMalformedResponse):
		m.logger.Warn("profile response malformed", "error", err)
		return Validation{Outcome: OutcomeInconclusive, StatusCode: http.StatusOK, Err: err, Malformed: true}
	default:
		status := services.StatusCode(err)
		m.logger.Warn("profile validation inconclusive", "status", status, "error", err)
		return Validation{Outcome: OutcomeInconclusive, StatusCode: status, Err: err}
	}
}

// Persist writes s to the store, replacing whatever was there.
//
// The expiry key is removed when s has no expiry. Stores implementing [storage.Batcher]
// get one atomic write; others are written key by key under the Manager's lock.
func (m *Manager) Persist(s Session) error {
	if !s.Valid() {
		return fmt.Errorf("%w: session needs token and user_id", shared.ErrInvalidInput)
	}
	if s.LoginTime.IsZero() {
		s.LoginTime = m.now()
	}

	set := map[string]string{
		KeyToken:     s.Token,
		KeyUserID:    s.UserID,
		KeyLoginTime: formatMillis(s.LoginTime),
	}
	var remove []string
	if s.HasExpiry() {
		set[KeyTokenExpiry] = formatMillis(s.Expiry)
	} else {
		remove = append(remove, KeyTokenExpiry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.write(set, remove); err != nil {
		m.logger.Error("failed to save session", "error", err)
		return err
	}

	m.logger.Debug("session saved", "user_id", s.UserID, "expires", s.HasExpiry())
	return nil
}

// write applies set and remove. Caller holds m.mu.
func (m *Manager) write(set map[string]string, remove []string) error {
	if b, ok := m.store.(storage.Batcher); ok {
		return b.Apply(set, remove)
	}

	for _, k := range remove {
		if err := m.store.Remove(k); err != nil {
			return err
		}
	}
	// token last so a failed write never leaves a readable half session behind
	for _, k := range []string{KeyUserID, KeyLoginTime, KeyTokenExpiry, KeyToken} {
		v, ok := set[k]
		if !ok {
			continue
		}
		if err := m.store.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Erase removes every session key. It never fails; store errors are logged.
func (m *Manager) Erase() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.write(nil, Keys); err != nil {
		m.logger.Error("failed to clear session", "error", err)
		return
	}
	m.logger.Debug("session cleared")
}

// ExchangeAuthorizationCode trades an OAuth code for a session via /auth/callback and persists it.
//
// Any backend failure, or a body without token and user_id, is reported as [shared.ErrAuthFailed]
// and nothing is written.
func (m *Manager) ExchangeAuthorizationCode(ctx context.Context, code string) (Session, error) {
	if m.backend == nil {
		return Session{}, fmt.Errorf("%w: no backend configured", shared.ErrAuthFailed)
	}

	cb, err := m.backend.ExchangeCode(ctx, code)
	if err != nil {
		m.logger.Warn("authorization code exchange failed", "error", err)
		return Session{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if cb == nil || !cb.Complete() {
		return Session{}, fmt.Errorf("%w: %v: missing token or user_id", shared.ErrAuthFailed, shared.ErrMalformedResponse)
	}

	s := m.NewSession(cb.Token, cb.UserID.String(), cb.ExpiresIn.Int64())
	if err := m.Persist(s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	m.logger.Info("signed in", "user_id", s.UserID)
	return s, nil
}

// StartLogin asks the backend where to send the visitor to authorize, returning to redirectURI.
func (m *Manager) StartLogin(ctx context.Context, redirectURI string) (string, error) {
	if m.backend == nil {
		return "", fmt.Errorf("%w: no backend configured", shared.ErrServiceUnavailable)
	}
	return m.backend.StartLogin(ctx, redirectURI)
}

// StripParams returns a copy of u with the named query parameters removed.
func StripParams(u *url.URL, names ...string) *url.URL {
	clean := *u
	q := clean.Query()
	for _, n := range names {
		q.Del(n)
	}
	clean.RawQuery = q.Encode()
	clean.ForceQuery = false
	return &clean
}
