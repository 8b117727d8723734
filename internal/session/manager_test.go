package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/desertthunder/melodymatch/internal/models"
	"github.com/desertthunder/melodymatch/internal/services"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/storage"
	tu "github.com/desertthunder/melodymatch/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time         { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
}

func newManager(store storage.Store, backend services.Backend, c *clock) *Manager {
	return NewManager(Options{
		Store:   store,
		Backend: backend,
		Logger:  shared.NewLogger(io.Discard),
		Clock:   c.Now,
	})
}

// plainStore hides the Batcher implementation of MemoryStore to exercise key-by-key writes.
type plainStore struct{ inner *storage.MemoryStore }

func (p plainStore) Get(k string) (string, bool, error) { return p.inner.Get(k) }
func (p plainStore) Set(k, v string) error              { return p.inner.Set(k, v) }
func (p plainStore) Remove(k string) error              { return p.inner.Remove(k) }

func TestPersistAndAcquire(t *testing.T) {
	pairs := []struct{ token, userID string }{
		{"abc", "42"},
		{"eyJhbGciOi.payload.sig", "user-7"},
		{"t", "0"},
	}

	for _, store := range []struct {
		name string
		new  func() storage.Store
	}{
		{"batch", func() storage.Store { return storage.NewMemoryStore() }},
		{"key by key", func() storage.Store { return plainStore{storage.NewMemoryStore()} }},
	} {
		t.Run(store.name, func(t *testing.T) {
			for _, p := range pairs {
				t.Run("no expiry never expires "+p.userID, func(t *testing.T) {
					c := newClock()
					m := newManager(store.new(), nil, c)

					require.NoError(t, m.Persist(m.NewSession(p.token, p.userID, 0)))

					acq := m.AcquireFromStore()
					assert.Equal(t, StatusValid, acq.Status)
					assert.Equal(t, p.token, acq.Session.Token)
					assert.Equal(t, p.userID, acq.Session.UserID)
					assert.False(t, acq.Session.HasExpiry())

					c.Advance(10 * 365 * 24 * time.Hour)
					assert.Equal(t, StatusValid, m.AcquireFromStore().Status)
				})

				t.Run("expires after expires_in "+p.userID, func(t *testing.T) {
					for _, expiresIn := range []int64{1, 60, 3600} {
						c := newClock()
						m := newManager(store.new(), nil, c)

						require.NoError(t, m.Persist(m.NewSession(p.token, p.userID, expiresIn)))
						assert.Equal(t, StatusValid, m.AcquireFromStore().Status)

						c.Advance(time.Duration(expiresIn) * time.Second)
						assert.Equal(t, StatusValid, m.AcquireFromStore().Status, "expiry instant itself is not past")

						c.Advance(time.Millisecond)
						acq := m.AcquireFromStore()
						assert.Equal(t, StatusExpired, acq.Status)
						assert.Equal(t, p.token, acq.Session.Token)
					}
				})
			}
		})
	}

	t.Run("persist without expiry clears a previous expiry", func(t *testing.T) {
		c := newClock()
		store := storage.NewMemoryStore()
		m := newManager(store, nil, c)

		require.NoError(t, m.Persist(m.NewSession("a", "1", 60)))
		require.NoError(t, m.Persist(m.NewSession("b", "2", 0)))

		_, ok, _ := store.Get(KeyTokenExpiry)
		assert.False(t, ok)
		assert.Equal(t, "b", m.AcquireFromStore().Session.Token)
	})

	t.Run("persist is idempotent", func(t *testing.T) {
		c := newClock()
		store := storage.NewMemoryStore()
		m := newManager(store, nil, c)
		s := m.NewSession("a", "1", 60)

		require.NoError(t, m.Persist(s))
		first := store.Snapshot()
		require.NoError(t, m.Persist(s))
		assert.Equal(t, first, store.Snapshot())
		assert.Len(t, first, 4)
	})

	t.Run("persist rejects half sessions", func(t *testing.T) {
		m := newManager(storage.NewMemoryStore(), nil, newClock())
		assert.ErrorIs(t, m.Persist(Session{Token: "a"}), shared.ErrInvalidInput)
		assert.ErrorIs(t, m.Persist(Session{UserID: "1"}), shared.ErrInvalidInput)
	})

	t.Run("stored values are epoch milliseconds", func(t *testing.T) {
		c := newClock()
		store := storage.NewMemoryStore()
		m := newManager(store, nil, c)

		require.NoError(t, m.Persist(m.NewSession("abc", "42", 3600)))

		snap := store.Snapshot()
		assert.Equal(t, strconv.FormatInt(c.t.UnixMilli()+3_600_000, 10), snap[KeyTokenExpiry])
		assert.Equal(t, strconv.FormatInt(c.t.UnixMilli(), 10), snap[KeyLoginTime])
	})
}

func TestAcquireFromStore(t *testing.T) {
	t.Run("half sessions read as absent", func(t *testing.T) {
		for _, kv := range []map[string]string{
			{KeyToken: "abc"},
			{KeyUserID: "42"},
			{KeyToken: "", KeyUserID: "42"},
			{KeyTokenExpiry: "1", KeyLoginTime: "1"},
		} {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Apply(kv, nil))

			m := newManager(store, nil, newClock())
			assert.Equal(t, StatusAbsent, m.AcquireFromStore().Status, "%v", kv)
		}
	})

	t.Run("unparsable expiry is unknown expiry", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Apply(map[string]string{KeyToken: "abc", KeyUserID: "42", KeyTokenExpiry: "soon"}, nil))

		acq := newManager(store, nil, newClock()).AcquireFromStore()
		assert.Equal(t, StatusValid, acq.Status)
		assert.False(t, acq.Session.HasExpiry())
	})

	t.Run("store failure reads as absent", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Apply(map[string]string{KeyToken: "abc", KeyUserID: "42"}, nil))
		store.SetFail(true)

		assert.Equal(t, StatusAbsent, newManager(store, nil, newClock()).AcquireFromStore().Status)
	})
}

func TestErase(t *testing.T) {
	states := map[string]map[string]string{
		"empty":     {},
		"full":      {KeyToken: "abc", KeyUserID: "42", KeyTokenExpiry: "1", KeyLoginTime: "1", KeyOrigin: "x"},
		"half":      {KeyToken: "abc"},
		"unrelated": {KeyUserID: "42", "other": "kept"},
	}

	for name, kv := range states {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Apply(kv, nil))
			m := newManager(store, nil, newClock())

			m.Erase()

			assert.Equal(t, StatusAbsent, m.AcquireFromStore().Status)
			for _, k := range Keys {
				_, ok, _ := store.Get(k)
				assert.False(t, ok, k)
			}
		})
	}

	t.Run("unrelated keys survive", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Set("other", "kept"))
		newManager(store, nil, newClock()).Erase()

		v, ok, _ := store.Get("other")
		assert.True(t, ok)
		assert.Equal(t, "kept", v)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		store := storage.NewMemoryStore()
		store.SetFail(true)
		m := newManager(store, nil, newClock())

		assert.NotPanics(t, m.Erase)
		assert.NotPanics(t, func() { newManager(plainStore{store}, nil, newClock()).Erase() })
	})
}

func TestAcquireFromRedirect(t *testing.T) {
	t.Run("token user_id expires_in", func(t *testing.T) {
		c := newClock()
		store := storage.NewMemoryStore()
		m := newManager(store, nil, c)

		u, _ := url.Parse("http://localhost:3000/dashboard?token=abc&user_id=42&expires_in=3600")
		acq := m.AcquireFromRedirect(u)

		assert.Equal(t, StatusValid, acq.Status)
		assert.True(t, acq.FromRedirect)
		require.NotNil(t, acq.CleanURL)
		assert.Empty(t, acq.CleanURL.RawQuery)
		assert.Equal(t, "/dashboard", acq.CleanURL.Path)
		assert.Equal(t, "http://localhost:3000/dashboard", acq.CleanURL.String())
		assert.Contains(t, u.RawQuery, "token=abc", "input URL must not be modified")

		snap := store.Snapshot()
		assert.Equal(t, "abc", snap[KeyToken])
		assert.Equal(t, "42", snap[KeyUserID])
		expiry, err := strconv.ParseInt(snap[KeyTokenExpiry], 10, 64)
		require.NoError(t, err)
		assert.InDelta(t, c.t.UnixMilli()+3_600_000, expiry, 1000)
	})

	t.Run("other parameters are kept", func(t *testing.T) {
		m := newManager(storage.NewMemoryStore(), nil, newClock())
		u, _ := url.Parse("/dashboard?tab=music&token=abc&user_id=42")

		acq := m.AcquireFromRedirect(u)
		assert.Equal(t, "tab=music", acq.CleanURL.RawQuery)
		assert.False(t, acq.Session.HasExpiry())
	})

	t.Run("unusable expires_in means unknown expiry", func(t *testing.T) {
		for _, raw := range []string{"soon", "-5", "0"} {
			m := newManager(storage.NewMemoryStore(), nil, newClock())
			u, _ := url.Parse("/dashboard?token=abc&user_id=42&expires_in=" + raw)

			acq := m.AcquireFromRedirect(u)
			assert.Equal(t, StatusValid, acq.Status, raw)
			assert.False(t, acq.Session.HasExpiry(), raw)
		}
	})

	t.Run("fractional expires_in is truncated", func(t *testing.T) {
		c := newClock()
		m := newManager(storage.NewMemoryStore(), nil, c)
		u, _ := url.Parse("/dashboard?token=abc&user_id=42&expires_in=3600.5")

		acq := m.AcquireFromRedirect(u)
		require.True(t, acq.Session.HasExpiry())
		assert.Equal(t, c.t.Add(time.Hour), acq.Session.Expiry)
	})

	t.Run("huge expires_in stays in the future", func(t *testing.T) {
		for _, raw := range []string{"10000000000", "99999999999999999999999"} {
			c := newClock()
			store := storage.NewMemoryStore()
			m := newManager(store, nil, c)
			u, _ := url.Parse("/dashboard?token=abc&user_id=42&expires_in=" + raw)

			acq := m.AcquireFromRedirect(u)
			assert.True(t, acq.Session.Expiry.After(c.t), raw)

			expiry, err := strconv.ParseInt(store.Snapshot()[KeyTokenExpiry], 10, 64)
			require.NoError(t, err, raw)
			assert.Greater(t, expiry, c.t.UnixMilli(), raw)
			assert.Equal(t, StatusValid, m.AcquireFromStore().Status, raw)
		}
	})

	t.Run("partial params fall through to store", func(t *testing.T) {
		store := storage.NewMemoryStore()
		m := newManager(store, nil, newClock())
		require.NoError(t, m.Persist(m.NewSession("stored", "7", 0)))

		u, _ := url.Parse("/dashboard?token=abc")
		acq := m.AcquireFromRedirect(u)

		assert.False(t, acq.FromRedirect)
		assert.Nil(t, acq.CleanURL)
		assert.Equal(t, "stored", acq.Session.Token)
		assert.Equal(t, "stored", store.Snapshot()[KeyToken])
	})

	t.Run("nil url", func(t *testing.T) {
		m := newManager(storage.NewMemoryStore(), nil, newClock())
		assert.Equal(t, StatusAbsent, m.AcquireFromRedirect(nil).Status)
	})

	t.Run("store failure still yields the session", func(t *testing.T) {
		store := storage.NewMemoryStore()
		store.SetFail(true)
		m := newManager(store, nil, newClock())

		u, _ := url.Parse("/dashboard?token=abc&user_id=42")
		acq := m.AcquireFromRedirect(u)
		assert.Equal(t, StatusValid, acq.Status)
		assert.Equal(t, "abc", acq.Session.Token)
	})
}

func TestValidateRemotely(t *testing.T) {
	ctx := context.Background()

	tc := []struct {
		name    string
		err     error
		outcome Outcome
		status  int
		network   bool
		malformed bool
	}{
		{name: "2xx", outcome: OutcomeValid, status: 200},
		{name: "401", err: &services.StatusError{StatusCode: 401}, outcome: OutcomeRejected, status: 401},
		{name: "403", err: &services.StatusError{StatusCode: 403}, outcome: OutcomeInconclusive, status: 403},
		{name: "500", err: &services.StatusError{StatusCode: 500}, outcome: OutcomeInconclusive, status: 500},
		{name: "network", err: fmt.Errorf("%w: refused", shared.ErrServiceUnavailable), outcome: OutcomeInconclusive, status: 0, network: true},
		{name: "malformed", err: fmt.Errorf("%w: body", shared.ErrMalformedResponse), outcome: OutcomeInconclusive, status: 200, malformed: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			backend := &tu.FakeBackend{Profile: tu.SampleProfile(), ProfErr: tt.err}
			store := storage.NewMemoryStore()
			m := newManager(store, backend, newClock())
			require.NoError(t, m.Persist(m.NewSession("abc", "42", 0)))
			before := store.Snapshot()

			v := m.ValidateRemotely(ctx, "abc")

			assert.Equal(t, tt.outcome, v.Outcome)
			assert.Equal(t, tt.status, v.StatusCode)
			assert.Equal(t, tt.network, v.NetworkFailure())
			assert.Equal(t, tt.malformed, v.Malformed)
			assert.Equal(t, "abc", backend.LastToken)
			assert.Equal(t, before, store.Snapshot(), "validation never mutates the store")
			if tt.outcome == OutcomeValid {
				assert.Equal(t, "melo", v.Profile.User.Username)
			} else {
				assert.Error(t, v.Err)
			}
			if tt.outcome == OutcomeRejected {
				assert.ErrorIs(t, v.Err, shared.ErrTokenRejected)
			}
		})
	}

	t.Run("against http backend", func(t *testing.T) {
		server := tu.NewBackendServer(t)
		server.SetProfileStatus(http.StatusUnauthorized)
		m := newManager(storage.NewMemoryStore(), services.NewAPIService(server.URL, nil), newClock())

		assert.Equal(t, OutcomeRejected, m.ValidateRemotely(ctx, "abc").Outcome)
	})

	t.Run("no backend", func(t *testing.T) {
		m := newManager(storage.NewMemoryStore(), nil, newClock())
		assert.Equal(t, OutcomeInconclusive, m.ValidateRemotely(ctx, "abc").Outcome)
	})
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists", func(t *testing.T) {
		c := newClock()
		backend := &tu.FakeBackend{Callback: &models.CallbackResponse{Token: "abc", UserID: "42", ExpiresIn: 3600}}
		store := storage.NewMemoryStore()
		m := newManager(store, backend, c)

		s, err := m.ExchangeAuthorizationCode(ctx, "code-1")
		require.NoError(t, err)

		assert.Equal(t, "code-1", backend.LastCode)
		assert.Equal(t, "abc", s.Token)
		assert.Equal(t, c.t.Add(time.Hour), s.Expiry)
		assert.Equal(t, StatusValid, m.AcquireFromStore().Status)
	})

	t.Run("without expires_in", func(t *testing.T) {
		backend := &tu.FakeBackend{Callback: &models.CallbackResponse{Token: "abc", UserID: "42"}}
		m := newManager(storage.NewMemoryStore(), backend, newClock())

		s, err := m.ExchangeAuthorizationCode(ctx, "code-1")
		require.NoError(t, err)
		assert.False(t, s.HasExpiry())
	})

	t.Run("failures persist nothing", func(t *testing.T) {
		tc := []struct {
			name    string
			backend *tu.FakeBackend
		}{
			{"non-2xx", &tu.FakeBackend{ExchErr: &services.StatusError{StatusCode: 400}}},
			{"malformed", &tu.FakeBackend{ExchErr: fmt.Errorf("%w: missing token", shared.ErrMalformedResponse)}},
			{"incomplete body", &tu.FakeBackend{Callback: &models.CallbackResponse{Token: "abc"}}},
			{"nil body", &tu.FakeBackend{}},
			{"network", &tu.FakeBackend{ExchErr: errors.New("connection reset")}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				store := storage.NewMemoryStore()
				m := newManager(store, tt.backend, newClock())

				_, err := m.ExchangeAuthorizationCode(ctx, "code")
				assert.ErrorIs(t, err, shared.ErrAuthFailed)
				assert.Zero(t, store.Len())
			})
		}
	})

	t.Run("against http backend with fractional expires_in", func(t *testing.T) {
		c := newClock()
		server := tu.NewBackendServer(t)
		server.SetCallback(http.StatusOK, `{"token":"abc","user_id":42,"expires_in":3600.0}`)
		store := storage.NewMemoryStore()
		m := newManager(store, services.NewAPIService(server.URL, nil), c)

		s, err := m.ExchangeAuthorizationCode(ctx, "code")
		require.NoError(t, err)
		assert.Equal(t, c.t.Add(time.Hour), s.Expiry)
		assert.Equal(t, "abc", store.Snapshot()[KeyToken])
	})

	t.Run("huge expires_in from the backend stays valid", func(t *testing.T) {
		backend := &tu.FakeBackend{Callback: &models.CallbackResponse{Token: "abc", UserID: "42", ExpiresIn: 10_000_000_000}}
		m := newManager(storage.NewMemoryStore(), backend, newClock())

		_, err := m.ExchangeAuthorizationCode(ctx, "code")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, m.AcquireFromStore().Status)
	})

	t.Run("against http backend with numeric user id", func(t *testing.T) {
		server := tu.NewBackendServer(t)
		m := newManager(storage.NewMemoryStore(), services.NewAPIService(server.URL, nil), newClock())

		s, err := m.ExchangeAuthorizationCode(ctx, "code")
		require.NoError(t, err)
		assert.Equal(t, "42", s.UserID)
	})
}

func TestStripParams(t *testing.T) {
	u, _ := url.Parse("/login?code=1&state=2&error=3&keep=4")
	clean := StripParams(u, "code", "state", "error")

	assert.Equal(t, "/login?keep=4", clean.String())
	assert.Equal(t, "code=1&state=2&error=3&keep=4", u.RawQuery)
	assert.Equal(t, "/login", StripParams(u, "code", "state", "error", "keep").String())
}
