package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/melodymatch/internal/shared"
	tu "github.com/desertthunder/melodymatch/internal/testing"
)

func TestAPIService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewAPIService trims trailing slash and defaults client", func(t *testing.T) {
		svc := NewAPIService("http://backend.test/melodymatch/", nil)
		if svc.BaseURL() != "http://backend.test/melodymatch" {
			t.Errorf("unexpected base url %s", svc.BaseURL())
		}
		if svc.httpClient != http.DefaultClient {
			t.Error("expected default client")
		}
	})

	t.Run("FetchProfile", func(t *testing.T) {
		t.Run("sends bearer token and decodes profile", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			svc := NewAPIService(backend.URL, nil)

			profile, err := svc.FetchProfile(ctx, "abc")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if profile.User.Username != "melo" {
				t.Errorf("expected username melo, got %s", profile.User.Username)
			}

			req := backend.LastRequest()
			if got := req.Header.Get("Authorization"); got != "Bearer abc" {
				t.Errorf("expected bearer header, got %q", got)
			}
		})

		t.Run("401 is unauthorized", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetProfileStatus(http.StatusUnauthorized)
			svc := NewAPIService(backend.URL, nil)

			_, err := svc.FetchProfile(ctx, "abc")
			if !IsUnauthorized(err) {
				t.Fatalf("expected unauthorized error, got %v", err)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("500 carries status", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetProfileStatus(http.StatusInternalServerError)
			svc := NewAPIService(backend.URL, nil)

			_, err := svc.FetchProfile(ctx, "abc")
			if StatusCode(err) != http.StatusInternalServerError {
				t.Fatalf("expected status 500, got %v", err)
			}
			if IsUnauthorized(err) {
				t.Error("500 must not be treated as unauthorized")
			}
			if !strings.Contains(err.Error(), "nope") {
				t.Errorf("expected body in error, got %v", err)
			}
		})

		t.Run("network failure is service unavailable", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			svc := NewAPIService("http://backend.test", client)

			_, err := svc.FetchProfile(ctx, "abc")
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Fatalf("expected ErrServiceUnavailable, got %v", err)
			}
			if StatusCode(err) != 0 {
				t.Error("network failure has no status code")
			}
		})

		t.Run("body read failure is service unavailable", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			svc := NewAPIService("http://backend.test", client)

			_, err := svc.FetchProfile(ctx, "abc")
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Fatalf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("undecodable 2xx is malformed", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("<html>")), Header: http.Header{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			svc := NewAPIService("http://backend.test", client)

			_, err := svc.FetchProfile(ctx, "abc")
			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("empty token", func(t *testing.T) {
			svc := NewAPIService("http://backend.test", nil)
			if _, err := svc.FetchProfile(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("ExchangeCode", func(t *testing.T) {
		t.Run("success", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			svc := NewAPIService(backend.URL, nil)

			cb, err := svc.ExchangeCode(ctx, "the-code")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cb.Token != "abc" || cb.UserID != "42" || cb.ExpiresIn != 3600 {
				t.Errorf("unexpected callback response %+v", cb)
			}
			if got := backend.LastRequest().URL.Query().Get("code"); got != "the-code" {
				t.Errorf("expected code forwarded, got %q", got)
			}
			if got := backend.LastRequest().Header.Get("Authorization"); got != "" {
				t.Errorf("callback must not carry credentials, got %q", got)
			}
		})

		t.Run("missing fields", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetCallback(http.StatusOK, `{"token":"abc"}`)
			svc := NewAPIService(backend.URL, nil)

			if _, err := svc.ExchangeCode(ctx, "c"); !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("non-2xx", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetCallback(http.StatusBadRequest, `{"detail":"bad code"}`)
			svc := NewAPIService(backend.URL, nil)

			_, err := svc.ExchangeCode(ctx, "c")
			if StatusCode(err) != http.StatusBadRequest {
				t.Errorf("expected status 400, got %v", err)
			}
		})

		t.Run("not json", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetCallback(http.StatusOK, `ok`)
			svc := NewAPIService(backend.URL, nil)

			if _, err := svc.ExchangeCode(ctx, "c"); !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("empty code", func(t *testing.T) {
			svc := NewAPIService("http://backend.test", nil)
			if _, err := svc.ExchangeCode(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("StartLogin", func(t *testing.T) {
		t.Run("returns body as url", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			svc := NewAPIService(backend.URL, nil)

			authURL, err := svc.StartLogin(ctx, "http://localhost:3000/login")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if authURL != backend.LoginURL {
				t.Errorf("expected %s, got %s", backend.LoginURL, authURL)
			}
			if got := backend.LastRequest().URL.Query().Get("redirect_uri"); got != "http://localhost:3000/login" {
				t.Errorf("expected redirect_uri forwarded, got %q", got)
			}
		})

		t.Run("json string body is unquoted", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetLoginURL(`"https://accounts.spotify.com/authorize?x=1"`)
			svc := NewAPIService(backend.URL, nil)

			authURL, err := svc.StartLogin(ctx, "http://localhost")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if authURL != "https://accounts.spotify.com/authorize?x=1" {
				t.Errorf("unexpected url %s", authURL)
			}
		})

		t.Run("empty body", func(t *testing.T) {
			backend := tu.NewBackendServer(t)
			backend.SetLoginURL("  ")
			svc := NewAPIService(backend.URL, nil)

			if _, err := svc.StartLogin(ctx, "http://localhost"); !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	})
}
