// package services defines interface Backend for interacting with the Melody Match API
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/melodymatch/internal/models"
	"github.com/desertthunder/melodymatch/internal/shared"
)

// Backend is the remote service that performs the OAuth exchange and owns user profiles.
type Backend interface {
	// StartLogin asks the backend for the Spotify authorization URL that returns to redirectURI.
	StartLogin(ctx context.Context, redirectURI string) (string, error)

	// ExchangeCode trades an OAuth authorization code for a session token.
	ExchangeCode(ctx context.Context, code string) (*models.CallbackResponse, error)

	// FetchProfile loads the profile of the user the bearer token belongs to.
	FetchProfile(ctx context.Context, token string) (*models.UserProfile, error)
}

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d, body: %s", shared.ErrAPIRequest, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return shared.ErrAPIRequest }

// StatusCode extracts the HTTP status from err, returning 0 when err is not a [*StatusError].
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 answer from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
