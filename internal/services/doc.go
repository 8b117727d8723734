// Package services defines the [Backend] interface for the remote Melody Match API and implements it over HTTP.
//
// # Endpoints
//
//	GET /auth/login?redirect_uri=<origin>   → authorization URL as text (no auth)
//	GET /auth/callback?code=<code>          → {token, user_id, expires_in?} (no auth)
//	GET /user/profile                       → models.UserProfile (Bearer token)
//
// # Bearer Authentication
//
// [APIService.FetchProfile] wraps the configured transport in an [oauth2.Transport] with a static token source,
// so the Authorization header is attached the same way any oauth2-protected client does it.
//
// # Error Handling
//
// Failures are classified so the session layer can decide whether to erase the session:
//   - [*StatusError] : the backend answered with a non-2xx status (wraps [shared.ErrAPIRequest])
//   - [shared.ErrServiceUnavailable] : the request never got an answer (DNS, refused, reset)
//   - [shared.ErrMalformedResponse] : a 2xx body that does not decode into the expected shape
//
// No call is retried and no timeout is added beyond the caller's context.
package services
