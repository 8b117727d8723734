// Package session owns the lifecycle of the front-end's authentication session.
//
// A [Session] is persisted in an origin-scoped [storage.Store] under the melody_match_* keys.
// The [Manager] acquires it (from the backend's redirect query or from the store), validates
// it against the backend's profile endpoint, exchanges OAuth codes for it and erases it.
//
// # Local Expiry
//
// token_expiry is computed on the client as now + expires_in seconds. A session without one
// is never locally expired; only the server can reject it.
//
// # Validation Outcomes
//
//   - [OutcomeValid] : 2xx from /user/profile, profile attached
//   - [OutcomeRejected] : 401, the caller must erase
//   - [OutcomeInconclusive] : anything else; the session must be neither trusted nor erased
//
// # Storage Failures
//
// Reads that fail degrade to [StatusAbsent]. [Manager.Erase] never fails; errors are logged.
package session
