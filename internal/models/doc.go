// Package models defines the data shapes the front-end exchanges with the Melody Match backend.
//
// Everything here is owned by the backend and only displayed by the front-end:
//   - [UserProfile] : the /user/profile payload (identity, optional profile, optional music data)
//   - [CallbackResponse] : the /auth/callback success body
//
// Nothing in this package is persisted. The session record lives in the session package.
package models
