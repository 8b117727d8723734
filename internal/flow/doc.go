// Package flow decides what a page load does with the session it found.
//
// Every function here is pure: it maps what the shell observed (the page, the
// [session.Acquisition], the result of a backend call) to the next [Action]. The
// shell performs the action's side effects and, for [FetchProfile] and [ExchangeCode],
// feeds the result back through [OnProfile] or [OnExchange]. See [Driver] for the loop.
//
// # Erase
//
// An action with Erase set asks the shell to remove the session before doing anything
// else. The driver performs it once per action; the decision functions never set it
// twice along one load.
//
// # Per-load States
//
//	Unauthenticated ──(local session)──▶ PendingValidation ──(2xx)──▶ Authenticated
//	      ▲                                  │       │
//	      └──────────────(401)───────────────┘       └──(5xx, network)──▶ Error
package flow
