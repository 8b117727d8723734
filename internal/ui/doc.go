// Package ui implements the terminal dashboard using bubbletea's Elm architecture.
//
// The TUI mirrors the web dashboard page over the CLI's stored session:
//  1. [LoadingView] : spinner while the session is validated against /user/profile
//  2. [ProfileView] : profile card and personality traits
//  3. [ErrorView] : the server could not confirm the session; it is kept
//  4. [SignedOutView] : no session, or the server rejected it and it was erased
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// The session decisions themselves come from the flow package through a [Loader].
//
// Keys: r refreshes, l logs out, q quits, j/k scroll the traits.
package ui
