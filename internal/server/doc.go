// Package server provides HTTP routing, middleware and the CLI login callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Middleware
//
//   - [Logging] : one structured line per request, never the query string
//   - [Recovery] : panics become 500s
//   - [CORS] : cross-origin access for configured origins (rs/cors)
//   - [RateLimiter] : token buckets per visitor on the login routes (x/time/rate)
//   - [Visitor] : the visitor cookie that selects a browser's store namespace
//
// # Login Callback
//
// [CallbackHandler] serves the CLI login flow. `melodymatch auth login` starts a temporary
// server on localhost, asks the backend to redirect there, and waits for exactly one result.
// It handles a single callback and refuses replays.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
