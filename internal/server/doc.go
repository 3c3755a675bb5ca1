// Package server provides HTTP routing, middleware, and OAuth login for the web interface.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers method patterns ("GET /resources/{slug}") on an
// [http.ServeMux], so handlers read path wildcards with [http.Request.PathValue].
//
// # Middleware
//
//   - [RequestLogger] logs method, path, status and duration
//   - [Recoverer] converts panics into 500 responses
//
// # OAuth Login
//
// [OAuthHandler] implements the authorization code flow against any provider that exposes
// a userinfo endpoint. The login route stores a random state in a short-lived cookie; the
// callback checks it, exchanges the code, reads the account's email and hands it to a
// [LoginFunc], which creates the application session.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
