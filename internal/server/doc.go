// Package server is the HTTP boundary of the playback remote.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] with per-path method tables and a [Middleware] chain applied
// around the whole mux. Middleware runs in the order it was added.
//
// # API
//
// [API] registers the service routes:
//   - GET /login starts authorization for the session and redirects to Spotify
//   - GET /callback exchanges the code and hands the tokens to the frontend
//   - POST /control dispatches {"action": "<Tag>"}
//   - GET /validate-token echoes the upstream profile or its error object
//   - GET /current-track summarizes the playing track (204 when idle)
//   - POST /logout forgets the session credential
//   - GET /health and GET /metrics
//
// A request's credential comes from an Authorization: Bearer header when present, otherwise from the
// credential stored for its session cookie. Header credentials are never persisted.
//
// Auth failures answer 401, bad input 400, missing volume state 409 and upstream rejections 500 with
// the upstream status in "upstream_status".
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the CLI login flow's temporary callback server. It validates the state, completes
// the exchange through an [Authorizer] and delivers exactly one [OAuthResult] on its channel.
package server
