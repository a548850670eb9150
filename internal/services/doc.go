// Package services holds the OAuth token lifecycle and the playback command dispatcher.
//
// # Token Manager
//
// [TokenManager] wraps [oauth2.Config] for Spotify's authorization-code flow:
//   - BeginAuthorization clears the session and returns the consent URL
//   - CompleteAuthorization exchanges the code and stores the token pair
//   - Refresh trades a refresh token for a new access token, keeping the old refresh token when none is returned
//   - EnsureValid refreshes only once the access token has expired
//
// Token endpoint rejections become a [shared.UpstreamError] carrying the status and body.
//
// # Dispatcher
//
// [Dispatcher] maps each [models.Action] onto one or two Web API calls through a [Player].
// VolumeUp, VolumeDown, Shuffle and Loop read the player state first and write the derived value.
//
// A 401 from upstream triggers one refresh and one retry per dispatch. A second 401 is reported as
// [shared.ErrNotAuthenticated].
//
// # Spotify Client
//
// [SpotifyClient] is stateless with respect to credentials; each call takes the access token to use.
// Requests pass through a [rate.Limiter] and are counted in the Prometheus collectors in metrics.go.
package services
