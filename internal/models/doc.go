// Package models defines the domain types shared by the token manager, the command dispatcher and the HTTP layer.
//
//   - [Credential] : OAuth access/refresh token pair owned by one session
//   - [Action] : the closed set of playback commands accepted by /control
//   - [PlaybackActionRequest] : one action bound to the credential that will execute it
//   - [PlayerState] : read-through view of the upstream player, never cached past a single request
//   - [Track] : summary of the currently playing item
//
// The [CredentialStore] interface maps session IDs to credentials and is implemented in the repositories package.
package models
