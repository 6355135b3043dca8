// Package models defines domain entities and persistence interfaces for linkport.
//
// The package contains two categories of types:
//
// 1. Platform-neutral values produced by the service clients
//   - [StreamingTrack] : a track normalized from Spotify, Deezer or Qobuz JSON
//   - [PlaylistSummary] : playlist metadata without tracks
//   - [UserProfile] : account projection shared by all platforms
//
// 2. Persisted state owned by the storage layer
//   - [AuthState] : per-platform tokens, expiry and profile
//   - [ImportedPlaylist] : an immutable snapshot of a playlist imported from a URL
//
// The core never caches persisted state beyond one operation; it reads and writes through
// [CredentialStore] and [PlaylistStore], implemented in the repositories package.
package models
