// Package repositories implements SQLite persistence for linkport.
//
// Two stores live here:
//   - [CredentialStore] : one auth_states row per platform, with per-platform
//     serialized writes and an atomic read-modify-write [CredentialStore.Update]
//   - [PlaylistStore] : imported playlist snapshots and their ordered tracks
//
// Imported playlists carry a sequence number for stable listing order independent of ids and
// import timestamps. The [NextSequence] function atomically increments per-table sequence counters
// in dedicated sequence tables. Removing a playlist is a soft delete via deleted_at.
package repositories
