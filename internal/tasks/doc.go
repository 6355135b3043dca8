// Package tasks orchestrates playlist imports and exports.
//
// # Core Operations
//
// [Importer] is the entry point for pasted links:
//
//  1. [Importer.ImportFromURL] : detect the platform and import
//     - Spotify, Deezer, Qobuz: read the playlist directly (metadata is best-effort)
//     - Everything else: hand the link to the cross-platform resolver
//     - Persist the result in the playlist store
//
//  2. [Importer.SearchAndImport] : Spotify search passthrough, never nil
//
//  3. [Importer.HandleCallback] : route an OAuth redirect to its session
//
// [BulkExport] writes stored playlists to disk with a small worker pool.
//
// # Progress Reporting
//
// Operations accept an optional progress channel. Sends use select with
// default, so a slow or absent reader never blocks an import.
//
// # Status and Metrics
//
// A [Notifier] mirrors the loading flag and last error for display. [Metrics]
// counts imports by source and outcome on its own Prometheus registry.
package tasks
