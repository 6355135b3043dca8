// Package server runs the small HTTP server linkport needs locally.
//
// # Routes
//
//   - /spotify-callback and /deezer-callback receive provider redirects. The
//     [CallbackHandler] rebuilds the full redirect URL and passes it to a
//     [CallbackRouter], normally the importer, which finds the session that
//     started the login.
//   - /metrics exposes the import counters of a dedicated Prometheus registry.
//   - /healthz answers with a static JSON status.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] method patterns and applies [Middleware]
// in the order added, so the first added runs outermost. [Logging] never
// records query strings because redirects carry authorization codes.
//
// # Lifecycle
//
// [New] binds the address immediately. The CLI login flow starts the server,
// opens the browser and reads [CallbackHandler.Results]; `linkport serve` calls
// [Server.Run] until interrupted.
package server
