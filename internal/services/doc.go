// Package services implements the [Service] interface for Spotify, Deezer and Qobuz.
//
// # Authentication
//
// Clients never hold tokens. Each one reads the token from its [auth.Authenticator]
// per request and attaches it the way the platform expects:
//   - Spotify: Authorization bearer header
//   - Qobuz: X-App-Id and X-User-Auth-Token headers
//   - Deezer: access_token query parameter, omitted when no session exists
//
// Spotify and Qobuz recover from a rejected token with exactly one refresh and
// retry. Deezer has no refresh; an embedded error code 300 disconnects the session.
//
// # Error Handling
//
//   - [shared.ErrNotAuthenticated] : no token stored
//   - [shared.ErrAuthExpired] : the token was rejected and could not be replaced
//   - [shared.APIError] : any other non-success response, unwrapping to [shared.ErrAPIRequest]
//   - [shared.ErrPlaybackFailed] : a Spotify transport command failed
//
// # API Mappings
//
// Each platform has one mapping function into [models.StreamingTrack]. Missing
// names become "Unknown" and missing durations 0. Tracks flagged unplayable are
// dropped from playlists but kept, flagged, in search results.
package services
