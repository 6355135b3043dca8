// package platform classifies pasted links by streaming platform and pulls
// native identifiers out of them. Everything here is pure: no I/O, no state.
package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/linkport/internal/models"
)

type domainRule struct {
	platform models.PlatformID
	patterns []string
}

// domainTable is matched in order against the lowercased input.
var domainTable = []domainRule{
	{models.Spotify, []string{"open.spotify.com", "spotify:"}},
	{models.Deezer, []string{"deezer.com", "deezer.page.link"}},
	{models.Qobuz, []string{"play.qobuz.com", "open.qobuz.com", "www.qobuz.com", "qobuz.com"}},
	{models.YouTubeMusic, []string{"music.youtube.com", "youtube.com/playlist"}},
	{models.AppleMusic, []string{"music.apple.com", "itunes.apple.com"}},
}

// shortLinkDomains host redirect links that carry no playlist id.
var shortLinkDomains = []string{"deezer.page.link"}

// ResolverDomains are link-resolution services whose links can be imported.
var ResolverDomains = []string{"song.link", "album.link", "odesli.co"}

var (
	spotifyPlaylistRe = regexp.MustCompile(`(?i)playlist[/:]([A-Za-z0-9]+)`)
	deezerPlaylistRe  = regexp.MustCompile(`(?i)/playlist/([0-9]+)`)
	qobuzPlaylistRe   = regexp.MustCompile(`(?i)/playlists?/(?:[^/?#]+/)?([0-9]+)`)
	spotifyRefRe      = regexp.MustCompile(`(?i)(?:open\.spotify\.com/(?:intl-[a-z]{2}(?:-[a-z]{2})?/)?|spotify:)(playlist|album|track)[/:]([A-Za-z0-9]+)`)
)

// DetectPlatform classifies url against the known domain table. Anything
// unmatched is [models.Unknown].
func DetectPlatform(url string) models.PlatformID {
	s := strings.ToLower(strings.TrimSpace(url))
	if s == "" {
		return models.Unknown
	}
	for _, rule := range domainTable {
		for _, p := range rule.patterns {
			if p == "spotify:" {
				if strings.HasPrefix(s, p) {
					return rule.platform
				}
				continue
			}
			if strings.Contains(s, p) {
				return rule.platform
			}
		}
	}
	return models.Unknown
}

// ExtractPlaylistID returns the platform-native playlist id embedded in rawURL.
func ExtractPlaylistID(rawURL string, platform models.PlatformID) (string, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", false
	}

	switch platform {
	case models.Spotify:
		return firstGroup(spotifyPlaylistRe, s)
	case models.Deezer:
		return firstGroup(deezerPlaylistRe, s)
	case models.Qobuz:
		return firstGroup(qobuzPlaylistRe, s)
	case models.YouTubeMusic:
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		list := u.Query().Get("list")
		return list, list != ""
	case models.AppleMusic:
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		for _, seg := range strings.Split(u.Path, "/") {
			if strings.HasPrefix(seg, "pl.") && len(seg) > len("pl.") {
				return seg, true
			}
		}
	}
	return "", false
}

// Kind is the type of entity a Spotify link points at.
type Kind string

const (
	KindPlaylist Kind = "playlist"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
)

// SpotifyRef is a parsed Spotify web link or URI.
type SpotifyRef struct {
	Kind Kind
	ID   string
}

// URI returns the canonical spotify:{kind}:{id} form.
func (r SpotifyRef) URI() string {
	return "spotify:" + string(r.Kind) + ":" + r.ID
}

// ParseSpotifyURL accepts open.spotify.com links (with or without a locale
// segment) and spotify: URIs for playlists, albums and tracks.
func ParseSpotifyURL(raw string) (SpotifyRef, bool) {
	m := spotifyRefRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return SpotifyRef{}, false
	}
	return SpotifyRef{Kind: Kind(strings.ToLower(m[1])), ID: m[2]}, true
}

// IsStreamingURL reports whether text looks like something worth offering
// for import: a known platform link or a resolver-service link.
func IsStreamingURL(text string) bool {
	if DetectPlatform(text) != models.Unknown {
		return true
	}
	s := strings.ToLower(strings.TrimSpace(text))
	for _, d := range ResolverDomains {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

// IsShortLink reports whether rawURL is a platform share link that only
// redirects to the real page, so no id can be read from it.
func IsShortLink(rawURL string) bool {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	for _, d := range shortLinkDomains {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}
