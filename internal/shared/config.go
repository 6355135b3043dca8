package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Resolver    ResolverConfig    `toml:"resolver"`
	HTTP        HTTPConfig        `toml:"http"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Deezer  DeezerConfig  `toml:"deezer"`
	Qobuz   QobuzConfig   `toml:"qobuz"`
}

// SpotifyConfig contains the Spotify PKCE client settings. No secret is needed.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
}

// DeezerConfig contains the Deezer application credentials.
type DeezerConfig struct {
	AppID       string `toml:"app_id"`
	Secret      string `toml:"secret"`
	RedirectURI string `toml:"redirect_uri"`
	Perms       string `toml:"perms"`
}

// QobuzConfig contains the Qobuz application id sent as X-App-Id.
type QobuzConfig struct {
	AppID string `toml:"app_id"`
}

// ResolverConfig configures the Odesli link-resolution client.
type ResolverConfig struct {
	BaseURL         string `toml:"base_url"`
	UserCountry     string `toml:"user_country"`
	CacheSize       int    `toml:"cache_size"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// HTTPConfig bounds outbound platform requests.
type HTTPConfig struct {
	TimeoutSeconds          int     `toml:"timeout_seconds"`
	RequestsPerSecond       float64 `toml:"requests_per_second"`
	Burst                   int     `toml:"burst"`
	PlaylistCacheTTLMinutes int     `toml:"playlist_cache_ttl_minutes"`
}

// AuthConfig contains authentication handshake settings.
type AuthConfig struct {
	VerifierLength int `toml:"verifier_length"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Timeout returns the outbound request timeout, defaulting to 30 seconds.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long user playlist lists stay cached.
func (h HTTPConfig) CacheTTL() time.Duration {
	if h.PlaylistCacheTTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(h.PlaylistCacheTTLMinutes) * time.Minute
}

// Timeout returns the resolver request timeout, defaulting to 15 seconds.
func (r ResolverConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long resolved links stay cached.
func (r ResolverConfig) CacheTTL() time.Duration {
	if r.CacheTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(config *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// env keys for credentials that should stay out of config files.
const (
	EnvSpotifyClientID = "LINKPORT_SPOTIFY_CLIENT_ID"
	EnvDeezerAppID     = "LINKPORT_DEEZER_APP_ID"
	EnvDeezerSecret    = "LINKPORT_DEEZER_SECRET"
	EnvQobuzAppID      = "LINKPORT_QOBUZ_APP_ID"
)

// ApplyEnv loads envFile when it exists and overrides credentials with any
// LINKPORT_* variables set in the environment.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Credentials.Spotify.ClientID, EnvSpotifyClientID)
	override(&c.Credentials.Deezer.AppID, EnvDeezerAppID)
	override(&c.Credentials.Deezer.Secret, EnvDeezerSecret)
	override(&c.Credentials.Qobuz.AppID, EnvQobuzAppID)
	return nil
}
