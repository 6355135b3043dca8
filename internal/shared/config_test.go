package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./linkport.db" {
			t.Errorf("expected database path ./linkport.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.RedirectURI != "http://127.0.0.1:8888/spotify-callback" {
			t.Errorf("unexpected spotify redirect %s", config.Credentials.Spotify.RedirectURI)
		}

		if config.Resolver.BaseURL != "https://api.song.link/v1-alpha.1" {
			t.Errorf("unexpected resolver base url %s", config.Resolver.BaseURL)
		}

		if config.Auth.VerifierLength != 64 {
			t.Errorf("expected verifier length 64, got %d", config.Auth.VerifierLength)
		}

		if len(config.Credentials.Spotify.Scopes) == 0 {
			t.Error("expected default spotify scopes")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"

[credentials.deezer]
app_id = "12345"
secret = "shh"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Deezer.AppID != "12345" {
			t.Errorf("expected deezer app_id 12345, got %s", config.Credentials.Deezer.AppID)
		}

		if config.Resolver.UserCountry != "US" {
			t.Errorf("expected missing sections to keep defaults, got country %q", config.Resolver.UserCountry)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.toml")
		config := DefaultConfig()
		config.Credentials.Qobuz.AppID = "777"

		if err := SaveConfig(config, path); err != nil {
			t.Fatalf("SaveConfig failed: %v", err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if loaded.Credentials.Qobuz.AppID != "777" {
			t.Errorf("expected qobuz app id 777, got %s", loaded.Credentials.Qobuz.AppID)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("LINKPORT_DEEZER_SECRET=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvSpotifyClientID, "from-env")
		t.Setenv(EnvDeezerSecret, "")
		os.Unsetenv(EnvDeezerSecret)

		config := DefaultConfig()
		if err := config.ApplyEnv(envPath); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "from-env" {
			t.Errorf("expected env override, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Deezer.Secret != "from-dotenv" {
			t.Errorf("expected .env override, got %s", config.Credentials.Deezer.Secret)
		}
		os.Unsetenv(EnvDeezerSecret)
	})

	t.Run("Timeouts", func(t *testing.T) {
		if got := (HTTPConfig{}).Timeout(); got != 30*time.Second {
			t.Errorf("expected 30s default, got %v", got)
		}
		if got := (ResolverConfig{}).Timeout(); got != 15*time.Second {
			t.Errorf("expected 15s default, got %v", got)
		}
		if got := (HTTPConfig{TimeoutSeconds: 5}).Timeout(); got != 5*time.Second {
			t.Errorf("expected 5s, got %v", got)
		}
	})
}
