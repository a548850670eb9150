package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./spotremote.db" {
			t.Errorf("expected database path ./spotremote.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 5001 {
			t.Errorf("expected server port 5001, got %d", config.Server.Port)
		}
		if config.Upstream.Timeout.Duration != 10*time.Second {
			t.Errorf("expected upstream timeout 10s, got %v", config.Upstream.Timeout)
		}
		if config.Store.Driver != "sqlite" {
			t.Errorf("expected sqlite store driver, got %s", config.Store.Driver)
		}
		if config.Dispatch.VolumeStep != 10 {
			t.Errorf("expected volume step 10, got %d", config.Dispatch.VolumeStep)
		}
		if !config.Dispatch.SerializeWrites {
			t.Error("expected serialize_writes to default to true")
		}
		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Server.Addr() != "127.0.0.1:5001" {
			t.Errorf("expected addr 127.0.0.1:5001, got %s", config.Server.Addr())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080
frontend_url = ""

[upstream]
timeout = "3s"

[store]
driver = "redis"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/callback"
`

		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Server.FrontendURL != "" {
			t.Errorf("expected empty frontend url, got %s", config.Server.FrontendURL)
		}
		if config.Upstream.Timeout.Duration != 3*time.Second {
			t.Errorf("expected timeout 3s, got %v", config.Upstream.Timeout)
		}
		if config.Store.Driver != "redis" {
			t.Errorf("expected redis driver, got %s", config.Store.Driver)
		}
		if config.Dispatch.VolumeStep != 10 {
			t.Errorf("expected default volume step to survive partial config, got %d", config.Dispatch.VolumeStep)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("LoadConfig invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[upstream]\ntimeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env_secret")
		t.Setenv("SPOTREMOTE_PORT", "9999")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected env client secret, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", config.Server.Port)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("SPOTREMOTE_TEST_VALUE=from_dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("SPOTREMOTE_TEST_VALUE") })

		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"), envPath); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if got := os.Getenv("SPOTREMOTE_TEST_VALUE"); got != "from_dotenv" {
			t.Errorf("expected value from .env, got %q", got)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(c *Config)
			wantErr error
		}{
			{name: "valid", mutate: func(c *Config) {}},
			{
				name:    "missing secret",
				mutate:  func(c *Config) { c.Credentials.Spotify.ClientSecret = "" },
				wantErr: ErrMissingCredentials,
			},
			{
				name:    "unknown driver",
				mutate:  func(c *Config) { c.Store.Driver = "etcd" },
				wantErr: ErrInvalidConfig,
			},
			{
				name:    "zero volume step",
				mutate:  func(c *Config) { c.Dispatch.VolumeStep = 0 },
				wantErr: ErrInvalidConfig,
			},
			{
				name:    "zero upstream timeout",
				mutate:  func(c *Config) { c.Upstream.Timeout.Duration = 0 },
				wantErr: ErrInvalidConfig,
			},
			{
				name:    "negative upstream timeout",
				mutate:  func(c *Config) { c.Upstream.Timeout.Duration = -time.Second },
				wantErr: ErrInvalidConfig,
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()

				if tt.wantErr == nil && err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})
}
