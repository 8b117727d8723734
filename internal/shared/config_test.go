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

		if config.Database.Path != "./melodymatch.db" {
			t.Errorf("expected database path ./melodymatch.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Backend.APIURL != "https://thecodeworks.in/melodymatch" {
			t.Errorf("unexpected backend url %s", config.Backend.APIURL)
		}

		if config.CLI.LoginTimeout.Duration != 3*time.Minute {
			t.Errorf("expected login timeout 3m, got %v", config.CLI.LoginTimeout)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("Origin", func(t *testing.T) {
		s := ServerConfig{Host: "127.0.0.1", Port: 3000}
		if got := s.Origin(); got != "http://127.0.0.1:3000" {
			t.Errorf("Origin() = %s", got)
		}

		s.PublicURL = "https://melody.example/"
		if got := s.Origin(); got != "https://melody.example" {
			t.Errorf("Origin() with public url = %s", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

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
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `log_level = "debug"

[backend]
api_url = "http://localhost:9000"

[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[cli]
origin = "laptop"
login_timeout = "45s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.APIURL != "http://localhost:9000" {
			t.Errorf("expected backend url http://localhost:9000, got %s", config.Backend.APIURL)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.CLI.Origin != "laptop" {
			t.Errorf("expected cli origin laptop, got %s", config.CLI.Origin)
		}
		if config.CLI.LoginTimeout.Duration != 45*time.Second {
			t.Errorf("expected login timeout 45s, got %v", config.CLI.LoginTimeout)
		}
		if config.CLI.CallbackPort != DefaultConfig().CLI.CallbackPort {
			t.Errorf("unset fields should keep defaults, got callback port %d", config.CLI.CallbackPort)
		}
	})

	t.Run("LoadConfig rejects bad values", func(t *testing.T) {
		tc := []struct {
			name string
			body string
		}{
			{name: "relative api url", body: "[backend]\napi_url = \"melody\"\n"},
			{name: "bad duration", body: "[cli]\nlogin_timeout = \"soon\"\n"},
			{name: "port out of range", body: "[server]\nport = 70000\n"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tt.body), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}
				if _, err := LoadConfig(configPath); err == nil {
					t.Error("expected LoadConfig to fail")
				}
			})
		}
	})

	t.Run("LoadConfig reports a missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("MELODY_MATCH_API_URL=http://env.example/api/\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv(APIURLEnv) })

		config := DefaultConfig()
		if err := config.ApplyEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Backend.APIURL != "http://env.example/api" {
			t.Errorf("expected env override, got %s", config.Backend.APIURL)
		}
	})

	t.Run("ApplyEnv invalid override", func(t *testing.T) {
		t.Setenv(APIURLEnv, "::not a url")

		config := DefaultConfig()
		err := config.ApplyEnv()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
