package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// APIURLEnv overrides [BackendConfig.APIURL] when set.
const APIURLEnv = "MELODY_MATCH_API_URL"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel string         `toml:"log_level"`
	Backend  BackendConfig  `toml:"backend"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	CLI      CLIConfig      `toml:"cli"`
}

// BackendConfig points at the remote Melody Match API.
type BackendConfig struct {
	APIURL string `toml:"api_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	PublicURL      string   `toml:"public_url"`
	LoginRateLimit int      `toml:"login_rate_limit"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CLIConfig contains settings for the terminal front-end.
type CLIConfig struct {
	Origin       string   `toml:"origin"`
	CallbackPort int      `toml:"callback_port"`
	LoginTimeout Duration `toml:"login_timeout"`
}

// Duration wraps [time.Duration] so it can be written as "3m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Addr returns the host:port the web front-end listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Origin returns the public origin of the web front-end, falling back to http://host:port.
func (s ServerConfig) Origin() string {
	if s.PublicURL != "" {
		return strings.TrimRight(s.PublicURL, "/")
	}
	return "http://" + s.Addr()
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A missing file is reported as [ErrMissingConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

// Validate checks the fields the front-end cannot run without.
func (c *Config) Validate() error {
	if c.Backend.APIURL == "" {
		return fmt.Errorf("%w: backend.api_url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Backend.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend.api_url %q is not an absolute URL", ErrInvalidConfig, c.Backend.APIURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.CLI.Origin == "" {
		return fmt.Errorf("%w: cli.origin is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv loads variables from the given dotenv files (missing files are ignored) and applies environment overrides.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, f, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(APIURLEnv)); v != "" {
		c.Backend.APIURL = strings.TrimRight(v, "/")
	}

	return c.Validate()
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
