package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const maxWorkers = 32

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Stremio   StremioConfig   `toml:"stremio"`
	Files     FilesConfig     `toml:"files"`
	Database  DatabaseConfig  `toml:"database"`
	Reconcile ReconcileConfig `toml:"reconcile"`
}

// StremioConfig contains remote API settings.
type StremioConfig struct {
	APIURL         string  `toml:"api_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
	UserAgent      string  `toml:"user_agent"`
}

// FilesConfig contains paths of the on-disk artifacts a run reads and writes.
type FilesConfig struct {
	Logins string `toml:"logins"`
	Addons string `toml:"addons"`
	Log    string `toml:"log"`
}

// DatabaseConfig contains run history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ReconcileConfig contains addon reconciliation settings.
type ReconcileConfig struct {
	Workers       int      `toml:"workers"`
	DryRun        bool     `toml:"dry_run"`
	DefaultAddons []string `toml:"default_addons"`
	Preserve      []string `toml:"preserve"`
}

// Timeout returns the per-request timeout for remote calls.
func (c StremioConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WorkerCount clamps the configured pool size to [1, 32].
func (c ReconcileConfig) WorkerCount() int {
	switch {
	case c.Workers <= 0:
		return 1
	case c.Workers > maxWorkers:
		return maxWorkers
	default:
		return c.Workers
	}
}

// Validate checks values that cannot be defaulted.
//
// Preserve rules are compiled separately by the classifier.
func (c *Config) Validate() error {
	if c.Stremio.APIURL == "" {
		return fmt.Errorf("%w: stremio.api_url is empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Stremio.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: stremio.api_url %q is not an absolute URL", ErrInvalidConfig, c.Stremio.APIURL)
	}
	if c.Stremio.RateLimit < 0 {
		return fmt.Errorf("%w: stremio.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Files.Logins == "" {
		return fmt.Errorf("%w: files.logins is empty", ErrInvalidConfig)
	}
	if c.Files.Addons == "" {
		return fmt.Errorf("%w: files.addons is empty", ErrInvalidConfig)
	}
	if c.Reconcile.Workers < 0 {
		return fmt.Errorf("%w: reconcile.workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
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
