package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Interpreter providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderHTTP      = "http"
	ProviderNone      = "none"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Remote      RemoteConfig      `yaml:"remote"`
	Auth        AuthConfig        `yaml:"auth"`
	Sync        SyncConfig        `yaml:"sync"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig contains local HTTP API settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains local store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// InterpreterConfig selects and configures the free-text interpreter.
type InterpreterConfig struct {
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
	APIKey   string   `yaml:"-"` // env-only, never in YAML
}

// RemoteConfig contains remote store settings. An empty URL disables sync.
type RemoteConfig struct {
	URL      string   `yaml:"url"`
	Timeout  Duration `yaml:"timeout"`
	PageSize int      `yaml:"page_size"`
	APIKey   string   `yaml:"-"` // env-only, never in YAML
}

// Enabled reports whether a remote store is configured.
func (r RemoteConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	AccessToken string `yaml:"-"` // env-only; remote store access token
	APIKey      string `yaml:"-"` // env-only; protects the local API when set
}

// SyncConfig contains sync engine and session settings.
type SyncConfig struct {
	Debounce   Duration `yaml:"debounce"`
	Interval   Duration `yaml:"interval"`
	StaleAfter Duration `yaml:"stale_after"`
	Timezone   string   `yaml:"timezone"`
}

// Location returns the configured time zone, or time.Local when unset.
func (s SyncConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	QueueInterval Duration `yaml:"queue_interval"`
}

// LogConfig contains logging settings. When File is set, output goes to a
// rotating log file instead of stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("LIFTLOG_CONFIG_PATH", "config/liftlog.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit config paths.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in defaults without reading a file or the
// environment.
func Default() *Config {
	return newDefaults()
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/liftlog.db",
		},
		Interpreter: InterpreterConfig{
			Provider: ProviderAnthropic,
			Timeout:  Duration(30 * time.Second),
		},
		Remote: RemoteConfig{
			Timeout:  Duration(30 * time.Second),
			PageSize: 1000,
		},
		Sync: SyncConfig{
			Debounce:   Duration(2 * time.Second),
			Interval:   Duration(5 * time.Minute),
			StaleAfter: Duration(2 * time.Hour),
		},
		Worker: WorkerConfig{
			QueueInterval: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LIFTLOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("LIFTLOG_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("LIFTLOG_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("LIFTLOG_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("LIFTLOG_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Interpreter
	if v := os.Getenv("LIFTLOG_INTERPRETER"); v != "" {
		cfg.Interpreter.Provider = v
	}
	if v := os.Getenv("LIFTLOG_INTERPRETER_MODEL"); v != "" {
		cfg.Interpreter.Model = v
	}
	if v := os.Getenv("LIFTLOG_INTERPRETER_ENDPOINT"); v != "" {
		cfg.Interpreter.Endpoint = v
	}
	envDuration("LIFTLOG_INTERPRETER_TIMEOUT", &cfg.Interpreter.Timeout)
	// Provider SDK conventions, with an explicit override.
	switch cfg.Interpreter.Provider {
	case ProviderAnthropic:
		cfg.Interpreter.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		cfg.Interpreter.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("LIFTLOG_INTERPRETER_API_KEY"); v != "" {
		cfg.Interpreter.APIKey = v
	}

	// Remote
	if v := os.Getenv("LIFTLOG_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("LIFTLOG_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	envDuration("LIFTLOG_REMOTE_TIMEOUT", &cfg.Remote.Timeout)

	// Auth
	if v := os.Getenv("LIFTLOG_ACCESS_TOKEN"); v != "" {
		cfg.Auth.AccessToken = v
	}
	if v := os.Getenv("LIFTLOG_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Sync
	envDuration("LIFTLOG_SYNC_DEBOUNCE", &cfg.Sync.Debounce)
	envDuration("LIFTLOG_SYNC_INTERVAL", &cfg.Sync.Interval)
	envDuration("LIFTLOG_STALE_AFTER", &cfg.Sync.StaleAfter)
	if v := os.Getenv("LIFTLOG_TIMEZONE"); v != "" {
		cfg.Sync.Timezone = v
	}

	// Worker
	envDuration("LIFTLOG_QUEUE_INTERVAL", &cfg.Worker.QueueInterval)

	// Log
	if v := os.Getenv("LIFTLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIFTLOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LIFTLOG_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

// envDuration overrides *dst when key holds a parseable duration.
func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that configuration values are usable.
// In dev mode (LIFTLOG_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	switch c.Interpreter.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderNone:
	case ProviderHTTP:
		if c.Interpreter.Endpoint == "" {
			return errors.New("interpreter.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown interpreter provider %q", c.Interpreter.Provider)
	}

	if c.Sync.Debounce <= 0 || c.Sync.Interval <= 0 || c.Worker.QueueInterval <= 0 {
		return errors.New("sync and worker intervals must be positive")
	}
	if _, err := c.Sync.Location(); err != nil {
		return fmt.Errorf("invalid sync.timezone: %w", err)
	}

	if os.Getenv("LIFTLOG_DEV_MODE") == "true" {
		return nil
	}

	if c.Interpreter.APIKey == "" {
		switch c.Interpreter.Provider {
		case ProviderAnthropic:
			return errors.New("ANTHROPIC_API_KEY is required")
		case ProviderOpenAI:
			return errors.New("OPENAI_API_KEY is required")
		}
	}
	if c.Remote.Enabled() && c.Remote.APIKey == "" {
		return errors.New("LIFTLOG_REMOTE_API_KEY is required when remote.url is set")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
