// Package config provides configuration management for SiteSync.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (with SITESYNC_ prefix)
//   - .env files
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml, ~/.sitesync/config.yaml, /etc/sitesync/config.yaml)
//  3. .env files
//  4. Environment variables (SITESYNC_ prefix)
//
// # Environment Variables
//
// Use the SITESYNC_ prefix and underscores for nested keys:
//   - SITESYNC_SERVER_PORT=8080
//   - SITESYNC_DATABASE_PATH=/var/lib/sitesync/sitesync.db
//   - SITESYNC_LOGGING_LEVEL=debug
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SITESYNC"

// Config is the root configuration structure for SiteSync.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database is the SQLite store the engine reconciles into
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Declarations lists the files and directories holding site declarations
	Declarations DeclarationsConfig `mapstructure:"declarations" yaml:"declarations"`

	// Placeholders are the values ${name} tokens in paths and hostnames
	// expand to, before the environment is consulted
	Placeholders map[string]string `mapstructure:"placeholders" yaml:"placeholders"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`

	Integrity IntegrityConfig `mapstructure:"integrity" yaml:"integrity"`
}

// ServerConfig contains HTTP server configuration for the admin API.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port" yaml:"port"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Debug enables echo debug mode and detailed error payloads
	Debug bool `mapstructure:"debug" yaml:"debug"`

	TLSEnabled bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCert    string `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey     string `mapstructure:"tls_key" yaml:"tls_key"`
}

// DatabaseConfig contains the SQLite store settings.
type DatabaseConfig struct {
	// Path is the database file, created on first use
	Path string `mapstructure:"path" yaml:"path"`

	// BusyTimeout is how long a writer waits for a lock held elsewhere
	BusyTimeout time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// DeclarationsConfig locates declaration files.
type DeclarationsConfig struct {
	// Paths are files or directories; directories are read for
	// .yaml, .yml and .hcl files
	Paths []string `mapstructure:"paths" yaml:"paths"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log format (json, console)
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// SecurityConfig contains security and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// APIKeys, when set, are required on mutating API requests
	APIKeys []string `mapstructure:"api_keys" yaml:"api_keys"`
}

// ReconcileConfig controls which sites an apply touches.
type ReconcileConfig struct {
	// Sites restricts an apply to these site ids; empty means all
	Sites []string `mapstructure:"sites" yaml:"sites"`

	// ContinueOnError keeps applying remaining sites after one fails
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`

	// Interval makes the server re-apply declarations.paths periodically; 0 disables it
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// IntegrityConfig controls store audits.
type IntegrityConfig struct {
	// AuditLog is a JSON lines file recording scans and repairs; empty disables it
	AuditLog string `mapstructure:"audit_log" yaml:"audit_log"`

	// MinHealthScore makes the audit command fail below this score
	MinHealthScore int `mapstructure:"min_health_score" yaml:"min_health_score"`

	// ScanInterval makes the server scan the store periodically; 0 disables it
	ScanInterval time.Duration `mapstructure:"scan_interval" yaml:"scan_interval"`
}

var cfg *Config

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.sitesync")
		v.AddConfigPath("/etc/sitesync")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			// A missing explicit file falls back to defaults
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	_ = v.Unmarshal(c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("database.path", "./data/sitesync.db")
	v.SetDefault("database.busy_timeout", "5s")

	v.SetDefault("declarations.paths", []string{"./sites"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("reconcile.continue_on_error", true)
	v.SetDefault("reconcile.interval", "0s")

	v.SetDefault("integrity.audit_log", "")
	v.SetDefault("integrity.min_health_score", 0)
	v.SetDefault("integrity.scan_interval", "0s")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("database busy_timeout must not be negative")
	}

	if cfg.Server.TLSEnabled && (cfg.Server.TLSCert == "" || cfg.Server.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key are required when tls is enabled")
	}

	if cfg.Reconcile.Interval < 0 || cfg.Integrity.ScanInterval < 0 {
		return fmt.Errorf("reconcile interval and integrity scan_interval must not be negative")
	}

	if cfg.Integrity.MinHealthScore < 0 || cfg.Integrity.MinHealthScore > 100 {
		return fmt.Errorf("integrity min_health_score must be between 0 and 100")
	}

	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", cfg.Logging.Format)
	}

	return nil
}

// Get returns the configuration from the last successful Load.
func Get() *Config {
	return cfg
}

// Address returns host:port for the admin API listener.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
