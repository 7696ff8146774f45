// Package config provides configuration management for reachscan.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/reachscan/pkg/utils"
)

// EnvPrefix prefixes environment overrides, e.g. REACHSCAN_LOG_LEVEL.
const EnvPrefix = "REACHSCAN"

// Config holds all configuration for the application.
type Config struct {
	Scan     ScanConfig     `mapstructure:"scan"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ScanConfig holds reachability scan configuration.
type ScanConfig struct {
	// ReferenceClass and ReferentField name the slot of non-owning reference
	// wrappers in heap dumps.
	ReferenceClass string `mapstructure:"reference_class"`
	ReferentField  string `mapstructure:"referent_field"`
	// MaxRoots bounds how many instances of --root-class are scanned.
	MaxRoots int `mapstructure:"max_roots"`
	// Workers bounds concurrent root scans. 0 picks a CPU-based default.
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig holds check history database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds heap dump storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty for stderr
}

// OutputConfig holds report rendering configuration.
type OutputConfig struct {
	Format string `mapstructure:"format"` // text, json or yaml
	Color  bool   `mapstructure:"color"`
}

// Load reads configuration from the specified file path. An empty path
// searches the standard locations and falls back to defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reachscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/reachscan")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

// Default returns the built-in defaults, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.reference_class", "java.lang.ref.Reference")
	v.SetDefault("scan.referent_field", "referent")
	v.SetDefault("scan.max_roots", 1000)
	v.SetDefault("scan.workers", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./reachscan.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.database", "reachscan")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", ".")
	v.SetDefault("storage.scheme", "https")
	v.SetDefault("storage.domain", "myqcloud.com")
	// registered so REACHSCAN_STORAGE_* overrides reach Unmarshal
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")

	v.SetDefault("output.format", "text")
	v.SetDefault("output.color", true)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scan.ReferenceClass == "" || c.Scan.ReferentField == "" {
		return fmt.Errorf("scan reference class and referent field are required")
	}
	if c.Scan.MaxRoots < 1 {
		return fmt.Errorf("max roots must be at least 1")
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan workers must not be negative")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Enabled && c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Database.Enabled && c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	// Storage config validation is delegated to storage package

	if _, err := utils.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}

	return nil
}
