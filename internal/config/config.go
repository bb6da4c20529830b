package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fenilsonani/listmunge/internal/validation"
)

// EnvPrefix is the prefix of environment variables that override the
// configuration file. Nested keys are separated by a double underscore,
// e.g. LISTMUNGE_SEQUENCE__BACKEND=redis.
const EnvPrefix = "LISTMUNGE_"

// Sequence backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all configuration for listmunge
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Lists    []ListConfig   `koanf:"lists"`
	Sequence SequenceConfig `koanf:"sequence"`
	Journal  JournalConfig  `koanf:"journal"`
	I18n     I18nConfig     `koanf:"i18n"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `koanf:"level"`      // debug, info, warn, error
	Format    string `koanf:"format"`     // json, text
	Output    string `koanf:"output"`     // stdout, stderr, or file path
	AddSource bool   `koanf:"add_source"` // Include source file and line
}

// ListConfig holds per-list configuration
type ListConfig struct {
	Name              string         `koanf:"name"`               // dev
	ListID            string         `koanf:"list_id"`            // dev.example.com
	SubjectPrefix     string         `koanf:"subject_prefix"`     // "[dev %d] "
	PreferredLanguage LanguageConfig `koanf:"preferred_language"` // Language for placeholders and charset
	PostID            int            `koanf:"post_id"`            // First post sequence number
}

// LanguageConfig holds a list's preferred language
type LanguageConfig struct {
	Code    string `koanf:"code"`    // en, fr, pt_BR
	Charset string `koanf:"charset"` // Defaults to the language's charset
}

// SequenceConfig holds post sequence store configuration
type SequenceConfig struct {
	Backend      string `koanf:"backend"`       // memory, sqlite, redis
	DatabasePath string `koanf:"database_path"` // SQLite database path
	RedisURL     string `koanf:"redis_url"`     // Redis connection URL
	Prefix       string `koanf:"prefix"`        // Redis key prefix
	Timeout      string `koanf:"timeout"`       // Redis connect timeout
}

// JournalConfig holds rewrite journal configuration
type JournalConfig struct {
	Enabled      bool   `koanf:"enabled"`       // Record every rewrite
	DatabasePath string `koanf:"database_path"` // SQLite database path
}

// I18nConfig holds translation configuration
type I18nConfig struct {
	CatalogPath string `koanf:"catalog_path"` // Optional YAML catalog overrides
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `koanf:"textfile"` // Prometheus textfile collector output
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Sequence: SequenceConfig{
			Backend:      BackendMemory,
			DatabasePath: "/var/lib/listmunge/sequence.db",
			RedisURL:     "redis://localhost:6379/0",
			Prefix:       "listmunge",
			Timeout:      "5s",
		},
		Journal: JournalConfig{
			Enabled:      false,
			DatabasePath: "/var/lib/listmunge/journal.db",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// envKey maps LISTMUNGE_SEQUENCE__REDIS_URL to sequence.redis_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Logging validation
	if c.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[c.Logging.Level] {
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error (got: %s)", c.Logging.Level)
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[c.Logging.Format] {
			return fmt.Errorf("logging.format must be one of: json, text (got: %s)", c.Logging.Format)
		}
	}

	if err := c.validateLists(); err != nil {
		return err
	}

	if err := c.validateSequence(); err != nil {
		return err
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.DatabasePath == "" {
		return fmt.Errorf("journal.database_path is required when journal is enabled")
	}

	if c.Metrics.Textfile != "" && !strings.HasSuffix(c.Metrics.Textfile, ".prom") {
		return fmt.Errorf("metrics.textfile must end in .prom (got: %s)", c.Metrics.Textfile)
	}

	return nil
}

// validateLists checks every configured list and rejects duplicates
func (c *Config) validateLists() error {
	names := make(map[string]int)
	ids := make(map[string]int)

	for i, l := range c.Lists {
		if err := validation.ListName(l.Name); err != nil {
			return fmt.Errorf("lists[%d].name: %w", i, err)
		}
		if j, ok := names[l.Name]; ok {
			return fmt.Errorf("lists[%d].name %q duplicates lists[%d]", i, l.Name, j)
		}
		names[l.Name] = i

		if l.ListID != "" {
			if err := validation.ListID(l.ListID); err != nil {
				return fmt.Errorf("lists[%d].list_id: %w", i, err)
			}
			id := validation.BareListID(l.ListID)
			if j, ok := ids[id]; ok {
				return fmt.Errorf("lists[%d].list_id %q duplicates lists[%d]", i, l.ListID, j)
			}
			ids[id] = i
		}

		if err := validation.SubjectPrefix(l.SubjectPrefix); err != nil {
			return fmt.Errorf("lists[%d].subject_prefix: %w", i, err)
		}
		if l.PreferredLanguage.Code != "" {
			if err := validation.LanguageCode(l.PreferredLanguage.Code); err != nil {
				return fmt.Errorf("lists[%d].preferred_language.code: %w", i, err)
			}
		}
		if l.PreferredLanguage.Charset != "" {
			if err := validation.Charset(l.PreferredLanguage.Charset); err != nil {
				return fmt.Errorf("lists[%d].preferred_language.charset: %w", i, err)
			}
		}
		if l.PostID < 0 {
			return fmt.Errorf("lists[%d].post_id cannot be negative (got: %d)", i, l.PostID)
		}
	}

	return nil
}

// validateSequence checks the sequence store settings for the chosen backend
func (c *Config) validateSequence() error {
	switch c.Sequence.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Sequence.DatabasePath == "" {
			return fmt.Errorf("sequence.database_path is required for the sqlite backend")
		}
		if dir := filepath.Dir(c.Sequence.DatabasePath); dir != "" {
			if info, err := os.Stat(dir); err == nil && !info.IsDir() {
				return fmt.Errorf("sequence.database_path parent is not a directory: %s", dir)
			}
		}
	case BackendRedis:
		if c.Sequence.RedisURL == "" {
			return fmt.Errorf("sequence.redis_url is required for the redis backend")
		}
		if c.Sequence.Prefix == "" {
			return fmt.Errorf("sequence.prefix is required for the redis backend")
		}
	default:
		return fmt.Errorf("sequence.backend must be one of: memory, sqlite, redis (got: %s)", c.Sequence.Backend)
	}

	if c.Sequence.Timeout != "" {
		d, err := time.ParseDuration(c.Sequence.Timeout)
		if err != nil {
			return fmt.Errorf("sequence.timeout is invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("sequence.timeout must be positive (got: %s)", c.Sequence.Timeout)
		}
		if d > time.Minute {
			return fmt.Errorf("sequence.timeout is too long, maximum is 1m (got: %s)", c.Sequence.Timeout)
		}
	}

	return nil
}

// TimeoutDuration returns the parsed sequence timeout, or 5s when unset
func (s SequenceConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
