package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. RELAY_STORE_DRIVER.
const EnvPrefix = "RELAY"

// Config represents ~/.relay/config.toml.
type Config struct {
	DefaultInstance string `toml:"default_instance" envconfig:"DEFAULT_INSTANCE"`
	LogLevel        string `toml:"log_level" envconfig:"LOG_LEVEL"`

	Operator  Operator  `toml:"operator" envconfig:"OPERATOR"`
	HTTP      HTTP      `toml:"http" envconfig:"HTTP"`
	Store     Store     `toml:"store" envconfig:"STORE"`
	Directory Directory `toml:"directory" envconfig:"DIRECTORY"`
	Push      Push      `toml:"push" envconfig:"PUSH"`
	Uploads   Uploads   `toml:"uploads" envconfig:"UPLOADS"`
}

// Operator configures the operator identity and the aliases that
// normalize to it.
type Operator struct {
	ID      string   `toml:"id" envconfig:"ID"`
	Aliases []string `toml:"aliases" envconfig:"ALIASES"`
}

type HTTP struct {
	Addr           string        `toml:"addr" envconfig:"ADDR"`
	MaxBodyBytes   int64         `toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	OriginPatterns []string      `toml:"origin_patterns" envconfig:"ORIGIN_PATTERNS"`
	SendBuffer     int           `toml:"send_buffer" envconfig:"SEND_BUFFER"`
	WriteTimeout   time.Duration `toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// Store selects the message backend. An empty DSN with the sqlite driver
// means relay.db in the instance directory.
type Store struct {
	Driver string `toml:"driver" envconfig:"DRIVER"`
	DSN    string `toml:"dsn" envconfig:"DSN"`
}

// Directory configures the profile directory. An empty URL disables
// enrichment.
type Directory struct {
	URL       string        `toml:"url" envconfig:"URL"`
	Timeout   time.Duration `toml:"timeout" envconfig:"TIMEOUT"`
	Retries   int           `toml:"retries" envconfig:"RETRIES"`
	Workers   int           `toml:"workers" envconfig:"WORKERS"`
	CacheTTL  time.Duration `toml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheSize int64         `toml:"cache_size" envconfig:"CACHE_SIZE"`
}

// Push configures notifications. An empty NATSURL logs notifications
// instead of publishing them.
type Push struct {
	NATSURL string `toml:"nats_url" envconfig:"NATS_URL"`
	Subject string `toml:"subject" envconfig:"SUBJECT"`
	Title   string `toml:"title" envconfig:"TITLE"`
}

type Uploads struct {
	Dir      string `toml:"dir" envconfig:"DIR"`
	MaxBytes int64  `toml:"max_bytes" envconfig:"MAX_BYTES"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Operator: Operator{
			ID:      "admin",
			Aliases: []string{"-1", "admin"},
		},
		HTTP: HTTP{
			Addr:         ":3000",
			MaxBodyBytes: 16 << 20,
			SendBuffer:   64,
			WriteTimeout: 10 * time.Second,
		},
		Store: Store{Driver: "sqlite"},
		Directory: Directory{
			Timeout:   3 * time.Second,
			Retries:   2,
			Workers:   8,
			CacheTTL:  5 * time.Minute,
			CacheSize: 10_000,
		},
		Push: Push{
			Subject: "relay.push",
			Title:   "New message",
		},
		Uploads: Uploads{MaxBytes: 10 << 20},
	}
}

// Load reads config from the given path on top of Default. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWithEnv is Load followed by RELAY_* environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
