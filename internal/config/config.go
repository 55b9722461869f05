// Package config loads the assistant's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/llm"
	"github.com/nkch1k/REAssistant/internal/resolve"
)

// DataConfig selects and configures the ledger source.
type DataConfig struct {
	Source   string                `yaml:"source"` // "csv" or "postgres"
	Path     string                `yaml:"path"`
	Postgres ledger.PostgresConfig `yaml:"postgres"`
}

// ResolverConfig tunes fuzzy entity resolution.
type ResolverConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// ReadTimeout returns the HTTP read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the HTTP idle timeout.
func (c ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// Config is the full application configuration.
type Config struct {
	Data     DataConfig      `yaml:"data"`
	Resolver ResolverConfig  `yaml:"resolver"`
	LLM      llm.Config      `yaml:"llm"`
	Cache    llm.CacheConfig `yaml:"cache"`
	Server   ServerConfig    `yaml:"server"`
	Dispatch dispatch.Config `yaml:"dispatch"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Data: DataConfig{
			Source:   "csv",
			Path:     "data/ledger.csv",
			Postgres: ledger.DefaultPostgresConfig(),
		},
		Resolver: ResolverConfig{Threshold: resolve.DefaultThreshold},
		LLM:      llm.DefaultConfig(),
		Cache:    llm.DefaultCacheConfig(),
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 30,
			IdleTimeoutSeconds:  60,
		},
		Dispatch: dispatch.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged. The LLM API key is always taken from the
// OPENAI_API_KEY environment variable when set, so it never needs to live
// in the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	return c, nil
}

// Source constructs the configured ledger source.
func (c Config) Source() (ledger.Source, error) {
	switch c.Data.Source {
	case "", "csv":
		return ledger.NewCSVSource(c.Data.Path), nil
	case "postgres":
		return ledger.NewPostgresSource(c.Data.Postgres)
	default:
		return nil, fmt.Errorf("unknown data source %q", c.Data.Source)
	}
}
