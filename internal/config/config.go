// Package config loads typehierarchyd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggoodman/typehierarchy-go/modelcache/redis"
	"github.com/joeshaw/envdecode"
)

// Transport names.
const (
	TransportLSP = "lsp"
	TransportMCP = "mcp"
)

// Cache backend names.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds process settings. Every field has an environment variable.
type Config struct {
	Transport string `env:"TYPEHIERARCHY_TRANSPORT,default=lsp"`
	LogLevel  string `env:"TYPEHIERARCHY_LOG_LEVEL,default=info"`

	Cache string `env:"TYPEHIERARCHY_CACHE,default=memory"`
	Redis redis.Config

	// StaticGraph is a YAML or JSON hierarchy file served by the static provider.
	StaticGraph    string `env:"TYPEHIERARCHY_STATIC_GRAPH"`
	StaticLanguage string `env:"TYPEHIERARCHY_STATIC_LANGUAGE"`

	// ServerCommand is a language server command line, split on spaces.
	ServerCommand  string `env:"TYPEHIERARCHY_SERVER_COMMAND"`
	ServerLanguage string `env:"TYPEHIERARCHY_SERVER_LANGUAGE"`

	// Watch invalidates loaded documents when they change on disk.
	Watch bool `env:"TYPEHIERARCHY_WATCH,default=false"`
}

// Load decodes the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportLSP, TransportMCP:
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	switch c.Cache {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("config: unknown cache %q", c.Cache)
	}
	if c.Redis.Capacity < 0 {
		return fmt.Errorf("config: cache capacity %d is negative", c.Redis.Capacity)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. The empty string is info.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}

// ServerArgv splits ServerCommand into an argument vector.
func (c Config) ServerArgv() []string {
	return strings.Fields(c.ServerCommand)
}
