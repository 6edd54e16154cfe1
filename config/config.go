package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is everything the CLI needs to wire the service together.
type Config struct {
	Data DataConfig `koanf:"data"`
	Auth AuthConfig `koanf:"auth"`
	Log  LogConfig  `koanf:"log"`
}

// DataConfig selects the snapshot backend.
type DataConfig struct {
	Backend string `koanf:"backend"` // "json" or "sqlite"
	Path    string `koanf:"path"`
}

// AuthConfig selects the credential verifier.
type AuthConfig struct {
	Verifier string `koanf:"verifier"` // "plain" or "bcrypt"
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `koanf:"level"`
}

const envPrefix = "LIBRARY_"

// Load builds the configuration from defaults, an optional yaml file, and
// LIBRARY_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"data.backend":  "json",
		"data.path":     "data/library.json",
		"auth.verifier": "plain",
		"log.level":     "info",
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	// LIBRARY_DATA_BACKEND=sqlite -> data.backend, and so on.
	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Data.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid data.backend %q (want json or sqlite)", cfg.Data.Backend)
	}
	switch cfg.Auth.Verifier {
	case "plain", "bcrypt":
	default:
		return fmt.Errorf("invalid auth.verifier %q (want plain or bcrypt)", cfg.Auth.Verifier)
	}
	if cfg.Data.Path == "" {
		return fmt.Errorf("data.path must not be empty")
	}
	return nil
}
