// Package config loads knoldeck settings from defaults, an optional YAML file,
// KNOLDECK_* environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "KNOLDECK_"

type Config struct {
	DB       string        `koanf:"db" validate:"required"`
	Addr     string        `koanf:"addr" validate:"required"`
	ReposDir string        `koanf:"repos_dir" validate:"required"`
	User     string        `koanf:"user" validate:"required"`
	Log      LogConfig     `koanf:"log"`
	Session  SessionConfig `koanf:"session"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	Limit         int           `koanf:"limit" validate:"gte=0"` // cards per session, 0 for no limit
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":                     "db",
	"addr":                   "addr",
	"repos-dir":              "repos_dir",
	"user":                   "user",
	"log-level":              "log.level",
	"log-format":             "log.format",
	"session-idle-timeout":   "session.idle_timeout",
	"session-sweep-interval": "session.sweep_interval",
	"session-limit":          "session.limit",
}

// RegisterFlags adds the config flags, with their defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db", "knoldeck.db", "Path to the SQLite database file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("repos-dir", "repos", "Directory git sources are cloned into")
	fs.String("user", "default", "Learner ID to act as")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Duration("session-idle-timeout", 30*time.Minute, "End study sessions idle for this long (0 disables)")
	fs.Duration("session-sweep-interval", time.Minute, "How often idle sessions are checked")
	fs.Int("session-limit", 0, "Maximum cards per study session (0 for no limit)")
}

// Load reads the configuration. fs must have been set up by RegisterFlags and
// already parsed.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey turns KNOLDECK_SESSION__IDLE_TIMEOUT into session.idle_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
