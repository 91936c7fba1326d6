// Package config loads affinity settings from defaults, an optional JSON
// file and AFFINITY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AFFINITY_"

// DefaultFile is loaded from the working directory when no file is named.
const DefaultFile = "affinity.json"

// Configuration is the CLI configuration.
type Configuration struct {
	StartupTimeout time.Duration `koanf:"startup_timeout" validate:"gt=0"`
	ReadyTimeout   time.Duration `koanf:"ready_timeout" validate:"gte=0"` // 0 waits until the run's context ends
	Journal        string        `koanf:"journal"`                        // SQLite path; empty disables the journal
	LogLevel       string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `koanf:"log_format" validate:"oneof=text json"`
	ScenariosDir   string        `koanf:"scenarios_dir" validate:"required"`
	GoldenDir      string        `koanf:"golden_dir"` // empty skips golden comparison
}

// Load builds the configuration.
// Priority: environment variables > config file > defaults.
//
// A non-empty path must exist. An empty path loads DefaultFile if present.
func Load(path string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	switch {
	case path != "":
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			if err := k.Load(file.Provider(DefaultFile), json.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config %s: %w", DefaultFile, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", DefaultFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Journal = expandHomePath(cfg.Journal)
	cfg.ScenariosDir = expandHomePath(cfg.ScenariosDir)
	cfg.GoldenDir = expandHomePath(cfg.GoldenDir)

	return &cfg, nil
}

// envTransform maps AFFINITY_READY_TIMEOUT to ready_timeout.
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Level returns the slog level named by LogLevel.
func (c *Configuration) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (c *Configuration) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
