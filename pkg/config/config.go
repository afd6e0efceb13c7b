// Package config loads rip's YAML configuration and resolves the graveyard
// location.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rip-project/rip/pkg/model"
)

// Environment variables read by rip.
const (
	EnvConfig    = "RIP_CONFIG"
	EnvGraveyard = "RIP_GRAVEYARD"
	EnvLogLevel  = "RIP_LOG_LEVEL"
	EnvLogFormat = "RIP_LOG_FORMAT"
)

// EnvFileName is the optional dotenv file loaded from the config directory.
const EnvFileName = "rip.env"

// Config represents the rip configuration.
type Config struct {
	Graveyard       string                      `json:"graveyard,omitempty" yaml:"graveyard,omitempty"`
	RecordBackend   model.RecordBackend         `json:"record_backend" yaml:"record_backend"`
	CopyEngine      model.EngineType            `json:"copy_engine" yaml:"copy_engine"`
	PartialCopy     model.PartialCopyPolicy     `json:"partial_copy" yaml:"partial_copy"`
	RestoreConflict model.RestoreConflictPolicy `json:"restore_conflict" yaml:"restore_conflict"`
	MetricsTextfile string                      `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
	Progress        bool                        `json:"progress" yaml:"progress"`
	Logging         LoggingConfig               `json:"logging" yaml:"logging"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RecordBackend:   model.RecordBackendJSONL,
		CopyEngine:      model.EngineAuto,
		PartialCopy:     model.PartialCopyCleanup,
		RestoreConflict: model.RestoreConflictFail,
		Progress:        true,
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Path returns the config file location: $RIP_CONFIG, else
// $XDG_CONFIG_HOME/rip/config.yaml, else ~/.config/rip/config.yaml.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rip", "config.yaml")
	}
	if dir, err := os.UserConfigDir(); err == nil && runtime.GOOS == "windows" {
		return filepath.Join(dir, "rip", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rip", "config.yaml")
}

// Load reads the config file at path, loads rip.env next to it and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	envFile := filepath.Join(filepath.Dir(path), EnvFileName)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault is Load(Path()).
func LoadDefault() (*Config, error) {
	return Load(Path())
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks enumerated values and normalizes aliases.
func (c *Config) Validate() error {
	switch c.RecordBackend {
	case "":
		c.RecordBackend = model.RecordBackendJSONL
	case model.RecordBackendJSONL, model.RecordBackendSQLite:
	default:
		return fmt.Errorf("record_backend: unknown backend %q", c.RecordBackend)
	}

	switch strings.ToLower(string(c.CopyEngine)) {
	case "", "auto":
		c.CopyEngine = model.EngineAuto
	case "reflink", "reflink-copy":
		c.CopyEngine = model.EngineReflinkCopy
	case "copy":
		c.CopyEngine = model.EngineCopy
	default:
		return fmt.Errorf("copy_engine: unknown engine %q", c.CopyEngine)
	}

	switch c.PartialCopy {
	case "":
		c.PartialCopy = model.PartialCopyCleanup
	case model.PartialCopyCleanup, model.PartialCopyKeep:
	default:
		return fmt.Errorf("partial_copy: unknown policy %q", c.PartialCopy)
	}

	switch c.RestoreConflict {
	case "":
		c.RestoreConflict = model.RestoreConflictFail
	case model.RestoreConflictFail, model.RestoreConflictRename:
	default:
		return fmt.Errorf("restore_conflict: unknown policy %q", c.RestoreConflict)
	}
	return nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ResolveGraveyard picks the graveyard directory in priority order: the
// --graveyard flag, $RIP_GRAVEYARD, the config file, $XDG_DATA_HOME/graveyard,
// then a per-user directory under the system temp dir.
func ResolveGraveyard(flag string, cfg *Config) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvGraveyard); env != "" {
		return env
	}
	if cfg != nil && cfg.Graveyard != "" {
		return expandHome(cfg.Graveyard)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "graveyard")
	}
	return DefaultGraveyard()
}

// DefaultGraveyard is /tmp/graveyard-$USER, or %TEMP%\graveyard-$USER on Windows.
func DefaultGraveyard() string {
	base := "/tmp"
	if runtime.GOOS == "windows" {
		base = os.Getenv("TEMP")
		if base == "" {
			base = `C:\Windows\Temp`
		}
	}
	return filepath.Join(base, "graveyard-"+CurrentUser())
}

// CurrentUser returns $USER, $USERNAME on Windows, or "unknown".
func CurrentUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(k); u != "" {
			return u
		}
	}
	return "unknown"
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
