package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Palette holds overrides for the 16 base ANSI colors (spec.md §4.6). It
// is loaded from the config file but not consulted: the snapshot pipeline
// always uses its built-in palette.
type Palette struct {
	Colors [16]string `yaml:"colors,omitempty"`
}

// Config is the small, human-edited server configuration loaded from
// ~/.spaceterm/config.yaml. Unlike the teacher's per-project settings.json,
// there is no project-level override here: one process, one config file.
type Config struct {
	// PersistDebounceMS mirrors the state.json persist debounce (spec.md
	// §4.3). Loaded but not consulted: internal/store uses its own
	// PersistDebounce constant.
	PersistDebounceMS int `yaml:"persistDebounceMs,omitempty"`

	// ScrollbackCapBytes and ScrollbackCutBytes mirror the per-terminal
	// scrollback sizes (spec.md §4.7). Loaded but not consulted:
	// internal/scrollback uses its DefaultCap and DefaultTrimTo.
	ScrollbackCapBytes int `yaml:"scrollbackCapBytes,omitempty"`
	ScrollbackCutBytes int `yaml:"scrollbackCutBytes,omitempty"`

	// BatchMaxBytes and BatchMaxMS mirror the data batcher's thresholds
	// (spec.md §4.7). Loaded but not consulted: internal/batch uses its
	// built-in values.
	BatchMaxBytes int `yaml:"batchMaxBytes,omitempty"`
	BatchMaxMS    int `yaml:"batchMaxMs,omitempty"`

	// DefaultCols and DefaultRows size a newly created PTY (spec.md §4.1).
	DefaultCols int `yaml:"defaultCols,omitempty"`
	DefaultRows int `yaml:"defaultRows,omitempty"`

	// StaleSweepSeconds and StaleThresholdSeconds mirror the assistant
	// state machine's stale sweep (spec.md §4.2). Loaded but not
	// consulted: internal/assistant uses its built-in values.
	StaleSweepSeconds     int `yaml:"staleSweepSeconds,omitempty"`
	StaleThresholdSeconds int `yaml:"staleThresholdSeconds,omitempty"`

	// Palette is loaded but not consulted (see the Palette type).
	Palette Palette `yaml:"palette,omitempty"`

	// LogLevel and LogFile configure internal/logger.
	LogLevel string `yaml:"logLevel,omitempty"`
	LogFile  string `yaml:"logFile,omitempty"`
}

// Defaults returns the hardcoded baseline, matching the constants spec.md
// §4.7 and §4.2 specify.
func Defaults() Config {
	return Config{
		PersistDebounceMS:     1000,
		ScrollbackCapBytes:    1024 * 1024,
		ScrollbackCutBytes:    512 * 1024,
		BatchMaxBytes:         200 * 1024,
		BatchMaxMS:            16,
		DefaultCols:           160,
		DefaultRows:           45,
		StaleSweepSeconds:     15,
		StaleThresholdSeconds: 120,
		LogLevel:              "info",
	}
}

// Load reads path and merges it over Defaults(). A missing file is not an
// error: the defaults apply as-is, matching the teacher's "config file
// doesn't exist, use defaults" idiom in the original config loader.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
