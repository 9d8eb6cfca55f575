// Package config resolves ~/.spaceterm's directory layout and loads the
// server's small YAML configuration file. Adapted from the teacher's
// internal/config/paths.go (home-directory discovery) and
// internal/config/config.go (merge-over-defaults loading), retargeted at
// this server's socket/log/persistence layout instead of per-project
// settings.
package config

import (
	"os"
	"path/filepath"
)

// Paths is the resolved ~/.spaceterm directory layout (spec.md §6).
type Paths struct {
	Root                string
	PrimarySocket       string
	HooksSocket         string
	HookLogsDir         string
	DecisionLogsDir     string
	UsageLogsDir        string
	CachedPlansDir      string
	ShellIntegrationDir string
	StatePath           string
	StateTmpPath        string
	ConfigPath          string
	PlanCacheDBPath     string
}

// ResolvePaths computes the ~/.spaceterm layout. If home is "", the
// current user's home directory is used.
func ResolvePaths(home string) (Paths, error) {
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		home = h
	}
	root := filepath.Join(home, ".spaceterm")
	return Paths{
		Root:                root,
		PrimarySocket:       filepath.Join(root, "spaceterm.sock"),
		HooksSocket:         filepath.Join(root, "hooks.sock"),
		HookLogsDir:         filepath.Join(root, "hook-logs"),
		DecisionLogsDir:     filepath.Join(root, "decision-logs"),
		UsageLogsDir:        filepath.Join(root, "usage-logs"),
		CachedPlansDir:      filepath.Join(root, "cached-plans"),
		ShellIntegrationDir: filepath.Join(root, "shell-integration"),
		StatePath:           filepath.Join(root, "state.json"),
		StateTmpPath:        filepath.Join(root, "state.json.tmp"),
		ConfigPath:          filepath.Join(root, "config.yaml"),
		PlanCacheDBPath:     filepath.Join(root, "cached-plans", "index.db"),
	}, nil
}

// EnsureDirs creates every directory in the layout (0755), matching the
// teacher's EnsureConfigDirs idiom.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		p.Root,
		p.HookLogsDir,
		p.DecisionLogsDir,
		p.UsageLogsDir,
		p.CachedPlansDir,
		p.ShellIntegrationDir,
		filepath.Join(p.ShellIntegrationDir, "zsh"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}
