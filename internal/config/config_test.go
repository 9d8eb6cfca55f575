package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("got %+v, want defaults %+v", cfg, Defaults())
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, Config{DefaultCols: 120}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultCols != 120 {
		t.Fatalf("DefaultCols = %d, want 120", cfg.DefaultCols)
	}
	if cfg.ScrollbackCapBytes != Defaults().ScrollbackCapBytes {
		t.Fatalf("unset fields should fall back to defaults; got ScrollbackCapBytes=%d, want %d", cfg.ScrollbackCapBytes, Defaults().ScrollbackCapBytes)
	}
}

func TestResolvePathsDefaultsUnderHome(t *testing.T) {
	home := t.TempDir()
	p, err := ResolvePaths(home)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if filepath.Dir(p.PrimarySocket) != p.Root {
		t.Fatalf("PrimarySocket not under Root: %s / %s", p.PrimarySocket, p.Root)
	}
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
}
