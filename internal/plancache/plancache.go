// Package plancache tracks, per agent session, the versioned history of
// plan-file snapshots taken on ExitPlanMode tool-use events (spec.md
// §4.10). It is backed by SQLite rather than a directory-listing scan so
// the "≥ 2 snapshots" report and dedup-against-previous check are plain
// queries; this is the one component in the whole server built on a
// relational store, grounded on the teacher's embed-migration
// open/migrate idiom (internal/store/store.go).
package plancache

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the plan-snapshot version index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dsn and applies
// any pending migrations. dsn may be ":memory:" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// SetPlanPath remembers the most recent plan file path seen for a
// surface, via an assistant tool-use entry that wrote into the plan
// directory.
func (s *Store) SetPlanPath(surfaceID, path string) error {
	_, err := s.db.Exec(
		`INSERT INTO plan_cursor (surface_id, plan_path) VALUES (?, ?)
		 ON CONFLICT(surface_id) DO UPDATE SET plan_path = excluded.plan_path`,
		surfaceID, path,
	)
	return err
}

// PlanPath returns the last remembered plan file path for a surface.
func (s *Store) PlanPath(surfaceID string) (string, bool, error) {
	var path string
	err := s.db.QueryRow(`SELECT plan_path FROM plan_cursor WHERE surface_id = ?`, surfaceID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// hashContent returns a stable content hash used to dedup a snapshot
// against the agent session's previous one.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SnapshotResult reports whether a new version was recorded and the
// total number of versions now on file for the agent session.
type SnapshotResult struct {
	Recorded bool
	Version  int
	Total    int
}

// Snapshot records a new plan-file version for agentSessionID unless its
// content hash matches the most recent version already on file
// (spec.md §4.10: "deduplicating against the previous snapshot").
func (s *Store) Snapshot(agentSessionID, path string, content []byte) (SnapshotResult, error) {
	hash := hashContent(content)

	var lastVersion int
	var lastHash string
	err := s.db.QueryRow(
		`SELECT version, content_hash FROM plan_snapshots
		 WHERE agent_session_id = ? ORDER BY version DESC LIMIT 1`,
		agentSessionID,
	).Scan(&lastVersion, &lastHash)
	if err != nil && err != sql.ErrNoRows {
		return SnapshotResult{}, err
	}
	total := lastVersion
	if err == sql.ErrNoRows {
		total = 0
	}
	if err == nil && lastHash == hash {
		return SnapshotResult{Recorded: false, Version: lastVersion, Total: total}, nil
	}

	version := lastVersion + 1
	if _, err := s.db.Exec(
		`INSERT INTO plan_snapshots (agent_session_id, version, path, content_hash) VALUES (?, ?, ?, ?)`,
		agentSessionID, version, path, hash,
	); err != nil {
		return SnapshotResult{}, err
	}
	return SnapshotResult{Recorded: true, Version: version, Total: version}, nil
}

// VersionCount returns how many snapshot versions exist for an agent
// session, used for the "≥ 2 snapshots" report to clients.
func (s *Store) VersionCount(agentSessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM plan_snapshots WHERE agent_session_id = ?`, agentSessionID).Scan(&n)
	return n, err
}
