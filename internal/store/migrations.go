package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: posts and post_images tables",
		SQL: `
CREATE TABLE IF NOT EXISTS posts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  author TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT,
  password TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS post_images (
  post_id INTEGER NOT NULL,
  position INTEGER NOT NULL,
  storage_url TEXT NOT NULL UNIQUE,
  original_file_name TEXT NOT NULL,
  UNIQUE(post_id, position),
  FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     2,
		Description: "add updated_at column and post_tags table",
		SQL: `
ALTER TABLE posts ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
UPDATE posts SET updated_at = created_at WHERE updated_at = '';

CREATE TABLE IF NOT EXISTS post_tags (
  post_id INTEGER NOT NULL,
  position INTEGER NOT NULL,
  tag TEXT NOT NULL,
  UNIQUE(post_id, position),
  UNIQUE(post_id, tag),
  FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "lookup indexes for image and tag rows",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_post_images_post ON post_images(post_id, position);
CREATE INDEX IF NOT EXISTS idx_post_tags_post ON post_tags(post_id, position);
CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// detectPreMigrationDB reports a posts table with no recorded migrations, which
// means the database was created by a build without versioned migrations.
func detectPreMigrationDB(db *sql.DB) (bool, error) {
	hasPosts, err := tableExists(db, "posts")
	if err != nil || !hasPosts {
		return false, err
	}
	hasMigrations, err := tableExists(db, "schema_migrations")
	if err != nil {
		return false, err
	}
	if !hasMigrations {
		return true, nil
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// prepareMigrations creates the bookkeeping table and returns the effective
// schema version. Detection has to run before the table is created.
func prepareMigrations(db *sql.DB, stamp bool) (int, error) {
	preMigration, err := detectPreMigrationDB(db)
	if err != nil {
		return 0, fmt.Errorf("detect pre-migration db: %w", err)
	}
	if err := ensureMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}
	if preMigration && stamp {
		if _, err := db.Exec("INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", 1); err != nil {
			return 0, fmt.Errorf("stamp pre-migration db: %w", err)
		}
	}

	current, err := currentVersion(db)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	if preMigration && current == 0 {
		current = 1
	}
	return current, nil
}

// runMigrations applies all pending migrations in order, one transaction each.
func runMigrations(db *sql.DB) error {
	current, err := prepareMigrations(db, true)
	if err != nil {
		return err
	}
	for _, m := range sortedMigrations() {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, err := prepareMigrations(db, false)
	if err != nil {
		return nil, err
	}

	sorted := sortedMigrations()
	status := &MigrationStatus{CurrentVersion: current, Pending: []MigrationInfo{}}
	if len(sorted) > 0 {
		status.AvailableVersion = sorted[len(sorted)-1].Version
	}
	for _, m := range sorted {
		if m.Version > current {
			status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}
	return status, nil
}

// ApplyMigrations runs pending migrations on an already opened database.
func ApplyMigrations(db *sql.DB) error {
	return runMigrations(db)
}
