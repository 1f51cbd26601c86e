package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBSchemaVersion is the current database schema version.
// Bump this when adding migrations that change the schema.
const DBSchemaVersion = 2

// downMigrations maps a version to the SQL needed to reverse it.
// Additive changes (ADD COLUMN, CREATE TABLE IF NOT EXISTS) need no
// reverse SQL, only the version number reset.
var downMigrations = map[int][]string{
	2: {`DROP INDEX IF EXISTS idx_kv_updated_at`},
}

// alterColumn runs an ALTER TABLE ADD COLUMN and silently ignores
// "duplicate column name" errors, making the migration idempotent.
func alterColumn(db *sql.DB, stmt string) error {
	_, err := db.Exec(stmt)
	if err != nil && strings.Contains(err.Error(), "duplicate column name") {
		return nil
	}
	return err
}

// migrations is an ordered list of idempotent SQL statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

// alterMigrations run after migrations, through alterColumn.
var alterMigrations = []string{
	`ALTER TABLE kv ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`,
}

// indexMigrations depend on columns added by alterMigrations.
var indexMigrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_kv_updated_at ON kv(updated_at)`,
}

// OpenRawDB opens a SQLite database without running migrations or
// checking the schema version. Used by the db subcommands.
func OpenRawDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return db, nil
}

// ReadDBVersion returns the current schema version from the database.
func ReadDBVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// DowngradeDB downgrades the database from its current version to the
// target version, running any reverse migrations along the way.
func DowngradeDB(db *sql.DB, current, target int) error {
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	if target < 0 {
		return fmt.Errorf("target version must be >= 0")
	}

	for v := current; v > target; v-- {
		if stmts, ok := downMigrations[v]; ok {
			for _, stmt := range stmts {
				if _, err := db.Exec(stmt); err != nil {
					return fmt.Errorf("down migration v%d: %w", v, err)
				}
			}
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// runMigrations applies all migration statements in order. It refuses to
// touch a database created by a newer binary.
func runMigrations(db *sql.DB) error {
	dbVersion, err := ReadDBVersion(db)
	if err != nil {
		return err
	}
	if dbVersion > DBSchemaVersion {
		return fmt.Errorf(
			"database schema version %d is newer than this binary supports (max %d); upgrade the binary or use a different database",
			dbVersion, DBSchemaVersion)
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	for _, m := range alterMigrations {
		if err := alterColumn(db, m); err != nil {
			return err
		}
	}
	for _, m := range indexMigrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	if dbVersion < DBSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", DBSchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	return nil
}
