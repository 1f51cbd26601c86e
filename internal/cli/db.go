package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jmaddaus/issueboard/internal/config"
	"github.com/jmaddaus/issueboard/internal/model"
	"github.com/jmaddaus/issueboard/internal/store"
)

const dbUsage = `Usage:
  board db <command> [db-path] [args]

The db-path defaults to the db_path of ~/.issueboard/config.json.

Commands:
  version   [db-path]             Show current DB schema version
  check     [db-path]             Check if DB is compatible with this binary
  repos     [db-path]             List repositories with stored positions
  downgrade <db-path> <version>   Downgrade DB to target version

Examples:
  board db version
  board db check ~/.issueboard/board.db
  board db downgrade ~/.issueboard/board.db 1`

func runDB(args []string, _ globalFlags) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, dbUsage)
		return fmt.Errorf("usage: board db <command> [db-path]")
	}

	command := args[0]
	if command == "downgrade" {
		if len(args) < 3 {
			return fmt.Errorf("downgrade requires a db path and a target version\n%s", dbUsage)
		}
		target, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[2])
		}
		return runDBDowngrade(args[1], target)
	}

	dbPath, err := dbPathArg(args[1:])
	if err != nil {
		return err
	}

	switch command {
	case "version":
		return runDBVersion(dbPath)
	case "check":
		return runDBCheck(dbPath)
	case "repos":
		return runDBRepos(dbPath)
	default:
		return fmt.Errorf("unknown db subcommand: %s\n%s", command, dbUsage)
	}
}

// dbPathArg returns the explicit path argument or the configured database.
func dbPathArg(rest []string) (string, error) {
	if len(rest) > 0 {
		return rest[0], nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.DBPath, nil
}

// readVersion opens dbPath without migrating it and prints its version.
func readVersion(dbPath string) (int, error) {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	fmt.Printf("database: %s\n", dbPath)
	fmt.Printf("schema version: %d\n", version)
	fmt.Printf("binary supports: %d\n", store.DBSchemaVersion)
	return version, nil
}

func runDBVersion(dbPath string) error {
	_, err := readVersion(dbPath)
	return err
}

func runDBCheck(dbPath string) error {
	version, err := readVersion(dbPath)
	if err != nil {
		return err
	}
	if version > store.DBSchemaVersion {
		return fmt.Errorf("INCOMPATIBLE: database is newer than this binary.\nRun: board db downgrade %s %d", dbPath, store.DBSchemaVersion)
	}

	fmt.Printf("\nOK: database is compatible.\n")
	return nil
}

func runDBRepos(dbPath string) error {
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	keys, err := s.Keys(context.Background(), model.PositionsKeyPrefix)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No stored positions.")
		return nil
	}
	for _, k := range keys {
		fmt.Println(strings.TrimPrefix(k, model.PositionsKeyPrefix))
	}
	return nil
}

func runDBDowngrade(dbPath string, target int) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	current, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Printf("database: %s\n", dbPath)
	fmt.Printf("current version: %d\n", current)
	fmt.Printf("target version: %d\n", target)

	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}

	if err := store.DowngradeDB(db, current, target); err != nil {
		return fmt.Errorf("downgrade: %w", err)
	}

	fmt.Printf("downgraded: %d -> %d\n", current, target)
	return nil
}
