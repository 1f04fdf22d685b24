package db

import (
	"fmt"
	"io"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("migrate: missing action")
	}

	// Open without running migrations; the action decides.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied")
		return printVersion(database, out)

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Migration rolled back")
		return printVersion(database, out)

	case "status":
		return printStatus(database, dbPath, out)

	case "help":
		PrintMigrateHelp(out)
		return nil

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(database *DB, dbPath string, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(out, "WARNING: a migration failed mid-execution; inspect the database before retrying.")
	} else if version < latest {
		fmt.Fprintf(out, "Outstanding migrations: %d (run: clutter migrate -db %s up)\n", latest-version, dbPath)
	}
	return nil
}

// PrintMigrateHelp displays help for migrate commands.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: clutter migrate -db <path> <action>

Actions:
  up       Apply all pending migrations
  down     Roll back the most recent migration
  status   Show current and latest schema versions
  help     Show this help
`)
}
