// Command clutter builds a wind-turbine clutter mask from a sequence of
// radar volumes and keeps a history of runs in SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/clutter/internal/db"
	"github.com/banshee-data/clutter/internal/version"
)

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("clutter %s: %v", flag.Arg(0), err)
	}
}

func dispatch(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	switch command {
	case "run":
		return handleRun(ctx, args, stdout, stderr)
	case "runs":
		return handleRuns(args, stdout, stderr)
	case "show":
		return handleShow(args, stdout, stderr)
	case "migrate":
		return handleMigrate(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func handleMigrate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "clutter.db", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `clutter - wind-turbine clutter masks from radar volume sequences

Usage: clutter <command> [options]

Commands:
  run       Build a clutter mask from volume files or globs
  runs      List recorded runs
  show      Show one recorded run
  migrate   Manage the run database schema (up, down, status)
  version   Show version information
  help      Show this help message

Examples:
  clutter run -out clutter.vol 'scans/*.vol'
  clutter run -config clutter.yaml -parallel -db runs.db scans/a.vol scans/b.vol
  clutter runs -db runs.db -limit 10
  clutter show -db runs.db 3f0c...
`)
}
