// clubctl is the operator CLI: seed import/export, season cloning,
// external sync, and the scheduled jobs run by hand.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"

	// Import all modules to trigger their registration
	_ "github.com/redbridgehc/clubhouse/internal/modules/incidentsmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/membershipsmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/schedulermodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/spondmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
)

var errHelp = errors.New("help provided")

func printUsage() {
	fmt.Println("Usage: clubctl COMMAND [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  dump-memberships-seed [--pretty] [-o PATH]           - export the memberships seed document")
	fmt.Println("  seed-memberships PATH [--dry-run] [--purge]          - import a memberships seed document")
	fmt.Println("  clone-season --from S --to S [--create-target]")
	fmt.Println("               [--dry-run] [--overwrite] [--include-inactive]")
	fmt.Println("                                                       - clone season setup onto another season")
	fmt.Println("  dump-players-seed [--pretty] [-o PATH] [--only-players]")
	fmt.Println("                                                       - export the players seed document")
	fmt.Println("  seed-players PATH [--only-players] [--dry-run] [--purge]")
	fmt.Println("                                                       - import a players seed document")
	fmt.Println("  sync-spond                                           - pull groups, members and events from Spond")
	fmt.Println("  sync-schedule                                        - reconcile scheduled jobs from the config file")
	fmt.Println("  send-task-digest [--dry-run]                         - email each assignee their open tasks")
	fmt.Println("  backfill-membership-numbers [--force] [--dry-run]    - assign membership numbers to players missing one")
}

func main() {
	if err := run(os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "clubctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		printUsage()
		return errHelp
	}

	if err := setup(); err != nil {
		return err
	}

	switch args[1] {
	case "dump-memberships-seed":
		return cmdDumpMembershipsSeed(args[2:])
	case "seed-memberships":
		return cmdSeedMemberships(args[2:])
	case "clone-season":
		return cmdCloneSeason(args[2:])
	case "dump-players-seed":
		return cmdDumpPlayersSeed(args[2:])
	case "seed-players":
		return cmdSeedPlayers(args[2:])
	case "sync-spond":
		return cmdSyncSpond(args[2:])
	case "sync-schedule":
		return cmdSyncSchedule(args[2:])
	case "send-task-digest":
		return cmdSendTaskDigest(args[2:])
	case "backfill-membership-numbers":
		return cmdBackfillMembershipNumbers(args[2:])
	default:
		printUsage()
		return errHelp
	}
}

// setup loads configuration, opens the database and runs migrations so
// every command sees an up-to-date schema.
func setup() error {
	configPath := os.Getenv("CLUBHOUSE_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./clubhouse.yaml"); err == nil {
			configPath = "./clubhouse.yaml"
		}
	}
	if err := config.Load(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := database.Initialize(); err != nil {
		return err
	}
	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		return err
	}
	logger.Debug("clubctl ready")
	return nil
}
