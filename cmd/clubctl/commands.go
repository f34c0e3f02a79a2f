package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/modules/membershipsmodule"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
	"github.com/redbridgehc/clubhouse/internal/modules/schedulermodule"
	"github.com/redbridgehc/clubhouse/internal/modules/spondmodule"
	"github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
	"github.com/redbridgehc/clubhouse/internal/seed"
)

// writeDocument writes v to the given path, or pretty-prints it to
// stdout when no path was given.
func writeDocument(path string, v interface{}, pretty bool) error {
	if path != "" {
		if err := seed.WriteFile(path, v, pretty); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	entities := make([]string, 0, len(counts))
	for e := range counts {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	fmt.Printf("%s:\n", label)
	for _, e := range entities {
		fmt.Printf("  %-20s %d\n", e, counts[e])
	}
}

func cmdDumpMembershipsSeed(args []string) error {
	fs := flag.NewFlagSet("dump-memberships-seed", flag.ExitOnError)
	pretty := fs.Bool("pretty", false, "indent the output")
	out := fs.String("o", "", "write to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := membershipsmodule.Export(database.GetDB())
	if err != nil {
		return err
	}
	return writeDocument(*out, doc, *pretty)
}

func cmdSeedMemberships(args []string) error {
	fs := flag.NewFlagSet("seed-memberships", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report changes without writing them")
	purge := fs.Bool("purge", false, "delete existing rows before importing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("seed-memberships requires exactly one PATH argument")
	}

	var doc membershipsmodule.Document
	if err := seed.ReadFile(fs.Arg(0), &doc); err != nil {
		return err
	}

	result, err := membershipsmodule.Import(database.GetDB(), &doc, membershipsmodule.ImportOptions{
		DryRun: *dryRun,
		Purge:  *purge,
	})
	if err != nil {
		return err
	}

	printWarnings(result.Warnings)
	printCounts("Created", result.Created)
	printCounts("Updated", result.Updated)
	if *dryRun {
		fmt.Println("Dry run, nothing written.")
	}
	return nil
}

func cmdCloneSeason(args []string) error {
	fs := flag.NewFlagSet("clone-season", flag.ExitOnError)
	from := fs.String("from", "", "source season name")
	to := fs.String("to", "", "target season name")
	createTarget := fs.Bool("create-target", false, "create the target season if missing, dates shifted one year")
	dryRun := fs.Bool("dry-run", false, "report changes without writing them")
	overwrite := fs.Bool("overwrite", false, "update rows that already exist on the target")
	includeInactive := fs.Bool("include-inactive", false, "accepted for explicitness; inactive rows are cloned regardless")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" {
		fs.Usage()
		return fmt.Errorf("clone-season requires --from and --to")
	}

	summary, err := membershipsmodule.CloneSeason(database.GetDB(), *from, *to, membershipsmodule.CloneOptions{
		CreateTarget:    *createTarget,
		Overwrite:       *overwrite,
		DryRun:          *dryRun,
		IncludeInactive: *includeInactive,
	})
	if err != nil {
		return err
	}

	printWarnings(summary.Warnings)
	printCounts("Created", summary.Created)
	printCounts("Updated", summary.Updated)
	printCounts("Skipped", summary.Skipped)
	if *dryRun {
		fmt.Println("Dry run, nothing written.")
	}
	return nil
}

func cmdDumpPlayersSeed(args []string) error {
	fs := flag.NewFlagSet("dump-players-seed", flag.ExitOnError)
	pretty := fs.Bool("pretty", false, "indent the output")
	out := fs.String("o", "", "write to this path instead of stdout")
	onlyPlayers := fs.Bool("only-players", false, "omit question answers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := membersmodule.ExportPlayers(database.GetDB(), membersmodule.PlayersSeedOptions{
		OnlyPlayers: *onlyPlayers,
	})
	if err != nil {
		return err
	}
	return writeDocument(*out, doc, *pretty)
}

func cmdSeedPlayers(args []string) error {
	fs := flag.NewFlagSet("seed-players", flag.ExitOnError)
	onlyPlayers := fs.Bool("only-players", false, "import players, skip question answers")
	dryRun := fs.Bool("dry-run", false, "report changes without writing them")
	purge := fs.Bool("purge", false, "delete existing answers before importing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("seed-players requires exactly one PATH argument")
	}

	var doc membersmodule.PlayersDocument
	if err := seed.ReadFile(fs.Arg(0), &doc); err != nil {
		return err
	}

	result, err := membersmodule.ImportPlayers(database.GetDB(), &doc, membersmodule.PlayersSeedOptions{
		OnlyPlayers: *onlyPlayers,
		DryRun:      *dryRun,
		Purge:       *purge,
	})
	if err != nil {
		return err
	}

	printWarnings(result.Warnings)
	fmt.Printf("Players: %d created, %d updated\n", result.PlayersCreated, result.PlayersUpdated)
	if !*onlyPlayers {
		fmt.Printf("Answers: %d created, %d updated\n", result.AnswersCreated, result.AnswersUpdated)
	}
	if *dryRun {
		fmt.Println("Dry run, nothing written.")
	}
	return nil
}

func cmdSyncSpond(args []string) error {
	fs := flag.NewFlagSet("sync-spond", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Get()
	if cfg.Spond.Token == "" {
		return fmt.Errorf("spond token not configured")
	}

	api := spondmodule.NewClient(cfg.Spond)
	result, err := spondmodule.Sync(context.Background(), database.GetDB(), api, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d group(s), %d member(s), %d event(s)\n",
		result.Groups, result.Members, result.Events)
	return nil
}

func cmdSyncSchedule(args []string) error {
	fs := flag.NewFlagSet("sync-schedule", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := schedulermodule.SyncSchedule(database.GetDB(), config.Get().Schedule)
	if err != nil {
		return err
	}
	fmt.Printf("Schedule sync: %d created, %d updated, %d unchanged, %d deleted\n",
		result.Created, result.Updated, result.Unchanged, result.Deleted)
	return nil
}

func cmdSendTaskDigest(args []string) error {
	fs := flag.NewFlagSet("send-task-digest", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "build the digests but send nothing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Get()
	svc := email.NewServiceFromConfig(cfg)
	result, err := tasksmodule.SendDigest(database.GetDB(), svc, cfg.Club.Name, time.Now().UTC(), tasksmodule.DigestOptions{
		DryRun: *dryRun,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Digest: %d recipient(s), %d email(s) sent, %d task(s)\n",
		result.Recipients, result.Sent, result.Tasks)
	return nil
}

func cmdBackfillMembershipNumbers(args []string) error {
	fs := flag.NewFlagSet("backfill-membership-numbers", flag.ExitOnError)
	force := fs.Bool("force", false, "reassign numbers even when one is already set")
	dryRun := fs.Bool("dry-run", false, "report changes without writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := membersmodule.BackfillMembershipNumbers(database.GetDB(), membersmodule.BackfillOptions{
		Force:  *force,
		DryRun: *dryRun,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Backfilled %d membership number(s)\n", result.Updated)
	if *dryRun {
		fmt.Println("Dry run, nothing written.")
	}
	return nil
}
