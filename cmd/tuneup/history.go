package main

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
	"github.com/jamesainslie/tuneup/pkg/tuneup/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View previous runs",
	Long: `View the history of tuneup runs.

Each run records the detected distribution, the mode, what every action did
and the exit status of every command it ran.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a run",
	Long:  `Display every action and command of a run. The ID may be shortened to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old runs",
	Long:  `Remove runs older than the retention period (history.retention_days).`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory opens the history store at the configured path.
func getHistory() (*history.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	path := cfg.HistoryPath()
	printVerbose("history: %s", path)

	store, err := history.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, cfg, nil
}

// runHistory lists recent runs.
func runHistory(_ *cobra.Command, _ []string) error {
	store, _, err := getHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	var buf bytes.Buffer
	output.FormatHistory(&buf, records, time.Now())
	fmt.Print(buf.String())

	if len(records) == 0 {
		printInfo("Run 'tuneup' to optimize this system.")
		return nil
	}

	total, err := store.Count()
	if err == nil && total > len(records) {
		printInfo("\nShowing %d of %d runs. Use --limit to see more.", len(records), total)
	}
	printInfo("Use 'tuneup history show <id>' for details on a run.")
	return nil
}

// runHistoryShow displays one run.
func runHistoryShow(_ *cobra.Command, args []string) error {
	store, _, err := getHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Get(args[0])
	switch {
	case errors.Is(err, history.ErrNotFound):
		return fmt.Errorf("no run with ID %q", args[0])
	case errors.Is(err, history.ErrAmbiguousID):
		return fmt.Errorf("ID %q matches more than one run; use more characters", args[0])
	case err != nil:
		return fmt.Errorf("failed to get run: %w", err)
	}

	var buf bytes.Buffer
	output.FormatRecord(&buf, rec)
	fmt.Print(buf.String())
	return nil
}

// runHistoryClean removes old runs.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	store, cfg, err := getHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Removing runs older than %d days...", retentionDays)

	removed, err := store.Cleanup(retentionDays, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d runs.", removed)
	return nil
}
