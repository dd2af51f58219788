package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tuneup/cmd/tuneup/tui"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the last run log",
	Long: `Browse the run log written by the most recent tuneup run.

The log is truncated at the start of every run, so it always holds exactly
one run. Use --follow in a second terminal to watch a run as it happens.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

var (
	logFollow bool
	logPlain  bool
)

func init() {
	logCmd.Flags().BoolVarP(&logFollow, "follow", "F", false, "reload the view whenever the log changes")
	logCmd.Flags().BoolVar(&logPlain, "plain", false, "print the raw log instead of opening the viewer")
	rootCmd.AddCommand(logCmd)
}

// runLog opens the viewer or prints the log.
func runLog(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Paths().LogFile
	printVerbose("log file: %s", path)

	if logPlain {
		return printLog(cmd.OutOrStdout(), path)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no run log at %s; run 'tuneup' first", path)
		}
		return err
	}
	return tui.RunLogViewer(path, logFollow)
}

// printLog copies the raw log to w.
func printLog(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no run log at %s; run 'tuneup' first", path)
		}
		return fmt.Errorf("opening log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading log: %w", err)
	}
	return nil
}
