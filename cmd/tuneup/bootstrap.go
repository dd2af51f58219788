package main

import (
	"fmt"
	"io"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
	"github.com/jamesainslie/tuneup/pkg/tuneup/history"
	"github.com/jamesainslie/tuneup/pkg/tuneup/logging"
)

// openJournal creates the workspace and opens the run log, truncating it.
func openJournal(cfg *config.Config, console io.Writer, verbose bool) (*logging.Journal, error) {
	paths := cfg.Paths()
	if err := paths.EnsureWorkspace(); err != nil {
		return nil, err
	}

	j, err := logging.Open(logging.Options{
		Path:    paths.LogFile,
		Level:   cfg.Logging.Level,
		Console: console,
		Verbose: verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return j, nil
}

// openHistory opens the run history store, or returns nil when history is
// disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}
