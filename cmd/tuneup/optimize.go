package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tuneup/pkg/tuneup/optimizer"
	"github.com/jamesainslie/tuneup/pkg/tuneup/prompt"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// runOptimize performs an interactive tuneup.
func runOptimize(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dryRun := viper.GetBool("dry_run")
	printVerbose("workspace: %s", cfg.Workspace)
	printVerbose("root: %s, sudo: %t, dry-run: %t", cfg.Root, cfg.Sudo, dryRun)

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()

	journal, err := openJournal(cfg, out, getVerbose())
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	// A history failure only costs the record of this run.
	store, err := openHistory(cfg)
	if err != nil {
		journal.Logger("history").Warn("history unavailable", "error", err)
		printVerbose("%v", err)
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	opts := optimizer.Options{
		Config:   cfg,
		Journal:  journal,
		Prompter: prompt.New(in, out),
		Runner:   runner.NewExec(journal, runner.Options{Sudo: cfg.Sudo, DryRun: dryRun}),
		Tools:    runner.PathTools{},
		Console:  out,
		Format:   viper.GetString("format"),
		DryRun:   dryRun,
	}
	if store != nil {
		opts.History = store
	}

	o, err := optimizer.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := o.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(out, "Interrupted; see %s\n", journal.Path())
		}
		return err
	}
	return nil
}
