package main

import (
	"bytes"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tuneup/pkg/tuneup/distro"
	"github.com/jamesainslie/tuneup/pkg/tuneup/output"
	"github.com/jamesainslie/tuneup/pkg/tuneup/probe"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show the detected distribution and hardware",
	Long: `Detect the distribution, package manager, kernel, SSDs and GPUs the way a
run would, and print the findings that would cause actions to be skipped.

Nothing is changed and the run log is left alone.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

// runProbe prints what a run would detect.
func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	osRelease := filepath.Join(cfg.Root, cfg.OSRelease)
	printVerbose("reading %s", osRelease)

	profile := distro.Lookup(distro.ReadID(osRelease))
	report := probe.Hardware(cmd.Context(), probe.Options{
		Root:   cfg.Root,
		Runner: runner.ReadOnly{},
		Tools:  runner.PathTools{},
	})

	var buf bytes.Buffer
	output.FormatProbe(&buf, profile, report)
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}
