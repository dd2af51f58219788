package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tuneup",
		Short: "Apply a fixed set of Linux performance tweaks",
		Long: `Tuneup detects the distribution and package manager, probes the hardware,
then applies seven optimizations in order:

  Power Management, CPU & Memory Tuning, GPU Drivers, Browser Profiles,
  Flatpak & Snap, SSD TRIM and Network (BBR).

Every command and its output goes to the run log (truncated each run).
Choose full mode to apply everything, or step-by-step to confirm each one.

Examples:
  tuneup                     # Interactive run
  tuneup --dry-run           # Log the commands without running them
  tuneup probe               # Show what was detected, change nothing
  tuneup history             # List previous runs
  tuneup log                 # Browse the last run log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOptimize,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tuneup/config.yaml)")
	rootCmd.PersistentFlags().String("workspace", "", "directory for backups, logs and browser profile copies")
	rootCmd.PersistentFlags().String("root", "", "filesystem root for /etc, /sys and /boot paths")
	rootCmd.PersistentFlags().String("log-level", "", "level for component log lines (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "mirror component log lines to stderr")

	rootCmd.Flags().BoolP("dry-run", "d", false, "log commands without running them")
	rootCmd.Flags().Bool("no-sudo", false, "never prefix privileged commands with sudo")
	rootCmd.Flags().StringP("format", "f", "pretty", "summary format (pretty, plain)")

	bindFlags()
}

// bindFlags binds the root flags to their viper keys.
func bindFlags() {
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("no_sudo", rootCmd.Flags().Lookup("no-sudo"))
	_ = viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "tuneup"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "tuneup"))
		}
	}

	viper.SetEnvPrefix("TUNEUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// loadConfig decodes the merged flag, env, file and default settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	// An empty flag value bound over a default would blank these out.
	if cfg.Workspace == "" {
		if cfg.Workspace, err = config.ExpandPath(config.DefaultWorkspace); err != nil {
			return nil, err
		}
	}
	if cfg.Root == "" {
		cfg.Root = config.DefaultRoot
	}
	if viper.GetBool("no_sudo") {
		cfg.Sudo = false
	}

	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stdout.
func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
