package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tuneup/pkg/tuneup/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tuneup configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/tuneup/config.yaml (if set)
  2. ~/.config/tuneup/config.yaml

Environment variables can override config file settings using the TUNEUP_ prefix:
  TUNEUP_WORKSPACE=/srv/tuneup
  TUNEUP_TUNING_SWAPPINESS=20
  TUNEUP_HISTORY_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

// envOverrides are the environment variables reported by "config show".
var envOverrides = []string{
	"TUNEUP_WORKSPACE",
	"TUNEUP_ROOT",
	"TUNEUP_OS_RELEASE",
	"TUNEUP_SUDO",
	"TUNEUP_LOGGING_LEVEL",
	"TUNEUP_LOGGING_PATH",
	"TUNEUP_TUNING_SWAPPINESS",
	"TUNEUP_TUNING_VFS_CACHE_PRESSURE",
	"TUNEUP_TUNING_CONGESTION_CONTROL",
	"TUNEUP_TUNING_DEFAULT_QDISC",
	"TUNEUP_TUNING_SNAP_RETAIN",
	"TUNEUP_HISTORY_ENABLED",
	"TUNEUP_HISTORY_PATH",
	"TUNEUP_HISTORY_RETENTION_DAYS",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configFilePath returns the default config file location.
func configFilePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	w := cmd.OutOrStdout()
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(w, "Config file: %s\n\n", configFile)
	} else {
		fmt.Fprintln(w, "Config file: (using defaults, no file found)")
		fmt.Fprintln(w)
	}

	writeConfig(w, cfg)

	fmt.Fprintln(w, "\nEnvironment Overrides:")
	fmt.Fprintln(w, "----------------------")
	anyOverrides := false
	for _, name := range envOverrides {
		if val := os.Getenv(name); val != "" {
			fmt.Fprintf(w, "%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Fprintln(w, "(none)")
	}

	return nil
}

// writeConfig prints every setting with its resolved value.
func writeConfig(w io.Writer, cfg *config.Config) {
	paths := cfg.Paths()

	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "----------------------")
	fmt.Fprintf(w, "workspace:                  %s\n", cfg.Workspace)
	fmt.Fprintf(w, "root:                       %s\n", cfg.Root)
	fmt.Fprintf(w, "os_release:                 %s\n", cfg.OSRelease)
	fmt.Fprintf(w, "sudo:                       %t\n", cfg.Sudo)
	fmt.Fprintf(w, "logging.level:              %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "logging.path:               %s\n", paths.LogFile)
	fmt.Fprintf(w, "tuning.swappiness:          %d\n", cfg.Tuning.Swappiness)
	fmt.Fprintf(w, "tuning.vfs_cache_pressure:  %d\n", cfg.Tuning.VFSCachePressure)
	fmt.Fprintf(w, "tuning.congestion_control:  %s\n", cfg.Tuning.CongestionControl)
	fmt.Fprintf(w, "tuning.default_qdisc:       %s\n", cfg.Tuning.DefaultQdisc)
	fmt.Fprintf(w, "tuning.snap_retain:         %d\n", cfg.Tuning.SnapRetain)
	fmt.Fprintf(w, "history.enabled:            %t\n", cfg.History.Enabled)
	fmt.Fprintf(w, "history.path:               %s\n", cfg.HistoryPath())
	fmt.Fprintf(w, "history.retention_days:     %d\n", cfg.History.RetentionDays)
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configPath, err := configFilePath()
	if err != nil {
		return err
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'tuneup config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, _ []string) error {
	configPath, err := configFilePath()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
