package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures the run log.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// TuningConfig holds the values written by the kernel tuning actions.
type TuningConfig struct {
	Swappiness        int    `mapstructure:"swappiness"`
	VFSCachePressure  int    `mapstructure:"vfs_cache_pressure"`
	CongestionControl string `mapstructure:"congestion_control"`
	DefaultQdisc      string `mapstructure:"default_qdisc"`
	SnapRetain        int    `mapstructure:"snap_retain"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Workspace string        `mapstructure:"workspace"`
	Root      string        `mapstructure:"root"`
	OSRelease string        `mapstructure:"os_release"`
	Sudo      bool          `mapstructure:"sudo"`
	Logging   LoggingConfig `mapstructure:"logging"`
	Tuning    TuningConfig  `mapstructure:"tuning"`
	History   HistoryConfig `mapstructure:"history"`
}

// Paths is the directory tree a run writes into.
type Paths struct {
	Workspace      string
	Backups        string
	Logs           string
	BrowserConfigs string
	Temp           string
	LogFile        string
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace", DefaultWorkspace)
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("os_release", DefaultOSRelease)
	v.SetDefault("sudo", true)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means <workspace>/logs/tuneup.log

	v.SetDefault("tuning.swappiness", DefaultSwappiness)
	v.SetDefault("tuning.vfs_cache_pressure", DefaultVFSCachePressure)
	v.SetDefault("tuning.congestion_control", DefaultCongestionControl)
	v.SetDefault("tuning.default_qdisc", DefaultQdisc)
	v.SetDefault("tuning.snap_retain", DefaultSnapRetain)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means DefaultHistoryPath()
	v.SetDefault("history.retention_days", DefaultRetentionDays)
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/tuneup/config.yaml
//   - $HOME/.config/tuneup/config.yaml
//
// Environment variables are prefixed with TUNEUP_ (e.g., TUNEUP_WORKSPACE).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "tuneup"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "tuneup"))

	v.SetEnvPrefix("TUNEUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes a Config from v and expands ~ in path settings.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Workspace, &cfg.Logging.Path, &cfg.History.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Paths resolves the workspace directory tree.
func (c *Config) Paths() Paths {
	p := Paths{
		Workspace:      c.Workspace,
		Backups:        filepath.Join(c.Workspace, BackupsDirName),
		Logs:           filepath.Join(c.Workspace, LogsDirName),
		BrowserConfigs: filepath.Join(c.Workspace, BrowserConfigsDirName),
		Temp:           filepath.Join(c.Workspace, TempDirName),
	}
	p.LogFile = c.Logging.Path
	if p.LogFile == "" {
		p.LogFile = filepath.Join(p.Logs, LogFileName)
	}
	return p
}

// HistoryPath returns the configured history database directory.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryPath()
}

// EnsureWorkspace creates every directory in the workspace tree.
func (p Paths) EnsureWorkspace() error {
	for _, dir := range []string{p.Workspace, p.Backups, p.Logs, p.BrowserConfigs, p.Temp, filepath.Dir(p.LogFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "tuneup"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "tuneup"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# tuneup configuration

# Directory holding backups, logs and browser profile copies
workspace: %s

# Filesystem root used for /etc, /sys and /boot paths
root: %s

# Distribution description file
os_release: %s

# Prefix privileged commands with sudo when not running as root
sudo: true

logging:
  # Level for component log lines: debug, info, warn, error
  level: %s
  # Run log path (empty means <workspace>/logs/tuneup.log)
  path: ""

tuning:
  swappiness: %d
  vfs_cache_pressure: %d
  congestion_control: %s
  default_qdisc: %s
  snap_retain: %d

history:
  enabled: true
  # Database directory (empty means $XDG_DATA_HOME/tuneup/history)
  path: ""
  retention_days: %d
`, DefaultWorkspace, DefaultRoot, DefaultOSRelease, DefaultLogLevel,
		DefaultSwappiness, DefaultVFSCachePressure, DefaultCongestionControl, DefaultQdisc,
		DefaultSnapRetain, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/tuneup/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "tuneup")
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}
