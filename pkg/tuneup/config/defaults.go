// Package config provides configuration management for the tuneup optimizer.
package config

// Default configuration values for tuneup.
const (
	// DefaultWorkspace is the directory holding backups, logs and browser profile copies.
	DefaultWorkspace = "~/tuneup"

	// DefaultRoot is the filesystem root system paths are resolved against.
	DefaultRoot = "/"

	// DefaultOSRelease is the distribution description file.
	DefaultOSRelease = "/etc/os-release"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/tuneup"

	// DefaultLogLevel is the level for component loggers in the run log.
	DefaultLogLevel = "info"

	// DefaultSwappiness is the vm.swappiness value applied by the CPU action.
	DefaultSwappiness = 10

	// DefaultVFSCachePressure is the vm.vfs_cache_pressure value applied by the CPU action.
	DefaultVFSCachePressure = 50

	// DefaultCongestionControl is the TCP congestion control algorithm.
	DefaultCongestionControl = "bbr"

	// DefaultQdisc is the default queueing discipline paired with BBR.
	DefaultQdisc = "fq"

	// DefaultSnapRetain is the number of snap revisions kept per package.
	DefaultSnapRetain = 2

	// DefaultRetentionDays is the default number of days to retain run history.
	DefaultRetentionDays = 90
)

// Workspace subdirectory names.
const (
	BackupsDirName        = "backups"
	LogsDirName           = "logs"
	BrowserConfigsDirName = "browser-configs"
	TempDirName           = "tmp"

	// LogFileName is the run log, truncated at the start of every run.
	LogFileName = "tuneup.log"
)
