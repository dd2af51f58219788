package catalog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/tuneup/pkg/tuneup/fsutil"
)

// Browser is a supported browser and its profile directory under $HOME.
type Browser struct {
	Binary     string
	ProfileDir string
}

// Browsers lists the browsers whose profiles are backed up, in order.
var Browsers = []Browser{
	{Binary: "firefox", ProfileDir: ".mozilla/firefox"},
	{Binary: "google-chrome", ProfileDir: ".config/google-chrome"},
	{Binary: "chromium", ProfileDir: ".config/chromium"},
	{Binary: "brave-browser", ProfileDir: ".config/BraveSoftware/Brave-Browser"},
}

// BackupDir returns where the browser's profile copy is kept.
func (b Browser) BackupDir(browserConfigs string) string {
	return filepath.Join(browserConfigs, b.Binary+"-backup")
}

type browsersAction struct{}

func (browsersAction) Category() string { return "browsers" }
func (browsersAction) Title() string    { return "Browser Profiles" }

func (browsersAction) Run(ctx context.Context, env *Env) Outcome {
	var o Outcome
	found := 0

	for _, b := range Browsers {
		if !env.Tools.Has(b.Binary) {
			continue
		}
		found++

		src := filepath.Join(env.Home, b.ProfileDir)
		dst := b.BackupDir(env.Paths.BrowserConfigs)

		if _, err := os.Stat(src); err != nil {
			env.note(&o, "No %s profile at %s; skipping backup", b.Binary, src)
		} else if env.DryRun {
			env.note(&o, "[dry-run] would copy %s to %s", src, dst)
		} else if stats, err := fsutil.ReplaceTree(ctx, src, dst, env.Paths.Temp); err != nil {
			env.note(&o, "Backup of %s profile failed: %v", b.Binary, err)
		} else {
			env.note(&o, "Backed up %s to %s (%d files, %s)", src, dst, stats.Files, humanize.Bytes(uint64(stats.Bytes)))
			for _, copyErr := range stats.Errors {
				env.Journal.Printf("  not copied: %v", copyErr)
			}
		}

		env.note(&o, "Enabling hardware acceleration for %s", b.Binary)
	}

	if found == 0 {
		env.skip(&o, "no supported browser installed")
	}

	return o
}
