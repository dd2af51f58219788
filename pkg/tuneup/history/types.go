// Package history records tuneup runs in a Badger database.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jamesainslie/tuneup/pkg/tuneup/catalog"
	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// Record is one tuneup run.
type Record struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DistroID        string    `json:"distro_id"`
	PackageManager  string    `json:"package_manager"`
	KernelRelease   string    `json:"kernel_release"`
	Mode            string    `json:"mode"`
	DryRun          bool      `json:"dry_run"`
	Findings        []string  `json:"findings,omitempty"`
	Outcomes        []Outcome `json:"outcomes"`
	RebootRequested bool      `json:"reboot_requested"`

	// Aborted is set when the operator declined to continue on an
	// unsupported distribution.
	Aborted bool   `json:"aborted"`
	LogPath string `json:"log_path"`
}

// Outcome is the stored form of a catalog.Outcome.
type Outcome struct {
	Category string          `json:"category"`
	Title    string          `json:"title"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Commands []CommandRecord `json:"commands,omitempty"`
	Notes    []string        `json:"notes,omitempty"`
}

// CommandRecord is the stored form of a runner.Result.
type CommandRecord struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	DryRun   bool          `json:"dry_run,omitempty"`
}

// OK reports whether the command succeeded.
func (c CommandRecord) OK() bool {
	return c.Error == "" && c.ExitCode == 0
}

// NewRecord starts a record with a fresh ID.
func NewRecord(now time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		StartedAt: now.UTC(),
	}
}

// ShortID returns the first eight characters of the run ID.
func (r *Record) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Duration is how long the run took.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountStatus returns how many outcomes have status.
func (r *Record) CountStatus(status string) int {
	return lo.CountBy(r.Outcomes, func(o Outcome) bool { return o.Status == status })
}

// FailedCommands returns the number of failed commands across all outcomes.
func (r *Record) FailedCommands() int {
	return lo.SumBy(r.Outcomes, func(o Outcome) int {
		return lo.CountBy(o.Commands, func(c CommandRecord) bool { return !c.OK() })
	})
}

// FromOutcome converts a catalog outcome for storage.
func FromOutcome(o catalog.Outcome) Outcome {
	return Outcome{
		Category: o.Category,
		Title:    o.Title,
		Status:   o.Status.String(),
		Reason:   o.Reason,
		Commands: lo.Map(o.Results, func(r runner.Result, _ int) CommandRecord {
			rec := CommandRecord{
				Command:  r.Command.String(),
				ExitCode: r.ExitCode,
				Duration: r.Duration,
				DryRun:   r.DryRun,
			}
			if r.Err != nil {
				rec.Error = r.Err.Error()
			}
			return rec
		}),
		Notes: o.Notes,
	}
}
