package domain

import "time"

// Target identifies one monitored deployment of the captcha widget.
type Target struct {
	Host    string `json:"host"`
	SiteKey string `json:"site_key"`
}

// Release describes a newly detected asset bundle for a target. Version is
// the trailing segment of ResourcePath and the archival key; ScriptVer is the
// hex id extracted from the bootstrap script.
type Release struct {
	Target       Target    `json:"target"`
	Version      string    `json:"version"`
	ScriptVer    string    `json:"script_version"`
	ResourcePath string    `json:"resource_path"`
	ResourceURL  string    `json:"resource_url"`
	ArchiveDir   string    `json:"archive_dir"`
	DetectedAt   time.Time `json:"detected_at"`
}

// AssetResult is the outcome of archiving a single named asset.
type AssetResult struct {
	Name string
	URL  string
	Path string // empty when the download or write failed
	Err  error
}

// OK reports whether the asset was written to disk.
func (r AssetResult) OK() bool {
	return r.Err == nil
}

// TargetOutcome is the status of one target within a poll cycle.
type TargetOutcome string

const (
	OutcomeNew       TargetOutcome = "new"
	OutcomeUnchanged TargetOutcome = "unchanged"
	OutcomeFailed    TargetOutcome = "failed"
)

// TargetReport summarizes what happened to one target in a cycle.
type TargetReport struct {
	Target  Target
	Outcome TargetOutcome
	Release *Release // set when Outcome is OutcomeNew
	Assets  []AssetResult
	Err     error
}

// CycleReport collects the per-target reports of one full pass.
type CycleReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Targets   []TargetReport
}
