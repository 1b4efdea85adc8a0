// Package types defines core data structures used across phockup modules.
package types

import (
	"time"
)

// MediaKind classifies a file by the MIME type reported by the metadata collaborator.
type MediaKind string

const (
	MediaKindImage   MediaKind = "image"
	MediaKindVideo   MediaKind = "video"
	MediaKindOther   MediaKind = "other"
	MediaKindUnknown MediaKind = "unknown"
)

// IsMedia reports whether the kind goes through date resolution.
func (k MediaKind) IsMedia() bool {
	return k == MediaKindImage || k == MediaKindVideo
}

// TransferMode selects how a file reaches its target path.
type TransferMode string

const (
	TransferCopy TransferMode = "copy"
	TransferMove TransferMode = "move"
	TransferLink TransferMode = "link"
)

// Tags is the tag name to value mapping returned by a metadata extractor.
// Values are strings or, occasionally, numbers.
type Tags map[string]any

// ResolvedDate is the canonical capture date of a file.
type ResolvedDate struct {
	// Timestamp has second precision. Its wall-clock fields are what gets rendered;
	// the location carries no meaning.
	Timestamp time.Time
	// Subseconds is the fraction text found after the seconds, kept verbatim.
	Subseconds string
}

// FileTask is one regular file discovered under the input tree.
type FileTask struct {
	// SourcePath is the path of the file as discovered by the walker.
	SourcePath string
	// Order is the position of the file in the walk, starting at zero.
	Order int
}

// TargetPlan is the computed placement of a FileTask.
type TargetPlan struct {
	// OutputDir is the directory the file is placed in (e.g. "OUT/2017/01/01" or "OUT/unknown").
	OutputDir string
	// FileName is the planned base name before any collision suffix.
	FileName string
	// FilePath is OutputDir joined with FileName.
	FilePath string
	// Kind is the media kind derived from the MIME type tag.
	Kind MediaKind
	// Date is nil when the date is unknown.
	Date *ResolvedDate
}

// DuplicateAction is the decision taken for a target path.
type DuplicateAction string

const (
	ActionProceed         DuplicateAction = "proceed"
	ActionSkipDuplicate   DuplicateAction = "skip_duplicate"
	ActionDeleteDuplicate DuplicateAction = "delete_duplicate"
)

// Resolution is the result of duplicate detection for one file.
type Resolution struct {
	Action DuplicateAction
	// TargetPath is the free slot for ActionProceed, or the identical file otherwise.
	TargetPath string
	// Suffix is the collision counter; 1 means no suffix was added.
	Suffix int
	// Pending marks a duplicate of a file claimed earlier in the run but not yet on disk.
	Pending bool
}

// Outcome describes what happened to a single file.
type Outcome string

const (
	OutcomeCopied    Outcome = "copied"
	OutcomeMoved     Outcome = "moved"
	OutcomeLinked    Outcome = "linked"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeVanished  Outcome = "vanished"
	OutcomeFailed    Outcome = "failed"
)

// FileOutcome is the per-file record handed to the logger and the progress callback.
type FileOutcome struct {
	Task    FileTask
	Outcome Outcome
	// Target is the final target path, or the identical file for duplicates.
	Target string
	// Reason explains filtered and skipped outcomes.
	Reason string
	// UnknownDate is set when the file was planned into the unknown-date directory.
	UnknownDate bool
	Error       error
	DryRun      bool
}

// RunSummary contains statistics for a completed run.
type RunSummary struct {
	Processed   int64
	Copied      int64
	Moved       int64
	Linked      int64
	Duplicates  int64
	Deleted     int64
	Unknown     int64
	Filtered    int64
	Failed      int64
	Interrupted bool
	DryRun      bool
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// FilesPerSecond returns the processing throughput of the run.
func (s RunSummary) FilesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Duration.Seconds()
}
