package domain

// JobStatus tracks the lifecycle of one folder job inside a batch.
type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusScanning     JobStatus = "scanning"
	JobStatusMissingFiles JobStatus = "missing_files"
	JobStatusRunning      JobStatus = "running"
	JobStatusSucceeded    JobStatus = "succeeded"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// IsTerminal reports whether a job can no longer change status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusMissingFiles, JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the allowed job state machine edges.
func ValidTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusScanning
	case JobStatusScanning:
		return to == JobStatusMissingFiles || to == JobStatusRunning ||
			to == JobStatusFailed || to == JobStatusCancelled
	case JobStatusRunning:
		return to == JobStatusSucceeded || to == JobStatusFailed || to == JobStatusCancelled
	default:
		return false
	}
}

// FolderJob is one unit of batch work for a single input folder.
// The orchestrator goroutine is the only writer; everything else
// reads snapshots.
type FolderJob struct {
	ID           string    `json:"id"`
	FolderPath   string    `json:"folderPath"`
	VideoPath    string    `json:"videoPath,omitempty"`
	SubtitlePath string    `json:"subtitlePath,omitempty"`
	OutputPath   string    `json:"outputPath,omitempty"`
	Status       JobStatus `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	LogLines     []string  `json:"logLines,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	MkvmergePath       string   `json:"mkvmergePath"`
	VideoExtensions    []string `json:"videoExtensions"`
	SubtitleExtensions []string `json:"subtitleExtensions"`
	OutputSuffix       string   `json:"outputSuffix"`
	OutputDir          string   `json:"outputDir,omitempty"`
	Language           string   `json:"language"`
	TrackName          string   `json:"trackName,omitempty"`
	VerifyInputs       bool     `json:"verifyInputs"`
	JobTimeoutMinutes  int      `json:"jobTimeoutMinutes"`
}

// BatchSummary aggregates per-job outcomes after one batch run.
// Attempted counts jobs that reached the merge stage, including the one
// cut short by cancellation.
type BatchSummary struct {
	Total     int `json:"total"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}
