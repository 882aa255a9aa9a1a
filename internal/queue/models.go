package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a dubbing job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusChunking   Status = "chunking"
	StatusProcessing Status = "processing"
	StatusMerging    Status = "merging"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPaused     Status = "paused"
	StatusCancelled  Status = "cancelled"
)

// UserStopReason is the error message set when a user cancels a job.
const UserStopReason = "Cancelled by user"

// DaemonStopReason is the error message set when jobs are interrupted by daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusChunking,
	StatusProcessing,
	StatusMerging,
	StatusCompleted,
	StatusFailed,
	StatusPaused,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = map[Status]struct{}{
	StatusExtracting: {},
	StatusChunking:   {},
	StatusProcessing: {},
	StatusMerging:    {},
}

// Stage identifies a per-segment pipeline stage.
type Stage string

const (
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
)

// StageStatus tracks the state of one stage of one segment.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusDone       StageStatus = "done"
	StageStatusFailed     StageStatus = "failed"
)

// Job represents a dubbing job persisted in SQLite.
type Job struct {
	ID                  int64
	URL                 string
	VideoID             string
	Title               string
	Slug                string
	Status              Status
	SourceLanguage      string
	TranscriptFile      string
	OutputDir           string
	FinalAudioFile      string
	FinalTranscriptFile string
	ErrorMessage        string
	PausedFrom          Status
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

// Segment is one transcript chunk flowing through translation and synthesis.
type Segment struct {
	JobID              int64
	Seq                int
	StartSeconds       float64
	EndSeconds         float64
	SourceText         string
	TranslatedText     string
	AudioFile          string
	TranslateStatus    StageStatus
	TranslateAttempts  int
	SynthesizeStatus   StageStatus
	SynthesizeAttempts int
	RetryAt            *time.Time
	LastError          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StageStatusOf returns the stage status of a segment for the given stage.
func (s Segment) StageStatusOf(stage Stage) StageStatus {
	if stage == StageSynthesize {
		return s.SynthesizeStatus
	}
	return s.TranslateStatus
}

// AttemptsOf returns the attempt count for the given stage.
func (s Segment) AttemptsOf(stage Stage) int {
	if stage == StageSynthesize {
		return s.SynthesizeAttempts
	}
	return s.TranslateAttempts
}

// SegmentCounts aggregates per-stage segment state for a job.
type SegmentCounts struct {
	Total                int
	TranslatePending     int
	TranslateInProgress  int
	TranslateDone        int
	TranslateFailed      int
	SynthesizePending    int
	SynthesizeInProgress int
	SynthesizeDone       int
	SynthesizeFailed     int
}

// AllDone reports whether every segment finished both stages.
func (c SegmentCounts) AllDone() bool {
	return c.Total > 0 && c.TranslateDone == c.Total && c.SynthesizeDone == c.Total
}

// InFlight reports whether any segment stage is currently claimed by a worker.
func (c SegmentCounts) InFlight() bool {
	return c.TranslateInProgress > 0 || c.SynthesizeInProgress > 0
}

// HasFailures reports whether any segment stage has exhausted its retries.
func (c SegmentCounts) HasFailures() bool {
	return c.TranslateFailed > 0 || c.SynthesizeFailed > 0
}

// Stalled reports whether a job can make no further segment progress: at
// least one stage failed for good, nothing is claimed, and no claimable
// work remains. Synthesis is only claimable once translation is done, so
// pending synthesis behind a failed translation does not count.
func (c SegmentCounts) Stalled() bool {
	if !c.HasFailures() || c.InFlight() {
		return false
	}
	if c.TranslatePending > 0 {
		return false
	}
	return c.TranslateDone-c.SynthesizeDone-c.SynthesizeFailed <= 0
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Active    int
	Paused    int
	Failed    int
	Completed int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	switch Stage(strings.ToLower(strings.TrimSpace(value))) {
	case StageTranslate:
		return StageTranslate, true
	case StageSynthesize:
		return StageSynthesize, true
	default:
		return "", false
	}
}

// IsActive returns true when the status reflects an in-flight job.
func (j Job) IsActive() bool {
	_, ok := activeStatuses[j.Status]
	return ok
}

// IsActiveStatus reports whether a status reflects an in-flight job.
func IsActiveStatus(status Status) bool {
	_, ok := activeStatuses[status]
	return ok
}

// IsTerminal reports whether a status is final.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.PausedFrom = ""
}
