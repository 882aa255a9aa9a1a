package ipc

// JobItem is the wire representation of a queued dubbing job.
type JobItem struct {
	ID                  int64  `json:"id"`
	URL                 string `json:"url"`
	VideoID             string `json:"video_id"`
	Title               string `json:"title"`
	Slug                string `json:"slug"`
	Status              string `json:"status"`
	SourceLanguage      string `json:"source_language"`
	TranscriptFile      string `json:"transcript_file"`
	OutputDir           string `json:"output_dir"`
	FinalAudioFile      string `json:"final_audio_file"`
	FinalTranscriptFile string `json:"final_transcript_file"`
	ErrorMessage        string `json:"error_message"`
	PausedFrom          string `json:"paused_from,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
	CompletedAt         string `json:"completed_at,omitempty"`
}

// SegmentItem is the wire representation of one transcript segment.
type SegmentItem struct {
	Seq                int     `json:"seq"`
	StartSeconds       float64 `json:"start_seconds"`
	EndSeconds         float64 `json:"end_seconds"`
	SourceText         string  `json:"source_text"`
	TranslatedText     string  `json:"translated_text"`
	AudioFile          string  `json:"audio_file"`
	TranslateStatus    string  `json:"translate_status"`
	TranslateAttempts  int     `json:"translate_attempts"`
	SynthesizeStatus   string  `json:"synthesize_status"`
	SynthesizeAttempts int     `json:"synthesize_attempts"`
	LastError          string  `json:"last_error"`
}

// SegmentProgress aggregates per-stage segment counts for a job.
type SegmentProgress struct {
	Total                int `json:"total"`
	TranslatePending     int `json:"translate_pending"`
	TranslateInProgress  int `json:"translate_in_progress"`
	TranslateDone        int `json:"translate_done"`
	TranslateFailed      int `json:"translate_failed"`
	SynthesizePending    int `json:"synthesize_pending"`
	SynthesizeInProgress int `json:"synthesize_in_progress"`
	SynthesizeDone       int `json:"synthesize_done"`
	SynthesizeFailed     int `json:"synthesize_failed"`
}

// JobProgress pairs a job with its segment progress.
type JobProgress struct {
	Job      JobItem         `json:"job"`
	Segments SegmentProgress `json:"segments"`
}

// SubmitRequest enqueues a URL for dubbing.
type SubmitRequest struct {
	URL string `json:"url"`
}

// SubmitResponse reports the resulting job. Created is false when the URL
// was already queued.
type SubmitResponse struct {
	Job     JobItem `json:"job"`
	Created bool    `json:"created"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool          `json:"running"`
	QueueDBPath string        `json:"queue_db_path"`
	LockPath    string        `json:"lock_path"`
	Queue       QueueHealth   `json:"queue"`
	Jobs        []JobProgress `json:"jobs"`
}

// QueueHealth reports aggregate job counts.
type QueueHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Paused    int `json:"paused"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// JobListRequest filters queue listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains queue entries.
type JobListResponse struct {
	Jobs []JobItem `json:"jobs"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID int64 `json:"id"`
}

// JobDescribeResponse contains one job, its segment progress, and any
// permanently failed segments.
type JobDescribeResponse struct {
	Job            JobItem         `json:"job"`
	Segments       SegmentProgress `json:"segments"`
	FailedSegments []SegmentItem   `json:"failed_segments"`
}

// PauseRequest parks a job.
type PauseRequest struct {
	ID int64 `json:"id"`
}

// PauseResponse returns the updated job.
type PauseResponse struct {
	Job JobItem `json:"job"`
}

// ResumeRequest returns a paused job to its previous status.
type ResumeRequest struct {
	ID int64 `json:"id"`
}

// ResumeResponse returns the updated job.
type ResumeResponse struct {
	Job JobItem `json:"job"`
}

// CancelRequest terminates a job.
type CancelRequest struct {
	ID int64 `json:"id"`
}

// CancelResponse returns the updated job.
type CancelResponse struct {
	Job JobItem `json:"job"`
}

// RetryRequest retries failed jobs. Empty list means all failed jobs.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse reports number of retried jobs.
type RetryResponse struct {
	Updated int `json:"updated"`
}

// RemoveRequest deletes a job and its segments.
type RemoveRequest struct {
	ID int64 `json:"id"`
}

// RemoveResponse indicates whether a job was deleted.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// ClearCompletedRequest removes completed jobs.
type ClearCompletedRequest struct{}

// ClearCompletedResponse reports number of removed entries.
type ClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	QueueHealth
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalJobs        int    `json:"total_jobs"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
