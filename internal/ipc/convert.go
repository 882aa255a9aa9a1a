package ipc

import (
	"time"

	"dubber/internal/queue"
	"dubber/internal/workflow"
)

// FromJob converts a queue job into its wire representation.
func FromJob(job *queue.Job) JobItem {
	if job == nil {
		return JobItem{}
	}
	item := JobItem{
		ID:                  job.ID,
		URL:                 job.URL,
		VideoID:             job.VideoID,
		Title:               job.Title,
		Slug:                job.Slug,
		Status:              string(job.Status),
		SourceLanguage:      job.SourceLanguage,
		TranscriptFile:      job.TranscriptFile,
		OutputDir:           job.OutputDir,
		FinalAudioFile:      job.FinalAudioFile,
		FinalTranscriptFile: job.FinalTranscriptFile,
		ErrorMessage:        job.ErrorMessage,
		PausedFrom:          string(job.PausedFrom),
		CreatedAt:           formatTime(job.CreatedAt),
		UpdatedAt:           formatTime(job.UpdatedAt),
	}
	if job.CompletedAt != nil {
		item.CompletedAt = formatTime(*job.CompletedAt)
	}
	return item
}

// FromSegment converts a queue segment into its wire representation.
func FromSegment(seg *queue.Segment) SegmentItem {
	if seg == nil {
		return SegmentItem{}
	}
	return SegmentItem{
		Seq:                seg.Seq,
		StartSeconds:       seg.StartSeconds,
		EndSeconds:         seg.EndSeconds,
		SourceText:         seg.SourceText,
		TranslatedText:     seg.TranslatedText,
		AudioFile:          seg.AudioFile,
		TranslateStatus:    string(seg.TranslateStatus),
		TranslateAttempts:  seg.TranslateAttempts,
		SynthesizeStatus:   string(seg.SynthesizeStatus),
		SynthesizeAttempts: seg.SynthesizeAttempts,
		LastError:          seg.LastError,
	}
}

// FromSegmentCounts converts aggregate segment counts into the wire form.
func FromSegmentCounts(c queue.SegmentCounts) SegmentProgress {
	return SegmentProgress{
		Total:                c.Total,
		TranslatePending:     c.TranslatePending,
		TranslateInProgress:  c.TranslateInProgress,
		TranslateDone:        c.TranslateDone,
		TranslateFailed:      c.TranslateFailed,
		SynthesizePending:    c.SynthesizePending,
		SynthesizeInProgress: c.SynthesizeInProgress,
		SynthesizeDone:       c.SynthesizeDone,
		SynthesizeFailed:     c.SynthesizeFailed,
	}
}

// FromJobStatus converts a workflow job status into the wire form.
func FromJobStatus(status workflow.JobStatus) JobProgress {
	return JobProgress{
		Job:      FromJob(status.Job),
		Segments: FromSegmentCounts(status.Counts),
	}
}

func fromHealthSummary(h queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:     h.Total,
		Pending:   h.Pending,
		Active:    h.Active,
		Paused:    h.Paused,
		Failed:    h.Failed,
		Completed: h.Completed,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
