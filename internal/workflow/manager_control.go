package workflow

import (
	"context"
	"fmt"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/services/ytdlp"
)

// Submit validates a YouTube URL and enqueues it. Submitting a video that
// already has a non-terminal job returns the existing job instead of a
// duplicate.
func (m *Manager) Submit(ctx context.Context, url string) (*queue.Job, bool, error) {
	url = strings.TrimSpace(url)
	videoID, ok := ytdlp.ExtractVideoID(url)
	if !ok {
		return nil, false, services.Wrap(services.ErrValidation, "submit", "url",
			fmt.Sprintf("not a recognizable YouTube URL: %q", url), nil)
	}

	existing, err := m.store.FindByVideoID(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	job, err := m.store.NewJob(ctx, url, videoID)
	if err != nil {
		return nil, false, err
	}
	m.logger.Info("job submitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("video_id", videoID),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	if err := m.notifier.NotifyJobSubmitted(ctx, url); err != nil {
		m.logger.Warn("submission notification failed", logging.Error(err))
	}
	return job, true, nil
}

// Pause parks a job so no new segment work is claimed for it. In-flight
// stage calls finish and their results are kept; a merge that loses the race
// to a pause discards its final write and reruns on resume. Jobs
// mid-extraction or mid-chunking cannot be paused; those phases are short
// and owned by a single goroutine, and cancel covers them.
func (m *Manager) Pause(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "control", "pause", fmt.Sprintf("job %d not found", id), nil)
	}
	switch job.Status {
	case queue.StatusPending, queue.StatusProcessing, queue.StatusMerging:
	default:
		return nil, services.Wrap(services.ErrValidation, "control", "pause",
			fmt.Sprintf("job %d cannot be paused from status %s", id, job.Status), nil)
	}

	from := job.Status
	job.PausedFrom = from
	job.Status = queue.StatusPaused
	swapped, err := m.store.UpdateIfStatus(ctx, job, from)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, services.Wrap(services.ErrValidation, "control", "pause",
			fmt.Sprintf("job %d changed state while pausing, try again", id), nil)
	}
	m.logger.Info("job paused",
		logging.Int64(logging.FieldJobID, id),
		logging.String("paused_from", string(job.PausedFrom)),
		logging.String(logging.FieldEventType, "job_paused"),
	)
	return job, nil
}

// Resume returns a paused job to the status it was paused from.
func (m *Manager) Resume(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "control", "resume", fmt.Sprintf("job %d not found", id), nil)
	}
	if job.Status != queue.StatusPaused {
		return nil, services.Wrap(services.ErrValidation, "control", "resume",
			fmt.Sprintf("job %d is not paused (status %s)", id, job.Status), nil)
	}

	resumed := job.PausedFrom
	if resumed == "" {
		resumed = queue.StatusPending
	}
	job.Status = resumed
	job.PausedFrom = ""
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job resumed",
		logging.Int64(logging.FieldJobID, id),
		logging.String("status", string(job.Status)),
		logging.String(logging.FieldEventType, "job_resumed"),
	)
	return job, nil
}

// Cancel terminates a job. Segment rows and any partial output on disk are
// kept for inspection.
func (m *Manager) Cancel(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "control", "cancel", fmt.Sprintf("job %d not found", id), nil)
	}
	if queue.IsTerminal(job.Status) {
		return nil, services.Wrap(services.ErrValidation, "control", "cancel",
			fmt.Sprintf("job %d already finished (status %s)", id, job.Status), nil)
	}

	from := job.Status
	job.Status = queue.StatusCancelled
	job.ErrorMessage = queue.UserStopReason
	job.PausedFrom = ""
	swapped, err := m.store.UpdateIfStatus(ctx, job, from)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, services.Wrap(services.ErrValidation, "control", "cancel",
			fmt.Sprintf("job %d changed state while cancelling, try again", id), nil)
	}
	m.logger.Info("job cancelled",
		logging.Int64(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	return job, nil
}

// Retry returns failed jobs to a runnable state. Jobs that already have
// segments resume processing with failed stages reset; jobs that never got
// that far start over from pending. With no ids every failed job is retried.
func (m *Manager) Retry(ctx context.Context, ids ...int64) (int, error) {
	var jobs []*queue.Job
	if len(ids) == 0 {
		failed, err := m.store.List(ctx, queue.StatusFailed)
		if err != nil {
			return 0, err
		}
		jobs = failed
	} else {
		for _, id := range ids {
			job, err := m.store.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			if job == nil || job.Status != queue.StatusFailed {
				continue
			}
			jobs = append(jobs, job)
		}
	}

	retried := 0
	for _, job := range jobs {
		if _, err := m.store.ResetFailedSegments(ctx, job.ID); err != nil {
			return retried, err
		}
		counts, err := m.store.SegmentCountsFor(ctx, job.ID)
		if err != nil {
			return retried, err
		}
		if counts.Total > 0 {
			job.Status = queue.StatusProcessing
		} else {
			job.Status = queue.StatusPending
		}
		job.ErrorMessage = ""
		if err := m.store.Update(ctx, job); err != nil {
			return retried, err
		}
		retried++
		m.logger.Info("job retried",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldEventType, "job_retried"),
		)
	}
	return retried, nil
}
