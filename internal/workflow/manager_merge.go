package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubber/internal/logging"
	"dubber/internal/merger"
	"dubber/internal/output"
	"dubber/internal/queue"
	"dubber/internal/services"
)

// mergeLoop finishes jobs whose segments are all translated and synthesized.
func (m *Manager) mergeLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextForStatuses(ctx, queue.StatusMerging)
		if err != nil {
			m.handleQueueError(ctx, "next merging job", err)
			continue
		}
		if job == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.mergeJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) mergeJob(ctx context.Context, job *queue.Job) error {
	requestID := uuid.NewString()
	jobCtx := services.WithRequestID(services.WithJobID(ctx, job.ID), requestID)
	logger := logging.WithContext(jobCtx, m.logger)

	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldStage, "merge"),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	segments, err := m.store.SegmentsForJob(jobCtx, job.ID)
	if err != nil {
		m.setLastError(err)
		return err
	}
	values := make([]queue.Segment, 0, len(segments))
	for _, seg := range segments {
		values = append(values, *seg)
	}

	layout := output.Layout{Root: job.OutputDir, Slug: job.Slug}

	if err := output.WriteText(layout.TranslatedTranscriptPath(), merger.TranscriptTranslated(values)); err != nil {
		m.failJob(jobCtx, logger, job, "merge", err)
		return err
	}
	sources, err := merger.AudioSources(values)
	if err != nil {
		m.failJob(jobCtx, logger, job, "merge", err)
		return err
	}
	if err := merger.ConcatAudio(layout.FinalAudioPath(), sources); err != nil {
		m.failJob(jobCtx, logger, job, "merge", err)
		return err
	}

	job.FinalTranscriptFile = layout.TranslatedTranscriptPath()
	job.FinalAudioFile = layout.FinalAudioPath()
	logger.Info("stage completed",
		logging.String(logging.FieldStage, "merge"),
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("segments", len(values)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	m.completeJob(jobCtx, logger, job, queue.StatusMerging)
	return nil
}

// completeJob marks a job done, but only while its stored status still equals
// from. A cancel or pause that landed while the final stage ran wins; the
// completion is discarded.
func (m *Manager) completeJob(ctx context.Context, logger *slog.Logger, job *queue.Job, from queue.Status) {
	now := time.Now().UTC()
	job.Status = queue.StatusCompleted
	job.ErrorMessage = ""
	job.PausedFrom = ""
	job.CompletedAt = &now
	swapped, err := m.store.UpdateIfStatus(ctx, job, from)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to persist job completion", logging.Error(err))
		return
	}
	if !swapped {
		logger.Info("job state changed before completion, discarding result",
			logging.String(logging.FieldEventType, "stage_abandoned"),
		)
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("final_audio", job.FinalAudioFile),
	)
	if err := m.notifier.NotifyJobCompleted(ctx, job.Title, job.FinalAudioFile); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, stageName string, jobErr error) {
	message := strings.TrimSpace(jobErr.Error())
	if message == "" {
		message = stageName + " failed"
	}
	from := job.Status
	job.SetFailed(message)
	swapped, err := m.store.UpdateIfStatus(ctx, job, from)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			m.setLastError(err)
			logger.Error("failed to persist job failure", logging.Error(err))
		}
		return
	}
	if !swapped {
		logger.Info("job state changed before failure could be recorded, discarding",
			logging.String(logging.FieldEventType, "stage_abandoned"),
		)
		return
	}
	m.setLastError(jobErr)
	logging.ErrorWithContext(logger, "job failed", "job_failure",
		logging.String(logging.FieldStage, stageName),
		logging.Error(jobErr),
		logging.String(logging.FieldErrorHint, "inspect job error and retry"),
	)
	if err := m.notifier.NotifyJobFailed(ctx, job.Title, jobErr); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}
