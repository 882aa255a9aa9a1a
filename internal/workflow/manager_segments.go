package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubber/internal/logging"
	"dubber/internal/output"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// segmentWorker races other workers for claimable segment stages. The claim
// is a compare-and-set in SQLite, so losing a race is routine and silent.
func (m *Manager) segmentWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		work, err := m.store.NextSegmentWork(ctx, 1)
		if err != nil {
			m.handleQueueError(ctx, "next segment work", err)
			continue
		}
		if len(work) == 0 {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		claimed, err := m.store.ClaimSegmentStage(ctx, work[0].Segment.JobID, work[0].Segment.Seq, work[0].Stage)
		if err != nil {
			m.handleQueueError(ctx, "claim segment stage", err)
			continue
		}
		if !claimed {
			continue
		}

		if err := m.processSegment(ctx, logger, work[0]); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) processSegment(ctx context.Context, logger *slog.Logger, work queue.SegmentWork) error {
	seg := work.Segment
	requestID := uuid.NewString()
	segCtx := services.WithRequestID(ctx, requestID)
	segCtx = services.WithJobID(segCtx, seg.JobID)
	segCtx = services.WithSegment(segCtx, seg.Seq)
	segCtx = services.WithStage(segCtx, string(work.Stage))
	segLogger := logging.WithContext(segCtx, logger)

	start := time.Now()
	segLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int(logging.FieldAttempt, seg.AttemptsOf(work.Stage)+1),
	)

	var (
		result string
		err    error
	)
	switch work.Stage {
	case queue.StageTranslate:
		result, err = m.translateSegment(segCtx, seg)
	case queue.StageSynthesize:
		result, err = m.synthesizeSegment(segCtx, seg)
	default:
		err = fmt.Errorf("unknown stage %q", work.Stage)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown: leave the claim for startup recovery to reset.
			return err
		}
		m.failSegmentStage(segCtx, segLogger, seg, work.Stage, err)
		return err
	}

	if err := m.store.CompleteSegmentStage(segCtx, seg.JobID, seg.Seq, work.Stage, result); err != nil {
		m.setLastError(err)
		segLogger.Error("failed to persist stage result", logging.Error(err))
		return err
	}
	segLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
	)

	return m.advanceJob(segCtx, segLogger, seg.JobID)
}

func (m *Manager) translateSegment(ctx context.Context, seg *queue.Segment) (string, error) {
	callCtx := ctx
	if timeout := m.cfg.Translation.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	prev, err := m.previousContext(ctx, seg)
	if err != nil {
		return "", err
	}
	return m.translator.Translate(callCtx, stage.TranslateRequest{
		Text:        seg.SourceText,
		PrevContext: prev,
	})
}

// previousContext returns the tail of the preceding segment's translation so
// the model can keep sentence flow across chunk boundaries.
func (m *Manager) previousContext(ctx context.Context, seg *queue.Segment) (string, error) {
	if seg.Seq == 0 {
		return "", nil
	}
	prev, err := m.store.GetSegment(ctx, seg.JobID, seg.Seq-1)
	if err != nil {
		return "", err
	}
	if prev == nil || prev.TranslateStatus != queue.StageStatusDone {
		return "", nil
	}
	return lastLines(prev.TranslatedText, 2), nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (m *Manager) synthesizeSegment(ctx context.Context, seg *queue.Segment) (string, error) {
	job, err := m.store.GetByID(ctx, seg.JobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("job %d vanished", seg.JobID)
	}

	layout := output.Layout{Root: job.OutputDir, Slug: job.Slug}
	dest := layout.SegmentAudioPath(seg.Seq)

	callCtx := ctx
	if timeout := m.cfg.Synthesis.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	if err := m.synthesizer.Synthesize(callCtx, seg.TranslatedText, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (m *Manager) failSegmentStage(ctx context.Context, logger *slog.Logger, seg *queue.Segment, st queue.Stage, stageErr error) {
	attempts := seg.AttemptsOf(st) + 1
	message := strings.TrimSpace(stageErr.Error())

	// A stage gets RetryCap retries after its first failure, so the cap-plus-
	// first attempt must all fail before the stage turns terminal.
	var retryAt *time.Time
	if services.Retryable(stageErr) && attempts <= m.cfg.Workflow.RetryCap {
		at := time.Now().UTC().Add(m.retryBackoff(attempts))
		retryAt = &at
	}

	attrs := []logging.Attr{
		logging.Error(stageErr),
		logging.Int(logging.FieldAttempt, attempts),
		logging.String(logging.FieldErrorHint, "segment will retry automatically if transient"),
	}
	if retryAt != nil {
		attrs = append(attrs, logging.String("retry_at", retryAt.Format(time.RFC3339)))
	} else {
		attrs = append(attrs, logging.Bool("terminal", true))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)

	if err := m.store.FailSegmentStage(ctx, seg.JobID, seg.Seq, st, message, retryAt); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist stage failure", logging.Error(err))
		return
	}
	m.setLastError(stageErr)

	if retryAt == nil {
		if err := m.advanceJob(ctx, logger, seg.JobID); err != nil {
			logger.Error("failed to advance job after terminal stage failure", logging.Error(err))
		}
	}
}

// retryBackoff returns the delay before a failed stage becomes claimable
// again, doubling per attempt up to the configured ceiling.
func (m *Manager) retryBackoff(attempts int) time.Duration {
	base := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	max := time.Duration(m.cfg.Workflow.RetryBackoffMaxSeconds) * time.Second
	if max < base {
		max = base
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

// advanceJob moves a processing job forward once its segments settle: to
// merging when everything is done, to failed when no further progress is
// possible.
func (m *Manager) advanceJob(ctx context.Context, logger *slog.Logger, jobID int64) error {
	counts, err := m.store.SegmentCountsFor(ctx, jobID)
	if err != nil {
		m.setLastError(err)
		return err
	}

	switch {
	case counts.AllDone():
		job, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			m.setLastError(err)
			return err
		}
		if job == nil || job.Status != queue.StatusProcessing {
			return nil
		}
		job.Status = queue.StatusMerging
		// Conditional write: a cancel or pause between the fetch above and
		// this update must win.
		swapped, err := m.store.UpdateIfStatus(ctx, job, queue.StatusProcessing)
		if err != nil {
			m.setLastError(err)
			return err
		}
		if !swapped {
			return nil
		}
		logger.Info("all segments done, job queued for merge",
			logging.String(logging.FieldEventType, "job_merging"),
		)
	case counts.Stalled():
		job, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			m.setLastError(err)
			return err
		}
		if job == nil || job.Status != queue.StatusProcessing {
			return nil
		}
		m.failJob(ctx, logger, job, "process", m.stalledJobError(ctx, jobID, counts))
	}
	return nil
}

func (m *Manager) stalledJobError(ctx context.Context, jobID int64, counts queue.SegmentCounts) error {
	failed := counts.TranslateFailed + counts.SynthesizeFailed
	segments, err := m.store.FailedSegments(ctx, jobID)
	if err == nil && len(segments) > 0 && segments[0].LastError != "" {
		return fmt.Errorf("%d segment(s) failed permanently, first: %s", failed, segments[0].LastError)
	}
	return fmt.Errorf("%d segment(s) failed permanently", failed)
}
