package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubber/internal/chunker"
	"dubber/internal/logging"
	"dubber/internal/output"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/transcript"
)

// intakeLoop owns the pending -> extracting -> chunking -> processing path.
// Extraction and chunking run synchronously per job; only segment work is
// parallelized.
func (m *Manager) intakeLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextForStatuses(ctx, queue.StatusPending)
		if err != nil {
			m.handleQueueError(ctx, "next pending job", err)
			continue
		}
		if job == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.prepareJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) prepareJob(ctx context.Context, job *queue.Job) error {
	requestID := uuid.NewString()
	jobCtx := services.WithRequestID(services.WithJobID(ctx, job.ID), requestID)
	logger := logging.WithContext(jobCtx, m.logger)

	lines, err := m.extractJob(jobCtx, logger, job)
	if err != nil {
		return err
	}
	if lines == nil {
		// Job was cancelled or removed mid-extraction.
		return nil
	}
	return m.chunkJob(jobCtx, logger, job, lines)
}

func (m *Manager) extractJob(ctx context.Context, logger *slog.Logger, job *queue.Job) ([]transcript.Line, error) {
	job.Status = queue.StatusExtracting
	job.ErrorMessage = ""
	swapped, err := m.store.UpdateIfStatus(ctx, job, queue.StatusPending)
	if err != nil {
		m.setLastError(err)
		return nil, err
	}
	if !swapped {
		// Cancelled or paused between the queue fetch and the claim.
		return nil, nil
	}
	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldStage, "extract"),
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("url", job.URL),
	)

	extraction, err := m.runExtraction(ctx, logger, job.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		m.failJob(ctx, logger, job, "extract", err)
		return nil, err
	}

	// The user may have cancelled while yt-dlp was running.
	current, err := m.store.GetByID(ctx, job.ID)
	if err != nil {
		m.setLastError(err)
		return nil, err
	}
	if current == nil || current.Status != queue.StatusExtracting {
		logger.Info("job state changed during extraction, discarding result",
			logging.String(logging.FieldEventType, "stage_abandoned"),
		)
		return nil, nil
	}

	job.Title = extraction.Title
	if job.VideoID == "" {
		job.VideoID = extraction.VideoID
	}
	job.SourceLanguage = extraction.Language

	layout := output.NewLayout(m.cfg.Paths.OutputDir, job.VideoID, job.Title)
	if err := layout.Ensure(); err != nil {
		m.failJob(ctx, logger, job, "extract", err)
		return nil, err
	}
	job.Slug = layout.Slug
	job.OutputDir = layout.Root

	logger.Info("stage completed",
		logging.String(logging.FieldStage, "extract"),
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("title", job.Title),
		logging.String("language", extraction.Language),
		logging.Bool("auto_generated", extraction.AutoGenerated),
		logging.Int("lines", len(extraction.Lines)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	if extraction.Lines == nil {
		return []transcript.Line{}, nil
	}
	return extraction.Lines, nil
}

// runExtraction invokes the extractor with per-attempt timeouts, retrying
// transient failures with backoff up to the configured retry cap. A network
// blip on a single yt-dlp call must not fail the whole job.
func (m *Manager) runExtraction(ctx context.Context, logger *slog.Logger, url string) (*stage.Extraction, error) {
	attempts := 0
	for {
		attempts++

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout := m.cfg.Extraction.TimeoutSeconds; timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		}
		extraction, err := m.extractor.Extract(attemptCtx, url)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return extraction, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, context.Canceled
		}
		if !services.Retryable(err) || attempts > m.cfg.Workflow.RetryCap {
			return nil, err
		}

		delay := m.retryBackoff(attempts)
		logger.Warn("extraction failed, retrying",
			logging.Error(err),
			logging.Int(logging.FieldAttempt, attempts),
			logging.Duration("retry_in", delay),
		)
		select {
		case <-ctx.Done():
			return nil, context.Canceled
		case <-time.After(delay):
		}
	}
}

func (m *Manager) chunkJob(ctx context.Context, logger *slog.Logger, job *queue.Job, lines []transcript.Line) error {
	job.Status = queue.StatusChunking
	swapped, err := m.store.UpdateIfStatus(ctx, job, queue.StatusExtracting)
	if err != nil {
		m.setLastError(err)
		return err
	}
	if !swapped {
		logger.Info("job state changed before chunking, discarding transcript",
			logging.String(logging.FieldEventType, "stage_abandoned"),
		)
		return nil
	}
	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldStage, "chunk"),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	cleaned := cleanLines(transcript.Preprocess(lines))
	layout := output.Layout{Root: job.OutputDir, Slug: job.Slug}
	if err := output.WriteText(layout.OriginalTranscriptPath(), transcript.JoinText(cleaned)); err != nil {
		m.failJob(ctx, logger, job, "chunk", err)
		return err
	}
	job.TranscriptFile = layout.OriginalTranscriptPath()

	chunks := chunker.Split(cleaned, chunker.FromConfig(m.cfg))
	if len(chunks) == 0 {
		// Nothing to translate: the video has no usable speech.
		m.completeJob(ctx, logger, job, queue.StatusChunking)
		return nil
	}

	segments := make([]queue.Segment, 0, len(chunks))
	for _, chunk := range chunks {
		segments = append(segments, queue.Segment{
			Seq:          chunk.Seq,
			StartSeconds: chunk.Start,
			EndSeconds:   chunk.End,
			SourceText:   chunk.Text(),
		})
	}
	if err := m.store.CreateSegments(ctx, job.ID, segments); err != nil {
		m.failJob(ctx, logger, job, "chunk", err)
		return err
	}

	job.Status = queue.StatusProcessing
	swapped, err = m.store.UpdateIfStatus(ctx, job, queue.StatusChunking)
	if err != nil {
		m.setLastError(err)
		return err
	}
	if !swapped {
		// A cancel mid-chunking wins. The created segments stay with the
		// cancelled job and are never dispatched.
		logger.Info("job state changed during chunking, not dispatching segments",
			logging.String(logging.FieldEventType, "stage_abandoned"),
		)
		return nil
	}
	logger.Info("stage completed",
		logging.String(logging.FieldStage, "chunk"),
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("segments", len(segments)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return nil
}

// cleanLines strips filler words after deduplication and drops lines whose
// text vanished entirely.
func cleanLines(lines []transcript.Line) []transcript.Line {
	cleaned := make([]transcript.Line, 0, len(lines))
	for _, line := range lines {
		line.Text = transcript.RemoveFillers(line.Text)
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		line.Index = len(cleaned)
		cleaned = append(cleaned, line)
	}
	return cleaned
}
