package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dubber/internal/logging"
	"dubber/internal/queue"
)

// Start recovers interrupted work and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.extractor == nil || m.translator == nil || m.synthesizer == nil {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	if err := m.recover(ctx); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("recover interrupted work: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 3)
	m.mu.Unlock()

	go m.intakeLoop(runCtx)
	go m.mergeLoop(runCtx)
	go m.claimSweeper(runCtx)
	for i := 0; i < m.workers; i++ {
		go m.segmentWorker(runCtx, i)
	}

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("poll_interval", m.pollInterval),
	)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// recover returns work interrupted by a previous daemon run to a claimable
// state. Claimed segment stages are discarded and redone; jobs caught
// mid-extraction or mid-chunking restart from pending since neither stage
// has durable intermediate output.
func (m *Manager) recover(ctx context.Context) error {
	reset, err := m.store.ResetStaleInProgress(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		m.logger.Info("reset stale segment claims", logging.Int64("segments", reset))
	}

	interrupted, err := m.store.List(ctx, queue.StatusExtracting, queue.StatusChunking)
	if err != nil {
		return err
	}
	for _, job := range interrupted {
		job.Status = queue.StatusPending
		job.ErrorMessage = ""
		if err := m.store.Update(ctx, job); err != nil {
			return err
		}
		m.logger.Info("requeued interrupted job",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("event_type", "job_requeued"),
		)
	}
	return nil
}

// claimSweeper returns segment claims orphaned at runtime to pending. A
// worker that dies between claiming a stage and persisting its outcome (say
// CompleteSegmentStage losing the database) would otherwise stall the job
// until the next daemon restart.
func (m *Manager) claimSweeper(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reset, err := m.store.ResetStuckClaims(ctx, m.staleClaimAge)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleQueueError(ctx, "reset stuck claims", err)
			continue
		}
		if reset > 0 {
			m.logger.Warn("reset stuck segment claims",
				logging.Int64("segments", reset),
				logging.Duration("older_than", m.staleClaimAge),
			)
		}
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) handleQueueError(ctx context.Context, operation string, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "queue access failed", "queue_fetch_failed",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetryInterval):
	}
}
