package workflow

import (
	"context"

	"dubber/internal/queue"
)

// JobStatus pairs a job with the aggregate state of its segments.
type JobStatus struct {
	Job    *queue.Job
	Counts queue.SegmentCounts
}

// StatusSummary is a point-in-time view of the daemon's workload.
type StatusSummary struct {
	Running bool
	Queue   queue.HealthSummary
	Jobs    []JobStatus
}

// Status reports queue health plus per-job segment progress for every
// non-terminal job.
func (m *Manager) Status(ctx context.Context) (StatusSummary, error) {
	summary := StatusSummary{Running: m.Running()}

	health, err := m.store.Health(ctx)
	if err != nil {
		return summary, err
	}
	summary.Queue = health

	jobs, err := m.store.List(ctx,
		queue.StatusPending,
		queue.StatusExtracting,
		queue.StatusChunking,
		queue.StatusProcessing,
		queue.StatusMerging,
		queue.StatusPaused,
	)
	if err != nil {
		return summary, err
	}
	for _, job := range jobs {
		counts, err := m.store.SegmentCountsFor(ctx, job.ID)
		if err != nil {
			return summary, err
		}
		summary.Jobs = append(summary.Jobs, JobStatus{Job: job, Counts: counts})
	}
	return summary, nil
}

// Describe returns one job with its segment progress and any permanently
// failed segments.
func (m *Manager) Describe(ctx context.Context, id int64) (*JobStatus, []*queue.Segment, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, nil
	}
	counts, err := m.store.SegmentCountsFor(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	failed, err := m.store.FailedSegments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &JobStatus{Job: job, Counts: counts}, failed, nil
}
