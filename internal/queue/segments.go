package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// stageColumns maps a stage to its status and attempts column names.
func stageColumns(stage Stage) (statusCol, attemptsCol string, err error) {
	switch stage {
	case StageTranslate:
		return "translate_status", "translate_attempts", nil
	case StageSynthesize:
		return "synthesize_status", "synthesize_attempts", nil
	default:
		return "", "", fmt.Errorf("unknown stage %q", stage)
	}
}

// CreateSegments inserts the chunked transcript for a job. The insert is
// idempotent per (job_id, seq) so a crash between chunking and the status
// transition can safely re-run it.
func (s *Store) CreateSegments(ctx context.Context, jobID int64, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT OR IGNORE INTO segments (
            job_id, seq, start_seconds, end_seconds, source_text,
            translate_status, synthesize_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(
			ctx,
			jobID,
			seg.Seq,
			seg.StartSeconds,
			seg.EndSeconds,
			seg.SourceText,
			StageStatusPending,
			StageStatusPending,
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segments: %w", err)
	}
	return nil
}

// SegmentsForJob returns every segment of a job ordered by sequence.
func (s *Store) SegmentsForJob(ctx context.Context, jobID int64) ([]*Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE job_id = ? ORDER BY seq`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// GetSegment fetches a single segment by job and sequence.
func (s *Store) GetSegment(ctx context.Context, jobID int64, seq int) (*Segment, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE job_id = ? AND seq = ?`,
		jobID, seq,
	)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// SegmentWork describes one claimable unit: a segment stage ready for a worker.
type SegmentWork struct {
	Segment *Segment
	Stage   Stage
}

// NextSegmentWork lists claimable segment stages across all processing jobs,
// oldest job first, translation before synthesis for the same segment.
// Callers must still win a ClaimSegmentStage race before executing.
func (s *Store) NextSegmentWork(ctx context.Context, limit int) ([]SegmentWork, error) {
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var work []SegmentWork

	translateRows, err := s.db.QueryContext(
		ctx,
		`SELECT `+segmentColumnsPrefixed+` FROM segments s
         JOIN jobs j ON j.id = s.job_id
         WHERE j.status = ? AND s.translate_status = ?
           AND (s.retry_at IS NULL OR s.retry_at <= ?)
         ORDER BY j.created_at, s.seq LIMIT ?`,
		StatusProcessing, StageStatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query translate work: %w", err)
	}
	work, err = appendWork(work, translateRows, StageTranslate)
	if err != nil {
		return nil, err
	}

	if len(work) >= limit {
		return work[:limit], nil
	}

	synthRows, err := s.db.QueryContext(
		ctx,
		`SELECT `+segmentColumnsPrefixed+` FROM segments s
         JOIN jobs j ON j.id = s.job_id
         WHERE j.status = ? AND s.translate_status = ? AND s.synthesize_status = ?
           AND (s.retry_at IS NULL OR s.retry_at <= ?)
         ORDER BY j.created_at, s.seq LIMIT ?`,
		StatusProcessing, StageStatusDone, StageStatusPending, now, limit-len(work),
	)
	if err != nil {
		return nil, fmt.Errorf("query synthesize work: %w", err)
	}
	work, err = appendWork(work, synthRows, StageSynthesize)
	if err != nil {
		return nil, err
	}

	return work, nil
}

func appendWork(work []SegmentWork, rows *sql.Rows, stage Stage) ([]SegmentWork, error) {
	defer rows.Close()
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		work = append(work, SegmentWork{Segment: seg, Stage: stage})
	}
	return work, rows.Err()
}

// ClaimSegmentStage atomically moves a pending segment stage to in-progress.
// It returns false when another worker already holds the claim or the
// segment is no longer eligible.
func (s *Store) ClaimSegmentStage(ctx context.Context, jobID int64, seq int, stage Stage) (bool, error) {
	statusCol, _, err := stageColumns(stage)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE segments SET ` + statusCol + ` = ?, updated_at = ?
        WHERE job_id = ? AND seq = ? AND ` + statusCol + ` = ?
          AND (retry_at IS NULL OR retry_at <= ?)`
	args := []any{StageStatusInProgress, now, jobID, seq, StageStatusPending, now}
	if stage == StageSynthesize {
		query += ` AND translate_status = ?`
		args = append(args, StageStatusDone)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim segment stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteSegmentStage records a successful stage result and clears retry state.
// For translation the result is the translated text; for synthesis it is the
// audio file path.
func (s *Store) CompleteSegmentStage(ctx context.Context, jobID int64, seq int, stage Stage, result string) error {
	statusCol, _, err := stageColumns(stage)
	if err != nil {
		return err
	}
	resultCol := "translated_text"
	if stage == StageSynthesize {
		resultCol = "audio_file"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET `+statusCol+` = ?, `+resultCol+` = ?,
            retry_at = NULL, last_error = NULL, updated_at = ?
         WHERE job_id = ? AND seq = ? AND `+statusCol+` = ?`,
		StageStatusDone, result, now, jobID, seq, StageStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("complete segment stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("segment %d/%d stage %s was not in progress", jobID, seq, stage)
	}
	return nil
}

// FailSegmentStage records a stage failure. When retryAt is non-nil the stage
// returns to pending with a backoff; otherwise it is marked failed for good.
func (s *Store) FailSegmentStage(ctx context.Context, jobID int64, seq int, stage Stage, message string, retryAt *time.Time) error {
	statusCol, attemptsCol, err := stageColumns(stage)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	nextStatus := StageStatusFailed
	if retryAt != nil {
		nextStatus = StageStatusPending
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET `+statusCol+` = ?, `+attemptsCol+` = `+attemptsCol+` + 1,
            retry_at = ?, last_error = ?, updated_at = ?
         WHERE job_id = ? AND seq = ? AND `+statusCol+` = ?`,
		nextStatus, nullableTime(retryAt), nullableString(message), now,
		jobID, seq, StageStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("fail segment stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("segment %d/%d stage %s was not in progress", jobID, seq, stage)
	}
	return nil
}

// SegmentCountsFor aggregates the per-stage state of a job's segments.
func (s *Store) SegmentCountsFor(ctx context.Context, jobID int64) (SegmentCounts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT translate_status, synthesize_status, COUNT(1)
         FROM segments WHERE job_id = ?
         GROUP BY translate_status, synthesize_status`,
		jobID,
	)
	if err != nil {
		return SegmentCounts{}, fmt.Errorf("segment counts: %w", err)
	}
	defer rows.Close()

	var counts SegmentCounts
	for rows.Next() {
		var translate, synthesize StageStatus
		var count int
		if err := rows.Scan(&translate, &synthesize, &count); err != nil {
			return SegmentCounts{}, err
		}
		counts.Total += count
		switch translate {
		case StageStatusPending:
			counts.TranslatePending += count
		case StageStatusInProgress:
			counts.TranslateInProgress += count
		case StageStatusDone:
			counts.TranslateDone += count
		case StageStatusFailed:
			counts.TranslateFailed += count
		}
		switch synthesize {
		case StageStatusPending:
			counts.SynthesizePending += count
		case StageStatusInProgress:
			counts.SynthesizeInProgress += count
		case StageStatusDone:
			counts.SynthesizeDone += count
		case StageStatusFailed:
			counts.SynthesizeFailed += count
		}
	}
	return counts, rows.Err()
}

// FailedSegments returns segments where any stage has exhausted its retries.
func (s *Store) FailedSegments(ctx context.Context, jobID int64) ([]*Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+segmentColumns+` FROM segments
         WHERE job_id = ? AND (translate_status = ? OR synthesize_status = ?)
         ORDER BY seq`,
		jobID, StageStatusFailed, StageStatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// ResetFailedSegments returns failed stages of a job to pending with fresh
// attempt budgets, for retry requests.
func (s *Store) ResetFailedSegments(ctx context.Context, jobID int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET
            translate_status = CASE WHEN translate_status = ? THEN ? ELSE translate_status END,
            translate_attempts = CASE WHEN translate_status = ? THEN 0 ELSE translate_attempts END,
            synthesize_status = CASE WHEN synthesize_status = ? THEN ? ELSE synthesize_status END,
            synthesize_attempts = CASE WHEN synthesize_status = ? THEN 0 ELSE synthesize_attempts END,
            retry_at = NULL, last_error = NULL, updated_at = ?
         WHERE job_id = ? AND (translate_status = ? OR synthesize_status = ?)`,
		StageStatusFailed, StageStatusPending,
		StageStatusFailed,
		StageStatusFailed, StageStatusPending,
		StageStatusFailed,
		now, jobID, StageStatusFailed, StageStatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("reset failed segments: %w", err)
	}
	return res.RowsAffected()
}

// ResetStaleInProgress returns every claimed segment stage to pending. Run at
// startup: any in-progress claim belongs to a worker that no longer exists.
func (s *Store) ResetStaleInProgress(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET
            translate_status = CASE WHEN translate_status = ? THEN ? ELSE translate_status END,
            synthesize_status = CASE WHEN synthesize_status = ? THEN ? ELSE synthesize_status END,
            updated_at = ?
         WHERE translate_status = ? OR synthesize_status = ?`,
		StageStatusInProgress, StageStatusPending,
		StageStatusInProgress, StageStatusPending,
		now,
		StageStatusInProgress, StageStatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale segments: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckClaims returns claimed segment stages untouched for longer than
// olderThan to pending. A row carries at most one in-progress stage, so the
// row-level updated_at reflects when the claim was taken. Claims this old
// belong to workers that died mid-stage without persisting an outcome.
func (s *Store) ResetStuckClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET
            translate_status = CASE WHEN translate_status = ? THEN ? ELSE translate_status END,
            synthesize_status = CASE WHEN synthesize_status = ? THEN ? ELSE synthesize_status END,
            updated_at = ?
         WHERE (translate_status = ? OR synthesize_status = ?) AND updated_at < ?`,
		StageStatusInProgress, StageStatusPending,
		StageStatusInProgress, StageStatusPending,
		now.Format(time.RFC3339Nano),
		StageStatusInProgress, StageStatusInProgress,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck claims: %w", err)
	}
	return res.RowsAffected()
}

const segmentColumns = "job_id, seq, start_seconds, end_seconds, source_text, translated_text, audio_file, translate_status, translate_attempts, synthesize_status, synthesize_attempts, retry_at, last_error, created_at, updated_at"

const segmentColumnsPrefixed = "s.job_id, s.seq, s.start_seconds, s.end_seconds, s.source_text, s.translated_text, s.audio_file, s.translate_status, s.translate_attempts, s.synthesize_status, s.synthesize_attempts, s.retry_at, s.last_error, s.created_at, s.updated_at"

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*Segment, error) {
	var (
		jobID              int64
		seq                int
		startSeconds       float64
		endSeconds         float64
		sourceText         string
		translatedText     sql.NullString
		audioFile          sql.NullString
		translateStatus    string
		translateAttempts  int
		synthesizeStatus   string
		synthesizeAttempts int
		retryRaw           sql.NullString
		lastError          sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&jobID,
		&seq,
		&startSeconds,
		&endSeconds,
		&sourceText,
		&translatedText,
		&audioFile,
		&translateStatus,
		&translateAttempts,
		&synthesizeStatus,
		&synthesizeAttempts,
		&retryRaw,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	seg := &Segment{
		JobID:              jobID,
		Seq:                seq,
		StartSeconds:       startSeconds,
		EndSeconds:         endSeconds,
		SourceText:         sourceText,
		TranslatedText:     translatedText.String,
		AudioFile:          audioFile.String,
		TranslateStatus:    StageStatus(translateStatus),
		TranslateAttempts:  translateAttempts,
		SynthesizeStatus:   StageStatus(synthesizeStatus),
		SynthesizeAttempts: synthesizeAttempts,
		LastError:          lastError.String,
	}

	if retryRaw.Valid {
		if retry, err := parseTimeString(retryRaw.String); err == nil {
			seg.RetryAt = &retry
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		seg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		seg.UpdatedAt = updated
	}
	return seg, nil
}
