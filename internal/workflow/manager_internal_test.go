package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/output"
	"dubber/internal/queue"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/transcript"
)

type fixedExtractor struct{}

func (fixedExtractor) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	return &stage.Extraction{
		Title:    "Fixed",
		VideoID:  "dQw4w9WgXcQ",
		Language: "en",
		Lines:    []transcript.Line{{Index: 0, Start: 0, End: 2, Text: "Hello there."}},
	}, nil
}

func (fixedExtractor) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("extract")
}

type fixedTranslator struct{}

func (fixedTranslator) Translate(ctx context.Context, req stage.TranslateRequest) (string, error) {
	return "KO: " + req.Text, nil
}

func (fixedTranslator) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("translate")
}

type fileSynthesizer struct{}

func (fileSynthesizer) Synthesize(ctx context.Context, text, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("AUDIO["+text+"]"), 0o644)
}

func (fileSynthesizer) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("synthesize")
}

func newRaceManager(t *testing.T, cfg *config.Config, store *queue.Store) *Manager {
	t.Helper()
	return NewManagerWithNotifier(cfg, store, logging.NewNop(), Stages{
		Extractor:   fixedExtractor{},
		Translator:  fixedTranslator{},
		Synthesizer: fileSynthesizer{},
	}, notifications.NewService(config.Notifications{}))
}

func seedMergeReadyJob(t *testing.T, cfg *config.Config, store *queue.Store) *queue.Job {
	t.Helper()
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	layout := output.NewLayout(cfg.Paths.OutputDir, job.VideoID, "Fixed")
	if err := layout.Ensure(); err != nil {
		t.Fatalf("layout: %v", err)
	}
	job.Title = "Fixed"
	job.Slug = layout.Slug
	job.OutputDir = layout.Root
	job.Status = queue.StatusMerging
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	if err := store.CreateSegments(ctx, job.ID, []queue.Segment{
		{Seq: 0, StartSeconds: 0, EndSeconds: 2, SourceText: "Hello there."},
	}); err != nil {
		t.Fatalf("create segments: %v", err)
	}
	if ok, err := store.ClaimSegmentStage(ctx, job.ID, 0, queue.StageTranslate); err != nil || !ok {
		t.Fatalf("claim translate: ok=%v err=%v", ok, err)
	}
	if err := store.CompleteSegmentStage(ctx, job.ID, 0, queue.StageTranslate, "KO: Hello there."); err != nil {
		t.Fatalf("complete translate: %v", err)
	}
	audio := layout.SegmentAudioPath(0)
	if err := os.WriteFile(audio, []byte("AUDIO[KO: Hello there.]"), 0o644); err != nil {
		t.Fatalf("write segment audio: %v", err)
	}
	if ok, err := store.ClaimSegmentStage(ctx, job.ID, 0, queue.StageSynthesize); err != nil || !ok {
		t.Fatalf("claim synthesize: ok=%v err=%v", ok, err)
	}
	if err := store.CompleteSegmentStage(ctx, job.ID, 0, queue.StageSynthesize, audio); err != nil {
		t.Fatalf("complete synthesize: %v", err)
	}
	return job
}

func TestMergeDiscardsResultWhenJobCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newRaceManager(t, cfg, store)

	ctx := context.Background()
	job := seedMergeReadyJob(t, cfg, store)

	// The merge goroutine fetched its copy, then the user cancelled.
	if _, err := m.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	stale := *job
	if err := m.mergeJob(ctx, &stale); err != nil {
		t.Fatalf("mergeJob failed: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if final.Status != queue.StatusCancelled {
		t.Fatalf("merge overwrote a cancelled job: %s", final.Status)
	}
	if final.CompletedAt != nil || final.FinalAudioFile != "" {
		t.Fatalf("expected no completion fields on cancelled job: %#v", final)
	}
}

func TestChunkingDoesNotDispatchCancelledJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newRaceManager(t, cfg, store)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	layout := output.NewLayout(cfg.Paths.OutputDir, job.VideoID, "Fixed")
	if err := layout.Ensure(); err != nil {
		t.Fatalf("layout: %v", err)
	}
	job.Title = "Fixed"
	job.Slug = layout.Slug
	job.OutputDir = layout.Root
	job.Status = queue.StatusExtracting
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	// The intake goroutine is still holding the pre-cancel copy.
	if _, err := m.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	stale := *job
	lines := []transcript.Line{{Index: 0, Start: 0, End: 2, Text: "Hello there."}}
	if err := m.chunkJob(ctx, logging.NewNop(), &stale, lines); err != nil {
		t.Fatalf("chunkJob failed: %v", err)
	}

	if got := mustStatus(t, store, job.ID); got != queue.StatusCancelled {
		t.Fatalf("chunking overwrote a cancelled job: %s", got)
	}
	segments, err := store.SegmentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments dispatched, got %d", len(segments))
	}
}

func TestExtractClaimSkipsCancelledJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newRaceManager(t, cfg, store)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	if _, err := m.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	stale := *job
	lines, err := m.extractJob(ctx, logging.NewNop(), &stale)
	if err != nil {
		t.Fatalf("extractJob failed: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected extraction skipped, got %d lines", len(lines))
	}
	if got := mustStatus(t, store, job.ID); got != queue.StatusCancelled {
		t.Fatalf("extraction overwrote a cancelled job: %s", got)
	}
}

func mustStatus(t *testing.T, store *queue.Store, id int64) queue.Status {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("get job %d: %v", id, err)
	}
	return job.Status
}
