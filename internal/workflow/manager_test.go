package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/output"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/transcript"
	"dubber/internal/workflow"
)

func TestSubmitValidatesAndDeduplicates(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Video"),
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	ctx := context.Background()
	if _, _, err := m.Submit(ctx, "https://example.com/not-youtube"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	job, created, err := m.Submit(ctx, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil || !created {
		t.Fatalf("Submit failed: created=%v err=%v", created, err)
	}
	if job.Status != queue.StatusPending || job.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected job: %#v", job)
	}

	dup, created, err := m.Submit(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil || created {
		t.Fatalf("expected dedup hit: created=%v err=%v", created, err)
	}
	if dup.ID != job.ID {
		t.Fatalf("expected existing job %d, got %d", job.ID, dup.ID)
	}
}

func TestPauseResumeCancelTransitions(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Video"),
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	ctx := context.Background()
	job, _, err := m.Submit(ctx, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	paused, err := m.Pause(ctx, job.ID)
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if paused.Status != queue.StatusPaused || paused.PausedFrom != queue.StatusPending {
		t.Fatalf("unexpected paused job: %#v", paused)
	}
	if _, err := m.Pause(ctx, job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected double pause rejection, got %v", err)
	}

	resumed, err := m.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Status != queue.StatusPending || resumed.PausedFrom != "" {
		t.Fatalf("unexpected resumed job: %#v", resumed)
	}

	cancelled, err := m.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled || cancelled.ErrorMessage != queue.UserStopReason {
		t.Fatalf("unexpected cancelled job: %#v", cancelled)
	}
	if _, err := m.Cancel(ctx, job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected cancel of finished job to fail, got %v", err)
	}
	if _, err := m.Pause(ctx, 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestRetryResetsFailedJob(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Video"),
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	job.Status = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	if err := store.CreateSegments(ctx, job.ID, []queue.Segment{
		{Seq: 0, SourceText: "a"},
		{Seq: 1, SourceText: "b"},
	}); err != nil {
		t.Fatalf("create segments: %v", err)
	}
	if ok, err := store.ClaimSegmentStage(ctx, job.ID, 0, queue.StageTranslate); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if err := store.FailSegmentStage(ctx, job.ID, 0, queue.StageTranslate, "boom", nil); err != nil {
		t.Fatalf("fail segment: %v", err)
	}
	job.SetFailed("1 segment(s) failed permanently")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	retried, err := m.Retry(ctx)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried job, got %d", retried)
	}
	if got := jobStatus(t, store, job.ID); got != queue.StatusProcessing {
		t.Fatalf("expected processing after retry, got %s", got)
	}
	seg, err := store.GetSegment(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if seg.TranslateStatus != queue.StageStatusPending || seg.TranslateAttempts != 0 {
		t.Fatalf("expected reset segment, got %#v", seg)
	}
}

func TestStartRecoversInterruptedWork(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// A job caught mid-extraction by a crash.
	interrupted := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	interrupted.Status = queue.StatusExtracting
	if err := store.Update(ctx, interrupted); err != nil {
		t.Fatalf("update job: %v", err)
	}

	// A paused job with a claim abandoned by a dead worker. Paused jobs get
	// no new work, so the reset result stays observable.
	parked := testsupport.NewJob(t, store, "https://youtu.be/abcdefghijk", "abcdefghijk")
	parked.Status = queue.StatusProcessing
	if err := store.Update(ctx, parked); err != nil {
		t.Fatalf("update job: %v", err)
	}
	if err := store.CreateSegments(ctx, parked.ID, []queue.Segment{{Seq: 0, SourceText: "x"}}); err != nil {
		t.Fatalf("create segments: %v", err)
	}
	if ok, err := store.ClaimSegmentStage(ctx, parked.ID, 0, queue.StageTranslate); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	parked.Status = queue.StatusPaused
	parked.PausedFrom = queue.StatusProcessing
	if err := store.Update(ctx, parked); err != nil {
		t.Fatalf("update job: %v", err)
	}

	extractor := &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   extractor,
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})
	startManager(t, m)

	// The interrupted job was requeued and picked up again.
	waitFor(t, 10*time.Second, "requeued job to reach the extractor", func() bool {
		return len(extractor.calls()) > 0
	})

	seg, err := store.GetSegment(ctx, parked.ID, 0)
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if seg.TranslateStatus != queue.StageStatusPending {
		t.Fatalf("expected stale claim reset to pending, got %s", seg.TranslateStatus)
	}
}

func TestEmptyTranscriptCompletesImmediately(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		return &stage.Extraction{Title: "Silent", VideoID: "dQw4w9WgXcQ", Language: "en"}, nil
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   extractor,
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 10*time.Second, "job completion", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusCompleted
	})

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if final.CompletedAt == nil || final.FinalAudioFile != "" {
		t.Fatalf("unexpected completed job: %#v", final)
	}
	segments, err := store.SegmentsForJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments for empty transcript, got %d", len(segments))
	}
}

func TestTerminalTranslationFailureFailsJob(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	translator := &stubTranslator{translate: func(ctx context.Context, req stage.TranslateRequest) (string, error) {
		return "", services.Wrap(services.ErrValidation, "translate", "request", "model rejected request", nil)
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Doomed"),
		Translator:  translator,
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 15*time.Second, "job failure", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusFailed
	})

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !strings.Contains(final.ErrorMessage, "failed permanently") {
		t.Fatalf("unexpected error message: %q", final.ErrorMessage)
	}

	status, failedSegments, err := m.Describe(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if status.Counts.TranslateFailed != 1 || len(failedSegments) != 1 {
		t.Fatalf("unexpected describe output: %+v, %d failed", status.Counts, len(failedSegments))
	}
	// Non-retryable errors must not burn more than one attempt.
	if failedSegments[0].TranslateAttempts != 1 {
		t.Fatalf("expected a single attempt, got %d", failedSegments[0].TranslateAttempts)
	}
}

func TestRetryCapExhaustionKeepsFinishedSegments(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Workflow.RetryCap = 2
	store := testsupport.MustOpenStore(t, cfg)

	// Two lines far enough apart that chunking produces two segments.
	extractor := &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		return &stage.Extraction{
			Title:    "Two Parts",
			VideoID:  "dQw4w9WgXcQ",
			Language: "en",
			Lines: []transcript.Line{
				{Index: 0, Start: 0, End: 2, Text: "First part."},
				{Index: 1, Start: 100, End: 102, Text: "Second part."},
			},
		}, nil
	}}
	var mu sync.Mutex
	invocations := map[string]int{}
	translator := &stubTranslator{translate: func(ctx context.Context, req stage.TranslateRequest) (string, error) {
		mu.Lock()
		invocations[req.Text]++
		mu.Unlock()
		if strings.Contains(req.Text, "Second") {
			return "", services.Wrap(services.ErrTransient, "translate", "request", "endpoint unavailable", nil)
		}
		return "KO: " + req.Text, nil
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   extractor,
		Translator:  translator,
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 30*time.Second, "job failure after exhausted retries", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusFailed
	})

	mu.Lock()
	firstCalls := invocations["First part."]
	secondCalls := invocations["Second part."]
	mu.Unlock()
	// The failing segment gets its first attempt plus the configured retries.
	if want := cfg.Workflow.RetryCap + 1; secondCalls != want {
		t.Fatalf("expected %d attempts on failing segment, got %d", want, secondCalls)
	}
	if firstCalls != 1 {
		t.Fatalf("expected finished segment translated once, got %d", firstCalls)
	}

	ctx := context.Background()
	done, err := store.GetSegment(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("get segment 0: %v", err)
	}
	if done.TranslateStatus != queue.StageStatusDone || done.SynthesizeStatus != queue.StageStatusDone {
		t.Fatalf("expected finished segment preserved, got %#v", done)
	}
	if done.TranslatedText != "KO: First part." || done.AudioFile == "" {
		t.Fatalf("expected finished segment results kept, got %#v", done)
	}
	failed, err := store.GetSegment(ctx, job.ID, 1)
	if err != nil {
		t.Fatalf("get segment 1: %v", err)
	}
	if failed.TranslateStatus != queue.StageStatusFailed {
		t.Fatalf("expected failing segment terminal, got %s", failed.TranslateStatus)
	}
	if want := cfg.Workflow.RetryCap + 1; failed.TranslateAttempts != want {
		t.Fatalf("expected %d recorded attempts, got %d", want, failed.TranslateAttempts)
	}
}

func TestExtractionRetriesTransientFailures(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Workflow.RetryCap = 2
	store := testsupport.MustOpenStore(t, cfg)

	var mu sync.Mutex
	failures := 0
	extractor := &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		mu.Lock()
		failures++
		n := failures
		mu.Unlock()
		if n <= 2 {
			return nil, services.Wrap(services.ErrTransient, "extract", "download", "network unreachable", nil)
		}
		return &stage.Extraction{
			Title:    "Flaky Feed",
			VideoID:  "dQw4w9WgXcQ",
			Language: "en",
			Lines:    []transcript.Line{{Index: 0, Start: 0, End: 2, Text: "Hello there."}},
		}, nil
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   extractor,
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 30*time.Second, "job completion after extraction retries", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusCompleted
	})
	if got := len(extractor.calls()); got != 3 {
		t.Fatalf("expected 3 extraction attempts, got %d", got)
	}
}

func TestExtractionTerminalFailureFailsJobOnce(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		return nil, services.Wrap(services.ErrValidation, "extract", "download", "video unavailable", nil)
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   extractor,
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 10*time.Second, "job failure", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusFailed
	})
	if got := len(extractor.calls()); got != 1 {
		t.Fatalf("expected a single extraction attempt, got %d", got)
	}
	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !strings.Contains(final.ErrorMessage, "video unavailable") {
		t.Fatalf("unexpected error message: %q", final.ErrorMessage)
	}
}

func TestSweeperReclaimsOrphanedClaim(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Workflow.StaleClaimSeconds = 1
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	layout := output.NewLayout(cfg.Paths.OutputDir, job.VideoID, "Orphan")
	if err := layout.Ensure(); err != nil {
		t.Fatalf("layout: %v", err)
	}
	job.Title = "Orphan"
	job.Slug = layout.Slug
	job.OutputDir = layout.Root
	job.Status = queue.StatusPaused
	job.PausedFrom = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	if err := store.CreateSegments(ctx, job.ID, []queue.Segment{
		{Seq: 0, StartSeconds: 0, EndSeconds: 2, SourceText: "Hello there."},
	}); err != nil {
		t.Fatalf("create segments: %v", err)
	}

	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Orphan"),
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})
	startManager(t, m)

	// A worker claims the stage and dies without reporting back. Startup
	// recovery already ran, so only the sweeper can free this claim.
	if ok, err := store.ClaimSegmentStage(ctx, job.ID, 0, queue.StageTranslate); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if _, err := m.Resume(ctx, job.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	waitFor(t, 30*time.Second, "orphaned claim reclaimed and job finished", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusCompleted
	})
	seg, err := store.GetSegment(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if seg.TranslateStatus != queue.StageStatusDone || seg.TranslateAttempts != 0 {
		t.Fatalf("expected reclaimed stage finished without burning attempts, got %#v", seg)
	}
}

func TestPauseFromMergingResumesToMerging(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Video"),
		Translator:  echoTranslator(),
		Synthesizer: &stubSynthesizer{},
	})

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ")
	job.Status = queue.StatusMerging
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	paused, err := m.Pause(ctx, job.ID)
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if paused.Status != queue.StatusPaused || paused.PausedFrom != queue.StatusMerging {
		t.Fatalf("unexpected paused job: %#v", paused)
	}
	resumed, err := m.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Status != queue.StatusMerging {
		t.Fatalf("expected merging after resume, got %s", resumed.Status)
	}
}

func TestTransientFailureRetriesWithBackoff(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	var attempts int
	translator := &stubTranslator{translate: func(ctx context.Context, req stage.TranslateRequest) (string, error) {
		attempts++
		if attempts == 1 {
			return "", services.Wrap(services.ErrTransient, "translate", "request", "endpoint unavailable", nil)
		}
		return "KO: " + req.Text, nil
	}}
	m := newTestManager(t, cfg, store, workflow.Stages{
		Extractor:   singleLineExtractor("Flaky"),
		Translator:  translator,
		Synthesizer: &stubSynthesizer{},
	})

	job, _, err := m.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	startManager(t, m)

	waitFor(t, 20*time.Second, "job completion after retry", func() bool {
		return jobStatus(t, store, job.ID) == queue.StatusCompleted
	})
	if attempts < 2 {
		t.Fatalf("expected at least 2 translation attempts, got %d", attempts)
	}
}
