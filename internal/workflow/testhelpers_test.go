package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/transcript"
	"dubber/internal/workflow"
)

type stubExtractor struct {
	mu      sync.Mutex
	extract func(ctx context.Context, url string) (*stage.Extraction, error)
	urls    []string
}

func (s *stubExtractor) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	return s.extract(ctx, url)
}

func (s *stubExtractor) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("extract")
}

func (s *stubExtractor) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

type stubTranslator struct {
	mu        sync.Mutex
	translate func(ctx context.Context, req stage.TranslateRequest) (string, error)
	requests  []stage.TranslateRequest
}

func (s *stubTranslator) Translate(ctx context.Context, req stage.TranslateRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.translate(ctx, req)
}

func (s *stubTranslator) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("translate")
}

func (s *stubTranslator) calls() []stage.TranslateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stage.TranslateRequest(nil), s.requests...)
}

type stubSynthesizer struct {
	mu         sync.Mutex
	synthesize func(ctx context.Context, text, dest string) error
	dests      []string
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, dest string) error {
	s.mu.Lock()
	s.dests = append(s.dests, dest)
	s.mu.Unlock()
	if s.synthesize != nil {
		return s.synthesize(ctx, text, dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("AUDIO["+text+"]"), 0o644)
}

func (s *stubSynthesizer) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("synthesize")
}

// singleLineExtractor returns one short transcript line per call.
func singleLineExtractor(title string) *stubExtractor {
	return &stubExtractor{extract: func(ctx context.Context, url string) (*stage.Extraction, error) {
		return &stage.Extraction{
			Title:         title,
			VideoID:       "dQw4w9WgXcQ",
			Language:      "en",
			AutoGenerated: true,
			Lines: []transcript.Line{
				{Index: 0, Start: 0, End: 2, Text: "Hello there."},
			},
		}, nil
	}}
}

func echoTranslator() *stubTranslator {
	return &stubTranslator{translate: func(ctx context.Context, req stage.TranslateRequest) (string, error) {
		return "KO: " + req.Text, nil
	}}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.Workers = 1
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.RetryBackoffSeconds = 1
	cfg.Workflow.RetryBackoffMaxSeconds = 2
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store, stages workflow.Stages) *workflow.Manager {
	t.Helper()
	notifier := notifications.NewService(config.Notifications{})
	return workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), stages, notifier)
}

func startManager(t *testing.T, m *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start workflow: %v", err)
	}
	t.Cleanup(func() {
		m.Stop()
		cancel()
	})
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func jobStatus(t *testing.T, store *queue.Store, id int64) queue.Status {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job == nil {
		t.Fatalf("job %d missing", id)
	}
	return job.Status
}
