package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/transcript"
	"dubber/internal/workflow"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	return &stage.Extraction{
		Title:    "Stub Video",
		VideoID:  "dQw4w9WgXcQ",
		Language: "en",
		Lines: []transcript.Line{
			{Index: 1, Start: 0, End: 2, Text: "Hello there."},
		},
	}, nil
}

func (stubExtractor) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("stub") }

type stubTranslator struct{}

func (stubTranslator) Translate(ctx context.Context, req stage.TranslateRequest) (string, error) {
	return "KO: " + req.Text, nil
}

func (stubTranslator) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("stub") }

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, text, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("AUDIO["+text+"]"), 0o644)
}

func (stubSynthesizer) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("stub") }

func newTestDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *queue.Store) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), workflow.Stages{
		Extractor:   stubExtractor{},
		Translator:  stubTranslator{},
		Synthesizer: stubSynthesizer{},
	}, notifications.NewService(cfg.Notifications))
	d, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1

	first, _ := newTestDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first daemon: %v", err)
	}
	t.Cleanup(first.Stop)

	second, _ := newTestDaemon(t, cfg)
	err := second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("expected second daemon start to fail while lock held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("start after lock release: %v", err)
	}
	second.Stop()
}

func TestDaemonStatusAndDelegation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1

	d, store := newTestDaemon(t, cfg)
	ctx := context.Background()

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon stopped before Start")
	}
	if status.QueueDBPath != store.Path() {
		t.Fatalf("queue db path = %q, want %q", status.QueueDBPath, store.Path())
	}

	job, created, err := d.Submit(ctx, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil || !created {
		t.Fatalf("submit: job=%v created=%v err=%v", job, created, err)
	}

	jobs, err := d.ListQueue(ctx, []queue.Status{queue.StatusPending})
	if err != nil || len(jobs) != 1 {
		t.Fatalf("list pending: jobs=%d err=%v", len(jobs), err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("status after start: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon running after Start")
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("reload job: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			break
		}
		if got.Status == queue.StatusFailed {
			t.Fatalf("job failed: %s", got.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", got.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cleared, err := d.ClearCompleted(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("clear completed: n=%d err=%v", cleared, err)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	ok, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if ok || !strings.Contains(message, "not configured") {
		t.Fatalf("got ok=%v message=%q", ok, message)
	}
}
