package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/ipc"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/transcript"
	"dubber/internal/workflow"
)

type noopExtractor struct{}

func (noopExtractor) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	return &stage.Extraction{Title: "Noop", VideoID: "dQw4w9WgXcQ", Lines: []transcript.Line{}}, nil
}

func (noopExtractor) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("noop") }

type noopTranslator struct{}

func (noopTranslator) Translate(ctx context.Context, req stage.TranslateRequest) (string, error) {
	return req.Text, nil
}

func (noopTranslator) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("noop") }

type noopSynthesizer struct{}

func (noopSynthesizer) Synthesize(ctx context.Context, text, dest string) error { return nil }

func (noopSynthesizer) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy("noop") }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(homeDir, ".config", "dubber", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, workflow.Stages{
		Extractor:   noopExtractor{},
		Translator:  noopTranslator{},
		Synthesizer: noopSynthesizer{},
	}, notifications.NewService(cfg.Notifications))

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\noutput_dir = %q\nlog_dir = %q\n\n[translation]\napi_key = %q\n\n[workflow]\nqueue_poll_interval = 1\n",
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Translation.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitForStatus(t *testing.T, env *cliTestEnv, id int64, want queue.Status) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := env.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("reload job: %v", err)
		}
		if job.Status == want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("job %d never reached %s", id, want)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
