package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("DUBBER_TRANSLATION_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.OutputDir != filepath.Join(tempHome, "dubbing") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	wantLogs := filepath.Join(tempHome, ".local", "share", "dubber", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.SocketPath != filepath.Join(wantLogs, "dubberd.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.Translation.APIKey != "test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Translation.APIKey)
	}
	if cfg.Translation.Style != "natural" || cfg.Translation.Tone != "lecture" {
		t.Fatalf("unexpected translation defaults: %q/%q", cfg.Translation.Style, cfg.Translation.Tone)
	}
	if cfg.Extraction.WhisperFallback {
		t.Fatal("expected whisper fallback disabled by default")
	}
	if len(cfg.Extraction.SubtitleLanguages) == 0 || cfg.Extraction.SubtitleLanguages[0] != "en" {
		t.Fatalf("unexpected subtitle languages: %v", cfg.Extraction.SubtitleLanguages)
	}
	if cfg.Synthesis.Voice != "ko-KR-SunHiNeural" {
		t.Fatalf("unexpected voice: %q", cfg.Synthesis.Voice)
	}
	if cfg.Chunking.MaxChars != 1500 || cfg.Chunking.HardLimitChars != 2000 || cfg.Chunking.MaxSeconds != 60 {
		t.Fatalf("unexpected chunk budgets: %+v", cfg.Chunking)
	}
	if cfg.Workflow.Workers != config.Default().Workflow.Workers {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.StaleClaimSeconds != 900 {
		t.Fatalf("unexpected stale claim age: %d", cfg.Workflow.StaleClaimSeconds)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dubber.toml")

	content := strings.Join([]string{
		"[paths]",
		`output_dir = "` + filepath.Join(tempDir, "out") + `"`,
		`log_dir = "` + filepath.Join(tempDir, "logs") + `"`,
		"",
		"[translation]",
		`api_key = "abc123"`,
		`style = "FAITHFUL"`,
		`tone = "casual"`,
		"",
		"[workflow]",
		"workers = 7",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Translation.APIKey != "abc123" {
		t.Fatalf("unexpected api key: %q", cfg.Translation.APIKey)
	}
	if cfg.Translation.Style != "faithful" {
		t.Fatalf("expected style lowercased to faithful, got %q", cfg.Translation.Style)
	}
	if cfg.Translation.Tone != "casual" {
		t.Fatalf("unexpected tone: %q", cfg.Translation.Tone)
	}
	if cfg.Workflow.Workers != 7 {
		t.Fatalf("unexpected workers: %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.QueuePollInterval != config.Default().Workflow.QueuePollInterval {
		t.Fatalf("expected poll interval default, got %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestLoadRequiresAPIKeyForRemoteEndpoint(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DUBBER_TRANSLATION_API_KEY", "")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected missing api key to fail validation")
	}
	if !strings.Contains(err.Error(), "translation.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadAllowsKeylessLocalEndpoint(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dubber.toml")
	content := strings.Join([]string{
		"[paths]",
		`output_dir = "` + filepath.Join(tempDir, "out") + `"`,
		`log_dir = "` + filepath.Join(tempDir, "logs") + `"`,
		"",
		"[translation]",
		`base_url = "http://localhost:11434/v1"`,
		`model = "qwen3"`,
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DUBBER_TRANSLATION_API_KEY", "")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("expected local endpoint without key to validate: %v", err)
	}
	if cfg.Translation.Model != "qwen3" {
		t.Fatalf("unexpected model: %q", cfg.Translation.Model)
	}
}

func TestValidateRejectsBadBudgetsAndTopics(t *testing.T) {
	cfg := config.Default()
	cfg.Translation.APIKey = "key"
	cfg.Chunking.MaxChars = 3000
	cfg.Chunking.HardLimitChars = 2000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected hard limit below soft limit to fail")
	}

	cfg = config.Default()
	cfg.Translation.APIKey = "key"
	cfg.Notifications.NtfyTopic = "has space"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected topic with whitespace to fail")
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, section := range []string{"[paths]", "[extraction]", "[translation]", "[synthesis]", "[chunking]", "[workflow]", "[notifications]", "[logging]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("expected sample to contain %s", section)
		}
	}
}

func TestExpandPathHome(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	got, err := config.ExpandPath("~/inbox")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(tempHome, "inbox") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
