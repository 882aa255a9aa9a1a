package ytdlp_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/services/ytdlp"
)

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                      "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":         "dQw4w9WgXcQ",
		"https://www.youtube.com/v/dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s": "dQw4w9WgXcQ",
	}
	for url, want := range cases {
		got, ok := ytdlp.ExtractVideoID(url)
		if !ok || got != want {
			t.Fatalf("ExtractVideoID(%q) = %q ok=%v, want %q", url, got, ok, want)
		}
	}

	if _, ok := ytdlp.ExtractVideoID("https://example.com/watch?v=dQw4w9WgXcQ"); ok {
		t.Fatal("expected non-YouTube URL to be rejected")
	}
	if _, ok := ytdlp.ExtractVideoID("https://youtu.be/short"); ok {
		t.Fatal("expected short ID to be rejected")
	}
}

const probeJSON = `{
  "id": "dQw4w9WgXcQ",
  "title": "Test Video",
  "duration": 212.5,
  "uploader": "Test Channel",
  "description": "desc",
  "subtitles": {},
  "automatic_captions": {"en": [], "ko": []}
}`

func newStubService(t *testing.T, runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *ytdlp.Service {
	t.Helper()
	svc := ytdlp.NewService(config.Default().Extraction)
	svc.WithCommandRunner(runner)
	return svc
}

func TestProbeParsesMetadata(t *testing.T) {
	svc := newStubService(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if !contains(args, "--dump-json") {
			t.Fatalf("unexpected args: %v", args)
		}
		return []byte(probeJSON), nil
	})

	meta, err := svc.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if meta.VideoID != "dQw4w9WgXcQ" || meta.Title != "Test Video" || meta.Duration != 212 {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if len(meta.AutoCaptionLangs) != 2 {
		t.Fatalf("expected 2 auto caption languages, got %v", meta.AutoCaptionLangs)
	}
}

func TestExtractDownloadsAutoCaptions(t *testing.T) {
	var downloadArgs []string
	svc := newStubService(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if contains(args, "--dump-json") {
			return []byte(probeJSON), nil
		}
		downloadArgs = args
		dir := outputDirFromArgs(t, args)
		vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhello there\n"
		if err := os.WriteFile(filepath.Join(dir, "sub.en.vtt"), []byte(vtt), 0o644); err != nil {
			return nil, err
		}
		return nil, nil
	})

	extraction, err := svc.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if extraction.Language != "en" || !extraction.AutoGenerated {
		t.Fatalf("expected auto-generated en track, got %#v", extraction)
	}
	if len(extraction.Lines) != 1 || extraction.Lines[0].Text != "hello there" {
		t.Fatalf("unexpected lines: %#v", extraction.Lines)
	}
	if !contains(downloadArgs, "--write-auto-subs") {
		t.Fatalf("expected auto-subs download, args: %v", downloadArgs)
	}
}

func TestExtractFailsWithoutSubtitles(t *testing.T) {
	svc := newStubService(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"id": "dQw4w9WgXcQ", "title": "No Subs"}`), nil
	})

	_, err := svc.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error for video without subtitles")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
}

func contains(args []string, value string) bool {
	for _, arg := range args {
		if arg == value {
			return true
		}
	}
	return false
}

func outputDirFromArgs(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return filepath.Dir(args[i+1])
		}
	}
	t.Fatalf("no output template in args: %v", args)
	return ""
}
