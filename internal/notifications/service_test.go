package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubber/internal/config"
	"dubber/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default().Notifications
	cfg.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "Example", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Notifications{
		NtfyTopic:      server.URL,
		RequestTimeout: 5,
		Completed:      true,
		Errors:         true,
	}
	svc := notifications.NewService(cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "My Video", "/out/My Video.mp3"); err != nil {
		t.Fatalf("NotifyJobCompleted failed: %v", err)
	}
	if captured.title != "Dubber - Complete" {
		t.Fatalf("unexpected title: %q", captured.title)
	}
	if captured.body != "Dub ready: My Video\nFile: /out/My Video.mp3" {
		t.Fatalf("unexpected body: %q", captured.body)
	}
	if captured.tags != "dubber,job,completed" || captured.priority != "high" {
		t.Fatalf("unexpected headers: tags=%q priority=%q", captured.tags, captured.priority)
	}

	if err := svc.NotifyJobFailed(context.Background(), "My Video", errors.New("translation failed")); err != nil {
		t.Fatalf("NotifyJobFailed failed: %v", err)
	}
	if captured.title != "Dubber - Error" {
		t.Fatalf("unexpected error title: %q", captured.title)
	}
	if captured.body != "Dubbing failed: My Video\ntranslation failed" {
		t.Fatalf("unexpected error body: %q", captured.body)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed notification: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Notifications{
		NtfyTopic: server.URL,
		Completed: false,
		Errors:    false,
	}
	svc := notifications.NewService(cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "suppressed", ""); err != nil {
		t.Fatalf("expected suppressed completion to return nil, got %v", err)
	}
	if err := svc.NotifyJobFailed(context.Background(), "suppressed", errors.New("boom")); err != nil {
		t.Fatalf("expected suppressed error to return nil, got %v", err)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Notifications{NtfyTopic: server.URL, Completed: true}
	svc := notifications.NewService(cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "x", ""); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
