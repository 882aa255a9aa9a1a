package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/transcript"
)

const stageName = "extract"

// Metadata describes a probed video.
type Metadata struct {
	VideoID          string
	Title            string
	Duration         int
	Uploader         string
	Description      string
	SubtitleLangs    []string
	AutoCaptionLangs []string
}

// Service extracts subtitles and metadata through the yt-dlp binary.
type Service struct {
	binary        string
	languages     []string
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService builds an extractor from extraction config.
func NewService(cfg config.Extraction) *Service {
	binary := cfg.YtdlpBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Service{
		binary:    binary,
		languages: append([]string{}, cfg.SubtitleLanguages...),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if detail := strings.TrimSpace(string(exitErr.Stderr)); detail != "" {
				return nil, fmt.Errorf("%s: %w: %s", s.binary, err, detail)
			}
		}
		return nil, fmt.Errorf("%s: %w", s.binary, err)
	}
	return output, nil
}

// probePayload is the subset of yt-dlp --dump-json output we need.
type probePayload struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Duration          float64                    `json:"duration"`
	Uploader          string                     `json:"uploader"`
	Channel           string                     `json:"channel"`
	Description       string                     `json:"description"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

// Probe fetches video metadata without downloading anything.
func (s *Service) Probe(ctx context.Context, url string) (*Metadata, error) {
	output, err := s.run(ctx, "--dump-json", "--no-warnings", "--skip-download", url)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "probe", "fetch metadata", err)
	}

	var payload probePayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "probe", "parse metadata", err)
	}

	meta := &Metadata{
		VideoID:     payload.ID,
		Title:       payload.Title,
		Duration:    int(payload.Duration),
		Uploader:    payload.Uploader,
		Description: payload.Description,
	}
	if meta.Uploader == "" {
		meta.Uploader = payload.Channel
	}
	for lang := range payload.Subtitles {
		meta.SubtitleLangs = append(meta.SubtitleLangs, lang)
	}
	for lang := range payload.AutomaticCaptions {
		meta.AutoCaptionLangs = append(meta.AutoCaptionLangs, lang)
	}
	return meta, nil
}

// Extract probes the video, selects the best subtitle track by language
// priority (manual tracks win over auto captions), downloads it as VTT, and
// parses it into transcript lines.
func (s *Service) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	meta, err := s.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(meta.SubtitleLangs) == 0 && len(meta.AutoCaptionLangs) == 0 {
		return nil, services.Wrap(services.ErrNotFound, stageName, "select", "video has no subtitles", nil)
	}

	lang, auto := selectLanguage(s.languages, meta.SubtitleLangs, meta.AutoCaptionLangs)

	tmpDir, err := os.MkdirTemp("", "dubber-subs-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "download", "create temp dir", err)
	}
	defer os.RemoveAll(tmpDir)

	args := []string{"--skip-download", "--no-warnings", "--sub-format", "vtt", "--sub-langs", lang}
	if auto {
		args = append(args, "--write-auto-subs")
	} else {
		args = append(args, "--write-subs")
	}
	args = append(args, "-o", filepath.Join(tmpDir, "sub"), url)

	if _, err := s.run(ctx, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "download", "download subtitles", err)
	}

	vttFiles, err := filepath.Glob(filepath.Join(tmpDir, "*.vtt"))
	if err != nil || len(vttFiles) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "download", "no subtitle file produced", err)
	}

	content, err := os.ReadFile(vttFiles[0])
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "download", "read subtitle file", err)
	}

	videoID := meta.VideoID
	if videoID == "" {
		if id, ok := ExtractVideoID(url); ok {
			videoID = id
		}
	}

	return &stage.Extraction{
		Title:         meta.Title,
		VideoID:       videoID,
		Language:      lang,
		AutoGenerated: auto,
		Lines:         transcript.ParseVTT(string(content)),
	}, nil
}

// selectLanguage walks the priority list, preferring manual subtitles over
// auto captions, then falls back to whatever track exists.
func selectLanguage(priority, subtitles, autoCaptions []string) (string, bool) {
	subSet := toSet(subtitles)
	autoSet := toSet(autoCaptions)

	for _, lang := range priority {
		if _, ok := subSet[lang]; ok {
			return lang, false
		}
		if _, ok := autoSet[lang]; ok {
			return lang, true
		}
	}
	if len(subtitles) > 0 {
		return subtitles[0], false
	}
	return autoCaptions[0], true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

// HealthCheck reports whether the yt-dlp binary is resolvable.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.binary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found in PATH", s.binary))
	}
	return stage.Healthy(stageName)
}
