package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/services/ytdlp"
	"dubber/internal/stage"
	"dubber/internal/transcript"
)

const (
	stageName  = "whisper"
	uvxCommand = "uvx"
)

// Service transcribes video audio with WhisperX when no subtitles exist.
// Audio is fetched with yt-dlp, then transcribed via uvx-managed whisperx.
type Service struct {
	ytdlpBinary   string
	model         string
	probe         *ytdlp.Service
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService builds a whisper fallback extractor from extraction config.
func NewService(cfg config.Extraction) *Service {
	binary := cfg.YtdlpBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	model := cfg.WhisperModel
	if model == "" {
		model = "base"
	}
	return &Service{
		ytdlpBinary: binary,
		model:       model,
		probe:       ytdlp.NewService(cfg),
	}
}

// WithCommandRunner sets a custom command runner (for testing). The runner is
// shared with the embedded metadata probe.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
	s.probe.WithCommandRunner(runner)
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Extract downloads the audio track and transcribes it.
func (s *Service) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	meta, err := s.probe.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "dubber-whisper-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "audio", "create temp dir", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "audio.mp3")
	if _, err := s.run(ctx, s.ytdlpBinary,
		"-x", "--audio-format", "mp3", "--no-warnings",
		"-o", audioPath, url,
	); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "audio", "download audio", err)
	}

	if _, err := s.run(ctx, uvxCommand,
		"whisperx", audioPath,
		"--model", s.model,
		"--output_dir", workDir,
		"--output_format", "json",
	); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "transcribe", "run whisperx", err)
	}

	jsonPath := filepath.Join(workDir, "audio.json")
	lines, err := loadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "transcribe", "load transcription", err)
	}

	videoID := meta.VideoID
	if videoID == "" {
		if id, ok := ytdlp.ExtractVideoID(url); ok {
			videoID = id
		}
	}

	return &stage.Extraction{
		Title:         meta.Title,
		VideoID:       videoID,
		Language:      "unknown",
		AutoGenerated: true,
		Lines:         lines,
	}, nil
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperPayload struct {
	Segments []whisperSegment `json:"segments"`
}

func loadSegments(jsonPath string) ([]transcript.Line, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}

	var lines []transcript.Line
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, transcript.Line{
			Index: len(lines),
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return lines, nil
}

// HealthCheck reports whether yt-dlp and uvx are resolvable.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.ytdlpBinary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found in PATH", s.ytdlpBinary))
	}
	if _, err := exec.LookPath(uvxCommand); err != nil {
		return stage.Unhealthy(stageName, "uvx not found in PATH")
	}
	return stage.Healthy(stageName)
}
