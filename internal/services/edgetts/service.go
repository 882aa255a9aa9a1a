package edgetts

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/transcript"
)

const stageName = "synthesize"

// maxTextLength is the per-invocation character limit edge-tts accepts
// reliably. Longer texts are split at sentence boundaries and the resulting
// MP3 fragments concatenated.
const maxTextLength = 5000

const (
	// DefaultVoice is the standard Korean female neural voice.
	DefaultVoice = "ko-KR-SunHiNeural"
	// MaleVoice is the Korean male neural voice alternative.
	MaleVoice = "ko-KR-InJoonNeural"
)

// Service synthesizes speech with the edge-tts command line tool.
type Service struct {
	binary        string
	voice         string
	rate          string
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService builds a synthesizer from synthesis config.
func NewService(cfg config.Synthesis) *Service {
	binary := cfg.Binary
	if binary == "" {
		binary = "edge-tts"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	rate := cfg.Rate
	if rate == "" {
		rate = "+0%"
	}
	return &Service{binary: binary, voice: voice, rate: rate}
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
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Synthesize renders text to an MP3 file at dest.
func (s *Service) Synthesize(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, stageName, "request", "empty text", nil)
	}
	if dest == "" {
		return services.Wrap(services.ErrValidation, stageName, "request", "empty destination path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "request", "create output directory", err)
	}

	if utf8.RuneCountInString(text) <= maxTextLength {
		return s.synthesizeOne(ctx, text, dest)
	}

	fragments := SplitText(text, maxTextLength)
	workDir, err := os.MkdirTemp("", "dubber-tts-")
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "split", "create temp dir", err)
	}
	defer os.RemoveAll(workDir)

	paths := make([]string, 0, len(fragments))
	for i, fragment := range fragments {
		path := filepath.Join(workDir, fmt.Sprintf("fragment-%03d.mp3", i))
		if err := s.synthesizeOne(ctx, fragment, path); err != nil {
			return err
		}
		paths = append(paths, path)
	}
	if err := concatFiles(dest, paths); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "merge", "concatenate audio fragments", err)
	}
	return nil
}

func (s *Service) synthesizeOne(ctx context.Context, text, dest string) error {
	if _, err := s.run(ctx,
		"--voice", s.voice,
		"--rate="+s.rate,
		"--text", text,
		"--write-media", dest,
	); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "render", "run edge-tts", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "render", "audio file missing after synthesis", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, stageName, "render", "audio file empty after synthesis", nil)
	}
	return nil
}

// SplitText breaks text into fragments of at most limit runes, preferring
// newline and sentence boundaries over mid-sentence cuts.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = maxTextLength
	}

	var fragments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		fragments = append(fragments, strings.TrimSpace(current.String()))
		current.Reset()
		currentLen = 0
	}

	for _, unit := range splitUnits(text, limit) {
		unitLen := utf8.RuneCountInString(unit)
		if currentLen > 0 && currentLen+unitLen+1 > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(unit)
		currentLen += unitLen
	}
	flush()
	return fragments
}

// splitUnits yields lines of text, further splitting any line that exceeds
// the limit at sentence boundaries, then by raw rune count as a last resort.
func splitUnits(text string, limit int) []string {
	var units []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= limit {
			units = append(units, line)
			continue
		}
		for _, sentence := range splitSentences(line) {
			if utf8.RuneCountInString(sentence) <= limit {
				units = append(units, sentence)
				continue
			}
			runes := []rune(sentence)
			for len(runes) > limit {
				units = append(units, string(runes[:limit]))
				runes = runes[limit:]
			}
			if len(runes) > 0 {
				units = append(units, string(runes))
			}
		}
	}
	return units
}

func splitSentences(line string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range line {
		current.WriteRune(r)
		if transcript.IsSentenceEnd(string(r)) {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func concatFiles(dest string, sources []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, source := range sources {
		in, err := os.Open(source)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			return err
		}
		in.Close()
	}
	return out.Sync()
}

// HealthCheck reports whether edge-tts is resolvable.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.binary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found in PATH", s.binary))
	}
	return stage.Healthy(stageName)
}
