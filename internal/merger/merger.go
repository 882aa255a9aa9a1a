package merger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dubber/internal/queue"
	"dubber/internal/services"
)

const stageName = "merge"

// Sorted returns segments ordered by sequence number. The input is not
// modified.
func Sorted(segments []queue.Segment) []queue.Segment {
	ordered := make([]queue.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })
	return ordered
}

// TranscriptOriginal joins segment source texts in sequence order.
func TranscriptOriginal(segments []queue.Segment) string {
	return joinTexts(segments, func(s queue.Segment) string { return s.SourceText })
}

// TranscriptTranslated joins segment translations in sequence order.
func TranscriptTranslated(segments []queue.Segment) string {
	return joinTexts(segments, func(s queue.Segment) string { return s.TranslatedText })
}

func joinTexts(segments []queue.Segment, pick func(queue.Segment) string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range Sorted(segments) {
		text := strings.TrimSpace(pick(segment))
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// AudioSources returns the ordered audio fragment paths for a completed job.
// Every segment must carry a synthesized file.
func AudioSources(segments []queue.Segment) ([]string, error) {
	ordered := Sorted(segments)
	sources := make([]string, 0, len(ordered))
	for _, segment := range ordered {
		if segment.AudioFile == "" {
			return nil, services.Wrap(services.ErrValidation, stageName, "audio",
				fmt.Sprintf("segment %d has no audio file", segment.Seq), nil)
		}
		sources = append(sources, segment.AudioFile)
	}
	return sources, nil
}

// ConcatAudio writes the binary concatenation of the source MP3 files to
// dest. Sources must exist and be non-empty.
func ConcatAudio(dest string, sources []string) error {
	if len(sources) == 0 {
		return services.Wrap(services.ErrValidation, stageName, "audio", "no audio sources", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "audio", "create output directory", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "audio", "create merged file", err)
	}
	defer out.Close()

	for _, source := range sources {
		if err := appendFile(out, source); err != nil {
			return services.Wrap(services.ErrTransient, stageName, "audio",
				fmt.Sprintf("append %s", filepath.Base(source)), err)
		}
	}
	if err := out.Sync(); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "audio", "flush merged file", err)
	}
	return nil
}

func appendFile(out *os.File, source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio fragment is empty")
	}
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}
