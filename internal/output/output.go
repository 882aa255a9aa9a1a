package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugMaxLength caps directory and file name stems derived from video titles.
const slugMaxLength = 50

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Slug turns a video title into a filesystem-safe name. Unicode is NFKC
// normalized with combining marks stripped, filesystem-hostile characters
// removed, whitespace collapsed, and the result capped at 50 runes.
func Slug(title string) string {
	normalizer := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(normalizer, title)
	if err != nil {
		normalized = title
	}

	cleaned := unsafeChars.ReplaceAllString(normalized, "")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if r := []rune(cleaned); len(r) > slugMaxLength {
		cleaned = strings.TrimSpace(string(r[:slugMaxLength]))
	}
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

// Layout describes the on-disk output directory for one job.
//
// The structure is:
//
//	<output_dir>/<videoID>-<slug>/
//	    transcript_original.txt
//	    transcript_korean.txt
//	    <slug>.mp3
//	    segments/segment-0001.mp3 ...
type Layout struct {
	Root string
	Slug string
}

// NewLayout builds the layout for a job from its video ID and title.
func NewLayout(outputDir, videoID, title string) Layout {
	slug := Slug(title)
	return Layout{
		Root: filepath.Join(outputDir, videoID+"-"+slug),
		Slug: slug,
	}
}

// Ensure creates the job and segment directories.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.SegmentsDir(), 0o755); err != nil {
		return fmt.Errorf("create output layout %q: %w", l.Root, err)
	}
	return nil
}

// SegmentsDir returns the directory holding per-segment audio fragments.
func (l Layout) SegmentsDir() string {
	return filepath.Join(l.Root, "segments")
}

// SegmentAudioPath returns the audio path for one segment.
func (l Layout) SegmentAudioPath(seq int) string {
	return filepath.Join(l.SegmentsDir(), fmt.Sprintf("segment-%04d.mp3", seq))
}

// OriginalTranscriptPath returns the cleaned source transcript path.
func (l Layout) OriginalTranscriptPath() string {
	return filepath.Join(l.Root, "transcript_original.txt")
}

// TranslatedTranscriptPath returns the Korean transcript path.
func (l Layout) TranslatedTranscriptPath() string {
	return filepath.Join(l.Root, "transcript_korean.txt")
}

// FinalAudioPath returns the merged dub audio path.
func (l Layout) FinalAudioPath() string {
	return filepath.Join(l.Root, l.Slug+".mp3")
}

// WriteText writes text content to path, creating parent directories and
// ensuring a trailing newline.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
