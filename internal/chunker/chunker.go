package chunker

import (
	"strings"
	"unicode/utf8"

	"dubber/internal/config"
	"dubber/internal/transcript"
)

// Chunk groups consecutive transcript lines into one translation unit.
type Chunk struct {
	Seq   int
	Start float64
	End   float64
	Lines []transcript.Line
}

// Text returns the chunk contents, one source line per text line.
func (c Chunk) Text() string {
	parts := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, "\n")
}

// Options bound chunk sizes. MaxChars is a soft limit honored at sentence
// boundaries, HardLimitChars forces a split regardless, MaxSeconds bounds the
// time span covered by one chunk.
type Options struct {
	MaxChars       int
	HardLimitChars int
	MaxSeconds     int
}

// FromConfig derives chunking options from application config.
func FromConfig(cfg *config.Config) Options {
	return Options{
		MaxChars:       cfg.Chunking.MaxChars,
		HardLimitChars: cfg.Chunking.HardLimitChars,
		MaxSeconds:     cfg.Chunking.MaxSeconds,
	}
}

// Split partitions transcript lines into ordered chunks. The split is
// deterministic, never divides a line, and concatenating the chunks in
// sequence reproduces the input exactly. A single line exceeding the hard
// limit becomes its own chunk.
func Split(lines []transcript.Line, opts Options) []Chunk {
	if len(lines) == 0 {
		return nil
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 1500
	}
	if opts.HardLimitChars < opts.MaxChars {
		opts.HardLimitChars = opts.MaxChars
	}
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = 60
	}

	var (
		chunks     []Chunk
		current    []transcript.Line
		chunkStart float64
		chars      int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Seq:   len(chunks),
			Start: current[0].Start,
			End:   current[len(current)-1].End,
			Lines: current,
		})
		current = nil
		chars = 0
	}

	for _, line := range lines {
		lineChars := utf8.RuneCountInString(line.Text)

		timeExceeded := len(current) > 0 && line.Start-chunkStart >= float64(opts.MaxSeconds)
		hardExceeded := len(current) > 0 && chars+lineChars > opts.HardLimitChars
		softExceeded := len(current) > 0 && chars >= opts.MaxChars &&
			transcript.IsSentenceEnd(current[len(current)-1].Text)

		if timeExceeded || hardExceeded || softExceeded {
			flush()
			chunkStart = line.Start
		}

		if len(current) == 0 {
			chunkStart = line.Start
		}
		current = append(current, line)
		chars += lineChars
	}
	flush()

	return chunks
}

// Flatten reassembles chunk lines in sequence order.
func Flatten(chunks []Chunk) []transcript.Line {
	var lines []transcript.Line
	for _, chunk := range chunks {
		lines = append(lines, chunk.Lines...)
	}
	return lines
}
