package stage

import (
	"context"

	"dubber/internal/transcript"
)

// Extraction is the result of pulling a transcript for a video.
type Extraction struct {
	Title         string
	VideoID       string
	Language      string
	AutoGenerated bool
	Lines         []transcript.Line
}

// Extractor fetches video metadata and a timed transcript for a source URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Extraction, error)
	HealthCheck(ctx context.Context) Health
}

// TranslateRequest carries one chunk of source text plus the tail of the
// previous chunk's source for context continuity.
type TranslateRequest struct {
	Text        string
	PrevContext string
}

// Translator converts one chunk of transcript text into the target language.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
	HealthCheck(ctx context.Context) Health
}

// Synthesizer renders translated text into an audio fragment at dest.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, dest string) error
	HealthCheck(ctx context.Context) Health
}
