package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/services/edgetts"
	"dubber/internal/services/translate"
	"dubber/internal/services/whisper"
	"dubber/internal/services/ytdlp"
	"dubber/internal/stage"
	"dubber/internal/workflow"
)

func buildStages(cfg *config.Config) workflow.Stages {
	var extractor stage.Extractor = ytdlp.NewService(cfg.Extraction)
	if cfg.Extraction.WhisperFallback {
		extractor = &fallbackExtractor{
			primary:  extractor,
			fallback: whisper.NewService(cfg.Extraction),
		}
	}
	return workflow.Stages{
		Extractor:   extractor,
		Translator:  translate.NewClient(cfg.Translation),
		Synthesizer: edgetts.NewService(cfg.Synthesis),
	}
}

// fallbackExtractor transcribes the audio track when a video carries no
// subtitles at all.
type fallbackExtractor struct {
	primary  stage.Extractor
	fallback stage.Extractor
}

func (f *fallbackExtractor) Extract(ctx context.Context, url string) (*stage.Extraction, error) {
	extraction, err := f.primary.Extract(ctx, url)
	if err == nil {
		return extraction, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	return f.fallback.Extract(ctx, url)
}

func (f *fallbackExtractor) HealthCheck(ctx context.Context) stage.Health {
	if health := f.primary.HealthCheck(ctx); !health.Ready {
		return health
	}
	return f.fallback.HealthCheck(ctx)
}

func socketPath(cfg *config.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.Paths.SocketPath) != "" {
		return cfg.Paths.SocketPath
	}
	if cfg == nil {
		return filepath.Join("", "dubberd.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "dubberd.sock")
}
