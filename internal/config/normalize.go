package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeTranslation()
	c.normalizeSynthesis()
	c.normalizeChunking()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
			return fmt.Errorf("paths.inbox_dir: %w", err)
		}
	}
	c.Paths.SocketPath = strings.TrimSpace(c.Paths.SocketPath)
	if c.Paths.SocketPath == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.LogDir, "dubberd.sock")
	} else if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	c.Extraction.YtdlpBinary = strings.TrimSpace(c.Extraction.YtdlpBinary)
	if c.Extraction.YtdlpBinary == "" {
		c.Extraction.YtdlpBinary = defaultYtdlpBinary
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = defaultExtractionTimeout
	}
	langs := make([]string, 0, len(c.Extraction.SubtitleLanguages))
	seen := make(map[string]struct{}, len(c.Extraction.SubtitleLanguages))
	for _, lang := range c.Extraction.SubtitleLanguages {
		normalized := strings.TrimSpace(lang)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = Default().Extraction.SubtitleLanguages
	}
	c.Extraction.SubtitleLanguages = langs
	c.Extraction.WhisperModel = strings.TrimSpace(c.Extraction.WhisperModel)
	if c.Extraction.WhisperModel == "" {
		c.Extraction.WhisperModel = defaultWhisperModel
	}
}

func (c *Config) normalizeTranslation() {
	if c.Translation.APIKey == "" {
		if value, ok := os.LookupEnv("DUBBER_TRANSLATION_API_KEY"); ok {
			c.Translation.APIKey = value
		}
	}
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	if strings.TrimSpace(c.Translation.SourceLanguage) == "" {
		c.Translation.SourceLanguage = defaultSourceLanguage
	}
	if strings.TrimSpace(c.Translation.TargetLanguage) == "" {
		c.Translation.TargetLanguage = defaultTargetLanguage
	}
	c.Translation.Style = strings.ToLower(strings.TrimSpace(c.Translation.Style))
	switch c.Translation.Style {
	case "faithful", "natural":
	default:
		c.Translation.Style = defaultTranslationStyle
	}
	c.Translation.Tone = strings.ToLower(strings.TrimSpace(c.Translation.Tone))
	switch c.Translation.Tone {
	case "lecture", "casual", "formal":
	default:
		c.Translation.Tone = defaultTranslationTone
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Binary = strings.TrimSpace(c.Synthesis.Binary)
	if c.Synthesis.Binary == "" {
		c.Synthesis.Binary = defaultSynthesisBinary
	}
	c.Synthesis.Voice = strings.TrimSpace(c.Synthesis.Voice)
	if c.Synthesis.Voice == "" {
		c.Synthesis.Voice = defaultVoice
	}
	c.Synthesis.Rate = strings.TrimSpace(c.Synthesis.Rate)
	if c.Synthesis.Rate == "" {
		c.Synthesis.Rate = defaultRate
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = defaultSynthesisTimeout
	}
}

func (c *Config) normalizeChunking() {
	if c.Chunking.MaxChars <= 0 {
		c.Chunking.MaxChars = defaultChunkMaxChars
	}
	if c.Chunking.HardLimitChars <= 0 {
		c.Chunking.HardLimitChars = defaultChunkHardLimitChars
	}
	if c.Chunking.HardLimitChars < c.Chunking.MaxChars {
		c.Chunking.HardLimitChars = c.Chunking.MaxChars
	}
	if c.Chunking.MaxSeconds <= 0 {
		c.Chunking.MaxSeconds = defaultChunkMaxSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.RetryCap <= 0 {
		c.Workflow.RetryCap = defaultRetryCap
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Workflow.RetryBackoffMaxSeconds <= 0 {
		c.Workflow.RetryBackoffMaxSeconds = defaultRetryBackoffMaxSeconds
	}
	if c.Workflow.StaleClaimSeconds <= 0 {
		c.Workflow.StaleClaimSeconds = defaultStaleClaimSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
