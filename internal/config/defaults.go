package config

const (
	defaultOutputDir              = "~/dubbing"
	defaultLogDir                 = "~/.local/share/dubber/logs"
	defaultYtdlpBinary            = "yt-dlp"
	defaultExtractionTimeout      = 300
	defaultWhisperModel           = "base"
	defaultTranslationBaseURL     = "https://api.z.ai/api/coding/paas/v4"
	defaultTranslationModel       = "glm-4.6"
	defaultSourceLanguage         = "English"
	defaultTargetLanguage         = "Korean"
	defaultTranslationStyle       = "natural"
	defaultTranslationTone        = "lecture"
	defaultTranslationTimeout     = 180
	defaultSynthesisBinary        = "edge-tts"
	defaultVoice                  = "ko-KR-SunHiNeural"
	defaultRate                   = "+0%"
	defaultSynthesisTimeout       = 120
	defaultChunkMaxChars          = 1500
	defaultChunkHardLimitChars    = 2000
	defaultChunkMaxSeconds        = 60
	defaultWorkers                = 3
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultRetryCap               = 3
	defaultRetryBackoffSeconds    = 2
	defaultRetryBackoffMaxSeconds = 60
	defaultStaleClaimSeconds      = 900
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Extraction: Extraction{
			YtdlpBinary:       defaultYtdlpBinary,
			SubtitleLanguages: []string{"en", "en-US", "en-GB", "ko", "ja"},
			TimeoutSeconds:    defaultExtractionTimeout,
			WhisperFallback:   false,
			WhisperModel:      defaultWhisperModel,
		},
		Translation: Translation{
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
			Style:          defaultTranslationStyle,
			Tone:           defaultTranslationTone,
			TimeoutSeconds: defaultTranslationTimeout,
		},
		Synthesis: Synthesis{
			Binary:         defaultSynthesisBinary,
			Voice:          defaultVoice,
			Rate:           defaultRate,
			TimeoutSeconds: defaultSynthesisTimeout,
		},
		Chunking: Chunking{
			MaxChars:       defaultChunkMaxChars,
			HardLimitChars: defaultChunkHardLimitChars,
			MaxSeconds:     defaultChunkMaxSeconds,
		},
		Workflow: Workflow{
			Workers:                defaultWorkers,
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			RetryCap:               defaultRetryCap,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffMaxSeconds: defaultRetryBackoffMaxSeconds,
			StaleClaimSeconds:      defaultStaleClaimSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
