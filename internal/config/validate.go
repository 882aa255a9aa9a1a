package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	isLocal := strings.Contains(c.Translation.BaseURL, "localhost") ||
		strings.Contains(c.Translation.BaseURL, "127.0.0.1")
	if c.Translation.APIKey == "" && !isLocal {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/dubber/config.toml"
		}
		return fmt.Errorf("translation.api_key is required. Set DUBBER_TRANSLATION_API_KEY env var or edit %s (create with 'dubber config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.HardLimitChars < c.Chunking.MaxChars {
		return errors.New("chunking.hard_limit_chars must be >= chunking.max_chars")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":               c.Workflow.Workers,
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.retry_cap":             c.Workflow.RetryCap,
		"workflow.retry_backoff_seconds": c.Workflow.RetryBackoffSeconds,
		"workflow.stale_claim_seconds":   c.Workflow.StaleClaimSeconds,
		"extraction.timeout_seconds":     c.Extraction.TimeoutSeconds,
		"translation.timeout_seconds":    c.Translation.TimeoutSeconds,
		"synthesis.timeout_seconds":      c.Synthesis.TimeoutSeconds,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.RetryBackoffMaxSeconds < c.Workflow.RetryBackoffSeconds {
		return errors.New("workflow.retry_backoff_max_seconds must be >= workflow.retry_backoff_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if topic := strings.TrimSpace(c.Notifications.NtfyTopic); topic != "" {
		if strings.ContainsAny(topic, " \t") {
			return errors.New("notifications.ntfy_topic must not contain whitespace")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
