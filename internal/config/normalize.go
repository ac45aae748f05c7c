package config

import (
	"fmt"
	"os"
	"strings"

	"sentinel/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	if err := c.normalizeWhisperX(); err != nil {
		return err
	}
	c.normalizeUnits()
	c.normalizeDownload()
	c.normalizeNotifications()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv("SENTINEL_LLM_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWhisperX() error {
	c.WhisperX.Model = strings.TrimSpace(c.WhisperX.Model)
	if c.WhisperX.Model == "" {
		c.WhisperX.Model = defaultWhisperXModel
	}
	c.WhisperX.VADMethod = strings.ToLower(strings.TrimSpace(c.WhisperX.VADMethod))
	if c.WhisperX.VADMethod == "" {
		c.WhisperX.VADMethod = defaultWhisperXVADMethod
	}
	c.WhisperX.Language = strings.ToLower(strings.TrimSpace(c.WhisperX.Language))
	if code := language.Normalize(c.WhisperX.Language); code != "" {
		c.WhisperX.Language = code
	}
	c.WhisperX.HuggingFaceToken = strings.TrimSpace(c.WhisperX.HuggingFaceToken)
	if c.WhisperX.HuggingFaceToken == "" {
		c.WhisperX.HuggingFaceToken = firstEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
	if strings.TrimSpace(c.WhisperX.CacheDir) == "" {
		c.WhisperX.CacheDir = defaultWhisperXCacheDir
	}
	var err error
	if c.WhisperX.CacheDir, err = expandPath(c.WhisperX.CacheDir); err != nil {
		return fmt.Errorf("whisperx.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUnits() {
	if c.Units.Concurrency == 0 {
		c.Units.Concurrency = 1
	}
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultYTDLPBinary
	}
	c.Download.Format = strings.TrimSpace(c.Download.Format)
	if c.Download.Format == "" {
		c.Download.Format = defaultDownloadFormat
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = firstEnv("SENTINEL_NTFY_TOPIC")
	}
}

func (c *Config) normalizeMetrics() error {
	if strings.TrimSpace(c.Metrics.TextfilePath) == "" {
		c.Metrics.TextfilePath = ""
		return nil
	}
	var err error
	if c.Metrics.TextfilePath, err = expandPath(c.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// firstEnv returns the first non-blank value among the named variables.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
