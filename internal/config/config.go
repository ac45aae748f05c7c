package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// LLM contains OpenAI-compatible chat completion settings shared by every
// language unit. VisionModel falls back to Model when empty.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	VisionModel       string `toml:"vision_model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
}

// WhisperX contains speech-to-text settings.
type WhisperX struct {
	Model            string `toml:"model"`
	CUDAEnabled      bool   `toml:"cuda_enabled"`
	VADMethod        string `toml:"vad_method"`
	HuggingFaceToken string `toml:"hf_token"`
	Language         string `toml:"language"`
	ChunkSeconds     int    `toml:"chunk_seconds"`
	CacheDir         string `toml:"cache_dir"`
}

// Units contains the feature toggles and execution limits for the analysis
// pipeline. Audio, tagging, and reasoning always run when their inputs exist.
type Units struct {
	VisionEnabled  bool `toml:"vision_enabled"`
	EmotionEnabled bool `toml:"emotion_enabled"`
	RiskEnabled    bool `toml:"risk_enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	Concurrency    int  `toml:"concurrency"`
}

// Sampling controls frame extraction for the vision unit.
type Sampling struct {
	FrameIntervalSeconds int `toml:"frame_interval_seconds"`
	MaxFrames            int `toml:"max_frames"`
	FrameWidth           int `toml:"frame_width"`
}

// Download controls fetching remote media (YouTube and other yt-dlp
// supported sites) into the staging workspace.
type Download struct {
	Binary         string `toml:"ytdlp_binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retrieval controls transcript search and chat memory.
type Retrieval struct {
	TopK           int `toml:"top_k"`
	MaxChatHistory int `toml:"max_chat_history"`
}

// Workflow contains run-level retry and housekeeping settings.
type Workflow struct {
	RateLimitCooldownSeconds int  `toml:"rate_limit_cooldown_seconds"`
	RateLimitRetries         int  `toml:"rate_limit_retries"`
	KeepStaging              bool `toml:"keep_staging"`
	StagingMaxAgeHours       int  `toml:"staging_max_age_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	RateLimit      bool   `toml:"rate_limit"`
	Errors         bool   `toml:"errors"`
}

// Metrics controls Prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Sentinel.
//
// Configuration sections by subsystem:
//   - Paths: staging, state (SQLite), and log directories
//   - LLM: chat completion endpoint shared by the language and vision units
//   - WhisperX: transcription settings
//   - Units: feature toggles, per-unit timeout, and concurrency
//   - Sampling: frame extraction for the vision unit
//   - Download: yt-dlp settings for URL sources
//   - Retrieval: transcript search and chat memory sizes
//   - Workflow: rate-limit retry policy and staging housekeeping
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus textfile export
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	WhisperX      WhisperX      `toml:"whisperx"`
	Units         Units         `toml:"units"`
	Sampling      Sampling      `toml:"sampling"`
	Download      Download      `toml:"download"`
	Retrieval     Retrieval     `toml:"retrieval"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sentinel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the transcript index, analysis
// archive, and chat memory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "sentinel.db")
}

// FFmpegBinary returns the ffmpeg executable name used for audio and frame extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// YTDLPBinary returns the yt-dlp executable used for URL sources.
func (c *Config) YTDLPBinary() string {
	if binary := strings.TrimSpace(c.Download.Binary); binary != "" {
		return binary
	}
	return defaultYTDLPBinary
}

// DownloadTimeout bounds a single remote media download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// UnitTimeout returns the per-unit timeout ceiling.
func (c *Config) UnitTimeout() time.Duration {
	return time.Duration(c.Units.TimeoutSeconds) * time.Second
}

// RateLimitCooldown returns the wait applied before retrying a rate-limited run.
func (c *Config) RateLimitCooldown() time.Duration {
	return time.Duration(c.Workflow.RateLimitCooldownSeconds) * time.Second
}

// RequireLLM reports a configuration error when no LLM credentials are set.
// Commands that never call the model (graph, config, search) skip this check.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set SENTINEL_LLM_API_KEY env var or edit %s (create with 'sentinel config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved connection settings for one model.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
	MaxRetries        int
}

// GetLLM returns the text model connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:            strings.TrimSpace(c.LLM.APIKey),
		BaseURL:           strings.TrimSpace(c.LLM.BaseURL),
		Model:             strings.TrimSpace(c.LLM.Model),
		Referer:           strings.TrimSpace(c.LLM.Referer),
		Title:             strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds:    c.LLM.TimeoutSeconds,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		MaxRetries:        c.LLM.MaxRetries,
	}
}

// VisionLLM returns the connection settings for frame analysis.
// Falls back to the text model when no vision model is configured.
func (c *Config) VisionLLM() LLMConfig {
	cfg := c.GetLLM()
	if model := strings.TrimSpace(c.LLM.VisionModel); model != "" {
		cfg.Model = model
	}
	return cfg
}
