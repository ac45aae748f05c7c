package config

const (
	defaultConfigPath           = "~/.config/sentinel/config.toml"
	defaultStagingDir           = "~/.local/share/sentinel/staging"
	defaultStateDir             = "~/.local/share/sentinel"
	defaultLogDir               = "~/.local/share/sentinel/logs"
	defaultWhisperXCacheDir     = "~/.cache/sentinel/whisperx"
	defaultLLMBaseURL           = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel             = "gpt-4o-mini"
	defaultLLMReferer           = "https://github.com/sentinel-media/sentinel"
	defaultLLMTitle             = "Sentinel"
	defaultLLMTimeoutSeconds    = 60
	defaultLLMRequestsPerMinute = 60
	defaultLLMMaxRetries        = 3
	defaultWhisperXModel        = "large-v3-turbo"
	defaultWhisperXVADMethod    = "silero"
	defaultWhisperXChunkSeconds = 45
	defaultUnitTimeoutSeconds   = 120
	defaultUnitConcurrency      = 4
	defaultFrameIntervalSeconds = 5
	defaultMaxFrames            = 24
	defaultFrameWidth           = 768
	defaultYTDLPBinary          = "yt-dlp"
	defaultDownloadFormat       = "mp4/bestaudio+best"
	defaultDownloadTimeout      = 900
	defaultRetrievalTopK        = 6
	defaultMaxChatHistory       = 10
	defaultRateLimitCooldown    = 60
	defaultRateLimitRetries     = 2
	defaultStagingMaxAgeHours   = 48
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Referer:           defaultLLMReferer,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RequestsPerMinute: defaultLLMRequestsPerMinute,
			MaxRetries:        defaultLLMMaxRetries,
		},
		WhisperX: WhisperX{
			Model:        defaultWhisperXModel,
			VADMethod:    defaultWhisperXVADMethod,
			ChunkSeconds: defaultWhisperXChunkSeconds,
			CacheDir:     defaultWhisperXCacheDir,
		},
		Units: Units{
			VisionEnabled:  true,
			EmotionEnabled: true,
			RiskEnabled:    true,
			TimeoutSeconds: defaultUnitTimeoutSeconds,
			Concurrency:    defaultUnitConcurrency,
		},
		Sampling: Sampling{
			FrameIntervalSeconds: defaultFrameIntervalSeconds,
			MaxFrames:            defaultMaxFrames,
			FrameWidth:           defaultFrameWidth,
		},
		Download: Download{
			Binary:         defaultYTDLPBinary,
			Format:         defaultDownloadFormat,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Retrieval: Retrieval{
			TopK:           defaultRetrievalTopK,
			MaxChatHistory: defaultMaxChatHistory,
		},
		Workflow: Workflow{
			RateLimitCooldownSeconds: defaultRateLimitCooldown,
			RateLimitRetries:         defaultRateLimitRetries,
			StagingMaxAgeHours:       defaultStagingMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			RateLimit:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
