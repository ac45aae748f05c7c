package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	defaultBaseURL        = "https://api.openai.com/v1/chat/completions"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
	MaxRetries        int
}

// Role values accepted by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultHTTPTimeout returns the default timeout used for LLM requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the configured retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithRateLimiter replaces the limiter derived from RequestsPerMinute. A nil
// limiter disables client-side pacing. Sharing one limiter between a text and
// a vision client keeps both under the same account budget.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewLimiter builds a limiter that admits requestsPerMinute calls per minute.
// Non-positive values return nil.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := defaultRetryAttempts
	if cfg.MaxRetries > 0 {
		attempts = cfg.MaxRetries + 1
	}
	client := &Client{
		cfg: Config{
			APIKey:            strings.TrimSpace(cfg.APIKey),
			BaseURL:           strings.TrimSpace(cfg.BaseURL),
			Model:             strings.TrimSpace(cfg.Model),
			Referer:           strings.TrimSpace(cfg.Referer),
			Title:             strings.TrimSpace(cfg.Title),
			TimeoutSeconds:    cfg.TimeoutSeconds,
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxRetries:        cfg.MaxRetries,
		},
		httpClient:       &http.Client{Timeout: timeout},
		limiter:          NewLimiter(cfg.RequestsPerMinute),
		retryMaxAttempts: attempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Model reports the model name requests are sent to.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// CompleteJSON issues a JSON-only chat completion request with the supplied prompts.
// It returns the raw JSON payload produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", errors.New("llm complete: system prompt required")
	}
	if userPrompt == "" {
		return "", errors.New("llm complete: user prompt required")
	}
	return c.CompleteJSONMessages(ctx, systemPrompt, []Message{{Role: RoleUser, Content: userPrompt}})
}

// CompleteJSONMessages sends a system prompt followed by a conversation and
// returns the JSON payload of the reply. Earlier turns give the model the
// chat history; the final message is the current question.
func (c *Client) CompleteJSONMessages(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return "", errors.New("llm chat: system prompt required")
	}
	if len(history) == 0 {
		return "", errors.New("llm chat: at least one message required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm chat: api key required")
	}
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: RoleSystem, Content: systemPrompt})
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := msg.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		messages = append(messages, chatMessage{Role: role, Content: content})
	}
	payload := chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	return c.completionContentWithRetry(ctx, payload, "llm complete")
}

// CompleteVisionJSON sends the prompts together with the supplied images and
// returns the JSON payload of the reply. Images are inlined as base64 data
// URLs so the endpoint never needs filesystem access.
func (c *Client) CompleteVisionJSON(ctx context.Context, systemPrompt, userPrompt string, imagePaths []string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", errors.New("llm vision: prompts required")
	}
	if len(imagePaths) == 0 {
		return "", errors.New("llm vision: at least one image required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm vision: api key required")
	}
	parts := make([]contentPart, 0, len(imagePaths)+1)
	parts = append(parts, contentPart{Type: "text", Text: userPrompt})
	for _, path := range imagePaths {
		dataURL, err := imageDataURL(path)
		if err != nil {
			return "", fmt.Errorf("llm vision: %w", err)
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: parts},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	return c.completionContentWithRetry(ctx, payload, "llm vision")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: RoleSystem, Content: "You must respond with JSON only."},
			{Role: RoleUser, Content: "Respond with {\"ok\":true}"},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.completionContentWithRetry(ctx, payload, "llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", filepath.Base(path), err)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
