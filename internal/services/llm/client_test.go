package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"sentinel/internal/services"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func noWait() []Option {
	return []Option{
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRateLimiter(nil),
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, `{"ok":true}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := completionServer(t, "```json\n{\"ok\":true}\n```")
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckUnauthorizedIsConfigurationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, noWait()...)
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestCompleteJSONSendsPromptsAndHeaders(t *testing.T) {
	var got chatCompletionRequest
	var auth, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"topics":["budget"]}`}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", Title: "sentinel"})
	content, err := client.CompleteJSON(context.Background(), " system ", " user ")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"topics":["budget"]}` {
		t.Fatalf("unexpected content %q", content)
	}
	if auth != "Bearer k" || title != "sentinel" {
		t.Fatalf("unexpected headers auth=%q title=%q", auth, title)
	}
	if got.Model != "m" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Messages[0].Content != "system" || got.Messages[1].Content != "user" {
		t.Fatalf("prompts not trimmed: %+v", got.Messages)
	}
	if got.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("expected json response format, got %v", got.ResponseFormat)
	}
}

func TestCompleteJSONRequiresPromptsAndKey(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Fatal("expected error for empty system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCompleteJSONMessagesKeepsHistoryOrder(t *testing.T) {
	var got struct {
		Messages []Message `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"answer":"yes"}`}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	history := []Message{
		{Role: RoleUser, Content: "first question"},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: "tool", Content: "coerced to user"},
		{Role: RoleUser, Content: "   "},
	}
	if _, err := client.CompleteJSONMessages(context.Background(), "system", history); err != nil {
		t.Fatalf("CompleteJSONMessages returned error: %v", err)
	}
	wantRoles := []string{RoleSystem, RoleUser, RoleAssistant, RoleUser}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %+v", len(wantRoles), got.Messages)
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Fatalf("message %d role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
}

func TestCompleteVisionJSONInlinesImages(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "frame_0001.jpg")
	if err := os.WriteFile(framePath, []byte{0xff, 0xd8, 0xff, 0xe0}, 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"scene_summaries":["desk"]}`}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "vision"})
	if _, err := client.CompleteVisionJSON(context.Background(), "system", "describe", []string{framePath}); err != nil {
		t.Fatalf("CompleteVisionJSON returned error: %v", err)
	}
	messages, _ := raw["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected two messages, got %v", raw["messages"])
	}
	user, _ := messages[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", user["content"])
	}
	image, _ := parts[1].(map[string]any)
	url, _ := image["image_url"].(map[string]any)
	if dataURL, _ := url["url"].(string); !strings.HasPrefix(dataURL, "data:image/jpeg;base64,") {
		t.Fatalf("expected jpeg data url, got %q", dataURL)
	}
}

func TestCompleteVisionJSONMissingImage(t *testing.T) {
	client := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1", Model: "vision"})
	_, err := client.CompleteVisionJSON(context.Background(), "system", "describe", []string{filepath.Join(t.TempDir(), "missing.jpg")})
	if err == nil || !strings.Contains(err.Error(), "missing.jpg") {
		t.Fatalf("expected read error naming the frame, got %v", err)
	}
}

func TestClientToolCallsArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"type": "function",
								"id":   "call_1",
								"function": map[string]any{
									"name":      "report",
									"arguments": `{"level":"low"}`,
								},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"level":"low"}` {
		t.Fatalf("expected tool call arguments, got %q", content)
	}
}

func TestClientDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": `{"ok":true}`}},
		"legacy": {"text": `{"ok":true}`, "finish_reason": "stop"},
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}})
			}))
			defer server.Close()
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			if err := client.HealthCheck(context.Background()); err != nil {
				t.Fatalf("HealthCheck returned error: %v", err)
			}
		})
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := completionServer(t, "")
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"}, noWait()...)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected completion to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
		WithRateLimiter(nil),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientPersistent429IsRateLimited(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", MaxRetries: 2}, noWait()...)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited marker, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected MaxRetries+1 calls, got %d", calls)
	}
}

func TestClientQuotaPhraseIsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"You exceeded your current quota"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, noWait()...)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !services.IsRateLimited(err) {
		t.Fatalf("expected quota exhaustion to count as rate limited, got %v", err)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"ok":true}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}}},
		})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		append(noWait(), WithRetryMaxAttempts(5))...,
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientLimiterHonoursContext(t *testing.T) {
	server := completionServer(t, `{"ok":true}`)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, WithRateLimiter(limiter))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.CompleteJSON(ctx, "system", "user")
	if err == nil {
		t.Fatal("expected limiter wait to fail")
	}
	if errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("local pacing must not be reported as provider throttling: %v", err)
	}
}

func TestNewLimiter(t *testing.T) {
	if NewLimiter(0) != nil {
		t.Fatal("expected nil limiter for zero rpm")
	}
	limiter := NewLimiter(60)
	if limiter == nil || limiter.Limit() != rate.Limit(1) {
		t.Fatalf("expected 1 event per second, got %v", limiter)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	var target struct {
		Level string `json:"level"`
	}
	cases := []string{
		`{"level":"high"}`,
		"```json\n{\"level\":\"high\"}\n```",
		"Here you go: {\"level\":\"high\"} hope that helps",
	}
	for _, input := range cases {
		target.Level = ""
		if err := DecodeLLMJSON(input, &target); err != nil {
			t.Fatalf("DecodeLLMJSON(%q) returned error: %v", input, err)
		}
		if target.Level != "high" {
			t.Fatalf("DecodeLLMJSON(%q) level = %q", input, target.Level)
		}
	}
	if err := DecodeLLMJSON("not json", &target); err == nil || !strings.Contains(err.Error(), "snippet") {
		t.Fatalf("expected snippet in decode error, got %v", err)
	}
}
