package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrRateLimited   = errors.New("rate limited")
)

// rateLimitPhrases are matched case-insensitively against error text from
// upstream providers that do not surface a typed throttling error.
var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"http 429",
	"status 429",
	"quota exceeded",
	"exceeded your current quota",
	"insufficient_quota",
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRateLimited reports whether err signals upstream throttling, either through
// the ErrRateLimited marker or through well-known phrases in its text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return ContainsRateLimitPhrase(err.Error())
}

// ContainsRateLimitPhrase reports whether text mentions a throttling condition.
func ContainsRateLimitPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Classify returns a short label for the marker carried by err, used for
// metrics and notification tags.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "failed"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
