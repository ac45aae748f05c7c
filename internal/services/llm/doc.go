// Package llm provides an OpenAI-compatible chat completion client used by the
// analysis units.
//
// Every call requests a JSON object response. CompleteJSON covers the single
// prompt case, CompleteJSONMessages carries a conversation for retrieval
// questions and CompleteVisionJSON inlines sampled frames as data URLs.
//
// # Pacing and retries
//
// Requests pass through a token bucket limiter derived from
// RequestsPerMinute before they are sent. HTTP 408/429/5xx responses, empty
// completions and network timeouts are retried with exponential backoff,
// honouring Retry-After. Context cancellation aborts retries immediately.
//
// # Errors
//
// Final failures are tagged with the services markers. A request still
// throttled after the last attempt carries services.ErrRateLimited, which the
// unit runner turns into a run-wide abort.
package llm
