package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/logging"
	"sentinel/internal/services"
	"sentinel/internal/services/llm"
	"sentinel/internal/unit"
)

// Retriever finds transcript passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, mediaID, query string, limit int) ([]Passage, error)
}

// Memory persists chat turns per session.
type Memory interface {
	History(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
	AppendTurn(ctx context.Context, sessionID, mediaID, question, answer string) error
}

// Question is one chat request about an analysed media file.
type Question struct {
	MediaID   string
	SessionID string
	Text      string
}

// ChatOptions configures the chat unit.
type ChatOptions struct {
	TopK       int
	MaxHistory int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Chat answers questions about analysed media using retrieved transcript
// passages and the session's earlier turns. It runs outside the analysis
// graph but through the same lifecycle wrapper, so its output carries the
// usual metadata and failure containment.
type Chat struct {
	llm       ConversationCompleter
	retriever Retriever
	memory    Memory
	opts      ChatOptions
}

// NewChat constructs the chat unit. memory may be nil for stateless use.
func NewChat(client ConversationCompleter, retriever Retriever, memory Memory, opts ChatOptions) *Chat {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.MaxHistory < 0 {
		opts.MaxHistory = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Chat{llm: client, retriever: retriever, memory: memory, opts: opts}
}

// Ask answers q. The returned Output holds an Answer on success; a
// throttled provider surfaces as *unit.RateLimitError.
func (c *Chat) Ask(ctx context.Context, q Question) (*unit.Output, error) {
	if strings.TrimSpace(q.SessionID) == "" {
		q.SessionID = uuid.NewString()
	}
	ctx = services.WithMediaID(ctx, q.MediaID)
	return unit.Run(ctx, unit.Options{
		Unit:    unit.Chat,
		MediaID: q.MediaID,
		Timeout: c.opts.Timeout,
		Logger:  c.opts.Logger,
	}, func(ctx context.Context) (any, error) {
		return c.answer(ctx, q)
	})
}

func (c *Chat) answer(ctx context.Context, q Question) (Answer, error) {
	question := strings.TrimSpace(q.Text)
	if question == "" {
		return Answer{}, services.Wrap(services.ErrValidation, "chat", "ask", "question is required", nil)
	}
	if c.llm == nil {
		return Answer{}, services.Wrap(services.ErrConfiguration, "chat", "ask", "llm client not configured", nil)
	}

	var passages []Passage
	if c.retriever != nil {
		found, err := c.retriever.Retrieve(ctx, q.MediaID, question, c.opts.TopK)
		if err != nil {
			return Answer{}, fmt.Errorf("chat: retrieve passages: %w", err)
		}
		passages = found
	}

	var history []llm.Message
	if c.memory != nil && c.opts.MaxHistory > 0 {
		previous, err := c.memory.History(ctx, q.SessionID, c.opts.MaxHistory)
		if err != nil {
			return Answer{}, fmt.Errorf("chat: load history: %w", err)
		}
		history = previous
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: buildChatPrompt(passages, question)})

	content, err := c.llm.CompleteJSONMessages(ctx, chatSystemPrompt, history)
	if err != nil {
		return Answer{}, err
	}
	var reply struct {
		Answer   string `json:"answer"`
		Passages []int  `json:"passages"`
	}
	if err := decode(unit.Chat, content, &reply); err != nil {
		return Answer{}, err
	}
	text := strings.TrimSpace(reply.Answer)
	if text == "" {
		return Answer{}, services.Wrap(services.ErrValidation, "chat", "ask", "model returned an empty answer", nil)
	}

	answer := Answer{Text: text, SessionID: q.SessionID}
	seen := make(map[int]struct{}, len(reply.Passages))
	for _, n := range reply.Passages {
		if n < 1 || n > len(passages) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		answer.Citations = append(answer.Citations, passages[n-1])
	}

	if c.memory != nil {
		if err := c.memory.AppendTurn(ctx, q.SessionID, q.MediaID, question, text); err != nil {
			logging.WarnWithContext(c.opts.Logger, "chat turn not saved", "chat_memory_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "follow-up questions will not see this turn"),
			)
		}
	}
	return answer, nil
}

func buildChatPrompt(passages []Passage, question string) string {
	var b strings.Builder
	if len(passages) == 0 {
		b.WriteString("No transcript passages matched this question.\n")
	} else {
		b.WriteString("Relevant passages:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] (%.1fs - %.1fs) %s\n", i+1, p.Start, p.End, p.Text)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
