package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sentinel/internal/agents"
	"sentinel/internal/config"
	"sentinel/internal/index"
	"sentinel/internal/unit"
	"sentinel/internal/workflow"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <media-id> <query>",
		Short: "Search an analysed transcript",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID := strings.TrimSpace(args[0])
			query := strings.Join(args[1:], " ")
			return ctx.withIndex(func(cfg *config.Config, store *index.Store) error {
				if limit <= 0 {
					limit = cfg.Retrieval.TopK
				}
				hits, err := store.Search(cmd.Context(), mediaID, query, limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if hits == nil {
						hits = []agents.Passage{}
					}
					return writeJSON(cmd, hits)
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(out, "No passages in %s match %q\n", mediaID, query)
					return nil
				}
				fmt.Fprint(out, renderTableLayout(tableLayout{
					Headers:  []string{"Start", "End", "Text"},
					Rows:     passageRows(hits),
					Aligns:   []columnAlignment{alignRight, alignRight, alignLeft},
					MaxWidth: 80,
				}))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum passages to return (default: retrieval.top_k)")
	return cmd
}

func newAskCommand(ctx *commandContext) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <media-id> <question>",
		Short: "Ask a question about an analysed media file",
		Long: `Answer a question from the media's transcript. Pass the printed session
id back with --session to continue the conversation.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLM(); err != nil {
				return configFailure(err)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			mediaID := strings.TrimSpace(args[0])
			question := strings.Join(args[1:], " ")
			return ctx.withIndex(func(cfg *config.Config, store *index.Store) error {
				chunks, err := store.ChunkCount(cmd.Context(), mediaID)
				if err != nil {
					return err
				}
				if chunks == 0 {
					return fmt.Errorf("no transcript indexed for %s; run `sentinel analyze` first", mediaID)
				}

				chat := agents.NewChat(workflow.NewClients(cfg).Text, store, store, agents.ChatOptions{
					TopK:       cfg.Retrieval.TopK,
					MaxHistory: cfg.Retrieval.MaxChatHistory,
					Timeout:    cfg.UnitTimeout(),
					Logger:     logger,
				})
				out, err := chat.Ask(cmd.Context(), agents.Question{MediaID: mediaID, SessionID: sessionID, Text: question})
				if err != nil {
					var rl *unit.RateLimitError
					if errors.As(err, &rl) {
						return fmt.Errorf("chat rate limited; wait a moment and retry: %w", err)
					}
					return err
				}
				if out.Failed() {
					return fmt.Errorf("chat failed: %s", out.Error)
				}
				answer, ok := unit.ResultAs[agents.Answer](out)
				if !ok {
					return errors.New("chat returned no answer")
				}
				return printAnswer(cmd, ctx.JSONMode(), answer)
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing chat session")
	return cmd
}

func printAnswer(cmd *cobra.Command, jsonMode bool, answer agents.Answer) error {
	if jsonMode {
		return writeJSON(cmd, answer)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.TrimSpace(answer.Text))
	if len(answer.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTableLayout(tableLayout{
			Title:    "Sources",
			Headers:  []string{"Start", "End", "Text"},
			Rows:     passageRows(answer.Citations),
			Aligns:   []columnAlignment{alignRight, alignRight, alignLeft},
			MaxWidth: 80,
		}))
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "\nSession: %s\n", answer.SessionID)
	return nil
}

func passageRows(passages []agents.Passage) [][]string {
	rows := make([][]string, 0, len(passages))
	for _, p := range passages {
		rows = append(rows, []string{formatTimestamp(p.Start), formatTimestamp(p.End), strings.TrimSpace(p.Text)})
	}
	return rows
}

// formatTimestamp renders seconds as m:ss or h:mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
