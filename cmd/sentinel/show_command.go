package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sentinel/internal/config"
	"sentinel/internal/index"
	"sentinel/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <media-id>",
		Short: "Display an archived analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID := strings.TrimSpace(args[0])
			return ctx.withIndex(func(_ *config.Config, store *index.Store) error {
				report, err := store.LoadReport(cmd.Context(), mediaID)
				if err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("no archived analysis for %s (see `sentinel list`)", mediaID)
					}
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				renderReport(out, report, shouldColorize(out))
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withIndex(func(_ *config.Config, store *index.Store) error {
				items, err := store.ListAnalyses(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if items == nil {
						items = []index.AnalysisSummary{}
					}
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No archived analyses")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.MediaID,
						humanize.Time(item.CompletedAt),
						strconv.Itoa(item.Succeeded),
						strconv.Itoa(item.Failed),
						strconv.Itoa(item.Skipped),
						item.SourceKind,
						item.SourcePath,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Media ID", "Completed", "OK", "Failed", "Skipped", "Kind", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum analyses to list")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <media-id>",
		Short: "Remove the archived analysis, transcript index and chat history for a media id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID := strings.TrimSpace(args[0])
			return ctx.withIndex(func(_ *config.Config, store *index.Store) error {
				chunks, err := store.ChunkCount(cmd.Context(), mediaID)
				if err != nil {
					return err
				}
				_, err = store.LoadReport(cmd.Context(), mediaID)
				archived := err == nil
				if err != nil && !errors.Is(err, services.ErrNotFound) {
					return err
				}
				if !archived && chunks == 0 {
					return fmt.Errorf("nothing stored for %s (see `sentinel list`)", mediaID)
				}
				if err := store.DeleteMedia(cmd.Context(), mediaID); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"media_id": mediaID,
						"archived": archived,
						"chunks":   chunks,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d transcript chunks)\n", mediaID, chunks)
				return nil
			})
		},
	}
}
