package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sentinel/internal/config"
	"sentinel/internal/index"
	"sentinel/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage per-media staging workspaces",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			dirs, err := staging.Inventory(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Bytes
			}
			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.Entry{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					dir.MediaID,
					humanize.Time(dir.Modified),
					humanize.Bytes(uint64(max(dir.Bytes, 0))),
					yesNo(dir.Locked),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Media ID", "Modified", "Size", "In use"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), humanize.Bytes(uint64(max(totalSize, 0))))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var orphans bool
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale or orphaned staging workspaces",
		Long: `Remove staging workspaces left behind by interrupted runs.

By default, removes workspaces older than workflow.staging_max_age_hours.
Use --orphans to instead remove every workspace whose media has no archived
report. Workspaces held by a running analysis are never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var result staging.Sweep
			label := "stale"
			if orphans {
				label = "orphaned"
				err = ctx.withIndex(func(cfg *config.Config, store *index.Store) error {
					archived, err := store.ArchivedMediaIDs(cmd.Context())
					if err != nil {
						return err
					}
					result = staging.RemoveUnarchived(cmd.Context(), cfg.Paths.StagingDir, archived, logger)
					return nil
				})
				if err != nil {
					return err
				}
			} else {
				hours := maxAgeHours
				if hours <= 0 {
					hours = cfg.Workflow.StagingMaxAgeHours
				}
				result = staging.RemoveStale(cmd.Context(), cfg.Paths.StagingDir, time.Duration(hours)*time.Hour, logger)
			}

			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result, label)
		},
	}

	cmd.Flags().BoolVar(&orphans, "orphans", false, "Remove workspaces whose media has no archived report")
	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", 0, "Age threshold (default: workflow.staging_max_age_hours)")

	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.Sweep, label string) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Failed) == 0 {
		fmt.Fprintf(out, "No %s directories to clean\n", label)
		return nil
	}
	if len(result.Failed) > 0 {
		fmt.Fprintf(out, "Removed %d %s directories, %d errors\n", len(result.Removed), label, len(result.Failed))
		for _, f := range result.Failed {
			fmt.Fprintf(out, "  Error: %s: %v\n", f.Path, f.Err)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d %s directories\n", len(result.Removed), label)
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.Sweep) error {
	errs := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		errs = append(errs, fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	return writeJSON(cmd, map[string]any{
		"removed": removed,
		"errors":  errs,
	})
}
