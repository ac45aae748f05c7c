package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sentinel/internal/agents"
	"sentinel/internal/preflight"
	"sentinel/internal/unit"
	"sentinel/internal/workflow"
)

type doctorReport struct {
	Checks []preflight.Result `json:"checks"`
	Units  []unit.Health      `json:"units,omitempty"`
	Passed bool               `json:"passed"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools and model endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := doctorReport{}
			if local {
				report.Checks = preflight.RunLocal(cmd.Context(), cfg)
			} else {
				report.Checks = preflight.RunAll(cmd.Context(), cfg)
				reg, err := agents.NewRegistry(workflow.NewDependencies(cfg))
				if err != nil {
					return err
				}
				report.Units = agents.CheckHealth(cmd.Context(), reg)
			}
			failed := preflight.Failed(report.Checks)
			report.Passed = len(failed) == 0

			if ctx.JSONMode() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printDoctorReport(cmd, report)
			}
			if !report.Passed {
				names := make([]string, 0, len(failed))
				for _, res := range failed {
					names = append(names, res.Name)
				}
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Skip network checks (index, LLM endpoints, unit health)")
	return cmd
}

func printDoctorReport(cmd *cobra.Command, report doctorReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, res := range report.Checks {
		kind := statusOK
		if !res.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(res.Name, kind, res.Detail, colorize))
	}

	if len(report.Units) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Units", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, h := range report.Units {
			kind, detail := statusOK, "ready"
			if !h.Ready {
				// Unit health is advisory; a failing unit is contained at run time.
				kind, detail = statusWarn, h.Detail
			}
			fmt.Fprintln(out, renderStatusLine(unitLabel(h.Name), kind, detail, colorize))
		}
	}
}
