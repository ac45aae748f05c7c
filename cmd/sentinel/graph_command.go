package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sentinel/internal/agents"
	"sentinel/internal/unit"
	"sentinel/internal/workflow"
)

type graphNode struct {
	Order         int         `json:"order"`
	Unit          unit.Name   `json:"unit"`
	Prerequisites []unit.Name `json:"prerequisites"`
	Dependents    []unit.Name `json:"dependents"`
	Enabled       bool        `json:"enabled"`
}

func newGraphCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the unit dependency graph in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := agents.NewRegistry(agents.Dependencies{})
			if err != nil {
				return err
			}
			g, err := reg.Graph()
			if err != nil {
				return err
			}
			order, err := g.Linearize()
			if err != nil {
				return err
			}

			enabled := workflow.EnabledUnits(cfg)
			nodes := make([]graphNode, 0, len(order))
			for i, name := range order {
				on, toggled := enabled[name]
				nodes = append(nodes, graphNode{
					Order:         i + 1,
					Unit:          name,
					Prerequisites: nonNil(g.Prerequisites(name)),
					Dependents:    nonNil(g.Dependents(name)),
					Enabled:       !toggled || on,
				})
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, nodes)
			}

			rows := make([][]string, 0, len(nodes))
			for _, node := range nodes {
				rows = append(rows, []string{
					strconv.Itoa(node.Order),
					unitLabel(node.Unit),
					joinNames(node.Prerequisites),
					joinNames(node.Dependents),
					yesNo(node.Enabled),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Unit", "Requires", "Feeds", "Enabled"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func nonNil(names []unit.Name) []unit.Name {
	if names == nil {
		return []unit.Name{}
	}
	return names
}

func joinNames(names []unit.Name) string {
	if len(names) == 0 {
		return "-"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
