package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"sentinel/internal/agents"
	"sentinel/internal/language"
	"sentinel/internal/pipeline"
	"sentinel/internal/unit"
)

const detailWidth = 60

// renderReport prints one table row per unit followed by the headline
// findings. It works on archived reports too, whose results are generic JSON.
func renderReport(w io.Writer, report pipeline.Report, colorize bool) {
	rows := make([][]string, 0, len(report.Units))
	for _, entry := range report.Units {
		duration := ""
		if entry.Output != nil {
			duration = entry.Output.Metadata.Duration().Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			unitLabel(entry.Unit),
			colorizeStatus(entry.Status, colorize),
			duration,
			entryDetail(entry),
		})
	}
	fmt.Fprintln(w, renderTableLayout(tableLayout{
		Title:    "Analysis " + report.MediaID,
		Headers:  []string{"Unit", "Status", "Duration", "Detail"},
		Rows:     rows,
		Aligns:   []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		MaxWidth: detailWidth,
	}))
	if origin := originLine(report.Origin); origin != "" {
		fmt.Fprintf(w, "Source: %s\n", origin)
	}
	if !report.CompletedAt.IsZero() {
		fmt.Fprintf(w, "Completed: %s\n", report.CompletedAt.Local().Format(time.RFC1123))
	}
}

func originLine(origin *pipeline.Origin) string {
	if origin == nil || origin.Location == "" {
		return ""
	}
	line := origin.Location
	if origin.Kind != "" && origin.Kind != "local" {
		line = fmt.Sprintf("%s (%s)", line, origin.Kind)
	}
	if origin.Title != "" {
		line = fmt.Sprintf("%q %s", origin.Title, line)
	}
	return line
}

func entryDetail(entry pipeline.ReportEntry) string {
	switch entry.Status {
	case pipeline.StatusSkipped:
		return entry.SkipReason
	case pipeline.StatusFailed:
		if entry.Output != nil {
			return entry.Output.Error
		}
		return ""
	case pipeline.StatusSucceeded:
		return resultSummary(entry.Unit, entry.Output)
	default:
		return ""
	}
}

func resultSummary(name unit.Name, out *unit.Output) string {
	switch name {
	case unit.Audio:
		t, err := unit.DecodeResult[agents.Transcript](out)
		if err != nil {
			return ""
		}
		summary := fmt.Sprintf("%d chunks, %.0fs", len(t.Chunks), t.DurationSeconds)
		if t.Language != "" {
			summary += ", " + language.DisplayName(t.Language)
		}
		return summary
	case unit.Emotion:
		e, err := unit.DecodeResult[agents.Emotion](out)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%s (%d spikes)", e.Dominant, len(e.Spikes))
	case unit.Tagging:
		tags, err := unit.DecodeResult[agents.Tags](out)
		if err != nil {
			return ""
		}
		return joinLimited(tags.Topics, 4)
	case unit.Video:
		v, err := unit.DecodeResult[agents.Vision](out)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%d scenes: %s", len(v.SceneSummaries), joinLimited(v.VisualTags, 4))
	case unit.Reasoning:
		r, err := unit.DecodeResult[agents.Reasoning](out)
		if err != nil {
			return ""
		}
		return r.Summary
	case unit.Risk:
		r, err := unit.DecodeResult[agents.Risk](out)
		if err != nil {
			return ""
		}
		if len(r.Flags) == 0 {
			return r.Level
		}
		categories := make([]string, 0, len(r.Flags))
		for _, flag := range r.Flags {
			categories = append(categories, flag.Category)
		}
		return fmt.Sprintf("%s: %s", r.Level, joinLimited(categories, 4))
	default:
		return ""
	}
}

func joinLimited(values []string, limit int) string {
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:limit], ", "), len(values)-limit)
}
