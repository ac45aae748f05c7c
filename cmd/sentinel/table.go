package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableLayout describes one rendered table. Rows shorter than Headers are
// padded with empty cells.
type tableLayout struct {
	Title   string
	Headers []string
	Rows    [][]string
	Aligns  []columnAlignment
	// MaxWidth caps the width of every left-aligned column; zero disables it.
	MaxWidth int
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return renderTableLayout(tableLayout{Headers: headers, Rows: rows, Aligns: aligns})
}

func renderTableLayout(layout tableLayout) string {
	columns := len(layout.Headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if layout.Title != "" {
		tw.SetTitle(layout.Title)
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = layout.Headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range layout.Rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if i < len(layout.Aligns) && layout.Aligns[i] == alignRight {
			cfg.Align = text.AlignRight
		} else if layout.MaxWidth > 0 {
			cfg.WidthMax = layout.MaxWidth
		}
		columnConfigs = append(columnConfigs, cfg)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
