package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	tableConfig = tablewriter.Config{
		Row: tw.CellConfig{
			Formatting:   tw.CellFormatting{AutoWrap: tw.WrapNormal},
			ColMaxWidths: tw.CellWidth{Global: 48},
		},
	}

	// plainTint keeps borders uncolored.
	plainTint = renderer.Tint{
		BG: renderer.Colors{color.Reset},
		FG: renderer.Colors{color.Reset},
	}
)

func newTable(w io.Writer) *tablewriter.Table {
	if color.NoColor {
		return tablewriter.NewTable(w, tablewriter.WithConfig(tableConfig))
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tableConfig),
		tablewriter.WithRenderer(renderer.NewColorized(renderer.ColorizedConfig{
			Header: renderer.Tint{FG: renderer.Colors{color.Bold}},
			Column: renderer.Tint{
				Columns: []renderer.Tint{{FG: renderer.Colors{color.Bold, color.FgCyan}}},
			},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.On},
			},
			Symbols:   tw.NewSymbols(tw.StyleRounded),
			Border:    plainTint,
			Separator: plainTint,
		})),
	)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := newTable(w)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	table.Header(cells...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func formatTokens(n int) string {
	return humanize.Comma(int64(n))
}

func formatCost(usd float64) string {
	if usd == 0 {
		return "free"
	}
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return "$" + humanize.CommafWithDigits(usd, 2)
}

func joinModels(names []string) string {
	if len(names) == 0 {
		return "no models"
	}
	return strings.Join(names, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
