package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/reviewloop/reviewloop/model"
)

// renderLedgerTable lays out ledger entries with the amount column right aligned.
func renderLedgerTable(entries []model.LedgerEntry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Created", "Kind", "Amount", "Description", "Reference"})

	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Kind),
			formatAmount(e.Amount),
			e.Description,
			e.Reference,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatAmount(amount int64) string {
	if amount > 0 {
		return "+" + strconv.FormatInt(amount, 10)
	}
	return strconv.FormatInt(amount, 10)
}
