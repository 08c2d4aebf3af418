package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"kctvfetch/internal/history"
	"kctvfetch/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
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
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSummary(summary pipeline.Summary) string {
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		rows = append(rows, []string{
			r.Date.String(),
			string(r.Status),
			sizeOrDash(r.Bytes, r.Status),
			countOrDash(r.Attempts),
			joinOrDash(r.Applied),
			resultNote(r),
		})
	}
	body := renderTable(
		[]string{"Date", "Status", "Size", "Attempts", "Stages", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)

	counts := summary.Counts()
	footer := fmt.Sprintf("%d delivered, %d existing, %d not found, %d incomplete, %d failed; %s in %s",
		counts[history.StatusDelivered],
		counts[history.StatusExisting],
		counts[history.StatusNotFound],
		counts[history.StatusIncomplete],
		counts[history.StatusFailed],
		humanize.IBytes(uint64(summary.Bytes())),
		summary.Elapsed().Round(time.Second),
	)
	if summary.Aborted {
		footer += " (aborted)"
	}
	return body + "\n" + footer
}

func renderHistory(records []history.Record) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Date.String(),
			string(rec.Status),
			sizeOrDash(rec.Bytes, rec.Status),
			countOrDash(rec.Attempts),
			countOrDash(len(rec.Offsets)),
			rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
			truncate(firstNonEmpty(rec.Error, rec.FilePath), 60),
		})
	}
	return renderTable(
		[]string{"Date", "Status", "Size", "Attempts", "Clocks", "Updated", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func resultNote(r pipeline.DateResult) string {
	switch {
	case r.Err != nil:
		return truncate(r.Err.Error(), 60)
	case len(r.Failed) > 0:
		return "failed stages: " + strings.Join(r.Failed, ",")
	case len(r.Offsets) > 0:
		return fmt.Sprintf("%d clocks", len(r.Offsets))
	default:
		return ""
	}
}

func sizeOrDash(bytes int64, status history.Status) string {
	if bytes <= 0 || !status.Succeeded() {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func countOrDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
