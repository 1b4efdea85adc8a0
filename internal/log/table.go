package log

import (
	"fmt"
	"time"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderSummary(s types.RunSummary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	title := "phockup summary"
	if s.DryRun {
		title += " (dry run)"
	}
	if s.Interrupted {
		title += " (interrupted)"
	}
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Result", "Files"})

	rows := []struct {
		label string
		value int64
	}{
		{"Processed", s.Processed},
		{"Copied", s.Copied},
		{"Moved", s.Moved},
		{"Linked", s.Linked},
		{"Duplicates", s.Duplicates},
		{"Deleted duplicates", s.Deleted},
		{"Unknown date", s.Unknown},
		{"Filtered", s.Filtered},
		{"Failed", s.Failed},
	}
	for _, r := range rows {
		tw.AppendRow(table.Row{r.label, r.value})
	}
	tw.AppendFooter(table.Row{"Duration", s.Duration.Round(time.Millisecond).String()})
	tw.AppendFooter(table.Row{"Files/second", fmt.Sprintf("%.2f", s.FilesPerSecond())})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
