package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/use-agent/maillage/models"
)

var actionColors = map[models.Action]*color.Color{
	models.ActionAddLink:        color.New(color.FgGreen),
	models.ActionOptimizeAnchor: color.New(color.FgYellow),
}

// PrintTable renders records as a borderless terminal table. Action cells
// are colored when useColors is set.
func PrintTable(w io.Writer, records []models.OpportunityRecord, labels Labels, useColors bool) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.Off,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := labels.Row(rec)
		if c, ok := actionColors[rec.Action]; ok && useColors {
			c.EnableColor()
			row[3] = c.Sprint(row[3])
		}
		rows = append(rows, row)
	}

	table.Header(labels.Header[:])
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("report: table rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("report: render table: %w", err)
	}
	return nil
}
