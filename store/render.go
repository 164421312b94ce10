package store

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Render prints r as a text table.
func (r Rows) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(r.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(r.Values)
	table.Render()
}
