package iostreams

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TablePrinter renders tabular data to IOStreams.Out. On a colour TTY it
// draws light box lines with bold headers; otherwise it writes borderless
// columns suitable for piping.
type TablePrinter struct {
	ios     *IOStreams
	headers []string
	rows    [][]string
}

// NewTablePrinter creates a new table printer with the given column headers.
func (s *IOStreams) NewTablePrinter(headers ...string) *TablePrinter {
	return &TablePrinter{ios: s, headers: headers}
}

// AddRow adds a data row. Missing columns render empty.
func (tp *TablePrinter) AddRow(cols ...string) {
	tp.rows = append(tp.rows, cols)
}

// Len returns the number of data rows.
func (tp *TablePrinter) Len() int { return len(tp.rows) }

// Render writes the table.
func (tp *TablePrinter) Render() error {
	if len(tp.headers) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(tp.ios.Out)
	t.AppendHeader(toRow(tp.headers, len(tp.headers)))
	for _, r := range tp.rows {
		t.AppendRow(toRow(r, len(tp.headers)))
	}

	if tp.ios.IsOutputTTY() && tp.ios.ColorEnabled() {
		style := table.StyleLight
		style.Options.DrawBorder = false
		style.Color.Header = text.Colors{text.Bold}
		t.SetStyle(style)
	} else {
		style := table.StyleDefault
		style.Options = table.OptionsNoBordersAndSeparators
		style.Box.PaddingLeft = ""
		style.Box.PaddingRight = "  "
		style.Format.Header = text.FormatUpper
		t.SetStyle(style)
	}
	t.Render()
	return nil
}

func toRow(cols []string, n int) table.Row {
	row := make(table.Row, n)
	for i := range row {
		if i < len(cols) {
			row[i] = cols[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
