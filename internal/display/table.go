package display

import (
	"strings"

	"golang.org/x/term"
)

// Table renders rows with a simple box border, truncating cells so the
// table fits the terminal.
type Table struct {
	colors  *ColorSystem
	headers []string
	rows    [][]string
	width   int
}

// NewTable creates an empty table sized to the terminal
func NewTable(colors *ColorSystem) *Table {
	return &Table{
		colors: colors,
		width:  terminalWidth(),
	}
}

// SetHeaders sets the header row
func (t *Table) SetHeaders(headers []string) {
	t.headers = headers
}

// AddRow appends a data row. Short rows are padded to the header width.
func (t *Table) AddRow(row []string) {
	if len(row) < len(t.headers) {
		padded := make([]string, len(t.headers))
		copy(padded, row)
		row = padded
	}
	t.rows = append(t.rows, row)
}

// Render returns the bordered table as a string
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	widths := t.columnWidths()

	var sb strings.Builder
	t.writeBorder(&sb, widths, "┌", "┬", "┐")
	t.writeRow(&sb, t.headers, widths, true)
	t.writeBorder(&sb, widths, "├", "┼", "┤")
	for _, row := range t.rows {
		t.writeRow(&sb, row, widths, false)
	}
	t.writeBorder(&sb, widths, "└", "┴", "┘")

	return sb.String()
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len([]rune(header))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	// Shrink the widest columns until the table fits the terminal
	for {
		total := 1
		for _, w := range widths {
			total += w + 3
		}
		if total <= t.width {
			break
		}

		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 8 {
			break
		}
		widths[widest]--
	}

	return widths
}

func (t *Table) writeBorder(sb *strings.Builder, widths []int, left, mid, right string) {
	sb.WriteString(left)
	for i, w := range widths {
		sb.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			sb.WriteString(mid)
		}
	}
	sb.WriteString(right)
	sb.WriteString("\n")
}

func (t *Table) writeRow(sb *strings.Builder, row []string, widths []int, header bool) {
	sb.WriteString("│")
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = truncateCell(row[i], w)
		}
		padded := cell + strings.Repeat(" ", w-len([]rune(cell)))
		if header && t.colors != nil {
			padded = t.colors.Colorize(padded, t.colors.Theme().Highlight)
		}
		sb.WriteString(" " + padded + " │")
	}
	sb.WriteString("\n")
}

func truncateCell(cell string, width int) string {
	runes := []rune(cell)
	if len(runes) <= width {
		return cell
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// terminalWidth returns the terminal width, defaulting to 120 columns when
// stdout is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(0)
	if err != nil || width <= 0 {
		return 120
	}
	return width
}
