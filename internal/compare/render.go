package compare

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	improvedColor  = lipgloss.Color("2")
	regressedColor = lipgloss.Color("1")
	frameColor     = lipgloss.Color("8")
)

// Styles bundles the lipgloss styles comparison output is drawn with.
type Styles struct {
	Header   lipgloss.Style
	Frame    lipgloss.Style
	Positive lipgloss.Style
	Negative lipgloss.Style
}

// NewStyles returns the comparison output styles. With colour disabled
// every style renders its input untouched.
func NewStyles(colour bool) Styles {
	if !colour {
		plain := lipgloss.NewStyle()
		return Styles{Header: plain, Frame: plain, Positive: plain, Negative: plain}
	}
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true),
		Frame:    lipgloss.NewStyle().Foreground(frameColor),
		Positive: lipgloss.NewStyle().Foreground(improvedColor),
		Negative: lipgloss.NewStyle().Foreground(regressedColor),
	}
}

var valueHeaders = []string{"Coverage %", "Hit[Δ]", "Total[Δ]", "Coverage Δ %"}

// Renderer writes comparison results as aligned tables or CSV lines.
type Renderer struct {
	Table            bool
	IncludeUnchanged bool
	Styles           Styles
}

// WriteChanges writes one dataset's per-file rows under a "# name diff"
// heading. When every row is filtered out nothing is written at all.
func (r Renderer) WriteChanges(w io.Writer, name string, deltas []FileDelta) error {
	rows := make([][]string, 0, len(deltas))
	for _, d := range deltas {
		if !r.IncludeUnchanged && !d.Different() {
			continue
		}
		rows = append(rows, r.row(d))
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# %s diff\n", name); err != nil {
		return err
	}
	return r.write(w, append([]string{"File Name"}, valueHeaders...), rows)
}

// WriteSummary writes aggregated per-category rows under a "# Summary"
// heading.
func (r Renderer) WriteSummary(w io.Writer, deltas []FileDelta) error {
	rows := make([][]string, 0, len(deltas))
	for _, d := range deltas {
		rows = append(rows, r.row(d))
	}
	if _, err := fmt.Fprintln(w, "# Summary"); err != nil {
		return err
	}
	return r.write(w, append([]string{"Type"}, valueHeaders...), rows)
}

func (r Renderer) write(w io.Writer, headers []string, rows [][]string) error {
	if r.Table {
		return r.writeGrid(w, headers, rows)
	}
	return r.writeCSV(w, headers, rows)
}

func (r Renderer) row(d FileDelta) []string {
	return []string{
		d.Name,
		percent(d.OtherCoverage()),
		strconv.Itoa(d.OtherCovered) + r.intDelta(d.CoveredDelta()),
		strconv.Itoa(d.OtherTotal) + r.intDelta(d.TotalDelta()),
		r.percentDelta(d.CoverageDelta()),
	}
}

// percent renders a plain percentage. Zero means nothing was measured
// and shows as a placeholder.
func percent(v float64) string {
	if v == 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f%%", v)
}

func (r Renderer) intDelta(v int) string {
	switch {
	case v > 0:
		return r.Styles.Positive.Render(fmt.Sprintf("+[%d]", v))
	case v < 0:
		return r.Styles.Negative.Render(fmt.Sprintf("[%d]", v))
	default:
		return "[0]"
	}
}

func (r Renderer) percentDelta(v float64) string {
	switch {
	case v > 0:
		return r.Styles.Positive.Render(fmt.Sprintf("+%.2f%%", v))
	case v < 0:
		return r.Styles.Negative.Render(fmt.Sprintf("%.2f%%", v))
	default:
		return fmt.Sprintf("%.2f%%", v)
	}
}

func (r Renderer) writeCSV(w io.Writer, headers []string, rows [][]string) error {
	var sb strings.Builder
	sb.WriteString(strings.Join(headers, ","))
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// writeGrid renders an aligned grid. Widths are measured with lipgloss
// so coloured cells line up with plain ones.
func (r Renderer) writeGrid(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	// Column padding counts toward the lipgloss width.
	for i := range widths {
		widths[i] += 2
	}

	headerStyle := r.Styles.Header.Copy().Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(r.Styles.Frame.Render("|"))
		}
	}
	sb.WriteString("\n")

	total := len(headers) - 1
	for _, cw := range widths {
		total += cw
	}
	sb.WriteString(r.Styles.Frame.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(r.Styles.Frame.Render("|"))
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
