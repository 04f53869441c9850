package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorAccent = lipgloss.Color("#3AA99F")
	colorText   = lipgloss.Color("#FFFCF0")
	colorGreen  = lipgloss.Color("#879A39")
	colorOrange = lipgloss.Color("#DA702C")
	colorRed    = lipgloss.Color("#D14D41")
	colorMuted  = lipgloss.Color("#6F6E69")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorBorder)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	goodStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorOrange)
	badStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// table is a bordered text table. The first column is left-aligned, the rest right-aligned.
type table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Styles optionally colours individual cells; nil entries fall back to valueStyle.
	Styles [][]*lipgloss.Style
}

func (t table) render() string {
	numCols := len(t.Headers)
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < numCols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")

	b.WriteString(dimStyle.Render("│"))
	for i, h := range t.Headers {
		b.WriteString(headerStyle.Render(pad(h, widths[i], true)))
		b.WriteString(dimStyle.Render("│"))
	}
	b.WriteString("\n")
	rule("├", "┼", "┤")

	for r, row := range t.Rows {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			style := valueStyle
			if r < len(t.Styles) && i < len(t.Styles[r]) && t.Styles[r][i] != nil {
				style = *t.Styles[r][i]
			}
			b.WriteString(style.Render(pad(cell, widths[i], i == 0)))
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
	}

	rule("╰", "┴", "╯")
	return b.String()
}

func pad(cell string, width int, left bool) string {
	gap := width - lipgloss.Width(cell)
	if gap < 0 {
		gap = 0
	}
	if left {
		return " " + cell + strings.Repeat(" ", gap) + " "
	}
	return " " + strings.Repeat(" ", gap) + cell + " "
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatPct(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

func varianceStyle(s variance.Status) *lipgloss.Style {
	switch s {
	case variance.StatusOver:
		return &badStyle
	case variance.StatusWarning:
		return &warnStyle
	default:
		return &goodStyle
	}
}

func severityStyle(s alerting.Severity) *lipgloss.Style {
	switch s {
	case alerting.SeverityCritical:
		return &badStyle
	case alerting.SeverityWarning:
		return &warnStyle
	default:
		return &valueStyle
	}
}

func obligationStyle(s recurrence.Status) *lipgloss.Style {
	switch s {
	case recurrence.StatusOverdue:
		return &badStyle
	case recurrence.StatusDueSoon:
		return &warnStyle
	case recurrence.StatusPaused:
		return &mutedStyle
	default:
		return &valueStyle
	}
}

func comparisonTable(rows []variance.ComparisonResult, max int) table {
	t := table{
		Title:   "Budget vs actual",
		Headers: []string{"Category", "Budgeted", "Actual", "Difference", "Used", "Status"},
	}
	for i, c := range rows {
		if max > 0 && i >= max {
			t.Rows = append(t.Rows, []string{fmt.Sprintf("… %d more", len(rows)-max), "", "", "", "", ""})
			break
		}
		status := string(c.Status)
		if !c.Allocated {
			status += " (unallocated)"
		}
		t.Rows = append(t.Rows, []string{
			c.Category,
			formatMoney(c.Budgeted),
			formatMoney(c.Actual),
			formatMoney(c.Difference),
			formatPct(c.Percentage),
			status,
		})
		t.Styles = append(t.Styles, []*lipgloss.Style{nil, nil, nil, nil, nil, varianceStyle(c.Status)})
	}
	return t
}

func projectionTable(title string, rows []recurrence.Projection) table {
	t := table{
		Title:   title,
		Headers: []string{"Name", "Kind", "Amount", "Frequency", "Next", "Days", "Then", "Due in window", "Monthly", "Status"},
	}
	for _, p := range rows {
		o := p.Obligation
		freq := string(o.Frequency)
		if o.Interval > 1 {
			freq = fmt.Sprintf("every %d × %s", o.Interval, o.Frequency)
		}
		t.Rows = append(t.Rows, []string{
			o.Name,
			string(o.Kind),
			strings.TrimSpace(formatMoney(o.Amount) + " " + strings.ToUpper(o.Currency)),
			freq,
			o.NextOccurrence.UTC().Format("2006-01-02"),
			fmt.Sprintf("%d", p.DaysUntil),
			p.Following.UTC().Format("2006-01-02"),
			fmt.Sprintf("%d", len(p.Occurrences)),
			formatMoney(p.MonthlyEquivalent),
			string(p.Status),
		})
		t.Styles = append(t.Styles, []*lipgloss.Style{nil, nil, nil, nil, nil, nil, nil, nil, nil, obligationStyle(p.Status)})
	}
	return t
}

func alertTable(title string, rows []alerting.Event) table {
	t := table{
		Title:   title,
		Headers: []string{"Raised (UTC)", "Budget", "Category", "Threshold", "Used", "Severity", "Status", "ID"},
	}
	for _, evt := range rows {
		t.Rows = append(t.Rows, []string{
			evt.CreatedAt.UTC().Format("2006-01-02 15:04"),
			evt.BudgetID,
			evt.Category,
			fmt.Sprintf("%d%%", evt.Threshold),
			formatPct(evt.Percentage),
			string(evt.Severity),
			string(evt.Status),
			evt.ID,
		})
		t.Styles = append(t.Styles, []*lipgloss.Style{nil, nil, nil, nil, nil, severityStyle(evt.Severity), nil, &mutedStyle})
	}
	return t
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
