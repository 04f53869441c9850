package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"budgetwatch/internal/service"
	"budgetwatch/internal/variance"
)

var (
	barGood    = drawing.ColorFromHex("879A39")
	barWarning = drawing.ColorFromHex("DA702C")
	barOver    = drawing.ColorFromHex("D14D41")
)

// Export renders a budget's category comparison as CSV and/or a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	ids, err := a.budgetIDs(opts.BudgetID)
	if err != nil {
		return err
	}
	if len(ids) > 1 {
		return fmt.Errorf("export needs a single budget, %d configured: pass --budget", len(ids))
	}

	maxCategories := opts.MaxCategories
	if maxCategories <= 0 {
		maxCategories = a.Config.Export.MaxCategories
	}

	rt, err := a.open(ctx, nil, false)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.svc.Evaluate(ctx, service.Request{BudgetID: ids[0], AsOf: opts.AsOf, DryRun: true})
	if err != nil {
		return err
	}
	if len(res.Comparisons) == 0 {
		a.Logger.Info().Str("budget_id", ids[0]).Msg("no categories to export")
		return nil
	}

	a.Logger.Info().Int("categories", len(res.Comparisons)).Str("budget_id", ids[0]).Msg("exporting budget comparison")

	if opts.CSVPath != "" {
		if err := writeComparisonsCSV(opts.CSVPath, res.Comparisons); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s (%s)", res.Budget.Name, res.Budget.PeriodKey())
		if err := writeComparisonsPNG(opts.PNGPath, title, topCategories(res.Comparisons, maxCategories)); err != nil {
			return err
		}
	}

	return nil
}

// topCategories keeps the first max comparisons, which Compare orders by spend.
func topCategories(rows []variance.ComparisonResult, max int) []variance.ComparisonResult {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	return rows[:max]
}

func writeComparisonsCSV(path string, rows []variance.ComparisonResult) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"category", "budgeted", "actual", "difference", "percentage", "status", "allocated"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range rows {
		record := []string{
			c.Category,
			c.Budgeted.String(),
			c.Actual.String(),
			c.Difference.String(),
			c.Percentage.StringFixed(2),
			string(c.Status),
			strconv.FormatBool(c.Allocated),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeComparisonsPNG(path, title string, rows []variance.ComparisonResult) error {
	if len(rows) == 0 {
		return errors.New("no categories to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	top := decimal.NewFromInt(100)
	bars := make([]chart.Value, 0, len(rows))
	for _, c := range rows {
		pct := c.Percentage
		if !c.Allocated {
			// Unallocated spend has no percentage; chart it as fully over.
			pct = decimal.NewFromInt(100)
		}
		if pct.GreaterThan(top) {
			top = pct
		}
		color := barColor(c.Status)
		bars = append(bars, chart.Value{
			Label: c.Category,
			Value: pct.InexactFloat64(),
			Style: chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1},
		})
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      1280,
		Height:     720,
		BarWidth:   48,
		Background: chart.Style{Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20}},
		YAxis: chart.YAxis{
			Name: "Used (%)",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: top.Mul(decimal.RequireFromString("1.1")).InexactFloat64(),
			},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f%%")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func barColor(s variance.Status) drawing.Color {
	switch s {
	case variance.StatusOver:
		return barOver
	case variance.StatusWarning:
		return barWarning
	default:
		return barGood
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
