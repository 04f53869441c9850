package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"budgetwatch/internal/report"
	"budgetwatch/internal/service"
)

// Report evaluates the selected budgets and prints their variance, alerts and upcoming obligations.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	ids, err := a.budgetIDs(opts.BudgetID)
	if err != nil {
		return err
	}

	rt, err := a.open(ctx, nil, opts.Persist)
	if err != nil {
		return err
	}
	defer rt.close()

	results := make([]service.Result, 0, len(ids))
	for _, id := range ids {
		res, err := rt.svc.Evaluate(ctx, service.Request{
			BudgetID: id,
			OwnerID:  opts.OwnerID,
			AsOf:     opts.AsOf,
			DryRun:   !opts.Persist,
		})
		if err != nil {
			return fmt.Errorf("evaluate budget %s: %w", id, err)
		}
		results = append(results, res)
	}

	if opts.JSON {
		return writeJSON(a.Out, results)
	}
	for _, res := range results {
		a.renderResult(a.Out, res)
	}
	return nil
}

func (a *App) renderResult(w io.Writer, res service.Result) {
	b := res.Budget
	fmt.Fprintf(w, "\n%s  %s  %s → %s  (as of %s)\n",
		headerStyle.Render(b.Name),
		mutedStyle.Render(b.ID),
		b.PeriodStart.UTC().Format("2006-01-02"),
		b.PeriodEnd.UTC().Format("2006-01-02"),
		res.AsOf.UTC().Format("2006-01-02 15:04"),
	)

	fmt.Fprint(w, comparisonTable(res.Comparisons, a.Config.Export.MaxCategories).render())
	fmt.Fprint(w, summaryBlock(res.Summary))

	if len(res.Alerts) > 0 {
		fmt.Fprint(w, alertTable("Alerts this period", res.Alerts).render())
	}
	if len(res.Upcoming) > 0 {
		fmt.Fprint(w, projectionTable("Upcoming obligations", res.Upcoming).render())
	}
	if len(res.Issues) > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  %d record(s) skipped:", len(res.Issues))))
		for _, issue := range res.Issues {
			fmt.Fprintf(w, "    %s\n", sanitizeInline(issue.String()))
		}
	}
}

func summaryBlock(s report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Budgeted %s  Spent %s  Remaining %s  Used %s\n",
		formatMoney(s.TotalBudgeted),
		formatMoney(s.TotalActual),
		formatMoney(s.Remaining),
		formatPct(s.UtilisationPct),
	)
	if s.UnallocatedCount > 0 {
		fmt.Fprintf(&b, "  %s\n", warnStyle.Render(fmt.Sprintf("%d unallocated categor%s with spend", s.UnallocatedCount, plural(s.UnallocatedCount, "y", "ies"))))
	}
	if len(s.RecurringByCurrency) > 0 {
		currencies := make([]string, 0, len(s.RecurringByCurrency))
		for c := range s.RecurringByCurrency {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)
		parts := make([]string, 0, len(currencies))
		for _, c := range currencies {
			r := s.RecurringByCurrency[c]
			parts = append(parts, fmt.Sprintf("%s %s/mo (%s/yr)", formatMoney(r.Monthly), c, formatMoney(r.Yearly)))
		}
		fmt.Fprintf(&b, "  Recurring: %s\n", strings.Join(parts, ", "))
		fmt.Fprintf(&b, "  Net recurring: %s/mo\n", formatMoney(s.NetRecurring()))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Upcoming prints obligations due within the horizon.
func (a *App) Upcoming(ctx context.Context, opts UpcomingOptions) error {
	rt, err := a.open(ctx, nil, false)
	if err != nil {
		return err
	}
	defer rt.close()

	owner := opts.OwnerID
	if owner == "" {
		owner = a.Config.Engine.OwnerID
	}
	horizon := a.Config.ResolveHorizon(opts.Horizon)

	upcoming, issues, err := rt.svc.Upcoming(ctx, owner, opts.AsOf, horizon, opts.Limit)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeJSON(a.Out, map[string]any{"upcoming": upcoming, "issues": issues})
	}
	if len(upcoming) == 0 {
		fmt.Fprintf(a.Out, "no obligations due in the next %d days\n", horizon)
	} else {
		fmt.Fprint(a.Out, projectionTable(fmt.Sprintf("Due in the next %d days", horizon), upcoming).render())
	}
	for _, issue := range issues {
		fmt.Fprintf(a.Out, "  skipped %s\n", sanitizeInline(issue.String()))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
