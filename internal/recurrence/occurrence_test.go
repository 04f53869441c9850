package recurrence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func obligation(id, name string, daysAhead int, active bool) Obligation {
	return Obligation{
		ID:             id,
		Name:           name,
		Kind:           KindSubscription,
		Amount:         decimal.NewFromInt(10),
		Currency:       "USD",
		Frequency:      Monthly,
		Interval:       1,
		NextOccurrence: asOf.AddDate(0, 0, daysAhead),
		IsActive:       active,
	}
}

func TestDaysUntilRoundsUp(t *testing.T) {
	assert.Equal(t, 2, DaysUntil(asOf.Add(48*time.Hour), asOf))
	assert.Equal(t, 2, DaysUntil(asOf.Add(36*time.Hour), asOf))
	assert.Equal(t, 0, DaysUntil(asOf, asOf))
	assert.Equal(t, 0, DaysUntil(asOf.Add(-12*time.Hour), asOf))
	assert.Equal(t, -3, DaysUntil(asOf.AddDate(0, 0, -3), asOf))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StatusOverdue, Classify(true, -1))
	assert.Equal(t, StatusDueSoon, Classify(true, 0))
	assert.Equal(t, StatusDueSoon, Classify(true, 3))
	assert.Equal(t, StatusActive, Classify(true, 4))
	assert.Equal(t, StatusPaused, Classify(false, -10))
	assert.Equal(t, StatusPaused, Classify(false, 2))
}

func TestProjectOneDueSoonAndPaused(t *testing.T) {
	p, err := ProjectOne(obligation("a", "Hosting", 2, true), asOf)
	require.NoError(t, err)
	assert.Equal(t, StatusDueSoon, p.Status)
	assert.Equal(t, 2, p.DaysUntil)

	p, err = ProjectOne(obligation("a", "Hosting", 2, false), asOf)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, p.Status)
}

func TestProjectYearlyScenario(t *testing.T) {
	o := obligation("y", "Domain", 40, true)
	o.Amount = decimal.NewFromInt(1200)
	o.Frequency = Yearly

	p, err := ProjectOne(o, asOf)
	require.NoError(t, err)
	assert.True(t, p.MonthlyEquivalent.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.YearlyEquivalent.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, StatusActive, p.Status)
}

func TestProjectSkipsMalformed(t *testing.T) {
	bad := obligation("bad", "Broken", 5, true)
	bad.Interval = 0
	negative := obligation("neg", "Negative", 5, true)
	negative.Amount = decimal.NewFromInt(-5)

	projections, issues := Project([]Obligation{
		obligation("ok", "Fine", 5, true),
		bad,
		negative,
	}, asOf)

	require.Len(t, projections, 1)
	assert.Equal(t, "ok", projections[0].Obligation.ID)
	require.Len(t, issues, 2)
	assert.Equal(t, "bad", issues[0].RecordID)
	assert.ErrorIs(t, issues[0].Err, ErrValidation)
	assert.Equal(t, "neg", issues[1].RecordID)
}

func TestUpcomingFiltersSortsAndTruncates(t *testing.T) {
	projections, issues := Project([]Obligation{
		obligation("1", "Zeta", 5, true),
		obligation("2", "alpha", 5, true),
		obligation("3", "Late", -1, true),
		obligation("4", "Paused", 1, false),
		obligation("5", "Far", 30, true),
		obligation("6", "Today", 0, true),
		obligation("7", "Alpha", 5, true),
	}, asOf)
	require.Empty(t, issues)

	got := Upcoming(projections, 14, 0)
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.Obligation.ID)
	}
	assert.Equal(t, []string{"6", "2", "7", "1"}, ids)

	got = Upcoming(projections, 14, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "6", got[0].Obligation.ID)

	got = Upcoming(projections, 30, 0)
	assert.Len(t, got, 5)
}

func TestAdvanceClampsMonthEnd(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), Advance(jan31, Monthly, 1))
	assert.Equal(t, time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC), Advance(jan31, Quarterly, 1))
	assert.Equal(t, time.Date(2027, 1, 31, 9, 0, 0, 0, time.UTC), Advance(jan31, Yearly, 1))
	assert.Equal(t, time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC), Advance(jan31, Biweekly, 1))
	assert.Equal(t, time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC), Advance(jan31, Weekly, 3))

	leap := time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2029, 2, 28, 0, 0, 0, 0, time.UTC), Advance(leap, Yearly, 1))
}

func TestOccurrencesDoNotDrift(t *testing.T) {
	o := obligation("m", "Rent", 0, true)
	o.NextOccurrence = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates, err := Occurrences(o, start, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, dates, 5)
	assert.Equal(t, 28, dates[1].Day())
	assert.Equal(t, 31, dates[2].Day())
	assert.Equal(t, 30, dates[3].Day())
	assert.Equal(t, 31, dates[4].Day())

	capped, err := Occurrences(o, start, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	assert.Len(t, capped, 3)

	o.Interval = 0
	_, err = Occurrences(o, start, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOccurrencesSkipPastDates(t *testing.T) {
	o := obligation("w", "Cleaner", 0, true)
	o.Frequency = Weekly
	o.NextOccurrence = time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)

	asOf := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	dates, err := Occurrences(o, asOf, asOf.AddDate(0, 0, 14), 0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
	}, dates)

	// until is inclusive
	dates, err = Occurrences(o, asOf, time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}

func TestProjectionScheduleAndFollowing(t *testing.T) {
	asOf := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	o := obligation("b", "Payroll", 0, true)
	o.Frequency = Biweekly
	o.NextOccurrence = time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	broken := obligation("x", "Broken", 0, true)
	broken.Interval = 0

	p, err := ProjectOne(o, asOf)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 26, 0, 0, 0, 0, time.UTC), p.Following)
	assert.Empty(t, p.Occurrences)

	scheduled := Schedule([]Projection{p, {Obligation: broken}}, asOf, 30, 0)
	require.Len(t, scheduled, 2)
	assert.Equal(t, []time.Time{
		time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 26, 0, 0, 0, 0, time.UTC),
	}, scheduled[0].Occurrences)
	assert.Empty(t, p.Occurrences, "input is not mutated")

	capped := Schedule([]Projection{p}, asOf, 365, 3)
	assert.Len(t, capped[0].Occurrences, 3)
}

func TestKindIncoming(t *testing.T) {
	assert.True(t, KindRecurringIncome.Incoming())
	assert.True(t, KindRecurringInvoice.Incoming())
	assert.False(t, KindSubscription.Incoming())
}
