package recurrence

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Frequency is the billing cadence of an obligation.
type Frequency string

const (
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const monthsPerYear = 12

var (
	weeksPerMonth      = decimal.RequireFromString("4.33")
	fortnightsPerMonth = decimal.RequireFromString("2.17")
	monthsPerQuarter   = decimal.NewFromInt(3)
	twelve             = decimal.NewFromInt(monthsPerYear)
)

// ParseFrequency maps free-form input onto a Frequency. Anything unrecognised,
// including the empty string, is treated as monthly.
func ParseFrequency(raw string) Frequency {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "weekly", "week":
		return Weekly
	case "biweekly", "bi-weekly", "fortnightly":
		return Biweekly
	case "quarterly", "quarter":
		return Quarterly
	case "yearly", "annual", "annually":
		return Yearly
	default:
		return Monthly
	}
}

// Known reports whether f is one of the defined cadences.
func (f Frequency) Known() bool {
	switch f {
	case Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// MonthlyEquivalent converts an amount billed every interval periods of
// frequency into its average monthly cost.
func MonthlyEquivalent(amount decimal.Decimal, frequency Frequency, interval int) (decimal.Decimal, error) {
	if interval <= 0 {
		return decimal.Zero, invalid("interval", interval, "must be at least 1")
	}
	if amount.IsNegative() {
		return decimal.Zero, invalid("amount", amount.String(), "must not be negative")
	}

	n := decimal.NewFromInt(int64(interval))
	switch frequency {
	case Weekly:
		return amount.Mul(weeksPerMonth).Div(n), nil
	case Biweekly:
		return amount.Mul(fortnightsPerMonth).Div(n), nil
	case Quarterly:
		return amount.Div(monthsPerQuarter).Div(n), nil
	case Yearly:
		return amount.Div(twelve).Div(n), nil
	default:
		return amount.Div(n), nil
	}
}

// YearlyEquivalent is twelve times the monthly equivalent.
func YearlyEquivalent(amount decimal.Decimal, frequency Frequency, interval int) (decimal.Decimal, error) {
	monthly, err := MonthlyEquivalent(amount, frequency, interval)
	if err != nil {
		return decimal.Zero, err
	}
	return monthly.Mul(twelve), nil
}
