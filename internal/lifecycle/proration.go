package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prorate returns the net amount owed when switching from oldPlan to newPlan
// at now, with periodEnd closing the current period. Terms are kept exact and
// rounded once to the smallest currency unit. The result is never negative.
func Prorate(oldPlan, newPlan PlanSnapshot, now, periodEnd time.Time) int64 {
	days := decimal.NewFromInt(DaysUntil(periodEnd, now))
	if days.IsZero() {
		return 0
	}

	credit := decimal.NewFromInt(oldPlan.Price).
		Mul(days).
		Div(decimal.NewFromInt(oldPlan.Interval.NominalDays()))
	charge := decimal.NewFromInt(newPlan.Price).
		Mul(days).
		Div(decimal.NewFromInt(newPlan.Interval.NominalDays()))

	delta := charge.Sub(credit)
	if delta.IsNegative() {
		return 0
	}
	return delta.Round(0).IntPart()
}
