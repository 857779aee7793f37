package science

import (
	"math"
	"time"

	"lg/fitplan-api/internal/units"
)

// Safe weekly rates. Loss follows the 500 kcal/day deficit; gain is held
// slower since lean mass accrues more slowly than fat is lost.
const (
	LossRateKgPerWeek units.KgPerWeek = 0.5
	GainRateKgPerWeek units.KgPerWeek = 0.4
)

// weightEpsilon treats weights within 50g as equal, below scale precision.
const weightEpsilon = 0.05

// Timeline projects how long reaching the target weight takes at a safe rate.
// EstimatedWeeks and ProjectedDate are nil when there is nothing to project.
type Timeline struct {
	WeeklyRate     units.KgPerWeek
	EstimatedWeeks *int
	ProjectedDate  *time.Time
	// MeetsTargetDate is set only when the profile carries a target date.
	MeetsTargetDate *bool
}

// ComputeWeeklyRate returns a signed rate (negative = loss) and the projection.
// Maintain, or current == target, yields a zero rate and no projection.
func ComputeWeeklyRate(current, target units.Kilograms, goal Goal, today time.Time) Timeline {
	delta := target.Float() - current.Float()
	if goal == GoalMaintain || WeightsEqual(current, target) {
		return Timeline{}
	}

	rate := GainRateKgPerWeek
	if delta < 0 {
		rate = -LossRateKgPerWeek
	}
	weeks := int(math.Ceil(math.Abs(delta) / rate.Abs().Float()))
	date := dateOnly(today).AddDate(0, 0, 7*weeks)
	return Timeline{WeeklyRate: rate, EstimatedWeeks: &weeks, ProjectedDate: &date}
}

// WeightsEqual compares weights at scale precision.
func WeightsEqual(a, b units.Kilograms) bool {
	return math.Abs(a.Float()-b.Float()) < weightEpsilon
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
