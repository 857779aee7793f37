package science

import (
	"time"

	"lg/fitplan-api/internal/units"
)

// Options are the caller-supplied parameters of a computation. Today is passed
// in rather than read from the clock so results are reproducible.
type Options struct {
	Today        time.Time
	CalorieFloor units.Calories
}

// Targets is the full output of one pipeline run.
type Targets struct {
	BMR           units.Calories
	TDEE          units.Calories
	Calories      CalorieTarget
	Protein       units.Grams
	Water         units.Milliliters
	Timeline      Timeline
	BasisWeight   units.Kilograms
	BasisAge      units.Years
	ActivityLevel ActivityLevel
	Goal          Goal
}

// Compute runs validation, BMR, TDEE, calorie, protein, water and timeline in order.
func Compute(p HealthProfile, opts Options) (Targets, error) {
	if err := p.Validate(opts.Today); err != nil {
		return Targets{}, err
	}
	bmr, err := ComputeBMR(p, opts.Today)
	if err != nil {
		return Targets{}, err
	}
	tdee, err := ComputeTDEE(bmr, p.ActivityLevel)
	if err != nil {
		return Targets{}, err
	}

	timeline := ComputeWeeklyRate(p.Weight, p.TargetWeight, p.Goal, opts.Today)
	if p.TargetDate != nil && timeline.ProjectedDate != nil {
		meets := !timeline.ProjectedDate.After(dateOnly(*p.TargetDate))
		timeline.MeetsTargetDate = &meets
	}

	return Targets{
		BMR:           bmr,
		TDEE:          tdee,
		Calories:      ComputeCalorieTarget(tdee, p.Goal, opts.CalorieFloor),
		Protein:       ComputeProteinTarget(p.Weight, p.Goal),
		Water:         ComputeWaterTarget(p.Weight),
		Timeline:      timeline,
		BasisWeight:   p.Weight,
		BasisAge:      p.AgeOn(opts.Today),
		ActivityLevel: p.ActivityLevel,
		Goal:          p.Goal,
	}, nil
}

// SameValues reports whether two computations produced identical numbers.
// Projected dates are ignored: they move every day without the plan changing.
func (t Targets) SameValues(o Targets) bool {
	return t.BMR == o.BMR &&
		t.TDEE == o.TDEE &&
		t.Calories.Value == o.Calories.Value &&
		t.Protein == o.Protein &&
		t.Water == o.Water &&
		t.Timeline.WeeklyRate == o.Timeline.WeeklyRate &&
		intPtrEqual(t.Timeline.EstimatedWeeks, o.Timeline.EstimatedWeeks) &&
		WeightsEqual(t.BasisWeight, o.BasisWeight) &&
		t.Goal == o.Goal
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
