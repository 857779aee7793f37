// Package science computes daily energy, macro, and hydration targets from a
// health profile. Every function here is pure: no I/O, no clock reads.
package science

import (
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/units"
)

type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "sedentary"
	ActivityLightlyActive    ActivityLevel = "lightly-active"
	ActivityModeratelyActive ActivityLevel = "moderately-active"
	ActivityVeryActive       ActivityLevel = "very-active"
	ActivityExtremelyActive  ActivityLevel = "extremely-active"
)

type Goal string

const (
	GoalLoseWeight    Goal = "lose-weight"
	GoalGainMuscle    Goal = "gain-muscle"
	GoalMaintain      Goal = "maintain"
	GoalImproveHealth Goal = "improve-health"
)

// Validation ranges for engine inputs.
const (
	MinWeightKg = 30
	MaxWeightKg = 300
	MinHeightCm = 100
	MaxHeightCm = 250
	MinAgeYears = 13
	MaxAgeYears = 120
)

// HealthProfile is the engine's input. It is a value: callers copy it out of
// the store and nothing mutates it during a computation.
type HealthProfile struct {
	UserID        int
	Gender        Gender
	DateOfBirth   time.Time
	Height        units.Centimeters
	Weight        units.Kilograms
	TargetWeight  units.Kilograms
	ActivityLevel ActivityLevel
	Goal          Goal
	TargetDate    *time.Time
}

// AgeOn returns the profile's age in whole years on today's calendar date
// in today's location. A Feb 29 birthday counts from Mar 1 in common years.
func (p HealthProfile) AgeOn(today time.Time) units.Years {
	y, m, d := today.Date()
	by, bm, bd := p.DateOfBirth.Date()
	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	return units.Years(age)
}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary:
		return true
	}
	return false
}

func (a ActivityLevel) Valid() bool {
	_, ok := activityMultipliers[a]
	return ok
}

func (g Goal) Valid() bool {
	_, ok := proteinPerKg[g]
	return ok
}

// Validate checks every field the pipeline reads and reports all violations
// at once so a client can fix them in one round trip.
func (p HealthProfile) Validate(today time.Time) error {
	var fields []apperr.FieldError
	if !p.Gender.Valid() {
		fields = append(fields, apperr.Field("gender", "must be one of: male, female, non-binary"))
	}
	fields = append(fields, bodyFieldErrors(p.Weight, p.Height, p.AgeOn(today))...)
	if p.TargetWeight < MinWeightKg || p.TargetWeight > MaxWeightKg {
		fields = append(fields, apperr.Field("target_weight_kg", "must be between %d and %d", MinWeightKg, MaxWeightKg))
	}
	if !p.ActivityLevel.Valid() {
		fields = append(fields, apperr.Field("activity_level", "must be one of: sedentary, lightly-active, moderately-active, very-active, extremely-active"))
	}
	if !p.Goal.Valid() {
		fields = append(fields, apperr.Field("primary_goal", "must be one of: lose-weight, gain-muscle, maintain, improve-health"))
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

func bodyFieldErrors(weight units.Kilograms, height units.Centimeters, age units.Years) []apperr.FieldError {
	var fields []apperr.FieldError
	if weight < MinWeightKg || weight > MaxWeightKg {
		fields = append(fields, apperr.Field("weight_kg", "must be between %d and %d", MinWeightKg, MaxWeightKg))
	}
	if height < MinHeightCm || height > MaxHeightCm {
		fields = append(fields, apperr.Field("height_cm", "must be between %d and %d", MinHeightCm, MaxHeightCm))
	}
	if age < MinAgeYears || age > MaxAgeYears {
		fields = append(fields, apperr.Field("date_of_birth", "age must be between %d and %d years", MinAgeYears, MaxAgeYears))
	}
	return fields
}
