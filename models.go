package main

import (
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/store"
	"lg/fitplan-api/internal/units"
)

/* ─── Request bodies ─────────────────────────────────────────────────── */

// patchProfileRequest uses pointer fields to distinguish "not provided"
// from zero; only non-nil fields get updated.
type patchProfileRequest struct {
	Gender         *string  `json:"gender"`
	DateOfBirth    *string  `json:"date_of_birth"`
	HeightCM       *float64 `json:"height_cm"`
	WeightKG       *float64 `json:"weight_kg"`
	TargetWeightKG *float64 `json:"target_weight_kg"`
	ActivityLevel  *string  `json:"activity_level"`
	PrimaryGoal    *string  `json:"primary_goal"`
	TargetDate     *string  `json:"target_date"`
	SetupComplete  *bool    `json:"setup_complete"`
}

// validate checks each provided field against the engine's input ranges and
// returns every violation at once.
func (r patchProfileRequest) validate(today time.Time) error {
	var fields []apperr.FieldError
	if r.Gender != nil && !science.Gender(*r.Gender).Valid() {
		fields = append(fields, apperr.Field("gender", "must be one of: male, female, non-binary"))
	}
	if r.ActivityLevel != nil && !science.ActivityLevel(*r.ActivityLevel).Valid() {
		fields = append(fields, apperr.Field("activity_level",
			"must be one of: sedentary, lightly-active, moderately-active, very-active, extremely-active"))
	}
	if r.PrimaryGoal != nil && !science.Goal(*r.PrimaryGoal).Valid() {
		fields = append(fields, apperr.Field("primary_goal", "must be one of: lose-weight, gain-muscle, maintain, improve-health"))
	}
	if r.HeightCM != nil && (*r.HeightCM < science.MinHeightCm || *r.HeightCM > science.MaxHeightCm) {
		fields = append(fields, apperr.Field("height_cm", "must be between %d and %d", science.MinHeightCm, science.MaxHeightCm))
	}
	if r.WeightKG != nil && !weightInRange(*r.WeightKG) {
		fields = append(fields, apperr.Field("weight_kg", "must be between %d and %d", science.MinWeightKg, science.MaxWeightKg))
	}
	if r.TargetWeightKG != nil && !weightInRange(*r.TargetWeightKG) {
		fields = append(fields, apperr.Field("target_weight_kg", "must be between %d and %d", science.MinWeightKg, science.MaxWeightKg))
	}
	if r.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *r.DateOfBirth)
		if err != nil {
			fields = append(fields, apperr.Field("date_of_birth", "expected YYYY-MM-DD"))
		} else if age := (science.HealthProfile{DateOfBirth: dob}).AgeOn(today); age < science.MinAgeYears || age > science.MaxAgeYears {
			fields = append(fields, apperr.Field("date_of_birth", "age must be between %d and %d", science.MinAgeYears, science.MaxAgeYears))
		}
	}
	if r.TargetDate != nil && *r.TargetDate != "" {
		if _, err := time.Parse("2006-01-02", *r.TargetDate); err != nil {
			fields = append(fields, apperr.Field("target_date", "expected YYYY-MM-DD"))
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

func (r patchProfileRequest) patch() store.ProfilePatch {
	return store.ProfilePatch{
		Gender:         r.Gender,
		DateOfBirth:    r.DateOfBirth,
		HeightCM:       r.HeightCM,
		WeightKG:       r.WeightKG,
		TargetWeightKG: r.TargetWeightKG,
		ActivityLevel:  r.ActivityLevel,
		PrimaryGoal:    r.PrimaryGoal,
		TargetDate:     r.TargetDate,
		SetupComplete:  r.SetupComplete,
	}
}

func weightInRange(kg float64) bool {
	w := units.Kilograms(kg)
	return w >= science.MinWeightKg && w <= science.MaxWeightKg
}

type generatePlanRequest struct {
	ForceRecompute bool `json:"force_recompute"`
}

type acknowledgeRequest struct {
	Version    int    `json:"version"`
	ComputedAt string `json:"computed_at"`
}
