package science

import (
	"math"
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/units"
)

// activityMultipliers maps activity levels to their TDEE multiplier.
// This is the single source of truth for valid activity levels.
var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:        1.2,
	ActivityLightlyActive:    1.375,
	ActivityModeratelyActive: 1.55,
	ActivityVeryActive:       1.725,
	ActivityExtremelyActive:  1.9,
}

// Mifflin-St Jeor sex constants. Non-binary uses the mean of the two, a product
// decision rather than a physiological constant.
const (
	bmrConstMale      = 5.0
	bmrConstFemale    = -161.0
	bmrConstNonBinary = (bmrConstMale + bmrConstFemale) / 2
)

func bmrConstant(g Gender) float64 {
	switch g {
	case GenderMale:
		return bmrConstMale
	case GenderFemale:
		return bmrConstFemale
	default:
		return bmrConstNonBinary
	}
}

// ActivityMultiplier returns the TDEE multiplier for a level and whether the level is known.
func ActivityMultiplier(level ActivityLevel) (float64, bool) {
	m, ok := activityMultipliers[level]
	return m, ok
}

// ComputeBMR applies Mifflin-St Jeor:
// BMR = 10*weight(kg) + 6.25*height(cm) - 5*age(years) + s, rounded.
func ComputeBMR(p HealthProfile, today time.Time) (units.Calories, error) {
	age := p.AgeOn(today)
	fields := bodyFieldErrors(p.Weight, p.Height, age)
	if !p.Gender.Valid() {
		fields = append(fields, apperr.Field("gender", "must be one of: male, female, non-binary"))
	}
	if len(fields) > 0 {
		return 0, apperr.Validation(fields...)
	}

	bmrF := 10*p.Weight.Float() + 6.25*p.Height.Float() - 5*float64(age) + bmrConstant(p.Gender)
	if math.IsNaN(bmrF) || math.IsInf(bmrF, 0) || bmrF <= 0 {
		return 0, apperr.ComputationFailed("bmr evaluated to %v", bmrF)
	}
	// Use math.Round to avoid systematic under-reporting from truncation.
	return units.Calories(math.Round(bmrF)), nil
}

// ComputeTDEE scales BMR by the activity multiplier, rounded.
func ComputeTDEE(bmr units.Calories, level ActivityLevel) (units.Calories, error) {
	mult, ok := activityMultipliers[level]
	if !ok {
		return 0, apperr.Validation(apperr.Field("activity_level", "unknown activity level %q", string(level)))
	}
	return units.Calories(math.Round(float64(bmr) * mult)), nil
}
