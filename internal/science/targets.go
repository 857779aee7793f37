package science

import (
	"math"

	"lg/fitplan-api/internal/units"
)

// DefaultCalorieFloor is the lowest daily target the engine will ever return.
const DefaultCalorieFloor units.Calories = 1200

// calorieAdjustments is the daily surplus (+) or deficit (-) applied to TDEE per goal.
var calorieAdjustments = map[Goal]units.Calories{
	GoalLoseWeight:    -500,
	GoalGainMuscle:    400,
	GoalMaintain:      0,
	GoalImproveHealth: 0,
}

// proteinPerKg is grams of protein per kg of body weight per goal. Also the
// source of truth for valid goals.
var proteinPerKg = map[Goal]float64{
	GoalLoseWeight:    2.2,
	GoalGainMuscle:    2.4,
	GoalMaintain:      1.8,
	GoalImproveHealth: 1.8,
}

const waterMlPerKg = 35

// CalorieTarget is a daily calorie goal. FloorApplied is set when the goal
// adjustment would have gone below the safety floor and was clamped.
type CalorieTarget struct {
	Value        units.Calories
	Adjustment   units.Calories
	FloorApplied bool
}

// ComputeCalorieTarget adjusts TDEE for the goal and clamps to floor.
// A non-positive floor means DefaultCalorieFloor.
func ComputeCalorieTarget(tdee units.Calories, goal Goal, floor units.Calories) CalorieTarget {
	if floor <= 0 {
		floor = DefaultCalorieFloor
	}
	adj := calorieAdjustments[goal]
	target := CalorieTarget{Value: tdee + adj, Adjustment: adj}
	if target.Value < floor {
		target.Value = floor
		target.FloorApplied = true
	}
	return target
}

// ComputeProteinTarget returns round(weight * g/kg for the goal).
func ComputeProteinTarget(weight units.Kilograms, goal Goal) units.Grams {
	return units.Grams(math.Round(weight.Float() * proteinPerKg[goal]))
}

// ProteinPerKg returns the multiplier used for a goal.
func ProteinPerKg(goal Goal) float64 { return proteinPerKg[goal] }

// ComputeWaterTarget returns weight*35ml rounded to the nearest 100ml, ties up.
func ComputeWaterTarget(weight units.Kilograms) units.Milliliters {
	raw := weight.Float() * waterMlPerKg
	return units.Milliliters(math.Floor(raw/100+0.5) * 100)
}
