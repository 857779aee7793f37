package science

import (
	"fmt"
	"strings"
)

type Explanation struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Formula     string `json:"formula"`
}

// WhyItWorks is the per-metric rationale shown next to the targets.
type WhyItWorks struct {
	BMR        Explanation `json:"bmr"`
	TDEE       Explanation `json:"tdee"`
	Calories   Explanation `json:"calories"`
	Protein    Explanation `json:"protein"`
	Water      Explanation `json:"water"`
	Timeline   Explanation `json:"timeline"`
	SafetyNote string      `json:"safety_note,omitempty"`
}

var goalRationale = map[Goal]string{
	GoalLoseWeight:    "A moderate 500 kcal daily deficit below your TDEE supports steady fat loss while preserving energy for training.",
	GoalGainMuscle:    "A 400 kcal daily surplus above your TDEE fuels muscle growth while limiting fat gain.",
	GoalMaintain:      "Eating at your TDEE keeps your weight stable.",
	GoalImproveHealth: "Eating at your TDEE keeps energy balanced so you can focus on food quality and activity rather than weight change.",
}

var activityLabels = map[ActivityLevel]string{
	ActivitySedentary:        "sedentary (little or no exercise)",
	ActivityLightlyActive:    "lightly active (light exercise 1-3 days/week)",
	ActivityModeratelyActive: "moderately active (moderate exercise 3-5 days/week)",
	ActivityVeryActive:       "very active (hard exercise 6-7 days/week)",
	ActivityExtremelyActive:  "extremely active (physical job or twice-daily training)",
}

// GenerateExplanations templates already-computed numbers into text. It
// performs no computation of its own.
func GenerateExplanations(t Targets, p HealthProfile) WhyItWorks {
	mult := activityMultipliers[t.ActivityLevel]

	why := WhyItWorks{
		BMR: Explanation{
			Title: fmt.Sprintf("Basal Metabolic Rate: %s", t.BMR),
			Explanation: fmt.Sprintf("Your body burns about %d kcal a day at complete rest, estimated with the Mifflin-St Jeor equation from your weight (%s), height (%s), age (%s) and %s.",
				int(t.BMR), t.BasisWeight, p.Height, t.BasisAge, sexLabel(p.Gender)),
			Formula: fmt.Sprintf("Mifflin-St Jeor: 10 x %.1f + 6.25 x %.1f - 5 x %d %s",
				t.BasisWeight.Float(), p.Height.Float(), int(t.BasisAge), signed(bmrConstant(p.Gender))),
		},
		TDEE: Explanation{
			Title: fmt.Sprintf("Total Daily Energy Expenditure: %s", t.TDEE),
			Explanation: fmt.Sprintf("Your activity level is %s, so your BMR is multiplied by %g to account for movement and exercise.",
				activityLabels[t.ActivityLevel], mult),
			Formula: fmt.Sprintf("%d x %g = %d", int(t.BMR), mult, int(t.TDEE)),
		},
		Calories: Explanation{
			Title:       fmt.Sprintf("Daily calorie target: %s", t.Calories.Value),
			Explanation: goalRationale[t.Goal],
			Formula:     fmt.Sprintf("%d %s = %d", int(t.TDEE), signed(float64(t.Calories.Adjustment)), int(t.Calories.Value)),
		},
		Protein: Explanation{
			Title: fmt.Sprintf("Daily protein target: %s", t.Protein),
			Explanation: fmt.Sprintf("%g g of protein per kg of body weight supports your %s goal by protecting and building lean mass.",
				proteinPerKg[t.Goal], strings.ReplaceAll(string(t.Goal), "-", " ")),
			Formula: fmt.Sprintf("%.1f kg x %g g/kg = %d g", t.BasisWeight.Float(), proteinPerKg[t.Goal], int(t.Protein)),
		},
		Water: Explanation{
			Title:       fmt.Sprintf("Daily water target: %.1f L", t.Water.Liters()),
			Explanation: fmt.Sprintf("About %d ml per kg of body weight covers baseline hydration; the total is rounded to the nearest 100 ml.", waterMlPerKg),
			Formula:     fmt.Sprintf("%.1f kg x %d ml/kg ~ %d ml", t.BasisWeight.Float(), waterMlPerKg, int(t.Water)),
		},
		Timeline: timelineExplanation(t, p),
	}

	if t.Calories.FloorApplied {
		why.SafetyNote = fmt.Sprintf("Your calculated target fell below the %d kcal safety minimum, so it has been raised to %d kcal. Consider a smaller deficit or more activity instead of eating less.",
			int(t.Calories.Value), int(t.Calories.Value))
	}
	return why
}

func timelineExplanation(t Targets, p HealthProfile) Explanation {
	tl := t.Timeline
	if tl.EstimatedWeeks == nil {
		return Explanation{
			Title:       "Timeline: maintain",
			Explanation: "Your goal keeps your weight where it is, so there is no weekly change to project.",
			Formula:     "0 kg/week",
		}
	}
	direction := "lose"
	if tl.WeeklyRate > 0 {
		direction = "gain"
	}
	text := fmt.Sprintf("At a safe pace of %.2g kg per week you would %s the %.1f kg between %s and %s in about %d weeks, around %s.",
		tl.WeeklyRate.Abs().Float(), direction, absDiff(p.Weight.Float(), p.TargetWeight.Float()),
		p.Weight, p.TargetWeight, *tl.EstimatedWeeks, tl.ProjectedDate.Format("January 2, 2006"))
	if tl.MeetsTargetDate != nil && p.TargetDate != nil {
		if *tl.MeetsTargetDate {
			text += fmt.Sprintf(" That is on track for your target date of %s.", p.TargetDate.Format("January 2, 2006"))
		} else {
			text += fmt.Sprintf(" That is later than your target date of %s; a faster pace is not recommended.", p.TargetDate.Format("January 2, 2006"))
		}
	}
	return Explanation{
		Title:       fmt.Sprintf("Timeline: %d weeks", *tl.EstimatedWeeks),
		Explanation: text,
		Formula:     fmt.Sprintf("ceil(%.1f kg / %.2g kg/week) = %d weeks", absDiff(p.Weight.Float(), p.TargetWeight.Float()), tl.WeeklyRate.Abs().Float(), *tl.EstimatedWeeks),
	}
}

func sexLabel(g Gender) string {
	switch g {
	case GenderMale:
		return "the male constant (+5)"
	case GenderFemale:
		return "the female constant (-161)"
	default:
		return "the average of the male and female constants (-78)"
	}
}

func signed(v float64) string {
	if v < 0 {
		return fmt.Sprintf("- %g", -v)
	}
	return fmt.Sprintf("+ %g", v)
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
