package science

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/units"
)

// today is the fixed clock every test computes against.
var today = time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC)

// makeProfile builds the reference profile: female, 26 years old on `today`,
// 75kg, 165cm, sedentary, losing weight to 65kg. Tests override fields.
func makeProfile(mut ...func(p *HealthProfile)) HealthProfile {
	p := HealthProfile{
		UserID:        1,
		Gender:        GenderFemale,
		DateOfBirth:   time.Date(1999, 6, 1, 0, 0, 0, 0, time.UTC),
		Height:        165,
		Weight:        75,
		TargetWeight:  65,
		ActivityLevel: ActivitySedentary,
		Goal:          GoalLoseWeight,
	}
	for _, fn := range mut {
		fn(&p)
	}
	return p
}

/* ─── Literal scenario ───────────────────────────────────────────────── */

// TestCompute_ReferenceScenario checks every output of the reference profile.
//
// BMR  = 10*75 + 6.25*165 - 5*26 - 161 = 1490.25 -> 1490
// TDEE = 1490 * 1.2 = 1788
// kcal = 1788 - 500 = 1288 (above the 1200 floor)
// protein = 75 * 2.2 = 165g, water = 75*35 = 2625 -> 2600ml
// rate = -0.5 kg/week, weeks = ceil(10 / 0.5) = 20
func TestCompute_ReferenceScenario(t *testing.T) {
	got, err := Compute(makeProfile(), Options{Today: today})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.BMR != 1490 {
		t.Errorf("BMR = %d, want 1490", got.BMR)
	}
	if got.TDEE != 1788 {
		t.Errorf("TDEE = %d, want 1788", got.TDEE)
	}
	if got.Calories.Value != 1288 || got.Calories.FloorApplied {
		t.Errorf("calories = %+v, want 1288 without floor", got.Calories)
	}
	if got.Protein != 165 {
		t.Errorf("protein = %d, want 165", got.Protein)
	}
	if got.Water != 2600 {
		t.Errorf("water = %d, want 2600", got.Water)
	}
	if got.Timeline.WeeklyRate != -0.5 {
		t.Errorf("rate = %v, want -0.5", got.Timeline.WeeklyRate)
	}
	if got.Timeline.EstimatedWeeks == nil || *got.Timeline.EstimatedWeeks != 20 {
		t.Fatalf("weeks = %v, want 20", got.Timeline.EstimatedWeeks)
	}
	wantDate := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)
	if !got.Timeline.ProjectedDate.Equal(wantDate) {
		t.Errorf("projected = %v, want %v", got.Timeline.ProjectedDate, wantDate)
	}
	if got.BasisAge != 26 {
		t.Errorf("age = %d, want 26", got.BasisAge)
	}
}

/* ─── BMR ────────────────────────────────────────────────────────────── */

func TestComputeBMR_SexConstants(t *testing.T) {
	// Base without constant: 750 + 1031.25 - 130 = 1651.25
	cases := []struct {
		gender Gender
		want   units.Calories
	}{
		{GenderMale, 1656},      // 1656.25
		{GenderFemale, 1490},    // 1490.25
		{GenderNonBinary, 1573}, // 1573.25
	}
	for _, tc := range cases {
		t.Run(string(tc.gender), func(t *testing.T) {
			bmr, err := ComputeBMR(makeProfile(func(p *HealthProfile) { p.Gender = tc.gender }), today)
			if err != nil {
				t.Fatalf("ComputeBMR: %v", err)
			}
			if bmr != tc.want {
				t.Errorf("BMR = %d, want %d", bmr, tc.want)
			}
		})
	}
}

func TestComputeBMR_Deterministic(t *testing.T) {
	p := makeProfile()
	a, _ := ComputeBMR(p, today)
	b, _ := ComputeBMR(p, today)
	if a != b {
		t.Errorf("BMR not deterministic: %d vs %d", a, b)
	}
	ta, _ := ComputeTDEE(a, ActivityVeryActive)
	tb, _ := ComputeTDEE(b, ActivityVeryActive)
	if ta != tb {
		t.Errorf("TDEE not deterministic: %d vs %d", ta, tb)
	}
}

// TestComputeBMR_MonotonicInWeight walks the full weight range in 0.5kg
// steps; each step adds 5 kcal before rounding, so BMR strictly increases.
func TestComputeBMR_MonotonicInWeight(t *testing.T) {
	for _, g := range []Gender{GenderMale, GenderFemale, GenderNonBinary} {
		prev := units.Calories(-1)
		for w := float64(MinWeightKg); w <= MaxWeightKg; w += 0.5 {
			bmr, err := ComputeBMR(makeProfile(func(p *HealthProfile) {
				p.Gender = g
				p.Weight = units.Kilograms(w)
			}), today)
			if err != nil {
				t.Fatalf("%s %.1fkg: %v", g, w, err)
			}
			if bmr <= prev {
				t.Fatalf("%s: BMR(%.1fkg) = %d not greater than previous %d", g, w, bmr, prev)
			}
			prev = bmr
		}
	}
}

func TestComputeBMR_OutOfRange(t *testing.T) {
	cases := []struct {
		name  string
		field string
		mut   func(p *HealthProfile)
	}{
		{"weight too low", "weight_kg", func(p *HealthProfile) { p.Weight = 29.9 }},
		{"weight too high", "weight_kg", func(p *HealthProfile) { p.Weight = 300.1 }},
		{"height too low", "height_cm", func(p *HealthProfile) { p.Height = 99 }},
		{"height too high", "height_cm", func(p *HealthProfile) { p.Height = 251 }},
		{"too young", "date_of_birth", func(p *HealthProfile) { p.DateOfBirth = today.AddDate(-12, 0, 0) }},
		{"too old", "date_of_birth", func(p *HealthProfile) { p.DateOfBirth = today.AddDate(-121, 0, 0) }},
		{"future dob", "date_of_birth", func(p *HealthProfile) { p.DateOfBirth = today.AddDate(1, 0, 0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeBMR(makeProfile(tc.mut), today)
			if err == nil {
				t.Fatal("expected validation error")
			}
			e, ok := apperr.As(err)
			if !ok || e.Kind != apperr.KindValidation {
				t.Fatalf("expected validation kind, got %v", err)
			}
			if len(e.Fields) != 1 || e.Fields[0].Field != tc.field {
				t.Errorf("fields = %+v, want one error on %s", e.Fields, tc.field)
			}
		})
	}
}

func TestComputeBMR_RangeBoundariesAccepted(t *testing.T) {
	p := makeProfile(func(p *HealthProfile) {
		p.Weight = MinWeightKg
		p.Height = MinHeightCm
		p.DateOfBirth = today.AddDate(-MaxAgeYears, 0, 0)
	})
	if _, err := ComputeBMR(p, today); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
}

/* ─── TDEE ───────────────────────────────────────────────────────────── */

func TestComputeTDEE_Multipliers(t *testing.T) {
	cases := []struct {
		level ActivityLevel
		want  units.Calories
	}{
		{ActivitySedentary, 1200},
		{ActivityLightlyActive, 1375},
		{ActivityModeratelyActive, 1550},
		{ActivityVeryActive, 1725},
		{ActivityExtremelyActive, 1900},
	}
	for _, tc := range cases {
		t.Run(string(tc.level), func(t *testing.T) {
			got, err := ComputeTDEE(1000, tc.level)
			if err != nil {
				t.Fatalf("ComputeTDEE: %v", err)
			}
			if got != tc.want {
				t.Errorf("TDEE = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestComputeTDEE_UnknownLevel(t *testing.T) {
	_, err := ComputeTDEE(1500, "couch")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

/* ─── Calorie target ─────────────────────────────────────────────────── */

func TestComputeCalorieTarget_Goals(t *testing.T) {
	cases := []struct {
		goal Goal
		want units.Calories
	}{
		{GoalLoseWeight, 1500},
		{GoalGainMuscle, 2400},
		{GoalMaintain, 2000},
		{GoalImproveHealth, 2000},
	}
	for _, tc := range cases {
		t.Run(string(tc.goal), func(t *testing.T) {
			got := ComputeCalorieTarget(2000, tc.goal, 1200)
			if got.Value != tc.want || got.FloorApplied {
				t.Errorf("target = %+v, want %d without floor", got, tc.want)
			}
		})
	}
}

// TestComputeCalorieTarget_FloorInvariant sweeps TDEE values down to zero; the
// lose-weight target never drops below the floor and is flagged when clamped.
func TestComputeCalorieTarget_FloorInvariant(t *testing.T) {
	for _, floor := range []units.Calories{0, 1200, 1500} {
		effective := floor
		if effective == 0 {
			effective = DefaultCalorieFloor
		}
		for tdee := units.Calories(0); tdee <= 4000; tdee += 25 {
			got := ComputeCalorieTarget(tdee, GoalLoseWeight, floor)
			if got.Value < effective {
				t.Fatalf("tdee %d floor %d: target %d below floor", tdee, floor, got.Value)
			}
			if got.FloorApplied != (tdee-500 < effective) {
				t.Fatalf("tdee %d floor %d: FloorApplied = %v", tdee, floor, got.FloorApplied)
			}
		}
	}
}

func TestCompute_FloorFlagSurfacesSafetyNote(t *testing.T) {
	// Small, older, sedentary: BMR = 450 + 937.5 - 350 - 161 = 876.5 -> 877,
	// TDEE = 1052, minus 500 would be 552.
	p := makeProfile(func(p *HealthProfile) {
		p.Weight = 45
		p.TargetWeight = 40
		p.Height = 150
		p.DateOfBirth = time.Date(1955, 6, 1, 0, 0, 0, 0, time.UTC)
	})
	got, err := Compute(p, Options{Today: today, CalorieFloor: 1200})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.Calories.Value != 1200 || !got.Calories.FloorApplied {
		t.Fatalf("calories = %+v, want clamped to 1200", got.Calories)
	}
	why := GenerateExplanations(got, p)
	if why.SafetyNote == "" {
		t.Error("expected a safety note when the floor is applied")
	}
}

/* ─── Protein / water ────────────────────────────────────────────────── */

func TestComputeProteinTarget(t *testing.T) {
	cases := []struct {
		goal Goal
		w    units.Kilograms
		want units.Grams
	}{
		{GoalLoseWeight, 75, 165},
		{GoalGainMuscle, 80, 192},
		{GoalMaintain, 70, 126},
		{GoalImproveHealth, 62.5, 113}, // 112.5 rounds half away from zero
	}
	for _, tc := range cases {
		if got := ComputeProteinTarget(tc.w, tc.goal); got != tc.want {
			t.Errorf("%s %v: protein = %d, want %d", tc.goal, tc.w, got, tc.want)
		}
	}
}

func TestComputeWaterTarget(t *testing.T) {
	cases := []struct {
		w    units.Kilograms
		want units.Milliliters
	}{
		{75, 2600},   // 2625
		{70, 2500},   // 2450 tie rounds up
		{80, 2800},   // 2800
		{61.5, 2200}, // 2152.5
		{30, 1100},   // 1050 tie rounds up
	}
	for _, tc := range cases {
		if got := ComputeWaterTarget(tc.w); got != tc.want {
			t.Errorf("water(%v) = %d, want %d", tc.w, got, tc.want)
		}
	}
}

/* ─── Timeline ───────────────────────────────────────────────────────── */

// TestCompute_MaintainInvariant checks goal=maintain across activity levels,
// sexes and weights: calories equal TDEE, rate is zero, no projection.
func TestCompute_MaintainInvariant(t *testing.T) {
	for level := range activityMultipliers {
		for _, g := range []Gender{GenderMale, GenderFemale, GenderNonBinary} {
			for _, w := range []units.Kilograms{50, 75, 120} {
				p := makeProfile(func(p *HealthProfile) {
					p.Goal = GoalMaintain
					p.ActivityLevel = level
					p.Gender = g
					p.Weight = w
					p.TargetWeight = w - 10
				})
				got, err := Compute(p, Options{Today: today, CalorieFloor: 1})
				if err != nil {
					t.Fatalf("Compute: %v", err)
				}
				if got.Calories.Value != got.TDEE {
					t.Errorf("%s/%s/%v: calories %d != TDEE %d", level, g, w, got.Calories.Value, got.TDEE)
				}
				if got.Timeline.WeeklyRate != 0 || got.Timeline.EstimatedWeeks != nil || got.Timeline.ProjectedDate != nil {
					t.Errorf("%s/%s/%v: timeline = %+v, want zero", level, g, w, got.Timeline)
				}
			}
		}
	}
}

func TestComputeWeeklyRate(t *testing.T) {
	cases := []struct {
		name      string
		current   units.Kilograms
		target    units.Kilograms
		goal      Goal
		wantRate  units.KgPerWeek
		wantWeeks int // 0 means nil
	}{
		{"loss", 75, 70, GoalLoseWeight, -0.5, 10},
		{"loss rounds weeks up", 75, 72.2, GoalLoseWeight, -0.5, 6},
		{"gain", 70, 74, GoalGainMuscle, 0.4, 10},
		{"improve health towards lower weight", 90, 85, GoalImproveHealth, -0.5, 10},
		{"equal weights", 70, 70, GoalLoseWeight, 0, 0},
		{"within scale precision", 70, 70.01, GoalGainMuscle, 0, 0},
		{"maintain ignores target", 70, 60, GoalMaintain, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeWeeklyRate(tc.current, tc.target, tc.goal, today)
			if got.WeeklyRate != tc.wantRate {
				t.Errorf("rate = %v, want %v", got.WeeklyRate, tc.wantRate)
			}
			if tc.wantWeeks == 0 {
				if got.EstimatedWeeks != nil || got.ProjectedDate != nil {
					t.Errorf("expected no projection, got %+v", got)
				}
				return
			}
			if got.EstimatedWeeks == nil || *got.EstimatedWeeks != tc.wantWeeks {
				t.Fatalf("weeks = %v, want %d", got.EstimatedWeeks, tc.wantWeeks)
			}
			want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*tc.wantWeeks)
			if !got.ProjectedDate.Equal(want) {
				t.Errorf("projected = %v, want %v", got.ProjectedDate, want)
			}
		})
	}
}

func TestCompute_TargetDate(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	got, _ := Compute(makeProfile(func(p *HealthProfile) { p.TargetDate = &early }), Options{Today: today})
	if got.Timeline.MeetsTargetDate == nil || *got.Timeline.MeetsTargetDate {
		t.Errorf("target date before projection should not be met: %+v", got.Timeline)
	}
	got, _ = Compute(makeProfile(func(p *HealthProfile) { p.TargetDate = &late }), Options{Today: today})
	if got.Timeline.MeetsTargetDate == nil || !*got.Timeline.MeetsTargetDate {
		t.Errorf("target date after projection should be met: %+v", got.Timeline)
	}
	got, _ = Compute(makeProfile(), Options{Today: today})
	if got.Timeline.MeetsTargetDate != nil {
		t.Error("MeetsTargetDate should be nil without a target date")
	}
}

/* ─── Validation ─────────────────────────────────────────────────────── */

func TestValidate_ReportsAllFields(t *testing.T) {
	p := makeProfile(func(p *HealthProfile) {
		p.Gender = "robot"
		p.Weight = 10
		p.ActivityLevel = "couch"
		p.Goal = "get-rich"
		p.TargetWeight = 500
	})
	err := p.Validate(today)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	got := map[string]bool{}
	for _, f := range e.Fields {
		got[f.Field] = true
	}
	for _, want := range []string{"gender", "weight_kg", "target_weight_kg", "activity_level", "primary_goal"} {
		if !got[want] {
			t.Errorf("missing field error for %s (got %v)", want, e.Fields)
		}
	}
}

func TestAgeOn_BirthdayBoundary(t *testing.T) {
	p := makeProfile(func(p *HealthProfile) { p.DateOfBirth = time.Date(2000, 10, 2, 0, 0, 0, 0, time.UTC) })
	if got := p.AgeOn(today); got != 24 {
		t.Errorf("age day before birthday = %d, want 24", got)
	}
	if got := p.AgeOn(today.AddDate(0, 0, 1)); got != 25 {
		t.Errorf("age on birthday = %d, want 25", got)
	}
}

// TestAgeOn_LocalCalendarDate: the birthday starts at local midnight, not when
// UTC reaches the date.
func TestAgeOn_LocalCalendarDate(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	p := makeProfile(func(p *HealthProfile) { p.DateOfBirth = time.Date(1999, 6, 1, 0, 0, 0, 0, time.UTC) })

	tests := []struct {
		name  string
		today time.Time
		want  units.Years
	}{
		{"sydney morning of birthday", time.Date(2025, 6, 1, 8, 0, 0, 0, sydney), 26},
		{"sydney evening before", time.Date(2025, 5, 31, 23, 30, 0, 0, sydney), 25},
		{"utc birthday", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 26},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AgeOn(tt.today); got != tt.want {
				t.Errorf("AgeOn(%s) = %d, want %d", tt.today, got, tt.want)
			}
		})
	}
}

func TestAgeOn_LeapDayBirthday(t *testing.T) {
	p := makeProfile(func(p *HealthProfile) { p.DateOfBirth = time.Date(2004, 2, 29, 0, 0, 0, 0, time.UTC) })
	if got := p.AgeOn(time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)); got != 20 {
		t.Errorf("Feb 28 = %d, want 20", got)
	}
	if got := p.AgeOn(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)); got != 21 {
		t.Errorf("Mar 1 = %d, want 21", got)
	}
}

/* ─── SameValues / explanations ──────────────────────────────────────── */

func TestSameValues(t *testing.T) {
	a, _ := Compute(makeProfile(), Options{Today: today})
	b, _ := Compute(makeProfile(), Options{Today: today.AddDate(0, 0, 3)})
	if !a.SameValues(b) {
		t.Error("same profile a few days apart should have the same values")
	}
	c, _ := Compute(makeProfile(func(p *HealthProfile) { p.Weight = 74 }), Options{Today: today})
	if a.SameValues(c) {
		t.Error("different weight must not compare equal")
	}
}

func TestGenerateExplanations_CoversEveryMetric(t *testing.T) {
	p := makeProfile()
	targets, _ := Compute(p, Options{Today: today})
	why := GenerateExplanations(targets, p)

	checks := []struct {
		name string
		exp  Explanation
		want string
	}{
		{"bmr", why.BMR, "Mifflin-St Jeor"},
		{"tdee", why.TDEE, "1.2"},
		{"calories", why.Calories, "1788 - 500 = 1288"},
		{"protein", why.Protein, "2.2 g/kg"},
		{"water", why.Water, "35 ml/kg"},
		{"timeline", why.Timeline, "20 weeks"},
	}
	for _, c := range checks {
		if c.exp.Title == "" || c.exp.Explanation == "" || c.exp.Formula == "" {
			t.Errorf("%s explanation incomplete: %+v", c.name, c.exp)
		}
		blob := c.exp.Title + c.exp.Explanation + c.exp.Formula
		if !strings.Contains(blob, c.want) {
			t.Errorf("%s explanation missing %q: %+v", c.name, c.want, c.exp)
		}
	}
	if why.SafetyNote != "" {
		t.Errorf("unexpected safety note: %q", why.SafetyNote)
	}
}

func TestGenerateExplanations_Maintain(t *testing.T) {
	p := makeProfile(func(p *HealthProfile) { p.Goal = GoalMaintain })
	targets, _ := Compute(p, Options{Today: today})
	why := GenerateExplanations(targets, p)
	if !strings.Contains(why.Timeline.Title, "maintain") {
		t.Errorf("timeline title = %q", why.Timeline.Title)
	}
}
