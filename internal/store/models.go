package store

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/units"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// Plan statuses.
const (
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanArchived  = "archived"
	PlanDraft     = "draft"
)

// User maps to the users table. AuthToken and Password are hidden from JSON responses.
type User struct {
	ID        int        `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// UserSettings maps to user_settings: one row per user with the health
// profile and the currently active targets. Profile fields are nullable
// until onboarding completes.
type UserSettings struct {
	UserID         int       `json:"user_id"          db:"user_id"`
	Gender         *string   `json:"gender"           db:"gender"`
	DateOfBirth    *DateOnly `json:"date_of_birth"    db:"date_of_birth"`
	HeightCM       *float64  `json:"height_cm"        db:"height_cm"`
	WeightKG       *float64  `json:"weight_kg"        db:"weight_kg"`
	TargetWeightKG *float64  `json:"target_weight_kg" db:"target_weight_kg"`
	ActivityLevel  *string   `json:"activity_level"   db:"activity_level"`
	PrimaryGoal    *string   `json:"primary_goal"     db:"primary_goal"`
	TargetDate     *DateOnly `json:"target_date"      db:"target_date"`
	SetupComplete  bool      `json:"setup_complete"   db:"setup_complete"`

	// Current targets, written by the plan generator and the recompute job.
	CalorieTarget  *int `json:"calorie_target"   db:"calorie_target"`
	ProteinTargetG *int `json:"protein_target_g" db:"protein_target_g"`
	WaterTargetML  *int `json:"water_target_ml"  db:"water_target_ml"`
	TargetsVersion *int `json:"targets_version"  db:"targets_version"`

	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

// HealthProfile converts the row into engine input. ok is false while any
// required field is missing or onboarding has not completed.
func (s UserSettings) HealthProfile() (science.HealthProfile, bool) {
	if !s.SetupComplete || s.Gender == nil || s.DateOfBirth == nil || s.HeightCM == nil ||
		s.WeightKG == nil || s.TargetWeightKG == nil || s.ActivityLevel == nil || s.PrimaryGoal == nil {
		return science.HealthProfile{}, false
	}
	p := science.HealthProfile{
		UserID:        s.UserID,
		Gender:        science.Gender(*s.Gender),
		DateOfBirth:   s.DateOfBirth.Time,
		Height:        units.Centimeters(*s.HeightCM),
		Weight:        units.Kilograms(*s.WeightKG),
		TargetWeight:  units.Kilograms(*s.TargetWeightKG),
		ActivityLevel: science.ActivityLevel(*s.ActivityLevel),
		Goal:          science.Goal(*s.PrimaryGoal),
	}
	if s.TargetDate != nil && !s.TargetDate.IsZero() {
		td := s.TargetDate.Time
		p.TargetDate = &td
	}
	return p, true
}

// ProfilePatch carries a partial profile update. Only non-nil fields are written.
type ProfilePatch struct {
	Gender         *string
	DateOfBirth    *string // YYYY-MM-DD
	HeightCM       *float64
	WeightKG       *float64
	TargetWeightKG *float64
	ActivityLevel  *string
	PrimaryGoal    *string
	TargetDate     *string // YYYY-MM-DD
	SetupComplete  *bool
}

// Empty reports whether the patch would change nothing.
func (p ProfilePatch) Empty() bool {
	return p.Gender == nil && p.DateOfBirth == nil && p.HeightCM == nil && p.WeightKG == nil &&
		p.TargetWeightKG == nil && p.ActivityLevel == nil && p.PrimaryGoal == nil &&
		p.TargetDate == nil && p.SetupComplete == nil
}

// ComputedTargets maps to computed_targets, an append-only history of
// versioned engine outputs per user.
type ComputedTargets struct {
	ID             int64     `json:"id"               db:"id"`
	UserID         int       `json:"user_id"          db:"user_id"`
	Version        int       `json:"version"          db:"version"`
	BMR            int       `json:"bmr"              db:"bmr"`
	TDEE           int       `json:"tdee"             db:"tdee"`
	CalorieTarget  int       `json:"calorie_target"   db:"calorie_target"`
	FloorApplied   bool      `json:"floor_applied"    db:"floor_applied"`
	ProteinTargetG int       `json:"protein_target_g" db:"protein_target_g"`
	WaterTargetML  int       `json:"water_target_ml"  db:"water_target_ml"`
	WeeklyRateKG   float64   `json:"weekly_rate_kg"   db:"weekly_rate_kg"`
	EstimatedWeeks *int      `json:"estimated_weeks"  db:"estimated_weeks"`
	ProjectedDate  *DateOnly `json:"projected_date"   db:"projected_date"`
	BasisWeightKG  float64   `json:"basis_weight_kg"  db:"basis_weight_kg"`
	ActivityLevel  string    `json:"activity_level"   db:"activity_level"`
	PrimaryGoal    string    `json:"primary_goal"     db:"primary_goal"`
	ComputedAt     time.Time `json:"computed_at"      db:"computed_at"`
}

// NewComputedTargets flattens an engine result for persistence. ID, Version
// and ComputedAt are assigned by SaveTargets.
func NewComputedTargets(userID int, t science.Targets) ComputedTargets {
	c := ComputedTargets{
		UserID:         userID,
		BMR:            int(t.BMR),
		TDEE:           int(t.TDEE),
		CalorieTarget:  int(t.Calories.Value),
		FloorApplied:   t.Calories.FloorApplied,
		ProteinTargetG: int(t.Protein),
		WaterTargetML:  int(t.Water),
		WeeklyRateKG:   t.Timeline.WeeklyRate.Float(),
		BasisWeightKG:  t.BasisWeight.Float(),
		ActivityLevel:  string(t.ActivityLevel),
		PrimaryGoal:    string(t.Goal),
	}
	if t.Timeline.EstimatedWeeks != nil {
		w := *t.Timeline.EstimatedWeeks
		c.EstimatedWeeks = &w
	}
	if t.Timeline.ProjectedDate != nil {
		c.ProjectedDate = &DateOnly{*t.Timeline.ProjectedDate}
	}
	return c
}

// Targets rebuilds the comparable engine values of a stored row.
func (c ComputedTargets) Targets() science.Targets {
	t := science.Targets{
		BMR:  units.Calories(c.BMR),
		TDEE: units.Calories(c.TDEE),
		Calories: science.CalorieTarget{
			Value:        units.Calories(c.CalorieTarget),
			FloorApplied: c.FloorApplied,
		},
		Protein:       units.Grams(c.ProteinTargetG),
		Water:         units.Milliliters(c.WaterTargetML),
		Timeline:      science.Timeline{WeeklyRate: units.KgPerWeek(c.WeeklyRateKG)},
		BasisWeight:   units.Kilograms(c.BasisWeightKG),
		ActivityLevel: science.ActivityLevel(c.ActivityLevel),
		Goal:          science.Goal(c.PrimaryGoal),
	}
	if c.EstimatedWeeks != nil {
		w := *c.EstimatedWeeks
		t.Timeline.EstimatedWeeks = &w
	}
	if c.ProjectedDate != nil {
		d := c.ProjectedDate.Time
		t.Timeline.ProjectedDate = &d
	}
	return t
}

// Plan maps to plans. Rows are never edited beyond their status: a change of
// targets archives the active row and inserts a new one.
type Plan struct {
	ID                int64              `json:"id"                  db:"id"`
	UserID            int                `json:"user_id"             db:"user_id"`
	WeekStart         time.Time          `json:"week_start"          db:"week_start"`
	WeekEnd           time.Time          `json:"week_end"            db:"week_end"`
	Status            string             `json:"status"              db:"status"`
	TargetsID         int64              `json:"targets_id"          db:"targets_id"`
	PreviousTargetsID *int64             `json:"previous_targets_id" db:"previous_targets_id"`
	WhyItWorks        science.WhyItWorks `json:"why_it_works"        db:"why_it_works"`
	CreatedAt         time.Time          `json:"created_at"          db:"created_at"`
}

// MetricsAcknowledgement maps to metrics_acknowledgements, one row per
// (user, version).
type MetricsAcknowledgement struct {
	ID                int64     `json:"id"                  db:"id"`
	UserID            int       `json:"user_id"             db:"user_id"`
	Version           int       `json:"version"             db:"version"`
	MetricsComputedAt time.Time `json:"metrics_computed_at" db:"metrics_computed_at"`
	AcknowledgedAt    time.Time `json:"acknowledged_at"     db:"acknowledged_at"`
}

// WeightEntry maps to weight_log. UNIQUE(user_id, date).
type WeightEntry struct {
	ID        int        `json:"id"         db:"id"`
	UserID    int        `json:"user_id"    db:"user_id"`
	Date      DateOnly   `json:"date"       db:"date"`
	WeightKG  float64    `json:"weight_kg"  db:"weight_kg"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}
