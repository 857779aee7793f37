// Package store is the persistence port of the core plus its Postgres adapter.
package store

import (
	"context"
	"time"

	"lg/fitplan-api/internal/science"
)

// Store is everything the core reads and writes. Lookups that return a
// pointer return (nil, nil) when the row does not exist; lookups whose absence
// is an error for every caller (profile, user) return an apperr NotFound.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserIDByToken(ctx context.Context, token string) (int, error)

	// GetHealthProfile returns NotFound when the settings row is missing or
	// onboarding is incomplete.
	GetHealthProfile(ctx context.Context, userID int) (science.HealthProfile, error)
	GetUserSettings(ctx context.Context, userID int) (UserSettings, error)
	UpdateProfile(ctx context.Context, userID int, patch ProfilePatch) (UserSettings, error)
	// ListProfileUserIDs returns every user with a completed profile, ascending.
	ListProfileUserIDs(ctx context.Context) ([]int, error)

	LatestTargets(ctx context.Context, userID int) (*ComputedTargets, error)
	GetTargets(ctx context.Context, id int64) (*ComputedTargets, error)
	// SaveTargets appends t as the user's next version and points the user's
	// current targets at it. ComputedAt must be set by the caller.
	SaveTargets(ctx context.Context, t ComputedTargets) (*ComputedTargets, error)

	GetActivePlan(ctx context.Context, userID int, weekStart time.Time) (*Plan, error)
	LatestPlan(ctx context.Context, userID int) (*Plan, error)
	// CreatePlan inserts p, or returns the already-active plan for the same
	// user and week with created=false.
	CreatePlan(ctx context.Context, p Plan) (plan *Plan, created bool, err error)
	ArchivePlan(ctx context.Context, planID int64) error
	// CompleteStalePlans marks active plans that started before weekStart completed.
	CompleteStalePlans(ctx context.Context, weekStart time.Time) (int64, error)

	FindAcknowledgement(ctx context.Context, userID, version int) (*MetricsAcknowledgement, error)
	// UpsertAcknowledgement inserts a, or returns the existing row for (user, version).
	UpsertAcknowledgement(ctx context.Context, a MetricsAcknowledgement) (*MetricsAcknowledgement, error)

	ListWeightEntries(ctx context.Context, userID int, start, end string) ([]WeightEntry, error)
	// UpsertWeightEntry records a weight for a date and, when that date is the
	// latest logged, updates the profile's current weight.
	UpsertWeightEntry(ctx context.Context, userID int, date string, weightKG float64) (WeightEntry, error)

	// InTx runs fn in one transaction. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
