// Package recompute is the weekly batch that refreshes every user's targets
// and replaces their plan when the change is worth surfacing.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lg/fitplan-api/internal/lock"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/plan"
	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/store"
	"lg/fitplan-api/internal/units"
)

// Thresholds above which a recomputation replaces the user's plan.
const (
	CalorieThreshold = 50
	ProteinThreshold = 10
)

// Update describes one user whose targets changed significantly.
type Update struct {
	UserID           int      `json:"user_id"`
	PreviousCalories *int     `json:"previous_calories"`
	NewCalories      int      `json:"new_calories"`
	PreviousProtein  *int     `json:"previous_protein_g"`
	NewProtein       int      `json:"new_protein_g"`
	PreviousWeightKG *float64 `json:"previous_weight_kg"`
	NewWeightKG      float64  `json:"new_weight_kg"`
	Reason           string   `json:"reason"`
}

// Summary is the outcome of one run. SuccessCount counts users whose plan was
// replaced; users below the thresholds are counted in UnchangedCount.
type Summary struct {
	RunID          uuid.UUID `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TotalUsers     int       `json:"total_users"`
	SuccessCount   int       `json:"success_count"`
	UnchangedCount int       `json:"unchanged_count"`
	ErrorCount     int       `json:"error_count"`
	StaleCompleted int64     `json:"stale_completed"`
	Updates        []Update  `json:"updates"`
}

type Config struct {
	Concurrency int
	LockTTL     time.Duration
}

type Job struct {
	store  store.Store
	locker lock.Locker
	gen    *plan.Generator
	log    *logger.Logger
	cfg    Config
}

func NewJob(s store.Store, l lock.Locker, gen *plan.Generator, log *logger.Logger, cfg Config) *Job {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Job{store: s, locker: l, gen: gen, log: log.With("service", "RecomputeJob"), cfg: cfg}
}

var errPlanRace = errors.New("active plan written concurrently")

// Run recomputes every user with a completed profile. A failing user is
// logged and counted; it never aborts the run. The returned error is non-nil
// only when the run itself could not proceed (listing users, cancellation).
func (j *Job) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.New(), StartedAt: time.Now().UTC(), Updates: []Update{}}
	log := j.log.With("run_id", sum.RunID.String())

	week := j.gen.Week()
	completed, err := j.store.CompleteStalePlans(ctx, week.Start)
	if err != nil {
		return sum, fmt.Errorf("complete stale plans: %w", err)
	}
	sum.StaleCompleted = completed

	ids, err := j.store.ListProfileUserIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list users: %w", err)
	}
	sum.TotalUsers = len(ids)
	log.Info("recompute started", "users", len(ids), "stale_completed", completed, "concurrency", j.cfg.Concurrency)

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(j.cfg.Concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		userID := id
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			upd, err := j.processUser(ctx, userID, week)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sum.ErrorCount++
				log.Error("recompute failed", "user_id", userID, "error", err)
			case upd != nil:
				sum.SuccessCount++
				sum.Updates = append(sum.Updates, *upd)
			default:
				sum.UnchangedCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(sum.Updates, func(a, b int) bool { return sum.Updates[a].UserID < sum.Updates[b].UserID })
	sum.FinishedAt = time.Now().UTC()
	log.Info("recompute finished",
		"total", sum.TotalUsers, "updated", sum.SuccessCount,
		"unchanged", sum.UnchangedCount, "errors", sum.ErrorCount)

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// processUser returns nil, nil when the change is below the thresholds.
func (j *Job) processUser(ctx context.Context, userID int, week plan.Week) (*Update, error) {
	profile, err := j.store.GetHealthProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets, err := j.gen.Compute(profile)
	if err != nil {
		return nil, err
	}

	unlock, err := j.locker.Lock(ctx, lock.UserKey(userID), j.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var upd *Update
	wctx := context.WithoutCancel(ctx)
	err = j.store.InTx(wctx, func(tx store.Store) error {
		latest, err := tx.LatestTargets(wctx, userID)
		if err != nil {
			return err
		}
		reason, significant := significantChange(latest, targets)
		if !significant {
			return nil
		}
		why := science.GenerateExplanations(targets, profile)
		if _, created, err := j.gen.Replace(wctx, tx, userID, targets, why, week); err != nil {
			return err
		} else if !created {
			return errPlanRace
		}
		upd = newUpdate(userID, latest, targets, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return upd, nil
}

// significantChange decides whether next differs enough from prev to replace
// the plan, and names the most important difference.
func significantChange(prev *store.ComputedTargets, next science.Targets) (string, bool) {
	if prev == nil {
		return "Initial targets computed", true
	}
	prevWeight := units.Kilograms(prev.BasisWeightKG)
	if !science.WeightsEqual(prevWeight, next.BasisWeight) {
		return fmt.Sprintf("Weight changed from %s to %s", prevWeight.Round1(), next.BasisWeight.Round1()), true
	}
	if d := int(next.Calories.Value) - prev.CalorieTarget; abs(d) > CalorieThreshold {
		return fmt.Sprintf("Calorie target changed from %s to %s", units.Calories(prev.CalorieTarget), next.Calories.Value), true
	}
	if d := int(next.Protein) - prev.ProteinTargetG; abs(d) > ProteinThreshold {
		return fmt.Sprintf("Protein target changed from %s to %s", units.Grams(prev.ProteinTargetG), next.Protein), true
	}
	return "", false
}

func newUpdate(userID int, prev *store.ComputedTargets, next science.Targets, reason string) *Update {
	u := &Update{
		UserID:      userID,
		NewCalories: int(next.Calories.Value),
		NewProtein:  int(next.Protein),
		NewWeightKG: next.BasisWeight.Float(),
		Reason:      reason,
	}
	if prev != nil {
		cal, prot, w := prev.CalorieTarget, prev.ProteinTargetG, prev.BasisWeightKG
		u.PreviousCalories, u.PreviousProtein, u.PreviousWeightKG = &cal, &prot, &w
	}
	return u
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
