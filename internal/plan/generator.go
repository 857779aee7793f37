// Package plan turns a health profile into the persisted plan for the
// current week.
package plan

import (
	"context"
	"errors"
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/lock"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/store"
	"lg/fitplan-api/internal/units"
)

// Config holds the generator's tunables. Zero values fall back to defaults.
type Config struct {
	Location     *time.Location
	CalorieFloor units.Calories
	LockTTL      time.Duration
	Now          func() time.Time
}

// Result is what a caller sees after Generate.
type Result struct {
	Plan            store.Plan             `json:"plan"`
	Targets         store.ComputedTargets  `json:"targets"`
	PreviousTargets *store.ComputedTargets `json:"previous_targets"`
	WhyItWorks      science.WhyItWorks     `json:"why_it_works"`
	// Recomputed is true only when this call created the plan.
	Recomputed bool `json:"recomputed"`
}

type Generator struct {
	store  store.Store
	locker lock.Locker
	log    *logger.Logger
	cfg    Config
}

func NewGenerator(s store.Store, l lock.Locker, log *logger.Logger, cfg Config) *Generator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CalorieFloor <= 0 {
		cfg.CalorieFloor = science.DefaultCalorieFloor
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{store: s, locker: l, log: log.With("service", "PlanGenerator"), cfg: cfg}
}

// Week returns the plan week containing now.
func (g *Generator) Week() Week {
	return WeekOf(g.cfg.Now(), g.cfg.Location)
}

// Compute runs the engine for p as of now.
func (g *Generator) Compute(p science.HealthProfile) (science.Targets, error) {
	return science.Compute(p, science.Options{
		Today:        g.cfg.Now().In(g.cfg.Location),
		CalorieFloor: g.cfg.CalorieFloor,
	})
}

// errPlanExists rolls back a transaction that lost the create race.
var errPlanExists = errors.New("active plan already exists")

// Current returns the active plan of the current week without computing.
func (g *Generator) Current(ctx context.Context, userID int) (Result, error) {
	active, err := g.store.GetActivePlan(ctx, userID, g.Week().Start)
	if err != nil {
		return Result{}, err
	}
	if active == nil {
		return Result{}, apperr.NotFound("no active plan for the current week")
	}
	return g.load(ctx, g.store, *active)
}

// Generate returns this week's plan for userID, computing and persisting a
// new one when none is active or force is set.
func (g *Generator) Generate(ctx context.Context, userID int, force bool) (Result, error) {
	week := g.Week()

	// A cached plan is only served while the profile is still complete.
	profile, err := g.store.GetHealthProfile(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if !force {
		active, err := g.store.GetActivePlan(ctx, userID, week.Start)
		if err != nil {
			return Result{}, err
		}
		if active != nil {
			g.log.Debug("plan cache hit", "user_id", userID, "plan_id", active.ID)
			return g.load(ctx, g.store, *active)
		}
	}

	targets, err := g.Compute(profile)
	if err != nil {
		return Result{}, err
	}
	why := science.GenerateExplanations(targets, profile)

	// Cancellation is honoured up to here; past this point the write runs to
	// completion or rolls back as a unit.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	unlock, err := g.locker.Lock(ctx, lock.UserKey(userID), g.cfg.LockTTL)
	if err != nil {
		return Result{}, apperr.Internal(err, "acquire plan lock for user %d", userID)
	}
	defer unlock()

	var res Result
	var existing *store.Plan
	wctx := context.WithoutCancel(ctx)
	err = g.store.InTx(wctx, func(tx store.Store) error {
		if !force {
			active, err := tx.GetActivePlan(wctx, userID, week.Start)
			if err != nil {
				return err
			}
			if active != nil {
				existing = active
				return errPlanExists
			}
		}
		var created bool
		res, created, err = g.Replace(wctx, tx, userID, targets, why, week)
		if err != nil {
			return err
		}
		if !created {
			existing = &res.Plan
			return errPlanExists
		}
		return nil
	})
	if errors.Is(err, errPlanExists) {
		g.log.Info("plan created concurrently, returning existing", "user_id", userID, "plan_id", existing.ID)
		return g.load(ctx, g.store, *existing)
	}
	if err != nil {
		return Result{}, err
	}
	g.log.Info("plan generated", "user_id", userID, "plan_id", res.Plan.ID, "targets_version", res.Targets.Version)
	return res, nil
}

// Replace persists targets and makes a new plan the week's active one. It
// must run inside a transaction under the user's lock. A new targets version
// is written only when the values differ from the latest stored version.
// created is false when another writer's active plan won the insert; that
// plan is returned in res.Plan and the caller should roll back.
func (g *Generator) Replace(ctx context.Context, tx store.Store, userID int, targets science.Targets, why science.WhyItWorks, week Week) (res Result, created bool, err error) {
	latest, err := tx.LatestTargets(ctx, userID)
	if err != nil {
		return Result{}, false, err
	}
	current := latest
	if latest == nil || !latest.Targets().SameValues(targets) {
		row := store.NewComputedTargets(userID, targets)
		row.ComputedAt = g.cfg.Now().UTC()
		current, err = tx.SaveTargets(ctx, row)
		if err != nil {
			return Result{}, false, err
		}
	}

	prevPlan, err := tx.LatestPlan(ctx, userID)
	if err != nil {
		return Result{}, false, err
	}
	var previousID *int64
	if prevPlan != nil {
		id := prevPlan.TargetsID
		if id == current.ID {
			id = 0
			if prevPlan.PreviousTargetsID != nil {
				id = *prevPlan.PreviousTargetsID
			}
		}
		if id != 0 {
			previousID = &id
		}
	}

	active, err := tx.GetActivePlan(ctx, userID, week.Start)
	if err != nil {
		return Result{}, false, err
	}
	if active != nil {
		if err := tx.ArchivePlan(ctx, active.ID); err != nil {
			return Result{}, false, err
		}
	}

	p, created, err := tx.CreatePlan(ctx, store.Plan{
		UserID:            userID,
		WeekStart:         week.Start,
		WeekEnd:           week.End,
		Status:            store.PlanActive,
		TargetsID:         current.ID,
		PreviousTargetsID: previousID,
		WhyItWorks:        why,
	})
	if err != nil {
		return Result{}, false, err
	}
	if !created {
		return Result{Plan: *p}, false, nil
	}

	res = Result{Plan: *p, Targets: *current, WhyItWorks: why, Recomputed: true}
	if previousID != nil {
		res.PreviousTargets, err = tx.GetTargets(ctx, *previousID)
		if err != nil {
			return Result{}, false, err
		}
	}
	return res, true, nil
}

// load assembles a Result from a stored plan. It performs no writes.
func (g *Generator) load(ctx context.Context, s store.Store, p store.Plan) (Result, error) {
	targets, err := s.GetTargets(ctx, p.TargetsID)
	if err != nil {
		return Result{}, err
	}
	if targets == nil {
		return Result{}, apperr.Internal(nil, "plan %d references missing targets %d", p.ID, p.TargetsID)
	}
	res := Result{Plan: p, Targets: *targets, WhyItWorks: p.WhyItWorks}
	if p.PreviousTargetsID != nil {
		res.PreviousTargets, err = s.GetTargets(ctx, *p.PreviousTargetsID)
		if err != nil {
			return Result{}, err
		}
	}
	return res, nil
}
