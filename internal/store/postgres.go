package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/science"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements Store on a pgx pool. A copy bound to a pgx.Tx is
// handed to InTx callbacks.
type Postgres struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
	log  *logger.Logger
}

var _ Store = (*Postgres)(nil)

// NewPool creates a connection pool. We use a pool (not a single conn) because
// Neon closes idle connections after ~5 minutes.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from Neon's server-side prepared statement cache after schema changes.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) *Postgres {
	return &Postgres{pool: pool, db: pool, log: log}
}

/* ─── Query helpers ───────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
// pgx.ErrNoRows is returned unlogged so callers can map it.
func queryOne[T any](ctx context.Context, q querier, log *logger.Logger, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Error("[queryOne] query error", "error", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error("[queryOne] scan error", "error", err)
	}
	return result, err
}

// queryOptional is queryOne with a missing row reported as (nil, nil).
func queryOptional[T any](ctx context.Context, q querier, log *logger.Logger, sql string, args pgx.NamedArgs) (*T, error) {
	v, err := queryOne[T](ctx, q, log, sql, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](ctx context.Context, q querier, log *logger.Logger, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Error("[queryMany] query error", "error", err)
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Error("[queryMany] scan error", "error", err)
	}
	return results, err
}

/* ─── Transactions ────────────────────────────────────────────────────── */

func (p *Postgres) InTx(ctx context.Context, fn func(tx Store) error) error {
	if p.inTx {
		return fn(p)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&Postgres{pool: p.pool, db: tx, inTx: true, log: p.log})
	})
}

/* ─── Users ───────────────────────────────────────────────────────────── */

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := queryOne[User](ctx, p.db, p.log,
		"SELECT id, username, email, auth_token, password, created_at FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	return u, err
}

func (p *Postgres) GetUserIDByToken(ctx context.Context, token string) (int, error) {
	rows, err := p.db.Query(ctx, "SELECT id FROM users WHERE auth_token = @token", pgx.NamedArgs{"token": token})
	if err != nil {
		return 0, err
	}
	id, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("invalid token")
	}
	return id, err
}

/* ─── Profile ─────────────────────────────────────────────────────────── */

const settingsColumns = `user_id, gender, date_of_birth, height_cm, weight_kg, target_weight_kg,
	activity_level, primary_goal, target_date, setup_complete,
	calorie_target, protein_target_g, water_target_ml, targets_version, updated_at`

func (p *Postgres) GetUserSettings(ctx context.Context, userID int) (UserSettings, error) {
	s, err := queryOne[UserSettings](ctx, p.db, p.log,
		"SELECT "+settingsColumns+" FROM user_settings WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return UserSettings{}, apperr.NotFound("profile not found for user %d", userID)
	}
	return s, err
}

func (p *Postgres) GetHealthProfile(ctx context.Context, userID int) (science.HealthProfile, error) {
	s, err := p.GetUserSettings(ctx, userID)
	if err != nil {
		return science.HealthProfile{}, err
	}
	hp, ok := s.HealthProfile()
	if !ok {
		return science.HealthProfile{}, apperr.NotFound("health profile incomplete for user %d", userID)
	}
	return hp, nil
}

// UpdateProfile builds the SET clause dynamically so only fields the client
// actually sent are written.
func (p *Postgres) UpdateProfile(ctx context.Context, userID int, patch ProfilePatch) (UserSettings, error) {
	setClauses := []string{}
	args := pgx.NamedArgs{"userID": userID}
	set := func(column, arg string, v any) {
		setClauses = append(setClauses, column+" = @"+arg)
		args[arg] = v
	}

	if patch.Gender != nil {
		set("gender", "gender", *patch.Gender)
	}
	if patch.DateOfBirth != nil {
		set("date_of_birth", "dateOfBirth", *patch.DateOfBirth)
	}
	if patch.HeightCM != nil {
		set("height_cm", "heightCM", *patch.HeightCM)
	}
	if patch.WeightKG != nil {
		set("weight_kg", "weightKG", *patch.WeightKG)
	}
	if patch.TargetWeightKG != nil {
		set("target_weight_kg", "targetWeightKG", *patch.TargetWeightKG)
	}
	if patch.ActivityLevel != nil {
		set("activity_level", "activityLevel", *patch.ActivityLevel)
	}
	if patch.PrimaryGoal != nil {
		set("primary_goal", "primaryGoal", *patch.PrimaryGoal)
	}
	if patch.TargetDate != nil {
		// Empty string clears the target date.
		if *patch.TargetDate == "" {
			setClauses = append(setClauses, "target_date = NULL")
		} else {
			set("target_date", "targetDate", *patch.TargetDate)
		}
	}
	if patch.SetupComplete != nil {
		set("setup_complete", "setupComplete", *patch.SetupComplete)
	}
	if len(setClauses) == 0 {
		return UserSettings{}, apperr.Validation(apperr.Field("body", "no fields to update"))
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := "UPDATE user_settings SET " + strings.Join(setClauses, ", ") +
		" WHERE user_id = @userID RETURNING " + settingsColumns
	s, err := queryOne[UserSettings](ctx, p.db, p.log, query, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserSettings{}, apperr.NotFound("profile not found for user %d", userID)
	}
	return s, err
}

func (p *Postgres) ListProfileUserIDs(ctx context.Context) ([]int, error) {
	rows, err := p.db.Query(ctx, "SELECT user_id FROM user_settings WHERE setup_complete ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

/* ─── Computed targets ────────────────────────────────────────────────── */

const targetsColumns = `id, user_id, version, bmr, tdee, calorie_target, floor_applied,
	protein_target_g, water_target_ml, weekly_rate_kg, estimated_weeks, projected_date,
	basis_weight_kg, activity_level, primary_goal, computed_at`

func (p *Postgres) LatestTargets(ctx context.Context, userID int) (*ComputedTargets, error) {
	return queryOptional[ComputedTargets](ctx, p.db, p.log,
		"SELECT "+targetsColumns+" FROM computed_targets WHERE user_id = @userID ORDER BY version DESC LIMIT 1",
		pgx.NamedArgs{"userID": userID})
}

func (p *Postgres) GetTargets(ctx context.Context, id int64) (*ComputedTargets, error) {
	return queryOptional[ComputedTargets](ctx, p.db, p.log,
		"SELECT "+targetsColumns+" FROM computed_targets WHERE id = @id",
		pgx.NamedArgs{"id": id})
}

// SaveTargets assigns the next version with MAX(version)+1; UNIQUE(user_id,
// version) rejects a concurrent writer that picked the same number.
func (p *Postgres) SaveTargets(ctx context.Context, t ComputedTargets) (*ComputedTargets, error) {
	var saved ComputedTargets
	err := p.InTx(ctx, func(tx Store) error {
		q := tx.(*Postgres)
		var projected *time.Time
		if t.ProjectedDate != nil {
			d := t.ProjectedDate.Time
			projected = &d
		}
		var err error
		saved, err = queryOne[ComputedTargets](ctx, q.db, q.log,
			`INSERT INTO computed_targets (user_id, version, bmr, tdee, calorie_target, floor_applied,
				protein_target_g, water_target_ml, weekly_rate_kg, estimated_weeks, projected_date,
				basis_weight_kg, activity_level, primary_goal, computed_at)
			 SELECT @userID, COALESCE(MAX(version), 0) + 1, @bmr, @tdee, @calorieTarget, @floorApplied,
				@proteinTargetG, @waterTargetML, @weeklyRateKG, @estimatedWeeks, @projectedDate,
				@basisWeightKG, @activityLevel, @primaryGoal, @computedAt
			 FROM computed_targets WHERE user_id = @userID
			 RETURNING `+targetsColumns,
			pgx.NamedArgs{
				"userID":         t.UserID,
				"bmr":            t.BMR,
				"tdee":           t.TDEE,
				"calorieTarget":  t.CalorieTarget,
				"floorApplied":   t.FloorApplied,
				"proteinTargetG": t.ProteinTargetG,
				"waterTargetML":  t.WaterTargetML,
				"weeklyRateKG":   t.WeeklyRateKG,
				"estimatedWeeks": t.EstimatedWeeks,
				"projectedDate":  projected,
				"basisWeightKG":  t.BasisWeightKG,
				"activityLevel":  t.ActivityLevel,
				"primaryGoal":    t.PrimaryGoal,
				"computedAt":     t.ComputedAt,
			})
		if err != nil {
			return err
		}
		_, err = q.db.Exec(ctx,
			`UPDATE user_settings SET calorie_target = @calorieTarget, protein_target_g = @proteinTargetG,
				water_target_ml = @waterTargetML, targets_version = @version, updated_at = NOW()
			 WHERE user_id = @userID`,
			pgx.NamedArgs{
				"userID":         saved.UserID,
				"calorieTarget":  saved.CalorieTarget,
				"proteinTargetG": saved.ProteinTargetG,
				"waterTargetML":  saved.WaterTargetML,
				"version":        saved.Version,
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

/* ─── Plans ───────────────────────────────────────────────────────────── */

const planColumns = `id, user_id, week_start, week_end, status, targets_id, previous_targets_id, why_it_works, created_at`

func (p *Postgres) GetActivePlan(ctx context.Context, userID int, weekStart time.Time) (*Plan, error) {
	return queryOptional[Plan](ctx, p.db, p.log,
		"SELECT "+planColumns+" FROM plans WHERE user_id = @userID AND week_start = @weekStart AND status = 'active'",
		pgx.NamedArgs{"userID": userID, "weekStart": weekStart})
}

func (p *Postgres) LatestPlan(ctx context.Context, userID int) (*Plan, error) {
	return queryOptional[Plan](ctx, p.db, p.log,
		"SELECT "+planColumns+" FROM plans WHERE user_id = @userID ORDER BY created_at DESC, id DESC LIMIT 1",
		pgx.NamedArgs{"userID": userID})
}

// CreatePlan relies on the partial unique index over (user_id, week_start)
// WHERE status = 'active'. On conflict nothing is inserted and the winner's
// row is returned.
func (p *Postgres) CreatePlan(ctx context.Context, plan Plan) (*Plan, bool, error) {
	why, err := json.Marshal(plan.WhyItWorks)
	if err != nil {
		return nil, false, fmt.Errorf("marshal why_it_works: %w", err)
	}
	status := plan.Status
	if status == "" {
		status = PlanActive
	}
	created, err := queryOptional[Plan](ctx, p.db, p.log,
		`INSERT INTO plans (user_id, week_start, week_end, status, targets_id, previous_targets_id, why_it_works)
		 VALUES (@userID, @weekStart, @weekEnd, @status, @targetsID, @previousTargetsID, @why::jsonb)
		 ON CONFLICT (user_id, week_start) WHERE status = 'active' DO NOTHING
		 RETURNING `+planColumns,
		pgx.NamedArgs{
			"userID":            plan.UserID,
			"weekStart":         plan.WeekStart,
			"weekEnd":           plan.WeekEnd,
			"status":            status,
			"targetsID":         plan.TargetsID,
			"previousTargetsID": plan.PreviousTargetsID,
			"why":               string(why),
		})
	if err != nil {
		return nil, false, err
	}
	if created != nil {
		return created, true, nil
	}
	existing, err := p.GetActivePlan(ctx, plan.UserID, plan.WeekStart)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, apperr.Internal(nil, "plan insert conflicted but no active plan found for user %d", plan.UserID)
	}
	return existing, false, nil
}

func (p *Postgres) ArchivePlan(ctx context.Context, planID int64) error {
	_, err := p.db.Exec(ctx, "UPDATE plans SET status = 'archived' WHERE id = @id AND status = 'active'",
		pgx.NamedArgs{"id": planID})
	return err
}

func (p *Postgres) CompleteStalePlans(ctx context.Context, weekStart time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx,
		"UPDATE plans SET status = 'completed' WHERE status = 'active' AND week_start < @weekStart",
		pgx.NamedArgs{"weekStart": weekStart})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

/* ─── Acknowledgements ────────────────────────────────────────────────── */

const ackColumns = `id, user_id, version, metrics_computed_at, acknowledged_at`

func (p *Postgres) FindAcknowledgement(ctx context.Context, userID, version int) (*MetricsAcknowledgement, error) {
	return queryOptional[MetricsAcknowledgement](ctx, p.db, p.log,
		"SELECT "+ackColumns+" FROM metrics_acknowledgements WHERE user_id = @userID AND version = @version",
		pgx.NamedArgs{"userID": userID, "version": version})
}

func (p *Postgres) UpsertAcknowledgement(ctx context.Context, a MetricsAcknowledgement) (*MetricsAcknowledgement, error) {
	created, err := queryOptional[MetricsAcknowledgement](ctx, p.db, p.log,
		`INSERT INTO metrics_acknowledgements (user_id, version, metrics_computed_at, acknowledged_at)
		 VALUES (@userID, @version, @computedAt, @acknowledgedAt)
		 ON CONFLICT (user_id, version) DO NOTHING
		 RETURNING `+ackColumns,
		pgx.NamedArgs{
			"userID":         a.UserID,
			"version":        a.Version,
			"computedAt":     a.MetricsComputedAt,
			"acknowledgedAt": a.AcknowledgedAt,
		})
	if err != nil || created != nil {
		return created, err
	}
	return p.FindAcknowledgement(ctx, a.UserID, a.Version)
}

/* ─── Weight log ──────────────────────────────────────────────────────── */

func (p *Postgres) ListWeightEntries(ctx context.Context, userID int, start, end string) ([]WeightEntry, error) {
	return queryMany[WeightEntry](ctx, p.db, p.log,
		`SELECT id, user_id, date, weight_kg, created_at FROM weight_log
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 ORDER BY date ASC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
}

// UpsertWeightEntry writes the entry and, when no later entry exists, copies
// the weight onto the profile so the next computation uses it.
func (p *Postgres) UpsertWeightEntry(ctx context.Context, userID int, date string, weightKG float64) (WeightEntry, error) {
	var entry WeightEntry
	err := p.InTx(ctx, func(tx Store) error {
		q := tx.(*Postgres)
		var err error
		entry, err = queryOne[WeightEntry](ctx, q.db, q.log,
			`INSERT INTO weight_log (user_id, date, weight_kg)
			 VALUES (@userID, @date, @weightKG)
			 ON CONFLICT (user_id, date) DO UPDATE SET weight_kg = EXCLUDED.weight_kg
			 RETURNING id, user_id, date, weight_kg, created_at`,
			pgx.NamedArgs{"userID": userID, "date": date, "weightKG": weightKG})
		if err != nil {
			return err
		}
		_, err = q.db.Exec(ctx,
			`UPDATE user_settings SET weight_kg = @weightKG, updated_at = NOW()
			 WHERE user_id = @userID
			   AND NOT EXISTS (SELECT 1 FROM weight_log WHERE user_id = @userID AND date > @date)`,
			pgx.NamedArgs{"userID": userID, "date": date, "weightKG": weightKG})
		return err
	})
	return entry, err
}
