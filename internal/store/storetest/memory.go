// Package storetest provides an in-memory store.Store for tests of the core.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/store"
)

// Store keeps every table in memory. Transactions are serialized and rolled
// back with an undo journal, so writes made outside InTx (test seeding, the
// BeforeCreatePlan hook) survive a rollback the way a concurrent committed
// writer would.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID   int64
	users    map[int]store.User
	settings map[int]store.UserSettings
	targets  []store.ComputedTargets
	plans    []store.Plan
	acks     []store.MetricsAcknowledgement
	weights  []store.WeightEntry

	inTx bool
	undo []func()

	planWrites   int
	targetWrites int
	ackWrites    int

	// ProfileErr forces GetHealthProfile to fail for the given users.
	ProfileErr map[int]error
	// BeforeCreatePlan runs before CreatePlan checks for an active plan. It is
	// called without the store lock held and may call the seeding helpers.
	BeforeCreatePlan func(p store.Plan)
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      map[int]store.User{},
		settings:   map[int]store.UserSettings{},
		ProfileErr: map[int]error{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// record registers an undo step when a transaction is open. Callers hold mu.
func (s *Store) record(fn func()) {
	if s.inTx {
		s.undo = append(s.undo, fn)
	}
}

/* ─── Seeding and inspection ──────────────────────────────────────────── */

// PutProfile stores a completed health profile for userID.
func (s *Store) PutProfile(p science.HealthProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gender := string(p.Gender)
	dob := store.DateOnly{Time: p.DateOfBirth}
	height := p.Height.Float()
	weight := p.Weight.Float()
	target := p.TargetWeight.Float()
	level := string(p.ActivityLevel)
	goal := string(p.Goal)
	cur := s.settings[p.UserID]
	cur.UserID = p.UserID
	cur.Gender = &gender
	cur.DateOfBirth = &dob
	cur.HeightCM = &height
	cur.WeightKG = &weight
	cur.TargetWeightKG = &target
	cur.ActivityLevel = &level
	cur.PrimaryGoal = &goal
	cur.TargetDate = nil
	if p.TargetDate != nil {
		cur.TargetDate = &store.DateOnly{Time: *p.TargetDate}
	}
	cur.SetupComplete = true
	s.settings[p.UserID] = cur
}

// PutSettings stores a raw settings row, e.g. one with onboarding incomplete.
func (s *Store) PutSettings(us store.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[us.UserID] = us
}

// AddUser stores u and returns it with an ID assigned if it had none.
func (s *Store) AddUser(u store.User) store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = int(s.id())
	}
	s.users[u.ID] = u
	return u
}

// AddPlan inserts p as if committed by another writer.
func (s *Store) AddPlan(p store.Plan) store.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if p.Status == "" {
		p.Status = store.PlanActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.plans = append(s.plans, p)
	return p
}

// AddTargets inserts t as the user's next version as if committed by another writer.
func (s *Store) AddTargets(t store.ComputedTargets) store.ComputedTargets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTargets(t)
}

func (s *Store) Plans(userID int) []store.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Plan
	for _, p := range s.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) AllTargets(userID int) []store.ComputedTargets {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ComputedTargets
	for _, t := range s.targets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// PlanWrites counts CreatePlan, ArchivePlan and CompleteStalePlans calls.
func (s *Store) PlanWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planWrites
}

// TargetWrites counts SaveTargets calls.
func (s *Store) TargetWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetWrites
}

// AckWrites counts acknowledgement rows actually inserted.
func (s *Store) AckWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ackWrites
}

/* ─── Transactions ────────────────────────────────────────────────────── */

type txStore struct{ *Store }

func (t txStore) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.inTx = true
	s.undo = nil
	s.mu.Unlock()

	err := fn(txStore{s})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for i := len(s.undo) - 1; i >= 0; i-- {
			s.undo[i]()
		}
	}
	s.inTx = false
	s.undo = nil
	return err
}

/* ─── Users ───────────────────────────────────────────────────────────── */

func (s *Store) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return store.User{}, apperr.NotFound("user not found")
}

func (s *Store) GetUserIDByToken(ctx context.Context, token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.AuthToken == token {
			return u.ID, nil
		}
	}
	return 0, apperr.NotFound("invalid token")
}

/* ─── Profile ─────────────────────────────────────────────────────────── */

func (s *Store) GetUserSettings(ctx context.Context, userID int) (store.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.settings[userID]
	if !ok {
		return store.UserSettings{}, apperr.NotFound("profile not found for user %d", userID)
	}
	return us, nil
}

func (s *Store) GetHealthProfile(ctx context.Context, userID int) (science.HealthProfile, error) {
	s.mu.Lock()
	forced := s.ProfileErr[userID]
	s.mu.Unlock()
	if forced != nil {
		return science.HealthProfile{}, forced
	}
	us, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return science.HealthProfile{}, err
	}
	hp, ok := us.HealthProfile()
	if !ok {
		return science.HealthProfile{}, apperr.NotFound("health profile incomplete for user %d", userID)
	}
	return hp, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID int, patch store.ProfilePatch) (store.UserSettings, error) {
	if patch.Empty() {
		return store.UserSettings{}, apperr.Validation(apperr.Field("body", "no fields to update"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.settings[userID]
	if !ok {
		return store.UserSettings{}, apperr.NotFound("profile not found for user %d", userID)
	}
	us := prev
	if patch.Gender != nil {
		v := *patch.Gender
		us.Gender = &v
	}
	if patch.DateOfBirth != nil {
		d, err := time.Parse("2006-01-02", *patch.DateOfBirth)
		if err != nil {
			return store.UserSettings{}, apperr.Validation(apperr.Field("date_of_birth", "expected YYYY-MM-DD"))
		}
		us.DateOfBirth = &store.DateOnly{Time: d}
	}
	if patch.HeightCM != nil {
		v := *patch.HeightCM
		us.HeightCM = &v
	}
	if patch.WeightKG != nil {
		v := *patch.WeightKG
		us.WeightKG = &v
	}
	if patch.TargetWeightKG != nil {
		v := *patch.TargetWeightKG
		us.TargetWeightKG = &v
	}
	if patch.ActivityLevel != nil {
		v := *patch.ActivityLevel
		us.ActivityLevel = &v
	}
	if patch.PrimaryGoal != nil {
		v := *patch.PrimaryGoal
		us.PrimaryGoal = &v
	}
	if patch.TargetDate != nil {
		if *patch.TargetDate == "" {
			us.TargetDate = nil
		} else {
			d, err := time.Parse("2006-01-02", *patch.TargetDate)
			if err != nil {
				return store.UserSettings{}, apperr.Validation(apperr.Field("target_date", "expected YYYY-MM-DD"))
			}
			us.TargetDate = &store.DateOnly{Time: d}
		}
	}
	if patch.SetupComplete != nil {
		us.SetupComplete = *patch.SetupComplete
	}
	now := time.Now()
	us.UpdatedAt = &now
	s.settings[userID] = us
	s.record(func() { s.settings[userID] = prev })
	return us, nil
}

func (s *Store) ListProfileUserIDs(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for id, us := range s.settings {
		if us.SetupComplete {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

/* ─── Computed targets ────────────────────────────────────────────────── */

func (s *Store) latestTargets(userID int) *store.ComputedTargets {
	var latest *store.ComputedTargets
	for i := range s.targets {
		t := s.targets[i]
		if t.UserID == userID && (latest == nil || t.Version > latest.Version) {
			latest = &t
		}
	}
	return latest
}

func (s *Store) LatestTargets(ctx context.Context, userID int) (*store.ComputedTargets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestTargets(userID), nil
}

func (s *Store) GetTargets(ctx context.Context, id int64) (*store.ComputedTargets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

// appendTargets assigns id and version. Callers hold mu.
func (s *Store) appendTargets(t store.ComputedTargets) store.ComputedTargets {
	t.ID = s.id()
	t.Version = 1
	if latest := s.latestTargets(t.UserID); latest != nil {
		t.Version = latest.Version + 1
	}
	// Postgres timestamptz keeps microseconds.
	t.ComputedAt = t.ComputedAt.Truncate(time.Microsecond)
	s.targets = append(s.targets, t)
	return t
}

func (s *Store) SaveTargets(ctx context.Context, t store.ComputedTargets) (*store.ComputedTargets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetWrites++
	saved := s.appendTargets(t)
	s.record(func() { s.removeTargets(saved.ID) })

	if prev, ok := s.settings[t.UserID]; ok {
		us := prev
		cal, prot, water, ver := saved.CalorieTarget, saved.ProteinTargetG, saved.WaterTargetML, saved.Version
		us.CalorieTarget, us.ProteinTargetG, us.WaterTargetML, us.TargetsVersion = &cal, &prot, &water, &ver
		s.settings[t.UserID] = us
		s.record(func() { s.settings[t.UserID] = prev })
	}
	return &saved, nil
}

func (s *Store) removeTargets(id int64) {
	for i, t := range s.targets {
		if t.ID == id {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return
		}
	}
}

/* ─── Plans ───────────────────────────────────────────────────────────── */

func (s *Store) activePlan(userID int, weekStart time.Time) *store.Plan {
	for i := range s.plans {
		p := s.plans[i]
		if p.UserID == userID && p.Status == store.PlanActive && p.WeekStart.Equal(weekStart) {
			return &p
		}
	}
	return nil
}

func (s *Store) GetActivePlan(ctx context.Context, userID int, weekStart time.Time) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePlan(userID, weekStart), nil
}

func (s *Store) LatestPlan(ctx context.Context, userID int) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.plans) - 1; i >= 0; i-- {
		if s.plans[i].UserID == userID {
			p := s.plans[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Store) CreatePlan(ctx context.Context, p store.Plan) (*store.Plan, bool, error) {
	if s.BeforeCreatePlan != nil {
		s.BeforeCreatePlan(p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planWrites++
	if p.Status == "" {
		p.Status = store.PlanActive
	}
	if p.Status == store.PlanActive {
		if existing := s.activePlan(p.UserID, p.WeekStart); existing != nil {
			return existing, false, nil
		}
	}
	p.ID = s.id()
	p.CreatedAt = time.Now()
	s.plans = append(s.plans, p)
	s.record(func() { s.removePlan(p.ID) })
	return &p, true, nil
}

func (s *Store) removePlan(id int64) {
	for i, p := range s.plans {
		if p.ID == id {
			s.plans = append(s.plans[:i], s.plans[i+1:]...)
			return
		}
	}
}

// setStatus changes plan i's status and journals the previous one. Callers hold mu.
func (s *Store) setStatus(i int, status string) {
	id, prev := s.plans[i].ID, s.plans[i].Status
	s.plans[i].Status = status
	s.record(func() {
		for j := range s.plans {
			if s.plans[j].ID == id {
				s.plans[j].Status = prev
			}
		}
	})
}

func (s *Store) ArchivePlan(ctx context.Context, planID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planWrites++
	for i := range s.plans {
		if s.plans[i].ID == planID && s.plans[i].Status == store.PlanActive {
			s.setStatus(i, store.PlanArchived)
		}
	}
	return nil
}

func (s *Store) CompleteStalePlans(ctx context.Context, weekStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planWrites++
	var n int64
	for i := range s.plans {
		if s.plans[i].Status == store.PlanActive && s.plans[i].WeekStart.Before(weekStart) {
			s.setStatus(i, store.PlanCompleted)
			n++
		}
	}
	return n, nil
}

/* ─── Acknowledgements ────────────────────────────────────────────────── */

func (s *Store) findAck(userID, version int) *store.MetricsAcknowledgement {
	for _, a := range s.acks {
		if a.UserID == userID && a.Version == version {
			return &a
		}
	}
	return nil
}

func (s *Store) FindAcknowledgement(ctx context.Context, userID, version int) (*store.MetricsAcknowledgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAck(userID, version), nil
}

func (s *Store) UpsertAcknowledgement(ctx context.Context, a store.MetricsAcknowledgement) (*store.MetricsAcknowledgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findAck(a.UserID, a.Version); existing != nil {
		return existing, nil
	}
	s.ackWrites++
	a.ID = s.id()
	a.MetricsComputedAt = a.MetricsComputedAt.Truncate(time.Microsecond)
	a.AcknowledgedAt = a.AcknowledgedAt.Truncate(time.Microsecond)
	s.acks = append(s.acks, a)
	id := a.ID
	s.record(func() {
		for i := range s.acks {
			if s.acks[i].ID == id {
				s.acks = append(s.acks[:i], s.acks[i+1:]...)
				return
			}
		}
	})
	return &a, nil
}

/* ─── Weight log ──────────────────────────────────────────────────────── */

func (s *Store) ListWeightEntries(ctx context.Context, userID int, start, end string) ([]store.WeightEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.WeightEntry
	for _, w := range s.weights {
		d := w.Date.Format("2006-01-02")
		if w.UserID == userID && d >= start && d <= end {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) UpsertWeightEntry(ctx context.Context, userID int, date string, weightKG float64) (store.WeightEntry, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return store.WeightEntry{}, apperr.Validation(apperr.Field("date", "expected YYYY-MM-DD"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry store.WeightEntry
	found := false
	latest := true
	for i := range s.weights {
		w := &s.weights[i]
		if w.UserID != userID {
			continue
		}
		if w.Date.After(d) {
			latest = false
		}
		if w.Date.Equal(d) {
			w.WeightKG = weightKG
			entry = *w
			found = true
		}
	}
	if !found {
		now := time.Now()
		entry = store.WeightEntry{ID: int(s.id()), UserID: userID, Date: store.DateOnly{Time: d}, WeightKG: weightKG, CreatedAt: &now}
		s.weights = append(s.weights, entry)
	}
	if us, ok := s.settings[userID]; ok && latest {
		w := weightKG
		us.WeightKG = &w
		s.settings[userID] = us
	}
	return entry, nil
}
