package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"lg/fitplan-api/internal/lock"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/plan"
	"lg/fitplan-api/internal/recompute"
	"lg/fitplan-api/internal/science"
	"lg/fitplan-api/internal/store/storetest"
)

func newTestJob(s *storetest.Store) *recompute.Job {
	gen := plan.NewGenerator(s, lock.NewLocal(), logger.Nop(), plan.Config{
		Now:     func() time.Time { return time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC) },
		LockTTL: time.Second,
	})
	return recompute.NewJob(s, lock.NewLocal(), gen, logger.Nop(), recompute.Config{Concurrency: 2})
}

func putProfile(s *storetest.Store, userID int) {
	s.PutProfile(science.HealthProfile{
		UserID:        userID,
		Gender:        science.GenderMale,
		DateOfBirth:   time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Height:        180,
		Weight:        85,
		TargetWeight:  80,
		ActivityLevel: science.ActivityModeratelyActive,
		Goal:          science.GoalLoseWeight,
	})
}

func TestRootHelp(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute help: %v", err)
	}
	if !strings.Contains(buf.String(), "--concurrency") {
		t.Errorf("help output missing --concurrency flag:\n%s", buf.String())
	}
}

func TestRootRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for positional args")
	}
}

func TestRunJob_PrintsSummary(t *testing.T) {
	s := storetest.New()
	putProfile(s, 1)
	putProfile(s, 2)

	buf := &bytes.Buffer{}
	if err := runJob(context.Background(), newTestJob(s), buf); err != nil {
		t.Fatalf("runJob: %v", err)
	}

	var sum recompute.Summary
	if err := json.Unmarshal(buf.Bytes(), &sum); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, buf.String())
	}
	if sum.TotalUsers != 2 || sum.SuccessCount != 2 || len(sum.Updates) != 2 {
		t.Errorf("summary = %+v, want 2 users updated", sum)
	}
	if sum.Updates[0].Reason != "Initial targets computed" {
		t.Errorf("reason = %q", sum.Updates[0].Reason)
	}
}

func TestRunJob_FailedUserIsError(t *testing.T) {
	s := storetest.New()
	putProfile(s, 1)
	putProfile(s, 2)
	s.ProfileErr[2] = errors.New("connection reset")

	buf := &bytes.Buffer{}
	err := runJob(context.Background(), newTestJob(s), buf)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 users failed") {
		t.Fatalf("err = %v, want 1 of 2 users failed", err)
	}
	var sum recompute.Summary
	if err := json.Unmarshal(buf.Bytes(), &sum); err != nil {
		t.Fatalf("summary not written on failure: %v", err)
	}
	if sum.SuccessCount != 1 || sum.ErrorCount != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunJob_CancelledStillPrints(t *testing.T) {
	s := storetest.New()
	putProfile(s, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := &bytes.Buffer{}
	if err := runJob(ctx, newTestJob(s), buf); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if buf.Len() == 0 {
		t.Error("expected partial summary output")
	}
}
