package ack

import (
	"context"
	"time"

	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/store"
)

// Status is the metrics view: the latest targets and whether the user still
// has to acknowledge them.
type Status struct {
	Targets             store.ComputedTargets         `json:"targets"`
	NeedsAcknowledgment bool                          `json:"needs_acknowledgment"`
	Acknowledgement     *store.MetricsAcknowledgement `json:"acknowledgement"`
}

// Request identifies the metrics a client saw: the version and the
// computed_at timestamp it was served.
type Request struct {
	UserID     int
	Version    int
	ComputedAt string
}

type Service struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewService(s store.Store, log *logger.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: s, log: log.With("service", "MetricsAck"), now: now}
}

// Status returns NotFound when the user has never had targets computed.
func (s *Service) Status(ctx context.Context, userID int) (Status, error) {
	latest, err := s.store.LatestTargets(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if latest == nil {
		return Status{}, apperr.NotFound("no metrics computed yet")
	}
	a, err := s.store.FindAcknowledgement(ctx, userID, latest.Version)
	if err != nil {
		return Status{}, err
	}
	return Status{Targets: *latest, NeedsAcknowledgment: a == nil, Acknowledgement: a}, nil
}

// Acknowledge marks the latest targets as seen. Only the latest version can
// be acknowledged, and computed_at must agree with the stored timestamp to
// the second. Repeating a successful call returns the original record.
func (s *Service) Acknowledge(ctx context.Context, req Request) (*store.MetricsAcknowledgement, error) {
	computedAt, err := validate(req)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestTargets(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, apperr.NotFound("metrics not found for the specified timestamp and version")
	}
	if req.Version != latest.Version || !SameSecond(computedAt, latest.ComputedAt) {
		s.log.Debug("acknowledgement mismatch", "user_id", req.UserID, "version", req.Version, "latest_version", latest.Version)
		return nil, apperr.NotFound("metrics not found for the specified timestamp and version").WithDetails(map[string]any{
			"latest_version":     latest.Version,
			"latest_computed_at": latest.ComputedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	ackAt := s.now().UTC()
	if ackAt.Before(latest.ComputedAt) {
		ackAt = latest.ComputedAt
	}
	a, err := s.store.UpsertAcknowledgement(ctx, store.MetricsAcknowledgement{
		UserID:            req.UserID,
		Version:           latest.Version,
		MetricsComputedAt: latest.ComputedAt,
		AcknowledgedAt:    ackAt,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("metrics acknowledged", "user_id", req.UserID, "version", a.Version)
	return a, nil
}

func validate(req Request) (time.Time, error) {
	var fields []apperr.FieldError
	if req.Version <= 0 {
		fields = append(fields, apperr.Field("version", "must be a positive integer"))
	}
	var computedAt time.Time
	if req.ComputedAt == "" {
		fields = append(fields, apperr.Field("computed_at", "is required"))
	} else {
		t, err := ParseTimestamp(req.ComputedAt)
		if err != nil {
			fields = append(fields, apperr.Field("computed_at", "%s", err.Error()))
		}
		computedAt = t
	}
	if len(fields) > 0 {
		return time.Time{}, apperr.Validation(fields...)
	}
	return computedAt, nil
}
