package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service provides business logic for delivery records
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new service
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns the delivery record of an order
func (s *Service) Get(ctx context.Context, leadID string) (*Record, error) {
	return s.repo.GetByLeadID(ctx, leadID)
}

// Schedule creates the delivery record of an order
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*Record, error) {
	now := s.now()
	rec := &Record{
		LeadID:         req.LeadID,
		WarehouseID:    req.WarehouseID,
		Status:         StatusScheduled,
		ScheduledDate:  req.ScheduledDate,
		DriverName:     req.DriverName,
		DriverPhone:    req.DriverPhone,
		VehicleNumber:  req.VehicleNumber,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Create(ctx, rec)
		if err != nil {
			return fmt.Errorf("create delivery record: %w", err)
		}
		rec.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery scheduled", slog.String("lead_id", rec.LeadID), slog.Int64("warehouse_id", rec.WarehouseID))
	return rec, nil
}

// Assign edits driver, vehicle and tracking details
func (s *Service) Assign(ctx context.Context, leadID string, a Assignment) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		return rec.Assign(a, now)
	})
}

// Dispatch marks the delivery as left the warehouse
func (s *Service) Dispatch(ctx context.Context, leadID string, a Assignment) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		if err := rec.Dispatch(now); err != nil {
			return err
		}
		return rec.Assign(a, now)
	})
}

// MarkInTransit marks the delivery as on the road
func (s *Service) MarkInTransit(ctx context.Context, leadID string) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		return rec.MarkInTransit(now)
	})
}

// MarkDelivered completes the delivery
func (s *Service) MarkDelivered(ctx context.Context, leadID, receivedBy string) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		return rec.Deliver(receivedBy, now)
	})
}

// MarkFailed records a failed attempt
func (s *Service) MarkFailed(ctx context.Context, leadID, reason string) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		return rec.Fail(reason, now)
	})
}

// Cancel cancels the delivery
func (s *Service) Cancel(ctx context.Context, leadID, reason string) (*Record, error) {
	return s.mutate(ctx, leadID, func(rec *Record, now time.Time) error {
		return rec.Cancel(reason, now)
	})
}

func (s *Service) mutate(ctx context.Context, leadID string, apply func(*Record, time.Time) error) (*Record, error) {
	var out *Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, leadID)
		if err != nil {
			return err
		}
		from := rec.Status
		if err := apply(rec, s.now()); err != nil {
			return err
		}
		if err := tx.Update(ctx, rec.ID, recordUpdates(rec)); err != nil {
			return fmt.Errorf("update delivery record: %w", err)
		}
		if from != rec.Status {
			s.logger.Info("delivery status changed",
				slog.String("lead_id", leadID),
				slog.String("from", string(from)),
				slog.String("to", string(rec.Status)))
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
