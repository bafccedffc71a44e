package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"garage-service/api"
	"garage-service/internal/lock"
	"garage-service/internal/models"
	"garage-service/pkg/response"
)

// AssignMechanic attaches a mechanic to a booking after verifying the
// mechanic's weekly template covers the service window and no other active
// booking of theirs overlaps it. On success the booking moves to confirmed
// and a pending task spanning the window is created. The availability check
// and the write happen under a per-mechanic-per-date lock.
func (s *Service) AssignMechanic(ctx context.Context, bookingID, mechanicID string, actor models.Actor) (*api.BookingResponse, error) {
	const op = "service.AssignMechanic"

	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: booking %s: %w", op, bookingID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if booking.Status.Terminal() {
		return nil, fmt.Errorf("%s: booking %s is %s: %w", op, booking.ID, booking.Status, response.ErrInvalidTransition)
	}

	mechanic, err := s.store.GetMechanic(ctx, mechanicID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: mechanic %s: %w", op, mechanicID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !mechanic.Active {
		return nil, fmt.Errorf("%s: mechanic %s is inactive: %w", op, mechanicID, response.ErrMechanicUnavailable)
	}

	svc, err := s.store.GetService(ctx, booking.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := lock.MechanicDateKey(mechanicID, booking.Date)
	token, locked, err := s.locker.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: mechanic %s schedule is busy: %w", op, mechanicID, response.ErrLocked)
	}

	defer func() {
		_ = s.locker.Unlock(ctx, lockKey, token)
	}()

	// the pre-lock read may be stale, a cancellation can commit between the
	// first read and lock acquisition
	booking, err = s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("%s: booking %s is %s: %w", op, booking.ID, booking.Status, response.ErrInvalidTransition)
	}

	start := booking.Time
	end := start.Add(svc.Duration())

	available, err := s.isAvailable(ctx, mechanicID, booking.Date, start, end, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !available {
		return nil, fmt.Errorf("%s: mechanic %s on %s: %w",
			op, mechanicID, booking.Date.Format("2006-01-02"), response.ErrMechanicUnavailable)
	}

	now := s.now()
	prior := booking.Status
	booking.MechanicID = &mechanicID
	booking.Status = models.StatusConfirmed
	booking.UpdatedAt = now

	task := &models.MechanicTask{
		ID:         uuid.NewString(),
		BookingID:  booking.ID,
		MechanicID: mechanicID,
		Status:     models.StatusPending,
		StartTime:  start,
		EndTime:    end,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.store.UpdateBooking(ctx, tx, booking, prior); err != nil {
		return nil, fmt.Errorf("%s: update booking: %w", op, err)
	}

	if err := s.store.SaveTask(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("%s: save task: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return bookingResponse(booking, task), nil
}
