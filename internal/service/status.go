package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"garage-service/api"
	"garage-service/internal/lock"
	"garage-service/internal/models"
	"garage-service/pkg/response"
)

// authorizeBookingStatus applies the role rules for a booking status change.
// Staff and admins may force any status, mechanics may move their own
// bookings to in-progress or completed, customers may only cancel bookings
// that have not started.
func authorizeBookingStatus(booking *models.Booking, newStatus models.BookingStatus, actor models.Actor) error {
	switch actor.Role {
	case models.RoleAdmin, models.RoleStaff:
		return nil
	case models.RoleMechanic:
		if booking.MechanicID == nil || *booking.MechanicID != actor.MechanicID {
			return response.ErrForbidden
		}
		if newStatus != models.StatusInProgress && newStatus != models.StatusCompleted {
			return response.ErrInvalidTransition
		}
		if !models.CanTransition(booking.Status, newStatus) {
			return response.ErrInvalidTransition
		}
		return nil
	case models.RoleCustomer:
		if booking.CustomerID != actor.CustomerID {
			return response.ErrForbidden
		}
		if newStatus != models.StatusCancelled {
			return response.ErrForbidden
		}
		if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
			return response.ErrInvalidTransition
		}
		return nil
	default:
		return response.ErrForbidden
	}
}

// SetBookingStatus moves a booking to a new status subject to the actor's
// role. The role rules run once on the pre-lock read to fail fast, then again
// on a fresh read once the mechanic's schedule lock is held, since the booking
// can change between the first read and lock acquisition. The final write is
// guarded on the status observed under the lock. When the booking has a task
// the task is kept in step inside the same transaction.
func (s *Service) SetBookingStatus(ctx context.Context, bookingID, status string, actor models.Actor) (*api.BookingResponse, error) {
	const op = "service.SetBookingStatus"

	newStatus, err := models.ParseBookingStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: status %q: %w", op, status, response.ErrInvalidTransition)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: booking %s: %w", op, bookingID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := authorizeBookingStatus(booking, newStatus, actor); err != nil {
		return nil, fmt.Errorf("%s: booking %s, %s -> %s: %w", op, bookingID, booking.Status, newStatus, err)
	}

	if booking.MechanicID != nil {
		lockKey := lock.MechanicDateKey(*booking.MechanicID, booking.Date)
		token, locked, lerr := s.locker.Lock(ctx, lockKey, lockTTL)
		if lerr != nil {
			return nil, fmt.Errorf("%s: lock: %w", op, lerr)
		}
		if !locked {
			return nil, fmt.Errorf("%s: booking %s schedule is busy: %w", op, bookingID, response.ErrLocked)
		}

		defer func() {
			_ = s.locker.Unlock(ctx, lockKey, token)
		}()

		booking, err = s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := authorizeBookingStatus(booking, newStatus, actor); err != nil {
			return nil, fmt.Errorf("%s: booking %s, %s -> %s: %w", op, bookingID, booking.Status, newStatus, err)
		}
	}

	prior := booking.Status

	now := s.now()
	booking.Status = newStatus
	booking.UpdatedAt = now
	if newStatus == models.StatusCompleted && booking.CompletedAt == nil {
		completedAt := now
		booking.CompletedAt = &completedAt
	}

	var task *models.MechanicTask
	if booking.MechanicID != nil && (newStatus == models.StatusInProgress || newStatus == models.StatusCompleted) {
		task, err = s.store.GetTaskByBooking(ctx, booking.ID, *booking.MechanicID)
		if err != nil && !errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if task != nil {
			applyTaskStatus(task, newStatus, now)
		}
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

	if task != nil {
		if err := s.store.SaveTask(ctx, tx, task); err != nil {
			return nil, fmt.Errorf("%s: save task: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return bookingResponse(booking, task), nil
}

// SetTaskStatus moves a task through pending -> in-progress -> completed.
// The ref may be a task ID or a booking ID; when the booking has no task yet
// one is created on the fly. Moving to in-progress stamps the actual start
// time on first start, moving to completed stamps the end time when it was
// never set and completes the booking in the same transaction. The booking
// and task are re-read once the schedule lock is held so a change committed
// after the first read cannot be overwritten.
func (s *Service) SetTaskStatus(ctx context.Context, ref, status string, actor models.Actor) (*api.TaskResponse, error) {
	const op = "service.SetTaskStatus"

	newStatus, err := models.ParseBookingStatus(status)
	if err != nil || !newStatus.TaskStatus() {
		return nil, fmt.Errorf("%s: status %q: %w", op, status, response.ErrInvalidTransition)
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleStaff:
	case models.RoleMechanic:
		if newStatus == models.StatusPending {
			return nil, fmt.Errorf("%s: mechanics may only set in-progress or completed: %w", op, response.ErrInvalidTransition)
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	task, err := s.store.GetTask(ctx, ref)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var booking *models.Booking
	if task != nil {
		booking, err = s.store.GetBooking(ctx, task.BookingID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		booking, err = s.store.GetBooking(ctx, ref)
		if err != nil {
			if errors.Is(err, response.ErrNotFound) {
				return nil, fmt.Errorf("%s: task or booking %s: %w", op, ref, response.ErrNotFound)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var mechanicID string
	if actor.Role == models.RoleMechanic {
		if booking.MechanicID == nil || *booking.MechanicID != actor.MechanicID {
			return nil, fmt.Errorf("%s: booking %s: %w", op, booking.ID, response.ErrForbidden)
		}
		mechanicID = actor.MechanicID
	} else {
		if booking.MechanicID == nil {
			return nil, fmt.Errorf("%s: booking %s has no mechanic: %w", op, booking.ID, response.ErrNotFound)
		}
		mechanicID = *booking.MechanicID
	}

	if task != nil && task.MechanicID != mechanicID {
		return nil, fmt.Errorf("%s: task %s: %w", op, task.ID, response.ErrForbidden)
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

	// the pre-lock reads may be stale, re-read and re-check
	booking, err = s.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if actor.Role == models.RoleMechanic {
		if booking.MechanicID == nil || *booking.MechanicID != actor.MechanicID {
			return nil, fmt.Errorf("%s: booking %s: %w", op, booking.ID, response.ErrForbidden)
		}
		if !models.CanTransition(booking.Status, newStatus) {
			return nil, fmt.Errorf("%s: booking %s, %s -> %s: %w", op, booking.ID, booking.Status, newStatus, response.ErrInvalidTransition)
		}
	} else if booking.MechanicID == nil {
		return nil, fmt.Errorf("%s: booking %s has no mechanic: %w", op, booking.ID, response.ErrNotFound)
	} else {
		mechanicID = *booking.MechanicID
	}

	if task != nil {
		task, err = s.store.GetTask(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if task.MechanicID != mechanicID {
			return nil, fmt.Errorf("%s: task %s: %w", op, task.ID, response.ErrForbidden)
		}
	}

	now := s.now()

	if task == nil {
		task, err = s.ensureTask(ctx, booking, mechanicID, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if !models.CanTransition(task.Status, newStatus) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", op, task.Status, newStatus, response.ErrInvalidTransition)
	}

	applyTaskStatus(task, newStatus, now)

	prior := booking.Status
	syncBooking := newStatus == models.StatusInProgress || newStatus == models.StatusCompleted
	if syncBooking {
		booking.Status = newStatus
		booking.UpdatedAt = now
		if newStatus == models.StatusCompleted && booking.CompletedAt == nil {
			completedAt := now
			booking.CompletedAt = &completedAt
		}
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.store.SaveTask(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("%s: save task: %w", op, err)
	}

	if syncBooking {
		if err := s.store.UpdateBooking(ctx, tx, booking, prior); err != nil {
			return nil, fmt.Errorf("%s: update booking: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return taskResponse(task), nil
}

// ensureTask returns the booking's task for the mechanic, creating an
// unstarted one when the status update arrives before any explicit
// assignment created a task. A task with StartTime == EndTime has never
// been started.
func (s *Service) ensureTask(ctx context.Context, booking *models.Booking, mechanicID string, now time.Time) (*models.MechanicTask, error) {
	task, err := s.store.GetTaskByBooking(ctx, booking.ID, mechanicID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, response.ErrNotFound) {
		return nil, err
	}

	return &models.MechanicTask{
		ID:         uuid.NewString(),
		BookingID:  booking.ID,
		MechanicID: mechanicID,
		Status:     models.StatusPending,
		StartTime:  booking.Time,
		EndTime:    booking.Time,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// applyTaskStatus performs the stamping rules for a task status move: the
// first move to in-progress records the wall-clock start, completion records
// the wall-clock end when no end was ever set.
func applyTaskStatus(task *models.MechanicTask, newStatus models.BookingStatus, now time.Time) {
	if newStatus == models.StatusInProgress && !task.Started() {
		task.StartTime = models.TimeOfDayFrom(now)
	}
	if newStatus == models.StatusCompleted && task.EndTime <= task.StartTime {
		task.EndTime = models.TimeOfDayFrom(now)
	}
	task.Status = newStatus
	task.UpdatedAt = now
}
