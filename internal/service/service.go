package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"garage-service/api"
	"garage-service/internal/lock"
	"garage-service/internal/models"
	"garage-service/internal/storage"
	"garage-service/pkg/response"
)

const lockTTL = 10 * time.Second

type Service struct {
	store  Store
	locker lock.Locker
	now    func() time.Time
}

func NewService(store Store, locker lock.Locker) *Service {
	return &Service{store: store, locker: locker, now: time.Now}
}

type Store interface {
	BeginTx(ctx context.Context) (storage.Tx, error)

	// Bookings
	CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// UpdateBooking writes the booking only while the stored status still
	// equals prior, returning ErrConcurrentConflict otherwise.
	UpdateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking, prior models.BookingStatus) error
	ListActiveWindows(ctx context.Context, mechanicID string, date time.Time) ([]models.BookingWindow, error)

	// Services and mechanics
	GetService(ctx context.Context, id string) (*models.Service, error)
	GetMechanic(ctx context.Context, id string) (*models.Mechanic, error)
	ListActiveMechanics(ctx context.Context) ([]models.Mechanic, error)

	// Availability
	GetMechanicAvailability(ctx context.Context, mechanicID string) ([]models.AvailabilitySlot, error)
	ReplaceMechanicAvailability(ctx context.Context, mechanicID string, slots []models.AvailabilitySlot) error

	// Tasks
	GetTask(ctx context.Context, id string) (*models.MechanicTask, error)
	GetTaskByBooking(ctx context.Context, bookingID, mechanicID string) (*models.MechanicTask, error)
	SaveTask(ctx context.Context, tx storage.Tx, task *models.MechanicTask) error
}

// Bookings

func (s *Service) CreateBooking(ctx context.Context, req *api.BookingCreateRequest, actor models.Actor) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date %q: %w", op, req.Date, response.ErrBadRequest)
	}

	bookingTime, err := models.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid time %q: %w", op, req.Time, response.ErrBadRequest)
	}

	var customerID string
	switch actor.Role {
	case models.RoleCustomer:
		customerID = actor.CustomerID
	case models.RoleAdmin, models.RoleStaff:
		if req.CustomerID == "" {
			return nil, fmt.Errorf("%s: customer_id is required for staff bookings: %w", op, response.ErrBadRequest)
		}
		customerID = req.CustomerID
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if req.MechanicID != "" && !actor.IsStaff() {
		return nil, fmt.Errorf("%s: only staff may assign a mechanic: %w", op, response.ErrForbidden)
	}

	svc, err := s.store.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: service %s: %w", op, req.ServiceID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !svc.InStock {
		return nil, fmt.Errorf("%s: service %s: %w", op, svc.ID, response.ErrServiceUnavailable)
	}

	now := s.now()
	booking := &models.Booking{
		CustomerID: customerID,
		ServiceID:  req.ServiceID,
		VehicleID:  req.VehicleID,
		Date:       date,
		Time:       bookingTime,
		Status:     models.StatusPending,
		Notes:      req.Notes,
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

	id, err := s.store.CreateBooking(ctx, tx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: create booking: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	if req.MechanicID != "" {
		return s.AssignMechanic(ctx, id, req.MechanicID, actor)
	}

	return bookingResponse(booking, nil), nil
}

func (s *Service) GetBooking(ctx context.Context, id string, actor models.Actor) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: booking %s: %w", op, id, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	isAssignedMechanic := actor.Role == models.RoleMechanic &&
		booking.MechanicID != nil && *booking.MechanicID == actor.MechanicID
	isOwner := actor.Role == models.RoleCustomer && booking.CustomerID == actor.CustomerID

	if !actor.IsStaff() && !isAssignedMechanic && !isOwner {
		return nil, fmt.Errorf("%s: booking %s: %w", op, id, response.ErrForbidden)
	}

	// the task view is staff/mechanic detail, customers see the booking only
	var task *models.MechanicTask
	if booking.MechanicID != nil && (actor.IsStaff() || isAssignedMechanic) {
		task, err = s.store.GetTaskByBooking(ctx, booking.ID, *booking.MechanicID)
		if err != nil && !errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return bookingResponse(booking, task), nil
}

// Mechanic availability

func (s *Service) GetAvailability(ctx context.Context, mechanicID string) (*api.AvailabilityResponse, error) {
	const op = "service.GetAvailability"

	if _, err := s.store.GetMechanic(ctx, mechanicID); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: mechanic %s: %w", op, mechanicID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := s.store.GetMechanicAvailability(ctx, mechanicID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.AvailabilityResponse{
		MechanicID: mechanicID,
		Slots:      make([]api.AvailabilitySlot, 0, len(slots)),
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, api.AvailabilitySlot{
			DayOfWeek: slot.DayOfWeek,
			StartTime: slot.StartTime.String(),
			EndTime:   slot.EndTime.String(),
		})
	}

	return resp, nil
}

// ReplaceAvailability swaps out a mechanic's entire weekly template. The
// update is a full delete-and-reinsert, never incremental.
func (s *Service) ReplaceAvailability(ctx context.Context, mechanicID string, req *api.AvailabilityUpdateRequest, actor models.Actor) (*api.AvailabilityResponse, error) {
	const op = "service.ReplaceAvailability"

	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if _, err := s.store.GetMechanic(ctx, mechanicID); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: mechanic %s: %w", op, mechanicID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots := make([]models.AvailabilitySlot, 0, len(req.Availability))
	for _, slot := range req.Availability {
		if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
			return nil, fmt.Errorf("%s: day_of_week %d out of range: %w", op, slot.DayOfWeek, response.ErrBadRequest)
		}

		start, err := models.ParseTimeOfDay(slot.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid start_time %q: %w", op, slot.StartTime, response.ErrBadRequest)
		}

		end, err := models.ParseTimeOfDay(slot.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid end_time %q: %w", op, slot.EndTime, response.ErrBadRequest)
		}

		if end <= start {
			return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrBadRequest)
		}

		slots = append(slots, models.AvailabilitySlot{
			MechanicID: mechanicID,
			DayOfWeek:  slot.DayOfWeek,
			StartTime:  start,
			EndTime:    end,
		})
	}

	if err := s.store.ReplaceMechanicAvailability(ctx, mechanicID, slots); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetAvailability(ctx, mechanicID)
}

// Response mapping

func bookingResponse(b *models.Booking, task *models.MechanicTask) *api.BookingResponse {
	resp := &api.BookingResponse{
		ID:          b.ID,
		CustomerID:  b.CustomerID,
		ServiceID:   b.ServiceID,
		VehicleID:   b.VehicleID,
		MechanicID:  b.MechanicID,
		Date:        b.Date.Format("2006-01-02"),
		Time:        b.Time.String(),
		Status:      string(b.Status),
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		CompletedAt: b.CompletedAt,
	}
	if task != nil {
		resp.Task = taskResponse(task)
	}

	return resp
}

func taskResponse(t *models.MechanicTask) *api.TaskResponse {
	return &api.TaskResponse{
		ID:         t.ID,
		BookingID:  t.BookingID,
		MechanicID: t.MechanicID,
		Status:     string(t.Status),
		StartTime:  t.StartTime.String(),
		EndTime:    t.EndTime.String(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
