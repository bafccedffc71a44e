// Package memory is an in-process implementation of the service store, used
// in tests and single-node setups without Postgres. Transactions are
// snapshot based: BeginTx serializes writers and copies the mutable state,
// Rollback restores the copy.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"garage-service/internal/models"
	"garage-service/internal/storage"
	"garage-service/pkg/response"
)

type Storage struct {
	txMu sync.Mutex // held for the lifetime of an open transaction
	mu   sync.RWMutex

	bookings     map[string]*models.Booking
	tasks        map[string]*models.MechanicTask
	services     map[string]*models.Service
	mechanics    map[string]*models.Mechanic
	availability map[string][]models.AvailabilitySlot

	seq int
}

func New() *Storage {
	return &Storage{
		bookings:     make(map[string]*models.Booking),
		tasks:        make(map[string]*models.MechanicTask),
		services:     make(map[string]*models.Service),
		mechanics:    make(map[string]*models.Mechanic),
		availability: make(map[string][]models.AvailabilitySlot),
	}
}

func (s *Storage) Close() error {
	return nil
}

// Seeding, for tests and fixtures. Services and mechanics have no write
// path through the service layer.

func (s *Storage) PutService(svc models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = &svc
}

func (s *Storage) PutMechanic(m models.Mechanic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mechanics[m.ID] = &m
}

// Transactions

type memTx struct {
	s    *Storage
	done bool

	bookings map[string]*models.Booking
	tasks    map[string]*models.MechanicTask
	seq      int
}

func (s *Storage) BeginTx(_ context.Context) (storage.Tx, error) {
	s.txMu.Lock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := &memTx{
		s:        s,
		bookings: make(map[string]*models.Booking, len(s.bookings)),
		tasks:    make(map[string]*models.MechanicTask, len(s.tasks)),
		seq:      s.seq,
	}
	for id, b := range s.bookings {
		tx.bookings[id] = copyBooking(b)
	}
	for id, t := range s.tasks {
		cp := *t
		tx.tasks[id] = &cp
	}

	return tx, nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	tx.done = true
	tx.s.txMu.Unlock()

	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true

	tx.s.mu.Lock()
	tx.s.bookings = tx.bookings
	tx.s.tasks = tx.tasks
	tx.s.seq = tx.seq
	tx.s.mu.Unlock()

	tx.s.txMu.Unlock()

	return nil
}

func (s *Storage) memTx(tx storage.Tx) (*memTx, error) {
	t, ok := tx.(*memTx)
	if !ok || t.s != s {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}
	if t.done {
		return nil, fmt.Errorf("tx already finished")
	}

	return t, nil
}

// Bookings

func (s *Storage) CreateBooking(_ context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	const op = "storage.memory.CreateBooking"

	if _, err := s.memTx(tx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	booking.ID = "B-" + strconv.Itoa(s.seq)
	s.bookings[booking.ID] = copyBooking(booking)

	return booking.ID, nil
}

func (s *Storage) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	const op = "storage.memory.GetBooking"

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: booking %s: %w", op, id, response.ErrNotFound)
	}

	return copyBooking(b), nil
}

// UpdateBooking overwrites the booking as long as the stored status still
// equals prior; a mismatch means another writer got there first.
func (s *Storage) UpdateBooking(_ context.Context, tx storage.Tx, booking *models.Booking, prior models.BookingStatus) error {
	const op = "storage.memory.UpdateBooking"

	if _, err := s.memTx(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[booking.ID]
	if !ok {
		return fmt.Errorf("%s: booking %s: %w", op, booking.ID, response.ErrNotFound)
	}
	if cur.Status != prior {
		return fmt.Errorf("%s: booking %s changed underneath: %w", op, booking.ID, response.ErrConcurrentConflict)
	}
	s.bookings[booking.ID] = copyBooking(booking)

	return nil
}

func (s *Storage) ListActiveWindows(_ context.Context, mechanicID string, date time.Time) ([]models.BookingWindow, error) {
	const op = "storage.memory.ListActiveWindows"

	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateKey(date)

	var windows []models.BookingWindow
	for _, b := range s.bookings {
		if b.MechanicID == nil || *b.MechanicID != mechanicID {
			continue
		}
		if b.Status == models.StatusCancelled || dateKey(b.Date) != day {
			continue
		}

		duration := 60
		if svc, ok := s.services[b.ServiceID]; ok {
			duration = svc.Duration()
		}

		windows = append(windows, models.BookingWindow{
			BookingID: b.ID,
			Start:     b.Time,
			End:       b.Time.Add(duration),
		})
	}

	return windows, nil
}

// Services and mechanics

func (s *Storage) GetService(_ context.Context, id string) (*models.Service, error) {
	const op = "storage.memory.GetService"

	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("%s: service %s: %w", op, id, response.ErrNotFound)
	}

	cp := *svc
	return &cp, nil
}

func (s *Storage) GetMechanic(_ context.Context, id string) (*models.Mechanic, error) {
	const op = "storage.memory.GetMechanic"

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mechanics[id]
	if !ok {
		return nil, fmt.Errorf("%s: mechanic %s: %w", op, id, response.ErrNotFound)
	}

	cp := *m
	return &cp, nil
}

func (s *Storage) ListActiveMechanics(_ context.Context) ([]models.Mechanic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mechanics []models.Mechanic
	for _, m := range s.mechanics {
		if m.Active {
			mechanics = append(mechanics, *m)
		}
	}

	return mechanics, nil
}

// Availability

func (s *Storage) GetMechanicAvailability(_ context.Context, mechanicID string) ([]models.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.availability[mechanicID]
	out := make([]models.AvailabilitySlot, len(slots))
	copy(out, slots)

	return out, nil
}

func (s *Storage) ReplaceMechanicAvailability(_ context.Context, mechanicID string, slots []models.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]models.AvailabilitySlot, len(slots))
	copy(cp, slots)
	s.availability[mechanicID] = cp

	return nil
}

// Tasks

func (s *Storage) GetTask(_ context.Context, id string) (*models.MechanicTask, error) {
	const op = "storage.memory.GetTask"

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%s: task %s: %w", op, id, response.ErrNotFound)
	}

	cp := *t
	return &cp, nil
}

func (s *Storage) GetTaskByBooking(_ context.Context, bookingID, mechanicID string) (*models.MechanicTask, error) {
	const op = "storage.memory.GetTaskByBooking"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.MechanicTask
	for _, t := range s.tasks {
		if t.BookingID != bookingID || t.MechanicID != mechanicID {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("%s: booking %s: %w", op, bookingID, response.ErrNotFound)
	}

	cp := *latest
	return &cp, nil
}

func (s *Storage) SaveTask(_ context.Context, tx storage.Tx, task *models.MechanicTask) error {
	const op = "storage.memory.SaveTask"

	if _, err := s.memTx(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp

	return nil
}

func copyBooking(b *models.Booking) *models.Booking {
	cp := *b
	if b.MechanicID != nil {
		v := *b.MechanicID
		cp.MechanicID = &v
	}
	if b.CompletedAt != nil {
		v := *b.CompletedAt
		cp.CompletedAt = &v
	}

	return &cp
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
