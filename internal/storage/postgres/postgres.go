package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"garage-service/internal/models"
	"garage-service/internal/storage"
	"garage-service/pkg/response"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// BeginTx opens a serializable transaction. Serialization failures surface
// as ErrConcurrentConflict through mapErr.
func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	const op = "storage.postgres.BeginTx"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tx, nil
}

func pgTx(tx storage.Tx) (*sql.Tx, error) {
	t, ok := tx.(*sql.Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}

	return t, nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return response.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "40001" {
		return response.ErrConcurrentConflict
	}

	return err
}

// Bookings

func (s *Storage) CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	const op = "storage.postgres.CreateBooking"

	t, err := pgTx(tx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var mechanicID sql.NullString
	if booking.MechanicID != nil {
		mechanicID = sql.NullString{String: *booking.MechanicID, Valid: true}
	}

	var completedAt sql.NullTime
	if booking.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *booking.CompletedAt, Valid: true}
	}

	err = t.QueryRowContext(ctx, `
		INSERT INTO bookings
			(customer_id, service_id, vehicle_id, mechanic_id, booking_date,
			 booking_time, status, notes, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		booking.CustomerID, booking.ServiceID, booking.VehicleID, mechanicID,
		booking.Date, int(booking.Time), string(booking.Status), booking.Notes,
		booking.CreatedAt, booking.UpdatedAt, completedAt,
	).Scan(&booking.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return booking.ID, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	var (
		b           models.Booking
		mechanicID  sql.NullString
		bookingTime int
		status      string
		completedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, service_id, vehicle_id, mechanic_id,
		       booking_date, booking_time, status, notes,
		       created_at, updated_at, completed_at
		FROM bookings
		WHERE id = $1`, id,
	).Scan(&b.ID, &b.CustomerID, &b.ServiceID, &b.VehicleID, &mechanicID,
		&b.Date, &bookingTime, &status, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	if mechanicID.Valid {
		b.MechanicID = &mechanicID.String
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	b.Time = models.TimeOfDay(bookingTime)
	b.Status = models.BookingStatus(status)

	return &b, nil
}

// UpdateBooking overwrites the booking as long as the stored status still
// equals prior; a mismatch means another writer got there first.
func (s *Storage) UpdateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking, prior models.BookingStatus) error {
	const op = "storage.postgres.UpdateBooking"

	t, err := pgTx(tx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var mechanicID sql.NullString
	if booking.MechanicID != nil {
		mechanicID = sql.NullString{String: *booking.MechanicID, Valid: true}
	}

	var completedAt sql.NullTime
	if booking.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *booking.CompletedAt, Valid: true}
	}

	res, err := t.ExecContext(ctx, `
		UPDATE bookings
		SET mechanic_id = $2, booking_date = $3, booking_time = $4,
		    status = $5, notes = $6, updated_at = $7, completed_at = $8
		WHERE id = $1 AND status = $9`,
		booking.ID, mechanicID, booking.Date, int(booking.Time),
		string(booking.Status), booking.Notes, booking.UpdatedAt, completedAt,
		string(prior),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		var cur string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = $1`, booking.ID).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: booking %s: %w", op, booking.ID, response.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: booking %s changed underneath: %w", op, booking.ID, response.ErrConcurrentConflict)
	}

	return nil
}

// ListActiveWindows returns the occupied intervals of every non-cancelled
// booking for the mechanic on the date, with each window's end computed from
// the booked service's estimated time.
func (s *Storage) ListActiveWindows(ctx context.Context, mechanicID string, date time.Time) ([]models.BookingWindow, error) {
	const op = "storage.postgres.ListActiveWindows"

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.booking_time, COALESCE(NULLIF(s.estimated_time, 0), 60)
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		WHERE b.mechanic_id = $1 AND b.booking_date = $2 AND b.status <> 'cancelled'`,
		mechanicID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var windows []models.BookingWindow
	for rows.Next() {
		var (
			w        models.BookingWindow
			start    int
			duration int
		)
		if err := rows.Scan(&w.BookingID, &start, &duration); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		w.Start = models.TimeOfDay(start)
		w.End = w.Start.Add(duration)
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return windows, nil
}

// Services and mechanics

func (s *Storage) GetService(ctx context.Context, id string) (*models.Service, error) {
	const op = "storage.postgres.GetService"

	var svc models.Service

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, estimated_time, in_stock
		FROM services
		WHERE id = $1`, id,
	).Scan(&svc.ID, &svc.Name, &svc.Price, &svc.EstimatedTime, &svc.InStock)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return &svc, nil
}

func (s *Storage) GetMechanic(ctx context.Context, id string) (*models.Mechanic, error) {
	const op = "storage.postgres.GetMechanic"

	var m models.Mechanic

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active
		FROM mechanics
		WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Active)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return &m, nil
}

func (s *Storage) ListActiveMechanics(ctx context.Context) ([]models.Mechanic, error) {
	const op = "storage.postgres.ListActiveMechanics"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active
		FROM mechanics
		WHERE active
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var mechanics []models.Mechanic
	for rows.Next() {
		var m models.Mechanic
		if err := rows.Scan(&m.ID, &m.Name, &m.Active); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		mechanics = append(mechanics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return mechanics, nil
}

// Availability

func (s *Storage) GetMechanicAvailability(ctx context.Context, mechanicID string) ([]models.AvailabilitySlot, error) {
	const op = "storage.postgres.GetMechanicAvailability"

	rows, err := s.db.QueryContext(ctx, `
		SELECT mechanic_id, day_of_week, start_time, end_time
		FROM mechanic_availability
		WHERE mechanic_id = $1
		ORDER BY day_of_week, start_time`, mechanicID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var slots []models.AvailabilitySlot
	for rows.Next() {
		var (
			slot       models.AvailabilitySlot
			start, end int
		)
		if err := rows.Scan(&slot.MechanicID, &slot.DayOfWeek, &start, &end); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slot.StartTime = models.TimeOfDay(start)
		slot.EndTime = models.TimeOfDay(end)
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// ReplaceMechanicAvailability replaces the mechanic's whole weekly template
// in one transaction. Readers never see a partially applied template.
func (s *Storage) ReplaceMechanicAvailability(ctx context.Context, mechanicID string, slots []models.AvailabilitySlot) error {
	const op = "storage.postgres.ReplaceMechanicAvailability"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mechanic_availability WHERE mechanic_id = $1`, mechanicID,
	); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}

	for _, slot := range slots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mechanic_availability (mechanic_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3, $4)`,
			mechanicID, slot.DayOfWeek, int(slot.StartTime), int(slot.EndTime),
		); err != nil {
			return fmt.Errorf("%s: %w", op, mapErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return nil
}

// Tasks

func (s *Storage) GetTask(ctx context.Context, id string) (*models.MechanicTask, error) {
	const op = "storage.postgres.GetTask"

	task, err := scanTask(s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, mechanic_id, status, start_time, end_time,
		       created_at, updated_at
		FROM mechanic_tasks
		WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return task, nil
}

func (s *Storage) GetTaskByBooking(ctx context.Context, bookingID, mechanicID string) (*models.MechanicTask, error) {
	const op = "storage.postgres.GetTaskByBooking"

	task, err := scanTask(s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, mechanic_id, status, start_time, end_time,
		       created_at, updated_at
		FROM mechanic_tasks
		WHERE booking_id = $1 AND mechanic_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, bookingID, mechanicID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return task, nil
}

// SaveTask inserts the task or updates it in place when the ID exists.
func (s *Storage) SaveTask(ctx context.Context, tx storage.Tx, task *models.MechanicTask) error {
	const op = "storage.postgres.SaveTask"

	t, err := pgTx(tx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := t.ExecContext(ctx, `
		INSERT INTO mechanic_tasks
			(id, booking_id, mechanic_id, status, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    updated_at = EXCLUDED.updated_at`,
		task.ID, task.BookingID, task.MechanicID, string(task.Status),
		int(task.StartTime), int(task.EndTime), task.CreatedAt, task.UpdatedAt,
	); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return nil
}

func scanTask(row *sql.Row) (*models.MechanicTask, error) {
	var (
		task       models.MechanicTask
		status     string
		start, end int
	)

	err := row.Scan(&task.ID, &task.BookingID, &task.MechanicID, &status,
		&start, &end, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.Status = models.BookingStatus(status)
	task.StartTime = models.TimeOfDay(start)
	task.EndTime = models.TimeOfDay(end)

	return &task, nil
}
