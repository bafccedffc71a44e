package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS mechanics (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS services (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		price          NUMERIC(10, 2) NOT NULL DEFAULT 0,
		estimated_time INTEGER NOT NULL DEFAULT 60,
		in_stock       BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE SEQUENCE IF NOT EXISTS booking_id_seq`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id           TEXT PRIMARY KEY DEFAULT 'B-' || nextval('booking_id_seq'),
		customer_id  TEXT NOT NULL,
		service_id   TEXT NOT NULL REFERENCES services (id),
		vehicle_id   TEXT NOT NULL,
		mechanic_id  TEXT REFERENCES mechanics (id),
		booking_date DATE NOT NULL,
		booking_time INTEGER NOT NULL,
		status       TEXT NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_mechanic_date
		ON bookings (mechanic_id, booking_date)`,

	`CREATE TABLE IF NOT EXISTS mechanic_tasks (
		id          TEXT PRIMARY KEY,
		booking_id  TEXT NOT NULL REFERENCES bookings (id),
		mechanic_id TEXT NOT NULL REFERENCES mechanics (id),
		status      TEXT NOT NULL,
		start_time  INTEGER NOT NULL,
		end_time    INTEGER NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_mechanic_tasks_booking
		ON mechanic_tasks (booking_id, mechanic_id)`,

	`CREATE TABLE IF NOT EXISTS mechanic_availability (
		id          SERIAL PRIMARY KEY,
		mechanic_id TEXT NOT NULL REFERENCES mechanics (id),
		day_of_week SMALLINT NOT NULL,
		start_time  INTEGER NOT NULL,
		end_time    INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_mechanic_availability_mechanic
		ON mechanic_availability (mechanic_id)`,
}

// Migrate applies the schema at startup. All statements are idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
