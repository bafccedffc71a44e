package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"garage-service/api"
	"garage-service/internal/models"
	"garage-service/pkg/response"
)

// slotStep is the spacing between candidate start times offered to callers
// of CheckAvailability.
const slotStep = 30

// IsAvailable reports whether the mechanic can take the interval
// [start, end) on the given date: the interval must fit inside a single
// weekly template slot and must not overlap any active booking.
func (s *Service) IsAvailable(ctx context.Context, mechanicID string, date time.Time, start, end models.TimeOfDay) (bool, error) {
	return s.isAvailable(ctx, mechanicID, date, start, end, "")
}

// isAvailable is IsAvailable with one booking excluded from the conflict
// scan, so that re-running an assignment ignores the booking's own window.
func (s *Service) isAvailable(ctx context.Context, mechanicID string, date time.Time, start, end models.TimeOfDay, excludeBookingID string) (bool, error) {
	const op = "service.isAvailable"

	slots, err := s.store.GetMechanicAvailability(ctx, mechanicID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	day := int(date.Weekday())

	covered := false
	for _, slot := range slots {
		if slot.DayOfWeek != day {
			continue
		}
		if slot.StartTime <= start && slot.EndTime >= end {
			covered = true
			break
		}
	}
	if !covered {
		return false, nil
	}

	windows, err := s.store.ListActiveWindows(ctx, mechanicID, date)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, w := range windows {
		if w.BookingID == excludeBookingID {
			continue
		}
		if w.Overlaps(start, end) {
			return false, nil
		}
	}

	return true, nil
}

// CheckAvailability sweeps a date for bookable start times for the given
// service. With mechanicID set only that mechanic is considered and an
// inactive one is an error rather than an empty result, otherwise every
// active mechanic is swept and free mechanics are grouped per start time.
func (s *Service) CheckAvailability(ctx context.Context, date time.Time, serviceID string, mechanicID *string) ([]api.AvailableSlot, error) {
	const op = "service.CheckAvailability"

	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: service %s: %w", op, serviceID, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	duration := svc.Duration()

	var mechanics []models.Mechanic
	if mechanicID != nil {
		m, err := s.store.GetMechanic(ctx, *mechanicID)
		if err != nil {
			if errors.Is(err, response.ErrNotFound) {
				return nil, fmt.Errorf("%s: mechanic %s: %w", op, *mechanicID, response.ErrNotFound)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !m.Active {
			return nil, fmt.Errorf("%s: mechanic %s is inactive: %w", op, *mechanicID, response.ErrMechanicUnavailable)
		}
		mechanics = []models.Mechanic{*m}
	} else {
		mechanics, err = s.store.ListActiveMechanics(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	day := int(date.Weekday())

	free := make(map[models.TimeOfDay][]string)
	for _, m := range mechanics {
		slots, err := s.store.GetMechanicAvailability(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		windows, err := s.store.ListActiveWindows(ctx, m.ID, date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for _, slot := range slots {
			if slot.DayOfWeek != day {
				continue
			}

			for cur := slot.StartTime; cur.Add(duration) <= slot.EndTime; cur = cur.Add(slotStep) {
				end := cur.Add(duration)

				conflict := false
				for _, w := range windows {
					if w.Overlaps(cur, end) {
						conflict = true
						break
					}
				}
				if conflict {
					continue
				}

				// overlapping template slots may yield the same start twice
				if !slices.Contains(free[cur], m.ID) {
					free[cur] = append(free[cur], m.ID)
				}
			}
		}
	}

	times := make([]models.TimeOfDay, 0, len(free))
	for t := range free {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	out := make([]api.AvailableSlot, 0, len(times))
	for _, t := range times {
		ids := free[t]
		sort.Strings(ids)
		out = append(out, api.AvailableSlot{Time: t.String(), MechanicIDs: ids})
	}

	return out, nil
}
