package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-service/internal/lock"
	"garage-service/internal/models"
	"garage-service/pkg/response"
)

func TestAssignMechanic(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	assigned, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	require.NoError(t, err)

	assert.Equal(t, "confirmed", assigned.Status)
	require.NotNil(t, assigned.MechanicID)
	assert.Equal(t, "mech-1", *assigned.MechanicID)

	require.NotNil(t, assigned.Task)
	assert.Equal(t, "pending", assigned.Task.Status)
	assert.Equal(t, "10:00:00", assigned.Task.StartTime)
	assert.Equal(t, "10:45:00", assigned.Task.EndTime)
	assert.NotEmpty(t, assigned.Task.ID)
}

func TestAssignMechanic_OverlapRejected(t *testing.T) {
	svc, _ := newTestService(t)

	first := createBooking(t, svc, "svc-oil", "10:00")
	_, err := svc.AssignMechanic(context.Background(), first.ID, "mech-1", staffActor)
	require.NoError(t, err)

	// 10:30-11:15 overlaps the first booking's 10:00-10:45 window
	second := createBooking(t, svc, "svc-oil", "10:30")
	_, err = svc.AssignMechanic(context.Background(), second.ID, "mech-1", staffActor)
	assert.ErrorIs(t, err, response.ErrMechanicUnavailable)

	// 10:45 starts exactly where the first booking ends
	third := createBooking(t, svc, "svc-oil", "10:45")
	assigned, err := svc.AssignMechanic(context.Background(), third.ID, "mech-1", staffActor)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", assigned.Status)
}

func TestAssignMechanic_DefaultDuration(t *testing.T) {
	svc, _ := newTestService(t)

	// svc-brakes has no estimated time, the window defaults to 60 minutes
	booking := createBooking(t, svc, "svc-brakes", "10:00")
	assigned, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	require.NoError(t, err)

	assert.Equal(t, "11:00:00", assigned.Task.EndTime)
}

func TestAssignMechanic_OutsideTemplate(t *testing.T) {
	svc, _ := newTestService(t)

	// mech-2 works until 11:00, a 45 minute job at 10:30 does not fit
	booking := createBooking(t, svc, "svc-oil", "10:30")
	_, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-2", staffActor)
	assert.ErrorIs(t, err, response.ErrMechanicUnavailable)
}

func TestAssignMechanic_ForbiddenForNonStaff(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	_, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", customerActor)
	assert.ErrorIs(t, err, response.ErrForbidden)

	_, err = svc.AssignMechanic(context.Background(), booking.ID, "mech-1", mechanicActor)
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestAssignMechanic_TerminalBooking(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")
	_, err := svc.SetBookingStatus(context.Background(), booking.ID, "cancelled", staffActor)
	require.NoError(t, err)

	_, err = svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
}

func TestAssignMechanic_InactiveMechanic(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	_, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-idle", staffActor)
	assert.ErrorIs(t, err, response.ErrMechanicUnavailable)
}

func TestAssignMechanic_UnknownBookingOrMechanic(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AssignMechanic(context.Background(), "B-404", "mech-1", staffActor)
	assert.ErrorIs(t, err, response.ErrNotFound)

	booking := createBooking(t, svc, "svc-oil", "10:00")
	_, err = svc.AssignMechanic(context.Background(), booking.ID, "mech-404", staffActor)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

// Re-running an assignment must not conflict with the booking's own window.
func TestAssignMechanic_RerunSameMechanic(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	_, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	require.NoError(t, err)

	assigned, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", assigned.Status)
}

func TestAssignMechanic_SchedulesNeverOverlap(t *testing.T) {
	svc, store := newTestService(t)

	times := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for _, at := range times {
		booking := createBooking(t, svc, "svc-oil", at)
		_, err := svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
		if err != nil {
			assert.ErrorIs(t, err, response.ErrMechanicUnavailable)
		}
	}

	windows, err := store.ListActiveWindows(context.Background(), "mech-1", mustDate(t))
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	for i, a := range windows {
		for j, b := range windows {
			if i == j {
				continue
			}
			assert.False(t, a.Overlaps(b.Start, b.End),
				"windows %v and %v overlap", a, b)
		}
	}
}

func TestAssignMechanic_CancelledConcurrently(t *testing.T) {
	svc, store := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	// an unassigned booking is cancelled without any schedule lock, so the
	// cancellation can commit after the assignment flow read the booking but
	// before it acquired the mechanic's lock
	rs := &staleReadStore{Storage: store}
	racing := NewService(rs, svc.locker)
	racing.now = svc.now
	rs.onFirstRead = func() {
		_, err := svc.SetBookingStatus(context.Background(), booking.ID, "cancelled", customerActor)
		require.NoError(t, err)
	}

	_, err := racing.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)

	got, err := store.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Nil(t, got.MechanicID)

	_, err = store.GetTaskByBooking(context.Background(), booking.ID, "mech-1")
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestAssignMechanic_LockHeld(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	locker := lock.NewLocalLock()
	svc.locker = locker

	key := lock.MechanicDateKey("mech-1", mustDate(t))
	token, held, err := locker.Lock(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	assert.ErrorIs(t, err, response.ErrLocked)

	require.NoError(t, locker.Unlock(context.Background(), key, token))

	_, err = svc.AssignMechanic(context.Background(), booking.ID, "mech-1", staffActor)
	assert.NoError(t, err)
}
