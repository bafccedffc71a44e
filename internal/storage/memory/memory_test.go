package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-service/internal/models"
	"garage-service/pkg/response"
)

func testBooking(at models.TimeOfDay) *models.Booking {
	now := time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)

	return &models.Booking{
		CustomerID: "cust-1",
		ServiceID:  "svc-oil",
		VehicleID:  "veh-1",
		Date:       time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
		Time:       at,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateBooking_SequentialIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	first, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	second, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(11, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "B-1", first)
	assert.Equal(t, "B-2", second)
}

func TestRollback_RestoresState(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	id, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = store.GetBooking(ctx, id)
	assert.ErrorIs(t, err, response.ErrNotFound)

	// the sequence counter rolls back too
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	id, err = store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "B-1", id)
}

func TestRollback_AfterCommitIsNoop(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	id, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	_, err = store.GetBooking(ctx, id)
	assert.NoError(t, err)
}

func TestGetBooking_ReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	id, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := store.GetBooking(ctx, id)
	require.NoError(t, err)

	got.Status = models.StatusCancelled

	again, err := store.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
}

func TestUpdateBooking_StatusGuard(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	id, err := store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := store.GetBooking(ctx, id)
	require.NoError(t, err)
	got.Status = models.StatusConfirmed

	// a stale expectation of the stored status is rejected
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	err = store.UpdateBooking(ctx, tx, got, models.StatusCancelled)
	assert.ErrorIs(t, err, response.ErrConcurrentConflict)
	require.NoError(t, tx.Rollback())

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateBooking(ctx, tx, got, models.StatusPending))
	require.NoError(t, tx.Commit())

	again, err := store.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, again.Status)
}

func TestListActiveWindows(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.PutService(models.Service{ID: "svc-oil", EstimatedTime: 45, InStock: true})

	mechID := "mech-1"

	assigned := testBooking(models.NewTimeOfDay(10, 0))
	assigned.MechanicID = &mechID
	assigned.Status = models.StatusConfirmed

	cancelled := testBooking(models.NewTimeOfDay(12, 0))
	cancelled.MechanicID = &mechID
	cancelled.Status = models.StatusCancelled

	unassigned := testBooking(models.NewTimeOfDay(14, 0))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	for _, b := range []*models.Booking{assigned, cancelled, unassigned} {
		_, err = store.CreateBooking(ctx, tx, b)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	windows, err := store.ListActiveWindows(ctx, mechID, assigned.Date)
	require.NoError(t, err)

	require.Len(t, windows, 1)
	assert.Equal(t, assigned.ID, windows[0].BookingID)
	assert.Equal(t, models.NewTimeOfDay(10, 0), windows[0].Start)
	assert.Equal(t, models.NewTimeOfDay(10, 45), windows[0].End)
}

func TestSaveTask_Upsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	task := &models.MechanicTask{
		ID:         "t-1",
		BookingID:  "B-1",
		MechanicID: "mech-1",
		Status:     models.StatusPending,
		StartTime:  models.NewTimeOfDay(10, 0),
		EndTime:    models.NewTimeOfDay(10, 45),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveTask(ctx, tx, task))
	require.NoError(t, tx.Commit())

	task.Status = models.StatusInProgress

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveTask(ctx, tx, task))
	require.NoError(t, tx.Commit())

	got, err := store.GetTask(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)

	byBooking, err := store.GetTaskByBooking(ctx, "B-1", "mech-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", byBooking.ID)

	_, err = store.GetTaskByBooking(ctx, "B-1", "mech-2")
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestTxRequired(t *testing.T) {
	store := New()
	other := New()
	ctx := context.Background()

	tx, err := other.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	// a tx from another store instance is rejected
	_, err = store.CreateBooking(ctx, tx, testBooking(models.NewTimeOfDay(10, 0)))
	assert.Error(t, err)
}
