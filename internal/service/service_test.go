package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-service/api"
	"garage-service/internal/lock"
	"garage-service/internal/models"
	"garage-service/internal/storage/memory"
	"garage-service/pkg/response"
)

// 2025-09-02 is a Tuesday.
const testDate = "2025-09-02"

var (
	staffActor    = models.Actor{UserID: "u-staff", Role: models.RoleStaff}
	mechanicActor = models.Actor{UserID: "u-mech", Role: models.RoleMechanic, MechanicID: "mech-1"}
	customerActor = models.Actor{UserID: "u-cust", Role: models.RoleCustomer, CustomerID: "cust-1"}
)

func newTestService(t *testing.T) (*Service, *memory.Storage) {
	t.Helper()

	store := memory.New()
	svc := NewService(store, lock.NewLocalLock())
	svc.now = func() time.Time {
		return time.Date(2025, 9, 2, 9, 30, 0, 0, time.UTC)
	}

	store.PutService(models.Service{
		ID: "svc-oil", Name: "Oil change", Price: 49.90, EstimatedTime: 45, InStock: true,
	})
	store.PutService(models.Service{
		ID: "svc-brakes", Name: "Brake inspection", Price: 89.00, InStock: true,
	})
	store.PutService(models.Service{
		ID: "svc-tuning", Name: "Engine tuning", Price: 299.00, EstimatedTime: 120, InStock: false,
	})
	store.PutMechanic(models.Mechanic{ID: "mech-1", Name: "Alice", Active: true})
	store.PutMechanic(models.Mechanic{ID: "mech-2", Name: "Bob", Active: true})
	store.PutMechanic(models.Mechanic{ID: "mech-idle", Name: "Carol", Active: false})

	// mech-1 works Tuesdays 09:00-17:00, mech-2 Tuesdays 09:00-11:00
	err := store.ReplaceMechanicAvailability(context.Background(), "mech-1", []models.AvailabilitySlot{
		{MechanicID: "mech-1", DayOfWeek: 2, StartTime: models.NewTimeOfDay(9, 0), EndTime: models.NewTimeOfDay(17, 0)},
	})
	require.NoError(t, err)

	err = store.ReplaceMechanicAvailability(context.Background(), "mech-2", []models.AvailabilitySlot{
		{MechanicID: "mech-2", DayOfWeek: 2, StartTime: models.NewTimeOfDay(9, 0), EndTime: models.NewTimeOfDay(11, 0)},
	})
	require.NoError(t, err)

	return svc, store
}

func createBooking(t *testing.T, svc *Service, serviceID, timeOfDay string) *api.BookingResponse {
	t.Helper()

	booking, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID: serviceID,
		VehicleID: "veh-1",
		Date:      testDate,
		Time:      timeOfDay,
	}, customerActor)
	require.NoError(t, err)

	return booking
}

func TestCreateBooking(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	assert.Equal(t, "B-1", booking.ID)
	assert.Equal(t, "cust-1", booking.CustomerID)
	assert.Equal(t, "pending", booking.Status)
	assert.Equal(t, "10:00:00", booking.Time)
	assert.Nil(t, booking.MechanicID)
	assert.Nil(t, booking.Task)
}

func TestCreateBooking_StaffForCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	booking, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID:  "svc-oil",
		VehicleID:  "veh-9",
		CustomerID: "cust-7",
		Date:       testDate,
		Time:       "11:00",
	}, staffActor)
	require.NoError(t, err)

	assert.Equal(t, "cust-7", booking.CustomerID)
}

func TestCreateBooking_StaffWithoutCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID: "svc-oil",
		VehicleID: "veh-9",
		Date:      testDate,
		Time:      "11:00",
	}, staffActor)

	assert.ErrorIs(t, err, response.ErrBadRequest)
}

func TestCreateBooking_ImmediateAssignment(t *testing.T) {
	svc, _ := newTestService(t)

	booking, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID:  "svc-oil",
		VehicleID:  "veh-1",
		CustomerID: "cust-1",
		MechanicID: "mech-1",
		Date:       testDate,
		Time:       "10:00",
	}, staffActor)
	require.NoError(t, err)

	assert.Equal(t, "confirmed", booking.Status)
	require.NotNil(t, booking.MechanicID)
	assert.Equal(t, "mech-1", *booking.MechanicID)
	require.NotNil(t, booking.Task)
	assert.Equal(t, "10:00:00", booking.Task.StartTime)
	assert.Equal(t, "10:45:00", booking.Task.EndTime)
}

func TestCreateBooking_CustomerCannotAssign(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID:  "svc-oil",
		VehicleID:  "veh-1",
		MechanicID: "mech-1",
		Date:       testDate,
		Time:       "10:00",
	}, customerActor)

	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestCreateBooking_OutOfStockService(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID: "svc-tuning",
		VehicleID: "veh-1",
		Date:      testDate,
		Time:      "10:00",
	}, customerActor)

	assert.ErrorIs(t, err, response.ErrServiceUnavailable)
}

func TestCreateBooking_UnknownService(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateBooking(context.Background(), &api.BookingCreateRequest{
		ServiceID: "svc-nope",
		VehicleID: "veh-1",
		Date:      testDate,
		Time:      "10:00",
	}, customerActor)

	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestGetBooking_Visibility(t *testing.T) {
	svc, _ := newTestService(t)

	booking := createBooking(t, svc, "svc-oil", "10:00")

	_, err := svc.GetBooking(context.Background(), booking.ID, customerActor)
	assert.NoError(t, err)

	_, err = svc.GetBooking(context.Background(), booking.ID, staffActor)
	assert.NoError(t, err)

	otherCustomer := models.Actor{UserID: "u-other", Role: models.RoleCustomer, CustomerID: "cust-2"}
	_, err = svc.GetBooking(context.Background(), booking.ID, otherCustomer)
	assert.ErrorIs(t, err, response.ErrForbidden)

	// not assigned to this booking
	_, err = svc.GetBooking(context.Background(), booking.ID, mechanicActor)
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestGetBooking_MechanicSeesOwnWithTask(t *testing.T) {
	svc, _ := newTestService(t)

	created := createBooking(t, svc, "svc-oil", "10:00")
	_, err := svc.AssignMechanic(context.Background(), created.ID, "mech-1", staffActor)
	require.NoError(t, err)

	booking, err := svc.GetBooking(context.Background(), created.ID, mechanicActor)
	require.NoError(t, err)
	require.NotNil(t, booking.Task)
	assert.Equal(t, "mech-1", booking.Task.MechanicID)
}

func TestGetBooking_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetBooking(context.Background(), "B-404", staffActor)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestReplaceAvailability(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.ReplaceAvailability(context.Background(), "mech-1", &api.AvailabilityUpdateRequest{
		Availability: []api.AvailabilitySlot{
			{DayOfWeek: 1, StartTime: "08:00", EndTime: "12:00"},
			{DayOfWeek: 3, StartTime: "13:00", EndTime: "18:00"},
		},
	}, staffActor)
	require.NoError(t, err)

	require.Len(t, resp.Slots, 2)
	assert.Equal(t, 1, resp.Slots[0].DayOfWeek)
	assert.Equal(t, "08:00:00", resp.Slots[0].StartTime)

	// the old Tuesday template is gone
	available, err := svc.IsAvailable(context.Background(), "mech-1",
		mustDate(t), models.NewTimeOfDay(10, 0), models.NewTimeOfDay(10, 45))
	require.NoError(t, err)
	assert.False(t, available)
}

func TestReplaceAvailability_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReplaceAvailability(context.Background(), "mech-1", &api.AvailabilityUpdateRequest{
		Availability: []api.AvailabilitySlot{{DayOfWeek: 7, StartTime: "08:00", EndTime: "12:00"}},
	}, staffActor)
	assert.ErrorIs(t, err, response.ErrBadRequest)

	_, err = svc.ReplaceAvailability(context.Background(), "mech-1", &api.AvailabilityUpdateRequest{
		Availability: []api.AvailabilitySlot{{DayOfWeek: 2, StartTime: "12:00", EndTime: "08:00"}},
	}, staffActor)
	assert.ErrorIs(t, err, response.ErrBadRequest)

	_, err = svc.ReplaceAvailability(context.Background(), "mech-1", &api.AvailabilityUpdateRequest{}, customerActor)
	assert.ErrorIs(t, err, response.ErrForbidden)
}

// staleReadStore lets a test commit a competing write between a flow's first
// booking read and its lock acquisition. The hook fires after the first
// GetBooking only, so the re-read under the lock sees the competing write.
type staleReadStore struct {
	*memory.Storage

	mu          sync.Mutex
	fired       bool
	onFirstRead func()
}

func (s *staleReadStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.Storage.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	fire := !s.fired
	s.fired = true
	s.mu.Unlock()

	if fire && s.onFirstRead != nil {
		s.onFirstRead()
	}

	return booking, nil
}

func mustDate(t *testing.T) time.Time {
	t.Helper()

	date, err := time.Parse("2006-01-02", testDate)
	require.NoError(t, err)

	return date
}
