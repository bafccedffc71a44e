package api

import "time"

type BookingCreateRequest struct {
	ServiceID  string `json:"service_id"`
	VehicleID  string `json:"vehicle_id"`
	CustomerID string `json:"customer_id,omitempty"` // staff/admin booking on behalf of a customer
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes,omitempty"`
	MechanicID string `json:"mechanic_id,omitempty"` // staff/admin immediate assignment
}

type BookingResponse struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	ServiceID   string        `json:"service_id"`
	VehicleID   string        `json:"vehicle_id"`
	MechanicID  *string       `json:"mechanic_id,omitempty"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Status      string        `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Task        *TaskResponse `json:"task,omitempty"`
}

type TaskResponse struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	MechanicID string    `json:"mechanic_id"`
	Status     string    `json:"status"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AssignMechanicRequest struct {
	MechanicID string `json:"mechanic_id"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type AvailabilitySlot struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AvailabilityUpdateRequest struct {
	Availability []AvailabilitySlot `json:"availability"`
}

type AvailabilityResponse struct {
	MechanicID string             `json:"mechanic_id"`
	Slots      []AvailabilitySlot `json:"availability"`
}

// AvailableSlot is one bookable start time on a date, with the mechanics
// free to take it.
type AvailableSlot struct {
	Time        string   `json:"time"`
	MechanicIDs []string `json:"mechanic_ids"`
}
