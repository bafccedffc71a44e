package models

import (
	"fmt"
	"time"
)

// TimeOfDay is a clock time within a single day, stored as minutes since
// midnight. Booking times and availability windows never cross midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "15:04" and "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
	}

	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func TimeOfDayFrom(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:00", int(t)/60, int(t)%60)
}

// Booking is a scheduled service appointment. MechanicID is nil until the
// booking is confirmed by an assignment.
type Booking struct {
	ID          string
	CustomerID  string
	ServiceID   string
	VehicleID   string
	MechanicID  *string
	Date        time.Time
	Time        TimeOfDay
	Status      BookingStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// MechanicTask is the mechanic-facing work record of an assigned booking,
// one per (booking, mechanic) pair.
type MechanicTask struct {
	ID         string
	BookingID  string
	MechanicID string
	Status     BookingStatus
	StartTime  TimeOfDay
	EndTime    TimeOfDay
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Started reports whether the task's start time has been stamped. A task
// created without an explicit assignment carries StartTime == EndTime until
// the mechanic first moves it to in-progress.
func (t *MechanicTask) Started() bool {
	return t.StartTime != t.EndTime
}

// AvailabilitySlot is a recurring weekly window during which a mechanic is
// schedulable. DayOfWeek follows time.Weekday: 0 = Sunday.
type AvailabilitySlot struct {
	MechanicID string
	DayOfWeek  int
	StartTime  TimeOfDay
	EndTime    TimeOfDay
}

// BookingWindow is the occupied interval of an active booking, used for
// conflict checks. End is Start plus the booked service's estimated time.
type BookingWindow struct {
	BookingID string
	Start     TimeOfDay
	End       TimeOfDay
}

// Overlaps reports a strict interval overlap with [start, end). Touching
// endpoints do not overlap.
func (w BookingWindow) Overlaps(start, end TimeOfDay) bool {
	return w.Start < end && w.End > start
}

type Service struct {
	ID            string
	Name          string
	Price         float64
	EstimatedTime int // minutes; 0 means unspecified
	InStock       bool
}

// Duration returns the service's estimated time in minutes, defaulting to 60
// when the record leaves it unspecified.
func (s *Service) Duration() int {
	if s.EstimatedTime <= 0 {
		return 60
	}

	return s.EstimatedTime
}

type Mechanic struct {
	ID     string
	Name   string
	Active bool
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleMechanic Role = "mechanic"
	RoleCustomer Role = "customer"
)

// Actor identifies the caller of an operation. MechanicID is set only for
// mechanic actors, CustomerID only for customer actors.
type Actor struct {
	UserID     string
	Role       Role
	MechanicID string
	CustomerID string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}
