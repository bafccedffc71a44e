package models

import "fmt"

// BookingStatus is the single canonical status enum shared by bookings and
// mechanic tasks. Ad-hoc status strings at call sites caused live
// inconsistencies between the two tables ("in_progress" vs "in-progress"),
// so everything goes through ParseBookingStatus.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

// Terminal reports whether no further lifecycle transitions are expected.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TaskStatus reports whether the status is valid for a mechanic task.
// Tasks use the pending/in-progress/completed subset of the enum.
func (s BookingStatus) TaskStatus() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

var allowedTransitions = map[BookingStatus]map[BookingStatus]bool{
	StatusPending:    {StatusConfirmed: true, StatusInProgress: true, StatusCompleted: true, StatusCancelled: true},
	StatusConfirmed:  {StatusInProgress: true, StatusCompleted: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another. Setting the same status again is a permitted no-op.
func CanTransition(from, to BookingStatus) bool {
	if from == to {
		return true
	}

	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}

	return m[to]
}
