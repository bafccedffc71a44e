package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBookingStatus(t *testing.T) {
	status, err := ParseBookingStatus("in-progress")
	assert.NoError(t, err)
	assert.Equal(t, StatusInProgress, status)

	_, err = ParseBookingStatus("in_progress")
	assert.Error(t, err)

	_, err = ParseBookingStatus("")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusInProgress, StatusConfirmed, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCompleted, true}, // same status is a no-op
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}

func TestTimeOfDay(t *testing.T) {
	at, err := ParseTimeOfDay("10:30")
	assert.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(10, 30), at)

	at, err = ParseTimeOfDay("10:30:00")
	assert.NoError(t, err)
	assert.Equal(t, "10:30:00", at.String())

	assert.Equal(t, NewTimeOfDay(11, 15), at.Add(45))

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestBookingWindowOverlaps(t *testing.T) {
	w := BookingWindow{Start: NewTimeOfDay(10, 0), End: NewTimeOfDay(10, 45)}

	assert.True(t, w.Overlaps(NewTimeOfDay(10, 30), NewTimeOfDay(11, 15)))
	assert.True(t, w.Overlaps(NewTimeOfDay(9, 30), NewTimeOfDay(10, 15)))
	assert.False(t, w.Overlaps(NewTimeOfDay(10, 45), NewTimeOfDay(11, 30)))
	assert.False(t, w.Overlaps(NewTimeOfDay(9, 0), NewTimeOfDay(10, 0)))
}
