package lock

import (
	"context"
	"fmt"
	"time"
)

// Locker serializes scheduling work on a contended resource. The assignment
// and status-transition flows take a lock keyed on (mechanic, date) around
// their check-then-write sequence; without it the availability check races
// with concurrent writers.
//
// Lock returns an ownership token. Unlock releases the hold only while that
// token is still the current holder, so a flow that outlives its TTL cannot
// delete a successor's lock.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Unlock(ctx context.Context, key, token string) error
	Close() error
}

// MechanicDateKey builds the canonical lock key for one mechanic's schedule
// on one calendar date.
func MechanicDateKey(mechanicID string, date time.Time) string {
	return fmt.Sprintf("mechanic:%s:%s", mechanicID, date.Format("2006-01-02"))
}
