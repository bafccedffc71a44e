package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localHold struct {
	token    string
	deadline time.Time
}

// LocalLock is an in-process Locker for single-node deployments and tests.
// Expired holds are reclaimed lazily on the next Lock call for the key.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]localHold
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]localHold)}
}

func (l *LocalLock) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.held[key]; ok && time.Now().Before(hold.deadline) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.held[key] = localHold{token: token, deadline: time.Now().Add(ttl)}

	return token, true, nil
}

// Unlock releases the hold only if token still owns it. A stale token is
// ignored, leaving the current holder's lock intact.
func (l *LocalLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.held[key]; ok && hold.token == token {
		delete(l.held, key)
	}

	return nil
}

func (l *LocalLock) Close() error {
	return nil
}
