// Package lease provides short-lived exclusive locks keyed by string. The
// generation service holds one per lesson while it waits on the model.
package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ErrHeld means another holder owns the lease.
var ErrHeld = errors.New("lease held")

type Locker interface {
	// Acquire takes the lease for ttl. The returned release func is safe to
	// call more than once and only frees the lease it acquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

func newToken() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]memEntry
	now  func() time.Time
}

type memEntry struct {
	token   string
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{held: map[string]memEntry{}, now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := newToken()
	m.held[key] = memEntry{token: token, expires: now.Add(ttl)}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.held[key]; ok && e.token == token {
			delete(m.held, key)
		}
	}, nil
}
