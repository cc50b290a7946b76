package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// sessionTTL bounds how long page-load counters live after the last touch
const sessionTTL = 30 * time.Minute

// SessionTracker maintains the ephemeral session id and page-load counter
// attached to emitted events. Both are created lazily on first use. The
// counter lives in Redis so multiple API instances agree on it; when Redis
// is absent or unreachable the tracker degrades to a process-local counter
// rather than failing the caller.
type SessionTracker struct {
	client *redis.Client

	mu        sync.Mutex
	sessionID string
	fallback  int
}

// NewSessionTracker creates a tracker. client may be nil.
func NewSessionTracker(client *redis.Client) *SessionTracker {
	return &SessionTracker{client: client}
}

// Touch returns the session id and the incremented page-load count
func (t *SessionTracker) Touch(ctx context.Context) (string, int) {
	t.mu.Lock()
	if t.sessionID == "" {
		t.sessionID = uuid.NewString()
	}
	id := t.sessionID
	t.mu.Unlock()

	if t.client != nil {
		key := "session:" + id + ":pageloads"
		count, err := t.client.Incr(ctx, key).Result()
		if err == nil {
			t.client.Expire(ctx, key, sessionTTL)
			return id, int(count)
		}
	}

	t.mu.Lock()
	t.fallback++
	count := t.fallback
	t.mu.Unlock()
	return id, count
}

// Reset discards the current session. The next Touch starts a fresh one.
func (t *SessionTracker) Reset() {
	t.mu.Lock()
	t.sessionID = ""
	t.fallback = 0
	t.mu.Unlock()
}
