package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInboxSize bounds how many undrained notices a session keeps.
const DefaultInboxSize = 100

// Inbox is a bounded in-memory notice queue for one session.
// The oldest notices are dropped once the bound is reached.
type Inbox struct {
	mu      sync.Mutex
	scope   string
	limit   int
	notices []Notice
	clock   func() time.Time
}

func NewInbox(scope string, limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxSize
	}
	return &Inbox{scope: scope, limit: limit, clock: time.Now}
}

func (b *Inbox) Notify(ctx context.Context, n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Scope == "" {
		n.Scope = b.scope
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.clock().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
	if over := len(b.notices) - b.limit; over > 0 {
		b.notices = append([]Notice(nil), b.notices[over:]...)
	}
}

// Notices returns a copy of the pending notices without removing them.
func (b *Inbox) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Drain returns the pending notices and empties the inbox.
func (b *Inbox) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}
