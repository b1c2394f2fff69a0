package leads

import (
	"context"
	"errors"
	"time"

	"leadtracker/internal/notify"
)

var (
	ErrNotFound           = errors.New("lead not found")
	ErrConflict           = errors.New("lead already exists")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidValue       = errors.New("invalid value")
	ErrFieldNotApplicable = errors.New("field not applicable")
	ErrDraftNotSaved      = errors.New("lead is not saved yet")
	// ErrClaimHeld means another process is saving the same draft right now.
	ErrClaimHeld = errors.New("lead is being saved by another session")
)

// Query selects leads from the store. Results are ordered newest-created first.
type Query struct {
	// UserID filters by owner when non-empty.
	UserID string
}

// Store is the remote lead table.
//
// Insert ignores ID, CreatedAt and UpdatedAt on the input and returns the
// stored row. A uniqueness violation is reported as ErrConflict.
type Store interface {
	List(ctx context.Context, q Query) ([]Lead, error)
	Insert(ctx context.Context, l Lead) (Lead, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// BlobStore holds screenshot files.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) string
}

// DraftSnapshot is what survives a restart: drafts not yet persisted and
// the temp ids already promoted (temp id -> permanent id).
type DraftSnapshot struct {
	Drafts   []Lead            `json:"drafts"`
	Promoted map[string]string `json:"promoted,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
}

// DraftCache is durable client-side storage for drafts, keyed by scope.
type DraftCache interface {
	Save(ctx context.Context, scope string, snap DraftSnapshot) error
	Load(ctx context.Context, scope string) (DraftSnapshot, bool, error)
}

// PromotionGuard claims a draft id across processes sharing a draft cache,
// so a restored draft is inserted by one of them only.
//
// A claim is short-lived and only covers the insert itself. Confirm records
// the permanent id of a successful insert for much longer; Outcome reads it
// back. Release gives up a claim after a failed insert.
type PromotionGuard interface {
	Claim(ctx context.Context, scope, tempID string) (bool, error)
	Confirm(ctx context.Context, scope, tempID, permanentID string) error
	Outcome(ctx context.Context, scope, tempID string) (string, error)
	Release(ctx context.Context, scope, tempID string) error
}

// Notifier receives user-facing notices.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice)
}

// Observer is told about every remote store call.
type Observer interface {
	ObserveStoreOp(op string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStoreOp(string, error) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Notice) {}
