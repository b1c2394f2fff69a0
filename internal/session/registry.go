package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadtracker/internal/leads"
	"leadtracker/internal/notify"
)

var ErrNoUser = errors.New("session: user id required")

// ErrLoadFailed wraps a failed first load. The session returned with it is
// usable: drafts, notices and local edits work while the store is down.
var ErrLoadFailed = errors.New("session: leads not loaded")

// Deps are shared by every session the registry creates.
type Deps struct {
	Store    leads.Store
	Blobs    leads.BlobStore
	Drafts   leads.DraftCache
	Guard    leads.PromotionGuard
	Observer leads.Observer
	// Notifiers receive every notice in addition to the session inbox.
	Notifiers []notify.Notifier

	// ScopeByUser gives each user their own repository. Otherwise all users
	// share the one owned by DefaultUserID.
	ScopeByUser   bool
	DefaultUserID string

	Bucket         string
	MaxUploadBytes int64
	InboxSize      int

	Clock func() time.Time
	// OnOpen runs once per session after its first successful load.
	OnOpen func(scope string)
}

// Session is the lead collection of one scope and everything bound to it.
type Session struct {
	Scope       string
	Repo        *leads.Repository
	Attachments *leads.Attachments
	Inbox       *notify.Inbox

	openMu sync.Mutex
	opened bool
}

// Registry hands out one Session per scope, created on first use.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(d Deps) *Registry {
	if d.DefaultUserID == "" {
		d.DefaultUserID = leads.DefaultUserID
	}
	return &Registry{deps: d, sessions: map[string]*Session{}}
}

// ScopeFor maps an authenticated user to the scope that owns their leads.
func (r *Registry) ScopeFor(userID string) (string, error) {
	if !r.deps.ScopeByUser {
		return r.deps.DefaultUserID, nil
	}
	if userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}

// Get returns the session for userID's scope. The session's drafts are
// restored and its leads loaded on first use; if that load fails the session
// is still returned with the error, and the next Get retries the load.
func (r *Registry) Get(ctx context.Context, userID string) (*Session, error) {
	scope, err := r.ScopeFor(userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	s, ok := r.sessions[scope]
	if !ok {
		s = r.newSession(scope)
		r.sessions[scope] = s
	}
	r.mu.Unlock()

	if err := s.ensureOpen(ctx, r.deps.OnOpen); err != nil {
		return s, fmt.Errorf("%w: open session %s: %w", ErrLoadFailed, scope, err)
	}
	return s, nil
}

// Len is the number of sessions created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) newSession(scope string) *Session {
	inbox := notify.NewInbox(scope, r.deps.InboxSize)
	notifiers := append(notify.Multi{inbox}, r.deps.Notifiers...)

	repo := leads.NewRepository(r.deps.Store, leads.Options{
		UserID:      scope,
		ScopeByUser: r.deps.ScopeByUser,
		Drafts:      r.deps.Drafts,
		Guard:       r.deps.Guard,
		Notifier:    notifiers,
		Observer:    r.deps.Observer,
		Clock:       r.deps.Clock,
	})
	att := leads.NewAttachments(repo, r.deps.Blobs, leads.AttachmentOptions{
		Bucket:   r.deps.Bucket,
		MaxBytes: r.deps.MaxUploadBytes,
		Notifier: notifiers,
		Observer: r.deps.Observer,
		Clock:    r.deps.Clock,
	})
	return &Session{Scope: scope, Repo: repo, Attachments: att, Inbox: inbox}
}

func (s *Session) ensureOpen(ctx context.Context, onOpen func(string)) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.opened {
		return nil
	}
	if err := s.Repo.Open(ctx); err != nil {
		return err
	}
	s.opened = true
	if onOpen != nil {
		onOpen(s.Scope)
	}
	return nil
}
