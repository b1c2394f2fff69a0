package leads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadtracker/internal/notify"
	"leadtracker/pkg/logger"

	"github.com/google/uuid"
)

// Operation names used in notices, logs and metrics.
const (
	OpLoad    = "load"
	OpRestore = "restore"
	OpCreate  = "create"
	OpUpdate  = "update"
	OpPromote = "promote"
	OpDelete  = "delete"
	OpUpload  = "upload"
)

// Options configures a Repository. Zero values are usable.
type Options struct {
	// UserID owns leads created through the repository.
	// Defaults to DefaultUserID.
	UserID string
	// ScopeByUser restricts Load to rows owned by UserID.
	ScopeByUser bool

	Drafts DraftCache

	// Guard, when set, stops two processes from promoting the same draft.
	Guard    PromotionGuard
	Notifier Notifier
	Observer Observer

	// Clock and NewTempID are injectable for deterministic tests.
	Clock     func() time.Time
	NewTempID func() string
}

// Repository owns the lead collection of one session and funnels every
// mutation through the remote store.
//
// Collection invariants:
//   - ids are unique within the collection
//   - drafts carry a TempIDPrefix id until their first successful insert
//   - a draft has at most one insert in flight
//
// Local state is applied before the remote call and is never rolled back when
// the remote call fails (last writer wins locally). The next Load converges
// the collection back to what the store holds.
type Repository struct {
	store       Store
	drafts      DraftCache
	guard       PromotionGuard
	notifier    Notifier
	observer    Observer
	userID      string
	scopeByUser bool
	clock       func() time.Time
	newTempID   func() string

	mu       sync.Mutex
	leads    []Lead
	inflight map[string]*promotion // draft id -> in-flight insert
	aliases  map[string]string     // promoted temp id -> permanent id
	version  uint64

	mirrorMu sync.Mutex
	mirrored uint64
}

// promotion tracks one in-flight draft insert.
type promotion struct {
	// pending holds fields edited while the insert was in flight.
	pending map[Field]struct{}
}

func (p *promotion) promotesAgain() bool {
	for f := range p.pending {
		if f.Promotes() {
			return true
		}
	}
	return false
}

func NewRepository(store Store, opts Options) *Repository {
	r := &Repository{
		store:       store,
		drafts:      opts.Drafts,
		guard:       opts.Guard,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		userID:      opts.UserID,
		scopeByUser: opts.ScopeByUser,
		clock:       opts.Clock,
		newTempID:   opts.NewTempID,
		inflight:    map[string]*promotion{},
		aliases:     map[string]string{},
	}
	if r.userID == "" {
		r.userID = DefaultUserID
	}
	if r.notifier == nil {
		r.notifier = nopNotifier{}
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.newTempID == nil {
		r.newTempID = func() string { return TempIDPrefix + uuid.NewString() }
	}
	return r
}

// Scope is the owner id of this repository.
func (r *Repository) Scope() string { return r.userID }

// Open restores cached drafts and loads the persisted collection.
// A failed draft restore is logged and does not prevent the load.
func (r *Repository) Open(ctx context.Context) error {
	if err := r.restoreDrafts(ctx); err != nil {
		logger.From(ctx).Warn("draft restore failed", "scope", r.userID, "err", err)
	}
	return r.Load(ctx)
}

// Load replaces the persisted part of the collection with the store's rows,
// newest first. Drafts that are still local stay after them.
// On failure the collection is left as it was.
func (r *Repository) Load(ctx context.Context) error {
	q := Query{}
	if r.scopeByUser {
		q.UserID = r.userID
	}
	rows, err := r.store.List(ctx, q)
	r.observer.ObserveStoreOp(OpLoad, err)
	if err != nil {
		r.fail(ctx, OpLoad, "", "Failed to load leads: "+err.Error(), err)
		return fmt.Errorf("load leads: %w", err)
	}

	r.mu.Lock()
	loaded := make(map[string]struct{}, len(rows))
	next := make([]Lead, 0, len(rows)+len(r.leads))
	for _, l := range rows {
		if _, dup := loaded[l.ID]; dup {
			continue
		}
		loaded[l.ID] = struct{}{}
		next = append(next, l.clone())
	}
	for _, l := range r.leads {
		if !l.IsDraft() {
			continue
		}
		if _, ok := loaded[l.ID]; ok {
			continue
		}
		if _, ok := r.aliases[l.ID]; ok {
			continue
		}
		next = append(next, l)
	}
	r.leads = next
	r.bumpLocked()
	r.mu.Unlock()

	r.mirror(ctx)
	return nil
}

// CreateDraft appends a draft with default values merged with overrides.
// It never calls the store.
func (r *Repository) CreateDraft(ctx context.Context, overrides Patch) (Lead, error) {
	now := r.clock().UTC()
	d := Lead{
		ID:           r.newTempID(),
		UserID:       r.userID,
		LeadDate:     now.Format(DateLayout),
		LeadSource:   SourceInstagram,
		ClientType:   ClientIndividualAgent,
		ServicePitch: PitchAIAutomation,
		Status:       StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(overrides) > 0 {
		if err := d.ApplyPatch(overrides); err != nil {
			return Lead{}, err
		}
	}

	r.mu.Lock()
	if r.indexLocked(d.ID) >= 0 {
		r.mu.Unlock()
		return Lead{}, fmt.Errorf("%w: %s", ErrConflict, d.ID)
	}
	r.leads = append(r.leads, d)
	r.bumpLocked()
	r.mu.Unlock()

	r.mirror(ctx)
	return d.clone(), nil
}

// Update sets one field of a lead.
//
// The change is applied to the collection before any remote call. For a
// draft, editing a promotion field inserts it into the store (once). For a
// persisted lead the field is written to the store; if that write fails the
// local change is kept and the error is returned alongside the local record.
func (r *Repository) Update(ctx context.Context, id string, field Field, value any) (Lead, error) {
	r.mu.Lock()
	idx := r.indexLocked(r.resolveLocked(id))
	if idx < 0 {
		r.mu.Unlock()
		return Lead{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := r.leads[idx]
	if err := next.Apply(field, value); err != nil {
		r.mu.Unlock()
		return Lead{}, err
	}
	next.UpdatedAt = r.clock().UTC()
	r.leads[idx] = next
	r.bumpLocked()

	target := next.clone()
	promote := false
	if target.IsDraft() {
		if p, ok := r.inflight[target.ID]; ok {
			p.pending[field] = struct{}{}
		} else if field.Promotes() {
			r.inflight[target.ID] = &promotion{pending: map[Field]struct{}{}}
			promote = true
		}
	}
	r.mu.Unlock()
	r.mirror(ctx)

	if promote {
		return r.promote(ctx, target)
	}
	if target.IsDraft() {
		return target, nil
	}

	err := r.store.Update(ctx, target.ID, Patch{field: target.Value(field)})
	r.observer.ObserveStoreOp(OpUpdate, err)
	if err != nil {
		// No rollback: the local value stays ahead of the store until the next Load.
		r.fail(ctx, OpUpdate, target.ID, "Failed to update lead", err)
		return target, fmt.Errorf("update lead %s: %w", target.ID, err)
	}
	return target, nil
}

// promote inserts a draft and swaps the returned row in at the draft's position.
// The caller must have registered the draft in r.inflight.
func (r *Repository) promote(ctx context.Context, draft Lead) (Lead, error) {
	tempID := draft.ID
	insert := draft.clone()
	insert.ID = ""
	insert.CreatedAt = time.Time{}
	insert.UpdatedAt = time.Time{}

	saved, err := r.insertClaimed(ctx, tempID, insert)
	r.observer.ObserveStoreOp(OpPromote, err)

	r.mu.Lock()
	p := r.inflight[tempID]
	delete(r.inflight, tempID)
	idx := r.indexLocked(tempID)

	if err != nil {
		if errors.Is(err, ErrClaimHeld) {
			current := draft
			if idx >= 0 {
				current = r.leads[idx].clone()
			}
			r.mu.Unlock()
			logger.From(ctx).Info("draft claimed by another session", "lead_id", tempID, "scope", r.userID)
			r.notifier.Notify(ctx, notify.Info(OpPromote, tempID, "Lead is being saved by another session; try again shortly"))
			return current, fmt.Errorf("promote lead %s: %w", tempID, err)
		}
		if !errors.Is(err, ErrConflict) {
			if idx >= 0 && p != nil && p.promotesAgain() {
				// A promotion field changed during the failed insert; retry with the current draft.
				next := r.leads[idx].clone()
				r.inflight[tempID] = &promotion{pending: map[Field]struct{}{}}
				r.mu.Unlock()
				r.fail(ctx, OpPromote, tempID, "Failed to save new lead: "+err.Error(), err)
				logger.From(ctx).Info("retrying draft save after in-flight edit", "lead_id", tempID, "scope", r.userID)
				return r.promote(ctx, next)
			}
			r.mu.Unlock()
			r.fail(ctx, OpPromote, tempID, "Failed to save new lead: "+err.Error(), err)
			return draft, fmt.Errorf("promote lead %s: %w", tempID, err)
		}
		// Already created elsewhere: drop the draft and converge on the store.
		if idx >= 0 {
			r.removeAtLocked(idx)
			r.bumpLocked()
		}
		r.mu.Unlock()
		r.mirror(ctx)

		logger.From(ctx).Info("draft already persisted, reloading", "lead_id", tempID, "scope", r.userID)
		r.notifier.Notify(ctx, notify.Info(OpPromote, tempID, "Lead was already saved; list refreshed"))
		if lerr := r.Load(ctx); lerr != nil {
			return Lead{}, lerr
		}
		return Lead{}, fmt.Errorf("promote lead %s: %w", tempID, err)
	}

	r.aliases[tempID] = saved.ID

	if idx < 0 {
		// Removed while the insert was in flight.
		r.bumpLocked()
		r.mu.Unlock()
		r.mirror(ctx)

		derr := r.store.Delete(ctx, saved.ID)
		r.observer.ObserveStoreOp(OpDelete, derr)
		if derr != nil {
			r.fail(ctx, OpDelete, saved.ID, "Failed to delete lead", derr)
			return Lead{}, fmt.Errorf("delete lead %s: %w", saved.ID, derr)
		}
		return Lead{}, fmt.Errorf("%w: %s", ErrNotFound, tempID)
	}

	record := saved.clone()
	var followUp Patch
	if p != nil && len(p.pending) > 0 {
		// Keep the edits made while the insert was in flight.
		record = r.leads[idx].clone()
		record.ID = saved.ID
		record.UserID = saved.UserID
		record.CreatedAt = saved.CreatedAt
		followUp = make(Patch, len(p.pending))
		for f := range p.pending {
			followUp[f] = record.Value(f)
		}
	}
	if dup := r.indexLocked(saved.ID); dup >= 0 {
		// A Load raced the insert and already brought the row in.
		r.leads[dup] = record
		r.removeAtLocked(idx)
	} else {
		r.leads[idx] = record
	}
	r.bumpLocked()
	r.mu.Unlock()
	r.mirror(ctx)

	out := record.clone()
	if len(followUp) > 0 {
		uerr := r.store.Update(ctx, out.ID, followUp)
		r.observer.ObserveStoreOp(OpUpdate, uerr)
		if uerr != nil {
			r.fail(ctx, OpUpdate, out.ID, "Failed to update lead", uerr)
			return out, fmt.Errorf("update lead %s: %w", out.ID, uerr)
		}
	}
	return out, nil
}

// insertClaimed inserts l under the promotion guard's claim for tempID.
//
// A temp id with a recorded outcome was already inserted by some process and
// is reported as ErrConflict. A claim held elsewhere with no outcome yet is
// ErrClaimHeld: the other insert may still fail, or its process may have died
// and the claim will lapse. The claim is given back when the insert fails.
func (r *Repository) insertClaimed(ctx context.Context, tempID string, l Lead) (Lead, error) {
	if r.guard == nil {
		return r.store.Insert(ctx, l)
	}
	ok, err := r.guard.Claim(ctx, r.userID, tempID)
	if err != nil {
		logger.From(ctx).Warn("promotion claim unavailable, inserting unguarded", "lead_id", tempID, "err", err)
		return r.store.Insert(ctx, l)
	}
	if !ok {
		if r.promotedElsewhere(ctx, tempID) {
			return Lead{}, fmt.Errorf("%w: %s was saved by another session", ErrConflict, tempID)
		}
		return Lead{}, fmt.Errorf("%w: %s", ErrClaimHeld, tempID)
	}
	if r.promotedElsewhere(ctx, tempID) {
		r.release(ctx, tempID)
		return Lead{}, fmt.Errorf("%w: %s was saved by another session", ErrConflict, tempID)
	}
	saved, err := r.store.Insert(ctx, l)
	if err != nil {
		r.release(ctx, tempID)
		return saved, err
	}
	if cerr := r.guard.Confirm(ctx, r.userID, tempID, saved.ID); cerr != nil {
		logger.From(ctx).Warn("promotion outcome not recorded", "lead_id", tempID, "err", cerr)
	}
	return saved, nil
}

// promotedElsewhere reports whether the guard holds an outcome for tempID,
// and records the alias when it does. Outcome errors count as no outcome.
func (r *Repository) promotedElsewhere(ctx context.Context, tempID string) bool {
	id, err := r.guard.Outcome(ctx, r.userID, tempID)
	if err != nil {
		logger.From(ctx).Warn("promotion outcome unavailable", "lead_id", tempID, "err", err)
		return false
	}
	if id == "" {
		return false
	}
	r.mu.Lock()
	r.aliases[tempID] = id
	r.mu.Unlock()
	return true
}

func (r *Repository) release(ctx context.Context, tempID string) {
	if err := r.guard.Release(ctx, r.userID, tempID); err != nil {
		logger.From(ctx).Warn("promotion claim release failed", "lead_id", tempID, "err", err)
	}
}

// Remove drops a lead from the collection and, when persisted, from the store.
// A failed remote delete is reported; the local removal stands.
func (r *Repository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	idx := r.indexLocked(r.resolveLocked(id))
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := r.leads[idx]
	r.removeAtLocked(idx)
	r.bumpLocked()
	r.mu.Unlock()
	r.mirror(ctx)

	if removed.IsDraft() {
		// An in-flight insert for this draft deletes its row once it settles.
		return nil
	}

	err := r.store.Delete(ctx, removed.ID)
	r.observer.ObserveStoreOp(OpDelete, err)
	if err != nil {
		r.fail(ctx, OpDelete, removed.ID, "Failed to delete lead", err)
		return fmt.Errorf("delete lead %s: %w", removed.ID, err)
	}
	r.notifier.Notify(ctx, notify.Success(OpDelete, removed.ID, "Lead deleted"))
	return nil
}

// Leads returns a copy of the collection in its current order.
func (r *Repository) Leads() []Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lead, len(r.leads))
	for i, l := range r.leads {
		out[i] = l.clone()
	}
	return out
}

// Lead returns one lead. Promoted temp ids resolve to the persisted record.
func (r *Repository) Lead(id string) (Lead, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(r.resolveLocked(id))
	if idx < 0 {
		return Lead{}, false
	}
	return r.leads[idx].clone(), true
}

// Drafts returns the leads not yet persisted.
func (r *Repository) Drafts() []Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draftsLocked()
}

func (r *Repository) restoreDrafts(ctx context.Context) error {
	if r.drafts == nil {
		return nil
	}
	snap, ok, err := r.drafts.Load(ctx, r.userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	r.mu.Lock()
	for temp, perm := range snap.Promoted {
		r.aliases[temp] = perm
	}
	restored := 0
	for _, d := range snap.Drafts {
		if !d.IsDraft() {
			continue
		}
		if _, promoted := snap.Promoted[d.ID]; promoted {
			continue
		}
		if r.indexLocked(d.ID) >= 0 {
			continue
		}
		r.leads = append(r.leads, d.clone())
		restored++
	}
	r.bumpLocked()
	r.mu.Unlock()

	logger.From(ctx).Debug("drafts restored", "scope", r.userID, "count", restored)
	r.mirror(ctx)
	return nil
}

// mirror writes the current drafts to the draft cache. Snapshots are
// versioned so an older one never overwrites a newer one.
func (r *Repository) mirror(ctx context.Context) {
	if r.drafts == nil {
		return
	}
	r.mu.Lock()
	version := r.version
	snap := DraftSnapshot{
		Drafts:   r.draftsLocked(),
		Promoted: make(map[string]string, len(r.aliases)),
		SavedAt:  r.clock().UTC(),
	}
	for k, v := range r.aliases {
		snap.Promoted[k] = v
	}
	r.mu.Unlock()

	r.mirrorMu.Lock()
	defer r.mirrorMu.Unlock()
	if version <= r.mirrored {
		return
	}
	if err := r.drafts.Save(ctx, r.userID, snap); err != nil {
		logger.From(ctx).Warn("draft mirror failed", "scope", r.userID, "err", err)
		return
	}
	r.mirrored = version
}

func (r *Repository) fail(ctx context.Context, op, leadID, message string, err error) {
	logger.From(ctx).Error("lead operation failed", "op", op, "lead_id", leadID, "scope", r.userID, "err", err)
	r.notifier.Notify(ctx, notify.Failure(op, leadID, message, err))
}

func (r *Repository) draftsLocked() []Lead {
	out := make([]Lead, 0)
	for _, l := range r.leads {
		if l.IsDraft() {
			out = append(out, l.clone())
		}
	}
	return out
}

func (r *Repository) resolveLocked(id string) string {
	if perm, ok := r.aliases[id]; ok {
		return perm
	}
	return id
}

func (r *Repository) indexLocked(id string) int {
	for i := range r.leads {
		if r.leads[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) removeAtLocked(idx int) {
	r.leads = append(r.leads[:idx:idx], r.leads[idx+1:]...)
}

func (r *Repository) bumpLocked() { r.version++ }
