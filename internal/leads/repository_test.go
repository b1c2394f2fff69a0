package leads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"leadtracker/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T, store *MemoryStore, opts Options) (*Repository, *notify.Inbox) {
	t.Helper()
	inbox := notify.NewInbox("test", 0)
	if opts.Notifier == nil {
		opts.Notifier = inbox
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	return NewRepository(store, opts), inbox
}

func persisted(id, name string, created time.Time) Lead {
	return Lead{
		ID:              id,
		UserID:          DefaultUserID,
		LeadDate:        "2024-03-01",
		Name:            name,
		SalespersonName: "Sara",
		LeadSource:      SourceGoogleMaps,
		ClientType:      ClientBrokerage,
		ServicePitch:    PitchWebsite,
		Status:          StatusNew,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func levels(ns []notify.Notice) []notify.Level {
	out := make([]notify.Level, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Level)
	}
	return out
}

func TestCreateDraft_IsLocalAndSynchronous(t *testing.T) {
	store := NewMemoryStore()
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	before := len(repo.Leads())
	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	assert.True(t, IsDraftID(d.ID), "draft id %q", d.ID)
	assert.Len(t, repo.Leads(), before+1)
	assert.Equal(t, StoreCalls{}, store.Calls(), "creating a draft must not call the store")

	assert.Equal(t, "2024-03-15", d.LeadDate)
	assert.Equal(t, SourceInstagram, d.LeadSource)
	assert.Equal(t, ClientIndividualAgent, d.ClientType)
	assert.Equal(t, PitchAIAutomation, d.ServicePitch)
	assert.Equal(t, StatusNew, d.Status)
	assert.Equal(t, DefaultUserID, d.UserID)
	assert.False(t, d.FirstMessageSent || d.ReplyReceived || d.Seen || d.Interested || d.FollowUpNeeded)
}

func TestCreateDraft_AppliesOverrides(t *testing.T) {
	repo, _ := newTestRepo(t, NewMemoryStore(), Options{})
	d, err := repo.CreateDraft(context.Background(), Patch{FieldCity: "Dubai", FieldLeadSource: "other", FieldOtherSource: "Referral"})
	require.NoError(t, err)
	assert.Equal(t, "Dubai", d.City)
	require.NotNil(t, d.OtherSource)
	assert.Equal(t, "Referral", *d.OtherSource)

	_, err = repo.CreateDraft(context.Background(), Patch{FieldStatus: "archived"})
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Len(t, repo.Leads(), 1)
}

func TestLoad_OrdersNewestFirstAndKeepsDrafts(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(
		persisted("a", "Old", testNow.Add(-2*time.Hour)),
		persisted("b", "New", testNow.Add(-time.Hour)),
	)
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Load(ctx))

	got := repo.Leads()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", d.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestLoad_FailureKeepsCollection(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()
	require.NoError(t, repo.Open(ctx))

	store.FailList = errors.New("network down")
	err := repo.Load(ctx)
	require.Error(t, err)

	require.Len(t, repo.Leads(), 1)
	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)
	assert.Contains(t, notices[0].Message, "Failed to load leads")
}

func TestLoad_ScopeByUser(t *testing.T) {
	store := NewMemoryStore()
	mine := persisted("a", "Mine", testNow)
	mine.UserID = "u1"
	theirs := persisted("b", "Theirs", testNow)
	theirs.UserID = "u2"
	store.Seed(mine, theirs)
	ctx := context.Background()

	scoped, _ := newTestRepo(t, store, Options{UserID: "u1", ScopeByUser: true})
	require.NoError(t, scoped.Load(ctx))
	require.Len(t, scoped.Leads(), 1)
	assert.Equal(t, "a", scoped.Leads()[0].ID)

	shared, _ := newTestRepo(t, store, Options{UserID: "u1"})
	require.NoError(t, shared.Load(ctx))
	assert.Len(t, shared.Leads(), 2)
}

func TestUpdate_PromotesDraftOnName(t *testing.T) {
	store := NewMemoryStore()
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	// Non-promotion fields stay local.
	_, err = repo.Update(ctx, d.ID, FieldCity, "Riyadh")
	require.NoError(t, err)
	assert.Zero(t, store.Calls().Insert)

	saved, err := repo.Update(ctx, d.ID, FieldName, "Acme Realty")
	require.NoError(t, err)
	assert.False(t, saved.IsDraft())
	assert.Equal(t, "Acme Realty", saved.Name)
	assert.Equal(t, "Riyadh", saved.City)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, saved.ID, rows[0].ID)

	got := repo.Leads()
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)

	// The temp id still resolves after promotion.
	byTemp, ok := repo.Lead(d.ID)
	require.True(t, ok)
	assert.Equal(t, saved.ID, byTemp.ID)

	_, err = repo.Update(ctx, d.ID, FieldPhone, "+971500000000")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls().Insert)
	assert.Equal(t, 1, store.Calls().Update)
	assert.Equal(t, "+971500000000", store.Rows()[0].Phone)
}

func TestUpdate_RapidPromotionEditsInsertOnce(t *testing.T) {
	store := NewMemoryStore()
	store.InsertGate = make(chan struct{})
	store.InsertStarted = make(chan struct{}, 1)
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	type result struct {
		lead Lead
		err  error
	}
	done := make(chan result, 1)
	go func() {
		l, err := repo.Update(ctx, d.ID, FieldName, "Acme")
		done <- result{l, err}
	}()
	<-store.InsertStarted

	second, err := repo.Update(ctx, d.ID, FieldName, "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, d.ID, second.ID)

	close(store.InsertGate)
	res := <-done
	require.NoError(t, res.err)

	assert.Equal(t, 1, store.Calls().Insert)
	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Ltd", rows[0].Name, "edit made during the insert must reach the store")

	got := repo.Leads()
	require.Len(t, got, 1)
	assert.Equal(t, rows[0].ID, got[0].ID)
	assert.Equal(t, "Acme Ltd", got[0].Name)
}

func TestUpdate_FailedInsertRetriedForInFlightEdit(t *testing.T) {
	store := NewMemoryStore()
	store.FailInsertOnce = errors.New("timeout")
	store.InsertGate = make(chan struct{})
	store.InsertStarted = make(chan struct{}, 2)
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, d.ID, FieldName, "Acme")
		done <- err
	}()
	<-store.InsertStarted

	_, err = repo.Update(ctx, d.ID, FieldSalespersonName, "Omar")
	require.NoError(t, err)

	close(store.InsertGate)
	require.NoError(t, <-done)

	assert.Equal(t, 2, store.Calls().Insert)
	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Name)
	assert.Equal(t, "Omar", rows[0].SalespersonName)

	got := repo.Leads()
	require.Len(t, got, 1)
	assert.False(t, got[0].IsDraft())
	assert.Equal(t, []notify.Level{notify.LevelError}, levels(inbox.Drain()))
}

func TestUpdate_FailedInsertNotRetriedForOtherEdits(t *testing.T) {
	store := NewMemoryStore()
	store.FailInsertOnce = errors.New("timeout")
	store.InsertGate = make(chan struct{})
	store.InsertStarted = make(chan struct{}, 2)
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, d.ID, FieldName, "Acme")
		done <- err
	}()
	<-store.InsertStarted

	_, err = repo.Update(ctx, d.ID, FieldCity, "Doha")
	require.NoError(t, err)

	close(store.InsertGate)
	require.Error(t, <-done)

	assert.Equal(t, 1, store.Calls().Insert)
	got := repo.Drafts()
	require.Len(t, got, 1)
	assert.Equal(t, "Doha", got[0].City)
}

func TestUpdate_PromotionFailureKeepsDraftForRetry(t *testing.T) {
	store := NewMemoryStore()
	store.FailInsert = errors.New("timeout")
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	l, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.Error(t, err)
	assert.Equal(t, d.ID, l.ID)
	assert.Equal(t, []notify.Level{notify.LevelError}, levels(inbox.Drain()))

	store.FailInsert = nil
	saved, err := repo.Update(ctx, d.ID, FieldSalespersonName, "Omar")
	require.NoError(t, err)
	assert.False(t, saved.IsDraft())
	assert.Equal(t, 2, store.Calls().Insert)
	assert.Len(t, store.Rows(), 1)
}

func TestUpdate_ConflictReloads(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Existing", testNow))
	store.FailInsert = fmt.Errorf("%w: leads_pkey", ErrConflict)
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	_, err = repo.Update(ctx, d.ID, FieldName, "Acme")
	require.ErrorIs(t, err, ErrConflict)

	got := repo.Leads()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 1, store.Calls().List)
	assert.Equal(t, []notify.Level{notify.LevelInfo}, levels(inbox.Drain()))
}

func TestUpdate_RemoteFailureKeepsLocalValue(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()
	require.NoError(t, repo.Load(ctx))

	store.FailUpdate = errors.New("503")
	l, err := repo.Update(ctx, "a", FieldNotes, "called twice")
	require.Error(t, err)
	assert.Equal(t, "called twice", l.Notes)

	local, ok := repo.Lead("a")
	require.True(t, ok)
	assert.Equal(t, "called twice", local.Notes, "local value wins until the next load")
	assert.Equal(t, "", store.Rows()[0].Notes)

	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to update lead", notices[0].Message)

	// The next successful load converges on the store.
	store.FailUpdate = nil
	require.NoError(t, repo.Load(ctx))
	local, _ = repo.Lead("a")
	assert.Equal(t, "", local.Notes)
}

func TestUpdate_RejectsInapplicableFields(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()
	require.NoError(t, repo.Load(ctx))

	_, err := repo.Update(ctx, "a", FieldDealValue, 500.0)
	require.ErrorIs(t, err, ErrFieldNotApplicable)
	_, err = repo.Update(ctx, "a", "nope", "x")
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Zero(t, store.Calls().Update)

	_, err = repo.Update(ctx, "a", FieldStatus, "closed")
	require.NoError(t, err)
	l, err := repo.Update(ctx, "a", FieldDealValue, 500.0)
	require.NoError(t, err)
	require.NotNil(t, l.DealValue)
	assert.Equal(t, 500.0, *l.DealValue)
	assert.Equal(t, 500.0, *store.Rows()[0].DealValue)
}

func TestUpdate_UnknownLead(t *testing.T) {
	repo, _ := newTestRepo(t, NewMemoryStore(), Options{})
	_, err := repo.Update(context.Background(), "missing", FieldName, "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_DraftIsLocalOnly(t *testing.T) {
	store := NewMemoryStore()
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, d.ID))

	assert.Empty(t, repo.Leads())
	assert.Zero(t, store.Calls().Delete)
}

func TestRemove_PersistedCallsStore(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, inbox := newTestRepo(t, store, Options{})
	ctx := context.Background()
	require.NoError(t, repo.Load(ctx))

	require.NoError(t, repo.Remove(ctx, "a"))
	assert.Equal(t, 1, store.Calls().Delete)
	assert.Empty(t, store.Rows())
	assert.Empty(t, repo.Leads())
	assert.Equal(t, []notify.Level{notify.LevelSuccess}, levels(inbox.Drain()))
}

func TestRemove_FailedDeleteKeepsLocalRemoval(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()
	require.NoError(t, repo.Load(ctx))

	store.FailDelete = errors.New("forbidden")
	require.Error(t, repo.Remove(ctx, "a"))
	assert.Empty(t, repo.Leads())
	assert.Len(t, store.Rows(), 1)
}

func TestRemove_DraftDuringInsertDeletesRow(t *testing.T) {
	store := NewMemoryStore()
	store.InsertGate = make(chan struct{})
	store.InsertStarted = make(chan struct{}, 1)
	repo, _ := newTestRepo(t, store, Options{})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, d.ID, FieldName, "Acme")
		done <- err
	}()
	<-store.InsertStarted

	require.NoError(t, repo.Remove(ctx, d.ID))
	assert.Zero(t, store.Calls().Delete)

	close(store.InsertGate)
	require.ErrorIs(t, <-done, ErrNotFound)

	assert.Equal(t, 1, store.Calls().Delete)
	assert.Empty(t, store.Rows())
	assert.Empty(t, repo.Leads())
}

func TestDrafts_MirroredOnEveryChange(t *testing.T) {
	cache := NewMemoryDraftCache()
	repo, _ := newTestRepo(t, NewMemoryStore(), Options{Drafts: cache})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	snap, ok, err := cache.Load(ctx, DefaultUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Drafts, 1)
	assert.Equal(t, d.ID, snap.Drafts[0].ID)

	_, err = repo.Update(ctx, d.ID, FieldCity, "Doha")
	require.NoError(t, err)
	snap, _, _ = cache.Load(ctx, DefaultUserID)
	assert.Equal(t, "Doha", snap.Drafts[0].City)

	saved, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)
	snap, _, _ = cache.Load(ctx, DefaultUserID)
	assert.Empty(t, snap.Drafts)
	assert.Equal(t, saved.ID, snap.Promoted[d.ID])
}

func TestDrafts_MirrorFailureDoesNotBlock(t *testing.T) {
	cache := NewMemoryDraftCache()
	cache.FailSave = errors.New("redis down")
	repo, _ := newTestRepo(t, NewMemoryStore(), Options{Drafts: cache})

	_, err := repo.CreateDraft(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, repo.Leads(), 1)
}

func TestOpen_RestoresDraftsWithoutDuplicates(t *testing.T) {
	store := NewMemoryStore()
	cache := NewMemoryDraftCache()
	ctx := context.Background()

	first, _ := newTestRepo(t, store, Options{Drafts: cache})
	kept, err := first.CreateDraft(ctx, Patch{FieldCity: "Cairo"})
	require.NoError(t, err)
	promoted, err := first.CreateDraft(ctx, nil)
	require.NoError(t, err)
	saved, err := first.Update(ctx, promoted.ID, FieldName, "Acme")
	require.NoError(t, err)

	// Restart: a fresh repository over the same store and cache.
	second, _ := newTestRepo(t, store, Options{Drafts: cache})
	require.NoError(t, second.Open(ctx))

	got := second.Leads()
	require.Len(t, got, 2)
	assert.Equal(t, saved.ID, got[0].ID)
	assert.Equal(t, kept.ID, got[1].ID)
	assert.Equal(t, "Cairo", got[1].City)

	resolved, ok := second.Lead(promoted.ID)
	require.True(t, ok)
	assert.Equal(t, saved.ID, resolved.ID)
}

func TestOpen_DedupesDraftAlreadyInStore(t *testing.T) {
	store := NewMemoryStore()
	cache := NewMemoryDraftCache()
	ctx := context.Background()

	row := persisted(TempIDPrefix+"1", "Acme", testNow)
	store.Seed(row)
	require.NoError(t, cache.Save(ctx, DefaultUserID, DraftSnapshot{Drafts: []Lead{row}, SavedAt: testNow}))

	repo, _ := newTestRepo(t, store, Options{Drafts: cache})
	require.NoError(t, repo.Open(ctx))

	got := repo.Leads()
	require.Len(t, got, 1)
	assert.Equal(t, row.ID, got[0].ID)
}

func TestOpen_RestoreFailureStillLoads(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(persisted("a", "Acme", testNow))
	repo, _ := newTestRepo(t, store, Options{Drafts: failingDraftCache{}})

	require.NoError(t, repo.Open(context.Background()))
	assert.Len(t, repo.Leads(), 1)
}

func TestGuard_OnlyOneProcessPromotesSharedDraft(t *testing.T) {
	store := NewMemoryStore()
	cache := NewMemoryDraftCache()
	guard := NewMemoryPromotionGuard()
	ctx := context.Background()

	first, _ := newTestRepo(t, store, Options{Drafts: cache, Guard: guard})
	d, err := first.CreateDraft(ctx, nil)
	require.NoError(t, err)

	second, inbox := newTestRepo(t, store, Options{Drafts: cache, Guard: guard})
	require.NoError(t, second.Open(ctx))
	require.Len(t, second.Drafts(), 1)

	saved, err := first.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)

	_, err = second.Update(ctx, d.ID, FieldName, "Acme")
	require.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, 1, store.Calls().Insert)
	got := second.Leads()
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)
	assert.Equal(t, []notify.Level{notify.LevelInfo}, levels(inbox.Drain()))
}

func TestGuard_ForeignClaimKeepsDraft(t *testing.T) {
	store := NewMemoryStore()
	guard := NewMemoryPromotionGuard()
	repo, inbox := newTestRepo(t, store, Options{Guard: guard})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	// Claimed by a process that died before inserting.
	ok, err := guard.Claim(ctx, DefaultUserID, d.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.ErrorIs(t, err, ErrClaimHeld)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, 0, store.Calls().Insert)
	require.Len(t, repo.Drafts(), 1)
	assert.Equal(t, []notify.Level{notify.LevelInfo}, levels(inbox.Drain()))

	guard.Expire(DefaultUserID, d.ID)
	saved, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)
	assert.False(t, saved.IsDraft())
	assert.Equal(t, 1, store.Calls().Insert)

	perm, err := guard.Outcome(ctx, DefaultUserID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, perm)
}

func TestGuard_OutcomeAfterLapsedClaimIsConflict(t *testing.T) {
	store := NewMemoryStore()
	cache := NewMemoryDraftCache()
	guard := NewMemoryPromotionGuard()
	ctx := context.Background()

	first, _ := newTestRepo(t, store, Options{Drafts: cache, Guard: guard})
	d, err := first.CreateDraft(ctx, nil)
	require.NoError(t, err)
	second, _ := newTestRepo(t, store, Options{Drafts: cache, Guard: guard})
	require.NoError(t, second.Open(ctx))

	saved, err := first.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)
	guard.Expire(DefaultUserID, d.ID)

	_, err = second.Update(ctx, d.ID, FieldName, "Acme")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, store.Calls().Insert)

	ok, err := guard.Claim(ctx, DefaultUserID, d.ID)
	require.NoError(t, err)
	assert.True(t, ok, "claim taken only to find an outcome is given back")

	l, ok := second.Lead(d.ID)
	require.True(t, ok, "temp id resolves to the saved row")
	assert.Equal(t, saved.ID, l.ID)
}

func TestGuard_ReleasedWhenInsertFails(t *testing.T) {
	store := NewMemoryStore()
	store.FailInsert = errors.New("timeout")
	guard := NewMemoryPromotionGuard()
	repo, _ := newTestRepo(t, store, Options{Guard: guard})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	_, err = repo.Update(ctx, d.ID, FieldName, "Acme")
	require.Error(t, err)

	ok, err := guard.Claim(ctx, DefaultUserID, d.ID)
	require.NoError(t, err)
	assert.True(t, ok, "failed insert must give the claim back")
}

func TestGuard_UnavailableFallsBackToInsert(t *testing.T) {
	store := NewMemoryStore()
	guard := NewMemoryPromotionGuard()
	guard.FailClaim = errors.New("redis down")
	repo, _ := newTestRepo(t, store, Options{Guard: guard})
	ctx := context.Background()

	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	saved, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)
	assert.False(t, saved.IsDraft())
}

type observedOp struct {
	op  string
	err error
}

type recordingObserver struct{ ops []observedOp }

func (o *recordingObserver) ObserveStoreOp(op string, err error) {
	o.ops = append(o.ops, observedOp{op, err})
}

func TestObserver_SeesEveryStoreCall(t *testing.T) {
	store := NewMemoryStore()
	obs := &recordingObserver{}
	repo, _ := newTestRepo(t, store, Options{Observer: obs})
	ctx := context.Background()

	require.NoError(t, repo.Load(ctx))
	d, err := repo.CreateDraft(ctx, nil)
	require.NoError(t, err)
	saved, err := repo.Update(ctx, d.ID, FieldName, "Acme")
	require.NoError(t, err)
	_, err = repo.Update(ctx, saved.ID, FieldCity, "Doha")
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, saved.ID))

	var ops []string
	for _, o := range obs.ops {
		ops = append(ops, o.op)
		assert.NoError(t, o.err)
	}
	assert.Equal(t, []string{OpLoad, OpPromote, OpUpdate, OpDelete}, ops)
}

type failingDraftCache struct{}

func (failingDraftCache) Save(context.Context, string, DraftSnapshot) error {
	return errors.New("unavailable")
}

func (failingDraftCache) Load(context.Context, string) (DraftSnapshot, bool, error) {
	return DraftSnapshot{}, false, errors.New("unavailable")
}
