package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadtracker/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an abandoned session's drafts survive.
const DefaultDraftTTL = 30 * 24 * time.Hour

const (
	draftKeyPrefix   = "leadtracker:drafts:"
	claimKeyPrefix   = "leadtracker:promote:"
	outcomeKeyPrefix = "leadtracker:promoted:"
)

// RedisDraftCache stores one JSON snapshot per scope.
type RedisDraftCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDraftCache(rdb *redis.Client, ttl time.Duration) *RedisDraftCache {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftCache{rdb: rdb, ttl: ttl}
}

func draftKey(scope string) string { return draftKeyPrefix + scope }

func (c *RedisDraftCache) Save(ctx context.Context, scope string, snap DraftSnapshot) error {
	if c.rdb == nil {
		return errors.New("drafts: redis client is nil")
	}
	if scope == "" {
		return errors.New("drafts: scope is required")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("drafts: encode snapshot: %w", err)
	}
	return c.rdb.Set(ctx, draftKey(scope), raw, c.ttl).Err()
}

func (c *RedisDraftCache) Load(ctx context.Context, scope string) (DraftSnapshot, bool, error) {
	if c.rdb == nil {
		return DraftSnapshot{}, false, errors.New("drafts: redis client is nil")
	}
	raw, err := c.rdb.Get(ctx, draftKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DraftSnapshot{}, false, nil
	}
	if err != nil {
		return DraftSnapshot{}, false, err
	}
	var snap DraftSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return DraftSnapshot{}, false, fmt.Errorf("drafts: decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Promotion claims cover one insert. A process that dies mid-insert blocks the
// draft for DefaultClaimTTL only.
const DefaultClaimTTL = 2 * time.Minute

// RedisPromotionGuard claims drafts with a Redis key per temp id and keeps
// the outcome of each successful insert under a second key.
// Each guard has its own owner token.
type RedisPromotionGuard struct {
	rdb        *redis.Client
	claimTTL   time.Duration
	outcomeTTL time.Duration
	owner      string
}

// NewRedisPromotionGuard builds a guard. outcomeTTL should match the draft
// TTL so an outcome outlives every cached copy of the draft.
func NewRedisPromotionGuard(rdb *redis.Client, claimTTL, outcomeTTL time.Duration) *RedisPromotionGuard {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	if outcomeTTL <= 0 {
		outcomeTTL = DefaultDraftTTL
	}
	return &RedisPromotionGuard{rdb: rdb, claimTTL: claimTTL, outcomeTTL: outcomeTTL, owner: uuid.NewString()}
}

func claimKey(scope, tempID string) string   { return claimKeyPrefix + scope + ":" + tempID }
func outcomeKey(scope, tempID string) string { return outcomeKeyPrefix + scope + ":" + tempID }

func (g *RedisPromotionGuard) Claim(ctx context.Context, scope, tempID string) (bool, error) {
	return utils.ClaimKey(ctx, g.rdb, claimKey(scope, tempID), g.owner, g.claimTTL)
}

func (g *RedisPromotionGuard) Confirm(ctx context.Context, scope, tempID, permanentID string) error {
	if g.rdb == nil {
		return errors.New("drafts: redis client is nil")
	}
	return g.rdb.Set(ctx, outcomeKey(scope, tempID), permanentID, g.outcomeTTL).Err()
}

func (g *RedisPromotionGuard) Outcome(ctx context.Context, scope, tempID string) (string, error) {
	if g.rdb == nil {
		return "", errors.New("drafts: redis client is nil")
	}
	id, err := g.rdb.Get(ctx, outcomeKey(scope, tempID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (g *RedisPromotionGuard) Release(ctx context.Context, scope, tempID string) error {
	_, err := utils.ReleaseClaim(ctx, g.rdb, claimKey(scope, tempID), g.owner)
	return err
}

// MemoryPromotionGuard is a process-local PromotionGuard. Claims never
// expire on their own; Expire drops one as a lapsed TTL would.
type MemoryPromotionGuard struct {
	mu       sync.Mutex
	claims   map[string]struct{}
	outcomes map[string]string

	FailClaim error
}

func NewMemoryPromotionGuard() *MemoryPromotionGuard {
	return &MemoryPromotionGuard{claims: map[string]struct{}{}, outcomes: map[string]string{}}
}

func (g *MemoryPromotionGuard) Claim(ctx context.Context, scope, tempID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailClaim != nil {
		return false, g.FailClaim
	}
	k := claimKey(scope, tempID)
	if _, held := g.claims[k]; held {
		return false, nil
	}
	g.claims[k] = struct{}{}
	return true, nil
}

func (g *MemoryPromotionGuard) Confirm(ctx context.Context, scope, tempID, permanentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[outcomeKey(scope, tempID)] = permanentID
	return nil
}

func (g *MemoryPromotionGuard) Outcome(ctx context.Context, scope, tempID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailClaim != nil {
		return "", g.FailClaim
	}
	return g.outcomes[outcomeKey(scope, tempID)], nil
}

func (g *MemoryPromotionGuard) Release(ctx context.Context, scope, tempID string) error {
	g.Expire(scope, tempID)
	return nil
}

// Expire drops a claim without touching its outcome.
func (g *MemoryPromotionGuard) Expire(scope, tempID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, claimKey(scope, tempID))
}

// MemoryDraftCache keeps snapshots in process memory. It survives a
// Repository being discarded, which is what tests use to simulate a restart.
type MemoryDraftCache struct {
	mu    sync.Mutex
	snaps map[string]DraftSnapshot
	saves int

	FailSave error
}

func NewMemoryDraftCache() *MemoryDraftCache {
	return &MemoryDraftCache{snaps: map[string]DraftSnapshot{}}
}

func (c *MemoryDraftCache) Save(ctx context.Context, scope string, snap DraftSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSave != nil {
		return c.FailSave
	}
	c.saves++
	c.snaps[scope] = copySnapshot(snap)
	return nil
}

func (c *MemoryDraftCache) Load(ctx context.Context, scope string) (DraftSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[scope]
	if !ok {
		return DraftSnapshot{}, false, nil
	}
	return copySnapshot(snap), true, nil
}

// Saves reports how many snapshots have been written.
func (c *MemoryDraftCache) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func copySnapshot(s DraftSnapshot) DraftSnapshot {
	out := DraftSnapshot{SavedAt: s.SavedAt, Drafts: make([]Lead, len(s.Drafts))}
	for i, d := range s.Drafts {
		out.Drafts[i] = d.clone()
	}
	if s.Promoted != nil {
		out.Promoted = make(map[string]string, len(s.Promoted))
		for k, v := range s.Promoted {
			out.Promoted[k] = v
		}
	}
	return out
}
