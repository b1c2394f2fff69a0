package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
//
// Fail* fields inject an error into every call of that kind while set.
// InsertGate, when non-nil, makes Insert wait until the channel is closed
// (or receives), which lets tests hold a promotion in flight.
type MemoryStore struct {
	mu    sync.Mutex
	rows  []memoryRow
	seq   int64
	calls StoreCalls

	Clock func() time.Time

	FailList   error
	FailInsert error
	FailUpdate error
	FailDelete error
	// FailInsertOnce fails the next Insert only.
	FailInsertOnce error

	InsertGate chan struct{}
	// InsertStarted, when non-nil, receives once per Insert before it waits on InsertGate.
	InsertStarted chan struct{}
}

// StoreCalls counts calls per operation.
type StoreCalls struct {
	List   int
	Insert int
	Update int
	Delete int
}

type memoryRow struct {
	lead Lead
	seq  int64
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{Clock: time.Now} }

// Seed stores rows as-is, keeping their ids and timestamps.
func (s *MemoryStore) Seed(rows ...Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range rows {
		s.seq++
		s.rows = append(s.rows, memoryRow{lead: l.clone(), seq: s.seq})
	}
}

// Rows returns the stored rows newest first.
func (s *MemoryStore) Rows() []Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked("")
}

// Calls returns the per-operation call counters.
func (s *MemoryStore) Calls() StoreCalls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.List++
	if s.FailList != nil {
		return nil, s.FailList
	}
	return s.sortedLocked(q.UserID), nil
}

func (s *MemoryStore) Insert(ctx context.Context, l Lead) (Lead, error) {
	s.mu.Lock()
	s.calls.Insert++
	gate, started := s.InsertGate, s.InsertStarted
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Lead{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsert != nil {
		return Lead{}, s.FailInsert
	}
	if err := s.FailInsertOnce; err != nil {
		s.FailInsertOnce = nil
		return Lead{}, err
	}
	now := s.now()
	row := l.clone()
	row.ID = uuid.NewString()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.seq++
	s.rows = append(s.rows, memoryRow{lead: row, seq: s.seq})
	return row.clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Update++
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	for i := range s.rows {
		if s.rows[i].lead.ID != id {
			continue
		}
		next, err := patchColumns(s.rows[i].lead, patch)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		s.rows[i].lead = next
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Delete++
	if s.FailDelete != nil {
		return s.FailDelete
	}
	for i := range s.rows {
		if s.rows[i].lead.ID == id {
			s.rows = append(s.rows[:i:i], s.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemoryStore) sortedLocked(userID string) []Lead {
	rows := make([]memoryRow, 0, len(s.rows))
	for _, r := range s.rows {
		if userID != "" && r.lead.UserID != userID {
			continue
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].lead.CreatedAt.Equal(rows[j].lead.CreatedAt) {
			return rows[i].lead.CreatedAt.After(rows[j].lead.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]Lead, len(rows))
	for i, r := range rows {
		out[i] = r.lead.clone()
	}
	return out
}

func (s *MemoryStore) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

// patchColumns writes raw column values like a database would, without the
// write-time rules enforced by Lead.Apply.
func patchColumns(l Lead, patch Patch) (Lead, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return Lead{}, err
	}
	cols := map[string]any{}
	if err := json.Unmarshal(raw, &cols); err != nil {
		return Lead{}, err
	}
	for f, v := range patch {
		if _, ok := fieldTable[f]; !ok {
			return Lead{}, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		cols[string(f)] = v
	}
	raw, err = json.Marshal(cols)
	if err != nil {
		return Lead{}, err
	}
	var out Lead
	if err := json.Unmarshal(raw, &out); err != nil {
		return Lead{}, err
	}
	return out, nil
}
