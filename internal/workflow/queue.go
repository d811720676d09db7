package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/repository"
)

// WorkItem is a queue-index entry: a projection over the case store, never a
// second source of truth.
type WorkItem struct {
	CaseID            string
	LineOfBusiness    string
	Level             domain.EscalationLevel
	PriorityTimestamp time.Time
}

// ClaimFunc attempts to claim a popped item. Returning (false, nil) marks the
// entry stale; it is dropped and the next oldest item is offered.
type ClaimFunc func(ctx context.Context, item WorkItem) (bool, error)

type bucketKey struct {
	lob   string
	level domain.EscalationLevel
}

type bucket struct {
	mu    sync.Mutex
	items []WorkItem
}

// QueueIndex maintains per line-of-business FIFO orderings of cases eligible
// for assignment, keyed by escalation level. Ordering is ascending
// PriorityTimestamp with ties broken by CaseID for determinism.
//
// The index is a derived cache over the case store: entries whose backing
// case has since changed are dropped on pop rather than served.
type QueueIndex struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// NewQueueIndex builds an empty index.
func NewQueueIndex() *QueueIndex {
	return &QueueIndex{buckets: make(map[bucketKey]*bucket)}
}

func (q *QueueIndex) bucket(lob string, level domain.EscalationLevel) *bucket {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := bucketKey{lob: lob, level: level}
	b, ok := q.buckets[key]
	if !ok {
		b = &bucket{}
		q.buckets[key] = b
	}
	return b
}

// Insert adds an item in FIFO position.
func (q *QueueIndex) Insert(item WorkItem) {
	b := q.bucket(item.LineOfBusiness, item.Level)
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := sort.Search(len(b.items), func(i int) bool {
		return itemLess(item, b.items[i])
	})
	b.items = append(b.items, WorkItem{})
	copy(b.items[idx+1:], b.items[idx:])
	b.items[idx] = item
}

// Remove drops the entry for caseID from whichever bucket holds it.
func (q *QueueIndex) Remove(caseID string) {
	q.mu.Lock()
	buckets := make([]*bucket, 0, len(q.buckets))
	for _, b := range q.buckets {
		buckets = append(buckets, b)
	}
	q.mu.Unlock()

	for _, b := range buckets {
		b.mu.Lock()
		for i, item := range b.items {
			if item.CaseID == caseID {
				b.items = append(b.items[:i], b.items[i+1:]...)
				b.mu.Unlock()
				return
			}
		}
		b.mu.Unlock()
	}
}

// PopOldest hands the oldest eligible item to claim under the bucket lock.
// The bucket mutex is the exclusive critical section that linearizes
// concurrent get-next-case calls for one LOB/level: no two callers can claim
// the same entry. Stale entries (claim false) self-heal by removal.
func (q *QueueIndex) PopOldest(ctx context.Context, lob string, level domain.EscalationLevel, claim ClaimFunc) (*WorkItem, error) {
	b := q.bucket(lob, level)
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.items) > 0 {
		item := b.items[0]
		claimed, err := claim(ctx, item)
		if err != nil {
			return nil, err
		}
		b.items = b.items[1:]
		if claimed {
			return &item, nil
		}
	}
	return nil, nil
}

// Depth reports the number of queued items for one LOB/level.
func (q *QueueIndex) Depth(lob string, level domain.EscalationLevel) int {
	b := q.bucket(lob, level)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Depths snapshots the depth of every non-empty bucket, keyed by LOB then level.
func (q *QueueIndex) Depths() map[string]map[domain.EscalationLevel]int {
	q.mu.Lock()
	keys := make([]bucketKey, 0, len(q.buckets))
	buckets := make([]*bucket, 0, len(q.buckets))
	for key, b := range q.buckets {
		keys = append(keys, key)
		buckets = append(buckets, b)
	}
	q.mu.Unlock()

	result := make(map[string]map[domain.EscalationLevel]int)
	for i, b := range buckets {
		b.mu.Lock()
		depth := len(b.items)
		b.mu.Unlock()
		if depth == 0 {
			continue
		}
		if result[keys[i].lob] == nil {
			result[keys[i].lob] = make(map[domain.EscalationLevel]int)
		}
		result[keys[i].lob][keys[i].level] = depth
	}
	return result
}

// Rebuild repopulates the index from the case store, replacing all entries.
// Used at startup and whenever the index is suspected inconsistent.
func (q *QueueIndex) Rebuild(ctx context.Context, cases repository.CaseRepository) error {
	eligible, err := cases.ListWithFilter(ctx, repository.CaseFilter{
		Statuses:        []domain.CaseStatus{domain.CaseStatusNew, domain.CaseStatusEscalated},
		Unassigned:      true,
		OrderByQueuedAt: true,
		Limit:           100000,
	})
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.buckets = make(map[bucketKey]*bucket)
	q.mu.Unlock()

	for _, c := range eligible {
		q.Insert(WorkItem{
			CaseID:            c.ID,
			LineOfBusiness:    c.LineOfBusiness,
			Level:             c.EscalationLevel,
			PriorityTimestamp: c.QueuedAt,
		})
	}
	return nil
}

func itemLess(a, b WorkItem) bool {
	if a.PriorityTimestamp.Equal(b.PriorityTimestamp) {
		return a.CaseID < b.CaseID
	}
	return a.PriorityTimestamp.Before(b.PriorityTimestamp)
}
