package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// memoryCaseRepository is an in-memory CaseRepository used by tests and when
// no POSTGRES_DSN is configured. It honors the same version-check contract as
// the postgres implementation.
type memoryCaseRepository struct {
	mu    sync.RWMutex
	cases map[string]domain.Case
}

// NewMemoryCaseRepository builds an empty in-memory store.
func NewMemoryCaseRepository() CaseRepository {
	return &memoryCaseRepository{cases: make(map[string]domain.Case)}
}

func (r *memoryCaseRepository) Create(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Version = 1
	r.cases[c.ID] = *c
	return nil
}

func (r *memoryCaseRepository) Update(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cases[c.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != c.Version {
		return ErrVersionConflict
	}
	c.Version++
	c.UpdatedAt = time.Now()
	r.cases[c.ID] = *c
	return nil
}

func (r *memoryCaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	return &copied, nil
}

func (r *memoryCaseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	r.mu.RLock()
	matched := make([]domain.Case, 0)
	for _, c := range r.cases {
		if caseMatches(c, filter) {
			matched = append(matched, c)
		}
	}
	r.mu.RUnlock()

	if filter.OrderByQueuedAt {
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].QueuedAt.Equal(matched[j].QueuedAt) {
				return matched[i].ID < matched[j].ID
			}
			return matched[i].QueuedAt.Before(matched[j].QueuedAt)
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Case{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func caseMatches(c domain.Case, filter CaseFilter) bool {
	if filter.LineOfBusiness != nil && c.LineOfBusiness != *filter.LineOfBusiness {
		return false
	}
	if filter.AssigneeID != nil && (c.Assignee == nil || *c.Assignee != *filter.AssigneeID) {
		return false
	}
	if filter.DispositionedBy != nil && (c.DispositionedBy == nil || *c.DispositionedBy != *filter.DispositionedBy) {
		return false
	}
	if filter.InvolvedUserID != nil {
		id := *filter.InvolvedUserID
		involved := (c.Assignee != nil && *c.Assignee == id) ||
			(c.OriginalAnalyst != nil && *c.OriginalAnalyst == id) ||
			(c.DispositionedBy != nil && *c.DispositionedBy == id)
		if !involved {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if c.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.EscalationLevels) > 0 {
		found := false
		for _, level := range filter.EscalationLevels {
			if c.EscalationLevel == level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Unassigned && c.Assignee != nil {
		return false
	}
	if filter.EscalatedOnly && c.EscalationLevel == domain.LevelNone {
		return false
	}
	if filter.CreatedFrom != nil && c.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && c.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func (r *memoryCaseRepository) CountByStatus(ctx context.Context) (map[domain.CaseStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[domain.CaseStatus]int)
	for _, c := range r.cases {
		result[c.Status]++
	}
	return result, nil
}

func (r *memoryCaseRepository) CountAssignedByLOB(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]int)
	for _, c := range r.cases {
		if c.Assignee != nil {
			result[c.LineOfBusiness]++
		}
	}
	return result, nil
}

// memoryAuditRepository is the in-memory counterpart of the audit log.
type memoryAuditRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewMemoryAuditRepository builds an empty in-memory audit log.
func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryAuditRepository) ListByCase(ctx context.Context, caseID string) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.AuditEntry, 0)
	for _, entry := range r.entries {
		if entry.CaseID == caseID {
			result = append(result, entry)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (r *memoryAuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.AuditEntry, len(r.entries))
	copy(result, r.entries)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
