package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/case-workflow-service/internal/cache"
	"github.com/spec-kit/case-workflow-service/internal/config"
	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/events"
	"github.com/spec-kit/case-workflow-service/internal/observability"
	"github.com/spec-kit/case-workflow-service/internal/repository"
	"github.com/spec-kit/case-workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/case-workflow-service/pkg/util"
)

// WorkbasketFilter enumerates my-cases view filters.
const (
	WorkbasketFilterAll         = "all"
	WorkbasketFilterActive      = "active"
	WorkbasketFilterEscalations = "escalations"
	WorkbasketFilterCompleted   = "completed"
	WorkbasketFilterReturned    = "returned"
)

// AssignmentService implements work dequeue and visibility: get-next-case,
// the manager work queue and per-user workbaskets.
type AssignmentService struct {
	cases      repository.CaseRepository
	audit      repository.AuditRepository
	queue      *workflow.QueueIndex
	queueCache *cache.WorkQueueCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	cfg        config.WorkflowConfig
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	CaseRepo   repository.CaseRepository
	AuditRepo  repository.AuditRepository
	Queue      *workflow.QueueIndex
	QueueCache *cache.WorkQueueCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Config     config.WorkflowConfig
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		cases:      deps.CaseRepo,
		audit:      deps.AuditRepo,
		queue:      deps.Queue,
		queueCache: deps.QueueCache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		cfg:        deps.Config,
	}
}

// GetNextCase atomically pops the oldest eligible case for the caller's LOB
// and role, assigns it and records the transition. No two identities ever
// receive the same case: pop and assign happen inside one queue critical
// section, and the store's version check rejects any entry claimed elsewhere.
func (s *AssignmentService) GetNextCase(ctx context.Context, identity domain.Identity) (*domain.Case, error) {
	if !identity.Role.Valid() {
		return nil, apperrors.NewUnauthorized("unknown role")
	}
	if identity.LineOfBusiness == "" {
		return nil, apperrors.NewValidationError("line of business affinity required", nil)
	}

	level := domain.LevelForRole(identity.Role)
	var assigned *domain.Case

	item, err := s.queue.PopOldest(ctx, identity.LineOfBusiness, level, func(ctx context.Context, item workflow.WorkItem) (bool, error) {
		c, err := s.cases.GetByID(ctx, item.CaseID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
		if !eligibleForLevel(c, level) {
			return false, nil
		}

		fromStatus := c.Status
		c.Status = domain.CaseStatusAssigned
		c.Assignee = &identity.UserID
		if identity.Role == domain.RoleAnalyst && c.OriginalAnalyst == nil {
			c.OriginalAnalyst = &identity.UserID
		}
		if err := s.cases.Update(ctx, c); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				// lost the race to a concurrent transition; entry is stale
				return false, nil
			}
			return false, err
		}
		if err := s.appendAudit(ctx, c.ID, fromStatus, c.Status, identity, nil); err != nil {
			return false, err
		}
		assigned = c
		return true, nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if item == nil || assigned == nil {
		return nil, apperrors.NewNoWorkAvailable(identity.LineOfBusiness)
	}

	s.metrics.RecordAssignment()
	s.metrics.SetQueueDepth(identity.LineOfBusiness, string(level), s.queue.Depth(identity.LineOfBusiness, level))
	s.publishEvent(ctx, events.Event{
		Type:   events.EventCaseAssigned,
		CaseID: assigned.ID,
		Actor:  events.Actor{UserID: identity.UserID, Role: identity.Role},
		Payload: events.CaseAssignedPayload{
			Assignee:       identity.UserID,
			LineOfBusiness: assigned.LineOfBusiness,
		},
	})
	return assigned, nil
}

// GetWorkQueue returns a read-only page of unassigned eligible work. Staleness
// is acceptable: pages may be served from a short-TTL cache and cases may
// disappear between calls.
func (s *AssignmentService) GetWorkQueue(ctx context.Context, lob *string, limit, offset int) ([]domain.Case, error) {
	limit, offset = s.normalizePage(limit, offset)

	key := cache.Key(lob, limit, offset)
	if cached, ok := s.queueCache.Get(ctx, key); ok {
		return cached, nil
	}

	cases, err := s.cases.ListWithFilter(ctx, repository.CaseFilter{
		LineOfBusiness:  lob,
		Statuses:        []domain.CaseStatus{domain.CaseStatusNew, domain.CaseStatusEscalated},
		Unassigned:      true,
		OrderByQueuedAt: true,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.queueCache.Set(ctx, key, cases)
	return cases, nil
}

// GetMyWorkbasket returns cases the identity is working or has worked,
// narrowed by the named filter.
func (s *AssignmentService) GetMyWorkbasket(ctx context.Context, identity domain.Identity, filter string, limit, offset int) ([]domain.Case, error) {
	limit, offset = s.normalizePage(limit, offset)

	repoFilter := repository.CaseFilter{Limit: limit, Offset: offset}
	switch filter {
	case WorkbasketFilterActive:
		repoFilter.AssigneeID = &identity.UserID
		repoFilter.Statuses = []domain.CaseStatus{domain.CaseStatusAssigned, domain.CaseStatusInProgress}
	case WorkbasketFilterEscalations:
		repoFilter.InvolvedUserID = &identity.UserID
		repoFilter.EscalatedOnly = true
		repoFilter.Statuses = []domain.CaseStatus{domain.CaseStatusAssigned, domain.CaseStatusInProgress, domain.CaseStatusEscalated}
	case WorkbasketFilterCompleted:
		repoFilter.DispositionedBy = &identity.UserID
		repoFilter.Statuses = []domain.CaseStatus{domain.CaseStatusDispositioned}
	case WorkbasketFilterReturned:
		repoFilter.AssigneeID = &identity.UserID
		repoFilter.Statuses = []domain.CaseStatus{domain.CaseStatusReturned}
	case WorkbasketFilterAll, "":
		repoFilter.InvolvedUserID = &identity.UserID
	default:
		return nil, apperrors.NewValidationError("unknown workbasket filter", map[string]any{"filter": filter})
	}

	cases, err := s.cases.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return cases, nil
}

func (s *AssignmentService) normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// eligibleForLevel verifies a queue entry still reflects store state: NEW for
// the analyst pool, ESCALATED at the matching tier for senior pools, and
// unassigned either way.
func eligibleForLevel(c *domain.Case, level domain.EscalationLevel) bool {
	if c.Assignee != nil {
		return false
	}
	if level == domain.LevelNone {
		return c.Status == domain.CaseStatusNew && c.EscalationLevel == domain.LevelNone
	}
	return c.Status == domain.CaseStatusEscalated && c.EscalationLevel == level
}

func (s *AssignmentService) appendAudit(ctx context.Context, caseID string, from, to domain.CaseStatus, actor domain.Identity, reason *string) error {
	return s.audit.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		CaseID:     caseID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Reason:     reason,
		Timestamp:  time.Now(),
	})
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
