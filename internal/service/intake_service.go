package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/events"
	"github.com/spec-kit/case-workflow-service/internal/observability"
	"github.com/spec-kit/case-workflow-service/internal/repository"
	"github.com/spec-kit/case-workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/case-workflow-service/pkg/util"
)

// IntakeService creates NEW cases and feeds them into the queue index.
type IntakeService struct {
	cases      repository.CaseRepository
	audit      repository.AuditRepository
	queue      *workflow.QueueIndex
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

// IntakeDependencies bundles collaborators.
type IntakeDependencies struct {
	CaseRepo   repository.CaseRepository
	AuditRepo  repository.AuditRepository
	Queue      *workflow.QueueIndex
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
}

// CaseCreateInput describes case creation payload.
type CaseCreateInput struct {
	LineOfBusiness string
	CustomerID     string
	Summary        string
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		cases:      deps.CaseRepo,
		audit:      deps.AuditRepo,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// CreateCase registers a new case in the analyst pool for its LOB.
func (s *IntakeService) CreateCase(ctx context.Context, actor domain.Identity, input CaseCreateInput) (*domain.Case, error) {
	lob := strings.TrimSpace(input.LineOfBusiness)
	if lob == "" {
		return nil, apperrors.NewValidationError("line of business required", nil)
	}

	now := time.Now()
	c := &domain.Case{
		ID:              uuid.NewString(),
		ExternalKey:     generateCaseKey(),
		CustomerID:      strings.TrimSpace(input.CustomerID),
		Summary:         strings.TrimSpace(input.Summary),
		LineOfBusiness:  lob,
		Status:          domain.CaseStatusNew,
		EscalationLevel: domain.LevelNone,
		QueuedAt:        now,
		CreatedAt:       now,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.queue.Insert(workflow.WorkItem{
		CaseID:            c.ID,
		LineOfBusiness:    c.LineOfBusiness,
		Level:             domain.LevelNone,
		PriorityTimestamp: c.QueuedAt,
	})

	reason := "case_created"
	if err := s.audit.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		CaseID:     c.ID,
		FromStatus: "",
		ToStatus:   c.Status,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Reason:     &reason,
		Timestamp:  now,
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordTransition("create")
	s.metrics.SetQueueDepth(c.LineOfBusiness, string(domain.LevelNone), s.queue.Depth(c.LineOfBusiness, domain.LevelNone))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventCaseCreated,
			CaseID:    c.ID,
			Actor:     events.Actor{UserID: actor.UserID, Role: actor.Role},
			Timestamp: now,
			Payload: events.CaseCreatedPayload{
				LineOfBusiness: c.LineOfBusiness,
				ExternalKey:    c.ExternalKey,
			},
		})
	}
	return c, nil
}

// BulkCreateCases registers a batch of cases, stopping at the first failure.
func (s *IntakeService) BulkCreateCases(ctx context.Context, actor domain.Identity, inputs []CaseCreateInput) ([]domain.Case, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("no cases supplied", nil)
	}
	created := make([]domain.Case, 0, len(inputs))
	for _, input := range inputs {
		c, err := s.CreateCase(ctx, actor, input)
		if err != nil {
			return created, err
		}
		created = append(created, *c)
	}
	return created, nil
}

func generateCaseKey() string {
	return "CASE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
