package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/repository"
	"github.com/spec-kit/case-workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/case-workflow-service/pkg/util"
)

// ReportingService exposes pure read projections over the case store and
// audit log for the dashboard. It never mutates workflow state.
type ReportingService struct {
	cases repository.CaseRepository
	audit repository.AuditRepository
	queue *workflow.QueueIndex
}

// NewReportingService constructs the service.
func NewReportingService(cases repository.CaseRepository, audit repository.AuditRepository, queue *workflow.QueueIndex) *ReportingService {
	return &ReportingService{cases: cases, audit: audit, queue: queue}
}

// LOBCapacity summarizes one line of business.
type LOBCapacity struct {
	LineOfBusiness string
	QueueDepths    map[domain.EscalationLevel]int
	ActiveCases    int
}

// GetCase returns a single case snapshot.
func (s *ReportingService) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return c, nil
}

// CaseAudit returns the full transition trail for one case in timestamp order.
func (s *ReportingService) CaseAudit(ctx context.Context, caseID string) ([]domain.AuditEntry, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByCase(ctx, caseID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// WorkflowDistribution counts cases per status.
func (s *ReportingService) WorkflowDistribution(ctx context.Context) (map[domain.CaseStatus]int, error) {
	counts, err := s.cases.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return counts, nil
}

// TeamCapacity reports queue depth and active load per line of business.
func (s *ReportingService) TeamCapacity(ctx context.Context) ([]LOBCapacity, error) {
	assigned, err := s.cases.CountAssignedByLOB(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	depths := s.queue.Depths()

	lobs := make(map[string]struct{})
	for lob := range assigned {
		lobs[lob] = struct{}{}
	}
	for lob := range depths {
		lobs[lob] = struct{}{}
	}

	result := make([]LOBCapacity, 0, len(lobs))
	for lob := range lobs {
		capacity := LOBCapacity{
			LineOfBusiness: lob,
			QueueDepths:    depths[lob],
			ActiveCases:    assigned[lob],
		}
		if capacity.QueueDepths == nil {
			capacity.QueueDepths = map[domain.EscalationLevel]int{}
		}
		result = append(result, capacity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LineOfBusiness < result[j].LineOfBusiness
	})
	return result, nil
}

// RecentActivity returns the latest audit entries across all cases.
func (s *ReportingService) RecentActivity(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	entries, err := s.audit.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
