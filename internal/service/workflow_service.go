package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/case-workflow-service/internal/config"
	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/events"
	"github.com/spec-kit/case-workflow-service/internal/observability"
	"github.com/spec-kit/case-workflow-service/internal/repository"
	"github.com/spec-kit/case-workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/case-workflow-service/pkg/util"
)

// errDispositionReplay marks an idempotent disposition retry carrying the
// decision already recorded.
var errDispositionReplay = errors.New("disposition replay")

// heldStatuses are the states from which a holder may act on a case.
var heldStatuses = map[domain.CaseStatus]bool{
	domain.CaseStatusAssigned:   true,
	domain.CaseStatusInProgress: true,
	domain.CaseStatusEscalated:  true,
}

// WorkflowService validates and applies case state transitions: escalation,
// return for correction, bulk reassignment, start and final disposition.
type WorkflowService struct {
	cases      repository.CaseRepository
	audit      repository.AuditRepository
	queue      *workflow.QueueIndex
	locks      *workflow.LockTable
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	cfg        config.WorkflowConfig
}

// WorkflowDependencies bundles collaborators.
type WorkflowDependencies struct {
	CaseRepo   repository.CaseRepository
	AuditRepo  repository.AuditRepository
	Queue      *workflow.QueueIndex
	Locks      *workflow.LockTable
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Config     config.WorkflowConfig
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		cases:      deps.CaseRepo,
		audit:      deps.AuditRepo,
		queue:      deps.Queue,
		locks:      deps.Locks,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		cfg:        deps.Config,
	}
}

// BulkTarget names the destination of a bulk reassignment: exactly one of
// NewAssignee or NewLineOfBusiness must be set.
type BulkTarget struct {
	NewAssignee       *string
	NewLineOfBusiness *string
}

// BulkOutcome reports the per-case result of a bulk reassignment.
type BulkOutcome struct {
	CaseID string
	Result string
	Reason string
}

const (
	BulkResultReassigned = "reassigned"
	BulkResultSkipped    = "skipped"
)

// EscalateCase forwards a held case to a strictly senior tier. The case
// re-enters the destination queue at the current time: escalation does not
// grant priority over the destination backlog.
func (s *WorkflowService) EscalateCase(ctx context.Context, caseID string, destination domain.Role, reason string, actor domain.Identity) (*domain.Case, error) {
	if !destination.Valid() {
		return nil, apperrors.NewValidationError("unknown destination role", map[string]any{"destination": destination})
	}
	if !destination.SeniorTo(actor.Role) {
		return nil, apperrors.NewInvalidTransition("destination role must be senior to actor", map[string]any{
			"actor_role":  actor.Role,
			"destination": destination,
		})
	}

	s.locks.Lock(caseID)
	defer s.locks.Unlock(caseID)

	var fromStatus domain.CaseStatus
	updated, err := s.applyWithRetry(ctx, caseID, func(c *domain.Case) error {
		if err := requireHeldBy(c, actor); err != nil {
			return err
		}
		fromStatus = c.Status
		c.Status = domain.CaseStatusEscalated
		c.EscalationLevel = domain.LevelForRole(destination)
		c.Assignee = nil
		c.QueuedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.queue.Insert(workflow.WorkItem{
		CaseID:            updated.ID,
		LineOfBusiness:    updated.LineOfBusiness,
		Level:             updated.EscalationLevel,
		PriorityTimestamp: updated.QueuedAt,
	})
	if err := s.appendAudit(ctx, updated.ID, fromStatus, updated.Status, actor, &reason); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordTransition("escalate")
	s.metrics.SetQueueDepth(updated.LineOfBusiness, string(updated.EscalationLevel), s.queue.Depth(updated.LineOfBusiness, updated.EscalationLevel))
	s.publishEvent(ctx, events.Event{
		Type:   events.EventCaseEscalated,
		CaseID: updated.ID,
		Actor:  events.Actor{UserID: actor.UserID, Role: actor.Role},
		Payload: events.CaseEscalatedPayload{
			Destination: updated.EscalationLevel,
			Reason:      reason,
		},
	})
	return updated, nil
}

// ReturnCase sends a held case back for correction. The case bypasses FIFO:
// it is assigned directly to the analyst of record (or, when the
// configuration permits, an explicitly named analyst) with status RETURNED.
func (s *WorkflowService) ReturnCase(ctx context.Context, caseID, reason string, targetAnalyst *string, actor domain.Identity) (*domain.Case, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("return reason required", nil)
	}

	s.locks.Lock(caseID)
	defer s.locks.Unlock(caseID)

	var fromStatus domain.CaseStatus
	var target string
	updated, err := s.applyWithRetry(ctx, caseID, func(c *domain.Case) error {
		if err := requireHeldBy(c, actor); err != nil {
			return err
		}
		// The prior holder of review work is always the analyst of record,
		// so any current holder satisfies the senior-or-equal rule.
		switch {
		case s.cfg.ReturnToOriginalAssignee || targetAnalyst == nil:
			if c.OriginalAnalyst == nil {
				return apperrors.NewInvalidTransition("no analyst of record to return to", map[string]any{"case_id": c.ID})
			}
			target = *c.OriginalAnalyst
		default:
			target = *targetAnalyst
		}
		fromStatus = c.Status
		c.Status = domain.CaseStatusReturned
		c.ReturnReason = &reason
		c.Assignee = &target
		c.EscalationLevel = domain.LevelNone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.queue.Remove(updated.ID)
	if err := s.appendAudit(ctx, updated.ID, fromStatus, updated.Status, actor, &reason); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordTransition("return")
	s.publishEvent(ctx, events.Event{
		Type:   events.EventCaseReturned,
		CaseID: updated.ID,
		Actor:  events.Actor{UserID: actor.UserID, Role: actor.Role},
		Payload: events.CaseReturnedPayload{
			Target: target,
			Reason: reason,
		},
	})
	return updated, nil
}

// StartCase moves a held case into active review.
func (s *WorkflowService) StartCase(ctx context.Context, caseID string, actor domain.Identity) (*domain.Case, error) {
	s.locks.Lock(caseID)
	defer s.locks.Unlock(caseID)

	var fromStatus domain.CaseStatus
	updated, err := s.applyWithRetry(ctx, caseID, func(c *domain.Case) error {
		if !c.HeldBy(actor.UserID) {
			return apperrors.NewInvalidTransition("case not held by actor", map[string]any{"case_id": c.ID})
		}
		if c.Status != domain.CaseStatusAssigned && c.Status != domain.CaseStatusReturned {
			return apperrors.NewInvalidTransition("case cannot be started in current status", map[string]any{
				"case_id": c.ID,
				"status":  c.Status,
			})
		}
		fromStatus = c.Status
		c.Status = domain.CaseStatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.appendAudit(ctx, updated.ID, fromStatus, updated.Status, actor, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordTransition("start")
	s.publishEvent(ctx, events.Event{
		Type:   events.EventCaseStarted,
		CaseID: updated.ID,
		Actor:  events.Actor{UserID: actor.UserID, Role: actor.Role},
	})
	return updated, nil
}

// SubmitDisposition records the final, terminal decision on a case. Retrying
// with the recorded decision returns the existing result; a conflicting
// decision fails and never overwrites.
func (s *WorkflowService) SubmitDisposition(ctx context.Context, caseID, decision string, actor domain.Identity) (*domain.Case, error) {
	decision = strings.TrimSpace(decision)
	if decision == "" {
		return nil, apperrors.NewValidationError("decision required", nil)
	}

	s.locks.Lock(caseID)
	defer s.locks.Unlock(caseID)

	var fromStatus domain.CaseStatus
	updated, err := s.applyWithRetry(ctx, caseID, func(c *domain.Case) error {
		if c.Terminal() {
			if c.Disposition != nil && *c.Disposition == decision {
				return errDispositionReplay
			}
			recorded := ""
			if c.Disposition != nil {
				recorded = *c.Disposition
			}
			return apperrors.NewAlreadyDisposed(c.ID, recorded)
		}
		if err := requireHeldBy(c, actor); err != nil {
			return err
		}
		if c.EscalationLevel != domain.LevelNone {
			required := domain.RoleForLevel(c.EscalationLevel)
			if actor.Role == domain.RoleAnalyst || !actor.Role.AtLeast(required) {
				return apperrors.NewInvalidTransition("insufficient role to disposition escalated case", map[string]any{
					"case_id":       c.ID,
					"required_role": required,
					"actor_role":    actor.Role,
					"escalated_to":  c.EscalationLevel,
				})
			}
		}
		fromStatus = c.Status
		c.Status = domain.CaseStatusDispositioned
		c.Disposition = &decision
		c.DispositionedBy = &actor.UserID
		c.Assignee = nil
		return nil
	})
	if errors.Is(err, errDispositionReplay) {
		existing, loadErr := s.loadCase(ctx, caseID)
		if loadErr != nil {
			return nil, loadErr
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.queue.Remove(updated.ID)
	if err := s.appendAudit(ctx, updated.ID, fromStatus, updated.Status, actor, &decision); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordTransition("disposition")
	s.publishEvent(ctx, events.Event{
		Type:    events.EventCaseDispositioned,
		CaseID:  updated.ID,
		Actor:   events.Actor{UserID: actor.UserID, Role: actor.Role},
		Payload: events.CaseDispositionedPayload{Decision: decision},
	})
	return updated, nil
}

// BulkReassign applies a best-effort batch reassignment. Each case is
// validated and applied independently; skipping one never aborts the others.
// Per-case locks are taken one at a time in ascending case ID order.
func (s *WorkflowService) BulkReassign(ctx context.Context, caseIDs []string, target BulkTarget, actor domain.Identity) ([]BulkOutcome, error) {
	if !actor.Role.AtLeast(domain.RoleManager) {
		return nil, apperrors.NewForbidden("bulk reassignment requires manager or above")
	}
	if (target.NewAssignee == nil) == (target.NewLineOfBusiness == nil) {
		return nil, apperrors.NewValidationError("exactly one of new assignee or new line of business required", nil)
	}
	if len(caseIDs) == 0 {
		return nil, apperrors.NewValidationError("no case ids supplied", nil)
	}
	if s.cfg.MaxBulkSize > 0 && len(caseIDs) > s.cfg.MaxBulkSize {
		return nil, apperrors.NewValidationError("too many case ids", map[string]any{
			"max": s.cfg.MaxBulkSize,
		})
	}

	sorted := make([]string, len(caseIDs))
	copy(sorted, caseIDs)
	sort.Strings(sorted)
	sorted = dedupe(sorted)

	outcomes := make([]BulkOutcome, 0, len(sorted))
	for _, caseID := range sorted {
		outcomes = append(outcomes, s.reassignOne(ctx, caseID, target, actor))
	}
	return outcomes, nil
}

func (s *WorkflowService) reassignOne(ctx context.Context, caseID string, target BulkTarget, actor domain.Identity) BulkOutcome {
	s.locks.Lock(caseID)
	defer s.locks.Unlock(caseID)

	var fromStatus domain.CaseStatus
	var wasQueued bool
	updated, err := s.applyWithRetry(ctx, caseID, func(c *domain.Case) error {
		if c.Terminal() {
			return apperrors.NewAlreadyDisposed(c.ID, stringValue(c.Disposition))
		}
		fromStatus = c.Status
		wasQueued = c.Assignee == nil && (c.Status == domain.CaseStatusNew || c.Status == domain.CaseStatusEscalated)
		if target.NewAssignee != nil {
			c.Assignee = target.NewAssignee
			c.Status = domain.CaseStatusAssigned
		} else {
			c.LineOfBusiness = *target.NewLineOfBusiness
		}
		return nil
	})
	if err != nil {
		return BulkOutcome{CaseID: caseID, Result: BulkResultSkipped, Reason: skipReason(err)}
	}

	if target.NewAssignee != nil {
		if wasQueued {
			s.queue.Remove(updated.ID)
		}
	} else if wasQueued {
		// keep original intake time when only the LOB moves
		s.queue.Remove(updated.ID)
		s.queue.Insert(workflow.WorkItem{
			CaseID:            updated.ID,
			LineOfBusiness:    updated.LineOfBusiness,
			Level:             updated.EscalationLevel,
			PriorityTimestamp: updated.QueuedAt,
		})
	}

	reason := "bulk_reassign"
	if err := s.appendAudit(ctx, updated.ID, fromStatus, updated.Status, actor, &reason); err != nil {
		return BulkOutcome{CaseID: caseID, Result: BulkResultSkipped, Reason: "audit write failed"}
	}
	s.metrics.RecordTransition("bulk_reassign")
	s.publishEvent(ctx, events.Event{
		Type:   events.EventCaseReassigned,
		CaseID: updated.ID,
		Actor:  events.Actor{UserID: actor.UserID, Role: actor.Role},
		Payload: events.CaseReassignedPayload{
			NewAssignee:       target.NewAssignee,
			NewLineOfBusiness: target.NewLineOfBusiness,
		},
	})
	return BulkOutcome{CaseID: caseID, Result: BulkResultReassigned}
}

// applyWithRetry loads the case, applies the mutation and commits it with the
// store's version check. On a version conflict the operation is retried once
// against fresh state before surfacing ConcurrentModification.
func (s *WorkflowService) applyWithRetry(ctx context.Context, caseID string, apply func(*domain.Case) error) (*domain.Case, error) {
	for attempt := 0; attempt < 2; attempt++ {
		c, err := s.loadCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if err := apply(c); err != nil {
			return nil, err
		}
		err = s.cases.Update(ctx, c)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return nil, apperrors.NewConcurrentModification(caseID)
}

func (s *WorkflowService) loadCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return c, nil
}

func requireHeldBy(c *domain.Case, actor domain.Identity) error {
	if !heldStatuses[c.Status] {
		return apperrors.NewInvalidTransition("case not in an actionable status", map[string]any{
			"case_id": c.ID,
			"status":  c.Status,
		})
	}
	if !c.HeldBy(actor.UserID) {
		return apperrors.NewInvalidTransition("case not held by actor", map[string]any{
			"case_id": c.ID,
		})
	}
	return nil
}

func skipReason(err error) string {
	domainErr := apperrors.ToDomainError(err)
	switch domainErr.Code {
	case "NOT_FOUND":
		return "not found"
	case "ALREADY_DISPOSED":
		return "already dispositioned"
	case "CONCURRENT_MODIFICATION":
		return "concurrent modification"
	default:
		return domainErr.Message
	}
}

func dedupe(sorted []string) []string {
	result := sorted[:0]
	var prev string
	for i, id := range sorted {
		if i == 0 || id != prev {
			result = append(result, id)
		}
		prev = id
	}
	return result
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *WorkflowService) appendAudit(ctx context.Context, caseID string, from, to domain.CaseStatus, actor domain.Identity, reason *string) error {
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

func (s *WorkflowService) publishEvent(ctx context.Context, event events.Event) {
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
