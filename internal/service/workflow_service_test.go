package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/case-workflow-service/internal/domain"
	apperrors "github.com/spec-kit/case-workflow-service/pkg/util"
)

// seedHeldCase stores a case already assigned to the given user.
func seedHeldCase(t *testing.T, env *testEnv, id, userID string, status domain.CaseStatus, level domain.EscalationLevel) {
	t.Helper()
	c := &domain.Case{
		ID:              id,
		ExternalKey:     "CASE-" + id,
		LineOfBusiness:  "retail",
		Status:          status,
		Assignee:        &userID,
		OriginalAnalyst: &userID,
		EscalationLevel: level,
		QueuedAt:        time.Now(),
	}
	if err := env.cases.Create(context.Background(), c); err != nil {
		t.Fatalf("seed held case %s: %v", id, err)
	}
}

func TestEscalateMovesCaseToSeniorQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedHeldCase(t, env, "c-1", "a-1", domain.CaseStatusInProgress, domain.LevelNone)

	updated, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleFLUAML, "needs AML review", analyst("a-1"))
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if updated.Status != domain.CaseStatusEscalated {
		t.Fatalf("expected ESCALATED, got %s", updated.Status)
	}
	if updated.EscalationLevel != domain.LevelFLUAML {
		t.Fatalf("expected FLU_AML level, got %s", updated.EscalationLevel)
	}
	if updated.Assignee != nil {
		t.Fatalf("escalated case must be unassigned, got %v", *updated.Assignee)
	}
	if depth := env.queue.Depth("retail", domain.LevelFLUAML); depth != 1 {
		t.Fatalf("expected case in FLU AML queue, depth %d", depth)
	}
}

func TestEscalateRequiresStrictlySeniorDestination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	flu := domain.Identity{UserID: "f-1", Role: domain.RoleFLUAML, LineOfBusiness: "retail"}
	seedHeldCase(t, env, "c-1", "f-1", domain.CaseStatusInProgress, domain.LevelFLUAML)

	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleManager, "bounce down", flu); !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION for junior destination, got %v", err)
	}
	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleFLUAML, "sideways", flu); !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION for same-tier destination, got %v", err)
	}
	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.Role("INTERN"), "nonsense", flu); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED for unknown role, got %v", err)
	}
}

func TestEscalateRequiresHolder(t *testing.T) {
	env := newTestEnv(t)
	seedHeldCase(t, env, "c-1", "a-1", domain.CaseStatusAssigned, domain.LevelNone)

	_, err := env.workflow.EscalateCase(context.Background(), "c-1", domain.RoleManager, "reason", analyst("a-2"))
	if !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION for non-holder, got %v", err)
	}
}

func TestEscalationJoinsBehindExistingBacklog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedQueuedCase(t, env, "c-backlog", "retail", domain.CaseStatusEscalated, domain.LevelManager, time.Now().Add(-time.Hour))
	seedHeldCase(t, env, "c-new", "a-1", domain.CaseStatusInProgress, domain.LevelNone)

	if _, err := env.workflow.EscalateCase(ctx, "c-new", domain.RoleManager, "second opinion", analyst("a-1")); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	first, err := env.assignment.GetNextCase(ctx, manager("m-1"))
	if err != nil {
		t.Fatalf("get next: %v", err)
	}
	if first.ID != "c-backlog" {
		t.Fatalf("escalation must not jump the backlog, got %s first", first.ID)
	}
}

func TestReturnGoesToAnalystOfRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedQueuedCase(t, env, "c-1", "retail", domain.CaseStatusNew, domain.LevelNone, time.Now())

	if _, err := env.assignment.GetNextCase(ctx, analyst("a-1")); err != nil {
		t.Fatalf("analyst pickup: %v", err)
	}
	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleManager, "check this", analyst("a-1")); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, err := env.assignment.GetNextCase(ctx, manager("m-1")); err != nil {
		t.Fatalf("manager pickup: %v", err)
	}

	returned, err := env.workflow.ReturnCase(ctx, "c-1", "missing KYC documents", nil, manager("m-1"))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.Status != domain.CaseStatusReturned {
		t.Fatalf("expected RETURNED, got %s", returned.Status)
	}
	if returned.Assignee == nil || *returned.Assignee != "a-1" {
		t.Fatalf("return must bypass FIFO straight to the analyst of record, got %v", returned.Assignee)
	}
	if returned.EscalationLevel != domain.LevelNone {
		t.Fatalf("return must clear the escalation level, got %s", returned.EscalationLevel)
	}
	if returned.ReturnReason == nil || *returned.ReturnReason != "missing KYC documents" {
		t.Fatalf("expected recorded return reason, got %v", returned.ReturnReason)
	}
	if depth := env.queue.Depth("retail", domain.LevelManager); depth != 0 {
		t.Fatalf("returned case must leave the queue, depth %d", depth)
	}

	// the analyst resumes work without re-queueing
	resumed, err := env.workflow.StartCase(ctx, "c-1", analyst("a-1"))
	if err != nil {
		t.Fatalf("start after return: %v", err)
	}
	if resumed.Status != domain.CaseStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", resumed.Status)
	}
}

func TestReturnRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	seedHeldCase(t, env, "c-1", "m-1", domain.CaseStatusInProgress, domain.LevelNone)

	_, err := env.workflow.ReturnCase(context.Background(), "c-1", "  ", nil, manager("m-1"))
	if !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestStartCaseTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedHeldCase(t, env, "c-1", "a-1", domain.CaseStatusAssigned, domain.LevelNone)

	started, err := env.workflow.StartCase(ctx, "c-1", analyst("a-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.CaseStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", started.Status)
	}

	// starting twice is not a valid transition
	if _, err := env.workflow.StartCase(ctx, "c-1", analyst("a-1")); !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION on restart, got %v", err)
	}
}

func TestDispositionIsTerminalAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedHeldCase(t, env, "c-1", "a-1", domain.CaseStatusInProgress, domain.LevelNone)

	disposed, err := env.workflow.SubmitDisposition(ctx, "c-1", "closed_no_action", analyst("a-1"))
	if err != nil {
		t.Fatalf("disposition: %v", err)
	}
	if disposed.Status != domain.CaseStatusDispositioned {
		t.Fatalf("expected DISPOSITIONED, got %s", disposed.Status)
	}
	if disposed.DispositionedBy == nil || *disposed.DispositionedBy != "a-1" {
		t.Fatalf("expected decision owner recorded, got %v", disposed.DispositionedBy)
	}

	// retry with the same decision returns the recorded result
	replayed, err := env.workflow.SubmitDisposition(ctx, "c-1", "closed_no_action", analyst("a-1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Disposition == nil || *replayed.Disposition != "closed_no_action" {
		t.Fatalf("replay must return the recorded decision, got %v", replayed.Disposition)
	}

	// a conflicting decision never overwrites
	if _, err := env.workflow.SubmitDisposition(ctx, "c-1", "sar_filed", analyst("a-1")); !apperrors.HasCode(err, "ALREADY_DISPOSED") {
		t.Fatalf("expected ALREADY_DISPOSED, got %v", err)
	}
	current, err := env.reporting.GetCase(ctx, "c-1")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if *current.Disposition != "closed_no_action" {
		t.Fatalf("recorded decision changed to %s", *current.Disposition)
	}

	// no transition leaves the terminal state
	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleGFC, "too late", analyst("a-1")); !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION out of terminal state, got %v", err)
	}
}

func TestDispositionOfEscalatedCaseRequiresSeniorRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedHeldCase(t, env, "c-1", "m-1", domain.CaseStatusInProgress, domain.LevelFLUAML)

	// a manager cannot close out a case escalated to FLU AML
	if _, err := env.workflow.SubmitDisposition(ctx, "c-1", "closed", manager("m-1")); !apperrors.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION for junior decision maker, got %v", err)
	}

	seedHeldCase(t, env, "c-2", "f-1", domain.CaseStatusInProgress, domain.LevelFLUAML)
	flu := domain.Identity{UserID: "f-1", Role: domain.RoleFLUAML, LineOfBusiness: "retail"}
	if _, err := env.workflow.SubmitDisposition(ctx, "c-2", "closed", flu); err != nil {
		t.Fatalf("FLU AML disposition: %v", err)
	}
}

func TestBulkReassignPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedHeldCase(t, env, "c-valid", "a-1", domain.CaseStatusAssigned, domain.LevelNone)
	seedHeldCase(t, env, "c-done", "a-1", domain.CaseStatusInProgress, domain.LevelNone)
	if _, err := env.workflow.SubmitDisposition(ctx, "c-done", "closed", analyst("a-1")); err != nil {
		t.Fatalf("pre-disposition: %v", err)
	}

	target := "a-2"
	outcomes, err := env.workflow.BulkReassign(ctx, []string{"c-valid", "c-done", "c-missing"}, BulkTarget{NewAssignee: &target}, manager("m-1"))
	if err != nil {
		t.Fatalf("bulk reassign: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	byCase := make(map[string]BulkOutcome)
	for _, outcome := range outcomes {
		byCase[outcome.CaseID] = outcome
	}
	if byCase["c-valid"].Result != BulkResultReassigned {
		t.Fatalf("expected c-valid reassigned, got %+v", byCase["c-valid"])
	}
	if byCase["c-done"].Result != BulkResultSkipped {
		t.Fatalf("expected c-done skipped, got %+v", byCase["c-done"])
	}
	if byCase["c-missing"].Result != BulkResultSkipped {
		t.Fatalf("expected c-missing skipped, got %+v", byCase["c-missing"])
	}

	moved, err := env.reporting.GetCase(ctx, "c-valid")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if moved.Assignee == nil || *moved.Assignee != "a-2" {
		t.Fatalf("expected new assignee a-2, got %v", moved.Assignee)
	}
}

func TestBulkReassignValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	target := "a-2"
	lob := "wealth"

	if _, err := env.workflow.BulkReassign(ctx, []string{"c-1"}, BulkTarget{NewAssignee: &target}, analyst("a-1")); !apperrors.HasCode(err, "FORBIDDEN") {
		t.Fatalf("expected FORBIDDEN for analyst, got %v", err)
	}
	if _, err := env.workflow.BulkReassign(ctx, []string{"c-1"}, BulkTarget{}, manager("m-1")); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED without target, got %v", err)
	}
	if _, err := env.workflow.BulkReassign(ctx, []string{"c-1"}, BulkTarget{NewAssignee: &target, NewLineOfBusiness: &lob}, manager("m-1")); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED with both targets, got %v", err)
	}
	if _, err := env.workflow.BulkReassign(ctx, nil, BulkTarget{NewAssignee: &target}, manager("m-1")); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED for empty batch, got %v", err)
	}
}

func TestBulkReassignLOBMoveKeepsQueuePosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	old := time.Now().Add(-2 * time.Hour)
	seedQueuedCase(t, env, "c-moved", "retail", domain.CaseStatusNew, domain.LevelNone, old)
	seedQueuedCase(t, env, "c-native", "wealth", domain.CaseStatusNew, domain.LevelNone, time.Now().Add(-time.Hour))

	lob := "wealth"
	outcomes, err := env.workflow.BulkReassign(ctx, []string{"c-moved"}, BulkTarget{NewLineOfBusiness: &lob}, manager("m-1"))
	if err != nil {
		t.Fatalf("bulk reassign: %v", err)
	}
	if outcomes[0].Result != BulkResultReassigned {
		t.Fatalf("expected reassigned, got %+v", outcomes[0])
	}

	wealthAnalyst := domain.Identity{UserID: "a-9", Role: domain.RoleAnalyst, LineOfBusiness: "wealth"}
	first, err := env.assignment.GetNextCase(ctx, wealthAnalyst)
	if err != nil {
		t.Fatalf("get next: %v", err)
	}
	if first.ID != "c-moved" {
		t.Fatalf("moved case kept its original intake time and should be first, got %s", first.ID)
	}
}

func TestAuditTrailReconstructsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedQueuedCase(t, env, "c-1", "retail", domain.CaseStatusNew, domain.LevelNone, time.Now())

	if _, err := env.assignment.GetNextCase(ctx, analyst("a-1")); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := env.workflow.StartCase(ctx, "c-1", analyst("a-1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.workflow.EscalateCase(ctx, "c-1", domain.RoleManager, "review", analyst("a-1")); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, err := env.assignment.GetNextCase(ctx, manager("m-1")); err != nil {
		t.Fatalf("manager pickup: %v", err)
	}
	if _, err := env.workflow.SubmitDisposition(ctx, "c-1", "closed_no_action", manager("m-1")); err != nil {
		t.Fatalf("disposition: %v", err)
	}

	entries, err := env.reporting.CaseAudit(ctx, "c-1")
	if err != nil {
		t.Fatalf("case audit: %v", err)
	}
	wantChain := []domain.CaseStatus{
		domain.CaseStatusAssigned,
		domain.CaseStatusInProgress,
		domain.CaseStatusEscalated,
		domain.CaseStatusAssigned,
		domain.CaseStatusDispositioned,
	}
	if len(entries) != len(wantChain) {
		t.Fatalf("expected %d audit entries, got %d", len(wantChain), len(entries))
	}
	for i, entry := range entries {
		if entry.ToStatus != wantChain[i] {
			t.Fatalf("entry %d: expected transition to %s, got %s", i, wantChain[i], entry.ToStatus)
		}
		if i > 0 && entry.FromStatus != entries[i-1].ToStatus {
			t.Fatalf("entry %d: trail is not contiguous (%s after %s)", i, entry.FromStatus, entries[i-1].ToStatus)
		}
	}
}

func TestReportingProjections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedQueuedCase(t, env, "c-1", "retail", domain.CaseStatusNew, domain.LevelNone, time.Now())
	seedHeldCase(t, env, "c-2", "a-1", domain.CaseStatusInProgress, domain.LevelNone)

	distribution, err := env.reporting.WorkflowDistribution(ctx)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if distribution[domain.CaseStatusNew] != 1 || distribution[domain.CaseStatusInProgress] != 1 {
		t.Fatalf("unexpected distribution %+v", distribution)
	}

	capacities, err := env.reporting.TeamCapacity(ctx)
	if err != nil {
		t.Fatalf("team capacity: %v", err)
	}
	if len(capacities) != 1 || capacities[0].LineOfBusiness != "retail" {
		t.Fatalf("unexpected capacities %+v", capacities)
	}
	if capacities[0].ActiveCases != 1 || capacities[0].QueueDepths[domain.LevelNone] != 1 {
		t.Fatalf("unexpected retail capacity %+v", capacities[0])
	}

	if _, err := env.reporting.GetCase(ctx, "missing"); !apperrors.HasCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := env.reporting.CaseAudit(ctx, "missing"); !apperrors.HasCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND for audit of missing case, got %v", err)
	}
}
