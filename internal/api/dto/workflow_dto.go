package dto

import "github.com/spec-kit/case-workflow-service/internal/domain"

// EscalateRequest payload.
type EscalateRequest struct {
	CaseID          string      `json:"case_id"`
	DestinationRole domain.Role `json:"destination_role"`
	Reason          string      `json:"reason"`
}

// ReturnCaseRequest payload.
type ReturnCaseRequest struct {
	CaseID        string  `json:"case_id"`
	Reason        string  `json:"reason"`
	TargetAnalyst *string `json:"target_analyst,omitempty"`
}

// StartCaseRequest payload.
type StartCaseRequest struct {
	CaseID string `json:"case_id"`
}

// DispositionRequest payload.
type DispositionRequest struct {
	CaseID   string `json:"case_id"`
	Decision string `json:"decision"`
}

// BulkReassignRequest payload.
type BulkReassignRequest struct {
	CaseIDs           []string `json:"case_ids"`
	NewAssignee       *string  `json:"new_assignee,omitempty"`
	NewLineOfBusiness *string  `json:"new_line_of_business,omitempty"`
}

// BulkReassignOutcome per-case result.
type BulkReassignOutcome struct {
	CaseID string `json:"case_id"`
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}
