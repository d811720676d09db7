package events

import (
	"time"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated       EventType = "case_created"
	EventCaseAssigned      EventType = "case_assigned"
	EventCaseStarted       EventType = "case_started"
	EventCaseEscalated     EventType = "case_escalated"
	EventCaseReturned      EventType = "case_returned"
	EventCaseReassigned    EventType = "case_reassigned"
	EventCaseDispositioned EventType = "case_dispositioned"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    string      `json:"case_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	LineOfBusiness string `json:"line_of_business"`
	ExternalKey    string `json:"external_key"`
}

// CaseAssignedPayload payload.
type CaseAssignedPayload struct {
	Assignee       string `json:"assignee"`
	LineOfBusiness string `json:"line_of_business"`
}

// CaseEscalatedPayload payload.
type CaseEscalatedPayload struct {
	Destination domain.EscalationLevel `json:"destination"`
	Reason      string                 `json:"reason"`
}

// CaseReturnedPayload payload.
type CaseReturnedPayload struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// CaseReassignedPayload payload.
type CaseReassignedPayload struct {
	NewAssignee       *string `json:"new_assignee,omitempty"`
	NewLineOfBusiness *string `json:"new_line_of_business,omitempty"`
}

// CaseDispositionedPayload payload.
type CaseDispositionedPayload struct {
	Decision string `json:"decision"`
}
