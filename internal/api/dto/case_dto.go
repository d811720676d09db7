package dto

import (
	"time"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	LineOfBusiness string `json:"line_of_business"`
	CustomerID     string `json:"customer_id"`
	Summary        string `json:"summary"`
}

// BulkCreateCasesRequest payload.
type BulkCreateCasesRequest struct {
	Cases []CreateCaseRequest `json:"cases"`
}

// CaseSummary response.
type CaseSummary struct {
	ID              string                 `json:"id"`
	ExternalKey     string                 `json:"external_key"`
	CustomerID      string                 `json:"customer_id"`
	Summary         string                 `json:"summary"`
	LineOfBusiness  string                 `json:"line_of_business"`
	Status          domain.CaseStatus      `json:"status"`
	Assignee        *string                `json:"assignee,omitempty"`
	EscalationLevel domain.EscalationLevel `json:"escalation_level"`
	ReturnReason    *string                `json:"return_reason,omitempty"`
	Disposition     *string                `json:"disposition,omitempty"`
	QueuedAt        time.Time              `json:"queued_at"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// AuditEntryResponse response.
type AuditEntryResponse struct {
	ID         string            `json:"id"`
	CaseID     string            `json:"case_id"`
	FromStatus domain.CaseStatus `json:"from_status"`
	ToStatus   domain.CaseStatus `json:"to_status"`
	ActorID    string            `json:"actor_id"`
	ActorRole  domain.Role       `json:"actor_role"`
	Reason     *string           `json:"reason,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewCaseSummary maps a domain case to its response shape.
func NewCaseSummary(c *domain.Case) CaseSummary {
	return CaseSummary{
		ID:              c.ID,
		ExternalKey:     c.ExternalKey,
		CustomerID:      c.CustomerID,
		Summary:         c.Summary,
		LineOfBusiness:  c.LineOfBusiness,
		Status:          c.Status,
		Assignee:        c.Assignee,
		EscalationLevel: c.EscalationLevel,
		ReturnReason:    c.ReturnReason,
		Disposition:     c.Disposition,
		QueuedAt:        c.QueuedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// NewCaseSummaries maps a slice of cases.
func NewCaseSummaries(cases []domain.Case) []CaseSummary {
	items := make([]CaseSummary, 0, len(cases))
	for i := range cases {
		items = append(items, NewCaseSummary(&cases[i]))
	}
	return items
}

// NewAuditEntryResponse maps an audit entry.
func NewAuditEntryResponse(entry *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         entry.ID,
		CaseID:     entry.CaseID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Reason:     entry.Reason,
		Timestamp:  entry.Timestamp,
	}
}

// NewAuditEntryResponses maps a slice of audit entries.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	items := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, NewAuditEntryResponse(&entries[i]))
	}
	return items
}
