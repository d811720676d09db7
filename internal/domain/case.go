package domain

import "time"

// CaseStatus enumerates lifecycle states for compliance review cases.
type CaseStatus string

const (
	CaseStatusNew           CaseStatus = "NEW"
	CaseStatusAssigned      CaseStatus = "ASSIGNED"
	CaseStatusInProgress    CaseStatus = "IN_PROGRESS"
	CaseStatusEscalated     CaseStatus = "ESCALATED"
	CaseStatusReturned      CaseStatus = "RETURNED"
	CaseStatusDispositioned CaseStatus = "DISPOSITIONED"
)

// Case is the aggregate for a compliance review.
//
// Assignee is set iff Status is ASSIGNED, IN_PROGRESS, ESCALATED-and-held, or
// RETURNED. Disposition is set iff Status is DISPOSITIONED, and once set the
// case is immutable except for audit reads. Version backs optimistic
// concurrency control in the store.
type Case struct {
	ID              string
	ExternalKey     string
	CustomerID      string
	Summary         string
	LineOfBusiness  string
	Status          CaseStatus
	Assignee        *string
	OriginalAnalyst *string
	EscalationLevel EscalationLevel
	ReturnReason    *string
	Disposition     *string
	DispositionedBy *string
	QueuedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// HeldBy reports whether the case is currently assigned to the given user.
func (c *Case) HeldBy(userID string) bool {
	return c.Assignee != nil && *c.Assignee == userID
}

// Terminal reports whether the case has reached its final state.
func (c *Case) Terminal() bool {
	return c.Status == CaseStatusDispositioned
}
