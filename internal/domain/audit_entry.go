package domain

import "time"

// AuditEntry is an immutable record of one accepted case transition.
// Entries are append-only and totally ordered by (CaseID, Timestamp).
type AuditEntry struct {
	ID         string
	CaseID     string
	FromStatus CaseStatus
	ToStatus   CaseStatus
	ActorID    string
	ActorRole  Role
	Reason     *string
	Timestamp  time.Time
}
