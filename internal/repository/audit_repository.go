package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// AuditRepository stores the append-only transition log. Entries are never
// updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByCase(ctx context.Context, caseID string) ([]domain.AuditEntry, error)
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds the postgres-backed repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO case_audit (id, case_id, from_status, to_status, actor_id, actor_role, reason, ts)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.CaseID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.ActorRole,
		entry.Reason,
		entry.Timestamp,
	)
	return err
}

func (r *auditRepository) ListByCase(ctx context.Context, caseID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, case_id, from_status, to_status, actor_id, actor_role, reason, ts
        FROM case_audit WHERE case_id=$1 ORDER BY ts ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, case_id, from_status, to_status, actor_id, actor_role, reason, ts
        FROM case_audit ORDER BY ts DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.CaseID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Reason,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
