package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// ErrVersionConflict signals that a case was updated concurrently since it
// was read. Callers decide whether to retry against fresh state.
var ErrVersionConflict = errors.New("case version conflict")

// CaseFilter captures listing parameters.
type CaseFilter struct {
	LineOfBusiness   *string
	AssigneeID       *string
	DispositionedBy  *string
	InvolvedUserID   *string
	Statuses         []domain.CaseStatus
	EscalationLevels []domain.EscalationLevel
	Unassigned       bool
	EscalatedOnly    bool
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	OrderByQueuedAt  bool
	Limit            int
	Offset           int
}

// CaseRepository encapsulates case persistence. It is the single source of
// truth for case state; the queue index is derived from it.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	// Update applies the mutation only when the stored version still matches
	// c.Version, returning ErrVersionConflict otherwise.
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	CountByStatus(ctx context.Context) (map[domain.CaseStatus]int, error)
	CountAssignedByLOB(ctx context.Context) (map[string]int, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates the postgres-backed repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, external_key, customer_id, summary, line_of_business, status, assignee,
               original_analyst, escalation_level, return_reason, disposition, dispositioned_by,
               queued_at, created_at, updated_at, version`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (id, external_key, customer_id, summary, line_of_business, status, assignee,
            original_analyst, escalation_level, return_reason, disposition, dispositioned_by, queued_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		c.ID,
		c.ExternalKey,
		c.CustomerID,
		c.Summary,
		c.LineOfBusiness,
		c.Status,
		c.Assignee,
		c.OriginalAnalyst,
		c.EscalationLevel,
		c.ReturnReason,
		c.Disposition,
		c.DispositionedBy,
		c.QueuedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt, &c.Version)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET status=$1, assignee=$2, original_analyst=$3, escalation_level=$4,
            return_reason=$5, disposition=$6, dispositioned_by=$7, line_of_business=$8,
            queued_at=$9, updated_at=NOW(), version=version+1
        WHERE id=$10 AND version=$11`
	cmd, err := r.pool.Exec(ctx, query,
		c.Status,
		c.Assignee,
		c.OriginalAnalyst,
		c.EscalationLevel,
		c.ReturnReason,
		c.Disposition,
		c.DispositionedBy,
		c.LineOfBusiness,
		c.QueuedAt,
		c.ID,
		c.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id=$1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVersionConflict
		}
		return pgx.ErrNoRows
	}
	c.Version++
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE id=$1`, caseColumns)
	var c domain.Case
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.ExternalKey,
		&c.CustomerID,
		&c.Summary,
		&c.LineOfBusiness,
		&c.Status,
		&c.Assignee,
		&c.OriginalAnalyst,
		&c.EscalationLevel,
		&c.ReturnReason,
		&c.Disposition,
		&c.DispositionedBy,
		&c.QueuedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	base := fmt.Sprintf(`SELECT %s FROM cases`, caseColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.LineOfBusiness != nil {
		args = append(args, *filter.LineOfBusiness)
		clauses = append(clauses, fmt.Sprintf("line_of_business=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee=$%d", len(args)))
	}
	if filter.DispositionedBy != nil {
		args = append(args, *filter.DispositionedBy)
		clauses = append(clauses, fmt.Sprintf("dispositioned_by=$%d", len(args)))
	}
	if filter.InvolvedUserID != nil {
		args = append(args, *filter.InvolvedUserID)
		clauses = append(clauses, fmt.Sprintf("(assignee=$%d OR original_analyst=$%d OR dispositioned_by=$%d)", len(args), len(args), len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.EscalationLevels) > 0 {
		placeholders := make([]string, len(filter.EscalationLevels))
		for i, level := range filter.EscalationLevels {
			args = append(args, level)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("escalation_level IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee IS NULL")
	}
	if filter.EscalatedOnly {
		clauses = append(clauses, "escalation_level <> 'NONE'")
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	order := "updated_at DESC"
	if filter.OrderByQueuedAt {
		order = "queued_at ASC, id ASC"
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func (r *caseRepository) CountByStatus(ctx context.Context) (map[domain.CaseStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM cases GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.CaseStatus]int)
	for rows.Next() {
		var status domain.CaseStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *caseRepository) CountAssignedByLOB(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT line_of_business, COUNT(*) FROM cases
        WHERE assignee IS NOT NULL GROUP BY line_of_business`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var lob string
		var count int
		if err := rows.Scan(&lob, &count); err != nil {
			return nil, err
		}
		result[lob] = count
	}
	return result, rows.Err()
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(
			&c.ID,
			&c.ExternalKey,
			&c.CustomerID,
			&c.Summary,
			&c.LineOfBusiness,
			&c.Status,
			&c.Assignee,
			&c.OriginalAnalyst,
			&c.EscalationLevel,
			&c.ReturnReason,
			&c.Disposition,
			&c.DispositionedBy,
			&c.QueuedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.Version,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
