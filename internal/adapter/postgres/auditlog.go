package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openprocure/tenderd/internal/domain/event"
)

// AuditLog is the postgres-backed audit trail.
type AuditLog struct {
	pool *pgxpool.Pool
}

func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

func (a *AuditLog) Append(ctx context.Context, entry *event.AuditEntry) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO audit_log (id, requisition_id, actor_id, scope, from_status, to_status, reason, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.RequisitionID, entry.ActorID, entry.Scope,
		entry.FromStatus, entry.ToStatus, entry.Reason, entry.At)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) ListByRequisition(ctx context.Context, requisitionID string) ([]event.AuditEntry, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, requisition_id, actor_id, scope, from_status, to_status, reason, at
		 FROM audit_log WHERE requisition_id = $1 ORDER BY at ASC`, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []event.AuditEntry
	for rows.Next() {
		var e event.AuditEntry
		if err := rows.Scan(&e.ID, &e.RequisitionID, &e.ActorID, &e.Scope,
			&e.FromStatus, &e.ToStatus, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
