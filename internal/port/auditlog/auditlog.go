// Package auditlog defines the append-only audit trail port.
package auditlog

import (
	"context"

	"github.com/openprocure/tenderd/internal/domain/event"
)

// Store records every status transition for review. Appends are best-effort
// from the caller's perspective; a failed append is logged, never rolled
// back into the state change.
type Store interface {
	Append(ctx context.Context, entry *event.AuditEntry) error
	ListByRequisition(ctx context.Context, requisitionID string) ([]event.AuditEntry, error)
}
