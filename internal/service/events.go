package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openprocure/tenderd/internal/domain/event"
	"github.com/openprocure/tenderd/internal/port/auditlog"
	"github.com/openprocure/tenderd/internal/port/messagequeue"
)

// Broadcaster pushes lifecycle events to connected dashboard clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// emitter bundles the best-effort side channels of a state transition:
// queue publish, WebSocket broadcast and audit append. Failures are logged
// and never roll back the transition that produced them.
type emitter struct {
	queue messagequeue.Queue
	hub   Broadcaster
	audit auditlog.Store
}

func (e *emitter) publish(ctx context.Context, subject, eventType string, payload any) {
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, eventType, payload)
	}
	if e.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := e.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish event", "subject", subject, "error", err)
	}
}

func (e *emitter) auditTransition(ctx context.Context, requisitionID, actorID, scope, from, to, reason string) {
	if e.audit == nil {
		return
	}
	entry := &event.AuditEntry{
		ID:            uuid.NewString(),
		RequisitionID: requisitionID,
		ActorID:       actorID,
		Scope:         scope,
		FromStatus:    from,
		ToStatus:      to,
		Reason:        reason,
		At:            time.Now().UTC(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		slog.Error("audit append failed", "requisition_id", requisitionID, "error", err)
	}
}
