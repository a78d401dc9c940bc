// Package messagequeue defines the message queue port (interface) and the
// subjects the award core publishes on.
package messagequeue

import "context"

// Subjects for lifecycle events. Downstream consumers (notification workers,
// reporting, an external deadline sweeper) subscribe to these.
const (
	SubjectRequisitionStatus = "requisitions.status"
	SubjectAwardFinalized    = "awards.finalized"
	SubjectAwardResponse     = "awards.response"
	SubjectAwardPromoted     = "awards.promoted"
	SubjectAwardExpired      = "awards.expired"
	SubjectAwardFailed       = "awards.failed"
)

// Handler processes a received message.
type Handler func(subject string, data []byte) error

// Queue is the port interface for the message queue.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler Handler) (func(), error)
	Close() error
}
