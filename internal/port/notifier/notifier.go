// Package notifier defines the vendor notification port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier. Delivery is
// best-effort: a send failure never rolls back the state transition that
// triggered it.
type Notification struct {
	VendorEmail string `json:"vendor_email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Source      string `json:"source"` // e.g. "award.finalized", "award.promoted"
}

// Notifier is the port interface for sending vendor notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "email").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}
