package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openprocure/tenderd/internal/port/database"
	"github.com/openprocure/tenderd/internal/port/notifier"
)

// NotificationService delivers vendor notifications. Sends are best-effort:
// a delivery failure is logged and never affects the state transition that
// triggered it.
type NotificationService struct {
	store    database.Store
	notifier notifier.Notifier
}

// NewNotificationService creates a NotificationService. n may be nil to
// disable delivery entirely (e.g. in tests).
func NewNotificationService(store database.Store, n notifier.Notifier) *NotificationService {
	return &NotificationService{store: store, notifier: n}
}

// NotifyVendor looks up the vendor and sends a notification through the
// configured channel.
func (s *NotificationService) NotifyVendor(ctx context.Context, vendorID, source, subject, body string) {
	if s.notifier == nil {
		return
	}
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		slog.Warn("notify: vendor lookup failed", "vendor_id", vendorID, "error", err)
		return
	}
	err = s.notifier.Send(ctx, notifier.Notification{
		VendorEmail: v.Email,
		Subject:     subject,
		Body:        body,
		Source:      source,
	})
	if err != nil {
		slog.Warn("notify: send failed", "vendor_id", vendorID, "source", source, "error", err)
		return
	}
	slog.Info("vendor notified", "vendor_id", vendorID, "source", source)
}

// AwardPending notifies a vendor that it holds a pending award and must
// respond before the deadline.
func (s *NotificationService) AwardPending(ctx context.Context, vendorID, requisitionTitle string) {
	s.NotifyVendor(ctx, vendorID, "award.finalized",
		fmt.Sprintf("Award pending: %s", requisitionTitle),
		fmt.Sprintf("Your quotation for %q has been selected. Please accept or decline before the response deadline.", requisitionTitle))
}

// StandbyPromoted notifies a vendor promoted from standby.
func (s *NotificationService) StandbyPromoted(ctx context.Context, vendorID, requisitionTitle string) {
	s.NotifyVendor(ctx, vendorID, "award.promoted",
		fmt.Sprintf("Award offer: %s", requisitionTitle),
		fmt.Sprintf("The award for %q has passed to you. Please accept or decline before the response deadline.", requisitionTitle))
}

// RFQInvitation notifies a vendor that quoting is open.
func (s *NotificationService) RFQInvitation(ctx context.Context, vendorID, requisitionTitle string) {
	s.NotifyVendor(ctx, vendorID, "rfq.distributed",
		fmt.Sprintf("Request for quotation: %s", requisitionTitle),
		fmt.Sprintf("You are invited to submit a quotation for %q.", requisitionTitle))
}
