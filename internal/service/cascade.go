package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/openprocure/tenderd/internal/adapter/otel"
	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/award"
	"github.com/openprocure/tenderd/internal/domain/event"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/locker"
	"github.com/openprocure/tenderd/internal/port/auditlog"
	"github.com/openprocure/tenderd/internal/port/database"
	"github.com/openprocure/tenderd/internal/port/messagequeue"
)

// ResponseAction is a vendor's answer to a pending award.
type ResponseAction string

const (
	ActionAccept  ResponseAction = "accept"
	ActionDecline ResponseAction = "decline"
)

// DeadlineReason is the decline reason recorded on auto-decline.
const DeadlineReason = "deadline passed"

// systemActor is the principal attributed to deadline-triggered transitions.
var systemActor = &user.User{ID: "system", Name: "system", Role: user.RoleAdmin}

// CascadeService processes vendor accept/decline responses and runs the
// standby promotion cascade, including deadline-expiry auto-decline.
type CascadeService struct {
	store   database.Store
	locks   *locker.Registry
	em      emitter
	notify  *NotificationService
	metrics *otel.Metrics
}

// NewCascadeService creates a CascadeService with all dependencies.
func NewCascadeService(
	store database.Store,
	locks *locker.Registry,
	queue messagequeue.Queue,
	hub Broadcaster,
	audit auditlog.Store,
	notify *NotificationService,
	metrics *otel.Metrics,
) *CascadeService {
	return &CascadeService{
		store:   store,
		locks:   locks,
		em:      emitter{queue: queue, hub: hub, audit: audit},
		notify:  notify,
		metrics: metrics,
	}
}

// CascadeResult reports what a response (or expiry check) did.
type CascadeResult struct {
	Scope          string         `json:"scope"` // "requisition" or a requisition item ID
	Action         ResponseAction `json:"action"`
	NoOp           bool           `json:"noop"`
	TargetID       string         `json:"target_id,omitempty"`
	TargetStatus   award.Status   `json:"target_status,omitempty"`
	PromotedID     string         `json:"promoted_id,omitempty"`
	PromotedVendor string         `json:"promoted_vendor,omitempty"`
	ScopeStatus    award.Status   `json:"scope_status,omitempty"`
}

// RespondQuotation handles a vendor response to a whole-quotation award
// (single-vendor strategy). A decline promotes the next-ranked standby; when
// no standby remains the requisition drops to award_declined.
func (s *CascadeService) RespondQuotation(ctx context.Context, actor *user.User, quotationID string, action ResponseAction, reason string) (*CascadeResult, error) {
	q, err := s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if err := requireVendorOrReviewer(actor, q.VendorID); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, q.RequisitionID)
	if err != nil {
		return nil, fmt.Errorf("acquire requisition lock: %w", err)
	}
	defer release()

	// Re-read under the lock: the state may have advanced while waiting.
	q, err = s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, q.RequisitionID)
	if err != nil {
		return nil, err
	}
	if r.RFQ.Strategy == requisition.StrategyItem {
		return nil, fmt.Errorf("requisition %s awards per item; respond on the award item: %w",
			r.ID, domain.ErrValidation)
	}

	ctx, span := otel.StartCascadeSpan(ctx, q.ID, string(action))
	defer span.End()

	return s.respondQuotationLocked(ctx, actor, r, q, action, reason)
}

func (s *CascadeService) respondQuotationLocked(ctx context.Context, actor *user.User, r *requisition.Requisition, q *quotation.Quotation, action ResponseAction, reason string) (*CascadeResult, error) {
	result := &CascadeResult{Scope: "requisition", Action: action, TargetID: q.ID}

	if q.Status != quotation.StatusPendingAward {
		// Idempotent for declines (covers repeated expiry checks); an
		// explicit accept of a non-pending target is a conflict.
		if action == ActionDecline {
			result.NoOp = true
			result.TargetStatus = award.Status(q.Status)
			return result, nil
		}
		return nil, fmt.Errorf("quotation %s is %s, not pending award: %w",
			q.ID, q.Status, domain.ErrInvalidTransition)
	}

	prev := q.Status
	switch action {
	case ActionAccept:
		q.Status = quotation.StatusAccepted
	case ActionDecline:
		q.Status = quotation.StatusDeclined
	default:
		return nil, fmt.Errorf("unknown response action %q: %w", action, domain.ErrValidation)
	}
	q.ResponseReason = reason
	if err := s.store.UpdateQuotation(ctx, q); err != nil {
		return nil, err
	}
	result.TargetStatus = award.Status(q.Status)

	s.em.auditTransition(ctx, r.ID, actor.ID, "quotation:"+q.ID, string(prev), string(q.Status), reason)
	s.em.publish(ctx, messagequeue.SubjectAwardResponse, event.TypeVendorResponded, event.AwardEvent{
		RequisitionID: r.ID,
		QuotationID:   q.ID,
		VendorID:      q.VendorID,
		Status:        string(q.Status),
		Reason:        reason,
	})

	if action == ActionAccept {
		if s.metrics != nil {
			s.metrics.VendorAccepts.Add(ctx, 1)
		}
		result.ScopeStatus = award.StatusAccepted
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.VendorDeclines.Add(ctx, 1)
	}

	return s.promoteQuotation(ctx, actor, r, result)
}

// promoteQuotation moves the next-ranked standby quotation to pending award,
// restarting the response clock. Exhaustion drops the requisition to
// award_declined.
func (s *CascadeService) promoteQuotation(ctx context.Context, actor *user.User, r *requisition.Requisition, result *CascadeResult) (*CascadeResult, error) {
	quotations, err := s.store.ListQuotations(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	var next *quotation.Quotation
	for i := range quotations {
		q := &quotations[i]
		if q.Status != quotation.StatusStandby {
			continue
		}
		if next == nil || q.Rank < next.Rank {
			next = q
		}
	}

	if next == nil {
		prev := r.Status
		r.Status = requisition.StatusAwardDeclined
		r.AwardResponseDeadline = nil
		if err := s.store.UpdateRequisition(ctx, r); err != nil {
			return nil, err
		}
		result.ScopeStatus = award.StatusFailedToAward
		s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", string(prev), string(r.Status), "all standbys exhausted")
		s.em.publish(ctx, messagequeue.SubjectAwardFailed, event.TypeFailedToAward, event.AwardEvent{
			RequisitionID: r.ID,
			Status:        string(award.StatusFailedToAward),
		})
		if s.metrics != nil {
			s.metrics.FailedToAward.Add(ctx, 1)
		}
		slog.Warn("failed to award, standbys exhausted", "requisition_id", r.ID)
		return result, nil
	}

	prev := next.Status
	next.Status = quotation.StatusPendingAward
	next.ResponseReason = ""
	if err := s.store.UpdateQuotation(ctx, next); err != nil {
		return nil, err
	}
	if err := s.restartResponseClock(ctx, r); err != nil {
		return nil, err
	}

	result.PromotedID = next.ID
	result.PromotedVendor = next.VendorID
	result.ScopeStatus = award.StatusPendingAward

	s.em.auditTransition(ctx, r.ID, actor.ID, "quotation:"+next.ID, string(prev), string(next.Status), "standby promoted")
	s.em.publish(ctx, messagequeue.SubjectAwardPromoted, event.TypeStandbyPromoted, event.AwardEvent{
		RequisitionID: r.ID,
		QuotationID:   next.ID,
		VendorID:      next.VendorID,
		Status:        string(quotation.StatusPendingAward),
	})
	if s.metrics != nil {
		s.metrics.StandbyPromotions.Add(ctx, 1)
	}
	if s.notify != nil {
		s.notify.StandbyPromoted(ctx, next.VendorID, r.Title)
	}
	return result, nil
}

// RespondItem handles a vendor response to one per-item award target. Sibling
// items' cascades are independent.
func (s *CascadeService) RespondItem(ctx context.Context, actor *user.User, detailID string, action ResponseAction, reason string) (*CascadeResult, error) {
	d, err := s.store.GetAwardDetail(ctx, detailID)
	if err != nil {
		return nil, err
	}
	if err := requireVendorOrReviewer(actor, d.VendorID); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, d.RequisitionID)
	if err != nil {
		return nil, fmt.Errorf("acquire requisition lock: %w", err)
	}
	defer release()

	d, err = s.store.GetAwardDetail(ctx, detailID)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, d.RequisitionID)
	if err != nil {
		return nil, err
	}
	ctx, span := otel.StartCascadeSpan(ctx, d.QuotationID, string(action))
	defer span.End()

	return s.respondItemLocked(ctx, actor, r, d, action, reason)
}

func (s *CascadeService) respondItemLocked(ctx context.Context, actor *user.User, r *requisition.Requisition, d *award.PerItemAwardDetail, action ResponseAction, reason string) (*CascadeResult, error) {
	result := &CascadeResult{Scope: d.RequisitionItemID, Action: action, TargetID: d.ID}

	if !d.Status.Open() {
		if action == ActionDecline {
			result.NoOp = true
			result.TargetStatus = d.Status
			return result, nil
		}
		return nil, fmt.Errorf("award item %s is %s, not pending award: %w",
			d.ID, d.Status, domain.ErrInvalidTransition)
	}

	prev := d.Status
	switch action {
	case ActionAccept:
		d.Status = award.StatusAccepted
	case ActionDecline:
		d.Status = award.StatusDeclined
	default:
		return nil, fmt.Errorf("unknown response action %q: %w", action, domain.ErrValidation)
	}
	d.ResponseReason = reason
	if err := s.store.UpdateAwardDetail(ctx, d); err != nil {
		return nil, err
	}
	result.TargetStatus = d.Status

	s.em.auditTransition(ctx, r.ID, actor.ID, "item:"+d.RequisitionItemID, string(prev), string(d.Status), reason)
	s.em.publish(ctx, messagequeue.SubjectAwardResponse, event.TypeVendorResponded, event.AwardEvent{
		RequisitionID:     r.ID,
		RequisitionItemID: d.RequisitionItemID,
		QuotationID:       d.QuotationID,
		VendorID:          d.VendorID,
		Status:            string(d.Status),
		Reason:            reason,
	})

	if action == ActionAccept {
		if s.metrics != nil {
			s.metrics.VendorAccepts.Add(ctx, 1)
		}
		result.ScopeStatus = award.StatusAccepted
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.VendorDeclines.Add(ctx, 1)
	}

	return s.promoteItem(ctx, actor, r, d.RequisitionItemID, result)
}

// promoteItem moves the item's next-ranked standby to pending award. When the
// item has no standby left its scope is exhausted; the requisition itself
// only drops to award_declined once every item scope is terminal without an
// acceptance path remaining.
func (s *CascadeService) promoteItem(ctx context.Context, actor *user.User, r *requisition.Requisition, itemID string, result *CascadeResult) (*CascadeResult, error) {
	details, err := s.store.ListAwardDetails(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	var next *award.PerItemAwardDetail
	var itemStatuses []award.Status
	for i := range details {
		d := &details[i]
		if d.RequisitionItemID != itemID {
			continue
		}
		itemStatuses = append(itemStatuses, d.Status)
		if d.Status != award.StatusStandby {
			continue
		}
		if next == nil || d.Rank < next.Rank {
			next = d
		}
	}

	if next == nil {
		result.ScopeStatus = award.ScopeStatus(itemStatuses)
		s.em.publish(ctx, messagequeue.SubjectAwardFailed, event.TypeFailedToAward, event.AwardEvent{
			RequisitionID:     r.ID,
			RequisitionItemID: itemID,
			Status:            string(award.StatusFailedToAward),
		})
		if s.metrics != nil {
			s.metrics.FailedToAward.Add(ctx, 1)
		}
		slog.Warn("item failed to award, standbys exhausted",
			"requisition_id", r.ID, "item_id", itemID)

		if s.allScopesExhausted(details) {
			prev := r.Status
			r.Status = requisition.StatusAwardDeclined
			r.AwardResponseDeadline = nil
			if err := s.store.UpdateRequisition(ctx, r); err != nil {
				return nil, err
			}
			s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", string(prev), string(r.Status), "all item scopes exhausted")
		}
		return result, nil
	}

	prev := next.Status
	next.Status = award.StatusPendingAward
	next.ResponseReason = ""
	if err := s.store.UpdateAwardDetail(ctx, next); err != nil {
		return nil, err
	}
	if err := s.restartResponseClock(ctx, r); err != nil {
		return nil, err
	}

	result.PromotedID = next.ID
	result.PromotedVendor = next.VendorID
	result.ScopeStatus = award.StatusPendingAward

	s.em.auditTransition(ctx, r.ID, actor.ID, "item:"+itemID, string(prev), string(next.Status), "standby promoted")
	s.em.publish(ctx, messagequeue.SubjectAwardPromoted, event.TypeStandbyPromoted, event.AwardEvent{
		RequisitionID:     r.ID,
		RequisitionItemID: itemID,
		QuotationID:       next.QuotationID,
		VendorID:          next.VendorID,
		Status:            string(award.StatusPendingAward),
	})
	if s.metrics != nil {
		s.metrics.StandbyPromotions.Add(ctx, 1)
	}
	if s.notify != nil {
		s.notify.StandbyPromoted(ctx, next.VendorID, r.Title)
	}
	return result, nil
}

// allScopesExhausted reports whether every item scope has failed: no
// acceptance and no candidate left to respond or promote.
func (s *CascadeService) allScopesExhausted(details []award.PerItemAwardDetail) bool {
	byItem := make(map[string][]award.Status)
	for i := range details {
		byItem[details[i].RequisitionItemID] = append(byItem[details[i].RequisitionItemID], details[i].Status)
	}
	for _, statuses := range byItem {
		if award.ScopeStatus(statuses) != award.StatusFailedToAward {
			return false
		}
	}
	return len(byItem) > 0
}

// ExpireIfPastDeadline auto-declines every target still pending award once
// the response deadline has passed, exactly as if the vendor declined with
// reason "deadline passed". It is evaluated lazily on reads and repeated
// invocation after the state has advanced is a no-op.
func (s *CascadeService) ExpireIfPastDeadline(ctx context.Context, requisitionID string, now time.Time) ([]CascadeResult, error) {
	release, err := s.locks.Acquire(ctx, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("acquire requisition lock: %w", err)
	}
	defer release()

	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if r.Status != requisition.StatusAwarded || r.AwardResponseDeadline == nil || !now.After(*r.AwardResponseDeadline) {
		return nil, nil
	}

	var results []CascadeResult
	if r.RFQ.Strategy == requisition.StrategyItem {
		details, err := s.store.ListAwardDetails(ctx, requisitionID)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(details, func(i, j int) bool {
			return details[i].RequisitionItemID < details[j].RequisitionItemID
		})
		for i := range details {
			if !details[i].Status.Open() {
				continue
			}
			res, err := s.respondItemLocked(ctx, systemActor, r, &details[i], ActionDecline, DeadlineReason)
			if err != nil {
				return results, err
			}
			s.countExpiry(ctx)
			results = append(results, *res)
		}
	} else {
		quotations, err := s.store.ListQuotations(ctx, requisitionID)
		if err != nil {
			return nil, err
		}
		for i := range quotations {
			if quotations[i].Status != quotation.StatusPendingAward {
				continue
			}
			res, err := s.respondQuotationLocked(ctx, systemActor, r, &quotations[i], ActionDecline, DeadlineReason)
			if err != nil {
				return results, err
			}
			s.countExpiry(ctx)
			results = append(results, *res)
		}
	}

	if len(results) > 0 {
		s.em.publish(ctx, messagequeue.SubjectAwardExpired, event.TypeAwardExpired, event.AwardEvent{
			RequisitionID: requisitionID,
			Reason:        DeadlineReason,
		})
	}
	return results, nil
}

func (s *CascadeService) countExpiry(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.DeadlineExpiries.Add(ctx, 1)
	}
}

// restartResponseClock extends the award response deadline after a promotion
// so the promoted vendor gets a full response window.
func (s *CascadeService) restartResponseClock(ctx context.Context, r *requisition.Requisition) error {
	cfg, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().UTC().Add(cfg.ResponseWindow)
	r.AwardResponseDeadline = &deadline
	return s.store.UpdateRequisition(ctx, r)
}

// requireVendorOrReviewer allows the owning vendor, reviewers and admins.
func requireVendorOrReviewer(actor *user.User, vendorID string) error {
	if actor == nil {
		return fmt.Errorf("no authenticated user: %w", domain.ErrUnauthorized)
	}
	switch actor.Role {
	case user.RoleAdmin, user.RoleReviewer:
		return nil
	case user.RoleVendor:
		if actor.VendorID == vendorID {
			return nil
		}
	}
	return fmt.Errorf("user %s may not respond for vendor %s: %w",
		actor.ID, vendorID, domain.ErrUnauthorized)
}
