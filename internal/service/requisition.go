package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

// RequisitionService owns the top-level requisition lifecycle: creation,
// stage transitions and the deadline-driven transitions applied lazily on
// reads. One requisition's workflow is independent of every other's.
type RequisitionService struct {
	store   database.Store
	locks   *locker.Registry
	em      emitter
	notify  *NotificationService
	cascade *CascadeService
	now     func() time.Time
}

// NewRequisitionService creates a RequisitionService.
func NewRequisitionService(
	store database.Store,
	locks *locker.Registry,
	queue messagequeue.Queue,
	hub Broadcaster,
	audit auditlog.Store,
	notify *NotificationService,
	cascade *CascadeService,
) *RequisitionService {
	return &RequisitionService{
		store:   store,
		locks:   locks,
		em:      emitter{queue: queue, hub: hub, audit: audit},
		notify:  notify,
		cascade: cascade,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new requisition. It enters the lifecycle as
// pre-approved; the submission approval chain runs outside this service.
func (s *RequisitionService) Create(ctx context.Context, actor *user.User, req requisition.CreateRequest) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleRequester); err != nil {
		return nil, err
	}
	if err := requisition.ValidateCreate(&req, s.now()); err != nil {
		return nil, err
	}
	r, err := s.store.CreateRequisition(ctx, req)
	if err != nil {
		return nil, err
	}
	s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", "", string(r.Status), "created")
	slog.Info("requisition created", "requisition_id", r.ID, "strategy", r.RFQ.Strategy)
	return r, nil
}

// List returns all requisitions.
func (s *RequisitionService) List(ctx context.Context) ([]requisition.Requisition, error) {
	return s.store.ListRequisitions(ctx)
}

// Get fetches a requisition, first applying any deadline-driven transitions
// that have become due since the last interaction (lazy evaluation: staleness
// is bounded by time-until-next-read, an accepted trade-off).
func (s *RequisitionService) Get(ctx context.Context, id string) (*requisition.Requisition, error) {
	if err := s.AdvanceOnRead(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetRequisition(ctx, id)
}

// AdvanceOnRead applies due deadline-driven transitions: the quote-deadline
// rollover into scoring and the award-response expiry cascade. It is
// idempotent; with nothing due it touches nothing.
func (s *RequisitionService) AdvanceOnRead(ctx context.Context, id string) error {
	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()

	if r.Status == requisition.StatusAcceptingQuotes && now.After(r.Deadline) {
		if err := s.rolloverQuoteDeadline(ctx, r, now); err != nil {
			return err
		}
	}

	if r.Status == requisition.StatusAwarded && r.AwardResponseDeadline != nil && now.After(*r.AwardResponseDeadline) {
		if _, err := s.cascade.ExpireIfPastDeadline(ctx, id, now); err != nil {
			return err
		}
	}
	return nil
}

// rolloverQuoteDeadline moves an accepting_quotes requisition into scoring
// once its deadline has passed and the quorum is met. Below quorum the stage
// is left unchanged; reviewers reopen or restart explicitly.
func (s *RequisitionService) rolloverQuoteDeadline(ctx context.Context, r *requisition.Requisition, now time.Time) error {
	release, err := s.locks.Acquire(ctx, r.ID)
	if err != nil {
		return err
	}
	defer release()

	r, err = s.store.GetRequisition(ctx, r.ID)
	if err != nil {
		return err
	}
	if r.Status != requisition.StatusAcceptingQuotes || !now.After(r.Deadline) {
		return nil
	}

	quotations, err := s.store.ListQuotations(ctx, r.ID)
	if err != nil {
		return err
	}
	cfg, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	in := requisition.GuardInput{Now: now, QuoteCount: len(activeQuotations(quotations)), CommitteeQuorum: cfg.CommitteeQuorum}
	if err := r.Guard(requisition.StatusScoringInProgress, in); err != nil {
		// Below quorum is not an error on a read path; the requisition
		// simply stays put until a reviewer acts.
		slog.Debug("quote deadline passed without quorum",
			"requisition_id", r.ID, "quotes", len(quotations), "quorum", cfg.CommitteeQuorum)
		return nil
	}
	return s.transition(ctx, systemActor, r, requisition.StatusScoringInProgress, "quote deadline passed")
}

// DistributeRFQ opens a pre-approved requisition for quoting and invites the
// given vendors.
func (s *RequisitionService) DistributeRFQ(ctx context.Context, actor *user.User, id string, vendorIDs []string) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Guard(requisition.StatusAcceptingQuotes, requisition.GuardInput{Now: s.now()}); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, actor, r, requisition.StatusAcceptingQuotes, "rfq distributed"); err != nil {
		return nil, err
	}
	if s.notify != nil {
		for _, vendorID := range vendorIDs {
			s.notify.RFQInvitation(ctx, vendorID, r.Title)
		}
	}
	return r, nil
}

// Reopen extends the quote deadline of a requisition whose deadline passed
// with too few bids. The stage does not change.
func (s *RequisitionService) Reopen(ctx context.Context, actor *user.User, id string, newDeadline time.Time) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != requisition.StatusAcceptingQuotes {
		return nil, fmt.Errorf("requisition %s is %s, cannot reopen quoting: %w",
			r.ID, r.Status, domain.ErrInvalidTransition)
	}
	if !newDeadline.After(s.now()) {
		return nil, fmt.Errorf("new deadline must be in the future: %w", domain.ErrValidation)
	}
	r.Deadline = newDeadline
	if err := s.store.UpdateRequisition(ctx, r); err != nil {
		return nil, err
	}
	s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", string(r.Status), string(r.Status), "quote deadline extended")
	return r, nil
}

// RestartRFQ is the compensating recovery action: after zero bids or an
// exhausted award it re-points the requisition at pre_approved and rejects
// all in-flight quotations.
func (s *RequisitionService) RestartRFQ(ctx context.Context, actor *user.User, id string) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case requisition.StatusAcceptingQuotes, requisition.StatusAwardDeclined:
	default:
		return nil, fmt.Errorf("requisition %s is %s, cannot restart RFQ: %w",
			r.ID, r.Status, domain.ErrInvalidTransition)
	}

	if err := s.rejectOpenQuotations(ctx, r.ID, "rfq restarted"); err != nil {
		return nil, err
	}
	if err := s.supersedePriorCycle(ctx, r.ID); err != nil {
		return nil, err
	}
	r.AwardResponseDeadline = nil
	if err := s.transition(ctx, actor, r, requisition.StatusPreApproved, "rfq restarted"); err != nil {
		return nil, err
	}
	return r, nil
}

// supersedePriorCycle retires the artifacts of a spent award cycle so the
// next distribute-quote-score-finalize round starts clean: award details are
// marked restarted and the committee's submission marks are cleared.
func (s *RequisitionService) supersedePriorCycle(ctx context.Context, requisitionID string) error {
	details, err := s.store.ListAwardDetails(ctx, requisitionID)
	if err != nil {
		return err
	}
	for i := range details {
		d := &details[i]
		if d.Status == award.StatusRestarted {
			continue
		}
		d.Status = award.StatusRestarted
		if err := s.store.UpdateAwardDetail(ctx, d); err != nil {
			return err
		}
	}
	return s.store.ClearScoreSubmissions(ctx, requisitionID)
}

// Cancel is a compensating transition to closed. Open quotations are
// rejected; there is no in-flight async work to interrupt.
func (s *RequisitionService) Cancel(ctx context.Context, actor *user.User, id, reason string) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == requisition.StatusClosed {
		return r, nil
	}
	if err := s.rejectOpenQuotations(ctx, r.ID, "rfq cancelled"); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "rfq cancelled"
	}
	if err := s.transition(ctx, actor, r, requisition.StatusClosed, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// PostApprove advances an awarded requisition once the external hierarchical
// approval chain reports completion.
func (s *RequisitionService) PostApprove(ctx context.Context, actor *user.User, id string, approvalComplete bool) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	in := requisition.GuardInput{Now: s.now(), ApprovalComplete: approvalComplete}
	if err := r.Guard(requisition.StatusPostApproved, in); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, actor, r, requisition.StatusPostApproved, "hierarchical approval complete"); err != nil {
		return nil, err
	}
	return r, nil
}

// Advance applies an explicit post-award progression (PO creation and
// fulfillment stages). Guards are structural only at these stages.
func (s *RequisitionService) Advance(ctx context.Context, actor *user.User, id string, to requisition.Status, reason string) (*requisition.Requisition, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Guard(to, requisition.GuardInput{Now: s.now()}); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, actor, r, to, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// transition applies a guarded-and-validated status change, persists it and
// emits the side-channel events.
func (s *RequisitionService) transition(ctx context.Context, actor *user.User, r *requisition.Requisition, to requisition.Status, reason string) error {
	if !requisition.CanTransition(r.Status, to) {
		return fmt.Errorf("requisition %s: %s -> %s: %w", r.ID, r.Status, to, domain.ErrInvalidTransition)
	}
	prev := r.Status
	r.Status = to
	if err := s.store.UpdateRequisition(ctx, r); err != nil {
		r.Status = prev
		return err
	}

	s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", string(prev), string(to), reason)
	s.em.publish(ctx, messagequeue.SubjectRequisitionStatus, event.TypeRequisitionStatus, event.RequisitionStatusEvent{
		RequisitionID: r.ID,
		From:          string(prev),
		To:            string(to),
		Reason:        reason,
	})
	slog.Info("requisition transitioned",
		"requisition_id", r.ID, "from", prev, "to", to, "reason", reason)
	return nil
}

// rejectOpenQuotations invalidates quotations that are still in play.
func (s *RequisitionService) rejectOpenQuotations(ctx context.Context, requisitionID, reason string) error {
	quotations, err := s.store.ListQuotations(ctx, requisitionID)
	if err != nil {
		return err
	}
	for i := range quotations {
		q := &quotations[i]
		if q.Status.Superseded() {
			continue
		}
		q.Status = quotation.StatusRejected
		q.ResponseReason = reason
		if err := s.store.UpdateQuotation(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
