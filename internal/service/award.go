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

// AwardService finalizes awards: it ranks scored quotations and assigns
// award, standby and rejected statuses according to the requisition's
// strategy.
type AwardService struct {
	store   database.Store
	locks   *locker.Registry
	em      emitter
	notify  *NotificationService
	metrics *otel.Metrics
}

// NewAwardService creates an AwardService with all dependencies. queue, hub,
// audit, notify and metrics may be nil; the corresponding side channel is
// then skipped.
func NewAwardService(
	store database.Store,
	locks *locker.Registry,
	queue messagequeue.Queue,
	hub Broadcaster,
	audit auditlog.Store,
	notify *NotificationService,
	metrics *otel.Metrics,
) *AwardService {
	return &AwardService{
		store:   store,
		locks:   locks,
		em:      emitter{queue: queue, hub: hub, audit: audit},
		notify:  notify,
		metrics: metrics,
	}
}

// FinalizeRequest holds the reviewer's finalize parameters.
type FinalizeRequest struct {
	// ResponseDeadline bounds the vendor response window. When zero, the
	// default window from procurement settings is applied.
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
}

// FinalizeResult reports the outcome of a finalization.
type FinalizeResult struct {
	RequisitionStatus requisition.Status         `json:"requisition_status"`
	Quotations        []quotation.Quotation      `json:"quotations,omitempty"`
	Details           []award.PerItemAwardDetail `json:"details,omitempty"`
}

// Finalize ranks the requisition's scored quotations and assigns award
// statuses. Preconditions: the caller is a reviewer or admin, every assigned
// committee member has submitted scores, and the requisition is in a
// pre-award scoring stage. On any violation nothing is mutated.
func (s *AwardService) Finalize(ctx context.Context, actor *user.User, requisitionID string, req FinalizeRequest) (*FinalizeResult, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("acquire requisition lock: %w", err)
	}
	defer release()

	start := time.Now()

	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartFinalizeSpan(ctx, r.ID, string(r.RFQ.Strategy))
	defer span.End()

	if r.Status == requisition.StatusAwarded {
		return nil, fmt.Errorf("requisition %s is already awarded: %w", r.ID, domain.ErrInvalidTransition)
	}

	submitted, err := s.store.SubmittedScorers(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	in := requisition.GuardInput{Now: time.Now().UTC(), ScorersOutstanding: outstandingScorers(r, submitted)}
	if err := r.Guard(requisition.StatusAwarded, in); err != nil {
		return nil, err
	}

	quotations, err := s.store.ListQuotations(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	quotations = activeQuotations(quotations)
	if len(quotations) == 0 {
		return nil, fmt.Errorf("no quotations to award: %w", domain.ErrPreconditionNotMet)
	}

	cfg, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().UTC().Add(cfg.ResponseWindow)
	if req.ResponseDeadline != nil {
		deadline = req.ResponseDeadline.UTC()
	}

	scored := Aggregate(r.Items, quotations, r.Criteria)

	result := &FinalizeResult{RequisitionStatus: requisition.StatusAwarded}
	switch r.RFQ.Strategy {
	case requisition.StrategyItem:
		result.Details, err = s.finalizePerItem(ctx, r, scored)
	default:
		result.Quotations, err = s.finalizeSingleVendor(ctx, r, scored, cfg.StandbyDepth)
	}
	if err != nil {
		return nil, err
	}

	prev := r.Status
	r.Status = requisition.StatusAwarded
	r.AwardResponseDeadline = &deadline
	if err := s.store.UpdateRequisition(ctx, r); err != nil {
		return nil, err
	}

	s.em.auditTransition(ctx, r.ID, actor.ID, "requisition", string(prev), string(r.Status), "award finalized")
	s.em.publish(ctx, messagequeue.SubjectAwardFinalized, event.TypeAwardFinalized, event.AwardEvent{
		RequisitionID: r.ID,
		Status:        string(requisition.StatusAwarded),
	})
	if s.metrics != nil {
		s.metrics.AwardsFinalized.Add(ctx, 1)
		s.metrics.FinalizeDuration.Record(ctx, time.Since(start).Seconds())
	}
	slog.Info("award finalized",
		"requisition_id", r.ID,
		"strategy", r.RFQ.Strategy,
		"quotations", len(quotations),
		"response_deadline", deadline,
	)
	return result, nil
}

// finalizeSingleVendor ranks whole quotations: rank 1 becomes pending award,
// the next standbyDepth become standby, the rest are rejected.
func (s *AwardService) finalizeSingleVendor(ctx context.Context, r *requisition.Requisition, scored []quotation.Quotation, standbyDepth int) ([]quotation.Quotation, error) {
	ranked := rankQuotations(scored)
	for i := range ranked {
		q := &ranked[i]
		q.Rank = i + 1
		switch {
		case i == 0:
			q.Status = quotation.StatusPendingAward
		case i <= standbyDepth:
			q.Status = quotation.StatusStandby
		default:
			q.Status = quotation.StatusRejected
		}
		if err := s.store.UpdateQuotation(ctx, q); err != nil {
			return nil, err
		}
	}

	if s.notify != nil && len(ranked) > 0 {
		s.notify.AwardPending(ctx, ranked[0].VendorID, r.Title)
	}
	return ranked, nil
}

// finalizePerItem ranks candidates independently per requisition item: rank 1
// becomes pending award, rank 2 standby, rank 3 and beyond rejected.
func (s *AwardService) finalizePerItem(ctx context.Context, r *requisition.Requisition, scored []quotation.Quotation) ([]award.PerItemAwardDetail, error) {
	var details []award.PerItemAwardDetail
	winners := make(map[string]struct{})

	for _, item := range r.Items {
		candidates := rankItemCandidates(item.ID, scored)
		for rank, cand := range candidates {
			status := award.StatusRejected
			switch rank {
			case 0:
				status = award.StatusPendingAward
			case 1:
				status = award.StatusStandby
			}
			details = append(details, award.PerItemAwardDetail{
				RequisitionID:     r.ID,
				RequisitionItemID: item.ID,
				QuotationID:       cand.quotationID,
				QuoteItemID:       cand.quoteItemID,
				VendorID:          cand.vendorID,
				Rank:              rank + 1,
				Status:            status,
				Score:             cand.score,
			})
			if rank == 0 {
				winners[cand.vendorID] = struct{}{}
			}
		}
	}

	if err := s.store.CreateAwardDetails(ctx, details); err != nil {
		return nil, err
	}

	// Persist aggregated scores; overall status stays derived from details.
	for i := range scored {
		if err := s.store.UpdateQuotation(ctx, &scored[i]); err != nil {
			return nil, err
		}
	}

	if s.notify != nil {
		for vendorID := range winners {
			s.notify.AwardPending(ctx, vendorID, r.Title)
		}
	}
	return details, nil
}

// itemCandidate is one vendor's proposal for one requisition item.
type itemCandidate struct {
	quotationID string
	quoteItemID string
	vendorID    string
	score       float64
	createdAt   time.Time
}

// activeQuotations drops rows superseded by a restarted or cancelled RFQ
// cycle; only the current cycle's quotations count toward quorum and ranking.
func activeQuotations(quotations []quotation.Quotation) []quotation.Quotation {
	active := make([]quotation.Quotation, 0, len(quotations))
	for i := range quotations {
		if quotations[i].Status.Superseded() {
			continue
		}
		active = append(active, quotations[i])
	}
	return active
}

// rankQuotations orders quotations by FinalAverageScore descending. Ties are
// broken by earlier CreatedAt: candidates are pre-sorted by submission time
// and the score sort is stable, so the first submitted wins.
func rankQuotations(scored []quotation.Quotation) []quotation.Quotation {
	ranked := make([]quotation.Quotation, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalAverageScore > ranked[j].FinalAverageScore
	})
	return ranked
}

// rankItemCandidates collects and ranks one item's proposals with the same
// ordering rule as rankQuotations.
func rankItemCandidates(itemID string, scored []quotation.Quotation) []itemCandidate {
	var candidates []itemCandidate
	for i := range scored {
		q := &scored[i]
		proposal := q.ItemFor(itemID)
		if proposal == nil {
			continue
		}
		candidates = append(candidates, itemCandidate{
			quotationID: q.ID,
			quoteItemID: proposal.ID,
			vendorID:    q.VendorID,
			score:       proposalAverage(q, proposal.ID),
			createdAt:   q.CreatedAt,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].createdAt.Before(candidates[j].createdAt)
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates
}

// requireRole allows the given role or admin.
func requireRole(actor *user.User, role user.Role) error {
	if actor == nil {
		return fmt.Errorf("no authenticated user: %w", domain.ErrUnauthorized)
	}
	if actor.Role == user.RoleAdmin || actor.Role == role {
		return nil
	}
	return fmt.Errorf("role %s may not perform this action: %w", actor.Role, domain.ErrUnauthorized)
}
