package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/port/cache"
	"github.com/openprocure/tenderd/internal/port/database"
)

// ScoringService handles committee score intake and score aggregation.
type ScoringService struct {
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewScoringService creates a ScoringService. cache may be nil to disable
// scoreboard caching.
func NewScoringService(store database.Store, c cache.Cache, cacheTTL time.Duration) *ScoringService {
	return &ScoringService{store: store, cache: c, cacheTTL: cacheTTL}
}

// UpsertScoreSet records one committee member's scores for a quotation,
// replacing any previous set by the same scorer. Final scores are computed
// from the requisition's weighted criteria before persisting.
func (s *ScoringService) UpsertScoreSet(ctx context.Context, actor *user.User, quotationID string, itemScores []quotation.ItemScore) (*quotation.CommitteeScoreSet, error) {
	q, err := s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, q.RequisitionID)
	if err != nil {
		return nil, err
	}

	if err := requireCommitteeMember(actor, r); err != nil {
		return nil, err
	}
	if r.Status != requisition.StatusScoringInProgress {
		return nil, fmt.Errorf("requisition %s is %s, scoring is closed: %w",
			r.ID, r.Status, domain.ErrInvalidTransition)
	}

	for i := range itemScores {
		sc := &itemScores[i]
		if findQuoteItem(q, sc.QuoteItemID) == nil {
			return nil, fmt.Errorf("quote item %s does not belong to quotation %s: %w",
				sc.QuoteItemID, q.ID, domain.ErrValidation)
		}
		if err := validateScores(sc.Financial); err != nil {
			return nil, err
		}
		if err := validateScores(sc.Technical); err != nil {
			return nil, err
		}
		sc.FinalScore = ComputeFinalScore(*sc, r.Criteria)
	}

	set := &quotation.CommitteeScoreSet{
		QuotationID: quotationID,
		ScorerID:    actor.ID,
		ItemScores:  itemScores,
	}
	if err := s.store.UpsertScoreSet(ctx, set); err != nil {
		return nil, err
	}
	s.invalidateScoreboard(ctx, r.ID)
	return set, nil
}

// SubmitScores flags the acting committee member's scores as final for the
// requisition and reports how many scorers are still outstanding.
func (s *ScoringService) SubmitScores(ctx context.Context, actor *user.User, requisitionID string) (outstanding int, err error) {
	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return 0, err
	}
	if err := requireCommitteeMember(actor, r); err != nil {
		return 0, err
	}
	if err := s.store.MarkScoresSubmitted(ctx, requisitionID, actor.ID); err != nil {
		return 0, err
	}
	submitted, err := s.store.SubmittedScorers(ctx, requisitionID)
	if err != nil {
		return 0, err
	}
	s.invalidateScoreboard(ctx, requisitionID)
	return outstandingScorers(r, submitted), nil
}

// ScoreboardEntry is one vendor's aggregated standing.
type ScoreboardEntry struct {
	QuotationID       string             `json:"quotation_id"`
	VendorID          string             `json:"vendor_id"`
	FinalAverageScore float64            `json:"final_average_score"`
	ItemAverages      map[string]float64 `json:"item_averages"`
}

// Scoreboard is the aggregated view of a requisition's scoring state.
type Scoreboard struct {
	RequisitionID string             `json:"requisition_id"`
	Entries       []ScoreboardEntry  `json:"entries"`
	Champions     map[string]float64 `json:"champions"` // requisition item ID -> best average
}

// GetScoreboard aggregates all committee scores for a requisition. Results
// are cached briefly; scoring mutations invalidate the cache.
func (s *ScoringService) GetScoreboard(ctx context.Context, requisitionID string) (*Scoreboard, error) {
	if s.cache != nil {
		if data, ok, _ := s.cache.Get(ctx, scoreboardKey(requisitionID)); ok {
			var board Scoreboard
			if err := json.Unmarshal(data, &board); err == nil {
				return &board, nil
			}
		}
	}

	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	quotations, err := s.store.ListQuotations(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	scored := Aggregate(r.Items, activeQuotations(quotations), r.Criteria)
	board := &Scoreboard{
		RequisitionID: requisitionID,
		Champions:     ChampionScores(r.Items, scored),
	}
	for i := range scored {
		board.Entries = append(board.Entries, ScoreboardEntry{
			QuotationID:       scored[i].ID,
			VendorID:          scored[i].VendorID,
			FinalAverageScore: scored[i].FinalAverageScore,
			ItemAverages:      itemAverages(r.Items, &scored[i]),
		})
	}

	if s.cache != nil {
		if data, err := json.Marshal(board); err == nil {
			_ = s.cache.Set(ctx, scoreboardKey(requisitionID), data, s.cacheTTL)
		}
	}
	return board, nil
}

func (s *ScoringService) invalidateScoreboard(ctx context.Context, requisitionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, scoreboardKey(requisitionID)); err != nil {
		slog.Warn("scoreboard cache invalidation failed", "requisition_id", requisitionID, "error", err)
	}
}

func scoreboardKey(requisitionID string) string { return "scoreboard:" + requisitionID }

// ---------------------------------------------------------------------------
// Pure aggregation
// ---------------------------------------------------------------------------

// ComputeFinalScore combines one scorer's financial and technical criterion
// scores into a single weighted 0-100 value. Each group is a weighted mean of
// its criterion scores; the two groups are then combined by group weight.
func ComputeFinalScore(sc quotation.ItemScore, criteria requisition.EvaluationCriteria) float64 {
	if criteria.Empty() {
		return 0
	}
	fin := groupScore(sc.Financial, criteria.Financial)
	tech := groupScore(sc.Technical, criteria.Technical)
	return fin*float64(criteria.FinancialWeight)/100 + tech*float64(criteria.TechnicalWeight)/100
}

// groupScore computes the weighted mean of scores against one criterion
// group. Criteria without a submitted score count as zero.
func groupScore(scores []quotation.Score, criteria []requisition.Criterion) float64 {
	if len(criteria) == 0 {
		return 0
	}
	byName := make(map[string]float64, len(scores))
	for _, sc := range scores {
		byName[sc.Criterion] = sc.Value
	}
	total := 0.0
	for _, crit := range criteria {
		total += byName[crit.Name] * float64(crit.Weight) / 100
	}
	return total
}

// Aggregate computes every quotation's FinalAverageScore: the mean, across
// requisition items the vendor bid on, of the mean FinalScore that the
// committee gave the vendor's proposal for that item. A proposal no scorer
// has touched counts as zero. With zero evaluation criteria the whole
// aggregation short-circuits to zero. Pure function: inputs are not mutated.
func Aggregate(items []requisition.Item, quotations []quotation.Quotation, criteria requisition.EvaluationCriteria) []quotation.Quotation {
	out := make([]quotation.Quotation, len(quotations))
	copy(out, quotations)

	if criteria.Empty() {
		for i := range out {
			out[i].FinalAverageScore = 0
		}
		return out
	}

	for i := range out {
		q := &out[i]
		var sum float64
		var bid int
		for _, item := range items {
			proposal := q.ItemFor(item.ID)
			if proposal == nil {
				continue
			}
			bid++
			sum += proposalAverage(q, proposal.ID)
		}
		if bid == 0 {
			q.FinalAverageScore = 0
			continue
		}
		q.FinalAverageScore = sum / float64(bid)
	}
	return out
}

// ChampionScores returns, per requisition item, the best average proposal
// score among all vendors bidding on it.
func ChampionScores(items []requisition.Item, quotations []quotation.Quotation) map[string]float64 {
	champions := make(map[string]float64, len(items))
	for _, item := range items {
		best := 0.0
		for i := range quotations {
			proposal := quotations[i].ItemFor(item.ID)
			if proposal == nil {
				continue
			}
			if avg := proposalAverage(&quotations[i], proposal.ID); avg > best {
				best = avg
			}
		}
		champions[item.ID] = best
	}
	return champions
}

// proposalAverage is the mean FinalScore across all score sets that scored
// the given quote item; zero when no scorer has.
func proposalAverage(q *quotation.Quotation, quoteItemID string) float64 {
	var sum float64
	var n int
	for i := range q.ScoreSets {
		for _, sc := range q.ScoreSets[i].ItemScores {
			if sc.QuoteItemID == quoteItemID {
				sum += sc.FinalScore
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func itemAverages(items []requisition.Item, q *quotation.Quotation) map[string]float64 {
	averages := make(map[string]float64)
	for _, item := range items {
		if proposal := q.ItemFor(item.ID); proposal != nil {
			averages[item.ID] = proposalAverage(q, proposal.ID)
		}
	}
	return averages
}

func validateScores(scores []quotation.Score) error {
	for _, sc := range scores {
		if sc.Value < 0 || sc.Value > 100 {
			return fmt.Errorf("score for %q must be within 0-100, got %g: %w",
				sc.Criterion, sc.Value, domain.ErrValidation)
		}
	}
	return nil
}

func findQuoteItem(q *quotation.Quotation, quoteItemID string) *quotation.QuoteItem {
	for i := range q.Items {
		if q.Items[i].ID == quoteItemID {
			return &q.Items[i]
		}
	}
	return nil
}

// outstandingScorers counts assigned committee members who have not yet
// submitted their scores.
func outstandingScorers(r *requisition.Requisition, submitted []string) int {
	done := make(map[string]struct{}, len(submitted))
	for _, id := range submitted {
		done[id] = struct{}{}
	}
	outstanding := 0
	for _, id := range r.Committee() {
		if _, ok := done[id]; !ok {
			outstanding++
		}
	}
	return outstanding
}

func requireCommitteeMember(actor *user.User, r *requisition.Requisition) error {
	if actor == nil {
		return fmt.Errorf("no authenticated user: %w", domain.ErrUnauthorized)
	}
	if actor.Role == user.RoleAdmin {
		return nil
	}
	for _, id := range r.Committee() {
		if id == actor.ID {
			return nil
		}
	}
	return fmt.Errorf("user %s is not on the committee for requisition %s: %w",
		actor.ID, r.ID, domain.ErrUnauthorized)
}
