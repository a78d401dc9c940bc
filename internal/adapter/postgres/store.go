package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const requisitionColumns = `id, title, requester_id, status, items, criteria, rfq,
	deadline, scoring_deadline, award_response_deadline,
	financial_committee, technical_committee, version, created_at, updated_at`

// --- Requisitions ---

func (s *Store) ListRequisitions(ctx context.Context) ([]requisition.Requisition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requisitionColumns+` FROM requisitions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list requisitions: %w", err)
	}
	defer rows.Close()

	var requisitions []requisition.Requisition
	for rows.Next() {
		r, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		requisitions = append(requisitions, r)
	}
	return requisitions, rows.Err()
}

func (s *Store) GetRequisition(ctx context.Context, id string) (*requisition.Requisition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id)

	r, err := scanRequisition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get requisition %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get requisition %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) CreateRequisition(ctx context.Context, req requisition.CreateRequest) (*requisition.Requisition, error) {
	itemsJSON, err := mustJSON(orEmpty(req.Items))
	if err != nil {
		return nil, err
	}
	criteriaJSON, err := mustJSON(req.Criteria)
	if err != nil {
		return nil, err
	}
	rfqJSON, err := mustJSON(req.RFQ)
	if err != nil {
		return nil, err
	}
	finJSON, err := mustJSON(orEmpty(req.FinancialCommittee))
	if err != nil {
		return nil, err
	}
	techJSON, err := mustJSON(orEmpty(req.TechnicalCommittee))
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO requisitions (title, requester_id, items, criteria, rfq,
		    deadline, scoring_deadline, financial_committee, technical_committee)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+requisitionColumns,
		req.Title, req.RequesterID, itemsJSON, criteriaJSON, rfqJSON,
		req.Deadline, req.ScoringDeadline, finJSON, techJSON)

	r, err := scanRequisition(row)
	if err != nil {
		return nil, fmt.Errorf("create requisition: %w", err)
	}
	return &r, nil
}

func (s *Store) UpdateRequisition(ctx context.Context, r *requisition.Requisition) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requisitions
		 SET status = $2, deadline = $3, scoring_deadline = $4,
		     award_response_deadline = $5, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $6`,
		r.ID, r.Status, r.Deadline, r.ScoringDeadline, r.AwardResponseDeadline, r.Version)
	if err != nil {
		return fmt.Errorf("update requisition %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update requisition %s: %w", r.ID, domain.ErrConflict)
	}
	r.Version++
	return nil
}

func scanRequisition(row scannable) (requisition.Requisition, error) {
	var r requisition.Requisition
	var itemsJSON, criteriaJSON, rfqJSON, finJSON, techJSON []byte

	err := row.Scan(&r.ID, &r.Title, &r.RequesterID, &r.Status, &itemsJSON,
		&criteriaJSON, &rfqJSON, &r.Deadline, &r.ScoringDeadline,
		&r.AwardResponseDeadline, &finJSON, &techJSON,
		&r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal(itemsJSON, &r.Items); err != nil {
		return r, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(criteriaJSON, &r.Criteria); err != nil {
		return r, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(rfqJSON, &r.RFQ); err != nil {
		return r, fmt.Errorf("unmarshal rfq: %w", err)
	}
	if err := json.Unmarshal(finJSON, &r.FinancialCommittee); err != nil {
		return r, fmt.Errorf("unmarshal financial committee: %w", err)
	}
	if err := json.Unmarshal(techJSON, &r.TechnicalCommittee); err != nil {
		return r, fmt.Errorf("unmarshal technical committee: %w", err)
	}
	return r, nil
}

const quotationColumns = `id, requisition_id, vendor_id, status, items,
	final_average_score, rank, response_reason, version, created_at, updated_at`

// --- Quotations ---

// ListQuotations returns a requisition's quotations with their committee
// score sets attached, ordered by submission time.
func (s *Store) ListQuotations(ctx context.Context, requisitionID string) ([]quotation.Quotation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+quotationColumns+` FROM quotations
		 WHERE requisition_id = $1 ORDER BY created_at ASC`, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	defer rows.Close()

	var quotations []quotation.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		quotations = append(quotations, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sets, err := s.ListScoreSets(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	byQuotation := make(map[string][]quotation.CommitteeScoreSet)
	for _, set := range sets {
		byQuotation[set.QuotationID] = append(byQuotation[set.QuotationID], set)
	}
	for i := range quotations {
		quotations[i].ScoreSets = byQuotation[quotations[i].ID]
	}
	return quotations, nil
}

func (s *Store) GetQuotation(ctx context.Context, id string) (*quotation.Quotation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id)

	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get quotation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get quotation %s: %w", id, err)
	}

	sets, err := s.scoreSetsForQuotation(ctx, id)
	if err != nil {
		return nil, err
	}
	q.ScoreSets = sets
	return &q, nil
}

func (s *Store) CreateQuotation(ctx context.Context, requisitionID string, req quotation.SubmitRequest) (*quotation.Quotation, error) {
	itemsJSON, err := mustJSON(orEmpty(req.Items))
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO quotations (requisition_id, vendor_id, items)
		 VALUES ($1, $2, $3)
		 RETURNING `+quotationColumns,
		requisitionID, req.VendorID, itemsJSON)

	q, err := scanQuotation(row)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	return &q, nil
}

func (s *Store) UpdateQuotation(ctx context.Context, q *quotation.Quotation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quotations
		 SET status = $2, final_average_score = $3, rank = $4,
		     response_reason = $5, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $6`,
		q.ID, q.Status, q.FinalAverageScore, q.Rank, q.ResponseReason, q.Version)
	if err != nil {
		return fmt.Errorf("update quotation %s: %w", q.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update quotation %s: %w", q.ID, domain.ErrConflict)
	}
	q.Version++
	return nil
}

func scanQuotation(row scannable) (quotation.Quotation, error) {
	var q quotation.Quotation
	var itemsJSON []byte

	err := row.Scan(&q.ID, &q.RequisitionID, &q.VendorID, &q.Status, &itemsJSON,
		&q.FinalAverageScore, &q.Rank, &q.ResponseReason,
		&q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal(itemsJSON, &q.Items); err != nil {
		return q, fmt.Errorf("unmarshal quote items: %w", err)
	}
	return q, nil
}
