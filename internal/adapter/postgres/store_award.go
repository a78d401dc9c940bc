package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/award"
)

const awardDetailColumns = `id, requisition_id, requisition_item_id, quotation_id, quote_item_id,
	vendor_id, rank, status, score, response_reason, version, created_at, updated_at`

// CreateAwardDetails inserts a requisition's full per-item candidate table in
// one transaction. Finalize builds the whole table at once, so partial inserts
// must never survive.
func (s *Store) CreateAwardDetails(ctx context.Context, details []award.PerItemAwardDetail) error {
	if len(details) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range details {
		d := &details[i]
		row := tx.QueryRow(ctx,
			`INSERT INTO award_details
			   (requisition_id, requisition_item_id, quotation_id, quote_item_id,
			    vendor_id, rank, status, score, response_reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, version, created_at, updated_at`,
			d.RequisitionID, d.RequisitionItemID, d.QuotationID, d.QuoteItemID,
			d.VendorID, d.Rank, d.Status, d.Score, d.ResponseReason)
		if err := row.Scan(&d.ID, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return fmt.Errorf("create award detail: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListAwardDetails returns a requisition's candidate table ordered by item
// then rank.
func (s *Store) ListAwardDetails(ctx context.Context, requisitionID string) ([]award.PerItemAwardDetail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+awardDetailColumns+` FROM award_details
		 WHERE requisition_id = $1
		 ORDER BY requisition_item_id ASC, rank ASC`, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("list award details: %w", err)
	}
	defer rows.Close()

	var details []award.PerItemAwardDetail
	for rows.Next() {
		d, err := scanAwardDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (s *Store) GetAwardDetail(ctx context.Context, id string) (*award.PerItemAwardDetail, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+awardDetailColumns+` FROM award_details WHERE id = $1`, id)

	d, err := scanAwardDetail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("award detail %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get award detail: %w", err)
	}
	return &d, nil
}

// UpdateAwardDetail persists a cascade transition on one candidate row. Only
// status and response reason ever change after Finalize.
func (s *Store) UpdateAwardDetail(ctx context.Context, d *award.PerItemAwardDetail) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE award_details
		 SET status = $1, response_reason = $2, version = version + 1, updated_at = now()
		 WHERE id = $3 AND version = $4`,
		d.Status, d.ResponseReason, d.ID, d.Version)
	if err != nil {
		return fmt.Errorf("update award detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("award detail %s version %d: %w", d.ID, d.Version, domain.ErrConflict)
	}
	d.Version++
	return nil
}

func scanAwardDetail(row scannable) (award.PerItemAwardDetail, error) {
	var d award.PerItemAwardDetail
	err := row.Scan(&d.ID, &d.RequisitionID, &d.RequisitionItemID, &d.QuotationID,
		&d.QuoteItemID, &d.VendorID, &d.Rank, &d.Status, &d.Score,
		&d.ResponseReason, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
