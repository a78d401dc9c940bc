package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openprocure/tenderd/internal/domain/quotation"
)

const scoreSetColumns = `id, quotation_id, scorer_id, item_scores, submitted, created_at, updated_at`

// UpsertScoreSet inserts or replaces one scorer's score set for a quotation.
// The (quotation, scorer) unique index makes the replace race-free.
func (s *Store) UpsertScoreSet(ctx context.Context, set *quotation.CommitteeScoreSet) error {
	scoresJSON, err := mustJSON(orEmpty(set.ItemScores))
	if err != nil {
		return err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO score_sets (quotation_id, scorer_id, item_scores)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (quotation_id, scorer_id)
		 DO UPDATE SET item_scores = EXCLUDED.item_scores, updated_at = now()
		 RETURNING `+scoreSetColumns,
		set.QuotationID, set.ScorerID, scoresJSON)

	scanned, err := scanScoreSet(row)
	if err != nil {
		return fmt.Errorf("upsert score set: %w", err)
	}
	*set = scanned
	return nil
}

// ListScoreSets returns every score set across a requisition's quotations.
func (s *Store) ListScoreSets(ctx context.Context, requisitionID string) ([]quotation.CommitteeScoreSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ss.id, ss.quotation_id, ss.scorer_id, ss.item_scores, ss.submitted, ss.created_at, ss.updated_at
		 FROM score_sets ss
		 JOIN quotations q ON q.id = ss.quotation_id
		 WHERE q.requisition_id = $1
		 ORDER BY ss.created_at ASC`, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("list score sets: %w", err)
	}
	defer rows.Close()

	var sets []quotation.CommitteeScoreSet
	for rows.Next() {
		set, err := scanScoreSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

func (s *Store) scoreSetsForQuotation(ctx context.Context, quotationID string) ([]quotation.CommitteeScoreSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreSetColumns+` FROM score_sets
		 WHERE quotation_id = $1 ORDER BY created_at ASC`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("score sets for quotation: %w", err)
	}
	defer rows.Close()

	var sets []quotation.CommitteeScoreSet
	for rows.Next() {
		set, err := scanScoreSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// MarkScoresSubmitted records a scorer's final submission for a requisition
// and locks their score sets against further edits.
func (s *Store) MarkScoresSubmitted(ctx context.Context, requisitionID, scorerID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO score_submissions (requisition_id, scorer_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`, requisitionID, scorerID)
	if err != nil {
		return fmt.Errorf("mark scores submitted: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE score_sets SET submitted = TRUE, updated_at = now()
		 WHERE scorer_id = $1 AND quotation_id IN
		   (SELECT id FROM quotations WHERE requisition_id = $2)`, scorerID, requisitionID)
	if err != nil {
		return fmt.Errorf("lock score sets: %w", err)
	}

	return tx.Commit(ctx)
}

// SubmittedScorers returns the scorer IDs that have finalized their scores
// for a requisition.
func (s *Store) SubmittedScorers(ctx context.Context, requisitionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT scorer_id FROM score_submissions WHERE requisition_id = $1`, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("submitted scorers: %w", err)
	}
	defer rows.Close()

	var scorers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		scorers = append(scorers, id)
	}
	return scorers, rows.Err()
}

// ClearScoreSubmissions drops a requisition's submission marks so a fresh
// scoring round can run after an RFQ restart.
func (s *Store) ClearScoreSubmissions(ctx context.Context, requisitionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM score_submissions WHERE requisition_id = $1`, requisitionID)
	if err != nil {
		return fmt.Errorf("clear score submissions: %w", err)
	}
	return nil
}

func scanScoreSet(row scannable) (quotation.CommitteeScoreSet, error) {
	var set quotation.CommitteeScoreSet
	var scoresJSON []byte

	err := row.Scan(&set.ID, &set.QuotationID, &set.ScorerID, &scoresJSON,
		&set.Submitted, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return set, err
	}
	if err := json.Unmarshal(scoresJSON, &set.ItemScores); err != nil {
		return set, fmt.Errorf("unmarshal item scores: %w", err)
	}
	return set, nil
}
