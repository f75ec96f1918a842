package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// CreditCountsByContent pre-aggregates cast and crew totals over the whole
// catalog in one pass, keyed by content id. The gap scanner uses this instead
// of a per-entity lookup.
func (s *Store) CreditCountsByContent(ctx context.Context) (map[int64]CreditCounts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT content_id, kind, COUNT(1) FROM credits GROUP BY content_id, kind`,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate credit counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]CreditCounts)
	for rows.Next() {
		var (
			contentID int64
			kind      string
			count     int
		)
		if err := rows.Scan(&contentID, &kind, &count); err != nil {
			return nil, fmt.Errorf("scan credit count: %w", err)
		}
		entry := counts[contentID]
		switch CreditKind(kind) {
		case CreditCast:
			entry.Cast = count
		case CreditCrew:
			entry.Crew = count
		}
		counts[contentID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit counts: %w", err)
	}
	return counts, nil
}

// ReplaceContentCredits swaps a content item's credits for a fresh provider
// snapshot in one transaction.
func (s *Store) ReplaceContentCredits(ctx context.Context, contentID int64, credits []Credit) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin credits tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM credits WHERE content_id = ?`, contentID); err != nil {
			return fmt.Errorf("delete old credits: %w", err)
		}
		for _, credit := range credits {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO credits (content_id, person_id, kind, character_name, job, department, cast_order)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
				contentID,
				credit.PersonID,
				credit.Kind,
				nullableString(credit.CharacterName),
				nullableString(credit.Job),
				nullableString(credit.Department),
				credit.CastOrder,
			); err != nil {
				return fmt.Errorf("insert credit: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit credits: %w", err)
		}
		return nil
	})
}

// ListContentCredits returns a content item's credits, cast first in billing
// order, then crew.
func (s *Store) ListContentCredits(ctx context.Context, contentID int64) ([]Credit, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, content_id, person_id, kind, character_name, job, department, cast_order
        FROM credits WHERE content_id = ?
        ORDER BY kind ASC, cast_order ASC, id ASC`,
		contentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var credits []Credit
	for rows.Next() {
		var (
			credit        Credit
			characterName sql.NullString
			job           sql.NullString
			department    sql.NullString
		)
		if err := rows.Scan(
			&credit.ID,
			&credit.ContentID,
			&credit.PersonID,
			&credit.Kind,
			&characterName,
			&job,
			&department,
			&credit.CastOrder,
		); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		credit.CharacterName = characterName.String
		credit.Job = job.String
		credit.Department = department.String
		credits = append(credits, credit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return credits, nil
}
