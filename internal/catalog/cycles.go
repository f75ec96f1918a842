package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func scanCycleRecord(scanner interface{ Scan(dest ...any) error }) (*CycleRecord, error) {
	var (
		record       CycleRecord
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&record.EntityType,
		&record.CurrentCycle,
		&record.TotalItems,
		&record.ItemsCompleted,
		&startedRaw,
		&completedRaw,
		&record.Version,
	); err != nil {
		return nil, err
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.CycleStartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CycleCompletedAt = &completed
		}
	}
	return &record, nil
}

// CycleRecordFor returns the singleton cycle record for an entity type,
// creating it at cycle 0 on first use.
func (s *Store) CycleRecordFor(ctx context.Context, entityType EntityType) (*CycleRecord, error) {
	record, err := s.readCycleRecord(ctx, entityType)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read cycle record: %w", err)
	}

	if _, insErr := s.execWithRetry(
		ctx,
		`INSERT INTO enrichment_cycles (entity_type, current_cycle, cycle_started_at, version)
        VALUES (?, 0, ?, 0)
        ON CONFLICT (entity_type) DO NOTHING`,
		entityType,
		nowStamp(),
	); insErr != nil {
		return nil, fmt.Errorf("create cycle record: %w", insErr)
	}

	record, err = s.readCycleRecord(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("reread cycle record: %w", err)
	}
	return record, nil
}

func (s *Store) readCycleRecord(ctx context.Context, entityType EntityType) (*CycleRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT entity_type, current_cycle, total_items, items_completed,
            cycle_started_at, cycle_completed_at, version
        FROM enrichment_cycles WHERE entity_type = ?`,
		entityType,
	)
	return scanCycleRecord(row)
}

// AdvanceCycle moves an entity type's sweep counter to nextCycle, guarded by
// the record's version so concurrent runners cannot double-advance. When the
// counter wraps back to zero, every stamp in the entity table is reset so the
// whole catalog becomes due again.
func (s *Store) AdvanceCycle(ctx context.Context, entityType EntityType, fromVersion int64, nextCycle int) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin advance tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`UPDATE enrichment_cycles
            SET current_cycle = ?, cycle_started_at = ?, cycle_completed_at = NULL,
                items_completed = 0, version = version + 1
            WHERE entity_type = ? AND version = ?`,
			nextCycle,
			nowStamp(),
			entityType,
			fromVersion,
		)
		if err != nil {
			return fmt.Errorf("advance cycle: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("advance rows affected: %w", err)
		}
		if affected == 0 {
			return ErrStaleCycle
		}

		if nextCycle == 0 {
			table := "content"
			if entityType == EntityTypePeople {
				table = "people"
			}
			if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET enrichment_cycle = -1`); err != nil {
				return fmt.Errorf("reset %s stamps: %w", table, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit advance: %w", err)
		}
		return nil
	})
}

// UpdateCycleStats stores recomputed totals on the cycle record. Stats are
// observability only and never gate the advance decision.
func (s *Store) UpdateCycleStats(ctx context.Context, entityType EntityType, totalItems, itemsCompleted int) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE enrichment_cycles SET total_items = ?, items_completed = ? WHERE entity_type = ?`,
		totalItems,
		itemsCompleted,
		entityType,
	)
	if err != nil {
		return fmt.Errorf("update cycle stats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cycle stats rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCycleCompleted stamps the completion time without advancing the counter.
func (s *Store) MarkCycleCompleted(ctx context.Context, entityType EntityType) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE enrichment_cycles SET cycle_completed_at = ? WHERE entity_type = ?`,
		nowStamp(),
		entityType,
	); err != nil {
		return fmt.Errorf("mark cycle completed: %w", err)
	}
	return nil
}
