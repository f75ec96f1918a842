package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue adds or refreshes a unit of work. The queue holds at most one row
// per (entity_id, queue_type):
//   - no existing row: insert a pending item (OutcomeQueued)
//   - existing pending row: raise priority to the higher of the two and
//     refresh metadata (OutcomeUpdated)
//   - existing completed or failed row: reset it to pending with a fresh
//     retry budget (OutcomeUpdated)
//   - existing processing row: leave the in-flight work alone (OutcomeSkipped)
func (s *Store) Enqueue(ctx context.Context, req EnqueueRequest) (*Item, EnqueueOutcome, error) {
	if req.EntityID <= 0 {
		return nil, "", fmt.Errorf("enqueue: entity id must be positive, got %d", req.EntityID)
	}
	if _, ok := queueTypeSet[req.QueueType]; !ok {
		return nil, "", fmt.Errorf("enqueue: unknown queue type %q", req.QueueType)
	}
	if req.MaxRetries <= 0 {
		return nil, "", fmt.Errorf("enqueue: max retries must be positive, got %d", req.MaxRetries)
	}

	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var (
		item    *Item
		outcome EnqueueOutcome
	)
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin enqueue tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+itemColumns+` FROM queue_items WHERE entity_id = ? AND queue_type = ?`,
			req.EntityID,
			req.QueueType,
		)
		existing, scanErr := scanItem(row)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			res, insErr := tx.ExecContext(
				ctx,
				`INSERT INTO queue_items (
                    entity_id, queue_type, priority, status, retry_count, max_retries,
                    metadata_json, created_at, updated_at
                ) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
				req.EntityID,
				req.QueueType,
				req.Priority,
				StatusPending,
				req.MaxRetries,
				nullableString(req.MetadataJSON),
				now,
				now,
			)
			if insErr != nil {
				return fmt.Errorf("insert item: %w", insErr)
			}
			id, idErr := res.LastInsertId()
			if idErr != nil {
				return fmt.Errorf("last insert id: %w", idErr)
			}
			existing = &Item{ID: id}
			outcome = OutcomeQueued
		case scanErr != nil:
			return fmt.Errorf("lookup existing item: %w", scanErr)
		case existing.Status == StatusProcessing, existing.Status == StatusCompleted:
			outcome = OutcomeSkipped
		case existing.Status == StatusPending:
			priority := existing.Priority
			if req.Priority > priority {
				priority = req.Priority
			}
			if _, updErr := tx.ExecContext(
				ctx,
				`UPDATE queue_items SET priority = ?, metadata_json = ?, updated_at = ? WHERE id = ?`,
				priority,
				nullableString(req.MetadataJSON),
				now,
				existing.ID,
			); updErr != nil {
				return fmt.Errorf("refresh pending item: %w", updErr)
			}
			outcome = OutcomeUpdated
		default:
			// failed: give the entity a fresh pass
			if _, updErr := tx.ExecContext(
				ctx,
				`UPDATE queue_items
                SET priority = ?, status = ?, retry_count = 0, max_retries = ?,
                    error_message = NULL, metadata_json = ?, started_at = NULL,
                    completed_at = NULL, last_heartbeat = NULL, updated_at = ?
                WHERE id = ?`,
				req.Priority,
				StatusPending,
				req.MaxRetries,
				nullableString(req.MetadataJSON),
				now,
				existing.ID,
			); updErr != nil {
				return fmt.Errorf("reset terminal item: %w", updErr)
			}
			outcome = OutcomeUpdated
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit enqueue: %w", err)
		}
		item = existing
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	fresh, err := s.GetByID(ctx, item.ID)
	if err != nil {
		return nil, "", err
	}
	return fresh, outcome, nil
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByEntity fetches the queue item for an entity within one queue type.
func (s *Store) GetByEntity(ctx context.Context, entityID int64, queueType QueueType) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE entity_id = ? AND queue_type = ?`,
		entityID,
		queueType,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by entity: %w", err)
	}
	return item, nil
}

// DequeueBatch returns up to limit workable pending items for a queue type,
// highest priority first, oldest first within a priority band. Items whose
// retry budget is spent never surface.
func (s *Store) DequeueBatch(ctx context.Context, queueType QueueType, limit int) ([]*Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
        WHERE queue_type = ? AND status = ? AND retry_count < max_retries
        ORDER BY priority DESC, created_at ASC, id ASC
        LIMIT ?`,
		queueType,
		StatusPending,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*Item, 0, limit)
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan dequeued item: %w", scanErr)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dequeued items: %w", err)
	}
	return items, nil
}

// List returns items for a queue type, optionally filtered to specific
// statuses, newest first.
func (s *Store) List(ctx context.Context, queueType QueueType, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE queue_type = ?`
	args := []any{queueType}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan listed item: %w", scanErr)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listed items: %w", err)
	}
	return items, nil
}
