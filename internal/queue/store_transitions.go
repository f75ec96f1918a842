package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkProcessing atomically claims a pending item. Exactly one caller can win
// the claim; everyone else gets ErrNotClaimed.
func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = ?, started_at = ?, last_heartbeat = ?, error_message = NULL, updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusProcessing,
		now,
		now,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processing rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotClaimed
	}
	return nil
}

// MarkCompleted finishes a claimed item successfully.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = ?, completed_at = ?, error_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusCompleted,
		now,
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark completed rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotClaimed
	}
	return nil
}

// MarkFailed records a failed attempt on a claimed item. The retry count is
// incremented once per call; while budget remains the item returns to pending,
// and once retry_count reaches max_retries it parks as failed. The resulting
// status is returned.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) (Status, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET retry_count = retry_count + 1,
            status = CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE ? END,
            error_message = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusFailed,
		StatusPending,
		nullableString(message),
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return "", fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("mark failed rows affected: %w", err)
	}
	if affected == 0 {
		return "", ErrNotClaimed
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", ErrNotFound
	}
	return item.Status, nil
}

// UpdateHeartbeat refreshes the liveness marker on an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns processing items whose heartbeat expired back
// to pending so a later run can pick them up. Reclaiming does not consume a
// retry: the work never finished an attempt.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		now,
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending with a fresh retry budget.
// With no ids, every failed item in the queue type is retried.
func (s *Store) RetryFailed(ctx context.Context, queueType QueueType, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, retry_count = 0, error_message = NULL,
                started_at = NULL, completed_at = NULL, last_heartbeat = NULL, updated_at = ?
            WHERE queue_type = ? AND status = ?`,
			StatusPending,
			now,
			queueType,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, now, queueType)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ?, retry_count = 0, error_message = NULL,
            started_at = NULL, completed_at = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE queue_type = ? AND id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
