package queue

import (
	"context"
	"fmt"
	"os"
)

// Stats returns item counts grouped by queue type and status, ordered for
// stable presentation.
func (s *Store) Stats(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT queue_type, status, COUNT(1)
        FROM queue_items
        GROUP BY queue_type, status
        ORDER BY queue_type, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []StatusCount
	for rows.Next() {
		var (
			queueType string
			status    string
			count     int
		)
		if err := rows.Scan(&queueType, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		counts = append(counts, StatusCount{
			QueueType: QueueType(queueType),
			Status:    Status(status),
			Count:     count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return counts, nil
}

// Counts summarizes one queue type's items by lifecycle state.
func (s *Store) Counts(ctx context.Context, queueType QueueType) (HealthSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM queue_items WHERE queue_type = ? GROUP BY status`,
		queueType,
	)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("query counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan counts row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate counts rows: %w", err)
	}
	return summary, nil
}

// PendingCount returns the number of workable pending items for a queue type.
func (s *Store) PendingCount(ctx context.Context, queueType QueueType) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_items
        WHERE queue_type = ? AND status = ? AND retry_count < max_retries`,
		queueType,
		StatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// Clear removes every item from the queue.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM queue_items`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// ClearCompleted removes completed items for a queue type.
func (s *Store) ClearCompleted(ctx context.Context, queueType QueueType) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE queue_type = ? AND status = ?`,
		queueType,
		StatusCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed items for a queue type.
func (s *Store) ClearFailed(ctx context.Context, queueType QueueType) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE queue_type = ? AND status = ?`,
		queueType,
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a single item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Health runs basic diagnostics against the queue database.
func (s *Store) Health(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = fmt.Sprintf("stat database: %v", err)
		return health
	}
	health.DatabaseExists = true

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}
	health.DatabaseReadable = true
	health.SchemaVersion = fmt.Sprintf("%d", version)

	var integrity string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items`).Scan(&health.TotalItems); err != nil {
		health.Error = fmt.Sprintf("count items: %v", err)
	}
	return health
}
