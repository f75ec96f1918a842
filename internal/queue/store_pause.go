package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PauseState describes the pause flag for one queue type.
type PauseState struct {
	QueueType QueueType
	Paused    bool
	Reason    string
	UpdatedAt time.Time
}

// SetPaused raises the pause flag for a queue type. Paused queues are checked
// by runs before each item, so an in-flight item finishes before the pause
// takes effect.
func (s *Store) SetPaused(ctx context.Context, queueType QueueType, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO pause_flags (queue_type, paused, reason, updated_at)
        VALUES (?, 1, ?, ?)
        ON CONFLICT (queue_type) DO UPDATE SET paused = 1, reason = excluded.reason, updated_at = excluded.updated_at`,
		queueType,
		nullableString(reason),
		now,
	); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

// ClearPaused lowers the pause flag for a queue type.
func (s *Store) ClearPaused(ctx context.Context, queueType QueueType) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO pause_flags (queue_type, paused, reason, updated_at)
        VALUES (?, 0, NULL, ?)
        ON CONFLICT (queue_type) DO UPDATE SET paused = 0, reason = NULL, updated_at = excluded.updated_at`,
		queueType,
		now,
	); err != nil {
		return fmt.Errorf("clear paused: %w", err)
	}
	return nil
}

// IsPaused reports the pause flag for a queue type. A missing row means the
// queue runs normally.
func (s *Store) IsPaused(ctx context.Context, queueType QueueType) (bool, string, error) {
	var (
		paused int
		reason sql.NullString
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT paused, reason FROM pause_flags WHERE queue_type = ?`,
		queueType,
	).Scan(&paused, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read pause flag: %w", err)
	}
	return paused != 0, reason.String, nil
}

// PauseStates returns the pause flags for every queue type with a recorded
// state, ordered by queue type.
func (s *Store) PauseStates(ctx context.Context) ([]PauseState, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT queue_type, paused, reason, updated_at FROM pause_flags ORDER BY queue_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("query pause flags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []PauseState
	for rows.Next() {
		var (
			queueType  string
			paused     int
			reason     sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(&queueType, &paused, &reason, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan pause flag: %w", err)
		}
		state := PauseState{
			QueueType: QueueType(queueType),
			Paused:    paused != 0,
			Reason:    reason.String,
		}
		if updated, parseErr := parseTimeString(updatedRaw.String); parseErr == nil {
			state.UpdatedAt = updated
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pause flags: %w", err)
	}
	return states, nil
}
