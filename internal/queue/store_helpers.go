package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, entity_id, queue_type, priority, status, retry_count, max_retries, error_message, metadata_json, created_at, updated_at, started_at, completed_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		entityID     int64
		queueType    string
		priority     sql.NullInt64
		statusStr    string
		retryCount   sql.NullInt64
		maxRetries   sql.NullInt64
		errorMessage sql.NullString
		metadata     sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		heartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&entityID,
		&queueType,
		&priority,
		&statusStr,
		&retryCount,
		&maxRetries,
		&errorMessage,
		&metadata,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		EntityID:     entityID,
		QueueType:    QueueType(queueType),
		Priority:     int(priority.Int64),
		Status:       Status(statusStr),
		RetryCount:   int(retryCount.Int64),
		MaxRetries:   int(maxRetries.Int64),
		ErrorMessage: errorMessage.String,
		MetadataJSON: metadata.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
