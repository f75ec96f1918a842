package queue

import (
	"strings"
	"time"
)

// QueueType partitions the queue by the kind of entity being enriched.
type QueueType string

const (
	QueueTypeContent QueueType = "content"
	QueueTypePeople  QueueType = "people"
	QueueTypeQuality QueueType = "quality"
)

var allQueueTypes = []QueueType{
	QueueTypeContent,
	QueueTypePeople,
	QueueTypeQuality,
}

var queueTypeSet = func() map[QueueType]struct{} {
	set := make(map[QueueType]struct{}, len(allQueueTypes))
	for _, qt := range allQueueTypes {
		set[qt] = struct{}{}
	}
	return set
}()

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// EnqueueOutcome reports what Enqueue did with a request.
type EnqueueOutcome string

const (
	// OutcomeQueued means a new row was inserted.
	OutcomeQueued EnqueueOutcome = "queued"
	// OutcomeUpdated means an existing row was refreshed or reset to pending.
	OutcomeUpdated EnqueueOutcome = "updated"
	// OutcomeSkipped means the entity is being processed right now and the
	// request was dropped.
	OutcomeSkipped EnqueueOutcome = "skipped"
)

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID            int64
	EntityID      int64
	QueueType     QueueType
	Priority      int
	Status        Status
	RetryCount    int
	MaxRetries    int
	ErrorMessage  string
	MetadataJSON  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastHeartbeat *time.Time
}

// EnqueueRequest describes a unit of enrichment work to add to the queue.
type EnqueueRequest struct {
	EntityID     int64
	QueueType    QueueType
	Priority     int
	MaxRetries   int
	MetadataJSON string
}

// StatusCount aggregates item totals for one (queue_type, status) pair.
type StatusCount struct {
	QueueType QueueType
	Status    Status
	Count     int
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// AllQueueTypes returns the ordered list of known queue types.
func AllQueueTypes() []QueueType {
	cp := make([]QueueType, len(allQueueTypes))
	copy(cp, allQueueTypes)
	return cp
}

// ParseQueueType converts a string into a known QueueType.
func ParseQueueType(value string) (QueueType, bool) {
	normalized := QueueType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := queueTypeSet[normalized]
	return normalized, ok
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// RetriesExhausted reports whether the item has consumed its retry budget.
func (i Item) RetriesExhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// IsTerminal reports whether the item has reached a terminal state.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}
