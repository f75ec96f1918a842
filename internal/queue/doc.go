// Package queue implements the durable work queue backing enrichment runs.
// Items are keyed by (entity_id, queue_type), persisted in SQLite, and move
// through a pending -> processing -> completed/failed lifecycle with bounded
// retries.
package queue
