package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func mustOpenStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustEnqueue(t *testing.T, store *Store, req EnqueueRequest) *Item {
	t.Helper()
	item, _, err := store.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("enqueue entity %d: %v", req.EntityID, err)
	}
	return item
}

func contentRequest(entityID int64, priority int) EnqueueRequest {
	return EnqueueRequest{
		EntityID:   entityID,
		QueueType:  QueueTypeContent,
		Priority:   priority,
		MaxRetries: 3,
	}
}

func TestEnqueueInsertsPendingItem(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item, outcome, err := store.Enqueue(ctx, contentRequest(42, 5))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if outcome != OutcomeQueued {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeQueued)
	}
	if item.Status != StatusPending {
		t.Fatalf("status = %q, want pending", item.Status)
	}
	if item.RetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", item.RetryCount)
	}
	if item.Priority != 5 {
		t.Fatalf("priority = %d, want 5", item.Priority)
	}
}

func TestEnqueueDuplicateKeepsSingleRowAndRaisesPriority(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	first := mustEnqueue(t, store, contentRequest(42, 5))
	second, outcome, err := store.Enqueue(ctx, contentRequest(42, 2))
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeUpdated)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate enqueue created a new row: %d vs %d", second.ID, first.ID)
	}
	if second.Priority != 5 {
		t.Fatalf("priority lowered to %d, want 5 retained", second.Priority)
	}

	third, _, err := store.Enqueue(ctx, contentRequest(42, 9))
	if err != nil {
		t.Fatalf("re-enqueue with higher priority: %v", err)
	}
	if third.Priority != 9 {
		t.Fatalf("priority = %d, want raised to 9", third.Priority)
	}
}

func TestEnqueueSkipsProcessingItem(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item := mustEnqueue(t, store, contentRequest(42, 5))
	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	_, outcome, err := store.Enqueue(ctx, contentRequest(42, 9))
	if err != nil {
		t.Fatalf("enqueue while processing: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeSkipped)
	}

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.Status != StatusProcessing {
		t.Fatalf("status = %q, want processing untouched", fresh.Status)
	}
}

func TestEnqueueSkipsCompletedItem(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item := mustEnqueue(t, store, contentRequest(42, 5))
	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := store.MarkCompleted(ctx, item.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	_, outcome, err := store.Enqueue(ctx, contentRequest(42, 9))
	if err != nil {
		t.Fatalf("enqueue after completion: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeSkipped)
	}

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed untouched", fresh.Status)
	}
	if fresh.RetryCount != 0 || fresh.CompletedAt == nil {
		t.Fatalf("completed row was reset: retries %d, completed_at %v", fresh.RetryCount, fresh.CompletedAt)
	}
}

func TestEnqueueResetsFailedItem(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	req := contentRequest(42, 5)
	req.MaxRetries = 1
	item := mustEnqueue(t, store, req)

	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	status, err := store.MarkFailed(ctx, item.ID, "provider exploded")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %q, want failed after exhausting budget", status)
	}

	reset, outcome, err := store.Enqueue(ctx, contentRequest(42, 3))
	if err != nil {
		t.Fatalf("re-enqueue failed item: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeUpdated)
	}
	if reset.Status != StatusPending {
		t.Fatalf("status = %q, want pending", reset.Status)
	}
	if reset.RetryCount != 0 {
		t.Fatalf("retry count = %d, want reset to 0", reset.RetryCount)
	}
	if reset.ErrorMessage != "" {
		t.Fatalf("error message = %q, want cleared", reset.ErrorMessage)
	}
}

func TestDequeueBatchOrdersByPriorityThenAge(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	low := mustEnqueue(t, store, contentRequest(1, 1))
	oldHigh := mustEnqueue(t, store, contentRequest(2, 5))
	newHigh := mustEnqueue(t, store, contentRequest(3, 5))

	// Backdate one high-priority row so age breaks the tie deterministically.
	backdated := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE queue_items SET created_at = ? WHERE id = ?`, backdated, oldHigh.ID); err != nil {
		t.Fatalf("backdate item: %v", err)
	}

	items, err := store.DequeueBatch(ctx, QueueTypeContent, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("dequeued %d items, want 3", len(items))
	}
	if items[0].ID != oldHigh.ID || items[1].ID != newHigh.ID || items[2].ID != low.ID {
		t.Fatalf("order = [%d %d %d], want [%d %d %d]",
			items[0].ID, items[1].ID, items[2].ID, oldHigh.ID, newHigh.ID, low.ID)
	}
}

func TestDequeueBatchSkipsExhaustedRetries(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item := mustEnqueue(t, store, contentRequest(1, 0))
	if _, err := store.db.Exec(`UPDATE queue_items SET retry_count = max_retries WHERE id = ?`, item.ID); err != nil {
		t.Fatalf("exhaust retries: %v", err)
	}
	mustEnqueue(t, store, contentRequest(2, 0))

	items, err := store.DequeueBatch(ctx, QueueTypeContent, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("dequeued %d items, want 1", len(items))
	}
	if items[0].EntityID != 2 {
		t.Fatalf("dequeued entity %d, want 2", items[0].EntityID)
	}
}

func TestDequeueBatchScopedToQueueType(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	mustEnqueue(t, store, contentRequest(1, 0))
	mustEnqueue(t, store, EnqueueRequest{EntityID: 1, QueueType: QueueTypePeople, Priority: 0, MaxRetries: 3})

	items, err := store.DequeueBatch(ctx, QueueTypePeople, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(items) != 1 || items[0].QueueType != QueueTypePeople {
		t.Fatalf("expected one people item, got %d", len(items))
	}
}

func TestMarkProcessingClaimsExactlyOnce(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item := mustEnqueue(t, store, contentRequest(42, 0))
	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := store.MarkProcessing(ctx, item.ID); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("second claim error = %v, want ErrNotClaimed", err)
	}

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.StartedAt == nil || fresh.LastHeartbeat == nil {
		t.Fatal("claim should stamp started_at and last_heartbeat")
	}
}

func TestMarkFailedRetriesUntilBudgetExhausted(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	req := contentRequest(42, 0)
	req.MaxRetries = 2
	item := mustEnqueue(t, store, req)

	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	status, err := store.MarkFailed(ctx, item.ID, "attempt 1")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if status != StatusPending {
		t.Fatalf("status after first failure = %q, want pending", status)
	}

	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("reclaim for second attempt: %v", err)
	}
	status, err = store.MarkFailed(ctx, item.ID, "attempt 2")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status after exhausting budget = %q, want failed", status)
	}

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", fresh.RetryCount)
	}
	if fresh.ErrorMessage != "attempt 2" {
		t.Fatalf("error message = %q, want last failure recorded", fresh.ErrorMessage)
	}

	items, err := store.DequeueBatch(ctx, QueueTypeContent, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("failed item surfaced in dequeue: %d items", len(items))
	}
}

func TestMarkCompletedRequiresProcessing(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	item := mustEnqueue(t, store, contentRequest(42, 0))
	if err := store.MarkCompleted(ctx, item.ID); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("complete from pending error = %v, want ErrNotClaimed", err)
	}

	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkCompleted(ctx, item.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", fresh.Status)
	}
	if fresh.CompletedAt == nil {
		t.Fatal("completed_at should be stamped")
	}
	if fresh.LastHeartbeat != nil {
		t.Fatal("heartbeat should be cleared on completion")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	stale := mustEnqueue(t, store, contentRequest(1, 0))
	live := mustEnqueue(t, store, contentRequest(2, 0))
	for _, item := range []*Item{stale, live} {
		if err := store.MarkProcessing(ctx, item.ID); err != nil {
			t.Fatalf("claim %d: %v", item.ID, err)
		}
	}

	old := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE queue_items SET last_heartbeat = ? WHERE id = ?`, old, stale.ID); err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed %d items, want 1", reclaimed)
	}

	freshStale, _ := store.GetByID(ctx, stale.ID)
	if freshStale.Status != StatusPending {
		t.Fatalf("stale item status = %q, want pending", freshStale.Status)
	}
	if freshStale.RetryCount != 0 {
		t.Fatalf("reclaim consumed a retry: count = %d", freshStale.RetryCount)
	}
	freshLive, _ := store.GetByID(ctx, live.ID)
	if freshLive.Status != StatusProcessing {
		t.Fatalf("live item status = %q, want processing untouched", freshLive.Status)
	}
}

func TestRetryFailedResetsBudget(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	req := contentRequest(42, 0)
	req.MaxRetries = 1
	item := mustEnqueue(t, store, req)
	if err := store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := store.MarkFailed(ctx, item.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	retried, err := store.RetryFailed(ctx, QueueTypeContent)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried %d items, want 1", retried)
	}

	fresh, _ := store.GetByID(ctx, item.ID)
	if fresh.Status != StatusPending || fresh.RetryCount != 0 {
		t.Fatalf("item = %q/%d, want pending with reset budget", fresh.Status, fresh.RetryCount)
	}
}

func TestStatsAndCounts(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	mustEnqueue(t, store, contentRequest(1, 0))
	claimed := mustEnqueue(t, store, contentRequest(2, 0))
	if err := store.MarkProcessing(ctx, claimed.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	mustEnqueue(t, store, EnqueueRequest{EntityID: 1, QueueType: QueueTypePeople, Priority: 0, MaxRetries: 3})

	counts, err := store.Counts(ctx, QueueTypeContent)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Total != 2 || counts.Pending != 1 || counts.Processing != 1 {
		t.Fatalf("counts = %+v, want total 2, pending 1, processing 1", counts)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("stats rows = %d, want 3", len(stats))
	}
}

func TestPauseFlags(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	paused, _, err := store.IsPaused(ctx, QueueTypeContent)
	if err != nil {
		t.Fatalf("is paused: %v", err)
	}
	if paused {
		t.Fatal("fresh queue should not be paused")
	}

	if err := store.SetPaused(ctx, QueueTypeContent, "provider maintenance"); err != nil {
		t.Fatalf("set paused: %v", err)
	}
	paused, reason, err := store.IsPaused(ctx, QueueTypeContent)
	if err != nil {
		t.Fatalf("is paused: %v", err)
	}
	if !paused || reason != "provider maintenance" {
		t.Fatalf("pause state = %v/%q, want paused with reason", paused, reason)
	}

	// Pausing one queue type leaves the others running.
	otherPaused, _, err := store.IsPaused(ctx, QueueTypePeople)
	if err != nil {
		t.Fatalf("is paused: %v", err)
	}
	if otherPaused {
		t.Fatal("people queue should not inherit the content pause")
	}

	if err := store.ClearPaused(ctx, QueueTypeContent); err != nil {
		t.Fatalf("clear paused: %v", err)
	}
	paused, _, err = store.IsPaused(ctx, QueueTypeContent)
	if err != nil {
		t.Fatalf("is paused: %v", err)
	}
	if paused {
		t.Fatal("queue should resume after clear")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	store := mustOpenStore(t)
	ctx := context.Background()

	payload, err := EncodeMetadata(Metadata{Source: SourceGapScan, MissingFields: []string{"overview", "poster_path"}})
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	req := contentRequest(42, 0)
	req.MetadataJSON = payload
	item := mustEnqueue(t, store, req)

	fresh, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	meta, err := fresh.Metadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.Source != SourceGapScan || len(meta.MissingFields) != 2 {
		t.Fatalf("metadata = %+v, want gap_scan with two missing fields", meta)
	}
}
