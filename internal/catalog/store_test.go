package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func mustOpenCatalog(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertMovie(t *testing.T, store *Store, tmdbID int64, title string) int64 {
	t.Helper()
	id, err := store.InsertContent(context.Background(), &Content{
		TMDBID:          tmdbID,
		ContentType:     ContentTypeMovie,
		Title:           title,
		EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("insert content %q: %v", title, err)
	}
	return id
}

func insertPerson(t *testing.T, store *Store, tmdbID int64, name string) int64 {
	t.Helper()
	id, err := store.InsertPerson(context.Background(), &Person{
		TMDBID:          tmdbID,
		Name:            name,
		EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("insert person %q: %v", name, err)
	}
	return id
}

func TestScanContentPageWalksWholeCatalog(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		insertMovie(t, store, i, "movie")
	}

	var seen []int64
	var afterID int64
	for {
		page, err := store.ScanContentPage(ctx, afterID, 2)
		if err != nil {
			t.Fatalf("scan page: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			seen = append(seen, c.ID)
		}
		afterID = page[len(page)-1].ID
	}
	if len(seen) != 5 {
		t.Fatalf("paged scan saw %d rows, want 5", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("page order not strictly ascending: %v", seen)
		}
	}
}

func TestPublishContentIsOneDirectional(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	id := insertMovie(t, store, 1, "draft movie")
	promoted, err := store.PublishContent(ctx, id)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !promoted {
		t.Fatal("draft item should promote")
	}

	again, err := store.PublishContent(ctx, id)
	if err != nil {
		t.Fatalf("re-publish: %v", err)
	}
	if again {
		t.Fatal("published item should not promote twice")
	}

	c, err := store.GetContent(ctx, id)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if c.Status != StatusPublished {
		t.Fatalf("status = %q, want published", c.Status)
	}
}

func TestStampAndDueSelectionOrdering(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	neverTouched := insertMovie(t, store, 1, "never touched")
	popular := insertMovie(t, store, 2, "popular stale")
	obscure := insertMovie(t, store, 3, "obscure stale")
	current := insertMovie(t, store, 4, "already stamped")

	if _, err := store.db.Exec(`UPDATE content SET popularity = 90 WHERE id = ?`, popular); err != nil {
		t.Fatalf("set popularity: %v", err)
	}

	// Stamp three items in cycle 0, leaving one untouched; then make two of
	// them stale relative to cycle 1.
	for _, id := range []int64{popular, obscure, current} {
		if err := store.StampContent(ctx, id, 0); err != nil {
			t.Fatalf("stamp %d: %v", id, err)
		}
	}
	if err := store.StampContent(ctx, current, 1); err != nil {
		t.Fatalf("stamp current: %v", err)
	}

	// The two cycle-0 stamps share a near-identical enriched_at; separate them
	// so ordering is deterministic, then verify popularity breaks the tie for
	// equal timestamps via a third equal-time row.
	old := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE content SET enriched_at = ? WHERE id IN (?, ?)`, old, popular, obscure); err != nil {
		t.Fatalf("backdate stamps: %v", err)
	}

	due, err := store.SelectContentDue(ctx, 1, 10)
	if err != nil {
		t.Fatalf("select due: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("due count = %d, want 3", len(due))
	}
	if due[0] != neverTouched {
		t.Fatalf("first due = %d, want never-touched %d", due[0], neverTouched)
	}
	if due[1] != popular || due[2] != obscure {
		t.Fatalf("stale order = [%d %d], want popular %d before obscure %d", due[1], due[2], popular, obscure)
	}
}

func TestCycleRecordAdvanceGuardsVersion(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	record, err := store.CycleRecordFor(ctx, EntityTypePeople)
	if err != nil {
		t.Fatalf("cycle record: %v", err)
	}
	if record.CurrentCycle != 0 {
		t.Fatalf("fresh cycle = %d, want 0", record.CurrentCycle)
	}

	if err := store.AdvanceCycle(ctx, EntityTypePeople, record.Version, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// A second advance from the same stale version must lose the race.
	if err := store.AdvanceCycle(ctx, EntityTypePeople, record.Version, 2); !errors.Is(err, ErrStaleCycle) {
		t.Fatalf("stale advance error = %v, want ErrStaleCycle", err)
	}

	fresh, err := store.CycleRecordFor(ctx, EntityTypePeople)
	if err != nil {
		t.Fatalf("reread record: %v", err)
	}
	if fresh.CurrentCycle != 1 {
		t.Fatalf("cycle = %d, want 1", fresh.CurrentCycle)
	}
	if fresh.Version != record.Version+1 {
		t.Fatalf("version = %d, want %d", fresh.Version, record.Version+1)
	}
}

func TestAdvanceCycleWrapResetsStamps(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	id := insertPerson(t, store, 1, "someone")
	if err := store.StampPerson(ctx, id, 8); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	record, err := store.CycleRecordFor(ctx, EntityTypePeople)
	if err != nil {
		t.Fatalf("cycle record: %v", err)
	}
	if err := store.AdvanceCycle(ctx, EntityTypePeople, record.Version, 0); err != nil {
		t.Fatalf("wrap advance: %v", err)
	}

	p, err := store.GetPerson(ctx, id)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if p.EnrichmentCycle != -1 {
		t.Fatalf("stamp after wrap = %d, want reset to -1", p.EnrichmentCycle)
	}
	due, err := store.SelectPeopleDue(ctx, 0, 10)
	if err != nil {
		t.Fatalf("select due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due after wrap = %d, want 1", len(due))
	}
}

func TestCreditCountsByContentAggregatesOnce(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	movie := insertMovie(t, store, 1, "movie")
	actor := insertPerson(t, store, 10, "actor")
	director := insertPerson(t, store, 11, "director")

	credits := []Credit{
		{PersonID: actor, Kind: CreditCast, CharacterName: "Lead", CastOrder: 0},
		{PersonID: director, Kind: CreditCrew, Job: "Director", Department: "Directing"},
	}
	if err := store.ReplaceContentCredits(ctx, movie, credits); err != nil {
		t.Fatalf("replace credits: %v", err)
	}

	counts, err := store.CreditCountsByContent(ctx)
	if err != nil {
		t.Fatalf("credit counts: %v", err)
	}
	got := counts[movie]
	if got.Cast != 1 || got.Crew != 1 {
		t.Fatalf("counts = %+v, want 1 cast and 1 crew", got)
	}

	// Replacing with a fresh snapshot drops the old rows.
	if err := store.ReplaceContentCredits(ctx, movie, credits[:1]); err != nil {
		t.Fatalf("replace credits again: %v", err)
	}
	listed, err := store.ListContentCredits(ctx, movie)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(listed) != 1 || listed[0].Kind != CreditCast {
		t.Fatalf("credits after replace = %+v, want single cast row", listed)
	}
}

func TestQualityReportRoundTrip(t *testing.T) {
	store := mustOpenCatalog(t)
	ctx := context.Background()

	if _, err := store.LatestQualityReport(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty report error = %v, want ErrNotFound", err)
	}

	id, err := store.SaveQualityReport(ctx, QualityReport{
		TotalScanned:  100,
		ItemsWithGaps: 40,
		AverageScore:  72.5,
		ReportJSON:    `{"missing":{"overview":12}}`,
	})
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	report, err := store.LatestQualityReport(ctx)
	if err != nil {
		t.Fatalf("latest report: %v", err)
	}
	if report.ID != id || report.TotalScanned != 100 || report.ItemsWithGaps != 40 {
		t.Fatalf("report = %+v, want saved values", report)
	}
}
