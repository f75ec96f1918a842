package gaps

import (
	"context"
	"path/filepath"
	"testing"

	"curator/internal/catalog"
	"curator/internal/queue"
)

func newScanner(t *testing.T, opts Options) (*Scanner, *catalog.Store, *queue.Store) {
	t.Helper()
	dir := t.TempDir()
	catalogStore, err := catalog.OpenPath(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	queueStore, err := queue.OpenPath(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() {
		_ = catalogStore.Close()
		_ = queueStore.Close()
	})
	return NewScanner(catalogStore, queueStore, opts, nil), catalogStore, queueStore
}

func completeMovie(tmdbID int64) *catalog.Content {
	return &catalog.Content{
		TMDBID:          tmdbID,
		ContentType:     catalog.ContentTypeMovie,
		Title:           "complete movie",
		Overview:        "a film with everything filled in",
		Tagline:         "nothing missing",
		ReleaseDate:     "2020-01-01",
		RuntimeMinutes:  120,
		TMDBStatus:      "Released",
		VoteAverage:     7.4,
		VoteCount:       1200,
		PosterPath:      "/poster.jpg",
		BackdropPath:    "/backdrop.jpg",
		EnrichmentCycle: -1,
	}
}

func seedFullCredits(t *testing.T, store *catalog.Store, contentID int64) {
	t.Helper()
	ctx := context.Background()
	credits := make([]catalog.Credit, 0, 6)
	for i := 0; i < 5; i++ {
		personID, err := store.InsertPerson(ctx, &catalog.Person{TMDBID: int64(100 + i), Name: "actor", EnrichmentCycle: -1})
		if err != nil {
			t.Fatalf("insert person: %v", err)
		}
		credits = append(credits, catalog.Credit{PersonID: personID, Kind: catalog.CreditCast, CastOrder: i})
	}
	directorID, err := store.InsertPerson(ctx, &catalog.Person{TMDBID: 200, Name: "director", EnrichmentCycle: -1})
	if err != nil {
		t.Fatalf("insert director: %v", err)
	}
	credits = append(credits, catalog.Credit{PersonID: directorID, Kind: catalog.CreditCrew, Job: "Director"})
	if err := store.ReplaceContentCredits(ctx, contentID, credits); err != nil {
		t.Fatalf("seed credits: %v", err)
	}
}

func TestEvaluateContentTypeConditionalRules(t *testing.T) {
	movie := &catalog.Content{ContentType: catalog.ContentTypeMovie, Title: "m"}
	missing, _ := EvaluateContent(movie, catalog.CreditCounts{})
	if !containsField(missing, "runtime") {
		t.Fatalf("movie missing = %v, want runtime flagged", missing)
	}
	if containsField(missing, "episode_counts") {
		t.Fatalf("movie missing = %v, episode_counts should not apply", missing)
	}

	show := &catalog.Content{ContentType: catalog.ContentTypeTV, Title: "s"}
	missing, _ = EvaluateContent(show, catalog.CreditCounts{})
	if !containsField(missing, "episode_counts") {
		t.Fatalf("tv missing = %v, want episode_counts flagged", missing)
	}
	if containsField(missing, "runtime") {
		t.Fatalf("tv missing = %v, runtime should not apply", missing)
	}
}

func TestEvaluateContentCreditThresholds(t *testing.T) {
	c := completeMovie(1)
	missing, score := EvaluateContent(c, catalog.CreditCounts{Cast: 5, Crew: 1})
	if len(missing) != 0 {
		t.Fatalf("complete movie missing = %v, want none", missing)
	}
	if score != 100 {
		t.Fatalf("complete movie score = %d, want 100", score)
	}

	missing, _ = EvaluateContent(c, catalog.CreditCounts{Cast: 4, Crew: 1})
	if !containsField(missing, "cast") {
		t.Fatalf("missing = %v, want cast flagged below 5", missing)
	}
	missing, _ = EvaluateContent(c, catalog.CreditCounts{Cast: 5, Crew: 0})
	if !containsField(missing, "crew") {
		t.Fatalf("missing = %v, want crew flagged below 1", missing)
	}
}

func TestEvaluatePersonRules(t *testing.T) {
	sparse := &catalog.Person{Name: "sparse"}
	missing, score := EvaluatePerson(sparse)
	if len(missing) != len(personRules) {
		t.Fatalf("sparse person missing %d fields, want all %d", len(missing), len(personRules))
	}
	if score != 0 {
		t.Fatalf("sparse person score = %d, want 0", score)
	}

	full := &catalog.Person{
		Name:               "full",
		Biography:          "a life story",
		Birthday:           "1970-01-01",
		PlaceOfBirth:       "Somewhere",
		Gender:             2,
		ProfilePath:        "/face.jpg",
		KnownForDepartment: "Acting",
		Popularity:         12.3,
	}
	missing, score = EvaluatePerson(full)
	if len(missing) != 0 || score != 100 {
		t.Fatalf("full person = %v/%d, want no gaps and score 100", missing, score)
	}
}

func TestScanContentEnqueuesWithGapCountPriority(t *testing.T) {
	scanner, catalogStore, queueStore := newScanner(t, Options{})
	ctx := context.Background()

	sparseID, err := catalogStore.InsertContent(ctx, &catalog.Content{
		TMDBID:          1,
		ContentType:     catalog.ContentTypeMovie,
		Title:           "sparse movie",
		EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("insert sparse: %v", err)
	}
	completeID, err := catalogStore.InsertContent(ctx, completeMovie(2))
	if err != nil {
		t.Fatalf("insert complete: %v", err)
	}
	seedFullCredits(t, catalogStore, completeID)

	summary, err := scanner.ScanContent(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.Scanned != 2 {
		t.Fatalf("scanned = %d, want 2", summary.Scanned)
	}
	if summary.WithGaps != 1 || summary.Queued != 1 {
		t.Fatalf("summary = %+v, want exactly the sparse movie queued", summary)
	}

	item, err := queueStore.GetByEntity(ctx, sparseID, queue.QueueTypeContent)
	if err != nil {
		t.Fatalf("get queued item: %v", err)
	}
	if item == nil {
		t.Fatal("sparse movie should be queued")
	}
	meta, err := item.Metadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if item.Priority != len(meta.MissingFields) {
		t.Fatalf("priority = %d, want gap count %d", item.Priority, len(meta.MissingFields))
	}
	if meta.Source != queue.SourceGapScan {
		t.Fatalf("metadata source = %q, want gap_scan", meta.Source)
	}

	complete, err := queueStore.GetByEntity(ctx, completeID, queue.QueueTypeContent)
	if err != nil {
		t.Fatalf("get complete item: %v", err)
	}
	if complete != nil {
		t.Fatal("complete movie must not be queued")
	}
}

func TestScanContentPromotesDraftsAboveThreshold(t *testing.T) {
	scanner, catalogStore, _ := newScanner(t, Options{PublishThreshold: 70})
	ctx := context.Background()

	id, err := catalogStore.InsertContent(ctx, completeMovie(1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	seedFullCredits(t, catalogStore, id)

	summary, err := scanner.ScanContent(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.Promoted != 1 {
		t.Fatalf("promoted = %d, want 1", summary.Promoted)
	}
	c, err := catalogStore.GetContent(ctx, id)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if c.Status != catalog.StatusPublished {
		t.Fatalf("status = %q, want published", c.Status)
	}
	if c.CompletenessScore != 100 {
		t.Fatalf("score = %d, want persisted 100", c.CompletenessScore)
	}

	// Second scan must not demote or double-count.
	summary, err = scanner.ScanContent(ctx)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if summary.Promoted != 0 {
		t.Fatalf("rescan promoted = %d, want 0", summary.Promoted)
	}
}

func TestScanRescanUpdatesInsteadOfDuplicating(t *testing.T) {
	scanner, catalogStore, queueStore := newScanner(t, Options{})
	ctx := context.Background()

	if _, err := catalogStore.InsertContent(ctx, &catalog.Content{
		TMDBID:          1,
		ContentType:     catalog.ContentTypeMovie,
		Title:           "sparse",
		EnrichmentCycle: -1,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := scanner.ScanContent(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := scanner.ScanContent(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Queued != 0 || second.Updated != 1 {
		t.Fatalf("second scan = %+v, want one update and no new rows", second)
	}

	items, err := queueStore.List(ctx, queue.QueueTypeContent)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queue rows = %d, want 1", len(items))
	}
}

func TestScanPersistsQualityReport(t *testing.T) {
	scanner, catalogStore, _ := newScanner(t, Options{ReportTopItems: 5})
	ctx := context.Background()

	if _, err := catalogStore.InsertContent(ctx, &catalog.Content{
		TMDBID:          1,
		ContentType:     catalog.ContentTypeMovie,
		Title:           "sparse",
		EnrichmentCycle: -1,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := scanner.ScanContent(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	saved, err := catalogStore.LatestQualityReport(ctx)
	if err != nil {
		t.Fatalf("latest report: %v", err)
	}
	report, err := DecodeReport(saved.ReportJSON)
	if err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.EntityType != string(catalog.EntityTypeContent) {
		t.Fatalf("entity type = %q, want content", report.EntityType)
	}
	if len(report.MissingCounts) == 0 || len(report.TopItems) != 1 {
		t.Fatalf("report = %+v, want counts and one top item", report)
	}
	if report.MissingCounts[0].Count < report.MissingCounts[len(report.MissingCounts)-1].Count {
		t.Fatal("missing counts should be sorted descending")
	}
}

func TestScanStartFromIDSkipsEarlierRows(t *testing.T) {
	scanner, catalogStore, _ := newScanner(t, Options{})
	ctx := context.Background()

	firstID, err := catalogStore.InsertContent(ctx, &catalog.Content{
		TMDBID: 1, ContentType: catalog.ContentTypeMovie, Title: "early", EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := catalogStore.InsertContent(ctx, &catalog.Content{
		TMDBID: 2, ContentType: catalog.ContentTypeMovie, Title: "late", EnrichmentCycle: -1,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	resumed := NewScanner(catalogStore, scanner.queue, Options{StartFromID: firstID}, nil)
	summary, err := resumed.ScanContent(ctx)
	if err != nil {
		t.Fatalf("resumed scan: %v", err)
	}
	if summary.Scanned != 1 {
		t.Fatalf("resumed scanned = %d, want 1", summary.Scanned)
	}
}

func TestLabelForField(t *testing.T) {
	if got := LabelForField("place_of_birth"); got != "Place Of Birth" {
		t.Fatalf("label = %q, want %q", got, "Place Of Birth")
	}
}

func containsField(fields []string, want string) bool {
	for _, field := range fields {
		if field == want {
			return true
		}
	}
	return false
}
