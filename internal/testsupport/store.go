package testsupport

import (
	"context"
	"testing"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedContent inserts a sparse movie row for tests using the provided store.
func SeedContent(t testing.TB, store *catalog.Store, tmdbID int64, title string) int64 {
	t.Helper()

	id, err := store.InsertContent(context.Background(), &catalog.Content{
		TMDBID:          tmdbID,
		ContentType:     catalog.ContentTypeMovie,
		Title:           title,
		EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("catalog.InsertContent: %v", err)
	}
	return id
}

// SeedPerson inserts a sparse person row for tests using the provided store.
func SeedPerson(t testing.TB, store *catalog.Store, tmdbID int64, name string) int64 {
	t.Helper()

	id, err := store.InsertPerson(context.Background(), &catalog.Person{
		TMDBID:          tmdbID,
		Name:            name,
		EnrichmentCycle: -1,
	})
	if err != nil {
		t.Fatalf("catalog.InsertPerson: %v", err)
	}
	return id
}
