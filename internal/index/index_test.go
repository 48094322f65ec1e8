package index

import (
	"context"
	"path/filepath"
	"testing"

	"guardrag/internal/types"
)

func testDocs() []Document {
	return []Document{
		{
			Content:  "warranty coverage lasts two years",
			Vector:   []float32{1, 0, 0},
			Metadata: types.DocumentMetadata{DocType: "system"},
		},
		{
			Content:  "contact support for maintenance schedules",
			Vector:   []float32{0, 1, 0},
			Metadata: types.DocumentMetadata{DocType: "system"},
		},
		{
			Content:  "my personal notes",
			Vector:   []float32{0.9, 0.1, 0},
			Metadata: types.DocumentMetadata{DocType: "user", UserID: "alice"},
		},
	}
}

func runIndexSuite(t *testing.T, idx Index) {
	ctx := context.Background()

	for _, doc := range testDocs() {
		if err := idx.Add(ctx, doc); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}

	// Query close to the first document.
	got, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search returned %d candidates, want 2", len(got))
	}
	if got[0].Content != "warranty coverage lasts two years" {
		t.Errorf("closest candidate = %q", got[0].Content)
	}
	if got[0].Distance > got[1].Distance {
		t.Error("candidates not ordered by ascending distance")
	}
	if got[1].Metadata.UserID != "alice" {
		t.Errorf("second candidate metadata = %+v, want alice's notes", got[1].Metadata)
	}

	// n larger than corpus returns everything.
	all, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Search with large n returned %d, want 3", len(all))
	}

	// Zero n returns nothing.
	none, err := idx.Search(ctx, []float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Search with n=0 returned %d candidates", len(none))
	}
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	defer idx.Close()
	runIndexSuite(t, idx)
}

func TestSQLiteIndex(t *testing.T) {
	idx, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("NewSQLiteIndex: %v", err)
	}
	defer idx.Close()
	runIndexSuite(t, idx)
}

func TestSQLiteIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := NewSQLiteIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := Document{
		Content:  "persisted",
		Vector:   []float32{0.5, 0.5},
		Metadata: types.DocumentMetadata{DocType: "system", IngestedAt: "2026-01-02T15:04:05Z"},
	}
	if err := idx.Add(ctx, doc); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	reopened, err := NewSQLiteIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Search(ctx, []float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "persisted" {
		t.Fatalf("reopened search = %+v", got)
	}
	if got[0].Metadata.IngestedAt != "2026-01-02T15:04:05Z" {
		t.Errorf("ingested_at not persisted: %q", got[0].Metadata.IngestedAt)
	}
}

func TestMemoryIndexSkipsDimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	idx.Add(ctx, Document{Content: "good", Vector: []float32{1, 0}})
	idx.Add(ctx, Document{Content: "bad dims", Vector: []float32{1, 0, 0}})

	got, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "good" {
		t.Errorf("Search = %+v, want only the matching-dimension document", got)
	}
}
