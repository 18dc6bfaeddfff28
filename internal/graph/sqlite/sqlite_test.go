package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/depgraph"
	"github.com/efebarandurmaz/apistat/internal/graph"
)

func snapshot() *graph.Snapshot {
	records := []classify.Record{
		{ID: "10", Name: "run", Category: classify.CategoryFunction, Path: "demo::run", Module: "demo",
			Crate: "demo", Local: true, Resolved: true, Visibility: classify.VisibilityPublic,
			Stability: classify.StabilityStable, Documented: true, Const: true, Signature: "fn run(..) { .. }"},
		{ID: "2", Name: "Point", Category: classify.CategoryStruct, Path: "demo::Point", Module: "demo",
			Crate: "demo", Local: true, Resolved: true, Visibility: classify.VisibilityPublic,
			Stability: classify.StabilityDeprecated, DeprecationNote: "use Vec2", Generics: 1,
			HasGenerics: true, Methods: 3},
	}
	agg, _ := aggregate.Aggregate(records, aggregate.Options{})
	return &graph.Snapshot{
		Crate:         "demo",
		CrateVersion:  "0.1.0",
		FormatVersion: 39,
		Records:       records,
		Aggregate:     agg,
		Graph: &depgraph.Graph{
			Nodes: []depgraph.Node{
				{ID: "item:2", Name: "demo::Point", Kind: depgraph.NodeType, Module: "demo"},
				{ID: "item:5", Name: "demo::prelude::Point", Kind: depgraph.NodeReExport, Module: "demo::prelude"},
				{ID: "item:6", Name: "demo::P", Kind: depgraph.NodeReExport, Module: "demo"},
			},
			Edges: []depgraph.Edge{
				{From: "item:5", To: "item:2", Kind: depgraph.EdgeReExports, Label: "Point"},
				{From: "item:6", To: "item:2", Kind: depgraph.EdgeReExports, Label: "P"},
			},
		},
	}
}

func open(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "apistat.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestStoreAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := open(t)
	if err := repo.Store(ctx, snapshot()); err != nil {
		t.Fatalf("Store: %v", err)
	}

	records, err := repo.LoadRecords(ctx, "demo")
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Numeric ids sort numerically.
	if records[0].ID != "2" || records[1].ID != "10" {
		t.Errorf("order = %s, %s", records[0].ID, records[1].ID)
	}
	want := snapshot().Records
	if records[0] != want[1] || records[1] != want[0] {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", records, want)
	}
}

func TestStore_ReplacesCrate(t *testing.T) {
	ctx := context.Background()
	repo := open(t)
	snap := snapshot()
	if err := repo.Store(ctx, snap); err != nil {
		t.Fatal(err)
	}
	snap.Records = snap.Records[:1]
	if err := repo.Store(ctx, snap); err != nil {
		t.Fatal(err)
	}
	records, err := repo.LoadRecords(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("expected the second store to replace the first, got %d records", len(records))
	}
}

func TestQueryReExports(t *testing.T) {
	ctx := context.Background()
	repo := open(t)
	if err := repo.Store(ctx, snapshot()); err != nil {
		t.Fatal(err)
	}
	names, err := repo.QueryReExports(ctx, "demo", "demo::Point")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "demo::P" || names[1] != "demo::prelude::Point" {
		t.Errorf("re-exports = %v", names)
	}
	none, err := repo.QueryReExports(ctx, "other", "demo::Point")
	if err != nil || len(none) != 0 {
		t.Errorf("other crate = %v, %v", none, err)
	}
}

func TestCategoryCounts(t *testing.T) {
	ctx := context.Background()
	repo := open(t)
	if err := repo.Store(ctx, snapshot()); err != nil {
		t.Fatal(err)
	}
	counts, err := repo.CategoryCounts(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if counts[classify.CategoryFunction] != 1 || counts[classify.CategoryStruct] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestOpen_Memory(t *testing.T) {
	repo, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close(context.Background())
	if err := repo.Store(context.Background(), snapshot()); err != nil {
		t.Errorf("Store in memory: %v", err)
	}
}
