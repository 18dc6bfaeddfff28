package aggregate_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/index/indextest"
	"github.com/efebarandurmaz/apistat/internal/resolve"
)

type item = indextest.Item

func classifyAll(t *testing.T, b *indextest.Builder) []classify.Record {
	t.Helper()
	doc := b.Document(t)
	table, err := resolve.Resolve(doc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	records, err := classify.All(context.Background(), doc, table, classify.Options{AssumeStable: true})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	return records
}

func findRow(rows []aggregate.Row, cat classify.Category, key string) (aggregate.Row, bool) {
	for _, r := range rows {
		if r.Category == cat && r.Key == key {
			return r, true
		}
	}
	return aggregate.Row{}, false
}

func TestAggregate_ThreeItemScenario(t *testing.T) {
	records := classifyAll(t, indextest.New("demo").Add(
		item{ID: "1", Name: "run", Kind: "function", Parent: "0"},
		item{ID: "2", Name: "Pair", Kind: "struct", Parent: "0", Generics: []indextest.Param{
			{Name: "A", Kind: "type"}, {Name: "B", Kind: "type"},
		}},
		item{ID: "3", Name: "Legacy", Kind: "struct", Parent: "0", Visibility: "default", Deprecated: "gone"},
	))

	res, err := aggregate.Aggregate(records, aggregate.Options{GroupBy: aggregate.GroupByCategory})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	fn, ok := findRow(res.Rows, classify.CategoryFunction, "")
	if !ok {
		t.Fatal("missing Function row")
	}
	if fn.Count != 1 || fn.Public != 1 || fn.Deprecated != 0 || fn.AvgGenerics() != 0 {
		t.Errorf("Function row = %+v avg=%v", fn, fn.AvgGenerics())
	}

	st, ok := findRow(res.Rows, classify.CategoryStruct, "")
	if !ok {
		t.Fatal("missing Struct row")
	}
	if st.Count != 2 || st.Public != 1 || st.Deprecated != 1 || st.AvgGenerics() != 1 {
		t.Errorf("Struct row = %+v avg=%v", st, st.AvgGenerics())
	}

	// The crate root is the only other item.
	if len(res.Rows) != 3 {
		t.Errorf("rows = %+v", res.Rows)
	}
	if res.Total.Count != 4 {
		t.Errorf("total count = %d, want 4", res.Total.Count)
	}
}

func TestAggregate_CountsSumToItemCount(t *testing.T) {
	b := indextest.New("demo").Add(
		item{ID: "1", Name: "m", Kind: "module", Parent: "0"},
		item{ID: "2", Name: "S", Kind: "struct", Parent: "1"},
		item{ID: "3", Kind: "impl", Parent: "2", For: "S"},
		item{ID: "4", Name: "f", Kind: "function", Parent: "3"},
		item{ID: "5", Name: "odd", Kind: "mystery", Parent: "1"},
		item{ID: "6", Name: "A", Kind: "use", Parent: "0", Target: "7"},
		item{ID: "7", Name: "B", Kind: "use", Parent: "0", Target: "6"},
	)
	doc := b.Document(t)
	records := classifyAll(t, b)

	for _, g := range aggregate.GroupBys() {
		res, err := aggregate.Aggregate(records, aggregate.Options{GroupBy: g})
		if err != nil {
			t.Fatalf("%s: %v", g, err)
		}
		sum := 0
		for _, r := range res.Rows {
			if r.Count == 0 {
				t.Errorf("%s: empty row %+v", g, r)
			}
			sum += r.Count
		}
		if sum != doc.Len() || res.Total.Count != doc.Len() {
			t.Errorf("%s: sum=%d total=%d, want %d", g, sum, res.Total.Count, doc.Len())
		}
		if res.Other != 1 {
			t.Errorf("%s: other = %d, want 1", g, res.Other)
		}
		if res.Unresolved != 2 {
			t.Errorf("%s: unresolved = %d, want 2", g, res.Unresolved)
		}
	}
}

func TestAggregate_SecondaryKeys(t *testing.T) {
	records := []classify.Record{
		{ID: "1", Category: classify.CategoryFunction, Module: "a", Crate: "x", Stability: classify.StabilityStable},
		{ID: "2", Category: classify.CategoryFunction, Module: "b", Crate: "x", Stability: classify.StabilityUnstable},
		{ID: "3", Category: classify.CategoryFunction, Module: "a", Crate: "y", Stability: classify.StabilityStable},
		{ID: "4", Category: classify.CategoryEnum, Stability: classify.StabilityStable},
	}

	tests := []struct {
		groupBy aggregate.GroupBy
		want    []string
	}{
		{aggregate.GroupByCategory, []string{"Enum/", "Function/"}},
		{aggregate.GroupByCategoryModule, []string{"Enum/-", "Function/a", "Function/b"}},
		{aggregate.GroupByCategoryStability, []string{"Enum/stable", "Function/stable", "Function/unstable"}},
		{aggregate.GroupByCategoryCrate, []string{"Enum/-", "Function/x", "Function/y"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.groupBy), func(t *testing.T) {
			res, err := aggregate.Aggregate(records, aggregate.Options{GroupBy: tt.groupBy})
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			var got []string
			for _, r := range res.Rows {
				got = append(got, string(r.Category)+"/"+r.Key)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregate_ExcludeAndPublicOnly(t *testing.T) {
	records := []classify.Record{
		{ID: "1", Category: classify.CategoryFunction, Path: "std::fs::read", Visibility: classify.VisibilityPublic},
		{ID: "2", Category: classify.CategoryFunction, Path: "std::io::read", Visibility: classify.VisibilityPublic},
		{ID: "3", Category: classify.CategoryFunction, Path: "std::io::helper", Visibility: classify.VisibilityPrivate},
	}

	res, err := aggregate.Aggregate(records, aggregate.Options{Exclude: []string{"std::fs"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Excluded != 1 || res.Total.Count != 2 {
		t.Errorf("exclude: excluded=%d total=%d", res.Excluded, res.Total.Count)
	}

	res, err = aggregate.Aggregate(records, aggregate.Options{PublicOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Excluded != 1 || res.Total.Public != 2 || res.Total.Count != 2 {
		t.Errorf("public only: %+v", res)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	res, err := aggregate.Aggregate(nil, aggregate.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("rows = %v", res.Rows)
	}
	if res.Total.AvgGenerics() != 0 || res.Total.PublicRatio().Float() != 0 {
		t.Error("empty totals must not divide by zero")
	}
	if res.GroupBy != aggregate.GroupByCategory {
		t.Errorf("default grouping = %q", res.GroupBy)
	}
}

func TestAggregate_UnknownGrouping(t *testing.T) {
	_, err := aggregate.Aggregate(nil, aggregate.Options{GroupBy: "category+color"})
	var ue *aggregate.UnknownGroupingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnknownGroupingError, got %v", err)
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	records := []classify.Record{
		{ID: "2", Category: classify.CategoryStruct, Generics: 3, HasGenerics: true},
		{ID: "1", Category: classify.CategoryFunction, Path: "x::y"},
	}
	before := append([]classify.Record(nil), records...)
	if _, err := aggregate.Aggregate(records, aggregate.Options{Exclude: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(records, before) {
		t.Error("input records were modified")
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	b := indextest.New("demo")
	for _, it := range []item{
		{ID: "1", Name: "a", Kind: "module", Parent: "0"},
		{ID: "2", Name: "b", Kind: "module", Parent: "0"},
		{ID: "3", Name: "f", Kind: "function", Parent: "1"},
		{ID: "4", Name: "g", Kind: "function", Parent: "2"},
		{ID: "5", Name: "T", Kind: "trait", Parent: "2"},
	} {
		b.Add(it)
	}
	first, err := aggregate.Aggregate(classifyAll(t, b), aggregate.Options{GroupBy: aggregate.GroupByCategoryModule})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := aggregate.Aggregate(classifyAll(t, b), aggregate.Options{GroupBy: aggregate.GroupByCategoryModule})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestRatio(t *testing.T) {
	r := aggregate.Ratio{Num: 1, Den: 4}
	if r.Float() != 0.25 || r.String() != "1/4 (25.0%)" {
		t.Errorf("ratio = %v %q", r.Float(), r.String())
	}
	if (aggregate.Ratio{}).Float() != 0 {
		t.Error("zero denominator")
	}
}
