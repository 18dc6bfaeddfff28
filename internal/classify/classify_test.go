package classify_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/index"
	"github.com/efebarandurmaz/apistat/internal/index/indextest"
	"github.com/efebarandurmaz/apistat/internal/resolve"
)

type item = indextest.Item

func classifier(t *testing.T, b *indextest.Builder, opts classify.Options) (*classify.Classifier, *index.Document, *resolve.Table) {
	t.Helper()
	doc := b.Document(t)
	table, err := resolve.Resolve(doc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return classify.New(doc, table, opts), doc, table
}

func sampleCrate() *indextest.Builder {
	return indextest.New("demo").
		External("90", 1, "trait", "core", "clone", "Clone").
		Add(
			item{ID: "1", Name: "geo", Kind: "module", Parent: "0"},
			item{ID: "2", Name: "Point", Kind: "struct", Parent: "1",
				Generics: []indextest.Param{{Name: "'a", Kind: "lifetime"}, {Name: "T", Kind: "type"}}},
			item{ID: "3", Name: "x", Kind: "struct_field", Parent: "2", Visibility: "default"},
			item{ID: "4", Kind: "impl", Parent: "2", For: "Point", Visibility: "default"},
			item{ID: "5", Name: "new", Kind: "function", Parent: "4", HasBody: true},
			item{ID: "6", Name: "norm", Kind: "function", Parent: "4", HasBody: true, Visibility: "default"},
			item{ID: "7", Kind: "impl", Parent: "2", Trait: "90", TraitName: "Clone", For: "Point", Visibility: "default"},
			item{ID: "8", Name: "clone", Kind: "function", Parent: "7", HasBody: true, Visibility: "default"},
			item{ID: "10", Name: "Shape", Kind: "trait", Parent: "1"},
			item{ID: "11", Name: "area", Kind: "function", Parent: "10", Visibility: "default"},
			item{ID: "12", Name: "describe", Kind: "function", Parent: "10", HasBody: true, Visibility: "default"},
			item{ID: "13", Name: "SIDES", Kind: "constant", Parent: "10", Visibility: "default"},
			item{ID: "14", Name: "Output", Kind: "assoc_type", Parent: "10", Visibility: "default"},
			item{ID: "20", Name: "Color", Kind: "enum", Parent: "1"},
			item{ID: "21", Name: "Red", Kind: "variant", Parent: "20", Visibility: "default"},
			item{ID: "30", Name: "helper", Kind: "function", Parent: "1", Visibility: "default"},
			item{ID: "31", Name: "internal", Kind: "function", Parent: "1", Visibility: "crate"},
			item{ID: "32", Name: "MAX", Kind: "constant", Parent: "0"},
			item{ID: "33", Name: "COUNTER", Kind: "static", Parent: "0"},
			item{ID: "34", Name: "vec", Kind: "macro", Parent: "0"},
			item{ID: "35", Name: "Meters", Kind: "type_alias", Parent: "0"},
			item{ID: "36", Name: "Point", Kind: "use", Parent: "0", Target: "2"},
			item{ID: "37", Name: "Bits", Kind: "union", Parent: "0"},
			item{ID: "38", Name: "serde", Kind: "extern_crate", Parent: "0"},
			item{ID: "39", Name: "Opaque", Kind: "extern_type", Parent: "0"},
			item{ID: "40", Name: "weird", Kind: "future_kind", Parent: "0"},
		)
}

func TestClassify_Categories(t *testing.T) {
	c, _, _ := classifier(t, sampleCrate(), classify.Options{})

	tests := []struct {
		id   index.ID
		want classify.Category
	}{
		{"0", classify.CategoryModule},
		{"1", classify.CategoryModule},
		{"2", classify.CategoryStruct},
		{"3", classify.CategoryField},
		{"4", classify.CategoryInherentImpl},
		{"5", classify.CategoryMethod},
		{"7", classify.CategoryTraitImpl},
		{"8", classify.CategoryMethod},
		{"10", classify.CategoryTrait},
		{"11", classify.CategoryRequiredMethod},
		{"12", classify.CategoryProvidedMethod},
		{"13", classify.CategoryAssocConst},
		{"14", classify.CategoryAssocType},
		{"20", classify.CategoryEnum},
		{"21", classify.CategoryVariant},
		{"30", classify.CategoryFunction},
		{"32", classify.CategoryConstant},
		{"33", classify.CategoryStatic},
		{"34", classify.CategoryMacro},
		{"35", classify.CategoryTypeAlias},
		{"36", classify.CategoryImport},
		{"37", classify.CategoryUnion},
		{"38", classify.CategoryExternCrate},
		{"39", classify.CategoryForeignType},
		{"40", classify.CategoryOther},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.id).Category; got != tt.want {
			t.Errorf("%s: category = %s, want %s", tt.id, got, tt.want)
		}
	}

	other := c.Classify("40")
	if other.RawKind != "future_kind" {
		t.Errorf("raw kind = %q", other.RawKind)
	}
}

func TestClassify_Visibility(t *testing.T) {
	c, _, _ := classifier(t, sampleCrate(), classify.Options{})

	tests := []struct {
		id   index.ID
		want classify.Visibility
		why  string
	}{
		{"2", classify.VisibilityPublic, "declared pub"},
		{"3", classify.VisibilityPrivate, "struct fields default to private"},
		{"4", classify.VisibilityPublic, "impl blocks are public"},
		{"6", classify.VisibilityPrivate, "inherent method without pub"},
		{"8", classify.VisibilityPublic, "trait impl items inherit"},
		{"11", classify.VisibilityPublic, "trait items inherit"},
		{"21", classify.VisibilityPublic, "variants inherit from the enum"},
		{"30", classify.VisibilityPrivate, "module item without pub"},
		{"31", classify.VisibilityRestricted, "pub(crate)"},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.id).Visibility; got != tt.want {
			t.Errorf("%s (%s): visibility = %s, want %s", tt.id, tt.why, got, tt.want)
		}
	}
}

func TestClassify_Stability(t *testing.T) {
	b := indextest.New("demo").Add(
		item{ID: "1", Name: "old", Kind: "function", Parent: "0", Deprecated: "use new"},
		item{ID: "2", Name: "attr_old", Kind: "function", Parent: "0", Attrs: []string{`#[deprecated(since = "1.2")]`}},
		item{ID: "3", Name: "nightly", Kind: "function", Parent: "0", Attrs: []string{`#[unstable(feature = "x", issue = "1")]`}},
		item{ID: "4", Name: "solid", Kind: "function", Parent: "0", Attrs: []string{`#[stable(feature = "rust1", since = "1.0.0")]`}},
		item{ID: "5", Name: "plain", Kind: "function", Parent: "0"},
	)

	tests := []struct {
		id           index.ID
		assumeStable bool
		want         classify.Stability
	}{
		{"1", true, classify.StabilityDeprecated},
		{"2", true, classify.StabilityDeprecated},
		{"3", true, classify.StabilityUnstable},
		{"4", false, classify.StabilityStable},
		{"5", true, classify.StabilityStable},
		{"5", false, classify.StabilityUnstable},
	}
	for _, tt := range tests {
		c, _, _ := classifier(t, b, classify.Options{AssumeStable: tt.assumeStable})
		if got := c.Classify(tt.id).Stability; got != tt.want {
			t.Errorf("%s (assume_stable=%v): stability = %s, want %s", tt.id, tt.assumeStable, got, tt.want)
		}
	}

	c, _, _ := classifier(t, b, classify.Options{})
	if note := c.Classify("1").DeprecationNote; note != "use new" {
		t.Errorf("deprecation note = %q", note)
	}
}

func TestClassify_Generics(t *testing.T) {
	b := indextest.New("demo").Add(
		item{ID: "1", Name: "Wrap", Kind: "struct", Parent: "0", Generics: []indextest.Param{
			{Name: "'a", Kind: "lifetime"}, {Name: "T", Kind: "type"}, {Name: "N", Kind: "const"},
		}},
		item{ID: "2", Kind: "impl", Parent: "1", For: "Wrap", Generics: []indextest.Param{{Name: "T", Kind: "type"}}},
		item{ID: "3", Name: "get", Kind: "function", Parent: "2", HasBody: true},
		item{ID: "4", Name: "takes", Kind: "function", Parent: "0", Generics: []indextest.Param{
			{Name: "impl Display", Kind: "type", Synthetic: true},
		}},
		item{ID: "5", Name: "bounded", Kind: "function", Parent: "0",
			Extra: map[string]any{"generics": map[string]any{
				"params":           []any{},
				"where_predicates": []any{map[string]any{"bound_predicate": map[string]any{}}},
			}}},
	)
	c, _, _ := classifier(t, b, classify.Options{})

	tests := []struct {
		id          index.ID
		count       int
		hasGenerics bool
	}{
		{"1", 2, true},
		{"3", 0, true},
		{"4", 0, false},
		{"5", 0, true},
	}
	for _, tt := range tests {
		rec := c.Classify(tt.id)
		if rec.Generics != tt.count || rec.HasGenerics != tt.hasGenerics {
			t.Errorf("%s: generics=%d has=%v, want %d/%v", tt.id, rec.Generics, rec.HasGenerics, tt.count, tt.hasGenerics)
		}
	}
}

func TestClassify_MethodCounts(t *testing.T) {
	c, _, _ := classifier(t, sampleCrate(), classify.Options{})
	if got := c.Classify("2").Methods; got != 2 {
		t.Errorf("struct methods = %d, want 2 (trait impls excluded)", got)
	}
	if got := c.Classify("10").Methods; got != 2 {
		t.Errorf("trait methods = %d, want 2 (assoc items excluded)", got)
	}
	if got := c.Classify("30").Methods; got != 0 {
		t.Errorf("function methods = %d, want 0", got)
	}
}

func TestClassify_PathsFromTable(t *testing.T) {
	c, _, _ := classifier(t, sampleCrate(), classify.Options{})
	rec := c.Classify("5")
	if rec.Path != "demo::geo::Point::new" || rec.Module != "demo::geo" || !rec.Resolved {
		t.Errorf("record = %+v", rec)
	}
	if rec.Crate != "demo" {
		t.Errorf("crate = %q", rec.Crate)
	}
}

func TestClassify_Signature(t *testing.T) {
	c, _, _ := classifier(t, sampleCrate(), classify.Options{})
	tests := []struct {
		id   index.ID
		want string
	}{
		{"2", "struct Point<T> { .. }"},
		{"7", "impl Clone for Point"},
		{"11", "fn area(..);"},
		{"12", "fn describe(..) { .. }"},
		{"36", "use Point;"},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.id).Signature; got != tt.want {
			t.Errorf("%s: signature = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestAll_ParallelMatchesSequential(t *testing.T) {
	b := indextest.New("demo")
	for i := 1; i <= 200; i++ {
		b.Add(item{
			ID:       fmt.Sprint(i),
			Name:     fmt.Sprintf("f%d", i),
			Kind:     []string{"function", "struct", "macro", "constant"}[i%4],
			Parent:   "0",
			Docs:     map[bool]string{true: "doc"}[i%3 == 0],
			Generics: []indextest.Param{{Name: "T", Kind: "type"}}[:i%2],
		})
	}
	doc := b.Document(t)
	table, err := resolve.Resolve(doc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	seq, err := classify.All(context.Background(), doc, table, classify.Options{Workers: 1})
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := classify.All(context.Background(), doc, table, classify.Options{Workers: 8})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(seq) != doc.Len() {
		t.Fatalf("got %d records, want %d", len(seq), doc.Len())
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("parallel classification differs from sequential")
	}
}

func TestAll_Cancelled(t *testing.T) {
	c := sampleCrate()
	doc := c.Document(t)
	table, _ := resolve.Resolve(doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := classify.All(ctx, doc, table, classify.Options{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestParseCategory(t *testing.T) {
	got, err := classify.ParseCategory("traitimpl")
	if err != nil || got != classify.CategoryTraitImpl {
		t.Errorf("ParseCategory = %v, %v", got, err)
	}
	if _, err := classify.ParseCategory("gadget"); err == nil {
		t.Error("expected error for unknown category")
	}
}
