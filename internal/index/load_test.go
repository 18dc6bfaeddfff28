package index_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/index"
	"github.com/efebarandurmaz/apistat/internal/index/indextest"
)

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := index.Load([]byte("{not json"))
	var fe *index.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestLoad_MissingVersion(t *testing.T) {
	_, err := index.Load([]byte(`{"root": "0", "index": {}}`))
	var fe *index.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if !strings.Contains(fe.Error(), "format_version") {
		t.Errorf("error should mention format_version: %v", fe)
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		wantErr bool
	}{
		{"too_old", index.MinFormatVersion - 1, true},
		{"min", index.MinFormatVersion, false},
		{"max", index.MaxFormatVersion, false},
		{"too_new", index.MaxFormatVersion + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := indextest.New("demo").Version(tt.version).JSON()
			_, err := index.Load(data)
			var ue *index.UnsupportedVersionError
			if got := errors.As(err, &ue); got != tt.wantErr {
				t.Fatalf("version %d: UnsupportedVersionError=%v, want %v (err=%v)", tt.version, got, tt.wantErr, err)
			}
			if tt.wantErr && ue.Version != tt.version {
				t.Errorf("reported version %d, want %d", ue.Version, tt.version)
			}
		})
	}
}

func TestLoad_Basic(t *testing.T) {
	doc := indextest.New("demo").Add(
		indextest.Item{ID: "1", Name: "Point", Kind: "struct", Parent: "0", Docs: "A point.",
			Generics: []indextest.Param{{Name: "'a", Kind: "lifetime"}, {Name: "T", Kind: "type"}}},
		indextest.Item{ID: "2", Name: "x", Kind: "struct_field", Parent: "1"},
		indextest.Item{ID: "3", Name: "origin", Kind: "function", Parent: "0", HasBody: true, Const: true},
	).Document(t)

	if doc.Len() != 4 {
		t.Fatalf("expected 4 items, got %d", doc.Len())
	}
	if doc.Root != "0" || doc.RootItem().Name != "demo" {
		t.Errorf("unexpected root %q", doc.Root)
	}

	point, ok := doc.Item("1")
	if !ok {
		t.Fatal("item 1 missing")
	}
	if !point.Kind.Is(index.TagStruct) {
		t.Errorf("kind = %v, want struct", point.Kind)
	}
	if !point.HasDocs {
		t.Error("expected docs")
	}
	if got := point.Generics.Count(); got != 1 {
		t.Errorf("generic count = %d, want 1 (lifetimes excluded)", got)
	}
	if point.Parent != "0" {
		t.Errorf("parent = %q, want root", point.Parent)
	}
	if len(point.Children) != 1 || point.Children[0] != "2" {
		t.Errorf("children = %v, want [2]", point.Children)
	}

	field, _ := doc.Item("2")
	if field.Parent != "1" {
		t.Errorf("field parent = %q, want 1", field.Parent)
	}

	fn, _ := doc.Item("3")
	if !fn.Header.Const || !fn.HasBody {
		t.Errorf("header = %+v has_body=%v", fn.Header, fn.HasBody)
	}
}

func TestLoad_LegacyEncoding(t *testing.T) {
	data := `{
		"root": "0:0:0",
		"format_version": 20,
		"index": {
			"0:0:0": {"id": "0:0:0", "crate_id": 0, "name": "old", "visibility": "public",
				"attrs": [], "kind": "module", "inner": {"is_crate": true, "items": ["0:1:0", "0:2:0"]}},
			"0:1:0": {"id": "0:1:0", "crate_id": 0, "name": "run", "visibility": "public",
				"attrs": ["#[stable(feature = \"rust1\", since = \"1.0.0\")]"],
				"kind": "function", "inner": {"decl": {}, "generics": {"params": [], "where_predicates": []},
				"header": {"const_": false, "unsafe_": true, "async_": false}, "has_body": true}},
			"0:2:0": {"id": "0:2:0", "crate_id": 0, "name": "Alias", "visibility": "public",
				"attrs": [], "kind": "typedef", "inner": {"type": {"kind": "primitive", "inner": "u8"},
				"generics": {"params": [], "where_predicates": []}}}
		},
		"paths": {}
	}`
	doc, err := index.Load([]byte(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	run, _ := doc.Item("0:1:0")
	if !run.Kind.Is(index.TagFunction) || !run.Header.Unsafe {
		t.Errorf("run: kind=%v header=%+v", run.Kind, run.Header)
	}
	if len(run.Attrs) != 1 || !strings.HasPrefix(run.Attrs[0], "#[stable") {
		t.Errorf("attrs = %v", run.Attrs)
	}
	alias, _ := doc.Item("0:2:0")
	if !alias.Kind.Is(index.TagTypeAlias) || alias.Kind.Raw() != "typedef" {
		t.Errorf("alias kind = %v raw=%q", alias.Kind, alias.Kind.Raw())
	}
}

func TestLoad_UnknownKindIsOther(t *testing.T) {
	doc := indextest.New("demo").
		Add(indextest.Item{ID: "1", Name: "thing", Kind: "brand_new_kind", Parent: "0"}).
		Document(t)
	it, _ := doc.Item("1")
	if !it.Kind.IsOther() || it.Kind.Raw() != "brand_new_kind" {
		t.Errorf("kind = %v", it.Kind)
	}
}

func TestLoad_MalformedItemDegrades(t *testing.T) {
	tests := []struct {
		name    string
		item    string
		wantRaw string
		other   bool
	}{
		{"inner_number", `{"crate_id": 0, "name": "bad", "visibility": "public", "attrs": [], "inner": 7}`, "", true},
		{"two_kinds", `{"crate_id": 0, "name": "bad", "visibility": "public", "attrs": [],
			"inner": {"struct": {}, "function": {}}}`, "function+struct", true},
		{"body_wrong_type", `{"crate_id": 0, "name": "bad", "visibility": "public", "attrs": [],
			"inner": {"module": {"items": "nope"}}}`, "module", true},
		{"field_wrong_type", `{"crate_id": 0, "name": "bad", "visibility": "public", "attrs": 3,
			"kind": "function", "inner": {}}`, "function", true},
		{"unknown_visibility", `{"crate_id": 0, "name": "bad", "visibility": {"weird": 1}, "attrs": [],
			"inner": {"function": {"has_body": true}}}`, "function", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := index.Load(indextest.New("demo").
				Add(indextest.Item{ID: "1", Name: "good", Kind: "function", Parent: "0", HasBody: true}).
				Raw("2", tt.item).
				JSON())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			good, _ := doc.Item("1")
			if good == nil || !good.Kind.Is(index.TagFunction) || good.Name != "good" {
				t.Errorf("good item = %+v", good)
			}
			bad, ok := doc.Item("2")
			if !ok {
				t.Fatal("malformed item dropped")
			}
			if bad.Name != "bad" {
				t.Errorf("name = %q", bad.Name)
			}
			if bad.Kind.IsOther() != tt.other || bad.Kind.Raw() != tt.wantRaw {
				t.Errorf("kind = %v raw=%q, want other=%v raw=%q", bad.Kind, bad.Kind.Raw(), tt.other, tt.wantRaw)
			}
			if tt.name == "unknown_visibility" && bad.Visibility.Kind != index.VisibilityDefault {
				t.Errorf("visibility = %+v, want default", bad.Visibility)
			}

			if len(doc.Problems) != 1 || doc.Problems[0].ID != "2" {
				t.Fatalf("problems = %v", doc.Problems)
			}
			if !strings.Contains(doc.Problems[0].Error(), `"2"`) {
				t.Errorf("problem should name the item: %v", doc.Problems[0])
			}
		})
	}
}

func TestLoad_DanglingChild(t *testing.T) {
	data := indextest.New("demo").Add(
		indextest.Item{ID: "1", Name: "m", Kind: "module", Parent: "0",
			Extra: map[string]any{"items": []any{"42"}}},
	).JSON()
	_, err := index.Load(data)
	var de *index.DanglingReferenceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	if de.ID != "42" || de.From != "1" {
		t.Errorf("dangling = %+v", de)
	}
	if !strings.Contains(de.Error(), `"42"`) {
		t.Errorf("message should name the id: %v", de)
	}
}

func TestLoad_DanglingOwningModule(t *testing.T) {
	data := indextest.New("demo").Add(
		indextest.Item{ID: "1", Name: "helper", Kind: "function", Parent: "0",
			Visibility: map[string]any{"restricted": map[string]any{"parent": "99", "path": "::gone"}}},
	).JSON()
	_, err := index.Load(data)
	var de *index.DanglingReferenceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	if de.ID != "99" || de.Field != "visibility.parent" {
		t.Errorf("dangling = %+v", de)
	}
}

func TestLoad_ExternalReferencesAreKnown(t *testing.T) {
	doc := indextest.New("demo").
		External("77", 1, "trait", "core", "fmt", "Display").
		Add(
			indextest.Item{ID: "1", Name: "Point", Kind: "struct", Parent: "0"},
			indextest.Item{ID: "2", Kind: "impl", Parent: "1", Trait: "77", TraitName: "Display", For: "Point"},
		).Document(t)

	if !doc.IsExternal("77") {
		t.Error("77 should be external")
	}
	if doc.CrateName(1) != "core" {
		t.Errorf("crate name = %q", doc.CrateName(1))
	}
	impl, _ := doc.Item("2")
	if impl.Trait == nil || impl.Trait.Name != "Display" || impl.ForType != "Point" {
		t.Errorf("impl = %+v", impl)
	}
	if impl.Parent != "1" {
		t.Errorf("impl parent = %q", impl.Parent)
	}
}

func TestLoad_MultipleContainersSorted(t *testing.T) {
	doc := indextest.New("demo").Add(
		indextest.Item{ID: "10", Name: "b", Kind: "module", Parent: "0"},
		indextest.Item{ID: "2", Name: "a", Kind: "module", Parent: "0"},
		indextest.Item{ID: "5", Name: "Shared", Kind: "struct", Parent: "10"},
	).Raw("11", `{"id": "11", "crate_id": 0, "name": "c", "visibility": "public", "attrs": [],
		"inner": {"module": {"is_crate": false, "items": ["5"], "is_stripped": false}}}`).
		Document(t)

	shared, _ := doc.Item("5")
	if len(shared.Containers) != 2 || shared.Containers[0] != "10" || shared.Containers[1] != "11" {
		t.Errorf("containers = %v", shared.Containers)
	}
	if shared.Parent != "10" {
		t.Errorf("parent = %q", shared.Parent)
	}
}

func TestIDLess(t *testing.T) {
	ids := []index.ID{"10", "2", "0:3:1", "1", "0:1:9"}
	index.SortIDs(ids)
	want := []index.ID{"1", "2", "10", "0:1:9", "0:3:1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", ids, want)
		}
	}
}

func TestIDUnmarshal(t *testing.T) {
	var a, b index.ID
	if err := a.UnmarshalJSON([]byte(`123`)); err != nil || a != "123" {
		t.Errorf("numeric id = %q err=%v", a, err)
	}
	if err := b.UnmarshalJSON([]byte(`"0:1:2"`)); err != nil || b != "0:1:2" {
		t.Errorf("string id = %q err=%v", b, err)
	}
}
