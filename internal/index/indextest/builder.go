// Package indextest builds rustdoc JSON documents for tests.
package indextest

import (
	"encoding/json"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/index"
)

// RootID is the id of the crate root module every Builder starts with.
const RootID = "0"

// Param is a generic parameter: Kind is "type", "lifetime" or "const".
type Param struct {
	Name      string
	Kind      string
	Synthetic bool
}

// Item describes one index entry. Parent names the container that lists it;
// the builder places the id in the container's items, variants, fields or
// impls list depending on both kinds.
type Item struct {
	ID         string
	Name       string
	Kind       string
	Parent     string
	Visibility any
	Docs       string
	Deprecated string
	Attrs      []string
	Generics   []Param
	HasBody    bool
	Const      bool
	Async      bool
	Unsafe     bool
	Trait      string
	TraitName  string
	For        string
	Target     string
	Glob       bool
	// Extra is merged into the inner body last.
	Extra      map[string]any
}

type external struct {
	crate uint32
	path  []string
	kind  string
}

// Builder accumulates items and renders them in the externally tagged format.
type Builder struct {
	version   int
	crateName string
	items     []Item
	externals map[string]external
	crates    map[uint32]string
	raw       map[string]json.RawMessage
}

// New starts a document whose root module is named crateName.
func New(crateName string) *Builder {
	return &Builder{
		version:   index.MaxFormatVersion,
		crateName: crateName,
		externals: make(map[string]external),
		crates:    make(map[uint32]string),
		raw:       make(map[string]json.RawMessage),
	}
}

// Version overrides format_version.
func (b *Builder) Version(v int) *Builder {
	b.version = v
	return b
}

// Add appends items.
func (b *Builder) Add(items ...Item) *Builder {
	b.items = append(b.items, items...)
	return b
}

// External registers an item of another crate in paths.
func (b *Builder) External(id string, crate uint32, kind string, path ...string) *Builder {
	b.externals[id] = external{crate: crate, path: path, kind: kind}
	if _, ok := b.crates[crate]; !ok && len(path) > 0 {
		b.crates[crate] = path[0]
	}
	return b
}

// Raw adds an index entry verbatim.
func (b *Builder) Raw(id string, item string) *Builder {
	b.raw[id] = json.RawMessage(item)
	return b
}

// JSON renders the document.
func (b *Builder) JSON() []byte {
	kinds := map[string]string{RootID: "module"}
	for _, it := range b.items {
		kinds[it.ID] = it.Kind
	}

	bodies := map[string]map[string]any{
		RootID: {"is_crate": true, "items": []any{}, "is_stripped": false},
	}
	for _, it := range b.items {
		bodies[it.ID] = body(it)
	}
	for _, it := range b.items {
		if it.Parent == "" {
			continue
		}
		parent, ok := bodies[it.Parent]
		if !ok {
			continue
		}
		key := listKey(kinds[it.Parent], it.Kind)
		if key == "fields" && kinds[it.Parent] == "struct" {
			plain := parent["kind"].(map[string]any)["plain"].(map[string]any)
			plain["fields"] = append(plain["fields"].([]any), id(it.ID))
			continue
		}
		list, _ := parent[key].([]any)
		parent[key] = append(list, id(it.ID))
	}

	index := map[string]any{
		RootID: map[string]any{
			"id":         id(RootID),
			"crate_id":   0,
			"name":       b.crateName,
			"visibility": "public",
			"docs":       nil,
			"attrs":      []any{},
			"inner":      map[string]any{"module": bodies[RootID]},
		},
	}
	for _, it := range b.items {
		entry := map[string]any{
			"id":          id(it.ID),
			"crate_id":    0,
			"visibility":  visibility(it.Visibility),
			"attrs":       attrs(it.Attrs),
			"deprecation": nil,
			"docs":        nil,
			"inner":       map[string]any{it.Kind: bodies[it.ID]},
		}
		if it.Name != "" {
			entry["name"] = it.Name
		} else {
			entry["name"] = nil
		}
		if it.Docs != "" {
			entry["docs"] = it.Docs
		}
		if it.Deprecated != "" {
			entry["deprecation"] = map[string]any{"since": "1.0.0", "note": it.Deprecated}
		}
		index[it.ID] = entry
	}
	for key, raw := range b.raw {
		index[key] = raw
	}

	paths := map[string]any{
		RootID: map[string]any{"crate_id": 0, "path": []string{b.crateName}, "kind": "module"},
	}
	for key, e := range b.externals {
		paths[key] = map[string]any{"crate_id": e.crate, "path": e.path, "kind": e.kind}
	}
	crates := map[string]any{}
	for n, name := range b.crates {
		crates[jsonKey(n)] = map[string]any{"name": name, "html_root_url": nil}
	}

	doc := map[string]any{
		"root":             id(RootID),
		"crate_version":    "0.1.0",
		"includes_private": false,
		"index":            index,
		"paths":            paths,
		"external_crates":  crates,
		"format_version":   b.version,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return out
}

// Document renders and loads the document, failing the test on error.
func (b *Builder) Document(t testing.TB) *index.Document {
	t.Helper()
	doc, err := index.Load(b.JSON())
	if err != nil {
		t.Fatalf("loading built document: %v", err)
	}
	return doc
}

func id(s string) any { return s }

func jsonKey(n uint32) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func listKey(parentKind, childKind string) string {
	switch {
	case childKind == "impl":
		if parentKind == "module" {
			return "items"
		}
		return "impls"
	case parentKind == "enum" && childKind == "variant":
		return "variants"
	case childKind == "struct_field" && (parentKind == "struct" || parentKind == "union"):
		return "fields"
	}
	return "items"
}

func visibility(v any) any {
	if v == nil {
		return "public"
	}
	return v
}

func attrs(a []string) []any {
	out := make([]any, 0, len(a))
	for _, s := range a {
		out = append(out, s)
	}
	return out
}

func body(it Item) map[string]any {
	b := map[string]any{}
	params := make([]any, 0, len(it.Generics))
	for _, p := range it.Generics {
		var kind any
		switch p.Kind {
		case "lifetime":
			kind = map[string]any{"lifetime": map[string]any{"outlives": []any{}}}
		case "const":
			kind = map[string]any{"const": map[string]any{"type": map[string]any{"primitive": "usize"}, "default": nil}}
		default:
			kind = map[string]any{"type": map[string]any{"bounds": []any{}, "default": nil, "is_synthetic": p.Synthetic}}
		}
		params = append(params, map[string]any{"name": p.Name, "kind": kind})
	}
	generics := map[string]any{"params": params, "where_predicates": []any{}}

	switch it.Kind {
	case "module":
		b["is_crate"] = false
		b["items"] = []any{}
		b["is_stripped"] = false
	case "struct":
		b["kind"] = map[string]any{"plain": map[string]any{"fields": []any{}, "has_stripped_fields": false}}
		b["generics"] = generics
		b["impls"] = []any{}
	case "enum":
		b["generics"] = generics
		b["variants"] = []any{}
		b["has_stripped_variants"] = false
		b["impls"] = []any{}
	case "union":
		b["generics"] = generics
		b["fields"] = []any{}
		b["impls"] = []any{}
	case "trait":
		b["is_auto"] = false
		b["is_unsafe"] = false
		b["items"] = []any{}
		b["generics"] = generics
		b["bounds"] = []any{}
		b["implementations"] = []any{}
	case "function":
		b["generics"] = generics
		b["header"] = map[string]any{"is_const": it.Const, "is_unsafe": it.Unsafe, "is_async": it.Async, "abi": "Rust"}
		b["has_body"] = it.HasBody
	case "impl":
		b["is_unsafe"] = false
		b["generics"] = generics
		b["items"] = []any{}
		b["is_synthetic"] = false
		b["blanket_impl"] = nil
		b["for"] = map[string]any{"resolved_path": map[string]any{"path": it.For, "id": nil, "args": nil}}
		if it.Trait != "" {
			b["trait"] = map[string]any{"path": it.TraitName, "id": id(it.Trait), "args": nil}
		} else {
			b["trait"] = nil
		}
	case "use":
		b["source"] = it.Name
		b["name"] = it.Name
		b["is_glob"] = it.Glob
		if it.Target != "" {
			b["id"] = id(it.Target)
		} else {
			b["id"] = nil
		}
	case "type_alias", "assoc_type", "trait_alias":
		b["generics"] = generics
	case "variant":
		b["kind"] = "plain"
		b["discriminant"] = nil
	}
	for k, v := range it.Extra {
		b[k] = v
	}
	return b
}
