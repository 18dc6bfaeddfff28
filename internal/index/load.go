package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Range of rustdoc format_version values the loader understands. Older
// versions encode item kinds as "kind" + "inner", newer ones as an externally
// tagged "inner" object; both are accepted.
const (
	MinFormatVersion = 20
	MaxFormatVersion = 60
)

type rawCrate struct {
	Root            *ID                        `json:"root"`
	CrateVersion    *string                    `json:"crate_version"`
	IncludesPrivate bool                       `json:"includes_private"`
	Index           map[string]json.RawMessage `json:"index"`
	Paths           map[string]Summary         `json:"paths"`
	ExternalCrates  map[string]ExternalCrate   `json:"external_crates"`
	FormatVersion   int                        `json:"format_version"`
}

type rawItem struct {
	CrateID     uint32            `json:"crate_id"`
	Name        *string           `json:"name"`
	Visibility  json.RawMessage   `json:"visibility"`
	Docs        *string           `json:"docs"`
	Attrs       []json.RawMessage `json:"attrs"`
	Deprecation *struct {
		Since *string `json:"since"`
		Note  *string `json:"note"`
	} `json:"deprecation"`
	Kind  string          `json:"kind"`
	Inner json.RawMessage `json:"inner"`
}

type rawPath struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func (p rawPath) display() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Path
}

type rawGenerics struct {
	Params []struct {
		Name string                     `json:"name"`
		Kind map[string]json.RawMessage `json:"kind"`
	} `json:"params"`
	WherePredicates []map[string]json.RawMessage `json:"where_predicates"`
}

type rawHeader struct {
	IsConst  bool `json:"is_const"`
	Const    bool `json:"const_"`
	IsUnsafe bool `json:"is_unsafe"`
	Unsafe   bool `json:"unsafe_"`
	IsAsync  bool `json:"is_async"`
	Async    bool `json:"async_"`
}

// rawBody is the union of every inner field the engine reads.
type rawBody struct {
	Items       []ID            `json:"items"`
	IsCrate     bool            `json:"is_crate"`
	IsStripped  bool            `json:"is_stripped"`
	Impls       []ID            `json:"impls"`
	Variants    []ID            `json:"variants"`
	Fields      []*ID           `json:"fields"`
	Kind        json.RawMessage `json:"kind"`
	Generics    *rawGenerics    `json:"generics"`
	Header      json.RawMessage `json:"header"`
	HasBody     *bool           `json:"has_body"`
	Trait       *rawPath        `json:"trait"`
	LegacyTrait *rawPath        `json:"trait_"`
	For         json.RawMessage `json:"for"`
	IsSynthetic bool            `json:"is_synthetic"`
	Synthetic   bool            `json:"synthetic"`
	BlanketImpl json.RawMessage `json:"blanket_impl"`
	IsNegative  bool            `json:"is_negative"`
	Negative    bool            `json:"negative"`
	Target      *ID             `json:"id"`
	Name        string          `json:"name"`
	Source      string          `json:"source"`
	IsGlob      bool            `json:"is_glob"`
	Glob        bool            `json:"glob"`
}

// LoadFile reads and loads the API index at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading api index: %w", err)
	}
	return Load(data)
}

// LoadReader reads r to the end and loads it.
func LoadReader(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading api index: %w", err)
	}
	return Load(data)
}

// Load parses a rustdoc JSON document. It fails with *FormatError on malformed
// input, *UnsupportedVersionError on an unknown format_version and
// *DanglingReferenceError when an item references an id that is neither in the
// index nor flagged as external. A single unreadable item record does not fail
// the load; it is kept as best it can be and listed in Document.Problems.
func Load(data []byte) (*Document, error) {
	var probe struct {
		FormatVersion *int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &FormatError{Reason: "invalid json", Err: err}
	}
	if probe.FormatVersion == nil {
		return nil, &FormatError{Reason: "missing format_version"}
	}
	if v := *probe.FormatVersion; v < MinFormatVersion || v > MaxFormatVersion {
		return nil, &UnsupportedVersionError{Version: v, Min: MinFormatVersion, Max: MaxFormatVersion}
	}

	var raw rawCrate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Reason: "decoding index", Err: err}
	}
	if raw.Index == nil {
		return nil, &FormatError{Reason: "missing index"}
	}
	if raw.Root == nil || *raw.Root == "" {
		return nil, &FormatError{Reason: "missing root"}
	}

	doc := &Document{
		FormatVersion:   raw.FormatVersion,
		Root:            *raw.Root,
		IncludesPrivate: raw.IncludesPrivate,
		Items:           make(map[ID]*Item, len(raw.Index)),
		Paths:           make(map[ID]Summary, len(raw.Paths)),
		ExternalCrates:  make(map[uint32]ExternalCrate, len(raw.ExternalCrates)),
	}
	if raw.CrateVersion != nil {
		doc.CrateVersion = *raw.CrateVersion
	}

	doc.ids = make([]ID, 0, len(raw.Index))
	for key := range raw.Index {
		doc.ids = append(doc.ids, ID(key))
	}
	SortIDs(doc.ids)

	for _, id := range doc.ids {
		it, err := decodeItem(id, raw.Index[string(id)])
		if err != nil {
			doc.Problems = append(doc.Problems, &ItemError{ID: id, Err: err})
		}
		doc.Items[id] = it
	}
	for key, s := range raw.Paths {
		doc.Paths[ID(key)] = s
	}
	for key, c := range raw.ExternalCrates {
		n, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("external crate key %q", key), Err: err}
		}
		doc.ExternalCrates[uint32(n)] = c
	}

	if err := validate(doc); err != nil {
		return nil, err
	}
	link(doc)
	return doc, nil
}

// validate checks that every reference points at a known item. Items are
// walked in sorted order so the reported reference is stable.
func validate(doc *Document) error {
	if _, ok := doc.Items[doc.Root]; !ok {
		return &DanglingReferenceError{ID: doc.Root, Field: "root"}
	}
	check := func(from, id ID, field string) error {
		if id == "" || doc.Known(id) {
			return nil
		}
		return &DanglingReferenceError{ID: id, From: from, Field: field}
	}
	for _, id := range doc.ids {
		it := doc.Items[id]
		for _, child := range it.Children {
			if err := check(id, child, "items"); err != nil {
				return err
			}
		}
		for _, impl := range it.Impls {
			if err := check(id, impl, "impls"); err != nil {
				return err
			}
		}
		if it.Trait != nil {
			if err := check(id, it.Trait.ID, "trait"); err != nil {
				return err
			}
		}
		if it.Target != nil {
			if err := check(id, *it.Target, "use target"); err != nil {
				return err
			}
		}
		if it.Visibility.Kind == VisibilityRestricted {
			if err := check(id, it.Visibility.Parent, "visibility.parent"); err != nil {
				return err
			}
		}
	}
	return nil
}

// link records, for every item, the containers that list it. Containers are
// visited in sorted order so Parent is the first-listed, lowest-id container.
func link(doc *Document) {
	for _, id := range doc.ids {
		it := doc.Items[id]
		for _, list := range [][]ID{it.Children, it.Impls} {
			for _, child := range list {
				c, ok := doc.Items[child]
				if !ok || child == id {
					continue
				}
				if n := len(c.Containers); n > 0 && c.Containers[n-1] == id {
					continue
				}
				c.Containers = append(c.Containers, id)
			}
		}
	}
	for _, it := range doc.Items {
		if len(it.Containers) > 0 {
			it.Parent = it.Containers[0]
		}
	}
}

// decodeItem always returns an item. The error describes what could not be
// read; the item then degrades rather than failing the whole document.
func decodeItem(id ID, data json.RawMessage) (*Item, error) {
	var ri rawItem
	if err := json.Unmarshal(data, &ri); err != nil {
		return salvageItem(id, data), err
	}
	return convertItem(id, ri)
}

// salvageItem keeps the name, crate id and raw kind of a record whose fields
// do not have the expected types.
func salvageItem(id ID, data json.RawMessage) *Item {
	it := &Item{ID: id, Kind: otherKind(""), Visibility: Visibility{Kind: VisibilityDefault}}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return it
	}
	var name, kind string
	if json.Unmarshal(fields["name"], &name) == nil {
		it.Name = name
	}
	var crate uint32
	if json.Unmarshal(fields["crate_id"], &crate) == nil {
		it.CrateID = crate
	}
	if json.Unmarshal(fields["kind"], &kind) == nil {
		it.Kind = otherKind(kind)
	}
	if vis, err := parseVisibility(fields["visibility"]); err == nil {
		it.Visibility = vis
	}
	return it
}

func convertItem(id ID, ri rawItem) (*Item, error) {
	it := &Item{
		ID:      id,
		CrateID: ri.CrateID,
		Attrs:   parseAttrs(ri.Attrs),
		HasDocs: ri.Docs != nil && strings.TrimSpace(*ri.Docs) != "",
	}
	if ri.Name != nil {
		it.Name = *ri.Name
	}
	if ri.Deprecation != nil {
		it.Deprecation = &Deprecation{}
		if ri.Deprecation.Since != nil {
			it.Deprecation.Since = *ri.Deprecation.Since
		}
		if ri.Deprecation.Note != nil {
			it.Deprecation.Note = *ri.Deprecation.Note
		}
	}

	var problems []error
	vis, err := parseVisibility(ri.Visibility)
	if err != nil {
		problems = append(problems, err)
		vis = Visibility{Kind: VisibilityDefault}
	}
	it.Visibility = vis

	tag, body, err := splitInner(ri.Kind, ri.Inner)
	if err != nil {
		it.Kind = otherKind(tag)
		return it, errors.Join(append(problems, err)...)
	}
	it.Kind = ParseKind(tag)
	if err := decodeBody(it, body); err != nil {
		it.Kind = otherKind(tag)
		problems = append(problems, fmt.Errorf("%s body: %w", tag, err))
	}
	return it, errors.Join(problems...)
}

// splitInner returns the kind tag and its body for either item encoding. On
// error the tag is still the best available name for the kind.
func splitInner(kind string, inner json.RawMessage) (string, json.RawMessage, error) {
	if kind != "" {
		return kind, inner, nil
	}
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		return "", nil, fmt.Errorf("missing inner")
	}
	switch inner[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(inner, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	case '{':
		var tagged map[string]json.RawMessage
		if err := json.Unmarshal(inner, &tagged); err != nil {
			return "", nil, err
		}
		if len(tagged) != 1 {
			tags := make([]string, 0, len(tagged))
			for tag := range tagged {
				tags = append(tags, tag)
			}
			sort.Strings(tags)
			return strings.Join(tags, "+"), nil, fmt.Errorf("inner has %d kinds, want 1", len(tagged))
		}
		for tag, body := range tagged {
			return tag, body, nil
		}
	}
	return "", nil, fmt.Errorf("inner is neither a tag nor an object")
}

func decodeBody(it *Item, body json.RawMessage) error {
	switch it.Kind.Tag() {
	case TagModule, TagStruct, TagUnion, TagEnum, TagVariant, TagFunction, TagTrait,
		TagTraitAlias, TagImpl, TagUse, TagTypeAlias, TagAssocType, TagPrimitive:
	default:
		return nil
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var b rawBody
	if err := json.Unmarshal(body, &b); err != nil {
		return err
	}

	it.Children = append(it.Children, b.Items...)
	it.Children = append(it.Children, b.Variants...)
	it.Children = appendIDs(it.Children, b.Fields)
	if it.Kind.Is(TagStruct) || it.Kind.Is(TagVariant) {
		it.Children = append(it.Children, kindFields(b.Kind)...)
	}
	it.Impls = b.Impls
	it.IsCrate = b.IsCrate
	it.Stripped = b.IsStripped

	if b.Generics != nil {
		it.Generics = convertGenerics(b.Generics)
	}
	it.Header = parseHeader(b.Header)
	if b.HasBody != nil {
		it.HasBody = *b.HasBody
	}

	switch it.Kind.Tag() {
	case TagImpl:
		trait := b.Trait
		if trait == nil {
			trait = b.LegacyTrait
		}
		if trait != nil {
			it.Trait = &PathRef{ID: trait.ID, Name: trait.display()}
		}
		it.ForType = typeName(b.For)
		it.Synthetic = b.IsSynthetic || b.Synthetic
		it.Blanket = len(b.BlanketImpl) > 0 && !bytes.Equal(bytes.TrimSpace(b.BlanketImpl), []byte("null"))
		it.Negative = b.IsNegative || b.Negative
	case TagUse:
		if b.Target != nil && *b.Target != "" {
			target := *b.Target
			it.Target = &target
		}
		it.Glob = b.IsGlob || b.Glob
		it.Source = b.Source
		if it.Name == "" {
			it.Name = b.Name
		}
	case TagPrimitive:
		if it.Name == "" {
			it.Name = b.Name
		}
	}
	return nil
}

func appendIDs(dst []ID, ids []*ID) []ID {
	for _, id := range ids {
		if id != nil && *id != "" {
			dst = append(dst, *id)
		}
	}
	return dst
}

// kindFields extracts field ids from a struct or variant kind:
// "unit", {"plain": {"fields": [...]}}, {"tuple": [...]} or {"struct": {"fields": [...]}}.
func kindFields(raw json.RawMessage) []ID {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var k struct {
		Plain *struct {
			Fields []*ID `json:"fields"`
		} `json:"plain"`
		Tuple  []*ID `json:"tuple"`
		Struct *struct {
			Fields []*ID `json:"fields"`
		} `json:"struct"`
	}
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil
	}
	var out []ID
	if k.Plain != nil {
		out = appendIDs(out, k.Plain.Fields)
	}
	out = appendIDs(out, k.Tuple)
	if k.Struct != nil {
		out = appendIDs(out, k.Struct.Fields)
	}
	return out
}

func convertGenerics(g *rawGenerics) Generics {
	var out Generics
	for _, p := range g.Params {
		param := GenericParam{Name: p.Name}
		for kind, body := range p.Kind {
			param.Kind = ParamKind(kind)
			if param.Kind == ParamType {
				var t struct {
					IsSynthetic bool `json:"is_synthetic"`
					Synthetic   bool `json:"synthetic"`
				}
				if json.Unmarshal(body, &t) == nil {
					param.Synthetic = t.IsSynthetic || t.Synthetic
				}
			}
		}
		out.Params = append(out.Params, param)
	}
	for _, pred := range g.WherePredicates {
		if _, ok := pred["bound_predicate"]; ok {
			out.BoundPredicates++
		} else {
			out.OtherPredicates++
		}
	}
	return out
}

// parseHeader accepts the object form ({"is_const": true, ...} or the legacy
// {"const_": true, ...}) and the list form (["const", "unsafe"]).
func parseHeader(raw json.RawMessage) Header {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Header{}
	}
	if raw[0] == '[' {
		var quals []string
		if json.Unmarshal(raw, &quals) != nil {
			return Header{}
		}
		var h Header
		for _, q := range quals {
			switch q {
			case "const":
				h.Const = true
			case "async":
				h.Async = true
			case "unsafe":
				h.Unsafe = true
			}
		}
		return h
	}
	var h rawHeader
	if json.Unmarshal(raw, &h) != nil {
		return Header{}
	}
	return Header{
		Const:  h.IsConst || h.Const,
		Async:  h.IsAsync || h.Async,
		Unsafe: h.IsUnsafe || h.Unsafe,
	}
}

func parseVisibility(raw json.RawMessage) (Visibility, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Visibility{Kind: VisibilityDefault}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Visibility{}, err
		}
		return Visibility{Kind: VisibilityKind(s)}, nil
	}
	var r struct {
		Restricted *struct {
			Parent ID     `json:"parent"`
			Path   string `json:"path"`
		} `json:"restricted"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return Visibility{}, fmt.Errorf("visibility: %w", err)
	}
	if r.Restricted == nil {
		return Visibility{}, fmt.Errorf("visibility: unknown form %s", raw)
	}
	return Visibility{
		Kind:   VisibilityRestricted,
		Parent: r.Restricted.Parent,
		Path:   r.Restricted.Path,
	}, nil
}

// parseAttrs flattens attributes to their source text. Older formats store
// "#[...]" strings; newer ones store names or objects such as
// {"other": "#[stable(...)]"}.
func parseAttrs(raw []json.RawMessage) []string {
	var out []string
	for _, a := range raw {
		a = bytes.TrimSpace(a)
		if len(a) == 0 {
			continue
		}
		if a[0] == '"' {
			var s string
			if json.Unmarshal(a, &s) == nil {
				if !strings.HasPrefix(s, "#") {
					s = "#[" + s + "]"
				}
				out = append(out, s)
			}
			continue
		}
		var obj map[string]json.RawMessage
		if json.Unmarshal(a, &obj) != nil {
			continue
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var s string
			if k == "other" && json.Unmarshal(obj[k], &s) == nil {
				out = append(out, s)
				continue
			}
			out = append(out, "#["+k+"]")
		}
	}
	return out
}

// typeName renders a best-effort name for a rustdoc type.
func typeName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var t map[string]json.RawMessage
	if err := json.Unmarshal(raw, &t); err != nil {
		return ""
	}
	if kind, ok := t["kind"]; ok {
		// legacy {"kind": ..., "inner": ...} encoding
		var k string
		if json.Unmarshal(kind, &k) == nil {
			t = map[string]json.RawMessage{k: t["inner"]}
		}
	}
	for kind, body := range t {
		switch kind {
		case "resolved_path":
			var p rawPath
			if json.Unmarshal(body, &p) == nil {
				return p.display()
			}
		case "primitive", "generic":
			var s string
			if json.Unmarshal(body, &s) == nil {
				return s
			}
		case "borrowed_ref":
			var r struct {
				Type       json.RawMessage `json:"type"`
				LegacyType json.RawMessage `json:"type_"`
			}
			if json.Unmarshal(body, &r) == nil {
				if len(r.Type) == 0 {
					r.Type = r.LegacyType
				}
				return "&" + typeName(r.Type)
			}
		case "slice":
			return "[" + typeName(body) + "]"
		case "tuple":
			var elems []json.RawMessage
			if json.Unmarshal(body, &elems) == nil {
				names := make([]string, len(elems))
				for i, e := range elems {
					names[i] = typeName(e)
				}
				return "(" + strings.Join(names, ", ") + ")"
			}
		}
		return kind
	}
	return ""
}
