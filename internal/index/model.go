// Package index loads rustdoc JSON API indexes into a typed, read-only document model.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ID is an opaque item identifier. rustdoc emits it as a JSON string in older
// formats ("0:12:345") and as an integer in newer ones; both decode to the same
// textual form.
type ID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Less orders identifiers numerically when both are integers and
// lexicographically otherwise.
func (id ID) Less(other ID) bool {
	a, errA := strconv.ParseUint(string(id), 10, 64)
	b, errB := strconv.ParseUint(string(other), 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	if errA == nil {
		return true
	}
	if errB == nil {
		return false
	}
	return id < other
}

// SortIDs sorts ids in place using ID.Less.
func SortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// VisibilityKind is the raw visibility declared on an item.
type VisibilityKind string

const (
	VisibilityPublic     VisibilityKind = "public"
	VisibilityDefault    VisibilityKind = "default"
	VisibilityCrate      VisibilityKind = "crate"
	VisibilityRestricted VisibilityKind = "restricted"
)

// Visibility is an item's declared visibility. Parent and Path are only set for
// VisibilityRestricted.
type Visibility struct {
	Kind   VisibilityKind `json:"kind"`
	Parent ID             `json:"parent,omitempty"`
	Path   string         `json:"path,omitempty"`
}

// Deprecation carries the #[deprecated] metadata of an item.
type Deprecation struct {
	Since string `json:"since,omitempty"`
	Note  string `json:"note,omitempty"`
}

// ParamKind is the kind of a generic parameter.
type ParamKind string

const (
	ParamLifetime ParamKind = "lifetime"
	ParamType     ParamKind = "type"
	ParamConst    ParamKind = "const"
)

// GenericParam is one declared generic parameter.
type GenericParam struct {
	Name      string    `json:"name"`
	Kind      ParamKind `json:"kind"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

// Generics describes the generic parameters and where clauses of an item.
type Generics struct {
	Params          []GenericParam `json:"params,omitempty"`
	BoundPredicates int            `json:"bound_predicates,omitempty"`
	OtherPredicates int            `json:"other_predicates,omitempty"`
}

// Count returns the number of type and const parameters, ignoring lifetimes and
// synthetic `impl Trait` parameters.
func (g Generics) Count() int {
	n := 0
	for _, p := range g.Params {
		if p.Kind == ParamLifetime || p.Synthetic {
			continue
		}
		n++
	}
	return n
}

// Header holds function qualifiers.
type Header struct {
	Const  bool `json:"const,omitempty"`
	Async  bool `json:"async,omitempty"`
	Unsafe bool `json:"unsafe,omitempty"`
}

// PathRef is a reference to another item by id, with the name rustdoc recorded
// at the reference site.
type PathRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Item is one declared entity of the index. Items are immutable once returned by
// Load.
type Item struct {
	ID          ID           `json:"id"`
	CrateID     uint32       `json:"crate_id"`
	Name        string       `json:"name,omitempty"`
	Kind        Kind         `json:"kind"`
	Visibility  Visibility   `json:"visibility"`
	Deprecation *Deprecation `json:"deprecation,omitempty"`
	Attrs       []string     `json:"attrs,omitempty"`
	HasDocs     bool         `json:"has_docs"`
	Generics    Generics     `json:"generics"`
	Header      Header       `json:"header"`
	HasBody     bool         `json:"has_body,omitempty"`

	// Parent is the owning container, the first entry of Containers. It is
	// empty for the crate root and for items no container lists.
	Parent     ID   `json:"parent,omitempty"`
	Containers []ID `json:"containers,omitempty"`

	// Children lists module/trait/impl items, enum variants and fields.
	Children []ID `json:"children,omitempty"`
	Impls    []ID `json:"impls,omitempty"`

	IsCrate  bool `json:"is_crate,omitempty"`
	Stripped bool `json:"stripped,omitempty"`

	// Impl details.
	Trait     *PathRef `json:"trait,omitempty"`
	ForType   string   `json:"for_type,omitempty"`
	Synthetic bool     `json:"synthetic,omitempty"`
	Blanket   bool     `json:"blanket,omitempty"`
	Negative  bool     `json:"negative,omitempty"`

	// Re-export details.
	Target *ID    `json:"target,omitempty"`
	Glob   bool   `json:"glob,omitempty"`
	Source string `json:"source,omitempty"`
}

// Summary is the cross-crate path record rustdoc keeps for every referenced item.
type Summary struct {
	CrateID uint32   `json:"crate_id"`
	Path    []string `json:"path"`
	Kind    string   `json:"kind"`
}

// ExternalCrate names a dependency crate.
type ExternalCrate struct {
	Name        string `json:"name"`
	HTMLRootURL string `json:"html_root_url,omitempty"`
}

// Document is a loaded API index. It is read-only after Load and safe for any
// number of concurrent readers.
type Document struct {
	FormatVersion   int
	Root            ID
	CrateVersion    string
	IncludesPrivate bool
	Items           map[ID]*Item
	Paths           map[ID]Summary
	ExternalCrates  map[uint32]ExternalCrate

	// Problems lists the items that were only partly decoded, in id order.
	Problems []*ItemError

	ids []ID
}

// Len returns the number of items in the index.
func (d *Document) Len() int { return len(d.Items) }

// IDs returns all item ids in sorted order. The slice must not be modified.
func (d *Document) IDs() []ID { return d.ids }

// Item looks up an item by id.
func (d *Document) Item(id ID) (*Item, bool) {
	it, ok := d.Items[id]
	return it, ok
}

// RootItem returns the crate root module.
func (d *Document) RootItem() *Item { return d.Items[d.Root] }

// LocalCrateID returns the crate id of the documented crate.
func (d *Document) LocalCrateID() uint32 {
	if root := d.RootItem(); root != nil {
		return root.CrateID
	}
	return 0
}

// IsExternal reports whether id belongs to another, unloaded crate.
func (d *Document) IsExternal(id ID) bool {
	if _, ok := d.Items[id]; ok {
		return false
	}
	s, ok := d.Paths[id]
	return ok && s.CrateID != d.LocalCrateID()
}

// Known reports whether id is defined in the index or flagged as external.
func (d *Document) Known(id ID) bool {
	if _, ok := d.Items[id]; ok {
		return true
	}
	return d.IsExternal(id)
}

// CrateName maps a crate id to a human-readable crate name.
func (d *Document) CrateName(crateID uint32) string {
	if crateID == d.LocalCrateID() {
		if root := d.RootItem(); root != nil && root.Name != "" {
			return root.Name
		}
	}
	if c, ok := d.ExternalCrates[crateID]; ok && c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("crate#%d", crateID)
}
