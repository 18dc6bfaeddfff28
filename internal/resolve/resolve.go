// Package resolve computes the canonical path of every item in an API index by
// walking container links and following re-export chains.
package resolve

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/index"
)

// Separator joins path segments.
const Separator = "::"

// Resolution is the resolved location of one item.
type Resolution struct {
	Segments []string `json:"segments"`
	Path     string   `json:"path"`
	// Local is true when the item is defined at Path rather than reached only
	// through a re-export.
	Local    bool     `json:"local"`
	// Via is the use item the path goes through, if any.
	Via      index.ID `json:"via,omitempty"`
	// Module is the path of the nearest module at or above Path: a module's
	// own path for modules, and the target's module for re-exports.
	Module   string   `json:"module"`
	Crate    string   `json:"crate"`
	// Err is set when the item sits on, or depends on, a reference cycle.
	Err      error    `json:"-"`
}

// Resolved reports whether a path was found.
func (r *Resolution) Resolved() bool { return r != nil && r.Err == nil }

// Table maps item ids to resolutions. It is read-only once built.
type Table struct {
	entries  map[index.ID]*Resolution
	warnings []*CyclicReExportError
}

// Lookup returns the resolution of id.
func (t *Table) Lookup(id index.ID) (*Resolution, bool) {
	r, ok := t.entries[id]
	return r, ok
}

// Path returns the joined path of id, or "" when id is unknown or unresolved.
func (t *Table) Path(id index.ID) string {
	if r, ok := t.entries[id]; ok && r.Err == nil {
		return r.Path
	}
	return ""
}

// Warnings returns the distinct cycles found, in discovery order.
func (t *Table) Warnings() []*CyclicReExportError { return t.warnings }

// Len returns the number of resolved entries.
func (t *Table) Len() int { return len(t.entries) }

const (
	unvisited = iota
	visiting
	done
)

type resolver struct {
	doc       *index.Document
	memo      map[index.ID]*Resolution
	state     map[index.ID]int
	stack     []index.ID
	reexports map[index.ID][]index.ID
	reported  map[string]bool
	warnings  []*CyclicReExportError
}

// Resolve builds the path table for doc. Items are visited in sorted id order
// so the table and its warnings are identical across runs. Cycles are not
// fatal: they are reported through Table.Warnings and the affected entries
// carry Err. Items behind a cycle stay unresolved, including items that only
// sit below a containment loop without being part of it.
func Resolve(doc *index.Document) (*Table, error) {
	if doc == nil {
		return nil, fmt.Errorf("resolve: nil document")
	}
	if doc.RootItem() == nil {
		return nil, &index.DanglingReferenceError{ID: doc.Root, Field: "root"}
	}

	r := &resolver{
		doc:       doc,
		memo:      make(map[index.ID]*Resolution, doc.Len()),
		state:     make(map[index.ID]int, doc.Len()),
		reexports: make(map[index.ID][]index.ID),
		reported:  make(map[string]bool),
	}
	for _, id := range doc.IDs() {
		it := doc.Items[id]
		if it.Kind.Is(index.TagUse) && it.Target != nil && !it.Glob {
			r.reexports[*it.Target] = append(r.reexports[*it.Target], id)
		}
	}

	for _, id := range doc.IDs() {
		r.resolve(id)
	}
	return &Table{entries: r.memo, warnings: r.warnings}, nil
}

func (r *resolver) resolve(id index.ID) *Resolution {
	if res, ok := r.memo[id]; ok {
		return res
	}
	if r.state[id] == visiting {
		return &Resolution{Err: r.cycle(id)}
	}
	r.state[id] = visiting
	r.stack = append(r.stack, id)

	res := r.compute(id)

	r.stack = r.stack[:len(r.stack)-1]
	r.state[id] = done
	r.memo[id] = res
	return res
}

// cycle records the chain from id's first occurrence on the stack to the top.
func (r *resolver) cycle(id index.ID) *CyclicReExportError {
	start := len(r.stack) - 1
	for start > 0 && r.stack[start] != id {
		start--
	}
	chain := rotate(append([]index.ID(nil), r.stack[start:]...))
	err := &CyclicReExportError{Chain: chain}

	key := err.key()
	if !r.reported[key] {
		r.reported[key] = true
		r.warnings = append(r.warnings, err)
	}
	return err
}

func (r *resolver) compute(id index.ID) *Resolution {
	doc := r.doc
	it, ok := doc.Item(id)
	if !ok {
		return r.external(id)
	}
	crate := doc.CrateName(it.CrateID)

	if id == doc.Root {
		segs := []string{it.Name}
		return newResolution(segs, true, "", joinPath(segs), crate)
	}
	if it.Kind.Is(index.TagUse) {
		return r.reExport(id, it, crate)
	}

	var best *Resolution
	var firstErr error
	for _, c := range r.containers(it) {
		parent := r.resolve(c)
		if parent.Err != nil {
			if firstErr == nil {
				firstErr = parent.Err
			}
			continue
		}
		segs := appendSegment(parent.Segments, it)
		module := parent.Module
		if it.Kind.Is(index.TagModule) {
			module = joinPath(segs)
		}
		best = better(best, newResolution(segs, true, "", module, crate))
	}
	if best != nil {
		return best
	}
	if firstErr != nil {
		return &Resolution{Crate: crate, Err: firstErr}
	}

	// Not listed by any container: reached only through re-exports.
	for _, u := range r.reexports[id] {
		use := doc.Items[u]
		if use.Parent == "" {
			continue
		}
		parent := r.resolve(use.Parent)
		if parent.Err != nil {
			if firstErr == nil {
				firstErr = parent.Err
			}
			continue
		}
		segs := parent.Segments
		if use.Name != "" {
			segs = append(clone(segs), use.Name)
		}
		res := newResolution(segs, false, u, parent.Module, crate)
		best = better(best, res)
	}
	if best != nil {
		return best
	}
	if firstErr != nil {
		return &Resolution{Crate: crate, Err: firstErr}
	}

	if s, ok := doc.Paths[id]; ok && len(s.Path) > 0 {
		return fromSummary(s, doc.CrateName(s.CrateID), it.CrateID == doc.LocalCrateID())
	}
	var segs []string
	if it.Name != "" {
		segs = []string{it.Name}
	}
	return newResolution(segs, false, "", "", crate)
}

// reExport resolves a use item to the path of what it points at.
func (r *resolver) reExport(id index.ID, it *index.Item, crate string) *Resolution {
	if it.Target != nil {
		target := r.resolve(*it.Target)
		if target.Err != nil {
			return &Resolution{Crate: crate, Err: target.Err}
		}
		res := *target
		res.Segments = clone(target.Segments)
		res.Local = false
		res.Via = id
		return &res
	}

	// Unknown target: fall back to the use item's own location.
	if it.Parent == "" {
		var segs []string
		if it.Name != "" {
			segs = []string{it.Name}
		}
		return newResolution(segs, false, id, "", crate)
	}
	parent := r.resolve(it.Parent)
	if parent.Err != nil {
		return &Resolution{Crate: crate, Err: parent.Err}
	}
	segs := clone(parent.Segments)
	if it.Name != "" && !it.Glob {
		segs = append(segs, it.Name)
	}
	return newResolution(segs, false, id, parent.Module, crate)
}

func (r *resolver) external(id index.ID) *Resolution {
	s, ok := r.doc.Paths[id]
	if !ok {
		return &Resolution{Segments: nil, Path: ""}
	}
	return fromSummary(s, r.doc.CrateName(s.CrateID), false)
}

// containers returns the candidate containers of it. Impl blocks are listed
// both by their module and by the implementing type; the type wins.
func (r *resolver) containers(it *index.Item) []index.ID {
	if !it.Kind.Is(index.TagImpl) {
		return it.Containers
	}
	var owners []index.ID
	for _, c := range it.Containers {
		if contains(r.doc.Items[c].Impls, it.ID) {
			owners = append(owners, c)
		}
	}
	if len(owners) > 0 {
		return owners
	}
	return it.Containers
}

func fromSummary(s index.Summary, crate string, local bool) *Resolution {
	segs := clone(s.Path)
	module := ""
	if len(segs) > 1 {
		module = joinPath(segs[:len(segs)-1])
	}
	if s.Kind == string(index.TagModule) {
		module = joinPath(segs)
	}
	return newResolution(segs, local, "", module, crate)
}

func newResolution(segs []string, local bool, via index.ID, module, crate string) *Resolution {
	return &Resolution{
		Segments: segs,
		Path:     joinPath(segs),
		Local:    local,
		Via:      via,
		Module:   module,
		Crate:    crate,
	}
}

// better picks the shorter path, then the lexicographically smaller one.
func better(cur, cand *Resolution) *Resolution {
	if cur == nil {
		return cand
	}
	if len(cand.Segments) != len(cur.Segments) {
		if len(cand.Segments) < len(cur.Segments) {
			return cand
		}
		return cur
	}
	if cand.Path < cur.Path {
		return cand
	}
	return cur
}

// appendSegment extends a container path with the item's name. Impl blocks and
// unnamed items contribute nothing.
func appendSegment(parent []string, it *index.Item) []string {
	segs := clone(parent)
	if it.Kind.Is(index.TagImpl) || it.Name == "" {
		return segs
	}
	return append(segs, it.Name)
}

func joinPath(segs []string) string { return strings.Join(segs, Separator) }

func clone(s []string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return out
}

func contains(ids []index.ID, id index.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
