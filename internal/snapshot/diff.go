package snapshot

import (
	"fmt"
	"sort"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
)

// DiffType indicates the kind of change.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// SnapshotDiff is the comparison of two snapshots of the same crate.
type SnapshotDiff struct {
	OldID      string      `json:"old_id"`
	NewID      string      `json:"new_id"`
	OldVersion string      `json:"old_version,omitempty"`
	NewVersion string      `json:"new_version,omitempty"`
	GroupBy    string      `json:"group_by"`
	Rows       []RowDiff   `json:"rows"`
	Items      []ItemDiff  `json:"items"`
	Summary    DiffSummary `json:"summary"`
}

// RowDiff compares one aggregation group. Unchanged groups are omitted.
type RowDiff struct {
	Category        classify.Category `json:"category"`
	Key             string            `json:"key"`
	Type            DiffType          `json:"type"`
	OldCount        int               `json:"old_count"`
	NewCount        int               `json:"new_count"`
	CountDelta      int               `json:"count_delta"`
	PublicDelta     int               `json:"public_delta"`
	DocumentedDelta int               `json:"documented_delta"`
	DeprecatedDelta int               `json:"deprecated_delta"`
	UnstableDelta   int               `json:"unstable_delta"`
}

// ItemDiff is a change to one item, matched by category and path.
type ItemDiff struct {
	Path     string            `json:"path"`
	Category classify.Category `json:"category"`
	Type     DiffType          `json:"type"`
	Changes  []FieldChange     `json:"changes,omitempty"`
	// Breaking is set when a public item disappears or loses visibility, or
	// when the declaration of a public item changes.
	Breaking bool `json:"breaking,omitempty"`
}

// FieldChange is one changed attribute of a modified item.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	ItemsAdded       int     `json:"items_added"`
	ItemsRemoved     int     `json:"items_removed"`
	ItemsModified    int     `json:"items_modified"`
	Breaking         int     `json:"breaking"`
	TotalDelta       int     `json:"total_delta"`
	PublicDelta      int     `json:"public_delta"`
	DocCoverageDelta float64 `json:"doc_coverage_delta"`
}

// GroupingMismatchError reports snapshots aggregated with different groupings.
type GroupingMismatchError struct {
	Old, New aggregate.GroupBy
}

func (e *GroupingMismatchError) Error() string {
	return fmt.Sprintf("cannot compare snapshots grouped by %s and %s", e.Old, e.New)
}

// Diff computes the differences between two snapshots.
func Diff(old, new *Snapshot) (*SnapshotDiff, error) {
	if normGroup(old.GroupBy) != normGroup(new.GroupBy) {
		return nil, &GroupingMismatchError{Old: old.GroupBy, New: new.GroupBy}
	}
	d := &SnapshotDiff{
		OldID:      old.ID,
		NewID:      new.ID,
		OldVersion: old.CrateVersion,
		NewVersion: new.CrateVersion,
		GroupBy:    string(normGroup(new.GroupBy)),
	}
	d.Rows = diffRows(old.Rows, new.Rows)
	d.Items = diffItems(old.Items, new.Items)
	d.Summary = computeSummary(d, old, new)
	return d, nil
}

func normGroup(g aggregate.GroupBy) aggregate.GroupBy {
	if g == "" {
		return aggregate.GroupByCategory
	}
	return g
}

type rowKey struct {
	category classify.Category
	key      string
}

func diffRows(oldRows, newRows []aggregate.Row) []RowDiff {
	oldMap := make(map[rowKey]aggregate.Row, len(oldRows))
	for _, r := range oldRows {
		oldMap[rowKey{r.Category, r.Key}] = r
	}
	newMap := make(map[rowKey]aggregate.Row, len(newRows))
	for _, r := range newRows {
		newMap[rowKey{r.Category, r.Key}] = r
	}

	var diffs []RowDiff
	for k, o := range oldMap {
		n, ok := newMap[k]
		typ := DiffModified
		if !ok {
			typ = DiffRemoved
		}
		rd := rowDiff(k, typ, o, n)
		if typ == DiffModified && rd.unchanged() {
			continue
		}
		diffs = append(diffs, rd)
	}
	for k, n := range newMap {
		if _, ok := oldMap[k]; !ok {
			diffs = append(diffs, rowDiff(k, DiffAdded, aggregate.Row{}, n))
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Category != diffs[j].Category {
			return diffs[i].Category < diffs[j].Category
		}
		return diffs[i].Key < diffs[j].Key
	})
	return diffs
}

func rowDiff(k rowKey, typ DiffType, o, n aggregate.Row) RowDiff {
	return RowDiff{
		Category:        k.category,
		Key:             k.key,
		Type:            typ,
		OldCount:        o.Count,
		NewCount:        n.Count,
		CountDelta:      n.Count - o.Count,
		PublicDelta:     n.Public - o.Public,
		DocumentedDelta: n.Documented - o.Documented,
		DeprecatedDelta: n.Deprecated - o.Deprecated,
		UnstableDelta:   n.Unstable - o.Unstable,
	}
}

func (r RowDiff) unchanged() bool {
	return r.CountDelta == 0 && r.PublicDelta == 0 && r.DocumentedDelta == 0 &&
		r.DeprecatedDelta == 0 && r.UnstableDelta == 0
}

func diffItems(oldItems, newItems []ItemEntry) []ItemDiff {
	oldMap := make(map[string]ItemEntry, len(oldItems))
	for _, e := range oldItems {
		oldMap[e.key()] = e
	}
	newMap := make(map[string]ItemEntry, len(newItems))
	for _, e := range newItems {
		newMap[e.key()] = e
	}

	var diffs []ItemDiff
	for k, o := range oldMap {
		n, ok := newMap[k]
		if !ok {
			diffs = append(diffs, ItemDiff{
				Path:     o.Path,
				Category: o.Category,
				Type:     DiffRemoved,
				Breaking: o.Visibility == classify.VisibilityPublic,
			})
			continue
		}
		changes := fieldChanges(o, n)
		if len(changes) == 0 {
			continue
		}
		diffs = append(diffs, ItemDiff{
			Path:     o.Path,
			Category: o.Category,
			Type:     DiffModified,
			Changes:  changes,
			Breaking: breaking(o, n),
		})
	}
	for k, n := range newMap {
		if _, ok := oldMap[k]; !ok {
			diffs = append(diffs, ItemDiff{Path: n.Path, Category: n.Category, Type: DiffAdded})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Path != diffs[j].Path {
			return diffs[i].Path < diffs[j].Path
		}
		return diffs[i].Category < diffs[j].Category
	})
	return diffs
}

func fieldChanges(o, n ItemEntry) []FieldChange {
	var out []FieldChange
	add := func(field, a, b string) {
		if a != b {
			out = append(out, FieldChange{Field: field, Old: a, New: b})
		}
	}
	add("visibility", string(o.Visibility), string(n.Visibility))
	add("stability", string(o.Stability), string(n.Stability))
	add("documented", fmt.Sprint(o.Documented), fmt.Sprint(n.Documented))
	add("generics", fmt.Sprint(o.Generics), fmt.Sprint(n.Generics))
	add("methods", fmt.Sprint(o.Methods), fmt.Sprint(n.Methods))
	add("signature", o.Signature, n.Signature)
	return out
}

func breaking(o, n ItemEntry) bool {
	if o.Visibility != classify.VisibilityPublic {
		return false
	}
	return n.Visibility != classify.VisibilityPublic || o.Signature != n.Signature
}

func computeSummary(d *SnapshotDiff, old, new *Snapshot) DiffSummary {
	s := DiffSummary{
		TotalDelta:  new.Total.Count - old.Total.Count,
		PublicDelta: new.Total.Public - old.Total.Public,
	}
	s.DocCoverageDelta = new.Total.DocumentedRatio().Float() - old.Total.DocumentedRatio().Float()
	for _, it := range d.Items {
		switch it.Type {
		case DiffAdded:
			s.ItemsAdded++
		case DiffRemoved:
			s.ItemsRemoved++
		case DiffModified:
			s.ItemsModified++
		}
		if it.Breaking {
			s.Breaking++
		}
	}
	return s
}
