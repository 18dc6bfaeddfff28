// Package snapshot captures the statistics of one API index so that later
// versions of the same crate can be compared against it.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/classify"
)

// Kind marks snapshot files so they can be told apart from API indexes.
const Kind = "apistat-snapshot"

// Snapshot is a point-in-time capture of one analysis run.
type Snapshot struct {
	Kind          string            `json:"kind"`
	ID            string            `json:"id"`
	Tag           string            `json:"tag,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Source        string            `json:"source"`
	Crate         string            `json:"crate"`
	CrateVersion  string            `json:"crate_version,omitempty"`
	FormatVersion int               `json:"format_version"`
	ContentHash   string            `json:"content_hash"`
	GroupBy       aggregate.GroupBy `json:"group_by"`
	Rows          []aggregate.Row   `json:"rows"`
	Total         aggregate.Row     `json:"total"`
	Warnings      []string          `json:"warnings,omitempty"`
	Items         []ItemEntry       `json:"items"`
}

// ItemEntry records the comparable surface of one resolved item.
type ItemEntry struct {
	Path       string              `json:"path"`
	Category   classify.Category   `json:"category"`
	Visibility classify.Visibility `json:"visibility"`
	Stability  classify.Stability  `json:"stability"`
	Documented bool                `json:"documented"`
	Generics   int                 `json:"generics"`
	Methods    int                 `json:"methods"`
	Signature  string              `json:"signature"`
}

func (e ItemEntry) key() string { return string(e.Category) + " " + e.Path }

// SnapshotIndex is a lightweight listing of all snapshots for fast lookup.
type SnapshotIndex struct {
	Snapshots []SnapshotSummary `json:"snapshots"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SnapshotSummary is the minimal info for listing snapshots.
type SnapshotSummary struct {
	ID           string    `json:"id"`
	Tag          string    `json:"tag,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Crate        string    `json:"crate"`
	CrateVersion string    `json:"crate_version,omitempty"`
	Items        int       `json:"items"`
}

// New captures res. Impl blocks and unresolved items are left out of the
// item list since they have no path of their own to match on.
func New(res *analysis.Result, source string) *Snapshot {
	snap := &Snapshot{
		Kind:      Kind,
		CreatedAt: time.Now(),
		Source:    source,
		GroupBy:   res.Aggregate.GroupBy,
		Rows:      res.Aggregate.Rows,
		Total:     res.Aggregate.Total,
		Warnings:  res.Warnings,
	}
	if doc := res.Document; doc != nil {
		snap.FormatVersion = doc.FormatVersion
		snap.CrateVersion = doc.CrateVersion
		if root := doc.RootItem(); root != nil {
			snap.Crate = root.Name
		}
	}

	seen := make(map[string]bool)
	for _, rec := range res.Records {
		if !rec.Resolved || rec.Path == "" ||
			rec.Category == classify.CategoryTraitImpl || rec.Category == classify.CategoryInherentImpl {
			continue
		}
		e := ItemEntry{
			Path:       rec.Path,
			Category:   rec.Category,
			Visibility: rec.Visibility,
			Stability:  rec.Stability,
			Documented: rec.Documented,
			Generics:   rec.Generics,
			Methods:    rec.Methods,
			Signature:  rec.Signature,
		}
		// Methods of different impls may share a path; keep the first.
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		snap.Items = append(snap.Items, e)
	}
	sort.Slice(snap.Items, func(i, j int) bool {
		if snap.Items[i].Path != snap.Items[j].Path {
			return snap.Items[i].Path < snap.Items[j].Path
		}
		return snap.Items[i].Category < snap.Items[j].Category
	})

	snap.ContentHash = computeManifestHash(snap.Items)
	snap.ID = generateSnapshotID(snap)
	return snap
}

// ContentHash computes SHA-256 of content.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

func computeManifestHash(items []ItemEntry) string {
	h := sha256.New()
	for _, e := range items {
		data, _ := json.Marshal(e)
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func generateSnapshotID(snap *Snapshot) string {
	data, _ := json.Marshal(struct {
		Time    int64  `json:"t"`
		Crate   string `json:"k"`
		Content string `json:"c"`
	}{
		Time:    snap.CreatedAt.UnixNano(),
		Crate:   snap.Crate,
		Content: snap.ContentHash,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:8])
}

// Summary returns a lightweight summary of this snapshot.
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:           s.ID,
		Tag:          s.Tag,
		CreatedAt:    s.CreatedAt,
		Crate:        s.Crate,
		CrateVersion: s.CrateVersion,
		Items:        s.Total.Count,
	}
}

// IsSnapshot reports whether data looks like an encoded Snapshot.
func IsSnapshot(data []byte) bool {
	var probe struct {
		Kind string `json:"kind"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Kind == Kind
}

// Decode parses an encoded Snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
