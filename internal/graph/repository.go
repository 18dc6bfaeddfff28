// Package graph defines the stores an analysis can be exported to.
package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/depgraph"
	"github.com/efebarandurmaz/apistat/internal/index"
)

// Snapshot is everything one run exports.
type Snapshot struct {
	Crate         string
	CrateVersion  string
	FormatVersion int
	Records       []classify.Record
	Graph         *depgraph.Graph
	Aggregate     aggregate.Result
}

// Sink persists snapshots. Storing a crate replaces whatever was stored for it
// before.
type Sink interface {
	Store(ctx context.Context, snap *Snapshot) error
	Close(ctx context.Context) error
}

// Repository is a Sink that can be queried back.
type Repository interface {
	Sink
	// LoadRecords returns the stored records of crate in id order.
	LoadRecords(ctx context.Context, crate string) ([]classify.Record, error)
	// QueryReExports returns the paths that re-export the item at path.
	QueryReExports(ctx context.Context, crate, path string) ([]string, error)
}

// RecordProps flattens a record into store properties.
func RecordProps(r classify.Record) map[string]any {
	return map[string]any{
		"id":           string(r.ID),
		"name":         r.Name,
		"category":     string(r.Category),
		"raw_kind":     r.RawKind,
		"parent":       string(r.Parent),
		"path":         r.Path,
		"module":       r.Module,
		"crate":        r.Crate,
		"local":        r.Local,
		"resolved":     r.Resolved,
		"visibility":   string(r.Visibility),
		"stability":    string(r.Stability),
		"deprecation":  r.DeprecationNote,
		"documented":   r.Documented,
		"generics":     int64(r.Generics),
		"has_generics": r.HasGenerics,
		"const":        r.Const,
		"async":        r.Async,
		"unsafe":       r.Unsafe,
		"methods":      int64(r.Methods),
		"signature":    r.Signature,
	}
}

// RecordFromProps is the inverse of RecordProps. Missing keys stay zero.
func RecordFromProps(p map[string]any) classify.Record {
	return classify.Record{
		ID:              index.ID(str(p["id"])),
		Name:            str(p["name"]),
		Category:        classify.Category(str(p["category"])),
		RawKind:         str(p["raw_kind"]),
		Parent:          index.ID(str(p["parent"])),
		Path:            str(p["path"]),
		Module:          str(p["module"]),
		Crate:           str(p["crate"]),
		Local:           boolean(p["local"]),
		Resolved:        boolean(p["resolved"]),
		Visibility:      classify.Visibility(str(p["visibility"])),
		Stability:       classify.Stability(str(p["stability"])),
		DeprecationNote: str(p["deprecation"]),
		Documented:      boolean(p["documented"]),
		Generics:        integer(p["generics"]),
		HasGenerics:     boolean(p["has_generics"]),
		Const:           boolean(p["const"]),
		Async:           boolean(p["async"]),
		Unsafe:          boolean(p["unsafe"]),
		Methods:         integer(p["methods"]),
		Signature:       str(p["signature"]),
	}
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

func boolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	}
	return false
}

func integer(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
