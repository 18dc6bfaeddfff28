// Package aggregate groups classified items and computes per-group metrics.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/classify"
)

// GroupBy selects the secondary grouping dimension.
type GroupBy string

const (
	GroupByCategory          GroupBy = "category"
	GroupByCategoryModule    GroupBy = "category+module"
	GroupByCategoryStability GroupBy = "category+stability"
	GroupByCategoryCrate     GroupBy = "category+crate"
)

// GroupBys lists the supported groupings.
func GroupBys() []GroupBy {
	return []GroupBy{GroupByCategory, GroupByCategoryModule, GroupByCategoryStability, GroupByCategoryCrate}
}

// ParseGroupBy validates a grouping name. The empty string means category.
func ParseGroupBy(s string) (GroupBy, error) {
	if s == "" {
		return GroupByCategory, nil
	}
	for _, g := range GroupBys() {
		if string(g) == strings.ToLower(strings.TrimSpace(s)) {
			return g, nil
		}
	}
	return "", &UnknownGroupingError{GroupBy: s}
}

// UnknownGroupingError reports an unsupported grouping specification.
type UnknownGroupingError struct {
	GroupBy string
}

func (e *UnknownGroupingError) Error() string {
	names := make([]string, 0, 4)
	for _, g := range GroupBys() {
		names = append(names, string(g))
	}
	return fmt.Sprintf("unknown grouping %q (supported: %s)", e.GroupBy, strings.Join(names, ", "))
}

// emptyKey stands in for a missing dimension value, e.g. the module of an
// unresolved item.
const emptyKey = "-"

// Options controls grouping and filtering.
type Options struct {
	GroupBy GroupBy
	// Exclude skips items whose resolved path starts with any of these prefixes.
	Exclude []string
	// PublicOnly skips items that are not public.
	PublicOnly bool
}

// Result is the ordered aggregation of one classified set.
type Result struct {
	GroupBy GroupBy `json:"group_by"`
	Rows    []Row   `json:"rows"`

	// Total sums every counted item regardless of group.
	Total Row `json:"total"`

	// Excluded counts items dropped by Options.Exclude or Options.PublicOnly.
	Excluded   int `json:"excluded"`
	Other      int `json:"other"`
	Unresolved int `json:"unresolved"`
}

type groupKey struct {
	category classify.Category
	key      string
}

// Aggregate builds rows from records in a single pass. records is not
// modified. Rows are sorted by category then key, and groups with no items
// never appear.
func Aggregate(records []classify.Record, opts Options) (Result, error) {
	groupBy, err := ParseGroupBy(string(opts.GroupBy))
	if err != nil {
		return Result{}, err
	}

	res := Result{GroupBy: groupBy, Total: Row{Category: "Total"}}
	groups := make(map[groupKey]*Row)
	for i := range records {
		rec := &records[i]
		if (opts.PublicOnly && !rec.Public()) || IsExcluded(rec.Path, opts.Exclude) {
			res.Excluded++
			continue
		}
		k := groupKey{category: rec.Category, key: dimension(groupBy, rec)}
		row, ok := groups[k]
		if !ok {
			row = &Row{Category: k.category, Key: k.key}
			groups[k] = row
		}
		row.add(rec)
		res.Total.add(rec)

		if rec.Category == classify.CategoryOther {
			res.Other++
		}
		if !rec.Resolved {
			res.Unresolved++
		}
	}

	res.Rows = make([]Row, 0, len(groups))
	for _, row := range groups {
		res.Rows = append(res.Rows, *row)
	}
	sort.Slice(res.Rows, func(i, j int) bool {
		if res.Rows[i].Category == res.Rows[j].Category {
			return res.Rows[i].Key < res.Rows[j].Key
		}
		return res.Rows[i].Category < res.Rows[j].Category
	})
	return res, nil
}

func dimension(g GroupBy, rec *classify.Record) string {
	var v string
	switch g {
	case GroupByCategory:
		return ""
	case GroupByCategoryModule:
		v = rec.Module
	case GroupByCategoryStability:
		v = string(rec.Stability)
	case GroupByCategoryCrate:
		v = rec.Crate
	}
	if v == "" {
		return emptyKey
	}
	return v
}

// IsExcluded reports whether path starts with any non-empty prefix.
func IsExcluded(path string, prefixes []string) bool {
	if path == "" {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
