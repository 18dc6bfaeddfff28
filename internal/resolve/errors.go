package resolve

import (
	"strings"

	"github.com/efebarandurmaz/apistat/internal/index"
)

// CyclicReExportError reports a reference cycle: re-exports that point back at
// themselves, or containers that list each other. It is a warning; resolution
// of unaffected items continues.
type CyclicReExportError struct {
	// Chain starts at its smallest id and lists each member once.
	Chain []index.ID
}

func (e *CyclicReExportError) Error() string {
	if len(e.Chain) == 0 {
		return "cyclic re-export"
	}
	return "cyclic re-export: " + e.key() + " -> " + string(e.Chain[0])
}

func (e *CyclicReExportError) key() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

// rotate moves the smallest id to the front, preserving cyclic order.
func rotate(chain []index.ID) []index.ID {
	if len(chain) == 0 {
		return chain
	}
	lo := 0
	for i := range chain {
		if chain[i].Less(chain[lo]) {
			lo = i
		}
	}
	out := make([]index.ID, 0, len(chain))
	out = append(out, chain[lo:]...)
	return append(out, chain[:lo]...)
}
