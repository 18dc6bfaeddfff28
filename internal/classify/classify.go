// Package classify assigns each item of an API index a category and a
// normalized attribute record.
package classify

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/apistat/internal/index"
	"github.com/efebarandurmaz/apistat/internal/resolve"
)

// Record is the classified view of one item.
type Record struct {
	ID       index.ID `json:"id"`
	Name     string   `json:"name,omitempty"`
	Category Category `json:"category"`
	// RawKind is the kind tag exactly as it appeared in the document.
	RawKind  string   `json:"raw_kind"`
	Parent   index.ID `json:"parent,omitempty"`

	Path     string `json:"path"`
	Module   string `json:"module"`
	Crate    string `json:"crate"`
	Local    bool   `json:"local"`
	Resolved bool   `json:"resolved"`

	Visibility      Visibility `json:"visibility"`
	Stability       Stability  `json:"stability"`
	DeprecationNote string     `json:"deprecation_note,omitempty"`
	Documented      bool       `json:"documented"`

	Generics    int    `json:"generics"`
	HasGenerics bool   `json:"has_generics"`
	Const       bool   `json:"const,omitempty"`
	Async       bool   `json:"async,omitempty"`
	Unsafe      bool   `json:"unsafe,omitempty"`
	Methods     int    `json:"methods"`
	Signature   string `json:"signature"`
}

// Public reports whether the item is visible outside its crate.
func (r Record) Public() bool { return r.Visibility == VisibilityPublic }

// Options tunes classification.
type Options struct {
	// AssumeStable marks items with no stability attribute as stable. When
	// false they count as unstable, which suits the standard library where
	// every public item carries #[stable] or #[unstable].
	AssumeStable bool
	// Workers > 1 classifies items concurrently. Output order is unaffected.
	Workers int
}

// Classifier classifies items of one document. It only reads its inputs and
// is safe for concurrent use.
type Classifier struct {
	doc   *index.Document
	table *resolve.Table
	opts  Options
}

// New returns a Classifier over doc and its resolution table.
func New(doc *index.Document, table *resolve.Table, opts Options) *Classifier {
	return &Classifier{doc: doc, table: table, opts: opts}
}

// All classifies every item of doc in sorted id order.
func All(ctx context.Context, doc *index.Document, table *resolve.Table, opts Options) ([]Record, error) {
	c := New(doc, table, opts)
	ids := doc.IDs()
	records := make([]Record, len(ids))

	if opts.Workers <= 1 || len(ids) < 2*opts.Workers {
		for i, id := range ids {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			records[i] = c.Classify(id)
		}
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	chunk := (len(ids) + opts.Workers - 1) / opts.Workers
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				records[i] = c.Classify(ids[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Classify returns the record for id. Unknown ids and unrecognized kinds
// classify as CategoryOther.
func (c *Classifier) Classify(id index.ID) Record {
	it, ok := c.doc.Item(id)
	if !ok {
		return Record{ID: id, Category: CategoryOther, Visibility: VisibilityPrivate, Stability: c.defaultStability()}
	}

	rec := Record{
		ID:         id,
		Name:       it.Name,
		Category:   c.category(it),
		RawKind:    it.Kind.Raw(),
		Parent:     it.Parent,
		Visibility: c.visibility(it, 0),
		Documented: it.HasDocs,
		Generics:   it.Generics.Count(),
		Const:      it.Header.Const,
		Async:      it.Header.Async,
		Unsafe:     it.Header.Unsafe,
	}
	rec.Stability, rec.DeprecationNote = c.stability(it)
	rec.HasGenerics = c.hasGenerics(it)
	rec.Methods = c.methods(it)
	rec.Signature = Signature(it)

	if res, ok := c.table.Lookup(id); ok {
		rec.Crate = res.Crate
		if res.Resolved() {
			rec.Path = res.Path
			rec.Module = res.Module
			rec.Local = res.Local
			rec.Resolved = true
		}
	}
	return rec
}

func (c *Classifier) parent(it *index.Item) *index.Item {
	if it.Parent == "" {
		return nil
	}
	p, _ := c.doc.Item(it.Parent)
	return p
}

func (c *Classifier) category(it *index.Item) Category {
	parent := c.parent(it)
	inTrait := parent != nil && parent.Kind.Is(index.TagTrait)
	inImpl := parent != nil && parent.Kind.Is(index.TagImpl)

	switch it.Kind.Tag() {
	case index.TagModule:
		return CategoryModule
	case index.TagExternCrate:
		return CategoryExternCrate
	case index.TagUse:
		return CategoryImport
	case index.TagUnion:
		return CategoryUnion
	case index.TagStruct:
		return CategoryStruct
	case index.TagStructField:
		return CategoryField
	case index.TagEnum:
		return CategoryEnum
	case index.TagVariant:
		return CategoryVariant
	case index.TagFunction:
		switch {
		case inTrait && it.HasBody:
			return CategoryProvidedMethod
		case inTrait:
			return CategoryRequiredMethod
		case inImpl:
			return CategoryMethod
		}
		return CategoryFunction
	case index.TagTrait:
		return CategoryTrait
	case index.TagTraitAlias:
		return CategoryTraitAlias
	case index.TagImpl:
		if it.Trait != nil {
			return CategoryTraitImpl
		}
		return CategoryInherentImpl
	case index.TagTypeAlias:
		return CategoryTypeAlias
	case index.TagConstant:
		if inTrait || inImpl {
			return CategoryAssocConst
		}
		return CategoryConstant
	case index.TagAssocConst:
		return CategoryAssocConst
	case index.TagStatic:
		return CategoryStatic
	case index.TagExternType:
		return CategoryForeignType
	case index.TagMacro, index.TagProcMacro:
		return CategoryMacro
	case index.TagPrimitive:
		return CategoryPrimitive
	case index.TagAssocType:
		return CategoryAssocType
	}
	return CategoryOther
}

// maxInheritDepth bounds visibility inheritance on malformed containment.
const maxInheritDepth = 8

func (c *Classifier) visibility(it *index.Item, depth int) Visibility {
	switch it.Visibility.Kind {
	case index.VisibilityPublic:
		return VisibilityPublic
	case index.VisibilityCrate, index.VisibilityRestricted:
		return VisibilityRestricted
	}
	if it.Kind.Is(index.TagImpl) {
		return VisibilityPublic
	}
	parent := c.parent(it)
	if parent == nil || depth >= maxInheritDepth {
		return VisibilityPrivate
	}
	switch {
	case parent.Kind.Is(index.TagTrait),
		parent.Kind.Is(index.TagImpl) && parent.Trait != nil,
		parent.Kind.Is(index.TagEnum) && it.Kind.Is(index.TagVariant),
		parent.Kind.Is(index.TagVariant) && it.Kind.Is(index.TagStructField):
		return c.visibility(parent, depth+1)
	}
	return VisibilityPrivate
}

func (c *Classifier) stability(it *index.Item) (Stability, string) {
	if it.Deprecation != nil {
		return StabilityDeprecated, it.Deprecation.Note
	}
	var unstable, stable bool
	for _, a := range it.Attrs {
		switch {
		case strings.Contains(a, "#[deprecated"):
			return StabilityDeprecated, ""
		case strings.Contains(a, "#[unstable"):
			unstable = true
		case strings.Contains(a, "#[stable"):
			stable = true
		}
	}
	switch {
	case unstable:
		return StabilityUnstable, ""
	case stable:
		return StabilityStable, ""
	}
	return c.defaultStability(), ""
}

func (c *Classifier) defaultStability() Stability {
	if c.opts.AssumeStable {
		return StabilityStable
	}
	return StabilityUnstable
}

// hasGenerics counts type and const params and where-bound predicates. Items
// inside a generic trait or impl are generic as well.
func (c *Classifier) hasGenerics(it *index.Item) bool {
	if it.Generics.Count() > 0 || it.Generics.BoundPredicates > 0 {
		return true
	}
	parent := c.parent(it)
	if parent == nil || !(parent.Kind.Is(index.TagTrait) || parent.Kind.Is(index.TagImpl)) {
		return false
	}
	return parent.Generics.Count() > 0 || parent.Generics.BoundPredicates > 0
}

// methods counts functions declared in a trait, or in the inherent impls of a
// struct, enum or union. Synthetic and blanket impls are skipped.
func (c *Classifier) methods(it *index.Item) int {
	switch it.Kind.Tag() {
	case index.TagTrait:
		return c.countFunctions(it.Children)
	case index.TagStruct, index.TagEnum, index.TagUnion:
		n := 0
		for _, id := range it.Impls {
			impl, ok := c.doc.Item(id)
			if !ok || impl.Trait != nil || impl.Synthetic || impl.Blanket {
				continue
			}
			n += c.countFunctions(impl.Children)
		}
		return n
	}
	return 0
}

func (c *Classifier) countFunctions(ids []index.ID) int {
	n := 0
	for _, id := range ids {
		if child, ok := c.doc.Item(id); ok && child.Kind.Is(index.TagFunction) {
			n++
		}
	}
	return n
}
