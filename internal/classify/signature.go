package classify

import (
	"strings"

	"github.com/efebarandurmaz/apistat/internal/index"
)

// Signature renders a short declaration for an item, e.g.
// "const unsafe fn get<T, const N: _>(..) { .. }" or "impl<T> Clone for Point".
// Argument and field types are elided.
func Signature(it *index.Item) string {
	params := genericParams(it.Generics)
	where := ""
	if n := it.Generics.BoundPredicates; n > 0 {
		where = " where .."
	}

	switch it.Kind.Tag() {
	case index.TagFunction:
		var b strings.Builder
		if it.Header.Const {
			b.WriteString("const ")
		}
		if it.Header.Async {
			b.WriteString("async ")
		}
		if it.Header.Unsafe {
			b.WriteString("unsafe ")
		}
		b.WriteString("fn " + it.Name + params + "(..)" + where)
		if it.HasBody {
			b.WriteString(" { .. }")
		} else {
			b.WriteString(";")
		}
		return b.String()
	case index.TagStruct:
		return "struct " + it.Name + params + where + " { .. }"
	case index.TagEnum:
		return "enum " + it.Name + params + where + " { .. }"
	case index.TagUnion:
		return "union " + it.Name + params + where + " { .. }"
	case index.TagTrait:
		return "trait " + it.Name + params + where + " { .. }"
	case index.TagTraitAlias:
		return "trait " + it.Name + params + " = ..;"
	case index.TagImpl:
		s := "impl" + params + " "
		if it.Trait != nil {
			if it.Negative {
				s += "!"
			}
			s += it.Trait.Name + " for "
		}
		return s + it.ForType + where
	case index.TagModule:
		return "mod " + it.Name
	case index.TagUse:
		src := it.Source
		if src == "" {
			src = it.Name
		}
		if it.Glob {
			return "use " + src + "::*;"
		}
		return "use " + src + ";"
	case index.TagTypeAlias:
		return "type " + it.Name + params + " = ..;"
	case index.TagAssocType:
		return "type " + it.Name + params + ";"
	case index.TagConstant, index.TagAssocConst:
		return "const " + it.Name + ": ..;"
	case index.TagStatic:
		return "static " + it.Name + ": ..;"
	case index.TagMacro:
		return "macro_rules! " + it.Name
	case index.TagProcMacro:
		return "#[proc_macro] " + it.Name
	case index.TagExternCrate:
		return "extern crate " + it.Name + ";"
	case index.TagExternType:
		return "extern type " + it.Name + ";"
	case index.TagPrimitive:
		return it.Name
	}
	return it.Name
}

// genericParams renders type and const parameters; lifetimes and synthetic
// parameters are omitted.
func genericParams(g index.Generics) string {
	var out []string
	for _, p := range g.Params {
		switch {
		case p.Kind == index.ParamLifetime, p.Synthetic:
			continue
		case p.Kind == index.ParamConst:
			out = append(out, "const "+p.Name+": _")
		default:
			out = append(out, p.Name)
		}
	}
	if len(out) == 0 {
		return ""
	}
	return "<" + strings.Join(out, ", ") + ">"
}
