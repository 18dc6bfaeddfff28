package index

import "encoding/json"

// Tag is the closed set of item kinds the engine understands.
type Tag string

const (
	TagModule      Tag = "module"
	TagExternCrate Tag = "extern_crate"
	TagUse         Tag = "use"
	TagUnion       Tag = "union"
	TagStruct      Tag = "struct"
	TagStructField Tag = "struct_field"
	TagEnum        Tag = "enum"
	TagVariant     Tag = "variant"
	TagFunction    Tag = "function"
	TagTrait       Tag = "trait"
	TagTraitAlias  Tag = "trait_alias"
	TagImpl        Tag = "impl"
	TagTypeAlias   Tag = "type_alias"
	TagConstant    Tag = "constant"
	TagStatic      Tag = "static"
	TagExternType  Tag = "extern_type"
	TagMacro       Tag = "macro"
	TagProcMacro   Tag = "proc_macro"
	TagPrimitive   Tag = "primitive"
	TagAssocConst  Tag = "assoc_const"
	TagAssocType   Tag = "assoc_type"
	TagOther       Tag = "other"
)

var knownTags = map[string]Tag{
	"module":       TagModule,
	"extern_crate": TagExternCrate,
	"use":          TagUse,
	"import":       TagUse,
	"union":        TagUnion,
	"struct":       TagStruct,
	"struct_field": TagStructField,
	"enum":         TagEnum,
	"variant":      TagVariant,
	"function":     TagFunction,
	"method":       TagFunction,
	"trait":        TagTrait,
	"trait_alias":  TagTraitAlias,
	"impl":         TagImpl,
	"type_alias":   TagTypeAlias,
	"typedef":      TagTypeAlias,
	"constant":     TagConstant,
	"static":       TagStatic,
	"extern_type":  TagExternType,
	"foreign_type": TagExternType,
	"macro":        TagMacro,
	"proc_macro":   TagProcMacro,
	"primitive":    TagPrimitive,
	"assoc_const":  TagAssocConst,
	"assoc_type":   TagAssocType,
}

// Kind is an item kind: one of the known tags, or Other carrying the raw tag so
// that kinds added by future rustdoc versions degrade instead of failing.
type Kind struct {
	tag Tag
	raw string
}

// ParseKind maps a raw rustdoc kind tag, including legacy aliases, to a Kind.
func ParseKind(raw string) Kind {
	if t, ok := knownTags[raw]; ok {
		return Kind{tag: t, raw: raw}
	}
	return Kind{tag: TagOther, raw: raw}
}

// otherKind is Other carrying raw, even when raw names a known tag whose
// record could not be decoded.
func otherKind(raw string) Kind { return Kind{tag: TagOther, raw: raw} }

// Tag returns the normalized tag.
func (k Kind) Tag() Tag { return k.tag }

// Raw returns the tag exactly as it appeared in the document.
func (k Kind) Raw() string { return k.raw }

// IsOther reports whether the raw tag was not recognized.
func (k Kind) IsOther() bool { return k.tag == TagOther }

// Is reports whether the kind has tag t.
func (k Kind) Is(t Tag) bool { return k.tag == t }

func (k Kind) String() string {
	if k.tag == TagOther {
		return "other(" + k.raw + ")"
	}
	return string(k.tag)
}

// MarshalJSON encodes the raw tag.
func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.raw) }

// UnmarshalJSON decodes a raw tag.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*k = ParseKind(raw)
	return nil
}
