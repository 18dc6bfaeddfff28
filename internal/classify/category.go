package classify

import (
	"fmt"
	"strings"
)

// Category is the closed classification assigned to every item.
type Category string

const (
	CategoryModule         Category = "Module"
	CategoryStruct         Category = "Struct"
	CategoryEnum           Category = "Enum"
	CategoryUnion          Category = "Union"
	CategoryVariant        Category = "Variant"
	CategoryField          Category = "Field"
	CategoryTrait          Category = "Trait"
	CategoryTraitAlias     Category = "TraitAlias"
	CategoryFunction       Category = "Function"
	CategoryMethod         Category = "Method"
	CategoryRequiredMethod Category = "RequiredMethod"
	CategoryProvidedMethod Category = "ProvidedMethod"
	CategoryTraitImpl      Category = "TraitImpl"
	CategoryInherentImpl   Category = "InherentImpl"
	CategoryMacro          Category = "Macro"
	CategoryConstant       Category = "Constant"
	CategoryAssocConst     Category = "AssocConst"
	CategoryStatic         Category = "Static"
	CategoryTypeAlias      Category = "TypeAlias"
	CategoryAssocType      Category = "AssocType"
	CategoryImport         Category = "Import"
	CategoryExternCrate    Category = "ExternCrate"
	CategoryPrimitive      Category = "Primitive"
	CategoryForeignType    Category = "ForeignType"
	CategoryOther          Category = "Other"
)

var allCategories = []Category{
	CategoryModule, CategoryStruct, CategoryEnum, CategoryUnion, CategoryVariant,
	CategoryField, CategoryTrait, CategoryTraitAlias, CategoryFunction, CategoryMethod,
	CategoryRequiredMethod, CategoryProvidedMethod, CategoryTraitImpl, CategoryInherentImpl,
	CategoryMacro, CategoryConstant, CategoryAssocConst, CategoryStatic, CategoryTypeAlias,
	CategoryAssocType, CategoryImport, CategoryExternCrate, CategoryPrimitive,
	CategoryForeignType, CategoryOther,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range allCategories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Visibility is the normalized visibility of an item.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityRestricted Visibility = "restricted"
	VisibilityPrivate    Visibility = "private"
)

// Stability is the stability tier of an item.
type Stability string

const (
	StabilityStable     Stability = "stable"
	StabilityUnstable   Stability = "unstable"
	StabilityDeprecated Stability = "deprecated"
)
