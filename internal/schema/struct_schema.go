package schema

import (
	"fmt"
	"go/ast"
	"reflect"
	"strconv"
	"strings"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/typeinfo"
)

// FromStruct synthesizes an object schema from a registered struct
// definition. Relation marker fields are not part of the serialized shape
// and are skipped; the model bridge generates concrete projection fields in
// their place.
func FromStruct(def *Definition, src DefinitionSource) (*Schema, error) {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return nil, fmt.Errorf("schema: %s is not a struct definition", def.Name)
	}
	props, required, err := structBody(st, def.RenameAll, src)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", def.Name, err)
	}
	return &Schema{
		Type:        "object",
		Description: def.Description,
		Properties:  props,
		Required:    required,
	}, nil
}

// FieldInfo is the tag- and doc-derived view of one struct field.
type FieldInfo struct {
	GoName    string
	Type      ast.Expr
	Doc       string
	JSONName  string
	Skip      bool
	OmitEmpty bool
	Default   string
	// Optional is set by the vespera:"optional" tag and forces the field
	// out of the required list even when its type is not a pointer.
	Optional bool
	// TupleVariant marks a union field tagged vespera:"tuple".
	TupleVariant bool
	// RenameAll is a variant-scoped policy from the vespera tag.
	RenameAll string
	// OrmTag is the raw orm struct tag carrying relation arguments.
	OrmTag string
}

// Fields flattens a struct's field list, one entry per declared name.
// Embedded fields have no serialized name of their own and are dropped.
func Fields(st *ast.StructType) []FieldInfo {
	if st.Fields == nil {
		return nil
	}
	var out []FieldInfo
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			continue
		}
		tag := structTag(f)
		jsonName, omitEmpty, skip := jsonTag(tag)
		info := FieldInfo{
			Type:      f.Type,
			Doc:       directive.DocText(f.Doc),
			JSONName:  jsonName,
			Skip:      skip,
			OmitEmpty: omitEmpty,
			Default:   tag.Get("default"),
			OrmTag:    tag.Get("orm"),
		}
		for _, opt := range directive.List(tag.Get("vespera")) {
			switch {
			case opt == "optional":
				info.Optional = true
			case opt == "tuple":
				info.TupleVariant = true
			default:
				if v, ok := strings.CutPrefix(opt, "rename_all="); ok {
					info.RenameAll = v
				}
			}
		}
		for _, name := range f.Names {
			info.GoName = name.Name
			out = append(out, info)
		}
	}
	return out
}

func structBody(st *ast.StructType, policy string, src DefinitionSource) (map[string]*SchemaRef, []string, error) {
	props := make(map[string]*SchemaRef)
	var required []string
	for _, f := range Fields(st) {
		if f.Skip || isRelationMarker(f.Type) {
			continue
		}
		name := FieldName(f.GoName, f.JSONName, policy)
		ref := fieldSchema(f, policy, src)
		if prev, dup := props[name]; dup && prev != nil {
			return nil, nil, fmt.Errorf("duplicate property %q", name)
		}
		props[name] = ref
		_, isPtr := typeinfo.Pointer(f.Type)
		if !isPtr && !f.Optional && !f.OmitEmpty && f.Default == "" {
			required = append(required, name)
		}
	}
	return props, required, nil
}

// fieldSchema resolves a field's type and attaches field-level metadata. A
// bare $ref cannot carry sibling keywords, so a documented or defaulted ref
// is rewritten as an allOf wrapper.
func fieldSchema(f FieldInfo, policy string, src DefinitionSource) *SchemaRef {
	ref := TypeSchema(f.Type, policy, src)
	if ref.Ref != "" {
		if f.Doc == "" && f.Default == "" {
			return ref
		}
		return NewInline(&Schema{
			Description: f.Doc,
			Default:     f.Default,
			AllOf:       []*SchemaRef{ref},
		})
	}
	if f.Doc != "" {
		ref.Inline.Description = f.Doc
	}
	if f.Default != "" {
		ref.Inline.Default = f.Default
	}
	return ref
}

// TypeSchema maps a type expression to a schema node. Registered names
// become $ref; a pointer to a registered name becomes a nullable allOf
// wrapper; everything unrecognized falls back to an unconstrained inline
// node rather than an error.
func TypeSchema(expr ast.Expr, policy string, src DefinitionSource) *SchemaRef {
	if elem, ok := typeinfo.Pointer(expr); ok {
		inner := TypeSchema(elem, policy, src)
		if inner.Ref != "" {
			return NewInline(&Schema{Nullable: true, AllOf: []*SchemaRef{inner}})
		}
		inner.Inline.Nullable = true
		return inner
	}
	if elem, ok := typeinfo.Slice(expr); ok {
		return NewInline(&Schema{Type: "array", Items: TypeSchema(elem, policy, src)})
	}
	if elem, ok := typeinfo.Array(expr); ok {
		s := &Schema{Type: "array", Items: TypeSchema(elem, policy, src)}
		if arr, isArr := expr.(*ast.ArrayType); isArr {
			if lit, isLit := arr.Len.(*ast.BasicLit); isLit {
				if n, err := strconv.Atoi(lit.Value); err == nil {
					s.MinItems, s.MaxItems = n, n
				}
			}
		}
		return NewInline(s)
	}
	if typeinfo.IsMapType(expr) {
		return NewInline(&Schema{Type: "object"})
	}
	if st, ok := expr.(*ast.StructType); ok {
		props, required, err := structBody(st, policy, src)
		if err != nil {
			return NewInline(&Schema{Type: "object"})
		}
		return NewInline(&Schema{Type: "object", Properties: props, Required: required})
	}
	if typ, format, ok := typeinfo.Primitive(expr); ok {
		return NewInline(&Schema{Type: typ, Format: format})
	}
	name := typeinfo.LastSegment(expr)
	if def, ok := lookup(src, name); ok {
		if args := typeinfo.TypeArgs(expr); len(args) > 0 && len(def.TypeParams) > 0 {
			return instantiate(def, args, src)
		}
		return NewRef(def.Name)
	}
	return NewInline(&Schema{})
}

// instantiate substitutes a generic definition's type parameters and
// synthesizes the result inline. Only struct bodies can be instantiated;
// anything else degrades to an unconstrained node.
func instantiate(def *Definition, args []ast.Expr, src DefinitionSource) *SchemaRef {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return NewInline(&Schema{})
	}
	sub := typeinfo.Substitute(st, def.TypeParams, args)
	concrete, ok := sub.(*ast.StructType)
	if !ok {
		return NewInline(&Schema{})
	}
	props, required, err := structBody(concrete, def.RenameAll, src)
	if err != nil {
		return NewInline(&Schema{Type: "object"})
	}
	return NewInline(&Schema{
		Type:        "object",
		Description: def.Description,
		Properties:  props,
		Required:    required,
	})
}

func isRelationMarker(expr ast.Expr) bool {
	switch typeinfo.LastSegment(expr) {
	case typeinfo.RelationHasOne, typeinfo.RelationHasMany, typeinfo.RelationBelongsTo:
		return true
	}
	return false
}

func lookup(src DefinitionSource, name string) (*Definition, bool) {
	if src == nil || name == "" {
		return nil, false
	}
	return src.Lookup(name)
}

func structTag(f *ast.Field) reflect.StructTag {
	if f.Tag == nil {
		return ""
	}
	unquoted, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(unquoted)
}

func jsonTag(tag reflect.StructTag) (name string, omitEmpty, skip bool) {
	v, ok := tag.Lookup("json")
	if !ok {
		return "", false, false
	}
	parts := directive.List(v)
	if len(parts) == 0 {
		// A tag like json:",omitempty" names nothing.
		parts = []string{""}
	}
	first := ""
	rest := parts
	if v != "" && v[0] != ',' {
		first = parts[0]
		rest = parts[1:]
	}
	if first == "-" && len(rest) == 0 {
		return "", false, true
	}
	for _, opt := range rest {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return first, omitEmpty, false
}
