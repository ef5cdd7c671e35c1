package schema

import (
	"fmt"
	"go/ast"
	"strings"
)

// FromEnum synthesizes a string schema from a unit-only enum: a defined
// type plus its constant block. Each value runs through the rename
// pipeline, with a per-variant rename beating the container policy.
func FromEnum(def *Definition) (*Schema, error) {
	if len(def.Variants) == 0 {
		return nil, fmt.Errorf("schema: enum %s has no constants", def.Name)
	}
	values := make([]string, len(def.Variants))
	for i, v := range def.Variants {
		values[i] = variantName(v, def)
	}
	return &Schema{
		Type:        "string",
		Description: def.Description,
		Enum:        values,
	}, nil
}

// variantName strips the enum type's name prefix from the constant name,
// then applies the rename pipeline. The prefix is the declared type name,
// not the component name, which a name= override can change.
func variantName(v Variant, def *Definition) string {
	if v.Rename != "" {
		return v.Rename
	}
	prefix := def.TypeName
	if prefix == "" {
		prefix = def.Name
	}
	name := v.Name
	if trimmed := strings.TrimPrefix(name, prefix); trimmed != "" && trimmed != name {
		name = trimmed
	}
	return ApplyPolicy(name, def.RenameAll)
}

// FromUnion synthesizes a oneOf schema from a union definition: a struct
// whose fields are the variants. The node carries no top-level type and one
// entry per variant in declaration order.
func FromUnion(def *Definition, src DefinitionSource) (*Schema, error) {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return nil, fmt.Errorf("schema: union %s is not a struct definition", def.Name)
	}
	fields := Fields(st)
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema: union %s has no variants", def.Name)
	}
	variants := make([]*SchemaRef, 0, len(fields))
	for _, f := range fields {
		if f.Skip {
			continue
		}
		name := FieldName(f.GoName, f.JSONName, def.RenameAll)
		policy := def.RenameAll
		if f.RenameAll != "" {
			policy = f.RenameAll
		}
		entry, err := unionVariant(f, name, policy, src)
		if err != nil {
			return nil, fmt.Errorf("schema: union %s: %w", def.Name, err)
		}
		variants = append(variants, entry)
	}
	return &Schema{Description: def.Description, OneOf: variants}, nil
}

// unionVariant encodes one variant field. An empty anonymous struct is a
// unit variant; an anonymous struct tagged vespera:"tuple" is a positional
// tuple; any other anonymous struct carries named fields; a plain type is a
// single-element tuple collapsed to its inner schema.
func unionVariant(f FieldInfo, name, policy string, src DefinitionSource) (*SchemaRef, error) {
	st, isStruct := f.Type.(*ast.StructType)
	switch {
	case isStruct && len(Fields(st)) == 0:
		return NewInline(&Schema{
			Type:        "string",
			Description: f.Doc,
			Enum:        []string{name},
		}), nil

	case isStruct && f.TupleVariant:
		elems := Fields(st)
		items := make([]*SchemaRef, len(elems))
		for i, e := range elems {
			items[i] = fieldSchema(e, policy, src)
		}
		inner := NewInline(&Schema{
			Type:        "array",
			PrefixItems: items,
			MinItems:    len(items),
			MaxItems:    len(items),
		})
		return wrapVariant(name, inner, f.Doc), nil

	case isStruct:
		props, required, err := structBody(st, policy, src)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", name, err)
		}
		inner := NewInline(&Schema{Type: "object", Properties: props, Required: required})
		return wrapVariant(name, inner, f.Doc), nil

	default:
		inner := TypeSchema(f.Type, policy, src)
		return wrapVariant(name, inner, f.Doc), nil
	}
}

func wrapVariant(name string, inner *SchemaRef, doc string) *SchemaRef {
	return NewInline(&Schema{
		Type:        "object",
		Description: doc,
		Properties:  map[string]*SchemaRef{name: inner},
		Required:    []string{name},
	})
}
