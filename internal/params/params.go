// Package params classifies handler function parameters into documented
// path, query and header parameters. Classification is a fixed decision
// order over the extractor wrapper, the wrapped type's shape, and the
// route's path placeholders; anything that cannot be classified is omitted
// rather than rejected.
package params

import (
	"go/ast"
	"regexp"
	"strings"

	"github.com/dev-five-git/vespera/internal/schema"
	"github.com/dev-five-git/vespera/internal/typeinfo"
)

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
)

// Parameter is one documented operation parameter.
type Parameter struct {
	Name        string            `yaml:"name" json:"name"`
	In          string            `yaml:"in" json:"in"`
	Required    bool              `yaml:"required,omitempty" json:"required,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Schema      *schema.SchemaRef `yaml:"schema,omitempty" json:"schema,omitempty"`
	Example     string            `yaml:"example,omitempty" json:"example,omitempty"`
}

// placeholderPattern matches both {name} and :name path segment styles.
var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}|:(\w+)`)

// PathPlaceholders extracts the named placeholders of a route path template
// in order of appearance.
func PathPlaceholders(path string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(path, -1) {
		if m[1] != "" {
			names = append(names, m[1])
		} else {
			names = append(names, m[2])
		}
	}
	return names
}

// FromSignature classifies every parameter of a handler signature. It
// returns the documented parameters plus the request body type when a JSON
// extractor is present.
func FromSignature(fn *ast.FuncType, placeholders []string, src schema.DefinitionSource) ([]Parameter, ast.Expr) {
	var out []Parameter
	var body ast.Expr
	if fn.Params == nil {
		return nil, nil
	}
	for _, field := range fn.Params.List {
		names := fieldNames(field)
		for _, name := range names {
			ps, bodyType := classify(name, field.Type, placeholders, src)
			out = append(out, ps...)
			if bodyType != nil {
				body = bodyType
			}
		}
	}
	return out, body
}

// classify applies the decision order to a single parameter. A nil, nil
// return means the parameter is excluded from documentation.
func classify(name string, typ ast.Expr, placeholders []string, src schema.DefinitionSource) ([]Parameter, ast.Expr) {
	// Optional typed header: pointer around the wrapper.
	if elem, ok := typeinfo.Pointer(typ); ok {
		if head, _, isExt := typeinfo.Extractor(elem); isExt && head == typeinfo.ExtractorTypedHeader {
			return []Parameter{typedHeader(name, false)}, nil
		}
	}

	head, arg, isExt := typeinfo.Extractor(typ)
	if !isExt {
		// A bare parameter whose name matches a path placeholder is still a
		// path parameter; anything else has an unknowable location.
		for _, ph := range placeholders {
			if ph == name {
				return []Parameter{{
					Name:     name,
					In:       InPath,
					Required: true,
					Schema:   schema.TypeSchema(typ, "", src),
				}}, nil
			}
		}
		return nil, nil
	}

	switch head {
	case typeinfo.ExtractorTypedHeader:
		return []Parameter{typedHeader(name, true)}, nil

	case typeinfo.ExtractorPath:
		if st, ok := arg.(*ast.StructType); ok {
			return tuplePath(st, placeholders, src), nil
		}
		paramName := name
		if len(placeholders) == 1 {
			// A single placeholder names the parameter regardless of the
			// binding name.
			paramName = placeholders[0]
		}
		return []Parameter{{
			Name:     paramName,
			In:       InPath,
			Required: true,
			Schema:   schema.TypeSchema(arg, "", src),
		}}, nil

	case typeinfo.ExtractorQuery:
		return classifyQuery(name, arg, src), nil

	case typeinfo.ExtractorHeader:
		return []Parameter{{
			Name:     name,
			In:       InHeader,
			Required: true,
			Schema:   schema.TypeSchema(arg, "", src),
		}}, nil

	case typeinfo.ExtractorJSON:
		// The body is documented as requestBody, not a parameter.
		return nil, arg
	}
	return nil, nil
}

// tuplePath pairs the elements of a multi-segment path extractor with the
// route's placeholders positionally. Elements beyond the placeholder list
// are dropped.
func tuplePath(st *ast.StructType, placeholders []string, src schema.DefinitionSource) []Parameter {
	var out []Parameter
	for i, f := range schema.Fields(st) {
		if i >= len(placeholders) {
			break
		}
		out = append(out, Parameter{
			Name:     placeholders[i],
			In:       InPath,
			Required: true,
			Schema:   schema.TypeSchema(f.Type, "", src),
		})
	}
	return out
}

// classifyQuery handles the Query extractor's four shapes: opaque maps are
// excluded, structs expand to one parameter per field, single known types
// document directly, and anything else is excluded.
func classifyQuery(name string, arg ast.Expr, src schema.DefinitionSource) []Parameter {
	if typeinfo.IsMapType(arg) {
		return nil
	}
	if st, ok := arg.(*ast.StructType); ok {
		return expandQueryStruct(st, "", src)
	}
	if def, ok := lookupStruct(src, arg); ok {
		if st, isStruct := def.Type.(*ast.StructType); isStruct && def.Kind == schema.DefStruct {
			return expandQueryStruct(st, def.RenameAll, src)
		}
		if def.Kind == schema.DefEnum {
			if s, err := schema.FromEnum(def); err == nil {
				return []Parameter{{
					Name:     name,
					In:       InQuery,
					Required: true,
					Schema:   schema.NewInline(s),
				}}
			}
		}
		return nil
	}
	if typeinfo.IsPrimitive(arg) {
		return []Parameter{{
			Name:     name,
			In:       InQuery,
			Required: true,
			Schema:   schema.TypeSchema(arg, "", src),
		}}
	}
	return nil
}

// expandQueryStruct emits one query parameter per struct field. Reference
// schemas are inlined because query parameters must not carry $ref; pointer
// fields become nullable and non-required.
func expandQueryStruct(st *ast.StructType, policy string, src schema.DefinitionSource) []Parameter {
	var out []Parameter
	for _, f := range schema.Fields(st) {
		if f.Skip || typeinfo.IsMapType(f.Type) {
			continue
		}
		elem := f.Type
		_, isPtr := typeinfo.Pointer(f.Type)
		if isPtr {
			elem, _ = typeinfo.Pointer(f.Type)
		}
		ref := schema.TypeSchema(elem, policy, src)
		if ref.Ref != "" {
			ref = inlineDefinition(ref, src)
		}
		if isPtr && ref.Inline != nil {
			ref.Inline.Nullable = true
		}
		required := !isPtr && !f.Optional && !f.OmitEmpty && f.Default == ""
		out = append(out, Parameter{
			Name:        schema.FieldName(f.GoName, f.JSONName, policy),
			In:          InQuery,
			Required:    required,
			Description: f.Doc,
			Schema:      ref,
		})
	}
	return out
}

// inlineDefinition dereferences a $ref through the registry and embeds the
// target's structure. An unresolvable reference degrades to an
// unconstrained node.
func inlineDefinition(ref *schema.SchemaRef, src schema.DefinitionSource) *schema.SchemaRef {
	name := strings.TrimPrefix(ref.Ref, schema.RefPrefix)
	def, ok := src.Lookup(name)
	if !ok {
		return schema.NewInline(&schema.Schema{})
	}
	var s *schema.Schema
	var err error
	switch def.Kind {
	case schema.DefEnum:
		s, err = schema.FromEnum(def)
	case schema.DefUnion:
		s, err = schema.FromUnion(def, src)
	default:
		s, err = schema.FromStruct(def, src)
	}
	if err != nil {
		return schema.NewInline(&schema.Schema{})
	}
	return schema.NewInline(s)
}

// typedHeader builds the header parameter for a typed header wrapper: the
// binding name with underscores converted to hyphens, always a plain string
// schema regardless of the wrapped type.
func typedHeader(name string, required bool) Parameter {
	return Parameter{
		Name:     strings.ReplaceAll(name, "_", "-"),
		In:       InHeader,
		Required: required,
		Schema:   schema.NewInline(&schema.Schema{Type: "string"}),
	}
}

func lookupStruct(src schema.DefinitionSource, expr ast.Expr) (*schema.Definition, bool) {
	if src == nil {
		return nil, false
	}
	name := typeinfo.LastSegment(expr)
	if name == "" {
		return nil, false
	}
	return src.Lookup(name)
}

func fieldNames(f *ast.Field) []string {
	if len(f.Names) == 0 {
		return []string{""}
	}
	names := make([]string, len(f.Names))
	for i, n := range f.Names {
		names[i] = n.Name
	}
	return names
}
