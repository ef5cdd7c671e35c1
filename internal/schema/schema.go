// Package schema derives JSON-Schema-shaped descriptions from parsed struct,
// enum and union definitions. The node model covers the OpenAPI 3.1 subset
// the generator emits, including prefixItems tuples and type-less oneOf
// nodes, which is why the document tree is owned here rather than borrowed
// from an OpenAPI library.
package schema

import (
	"encoding/json"
	"fmt"
	"go/ast"
)

// RefPrefix is where the assembler mounts every named component.
const RefPrefix = "#/components/schemas/"

// Schema is one inline schema node. Properties marshal ordered by key, so
// output is deterministic without tracking insertion order.
type Schema struct {
	Type        string                `yaml:"type,omitempty" json:"type,omitempty"`
	Format      string                `yaml:"format,omitempty" json:"format,omitempty"`
	Nullable    bool                  `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Enum        []string              `yaml:"enum,omitempty" json:"enum,omitempty"`
	Properties  map[string]*SchemaRef `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required    []string              `yaml:"required,omitempty" json:"required,omitempty"`
	Items       *SchemaRef            `yaml:"items,omitempty" json:"items,omitempty"`
	PrefixItems []*SchemaRef          `yaml:"prefixItems,omitempty" json:"prefixItems,omitempty"`
	MinItems    int                   `yaml:"minItems,omitempty" json:"minItems,omitempty"`
	MaxItems    int                   `yaml:"maxItems,omitempty" json:"maxItems,omitempty"`
	OneOf       []*SchemaRef          `yaml:"oneOf,omitempty" json:"oneOf,omitempty"`
	AllOf       []*SchemaRef          `yaml:"allOf,omitempty" json:"allOf,omitempty"`
	Default     string                `yaml:"default,omitempty" json:"default,omitempty"`
}

// SchemaRef is either a named $ref or an owned inline schema, never both.
type SchemaRef struct {
	Ref    string
	Inline *Schema
}

// NewRef builds a reference to a named component.
func NewRef(name string) *SchemaRef {
	return &SchemaRef{Ref: RefPrefix + name}
}

// NewInline wraps an owned schema node.
func NewInline(s *Schema) *SchemaRef {
	return &SchemaRef{Inline: s}
}

// Validate checks the ref-xor-inline invariant and that oneOf nodes carry no
// type, recursively.
func (r *SchemaRef) Validate() error {
	if r == nil {
		return fmt.Errorf("schema: nil reference")
	}
	if (r.Ref != "") == (r.Inline != nil) {
		return fmt.Errorf("schema: node must be exactly one of $ref or inline")
	}
	if r.Inline == nil {
		return nil
	}
	s := r.Inline
	if len(s.OneOf) > 0 && s.Type != "" {
		return fmt.Errorf("schema: oneOf node must not carry a type (got %q)", s.Type)
	}
	children := make([]*SchemaRef, 0, len(s.Properties)+len(s.OneOf)+len(s.AllOf)+len(s.PrefixItems)+1)
	for _, p := range s.Properties {
		children = append(children, p)
	}
	children = append(children, s.OneOf...)
	children = append(children, s.AllOf...)
	children = append(children, s.PrefixItems...)
	if s.Items != nil {
		children = append(children, s.Items)
	}
	for _, c := range children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalYAML flattens the ref-xor-inline sum for emission.
func (r *SchemaRef) MarshalYAML() (any, error) {
	if r.Ref != "" {
		return map[string]string{"$ref": r.Ref}, nil
	}
	return r.Inline, nil
}

// MarshalJSON mirrors MarshalYAML for JSON output.
func (r *SchemaRef) MarshalJSON() ([]byte, error) {
	if r.Ref != "" {
		return []byte(fmt.Sprintf("{%q:%q}", "$ref", r.Ref)), nil
	}
	return json.Marshal(r.Inline)
}

// DefKind distinguishes the annotated declaration forms.
type DefKind int

const (
	DefStruct DefKind = iota
	DefEnum
	DefUnion
)

// Variant is one constant of an enum declaration: the raw constant name, an
// optional per-variant rename, and its doc comment.
type Variant struct {
	Name   string
	Rename string
	Doc    string
}

// Definition is a registered type declaration in the form synthesis
// consumes: the parsed underlying type plus the directive arguments that
// shape its schema.
type Definition struct {
	Kind DefKind

	// Name is the published component name, which a name= directive
	// argument may override.
	Name string

	// TypeName is the declared Go type name. Enum constants are prefixed
	// with it regardless of any component-name override.
	TypeName string

	RenameAll   string
	Description string

	// Type is the declared underlying type, usually *ast.StructType. For
	// enums it is the base type of the constant block.
	Type ast.Expr

	// TypeParams holds generic parameter names for generic declarations.
	TypeParams []string

	// Variants is populated for enum definitions only.
	Variants []Variant

	// ModulePath is the import path of the declaring package.
	ModulePath string

	// Imports maps package qualifiers visible in the declaring file to
	// their import paths, for resolving qualified relation targets.
	Imports map[string]string
}

// DefinitionSource resolves a type name to its registered definition. The
// metadata registry's frozen snapshot satisfies it.
type DefinitionSource interface {
	Lookup(name string) (*Definition, bool)
}

// IsKnown reports whether src registers the name. Known names resolve to a
// $ref; everything else is synthesized inline.
func IsKnown(src DefinitionSource, name string) bool {
	if src == nil || name == "" {
		return false
	}
	_, ok := src.Lookup(name)
	return ok
}
