// Package codegen chooses per-field construction strategies and emits the
// bridge source binding ORM model structs to their generated schema
// structs. Output is modeled as a small statement/expression tree and only
// rendered to text at the edge, so strategy selection stays testable
// without string comparisons.
package codegen

import (
	"fmt"
	"sort"
	"strings"
)

// File is one generated source file.
type File struct {
	Package string
	Imports []Import
	Decls   []Decl
}

type Import struct {
	Alias string
	Path  string
}

// Decl is a top-level declaration.
type Decl interface {
	renderDecl(b *strings.Builder)
}

// StructDecl declares a named struct type.
type StructDecl struct {
	Doc    []string
	Name   string
	Fields []StructField
}

type StructField struct {
	Name string
	Type string
	Tag  string
}

func (d *StructDecl) renderDecl(b *strings.Builder) {
	for _, line := range d.Doc {
		fmt.Fprintf(b, "// %s\n", line)
	}
	fmt.Fprintf(b, "type %s struct {\n", d.Name)
	for _, f := range d.Fields {
		fmt.Fprintf(b, "\t%s %s", f.Name, f.Type)
		if f.Tag != "" {
			fmt.Fprintf(b, " `%s`", f.Tag)
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
}

// FuncDecl declares a top-level function.
type FuncDecl struct {
	Doc     []string
	Name    string
	Params  []Param
	Results []string
	Body    []Stmt
}

type Param struct {
	Name string
	Type string
}

func (d *FuncDecl) renderDecl(b *strings.Builder) {
	for _, line := range d.Doc {
		fmt.Fprintf(b, "// %s\n", line)
	}
	fmt.Fprintf(b, "func %s(", d.Name)
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s %s", p.Name, p.Type)
	}
	b.WriteString(")")
	switch len(d.Results) {
	case 0:
	case 1:
		fmt.Fprintf(b, " %s", d.Results[0])
	default:
		fmt.Fprintf(b, " (%s)", strings.Join(d.Results, ", "))
	}
	b.WriteString(" {\n")
	renderStmts(b, d.Body, 1)
	b.WriteString("}\n")
}

// Stmt is one statement in a function body.
type Stmt interface {
	renderStmt(b *strings.Builder, depth int)
}

func renderStmts(b *strings.Builder, stmts []Stmt, depth int) {
	for _, s := range stmts {
		s.renderStmt(b, depth)
	}
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
}

// Assign is "lhs op rhs", covering = and := forms.
type Assign struct {
	LHS []string
	Op  string
	RHS Expr
}

func (s *Assign) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "%s %s %s\n", strings.Join(s.LHS, ", "), s.Op, s.RHS.renderExpr())
}

// Var declares a zero-valued variable.
type Var struct {
	Name string
	Type string
}

func (s *Var) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "var %s %s\n", s.Name, s.Type)
}

// If renders a conditional with an optional else branch.
type If struct {
	Init Stmt
	Cond Expr
	Then []Stmt
	Else []Stmt
}

func (s *If) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	b.WriteString("if ")
	if s.Init != nil {
		var inner strings.Builder
		s.Init.renderStmt(&inner, 0)
		b.WriteString(strings.TrimSuffix(inner.String(), "\n"))
		b.WriteString("; ")
	}
	fmt.Fprintf(b, "%s {\n", s.Cond.renderExpr())
	renderStmts(b, s.Then, depth+1)
	if len(s.Else) > 0 {
		indent(b, depth)
		b.WriteString("} else {\n")
		renderStmts(b, s.Else, depth+1)
	}
	indent(b, depth)
	b.WriteString("}\n")
}

// Range renders "for _, value := range over { ... }".
type Range struct {
	Value string
	Over  Expr
	Body  []Stmt
}

func (s *Range) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "for _, %s := range %s {\n", s.Value, s.Over.renderExpr())
	renderStmts(b, s.Body, depth+1)
	indent(b, depth)
	b.WriteString("}\n")
}

// Return renders a return statement.
type Return struct {
	Values []Expr
}

func (s *Return) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	if len(s.Values) == 0 {
		b.WriteString("return\n")
		return
	}
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = v.renderExpr()
	}
	fmt.Fprintf(b, "return %s\n", strings.Join(parts, ", "))
}

// ExprStmt renders a bare expression statement.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) renderStmt(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "%s\n", s.X.renderExpr())
}

// Expr is one expression node.
type Expr interface {
	renderExpr() string
}

// Ident is a bare identifier or any pre-qualified name.
type Ident string

func (e Ident) renderExpr() string { return string(e) }

// Lit is a literal as written, such as a quoted string or a number.
type Lit string

func (e Lit) renderExpr() string { return string(e) }

// Sel is a field or package selection.
type Sel struct {
	X    Expr
	Name string
}

func (e *Sel) renderExpr() string {
	return e.X.renderExpr() + "." + e.Name
}

// Call is a function call.
type Call struct {
	Fun  Expr
	Args []Expr
}

func (e *Call) renderExpr() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.renderExpr()
	}
	return e.Fun.renderExpr() + "(" + strings.Join(parts, ", ") + ")"
}

// Unary is a prefix operation, & and * and ! here.
type Unary struct {
	Op string
	X  Expr
}

func (e *Unary) renderExpr() string {
	return e.Op + e.X.renderExpr()
}

// Binary is an infix operation.
type Binary struct {
	Op   string
	X, Y Expr
}

func (e *Binary) renderExpr() string {
	return e.X.renderExpr() + " " + e.Op + " " + e.Y.renderExpr()
}

// KV is one element of a composite literal.
type KV struct {
	Key   string
	Value Expr
}

// Composite is a struct or slice literal with keyed elements.
type Composite struct {
	Type  string
	Elems []KV
}

func (e *Composite) renderExpr() string {
	if len(e.Elems) == 0 {
		return e.Type + "{}"
	}
	var b strings.Builder
	b.WriteString(e.Type + "{\n")
	for _, kv := range e.Elems {
		if kv.Key != "" {
			fmt.Fprintf(&b, "%s: %s,\n", kv.Key, kv.Value.renderExpr())
		} else {
			fmt.Fprintf(&b, "%s,\n", kv.Value.renderExpr())
		}
	}
	b.WriteString("}")
	return b.String()
}

// Render flattens the file to unformatted Go source. Callers pass the
// result through go/format before writing it out.
func (f *File) Render() string {
	var b strings.Builder
	b.WriteString("// Code generated by vespera. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", f.Package)
	if len(f.Imports) > 0 {
		b.WriteString("import (\n")
		imports := append([]Import(nil), f.Imports...)
		sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })
		for _, imp := range imports {
			if imp.Alias != "" {
				fmt.Fprintf(&b, "\t%s %q\n", imp.Alias, imp.Path)
			} else {
				fmt.Fprintf(&b, "\t%q\n", imp.Path)
			}
		}
		b.WriteString(")\n\n")
	}
	for i, d := range f.Decls {
		if i > 0 {
			b.WriteString("\n")
		}
		d.renderDecl(&b)
	}
	return b.String()
}

// RenderDecl renders a single declaration without the file wrapper, used
// when a generated type is registered back as a schema definition.
func RenderDecl(d Decl) string {
	var b strings.Builder
	d.renderDecl(&b)
	return b.String()
}
