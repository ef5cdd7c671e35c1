package codegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"path/filepath"
	"strings"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/metadata"
	"github.com/dev-five-git/vespera/internal/relation"
	"github.com/dev-five-git/vespera/internal/schema"
	"github.com/dev-five-git/vespera/internal/typeinfo"
)

const ormImport = "github.com/dev-five-git/vespera/pkg/orm"

// Bridge is the generated output for one annotated model: the source file
// binding the model to its schema struct, plus the schema definitions to
// feed back into the registry so the assembler publishes them.
type Bridge struct {
	SchemaName  string
	File        *File
	OutputPath  string
	Definitions []metadata.StructMetadata
}

// Generate builds the bridge for one model record. The schema struct, any
// cycle-breaking projection types and the constructor all land in a single
// generated file next to the model's own source.
func Generate(m metadata.StructMetadata, src schema.DefinitionSource) (*Bridge, error) {
	def, ok := src.Lookup(m.TypeName)
	if !ok {
		return nil, fmt.Errorf("codegen: model %s is not registered", m.TypeName)
	}
	schemaName := m.Name
	plans, err := Plan(def, schemaName, m.Pick, m.Omit, src)
	if err != nil {
		return nil, fmt.Errorf("codegen: %s: %w", m.TypeName, err)
	}

	g := &generator{
		model:      m,
		def:        def,
		schemaName: schemaName,
		plans:      plans,
		file: &File{
			Package: packageName(m),
		},
	}
	g.build()

	bridge := &Bridge{
		SchemaName: schemaName,
		File:       g.file,
		OutputPath: filepath.Join(filepath.Dir(m.FilePath), strings.ToLower(m.TypeName)+"_bridge.gen.go"),
	}
	for _, d := range g.file.Decls {
		sd, isStruct := d.(*StructDecl)
		if !isStruct {
			continue
		}
		bridge.Definitions = append(bridge.Definitions, metadata.StructMetadata{
			Kind:       directive.KindSchema,
			Name:       sd.Name,
			TypeName:   sd.Name,
			RenameAll:  m.RenameAll,
			Package:    g.file.Package,
			ModulePath: m.ModulePath,
			FilePath:   bridge.OutputPath,
			Definition: RenderDecl(sd),
		})
	}
	return bridge, nil
}

type generator struct {
	model      metadata.StructMetadata
	def        *schema.Definition
	schemaName string
	plans      []FieldPlan
	file       *File

	needFmt  bool
	stubDecl *StructDecl
}

func (g *generator) build() {
	needsDB := NeedsDB(g.plans)

	if g.anyParentStub() {
		g.stubDecl = g.parentStubDecl()
		g.file.Decls = append(g.file.Decls, g.stubDecl)
	}
	for _, p := range g.plans {
		if p.Relation != nil && p.Relation.InlineType != "" && p.Strategy != StrategySkip {
			g.file.Decls = append(g.file.Decls, g.projectionDecl(p))
		}
	}
	g.file.Decls = append(g.file.Decls, g.schemaDecl())

	if needsDB {
		g.file.Decls = append(g.file.Decls, g.asyncFunc())
		g.addImport("", "context")
		g.addImport("", ormImport)
	} else {
		g.file.Decls = append(g.file.Decls, g.syncFunc())
	}
	if g.needFmt {
		g.addImport("", "fmt")
	}
	for _, p := range g.plans {
		if p.Relation == nil || p.Strategy == StrategySkip {
			continue
		}
		if p.Relation.TargetPath != g.def.ModulePath &&
			(p.Strategy == StrategySync || p.Strategy == StrategyAsync || g.loadsTarget(p)) {
			g.addImport("", p.Relation.TargetPath)
		}
	}
}

// loadsTarget reports whether the generated loads reference the target's
// model type, which needs the target package imported even for projection
// strategies.
func (g *generator) loadsTarget(p FieldPlan) bool {
	switch p.Strategy {
	case StrategyProjection, StrategyInlineCycle, StrategySync, StrategyAsync:
		return true
	}
	return false
}

func (g *generator) anyParentStub() bool {
	for _, p := range g.plans {
		if p.Relation != nil && p.Relation.NeedsParentStub && p.Strategy != StrategySkip {
			return true
		}
	}
	return false
}

// parentStubDecl declares the degenerate self type used to satisfy a
// required circular back-reference: the plain fields only, relation fields
// dropped so recursion bottoms out.
func (g *generator) parentStubDecl() *StructDecl {
	d := &StructDecl{
		Doc:  []string{fmt.Sprintf("%sParent is a minimal %s view used to fill required back-references.", g.schemaName, g.model.TypeName)},
		Name: g.schemaName + "Parent",
	}
	for _, p := range g.plans {
		if p.Relation != nil {
			continue
		}
		d.Fields = append(d.Fields, g.plainField(p))
	}
	return d
}

// projectionDecl declares the cycle-breaking projection for one relation:
// the target's plain fields, plus the back-reference stub when the target
// requires one.
func (g *generator) projectionDecl(p FieldPlan) *StructDecl {
	rel := p.Relation
	d := &StructDecl{
		Doc: []string{fmt.Sprintf("%s is %s's %s projection of %s, with nested relations dropped.",
			rel.InlineType, g.schemaName, rel.Kind, rel.TargetName)},
		Name: rel.InlineType,
	}
	for _, f := range relation.NonRelationFields(p.Target) {
		if f.Skip {
			continue
		}
		d.Fields = append(d.Fields, StructField{
			Name: f.GoName,
			Type: g.typeString(f.Type, p.Target, rel.TargetPath),
			Tag:  rebuildTag(f),
		})
	}
	if rel.NeedsParentStub {
		d.Fields = append(d.Fields, StructField{
			Name: rel.BackRef,
			Type: g.schemaName + "Parent",
		})
	}
	return d
}

func (g *generator) schemaDecl() *StructDecl {
	d := &StructDecl{
		Doc:  []string{fmt.Sprintf("%s is the API response shape of %s.", g.schemaName, g.model.TypeName)},
		Name: g.schemaName,
	}
	for _, p := range g.plans {
		switch {
		case p.Relation == nil:
			d.Fields = append(d.Fields, g.plainField(p))
		case p.Strategy == StrategySkip:
		default:
			d.Fields = append(d.Fields, StructField{
				Name: p.Name,
				Type: g.relationFieldType(p),
			})
		}
	}
	return d
}

func (g *generator) plainField(p FieldPlan) StructField {
	typ := g.typeString(p.Info.Type, g.def, g.def.ModulePath)
	if p.Strategy == StrategyWrap {
		typ = "*" + typ
	}
	return StructField{Name: p.Name, Type: typ, Tag: rebuildTag(p.Info)}
}

// typeString renders a field type for the generated file. Types copied out
// of another package's source need requalification: an unqualified named
// type gains that package's qualifier, and a package-qualified type has its
// import resolved through the declaring file's import table.
func (g *generator) typeString(expr ast.Expr, owner *schema.Definition, ownerPath string) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "*" + g.typeString(t.X, owner, ownerPath)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + g.typeString(t.Elt, owner, ownerPath)
		}
		return "[" + exprString(t.Len) + "]" + g.typeString(t.Elt, owner, ownerPath)
	case *ast.MapType:
		return "map[" + g.typeString(t.Key, owner, ownerPath) + "]" + g.typeString(t.Value, owner, ownerPath)
	case *ast.Ident:
		if ownerPath == "" || ownerPath == g.def.ModulePath ||
			typeinfo.IsPrimitive(t) || t.Name == "error" || t.Name == "any" {
			return t.Name
		}
		g.addImport("", ownerPath)
		return lastSegment(ownerPath) + "." + t.Name
	case *ast.SelectorExpr:
		if q, ok := t.X.(*ast.Ident); ok && owner != nil {
			if path, found := owner.Imports[q.Name]; found {
				if path == g.def.ModulePath {
					return t.Sel.Name
				}
				alias := ""
				if lastSegment(path) != q.Name {
					alias = q.Name
				}
				g.addImport(alias, path)
			}
		}
		return exprString(t)
	default:
		return exprString(expr)
	}
}

// relationFieldType picks the schema struct's type for a relation field:
// projections use the generated inline type, delegating strategies use the
// target's schema type, and single optional relations become pointers.
func (g *generator) relationFieldType(p FieldPlan) string {
	rel := p.Relation
	var base string
	switch p.Strategy {
	case StrategyProjection, StrategyInlineCycle:
		base = rel.InlineType
	default:
		base = g.qualified(rel.TargetPath, p.Target.Name)
	}
	if rel.Kind == relation.HasMany {
		return "[]" + base
	}
	if rel.Optional {
		return "*" + base
	}
	return base
}

// qualified prefixes a name with the target package's qualifier when the
// target lives in a different package.
func (g *generator) qualified(targetPath, name string) string {
	if targetPath == g.def.ModulePath || targetPath == "" {
		return name
	}
	return lastSegment(targetPath) + "." + name
}

// syncFunc emits the plain constructor used when the model has no relation
// fields to load.
func (g *generator) syncFunc() *FuncDecl {
	return &FuncDecl{
		Doc:     []string{fmt.Sprintf("New%s converts a %s value into its API shape.", g.schemaName, g.model.TypeName)},
		Name:    "New" + g.schemaName,
		Params:  []Param{{Name: "m", Type: g.model.TypeName}},
		Results: []string{g.schemaName},
		Body: []Stmt{
			&Return{Values: []Expr{g.composite(nil)}},
		},
	}
}

// asyncFunc emits the bridge that loads every relation before construction.
// Loads are sequenced first; the composite literal only consumes locals.
func (g *generator) asyncFunc() *FuncDecl {
	fn := &FuncDecl{
		Doc: []string{fmt.Sprintf("%sFromModel bridges a %s row into %s, resolving its relations through db.",
			g.schemaName, g.model.TypeName, g.schemaName)},
		Name: g.schemaName + "FromModel",
		Params: []Param{
			{Name: "ctx", Type: "context.Context"},
			{Name: "db", Type: "orm.DB"},
			{Name: "m", Type: g.model.TypeName},
		},
		Results: []string{g.schemaName, "error"},
	}

	locals := map[string]Expr{}
	if g.stubDecl != nil {
		fn.Body = append(fn.Body, &Assign{
			LHS: []string{"parent"},
			Op:  ":=",
			RHS: g.stubComposite(),
		})
	}
	for _, p := range g.plans {
		if p.Relation == nil || p.Strategy == StrategySkip {
			continue
		}
		stmts, value := g.relationStmts(p)
		fn.Body = append(fn.Body, stmts...)
		locals[p.Name] = value
	}
	fn.Body = append(fn.Body, &Return{Values: []Expr{g.composite(locals), Ident("nil")}})
	return fn
}

// relationStmts emits the load-and-convert sequence for one relation field
// and returns the local expression the final composite uses.
func (g *generator) relationStmts(p FieldPlan) ([]Stmt, Expr) {
	rel := p.Relation
	relVar := "rel" + p.Name
	fldVar := "fld" + p.Name
	entity := g.qualified(rel.TargetPath, rel.TargetName)

	if rel.Kind == relation.HasMany {
		return g.hasManyStmts(p, relVar, fldVar, entity), Ident(fldVar)
	}

	stmts := []Stmt{
		&Assign{
			LHS: []string{relVar, "err"},
			Op:  ":=",
			RHS: &Call{
				Fun:  Ident(fmt.Sprintf("orm.LoadOne[%s]", entity)),
				Args: []Expr{Ident("ctx"), Ident("db"), Ident("m"), Lit(fmt.Sprintf("%q", rel.Name))},
			},
		},
		g.errCheck(Ident("err")),
	}

	if !rel.Optional {
		g.needFmt = true
		stmts = append(stmts, &If{
			Cond: &Binary{Op: "==", X: Ident(relVar), Y: Ident("nil")},
			Then: []Stmt{&Return{Values: []Expr{
				&Composite{Type: g.schemaName},
				&Call{
					Fun: Ident("fmt.Errorf"),
					Args: []Expr{
						Lit(`"required relation %q not found: %w"`),
						Lit(fmt.Sprintf("%q", rel.Name)),
						Ident("orm.ErrNotFound"),
					},
				},
			}}},
		})
		stmts = append(stmts, g.convertSingle(p, relVar, fldVar, false)...)
		return stmts, Ident(fldVar)
	}

	stmts = append(stmts, &Var{Name: fldVar, Type: "*" + g.singleType(p)})
	stmts = append(stmts, &If{
		Cond: &Binary{Op: "!=", X: Ident(relVar), Y: Ident("nil")},
		Then: g.convertSingle(p, relVar, fldVar, true),
	})
	return stmts, Ident(fldVar)
}

// convertSingle emits the conversion of one loaded row. In the optional
// form the result is taken by address into the pointer local.
func (g *generator) convertSingle(p FieldPlan, relVar, fldVar string, optional bool) []Stmt {
	rel := p.Relation
	deref := &Unary{Op: "*", X: Ident(relVar)}

	var value Expr
	var stmts []Stmt
	switch p.Strategy {
	case StrategySync:
		value = &Call{
			Fun:  Ident(g.qualified(rel.TargetPath, "New"+p.Target.Name)),
			Args: []Expr{deref},
		}
	case StrategyAsync:
		call := &Call{
			Fun:  Ident(g.qualified(rel.TargetPath, p.Target.Name+"FromModel")),
			Args: []Expr{Ident("ctx"), Ident("db"), deref},
		}
		if optional {
			stmts = append(stmts,
				&Assign{LHS: []string{"v", "err"}, Op: ":=", RHS: call},
				g.errCheck(Ident("err")),
				&Assign{LHS: []string{fldVar}, Op: "=", RHS: &Unary{Op: "&", X: Ident("v")}},
			)
			return stmts
		}
		stmts = append(stmts,
			&Assign{LHS: []string{fldVar, "err"}, Op: ":=", RHS: call},
			g.errCheck(Ident("err")),
		)
		return stmts
	default: // projection and inline-cycle construction
		value = g.projectionComposite(p, relVar)
	}

	if optional {
		return []Stmt{
			&Assign{LHS: []string{"v"}, Op: ":=", RHS: value},
			&Assign{LHS: []string{fldVar}, Op: "=", RHS: &Unary{Op: "&", X: Ident("v")}},
		}
	}
	return []Stmt{&Assign{LHS: []string{fldVar}, Op: ":=", RHS: value}}
}

// hasManyStmts loads all related rows eagerly and converts each one.
func (g *generator) hasManyStmts(p FieldPlan, relVar, fldVar, entity string) []Stmt {
	rel := p.Relation
	elemType := g.manyElemType(p)

	stmts := []Stmt{
		&Assign{
			LHS: []string{relVar, "err"},
			Op:  ":=",
			RHS: &Call{
				Fun:  Ident(fmt.Sprintf("orm.LoadAll[%s]", entity)),
				Args: []Expr{Ident("ctx"), Ident("db"), Ident("m"), Lit(fmt.Sprintf("%q", rel.Name))},
			},
		},
		g.errCheck(Ident("err")),
		&Assign{
			LHS: []string{fldVar},
			Op:  ":=",
			RHS: &Call{
				Fun:  Ident("make"),
				Args: []Expr{Ident("[]" + elemType), Lit("0"), &Call{Fun: Ident("len"), Args: []Expr{Ident(relVar)}}},
			},
		},
	}

	appendTo := func(v Expr) Stmt {
		return &Assign{
			LHS: []string{fldVar},
			Op:  "=",
			RHS: &Call{Fun: Ident("append"), Args: []Expr{Ident(fldVar), v}},
		}
	}

	var body []Stmt
	switch p.Strategy {
	case StrategySync:
		body = []Stmt{appendTo(&Call{
			Fun:  Ident(g.qualified(rel.TargetPath, "New"+p.Target.Name)),
			Args: []Expr{Ident("r")},
		})}
	case StrategyAsync:
		body = []Stmt{
			&Assign{
				LHS: []string{"v", "err"},
				Op:  ":=",
				RHS: &Call{
					Fun:  Ident(g.qualified(rel.TargetPath, p.Target.Name+"FromModel")),
					Args: []Expr{Ident("ctx"), Ident("db"), Ident("r")},
				},
			},
			g.errCheck(Ident("err")),
			appendTo(Ident("v")),
		}
	default:
		body = []Stmt{appendTo(g.projectionComposite(p, "r"))}
	}

	stmts = append(stmts, &Range{Value: "r", Over: Ident(relVar), Body: body})
	return stmts
}

// projectionComposite builds an inline projection literal from the loaded
// row's included fields, adding the parent stub back-reference when the
// target requires it.
func (g *generator) projectionComposite(p FieldPlan, rowVar string) Expr {
	rel := p.Relation
	c := &Composite{Type: rel.InlineType}
	for _, name := range rel.IncludedFields {
		c.Elems = append(c.Elems, KV{Key: name, Value: &Sel{X: Ident(rowVar), Name: name}})
	}
	if rel.NeedsParentStub {
		c.Elems = append(c.Elems, KV{Key: rel.BackRef, Value: Ident("parent")})
	}
	return c
}

func (g *generator) stubComposite() Expr {
	c := &Composite{Type: g.schemaName + "Parent"}
	for _, p := range g.plans {
		if p.Relation != nil {
			continue
		}
		c.Elems = append(c.Elems, KV{Key: p.Name, Value: g.plainValue(p)})
	}
	return c
}

// composite builds the final schema literal. Plain fields read from the
// model directly; relation fields consume the locals produced by the load
// sequence.
func (g *generator) composite(locals map[string]Expr) Expr {
	c := &Composite{Type: g.schemaName}
	for _, p := range g.plans {
		switch {
		case p.Relation == nil:
			c.Elems = append(c.Elems, KV{Key: p.Name, Value: g.plainValue(p)})
		case p.Strategy == StrategySkip:
		default:
			if v, ok := locals[p.Name]; ok {
				c.Elems = append(c.Elems, KV{Key: p.Name, Value: v})
			}
		}
	}
	return c
}

func (g *generator) plainValue(p FieldPlan) Expr {
	v := &Sel{X: Ident("m"), Name: p.Name}
	if p.Strategy == StrategyWrap {
		return &Unary{Op: "&", X: v}
	}
	return v
}

func (g *generator) singleType(p FieldPlan) string {
	switch p.Strategy {
	case StrategyProjection, StrategyInlineCycle:
		return p.Relation.InlineType
	default:
		return g.qualified(p.Relation.TargetPath, p.Target.Name)
	}
}

func (g *generator) manyElemType(p FieldPlan) string {
	return g.singleType(p)
}

func (g *generator) errCheck(err Expr) Stmt {
	return &If{
		Cond: &Binary{Op: "!=", X: err, Y: Ident("nil")},
		Then: []Stmt{&Return{Values: []Expr{&Composite{Type: g.schemaName}, err}}},
	}
}

func (g *generator) addImport(alias, path string) {
	for _, imp := range g.file.Imports {
		if imp.Path == path {
			return
		}
	}
	g.file.Imports = append(g.file.Imports, Import{Alias: alias, Path: path})
}

// rebuildTag reconstructs the serialization-relevant struct tag of a model
// field for the generated schema struct.
func rebuildTag(f schema.FieldInfo) string {
	var parts []string
	if f.JSONName != "" || f.OmitEmpty {
		v := f.JSONName
		if f.OmitEmpty {
			v += ",omitempty"
		}
		parts = append(parts, fmt.Sprintf("json:%q", v))
	}
	if f.Default != "" {
		parts = append(parts, fmt.Sprintf("default:%q", f.Default))
	}
	return strings.Join(parts, " ")
}

func exprString(e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), e); err != nil {
		return ""
	}
	return buf.String()
}

func packageName(m metadata.StructMetadata) string {
	if m.Package != "" {
		return m.Package
	}
	return lastSegment(m.ModulePath)
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
