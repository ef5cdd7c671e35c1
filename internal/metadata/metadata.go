// Package metadata holds the intermediate records collected while scanning
// a target project and the registry that aggregates them. The registry has
// a collect phase and a freeze phase: scanners append records under a lock,
// then Freeze parses every stored definition once and returns a read-only
// snapshot for the assembler and the code generator.
package metadata

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"sync"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/schema"
)

// RouteMetadata records one annotated handler function.
type RouteMetadata struct {
	Method      string
	Path        string
	FuncName    string
	ModulePath  string
	FilePath    string
	Signature   string
	Summary     string
	Description string
	Tags        []string
}

// StructMetadata records one annotated type declaration: its directive
// kind, the component name it will publish under, and the raw definition
// text to be re-parsed at assembly time.
type StructMetadata struct {
	Kind        directive.Kind
	Name        string
	TypeName    string
	RenameAll   string
	Package     string
	ModulePath  string
	FilePath    string
	Definition  string
	Description string
	Imports     map[string]string

	// Model directive extras.
	Pick []string
	Omit []string
}

// Registry aggregates records during the collect phase. Appends serialize
// through the mutex; reads happen only on the frozen snapshot.
type Registry struct {
	mu      sync.Mutex
	routes  []RouteMetadata
	structs []StructMetadata
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) AddRoute(m RouteMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("metadata: registry is frozen")
	}
	r.routes = append(r.routes, m)
	return nil
}

func (r *Registry) AddStruct(m StructMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("metadata: registry is frozen")
	}
	r.structs = append(r.structs, m)
	return nil
}

// Freeze ends the collect phase. Every stored definition is parsed exactly
// once; parse failures and duplicate component names fail the freeze.
func (r *Registry) Freeze() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true

	snap := &Snapshot{
		routes:  append([]RouteMetadata(nil), r.routes...),
		structs: append([]StructMetadata(nil), r.structs...),
		defs:    make(map[string]*schema.Definition),
		byType:  make(map[string]*schema.Definition),
	}
	for i := range snap.structs {
		m := &snap.structs[i]
		def, err := parseDefinition(m)
		if err != nil {
			return nil, fmt.Errorf("metadata: %s: %s: %w", m.FilePath, m.TypeName, err)
		}
		if _, dup := snap.defs[def.Name]; dup {
			return nil, fmt.Errorf("metadata: duplicate component name %q (%s)", def.Name, m.FilePath)
		}
		snap.defs[def.Name] = def
		snap.byType[m.TypeName] = def
	}
	return snap, nil
}

// Snapshot is the read-only view produced by Freeze. It satisfies
// schema.DefinitionSource.
type Snapshot struct {
	routes  []RouteMetadata
	structs []StructMetadata
	defs    map[string]*schema.Definition
	byType  map[string]*schema.Definition
}

// Lookup resolves a component or declared type name to its definition.
func (s *Snapshot) Lookup(name string) (*schema.Definition, bool) {
	if def, ok := s.defs[name]; ok {
		return def, true
	}
	def, ok := s.byType[name]
	return def, ok
}

// Routes returns the collected route records in collection order.
func (s *Snapshot) Routes() []RouteMetadata {
	return s.routes
}

// Structs returns every collected struct record, optionally filtered by
// directive kind.
func (s *Snapshot) Structs(kind directive.Kind) []StructMetadata {
	if kind == directive.KindNone {
		return s.structs
	}
	var out []StructMetadata
	for _, m := range s.structs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Definitions returns every parsed definition sorted by component name.
func (s *Snapshot) Definitions() []*schema.Definition {
	out := make([]*schema.Definition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByModule returns definitions declared in the package with the given
// import path.
func (s *Snapshot) ByModule(path string) []*schema.Definition {
	var out []*schema.Definition
	for _, def := range s.Definitions() {
		if def.ModulePath == path {
			out = append(out, def)
		}
	}
	return out
}

// FuncDecl re-parses a route's stored signature text. The stored text has
// no body, so a placeholder one is appended for the parser's benefit.
func (s *Snapshot) FuncDecl(r RouteMetadata) (*ast.FuncDecl, error) {
	fset := token.NewFileSet()
	src := "package p\n\n" + r.Signature + " { panic(0) }"
	file, err := parser.ParseFile(fset, r.FilePath, src, 0)
	if err != nil {
		return nil, fmt.Errorf("metadata: re-parse %s: %w", r.FuncName, err)
	}
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			return fd, nil
		}
	}
	return nil, fmt.Errorf("metadata: %s: no function declaration in stored signature", r.FuncName)
}

// parseDefinition turns a stored record back into the parsed form schema
// synthesis consumes. Enum records carry the type declaration and its
// constant block in one text.
func parseDefinition(m *StructMetadata) (*schema.Definition, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, m.FilePath, "package p\n\n"+m.Definition, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	def := &schema.Definition{
		Name:        m.Name,
		TypeName:    m.TypeName,
		RenameAll:   m.RenameAll,
		Description: m.Description,
		ModulePath:  m.ModulePath,
		Imports:     m.Imports,
	}
	switch m.Kind {
	case directive.KindEnum:
		def.Kind = schema.DefEnum
	case directive.KindUnion:
		def.Kind = schema.DefUnion
	default:
		def.Kind = schema.DefStruct
	}

	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		switch gd.Tok {
		case token.TYPE:
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || ts.Name.Name != m.TypeName {
					continue
				}
				def.Type = ts.Type
				if ts.TypeParams != nil {
					for _, p := range ts.TypeParams.List {
						for _, n := range p.Names {
							def.TypeParams = append(def.TypeParams, n.Name)
						}
					}
				}
			}
		case token.CONST:
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				rename, _ := directive.VariantRename(vs.Doc)
				doc := directive.DocText(vs.Doc)
				for _, n := range vs.Names {
					if n.Name == "_" {
						continue
					}
					def.Variants = append(def.Variants, schema.Variant{
						Name:   n.Name,
						Rename: rename,
						Doc:    doc,
					})
				}
			}
		}
	}
	if def.Type == nil {
		return nil, fmt.Errorf("definition text does not declare type %s", m.TypeName)
	}
	return def, nil
}
