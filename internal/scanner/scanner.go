// Package scanner walks a target project's source, finds vespera
// directives and records them into the metadata registry. Packages load in
// syntax-only mode: the scanner never type-checks, it reads shapes and raw
// text off the parse trees.
package scanner

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/metadata"
)

// Error is a scan failure pointing at the offending declaration.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func errAt(pos token.Position, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// httpMethods is the fixed method set accepted by the route directive.
var httpMethods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true, "trace": true,
}

// Scanner collects directive metadata from one project tree.
type Scanner struct {
	fset    *token.FileSet
	exclude []string
	sources map[string][]byte
}

func New(exclude []string) *Scanner {
	return &Scanner{
		fset:    token.NewFileSet(),
		exclude: exclude,
		sources: make(map[string][]byte),
	}
}

// Scan loads every package under dir and records annotated declarations
// into reg. All per-declaration failures are gathered rather than stopping
// at the first.
func (s *Scanner) Scan(dir string, reg *metadata.Registry) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax,
		Dir:  dir,
		Fset: s.fset,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return fmt.Errorf("scanner: load %s: %w", dir, err)
	}

	var errs []error
	for _, pkg := range pkgs {
		for _, perr := range pkg.Errors {
			// Only parse failures are hard errors. Unresolvable imports
			// show up as list errors and do not matter in syntax-only
			// mode.
			if perr.Kind == packages.ParseError {
				errs = append(errs, fmt.Errorf("scanner: %s", perr))
			}
		}
		for _, file := range pkg.Syntax {
			name := s.fset.Position(file.Pos()).Filename
			if s.excluded(name) || strings.HasSuffix(name, ".gen.go") {
				continue
			}
			if err := s.scanFile(pkg, file, reg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Scanner) excluded(path string) bool {
	for _, e := range s.exclude {
		if e != "" && strings.Contains(path, e) {
			return true
		}
	}
	return false
}

func (s *Scanner) scanFile(pkg *packages.Package, file *ast.File, reg *metadata.Registry) error {
	var errs []error
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if err := s.scanFunc(pkg, d, reg); err != nil {
				errs = append(errs, err)
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			if err := s.scanType(pkg, file, d, reg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Scanner) scanFunc(pkg *packages.Package, fd *ast.FuncDecl, reg *metadata.Registry) error {
	d, err := directive.Parse(fd.Doc)
	if err != nil {
		return errAt(s.fset.Position(fd.Pos()), "%s: %v", fd.Name.Name, err)
	}
	if d == nil || d.Kind != directive.KindRoute {
		return nil
	}
	pos := s.fset.Position(fd.Pos())

	method := strings.ToLower(d.Args["method"])
	if !httpMethods[method] {
		return errAt(pos, "route %s: unknown HTTP method %q", fd.Name.Name, d.Args["method"])
	}
	path := d.Args["path"]
	if path == "" {
		return errAt(pos, "route %s: missing path argument", fd.Name.Name)
	}
	if !ast.IsExported(fd.Name.Name) {
		return errAt(pos, "route %s: handler must be exported", fd.Name.Name)
	}
	if fd.Recv != nil {
		return errAt(pos, "route %s: handler must be a top-level function", fd.Name.Name)
	}

	sig, err := s.text(fd.Pos(), fd.Type.End())
	if err != nil {
		return errAt(pos, "route %s: %v", fd.Name.Name, err)
	}
	return reg.AddRoute(metadata.RouteMetadata{
		Method:      method,
		Path:        path,
		FuncName:    fd.Name.Name,
		ModulePath:  pkg.PkgPath,
		FilePath:    pos.Filename,
		Signature:   sig,
		Summary:     d.Summary,
		Description: d.Description,
		Tags:        directive.List(d.Args["tags"]),
	})
}

func (s *Scanner) scanType(pkg *packages.Package, file *ast.File, gd *ast.GenDecl, reg *metadata.Registry) error {
	d, err := directive.Parse(gd.Doc)
	if err != nil {
		return errAt(s.fset.Position(gd.Pos()), "%v", err)
	}
	if d == nil {
		return nil
	}
	switch d.Kind {
	case directive.KindSchema, directive.KindEnum, directive.KindUnion, directive.KindModel:
	default:
		return nil
	}
	pos := s.fset.Position(gd.Pos())
	ts, ok := firstTypeSpec(gd)
	if !ok {
		return errAt(pos, "directive must annotate a type declaration")
	}

	text, err := s.text(gd.Pos(), gd.End())
	if err != nil {
		return errAt(pos, "%s: %v", ts.Name.Name, err)
	}
	if d.Kind == directive.KindEnum {
		constText, err := s.enumConstText(file, ts.Name.Name)
		if err != nil {
			return errAt(pos, "enum %s: %v", ts.Name.Name, err)
		}
		text += "\n\n" + constText
	}

	name := d.Args["name"]
	if name == "" {
		name = ts.Name.Name
		if d.Kind == directive.KindModel {
			name += "Schema"
		}
	}
	return reg.AddStruct(metadata.StructMetadata{
		Kind:        d.Kind,
		Name:        name,
		TypeName:    ts.Name.Name,
		RenameAll:   d.Args["rename_all"],
		Package:     pkg.Name,
		ModulePath:  pkg.PkgPath,
		FilePath:    pos.Filename,
		Definition:  text,
		Description: d.Description,
		Imports:     importTable(file),
		Pick:        directive.List(d.Args["pick"]),
		Omit:        directive.List(d.Args["omit"]),
	})
}

// enumConstText finds the constant block declaring values of the enum type
// in the same file and returns its raw text.
func (s *Scanner) enumConstText(file *ast.File, typeName string) (string, error) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || vs.Type == nil {
				continue
			}
			if id, isID := vs.Type.(*ast.Ident); isID && id.Name == typeName {
				return s.text(gd.Pos(), gd.End())
			}
		}
	}
	return "", fmt.Errorf("no constant block of type %s in the same file", typeName)
}

// text slices the raw source between two positions, loading and caching
// the file's bytes on first use.
func (s *Scanner) text(from, to token.Pos) (string, error) {
	start := s.fset.Position(from)
	end := s.fset.Position(to)
	src, ok := s.sources[start.Filename]
	if !ok {
		var err error
		src, err = os.ReadFile(start.Filename)
		if err != nil {
			return "", err
		}
		s.sources[start.Filename] = src
	}
	if start.Offset < 0 || end.Offset > len(src) || start.Offset > end.Offset {
		return "", fmt.Errorf("position out of range for %s", start.Filename)
	}
	return string(src[start.Offset:end.Offset]), nil
}

// importTable maps the package qualifiers usable in this file to their
// import paths.
func importTable(file *ast.File) map[string]string {
	out := make(map[string]string, len(file.Imports))
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				continue
			}
			name = imp.Name.Name
		}
		out[name] = path
	}
	return out
}

func firstTypeSpec(gd *ast.GenDecl) (*ast.TypeSpec, bool) {
	for _, spec := range gd.Specs {
		if ts, ok := spec.(*ast.TypeSpec); ok {
			return ts, true
		}
	}
	return nil, false
}
