// Package relation analyzes the foreign-key relation fields of model
// definitions: which kind of relation each field declares, where its target
// entity lives, whether the relation is required, and whether following it
// would re-enter a definition already on the current traversal path. Cycle
// detection is textual by design; there is no type checker at this stage.
package relation

import (
	"fmt"
	"go/ast"
	"strings"
	"unicode"

	"github.com/dev-five-git/vespera/internal/schema"
	"github.com/dev-five-git/vespera/internal/typeinfo"
)

// Kind is the closed set of relation forms.
type Kind int

const (
	HasOne Kind = iota
	HasMany
	BelongsTo
)

func (k Kind) String() string {
	switch k {
	case HasOne:
		return "HasOne"
	case HasMany:
		return "HasMany"
	case BelongsTo:
		return "BelongsTo"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field describes one analyzed relation field. It is consumed immediately
// by the construction-strategy generator and not persisted.
type Field struct {
	Name       string
	Kind       Kind
	TargetName string
	TargetPath string
	From       string

	// Optional is never set for HasMany; an empty collection models
	// absence.
	Optional bool

	// Circular marks a relation whose target is already on the traversal
	// path. InlineType and IncludedFields describe the cycle-breaking
	// projection built in its place.
	Circular       bool
	InlineType     string
	IncludedFields []string

	// NeedsParentStub is set on a HasMany whose target carries a required
	// circular back-reference to this definition; BackRef names that field
	// on the target.
	NeedsParentStub bool
	BackRef         string
}

// Analyze inspects every relation field of a model definition. schemaName
// names the generated schema struct and seeds projection type names; path
// lists the module paths already visited, outermost first, and must include
// def's own module.
func Analyze(def *schema.Definition, schemaName string, path []string, src schema.DefinitionSource) ([]Field, error) {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return nil, fmt.Errorf("relation: %s is not a struct definition", def.Name)
	}
	var out []Field
	for _, f := range schema.Fields(st) {
		kind, targetExpr, ok := relationType(f.Type)
		if !ok {
			continue
		}
		tag := ormTag(f)
		fld := Field{
			Name:       f.GoName,
			Kind:       kind,
			TargetName: typeinfo.LastSegment(targetExpr),
			From:       tag["from"],
		}
		fld.TargetPath = resolveTarget(tag["target"], targetExpr, def)
		if kind != HasMany {
			fld.Optional = isOptional(st, fld.From)
		}

		if onPath(path, fld.TargetPath, fld.TargetName) {
			fld.Circular = true
		}

		target, found := lookupTarget(src, fld.TargetName)
		if found && !fld.Circular {
			nextPath := append(append([]string(nil), path...), fld.TargetPath)
			circular := CircularFields(target, nextPath, src)
			if len(circular) > 0 {
				fld.InlineType = schemaName + "Rel" + fld.Name
				fld.IncludedFields = nonRelationFieldNames(target)
			}
			if kind == HasMany {
				if back, ok := requiredCircularBack(target, nextPath, src); ok {
					fld.NeedsParentStub = true
					fld.BackRef = back
				}
			}
		}
		if fld.Circular {
			fld.InlineType = schemaName + "Rel" + fld.Name
			if found {
				fld.IncludedFields = nonRelationFieldNames(target)
			}
		}
		out = append(out, fld)
	}
	return out, nil
}

// CircularFields returns the names of target's relation fields whose own
// target is already on the traversal path. HasMany fields never count: they
// are excluded from generated projections, so they cannot close a cycle in
// the output.
func CircularFields(target *schema.Definition, path []string, src schema.DefinitionSource) []string {
	st, ok := target.Type.(*ast.StructType)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range schema.Fields(st) {
		kind, targetExpr, isRel := relationType(f.Type)
		if !isRel || kind == HasMany {
			continue
		}
		tag := ormTag(f)
		targetPath := resolveTarget(tag["target"], targetExpr, target)
		if onPath(path, targetPath, typeinfo.LastSegment(targetExpr)) {
			out = append(out, f.GoName)
		}
	}
	return out
}

// HasFKRelations reports whether a definition declares any relation field.
// Targets without relations get a synchronous constructor; everything else
// needs the asynchronous bridge and a data-access handle.
func HasFKRelations(def *schema.Definition) bool {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return false
	}
	for _, f := range schema.Fields(st) {
		if _, _, isRel := relationType(f.Type); isRel {
			return true
		}
	}
	return false
}

// requiredCircularBack finds a required relation field on target pointing
// back to a definition on the path. Such a back-reference cannot be left
// unset, so the generator must build a parent stub to fill it.
func requiredCircularBack(target *schema.Definition, path []string, src schema.DefinitionSource) (string, bool) {
	st, ok := target.Type.(*ast.StructType)
	if !ok {
		return "", false
	}
	circular := map[string]bool{}
	for _, name := range CircularFields(target, path, src) {
		circular[name] = true
	}
	for _, f := range schema.Fields(st) {
		if !circular[f.GoName] {
			continue
		}
		tag := ormTag(f)
		if !isOptional(st, tag["from"]) {
			return f.GoName, true
		}
	}
	return "", false
}

// NonRelationFields returns the plain data fields of a definition, the
// material a projection or parent stub is built from.
func NonRelationFields(def *schema.Definition) []schema.FieldInfo {
	st, ok := def.Type.(*ast.StructType)
	if !ok {
		return nil
	}
	var out []schema.FieldInfo
	for _, f := range schema.Fields(st) {
		if _, _, isRel := relationType(f.Type); isRel {
			continue
		}
		out = append(out, f)
	}
	return out
}

func nonRelationFieldNames(def *schema.Definition) []string {
	fields := NonRelationFields(def)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.GoName
	}
	return out
}

// relationType recognizes a relation marker field and unwraps its target
// type argument.
func relationType(expr ast.Expr) (Kind, ast.Expr, bool) {
	var kind Kind
	switch typeinfo.LastSegment(expr) {
	case typeinfo.RelationHasOne:
		kind = HasOne
	case typeinfo.RelationHasMany:
		kind = HasMany
	case typeinfo.RelationBelongsTo:
		kind = BelongsTo
	default:
		return 0, nil, false
	}
	args := typeinfo.TypeArgs(expr)
	if len(args) != 1 {
		return 0, nil, false
	}
	return kind, args[0], true
}

// isOptional locates the named foreign-key field and reports whether it is
// a pointer. A missing FK fails open to optional: the generator must never
// promise required-ness it cannot verify.
func isOptional(st *ast.StructType, fkName string) bool {
	if fkName == "" {
		return true
	}
	for _, f := range schema.Fields(st) {
		if f.GoName != fkName {
			continue
		}
		_, isPtr := typeinfo.Pointer(f.Type)
		return isPtr
	}
	return true
}

// resolveTarget produces the target entity's absolute module path. An
// explicit target tag wins; "../" segments strip trailing segments of the
// current module. Without a tag, a package qualifier resolves through the
// file's import table, falling back to a trailing-segment guess; a bare
// identifier stays in the current module.
func resolveTarget(target string, targetExpr ast.Expr, def *schema.Definition) string {
	if target != "" {
		if !strings.HasPrefix(target, "./") && !strings.HasPrefix(target, "../") {
			return target
		}
		base := def.ModulePath
		rest := target
		for {
			if after, ok := strings.CutPrefix(rest, "../"); ok {
				rest = after
				if i := strings.LastIndex(base, "/"); i >= 0 {
					base = base[:i]
				} else {
					base = ""
				}
				continue
			}
			rest = strings.TrimPrefix(rest, "./")
			break
		}
		return joinPath(base, rest)
	}
	if q := typeinfo.Qualifier(targetExpr); q != "" {
		if p, ok := def.Imports[q]; ok {
			return p
		}
		// Trailing-segment fallback: assume a sibling package.
		base := def.ModulePath
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[:i]
		}
		return joinPath(base, q)
	}
	return def.ModulePath
}

func joinPath(base, rest string) string {
	switch {
	case base == "":
		return rest
	case rest == "":
		return base
	default:
		return base + "/" + rest
	}
}

// onPath reports whether the target is already on the traversal path, by
// trailing path segment or by capitalized-name match.
func onPath(path []string, targetPath, targetName string) bool {
	tail := lastSegment(targetPath)
	for _, p := range path {
		seg := lastSegment(p)
		if seg == "" {
			continue
		}
		if tail != "" && seg == tail {
			return true
		}
		if capitalize(seg) == targetName {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func ormTag(f schema.FieldInfo) map[string]string {
	out := map[string]string{}
	for _, opt := range strings.Split(f.OrmTag, ",") {
		if opt == "" {
			continue
		}
		k, v, _ := strings.Cut(strings.TrimSpace(opt), "=")
		out[k] = v
	}
	return out
}

// lookupTarget resolves the target's registered definition by entity name.
// Model entities register under their declared type name as well as their
// schema component name.
func lookupTarget(src schema.DefinitionSource, name string) (*schema.Definition, bool) {
	if src == nil || name == "" {
		return nil, false
	}
	return src.Lookup(name)
}
