// Package typeinfo answers purely syntactic questions about type
// expressions: primitive recognition, wrapper detection, and extractor
// identification. It never consults type information, so a user type whose
// name collides with a recognized symbol is misclassified; that trade-off is
// accepted in exchange for working on un-typechecked sources.
package typeinfo

import "go/ast"

// Extractor head symbols, matched against the last path segment of a type
// expression so both Path[T] and web.Path[T] forms are recognized.
const (
	ExtractorPath        = "Path"
	ExtractorQuery       = "Query"
	ExtractorHeader      = "Header"
	ExtractorTypedHeader = "TypedHeader"
	ExtractorJSON        = "JSON"
)

// Relation head symbols from the orm marker package.
const (
	RelationHasOne    = "HasOne"
	RelationHasMany   = "HasMany"
	RelationBelongsTo = "BelongsTo"
)

// LastSegment returns the final identifier of a (possibly qualified,
// possibly generic) type expression, or "" when the expression has no head
// symbol (pointers, slices, maps, anonymous structs).
func LastSegment(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return LastSegment(t.X)
	case *ast.IndexListExpr:
		return LastSegment(t.X)
	case *ast.ParenExpr:
		return LastSegment(t.X)
	}
	return ""
}

// Qualifier returns the package qualifier of a selector-based type
// expression ("time" for time.Time), or "" for unqualified forms.
func Qualifier(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.SelectorExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.IndexExpr:
		return Qualifier(t.X)
	case *ast.IndexListExpr:
		return Qualifier(t.X)
	case *ast.ParenExpr:
		return Qualifier(t.X)
	}
	return ""
}

// TypeArgs returns the type arguments of a generic instantiation, or nil.
func TypeArgs(expr ast.Expr) []ast.Expr {
	switch t := expr.(type) {
	case *ast.IndexExpr:
		return []ast.Expr{t.Index}
	case *ast.IndexListExpr:
		return t.Indices
	case *ast.ParenExpr:
		return TypeArgs(t.X)
	}
	return nil
}

// Pointer unwraps one level of *T. Pointer-ness is the optionality marker.
func Pointer(expr ast.Expr) (ast.Expr, bool) {
	if star, ok := expr.(*ast.StarExpr); ok {
		return star.X, true
	}
	return nil, false
}

// Slice unwraps []T. Fixed-length arrays are reported separately.
func Slice(expr ast.Expr) (ast.Expr, bool) {
	if arr, ok := expr.(*ast.ArrayType); ok && arr.Len == nil {
		return arr.Elt, true
	}
	return nil, false
}

// Array unwraps a fixed-length [N]T.
func Array(expr ast.Expr) (ast.Expr, bool) {
	if arr, ok := expr.(*ast.ArrayType); ok && arr.Len != nil {
		return arr.Elt, true
	}
	return nil, false
}

// IsMapType reports whether the expression is one of the opaque map forms:
// a map literal or url.Values. These cannot be enumerated as named
// parameters and callers skip them.
func IsMapType(expr ast.Expr) bool {
	if _, ok := expr.(*ast.MapType); ok {
		return true
	}
	return LastSegment(expr) == "Values"
}

// Extractor recognizes an extractor wrapper and returns its head symbol and
// single type argument. The match is on the last path segment only.
func Extractor(expr ast.Expr) (head string, arg ast.Expr, ok bool) {
	switch LastSegment(expr) {
	case ExtractorPath, ExtractorQuery, ExtractorHeader, ExtractorTypedHeader, ExtractorJSON:
	default:
		return "", nil, false
	}
	args := TypeArgs(expr)
	if len(args) != 1 {
		return "", nil, false
	}
	return LastSegment(expr), args[0], true
}

// Primitive maps a recognized primitive type expression to its JSON Schema
// type and format. time.Time maps to a date-time string.
func Primitive(expr ast.Expr) (typ, format string, ok bool) {
	if sel, isSel := expr.(*ast.SelectorExpr); isSel {
		if id, isID := sel.X.(*ast.Ident); isID && id.Name == "time" && sel.Sel.Name == "Time" {
			return "string", "date-time", true
		}
		return "", "", false
	}
	id, isID := expr.(*ast.Ident)
	if !isID {
		return "", "", false
	}
	switch id.Name {
	case "string":
		return "string", "", true
	case "bool":
		return "boolean", "", true
	case "int8", "int16", "int32", "uint8", "uint16", "uint32", "byte", "rune":
		return "integer", "int32", true
	case "int", "int64", "uint", "uint64", "uintptr":
		return "integer", "int64", true
	case "float32":
		return "number", "float", true
	case "float64":
		return "number", "double", true
	}
	return "", "", false
}

// IsPrimitive reports whether the expression is a recognized primitive.
func IsPrimitive(expr ast.Expr) bool {
	_, _, ok := Primitive(expr)
	return ok
}
