package typeinfo

import "go/ast"

// Substitute replaces free occurrences of the named type parameters inside a
// type expression with the corresponding concrete type expressions. The
// input is never mutated; every container on a substitution path is copied.
// Function and interface types pass through unchanged, and parameters with
// no matching name are left alone, so a second application is a no-op.
func Substitute(expr ast.Expr, params []string, concrete []ast.Expr) ast.Expr {
	if len(params) == 0 {
		return expr
	}
	lookup := make(map[string]ast.Expr, len(params))
	for i, p := range params {
		if i < len(concrete) {
			lookup[p] = concrete[i]
		}
	}
	return substitute(expr, lookup)
}

func substitute(expr ast.Expr, lookup map[string]ast.Expr) ast.Expr {
	switch t := expr.(type) {
	case *ast.Ident:
		if repl, ok := lookup[t.Name]; ok {
			return repl
		}
		return t

	case *ast.StarExpr:
		return &ast.StarExpr{X: substitute(t.X, lookup)}

	case *ast.ArrayType:
		return &ast.ArrayType{Len: t.Len, Elt: substitute(t.Elt, lookup)}

	case *ast.MapType:
		return &ast.MapType{
			Key:   substitute(t.Key, lookup),
			Value: substitute(t.Value, lookup),
		}

	case *ast.IndexExpr:
		return &ast.IndexExpr{
			X:     substitute(t.X, lookup),
			Index: substitute(t.Index, lookup),
		}

	case *ast.IndexListExpr:
		indices := make([]ast.Expr, len(t.Indices))
		for i, idx := range t.Indices {
			indices[i] = substitute(idx, lookup)
		}
		return &ast.IndexListExpr{X: substitute(t.X, lookup), Indices: indices}

	case *ast.SelectorExpr:
		// Qualified names never name a type parameter; only the head could,
		// and package qualifiers are not substitutable.
		return t

	case *ast.ParenExpr:
		return &ast.ParenExpr{X: substitute(t.X, lookup)}

	case *ast.StructType:
		if t.Fields == nil || len(t.Fields.List) == 0 {
			return t
		}
		fields := make([]*ast.Field, len(t.Fields.List))
		for i, f := range t.Fields.List {
			clone := *f
			clone.Type = substitute(f.Type, lookup)
			fields[i] = &clone
		}
		return &ast.StructType{Fields: &ast.FieldList{List: fields}}

	case *ast.FuncType, *ast.InterfaceType, *ast.ChanType:
		return t
	}
	return expr
}
