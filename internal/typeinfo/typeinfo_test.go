package typeinfo

import (
	"go/ast"
	"go/parser"
	"go/types"
	"testing"
)

func TestLastSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{"Path", "Path"},
		{"web.Path", "Path"},
		{"web.Path[int]", "Path"},
		{"web.Path[struct{ A int }]", "Path"},
		{"orm.BelongsTo[User]", "BelongsTo"},
		{"(web.Query[Filter])", "Query"},
		{"[]int", ""},
		{"*User", ""},
		{"map[string]string", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			e, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := LastSegment(e); got != tt.want {
				t.Errorf("LastSegment(%s) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src      string
		wantHead string
		wantOK   bool
	}{
		{"web.Path[int]", "Path", true},
		{"Path[int]", "Path", true},
		{"web.Query[MemoFilter]", "Query", true},
		{"web.TypedHeader[Auth]", "TypedHeader", true},
		{"web.JSON[CreateMemo]", "JSON", true},
		{"web.Header[string]", "Header", true},
		{"Path", "", false},
		{"custom.Wrapper[int]", "", false},
		{"int", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			e, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			head, arg, ok := Extractor(e)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if head != tt.wantHead {
				t.Errorf("head = %q, want %q", head, tt.wantHead)
			}
			if ok && arg == nil {
				t.Error("arg is nil for recognized extractor")
			}
		})
	}
}

func TestPrimitive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src        string
		wantType   string
		wantFormat string
		wantOK     bool
	}{
		{"string", "string", "", true},
		{"bool", "boolean", "", true},
		{"int", "integer", "int64", true},
		{"int32", "integer", "int32", true},
		{"int64", "integer", "int64", true},
		{"uint16", "integer", "int32", true},
		{"float32", "number", "float", true},
		{"float64", "number", "double", true},
		{"time.Time", "string", "date-time", true},
		{"time.Duration", "", "", false},
		{"User", "", "", false},
		{"[]byte", "", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			e, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			typ, format, ok := Primitive(e)
			if ok != tt.wantOK || typ != tt.wantType || format != tt.wantFormat {
				t.Errorf("Primitive(%s) = (%q, %q, %v), want (%q, %q, %v)",
					tt.src, typ, format, ok, tt.wantType, tt.wantFormat, tt.wantOK)
			}
		})
	}
}

func TestIsMapType(t *testing.T) {
	t.Parallel()

	for src, want := range map[string]bool{
		"map[string]string": true,
		"map[string]any":    true,
		"url.Values":        true,
		"[]string":          false,
		"MemoFilter":        false,
	} {
		e, err := parser.ParseExpr(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if got := IsMapType(e); got != want {
			t.Errorf("IsMapType(%s) = %v, want %v", src, got, want)
		}
	}
}

func TestSubstitute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		params   []string
		concrete []string
		want     string
	}{
		{
			name:     "slice of pointer round trip",
			src:      "[]*T",
			params:   []string{"T"},
			concrete: []string{"ConcreteX"},
			want:     "[]*ConcreteX",
		},
		{
			name:     "nested generic",
			src:      "Wrapper[[]T]",
			params:   []string{"T"},
			concrete: []string{"Memo"},
			want:     "Wrapper[[]Memo]",
		},
		{
			name:     "map key and value",
			src:      "map[K]*V",
			params:   []string{"K", "V"},
			concrete: []string{"string", "User"},
			want:     "map[string]*User",
		},
		{
			name:     "fixed array",
			src:      "[4]T",
			params:   []string{"T"},
			concrete: []string{"byte"},
			want:     "[4]byte",
		},
		{
			name:     "anonymous struct fields",
			src:      "struct{A T; B int}",
			params:   []string{"T"},
			concrete: []string{"string"},
			want:     "struct{A string; B int}",
		},
		{
			name:     "no matching parameter is identity",
			src:      "[]*Option",
			params:   []string{"T"},
			concrete: []string{"User"},
			want:     "[]*Option",
		},
		{
			name:     "function type passes through",
			src:      "func(T) T",
			params:   []string{"T"},
			concrete: []string{"int"},
			want:     "func(T) T",
		},
		{
			name:     "qualified names untouched",
			src:      "time.Time",
			params:   []string{"Time"},
			concrete: []string{"int"},
			want:     "time.Time",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			var concrete []ast.Expr
			for _, c := range tt.concrete {
				ce, err := parser.ParseExpr(c)
				if err != nil {
					t.Fatalf("parse concrete %q: %v", c, err)
				}
				concrete = append(concrete, ce)
			}
			got := Substitute(e, tt.params, concrete)
			if s := types.ExprString(got); s != tt.want {
				t.Errorf("got %q, want %q", s, tt.want)
			}
			// Substituting again with the same table must not change the
			// result: no free parameter names remain.
			again := Substitute(got, tt.params, concrete)
			if s := types.ExprString(again); s != tt.want {
				t.Errorf("second pass changed result to %q", s)
			}
		})
	}
}
