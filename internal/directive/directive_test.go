package directive

import (
	"go/ast"
	"testing"
)

func group(lines ...string) *ast.CommentGroup {
	g := &ast.CommentGroup{}
	for _, l := range lines {
		g.List = append(g.List, &ast.Comment{Text: l})
	}
	return g
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      *ast.CommentGroup
		wantKind Kind
		wantArgs map[string]string
		wantSum  string
		wantErr  bool
	}{
		{
			name:     "route with args",
			doc:      group("// Lists all memos.", "//vespera:route method=get path=/memos tags=memo,public"),
			wantKind: KindRoute,
			wantArgs: map[string]string{"method": "get", "path": "/memos", "tags": "memo,public"},
			wantSum:  "Lists all memos.",
		},
		{
			name:     "schema bare",
			doc:      group("//vespera:schema"),
			wantKind: KindSchema,
			wantArgs: map[string]string{},
		},
		{
			name:     "schema with rename policy",
			doc:      group("//vespera:schema name=MemoOut rename_all=camelCase"),
			wantKind: KindSchema,
			wantArgs: map[string]string{"name": "MemoOut", "rename_all": "camelCase"},
		},
		{
			name:     "model directive",
			doc:      group("//vespera:model name=MemoSchema pick=ID,Title omit=Secret"),
			wantKind: KindModel,
			wantArgs: map[string]string{"name": "MemoSchema", "pick": "ID,Title", "omit": "Secret"},
		},
		{
			name: "no directive",
			doc:  group("// just a comment"),
		},
		{
			name: "nil group",
		},
		{
			name: "unknown directive ignored",
			doc:  group("//vespera:frobnicate x=1"),
		},
		{
			name:    "duplicate argument",
			doc:     group("//vespera:route method=get method=post path=/x"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := Parse(tt.doc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if tt.wantKind == KindNone {
				if d != nil {
					t.Fatalf("got %+v, want nil", d)
				}
				return
			}
			if d == nil {
				t.Fatal("got nil directive")
			}
			if d.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", d.Kind, tt.wantKind)
			}
			if len(d.Args) != len(tt.wantArgs) {
				t.Errorf("Args = %v, want %v", d.Args, tt.wantArgs)
			}
			for k, v := range tt.wantArgs {
				if d.Args[k] != v {
					t.Errorf("Args[%q] = %q, want %q", k, d.Args[k], v)
				}
			}
			if d.Summary != tt.wantSum {
				t.Errorf("Summary = %q, want %q", d.Summary, tt.wantSum)
			}
		})
	}
}

func TestVariantRename(t *testing.T) {
	t.Parallel()

	if v, ok := VariantRename(group("//vespera:rename=in-progress")); !ok || v != "in-progress" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if _, ok := VariantRename(group("// nothing here")); ok {
		t.Fatal("unexpected rename")
	}
	if _, ok := VariantRename(nil); ok {
		t.Fatal("unexpected rename from nil group")
	}
}

func TestDocText(t *testing.T) {
	t.Parallel()

	got := DocText(group("// The current state.", "//vespera:enum", "//"))
	if got != "The current state." {
		t.Fatalf("got %q", got)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	got := List(" a, b ,,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if List("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
