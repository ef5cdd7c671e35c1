package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/metadata"
)

// writeProject lays out a small annotated module on disk.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/target\n\ngo 1.21\n"
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestScanRoutesAndTypes(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, map[string]string{
		"api/handlers.go": `package api

// Lists all memos for the current user.
//vespera:route method=get path=/memos tags=memo
func ListMemos(q web.Query[MemoFilter]) ([]Memo, error) {
	return nil, nil
}

// MemoFilter narrows the memo listing.
//vespera:schema rename_all=snake_case
type MemoFilter struct {
	Keyword  string
	PageSize *int
}

//vespera:enum rename_all=kebab-case
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
)
`,
		"entity/memo.go": `package entity

//vespera:model pick=ID,Title
type Memo struct {
	ID    int
	Title string
}
`,
		"entity/skipme_bridge.gen.go": `package entity

//vespera:schema
type Ghost struct{}
`,
	})

	reg := metadata.NewRegistry()
	if err := New(nil).Scan(dir, reg); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	snap, err := reg.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}

	routes := snap.Routes()
	if len(routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(routes))
	}
	r := routes[0]
	if r.Method != "get" || r.Path != "/memos" || r.FuncName != "ListMemos" {
		t.Errorf("route = %+v", r)
	}
	if len(r.Tags) != 1 || r.Tags[0] != "memo" {
		t.Errorf("tags = %v", r.Tags)
	}
	if r.Summary != "Lists all memos for the current user." {
		t.Errorf("summary = %q", r.Summary)
	}
	if !strings.HasPrefix(r.Signature, "func ListMemos(") || strings.Contains(r.Signature, "{") {
		t.Errorf("signature = %q, want declaration without body", r.Signature)
	}
	if r.ModulePath != "example.com/target/api" {
		t.Errorf("module path = %q", r.ModulePath)
	}

	if _, ok := snap.Lookup("MemoFilter"); !ok {
		t.Error("MemoFilter not registered")
	}
	state, ok := snap.Lookup("State")
	if !ok {
		t.Fatal("State not registered")
	}
	if len(state.Variants) != 2 {
		t.Errorf("enum variants = %d, want 2 (const block not captured)", len(state.Variants))
	}

	// The model registers under its default schema name and its type name.
	memo, ok := snap.Lookup("MemoSchema")
	if !ok {
		t.Fatal("model schema name not registered")
	}
	if memo.Name != "MemoSchema" {
		t.Errorf("name = %q", memo.Name)
	}
	models := snap.Structs(directive.KindModel)
	if len(models) != 1 || len(models[0].Pick) != 2 {
		t.Errorf("models = %+v", models)
	}

	if _, ok := snap.Lookup("Ghost"); ok {
		t.Error("generated files must not be rescanned")
	}
}

func TestScanValidation(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, map[string]string{
		"api/bad.go": `package api

//vespera:route method=fetch path=/x
func Fetch() {}

//vespera:route method=get path=/y
func listThings() {}

//vespera:route method=post path=/ok
func CreateThing() {}
`,
	})

	reg := metadata.NewRegistry()
	err := New(nil).Scan(dir, reg)
	if err == nil {
		t.Fatal("want validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unknown HTTP method") {
		t.Errorf("missing method error in %q", msg)
	}
	if !strings.Contains(msg, "must be exported") {
		t.Errorf("missing exported error in %q", msg)
	}
	if !strings.Contains(msg, "bad.go:") {
		t.Errorf("error should carry a file position, got %q", msg)
	}

	// The valid route is still collected alongside the failures.
	snap, ferr := reg.Freeze()
	if ferr != nil {
		t.Fatalf("Freeze: %v", ferr)
	}
	if len(snap.Routes()) != 1 || snap.Routes()[0].FuncName != "CreateThing" {
		t.Errorf("routes = %+v", snap.Routes())
	}
}

func TestScanExcludesDirectories(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, map[string]string{
		"api/ok.go": `package api

//vespera:route method=get path=/a
func GetA() {}
`,
		"vendorish/skip.go": `package vendorish

//vespera:route method=get path=/b
func GetB() {}
`,
	})

	reg := metadata.NewRegistry()
	if err := New([]string{"vendorish"}).Scan(dir, reg); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	snap, err := reg.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if len(snap.Routes()) != 1 || snap.Routes()[0].FuncName != "GetA" {
		t.Errorf("routes = %+v", snap.Routes())
	}
}
