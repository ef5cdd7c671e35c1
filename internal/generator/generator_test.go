package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dev-five-git/vespera/internal/config"
)

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

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, map[string]string{
		"api/handlers.go": `package api

// Fetches one memo by id.
//vespera:route method=get path=/memos/:id tags=memo
func GetMemo(id web.Path[int]) (MemoSchema, error) {
	return MemoSchema{}, nil
}
`,
		"entity/memo.go": `package entity

//vespera:model
type Memo struct {
	ID    int
	Title string
}
`,
	})

	cfg := config.Default()
	cfg.Info.Title = "Memo Service"
	if err := Run(dir, cfg, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bridge, err := os.ReadFile(filepath.Join(dir, "entity", "memo_bridge.gen.go"))
	if err != nil {
		t.Fatalf("bridge file not written: %v", err)
	}
	for _, want := range []string{
		"package entity",
		"type MemoSchema struct {",
		"func NewMemoSchema(m Memo) MemoSchema {",
	} {
		if !strings.Contains(string(bridge), want) {
			t.Errorf("bridge missing %q:\n%s", want, bridge)
		}
	}

	doc, err := os.ReadFile(filepath.Join(dir, "openapi.yaml"))
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	for _, want := range []string{
		"openapi: 3.1.0",
		"title: Memo Service",
		"/memos/{id}:",
		"operationId: GetMemo",
		"$ref: '#/components/schemas/MemoSchema'",
	} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	// A second run over the now-generated tree must not duplicate anything.
	if err := Run(dir, cfg, Options{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func TestRunOutputOverride(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, map[string]string{
		"api/handlers.go": `package api

//vespera:route method=get path=/ping
func Ping() error { return nil }
`,
	})

	if err := Run(dir, config.Default(), Options{Output: filepath.Join("docs", "api.yaml")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docs", "api.yaml")); err != nil {
		t.Errorf("override path not written: %v", err)
	}
}
