package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/metadata"
)

func model(name, typeName, module, pkg, def string) metadata.StructMetadata {
	return metadata.StructMetadata{
		Kind:       directive.KindModel,
		Name:       name,
		TypeName:   typeName,
		Package:    pkg,
		ModulePath: module,
		FilePath:   filepath.Join("entity", pkg, strings.ToLower(typeName)+".go"),
		Definition: def,
	}
}

// snapshot registers the classic cyclic pair: User has many Memos, each
// Memo belongs to its User through a required FK, plus a relation-free Tag.
func snapshot(t *testing.T) (*metadata.Snapshot, map[string]metadata.StructMetadata) {
	t.Helper()
	records := map[string]metadata.StructMetadata{
		"User": model("UserSchema", "User", "example.com/app/entity/user", "user", `type User struct {
	ID    int
	Name  string
	Memos orm.HasMany[memo.Memo] `+"`orm:\"target=../memo\"`"+`
}`),
		"Memo": model("MemoSchema", "Memo", "example.com/app/entity/memo", "memo", `type Memo struct {
	ID     int
	Title  string
	Status MemoStatus
	UserID int
	User   orm.BelongsTo[user.User] `+"`orm:\"from=UserID,target=../user\"`"+`
}`),
		"Tag": model("TagSchema", "Tag", "example.com/app/entity/tag", "tag", `type Tag struct {
	ID   int
	Name string `+"`json:\"label\"`"+`
}`),
	}
	reg := metadata.NewRegistry()
	for _, m := range records {
		if err := reg.AddStruct(m); err != nil {
			t.Fatalf("AddStruct: %v", err)
		}
	}
	snap, err := reg.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return snap, records
}

func TestPlanStrategies(t *testing.T) {
	t.Parallel()

	snap, _ := snapshot(t)

	t.Run("plain fields copy", func(t *testing.T) {
		t.Parallel()
		def, _ := snap.Lookup("Tag")
		plans, err := Plan(def, "TagSchema", nil, nil, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(plans) != 2 {
			t.Fatalf("plans = %d, want 2", len(plans))
		}
		for _, p := range plans {
			if p.Strategy != StrategyCopy {
				t.Errorf("%s strategy = %v, want copy", p.Name, p.Strategy)
			}
		}
	})

	t.Run("belongs-to with related target is async", func(t *testing.T) {
		t.Parallel()
		def, _ := snap.Lookup("Memo")
		plans, err := Plan(def, "MemoSchema", nil, nil, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		var rel *FieldPlan
		for i := range plans {
			if plans[i].Name == "User" {
				rel = &plans[i]
			}
		}
		if rel == nil {
			t.Fatal("no plan for User relation")
		}
		if rel.Strategy != StrategyAsync {
			t.Errorf("strategy = %v, want async", rel.Strategy)
		}
	})

	t.Run("has-many into cycle is projection", func(t *testing.T) {
		t.Parallel()
		def, _ := snap.Lookup("User")
		plans, err := Plan(def, "UserSchema", nil, nil, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		var rel *FieldPlan
		for i := range plans {
			if plans[i].Name == "Memos" {
				rel = &plans[i]
			}
		}
		if rel == nil {
			t.Fatal("no plan for Memos relation")
		}
		if rel.Strategy != StrategyProjection {
			t.Errorf("strategy = %v, want projection", rel.Strategy)
		}
		if !rel.Relation.NeedsParentStub {
			t.Error("required back-reference must demand a parent stub")
		}
	})

	t.Run("unresolved target is skipped", func(t *testing.T) {
		t.Parallel()
		reg := metadata.NewRegistry()
		if err := reg.AddStruct(model("LoneSchema", "Lone", "example.com/app/entity/lone", "lone", `type Lone struct {
	ID      int
	Missing orm.HasOne[ghost.Ghost] `+"`orm:\"target=../ghost\"`"+`
}`)); err != nil {
			t.Fatalf("AddStruct: %v", err)
		}
		snap, err := reg.Freeze()
		if err != nil {
			t.Fatalf("Freeze: %v", err)
		}
		def, _ := snap.Lookup("Lone")
		plans, err := Plan(def, "LoneSchema", nil, nil, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		for _, p := range plans {
			if p.Name == "Missing" && p.Strategy != StrategySkip {
				t.Errorf("strategy = %v, want skip", p.Strategy)
			}
		}
	})

	t.Run("pick and omit filter fields", func(t *testing.T) {
		t.Parallel()
		def, _ := snap.Lookup("Tag")
		plans, err := Plan(def, "TagSchema", []string{"ID"}, nil, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(plans) != 1 || plans[0].Name != "ID" {
			t.Errorf("pick plans = %+v", plans)
		}
		plans, err = Plan(def, "TagSchema", nil, []string{"Name"}, snap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(plans) != 1 || plans[0].Name != "ID" {
			t.Errorf("omit plans = %+v", plans)
		}
	})
}

func TestGenerateSyncConstructor(t *testing.T) {
	t.Parallel()

	snap, records := snapshot(t)
	bridge, err := Generate(records["Tag"], snap)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := bridge.Format()
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	text := string(src)

	for _, want := range []string{
		"package tag",
		"type TagSchema struct {",
		"func NewTagSchema(m Tag) TagSchema {",
		"ID:   m.ID,",
		"`json:\"label\"`",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "orm.DB") {
		t.Error("relation-free model must get the synchronous form")
	}
}

func TestGenerateAsyncBridge(t *testing.T) {
	t.Parallel()

	snap, records := snapshot(t)
	bridge, err := Generate(records["Memo"], snap)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := bridge.Format()
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	text := string(src)

	for _, want := range []string{
		"func MemoSchemaFromModel(ctx context.Context, db orm.DB, m Memo) (MemoSchema, error) {",
		`orm.LoadOne[user.User](ctx, db, m, "User")`,
		`fmt.Errorf("required relation %q not found: %w", "User", orm.ErrNotFound)`,
		"user.UserSchemaFromModel(ctx, db, *relUser)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q:\n%s", want, text)
		}
	}
}

func TestGenerateCycleBreaking(t *testing.T) {
	t.Parallel()

	snap, records := snapshot(t)
	bridge, err := Generate(records["User"], snap)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := bridge.Format()
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	text := string(src)

	for _, want := range []string{
		"type UserSchemaParent struct {",
		"type UserSchemaRelMemos struct {",
		`orm.LoadAll[memo.Memo](ctx, db, m, "Memos")`,
		"parent := UserSchemaParent{",
		"User: parent,",
		"Memos: fldMemos,",
		// Target fields of package-local named types must be requalified
		// when copied into the projection's package.
		"Status memo.MemoStatus",
		"Status: r.Status,",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q:\n%s", want, text)
		}
	}

	// The projection must not delegate back into Memo's bridge; that is
	// exactly the recursion the stub exists to break.
	if strings.Contains(text, "MemoSchemaFromModel") {
		t.Error("cycle-broken relation must not delegate to the target bridge")
	}

	// Registered definitions cover the schema struct, the projection and
	// the stub so the assembler can publish all three components.
	names := map[string]bool{}
	for _, d := range bridge.Definitions {
		names[d.Name] = true
	}
	for _, want := range []string{"UserSchema", "UserSchemaRelMemos", "UserSchemaParent"} {
		if !names[want] {
			t.Errorf("definition %q not registered (have %v)", want, names)
		}
	}
}

func TestGeneratedSourceIsFormatClean(t *testing.T) {
	t.Parallel()

	snap, records := snapshot(t)
	for name, m := range records {
		bridge, err := Generate(m, snap)
		if err != nil {
			t.Fatalf("Generate(%s): %v", name, err)
		}
		if _, err := bridge.Format(); err != nil {
			t.Errorf("Format(%s): %v", name, err)
		}
	}
}

func TestWriteFileIfChanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.gen.go")

	changed, err := WriteFileIfChanged(path, []byte("package x\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !changed {
		t.Error("first write must report a change")
	}

	changed, err = WriteFileIfChanged(path, []byte("package x\n"))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if changed {
		t.Error("identical content must not rewrite")
	}

	changed, err = WriteFileIfChanged(path, []byte("package y\n"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !changed {
		t.Error("new content must rewrite")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "package y\n" {
		t.Errorf("content = %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
