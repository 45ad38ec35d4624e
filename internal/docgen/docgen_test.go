package docgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ferrolens/ferrolens/internal/model"
)

func sampleStructure() *model.ProjectStructure {
	return &model.ProjectStructure{
		RootPath: "/work/demo",
		Modules: []model.Module{
			{
				ID:         "src::net",
				Name:       "net",
				Path:       "/work/demo/src/net.rs",
				ModuleType: model.ModuleNormal,
				Visibility: model.VisibilityPublic,
				Items: []model.Item{
					{Name: "zz_helper", ItemType: model.ItemFunction, Visibility: model.VisibilityPrivate},
					{Name: "Listener", ItemType: model.ItemStruct, Visibility: model.VisibilityPublic},
					{Name: "bind", ItemType: model.ItemFunction, Visibility: model.VisibilityPublic},
				},
			},
			{
				ID:         "src::main",
				Name:       "main",
				Path:       "/work/demo/src/main.rs",
				ModuleType: model.ModuleBinary,
				Visibility: model.VisibilityPublic,
			},
		},
		Dependencies: []model.Dependency{
			{Name: "tokio", Version: "1.38", DepType: model.DepNormal},
			{Name: "serde", Version: "1.0", DepType: model.DepNormal},
		},
		Relationships: []model.Relationship{
			{From: "src::main", To: "src::net", RelType: model.RelUses},
		},
	}
}

func TestRenderDeterministic(t *testing.T) {
	ps := sampleStructure()
	first := Render(ps)
	second := Render(ps)
	if first != second {
		t.Fatal("two renders of the same structure differ")
	}
}

func TestRenderTitleAndOverview(t *testing.T) {
	doc := Render(sampleStructure())

	if !strings.HasPrefix(doc, "# Project Structure: demo\n") {
		t.Errorf("bad title: %q", doc[:min(len(doc), 60)])
	}
	for _, want := range []string{
		"- **Modules:** 2\n",
		"- **Items:** 3 (2 public)\n",
		"- **Dependencies:** 2\n",
		"- **Relationships:** 1\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("overview missing %q", want)
		}
	}
}

func TestRenderModulesOnceEachSorted(t *testing.T) {
	doc := Render(sampleStructure())

	if n := strings.Count(doc, "### net\n"); n != 1 {
		t.Errorf("net section appears %d times", n)
	}
	if n := strings.Count(doc, "### main\n"); n != 1 {
		t.Errorf("main section appears %d times", n)
	}
	// Sections ordered by module id: src::main before src::net.
	if strings.Index(doc, "### main\n") > strings.Index(doc, "### net\n") {
		t.Error("module sections not ordered by id")
	}
}

func TestRenderItemTablePublicFirst(t *testing.T) {
	doc := Render(sampleStructure())

	listener := strings.Index(doc, "| `Listener` |")
	bind := strings.Index(doc, "| `bind` |")
	helper := strings.Index(doc, "| `zz_helper` |")
	if listener < 0 || bind < 0 || helper < 0 {
		t.Fatalf("item rows missing: %d %d %d", listener, bind, helper)
	}
	if !(listener < bind && bind < helper) {
		t.Error("items not ordered public-first then by name")
	}
}

func TestRenderDependencyTable(t *testing.T) {
	doc := Render(sampleStructure())

	serde := strings.Index(doc, "| serde | 1.0 | normal |")
	tokio := strings.Index(doc, "| tokio | 1.38 | normal |")
	if serde < 0 || tokio < 0 {
		t.Fatalf("dependency rows missing: %d %d", serde, tokio)
	}
	if serde > tokio {
		t.Error("dependencies not sorted by name")
	}
}

func TestRenderNoDependencies(t *testing.T) {
	ps := sampleStructure()
	ps.Dependencies = nil
	doc := Render(ps)
	if !strings.Contains(doc, "No external dependencies.") {
		t.Error("empty dependency section missing placeholder")
	}
}

func TestRenderMermaidGraph(t *testing.T) {
	ps := sampleStructure()
	ps.Relationships = append(ps.Relationships,
		model.Relationship{From: "src::net", To: "src::main", RelType: model.RelDeclares})
	doc := Render(ps)

	if !strings.Contains(doc, "```mermaid\ngraph TD\n") {
		t.Fatal("mermaid block missing")
	}
	// Nodes numbered by sorted id: src::main is n0, src::net is n1.
	if !strings.Contains(doc, "    n0[\"main\"]\n") || !strings.Contains(doc, "    n1[\"net\"]\n") {
		t.Errorf("node labels wrong:\n%s", doc)
	}
	if !strings.Contains(doc, "    n0 --> n1\n") {
		t.Error("uses edge missing solid arrow")
	}
	if !strings.Contains(doc, "    n1 -.-> n0\n") {
		t.Error("declares edge missing dotted arrow")
	}
}

func TestRenderIndependentOfDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "net.rs")
	if err := os.WriteFile(path, []byte("pub fn bind() {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ps := sampleStructure()
	ps.Modules[0].Path = path
	first := Render(ps)

	// Growing the file on disk must not change the rendered document.
	if err := os.WriteFile(path, []byte(strings.Repeat("fn pad() {}\n", 50)), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if second := Render(ps); second != first {
		t.Error("render output changed with disk state")
	}

	// Deleting the file entirely must not change it either.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if third := Render(ps); third != first {
		t.Error("render output depends on path existence")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ps := sampleStructure()
	outPath := filepath.Join(dir, "PROJECT_STRUCTURE.md")

	size, err := Save(ps, outPath)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != Render(ps) {
		t.Error("saved document differs from rendered document")
	}
	if size != len(data) {
		t.Errorf("reported %d bytes, wrote %d", size, len(data))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("unexpected leftovers in output dir: %v", entries)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "PROJECT_STRUCTURE.md")
	if err := os.WriteFile(outPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ps := sampleStructure()
	if _, err := Save(ps, outPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(outPath)
	if string(data) == "stale" {
		t.Error("existing document not replaced")
	}
}

func TestSaveBadDirectory(t *testing.T) {
	_, err := Save(sampleStructure(), filepath.Join(t.TempDir(), "missing", "out.md"))
	if err == nil {
		t.Fatal("expected error for nonexistent directory")
	}
}
