// Package docgen renders a project structure into a markdown document. The
// renderer is a pure function of the structure: the same structure always
// produces byte-identical output regardless of disk state, so generated docs
// diff cleanly under version control.
package docgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ferrolens/ferrolens/internal/model"
)

// Render produces the full markdown document for a project structure.
func Render(ps *model.ProjectStructure) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Project Structure: %s\n\n", filepath.Base(ps.RootPath))
	writeStats(&b, ps)
	writeModules(&b, ps)
	writeDependencies(&b, ps)
	writeGraph(&b, ps)

	return b.String()
}

// Save renders and writes the document, returning the number of bytes
// written. The write goes through a temporary file in the target directory
// followed by a rename, so readers never observe a half-written document.
func Save(ps *model.ProjectStructure, outPath string) (int, error) {
	doc := Render(ps)

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".docgen-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("writing documentation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("writing documentation: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("writing documentation: %w", err)
	}
	return len(doc), nil
}

func writeStats(b *strings.Builder, ps *model.ProjectStructure) {
	items := 0
	public := 0
	for _, m := range ps.Modules {
		items += len(m.Items)
		for _, it := range m.Items {
			if it.Visibility == model.VisibilityPublic {
				public++
			}
		}
	}
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(b, "- **Modules:** %d\n", len(ps.Modules))
	fmt.Fprintf(b, "- **Items:** %d (%d public)\n", items, public)
	fmt.Fprintf(b, "- **Dependencies:** %d\n", len(ps.Dependencies))
	fmt.Fprintf(b, "- **Relationships:** %d\n\n", len(ps.Relationships))
}

func writeModules(b *strings.Builder, ps *model.ProjectStructure) {
	b.WriteString("## Modules\n\n")

	ordered := make([]model.Module, len(ps.Modules))
	copy(ordered, ps.Modules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	in := make(map[string]int)
	out := make(map[string]int)
	for _, r := range ps.Relationships {
		if r.RelType != model.RelUses {
			continue
		}
		out[r.From]++
		in[r.To]++
	}

	for _, m := range ordered {
		fmt.Fprintf(b, "### %s\n\n", m.Name)
		fmt.Fprintf(b, "- **Type:** %s\n", m.ModuleType)
		fmt.Fprintf(b, "- **Path:** %s\n", m.Path)
		fmt.Fprintf(b, "- **Visibility:** %s\n", m.Visibility)
		fmt.Fprintf(b, "- **Items:** %d, **In:** %d, **Out:** %d\n\n",
			len(m.Items), in[m.ID], out[m.ID])

		if len(m.Items) == 0 {
			continue
		}
		b.WriteString("| Item | Kind | Visibility |\n|---|---|---|\n")
		for _, it := range sortedItems(m.Items) {
			fmt.Fprintf(b, "| `%s` | %s | %s |\n", it.Name, it.ItemType, it.Visibility)
		}
		b.WriteString("\n")
	}
}

// sortedItems orders public items before private ones, each group by name.
func sortedItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Visibility != out[j].Visibility {
			return out[i].Visibility == model.VisibilityPublic
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ItemType < out[j].ItemType
	})
	return out
}

func writeDependencies(b *strings.Builder, ps *model.ProjectStructure) {
	b.WriteString("## Dependencies\n\n")
	if len(ps.Dependencies) == 0 {
		b.WriteString("No external dependencies.\n\n")
		return
	}
	b.WriteString("| Name | Version | Kind |\n|---|---|---|\n")
	ordered := make([]model.Dependency, len(ps.Dependencies))
	copy(ordered, ps.Dependencies)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].DepType < ordered[j].DepType
	})
	for _, d := range ordered {
		fmt.Fprintf(b, "| %s | %s | %s |\n", d.Name, d.Version, d.DepType)
	}
	b.WriteString("\n")
}

// writeGraph emits a mermaid diagram of module relationships. Ids contain
// characters mermaid rejects as node ids, so nodes are numbered and labeled.
func writeGraph(b *strings.Builder, ps *model.ProjectStructure) {
	b.WriteString("## Module Graph\n\n```mermaid\ngraph TD\n")

	ids := make([]string, 0, len(ps.Modules))
	for _, m := range ps.Modules {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	nodeOf := make(map[string]string, len(ids))
	for i, id := range ids {
		node := fmt.Sprintf("n%d", i)
		nodeOf[id] = node
		name := id
		if m := ps.ModuleByID(id); m != nil {
			name = m.Name
		}
		fmt.Fprintf(b, "    %s[\"%s\"]\n", node, name)
	}

	rels := make([]model.Relationship, len(ps.Relationships))
	copy(rels, ps.Relationships)
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].From != rels[j].From {
			return rels[i].From < rels[j].From
		}
		if rels[i].To != rels[j].To {
			return rels[i].To < rels[j].To
		}
		return rels[i].RelType < rels[j].RelType
	})
	for _, r := range rels {
		arrow := "-->"
		if r.RelType == model.RelDeclares {
			arrow = "-.->"
		}
		fmt.Fprintf(b, "    %s %s %s\n", nodeOf[r.From], arrow, nodeOf[r.To])
	}
	b.WriteString("```\n")
}
