// Package builder aggregates per-file extraction results into a single
// ProjectStructure: it assigns stable module ids, materializes declares
// edges, and resolves candidate uses targets best-effort.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ferrolens/ferrolens/internal/extract"
	"github.com/ferrolens/ferrolens/internal/model"
)

// Build produces the project structure from the scans of all walked files,
// in discovery order. Every relationship endpoint is guaranteed to be the id
// of a module present in the result, and no (from,to,rel_type) triple is
// emitted twice.
func Build(rootPath string, relPaths []string, scans []*extract.FileScan, deps []model.Dependency) *model.ProjectStructure {
	ps := &model.ProjectStructure{
		RootPath:      rootPath,
		Modules:       []model.Module{},
		Dependencies:  deps,
		Relationships: []model.Relationship{},
	}
	if deps == nil {
		ps.Dependencies = []model.Dependency{}
	}

	// usesByID holds each module's unresolved candidate targets until all ids
	// are known.
	usesByID := make(map[string][]string)
	byName := make(map[string][]string) // module name -> ids, resolution index

	addModule := func(m model.Module, uses []string) {
		if m.Items == nil {
			m.Items = []model.Item{}
		}
		ps.Modules = append(ps.Modules, m)
		usesByID[m.ID] = uses
		byName[m.Name] = append(byName[m.Name], m.ID)
	}

	for i, scan := range scans {
		fileID := moduleID(relPaths[i])
		addModule(model.Module{
			ID:         fileID,
			Name:       scan.Name,
			Path:       scan.Path,
			ModuleType: scan.ModuleType,
			Visibility: scan.Visibility,
			Items:      scan.Items,
		}, scan.Uses)

		// Nested mod blocks get the file id plus a declaration-order suffix,
		// so same-named blocks in different files never collide.
		for _, nested := range scan.Nested {
			childID := fmt.Sprintf("%s::%s#%d", fileID, nested.Name, nested.Ordinal)
			childName := nested.Name
			if scan.Name != "" {
				childName = scan.Name + "::" + nested.Name
			}
			addModule(model.Module{
				ID:         childID,
				Name:       childName,
				Path:       scan.Path,
				ModuleType: model.ModuleNormal,
				Visibility: nested.Visibility,
				Items:      nested.Items,
			}, nested.Uses)
			ps.Relationships = appendEdge(ps.Relationships, fileID, childID, model.RelDeclares)
		}
	}

	// File-hierarchy declares edges: net::tcp is declared by net when a
	// module of that name exists.
	for _, m := range ps.Modules {
		if strings.Contains(m.ID, "#") {
			continue // in-file nesting already linked above
		}
		parts := strings.Split(m.Name, "::")
		if len(parts) < 2 {
			continue
		}
		parentName := strings.Join(parts[:len(parts)-1], "::")
		if parentID, ok := lookup(byName, parentName); ok && parentID != m.ID {
			ps.Relationships = appendEdge(ps.Relationships, parentID, m.ID, model.RelDeclares)
		}
	}

	// Uses edges, resolved best-effort. Unresolvable targets are dropped:
	// import paths are ambiguous under re-exports and aliasing, and a missing
	// edge is preferable to a wrong one.
	for _, m := range ps.Modules {
		for _, target := range usesByID[m.ID] {
			if toID, ok := resolve(byName, target); ok && toID != m.ID {
				ps.Relationships = appendEdge(ps.Relationships, m.ID, toID, model.RelUses)
			}
		}
	}

	return ps
}

// moduleID derives the stable module id from the root-relative file path.
// Paths are unique within a tree, which makes ids unique by construction.
func moduleID(relPath string) string {
	p := strings.TrimSuffix(strings.ReplaceAll(relPath, "\\", "/"), ".rs")
	return strings.ReplaceAll(p, "/", "::")
}

// lookup returns the lexicographically smallest id registered under name.
func lookup(byName map[string][]string, name string) (string, bool) {
	ids := byName[name]
	if len(ids) == 0 {
		return "", false
	}
	best := ids[0]
	for _, id := range ids[1:] {
		if id < best {
			best = id
		}
	}
	return best, true
}

// resolve matches a use path against known module names by progressively
// dropping leading segments: crate::net::tcp tries net::tcp, then tcp.
func resolve(byName map[string][]string, target string) (string, bool) {
	segs := strings.Split(target, "::")
	for len(segs) > 0 && (segs[0] == "crate" || segs[0] == "self" || segs[0] == "super") {
		segs = segs[1:]
	}
	for i := 0; i < len(segs); i++ {
		if id, ok := lookup(byName, strings.Join(segs[i:], "::")); ok {
			return id, true
		}
	}
	return "", false
}

func appendEdge(rels []model.Relationship, from, to string, t model.RelationType) []model.Relationship {
	for _, r := range rels {
		if r.From == from && r.To == to && r.RelType == t {
			return rels
		}
	}
	return append(rels, model.Relationship{From: from, To: to, RelType: t})
}

// SortedModuleIDs returns all module ids in ascending order; analysis passes
// iterate in this order for determinism.
func SortedModuleIDs(ps *model.ProjectStructure) []string {
	ids := make([]string, 0, len(ps.Modules))
	for _, m := range ps.Modules {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}
