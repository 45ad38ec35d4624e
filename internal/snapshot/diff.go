package snapshot

import (
	"sort"

	"github.com/ferrolens/ferrolens/internal/model"
)

// DiffType indicates the kind of change.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// StructureDiff is the complete diff between two snapshots.
type StructureDiff struct {
	OldID        string           `json:"old_id"`
	NewID        string           `json:"new_id"`
	OldTag       string           `json:"old_tag,omitempty"`
	NewTag       string           `json:"new_tag,omitempty"`
	ModuleDiffs  []ModuleDiff     `json:"module_diffs"`
	EdgeDiffs    []EdgeDiff       `json:"edge_diffs"`
	DepDiffs     []DependencyDiff `json:"dependency_diffs"`
	Summary      DiffSummary      `json:"summary"`
}

// ModuleDiff is a change to a single module, keyed by id.
type ModuleDiff struct {
	ID        string   `json:"id"`
	Type      DiffType `json:"type"`
	OldItems  int      `json:"old_items,omitempty"`
	NewItems  int      `json:"new_items,omitempty"`
	OldType   string   `json:"old_type,omitempty"`
	NewType   string   `json:"new_type,omitempty"`
}

// EdgeDiff is an added or removed relationship.
type EdgeDiff struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	RelType string   `json:"rel_type"`
	Type    DiffType `json:"type"`
}

// DependencyDiff is a change to an external dependency.
type DependencyDiff struct {
	Name       string   `json:"name"`
	Type       DiffType `json:"type"`
	OldVersion string   `json:"old_version,omitempty"`
	NewVersion string   `json:"new_version,omitempty"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	ModulesAdded    int `json:"modules_added"`
	ModulesRemoved  int `json:"modules_removed"`
	ModulesModified int `json:"modules_modified"`
	EdgesAdded      int `json:"edges_added"`
	EdgesRemoved    int `json:"edges_removed"`
	DepsChanged     int `json:"deps_changed"`
}

// Diff computes the structural differences between two snapshots.
func Diff(old, new *Snapshot) *StructureDiff {
	d := &StructureDiff{
		OldID:  old.ID,
		NewID:  new.ID,
		OldTag: old.Tag,
		NewTag: new.Tag,
	}

	d.ModuleDiffs = diffModules(old.Structure, new.Structure)
	d.EdgeDiffs = diffEdges(old.Structure, new.Structure)
	d.DepDiffs = diffDependencies(old.Structure, new.Structure)

	for _, md := range d.ModuleDiffs {
		switch md.Type {
		case DiffAdded:
			d.Summary.ModulesAdded++
		case DiffRemoved:
			d.Summary.ModulesRemoved++
		case DiffModified:
			d.Summary.ModulesModified++
		}
	}
	for _, ed := range d.EdgeDiffs {
		if ed.Type == DiffAdded {
			d.Summary.EdgesAdded++
		} else {
			d.Summary.EdgesRemoved++
		}
	}
	d.Summary.DepsChanged = len(d.DepDiffs)
	return d
}

func diffModules(old, new *model.ProjectStructure) []ModuleDiff {
	oldByID := make(map[string]*model.Module)
	for i := range old.Modules {
		oldByID[old.Modules[i].ID] = &old.Modules[i]
	}
	newByID := make(map[string]*model.Module)
	for i := range new.Modules {
		newByID[new.Modules[i].ID] = &new.Modules[i]
	}

	var diffs []ModuleDiff
	for id, nm := range newByID {
		om, ok := oldByID[id]
		if !ok {
			diffs = append(diffs, ModuleDiff{ID: id, Type: DiffAdded, NewItems: len(nm.Items)})
			continue
		}
		if len(om.Items) != len(nm.Items) || om.ModuleType != nm.ModuleType {
			diffs = append(diffs, ModuleDiff{
				ID:       id,
				Type:     DiffModified,
				OldItems: len(om.Items),
				NewItems: len(nm.Items),
				OldType:  string(om.ModuleType),
				NewType:  string(nm.ModuleType),
			})
		}
	}
	for id, om := range oldByID {
		if _, ok := newByID[id]; !ok {
			diffs = append(diffs, ModuleDiff{ID: id, Type: DiffRemoved, OldItems: len(om.Items)})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].ID < diffs[j].ID })
	return diffs
}

func diffEdges(old, new *model.ProjectStructure) []EdgeDiff {
	key := func(r model.Relationship) string {
		return r.From + "\x00" + r.To + "\x00" + string(r.RelType)
	}
	oldSet := make(map[string]model.Relationship)
	for _, r := range old.Relationships {
		oldSet[key(r)] = r
	}
	newSet := make(map[string]model.Relationship)
	for _, r := range new.Relationships {
		newSet[key(r)] = r
	}

	var diffs []EdgeDiff
	for k, r := range newSet {
		if _, ok := oldSet[k]; !ok {
			diffs = append(diffs, EdgeDiff{From: r.From, To: r.To, RelType: string(r.RelType), Type: DiffAdded})
		}
	}
	for k, r := range oldSet {
		if _, ok := newSet[k]; !ok {
			diffs = append(diffs, EdgeDiff{From: r.From, To: r.To, RelType: string(r.RelType), Type: DiffRemoved})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].From != diffs[j].From {
			return diffs[i].From < diffs[j].From
		}
		return diffs[i].To < diffs[j].To
	})
	return diffs
}

func diffDependencies(old, new *model.ProjectStructure) []DependencyDiff {
	key := func(d model.Dependency) string {
		return d.Name + "\x00" + string(d.DepType)
	}
	oldDeps := make(map[string]model.Dependency)
	for _, d := range old.Dependencies {
		oldDeps[key(d)] = d
	}
	newDeps := make(map[string]model.Dependency)
	for _, d := range new.Dependencies {
		newDeps[key(d)] = d
	}

	var diffs []DependencyDiff
	for k, nd := range newDeps {
		od, ok := oldDeps[k]
		if !ok {
			diffs = append(diffs, DependencyDiff{Name: nd.Name, Type: DiffAdded, NewVersion: nd.Version})
		} else if od.Version != nd.Version {
			diffs = append(diffs, DependencyDiff{
				Name:       nd.Name,
				Type:       DiffModified,
				OldVersion: od.Version,
				NewVersion: nd.Version,
			})
		}
	}
	for k, od := range oldDeps {
		if _, ok := newDeps[k]; !ok {
			diffs = append(diffs, DependencyDiff{Name: od.Name, Type: DiffRemoved, OldVersion: od.Version})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
	return diffs
}
