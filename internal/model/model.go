// Package model defines the project structure produced by an analysis run and
// consumed by the problem analyzer, the documentation renderer, and the
// rendering layer. Field names and shapes are a stable wire contract.
package model

// ProjectStructure is the aggregate result of one analysis run.
type ProjectStructure struct {
	RootPath      string         `json:"root_path"`
	Modules       []Module       `json:"modules"`
	Dependencies  []Dependency   `json:"dependencies"`
	Relationships []Relationship `json:"relationships"`
}

// Module represents a single analyzed source unit: a file, or a mod block
// nested within a file.
type Module struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	ModuleType ModuleType `json:"module_type"`
	Visibility Visibility `json:"visibility"`
	Items      []Item     `json:"items"`
}

// ModuleType classifies a module by its role in the project.
type ModuleType string

const (
	ModuleBinary    ModuleType = "binary"
	ModuleLibrary   ModuleType = "library"
	ModuleTest      ModuleType = "test"
	ModuleExample   ModuleType = "example"
	ModuleBenchmark ModuleType = "benchmark"
	ModuleNormal    ModuleType = "normal"
)

// IsEntry reports whether the module is a designated entry point, exempt from
// unused-module reporting.
func (t ModuleType) IsEntry() bool {
	return t == ModuleBinary || t == ModuleLibrary
}

// Visibility of a module or item declaration.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Item is one declared symbol within a module.
type Item struct {
	Name       string     `json:"name"`
	ItemType   ItemType   `json:"item_type"`
	Visibility Visibility `json:"visibility"`
}

// ItemType classifies declared items. The set is closed: lines that do not
// match a known declaration keyword produce no Item at all.
type ItemType string

const (
	ItemFunction  ItemType = "function"
	ItemStruct    ItemType = "struct"
	ItemEnum      ItemType = "enum"
	ItemTrait     ItemType = "trait"
	ItemImpl      ItemType = "impl"
	ItemConst     ItemType = "const"
	ItemStatic    ItemType = "static"
	ItemTypeAlias ItemType = "type_alias"
)

// Relationship is a directed edge between two modules, addressed by id.
type Relationship struct {
	From    string       `json:"from"`
	To      string       `json:"to"`
	RelType RelationType `json:"rel_type"`
}

// RelationType classifies relationship edges. Declares edges form a forest;
// uses edges are arbitrary and may form cycles.
type RelationType string

const (
	RelDeclares RelationType = "declares"
	RelUses     RelationType = "uses"
)

// Dependency is an external package reference from the project manifest,
// carried through unmodified.
type Dependency struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	DepType DependencyType `json:"dep_type"`
}

// DependencyType mirrors the manifest dependency sections.
type DependencyType string

const (
	DepNormal DependencyType = "normal"
	DepDev    DependencyType = "dev"
	DepBuild  DependencyType = "build"
)

// ModuleMetrics holds per-module size and coupling measurements.
type ModuleMetrics struct {
	LinesOfCode     int `json:"lines_of_code"`
	IncomingDeps    int `json:"incoming_deps"`
	OutgoingDeps    int `json:"outgoing_deps"`
	ComplexityScore int `json:"complexity_score"`
}

// ProjectProblems is the structural-problem report for one ProjectStructure.
type ProjectProblems struct {
	Cycles        [][]string `json:"cycles"`
	UnusedModules []string   `json:"unused_modules"`
	LargeModules  []string   `json:"large_modules"`
	HighlyCoupled []string   `json:"highly_coupled"`
}

// ModuleByID returns the module with the given id, or nil.
func (p *ProjectStructure) ModuleByID(id string) *Module {
	for i := range p.Modules {
		if p.Modules[i].ID == id {
			return &p.Modules[i]
		}
	}
	return nil
}
