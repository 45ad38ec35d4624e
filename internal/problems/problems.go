// Package problems runs structural analysis passes over a built project
// structure: dependency cycles, unreferenced modules, and size/coupling
// outliers.
package problems

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ferrolens/ferrolens/internal/model"
)

// Thresholds for the outlier passes. Values match long-standing refactoring
// folklore more than science; they exist to surface candidates, not verdicts.
const (
	LargeModuleLines    = 500
	HighCouplingDegree  = 10
	complexityLineUnit  = 100
	complexityDepWeight = 2
)

// Thresholds tunes the outlier passes. Zero values fall back to the package
// defaults.
type Thresholds struct {
	LargeModuleLines   int
	HighCouplingDegree int
}

// Analyze runs every pass with the default thresholds.
func Analyze(ps *model.ProjectStructure) *model.ProjectProblems {
	return AnalyzeWith(ps, Thresholds{})
}

// AnalyzeWith runs every pass and returns the combined report. All slices are
// non-nil so an empty report serializes as [] rather than null.
func AnalyzeWith(ps *model.ProjectStructure, th Thresholds) *model.ProjectProblems {
	if th.LargeModuleLines <= 0 {
		th.LargeModuleLines = LargeModuleLines
	}
	if th.HighCouplingDegree <= 0 {
		th.HighCouplingDegree = HighCouplingDegree
	}

	report := &model.ProjectProblems{
		Cycles:        detectCycles(ps),
		UnusedModules: findUnused(ps),
		LargeModules:  []string{},
		HighlyCoupled: []string{},
	}

	metrics := Metrics(ps)
	for _, id := range sortedIDs(ps) {
		m := ps.ModuleByID(id)
		mm := metrics[id]
		if mm.LinesOfCode > th.LargeModuleLines {
			report.LargeModules = append(report.LargeModules,
				fmt.Sprintf("%s (%d lines)", m.Name, mm.LinesOfCode))
		}
		if mm.IncomingDeps > th.HighCouplingDegree {
			report.HighlyCoupled = append(report.HighlyCoupled,
				fmt.Sprintf("%s (%d deps)", m.Name, mm.IncomingDeps))
		}
	}
	return report
}

// Metrics computes per-module size and coupling numbers keyed by module id.
// Line counts come from re-reading the module's file; a file that has gone
// away since analysis counts as zero.
func Metrics(ps *model.ProjectStructure) map[string]model.ModuleMetrics {
	in := make(map[string]int)
	out := make(map[string]int)
	for _, r := range ps.Relationships {
		if r.RelType != model.RelUses {
			continue
		}
		out[r.From]++
		in[r.To]++
	}

	lineCache := make(map[string]int)
	metrics := make(map[string]model.ModuleMetrics, len(ps.Modules))
	for _, m := range ps.Modules {
		loc, ok := lineCache[m.Path]
		if !ok {
			loc = countLines(m.Path)
			lineCache[m.Path] = loc
		}
		metrics[m.ID] = model.ModuleMetrics{
			LinesOfCode:  loc,
			IncomingDeps: in[m.ID],
			OutgoingDeps: out[m.ID],
			ComplexityScore: loc/complexityLineUnit +
				(in[m.ID]+out[m.ID])*complexityDepWeight,
		}
	}
	return metrics
}

// detectCycles finds every distinct dependency cycle over the union of
// declares and uses edges. Each cycle is reported once as module names,
// rotated so the lexicographically smallest name comes first; rotations of an
// already-reported cycle are suppressed.
func detectCycles(ps *model.ProjectStructure) [][]string {
	adj := make(map[string][]string)
	for _, r := range ps.Relationships {
		adj[r.From] = append(adj[r.From], r.To)
	}
	for from := range adj {
		sort.Strings(adj[from])
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int)
	var path []string
	var cycles [][]string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		path = append(path, id)
		for _, next := range adj[id] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// Back edge: the cycle is the path suffix from next to id.
				for i, p := range path {
					if p == next {
						cycle := canonicalCycle(ps, path[i:])
						key := strings.Join(cycle, "\x00")
						if !seen[key] {
							seen[key] = true
							cycles = append(cycles, cycle)
						}
						break
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range sortedIDs(ps) {
		if color[id] == white {
			visit(id)
		}
	}
	if cycles == nil {
		cycles = [][]string{}
	}
	return cycles
}

// canonicalCycle maps a cycle of ids to names and rotates it so the smallest
// name leads, making the report independent of where the DFS entered.
func canonicalCycle(ps *model.ProjectStructure, ids []string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id
		if m := ps.ModuleByID(id); m != nil {
			names[i] = m.Name
		}
	}
	start := 0
	for i := 1; i < len(names); i++ {
		if names[i] < names[start] {
			start = i
		}
	}
	rotated := make([]string, 0, len(names))
	rotated = append(rotated, names[start:]...)
	rotated = append(rotated, names[:start]...)
	return rotated
}

// findUnused reports modules with no incoming uses edges, by name in sorted
// order. Entry points are exempt: nothing inside the tree is expected to
// reference main.rs or lib.rs.
func findUnused(ps *model.ProjectStructure) []string {
	used := make(map[string]bool)
	for _, r := range ps.Relationships {
		if r.RelType == model.RelUses {
			used[r.To] = true
		}
	}

	unused := []string{}
	for _, m := range ps.Modules {
		if !used[m.ID] && !m.ModuleType.IsEntry() {
			unused = append(unused, m.Name)
		}
	}
	sort.Strings(unused)
	return unused
}

func sortedIDs(ps *model.ProjectStructure) []string {
	ids := make([]string, 0, len(ps.Modules))
	for _, m := range ps.Modules {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}

func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	if len(data) == 0 {
		return 0
	}
	n := strings.Count(string(data), "\n")
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
