// Package manifest loads external dependency declarations from a project's
// Cargo.toml. Dependencies are carried through to the result unmodified.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/ferrolens/ferrolens/internal/model"
)

// ManifestName is the project manifest filename looked up under the root.
const ManifestName = "Cargo.toml"

// cargoFile mirrors the manifest sections we read. Dependency values are
// either a bare version string or an inline table with a version key.
type cargoFile struct {
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

// Load reads dependencies from root/Cargo.toml. A missing manifest returns an
// empty list and no error: the source tree, not the manifest, is the analysis
// subject.
func Load(root string) ([]model.Dependency, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest bytes into dependency entries, sorted by section
// then name for deterministic output.
func Parse(data []byte) ([]model.Dependency, error) {
	var mf cargoFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	var deps []model.Dependency
	deps = append(deps, section(mf.Dependencies, model.DepNormal)...)
	deps = append(deps, section(mf.DevDependencies, model.DepDev)...)
	deps = append(deps, section(mf.BuildDependencies, model.DepBuild)...)
	return deps, nil
}

func section(entries map[string]any, depType model.DependencyType) []model.Dependency {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]model.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, model.Dependency{
			Name:    name,
			Version: versionOf(entries[name]),
			DepType: depType,
		})
	}
	return deps
}

func versionOf(spec any) string {
	switch v := spec.(type) {
	case string:
		return v
	case map[string]any:
		if ver, ok := v["version"].(string); ok {
			return ver
		}
		if _, ok := v["path"]; ok {
			return "path"
		}
		if _, ok := v["git"]; ok {
			return "git"
		}
	}
	return "*"
}
