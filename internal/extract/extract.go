// Package extract recovers module boundaries and item declarations from raw
// Rust source text. It is a heuristic line scanner, not a grammar: it must
// keep working on incomplete or transiently broken source, so unrecognized
// lines are simply skipped and never abort an extraction.
package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ferrolens/ferrolens/internal/model"
)

// FileScan is the extraction result for a single source file: the file's own
// module, any mod blocks declared at file scope, and the candidate uses
// targets found in each. Uses targets are raw path strings; the graph builder
// resolves them against known module ids later.
type FileScan struct {
	Path       string
	Name       string
	ModuleType model.ModuleType
	Visibility model.Visibility
	Items      []model.Item
	Uses       []string
	Nested     []NestedModule
}

// NestedModule is a mod block declared at the top level of a file. Ordinal is
// its declaration index within the file, used for stable id derivation.
type NestedModule struct {
	Name       string
	Ordinal    int
	Visibility model.Visibility
	Items      []model.Item
	Uses       []string
}

var (
	// pub, pub(crate), pub(super), pub(in path)
	visPrefix = `(pub(?:\([^)]*\))?\s+)?`

	modPattern    = regexp.MustCompile(`^\s*` + visPrefix + `mod\s+([A-Za-z_][A-Za-z0-9_]*)\s*\{`)
	fnPattern     = regexp.MustCompile(`^\s*` + visPrefix + `(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	structPattern = regexp.MustCompile(`^\s*` + visPrefix + `struct\s+([A-Za-z_][A-Za-z0-9_]*)`)
	enumPattern   = regexp.MustCompile(`^\s*` + visPrefix + `enum\s+([A-Za-z_][A-Za-z0-9_]*)`)
	traitPattern  = regexp.MustCompile(`^\s*` + visPrefix + `(?:unsafe\s+)?trait\s+([A-Za-z_][A-Za-z0-9_]*)`)
	constPattern  = regexp.MustCompile(`^\s*` + visPrefix + `const\s+([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	staticPattern = regexp.MustCompile(`^\s*` + visPrefix + `(?:mut\s+)?static\s+(?:mut\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	typePattern   = regexp.MustCompile(`^\s*` + visPrefix + `type\s+([A-Za-z_][A-Za-z0-9_]*)`)
	implPattern   = regexp.MustCompile(`^\s*impl(?:\s*<[^>]*>)?\s+(?:[\w:<>, ]+\s+for\s+)?([A-Za-z_][A-Za-z0-9_:]*)`)

	// use crate::foo::bar::{a, b}; captures the path head before any group.
	usePattern = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+([A-Za-z_][\w:]*)`)

	testMarkerPattern = regexp.MustCompile(`#\[(?:test|cfg\(test\))\]`)
)

// itemPatterns maps declaration patterns to their item types, checked in
// order. fn comes before const so `const fn` lines classify as functions.
var itemPatterns = []struct {
	re *regexp.Regexp
	t  model.ItemType
}{
	{fnPattern, model.ItemFunction},
	{structPattern, model.ItemStruct},
	{enumPattern, model.ItemEnum},
	{traitPattern, model.ItemTrait},
	{constPattern, model.ItemConst},
	{staticPattern, model.ItemStatic},
	{typePattern, model.ItemTypeAlias},
}

// Scan extracts one file. relPath is the path relative to the project root,
// used to derive the module name and classify the module type.
func Scan(path, relPath string, content []byte) *FileScan {
	text := string(content)
	scan := &FileScan{
		Path:       path,
		Name:       moduleName(relPath),
		ModuleType: classify(relPath, text),
		Visibility: model.VisibilityPublic,
	}

	lines := strings.Split(text, "\n")

	depth := 0
	inBlockComment := false
	var current *NestedModule // non-nil while inside a file-scope mod block
	nestedEntry := 0          // depth at which the current mod block opened

	for _, raw := range lines {
		line, nowInComment := stripComments(raw, inBlockComment)
		inBlockComment = nowInComment
		if line == "" {
			continue
		}

		atModuleScope := (current == nil && depth == 0) ||
			(current != nil && depth == nestedEntry+1)

		if atModuleScope {
			if m := usePattern.FindStringSubmatch(line); m != nil {
				target := strings.TrimSuffix(m[1], "::")
				if current != nil {
					current.Uses = append(current.Uses, target)
				} else {
					scan.Uses = append(scan.Uses, target)
				}
			} else if current == nil {
				if m := modPattern.FindStringSubmatch(line); m != nil {
					scan.Nested = append(scan.Nested, NestedModule{
						Name:       m[2],
						Ordinal:    len(scan.Nested),
						Visibility: visibilityOf(m[1]),
					})
					current = &scan.Nested[len(scan.Nested)-1]
					nestedEntry = depth
					depth += countBraces(line)
					if depth <= nestedEntry {
						// The block closed on its own line; scan the interior
						// before returning to file scope.
						scanInline(current, line)
						if depth < 0 {
							depth = 0
						}
						current = nil
					}
					continue
				}
			}
			if item, ok := matchItem(line); ok {
				if current != nil {
					current.Items = append(current.Items, item)
				} else {
					scan.Items = append(scan.Items, item)
				}
			}
		}

		depth += countBraces(line)
		if depth < 0 {
			// Unbalanced braces in broken source: clamp rather than abort.
			depth = 0
		}
		if current != nil && depth <= nestedEntry {
			current = nil
		}
	}

	return scan
}

// scanInline extracts declarations from a mod block confined to one line.
func scanInline(nested *NestedModule, line string) {
	open := strings.Index(line, "{")
	end := strings.LastIndex(line, "}")
	if open < 0 || end <= open {
		return
	}
	for _, seg := range strings.Split(line[open+1:end], ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if m := usePattern.FindStringSubmatch(seg); m != nil {
			nested.Uses = append(nested.Uses, strings.TrimSuffix(m[1], "::"))
			continue
		}
		if item, ok := matchItem(seg); ok {
			nested.Items = append(nested.Items, item)
		}
	}
}

func matchItem(line string) (model.Item, bool) {
	for _, p := range itemPatterns {
		if m := p.re.FindStringSubmatch(line); m != nil {
			return model.Item{
				Name:       m[2],
				ItemType:   p.t,
				Visibility: visibilityOf(m[1]),
			}, true
		}
	}
	// impl blocks carry no visibility keyword and name the implemented type.
	if m := implPattern.FindStringSubmatch(line); m != nil {
		return model.Item{
			Name:       m[1],
			ItemType:   model.ItemImpl,
			Visibility: model.VisibilityPublic,
		}, true
	}
	return model.Item{}, false
}

func visibilityOf(keyword string) model.Visibility {
	if strings.HasPrefix(strings.TrimSpace(keyword), "pub") {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

// classify determines the module type from path segments, content markers,
// and entry-point filenames.
func classify(relPath, content string) model.ModuleType {
	segments := strings.Split(filepath.ToSlash(relPath), "/")
	for _, seg := range segments {
		switch seg {
		case "tests":
			return model.ModuleTest
		case "examples":
			return model.ModuleExample
		case "benches", "benchmark", "benchmarks":
			return model.ModuleBenchmark
		}
	}
	if testMarkerPattern.MatchString(content) {
		return model.ModuleTest
	}
	switch filepath.Base(relPath) {
	case "main.rs":
		return model.ModuleBinary
	case "lib.rs":
		return model.ModuleLibrary
	}
	return model.ModuleNormal
}

// moduleName converts a root-relative file path to a :: separated module
// path: src/net/tcp.rs -> net::tcp, src/net/mod.rs -> net.
func moduleName(relPath string) string {
	p := filepath.ToSlash(relPath)
	for _, prefix := range []string{"src/", "tests/", "examples/", "benches/"} {
		p = strings.TrimPrefix(p, prefix)
	}
	p = strings.TrimSuffix(p, ".rs")
	p = strings.TrimSuffix(p, "/mod")
	return strings.ReplaceAll(p, "/", "::")
}

// stripComments removes line and block comments from a line, returning the
// remaining code and whether a block comment continues onto the next line.
// String contents are approximated by quote parity, the same best-effort
// trade the rest of the scanner makes.
func stripComments(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if inBlock {
			if idx := strings.Index(line[i:], "*/"); idx >= 0 {
				i += idx + 2
				inBlock = false
				continue
			}
			return strings.TrimSpace(b.String()), true
		}
		if strings.HasPrefix(line[i:], "/*") {
			inBlock = true
			i += 2
			continue
		}
		if strings.HasPrefix(line[i:], "//") {
			if strings.Count(b.String(), `"`)%2 == 0 {
				break
			}
		}
		b.WriteByte(line[i])
		i++
	}
	return strings.TrimSpace(b.String()), inBlock
}

func countBraces(line string) int {
	return strings.Count(line, "{") - strings.Count(line, "}")
}
