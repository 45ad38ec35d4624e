package extract

import (
	"testing"

	"github.com/ferrolens/ferrolens/internal/model"
)

func findItem(items []model.Item, name string) *model.Item {
	for i := range items {
		if items[i].Name == name {
			return &items[i]
		}
	}
	return nil
}

func TestScanItems(t *testing.T) {
	src := `
pub struct Config;
struct Hidden;
pub enum Mode { A, B }
pub trait Runner {}
pub fn start() {}
async fn poll() {}
pub const fn capacity() -> usize { 8 }
const MAX: usize = 16;
pub static NAME: &str = "x";
type Alias = u32;
impl Config {
    fn method_inside_impl(&self) {}
}
`
	scan := Scan("/p/src/cfg.rs", "src/cfg.rs", []byte(src))

	tests := []struct {
		name string
		typ  model.ItemType
		vis  model.Visibility
	}{
		{"Config", model.ItemStruct, model.VisibilityPublic},
		{"Hidden", model.ItemStruct, model.VisibilityPrivate},
		{"Mode", model.ItemEnum, model.VisibilityPublic},
		{"Runner", model.ItemTrait, model.VisibilityPublic},
		{"start", model.ItemFunction, model.VisibilityPublic},
		{"poll", model.ItemFunction, model.VisibilityPrivate},
		{"capacity", model.ItemFunction, model.VisibilityPublic},
		{"MAX", model.ItemConst, model.VisibilityPrivate},
		{"NAME", model.ItemStatic, model.VisibilityPublic},
		{"Alias", model.ItemTypeAlias, model.VisibilityPrivate},
	}
	for _, tt := range tests {
		item := findItem(scan.Items, tt.name)
		if item == nil {
			t.Errorf("item %s not extracted", tt.name)
			continue
		}
		if item.ItemType != tt.typ {
			t.Errorf("%s: got type %s, want %s", tt.name, item.ItemType, tt.typ)
		}
		if item.Visibility != tt.vis {
			t.Errorf("%s: got visibility %s, want %s", tt.name, item.Visibility, tt.vis)
		}
	}

	// The impl block itself is an item; its interior is not module scope.
	if item := findItem(scan.Items, "Config"); item == nil {
		t.Error("Config items missing entirely")
	}
	if findItem(scan.Items, "method_inside_impl") != nil {
		t.Error("item inside impl block leaked to module scope")
	}
}

func TestScanImplBlock(t *testing.T) {
	src := "impl<T> Display for Wrapper {\n}\n"
	scan := Scan("/p/src/w.rs", "src/w.rs", []byte(src))

	item := findItem(scan.Items, "Wrapper")
	if item == nil {
		t.Fatal("impl target not extracted")
	}
	if item.ItemType != model.ItemImpl {
		t.Errorf("got %s, want impl", item.ItemType)
	}
}

func TestScanUses(t *testing.T) {
	src := `
use std::collections::HashMap;
use crate::net::tcp;
pub use crate::prelude::{Reader, Writer};
`
	scan := Scan("/p/src/io.rs", "src/io.rs", []byte(src))

	want := []string{"std::collections::HashMap", "crate::net::tcp", "crate::prelude"}
	if len(scan.Uses) != len(want) {
		t.Fatalf("got %d uses, want %d: %v", len(scan.Uses), len(want), scan.Uses)
	}
	for i, w := range want {
		if scan.Uses[i] != w {
			t.Errorf("use %d: got %q, want %q", i, scan.Uses[i], w)
		}
	}
}

func TestScanNestedModules(t *testing.T) {
	src := `
pub fn top() {}

mod helpers {
    use crate::top_level;
    pub fn assist() {}
    struct Internal;
}

pub mod api {
    pub fn serve() {}
}
`
	scan := Scan("/p/src/lib.rs", "src/lib.rs", []byte(src))

	if findItem(scan.Items, "top") == nil {
		t.Error("file-scope fn missing")
	}
	if len(scan.Nested) != 2 {
		t.Fatalf("got %d nested modules, want 2", len(scan.Nested))
	}

	helpers := scan.Nested[0]
	if helpers.Name != "helpers" || helpers.Ordinal != 0 {
		t.Errorf("unexpected first nested module: %+v", helpers)
	}
	if helpers.Visibility != model.VisibilityPrivate {
		t.Errorf("helpers visibility: got %s", helpers.Visibility)
	}
	if findItem(helpers.Items, "assist") == nil || findItem(helpers.Items, "Internal") == nil {
		t.Errorf("helpers items incomplete: %+v", helpers.Items)
	}
	if len(helpers.Uses) != 1 || helpers.Uses[0] != "crate::top_level" {
		t.Errorf("helpers uses: %v", helpers.Uses)
	}

	api := scan.Nested[1]
	if api.Name != "api" || api.Ordinal != 1 {
		t.Errorf("unexpected second nested module: %+v", api)
	}
	if api.Visibility != model.VisibilityPublic {
		t.Errorf("api visibility: got %s", api.Visibility)
	}
	// Items inside nested modules stay out of file scope.
	if findItem(scan.Items, "serve") != nil {
		t.Error("nested item leaked to file scope")
	}
}

func TestScanOneLineModBlock(t *testing.T) {
	src := `
mod empty {}
pub fn top() {}
use crate::after;
`
	scan := Scan("/p/src/lib.rs", "src/lib.rs", []byte(src))

	// File scope resumes immediately after the closing brace.
	if findItem(scan.Items, "top") == nil {
		t.Errorf("item after one-line mod block dropped: %+v", scan.Items)
	}
	if len(scan.Uses) != 1 || scan.Uses[0] != "crate::after" {
		t.Errorf("use after one-line mod block dropped: %v", scan.Uses)
	}
	if len(scan.Nested) != 1 || scan.Nested[0].Name != "empty" {
		t.Fatalf("nested modules: %+v", scan.Nested)
	}
	if len(scan.Nested[0].Items) != 0 {
		t.Errorf("empty block grew items: %+v", scan.Nested[0].Items)
	}
}

func TestScanOneLineModBlockInterior(t *testing.T) {
	src := "mod tiny { use crate::dep; pub fn t() {} }\nfn outer() {}\n"
	scan := Scan("/p/src/lib.rs", "src/lib.rs", []byte(src))

	if len(scan.Nested) != 1 {
		t.Fatalf("got %d nested modules, want 1", len(scan.Nested))
	}
	tiny := scan.Nested[0]
	if findItem(tiny.Items, "t") == nil {
		t.Errorf("interior item not captured: %+v", tiny.Items)
	}
	if len(tiny.Uses) != 1 || tiny.Uses[0] != "crate::dep" {
		t.Errorf("interior use not captured: %v", tiny.Uses)
	}
	if findItem(scan.Items, "t") != nil {
		t.Error("interior item leaked to file scope")
	}
	if findItem(scan.Items, "outer") == nil {
		t.Errorf("item after inline block dropped: %+v", scan.Items)
	}
}

func TestScanBrokenSource(t *testing.T) {
	src := "}}}\npub fn survivor() {}\nfn truncated(\n"
	scan := Scan("/p/src/broken.rs", "src/broken.rs", []byte(src))

	if findItem(scan.Items, "survivor") == nil {
		t.Error("extraction did not survive unbalanced braces")
	}
	if findItem(scan.Items, "truncated") == nil {
		t.Error("declaration without body not extracted")
	}
}

func TestScanComments(t *testing.T) {
	src := `
// fn commented_out() {}
/* struct AlsoOut; */
/*
fn in_block() {}
*/
pub fn real() {}
`
	scan := Scan("/p/src/c.rs", "src/c.rs", []byte(src))

	if len(scan.Items) != 1 || scan.Items[0].Name != "real" {
		t.Errorf("comment contents leaked into items: %+v", scan.Items)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		relPath string
		content string
		want    model.ModuleType
	}{
		{"src/main.rs", "", model.ModuleBinary},
		{"src/lib.rs", "", model.ModuleLibrary},
		{"src/net/tcp.rs", "", model.ModuleNormal},
		{"tests/integration.rs", "", model.ModuleTest},
		{"examples/demo.rs", "", model.ModuleExample},
		{"benches/speed.rs", "", model.ModuleBenchmark},
		{"src/util.rs", "#[cfg(test)]\nmod tests {}", model.ModuleTest},
		{"src/util.rs", "#[test]\nfn t() {}", model.ModuleTest},
	}
	for _, tt := range tests {
		if got := classify(tt.relPath, tt.content); got != tt.want {
			t.Errorf("classify(%q): got %s, want %s", tt.relPath, got, tt.want)
		}
	}
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		relPath string
		want    string
	}{
		{"src/main.rs", "main"},
		{"src/net/tcp.rs", "net::tcp"},
		{"src/net/mod.rs", "net"},
		{"tests/integration.rs", "integration"},
		{"lib.rs", "lib"},
	}
	for _, tt := range tests {
		if got := moduleName(tt.relPath); got != tt.want {
			t.Errorf("moduleName(%q): got %q, want %q", tt.relPath, got, tt.want)
		}
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		line    string
		inBlock bool
		want    string
		nowIn   bool
	}{
		{"code(); // trailing", false, "code();", false},
		{"let s = \"has // inside\"; // real", false, "let s = \"has // inside\";", false},
		{"before /* mid */ after", false, "before  after", false},
		{"/* opens", false, "", true},
		{"still inside", true, "", true},
		{"done */ code()", true, "code()", false},
	}
	for _, tt := range tests {
		got, nowIn := stripComments(tt.line, tt.inBlock)
		if got != tt.want || nowIn != tt.nowIn {
			t.Errorf("stripComments(%q, %v) = (%q, %v), want (%q, %v)",
				tt.line, tt.inBlock, got, nowIn, tt.want, tt.nowIn)
		}
	}
}
