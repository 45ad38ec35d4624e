package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ferrolens/ferrolens/internal/model"
	"github.com/ferrolens/ferrolens/internal/service"
)

func testServer() *Server {
	svc := service.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewServer(&Config{ListenAddr: ":0"}, svc)
}

func (s *Server) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return v
}

func fixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"src/main.rs": "use crate::util;\nfn main() {}\n",
		"src/util.rs": "pub fn helper() {}\n",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestHandleAnalyze(t *testing.T) {
	s := testServer()
	root := fixtureTree(t)

	rec := s.do(t, http.MethodPost, "/api/analyze", map[string]string{"root_path": root})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	ps := decode[model.ProjectStructure](t, rec)
	if ps.RootPath != root || len(ps.Modules) != 2 {
		t.Errorf("unexpected structure: root=%q modules=%d", ps.RootPath, len(ps.Modules))
	}

	runs := s.Store().ListRuns()
	if len(runs) != 1 || runs[0].Status != StatusCompleted || runs[0].Modules != 2 {
		t.Errorf("run not recorded: %+v", runs)
	}
}

func TestHandleAnalyzeMissingRoot(t *testing.T) {
	s := testServer()

	rec := s.do(t, http.MethodPost, "/api/analyze",
		map[string]string{"root_path": filepath.Join(t.TempDir(), "gone")})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", rec.Code)
	}
	runs := s.Store().ListRuns()
	if len(runs) != 1 || runs[0].Status != StatusFailed || runs[0].Error == "" {
		t.Errorf("failed run not recorded: %+v", runs)
	}
}

func TestHandleAnalyzeBadRequest(t *testing.T) {
	s := testServer()
	rec := s.do(t, http.MethodPost, "/api/analyze", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/analyze", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status %d, want 405", rec.Code)
	}
}

func TestHandleProblems(t *testing.T) {
	s := testServer()
	ps := &model.ProjectStructure{
		RootPath: "/p",
		Modules: []model.Module{
			{ID: "a", Name: "a", ModuleType: model.ModuleNormal},
			{ID: "b", Name: "b", ModuleType: model.ModuleNormal},
		},
		Relationships: []model.Relationship{
			{From: "a", To: "b", RelType: model.RelUses},
			{From: "b", To: "a", RelType: model.RelUses},
		},
	}

	rec := s.do(t, http.MethodPost, "/api/problems", ps)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[model.ProjectProblems](t, rec)
	if len(report.Cycles) != 1 {
		t.Errorf("cycles: %v", report.Cycles)
	}
}

func TestHandleDocs(t *testing.T) {
	s := testServer()
	root := t.TempDir()
	ps := &model.ProjectStructure{RootPath: root}

	rec := s.do(t, http.MethodPost, "/api/docs", ps)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string]string](t, rec)
	want := filepath.Join(root, "PROJECT_STRUCTURE.md")
	if resp["path"] != want {
		t.Errorf("path: got %q, want %q", resp["path"], want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("document not written: %v", err)
	}
}

func TestHandleDocsUnwritableRoot(t *testing.T) {
	s := testServer()
	ps := &model.ProjectStructure{RootPath: filepath.Join(t.TempDir(), "missing")}
	rec := s.do(t, http.MethodPost, "/api/docs", ps)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status %d, want 422", rec.Code)
	}
}

func TestHandleFileRoundTrip(t *testing.T) {
	s := testServer()
	path := filepath.Join(t.TempDir(), "snippet.rs")

	rec := s.do(t, http.MethodPut, "/api/file",
		saveFileRequest{Path: path, Content: "fn x(){}"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/file?path="+url.QueryEscape(path), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string]string](t, rec)
	if resp["content"] != "fn x(){}" {
		t.Errorf("content: %q", resp["content"])
	}
}

func TestHandleFileMissing(t *testing.T) {
	s := testServer()
	rec := s.do(t, http.MethodGet, "/api/file?path=/nonexistent/file.rs", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/file", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing query status %d, want 400", rec.Code)
	}
}

func TestHandleRunsAndDetail(t *testing.T) {
	s := testServer()
	s.Store().CreateRun(finishedRun("abc123", time.Now()))

	rec := s.do(t, http.MethodGet, "/api/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	runs := decode[[]*AnalysisRun](t, rec)
	if len(runs) != 1 || runs[0].ID != "abc123" {
		t.Errorf("runs: %+v", runs)
	}

	rec = s.do(t, http.MethodGet, "/api/runs/abc123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/runs/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status %d, want 404", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	s := testServer()
	s.Store().CreateRun(finishedRun("r1", time.Now()))

	rec := s.do(t, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	stats := decode[Stats](t, rec)
	if stats.TotalRuns != 1 || stats.CompletedRuns != 1 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer()
	rec := s.do(t, http.MethodOptions, "/api/analyze", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer()
	rec := s.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ferrolens_") {
		t.Error("metrics output missing ferrolens series")
	}
}
