package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probeStatus(t *testing.T, h http.Handler, path string) (int, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, resp
}

func TestHealthNoChecks(t *testing.T) {
	s := NewHealthServer(&HealthConfig{Version: "1.2.3"})

	code, resp := probeStatus(t, s.Handler(), "/health")
	if code != http.StatusOK || resp.Status != HealthStatusHealthy {
		t.Errorf("got %d %s", code, resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version %q", resp.Version)
	}
}

func TestHealthAggregation(t *testing.T) {
	healthy := func(context.Context) HealthCheck { return HealthCheck{Status: HealthStatusHealthy} }
	degraded := func(context.Context) HealthCheck { return HealthCheck{Status: HealthStatusDegraded} }
	unhealthy := func(context.Context) HealthCheck { return HealthCheck{Status: HealthStatusUnhealthy} }

	tests := []struct {
		name     string
		checks   map[string]HealthChecker
		wantCode int
		want     HealthStatus
	}{
		{"all healthy", map[string]HealthChecker{"a": healthy, "b": healthy}, http.StatusOK, HealthStatusHealthy},
		{"one degraded", map[string]HealthChecker{"a": healthy, "b": degraded}, http.StatusOK, HealthStatusDegraded},
		{"one unhealthy", map[string]HealthChecker{"a": degraded, "b": unhealthy}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewHealthServer(nil)
			for name, c := range tt.checks {
				s.RegisterCheck(name, c)
			}
			code, resp := probeStatus(t, s.Handler(), "/health")
			if code != tt.wantCode || resp.Status != tt.want {
				t.Errorf("got %d %s, want %d %s", code, resp.Status, tt.wantCode, tt.want)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("got %d checks, want %d", len(resp.Checks), len(tt.checks))
			}
		})
	}
}

func TestReadinessFlips(t *testing.T) {
	s := NewHealthServer(nil)
	h := s.Handler()

	if code, _ := probeStatus(t, h, "/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("not-ready probe: %d", code)
	}
	s.SetReady(true)
	if code, _ := probeStatus(t, h, "/ready"); code != http.StatusOK {
		t.Errorf("ready probe: %d", code)
	}
	s.SetReady(false)
	if code, _ := probeStatus(t, h, "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("readyz alias: %d", code)
	}
}

func TestLivenessDefaultsTrue(t *testing.T) {
	s := NewHealthServer(nil)
	h := s.Handler()

	if code, _ := probeStatus(t, h, "/live"); code != http.StatusOK {
		t.Errorf("live probe: %d", code)
	}
	s.SetLive(false)
	if code, _ := probeStatus(t, h, "/livez"); code != http.StatusServiceUnavailable {
		t.Errorf("livez after SetLive(false): %d", code)
	}
}

func TestSinkCheckersDegradeNotFail(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }

	if c := GraphHealthChecker(down)(context.Background()); c.Status != HealthStatusDegraded {
		t.Errorf("graph checker: %s", c.Status)
	}
	if c := VectorHealthChecker(down)(context.Background()); c.Status != HealthStatusDegraded {
		t.Errorf("vector checker: %s", c.Status)
	}
	// Temporal is load-bearing for the worker, so it reports unhealthy.
	if c := TemporalHealthChecker(down)(context.Background()); c.Status != HealthStatusUnhealthy {
		t.Errorf("temporal checker: %s", c.Status)
	}
}

func TestProjectRootChecker(t *testing.T) {
	dir := t.TempDir()
	if c := ProjectRootHealthChecker(dir)(context.Background()); c.Status != HealthStatusHealthy {
		t.Errorf("existing dir: %s", c.Status)
	}
	if c := ProjectRootHealthChecker(dir + "/gone")(context.Background()); c.Status != HealthStatusUnhealthy {
		t.Errorf("missing dir: %s", c.Status)
	}
}
