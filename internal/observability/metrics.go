package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics and renders them in the
// Prometheus text exposition format.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. A nil buckets slice gets
// the default latency buckets.
func (r *MetricsRegistry) NewHistogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns the default latency buckets in seconds.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.Add(-1) }

// Add adds v to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the time elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes all metrics in Prometheus text format, sorted by
// name for stable output.
func (r *MetricsRegistry) WritePrometheus(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.Lock()
		writeSimple(w, c.name, "counter", c.help, c.value)
		c.mu.Unlock()
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.Lock()
		writeSimple(w, g.name, "gauge", g.help, g.value)
		g.mu.Unlock()
	}
	for _, name := range sortedKeys(r.histos) {
		h := r.histos[name]
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSimple(w http.ResponseWriter, name, metricType, help string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %s\n",
		name, help, name, metricType, name, formatFloat(value))
}

func writeHistogram(w http.ResponseWriter, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FerrolensMetrics contains all Ferrolens-specific metrics.
type FerrolensMetrics struct {
	Registry *MetricsRegistry

	AnalysesTotal    *Counter
	AnalysisErrors   *Counter
	AnalysisDuration *Histogram
	FilesWalkedTotal *Counter
	ModulesGauge     *Gauge

	ProblemRunsTotal *Counter
	CyclesGauge      *Gauge
	UnusedGauge      *Gauge

	DocRendersTotal *Counter
	DocRenderBytes  *Counter

	APIRequestsTotal   *Counter
	APIRequestDuration *Histogram
	ActiveAPIRequests  *Gauge
}

// NewFerrolensMetrics creates the full metric set on a fresh registry.
func NewFerrolensMetrics() *FerrolensMetrics {
	r := NewMetricsRegistry()
	return &FerrolensMetrics{
		Registry: r,

		AnalysesTotal:    r.NewCounter("ferrolens_analyses_total", "Total analysis runs"),
		AnalysisErrors:   r.NewCounter("ferrolens_analysis_errors_total", "Total failed analysis runs"),
		AnalysisDuration: r.NewHistogram("ferrolens_analysis_duration_seconds", "Analysis run duration", nil),
		FilesWalkedTotal: r.NewCounter("ferrolens_files_walked_total", "Total source files enumerated"),
		ModulesGauge:     r.NewGauge("ferrolens_modules", "Modules in the most recent analysis"),

		ProblemRunsTotal: r.NewCounter("ferrolens_problem_runs_total", "Total problem analysis runs"),
		CyclesGauge:      r.NewGauge("ferrolens_cycles", "Cycles found in the most recent problem run"),
		UnusedGauge:      r.NewGauge("ferrolens_unused_modules", "Unused modules in the most recent problem run"),

		DocRendersTotal: r.NewCounter("ferrolens_doc_renders_total", "Total documentation renders"),
		DocRenderBytes:  r.NewCounter("ferrolens_doc_render_bytes_total", "Total rendered documentation bytes"),

		APIRequestsTotal:   r.NewCounter("ferrolens_api_requests_total", "Total API requests"),
		APIRequestDuration: r.NewHistogram("ferrolens_api_request_duration_seconds", "API request duration", nil),
		ActiveAPIRequests:  r.NewGauge("ferrolens_api_active_requests", "In-flight API requests"),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *FerrolensMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordAnalysis records one analysis run.
func (m *FerrolensMetrics) RecordAnalysis(duration time.Duration, files, modules int, err error) {
	m.AnalysesTotal.Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
	m.FilesWalkedTotal.Add(float64(files))
	if err != nil {
		m.AnalysisErrors.Inc()
		return
	}
	m.ModulesGauge.Set(float64(modules))
}

// RecordProblemRun records one problem analysis run.
func (m *FerrolensMetrics) RecordProblemRun(cycles, unused int) {
	m.ProblemRunsTotal.Inc()
	m.CyclesGauge.Set(float64(cycles))
	m.UnusedGauge.Set(float64(unused))
}

// RecordDocRender records one documentation render.
func (m *FerrolensMetrics) RecordDocRender(bytes int) {
	m.DocRendersTotal.Inc()
	m.DocRenderBytes.Add(float64(bytes))
}

var (
	globalMetrics *FerrolensMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *FerrolensMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewFerrolensMetrics()
	})
	return globalMetrics
}
