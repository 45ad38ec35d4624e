// Package service is the command boundary of the analyzer: one method per
// operation the outer surfaces call. It orchestrates the pipeline stages and
// fans results out to the optional graph and vector sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferrolens/ferrolens/internal/builder"
	"github.com/ferrolens/ferrolens/internal/docgen"
	"github.com/ferrolens/ferrolens/internal/extract"
	"github.com/ferrolens/ferrolens/internal/graph"
	"github.com/ferrolens/ferrolens/internal/manifest"
	"github.com/ferrolens/ferrolens/internal/model"
	"github.com/ferrolens/ferrolens/internal/observability"
	"github.com/ferrolens/ferrolens/internal/problems"
	"github.com/ferrolens/ferrolens/internal/walker"
)

// Indexer stores module embeddings for similarity search. Satisfied by
// vector.Embedder.
type Indexer interface {
	IndexStructure(ctx context.Context, ps *model.ProjectStructure) error
}

// Service implements the analyzer operations. The graph and vector sinks are
// optional: a nil sink is skipped, a failing sink logs a warning and never
// fails the operation that triggered it.
type Service struct {
	logger     *slog.Logger
	graph      graph.Repository
	indexer    Indexer
	metrics    *observability.FerrolensMetrics
	thresholds problems.Thresholds
}

// Option configures a Service.
type Option func(*Service)

// WithGraph attaches a graph sink.
func WithGraph(repo graph.Repository) Option {
	return func(s *Service) { s.graph = repo }
}

// WithIndexer attaches a vector index sink.
func WithIndexer(idx Indexer) Option {
	return func(s *Service) { s.indexer = idx }
}

// WithMetrics overrides the process-wide metrics instance.
func WithMetrics(m *observability.FerrolensMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithThresholds overrides the problem analysis thresholds.
func WithThresholds(th problems.Thresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

// New creates a Service. A nil logger falls back to slog.Default.
func New(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:  logger,
		metrics: observability.Metrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeProject runs the full pipeline over the tree rooted at rootPath and
// returns the project structure. The walk and the build are sequential; file
// extraction fans out across cores in between.
func (s *Service) AnalyzeProject(ctx context.Context, rootPath string) (*model.ProjectStructure, error) {
	start := time.Now()
	ctx, span := observability.StartAnalysisSpan(ctx, rootPath)
	defer span.End()

	ps, fileCount, err := s.analyze(ctx, rootPath)
	s.metrics.RecordAnalysis(time.Since(start), fileCount, moduleCount(ps), err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.RecordStructure(span, len(ps.Modules), len(ps.Relationships), len(ps.Dependencies))

	s.logger.Info("analysis complete",
		"root", rootPath,
		"files", fileCount,
		"modules", len(ps.Modules),
		"relationships", len(ps.Relationships),
		"duration", time.Since(start))

	s.sink(ctx, ps)
	return ps, nil
}

func (s *Service) analyze(ctx context.Context, rootPath string) (*model.ProjectStructure, int, error) {
	_, walkSpan := observability.StartStageSpan(ctx, observability.SpanKindWalk)
	res, err := walker.Walk(rootPath)
	if err != nil {
		observability.RecordError(walkSpan, err)
		walkSpan.End()
		return nil, 0, err
	}
	observability.RecordWalkResult(walkSpan, len(res.Files), len(res.Warnings))
	walkSpan.End()
	for _, w := range res.Warnings {
		s.logger.Warn("walk warning", "detail", w)
	}

	deps, err := manifest.Load(rootPath)
	if err != nil {
		s.logger.Warn("manifest unreadable, continuing without dependencies", "error", err)
		deps = nil
	}

	extractCtx, extractSpan := observability.StartStageSpan(ctx, observability.SpanKindExtract)
	relPaths := make([]string, len(res.Files))
	scans := make([]*extract.FileScan, len(res.Files))
	g, gctx := errgroup.WithContext(extractCtx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range res.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(rootPath, path)
			if err != nil {
				rel = path
			}
			relPaths[i] = rel
			content, err := os.ReadFile(path)
			if err != nil {
				// A file that vanished mid-run degrades to an empty module.
				s.logger.Warn("file unreadable, extracting empty", "path", path, "error", err)
				content = nil
			}
			scans[i] = extract.Scan(path, rel, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordError(extractSpan, err)
		extractSpan.End()
		return nil, len(res.Files), err
	}
	extractSpan.End()

	_, buildSpan := observability.StartStageSpan(ctx, observability.SpanKindBuild)
	ps := builder.Build(rootPath, relPaths, scans, deps)
	buildSpan.End()

	return ps, len(res.Files), nil
}

// sink pushes the structure to the configured graph and vector stores.
// Sink failures are logged and swallowed: persistence is an enrichment, the
// analysis result is already in hand.
func (s *Service) sink(ctx context.Context, ps *model.ProjectStructure) {
	if s.graph != nil {
		if err := s.graph.StoreStructure(ctx, ps); err != nil {
			s.logger.Warn("graph store failed", "error", err)
		}
	}
	if s.indexer != nil {
		if err := s.indexer.IndexStructure(ctx, ps); err != nil {
			s.logger.Warn("vector index failed", "error", err)
		}
	}
}

// AnalyzeProblems runs the problem passes over an already-built structure.
// It always succeeds on a well-formed input.
func (s *Service) AnalyzeProblems(ctx context.Context, ps *model.ProjectStructure) *model.ProjectProblems {
	_, span := observability.StartStageSpan(ctx, observability.SpanKindProblems)
	defer span.End()

	report := problems.AnalyzeWith(ps, s.thresholds)
	observability.RecordProblemCounts(span,
		len(report.Cycles), len(report.UnusedModules),
		len(report.LargeModules), len(report.HighlyCoupled))
	s.metrics.RecordProblemRun(len(report.Cycles), len(report.UnusedModules))

	s.logger.Info("problem analysis complete",
		"cycles", len(report.Cycles),
		"unused", len(report.UnusedModules))
	return report
}

// GenerateDocumentation renders the structure to markdown next to the project
// root and returns the output path.
func (s *Service) GenerateDocumentation(ctx context.Context, ps *model.ProjectStructure) (string, error) {
	_, span := observability.StartStageSpan(ctx, observability.SpanKindRender)
	defer span.End()

	outPath := filepath.Join(ps.RootPath, "PROJECT_STRUCTURE.md")
	size, err := docgen.Save(ps, outPath)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	s.metrics.RecordDocRender(size)
	s.logger.Info("documentation written", "path", outPath)
	return outPath, nil
}

// ErrNoGraphStore is returned by the graph read operations when the service
// was built without a graph sink.
var ErrNoGraphStore = errors.New("no graph store configured")

// StoredStructure loads the last structure persisted to the graph store for a
// project root.
func (s *Service) StoredStructure(ctx context.Context, rootPath string) (*model.ProjectStructure, error) {
	if s.graph == nil {
		return nil, ErrNoGraphStore
	}
	return s.graph.LoadStructure(ctx, rootPath)
}

// ModuleUsers returns the ids of modules in the graph store with a uses edge
// to the given module.
func (s *Service) ModuleUsers(ctx context.Context, moduleID string) ([]string, error) {
	if s.graph == nil {
		return nil, ErrNoGraphStore
	}
	return s.graph.QueryUsers(ctx, moduleID)
}

// ReadFileContent returns the text of one file.
func (s *Service) ReadFileContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// SaveFileContent overwrites one file with the given text.
func (s *Service) SaveFileContent(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func moduleCount(ps *model.ProjectStructure) int {
	if ps == nil {
		return 0
	}
	return len(ps.Modules)
}
