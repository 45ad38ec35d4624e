package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrolens/ferrolens/internal/api"
	"github.com/ferrolens/ferrolens/internal/config"
	graphneo4j "github.com/ferrolens/ferrolens/internal/graph/neo4j"
	"github.com/ferrolens/ferrolens/internal/model"
	"github.com/ferrolens/ferrolens/internal/observability"
	"github.com/ferrolens/ferrolens/internal/problems"
	"github.com/ferrolens/ferrolens/internal/server"
	"github.com/ferrolens/ferrolens/internal/service"
	"github.com/ferrolens/ferrolens/internal/snapshot"
	"github.com/ferrolens/ferrolens/internal/vector"
	vectorqdrant "github.com/ferrolens/ferrolens/internal/vector/qdrant"
)

func main() {
	var (
		configPath   string
		jsonOutput   bool
		saveGraph    bool
		indexVectors bool
		saveSnapshot bool
	)

	rootCmd := &cobra.Command{
		Use:   "ferrolens",
		Short: "Structural analyzer for Rust source trees",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <project-root>",
		Short: "Analyze a source tree and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), configPath, args[0], jsonOutput, saveGraph, indexVectors, saveSnapshot)
		},
	}
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the structure as JSON")
	analyzeCmd.Flags().BoolVar(&saveGraph, "save-graph", false, "Persist the structure to the graph store")
	analyzeCmd.Flags().BoolVar(&indexVectors, "index", false, "Index module embeddings in the vector store")
	analyzeCmd.Flags().BoolVar(&saveSnapshot, "snapshot", false, "Save the result as a snapshot")

	problemsCmd := &cobra.Command{
		Use:   "problems <project-root>",
		Short: "Analyze a source tree and report structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProblems(cmd.Context(), configPath, args[0], jsonOutput)
		},
	}
	problemsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	docsCmd := &cobra.Command{
		Use:   "docs <project-root>",
		Short: "Analyze a source tree and write markdown documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(cmd.Context(), configPath, args[0])
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <project-root> | diff <old-id> <new-id>",
		Short: "Diff two snapshots, or a source tree against its latest snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return runDiffSnapshots(configPath, args[0], args[1])
			}
			return runDiff(cmd.Context(), configPath, args[0])
		},
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <project-root> [module-id]",
		Short: "Read a stored structure from the graph store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID := ""
			if len(args) == 2 {
				moduleID = args[1]
			}
			return runInspect(cmd.Context(), configPath, args[0], moduleID)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyzer over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	rootCmd.AddCommand(analyzeCmd, problemsCmd, docsCmd, diffCmd, inspectCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(configPath string) *config.Config {
	if configPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		return config.Default()
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildService wires the service with the sinks the flags and config select.
// Returns a cleanup function closing whatever was opened.
func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger, saveGraph, indexVectors bool) (*service.Service, func(), error) {
	opts := []service.Option{
		service.WithThresholds(problems.Thresholds{
			LargeModuleLines:   cfg.Analyzer.LargeModuleLines,
			HighCouplingDegree: cfg.Analyzer.HighCouplingDegree,
		}),
	}
	var closers []func()

	if saveGraph {
		if cfg.Graph.URI == "" {
			return nil, nil, fmt.Errorf("--save-graph requires graph.uri in config")
		}
		repo, err := graphneo4j.New(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("graph store: %w", err)
		}
		opts = append(opts, service.WithGraph(repo))
		closers = append(closers, func() { repo.Close(context.Background()) })
	}

	if indexVectors {
		if cfg.Vector.Host == "" {
			return nil, nil, fmt.Errorf("--index requires vector.host in config")
		}
		repo, err := vectorqdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			return nil, nil, fmt.Errorf("vector store: %w", err)
		}
		opts = append(opts, service.WithIndexer(vector.NewEmbedder(repo)))
		closers = append(closers, func() { repo.Close() })
	}

	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}
	return service.New(logger, opts...), cleanup, nil
}

func runAnalyze(ctx context.Context, configPath, root string, jsonOutput, saveGraph, indexVectors, saveSnapshot bool) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)

	svc, cleanup, err := buildService(ctx, cfg, logger, saveGraph, indexVectors)
	if err != nil {
		return err
	}
	defer cleanup()

	ps, err := svc.AnalyzeProject(ctx, root)
	if err != nil {
		return err
	}

	if saveSnapshot {
		if err := saveSnapshotOf(cfg, ps, svc.AnalyzeProblems(ctx, ps)); err != nil {
			return err
		}
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(ps)
	}
	printStructure(ps)
	return nil
}

func runProblems(ctx context.Context, configPath, root string, jsonOutput bool) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)

	svc, cleanup, err := buildService(ctx, cfg, logger, false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ps, err := svc.AnalyzeProject(ctx, root)
	if err != nil {
		return err
	}
	report := svc.AnalyzeProblems(ctx, ps)

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(report)
	}
	printProblems(report)
	return nil
}

func runDocs(ctx context.Context, configPath, root string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)

	svc, cleanup, err := buildService(ctx, cfg, logger, false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ps, err := svc.AnalyzeProject(ctx, root)
	if err != nil {
		return err
	}
	path, err := svc.GenerateDocumentation(ctx, ps)
	if err != nil {
		return err
	}
	fmt.Printf("Documentation written to %s\n", path)
	return nil
}

func runDiff(ctx context.Context, configPath, root string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	if cfg.Analyzer.SnapshotDir == "" {
		return fmt.Errorf("diff requires analyzer.snapshot_dir in config")
	}

	store, err := snapshot.NewStore(cfg.Analyzer.SnapshotDir)
	if err != nil {
		return err
	}
	old, err := store.Latest(root)
	if err != nil {
		return fmt.Errorf("no baseline: %w", err)
	}

	svc, cleanup, err := buildService(ctx, cfg, logger, false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ps, err := svc.AnalyzeProject(ctx, root)
	if err != nil {
		return err
	}
	current := snapshot.New(ps, svc.AnalyzeProblems(ctx, ps), old.ID)
	if err := store.Save(current); err != nil {
		return err
	}

	diff := snapshot.Diff(old, current)
	return json.NewEncoder(os.Stdout).Encode(diff)
}

// runDiffSnapshots diffs two stored snapshots by id without re-analyzing.
func runDiffSnapshots(configPath, oldID, newID string) error {
	cfg := loadConfig(configPath)
	if cfg.Analyzer.SnapshotDir == "" {
		return fmt.Errorf("diff requires analyzer.snapshot_dir in config")
	}

	store, err := snapshot.NewStore(cfg.Analyzer.SnapshotDir)
	if err != nil {
		return err
	}
	old, err := store.Load(oldID)
	if err != nil {
		return fmt.Errorf("old snapshot: %w", err)
	}
	current, err := store.Load(newID)
	if err != nil {
		return fmt.Errorf("new snapshot: %w", err)
	}

	diff := snapshot.Diff(old, current)
	return json.NewEncoder(os.Stdout).Encode(diff)
}

func runInspect(ctx context.Context, configPath, root, moduleID string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	if cfg.Graph.URI == "" {
		return fmt.Errorf("inspect requires graph.uri in config")
	}

	svc, cleanup, err := buildService(ctx, cfg, logger, true, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if moduleID != "" {
		users, err := svc.ModuleUsers(ctx, moduleID)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Printf("No modules use %s\n", moduleID)
			return nil
		}
		fmt.Printf("Modules using %s:\n", moduleID)
		for _, id := range users {
			fmt.Printf("  %s\n", id)
		}
		return nil
	}

	ps, err := svc.StoredStructure(ctx, root)
	if err != nil {
		return err
	}
	printStructure(ps)
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ferrolens",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(ctx, cfg, logger, cfg.Graph.URI != "", cfg.Vector.Host != "")
	if err != nil {
		return err
	}
	defer cleanup()

	apiServer := api.NewServer(&api.Config{
		ListenAddr: cfg.API.Addr,
		MaxRuns:    cfg.API.MaxRuns,
	}, svc)

	graceful := server.NewGracefulServer(&server.HealthConfig{Version: "0.1.0"}, nil)
	graceful.RegisterHook("api-server", 10, apiServer.Stop)
	graceful.RegisterHook("tracing", 80, tp.Shutdown)

	if err := graceful.Start(":8080"); err != nil {
		return err
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server stopped", "error", err)
			graceful.Shutdown.Shutdown()
		}
	}()

	graceful.Wait()
	return nil
}

func saveSnapshotOf(cfg *config.Config, ps *model.ProjectStructure, report *model.ProjectProblems) error {
	if cfg.Analyzer.SnapshotDir == "" {
		return fmt.Errorf("--snapshot requires analyzer.snapshot_dir in config")
	}
	store, err := snapshot.NewStore(cfg.Analyzer.SnapshotDir)
	if err != nil {
		return err
	}
	parentID := ""
	if prev, err := store.Latest(ps.RootPath); err == nil {
		parentID = prev.ID
	}
	snap := snapshot.New(ps, report, parentID)
	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("Snapshot %s saved\n", snap.ID)
	return nil
}

func printStructure(ps *model.ProjectStructure) {
	fmt.Printf("Project: %s\n", ps.RootPath)
	fmt.Printf("Modules: %d, Relationships: %d, Dependencies: %d\n\n",
		len(ps.Modules), len(ps.Relationships), len(ps.Dependencies))
	for _, m := range ps.Modules {
		fmt.Printf("  %-10s %-40s %d items\n", m.ModuleType, m.Name, len(m.Items))
	}
}

func printProblems(report *model.ProjectProblems) {
	if len(report.Cycles) == 0 && len(report.UnusedModules) == 0 &&
		len(report.LargeModules) == 0 && len(report.HighlyCoupled) == 0 {
		fmt.Println("No structural problems found.")
		return
	}
	if len(report.Cycles) > 0 {
		fmt.Printf("Dependency cycles (%d):\n", len(report.Cycles))
		for _, cycle := range report.Cycles {
			fmt.Printf("  %s\n", strings.Join(cycle, " -> "))
		}
	}
	if len(report.UnusedModules) > 0 {
		fmt.Printf("Unused modules (%d):\n", len(report.UnusedModules))
		for _, name := range report.UnusedModules {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(report.LargeModules) > 0 {
		fmt.Printf("Large modules (%d):\n", len(report.LargeModules))
		for _, entry := range report.LargeModules {
			fmt.Printf("  %s\n", entry)
		}
	}
	if len(report.HighlyCoupled) > 0 {
		fmt.Printf("Highly coupled modules (%d):\n", len(report.HighlyCoupled))
		for _, entry := range report.HighlyCoupled {
			fmt.Printf("  %s\n", entry)
		}
	}
}
