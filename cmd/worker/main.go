package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/ferrolens/ferrolens/internal/config"
	graphneo4j "github.com/ferrolens/ferrolens/internal/graph/neo4j"
	"github.com/ferrolens/ferrolens/internal/observability"
	"github.com/ferrolens/ferrolens/internal/service"
	temporalmod "github.com/ferrolens/ferrolens/internal/temporal"
	"github.com/ferrolens/ferrolens/internal/vector"
	vectorqdrant "github.com/ferrolens/ferrolens/internal/vector/qdrant"
)

func main() {
	ctx := context.Background()

	cfg := config.Default()
	if len(os.Args) > 1 {
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ferrolens-worker",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer tp.Shutdown(ctx)

	opts := []service.Option{}
	if cfg.Graph.URI != "" {
		repo, err := graphneo4j.New(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			log.Fatalf("graph store: %v", err)
		}
		defer repo.Close(ctx)
		opts = append(opts, service.WithGraph(repo))
	}
	if cfg.Vector.Host != "" {
		repo, err := vectorqdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
		defer repo.Close()
		opts = append(opts, service.WithIndexer(vector.NewEmbedder(repo)))
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Service: service.New(logger, opts...),
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = temporalmod.TaskQueue
	}
	w, err := temporalmod.StartWorker(c, taskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", taskQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	w.Stop()
	fmt.Println("Worker stopped")
}
