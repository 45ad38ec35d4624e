package observability

import (
	"context"
	"errors"
	"testing"
)

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), &TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("nil tracer")
	}
	// No provider was built, so shutdown is a no-op.
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInitTracingNilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("nil tracer")
	}
}

func TestStageSpans(t *testing.T) {
	ctx := context.Background()

	ctx, root := StartAnalysisSpan(ctx, "/p")
	defer root.End()

	for _, kind := range []string{SpanKindWalk, SpanKindExtract, SpanKindBuild, SpanKindProblems, SpanKindRender} {
		_, span := StartStageSpan(ctx, kind)
		RecordWalkResult(span, 10, 1)
		RecordStructure(span, 3, 2, 1)
		RecordProblemCounts(span, 0, 1, 0, 0)
		RecordError(span, errors.New("boom"))
		RecordError(span, nil)
		span.End()
	}
}
