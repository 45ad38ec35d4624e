package temporal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ferrolens/ferrolens/internal/model"
	"github.com/ferrolens/ferrolens/internal/service"
)

// ActivityResult is the serializable result passed between activities.
type ActivityResult struct {
	StructureJSON string
	ProblemsJSON  string
	DocPath       string
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Service *service.Service
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func AnalyzeActivity(ctx context.Context, input AnalysisInput) (ActivityResult, error) {
	ps, err := deps.Service.AnalyzeProject(ctx, input.RootPath)
	if err != nil {
		return ActivityResult{}, err
	}
	out, err := json.Marshal(ps)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal structure: %w", err)
	}
	return ActivityResult{StructureJSON: string(out)}, nil
}

func ProblemsActivity(ctx context.Context, structureJSON string) (ActivityResult, error) {
	var ps model.ProjectStructure
	if err := json.Unmarshal([]byte(structureJSON), &ps); err != nil {
		return ActivityResult{}, err
	}

	report := deps.Service.AnalyzeProblems(ctx, &ps)
	out, err := json.Marshal(report)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal problems: %w", err)
	}
	return ActivityResult{ProblemsJSON: string(out)}, nil
}

func DocumentationActivity(ctx context.Context, structureJSON string) (ActivityResult, error) {
	var ps model.ProjectStructure
	if err := json.Unmarshal([]byte(structureJSON), &ps); err != nil {
		return ActivityResult{}, err
	}

	path, err := deps.Service.GenerateDocumentation(ctx, &ps)
	if err != nil {
		return ActivityResult{}, err
	}
	return ActivityResult{DocPath: path}, nil
}
