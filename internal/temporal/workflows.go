// Package temporal runs the analysis pipeline as a durable workflow: one
// activity per stage, with the project structure serialized as JSON between
// them so each stage replays deterministically.
package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the queue analysis workflows and workers share.
const TaskQueue = "ferrolens-analysis"

// AnalysisInput holds the workflow parameters.
type AnalysisInput struct {
	RootPath string

	// RenderDocs controls whether the documentation stage runs.
	RenderDocs bool
}

// AnalysisOutput holds the workflow result.
type AnalysisOutput struct {
	StructureJSON string
	ProblemsJSON  string
	DocPath       string
}

// AnalysisWorkflow orchestrates the three-stage pipeline: analyze, detect
// problems, render documentation.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (*AnalysisOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var analyzed ActivityResult
	if err := workflow.ExecuteActivity(ctx, AnalyzeActivity, input).Get(ctx, &analyzed); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var probed ActivityResult
	if err := workflow.ExecuteActivity(ctx, ProblemsActivity, analyzed.StructureJSON).Get(ctx, &probed); err != nil {
		return nil, fmt.Errorf("problems: %w", err)
	}

	output := &AnalysisOutput{
		StructureJSON: analyzed.StructureJSON,
		ProblemsJSON:  probed.ProblemsJSON,
	}

	if input.RenderDocs {
		var rendered ActivityResult
		if err := workflow.ExecuteActivity(ctx, DocumentationActivity, analyzed.StructureJSON).Get(ctx, &rendered); err != nil {
			return nil, fmt.Errorf("documentation: %w", err)
		}
		output.DocPath = rendered.DocPath
	}

	return output, nil
}
