package graph

import (
	"context"

	"github.com/ferrolens/ferrolens/internal/model"
)

// Repository provides graph storage for analyzed project structures.
type Repository interface {
	// StoreStructure persists the modules and relationships of one run.
	StoreStructure(ctx context.Context, ps *model.ProjectStructure) error
	// LoadStructure retrieves the stored graph for a project root.
	LoadStructure(ctx context.Context, rootPath string) (*model.ProjectStructure, error)
	// QueryUsers returns the ids of modules with a uses edge to the given id.
	QueryUsers(ctx context.Context, moduleID string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
