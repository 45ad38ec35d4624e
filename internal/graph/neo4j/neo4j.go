package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ferrolens/ferrolens/internal/graph"
	"github.com/ferrolens/ferrolens/internal/model"
)

// Repository implements graph.Repository using Neo4j. Modules become Module
// nodes keyed by (project, id); relationships become DECLARES and USES edges.
type Repository struct {
	driver neo4j.DriverWithContext
}

// New creates a Neo4j-backed repository and verifies connectivity up front so
// a misconfigured sink fails at startup, not mid-run.
func New(ctx context.Context, uri, username, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver}, nil
}

func (r *Repository) StoreStructure(ctx context.Context, ps *model.ProjectStructure) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, m := range ps.Modules {
			_, err := tx.Run(ctx,
				"MERGE (m:Module {project: $project, id: $id}) "+
					"SET m.name = $name, m.path = $path, m.module_type = $mtype, "+
					"m.visibility = $vis, m.item_count = $items",
				map[string]any{
					"project": ps.RootPath,
					"id":      m.ID,
					"name":    m.Name,
					"path":    m.Path,
					"mtype":   string(m.ModuleType),
					"vis":     string(m.Visibility),
					"items":   len(m.Items),
				})
			if err != nil {
				return nil, fmt.Errorf("store module %s: %w", m.ID, err)
			}
		}
		for _, rel := range ps.Relationships {
			_, err := tx.Run(ctx,
				fmt.Sprintf("MATCH (a:Module {project: $project, id: $from}) "+
					"MATCH (b:Module {project: $project, id: $to}) "+
					"MERGE (a)-[:%s]->(b)", edgeLabel(rel.RelType)),
				map[string]any{
					"project": ps.RootPath,
					"from":    rel.From,
					"to":      rel.To,
				})
			if err != nil {
				return nil, fmt.Errorf("store edge %s->%s: %w", rel.From, rel.To, err)
			}
		}
		return nil, nil
	})
	return err
}

func (r *Repository) LoadStructure(ctx context.Context, rootPath string) (*model.ProjectStructure, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		ps := &model.ProjectStructure{
			RootPath:      rootPath,
			Modules:       []model.Module{},
			Dependencies:  []model.Dependency{},
			Relationships: []model.Relationship{},
		}

		records, err := tx.Run(ctx,
			"MATCH (m:Module {project: $project}) "+
				"RETURN m.id, m.name, m.path, m.module_type, m.visibility ORDER BY m.id",
			map[string]any{"project": rootPath})
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			rec := records.Record()
			ps.Modules = append(ps.Modules, model.Module{
				ID:         stringAt(rec, "m.id"),
				Name:       stringAt(rec, "m.name"),
				Path:       stringAt(rec, "m.path"),
				ModuleType: model.ModuleType(stringAt(rec, "m.module_type")),
				Visibility: model.Visibility(stringAt(rec, "m.visibility")),
				Items:      []model.Item{},
			})
		}

		records, err = tx.Run(ctx,
			"MATCH (a:Module {project: $project})-[r]->(b:Module {project: $project}) "+
				"RETURN a.id, b.id, type(r) ORDER BY a.id, b.id",
			map[string]any{"project": rootPath})
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			rec := records.Record()
			ps.Relationships = append(ps.Relationships, model.Relationship{
				From:    stringAt(rec, "a.id"),
				To:      stringAt(rec, "b.id"),
				RelType: model.RelationType(strings.ToLower(stringAt(rec, "type(r)"))),
			})
		}
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.ProjectStructure), nil
}

func (r *Repository) QueryUsers(ctx context.Context, moduleID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (a:Module)-[:USES]->(:Module {id: $id}) RETURN a.id ORDER BY a.id",
			map[string]any{"id": moduleID})
		if err != nil {
			return nil, err
		}
		var ids []string
		for records.Next(ctx) {
			ids = append(ids, stringAt(records.Record(), "a.id"))
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func edgeLabel(t model.RelationType) string {
	if t == model.RelDeclares {
		return "DECLARES"
	}
	return "USES"
}

func stringAt(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

var _ graph.Repository = (*Repository)(nil)
