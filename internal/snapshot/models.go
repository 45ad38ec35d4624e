// Package snapshot persists point-in-time captures of analysis results so
// two runs over the same tree can be compared after the tree changed.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ferrolens/ferrolens/internal/model"
)

// Snapshot is one captured analysis result.
type Snapshot struct {
	ID          string            `json:"id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Tag         string            `json:"tag,omitempty"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	RootPath    string            `json:"root_path"`
	ContentHash string            `json:"content_hash"`
	Modules     int               `json:"modules"`
	Items       int               `json:"items"`
	Cycles      int               `json:"cycles"`
	Unused      int               `json:"unused"`
	Structure   *model.ProjectStructure `json:"structure"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Index is a lightweight listing of all snapshots for fast lookup.
type Index struct {
	Snapshots []Summary `json:"snapshots"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the minimal info for listing snapshots.
type Summary struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	RootPath  string    `json:"root_path"`
	Modules   int       `json:"modules"`
}

// Summary returns the listing entry for this snapshot.
func (s *Snapshot) Summary() Summary {
	return Summary{
		ID:        s.ID,
		ParentID:  s.ParentID,
		Tag:       s.Tag,
		CreatedAt: s.CreatedAt,
		RootPath:  s.RootPath,
		Modules:   s.Modules,
	}
}

// New builds a snapshot from an analysis result. The id is the content hash
// of the structure, so identical results snapshot to the same id.
func New(ps *model.ProjectStructure, report *model.ProjectProblems, parentID string) *Snapshot {
	items := 0
	for _, m := range ps.Modules {
		items += len(m.Items)
	}

	hash := StructureHash(ps)
	snap := &Snapshot{
		ID:          hash[:12],
		ParentID:    parentID,
		CreatedAt:   time.Now().UTC(),
		RootPath:    ps.RootPath,
		ContentHash: hash,
		Modules:     len(ps.Modules),
		Items:       items,
		Structure:   ps,
	}
	if report != nil {
		snap.Cycles = len(report.Cycles)
		snap.Unused = len(report.UnusedModules)
	}
	return snap
}

// StructureHash returns the sha256 hex of the structure's canonical JSON.
func StructureHash(ps *model.ProjectStructure) string {
	data, err := json.Marshal(ps)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
