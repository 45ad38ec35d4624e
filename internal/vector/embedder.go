package vector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/ferrolens/ferrolens/internal/model"
)

// EmbeddingDim is the fixed dimensionality of module embeddings. It must
// match the collection configuration on the vector store side.
const EmbeddingDim = 256

// Embedder turns analyzed modules into fixed-size feature vectors and stores
// them for similarity search. The embedding is a hashed bag of structural
// features (name segments, item names and kinds, module type), not a learned
// one: two modules score similar when they declare similar shapes, which is
// exactly the signal needed to find near-duplicate modules in a tree.
type Embedder struct {
	repo Repository
}

// NewEmbedder creates an Embedder over the given store.
func NewEmbedder(repo Repository) *Embedder {
	return &Embedder{repo: repo}
}

// IndexStructure embeds every module of the structure and upserts the result.
// Document ids derive from the module id, so re-indexing the same project
// overwrites in place instead of accumulating duplicates.
func (e *Embedder) IndexStructure(ctx context.Context, ps *model.ProjectStructure) error {
	docs := make([]Document, 0, len(ps.Modules))
	for _, m := range ps.Modules {
		docs = append(docs, Document{
			ID:      deterministicUUID(ps.RootPath + "\x00" + m.ID),
			Content: moduleSummary(&m),
			Vector:  Embed(&m),
			Metadata: map[string]string{
				"project":     ps.RootPath,
				"module_id":   m.ID,
				"module_type": string(m.ModuleType),
			},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := e.repo.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("indexing modules: %w", err)
	}
	return nil
}

// SimilarModules finds the stored modules most similar to the given one.
func (e *Embedder) SimilarModules(ctx context.Context, m *model.Module, topK int) ([]SearchResult, error) {
	return e.repo.Search(ctx, Embed(m), topK)
}

// Embed produces the module's feature vector, L2-normalized so dot-product
// similarity behaves as cosine similarity.
func Embed(m *model.Module) []float32 {
	vec := make([]float32, EmbeddingDim)
	bump := func(feature string, weight float32) {
		h := fnv.New32a()
		h.Write([]byte(feature))
		vec[h.Sum32()%EmbeddingDim] += weight
	}

	bump("type:"+string(m.ModuleType), 2)
	for _, seg := range strings.Split(m.Name, "::") {
		bump("seg:"+seg, 1)
	}
	for _, it := range m.Items {
		bump("kind:"+string(it.ItemType), 1)
		bump("item:"+it.Name, 0.5)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// moduleSummary is the human-readable payload stored beside the vector.
func moduleSummary(m *model.Module) string {
	names := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		names = append(names, fmt.Sprintf("%s %s", it.ItemType, it.Name))
	}
	sort.Strings(names)
	return fmt.Sprintf("%s (%s): %s", m.Name, m.ModuleType, strings.Join(names, ", "))
}

// deterministicUUID derives a name-based UUID from the key, giving stable
// point ids across runs without an external UUID dependency.
func deterministicUUID(key string) string {
	sum := sha1.Sum([]byte(key))
	b := sum[:16]
	b[6] = (b[6] & 0x0f) | 0x50 // version 5, name-based
	b[8] = (b[8] & 0x3f) | 0x80

	var out [36]byte
	hex.Encode(out[0:8], b[0:4])
	out[8] = '-'
	hex.Encode(out[9:13], b[4:6])
	out[13] = '-'
	hex.Encode(out[14:18], b[6:8])
	out[18] = '-'
	hex.Encode(out[19:23], b[8:10])
	out[23] = '-'
	hex.Encode(out[24:36], b[10:16])
	return string(out[:])
}
