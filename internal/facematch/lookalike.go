package facematch

import (
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters for small face galleries.
const (
	lookalikeMaxNeighbors = 16
	lookalikeEfSearch     = 50
)

// Lookalike is a gallery entry close to a query, with its distance.
type Lookalike struct {
	ID          string  `json:"student_id"`
	DisplayName string  `json:"name"`
	Distance    float64 `json:"distance"`
}

// LookalikeIndex finds the globally closest gallery entries for a query.
// It reports near-duplicate faces at registration and never takes part in
// Matcher decisions.
type LookalikeIndex struct {
	graph      *hnsw.Graph[int]
	identities []KnownIdentity
	dim        int
	mu         sync.RWMutex
}

// NewLookalikeIndex creates an empty index.
func NewLookalikeIndex() *LookalikeIndex {
	return &LookalikeIndex{}
}

// Build rebuilds the index from a gallery. Entries whose dimension differs from
// the first non-empty embedding are skipped since the graph requires a fixed dimension.
func (l *LookalikeIndex) Build(identities []KnownIdentity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.graph = nil
	l.identities = nil
	l.dim = 0

	g := hnsw.NewGraph[int]()
	g.M = lookalikeMaxNeighbors
	g.Ml = 1.0 / float64(lookalikeMaxNeighbors)
	g.EfSearch = lookalikeEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, id := range identities {
		if len(id.Embedding) == 0 {
			continue
		}
		if l.dim == 0 {
			l.dim = len(id.Embedding)
		}
		if len(id.Embedding) != l.dim {
			continue
		}
		g.Add(hnsw.MakeNode(i, id.Embedding))
	}

	if g.Len() == 0 {
		return
	}
	l.graph = g
	l.identities = slices.Clone(identities)
}

// Len returns the number of indexed entries.
func (l *LookalikeIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.graph == nil {
		return 0
	}
	return l.graph.Len()
}

// Nearest returns up to k entries closest to query, ordered by distance.
func (l *LookalikeIndex) Nearest(query []float32, k int) []Lookalike {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.graph == nil || k <= 0 || len(query) != l.dim {
		return nil
	}

	neighbors := l.graph.Search(query, k)
	result := make([]Lookalike, 0, len(neighbors))
	for _, n := range neighbors {
		id := l.identities[n.Key]
		result = append(result, Lookalike{
			ID:          id.ID,
			DisplayName: id.DisplayName,
			Distance:    EuclideanDistance(query, n.Value),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Distance < result[j].Distance
	})
	return result
}
