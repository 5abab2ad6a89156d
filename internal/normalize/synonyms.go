package normalize

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/partstrade/trade-service/internal/types"
)

// SynonymSource returns the direct synonyms of a brand.
type SynonymSource interface {
	Synonyms(ctx context.Context, brandID int64) ([]types.Brand, error)
}

// ResolveSynonymGroup walks the whole synonym cluster of brand and returns its
// main brand. When several members are flagged main, the lowest id wins so the
// answer does not depend on the starting member. Without a main member the
// brand itself is returned.
func ResolveSynonymGroup(ctx context.Context, src SynonymSource, brand types.Brand) (types.Brand, error) {
	if brand.MainBrand {
		return brand, nil
	}

	cluster, err := Cluster(ctx, src, brand)
	if err != nil {
		return brand, err
	}

	var main *types.Brand
	for i := range cluster {
		b := cluster[i]
		if !b.MainBrand {
			continue
		}
		if main == nil || b.ID < main.ID {
			main = &cluster[i]
		}
	}
	if main == nil {
		return brand, nil
	}
	return *main, nil
}

// Cluster returns every brand reachable from brand, including brand itself,
// ordered by id.
func Cluster(ctx context.Context, src SynonymSource, brand types.Brand) ([]types.Brand, error) {
	visited := map[int64]types.Brand{brand.ID: brand}
	queue := []int64{brand.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		neighbours, err := src.Synonyms(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load synonyms of brand %d: %w", id, err)
		}
		for _, n := range neighbours {
			if _, seen := visited[n.ID]; seen {
				continue
			}
			visited[n.ID] = n
			queue = append(queue, n.ID)
		}
	}

	out := make([]types.Brand, 0, len(visited))
	for _, b := range visited {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SynonymGraph is an in-memory symmetric synonym relation. It backs caches
// and tests; the database keeps the same two-row representation.
type SynonymGraph struct {
	mu     sync.RWMutex
	brands map[int64]types.Brand
	edges  map[int64]map[int64]struct{}
}

// NewSynonymGraph creates an empty graph.
func NewSynonymGraph() *SynonymGraph {
	return &SynonymGraph{
		brands: make(map[int64]types.Brand),
		edges:  make(map[int64]map[int64]struct{}),
	}
}

// AddBrand registers or replaces a brand node.
func (g *SynonymGraph) AddBrand(b types.Brand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.brands[b.ID] = b
}

// AddSynonym links a and b in both directions.
func (g *SynonymGraph) AddSynonym(a, b int64) error {
	if a == b {
		return fmt.Errorf("brand %d cannot be its own synonym", a)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.brands[a]; !ok {
		return fmt.Errorf("unknown brand %d", a)
	}
	if _, ok := g.brands[b]; !ok {
		return fmt.Errorf("unknown brand %d", b)
	}
	g.link(a, b)
	g.link(b, a)
	return nil
}

// RemoveSynonym unlinks a and b in both directions.
func (g *SynonymGraph) RemoveSynonym(a, b int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges[a], b)
	delete(g.edges[b], a)
}

func (g *SynonymGraph) link(from, to int64) {
	set, ok := g.edges[from]
	if !ok {
		set = make(map[int64]struct{})
		g.edges[from] = set
	}
	set[to] = struct{}{}
}

// Synonyms implements SynonymSource.
func (g *SynonymGraph) Synonyms(_ context.Context, brandID int64) ([]types.Brand, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]types.Brand, 0, len(g.edges[brandID]))
	for id := range g.edges[brandID] {
		out = append(out, g.brands[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
