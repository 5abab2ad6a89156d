package normalize

import (
	"context"
	"testing"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(brands ...types.Brand) *SynonymGraph {
	g := NewSynonymGraph()
	for _, b := range brands {
		g.AddBrand(b)
	}
	return g
}

func brandIDs(bs []types.Brand) []int64 {
	ids := make([]int64, 0, len(bs))
	for _, b := range bs {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestSynonymSymmetry(t *testing.T) {
	ctx := context.Background()
	g := newGraph(types.Brand{ID: 1, Name: "GREAT-WALL"}, types.Brand{ID: 2, Name: "HAVAL"})

	require.NoError(t, g.AddSynonym(1, 2))

	fromA, err := g.Synonyms(ctx, 1)
	require.NoError(t, err)
	fromB, err := g.Synonyms(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, brandIDs(fromA))
	assert.Equal(t, []int64{1}, brandIDs(fromB))

	g.RemoveSynonym(2, 1)

	fromA, _ = g.Synonyms(ctx, 1)
	fromB, _ = g.Synonyms(ctx, 2)
	assert.Empty(t, fromA)
	assert.Empty(t, fromB)
}

func TestAddSynonymRejectsSelfAndUnknown(t *testing.T) {
	g := newGraph(types.Brand{ID: 1, Name: "FAW"})
	assert.Error(t, g.AddSynonym(1, 1))
	assert.Error(t, g.AddSynonym(1, 99))
}

func TestClusterIsTransitive(t *testing.T) {
	ctx := context.Background()
	g := newGraph(
		types.Brand{ID: 1, Name: "A"},
		types.Brand{ID: 2, Name: "B"},
		types.Brand{ID: 3, Name: "C"},
		types.Brand{ID: 4, Name: "D"},
	)
	require.NoError(t, g.AddSynonym(1, 2))
	require.NoError(t, g.AddSynonym(2, 3))
	require.NoError(t, g.AddSynonym(3, 1))

	cluster, err := Cluster(ctx, g, types.Brand{ID: 1, Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, brandIDs(cluster))
}

func TestResolveSynonymGroup(t *testing.T) {
	ctx := context.Background()
	a := types.Brand{ID: 1, Name: "GW"}
	b := types.Brand{ID: 2, Name: "GREAT-WALL", MainBrand: true}
	c := types.Brand{ID: 3, Name: "GREATWALL"}
	lonely := types.Brand{ID: 4, Name: "LIFAN"}

	g := newGraph(a, b, c, lonely)
	require.NoError(t, g.AddSynonym(a.ID, c.ID))
	require.NoError(t, g.AddSynonym(c.ID, b.ID))

	t.Run("same answer from every member", func(t *testing.T) {
		for _, start := range []types.Brand{a, b, c} {
			got, err := ResolveSynonymGroup(ctx, g, start)
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID, "start %s", start.Name)
		}
	})

	t.Run("no main brand returns itself", func(t *testing.T) {
		got, err := ResolveSynonymGroup(ctx, g, lonely)
		require.NoError(t, err)
		assert.Equal(t, lonely.ID, got.ID)
	})

	t.Run("lowest main id wins", func(t *testing.T) {
		second := types.Brand{ID: 5, Name: "HAVAL", MainBrand: true}
		g.AddBrand(second)
		require.NoError(t, g.AddSynonym(a.ID, second.ID))

		got, err := ResolveSynonymGroup(ctx, g, a)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})
}
