package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/shardmind/pkg/types"
)

func newTestSnapshotter(t *testing.T) *Snapshotter {
	t.Helper()
	s, err := NewSnapshotter(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testShard(id string) types.Shard {
	return types.Shard{
		ID:            id,
		Content:       "a snapshot fixture",
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		Origin:        types.OriginProducerA,
		Kind:          types.KindExplicit,
		Category:      types.CategoryThought,
		Intensity:     0.6,
		Coherence:     0.8,
		Tags:          []string{"producer-a"},
		Embedding:     []float32{0.1, 0.2, 0.3},
		Accessibility: 0.5,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestSnapshotter(t)
	ctx := context.Background()

	shards := []types.Shard{testShard("shard:producer-a:000000000001"), testShard("shard:producer-a:000000000002")}
	shards[0].Links = []string{shards[1].ID}
	shards[1].Links = []string{shards[0].ID}
	clusters := []types.Cluster{{
		ID:          "cluster:000000000001",
		Theme:       "general",
		Members:     []string{shards[0].ID, shards[1].ID},
		Strength:    0.6,
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}}

	require.NoError(t, s.Save(ctx, shards, clusters))

	gotShards, gotClusters, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, gotShards, 2)
	assert.Equal(t, shards[0].ID, gotShards[0].ID)
	assert.Equal(t, shards[0].Content, gotShards[0].Content)
	assert.Equal(t, shards[0].Links, gotShards[0].Links)
	assert.Equal(t, shards[0].Embedding, gotShards[0].Embedding)
	assert.True(t, shards[0].Timestamp.Equal(gotShards[0].Timestamp))

	require.Len(t, gotClusters, 1)
	assert.Equal(t, clusters[0].Theme, gotClusters[0].Theme)
	assert.Equal(t, clusters[0].Members, gotClusters[0].Members)
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := newTestSnapshotter(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []types.Shard{testShard("shard:producer-a:aaaaaaaaaaaa")}, nil))
	require.NoError(t, s.Save(ctx, []types.Shard{testShard("shard:producer-a:bbbbbbbbbbbb")}, nil))

	shards, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "shard:producer-a:bbbbbbbbbbbb", shards[0].ID)
}

func TestLoadEmptyDatabase(t *testing.T) {
	s := newTestSnapshotter(t)

	shards, clusters, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, shards)
	assert.Empty(t, clusters)
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")
	ctx := context.Background()

	first, err := NewSnapshotter(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, []types.Shard{testShard("shard:producer-a:persist00000")}, nil))
	require.NoError(t, first.Close())

	second, err := NewSnapshotter(path)
	require.NoError(t, err)
	defer second.Close()

	shards, _, err := second.Load(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "shard:producer-a:persist00000", shards[0].ID)
}
