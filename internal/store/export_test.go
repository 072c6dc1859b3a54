package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/scrypster/shardmind/pkg/types"
)

func TestExportRestoreRoundTrip(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, src, testRequest("the ocean at dawn", types.OriginProducerA))
	mustCreate(t, src, testRequest("the ocean at dawn once more", types.OriginProducerA))
	src.Query(ctx, Filter{Origin: types.OriginProducerA})

	shards, clusters := src.Export()

	dst := newTestStore(t)
	if err := dst.Restore(shards, clusters); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if dst.Size() != src.Size() {
		t.Errorf("size mismatch after restore: %d vs %d", dst.Size(), src.Size())
	}

	restored, err := dst.Get(a.ID)
	if err != nil {
		t.Fatalf("restored shard missing: %v", err)
	}
	original, _ := src.Get(a.ID)
	if restored.Content != original.Content ||
		restored.RetrievalCount != original.RetrievalCount ||
		restored.Accessibility != original.Accessibility ||
		!reflect.DeepEqual(restored.Links, original.Links) ||
		!reflect.DeepEqual(restored.Tags, original.Tags) {
		t.Errorf("restored shard diverges from original:\n%+v\n%+v", restored, original)
	}

	srcClusters := src.Clusters()
	dstClusters := dst.Clusters()
	if !reflect.DeepEqual(srcClusters, dstClusters) {
		t.Errorf("clusters diverge after restore:\n%+v\n%+v", srcClusters, dstClusters)
	}
}

func TestRestoreRebuildIndices(t *testing.T) {
	src := newTestStore(t)
	mustCreate(t, src, testRequest("music in the rain", types.OriginProducerB))

	shards, clusters := src.Export()
	dst := newTestStore(t)
	if err := dst.Restore(shards, clusters); err != nil {
		t.Fatal(err)
	}

	results := dst.Query(context.Background(), Filter{Origin: types.OriginProducerB, Tags: []string{"music"}})
	if len(results) != 1 {
		t.Errorf("restored indices should serve queries, got %d results", len(results))
	}
}

func TestRestoreDropsDanglingLinks(t *testing.T) {
	now := time.Now()
	shards := []types.Shard{
		{
			ID: "shard:user:aaaaaaaaaaaa", Content: "kept", Timestamp: now,
			Origin: types.OriginUser, Kind: types.KindExplicit, Category: types.CategoryThought,
			Accessibility: 0.5,
			Links:         []string{"shard:user:gone000000000"},
		},
	}

	s := newTestStore(t)
	if err := s.Restore(shards, nil); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get("shard:user:aaaaaaaaaaaa")
	if len(got.Links) != 0 {
		t.Errorf("links to missing shards should be dropped, got %v", got.Links)
	}
}

func TestRestoreRepairsAsymmetricLinks(t *testing.T) {
	now := time.Now()
	shards := []types.Shard{
		{
			ID: "shard:user:aaaaaaaaaaaa", Content: "one side", Timestamp: now,
			Origin: types.OriginUser, Kind: types.KindExplicit, Category: types.CategoryThought,
			Accessibility: 0.5,
			Links:         []string{"shard:user:bbbbbbbbbbbb"},
		},
		{
			ID: "shard:user:bbbbbbbbbbbb", Content: "other side", Timestamp: now,
			Origin: types.OriginUser, Kind: types.KindExplicit, Category: types.CategoryThought,
			Accessibility: 0.5,
		},
	}

	s := newTestStore(t)
	if err := s.Restore(shards, nil); err != nil {
		t.Fatal(err)
	}

	b, _ := s.Get("shard:user:bbbbbbbbbbbb")
	if !hasLink(b.Links, "shard:user:aaaaaaaaaaaa") {
		t.Errorf("restore should repair link symmetry")
	}
}

func TestRestoreRejectsDuplicateIDs(t *testing.T) {
	now := time.Now()
	shards := []types.Shard{
		{ID: "shard:user:dup000000000", Content: "first", Timestamp: now, Origin: types.OriginUser, Kind: types.KindExplicit, Category: types.CategoryThought},
		{ID: "shard:user:dup000000000", Content: "second", Timestamp: now, Origin: types.OriginUser, Kind: types.KindExplicit, Category: types.CategoryThought},
	}

	s := newTestStore(t)
	err := s.Restore(shards, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("duplicate ids should be rejected, got %v", err)
	}
}

func TestRestoreDropsClustersWithoutMembers(t *testing.T) {
	now := time.Now()
	clusters := []types.Cluster{
		{ID: "cluster:empty0000000", Theme: "ghost", Members: []string{"shard:user:missing000000"}, Strength: 0.5, LastUpdated: now},
	}

	s := newTestStore(t)
	if err := s.Restore(nil, clusters); err != nil {
		t.Fatal(err)
	}
	if len(s.Clusters()) != 0 {
		t.Errorf("clusters with no surviving members should be dropped")
	}
}
