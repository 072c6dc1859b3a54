package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/pkg/types"
)

const (
	// clusterTagWeight and clusterEmbedWeight blend the two cluster
	// similarity signals.
	clusterTagWeight   = 0.4
	clusterEmbedWeight = 0.6

	// clusterInitialStrength is assigned to a freshly created cluster.
	clusterInitialStrength = 0.5

	// clusterJoinIncrement is added to strength each time a shard
	// joins, capped at 1.0.
	clusterJoinIncrement = 0.1

	// clusterFallbackTheme labels clusters founded by shards without
	// lexicon tags beyond the origin hint.
	clusterFallbackTheme = "general"
)

// cluster is the internal representation of a theme cluster. Members
// keep join order; tagCounts tracks how many members carry each tag and
// serves as the cluster's representative tag set.
type cluster struct {
	id          string
	theme       string
	members     []string
	memberSet   idSet
	tagCounts   map[string]int
	strength    float64
	lastUpdated time.Time
}

func (c *cluster) snapshot() types.Cluster {
	return types.Cluster{
		ID:          c.id,
		Theme:       c.theme,
		Members:     append([]string(nil), c.members...),
		Strength:    c.strength,
		LastUpdated: c.lastUpdated,
	}
}

// assignClusterLocked places rec into the best-matching cluster, or
// founds a new one when nothing scores above ClusterThreshold.
//
// The cluster score blends tag overlap (Jaccard over the cluster's
// representative tags, weight 0.4) with the maximum cosine similarity
// against a small sample of member embeddings (weight 0.6). Clusters
// are compared in id order so equal scores resolve deterministically.
//
// Caller must hold the write lock.
func (s *Store) assignClusterLocked(rec *record, now time.Time) {
	var (
		best      *cluster
		bestScore float64
	)

	ids := make([]string, 0, len(s.clusters))
	for id := range s.clusters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := s.clusters[id]
		score := s.clusterScoreLocked(rec, c)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if best != nil && bestScore > s.config.ClusterThreshold {
		best.members = append(best.members, rec.id)
		best.memberSet[rec.id] = struct{}{}
		for _, tag := range rec.tagList {
			best.tagCounts[tag]++
		}
		best.strength = min(best.strength+clusterJoinIncrement, 1.0)
		best.lastUpdated = now
		return
	}

	c := newCluster(rec, now)
	s.clusters[c.id] = c
}

// clusterScoreLocked computes the blended similarity between rec and c.
func (s *Store) clusterScoreLocked(rec *record, c *cluster) float64 {
	tagScore := jaccard(rec.tagList, c.tagCounts)

	embedScore := 0.0
	sample := c.members
	if len(sample) > s.config.ClusterSampleSize {
		sample = sample[:s.config.ClusterSampleSize]
	}
	for _, memberID := range sample {
		member := s.records[memberID]
		if member == nil {
			logConsistencyDefect("cluster %s references missing shard %s", c.id, memberID)
			continue
		}
		if sim := embedding.CosineSimilarity(rec.embedding, member.embedding); sim > embedScore {
			embedScore = sim
		}
	}

	return clusterTagWeight*tagScore + clusterEmbedWeight*embedScore
}

// removeFromClusterLocked drops id from whichever cluster holds it,
// destroying the cluster when its last member leaves.
func (s *Store) removeFromClusterLocked(id string) {
	for clusterID, c := range s.clusters {
		if _, ok := c.memberSet[id]; !ok {
			continue
		}

		delete(c.memberSet, id)
		for i, memberID := range c.members {
			if memberID == id {
				c.members = append(c.members[:i], c.members[i+1:]...)
				break
			}
		}
		if rec, ok := s.records[id]; ok {
			for _, tag := range rec.tagList {
				if c.tagCounts[tag] > 1 {
					c.tagCounts[tag]--
				} else {
					delete(c.tagCounts, tag)
				}
			}
		}

		if len(c.members) == 0 {
			delete(s.clusters, clusterID)
		}
		return
	}
}

// Clusters returns snapshots of all theme clusters, ordered by id.
func (s *Store) Clusters() []types.Cluster {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newCluster(rec *record, now time.Time) *cluster {
	tagCounts := make(map[string]int, len(rec.tagList))
	for _, tag := range rec.tagList {
		tagCounts[tag]++
	}

	return &cluster{
		id:          newClusterID(),
		theme:       clusterTheme(rec),
		members:     []string{rec.id},
		memberSet:   idSet{rec.id: {}},
		tagCounts:   tagCounts,
		strength:    clusterInitialStrength,
		lastUpdated: now,
	}
}

// clusterTheme picks the founding shard's first non-origin tag, falling
// back to a generic label.
func clusterTheme(rec *record) string {
	for _, tag := range rec.tagList {
		if tag != string(rec.origin) {
			return tag
		}
	}
	return clusterFallbackTheme
}

func newClusterID() string {
	return fmt.Sprintf("cluster:%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// jaccard computes |A ∩ B| / |A ∪ B| between a tag list and the keys of
// a count map.
func jaccard(tagList []string, counts map[string]int) float64 {
	if len(tagList) == 0 && len(counts) == 0 {
		return 0
	}

	intersection := 0
	for _, tag := range tagList {
		if _, ok := counts[tag]; ok {
			intersection++
		}
	}
	union := len(counts) + len(tagList) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
