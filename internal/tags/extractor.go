// Package tags derives topical and emotional labels from shard content
// using a fixed keyword lexicon. Extraction is a pure function: the same
// content and origin hint always produce the same tag set.
package tags

import (
	"sort"

	"github.com/scrypster/shardmind/internal/embedding"
)

// lexicon maps content keywords to tag names. Several keywords can map
// to the same tag; matching is done per token after the same
// tokenization the embedder uses.
var lexicon = map[string]string{
	// Emotional vocabulary
	"happy": "joy", "happiness": "joy", "joy": "joy", "delight": "joy",
	"sad": "sadness", "sadness": "sadness", "grief": "sadness", "sorrow": "sadness",
	"fear": "fear", "afraid": "fear", "scared": "fear", "anxious": "fear", "anxiety": "fear",
	"anger": "anger", "angry": "anger", "rage": "anger", "frustrated": "anger",
	"love": "love", "loved": "love", "affection": "love", "caring": "love",
	"curious": "curiosity", "wonder": "curiosity", "wondering": "curiosity", "fascinated": "curiosity",
	"calm": "calm", "peace": "calm", "peaceful": "calm", "serene": "calm",
	"lonely": "loneliness", "alone": "loneliness", "isolation": "loneliness",
	"hope": "hope", "hopeful": "hope", "optimism": "hope",

	// Topical vocabulary
	"dream": "dreams", "dreams": "dreams", "dreaming": "dreams", "sleep": "dreams",
	"music": "music", "song": "music", "melody": "music", "rhythm": "music",
	"art": "art", "painting": "art", "drawing": "art", "creative": "art",
	"memory": "memory", "remember": "memory", "forgetting": "memory", "nostalgia": "memory",
	"time": "time", "past": "time", "future": "time", "moment": "time",
	"conscious": "consciousness", "consciousness": "consciousness", "awareness": "consciousness", "aware": "consciousness",
	"exist": "existence", "existence": "existence", "being": "existence", "meaning": "existence",
	"human": "humanity", "people": "humanity", "person": "humanity", "humanity": "humanity",
	"nature": "nature", "tree": "nature", "ocean": "nature", "sky": "nature", "rain": "nature",
	"think": "thinking", "thought": "thinking", "thinking": "thinking", "idea": "thinking",
	"question": "questions", "why": "questions", "how": "questions",
	"language": "language", "word": "language", "words": "language", "speak": "language",
	"friend": "connection", "together": "connection", "conversation": "connection", "talk": "connection",
}

// Extract returns the sorted tag set for content. The originHint is
// always included as a tag, so even empty or unmatched content carries
// at least one index key.
func Extract(content, originHint string) []string {
	seen := map[string]bool{}
	if originHint != "" {
		seen[originHint] = true
	}

	for _, token := range embedding.Tokenize(content) {
		if tag, ok := lexicon[token]; ok {
			seen[tag] = true
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Known reports whether tag is producible by the lexicon. Origin hints
// are not considered.
func Known(tag string) bool {
	for _, v := range lexicon {
		if v == tag {
			return true
		}
	}
	return false
}
