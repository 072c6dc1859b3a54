// Package types defines the core data structures for the Shardmind memory
// system. These types represent memory shards, theme clusters, and their
// metadata. All classification fields are drawn from closed constant sets
// so that indices never need revalidation after ingestion.
package types

// Origin identifies which producer created a shard.
type Origin string

// Kind describes the epistemic type of a shard.
type Kind string

// Category describes the subject matter of a shard.
type Category string

// Origin constants
const (
	// OriginProducerA is the first autonomous thought producer.
	OriginProducerA Origin = "producer-a"

	// OriginProducerB is the second autonomous thought producer.
	OriginProducerB Origin = "producer-b"

	// OriginUser marks shards logged from user interactions.
	OriginUser Origin = "user"

	// OriginSystem marks shards generated internally.
	OriginSystem Origin = "system"
)

// Kind constants
const (
	// KindExplicit is a deliberate, consciously formed memory.
	KindExplicit Kind = "explicit"

	// KindImplicit is a background memory formed without deliberation.
	KindImplicit Kind = "implicit"

	// KindEpisodic records a specific event or moment.
	KindEpisodic Kind = "episodic"

	// KindProcedural records how to do something.
	KindProcedural Kind = "procedural"

	// KindSemantic records general knowledge or facts.
	KindSemantic Kind = "semantic"
)

// Category constants
const (
	CategoryThought     Category = "thought"
	CategoryInteraction Category = "interaction"
	CategoryExperience  Category = "experience"
	CategoryInsight     Category = "insight"
	CategoryEmotion     Category = "emotion"
	CategoryDecision    Category = "decision"
)

// ValidOrigins is a slice of all valid origins for validation.
var ValidOrigins = []Origin{
	OriginProducerA,
	OriginProducerB,
	OriginUser,
	OriginSystem,
}

// ValidKinds is a slice of all valid shard kinds for validation.
var ValidKinds = []Kind{
	KindExplicit,
	KindImplicit,
	KindEpisodic,
	KindProcedural,
	KindSemantic,
}

// ValidCategories is a slice of all valid shard categories for validation.
var ValidCategories = []Category{
	CategoryThought,
	CategoryInteraction,
	CategoryExperience,
	CategoryInsight,
	CategoryEmotion,
	CategoryDecision,
}

// IsValidOrigin checks if the given origin is valid.
func IsValidOrigin(origin Origin) bool {
	for _, valid := range ValidOrigins {
		if valid == origin {
			return true
		}
	}
	return false
}

// IsValidKind checks if the given shard kind is valid.
func IsValidKind(kind Kind) bool {
	for _, valid := range ValidKinds {
		if valid == kind {
			return true
		}
	}
	return false
}

// IsValidCategory checks if the given shard category is valid.
func IsValidCategory(category Category) bool {
	for _, valid := range ValidCategories {
		if valid == category {
			return true
		}
	}
	return false
}

// OtherProducer returns the opposite thought producer for cross-context
// lookups. Non-producer origins map to the empty origin.
func OtherProducer(origin Origin) Origin {
	switch origin {
	case OriginProducerA:
		return OriginProducerB
	case OriginProducerB:
		return OriginProducerA
	default:
		return ""
	}
}
