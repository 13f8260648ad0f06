package profile

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aischolar/scholar/internal/vectorstore"
)

// BoostFactor scales how strongly interests influence ranking. With the
// default, a full-weight interest match lifts a score by at most 25%.
const BoostFactor = 0.25

// RankedResult is a search result with its personalized score.
type RankedResult struct {
	vectorstore.Result
	Boost float32 `json:"boost"`
	Score float32 `json:"score"`
}

// Rerank re-orders search results by blending base similarity with the
// user's interest profile. A result matching heavier interests ranks
// higher; results matching nothing keep their base order. Scores stay
// within [0, 1].
func Rerank(results []vectorstore.Result, interests []Interest) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, r := range results {
		boost := affinity(r.Chunk, interests) * BoostFactor
		score := r.Similarity * (1 + boost)
		if score > 1 {
			score = 1
		}
		ranked[i] = RankedResult{Result: r, Boost: boost, Score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// affinity measures how much a chunk overlaps the user's interests, as
// the max matched interest weight plus a small credit for additional
// matches, clamped to 1.
func affinity(chunk vectorstore.Chunk, interests []Interest) float32 {
	if len(interests) == 0 {
		return 0
	}

	text := strings.ToLower(chunk.Content)
	if title := chunk.Metadata["title"]; title != "" {
		text += " " + strings.ToLower(title)
	}
	tokens := tokenSet(text)

	var best, extra float32
	for _, in := range interests {
		if !topicMatches(in.Topic, text, tokens) {
			continue
		}
		if in.Weight > best {
			extra += best
			best = in.Weight
		} else {
			extra += in.Weight
		}
	}

	// Secondary matches contribute at quarter strength.
	a := best + extra/4
	if a > 1 {
		a = 1
	}
	return a
}

// topicMatches reports whether an interest topic appears in the chunk.
// Multi-word topics match as substrings; single words match whole
// tokens only, so "gan" does not match "organ".
func topicMatches(topic, text string, tokens map[string]bool) bool {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return false
	}
	if strings.ContainsRune(topic, ' ') {
		return strings.Contains(text, topic)
	}
	return tokens[topic]
}

func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}
