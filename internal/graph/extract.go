// Package graph builds a lightweight knowledge graph over an instance's
// documents: entities extracted heuristically from text and relations
// weighted by sentence co-occurrence.
package graph

import (
	"strings"
	"unicode"
)

// Extraction bounds.
const (
	maxPhraseWords = 4
	minEntityLen   = 3
	maxEntityLen   = 64
)

// stopwords never start or stand alone as entities.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "we": true, "our": true, "their": true,
	"however": true, "therefore": true, "thus": true, "although": true,
	"figure": true, "table": true, "section": true, "et": true, "al": true,
}

// Entity is one extracted graph node candidate.
type Entity struct {
	Name     string
	Mentions int
}

// Cooccurrence counts two entities appearing in the same sentence.
type Cooccurrence struct {
	Source string
	Target string
	Count  int
}

// Extract pulls entity candidates and sentence-level co-occurrences
// from text. Candidates are capitalized phrases of up to maxPhraseWords
// words that are not sentence-initial stopwords.
func Extract(text string) ([]Entity, []Cooccurrence) {
	mentions := make(map[string]int)
	pairs := make(map[[2]string]int)

	for _, sentence := range splitSentences(text) {
		names := entitiesInSentence(sentence)
		seen := make(map[string]bool, len(names))
		var unique []string
		for _, name := range names {
			mentions[name]++
			if !seen[name] {
				seen[name] = true
				unique = append(unique, name)
			}
		}

		// Co-occurrence within one sentence, ordered pair key so
		// (A, B) and (B, A) accumulate together.
		for i := 0; i < len(unique); i++ {
			for j := i + 1; j < len(unique); j++ {
				a, b := unique[i], unique[j]
				if a > b {
					a, b = b, a
				}
				pairs[[2]string{a, b}]++
			}
		}
	}

	entities := make([]Entity, 0, len(mentions))
	for name, count := range mentions {
		entities = append(entities, Entity{Name: name, Mentions: count})
	}
	cooccurrences := make([]Cooccurrence, 0, len(pairs))
	for pair, count := range pairs {
		cooccurrences = append(cooccurrences, Cooccurrence{
			Source: pair[0], Target: pair[1], Count: count,
		})
	}
	return entities, cooccurrences
}

// splitSentences breaks text on sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '\n', '。', '！', '？':
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// entitiesInSentence finds capitalized phrases. The first word of a
// sentence only counts when it continues into a multi-word phrase or
// is not a stopword when lowercased elsewhere.
func entitiesInSentence(sentence string) []string {
	words := strings.Fields(sentence)
	var names []string

	i := 0
	for i < len(words) {
		word := trimWord(words[i])
		if word == "" || !isCapitalized(word) {
			i++
			continue
		}

		// Greedily extend the phrase over consecutive capitalized words.
		phrase := []string{word}
		j := i + 1
		for j < len(words) && len(phrase) < maxPhraseWords {
			next := trimWord(words[j])
			if next == "" || !isCapitalized(next) {
				break
			}
			phrase = append(phrase, next)
			j++
		}

		name := strings.Join(phrase, " ")
		if validEntity(name, i == 0 && len(phrase) == 1) {
			names = append(names, name)
		}
		i = j
	}
	return names
}

func trimWord(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isCapitalized(w string) bool {
	r := []rune(w)[0]
	return unicode.IsUpper(r)
}

// validEntity filters out stopwords, too-short and too-long candidates.
// sentenceInitial marks single words at sentence start, which are
// capitalized by grammar rather than by being names; all-caps acronyms
// are kept regardless.
func validEntity(name string, sentenceInitial bool) bool {
	if len(name) < minEntityLen || len(name) > maxEntityLen {
		return false
	}
	if stopwords[strings.ToLower(name)] {
		return false
	}
	if sentenceInitial && !isAllUpper(name) {
		return false
	}
	return true
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
