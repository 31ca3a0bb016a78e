package analyzer

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"

	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "can": true,
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "this": true, "that": true, "these": true, "those": true,
	"my": true, "your": true, "his": true, "her": true, "its": true, "our": true,
	"their": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true, "into": true,
	"about": true, "not": true, "no": true, "so": true, "if": true, "then": true,
	"than": true, "too": true, "very": true, "just": true, "there": true,
	"what": true, "when": true, "where": true, "who": true, "how": true, "all": true,
	"some": true, "any": true, "both": true, "each": true, "more": true, "most": true,
	"other": true, "such": true, "only": true, "own": true, "same": true, "also": true,
}

// ExtractKeywords drops stopwords and short tokens, ranks the rest by
// frequency and returns the top n. Ties break alphabetically so the result
// is stable.
func ExtractKeywords(text string, n int) []string {
	freq := map[string]int{}
	for _, w := range textutil.Words(text) {
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		freq[w]++
	}
	type kw struct {
		word  string
		count int
	}
	ranked := make([]kw, 0, len(freq))
	for w, c := range freq {
		ranked = append(ranked, kw{word: w, count: c})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].count != ranked[b].count {
			return ranked[a].count > ranked[b].count
		}
		return ranked[a].word < ranked[b].word
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, k := range ranked[:n] {
		out = append(out, k.word)
	}
	return out
}

// topicVocabulary is the fixed domain vocabulary topics are matched against.
// Matching is substring-based over the lowercased text.
var topicVocabulary = []struct {
	topic    string
	patterns []string
}{
	{"travel", []string{"travel", "trip", "journey", "flight", "hotel", "airport", "tourist"}},
	{"food", []string{"food", "restaurant", "cook", "meal", "recipe", "breakfast", "dinner", "lunch"}},
	{"business", []string{"business", "company", "market", "meeting", "office", "manager", "customer"}},
	{"technology", []string{"technology", "computer", "software", "internet", "phone", "digital", "online"}},
	{"science", []string{"science", "research", "experiment", "theory", "physics", "chemistry", "biology"}},
	{"health", []string{"health", "doctor", "hospital", "medicine", "exercise", "patient", "disease"}},
	{"education", []string{"education", "school", "student", "teacher", "university", "lesson", "study"}},
	{"sports", []string{"sport", "game", "team", "player", "football", "basketball", "match"}},
	{"art", []string{"art", "painting", "museum", "artist", "design", "drawing"}},
	{"music", []string{"music", "song", "concert", "instrument", "singer", "melody"}},
	{"family", []string{"family", "mother", "father", "parent", "child", "brother", "sister"}},
	{"nature", []string{"nature", "forest", "river", "mountain", "animal", "weather", "ocean"}},
	{"history", []string{"history", "ancient", "century", "war", "empire", "revolution"}},
	{"daily life", []string{"morning", "weekend", "shopping", "neighbor", "routine", "home"}},
}

// IdentifyTopics matches the text against the fixed vocabulary. When nothing
// matches it falls back to a bounded sample of 1–3 topics, seeded from the
// text itself so the choice is reproducible, and flags the result as
// low-confidence. The fallback exists so the pipeline never stalls on
// topic-free input.
func IdentifyTopics(text string) ([]string, bool) {
	lower := strings.ToLower(text)
	var matched []string
	for _, entry := range topicVocabulary {
		for _, p := range entry.patterns {
			if strings.Contains(lower, p) {
				matched = append(matched, entry.topic)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched, false
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	n := 1 + rng.Intn(3)
	picks := rng.Perm(len(topicVocabulary))[:n]
	sort.Ints(picks)
	out := make([]string, 0, n)
	for _, i := range picks {
		out = append(out, topicVocabulary[i].topic)
	}
	return out, true
}
