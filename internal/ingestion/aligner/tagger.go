package aligner

import (
	"regexp"
	"strings"
)

// GrammarTagger labels one sentence with grammar-point tags. Implementations
// are pluggable; PatternTagger is the built-in heuristic fallback used when no
// external tagger is wired.
type GrammarTagger interface {
	TagGrammar(sentence string) []string
}

// PatternTagger tags sentences by regex pattern. Patterns are checked in a
// fixed order so output is stable.
type PatternTagger struct{}

func NewPatternTagger() *PatternTagger { return &PatternTagger{} }

var grammarPatterns = []struct {
	tag string
	re  *regexp.Regexp
}{
	{"question", regexp.MustCompile(`\?\s*$`)},
	{"exclamation", regexp.MustCompile(`!\s*$`)},
	{"present perfect", regexp.MustCompile(`(?i)\b(have|has)\s+\w+(ed|en)\b`)},
	{"past continuous", regexp.MustCompile(`(?i)\b(was|were)\s+\w+ing\b`)},
	{"present continuous", regexp.MustCompile(`(?i)\b(am|is|are)\s+\w+ing\b`)},
	{"future", regexp.MustCompile(`(?i)\b(will|shall|going to)\b`)},
	{"modal verb", regexp.MustCompile(`(?i)\b(can|could|may|might|must|should|would)\b`)},
	{"passive voice", regexp.MustCompile(`(?i)\b(is|are|was|were|been|being)\s+\w+(ed|en)\s+by\b`)},
	{"conditional", regexp.MustCompile(`(?i)\bif\b.+\b(will|would|could|might)\b`)},
	{"comparative", regexp.MustCompile(`(?i)\b(more|less)\s+\w+\s+than\b|\b\w+er\s+than\b`)},
	{"superlative", regexp.MustCompile(`(?i)\b(the\s+most\s+\w+|the\s+\w+est)\b`)},
	{"relative clause", regexp.MustCompile(`(?i)\b(who|whom|whose|which|that)\s+\w+`)},
	{"infinitive", regexp.MustCompile(`(?i)\bto\s+[a-z]+\b`)},
	{"negation", regexp.MustCompile(`(?i)\b(not|n't|never|no one|nothing|nobody)\b`)},
}

func (t *PatternTagger) TagGrammar(sentence string) []string {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}
	var tags []string
	for _, p := range grammarPatterns {
		if p.re.MatchString(sentence) {
			tags = append(tags, p.tag)
		}
	}
	return tags
}
