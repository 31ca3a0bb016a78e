package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	wsRE        = regexp.MustCompile(`[ \t]+`)
	blankLineRE = regexp.MustCompile(`\n{2,}`)
	// sentenceRE splits on terminal punctuation followed by whitespace, plus
	// CJK terminators which need no trailing space. Deliberately naive:
	// abbreviations ("Mr.", "U.S.") and closing quotes over-split. Known
	// heuristic limitation, kept as-is.
	sentenceRE = regexp.MustCompile(`([.!?]+[)"']?\s+|[。！？]+)`)
	wordRE     = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// NormalizeWhitespace collapses runs of spaces/tabs, normalizes line endings
// and strips non-printing control characters. Paragraph breaks (blank lines)
// are preserved.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = wsRE.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = blankLineRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SplitSentences splits text on terminal punctuation. The terminator stays
// attached to its sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	last := 0
	for _, loc := range sentenceRE.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[last:loc[1]])
		if s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// SplitParagraphs splits on blank lines.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLineRE.Split(strings.TrimSpace(text), -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Words tokenizes into lowercase word tokens (letters, digits, apostrophes).
func Words(text string) []string {
	raw := wordRE.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		out = append(out, strings.ToLower(w))
	}
	return out
}

// NormalizeForCompare lowercases and collapses all whitespace so two texts
// can be compared structurally.
func NormalizeForCompare(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
