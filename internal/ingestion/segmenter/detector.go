package segmenter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
)

var (
	chapterLineRE = regexp.MustCompile(`(?i)^(chapter|part)\s+([0-9ivxlc]+|[一二三四五六七八九十百]+)\b.*$`)
	cjkChapterLineRE = regexp.MustCompile(`^第[0-9一二三四五六七八九十百]+[章回].*$`)
	sceneLineRE   = regexp.MustCompile(`^(INT\.|EXT\.|INT/EXT\.|SCENE\b|FADE IN|CUT TO)`)
	speakerLineRE = regexp.MustCompile(`^[A-Z][A-Za-z .'-]{0,24}:\s*\S`)
)

const articleLengthThreshold = 5000

// DetectContentType classifies raw text with a priority-ordered heuristic:
// chapter markers beat scene markers beat speaker labels; long unstructured
// text is an article; everything else is general. A non-empty hint matching
// a known type wins outright.
func DetectContentType(text, hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case content.TypeBook, content.TypeArticle, content.TypeScript, content.TypeDialogue, content.TypeGeneral:
		return strings.ToLower(strings.TrimSpace(hint))
	}

	lines := nonEmptyLines(text)
	if countMatching(lines, isChapterLine) > 0 {
		return content.TypeBook
	}
	if countMatching(lines, func(l string) bool { return sceneLineRE.MatchString(l) }) > 0 {
		return content.TypeScript
	}
	if len(lines) >= 4 {
		speakers := countMatching(lines, func(l string) bool { return speakerLineRE.MatchString(l) })
		if float64(speakers)/float64(len(lines)) > 0.3 {
			return content.TypeDialogue
		}
	}
	// Character count, not bytes: CJK text must not hit the threshold early.
	if utf8.RuneCountInString(text) > articleLengthThreshold {
		return content.TypeArticle
	}
	return content.TypeGeneral
}

func isChapterLine(l string) bool {
	return chapterLineRE.MatchString(l) || cjkChapterLineRE.MatchString(l)
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func countMatching(lines []string, pred func(string) bool) int {
	n := 0
	for _, l := range lines {
		if pred(l) {
			n++
		}
	}
	return n
}
