package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
)

var (
	mdHeadingRE = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	chapterRE   = regexp.MustCompile(`(?i)^(chapter|part|section|unit)\s+([0-9ivxlc]+|[一二三四五六七八九十百]+)\b`)
	cjkChapterRE = regexp.MustCompile(`^第[0-9一二三四五六七八九十百]+[章节课回]`)
)

// DetectStructure scans lines for heading-like patterns and builds an
// ordered outline. HasClearStructure requires at least two sections; a lone
// title doesn't count as structure.
func DetectStructure(text string) content.Structure {
	var sections []content.Section
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title, level, ok := headingOf(line); ok {
			sections = append(sections, content.Section{Title: title, Level: level, Line: i + 1})
		}
	}
	return content.Structure{
		Sections:          sections,
		HasClearStructure: len(sections) >= 2,
	}
}

// headingOf classifies one line. Priority: explicit markers, chapter labels,
// short colon-terminated labels, short all-caps lines.
func headingOf(line string) (string, int, bool) {
	if m := mdHeadingRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2]), len(m[1]), true
	}
	if chapterRE.MatchString(line) || cjkChapterRE.MatchString(line) {
		return line, 1, true
	}
	runes := []rune(line)
	if len(runes) <= 60 && strings.HasSuffix(line, ":") && !strings.Contains(strings.TrimSuffix(line, ":"), ":") {
		title := strings.TrimSpace(strings.TrimSuffix(line, ":"))
		if title != "" && len(strings.Fields(title)) <= 8 {
			return title, 2, true
		}
	}
	if len(runes) <= 50 && isAllCaps(line) && len(strings.Fields(line)) <= 8 {
		return line, 2, true
	}
	return "", 0, false
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
