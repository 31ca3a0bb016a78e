package segmenter

import (
	"fmt"
	"strings"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

// Config bounds lesson size. TargetChars governs prose (book/article/general);
// TargetTurns governs dialogue and script, which are balanced by turn count
// instead of raw length.
type Config struct {
	TargetChars int
	TargetTurns int
}

func DefaultConfig() Config {
	return Config{TargetChars: 2000, TargetTurns: 12}
}

type Segmenter struct {
	cfg Config
}

func New(cfg Config) *Segmenter {
	if cfg.TargetChars <= 0 {
		cfg.TargetChars = 2000
	}
	if cfg.TargetTurns <= 0 {
		cfg.TargetTurns = 12
	}
	return &Segmenter{cfg: cfg}
}

// chunk is one natural unit produced by the per-type splitters before size
// balancing: a paragraph, a speaker turn, a scene, or a whole chapter.
type chunk struct {
	heading string
	text    string
}

// Segment detects the content type (unless hinted), splits the text along that
// type's natural boundaries and balances the pieces into lesson-sized drafts.
// Non-empty input always yields at least one lesson.
func (s *Segmenter) Segment(text, title, hint string) content.SegmentResult {
	text = textutil.NormalizeWhitespace(text)
	ctype := DetectContentType(text, hint)

	var chunks []chunk
	switch ctype {
	case content.TypeBook:
		chunks = splitChapters(text)
	case content.TypeScript:
		chunks = splitScenes(text)
	case content.TypeDialogue:
		chunks = splitTurns(text)
	default:
		chunks = splitProse(text)
	}

	var lessons []content.LessonDraft
	if ctype == content.TypeDialogue || ctype == content.TypeScript {
		lessons = s.balanceByCount(chunks)
	} else {
		lessons = s.balanceBySize(chunks)
	}

	// Never return zero lessons for non-empty input.
	if len(lessons) == 0 && strings.TrimSpace(text) != "" {
		lessons = []content.LessonDraft{{Title: "Lesson 1", RawContent: text}}
	}
	for i := range lessons {
		if lessons[i].Title == "" {
			lessons[i].Title = fmt.Sprintf("Lesson %d", i+1)
		}
		if lessons[i].Description == "" {
			lessons[i].Description = textutil.Truncate(lessons[i].RawContent, 160)
		}
	}

	return content.SegmentResult{
		Title:       documentTitle(text, title),
		Description: documentDescription(text),
		ContentType: ctype,
		Lessons:     lessons,
	}
}

// splitChapters cuts at chapter heading lines; the heading stays with its
// chapter. Text before the first heading becomes an untitled leading chunk.
func splitChapters(text string) []chunk {
	var out []chunk
	cur := chunk{}
	var buf []string
	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" || cur.heading != "" {
			cur.text = body
			out = append(out, cur)
		}
		buf = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if isChapterLine(strings.TrimSpace(line)) {
			flush()
			cur = chunk{heading: strings.TrimSpace(line)}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// splitScenes cuts at scene heading lines (INT./EXT. etc).
func splitScenes(text string) []chunk {
	var out []chunk
	cur := chunk{}
	var buf []string
	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" || cur.heading != "" {
			cur.text = body
			out = append(out, cur)
		}
		buf = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if sceneLineRE.MatchString(strings.TrimSpace(line)) {
			flush()
			cur = chunk{heading: strings.TrimSpace(line)}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// splitTurns emits one chunk per speaker turn. A turn runs from one
// `NAME: ...` line until the next; narration lines attach to the open turn.
func splitTurns(text string) []chunk {
	var out []chunk
	var buf []string
	flush := func() {
		if t := strings.TrimSpace(strings.Join(buf, "\n")); t != "" {
			out = append(out, chunk{text: t})
		}
		buf = nil
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if speakerLineRE.MatchString(trimmed) {
			flush()
		}
		buf = append(buf, trimmed)
	}
	flush()
	return out
}

func splitProse(text string) []chunk {
	paras := textutil.SplitParagraphs(text)
	out := make([]chunk, 0, len(paras))
	for _, p := range paras {
		out = append(out, chunk{text: p})
	}
	return out
}

// balanceBySize greedily packs chunks until the character target is reached,
// then starts a new lesson. A chunk with its own heading (a chapter or scene)
// always starts a new lesson and names it. Greedy packing is deterministic:
// the same input always produces the same split.
func (s *Segmenter) balanceBySize(chunks []chunk) []content.LessonDraft {
	var lessons []content.LessonDraft
	var cur []string
	title := ""
	size := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		lessons = append(lessons, content.LessonDraft{
			Title:      title,
			RawContent: strings.Join(cur, "\n\n"),
		})
		cur = nil
		title = ""
		size = 0
	}
	for _, c := range chunks {
		if c.heading != "" {
			flush()
			title = c.heading
		}
		if size > 0 && size+len(c.text) > s.cfg.TargetChars {
			flush()
		}
		if c.text != "" {
			cur = append(cur, c.text)
			size += len(c.text)
		} else if c.heading != "" {
			// A bare heading still opens a lesson.
			cur = append(cur, c.heading)
		}
	}
	flush()
	return lessons
}

// balanceByCount packs a fixed number of turns per lesson. Headed chunks
// (scenes) still force a boundary.
func (s *Segmenter) balanceByCount(chunks []chunk) []content.LessonDraft {
	var lessons []content.LessonDraft
	var cur []string
	title := ""
	flush := func() {
		if len(cur) == 0 {
			return
		}
		lessons = append(lessons, content.LessonDraft{
			Title:      title,
			RawContent: strings.Join(cur, "\n"),
		})
		cur = nil
		title = ""
	}
	for _, c := range chunks {
		if c.heading != "" {
			flush()
			title = c.heading
		}
		if len(cur) >= s.cfg.TargetTurns {
			flush()
		}
		if c.text != "" {
			cur = append(cur, c.text)
		}
	}
	flush()
	return lessons
}

// documentTitle prefers the caller-supplied title, then the first short line
// of the text, falling back to a fixed default.
func documentTitle(text, title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return textutil.Truncate(line, 80)
		}
	}
	return "Imported Content"
}

func documentDescription(text string) string {
	paras := textutil.SplitParagraphs(text)
	if len(paras) == 0 {
		return ""
	}
	return textutil.Truncate(paras[0], 240)
}
