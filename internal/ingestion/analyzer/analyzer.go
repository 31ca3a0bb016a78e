package analyzer

import (
	"math"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

// Config tunes the analysis heuristics. Zero values fall back to defaults so
// a zero Config is usable.
type Config struct {
	MinContentLength int // chars below which "content too short" fires
	WordsPerMinute   int // read-time divisor
	SentencesPerLesson int
}

func (c *Config) defaults() {
	if c.MinContentLength <= 0 {
		c.MinContentLength = 100
	}
	if c.WordsPerMinute <= 0 {
		c.WordsPerMinute = 200
	}
	if c.SentencesPerLesson <= 0 {
		c.SentencesPerLesson = 30
	}
}

// Analyzer computes the full derived view of a text blob. It is stateless
// and deterministic: same text and config, same result. No collaborator
// calls; everything here is a local heuristic.
type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{cfg: cfg}
}

// Analyze runs every pass over the text and assembles the result. Empty
// input yields a zero-count result with a short-content quality issue rather
// than an error; submit-time validation rejects empty sources before a job
// ever reaches here.
func (a *Analyzer) Analyze(text string) content.AnalysisResult {
	sentences := textutil.SplitSentences(text)
	paragraphs := textutil.SplitParagraphs(text)
	words := textutil.Words(text)

	res := content.AnalysisResult{
		WordCount:      len(words),
		SentenceCount:  len(sentences),
		ParagraphCount: len(paragraphs),
	}
	if len(sentences) > 0 {
		res.AvgSentenceLength = round2(float64(len(words)) / float64(len(sentences)))
	}
	res.EstimatedReadTime = ceilDiv(len(words), a.cfg.WordsPerMinute)
	res.EstimatedLessonCount = ceilDiv(len(sentences), a.cfg.SentencesPerLesson)

	res.QualityScore, res.QualityIssues = a.scoreQuality(text, sentences, words)
	res.ReadabilityScore = readability(sentences, words)
	res.Keywords = ExtractKeywords(text, 10)
	res.Topics, res.TopicsLowConfidence = IdentifyTopics(text)
	res.Difficulty = EstimateDifficulty(text)
	res.Structure = DetectStructure(text)
	return res
}

// readability is reported alongside, never merged into, the quality score:
// 100 − 1.5·avgSentenceLen − 5·avgWordLen, clamped to [0,100].
func readability(sentences, words []string) int {
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	avgSentence := float64(len(words)) / float64(len(sentences))
	totalRunes := 0
	for _, w := range words {
		totalRunes += len([]rune(w))
	}
	avgWord := float64(totalRunes) / float64(len(words))
	score := 100.0 - 1.5*avgSentence - 5.0*avgWord
	return clamp(int(math.Round(score)), 0, 100)
}

func ceilDiv(n, d int) int {
	if d <= 0 || n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
