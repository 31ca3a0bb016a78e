package analyzer

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

const qualityBaseline = 85

// misspellings maps known error patterns to their corrections. Each match
// costs spellingPenalty and emits a low-severity issue carrying the fix.
var misspellings = map[string]string{
	"teh":        "the",
	"recieve":    "receive",
	"seperate":   "separate",
	"definately": "definitely",
	"occured":    "occurred",
	"wich":       "which",
	"becuase":    "because",
	"untill":     "until",
	"alot":       "a lot",
	"accomodate": "accommodate",
}

const (
	shortContentPenalty  = 20
	duplicatePenalty     = 15
	uniformLengthPenalty = 10
	spellingPenalty      = 2
)

var misspellingRE = func() *regexp.Regexp {
	words := make([]string, 0, len(misspellings))
	for w := range misspellings {
		words = append(words, w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}()

// scoreQuality starts from the baseline and subtracts penalties for each
// detected defect, clamping to [0,100]. Quality is informational: it never
// gates job completion.
func (a *Analyzer) scoreQuality(text string, sentences, words []string) (int, []content.QualityIssue) {
	score := qualityBaseline
	var issues []content.QualityIssue

	if len(strings.TrimSpace(text)) < a.cfg.MinContentLength {
		score -= shortContentPenalty
		issues = append(issues, content.QualityIssue{
			Type:     "content too short",
			Severity: content.SeverityMedium,
			Message:  fmt.Sprintf("content is below the %d-character minimum", a.cfg.MinContentLength),
		})
	}

	if dup, ratio := duplicateContent(sentences, words); dup {
		score -= duplicatePenalty
		issues = append(issues, content.QualityIssue{
			Type:     "duplicate content",
			Severity: content.SeverityHigh,
			Message:  fmt.Sprintf("%.0f%% of the content repeats itself", ratio*100),
		})
	}

	if uniformSentenceLength(sentences) {
		score -= uniformLengthPenalty
		issues = append(issues, content.QualityIssue{
			Type:     "uniform sentence length",
			Severity: content.SeverityLow,
			Message:  "sentence lengths show almost no variation",
		})
	}

	seen := map[string]bool{}
	for _, m := range misspellingRE.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		score -= spellingPenalty
		issues = append(issues, content.QualityIssue{
			Type:       "spelling",
			Severity:   content.SeverityLow,
			Message:    fmt.Sprintf("possible misspelling %q", m),
			Correction: misspellings[key],
		})
	}

	return clamp(score, 0, 100), issues
}

// duplicateContent flags repetition two ways: more than 10% of sentences are
// repeats of an earlier sentence, or the token stream itself is dominated by
// repeats (low unique ratio over enough words). The second catches inputs
// that are one long repetitive sentence.
func duplicateContent(sentences, words []string) (bool, float64) {
	if len(sentences) > 1 {
		seen := map[string]bool{}
		repeats := 0
		for _, s := range sentences {
			key := textutil.NormalizeForCompare(s)
			if seen[key] {
				repeats++
				continue
			}
			seen[key] = true
		}
		if ratio := float64(repeats) / float64(len(sentences)); ratio > 0.10 {
			return true, ratio
		}
	}
	if len(words) >= 8 {
		unique := map[string]bool{}
		for _, w := range words {
			unique[w] = true
		}
		if ratio := float64(len(unique)) / float64(len(words)); ratio < 0.30 {
			return true, 1 - ratio
		}
	}
	return false, 0
}

// uniformSentenceLength is only meaningful with a real sample: >10 sentences
// whose word counts barely vary.
func uniformSentenceLength(sentences []string) bool {
	if len(sentences) <= 10 {
		return false
	}
	lengths := make([]float64, len(sentences))
	sum := 0.0
	for i, s := range sentences {
		lengths[i] = float64(len(textutil.Words(s)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	variance := 0.0
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	return math.Sqrt(variance) < 1.5
}

// Corrections exposes the known misspelling table for the batch auto-fix
// pass.
func Corrections() map[string]string {
	out := make(map[string]string, len(misspellings))
	for k, v := range misspellings {
		out[k] = v
	}
	return out
}

// ApplyCorrections rewrites known misspellings in place, preserving leading
// capitalization. Returns the fixed text and how many replacements happened.
func ApplyCorrections(text string) (string, int) {
	fixed := 0
	out := misspellingRE.ReplaceAllStringFunc(text, func(m string) string {
		corr, ok := misspellings[strings.ToLower(m)]
		if !ok {
			return m
		}
		fixed++
		if m[0] >= 'A' && m[0] <= 'Z' && len(corr) > 0 {
			return strings.ToUpper(corr[:1]) + corr[1:]
		}
		return corr
	})
	return out, fixed
}
