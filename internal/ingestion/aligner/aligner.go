package aligner

import (
	"context"
	"fmt"
	"strings"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// Translator is the external translation collaborator. Only the contract is
// fixed; implementations live in clients/translate.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Aligner pairs source sentences with target-language counterparts and
// enriches each pair with per-sentence difficulty, keywords and grammar tags.
type Aligner struct {
	translator Translator
	tagger     GrammarTagger
	log        *logger.Logger
}

func New(translator Translator, tagger GrammarTagger, log *logger.Logger) *Aligner {
	if tagger == nil {
		tagger = NewPatternTagger()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Aligner{translator: translator, tagger: tagger, log: log}
}

// Align splits the chunk into sentences and produces ordered sentence pairs.
// Bilingual chunks with interleaved target-language lines are paired
// positionally without calling the translator. Uneven sentence counts pair up
// to the shorter side; the remainder is reported, never silently dropped.
// Zero pairs from a non-empty chunk is the only fatal outcome.
func (a *Aligner) Align(ctx context.Context, chunkText, sourceLang, targetLang string) ([]content.SentencePair, content.AlignmentReport, error) {
	chunkText = textutil.NormalizeWhitespace(chunkText)
	report := content.AlignmentReport{}
	if chunkText == "" {
		return nil, report, nil
	}

	srcSentences, tgtSentences, prealigned := a.splitBilingual(chunkText, sourceLang, targetLang)
	report.Prealigned = prealigned

	if !prealigned {
		srcSentences = textutil.SplitSentences(chunkText)
		var err error
		tgtSentences, err = a.translateAll(ctx, srcSentences, sourceLang, targetLang, &report)
		if err != nil {
			return nil, report, err
		}
	}
	report.SourceSentences = len(srcSentences)
	report.TargetSentences = len(tgtSentences)

	n := len(srcSentences)
	if len(tgtSentences) < n {
		n = len(tgtSentences)
	}
	report.Paired = n
	report.Unpaired = len(srcSentences) + len(tgtSentences) - 2*n
	if report.Unpaired > 0 {
		a.log.Warn("alignment left sentences unpaired",
			"source_sentences", len(srcSentences),
			"target_sentences", len(tgtSentences),
			"unpaired", report.Unpaired,
		)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d sentence(s) left unpaired (source %d, target %d)",
				report.Unpaired, len(srcSentences), len(tgtSentences)))
	}
	if mismatchBeyondTolerance(len(srcSentences), len(tgtSentences)) {
		report.Warnings = append(report.Warnings, "source and target sentence counts diverge; pairing confidence is low")
	}

	if n == 0 {
		return nil, report, apierr.Alignment("zero_pairs", fmt.Errorf("no sentence pairs produced from non-empty chunk"))
	}

	pairs := make([]content.SentencePair, 0, n)
	for i := 0; i < n; i++ {
		src := srcSentences[i]
		diff := analyzer.EstimateDifficulty(src)
		pairs = append(pairs, content.SentencePair{
			SourceText:    src,
			TargetText:    tgtSentences[i],
			Difficulty:    diff.Score,
			Keywords:      analyzer.ExtractKeywords(src, 5),
			GrammarPoints: a.tagger.TagGrammar(src),
			Tags:          []string{diff.Level},
		})
	}
	return pairs, report, nil
}

// translateAll obtains the target counterpart for each source sentence. A
// translator failure surfaces as a translation error so the caller's retry
// policy applies; a missing translator degrades to empty targets with a
// warning instead of failing the chunk.
func (a *Aligner) translateAll(ctx context.Context, sentences []string, from, to string, report *content.AlignmentReport) ([]string, error) {
	if a.translator == nil {
		report.Warnings = append(report.Warnings, "no translator configured; target sentences left empty")
		return make([]string, len(sentences)), nil
	}
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		t, err := a.translator.Translate(ctx, s, from, to)
		if err != nil {
			// Partial progress is discarded; the stage retries whole.
			a.log.Warn("translation failed", "error", err)
			return nil, apierr.Translation("translate_sentence", fmt.Errorf("translate sentence: %w", err))
		}
		out = append(out, t)
	}
	return out, nil
}

// splitBilingual detects interleaved bilingual text: lines alternating between
// the two languages. When at least two target-language lines are present and
// the split is balanced, each side's lines are sentence-split independently
// and paired positionally.
func (a *Aligner) splitBilingual(text, sourceLang, targetLang string) (src, tgt []string, ok bool) {
	det := NewLangDetector(sourceLang, targetLang)
	if !det.Enabled() {
		return nil, nil, false
	}
	var srcLines, tgtLines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if det.IsTargetLanguage(line) {
			tgtLines = append(tgtLines, line)
		} else {
			srcLines = append(srcLines, line)
		}
	}
	total := len(srcLines) + len(tgtLines)
	if len(tgtLines) < 2 || total < 4 {
		return nil, nil, false
	}
	ratio := float64(len(tgtLines)) / float64(total)
	if ratio < 0.3 || ratio > 0.7 {
		return nil, nil, false
	}
	for _, l := range srcLines {
		src = append(src, textutil.SplitSentences(l)...)
	}
	for _, l := range tgtLines {
		tgt = append(tgt, textutil.SplitSentences(l)...)
	}
	return src, tgt, true
}

// mismatchBeyondTolerance flags a count divergence above 20% of the larger
// side. Advisory only.
func mismatchBeyondTolerance(src, tgt int) bool {
	if src == 0 || tgt == 0 {
		return src != tgt
	}
	max := src
	if tgt > max {
		max = tgt
	}
	diff := src - tgt
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(max) > 0.2
}
