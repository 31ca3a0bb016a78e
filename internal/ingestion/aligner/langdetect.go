package aligner

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// linguaByCode maps the ISO 639-1 codes the API accepts to lingua languages.
// Unlisted codes disable statistical detection; the aligner then assumes the
// text is monolingual source text.
var linguaByCode = map[string]lingua.Language{
	"en": lingua.English,
	"zh": lingua.Chinese,
	"es": lingua.Spanish,
	"fr": lingua.French,
	"de": lingua.German,
	"ja": lingua.Japanese,
	"ko": lingua.Korean,
	"pt": lingua.Portuguese,
	"it": lingua.Italian,
	"ru": lingua.Russian,
	"ar": lingua.Arabic,
	"nl": lingua.Dutch,
}

// LangDetector classifies lines as source- or target-language using lingua's
// statistical models restricted to the two languages in play.
type LangDetector struct {
	detector lingua.LanguageDetector
	source   lingua.Language
	target   lingua.Language
	ok       bool
}

func NewLangDetector(sourceLang, targetLang string) *LangDetector {
	src, sok := linguaByCode[strings.ToLower(sourceLang)]
	tgt, tok := linguaByCode[strings.ToLower(targetLang)]
	if !sok || !tok || src == tgt {
		return &LangDetector{}
	}
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(src, tgt).
		Build()
	return &LangDetector{detector: det, source: src, target: tgt, ok: true}
}

func (d *LangDetector) Enabled() bool { return d.ok }

// IsTargetLanguage reports whether the line reads as target-language text.
// Short lines are unreliable; anything under 4 runes is treated as source.
func (d *LangDetector) IsTargetLanguage(line string) bool {
	if !d.ok || len([]rune(strings.TrimSpace(line))) < 4 {
		return false
	}
	lang, confident := d.detector.DetectLanguageOf(line)
	return confident && lang == d.target
}
