package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/ingestion/aligner"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/ingestion/assembler"
	"github.com/openlingo/openlingo-backend/internal/ingestion/extractor"
	"github.com/openlingo/openlingo-backend/internal/ingestion/segmenter"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
	"github.com/openlingo/openlingo-backend/internal/jobs/orchestrator"
	jobrt "github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

const JobTypeContentImport = "content_import"

// Payload is the serialized job input. Source is immutable once accepted;
// Stages is the validated subset requested at submit time (empty means the
// full pipeline).
type Payload struct {
	Source  content.RawSource `json:"source"`
	Stages  []string          `json:"stages,omitempty"`
	Options Options           `json:"options,omitempty"`
}

type Options struct {
	ContentTypeHint string `json:"content_type_hint,omitempty"`
	AutoFix         bool   `json:"auto_fix,omitempty"`
	ProcessingLevel string `json:"processing_level,omitempty"`
	QualityFloor    int    `json:"quality_floor,omitempty"`
}

// Config tunes per-stage execution. StageTimeout bounds stages that call
// external collaborators; heuristic-only stages run untimed since they cannot
// hang.
type Config struct {
	StageTimeout time.Duration
	QualityFloor int
}

func (c *Config) defaults() {
	if c.StageTimeout <= 0 {
		c.StageTimeout = 2 * time.Minute
	}
	if c.QualityFloor <= 0 {
		c.QualityFloor = 40
	}
}

// Handler runs one content import through the fixed stage sequence. It is
// registered under JobTypeContentImport and driven by the worker pool.
type Handler struct {
	cfg       Config
	extractor *extractor.Extractor
	analyzer  *analyzer.Analyzer
	segmenter *segmenter.Segmenter
	aligner   *aligner.Aligner
	assembler *assembler.Assembler
	engine    *orchestrator.Engine
	log       *logger.Logger
}

func NewHandler(cfg Config, ex *extractor.Extractor, an *analyzer.Analyzer, seg *segmenter.Segmenter, al *aligner.Aligner, as *assembler.Assembler, log *logger.Logger) *Handler {
	cfg.defaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		extractor: ex,
		analyzer:  an,
		segmenter: seg,
		aligner:   al,
		assembler: as,
		engine:    orchestrator.NewEngine(),
		log:       log,
	}
}

func (h *Handler) Type() string { return JobTypeContentImport }

func (h *Handler) Run(ctx *jobrt.Context) error {
	p, err := decodePayload(ctx)
	if err != nil {
		ctx.Fail(domain.StageExtract, err)
		return nil
	}
	stages := h.buildStages(p)
	return h.engine.Run(ctx, stages, func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
		return h.finalize(c, st, p)
	})
}

// buildStages assembles the requested subset of the canonical pipeline. Each
// stage keeps a fixed progress window; subsetting preserves monotonicity.
func (h *Handler) buildStages(p *Payload) []orchestrator.Stage {
	wanted := map[string]bool{}
	if len(p.Stages) == 0 {
		for _, s := range domain.CanonicalStages {
			wanted[s] = true
		}
	} else {
		for _, s := range p.Stages {
			wanted[s] = true
		}
	}

	all := []orchestrator.Stage{
		{
			Name: domain.StageExtract, StartPct: 0, EndPct: 15,
			StartMsg: "Extracting source text", DoneMsg: "Source text extracted",
			Timeout: h.cfg.StageTimeout,
			Retry:   orchestrator.RetryPolicy{MaxAttempts: 3},
			Run:     func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runExtract(c, st, p) },
		},
		{
			Name: domain.StageAnalyze, StartPct: 15, EndPct: 35,
			StartMsg: "Analyzing content", DoneMsg: "Content analyzed",
			Run: func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runAnalyze(c, st, p) },
		},
		{
			Name: domain.StageTransform, StartPct: 35, EndPct: 50,
			StartMsg: "Cleaning text", DoneMsg: "Text cleaned",
			Run: func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runTransform(c, st, p) },
		},
		{
			Name: domain.StageAlign, StartPct: 50, EndPct: 75,
			StartMsg: "Aligning sentences", DoneMsg: "Sentences aligned",
			Timeout: h.cfg.StageTimeout,
			Retry:   orchestrator.RetryPolicy{MaxAttempts: 3},
			Run:     func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runAlign(c, st, p) },
		},
		{
			Name: domain.StageSplit, StartPct: 75, EndPct: 90,
			StartMsg: "Splitting into lessons", DoneMsg: "Lessons split",
			Run: func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runSplit(c, st, p) },
		},
		{
			Name: domain.StageTag, StartPct: 90, EndPct: 98,
			StartMsg: "Tagging lessons", DoneMsg: "Lessons tagged",
			Run: func(c *jobrt.Context, st *orchestrator.State) (map[string]any, error) { return h.runTag(c, st) },
		},
	}

	out := make([]orchestrator.Stage, 0, len(all))
	for _, s := range all {
		if wanted[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// -------------------- stage bodies --------------------

func (h *Handler) runExtract(ctx *jobrt.Context, _ *orchestrator.State, p *Payload) (map[string]any, error) {
	ex, err := h.extractor.Extract(ctx.Ctx, p.Source)
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": ex.Text, "title": ex.Title}, nil
}

func (h *Handler) runAnalyze(_ *jobrt.Context, st *orchestrator.State, p *Payload) (map[string]any, error) {
	text := h.currentText(st, p)
	if text == "" {
		return nil, apierr.Input("no_text", fmt.Errorf("no text to analyze"))
	}
	res := h.analyzer.Analyze(text)
	floor := p.Options.QualityFloor
	if floor <= 0 {
		floor = h.cfg.QualityFloor
	}
	// Quality is informational: below-floor scores warn, never block.
	if res.QualityScore < floor {
		st.Warn(fmt.Sprintf("quality score %d below threshold %d", res.QualityScore, floor))
	}
	if res.TopicsLowConfidence {
		st.Warn("topic identification fell back to low-confidence sampling")
	}
	return map[string]any{"analysis": res}, nil
}

func (h *Handler) runTransform(_ *jobrt.Context, st *orchestrator.State, p *Payload) (map[string]any, error) {
	text := h.currentText(st, p)
	if text == "" {
		return nil, apierr.Input("no_text", fmt.Errorf("no text to transform"))
	}
	text = textutil.NormalizeWhitespace(text)
	fixed := 0
	if p.Options.AutoFix {
		text, fixed = analyzer.ApplyCorrections(text)
	}
	return map[string]any{"text": text, "fixed_count": fixed}, nil
}

func (h *Handler) runAlign(ctx *jobrt.Context, st *orchestrator.State, p *Payload) (map[string]any, error) {
	text := h.currentText(st, p)
	if text == "" {
		return nil, apierr.Input("no_text", fmt.Errorf("no text to align"))
	}
	pairs, report, err := h.aligner.Align(ctx.Ctx, text, p.Source.SourceLanguage, p.Source.TargetLanguage)
	if err != nil {
		return nil, err
	}
	for _, w := range report.Warnings {
		st.Warn(w)
	}
	return map[string]any{"pairs": pairs, "report": report}, nil
}

func (h *Handler) runSplit(_ *jobrt.Context, st *orchestrator.State, p *Payload) (map[string]any, error) {
	text := h.currentText(st, p)
	if text == "" {
		return nil, apierr.Input("no_text", fmt.Errorf("no text to split"))
	}
	seg := h.segmenter.Segment(text, h.currentTitle(st, p), p.Options.ContentTypeHint)
	return map[string]any{"segments": seg}, nil
}

// runTag recomputes per-lesson topics and keywords so each unit carries local
// metadata instead of inheriting the document's.
func (h *Handler) runTag(_ *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
	var seg content.SegmentResult
	if !decodeOutput(st.Output(domain.StageSplit, "segments"), &seg) {
		return map[string]any{}, nil
	}
	topics := make([][]string, len(seg.Lessons))
	keywords := make([][]string, len(seg.Lessons))
	for i, l := range seg.Lessons {
		topics[i], _ = analyzer.IdentifyTopics(l.RawContent)
		keywords[i] = analyzer.ExtractKeywords(l.RawContent, 5)
	}
	return map[string]any{"lesson_topics": topics, "lesson_keywords": keywords}, nil
}

// finalize folds stage outputs into the course artifact. Stages the caller
// skipped simply contribute nothing.
func (h *Handler) finalize(_ *jobrt.Context, st *orchestrator.State, p *Payload) (map[string]any, error) {
	out := map[string]any{}

	var analysis content.AnalysisResult
	if decodeOutput(st.Output(domain.StageAnalyze, "analysis"), &analysis) {
		out["analysis"] = analysis
	}

	var seg content.SegmentResult
	if !decodeOutput(st.Output(domain.StageSplit, "segments"), &seg) {
		// No split stage ran; the whole text is the single artifact.
		text := h.currentText(st, p)
		if text == "" {
			return out, nil
		}
		seg = content.SegmentResult{
			Title:       h.currentTitle(st, p),
			ContentType: content.TypeGeneral,
			Lessons:     []content.LessonDraft{{Title: "Lesson 1", RawContent: text}},
		}
	}

	var pairs []content.SentencePair
	decodeOutput(st.Output(domain.StageAlign, "pairs"), &pairs)

	course := h.assembler.Assemble(seg, distributePairs(seg.Lessons, pairs), analysis, p.Source, p.Options.ProcessingLevel)
	out["course"] = course
	return out, nil
}

// -------------------- input plumbing --------------------

// currentText resolves the working text: the transform stage's cleaned text
// wins, then the extract stage's raw text, then the inline payload for jobs
// that skipped extraction.
func (h *Handler) currentText(st *orchestrator.State, p *Payload) string {
	var s string
	if decodeOutput(st.Output(domain.StageTransform, "text"), &s) && s != "" {
		return s
	}
	if decodeOutput(st.Output(domain.StageExtract, "text"), &s) && s != "" {
		return s
	}
	if p.Source.Kind == content.SourceText {
		return textutil.NormalizeWhitespace(p.Source.Payload)
	}
	return ""
}

func (h *Handler) currentTitle(st *orchestrator.State, p *Payload) string {
	var s string
	if decodeOutput(st.Output(domain.StageExtract, "title"), &s) && s != "" {
		return s
	}
	return p.Source.Title
}

// distributePairs hands each lesson its share of the document-order pairs,
// sized by the lesson's own sentence count. Leftover pairs attach to the last
// lesson so none are dropped.
func distributePairs(lessons []content.LessonDraft, pairs []content.SentencePair) [][]content.SentencePair {
	out := make([][]content.SentencePair, len(lessons))
	if len(lessons) == 0 || len(pairs) == 0 {
		return out
	}
	idx := 0
	for i, l := range lessons {
		n := len(textutil.SplitSentences(l.RawContent))
		if idx+n > len(pairs) {
			n = len(pairs) - idx
		}
		if n > 0 {
			out[i] = pairs[idx : idx+n]
			idx += n
		}
	}
	if idx < len(pairs) {
		last := len(lessons) - 1
		out[last] = append(out[last], pairs[idx:]...)
	}
	return out
}

// ValidateSubmit checks a submission before any job row exists. Violations
// are input errors: the job is never created.
func ValidateSubmit(src content.RawSource, stages []string) ([]string, error) {
	switch src.Kind {
	case content.SourceText, content.SourceFile, content.SourceURL:
	default:
		return nil, apierr.Input("unsupported_source_kind", fmt.Errorf("unsupported source kind %q", src.Kind))
	}
	if strings.TrimSpace(src.Payload) == "" {
		return nil, apierr.Input("empty_source", fmt.Errorf("source payload is empty"))
	}
	if strings.TrimSpace(src.SourceLanguage) == "" || strings.TrimSpace(src.TargetLanguage) == "" {
		return nil, apierr.Input("missing_languages", fmt.Errorf("source and target languages are required"))
	}
	cleaned, err := orchestrator.ValidateStageNames(stages)
	if err != nil {
		return nil, apierr.Input("invalid_stage_list", err)
	}
	return cleaned, nil
}
