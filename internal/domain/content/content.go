package content

// RawSource is the submitted input for one import. Immutable once accepted;
// it travels in the owning job's payload.
type RawSource struct {
	Kind           string         `json:"kind"` // text|file|url
	Payload        string         `json:"payload"`
	SourceLanguage string         `json:"source_language"`
	TargetLanguage string         `json:"target_language"`
	Title          string         `json:"title,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
}

const (
	SourceText = "text"
	SourceFile = "file"
	SourceURL  = "url"
)

// QualityIssue is one detected problem in the source text.
type QualityIssue struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"` // low|medium|high
	Message    string `json:"message"`
	Correction string `json:"correction,omitempty"`
}

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// DifficultyFactor explains one signed contribution to the difficulty score.
type DifficultyFactor struct {
	Name   string  `json:"name"`
	Impact int     `json:"impact"`
	Value  float64 `json:"value"`
}

type Difficulty struct {
	Level   string             `json:"level"` // beginner|intermediate|advanced
	Score   int                `json:"score"` // 0..100
	Factors []DifficultyFactor `json:"factors"`
}

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Section is one entry in the detected document outline.
type Section struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

type Structure struct {
	Sections          []Section `json:"sections"`
	HasClearStructure bool      `json:"has_clear_structure"`
}

// AnalysisResult is the full derived view of a text blob. Recomputed on
// demand, never mutated in place.
type AnalysisResult struct {
	WordCount           int            `json:"word_count"`
	SentenceCount       int            `json:"sentence_count"`
	ParagraphCount      int            `json:"paragraph_count"`
	AvgSentenceLength   float64        `json:"avg_sentence_length"`
	EstimatedReadTime   int            `json:"estimated_read_time"`    // minutes
	EstimatedLessonCount int           `json:"estimated_lesson_count"`
	QualityScore        int            `json:"quality_score"` // 0..100
	QualityIssues       []QualityIssue `json:"quality_issues"`
	ReadabilityScore    int            `json:"readability_score"` // 0..100, reported alongside quality
	Topics              []string       `json:"topics"`
	TopicsLowConfidence bool           `json:"topics_low_confidence"`
	Keywords            []string       `json:"keywords"`
	Difficulty          Difficulty     `json:"difficulty"`
	Structure           Structure      `json:"structure"`
}

// SentencePair is one aligned source/target sentence with attached metadata.
// Order within a LessonDraft is reading order.
type SentencePair struct {
	SourceText    string   `json:"source_text"`
	TargetText    string   `json:"target_text"`
	Difficulty    int      `json:"difficulty"`
	Keywords      []string `json:"keywords,omitempty"`
	GrammarPoints []string `json:"grammar_points,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// LessonDraft is one teachable unit prior to course finalization.
type LessonDraft struct {
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle,omitempty"`
	Description   string         `json:"description"`
	RawContent    string         `json:"raw_content"`
	SentencePairs []SentencePair `json:"sentence_pairs"`
	Topics        []string       `json:"topics,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
}

// CourseMetadata summarizes a finished course.
type CourseMetadata struct {
	SentenceCount   int     `json:"sentence_count"`
	AvgDifficulty   float64 `json:"avg_difficulty"`
	ProcessingLevel string  `json:"processing_level"`
}

// CourseOutput is the terminal artifact of a completed import job.
type CourseOutput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	SourceLanguage string         `json:"source_language"`
	TargetLanguage string         `json:"target_language"`
	Lessons        []LessonDraft  `json:"lessons"`
	Metadata       CourseMetadata `json:"metadata"`
}

// Content types the segmenter can detect, in detection priority order.
const (
	TypeBook     = "book"
	TypeArticle  = "article"
	TypeScript   = "script"
	TypeDialogue = "dialogue"
	TypeGeneral  = "general"
)

// SegmentResult is the segmenter's output: ordered lesson-sized chunks plus
// document-level title/description.
type SegmentResult struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ContentType string        `json:"content_type"`
	Lessons     []LessonDraft `json:"lessons"`
}

// AlignmentReport carries non-fatal alignment diagnostics: how many sentences
// on each side, how many paired, and any warnings attached to the result.
type AlignmentReport struct {
	SourceSentences int      `json:"source_sentences"`
	TargetSentences int      `json:"target_sentences"`
	Paired          int      `json:"paired"`
	Unpaired        int      `json:"unpaired"`
	Prealigned      bool     `json:"prealigned"`
	Warnings        []string `json:"warnings,omitempty"`
}
