package assembler

import (
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
)

// Assembler folds segmented lessons, their aligned sentence pairs and the
// document-level analysis into the terminal CourseOutput.
type Assembler struct{}

func New() *Assembler { return &Assembler{} }

// Assemble builds the course artifact. Lesson order follows segment order;
// pairsByLesson is indexed by lesson position and may be shorter than the
// lesson list (lessons without pairs keep an empty pair slice, they are not
// dropped). Per-lesson topics and keywords are recomputed from the lesson's
// own text so they stay local to the unit.
func (as *Assembler) Assemble(seg content.SegmentResult, pairsByLesson [][]content.SentencePair, analysis content.AnalysisResult, src content.RawSource, processingLevel string) content.CourseOutput {
	lessons := make([]content.LessonDraft, len(seg.Lessons))
	copy(lessons, seg.Lessons)

	totalPairs := 0
	difficultySum := 0
	for i := range lessons {
		if i < len(pairsByLesson) {
			lessons[i].SentencePairs = pairsByLesson[i]
		}
		topics, _ := analyzer.IdentifyTopics(lessons[i].RawContent)
		lessons[i].Topics = topics
		lessons[i].Keywords = analyzer.ExtractKeywords(lessons[i].RawContent, 5)
		for _, p := range lessons[i].SentencePairs {
			totalPairs++
			difficultySum += p.Difficulty
		}
	}

	avgDifficulty := 0.0
	if totalPairs > 0 {
		avgDifficulty = float64(difficultySum) / float64(totalPairs)
	}
	if processingLevel == "" {
		processingLevel = "standard"
	}

	title := seg.Title
	if src.Title != "" {
		title = src.Title
	}
	return content.CourseOutput{
		Title:          title,
		Description:    seg.Description,
		SourceLanguage: src.SourceLanguage,
		TargetLanguage: src.TargetLanguage,
		Lessons:        lessons,
		Metadata: content.CourseMetadata{
			SentenceCount:   totalPairs,
			AvgDifficulty:   avgDifficulty,
			ProcessingLevel: processingLevel,
		},
	}
}
