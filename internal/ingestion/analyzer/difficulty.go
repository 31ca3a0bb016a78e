package analyzer

import (
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

const difficultyBaseline = 50

// EstimateDifficulty scores linguistic complexity from a 50-point baseline.
// Every factor that fires is reported with its signed impact so the score is
// explainable. Works on anything from a single sentence to a whole document.
func EstimateDifficulty(text string) content.Difficulty {
	words := textutil.Words(text)
	sentences := textutil.SplitSentences(text)

	score := difficultyBaseline
	var factors []content.DifficultyFactor

	if len(words) > 0 && len(sentences) > 0 {
		avgLen := float64(len(words)) / float64(len(sentences))
		switch {
		case avgLen > 25:
			score += 15
			factors = append(factors, content.DifficultyFactor{Name: "long sentences", Impact: 15, Value: round2(avgLen)})
		case avgLen < 10:
			score -= 10
			factors = append(factors, content.DifficultyFactor{Name: "short sentences", Impact: -10, Value: round2(avgLen)})
		}

		unique := map[string]bool{}
		for _, w := range words {
			unique[w] = true
		}
		diversity := float64(len(unique)) / float64(len(words))
		switch {
		case diversity > 0.7:
			score += 20
			factors = append(factors, content.DifficultyFactor{Name: "high lexical diversity", Impact: 20, Value: round2(diversity)})
		case diversity < 0.4:
			score -= 15
			factors = append(factors, content.DifficultyFactor{Name: "low lexical diversity", Impact: -15, Value: round2(diversity)})
		}

		long := 0
		for _, w := range words {
			if len([]rune(w)) > 8 {
				long++
			}
		}
		longRatio := float64(long) / float64(len(words))
		if longRatio > 0.1 {
			score += 15
			factors = append(factors, content.DifficultyFactor{Name: "many long words", Impact: 15, Value: round2(longRatio)})
		}
	}

	score = clamp(score, 0, 100)
	return content.Difficulty{
		Level:   difficultyLevel(score),
		Score:   score,
		Factors: factors,
	}
}

// difficultyLevel maps the score to tiers at the 30/70 thresholds.
func difficultyLevel(score int) string {
	switch {
	case score < 30:
		return content.LevelBeginner
	case score <= 70:
		return content.LevelIntermediate
	}
	return content.LevelAdvanced
}
