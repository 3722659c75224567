package scoring

import (
	"math"

	"github.com/satprep/session-service/internal/models"
)

const (
	sectionScoreFloor   = 200
	sectionScoreCeiling = 800
	sectionScoreRange   = 600
)

// ScaledSectionScore maps a raw percentage onto the 200-800 section scale,
// rounded to the nearest 10. A section with no questions scores the floor.
func ScaledSectionScore(correct, total int) int {
	if total == 0 {
		return sectionScoreFloor
	}
	pct := float64(correct) / float64(total)
	score := sectionScoreFloor + pct*sectionScoreRange
	score = math.Round(score/10) * 10
	if score < sectionScoreFloor {
		return sectionScoreFloor
	}
	if score > sectionScoreCeiling {
		return sectionScoreCeiling
	}
	return int(score)
}

func scaledScores(sections *rollup[models.Section]) *models.ScaledScores {
	mathCounts := sections.counts[models.SectionMath]
	rwCounts := sections.counts[models.SectionReadingWriting]

	scores := &models.ScaledScores{
		Math: sectionScoreFloor,
		RW:   sectionScoreFloor,
	}
	if mathCounts != nil {
		scores.Math = ScaledSectionScore(mathCounts.correct, mathCounts.total)
	}
	if rwCounts != nil {
		scores.RW = ScaledSectionScore(rwCounts.correct, rwCounts.total)
	}
	scores.Total = scores.Math + scores.RW
	return scores
}
