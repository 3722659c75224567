package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

// ModuleTier is the difficulty tier of an adaptive second module, decided
// by first-module performance.
type ModuleTier string

const (
	TierEasy   ModuleTier = "easy"
	TierMedium ModuleTier = "medium"
	TierHard   ModuleTier = "hard"
)

// DifficultyDistribution maps difficulty levels to their share of a
// question set. Shares sum to 1.
type DifficultyDistribution map[models.DifficultyLevel]float64

// Module composition constants for the four-module exam layout.
const (
	ModuleQuestionCount    = 27
	ModuleTimeLimitSeconds = 32 * 60

	DiagnosticSectionCount = 20
	DefaultPracticeCount   = 10
)

// First modules mix difficulties evenly; second modules shift by tier.
var (
	balancedDistribution = DifficultyDistribution{
		models.DifficultyEasy:   0.33,
		models.DifficultyMedium: 0.34,
		models.DifficultyHard:   0.33,
	}

	tierDistributions = map[ModuleTier]DifficultyDistribution{
		TierEasy: {
			models.DifficultyEasy:   0.50,
			models.DifficultyMedium: 0.35,
			models.DifficultyHard:   0.15,
		},
		TierMedium: {
			models.DifficultyEasy:   0.33,
			models.DifficultyMedium: 0.34,
			models.DifficultyHard:   0.33,
		},
		TierHard: {
			models.DifficultyEasy:   0.15,
			models.DifficultyMedium: 0.35,
			models.DifficultyHard:   0.50,
		},
	}
)

// TierForScore maps a first-module percentage (0..1) onto the second
// module's difficulty tier.
func TierForScore(pct float64) ModuleTier {
	switch {
	case pct >= 0.7:
		return TierHard
	case pct >= 0.4:
		return TierMedium
	default:
		return TierEasy
	}
}

// questionPicker assembles question sets from the bank: category weights
// decide how many questions each category contributes, the difficulty
// distribution splits each category's share, and a section-wide backfill
// tops up whatever the bank could not satisfy exactly.
type questionPicker struct {
	repo repositories.Repository
	rand *rand.Rand
}

func newQuestionPicker(repo repositories.Repository, rng *rand.Rand) *questionPicker {
	return &questionPicker{repo: repo, rand: rng}
}

// PickSection draws count questions from one section, spread across the
// section's categories by weight and across difficulties by dist.
// Questions in exclude are never drawn, so consecutive modules of one
// section do not repeat. The returned order is shuffled.
func (p *questionPicker) PickSection(ctx context.Context, section models.Section, count int, dist DifficultyDistribution, exclude []string) ([]*models.Question, error) {
	categories, err := p.repo.Taxonomy().GetCategoriesBySection(ctx, section)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories for section %s: %w", section, err)
	}
	if len(categories) == 0 {
		return nil, ErrInsufficientBank
	}

	picked := make([]*models.Question, 0, count)
	seen := make(map[string]bool, count+len(exclude))
	for _, id := range exclude {
		seen[id] = true
	}

	for _, category := range categories {
		share := count * category.WeightInSection / 100
		if share == 0 {
			continue
		}
		questions, err := p.pickWithDistribution(ctx, repositories.RandomQuestionFilters{
			Section:    &section,
			CategoryID: &category.ID,
		}, share, dist, seen)
		if err != nil {
			return nil, err
		}
		picked = append(picked, questions...)
	}

	// Rounding and sparse categories leave a remainder; backfill from the
	// whole section.
	if len(picked) < count {
		fill, err := p.backfill(ctx, repositories.RandomQuestionFilters{Section: &section}, count-len(picked), seen)
		if err != nil {
			return nil, err
		}
		picked = append(picked, fill...)
	}
	if len(picked) < count {
		return nil, fmt.Errorf("%w: section %s has %d of %d questions", ErrInsufficientBank, section, len(picked), count)
	}

	p.shuffle(picked)
	return picked[:count], nil
}

// PickTopic draws count questions from a single topic, easiest first bias
// removed: plain balanced distribution with topic-wide backfill.
func (p *questionPicker) PickTopic(ctx context.Context, topicID string, count int) ([]*models.Question, error) {
	seen := make(map[string]bool, count)
	picked, err := p.pickWithDistribution(ctx, repositories.RandomQuestionFilters{
		TopicID: &topicID,
	}, count, balancedDistribution, seen)
	if err != nil {
		return nil, err
	}

	if len(picked) < count {
		fill, err := p.backfill(ctx, repositories.RandomQuestionFilters{TopicID: &topicID}, count-len(picked), seen)
		if err != nil {
			return nil, err
		}
		picked = append(picked, fill...)
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: topic %s has no active questions", ErrInsufficientBank, topicID)
	}

	p.shuffle(picked)
	if len(picked) > count {
		picked = picked[:count]
	}
	return picked, nil
}

// PickDiagnostic draws the fixed two-section diagnostic set: equal halves
// of math and reading/writing, balanced difficulty, math first.
func (p *questionPicker) PickDiagnostic(ctx context.Context) ([]*models.Question, error) {
	math, err := p.PickSection(ctx, models.SectionMath, DiagnosticSectionCount, balancedDistribution, nil)
	if err != nil {
		return nil, err
	}
	rw, err := p.PickSection(ctx, models.SectionReadingWriting, DiagnosticSectionCount, balancedDistribution, nil)
	if err != nil {
		return nil, err
	}
	return append(math, rw...), nil
}

// pickWithDistribution splits count across difficulties per dist and
// draws each slice, skipping questions already seen.
func (p *questionPicker) pickWithDistribution(ctx context.Context, base repositories.RandomQuestionFilters, count int, dist DifficultyDistribution, seen map[string]bool) ([]*models.Question, error) {
	picked := make([]*models.Question, 0, count)

	for _, difficulty := range []models.DifficultyLevel{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
		slice := int(float64(count) * dist[difficulty])
		if slice == 0 {
			continue
		}
		filters := base
		d := difficulty
		filters.Difficulty = &d
		filters.Count = slice
		filters.ExcludeIDs = keys(seen)

		questions, err := p.repo.Question().GetRandomQuestions(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to draw questions: %w", err)
		}
		for _, q := range questions {
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			picked = append(picked, q)
		}
	}
	return picked, nil
}

func (p *questionPicker) backfill(ctx context.Context, base repositories.RandomQuestionFilters, count int, seen map[string]bool) ([]*models.Question, error) {
	filters := base
	filters.Count = count
	filters.ExcludeIDs = keys(seen)

	questions, err := p.repo.Question().GetRandomQuestions(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to backfill questions: %w", err)
	}
	picked := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		picked = append(picked, q)
	}
	return picked, nil
}

func (p *questionPicker) shuffle(questions []*models.Question) {
	p.rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
