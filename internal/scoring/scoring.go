// Package scoring computes results for completed sessions. Everything in
// here is a pure function of the session's answer states and the question
// bank: no I/O, no mutation of its inputs, and recomputing over the same
// session yields the same result.
package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/satprep/session-service/internal/models"
)

// Normalize canonicalizes an answer for comparison: whitespace trimmed,
// lowercased, blanks dropped, selection order discarded. "0.5" and "1/2"
// are distinct; equivalence classes beyond string identity belong in a
// question's acceptable answers.
func Normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// IsCorrect grades one answer against a question. Multi-select answers
// must match the correct set exactly, in any order. Free-response answers
// additionally match any of the question's acceptable alternative
// spellings. An empty answer is always incorrect, even if the correct
// answer set were empty.
func IsCorrect(q *models.Question, userAnswer []string) bool {
	user := Normalize(userAnswer)
	if len(user) == 0 {
		return false
	}
	if equal(user, Normalize(q.CorrectAnswer)) {
		return true
	}
	if q.Type == models.FreeResponse && len(user) == 1 {
		for _, alt := range Normalize(q.AcceptableAnswers) {
			if user[0] == alt {
				return true
			}
		}
	}
	return false
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Score grades a session and rolls the per-question results up to topic,
// category, section and overall totals. Unanswered questions count as
// incorrect. Breakdowns appear in first-encounter order of the session's
// display order; exam sessions additionally get per-module raw scores and
// scaled section scores.
func Score(session *models.Session, questions []*models.Question, now time.Time) *models.ExamResult {
	bank := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		bank[q.ID] = q
	}

	result := &models.ExamResult{
		SessionID:  session.ID,
		Kind:       session.Kind,
		ComputedAt: now,
	}

	topics := newRollup[string]()
	categories := newRollup[string]()
	sections := newRollup[models.Section]()
	moduleCorrect := map[string]int{}
	moduleTotal := map[string]int{}

	for i := range session.Questions {
		row := &session.Questions[i]
		q, ok := bank[row.QuestionID]
		if !ok {
			continue
		}

		correct := row.Answered() && IsCorrect(q, row.UserAnswer)
		section := q.Topic.Category.Section

		result.Questions = append(result.Questions, models.QuestionResult{
			QuestionID:    q.ID,
			TopicName:     q.Topic.Name,
			CategoryName:  q.Topic.Category.Name,
			Section:       section,
			Difficulty:    q.Difficulty,
			QuestionType:  q.Type,
			IsCorrect:     correct,
			UserAnswer:    append([]string(nil), row.UserAnswer...),
			CorrectAnswer: append([]string(nil), q.CorrectAnswer...),
		})

		result.TotalQuestions++
		topics.add(q.Topic.Name, correct)
		categories.add(q.Topic.Category.Name, correct)
		sections.add(section, correct)
		if correct {
			result.TotalCorrect++
		}
		if row.ModuleID != nil {
			moduleTotal[*row.ModuleID]++
			if correct {
				moduleCorrect[*row.ModuleID]++
			}
		}
	}

	if result.TotalQuestions > 0 {
		result.OverallPercentage = percentage(result.TotalCorrect, result.TotalQuestions)
	}

	sectionOf := func(name string, topic bool) models.Section {
		for _, qr := range result.Questions {
			if (topic && qr.TopicName == name) || (!topic && qr.CategoryName == name) {
				return qr.Section
			}
		}
		return ""
	}
	for _, name := range topics.keys {
		c := topics.counts[name]
		result.Topics = append(result.Topics, models.TopicBreakdown{
			TopicName:  name,
			Section:    sectionOf(name, true),
			Correct:    c.correct,
			Total:      c.total,
			Percentage: percentage(c.correct, c.total),
		})
	}
	for _, name := range categories.keys {
		c := categories.counts[name]
		result.Categories = append(result.Categories, models.CategoryBreakdown{
			CategoryName: name,
			Section:      sectionOf(name, false),
			Correct:      c.correct,
			Total:        c.total,
			Percentage:   percentage(c.correct, c.total),
		})
	}
	for _, section := range sections.keys {
		c := sections.counts[section]
		result.Sections = append(result.Sections, models.SectionBreakdown{
			Section:    section,
			Correct:    c.correct,
			Total:      c.total,
			Percentage: percentage(c.correct, c.total),
		})
	}

	for i := range session.Modules {
		m := &session.Modules[i]
		result.Modules = append(result.Modules, models.ModuleResult{
			ModuleType:     m.ModuleType,
			ModuleNumber:   m.ModuleNumber,
			RawScore:       moduleCorrect[m.ID],
			TotalQuestions: moduleTotal[m.ID],
		})
	}

	if session.Kind == models.KindExam {
		result.Scaled = scaledScores(sections)
	}
	return result
}

func percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

type counts struct {
	correct int
	total   int
}

// rollup accumulates correct/total pairs keyed by breakdown dimension,
// remembering first-encounter order so output is deterministic.
type rollup[K comparable] struct {
	counts map[K]*counts
	keys   []K
}

func newRollup[K comparable]() *rollup[K] {
	return &rollup[K]{counts: make(map[K]*counts)}
}

func (r *rollup[K]) add(key K, correct bool) {
	c, ok := r.counts[key]
	if !ok {
		c = &counts{}
		r.counts[key] = c
		r.keys = append(r.keys, key)
	}
	c.total++
	if correct {
		c.correct++
	}
}
