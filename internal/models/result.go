package models

import "time"

// ExamResult is the derived scoring output of a completed session. It is
// computed once by the scoring package and never mutated; recomputation
// requires a fresh pass over the same session.
type ExamResult struct {
	SessionID  string      `json:"session_id"`
	Kind       SessionKind `json:"kind"`
	ComputedAt time.Time   `json:"computed_at"`

	Questions  []QuestionResult    `json:"questions"`
	Modules    []ModuleResult      `json:"modules,omitempty"`
	Topics     []TopicBreakdown    `json:"topics"`
	Categories []CategoryBreakdown `json:"categories"`
	Sections   []SectionBreakdown  `json:"sections"`

	TotalQuestions    int     `json:"total_questions"`
	TotalCorrect      int     `json:"total_correct"`
	OverallPercentage float64 `json:"overall_percentage"`

	// Present for exam sessions only.
	Scaled *ScaledScores `json:"scaled,omitempty"`
}

type QuestionResult struct {
	QuestionID    string          `json:"question_id"`
	TopicName     string          `json:"topic_name"`
	CategoryName  string          `json:"category_name"`
	Section       Section         `json:"section"`
	Difficulty    DifficultyLevel `json:"difficulty"`
	QuestionType  QuestionType    `json:"question_type"`
	IsCorrect     bool            `json:"is_correct"`
	UserAnswer    []string        `json:"user_answer"`
	CorrectAnswer []string        `json:"correct_answer"`
}

type ModuleResult struct {
	ModuleType     ModuleType `json:"module_type"`
	ModuleNumber   int        `json:"module_number"`
	RawScore       int        `json:"raw_score"`
	TotalQuestions int        `json:"total_questions"`
}

type TopicBreakdown struct {
	TopicName  string  `json:"topic_name"`
	Section    Section `json:"section"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type CategoryBreakdown struct {
	CategoryName string  `json:"category_name"`
	Section      Section `json:"section"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	Percentage   float64 `json:"percentage"`
}

type SectionBreakdown struct {
	Section    Section `json:"section"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ScaledScores holds SAT-scaled section scores (200-800 each, rounded to
// the nearest 10) and their 400-1600 total.
type ScaledScores struct {
	Math  int `json:"math"`
	RW    int `json:"rw"`
	Total int `json:"total"`
}
