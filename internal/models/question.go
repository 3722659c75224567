package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FreeResponse   QuestionType = "free_response"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "E"
	DifficultyMedium DifficultyLevel = "M"
	DifficultyHard   DifficultyLevel = "H"
)

type Section string

const (
	SectionMath           Section = "math"
	SectionReadingWriting Section = "reading_writing"
)

// AnswerOption is one selectable choice of a multiple-choice question,
// stored as part of the question's options JSON.
type AnswerOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Category struct {
	ID              string  `json:"id" gorm:"primaryKey;size:36"`
	Name            string  `json:"name" gorm:"not null;size:200"`
	Section         Section `json:"section" gorm:"not null;index"`
	WeightInSection int     `json:"weight_in_section" gorm:"not null"` // percent of section questions

	Topics []Topic `json:"topics,omitempty" gorm:"foreignKey:CategoryID"`
}

type Topic struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	CategoryID string `json:"category_id" gorm:"not null;index"`
	Name       string `json:"name" gorm:"not null;size:200"`

	Category Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// Question is an immutable row of the question bank. The session engine
// never mutates questions; per-session state lives on SessionQuestion.
type Question struct {
	ID      string  `json:"id" gorm:"primaryKey;size:36"`
	Stem    string  `json:"stem" gorm:"type:text;not null" validate:"required"`
	Passage *string `json:"passage,omitempty" gorm:"type:text"`

	Type    QuestionType   `json:"type" gorm:"not null;index" validate:"required,question_type"`
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"` // []AnswerOption, multiple choice only

	CorrectAnswer     datatypes.JSONSlice[string] `json:"correct_answer" gorm:"type:jsonb"`
	AcceptableAnswers datatypes.JSONSlice[string] `json:"acceptable_answers,omitempty" gorm:"type:jsonb"`

	Difficulty DifficultyLevel `json:"difficulty" gorm:"not null;index" validate:"required,difficulty_level"`
	TopicID    string          `json:"topic_id" gorm:"not null;index"`
	IsActive   bool            `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Topic Topic `json:"topic,omitempty" gorm:"foreignKey:TopicID"`
}

func (Question) TableName() string {
	return "questions"
}

func (Category) TableName() string {
	return "categories"
}

func (Topic) TableName() string {
	return "topics"
}
