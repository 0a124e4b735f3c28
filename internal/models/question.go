package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FillBlank      QuestionType = "fill_blank"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	BankID uint         `json:"bank_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`

	// Answer key stored as JSONB, schema depends on Type
	AnswerKey datatypes.JSON `json:"answer_key" gorm:"type:jsonb"`

	// Categorization used by matrix items when drawing questions
	Domain     string          `json:"domain" gorm:"size:100;index"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"default:medium;index"`
	IsActive   bool            `json:"is_active" gorm:"default:true;index"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Bank QuestionBank `json:"-" gorm:"foreignKey:BankID"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== ANSWER KEY SCHEMAS =====

// MultipleChoiceKey holds the options of a single-correct multiple choice
// question. Exactly one option carries IsCorrect.
type MultipleChoiceKey struct {
	Options []ChoiceOption `json:"options" validate:"min=2,max=10"`
}

type ChoiceOption struct {
	ID        string `json:"id"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// CorrectOptionID returns the id of the correct option, or "" when the key
// is malformed.
func (k MultipleChoiceKey) CorrectOptionID() string {
	for _, opt := range k.Options {
		if opt.IsCorrect {
			return opt.ID
		}
	}
	return ""
}

// FillBlankKey holds the expected answers of a fill-in-the-blank question.
// NormalizedAnswer is precomputed (trimmed, lowercased) when the question is
// created so grading never re-derives it.
type FillBlankKey struct {
	Blanks []BlankKey `json:"blanks" validate:"min=1"`
}

type BlankKey struct {
	ID               string `json:"id"`
	CorrectAnswer    string `json:"correct_answer" validate:"required"`
	NormalizedAnswer string `json:"normalized_answer"`
}
