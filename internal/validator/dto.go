package validator

import (
	"github.com/eduforge/exam-engine/internal/models"
)

// QuestionBankCreateRequest represents the request structure for creating question banks
type QuestionBankCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	GradeLevel  *string `json:"grade_level" validate:"omitempty,max=50"`
}

// QuestionBankUpdateRequest represents the request structure for updating question banks
type QuestionBankUpdateRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description" validate:"omitempty,max=1000"`
	GradeLevel  *string            `json:"grade_level" validate:"omitempty,max=50"`
	Status      *models.BankStatus `json:"status" validate:"omitempty,oneof=draft active archived"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	BankID     uint                   `json:"bank_id" validate:"required"`
	Type       models.QuestionType    `json:"type" validate:"required,question_type"`
	Text       string                 `json:"text" validate:"required,min=1,max=2000"`
	AnswerKey  interface{}            `json:"answer_key" validate:"required"`
	Domain     string                 `json:"domain" validate:"omitempty,max=100"`
	Difficulty models.DifficultyLevel `json:"difficulty" validate:"required,difficulty_level"`
}

// QuestionUpdateRequest represents the request structure for updating questions
type QuestionUpdateRequest struct {
	Text       *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	AnswerKey  interface{}             `json:"answer_key"`
	Domain     *string                 `json:"domain" validate:"omitempty,max=100"`
	Difficulty *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	IsActive   *bool                   `json:"is_active"`
}

// MatrixItemRequest represents one slice of a matrix recipe
type MatrixItemRequest struct {
	BankID            uint                    `json:"bank_id" validate:"required"`
	Domain            *string                 `json:"domain" validate:"omitempty,max=100"`
	Difficulty        *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	QuestionCount     int                     `json:"question_count" validate:"required,min=1"`
	PointsPerQuestion *int                    `json:"points_per_question" validate:"omitempty,points_range"`
}

// MatrixCreateRequest represents the request structure for creating exam matrices
type MatrixCreateRequest struct {
	Name           string              `json:"name" validate:"required,min=1,max=200"`
	TotalQuestions *int                `json:"total_questions" validate:"omitempty,min=1"`
	TotalPoints    *int                `json:"total_points" validate:"omitempty,min=1"`
	Items          []MatrixItemRequest `json:"items" validate:"required,min=1,dive"`
}

// MatrixUpdateRequest represents the request structure for updating exam matrices
type MatrixUpdateRequest struct {
	Name           *string             `json:"name" validate:"omitempty,min=1,max=200"`
	TotalQuestions *int                `json:"total_questions" validate:"omitempty,min=1"`
	TotalPoints    *int                `json:"total_points" validate:"omitempty,min=1"`
	Items          []MatrixItemRequest `json:"items" validate:"omitempty,min=1,dive"`
}

// ExamAssembleRequest represents the request structure for assembling an
// exam from a matrix
type ExamAssembleRequest struct {
	MatrixID       uint    `json:"matrix_id" validate:"required"`
	Title          string  `json:"title" validate:"required,min=1,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=1000"`
	Duration       int     `json:"duration" validate:"required,exam_duration"`
	AccessPassword *string `json:"access_password" validate:"omitempty,min=4,max=100"`

	// Requested total points. Required when any matrix item leaves
	// points_per_question unset, ignored otherwise.
	TotalPoints *int `json:"total_points" validate:"omitempty,min=1"`
}

// ExamPreviewRequest represents the request structure for a dry-run
// assembly. A preview draws with the same sampling as a real assembly
// but persists nothing.
type ExamPreviewRequest struct {
	MatrixID    uint `json:"matrix_id" validate:"required"`
	TotalPoints *int `json:"total_points" validate:"omitempty,min=1"`
}

// ExamUpdateRequest represents the request structure for updating exams
type ExamUpdateRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=1000"`
	Duration       *int    `json:"duration" validate:"omitempty,exam_duration"`
	AccessPassword *string `json:"access_password" validate:"omitempty,min=4,max=100"`
}
