package models

import (
	"time"

	"gorm.io/gorm"
)

// ExamMatrix is a reusable recipe for assembling exams. Each item names a
// question bank plus optional domain/difficulty filters and how many
// questions to draw from that slice of the supply.
type ExamMatrix struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`

	// Advisory totals. A mismatch with the items is reported by validation
	// but never blocks assembly.
	TotalQuestions *int `json:"total_questions"`
	TotalPoints    *int `json:"total_points"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Items []ExamMatrixItem `json:"items" gorm:"foreignKey:MatrixID;constraint:OnDelete:CASCADE"`
}

type ExamMatrixItem struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	MatrixID uint `json:"matrix_id" gorm:"not null;index"`
	BankID   uint `json:"bank_id" gorm:"not null;index"`

	// Optional narrowing filters. Nil means "any".
	Domain     *string          `json:"domain" gorm:"size:100"`
	Difficulty *DifficultyLevel `json:"difficulty" gorm:"size:20"`

	QuestionCount int `json:"question_count" gorm:"not null" validate:"required,min=1"`

	// Points per drawn question. Nil means points come from the even
	// distribution of the requested exam total.
	PointsPerQuestion *int `json:"points_per_question" validate:"omitempty,min=1"`

	// Position defines the item order inside the assembled exam.
	Position int `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamMatrix) TableName() string {
	return "exam_matrices"
}

func (ExamMatrixItem) TableName() string {
	return "exam_matrix_items"
}
