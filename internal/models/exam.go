package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamDraft    ExamStatus = "Draft"
	ExamActive   ExamStatus = "Active"
	ExamInactive ExamStatus = "Inactive"
)

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Status      ExamStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Inactive"`

	// Duration in minutes. An attempt deadline is startedAt + Duration.
	Duration int `json:"duration" gorm:"not null" validate:"required,min=5,max=300"`

	// Optional access password. Nil means no password gate.
	AccessPassword *string `json:"-" gorm:"size:255"`

	// Matrix the exam was assembled from, if any.
	MatrixID *uint `json:"matrix_id" gorm:"index"`

	// Sum of the assigned points of all exam questions.
	TotalPoints int `json:"total_points" gorm:"not null;default:0"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
}

// ExamQuestion pins a drawn question to an exam with its assigned points and
// delivery position. The invariant is that the points of an exam's questions
// always sum to Exam.TotalPoints.
type ExamQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ExamID     uint `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_exam_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_exam_question"`

	Points   int `json:"points" gorm:"not null" validate:"required,min=1"`
	Position int `json:"position" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

func (Exam) TableName() string {
	return "exams"
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
