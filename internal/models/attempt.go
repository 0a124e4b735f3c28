package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	// AttemptSubmitted is the transient claim state between a successful
	// submit and the grade landing. Rows at rest are in_progress, graded
	// or expired.
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptGraded    AttemptStatus = "graded"
	AttemptExpired   AttemptStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptGraded || s == AttemptExpired
}

type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;index"`
	StudentID string        `json:"student_id" gorm:"not null;index;size:255"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing. DeadlineAt is fixed at start and never moves.
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	DeadlineAt  time.Time  `json:"deadline_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	// Scoring, populated when the attempt reaches a terminal state.
	EarnedPoints    *int     `json:"earned_points"`
	ScorePercentage *float64 `json:"score_percentage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam            `json:"-" gorm:"foreignKey:ExamID"`
	Answers []StudentAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

// StudentAnswer is the saved answer of one attempt for one question. The
// (attempt_id, question_id) pair is unique, saves overwrite in place.
type StudentAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	// Answer content, schema depends on question type
	Answer datatypes.JSON `json:"answer" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// ===== ANSWER PAYLOAD SCHEMAS =====

// AnswerPayload is the JSONB shape of StudentAnswer.Answer. SelectedOption
// is used for multiple choice, Blanks for fill-in-the-blank (one entry per
// blank, in key order).
type AnswerPayload struct {
	SelectedOption string   `json:"selected_option,omitempty"`
	Blanks         []string `json:"blanks,omitempty"`
}
