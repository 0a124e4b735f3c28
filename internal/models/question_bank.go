package models

import (
	"time"

	"gorm.io/gorm"
)

type BankStatus string

const (
	BankDraft    BankStatus = "draft"
	BankActive   BankStatus = "active"
	BankArchived BankStatus = "archived"
)

type QuestionBank struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	GradeLevel  *string    `json:"grade_level" gorm:"size:50"`
	Status      BankStatus `json:"status" gorm:"default:draft;index"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:BankID"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
}

func (QuestionBank) TableName() string {
	return "question_banks"
}
