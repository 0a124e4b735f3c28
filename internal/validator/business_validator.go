package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eduforge/exam-engine/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	registerCustomRules(validate)

	return &BusinessValidator{validate: validate}
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateMatrixCreate validates matrix creation business rules
func (bv *BusinessValidator) ValidateMatrixCreate(req *MatrixCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)

	// Item-level business validations
	errors = append(errors, bv.validateMatrixItems(req.Items)...)

	return errors
}

// ValidateStatusTransition validates exam status transitions. A Draft exam
// can be published, an Active exam deactivated and an Inactive one
// reactivated.
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.ExamStatus, questionCount int) ValidationErrors {
	var errors ValidationErrors

	allowedTransitions := map[models.ExamStatus][]models.ExamStatus{
		models.ExamDraft:    {models.ExamActive},
		models.ExamActive:   {models.ExamInactive},
		models.ExamInactive: {models.ExamActive},
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	// Publishing requires at least one question
	if newStatus == models.ExamActive && questionCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "exam must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateAttemptStart validates attempt start conditions
func (bv *BusinessValidator) ValidateAttemptStart(examStatus models.ExamStatus, duration int) ValidationErrors {
	var errors ValidationErrors

	// Exam must be active
	if examStatus != models.ExamActive {
		errors = append(errors, ValidationError{
			Field:   "exam_status",
			Message: "exam is not active",
			Value:   examStatus,
			Rule:    "business_logic",
		})
	}

	if duration <= 0 {
		errors = append(errors, ValidationError{
			Field:   "duration",
			Message: "exam has no usable duration",
			Value:   duration,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateDeletePermission validates if an exam can be deleted
func (bv *BusinessValidator) ValidateDeletePermission(hasAttempts bool, status models.ExamStatus) ValidationErrors {
	var errors ValidationErrors

	// Cannot delete if has attempts
	if hasAttempts {
		errors = append(errors, ValidationError{
			Field:   "attempts",
			Message: "cannot delete exam with existing attempts",
			Value:   hasAttempts,
			Rule:    "business_logic",
		})
	}

	// Cannot delete active exams
	if status == models.ExamActive {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "cannot delete active exam",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateAnswerKey validates the answer key structure for a question type
func (bv *BusinessValidator) ValidateAnswerKey(questionType models.QuestionType, key interface{}) ValidationErrors {
	var errors ValidationErrors

	switch questionType {
	case models.MultipleChoice:
		mcKey, ok := key.(*models.MultipleChoiceKey)
		if !ok || mcKey == nil {
			errors = append(errors, ValidationError{
				Field:   "answer_key",
				Message: "multiple choice key is malformed",
				Rule:    "business_logic",
			})
			return errors
		}
		if len(mcKey.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   "answer_key.options",
				Message: "multiple choice questions need at least two options",
				Value:   len(mcKey.Options),
				Rule:    "business_logic",
			})
		}
		correct := 0
		for _, opt := range mcKey.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			errors = append(errors, ValidationError{
				Field:   "answer_key.options",
				Message: "exactly one option must be marked correct",
				Value:   correct,
				Rule:    "business_logic",
			})
		}

	case models.FillBlank:
		fbKey, ok := key.(*models.FillBlankKey)
		if !ok || fbKey == nil {
			errors = append(errors, ValidationError{
				Field:   "answer_key",
				Message: "fill in the blank key is malformed",
				Rule:    "business_logic",
			})
			return errors
		}
		if len(fbKey.Blanks) == 0 {
			errors = append(errors, ValidationError{
				Field:   "answer_key.blanks",
				Message: "fill in the blank questions need at least one blank",
				Rule:    "business_logic",
			})
		}
		for i, blank := range fbKey.Blanks {
			if strings.TrimSpace(blank.CorrectAnswer) == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("answer_key.blanks[%d]", i),
					Message: "blank answer cannot be empty",
					Rule:    "business_logic",
				})
			}
		}

	default:
		errors = append(errors, ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported question type %s", questionType),
			Value:   questionType,
			Rule:    "business_logic",
		})
	}

	return errors
}

// validateMatrixItems validates business rules across matrix items
func (bv *BusinessValidator) validateMatrixItems(items []MatrixItemRequest) ValidationErrors {
	var errors ValidationErrors

	// Duplicate (bank, domain, difficulty) slices are almost always a
	// mistake in the recipe
	seen := make(map[string]bool)
	for i, item := range items {
		key := fmt.Sprintf("%d|%s|%s", item.BankID, derefString(item.Domain), derefDifficulty(item.Difficulty))
		if seen[key] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: "duplicate bank/domain/difficulty combination",
				Value:   item.BankID,
				Rule:    "business_logic",
			})
		}
		seen[key] = true
	}

	return errors
}

// registerCustomRules registers the custom validation tags shared between
// the struct validator and the business validator
func registerCustomRules(validate *validator.Validate) {
	// Exam duration validation (5-300 minutes)
	validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Points range validation
	validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	// question type validation
	validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := fl.Field().String()
		validTypes := []models.QuestionType{models.MultipleChoice, models.FillBlank}
		for _, vt := range validTypes {
			if models.QuestionType(qType) == vt {
				return true
			}
		}
		return false
	})

	// difficulty level validation
	validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		level := fl.Field().String()
		validLevels := []models.DifficultyLevel{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
		for _, vl := range validLevels {
			if models.DifficultyLevel(level) == vl {
				return true
			}
		}
		return false
	})

	// future date validation for optional deadline fields
	validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		if t, ok := fl.Field().Interface().(time.Time); ok {
			return t.After(time.Now())
		}
		return true
	})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefDifficulty(d *models.DifficultyLevel) string {
	if d == nil {
		return ""
	}
	return string(*d)
}
