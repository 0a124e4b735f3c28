package validator

import (
	"testing"

	"github.com/eduforge/exam-engine/internal/models"
)

func intPtr(i int) *int { return &i }

func TestValidateStatusTransition(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name          string
		current       models.ExamStatus
		next          models.ExamStatus
		questionCount int
		wantValid     bool
	}{
		{"draft publishes", models.ExamDraft, models.ExamActive, 3, true},
		{"active deactivates", models.ExamActive, models.ExamInactive, 3, true},
		{"inactive reactivates", models.ExamInactive, models.ExamActive, 3, true},
		{"draft cannot deactivate", models.ExamDraft, models.ExamInactive, 3, false},
		{"active cannot go back to draft", models.ExamActive, models.ExamDraft, 3, false},
		{"empty exam cannot publish", models.ExamDraft, models.ExamActive, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateStatusTransition(tt.current, tt.next, tt.questionCount)
			if errs.HasErrors() == tt.wantValid {
				t.Errorf("transition %s -> %s with %d questions: errors = %v, want valid %v",
					tt.current, tt.next, tt.questionCount, errs, tt.wantValid)
			}
		})
	}
}

func TestValidateAttemptStart(t *testing.T) {
	bv := NewBusinessValidator()

	if errs := bv.ValidateAttemptStart(models.ExamActive, 60); errs.HasErrors() {
		t.Errorf("active exam with duration should start: %v", errs)
	}
	if errs := bv.ValidateAttemptStart(models.ExamDraft, 60); !errs.HasErrors() {
		t.Error("draft exam must not start")
	}
	if errs := bv.ValidateAttemptStart(models.ExamActive, 0); !errs.HasErrors() {
		t.Error("zero duration must not start")
	}
}

func TestValidateDeletePermission(t *testing.T) {
	bv := NewBusinessValidator()

	if errs := bv.ValidateDeletePermission(false, models.ExamDraft); errs.HasErrors() {
		t.Errorf("draft without attempts should delete: %v", errs)
	}
	if errs := bv.ValidateDeletePermission(true, models.ExamDraft); !errs.HasErrors() {
		t.Error("exam with attempts must not delete")
	}
	if errs := bv.ValidateDeletePermission(false, models.ExamActive); !errs.HasErrors() {
		t.Error("active exam must not delete")
	}
}

func TestValidateAnswerKey(t *testing.T) {
	bv := NewBusinessValidator()

	t.Run("multiple choice", func(t *testing.T) {
		valid := &models.MultipleChoiceKey{Options: []models.ChoiceOption{
			{ID: "a", Text: "four", IsCorrect: true},
			{ID: "b", Text: "five"},
		}}
		if errs := bv.ValidateAnswerKey(models.MultipleChoice, valid); errs.HasErrors() {
			t.Errorf("valid key rejected: %v", errs)
		}

		oneOption := &models.MultipleChoiceKey{Options: []models.ChoiceOption{
			{ID: "a", Text: "four", IsCorrect: true},
		}}
		if errs := bv.ValidateAnswerKey(models.MultipleChoice, oneOption); !errs.HasErrors() {
			t.Error("single option key must be rejected")
		}

		noCorrect := &models.MultipleChoiceKey{Options: []models.ChoiceOption{
			{ID: "a", Text: "four"},
			{ID: "b", Text: "five"},
		}}
		if errs := bv.ValidateAnswerKey(models.MultipleChoice, noCorrect); !errs.HasErrors() {
			t.Error("key without a correct option must be rejected")
		}

		twoCorrect := &models.MultipleChoiceKey{Options: []models.ChoiceOption{
			{ID: "a", Text: "four", IsCorrect: true},
			{ID: "b", Text: "five", IsCorrect: true},
		}}
		if errs := bv.ValidateAnswerKey(models.MultipleChoice, twoCorrect); !errs.HasErrors() {
			t.Error("key with two correct options must be rejected")
		}

		if errs := bv.ValidateAnswerKey(models.MultipleChoice, nil); !errs.HasErrors() {
			t.Error("nil key must be rejected")
		}
	})

	t.Run("fill in the blank", func(t *testing.T) {
		valid := &models.FillBlankKey{Blanks: []models.BlankKey{
			{ID: "1", CorrectAnswer: "Paris"},
		}}
		if errs := bv.ValidateAnswerKey(models.FillBlank, valid); errs.HasErrors() {
			t.Errorf("valid key rejected: %v", errs)
		}

		empty := &models.FillBlankKey{}
		if errs := bv.ValidateAnswerKey(models.FillBlank, empty); !errs.HasErrors() {
			t.Error("key without blanks must be rejected")
		}

		blankAnswer := &models.FillBlankKey{Blanks: []models.BlankKey{
			{ID: "1", CorrectAnswer: "   "},
		}}
		if errs := bv.ValidateAnswerKey(models.FillBlank, blankAnswer); !errs.HasErrors() {
			t.Error("whitespace answer must be rejected")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if errs := bv.ValidateAnswerKey(models.QuestionType("essay"), nil); !errs.HasErrors() {
			t.Error("unsupported question type must be rejected")
		}
	})
}

func TestValidateMatrixCreate(t *testing.T) {
	bv := NewBusinessValidator()

	domain := "geometry"
	easy := models.DifficultyEasy

	t.Run("valid recipe", func(t *testing.T) {
		req := &MatrixCreateRequest{
			Name: "midterm",
			Items: []MatrixItemRequest{
				{BankID: 1, Domain: &domain, QuestionCount: 5},
				{BankID: 1, Difficulty: &easy, QuestionCount: 3},
			},
		}
		if errs := bv.ValidateMatrixCreate(req); errs.HasErrors() {
			t.Errorf("valid recipe rejected: %v", errs)
		}
	})

	t.Run("duplicate slices are rejected", func(t *testing.T) {
		req := &MatrixCreateRequest{
			Name: "midterm",
			Items: []MatrixItemRequest{
				{BankID: 1, Domain: &domain, QuestionCount: 5},
				{BankID: 1, Domain: &domain, QuestionCount: 3},
			},
		}
		if errs := bv.ValidateMatrixCreate(req); !errs.HasErrors() {
			t.Error("duplicate bank/domain/difficulty must be rejected")
		}
	})

	t.Run("points outside the allowed range are rejected", func(t *testing.T) {
		req := &MatrixCreateRequest{
			Name: "midterm",
			Items: []MatrixItemRequest{
				{BankID: 1, QuestionCount: 5, PointsPerQuestion: intPtr(500)},
			},
		}
		if errs := bv.ValidateMatrixCreate(req); !errs.HasErrors() {
			t.Error("points_per_question above 100 must be rejected")
		}
	})

	t.Run("empty recipe is rejected", func(t *testing.T) {
		req := &MatrixCreateRequest{Name: "midterm"}
		if errs := bv.ValidateMatrixCreate(req); !errs.HasErrors() {
			t.Error("recipe without items must be rejected")
		}
	})
}
