package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

func newTestQuestionService(repo repositories.Repository) QuestionService {
	return NewQuestionService(repo, nil, slog.Default(), validator.New())
}

func ownedBank(repo *mockRepository, owner string) {
	repo.questionBank.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error) {
		return &models.QuestionBank{ID: id, Name: "algebra", Status: models.BankActive, CreatedBy: owner}, nil
	}
}

func TestQuestionCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("fill blank answers are normalized on create", func(t *testing.T) {
		repo := newMockRepository()
		ownedBank(repo, "teacher-1")

		var created *models.Question
		repo.question.CreateFn = func(ctx context.Context, tx *gorm.DB, question *models.Question) error {
			question.ID = 1
			created = question
			return nil
		}

		req := &CreateQuestionRequest{
			BankID:     1,
			Type:       models.FillBlank,
			Text:       "The capital of France is ___.",
			Difficulty: models.DifficultyEasy,
			AnswerKey: models.FillBlankKey{Blanks: []models.BlankKey{
				{ID: "b1", CorrectAnswer: "  Paris "},
			}},
		}

		if _, err := newTestQuestionService(repo).Create(ctx, req, "teacher-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created == nil {
			t.Fatal("question was not persisted")
		}

		var key models.FillBlankKey
		if err := json.Unmarshal(created.AnswerKey, &key); err != nil {
			t.Fatalf("stored key is not valid json: %v", err)
		}
		if key.Blanks[0].NormalizedAnswer != "paris" {
			t.Errorf("normalized answer = %q, want paris", key.Blanks[0].NormalizedAnswer)
		}
	})

	t.Run("multiple choice key without a correct option is rejected", func(t *testing.T) {
		repo := newMockRepository()
		ownedBank(repo, "teacher-1")

		req := &CreateQuestionRequest{
			BankID:     1,
			Type:       models.MultipleChoice,
			Text:       "2 + 2 = ?",
			Difficulty: models.DifficultyEasy,
			AnswerKey: models.MultipleChoiceKey{Options: []models.ChoiceOption{
				{ID: "a", Text: "three"},
				{ID: "b", Text: "four"},
			}},
		}

		_, err := newTestQuestionService(repo).Create(ctx, req, "teacher-1")
		var errs ValidationErrors
		if !errors.As(err, &errs) {
			t.Errorf("got %v, want validation error", err)
		}
	})

	t.Run("foreign bank is forbidden", func(t *testing.T) {
		repo := newMockRepository()
		ownedBank(repo, "teacher-1")

		req := &CreateQuestionRequest{
			BankID:     1,
			Type:       models.FillBlank,
			Text:       "The capital of France is ___.",
			Difficulty: models.DifficultyEasy,
			AnswerKey: models.FillBlankKey{Blanks: []models.BlankKey{
				{ID: "b1", CorrectAnswer: "Paris"},
			}},
		}

		_, err := newTestQuestionService(repo).Create(ctx, req, "teacher-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("got %v, want PermissionError", err)
		}
	})
}

func TestQuestionCountSupply(t *testing.T) {
	ctx := context.Background()

	t.Run("counts the requested slice", func(t *testing.T) {
		repo := newMockRepository()
		ownedBank(repo, "teacher-1")

		var seen repositories.SupplyCriteria
		repo.question.CountEligibleFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) (int64, error) {
			seen = criteria
			return 12, nil
		}

		domain := "geometry"
		easy := models.DifficultyEasy
		criteria := repositories.SupplyCriteria{BankID: 1, Domain: &domain, Difficulty: &easy}

		response, err := newTestQuestionService(repo).CountSupply(ctx, criteria)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if response.Count != 12 {
			t.Errorf("count = %d, want 12", response.Count)
		}
		if seen.BankID != 1 || seen.Domain == nil || *seen.Domain != "geometry" {
			t.Errorf("criteria not passed through: %+v", seen)
		}
	})

	t.Run("unknown bank", func(t *testing.T) {
		repo := newMockRepository()

		_, err := newTestQuestionService(repo).CountSupply(ctx, repositories.SupplyCriteria{BankID: 99})
		if !errors.Is(err, ErrBankNotFound) {
			t.Errorf("got %v, want ErrBankNotFound", err)
		}
	})
}
