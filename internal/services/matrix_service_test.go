package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

func newTestMatrixService(repo repositories.Repository) MatrixService {
	return NewMatrixService(repo, nil, slog.Default(), validator.New())
}

func TestMatrixValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("sufficient supply is valid", func(t *testing.T) {
		repo := newMockRepository()
		repo.matrix.GetByIDWithItemsFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
			return &models.ExamMatrix{
				ID:        id,
				Name:      "midterm",
				CreatedBy: "teacher-1",
				Items: []models.ExamMatrixItem{
					{BankID: 1, QuestionCount: 5, Position: 0},
					{BankID: 1, QuestionCount: 3, Position: 1},
				},
			}, nil
		}
		supply := []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			excluded := make(map[uint]bool, len(criteria.ExcludeIDs))
			for _, id := range criteria.ExcludeIDs {
				excluded[id] = true
			}
			var eligible []uint
			for _, id := range supply {
				if !excluded[id] {
					eligible = append(eligible, id)
				}
			}
			return eligible, nil
		}

		result, err := newTestMatrixService(repo).Validate(ctx, 7, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsValid {
			t.Errorf("matrix should be valid, findings: %+v", result.Findings)
		}
		if len(result.Findings) != 0 {
			t.Errorf("got %d findings, want 0", len(result.Findings))
		}
	})

	t.Run("shortfall produces an error finding", func(t *testing.T) {
		repo := newMockRepository()
		repo.matrix.GetByIDWithItemsFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
			return &models.ExamMatrix{
				ID:        id,
				Name:      "midterm",
				CreatedBy: "teacher-1",
				Items: []models.ExamMatrixItem{
					{BankID: 1, QuestionCount: 4, Position: 0},
					{BankID: 1, QuestionCount: 4, Position: 1},
				},
			}, nil
		}
		// Six questions total: the first item claims four, the second
		// finds only two left
		supply := []uint{1, 2, 3, 4, 5, 6}
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			excluded := make(map[uint]bool, len(criteria.ExcludeIDs))
			for _, id := range criteria.ExcludeIDs {
				excluded[id] = true
			}
			var eligible []uint
			for _, id := range supply {
				if !excluded[id] {
					eligible = append(eligible, id)
				}
			}
			return eligible, nil
		}

		result, err := newTestMatrixService(repo).Validate(ctx, 7, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsValid {
			t.Error("matrix should be invalid")
		}
		if len(result.Findings) != 1 {
			t.Fatalf("got %d findings, want 1", len(result.Findings))
		}

		finding := result.Findings[0]
		if finding.Severity != SeverityError || finding.Code != FindingInsufficientSupply {
			t.Errorf("finding = %+v, want insufficient_supply error", finding)
		}
		if finding.ItemIndex == nil || *finding.ItemIndex != 1 {
			t.Errorf("item index = %v, want 1", finding.ItemIndex)
		}
		if finding.Requested != 4 || finding.Available != 2 {
			t.Errorf("requested/available = %d/%d, want 4/2", finding.Requested, finding.Available)
		}
	})

	t.Run("advisory mismatches warn without invalidating", func(t *testing.T) {
		repo := newMockRepository()
		repo.matrix.GetByIDWithItemsFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
			return &models.ExamMatrix{
				ID:             id,
				Name:           "midterm",
				CreatedBy:      "teacher-1",
				TotalQuestions: intPtr(10),
				TotalPoints:    intPtr(50),
				Items: []models.ExamMatrixItem{
					{BankID: 1, QuestionCount: 4, PointsPerQuestion: intPtr(3), Position: 0},
				},
			}, nil
		}
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			return []uint{1, 2, 3, 4, 5}, nil
		}

		result, err := newTestMatrixService(repo).Validate(ctx, 7, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsValid {
			t.Error("advisory mismatches must not invalidate the matrix")
		}
		if len(result.Findings) != 2 {
			t.Fatalf("got %d findings, want 2: %+v", len(result.Findings), result.Findings)
		}
		for _, finding := range result.Findings {
			if finding.Severity != SeverityWarning {
				t.Errorf("finding %s severity = %s, want warning", finding.Code, finding.Severity)
			}
		}
	})

	t.Run("unknown matrix", func(t *testing.T) {
		repo := newMockRepository()

		_, err := newTestMatrixService(repo).Validate(ctx, 99, "teacher-1")
		if !errors.Is(err, ErrMatrixNotFound) {
			t.Errorf("got %v, want ErrMatrixNotFound", err)
		}
	})
}

func TestMatrixDelete_InUse(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.matrix.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
		return &models.ExamMatrix{ID: id, Name: "midterm", CreatedBy: "teacher-1"}, nil
	}
	repo.exam.ListFn = func(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
		return []*models.Exam{{ID: 1}}, 1, nil
	}

	err := newTestMatrixService(repo).Delete(ctx, 7, "teacher-1")
	if !errors.Is(err, ErrMatrixInUse) {
		t.Errorf("got %v, want ErrMatrixInUse", err)
	}
}

func TestMatrixDelete_NotOwner(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.matrix.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
		return &models.ExamMatrix{ID: id, Name: "midterm", CreatedBy: "teacher-1"}, nil
	}
	repo.user.GetByIDFn = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Role: models.RoleTeacher}, nil
	}

	err := newTestMatrixService(repo).Delete(ctx, 7, "teacher-2")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("got %v, want PermissionError", err)
	}
}
