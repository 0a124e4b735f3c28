package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/events"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

func newTestExamService(repo repositories.Repository, publisher events.EventPublisher) ExamService {
	return NewExamService(repo, nil, slog.Default(), validator.New(), publisher)
}

func strPtr(s string) *string { return &s }

func TestExamAssemble(t *testing.T) {
	ctx := context.Background()

	matrixFixture := func(repo *mockRepository) {
		repo.matrix.GetByIDWithItemsFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
			return &models.ExamMatrix{
				ID:        id,
				Name:      "midterm",
				CreatedBy: "teacher-1",
				Items: []models.ExamMatrixItem{
					{BankID: 1, QuestionCount: 2, Position: 0},
					{BankID: 2, QuestionCount: 3, Position: 1},
				},
			}, nil
		}
	}

	t.Run("draws, assigns points and persists", func(t *testing.T) {
		repo := newMockRepository()
		matrixFixture(repo)

		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			if criteria.BankID == 1 {
				return []uint{1, 2, 3}, nil
			}
			return []uint{11, 12, 13, 14}, nil
		}

		var created *models.Exam
		repo.exam.CreateFn = func(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
			exam.ID = 42
			created = exam
			return nil
		}

		publisher := events.NewMockEventPublisher()
		req := &AssembleExamRequest{
			MatrixID:    7,
			Title:       "algebra midterm",
			Duration:    60,
			TotalPoints: intPtr(20),
		}

		response, err := newTestExamService(repo, publisher).Assemble(ctx, req, "teacher-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created == nil {
			t.Fatal("exam was not persisted")
		}
		if created.Status != models.ExamDraft {
			t.Errorf("status = %s, want Draft", created.Status)
		}
		if created.MatrixID == nil || *created.MatrixID != 7 {
			t.Errorf("matrix_id = %v, want 7", created.MatrixID)
		}
		if len(created.Questions) != 5 {
			t.Fatalf("got %d questions, want 5", len(created.Questions))
		}

		sum := 0
		for i, q := range created.Questions {
			if q.Position != i {
				t.Errorf("question %d position = %d", i, q.Position)
			}
			sum += q.Points
		}
		if sum != 20 || created.TotalPoints != 20 {
			t.Errorf("points sum/total = %d/%d, want 20/20", sum, created.TotalPoints)
		}
		if response.ID != 42 {
			t.Errorf("response id = %d, want 42", response.ID)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Topic != events.TopicExamAssembled {
			t.Errorf("published events = %+v, want one exam.assembled", published)
		}
	})

	t.Run("insufficient supply aborts the assembly", func(t *testing.T) {
		repo := newMockRepository()
		matrixFixture(repo)
		repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
			return []uint{1}, nil
		}
		repo.exam.CreateFn = func(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
			t.Error("exam must not be persisted on a failed draw")
			return nil
		}

		req := &AssembleExamRequest{MatrixID: 7, Title: "algebra midterm", Duration: 60, TotalPoints: intPtr(20)}
		_, err := newTestExamService(repo, nil).Assemble(ctx, req, "teacher-1")
		if !errors.Is(err, ErrInsufficientSupply) {
			t.Errorf("got %v, want ErrInsufficientSupply", err)
		}
	})

	t.Run("foreign matrix is forbidden", func(t *testing.T) {
		repo := newMockRepository()
		matrixFixture(repo)

		req := &AssembleExamRequest{MatrixID: 7, Title: "algebra midterm", Duration: 60, TotalPoints: intPtr(20)}
		_, err := newTestExamService(repo, nil).Assemble(ctx, req, "teacher-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("got %v, want PermissionError", err)
		}
	})
}

func TestExamPreview(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepository()
	repo.matrix.GetByIDWithItemsFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
		return &models.ExamMatrix{
			ID:        id,
			Name:      "midterm",
			CreatedBy: "teacher-1",
			Items: []models.ExamMatrixItem{
				{BankID: 1, QuestionCount: 3, Position: 0},
			},
		}, nil
	}
	repo.question.GetEligibleIDsFn = func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
		return []uint{1, 2, 3, 4}, nil
	}
	repo.question.GetByIDsFn = func(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
		questions := make([]*models.Question, len(ids))
		for i, id := range ids {
			questions[i] = &models.Question{ID: id, Type: models.MultipleChoice, Text: "q", Difficulty: models.DifficultyEasy}
		}
		return questions, nil
	}
	repo.exam.CreateFn = func(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
		t.Error("preview must not persist an exam")
		return nil
	}

	req := &PreviewExamRequest{MatrixID: 7, TotalPoints: intPtr(9)}
	preview, err := newTestExamService(repo, nil).Preview(ctx, req, "teacher-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.MatrixID != 7 || preview.TotalPoints != 9 {
		t.Errorf("matrix/total = %d/%d, want 7/9", preview.MatrixID, preview.TotalPoints)
	}
	if len(preview.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(preview.Questions))
	}

	sum := 0
	for i, q := range preview.Questions {
		sum += q.Points
		if q.Position != i {
			t.Errorf("question %d position = %d", i, q.Position)
		}
		if q.Text != "q" || q.Type != models.MultipleChoice {
			t.Errorf("question %d missing enrichment: %+v", i, q)
		}
	}
	if sum != 9 {
		t.Errorf("points sum to %d, want 9", sum)
	}
}

func TestExamCheckAccess(t *testing.T) {
	ctx := context.Background()

	examWithPassword := func(repo *mockRepository, status models.ExamStatus, password *string) {
		repo.exam.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
			return &models.Exam{ID: id, Status: status, Duration: 30, AccessPassword: password}, nil
		}
	}

	t.Run("open exam without password", func(t *testing.T) {
		repo := newMockRepository()
		examWithPassword(repo, models.ExamActive, nil)

		exam, err := newTestExamService(repo, nil).CheckAccess(ctx, 5, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exam.ID != 5 {
			t.Errorf("exam id = %d, want 5", exam.ID)
		}
	})

	t.Run("matching password grants access", func(t *testing.T) {
		repo := newMockRepository()
		examWithPassword(repo, models.ExamActive, strPtr("secret99"))

		if _, err := newTestExamService(repo, nil).CheckAccess(ctx, 5, strPtr("secret99")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		repo := newMockRepository()
		examWithPassword(repo, models.ExamActive, strPtr("secret99"))

		_, err := newTestExamService(repo, nil).CheckAccess(ctx, 5, strPtr("guess"))
		if !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("got %v, want ErrInvalidPassword", err)
		}
	})

	t.Run("missing password is rejected", func(t *testing.T) {
		repo := newMockRepository()
		examWithPassword(repo, models.ExamActive, strPtr("secret99"))

		_, err := newTestExamService(repo, nil).CheckAccess(ctx, 5, nil)
		if !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("got %v, want ErrInvalidPassword", err)
		}
	})

	t.Run("draft exam is closed", func(t *testing.T) {
		repo := newMockRepository()
		examWithPassword(repo, models.ExamDraft, nil)

		_, err := newTestExamService(repo, nil).CheckAccess(ctx, 5, nil)
		if !errors.Is(err, ErrExamNotActive) {
			t.Errorf("got %v, want ErrExamNotActive", err)
		}
	})
}

func TestExamStatusTransitions(t *testing.T) {
	ctx := context.Background()

	setup := func(status models.ExamStatus, questionCount int) *mockRepository {
		repo := newMockRepository()
		repo.exam.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
			return &models.Exam{ID: id, Status: status, Duration: 30, CreatedBy: "teacher-1"}, nil
		}
		repo.exam.GetQuestionsFn = func(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
			questions := make([]*models.ExamQuestion, questionCount)
			for i := range questions {
				questions[i] = &models.ExamQuestion{QuestionID: uint(i + 1), Points: 1, Position: i}
			}
			return questions, nil
		}
		return repo
	}

	t.Run("draft with questions publishes", func(t *testing.T) {
		repo := setup(models.ExamDraft, 3)
		var updated models.ExamStatus
		repo.exam.UpdateStatusFn = func(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
			updated = status
			return nil
		}

		if err := newTestExamService(repo, nil).Publish(ctx, 5, "teacher-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated != models.ExamActive {
			t.Errorf("updated status = %s, want Active", updated)
		}
	})

	t.Run("empty draft cannot publish", func(t *testing.T) {
		repo := setup(models.ExamDraft, 0)

		err := newTestExamService(repo, nil).Publish(ctx, 5, "teacher-1")
		var errs ValidationErrors
		if !errors.As(err, &errs) {
			t.Errorf("got %v, want validation error", err)
		}
	})

	t.Run("active exam deactivates", func(t *testing.T) {
		repo := setup(models.ExamActive, 3)
		var updated models.ExamStatus
		repo.exam.UpdateStatusFn = func(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
			updated = status
			return nil
		}

		if err := newTestExamService(repo, nil).Deactivate(ctx, 5, "teacher-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated != models.ExamInactive {
			t.Errorf("updated status = %s, want Inactive", updated)
		}
	})
}

func TestExamDelete_WithAttempts(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.exam.GetByIDFn = func(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
		return &models.Exam{ID: id, Status: models.ExamActive, Duration: 30, CreatedBy: "teacher-1"}, nil
	}
	repo.exam.CountAttemptsFn = func(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
		return 4, nil
	}

	err := newTestExamService(repo, nil).Delete(ctx, 5, "teacher-1")
	if !errors.Is(err, ErrExamHasAttempts) {
		t.Errorf("got %v, want ErrExamHasAttempts", err)
	}
}
