package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/events"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) ExamService {
	if publisher == nil {
		publisher = events.NewMockEventPublisher()
	}
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== ASSEMBLY =====

// Assemble draws questions from the matrix's supply slices, assigns
// points and persists the exam with its question snapshot in a single
// transaction.
func (s *examService) Assemble(ctx context.Context, req *AssembleExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Assembling exam",
		"matrix_id", req.MatrixID,
		"creator_id", creatorID,
		"title", req.Title)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	matrix, err := s.repo.Matrix().GetByIDWithItems(ctx, nil, req.MatrixID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMatrixNotFound
		}
		return nil, fmt.Errorf("failed to get matrix: %w", err)
	}

	if len(matrix.Items) == 0 {
		return nil, NewValidationError("matrix_id", "matrix has no items", req.MatrixID)
	}

	canUse, err := s.canManageExamResources(ctx, matrix.CreatedBy, creatorID)
	if err != nil {
		return nil, err
	}
	if !canUse {
		return nil, NewPermissionError(creatorID, req.MatrixID, "matrix", "assemble", "not owner or insufficient permissions")
	}

	var exam *models.Exam
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		drawn, err := drawQuestions(ctx, txRepo, matrix.Items)
		if err != nil {
			return err
		}

		examQuestions, totalPoints, err := assignPoints(drawn, req.TotalPoints)
		if err != nil {
			return err
		}

		exam = &models.Exam{
			Title:          req.Title,
			Description:    req.Description,
			Status:         models.ExamDraft,
			Duration:       req.Duration,
			AccessPassword: req.AccessPassword,
			MatrixID:       &matrix.ID,
			TotalPoints:    totalPoints,
			CreatedBy:      creatorID,
			Questions:      examQuestions,
		}

		return txRepo.Exam().Create(ctx, nil, exam)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam assembled successfully",
		"exam_id", exam.ID,
		"matrix_id", matrix.ID,
		"question_count", len(exam.Questions),
		"total_points", exam.TotalPoints)

	event := events.NewEvent(events.TopicExamAssembled, map[string]interface{}{
		"exam_id":        exam.ID,
		"matrix_id":      matrix.ID,
		"question_count": len(exam.Questions),
		"total_points":   exam.TotalPoints,
		"created_by":     creatorID,
	})
	if err := s.publisher.Publish(ctx, events.TopicExamAssembled, event); err != nil {
		s.logger.Error("Failed to publish exam assembled event", "exam_id", exam.ID, "error", err)
	}

	return s.buildExamResponse(ctx, exam, creatorID), nil
}

// Preview performs a dry-run assembly: same matrix resolution, draw and
// point assignment as Assemble, but nothing is written. Each call draws
// fresh, a preview is representative rather than reproducible.
func (s *examService) Preview(ctx context.Context, req *PreviewExamRequest, userID string) (*ExamPreviewResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	matrix, err := s.repo.Matrix().GetByIDWithItems(ctx, nil, req.MatrixID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMatrixNotFound
		}
		return nil, fmt.Errorf("failed to get matrix: %w", err)
	}

	if len(matrix.Items) == 0 {
		return nil, NewValidationError("matrix_id", "matrix has no items", req.MatrixID)
	}

	canUse, err := s.canManageExamResources(ctx, matrix.CreatedBy, userID)
	if err != nil {
		return nil, err
	}
	if !canUse {
		return nil, NewPermissionError(userID, req.MatrixID, "matrix", "preview", "not owner or insufficient permissions")
	}

	drawn, err := drawQuestions(ctx, s.repo, matrix.Items)
	if err != nil {
		return nil, err
	}

	examQuestions, totalPoints, err := assignPoints(drawn, req.TotalPoints)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(examQuestions))
	for i, eq := range examQuestions {
		ids[i] = eq.QuestionID
	}
	questions, err := s.repo.Question().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load drawn questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	preview := &ExamPreviewResponse{
		MatrixID:    matrix.ID,
		TotalPoints: totalPoints,
		Questions:   make([]PreviewQuestion, len(examQuestions)),
	}
	for i, eq := range examQuestions {
		pq := PreviewQuestion{
			QuestionID: eq.QuestionID,
			Points:     eq.Points,
			Position:   eq.Position,
		}
		if q, ok := byID[eq.QuestionID]; ok {
			pq.Type = q.Type
			pq.Text = q.Text
			pq.Domain = q.Domain
			pq.Difficulty = q.Difficulty
		}
		preview.Questions[i] = pq
	}

	return preview, nil
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}

	canView, err := s.canManageExamResources(ctx, exam.CreatedBy, userID)
	if err != nil {
		return nil, err
	}
	if !canView {
		// The question snapshot includes answer keys
		return nil, NewPermissionError(userID, id, "exam", "read_questions", "not owner or insufficient permissions")
	}

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	s.logger.Info("Updating exam", "exam_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	canEdit, err := s.canManageExamResources(ctx, exam.CreatedBy, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "exam", "update", "not owner or insufficient permissions")
	}

	// Duration is baked into running attempt deadlines, changing it after
	// publication would not reach them
	if req.Duration != nil && exam.Status != models.ExamDraft {
		return nil, NewValidationError("duration", "duration can only change while the exam is a draft", *req.Duration)
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Duration != nil {
		exam.Duration = *req.Duration
	}
	if req.AccessPassword != nil {
		exam.AccessPassword = req.AccessPassword
	}

	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated successfully", "exam_id", id)

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting exam", "exam_id", id, "user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	canDelete, err := s.canManageExamResources(ctx, exam.CreatedBy, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "exam", "delete", "not owner or insufficient permissions")
	}

	attemptCount, err := s.repo.Exam().CountAttempts(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count exam attempts: %w", err)
	}

	if errs := s.validator.Business().ValidateDeletePermission(attemptCount > 0, exam.Status); errs.HasErrors() {
		if attemptCount > 0 {
			return ErrExamHasAttempts
		}
		return errs
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted successfully", "exam_id", id)

	return nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		responses[i] = s.buildExamResponse(ctx, exam, userID)
	}

	return &ExamListResponse{Exams: responses, Total: total}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	return s.transitionStatus(ctx, id, models.ExamActive, userID)
}

func (s *examService) Deactivate(ctx context.Context, id uint, userID string) error {
	return s.transitionStatus(ctx, id, models.ExamInactive, userID)
}

func (s *examService) transitionStatus(ctx context.Context, id uint, newStatus models.ExamStatus, userID string) error {
	s.logger.Info("Changing exam status", "exam_id", id, "new_status", newStatus, "user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	canEdit, err := s.canManageExamResources(ctx, exam.CreatedBy, userID)
	if err != nil {
		return err
	}
	if !canEdit {
		return NewPermissionError(userID, id, "exam", "change_status", "not owner or insufficient permissions")
	}

	questions, err := s.repo.Exam().GetQuestions(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to get exam questions: %w", err)
	}

	if errs := s.validator.Business().ValidateStatusTransition(exam.Status, newStatus, len(questions)); errs.HasErrors() {
		return errs
	}

	if err := s.repo.Exam().UpdateStatus(ctx, nil, id, newStatus); err != nil {
		return fmt.Errorf("failed to update exam status: %w", err)
	}

	s.logger.Info("Exam status changed successfully", "exam_id", id, "status", newStatus)

	return nil
}

// ===== ACCESS GATE =====

// CheckAccess verifies the exam is open for taking and the supplied
// password matches. The comparison is constant time.
func (s *examService) CheckAccess(ctx context.Context, examID uint, password *string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.Status != models.ExamActive {
		return nil, ErrExamNotActive
	}

	if exam.AccessPassword != nil {
		supplied := ""
		if password != nil {
			supplied = *password
		}
		if subtle.ConstantTimeCompare([]byte(*exam.AccessPassword), []byte(supplied)) != 1 {
			return nil, ErrInvalidPassword
		}
	}

	return exam, nil
}

// ===== HELPERS =====

func (s *examService) buildExamResponse(ctx context.Context, exam *models.Exam, userID string) *ExamResponse {
	canManage, err := s.canManageExamResources(ctx, exam.CreatedBy, userID)
	if err != nil {
		canManage = exam.CreatedBy == userID
	}

	return &ExamResponse{
		Exam:      exam,
		CanEdit:   canManage,
		CanDelete: canManage,
	}
}

func (s *examService) canManageExamResources(ctx context.Context, ownerID, userID string) (bool, error) {
	if ownerID == userID {
		return true, nil
	}
	return isAdmin(ctx, s.repo, userID)
}
