package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

type matrixService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewMatrixService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) MatrixService {
	return &matrixService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *matrixService) Create(ctx context.Context, req *CreateMatrixRequest, creatorID string) (*MatrixResponse, error) {
	s.logger.Info("Creating exam matrix", "creator_id", creatorID, "name", req.Name, "items", len(req.Items))

	// Validate request with business rules
	if errs := s.validator.Business().ValidateMatrixCreate(req); errs.HasErrors() {
		return nil, errs
	}

	// Every referenced bank must exist
	for i, item := range req.Items {
		if _, err := s.repo.QuestionBank().GetByID(ctx, nil, item.BankID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, NewValidationError(
					fmt.Sprintf("items[%d].bank_id", i),
					fmt.Sprintf("question bank %d does not exist", item.BankID),
					item.BankID)
			}
			return nil, fmt.Errorf("failed to check question bank: %w", err)
		}
	}

	matrix := &models.ExamMatrix{
		Name:           req.Name,
		TotalQuestions: req.TotalQuestions,
		TotalPoints:    req.TotalPoints,
		CreatedBy:      creatorID,
		Items:          buildMatrixItems(req.Items),
	}

	if err := s.repo.Matrix().Create(ctx, nil, matrix); err != nil {
		return nil, fmt.Errorf("failed to create matrix: %w", err)
	}

	s.logger.Info("Exam matrix created successfully", "matrix_id", matrix.ID)

	return s.buildMatrixResponse(ctx, matrix, creatorID), nil
}

func (s *matrixService) GetByID(ctx context.Context, id uint, userID string) (*MatrixResponse, error) {
	matrix, err := s.repo.Matrix().GetByIDWithItems(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMatrixNotFound
		}
		return nil, fmt.Errorf("failed to get matrix: %w", err)
	}

	return s.buildMatrixResponse(ctx, matrix, userID), nil
}

func (s *matrixService) Update(ctx context.Context, id uint, req *UpdateMatrixRequest, userID string) (*MatrixResponse, error) {
	s.logger.Info("Updating exam matrix", "matrix_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	matrix, err := s.repo.Matrix().GetByIDWithItems(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMatrixNotFound
		}
		return nil, fmt.Errorf("failed to get matrix: %w", err)
	}

	canEdit, err := s.canManageMatrix(ctx, matrix, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "matrix", "update", "not owner or insufficient permissions")
	}

	if req.Name != nil {
		matrix.Name = *req.Name
	}
	if req.TotalQuestions != nil {
		matrix.TotalQuestions = req.TotalQuestions
	}
	if req.TotalPoints != nil {
		matrix.TotalPoints = req.TotalPoints
	}

	if err := s.repo.Matrix().Update(ctx, nil, matrix); err != nil {
		return nil, fmt.Errorf("failed to update matrix: %w", err)
	}

	if req.Items != nil {
		if errs := s.validator.Business().ValidateMatrixCreate(&CreateMatrixRequest{
			Name:           matrix.Name,
			TotalQuestions: matrix.TotalQuestions,
			TotalPoints:    matrix.TotalPoints,
			Items:          req.Items,
		}); errs.HasErrors() {
			return nil, errs
		}

		if err := s.repo.Matrix().ReplaceItems(ctx, nil, id, buildMatrixItems(req.Items)); err != nil {
			return nil, fmt.Errorf("failed to replace matrix items: %w", err)
		}
	}

	s.logger.Info("Exam matrix updated successfully", "matrix_id", id)

	return s.GetByID(ctx, id, userID)
}

func (s *matrixService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting exam matrix", "matrix_id", id, "user_id", userID)

	matrix, err := s.repo.Matrix().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrMatrixNotFound
		}
		return fmt.Errorf("failed to get matrix: %w", err)
	}

	canDelete, err := s.canManageMatrix(ctx, matrix, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "matrix", "delete", "not owner or insufficient permissions")
	}

	// Assembled exams keep their question snapshot, but a referenced
	// matrix stays around for traceability
	_, examCount, err := s.repo.Exam().List(ctx, nil, repositories.ExamFilters{MatrixID: &id, Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to check exams for matrix: %w", err)
	}
	if examCount > 0 {
		return ErrMatrixInUse
	}

	if err := s.repo.Matrix().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete matrix: %w", err)
	}

	s.logger.Info("Exam matrix deleted successfully", "matrix_id", id)

	return nil
}

func (s *matrixService) List(ctx context.Context, filters repositories.MatrixFilters, userID string) (*MatrixListResponse, error) {
	matrices, total, err := s.repo.Matrix().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list matrices: %w", err)
	}

	responses := make([]*MatrixResponse, len(matrices))
	for i, matrix := range matrices {
		responses[i] = s.buildMatrixResponse(ctx, matrix, userID)
	}

	return &MatrixListResponse{Matrices: responses, Total: total}, nil
}

// ===== SUPPLY VALIDATION =====

// Validate checks whether the current question supply can satisfy every
// item of the matrix. Items are simulated in position order with
// cross-item deduplication, mirroring how assembly draws questions.
func (s *matrixService) Validate(ctx context.Context, id uint, userID string) (*MatrixValidationResult, error) {
	matrix, err := s.repo.Matrix().GetByIDWithItems(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMatrixNotFound
		}
		return nil, fmt.Errorf("failed to get matrix: %w", err)
	}

	result := &MatrixValidationResult{
		MatrixID: id,
		IsValid:  true,
		Findings: []MatrixFinding{},
	}

	claimed := make(map[uint]bool)
	totalRequested := 0

	for i, item := range matrix.Items {
		itemIndex := i
		totalRequested += item.QuestionCount

		criteria := repositories.SupplyCriteria{
			BankID:     item.BankID,
			Domain:     item.Domain,
			Difficulty: item.Difficulty,
			ExcludeIDs: claimedIDs(claimed),
		}

		eligible, err := s.repo.Question().GetEligibleIDs(ctx, nil, criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to get eligible questions for item %d: %w", i, err)
		}

		if len(eligible) < item.QuestionCount {
			result.IsValid = false
			result.Findings = append(result.Findings, MatrixFinding{
				Severity:  SeverityError,
				Code:      FindingInsufficientSupply,
				Message:   fmt.Sprintf("item %d requests %d questions but only %d are available", i, item.QuestionCount, len(eligible)),
				ItemIndex: &itemIndex,
				Requested: item.QuestionCount,
				Available: len(eligible),
			})
			continue
		}

		for _, qid := range eligible[:item.QuestionCount] {
			claimed[qid] = true
		}
	}

	// Advisory totals never block assembly
	if matrix.TotalQuestions != nil && totalRequested != *matrix.TotalQuestions {
		result.Findings = append(result.Findings, MatrixFinding{
			Severity:  SeverityWarning,
			Code:      FindingQuestionCountMismatch,
			Message:   fmt.Sprintf("items request %d questions but the matrix declares %d", totalRequested, *matrix.TotalQuestions),
			Requested: totalRequested,
			Available: *matrix.TotalQuestions,
		})
	}

	if matrix.TotalPoints != nil {
		if pointSum, allFixed := fixedPointSum(matrix.Items); allFixed && pointSum != *matrix.TotalPoints {
			result.Findings = append(result.Findings, MatrixFinding{
				Severity:  SeverityWarning,
				Code:      FindingTotalPointsMismatch,
				Message:   fmt.Sprintf("item points sum to %d but the matrix declares %d", pointSum, *matrix.TotalPoints),
				Requested: pointSum,
				Available: *matrix.TotalPoints,
			})
		}
	}

	return result, nil
}

// ===== HELPERS =====

func buildMatrixItems(reqs []validator.MatrixItemRequest) []models.ExamMatrixItem {
	items := make([]models.ExamMatrixItem, len(reqs))
	for i, req := range reqs {
		items[i] = models.ExamMatrixItem{
			BankID:            req.BankID,
			Domain:            req.Domain,
			Difficulty:        req.Difficulty,
			QuestionCount:     req.QuestionCount,
			PointsPerQuestion: req.PointsPerQuestion,
			Position:          i,
		}
	}
	return items
}

func claimedIDs(claimed map[uint]bool) []uint {
	if len(claimed) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(claimed))
	for id := range claimed {
		ids = append(ids, id)
	}
	return ids
}

// fixedPointSum sums item points when every item carries an explicit
// points_per_question
func fixedPointSum(items []models.ExamMatrixItem) (int, bool) {
	sum := 0
	for _, item := range items {
		if item.PointsPerQuestion == nil {
			return 0, false
		}
		sum += item.QuestionCount * *item.PointsPerQuestion
	}
	return sum, true
}

func (s *matrixService) buildMatrixResponse(ctx context.Context, matrix *models.ExamMatrix, userID string) *MatrixResponse {
	canManage, err := s.canManageMatrix(ctx, matrix, userID)
	if err != nil {
		canManage = matrix.CreatedBy == userID
	}

	return &MatrixResponse{
		ExamMatrix: matrix,
		CanEdit:    canManage,
		CanDelete:  canManage,
	}
}

func (s *matrixService) canManageMatrix(ctx context.Context, matrix *models.ExamMatrix, userID string) (bool, error) {
	if matrix.CreatedBy == userID {
		return true, nil
	}
	return isAdmin(ctx, s.repo, userID)
}
