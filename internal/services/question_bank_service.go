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

type questionBankService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionBankService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QuestionBankService {
	return &questionBankService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionBankService) Create(ctx context.Context, req *CreateQuestionBankRequest, creatorID string) (*QuestionBankResponse, error) {
	s.logger.Info("Creating question bank", "creator_id", creatorID, "name", req.Name)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bank := &models.QuestionBank{
		Name:        req.Name,
		Description: req.Description,
		GradeLevel:  req.GradeLevel,
		Status:      models.BankDraft,
		CreatedBy:   creatorID,
	}

	if err := s.repo.QuestionBank().Create(ctx, nil, bank); err != nil {
		return nil, fmt.Errorf("failed to create question bank: %w", err)
	}

	s.logger.Info("Question bank created successfully", "bank_id", bank.ID)

	return s.buildBankResponse(ctx, bank, creatorID), nil
}

func (s *questionBankService) GetByID(ctx context.Context, id uint, userID string) (*QuestionBankResponse, error) {
	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get question bank: %w", err)
	}

	count, err := s.repo.QuestionBank().CountQuestions(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count bank questions: %w", err)
	}
	bank.QuestionCount = int(count)

	return s.buildBankResponse(ctx, bank, userID), nil
}

func (s *questionBankService) Update(ctx context.Context, id uint, req *UpdateQuestionBankRequest, userID string) (*QuestionBankResponse, error) {
	s.logger.Info("Updating question bank", "bank_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get question bank: %w", err)
	}

	canEdit, err := s.canManageBank(ctx, bank, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "question_bank", "update", "not owner or insufficient permissions")
	}

	if req.Status != nil && *req.Status != bank.Status {
		if !isValidBankTransition(bank.Status, *req.Status) {
			return nil, NewValidationError("status",
				fmt.Sprintf("cannot transition bank from %s to %s", bank.Status, *req.Status),
				*req.Status)
		}
		bank.Status = *req.Status
	}

	if req.Name != nil {
		bank.Name = *req.Name
	}
	if req.Description != nil {
		bank.Description = req.Description
	}
	if req.GradeLevel != nil {
		bank.GradeLevel = req.GradeLevel
	}

	if err := s.repo.QuestionBank().Update(ctx, nil, bank); err != nil {
		return nil, fmt.Errorf("failed to update question bank: %w", err)
	}

	s.logger.Info("Question bank updated successfully", "bank_id", id)

	return s.buildBankResponse(ctx, bank, userID), nil
}

func (s *questionBankService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting question bank", "bank_id", id, "user_id", userID)

	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrBankNotFound
		}
		return fmt.Errorf("failed to get question bank: %w", err)
	}

	canDelete, err := s.canManageBank(ctx, bank, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "question_bank", "delete", "not owner or insufficient permissions")
	}

	count, err := s.repo.QuestionBank().CountQuestions(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count bank questions: %w", err)
	}
	if count > 0 {
		return ErrBankHasQuestions
	}

	if err := s.repo.QuestionBank().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete question bank: %w", err)
	}

	s.logger.Info("Question bank deleted successfully", "bank_id", id)

	return nil
}

func (s *questionBankService) List(ctx context.Context, filters repositories.BankFilters, userID string) (*QuestionBankListResponse, error) {
	banks, total, err := s.repo.QuestionBank().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list question banks: %w", err)
	}

	responses := make([]*QuestionBankResponse, len(banks))
	for i, bank := range banks {
		responses[i] = s.buildBankResponse(ctx, bank, userID)
	}

	return &QuestionBankListResponse{Banks: responses, Total: total}, nil
}

// ===== HELPERS =====

func (s *questionBankService) buildBankResponse(ctx context.Context, bank *models.QuestionBank, userID string) *QuestionBankResponse {
	canManage, err := s.canManageBank(ctx, bank, userID)
	if err != nil {
		canManage = bank.CreatedBy == userID
	}

	return &QuestionBankResponse{
		QuestionBank: bank,
		CanEdit:      canManage,
		CanDelete:    canManage,
	}
}

func (s *questionBankService) canManageBank(ctx context.Context, bank *models.QuestionBank, userID string) (bool, error) {
	if bank.CreatedBy == userID {
		return true, nil
	}
	return isAdmin(ctx, s.repo, userID)
}

// isValidBankTransition allows draft to be activated, an active bank to
// be archived and an archived bank to be reactivated
func isValidBankTransition(from, to models.BankStatus) bool {
	switch from {
	case models.BankDraft:
		return to == models.BankActive
	case models.BankActive:
		return to == models.BankArchived
	case models.BankArchived:
		return to == models.BankActive
	}
	return false
}
