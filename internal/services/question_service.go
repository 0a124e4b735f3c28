package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionService) Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error) {
	s.logger.Info("Creating question", "creator_id", creatorID, "bank_id", req.BankID, "type", req.Type)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, req.BankID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get question bank: %w", err)
	}

	canEdit, err := s.canManageBankQuestions(ctx, bank, creatorID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(creatorID, req.BankID, "question_bank", "add_question", "not owner or insufficient permissions")
	}

	keyJSON, err := s.parseAnswerKey(req.Type, req.AnswerKey)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		BankID:     req.BankID,
		Type:       req.Type,
		Text:       req.Text,
		AnswerKey:  keyJSON,
		Domain:     req.Domain,
		Difficulty: req.Difficulty,
		IsActive:   true,
		CreatedBy:  creatorID,
	}

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created successfully", "question_id", question.ID)

	return s.buildQuestionResponse(ctx, question, creatorID), nil
}

func (s *questionService) CreateBatch(ctx context.Context, reqs []*CreateQuestionRequest, creatorID string) ([]*QuestionResponse, []error) {
	s.logger.Info("Creating question batch", "creator_id", creatorID, "count", len(reqs))

	responses := make([]*QuestionResponse, 0, len(reqs))
	errs := make([]error, 0)

	for i, req := range reqs {
		resp, err := s.Create(ctx, req, creatorID)
		if err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i, err))
			continue
		}
		responses = append(responses, resp)
	}

	return responses, errs
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return s.buildQuestionResponse(ctx, question, userID), nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error) {
	s.logger.Info("Updating question", "question_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	canEdit, err := s.canManageQuestion(ctx, question, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "question", "update", "not owner or insufficient permissions")
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Domain != nil {
		question.Domain = *req.Domain
	}
	if req.Difficulty != nil {
		question.Difficulty = *req.Difficulty
	}
	if req.IsActive != nil {
		question.IsActive = *req.IsActive
	}
	if req.AnswerKey != nil {
		keyJSON, err := s.parseAnswerKey(question.Type, req.AnswerKey)
		if err != nil {
			return nil, err
		}
		question.AnswerKey = keyJSON
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated successfully", "question_id", id)

	return s.buildQuestionResponse(ctx, question, userID), nil
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting question", "question_id", id, "user_id", userID)

	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	canDelete, err := s.canManageQuestion(ctx, question, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "question", "delete", "not owner or insufficient permissions")
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted successfully", "question_id", id)

	return nil
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	questions, total, err := s.repo.Question().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, question := range questions {
		responses[i] = s.buildQuestionResponse(ctx, question, userID)
	}

	return &QuestionListResponse{Questions: responses, Total: total}, nil
}

func (s *questionService) CountSupply(ctx context.Context, criteria repositories.SupplyCriteria) (*SupplyCountResponse, error) {
	if _, err := s.repo.QuestionBank().GetByID(ctx, nil, criteria.BankID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get question bank: %w", err)
	}

	count, err := s.repo.Question().CountEligible(ctx, nil, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to count eligible questions: %w", err)
	}

	return &SupplyCountResponse{
		BankID:     criteria.BankID,
		Domain:     criteria.Domain,
		Difficulty: criteria.Difficulty,
		Count:      count,
	}, nil
}

// ===== HELPERS =====

// parseAnswerKey decodes and validates the answer key for the question
// type and normalizes fill in the blank answers for grading
func (s *questionService) parseAnswerKey(questionType models.QuestionType, raw interface{}) (datatypes.JSON, error) {
	rawBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer key: %w", err)
	}

	switch questionType {
	case models.MultipleChoice:
		var key models.MultipleChoiceKey
		if err := json.Unmarshal(rawBytes, &key); err != nil {
			return nil, NewValidationError("answer_key", "multiple choice key is malformed", nil)
		}
		if errs := s.validator.Business().ValidateAnswerKey(questionType, &key); errs.HasErrors() {
			return nil, errs
		}
		return json.Marshal(key)

	case models.FillBlank:
		var key models.FillBlankKey
		if err := json.Unmarshal(rawBytes, &key); err != nil {
			return nil, NewValidationError("answer_key", "fill in the blank key is malformed", nil)
		}
		for i := range key.Blanks {
			if key.Blanks[i].NormalizedAnswer == "" {
				key.Blanks[i].NormalizedAnswer = normalizeBlank(key.Blanks[i].CorrectAnswer)
			}
		}
		if errs := s.validator.Business().ValidateAnswerKey(questionType, &key); errs.HasErrors() {
			return nil, errs
		}
		return json.Marshal(key)

	default:
		return nil, NewValidationError("type", fmt.Sprintf("unsupported question type %s", questionType), questionType)
	}
}

// normalizeBlank applies the comparison normalization used at grading
// time, trimmed and casefolded
func normalizeBlank(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func (s *questionService) buildQuestionResponse(ctx context.Context, question *models.Question, userID string) *QuestionResponse {
	canManage, err := s.canManageQuestion(ctx, question, userID)
	if err != nil {
		canManage = question.CreatedBy == userID
	}

	return &QuestionResponse{
		Question:  question,
		CanEdit:   canManage,
		CanDelete: canManage,
	}
}

func (s *questionService) canManageQuestion(ctx context.Context, question *models.Question, userID string) (bool, error) {
	if question.CreatedBy == userID {
		return true, nil
	}
	return isAdmin(ctx, s.repo, userID)
}

func (s *questionService) canManageBankQuestions(ctx context.Context, bank *models.QuestionBank, userID string) (bool, error) {
	if bank.CreatedBy == userID {
		return true, nil
	}
	return isAdmin(ctx, s.repo, userID)
}
