package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

const questionSheetName = "Questions"

// Column layout of the question sheet. Options hold one "id:text" pair
// per entry separated by semicolons, the correct option id prefixed with
// an asterisk. Answers hold the expected blank answers in order.
var questionSheetHeader = []string{"Type", "Text", "Domain", "Difficulty", "Options", "Answers"}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	questions QuestionService
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		questions: NewQuestionService(repo, nil, logger, validator),
	}
}

// ImportQuestions reads questions from an xlsx workbook and creates them
// in the bank. Rows that fail validation are skipped and reported, valid
// rows still land.
func (s *importExportService) ImportQuestions(ctx context.Context, bankID uint, reader io.Reader, creatorID string) (*ImportResult, error) {
	s.logger.Info("Importing questions", "bank_id", bankID, "creator_id", creatorID)

	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheet := questionSheetName
	if idx, _ := file.GetSheetIndex(sheet); idx < 0 {
		sheet = file.GetSheetName(0)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "workbook has no question rows", nil)
	}

	result := &ImportResult{}

	for i, row := range rows[1:] {
		rowNum := i + 2

		req, err := parseQuestionRow(row, bankID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		if _, err := s.questions.Create(ctx, req, creatorID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("Question import finished",
		"bank_id", bankID,
		"imported", result.Imported,
		"failed", result.Failed)

	return result, nil
}

// ExportQuestions writes all questions of a bank into an xlsx workbook
func (s *importExportService) ExportQuestions(ctx context.Context, bankID uint, userID string) ([]byte, error) {
	s.logger.Info("Exporting questions", "bank_id", bankID, "user_id", userID)

	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, bankID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get question bank: %w", err)
	}

	if bank.CreatedBy != userID {
		admin, err := isAdmin(ctx, s.repo, userID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, NewPermissionError(userID, bankID, "question_bank", "export", "not owner or insufficient permissions")
		}
	}

	questions, _, err := s.repo.Question().List(ctx, nil, repositories.QuestionFilters{
		BankID: &bankID,
		Limit:  10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), questionSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, title := range questionSheetHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(questionSheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, question := range questions {
		row, err := formatQuestionRow(question)
		if err != nil {
			return nil, err
		}
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(questionSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	return buf.Bytes(), nil
}

// ===== ROW CODEC =====

func parseQuestionRow(row []string, bankID uint) (*CreateQuestionRequest, error) {
	get := func(col int) string {
		if col < len(row) {
			return strings.TrimSpace(row[col])
		}
		return ""
	}

	questionType := models.QuestionType(get(0))
	text := get(1)
	domain := get(2)
	difficulty := models.DifficultyLevel(get(3))
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}

	req := &CreateQuestionRequest{
		BankID:     bankID,
		Type:       questionType,
		Text:       text,
		Domain:     domain,
		Difficulty: difficulty,
	}

	switch questionType {
	case models.MultipleChoice:
		key, err := parseOptionsCell(get(4))
		if err != nil {
			return nil, err
		}
		req.AnswerKey = key

	case models.FillBlank:
		answers := splitCell(get(5))
		if len(answers) == 0 {
			return nil, fmt.Errorf("fill in the blank row has no answers")
		}
		key := models.FillBlankKey{}
		for i, answer := range answers {
			key.Blanks = append(key.Blanks, models.BlankKey{
				ID:            fmt.Sprintf("b%d", i+1),
				CorrectAnswer: answer,
			})
		}
		req.AnswerKey = key

	default:
		return nil, fmt.Errorf("unsupported question type %q", get(0))
	}

	return req, nil
}

func parseOptionsCell(cell string) (models.MultipleChoiceKey, error) {
	var key models.MultipleChoiceKey

	for _, entry := range splitCell(cell) {
		correct := strings.HasPrefix(entry, "*")
		entry = strings.TrimPrefix(entry, "*")

		id, text, found := strings.Cut(entry, ":")
		if !found {
			return key, fmt.Errorf("option %q is not in id:text form", entry)
		}

		key.Options = append(key.Options, models.ChoiceOption{
			ID:        strings.TrimSpace(id),
			Text:      strings.TrimSpace(text),
			IsCorrect: correct,
		})
	}

	if len(key.Options) == 0 {
		return key, fmt.Errorf("multiple choice row has no options")
	}

	return key, nil
}

func formatQuestionRow(question *models.Question) ([]interface{}, error) {
	row := []interface{}{
		string(question.Type),
		question.Text,
		question.Domain,
		string(question.Difficulty),
		"",
		"",
	}

	switch question.Type {
	case models.MultipleChoice:
		key, err := decodeMultipleChoiceKey(question)
		if err != nil {
			return nil, err
		}
		entries := make([]string, len(key.Options))
		for i, opt := range key.Options {
			entry := fmt.Sprintf("%s:%s", opt.ID, opt.Text)
			if opt.IsCorrect {
				entry = "*" + entry
			}
			entries[i] = entry
		}
		row[4] = strings.Join(entries, ";")

	case models.FillBlank:
		key, err := decodeFillBlankKey(question)
		if err != nil {
			return nil, err
		}
		answers := make([]string, len(key.Blanks))
		for i, blank := range key.Blanks {
			answers[i] = blank.CorrectAnswer
		}
		row[5] = strings.Join(answers, ";")
	}

	return row, nil
}

func splitCell(cell string) []string {
	var parts []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
