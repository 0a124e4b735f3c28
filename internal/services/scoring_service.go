package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/eduforge/exam-engine/internal/models"
)

type scoringService struct {
	logger *slog.Logger
}

func NewScoringService(logger *slog.Logger) ScoringService {
	return &scoringService{logger: logger}
}

// ScoreAnswer grades one answer against the question's key. Scoring is
// all or nothing, a fully correct answer earns the question's points and
// anything else earns zero.
func (s *scoringService) ScoreAnswer(ctx context.Context, question *models.Question, points int, answer *models.AnswerPayload) (int, bool, error) {
	if answer == nil {
		return 0, false, nil
	}

	switch question.Type {
	case models.MultipleChoice:
		var key models.MultipleChoiceKey
		if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
			return 0, false, fmt.Errorf("malformed answer key for question %d: %w", question.ID, err)
		}
		correctID := key.CorrectOptionID()
		if correctID == "" {
			return 0, false, fmt.Errorf("question %d has no correct option", question.ID)
		}
		if answer.SelectedOption == correctID {
			return points, true, nil
		}
		return 0, false, nil

	case models.FillBlank:
		var key models.FillBlankKey
		if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
			return 0, false, fmt.Errorf("malformed answer key for question %d: %w", question.ID, err)
		}
		if len(answer.Blanks) != len(key.Blanks) {
			return 0, false, nil
		}
		for i, blank := range key.Blanks {
			if normalizeBlank(answer.Blanks[i]) != blank.NormalizedAnswer {
				return 0, false, nil
			}
		}
		return points, true, nil

	default:
		return 0, false, fmt.Errorf("unsupported question type %s for question %d", question.Type, question.ID)
	}
}

// ScoreAttempt grades every exam question from the attempt's saved
// answers. Unanswered questions earn zero. The per-question breakdown
// carries the submitted answer and the key's expected answer, callers
// only hand it out for terminal attempts.
func (s *scoringService) ScoreAttempt(ctx context.Context, examQuestions []*models.ExamQuestion, answers []*models.StudentAnswer) (int, []QuestionResult, error) {
	answersByQuestion := make(map[uint]*models.StudentAnswer, len(answers))
	for _, answer := range answers {
		answersByQuestion[answer.QuestionID] = answer
	}

	totalEarned := 0
	results := make([]QuestionResult, 0, len(examQuestions))

	for _, eq := range examQuestions {
		correct, err := correctAnswerPayload(&eq.Question)
		if err != nil {
			return 0, nil, err
		}

		result := QuestionResult{
			QuestionID:    eq.QuestionID,
			Points:        eq.Points,
			CorrectAnswer: correct,
		}

		if saved, ok := answersByQuestion[eq.QuestionID]; ok {
			var payload models.AnswerPayload
			if err := json.Unmarshal(saved.Answer, &payload); err != nil {
				return 0, nil, fmt.Errorf("malformed saved answer for question %d: %w", eq.QuestionID, err)
			}
			result.Answered = true
			result.StudentAnswer = &payload

			earned, isCorrect, err := s.ScoreAnswer(ctx, &eq.Question, eq.Points, &payload)
			if err != nil {
				return 0, nil, err
			}
			result.EarnedPoints = earned
			result.IsCorrect = isCorrect
			totalEarned += earned
		}

		results = append(results, result)
	}

	return totalEarned, results, nil
}

// correctAnswerPayload rebuilds the expected answer from the question's
// key, in the same shape students submit
func correctAnswerPayload(question *models.Question) (*models.AnswerPayload, error) {
	switch question.Type {
	case models.MultipleChoice:
		key, err := decodeMultipleChoiceKey(question)
		if err != nil {
			return nil, err
		}
		return &models.AnswerPayload{SelectedOption: key.CorrectOptionID()}, nil

	case models.FillBlank:
		key, err := decodeFillBlankKey(question)
		if err != nil {
			return nil, err
		}
		blanks := make([]string, len(key.Blanks))
		for i, blank := range key.Blanks {
			blanks[i] = blank.CorrectAnswer
		}
		return &models.AnswerPayload{Blanks: blanks}, nil

	default:
		return nil, fmt.Errorf("unsupported question type %s for question %d", question.Type, question.ID)
	}
}
