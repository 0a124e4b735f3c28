package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/eduforge/exam-engine/internal/models"
)

func newTestScoringService() ScoringService {
	return NewScoringService(slog.Default())
}

func TestScoreAnswer_MultipleChoice(t *testing.T) {
	svc := newTestScoringService()
	ctx := context.Background()
	question := multipleChoiceQuestion(t, 1, "b")

	t.Run("correct option earns full points", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 5, &models.AnswerPayload{SelectedOption: "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !correct || earned != 5 {
			t.Errorf("got earned=%d correct=%v, want 5 true", earned, correct)
		}
	})

	t.Run("wrong option earns zero", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 5, &models.AnswerPayload{SelectedOption: "a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if correct || earned != 0 {
			t.Errorf("got earned=%d correct=%v, want 0 false", earned, correct)
		}
	})

	t.Run("nil answer earns zero without error", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 5, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if correct || earned != 0 {
			t.Errorf("got earned=%d correct=%v, want 0 false", earned, correct)
		}
	})

	t.Run("key without a correct option is an error", func(t *testing.T) {
		broken := multipleChoiceQuestion(t, 2, "z")
		if _, _, err := svc.ScoreAnswer(ctx, &broken, 5, &models.AnswerPayload{SelectedOption: "a"}); err == nil {
			t.Error("expected error for key without correct option")
		}
	})
}

func TestScoreAnswer_FillBlank(t *testing.T) {
	svc := newTestScoringService()
	ctx := context.Background()
	question := fillBlankQuestion(t, 3, "Paris", "Seine")

	t.Run("exact answers are correct", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 4, &models.AnswerPayload{Blanks: []string{"paris", "seine"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !correct || earned != 4 {
			t.Errorf("got earned=%d correct=%v, want 4 true", earned, correct)
		}
	})

	t.Run("comparison ignores case and surrounding whitespace", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 4, &models.AnswerPayload{Blanks: []string{"  PARIS ", "Seine"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !correct || earned != 4 {
			t.Errorf("got earned=%d correct=%v, want 4 true", earned, correct)
		}
	})

	t.Run("one wrong blank fails the whole question", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 4, &models.AnswerPayload{Blanks: []string{"paris", "rhone"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if correct || earned != 0 {
			t.Errorf("got earned=%d correct=%v, want 0 false", earned, correct)
		}
	})

	t.Run("blank count mismatch earns zero", func(t *testing.T) {
		earned, correct, err := svc.ScoreAnswer(ctx, &question, 4, &models.AnswerPayload{Blanks: []string{"paris"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if correct || earned != 0 {
			t.Errorf("got earned=%d correct=%v, want 0 false", earned, correct)
		}
	})
}

func TestScoreAttempt(t *testing.T) {
	svc := newTestScoringService()
	ctx := context.Background()

	mc := multipleChoiceQuestion(t, 10, "a")
	fb := fillBlankQuestion(t, 11, "four")
	unansweredQ := multipleChoiceQuestion(t, 12, "c")

	examQuestions := []*models.ExamQuestion{
		{QuestionID: 10, Points: 3, Position: 0, Question: mc},
		{QuestionID: 11, Points: 2, Position: 1, Question: fb},
		{QuestionID: 12, Points: 5, Position: 2, Question: unansweredQ},
	}
	answers := []*models.StudentAnswer{
		{AttemptID: 1, QuestionID: 10, Answer: mustMarshal(t, models.AnswerPayload{SelectedOption: "a"})},
		{AttemptID: 1, QuestionID: 11, Answer: mustMarshal(t, models.AnswerPayload{Blanks: []string{"FOUR"}})},
	}

	earned, results, err := svc.ScoreAttempt(ctx, examQuestions, answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if earned != 5 {
		t.Errorf("earned = %d, want 5", earned)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if !results[0].IsCorrect || results[0].EarnedPoints != 3 || !results[0].Answered {
		t.Errorf("question 10 result = %+v, want correct with 3 points", results[0])
	}
	if !results[1].IsCorrect || results[1].EarnedPoints != 2 {
		t.Errorf("question 11 result = %+v, want correct with 2 points", results[1])
	}
	if results[2].Answered || results[2].EarnedPoints != 0 || results[2].IsCorrect {
		t.Errorf("question 12 result = %+v, want unanswered zero", results[2])
	}
	if results[2].Points != 5 {
		t.Errorf("question 12 possible points = %d, want 5", results[2].Points)
	}

	// The breakdown reveals what was submitted and what the key expects
	if results[0].StudentAnswer == nil || results[0].StudentAnswer.SelectedOption != "a" {
		t.Errorf("question 10 student answer = %+v, want option a", results[0].StudentAnswer)
	}
	if results[0].CorrectAnswer == nil || results[0].CorrectAnswer.SelectedOption != "a" {
		t.Errorf("question 10 correct answer = %+v, want option a", results[0].CorrectAnswer)
	}
	if results[1].CorrectAnswer == nil || len(results[1].CorrectAnswer.Blanks) != 1 || results[1].CorrectAnswer.Blanks[0] != "four" {
		t.Errorf("question 11 correct answer = %+v, want blanks [four]", results[1].CorrectAnswer)
	}
	if results[2].StudentAnswer != nil {
		t.Errorf("question 12 student answer = %+v, want nil for unanswered", results[2].StudentAnswer)
	}
	if results[2].CorrectAnswer == nil || results[2].CorrectAnswer.SelectedOption != "c" {
		t.Errorf("question 12 correct answer = %+v, want option c", results[2].CorrectAnswer)
	}
}
