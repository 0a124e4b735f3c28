package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/events"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	scoring   ScoringService
	publisher events.EventPublisher
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) AttemptService {
	if publisher == nil {
		publisher = events.NewMockEventPublisher()
	}
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		scoring:   NewScoringService(logger),
		publisher: publisher,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

// Start opens an attempt against an active exam. Starting while an
// attempt is already in progress resumes it instead of creating a
// second one.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting exam attempt", "exam_id", req.ExamID, "student_id", studentID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Access gate: exam must be active and the password must match
	examService := NewExamService(s.repo, s.db, s.logger, s.validator, s.publisher)
	exam, err := examService.CheckAccess(ctx, req.ExamID, req.AccessPassword)
	if err != nil {
		return nil, err
	}

	if errs := s.validator.Business().ValidateAttemptStart(exam.Status, exam.Duration); errs.HasErrors() {
		return nil, errs
	}

	// Resume an in-progress attempt instead of opening a second one
	existing, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, req.ExamID, studentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}
	if existing != nil && err == nil {
		if time.Now().After(existing.DeadlineAt) {
			if expireErr := s.expireAttempt(ctx, existing); expireErr != nil {
				return nil, expireErr
			}
		} else {
			s.logger.Info("Resuming existing attempt", "attempt_id", existing.ID)
			return s.buildAttemptResponse(ctx, existing, true)
		}
	}

	now := time.Now()
	attempt := &models.ExamAttempt{
		ExamID:     req.ExamID,
		StudentID:  studentID,
		Status:     models.AttemptInProgress,
		StartedAt:  now,
		DeadlineAt: now.Add(time.Duration(exam.Duration) * time.Minute),
	}

	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Exam attempt started successfully",
		"attempt_id", attempt.ID,
		"exam_id", req.ExamID,
		"deadline_at", attempt.DeadlineAt)

	return s.buildAttemptResponse(ctx, attempt, true)
}

// SaveAnswer upserts the answer for one question of an in-progress
// attempt. The write re-checks the attempt status under a row lock, a
// save losing the race to a submit fails with a conflict instead of
// landing silently.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "save_answer")
	if err != nil {
		return err
	}

	switch attempt.Status {
	case models.AttemptInProgress:
		// fall through to the deadline check
	case models.AttemptSubmitted, models.AttemptGraded:
		return ErrAttemptSubmitted
	default:
		return ErrAttemptNotActive
	}

	if time.Now().After(attempt.DeadlineAt) {
		if err := s.expireAttempt(ctx, attempt); err != nil {
			return err
		}
		return ErrAttemptTimeExpired
	}

	// The question must belong to the attempt's exam
	examQuestions, err := s.repo.Exam().GetQuestions(ctx, nil, attempt.ExamID)
	if err != nil {
		return fmt.Errorf("failed to get exam questions: %w", err)
	}
	var target *models.ExamQuestion
	for _, eq := range examQuestions {
		if eq.QuestionID == req.QuestionID {
			target = eq
			break
		}
	}
	if target == nil {
		return NewValidationError("question_id",
			fmt.Sprintf("question %d is not part of this exam", req.QuestionID), req.QuestionID)
	}

	payload, err := json.Marshal(req.Answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	answer := &models.StudentAnswer{
		AttemptID:  attemptID,
		QuestionID: req.QuestionID,
		Answer:     payload,
	}

	applied, err := s.repo.Answer().UpsertIfInProgress(ctx, nil, answer)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	if !applied {
		// A submit or expiry claimed the attempt between the status read
		// above and the write
		return ErrAttemptConflict
	}

	s.logger.Info("Answer saved", "attempt_id", attemptID, "question_id", req.QuestionID)

	return nil
}

// Submit claims the attempt with a compare-and-swap on its status,
// scores the saved answers and lands the grade atomically. Concurrent
// submits lose the claim and get a conflict.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResult, error) {
	s.logger.Info("Submitting exam attempt", "attempt_id", attemptID, "student_id", studentID)

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "submit")
	if err != nil {
		return nil, err
	}

	if attempt.Status.IsTerminal() || attempt.Status == models.AttemptSubmitted {
		return nil, ErrAttemptSubmitted
	}

	if time.Now().After(attempt.DeadlineAt) {
		if err := s.expireAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		return nil, ErrAttemptTimeExpired
	}

	claimed, err := s.repo.Attempt().UpdateStatusIf(ctx, nil, attemptID, models.AttemptInProgress, models.AttemptSubmitted)
	if err != nil {
		return nil, fmt.Errorf("failed to claim attempt: %w", err)
	}
	if !claimed {
		// Someone else moved the attempt, report what actually happened
		current, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read attempt: %w", err)
		}
		if current.Status.IsTerminal() || current.Status == models.AttemptSubmitted {
			return nil, ErrAttemptSubmitted
		}
		return nil, ErrAttemptConflict
	}

	result, err := s.gradeAttempt(ctx, attempt, models.AttemptGraded, timePtr(time.Now()))
	if err != nil {
		return nil, err
	}

	event := events.NewEvent(events.TopicAttemptSubmitted, map[string]interface{}{
		"attempt_id":       attemptID,
		"exam_id":          attempt.ExamID,
		"student_id":       studentID,
		"earned_points":    result.EarnedPoints,
		"score_percentage": result.ScorePercentage,
	})
	if err := s.publisher.Publish(ctx, events.TopicAttemptSubmitted, event); err != nil {
		s.logger.Error("Failed to publish attempt submitted event", "attempt_id", attemptID, "error", err)
	}

	s.logger.Info("Exam attempt submitted and graded",
		"attempt_id", attemptID,
		"earned_points", result.EarnedPoints,
		"score_percentage", result.ScorePercentage)

	return result, nil
}

// ===== GET OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "attempt", "read", "not owner or insufficient permissions")
	}

	// Lazy expiry: a stale in-progress attempt is finalized on read
	if attempt.Status == models.AttemptInProgress && time.Now().After(attempt.DeadlineAt) {
		if err := s.expireAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		attempt, err = s.repo.Attempt().GetByID(ctx, nil, id)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read attempt: %w", err)
		}
	}

	withQuestions := attempt.Status == models.AttemptInProgress && attempt.StudentID == userID
	return s.buildAttemptResponse(ctx, attempt, withQuestions)
}

// GetResult returns the graded outcome of a terminal attempt
func (s *attemptService) GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, attemptID, "attempt", "read_result", "not owner or insufficient permissions")
	}

	// Lazy expiry makes results of overdue attempts available immediately
	if attempt.Status == models.AttemptInProgress && time.Now().After(attempt.DeadlineAt) {
		if err := s.expireAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		attempt, err = s.repo.Attempt().GetByID(ctx, nil, attemptID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read attempt: %w", err)
		}
	}

	if !attempt.Status.IsTerminal() {
		return nil, ErrResultNotReady
	}

	return s.buildAttemptResult(ctx, attempt)
}

// ===== LIST OPERATIONS =====

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	userRole, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	// Students only ever see their own attempts
	if userRole == models.RoleStudent {
		filters.StudentID = &userID
	}

	attempts, total, err := s.repo.Attempt().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i], err = s.buildAttemptResponse(ctx, attempt, false)
		if err != nil {
			return nil, err
		}
	}

	return &AttemptListResponse{Attempts: responses, Total: total}, nil
}

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts by student: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i], err = s.buildAttemptResponse(ctx, attempt, false)
		if err != nil {
			return nil, err
		}
	}

	return &AttemptListResponse{Attempts: responses, Total: total}, nil
}

// ===== EXPIRY AND GRADING =====

// expireAttempt finalizes an attempt whose deadline passed. The status
// CAS makes concurrent expiry and submit settle on exactly one outcome.
func (s *attemptService) expireAttempt(ctx context.Context, attempt *models.ExamAttempt) error {
	claimed, err := s.repo.Attempt().UpdateStatusIf(ctx, nil, attempt.ID, models.AttemptInProgress, models.AttemptExpired)
	if err != nil {
		return fmt.Errorf("failed to expire attempt: %w", err)
	}
	if !claimed {
		// Lost the race to a submit or another expiry, nothing to do
		return nil
	}

	s.logger.Info("Attempt expired", "attempt_id", attempt.ID, "deadline_at", attempt.DeadlineAt)

	if _, err := s.gradeAttempt(ctx, attempt, models.AttemptExpired, nil); err != nil {
		return err
	}

	event := events.NewEvent(events.TopicAttemptExpired, map[string]interface{}{
		"attempt_id": attempt.ID,
		"exam_id":    attempt.ExamID,
		"student_id": attempt.StudentID,
	})
	if err := s.publisher.Publish(ctx, events.TopicAttemptExpired, event); err != nil {
		s.logger.Error("Failed to publish attempt expired event", "attempt_id", attempt.ID, "error", err)
	}

	return nil
}

// gradeAttempt scores the saved answers and lands the grade and final
// status in one transaction
func (s *attemptService) gradeAttempt(ctx context.Context, attempt *models.ExamAttempt, finalStatus models.AttemptStatus, submittedAt *time.Time) (*AttemptResult, error) {
	var result *AttemptResult

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		exam, err := txRepo.Exam().GetByID(ctx, nil, attempt.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.TotalPoints <= 0 {
			return NewValidationError("total_points", "exam has no points to award", exam.TotalPoints)
		}

		examQuestions, err := txRepo.Exam().GetQuestions(ctx, nil, attempt.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get exam questions: %w", err)
		}

		answers, err := txRepo.Answer().GetByAttempt(ctx, nil, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to get saved answers: %w", err)
		}

		earned, questionResults, err := s.scoring.ScoreAttempt(ctx, examQuestions, answers)
		if err != nil {
			return fmt.Errorf("failed to score attempt: %w", err)
		}

		percentage := float64(earned) / float64(exam.TotalPoints) * 100

		attempt.Status = finalStatus
		attempt.SubmittedAt = submittedAt
		attempt.EarnedPoints = &earned
		attempt.ScorePercentage = &percentage

		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}

		result = &AttemptResult{
			AttemptID:       attempt.ID,
			ExamID:          attempt.ExamID,
			Status:          finalStatus,
			EarnedPoints:    earned,
			TotalPoints:     exam.TotalPoints,
			ScorePercentage: percentage,
			SubmittedAt:     submittedAt,
			Questions:       questionResults,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// buildAttemptResult rebuilds per-question results for a terminal
// attempt. Scoring is deterministic so the recomputation always matches
// the stored totals.
func (s *attemptService) buildAttemptResult(ctx context.Context, attempt *models.ExamAttempt) (*AttemptResult, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	examQuestions, err := s.repo.Exam().GetQuestions(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved answers: %w", err)
	}

	_, questionResults, err := s.scoring.ScoreAttempt(ctx, examQuestions, answers)
	if err != nil {
		return nil, fmt.Errorf("failed to score attempt: %w", err)
	}

	result := &AttemptResult{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		Status:      attempt.Status,
		TotalPoints: exam.TotalPoints,
		SubmittedAt: attempt.SubmittedAt,
		Questions:   questionResults,
	}
	if attempt.EarnedPoints != nil {
		result.EarnedPoints = *attempt.EarnedPoints
	}
	if attempt.ScorePercentage != nil {
		result.ScorePercentage = *attempt.ScorePercentage
	}

	return result, nil
}

// ===== HELPERS =====

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, studentID, action string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", action, "not owned by student")
	}

	return attempt, nil
}

func (s *attemptService) canAccessAttempt(ctx context.Context, attempt *models.ExamAttempt, userID string) (bool, error) {
	if attempt.StudentID == userID {
		return true, nil
	}

	// The exam owner can review attempts against their exam
	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return false, fmt.Errorf("failed to get exam: %w", err)
	}
	if err == nil && exam.CreatedBy == userID {
		return true, nil
	}

	return isAdmin(ctx, s.repo, userID)
}

// buildAttemptResponse assembles the student-facing attempt view. The
// question list is sanitized, answer keys never leave the service.
func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.ExamAttempt, withQuestions bool) (*AttemptResponse, error) {
	response := &AttemptResponse{
		ExamAttempt:   attempt,
		TimeRemaining: remainingSeconds(attempt),
	}

	if !withQuestions {
		return response, nil
	}

	examQuestions, err := s.repo.Exam().GetQuestions(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved answers: %w", err)
	}
	answersByQuestion := make(map[uint]*models.StudentAnswer, len(answers))
	for _, answer := range answers {
		answersByQuestion[answer.QuestionID] = answer
	}

	response.Questions = make([]QuestionForAttempt, 0, len(examQuestions))
	for _, eq := range examQuestions {
		view, err := sanitizeQuestion(eq)
		if err != nil {
			return nil, err
		}
		if saved, ok := answersByQuestion[eq.QuestionID]; ok {
			var payload models.AnswerPayload
			if err := json.Unmarshal(saved.Answer, &payload); err != nil {
				return nil, fmt.Errorf("malformed saved answer for question %d: %w", eq.QuestionID, err)
			}
			view.SavedAnswer = &payload
		}
		response.Questions = append(response.Questions, view)
	}

	return response, nil
}

// sanitizeQuestion strips the answer key from a question before it is
// handed to a student
func sanitizeQuestion(eq *models.ExamQuestion) (QuestionForAttempt, error) {
	view := QuestionForAttempt{
		QuestionID: eq.QuestionID,
		Type:       eq.Question.Type,
		Text:       eq.Question.Text,
		Points:     eq.Points,
		Position:   eq.Position,
	}

	switch eq.Question.Type {
	case models.MultipleChoice:
		var key models.MultipleChoiceKey
		if err := json.Unmarshal(eq.Question.AnswerKey, &key); err != nil {
			return view, fmt.Errorf("malformed answer key for question %d: %w", eq.QuestionID, err)
		}
		view.Options = make([]ChoiceOptionView, len(key.Options))
		for i, opt := range key.Options {
			view.Options[i] = ChoiceOptionView{ID: opt.ID, Text: opt.Text}
		}

	case models.FillBlank:
		var key models.FillBlankKey
		if err := json.Unmarshal(eq.Question.AnswerKey, &key); err != nil {
			return view, fmt.Errorf("malformed answer key for question %d: %w", eq.QuestionID, err)
		}
		view.BlankCount = len(key.Blanks)

	default:
		return view, errors.New("unsupported question type " + string(eq.Question.Type))
	}

	return view, nil
}

func remainingSeconds(attempt *models.ExamAttempt) int {
	if attempt.Status != models.AttemptInProgress {
		return 0
	}
	remaining := int(time.Until(attempt.DeadlineAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
