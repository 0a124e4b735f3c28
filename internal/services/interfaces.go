package services

import (
	"context"
	"io"
	"time"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateQuestionBankRequest = validator.QuestionBankCreateRequest
type UpdateQuestionBankRequest = validator.QuestionBankUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest
type CreateMatrixRequest = validator.MatrixCreateRequest
type UpdateMatrixRequest = validator.MatrixUpdateRequest
type AssembleExamRequest = validator.ExamAssembleRequest
type PreviewExamRequest = validator.ExamPreviewRequest
type UpdateExamRequest = validator.ExamUpdateRequest

type QuestionBankResponse struct {
	*models.QuestionBank
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type QuestionBankListResponse struct {
	Banks []*QuestionBankResponse `json:"banks"`
	Total int64                   `json:"total"`
}

type QuestionResponse struct {
	*models.Question
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type QuestionListResponse struct {
	Questions []*QuestionResponse `json:"questions"`
	Total     int64               `json:"total"`
}

// SupplyCountResponse reports how many questions a supply slice can
// currently provide
type SupplyCountResponse struct {
	BankID     uint                    `json:"bank_id"`
	Domain     *string                 `json:"domain,omitempty"`
	Difficulty *models.DifficultyLevel `json:"difficulty,omitempty"`
	Count      int64                   `json:"count"`
}

type MatrixResponse struct {
	*models.ExamMatrix
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type MatrixListResponse struct {
	Matrices []*MatrixResponse `json:"matrices"`
	Total    int64             `json:"total"`
}

// MatrixFinding is one diagnostic produced by matrix validation
type MatrixFinding struct {
	Severity  string `json:"severity"` // "error" or "warning"
	Code      string `json:"code"`
	Message   string `json:"message"`
	ItemIndex *int   `json:"item_index,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

// MatrixValidationResult reports whether a matrix can currently be
// assembled and why not
type MatrixValidationResult struct {
	MatrixID uint            `json:"matrix_id"`
	IsValid  bool            `json:"is_valid"`
	Findings []MatrixFinding `json:"findings"`
}

// Finding severities and codes
const (
	SeverityError   = "error"
	SeverityWarning = "warning"

	FindingInsufficientSupply    = "insufficient_supply"
	FindingQuestionCountMismatch = "question_count_mismatch"
	FindingTotalPointsMismatch   = "total_points_mismatch"
)

type ExamResponse struct {
	*models.Exam
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// PreviewQuestion is one drawn question of a dry-run assembly
type PreviewQuestion struct {
	QuestionID uint                   `json:"question_id"`
	Type       models.QuestionType    `json:"type"`
	Text       string                 `json:"text"`
	Domain     string                 `json:"domain,omitempty"`
	Difficulty models.DifficultyLevel `json:"difficulty"`
	Points     int                    `json:"points"`
	Position   int                    `json:"position"`
}

// ExamPreviewResponse is the outcome of a dry-run assembly, nothing in
// it is persisted
type ExamPreviewResponse struct {
	MatrixID    uint              `json:"matrix_id"`
	TotalPoints int               `json:"total_points"`
	Questions   []PreviewQuestion `json:"questions"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	ExamID         uint    `json:"exam_id" validate:"required"`
	AccessPassword *string `json:"access_password"`
}

type SaveAnswerRequest struct {
	QuestionID uint                 `json:"question_id" validate:"required"`
	Answer     models.AnswerPayload `json:"answer"`
}

// ChoiceOptionView is a multiple choice option without the correctness
// flag
type ChoiceOptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionForAttempt is the student-facing view of an exam question,
// stripped of its answer key
type QuestionForAttempt struct {
	QuestionID  uint                  `json:"question_id"`
	Type        models.QuestionType   `json:"type"`
	Text        string                `json:"text"`
	Points      int                   `json:"points"`
	Position    int                   `json:"position"`
	Options     []ChoiceOptionView    `json:"options,omitempty"`
	BlankCount  int                   `json:"blank_count,omitempty"`
	SavedAnswer *models.AnswerPayload `json:"saved_answer,omitempty"`
}

type AttemptResponse struct {
	*models.ExamAttempt
	TimeRemaining int                  `json:"time_remaining"` // seconds
	Questions     []QuestionForAttempt `json:"questions,omitempty"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
}

// QuestionResult is the per-question outcome of a graded attempt. The
// answer fields are only ever surfaced for terminal attempts, where
// revealing the key is safe.
type QuestionResult struct {
	QuestionID    uint                  `json:"question_id"`
	Points        int                   `json:"points"`
	EarnedPoints  int                   `json:"earned_points"`
	IsCorrect     bool                  `json:"is_correct"`
	Answered      bool                  `json:"answered"`
	StudentAnswer *models.AnswerPayload `json:"student_answer,omitempty"`
	CorrectAnswer *models.AnswerPayload `json:"correct_answer,omitempty"`
}

// AttemptResult is the full graded outcome of a terminal attempt
type AttemptResult struct {
	AttemptID       uint                 `json:"attempt_id"`
	ExamID          uint                 `json:"exam_id"`
	Status          models.AttemptStatus `json:"status"`
	EarnedPoints    int                  `json:"earned_points"`
	TotalPoints     int                  `json:"total_points"`
	ScorePercentage float64              `json:"score_percentage"`
	SubmittedAt     *time.Time           `json:"submitted_at"`
	Questions       []QuestionResult     `json:"questions"`
}

// ===== IMPORT/EXPORT DTOs =====

type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== SERVICE INTERFACES =====

type QuestionBankService interface {
	Create(ctx context.Context, req *CreateQuestionBankRequest, creatorID string) (*QuestionBankResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionBankResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionBankRequest, userID string) (*QuestionBankResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.BankFilters, userID string) (*QuestionBankListResponse, error)
}

type QuestionService interface {
	Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error)
	CreateBatch(ctx context.Context, reqs []*CreateQuestionRequest, creatorID string) ([]*QuestionResponse, []error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)

	// CountSupply probes the supply index for one slice, the same
	// eligibility predicate matrix validation and assembly draw against
	CountSupply(ctx context.Context, criteria repositories.SupplyCriteria) (*SupplyCountResponse, error)
}

type MatrixService interface {
	Create(ctx context.Context, req *CreateMatrixRequest, creatorID string) (*MatrixResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*MatrixResponse, error)
	Update(ctx context.Context, id uint, req *UpdateMatrixRequest, userID string) (*MatrixResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.MatrixFilters, userID string) (*MatrixListResponse, error)

	// Validate checks a stored matrix against the current question supply
	Validate(ctx context.Context, id uint, userID string) (*MatrixValidationResult, error)
}

type ExamService interface {
	// Assemble materializes an exam from a matrix by sampling questions
	Assemble(ctx context.Context, req *AssembleExamRequest, creatorID string) (*ExamResponse, error)

	// Preview runs the same draw as Assemble without persisting anything,
	// so a fresh draw is representative of what assembly would produce
	Preview(ctx context.Context, req *PreviewExamRequest, userID string) (*ExamPreviewResponse, error)

	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)

	// Status management
	Publish(ctx context.Context, id uint, userID string) error
	Deactivate(ctx context.Context, id uint, userID string) error

	// CheckAccess verifies the exam is open for taking and the password
	// matches
	CheckAccess(ctx context.Context, examID uint, password *string) (*models.Exam, error)
}

type AttemptService interface {
	// Core attempt operations
	Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResult, error)

	// Get operations
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error)

	// List operations
	List(ctx context.Context, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
}

type ScoringService interface {
	// ScoreAnswer grades a single answer against the question's key and
	// returns the earned points
	ScoreAnswer(ctx context.Context, question *models.Question, points int, answer *models.AnswerPayload) (int, bool, error)

	// ScoreAttempt grades every question of an attempt from its saved
	// answers
	ScoreAttempt(ctx context.Context, examQuestions []*models.ExamQuestion, answers []*models.StudentAnswer) (int, []QuestionResult, error)
}

type ImportExportService interface {
	ImportQuestions(ctx context.Context, bankID uint, reader io.Reader, creatorID string) (*ImportResult, error)
	ExportQuestions(ctx context.Context, bankID uint, userID string) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	QuestionBank() QuestionBankService
	Question() QuestionService
	Matrix() MatrixService
	Exam() ExamService
	Attempt() AttemptService
	Scoring() ScoringService
	ImportExport() ImportExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
