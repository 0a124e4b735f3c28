package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type BankFilters struct {
	Status    *models.BankStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	Query     string             `json:"query"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type QuestionFilters struct {
	BankID     *uint                   `json:"bank_id"`
	Type       *models.QuestionType    `json:"type"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	Domain     *string                 `json:"domain"`
	IsActive   *bool                   `json:"is_active"`
	CreatedBy  *string                 `json:"created_by"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`    // "created_at", "difficulty"
	SortOrder  string                  `json:"sort_order"` // "asc", "desc"
}

/// SupplyCriteria narrows the question supply the way a matrix item does:
// one bank plus optional domain and difficulty. Eligible questions are
// active questions of active, non-deleted banks. ExcludeIDs keeps draws
// across items of the same matrix free of duplicates.
type SupplyCriteria struct {
	BankID     uint                    `json:"bank_id"`
	Domain     *string                 `json:"domain"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	ExcludeIDs []uint                  `json:"exclude_ids"`
}

type MatrixFilters struct {
	CreatedBy *string `json:"created_by"`
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

type ExamFilters struct {
	Status    *models.ExamStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	MatrixID  *uint              `json:"matrix_id"`
	Query     string             `json:"query"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	ExamID    *uint                 `json:"exam_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "created_at", "started_at"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

type UserFilters struct {
	Query  string // Search query for name or email
	Limit  int    // Page size
	Offset int    // Offset for pagination
}

// ===== ENTITY REPOSITORY INTERFACES =====

// QuestionBankRepository interface for question bank operations
type QuestionBankRepository interface {
	Create(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error)
	Update(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters BankFilters) ([]*models.QuestionBank, int64, error)
	CountQuestions(ctx context.Context, tx *gorm.DB, bankID uint) (int64, error)
}

// QuestionRepository interface for question operations, including the
// supply index queries used by matrix validation and exam assembly.
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)

	// Supply index. Both methods run the same eligibility predicate, so a
	// count observed by validation matches what assembly can draw.
	CountEligible(ctx context.Context, tx *gorm.DB, criteria SupplyCriteria) (int64, error)
	GetEligibleIDs(ctx context.Context, tx *gorm.DB, criteria SupplyCriteria) ([]uint, error)
}

// MatrixRepository interface for exam matrix operations
type MatrixRepository interface {
	Create(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error)
	GetByIDWithItems(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error)
	Update(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters MatrixFilters) ([]*models.ExamMatrix, int64, error)
	ReplaceItems(ctx context.Context, tx *gorm.DB, matrixID uint, items []models.ExamMatrixItem) error
}

// ExamRepository interface for exam operations
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	CountAttempts(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}

// AttemptRepository interface for exam attempt operations
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error

	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)

	// UpdateStatusIf performs a compare-and-swap on the attempt status. It
	// returns false when the row was not in the expected status, meaning
	// another request won the transition.
	UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) (bool, error)
}

// AnswerRepository interface for student answer operations
type AnswerRepository interface {
	// UpsertIfInProgress saves the answer while the attempt row, locked for
	// the duration of the write, is still in_progress. Returns false once a
	// submit or expiry has claimed the attempt.
	UpsertIfInProgress(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) (bool, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error)
	CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
}

// UserRepository interface for user operations. This service does not own
// user data, reads go to Casdoor.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	Search(ctx context.Context, query string, filters UserFilters) ([]*models.User, int64, error)

	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
