package services

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

// mockRepository satisfies repositories.Repository with function-field
// sub-repositories so each test stubs only what it touches.
type mockRepository struct {
	questionBank *mockQuestionBankRepo
	question     *mockQuestionRepo
	matrix       *mockMatrixRepo
	exam         *mockExamRepo
	attempt      *mockAttemptRepo
	answer       *mockAnswerRepo
	user         *mockUserRepo
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		questionBank: &mockQuestionBankRepo{},
		question:     &mockQuestionRepo{},
		matrix:       &mockMatrixRepo{},
		exam:         &mockExamRepo{},
		attempt:      &mockAttemptRepo{},
		answer:       &mockAnswerRepo{},
		user:         &mockUserRepo{},
	}
}

func (m *mockRepository) QuestionBank() repositories.QuestionBankRepository { return m.questionBank }
func (m *mockRepository) Question() repositories.QuestionRepository        { return m.question }
func (m *mockRepository) Matrix() repositories.MatrixRepository            { return m.matrix }
func (m *mockRepository) Exam() repositories.ExamRepository                { return m.exam }
func (m *mockRepository) Attempt() repositories.AttemptRepository          { return m.attempt }
func (m *mockRepository) Answer() repositories.AnswerRepository            { return m.answer }
func (m *mockRepository) User() repositories.UserRepository                { return m.user }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== SUB-REPOSITORY MOCKS =====

type mockQuestionBankRepo struct {
	CreateFn         func(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	GetByIDFn        func(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error)
	UpdateFn         func(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	DeleteFn         func(ctx context.Context, tx *gorm.DB, id uint) error
	ListFn           func(ctx context.Context, tx *gorm.DB, filters repositories.BankFilters) ([]*models.QuestionBank, int64, error)
	CountQuestionsFn func(ctx context.Context, tx *gorm.DB, bankID uint) (int64, error)
}

func (m *mockQuestionBankRepo) Create(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, bank)
	}
	return nil
}

func (m *mockQuestionBankRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQuestionBankRepo) Update(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, bank)
	}
	return nil
}

func (m *mockQuestionBankRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, tx, id)
	}
	return nil
}

func (m *mockQuestionBankRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.BankFilters) ([]*models.QuestionBank, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tx, filters)
	}
	return nil, 0, nil
}

func (m *mockQuestionBankRepo) CountQuestions(ctx context.Context, tx *gorm.DB, bankID uint) (int64, error) {
	if m.CountQuestionsFn != nil {
		return m.CountQuestionsFn(ctx, tx, bankID)
	}
	return 0, nil
}

type mockQuestionRepo struct {
	CreateFn         func(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatchFn    func(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByIDFn        func(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDsFn       func(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	UpdateFn         func(ctx context.Context, tx *gorm.DB, question *models.Question) error
	DeleteFn         func(ctx context.Context, tx *gorm.DB, id uint) error
	ListFn           func(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
	CountEligibleFn  func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) (int64, error)
	GetEligibleIDsFn func(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error)
}

func (m *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, question)
	}
	return nil
}

func (m *mockQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, tx, questions)
	}
	return nil
}

func (m *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if m.GetByIDsFn != nil {
		return m.GetByIDsFn(ctx, tx, ids)
	}
	return nil, nil
}

func (m *mockQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, question)
	}
	return nil
}

func (m *mockQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, tx, id)
	}
	return nil
}

func (m *mockQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tx, filters)
	}
	return nil, 0, nil
}

func (m *mockQuestionRepo) CountEligible(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) (int64, error) {
	if m.CountEligibleFn != nil {
		return m.CountEligibleFn(ctx, tx, criteria)
	}
	return 0, nil
}

func (m *mockQuestionRepo) GetEligibleIDs(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
	if m.GetEligibleIDsFn != nil {
		return m.GetEligibleIDsFn(ctx, tx, criteria)
	}
	return nil, nil
}

type mockMatrixRepo struct {
	CreateFn           func(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error
	GetByIDFn          func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error)
	GetByIDWithItemsFn func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error)
	UpdateFn           func(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error
	DeleteFn           func(ctx context.Context, tx *gorm.DB, id uint) error
	ListFn             func(ctx context.Context, tx *gorm.DB, filters repositories.MatrixFilters) ([]*models.ExamMatrix, int64, error)
	ReplaceItemsFn     func(ctx context.Context, tx *gorm.DB, matrixID uint, items []models.ExamMatrixItem) error
}

func (m *mockMatrixRepo) Create(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, matrix)
	}
	return nil
}

func (m *mockMatrixRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMatrixRepo) GetByIDWithItems(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
	if m.GetByIDWithItemsFn != nil {
		return m.GetByIDWithItemsFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMatrixRepo) Update(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, matrix)
	}
	return nil
}

func (m *mockMatrixRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, tx, id)
	}
	return nil
}

func (m *mockMatrixRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.MatrixFilters) ([]*models.ExamMatrix, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tx, filters)
	}
	return nil, 0, nil
}

func (m *mockMatrixRepo) ReplaceItems(ctx context.Context, tx *gorm.DB, matrixID uint, items []models.ExamMatrixItem) error {
	if m.ReplaceItemsFn != nil {
		return m.ReplaceItemsFn(ctx, tx, matrixID, items)
	}
	return nil
}

type mockExamRepo struct {
	CreateFn               func(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByIDFn              func(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestionsFn func(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	UpdateFn               func(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	UpdateStatusFn         func(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error
	DeleteFn               func(ctx context.Context, tx *gorm.DB, id uint) error
	ListFn                 func(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error)
	GetQuestionsFn         func(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	CountAttemptsFn        func(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, exam)
	}
	return nil
}

func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.GetByIDWithQuestionsFn != nil {
		return m.GetByIDWithQuestionsFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, exam)
	}
	return nil
}

func (m *mockExamRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, tx, id, status)
	}
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, tx, id)
	}
	return nil
}

func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tx, filters)
	}
	return nil, 0, nil
}

func (m *mockExamRepo) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	if m.GetQuestionsFn != nil {
		return m.GetQuestionsFn(ctx, tx, examID)
	}
	return nil, nil
}

func (m *mockExamRepo) CountAttempts(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	if m.CountAttemptsFn != nil {
		return m.CountAttemptsFn(ctx, tx, examID)
	}
	return 0, nil
}

type mockAttemptRepo struct {
	CreateFn           func(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByIDFn          func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithAnsFn   func(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetActiveAttemptFn func(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error)
	UpdateFn           func(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	ListFn             func(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByStudentFn     func(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	UpdateStatusIfFn   func(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) (bool, error)
}

func (m *mockAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, attempt)
	}
	return nil
}

func (m *mockAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttemptRepo) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if m.GetByIDWithAnsFn != nil {
		return m.GetByIDWithAnsFn(ctx, tx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttemptRepo) GetActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	if m.GetActiveAttemptFn != nil {
		return m.GetActiveAttemptFn(ctx, tx, examID, studentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, attempt)
	}
	return nil
}

func (m *mockAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tx, filters)
	}
	return nil, 0, nil
}

func (m *mockAttemptRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	if m.GetByStudentFn != nil {
		return m.GetByStudentFn(ctx, tx, studentID, filters)
	}
	return nil, 0, nil
}

func (m *mockAttemptRepo) UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) (bool, error) {
	if m.UpdateStatusIfFn != nil {
		return m.UpdateStatusIfFn(ctx, tx, id, from, to)
	}
	return true, nil
}

type mockAnswerRepo struct {
	UpsertIfInProgressFn      func(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) (bool, error)
	GetByAttemptFn            func(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error)
	GetByAttemptAndQuestionFn func(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error)
	CountByAttemptFn          func(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
}

func (m *mockAnswerRepo) UpsertIfInProgress(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) (bool, error) {
	if m.UpsertIfInProgressFn != nil {
		return m.UpsertIfInProgressFn(ctx, tx, answer)
	}
	return true, nil
}

func (m *mockAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	if m.GetByAttemptFn != nil {
		return m.GetByAttemptFn(ctx, tx, attemptID)
	}
	return nil, nil
}

func (m *mockAnswerRepo) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error) {
	if m.GetByAttemptAndQuestionFn != nil {
		return m.GetByAttemptAndQuestionFn(ctx, tx, attemptID, questionID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAnswerRepo) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	if m.CountByAttemptFn != nil {
		return m.CountByAttemptFn(ctx, tx, attemptID)
	}
	return 0, nil
}

type mockUserRepo struct {
	GetByIDFn    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFn func(ctx context.Context, email string) (*models.User, error)
	HasRoleFn    func(ctx context.Context, id string, role models.UserRole) (bool, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	if m.HasRoleFn != nil {
		return m.HasRoleFn(ctx, id, role)
	}
	return false, nil
}

// ===== TEST FIXTURES =====

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return data
}

func multipleChoiceQuestion(t *testing.T, id uint, correctOption string) models.Question {
	t.Helper()
	key := models.MultipleChoiceKey{
		Options: choiceOptions(correctOption),
	}
	return models.Question{
		ID:        id,
		Type:      models.MultipleChoice,
		Text:      "pick one",
		AnswerKey: mustMarshal(t, key),
	}
}

// choiceOptions builds a three-option key with the given correct id
func choiceOptions(correctID string) []models.ChoiceOption {
	options := []models.ChoiceOption{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
		{ID: "c", Text: "third"},
	}
	for i := range options {
		if options[i].ID == correctID {
			options[i].IsCorrect = true
		}
	}
	return options
}

func fillBlankQuestion(t *testing.T, id uint, answers ...string) models.Question {
	t.Helper()
	key := models.FillBlankKey{}
	for i, answer := range answers {
		key.Blanks = append(key.Blanks, models.BlankKey{
			ID:               string(rune('a' + i)),
			CorrectAnswer:    answer,
			NormalizedAnswer: normalizeBlank(answer),
		})
	}
	return models.Question{
		ID:        id,
		Type:      models.FillBlank,
		Text:      "fill in",
		AnswerKey: mustMarshal(t, key),
	}
}
