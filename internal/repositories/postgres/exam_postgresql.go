package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/cache"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates an exam together with its question rows. Callers that
// assemble exams pass the pinned questions on the model so the write is
// atomic.
func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")

	return nil
}

// GetByID retrieves an exam by ID with caching
func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var exam models.Exam

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("exam not found with ID %d", id)
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		return &dbExam, nil
	})

	if err != nil {
		return nil, err
	}

	return &exam, nil
}

// GetByIDWithQuestions retrieves an exam with its pinned questions in
// delivery order.
func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam

	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.position ASC")
		}).
		Preload("Questions.Question").
		First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exam not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}

	exam.QuestionCount = len(exam.Questions)

	return &exam, nil
}

// Update updates an exam
func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID)

	return nil
}

// UpdateStatus updates only the status of an exam
func (e *ExamPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ExamStatus) error {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update exam status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("exam not found with ID %d", id)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id)

	return nil
}

// Delete soft deletes an exam
func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := e.getDB(tx)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.ExamQuestion{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam questions: %w", err)
		}
		if err := tx.WithContext(ctx).Delete(&models.Exam{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete exam: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id)

	return nil
}

// ===== QUERY OPERATIONS =====

// List retrieves exams with filtering and pagination
func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Exam{})

	// Apply filters
	query = e.helpers.ApplyExamFilters(query, filters)
	if filters.Query != "" {
		searchQuery := "%" + filters.Query + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", searchQuery, searchQuery)
	}

	// Count total records
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	// Apply pagination and sorting
	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var exams []*models.Exam
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}

	return exams, total, nil
}

// GetQuestions retrieves the pinned questions of an exam in delivery order
func (e *ExamPostgreSQL) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	db := e.getDB(tx)
	var questions []*models.ExamQuestion

	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC").
		Preload("Question").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}

	return questions, nil
}

// CountAttempts counts all attempts against an exam
func (e *ExamPostgreSQL) CountAttempts(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	db := e.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count exam attempts: %w", err)
	}

	return count, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
