package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/eduforge/exam-engine/internal/cache"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new question and invalidates cache
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("bank:%d:*", question.BankID))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "list:*")

	return nil
}

// CreateBatch creates multiple questions in a batch
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "bank:*")
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "list:*")

	return nil
}

// GetByID retrieves a question by ID with caching
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	// Try cache first for performance
	cacheKey := fmt.Sprintf("id:%d", id)
	var question models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("question not found with ID %d", id)
			}
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return &dbQuestion, nil
	})

	if err != nil {
		return nil, err
	}

	return &question, nil
}

// GetByIDs retrieves multiple questions by their IDs
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by IDs: %w", err)
	}

	return questions, nil
}

// Update updates a question
func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, question.ID, question.BankID)

	return nil
}

// Delete soft deletes a question
func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	// Get question info before deleting for cache invalidation
	var question models.Question
	if err := db.WithContext(ctx).Select("id, bank_id").First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("question not found with ID %d", id)
		}
		return fmt.Errorf("failed to get question before delete: %w", err)
	}

	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, id, question.BankID)

	return nil
}

// ===== QUERY OPERATIONS =====

// List retrieves questions with filtering and pagination
func (q *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	db := q.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Question{})

	// Apply filters
	query = q.applyQuestionFilters(query, filters)

	// Count total records
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	// Apply pagination and sorting
	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}

	return questions, total, nil
}

// ===== SUPPLY INDEX =====

// CountEligible counts questions matching the supply criteria. The
// predicate is shared with GetEligibleIDs so validation and assembly see
// the same supply.
func (q *QuestionPostgreSQL) CountEligible(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) (int64, error) {
	db := q.getDB(tx)
	query := q.applySupplyCriteria(db.WithContext(ctx).Model(&models.Question{}), criteria)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count eligible questions: %w", err)
	}

	return count, nil
}

// GetEligibleIDs retrieves the IDs of all questions matching the supply
// criteria, ordered by ID for deterministic iteration.
func (q *QuestionPostgreSQL) GetEligibleIDs(ctx context.Context, tx *gorm.DB, criteria repositories.SupplyCriteria) ([]uint, error) {
	db := q.getDB(tx)
	query := q.applySupplyCriteria(db.WithContext(ctx).Model(&models.Question{}), criteria)

	var ids []uint
	if err := query.Order("questions.id ASC").Pluck("questions.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get eligible question IDs: %w", err)
	}

	return ids, nil
}

// applySupplyCriteria builds the eligibility predicate: active questions
// of an active bank, narrowed by the optional domain and difficulty.
func (q *QuestionPostgreSQL) applySupplyCriteria(query *gorm.DB, criteria repositories.SupplyCriteria) *gorm.DB {
	query = query.
		Joins("JOIN question_banks qb ON qb.id = questions.bank_id AND qb.deleted_at IS NULL").
		Where("questions.bank_id = ?", criteria.BankID).
		Where("questions.is_active = ?", true).
		Where("qb.status = ?", models.BankActive)

	if criteria.Domain != nil {
		query = query.Where("questions.domain = ?", *criteria.Domain)
	}
	if criteria.Difficulty != nil {
		query = query.Where("questions.difficulty = ?", *criteria.Difficulty)
	}
	if len(criteria.ExcludeIDs) > 0 {
		query = query.Where("questions.id NOT IN ?", criteria.ExcludeIDs)
	}

	return query
}

// ===== HELPER METHODS =====

// applyQuestionFilters applies common question filters to a query
func (q *QuestionPostgreSQL) applyQuestionFilters(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	if filters.BankID != nil {
		query = query.Where("bank_id = ?", *filters.BankID)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.Domain != nil {
		query = query.Where("LOWER(domain) = ?", strings.ToLower(*filters.Domain))
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}

	return query
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
