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

type questionBankRepository struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionBankPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionBankRepository {
	return &questionBankRepository{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *questionBankRepository) Create(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(bank).Error; err != nil {
		return r.handleDBError(err, "create question bank")
	}
	return nil
}

func (r *questionBankRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error) {
	db := r.getDB(tx)
	var bank models.QuestionBank

	if err := db.WithContext(ctx).First(&bank, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question bank not found with ID %d", id)
		}
		return nil, r.handleDBError(err, "get question bank by id")
	}

	return &bank, nil
}

func (r *questionBankRepository) Update(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(bank).Error; err != nil {
		return r.handleDBError(err, "update question bank")
	}

	cache.SafeInvalidatePattern(ctx, r.cacheManager.Question, fmt.Sprintf("bank:%d:*", bank.ID))

	return nil
}

func (r *questionBankRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.QuestionBank{}, id).Error; err != nil {
		return r.handleDBError(err, "delete question bank")
	}

	cache.SafeInvalidatePattern(ctx, r.cacheManager.Question, fmt.Sprintf("bank:%d:*", id))

	return nil
}

// ===== QUERY OPERATIONS =====

func (r *questionBankRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.BankFilters) ([]*models.QuestionBank, int64, error) {
	db := r.getDB(tx)
	var banks []*models.QuestionBank
	var total int64

	query := db.WithContext(ctx).Model(&models.QuestionBank{})

	// Apply filters
	query = r.applyBankFilters(query, filters)

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleDBError(err, "count question banks")
	}

	// Apply pagination
	query = query.Order("created_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&banks).Error; err != nil {
		return nil, 0, r.handleDBError(err, "list question banks")
	}

	return banks, total, nil
}

func (r *questionBankRepository) CountQuestions(ctx context.Context, tx *gorm.DB, bankID uint) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("bank_id = ?", bankID).
		Count(&count).Error; err != nil {
		return 0, r.handleDBError(err, "count bank questions")
	}

	return count, nil
}

// ===== HELPER METHODS =====

func (r *questionBankRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *questionBankRepository) handleDBError(err error, operation string) error {
	return handleDBError(err, operation)
}

// handleDBError is a package-level helper for handling database errors
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

func (r *questionBankRepository) applyBankFilters(query *gorm.DB, filters repositories.BankFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Query != "" {
		searchQuery := "%" + filters.Query + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", searchQuery, searchQuery)
	}

	return query
}
