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

type MatrixPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewMatrixPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.MatrixRepository {
	return &MatrixPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (m *MatrixPostgreSQL) Create(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error {
	db := m.getDB(tx)
	if err := db.WithContext(ctx).Create(matrix).Error; err != nil {
		return fmt.Errorf("failed to create exam matrix: %w", err)
	}
	return nil
}

func (m *MatrixPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
	db := m.getDB(tx)
	var matrix models.ExamMatrix

	if err := db.WithContext(ctx).First(&matrix, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exam matrix not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get exam matrix: %w", err)
	}

	return &matrix, nil
}

// GetByIDWithItems retrieves a matrix with its items ordered by position.
// Assembly and validation always go through this method.
func (m *MatrixPostgreSQL) GetByIDWithItems(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamMatrix, error) {
	db := m.getDB(tx)
	var matrix models.ExamMatrix

	if err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_matrix_items.position ASC")
		}).
		First(&matrix, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exam matrix not found with ID %d", id)
		}
		return nil, fmt.Errorf("failed to get exam matrix with items: %w", err)
	}

	return &matrix, nil
}

func (m *MatrixPostgreSQL) Update(ctx context.Context, tx *gorm.DB, matrix *models.ExamMatrix) error {
	db := m.getDB(tx)
	if err := db.WithContext(ctx).Save(matrix).Error; err != nil {
		return fmt.Errorf("failed to update exam matrix: %w", err)
	}

	cache.SafeDelete(ctx, m.cacheManager.Fast, fmt.Sprintf("matrix:%d", matrix.ID))

	return nil
}

func (m *MatrixPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := m.getDB(tx)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("matrix_id = ?", id).Delete(&models.ExamMatrixItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete matrix items: %w", err)
		}
		if err := tx.WithContext(ctx).Delete(&models.ExamMatrix{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete exam matrix: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.SafeDelete(ctx, m.cacheManager.Fast, fmt.Sprintf("matrix:%d", id))

	return nil
}

// ===== QUERY OPERATIONS =====

func (m *MatrixPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.MatrixFilters) ([]*models.ExamMatrix, int64, error) {
	db := m.getDB(tx)
	var matrices []*models.ExamMatrix
	var total int64

	query := db.WithContext(ctx).Model(&models.ExamMatrix{})

	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Query != "" {
		query = query.Where("name ILIKE ?", "%"+filters.Query+"%")
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exam matrices: %w", err)
	}

	query = query.Order("created_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Preload("Items").Find(&matrices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exam matrices: %w", err)
	}

	return matrices, total, nil
}

// ReplaceItems swaps the full item set of a matrix in one transaction.
func (m *MatrixPostgreSQL) ReplaceItems(ctx context.Context, tx *gorm.DB, matrixID uint, items []models.ExamMatrixItem) error {
	db := m.getDB(tx)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Where("matrix_id = ?", matrixID).
			Delete(&models.ExamMatrixItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear matrix items: %w", err)
		}

		if len(items) == 0 {
			return nil
		}

		for i := range items {
			items[i].ID = 0
			items[i].MatrixID = matrixID
		}

		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create matrix items: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.SafeDelete(ctx, m.cacheManager.Fast, fmt.Sprintf("matrix:%d", matrixID))

	return nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (m *MatrixPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}
