package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type CourseRepo interface {
	// Create persists the courses together with their price/credit/state
	// children in the supplied transaction.
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Course) ([]*types.Course, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Course, error)
	GetBySKUs(ctx context.Context, tx *gorm.DB, skus []string) ([]*types.Course, error)
	List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Course, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	repoLog := baseLog.With("repo", "CourseRepo")
	return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Course) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Course{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Course
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Prices").
		Preload("Credits").
		Preload("States").
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) GetBySKUs(ctx context.Context, tx *gorm.DB, skus []string) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Course
	if len(skus) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Prices").
		Preload("Credits").
		Preload("States").
		Where("sku IN ?", skus).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Preload("Prices").
		Preload("Credits").
		Preload("States").
		Order("title ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var results []*types.Course
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.Course{}).Error; err != nil {
		return err
	}
	return nil
}
