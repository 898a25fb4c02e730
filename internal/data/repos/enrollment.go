package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type EnrollmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Enrollment) ([]*types.Enrollment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Enrollment, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Enrollment, error)
	// GetByUserAndCourse returns nil when no enrollment exists for the pair.
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Enrollment, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	repoLog := baseLog.With("repo", "EnrollmentRepo")
	return &enrollmentRepo{db: db, log: repoLog}
}

func (r *enrollmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Enrollment) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Enrollment{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *enrollmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Enrollment
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *enrollmentRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Enrollment
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("enrolled_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *enrollmentRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Enrollment
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *enrollmentRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
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

func (r *enrollmentRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.Enrollment{}).Error; err != nil {
		return err
	}
	return nil
}
