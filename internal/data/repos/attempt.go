package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type ExamAttemptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamAttempt, error)
	// GetByUserAndExam returns attempts most-recent-first.
	GetByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) ([]*types.ExamAttempt, error)
	CountByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) (int64, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type examAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamAttemptRepo(db *gorm.DB, baseLog *logger.Logger) ExamAttemptRepo {
	repoLog := baseLog.With("repo", "ExamAttemptRepo")
	return &examAttemptRepo{db: db, log: repoLog}
}

func (r *examAttemptRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.ExamAttempt{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *examAttemptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExamAttempt
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

func (r *examAttemptRepo) GetByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) ([]*types.ExamAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExamAttempt
	if userID == uuid.Nil || examID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Order("started_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *examAttemptRepo) CountByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ExamAttempt{}).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *examAttemptRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.ExamAttempt{}).
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
