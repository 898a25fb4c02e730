package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type ExamRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Exam) ([]*types.Exam, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exam, error)
	GetByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Exam, error)
	// LockByID loads the exam row under FOR UPDATE so attempt-limit checks
	// serialize against concurrent attempt creation.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exam, error)
}

type examRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamRepo(db *gorm.DB, baseLog *logger.Logger) ExamRepo {
	repoLog := baseLog.With("repo", "ExamRepo")
	return &examRepo{db: db, log: repoLog}
}

func (r *examRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Exam) ([]*types.Exam, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Exam{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *examRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exam, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Exam
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Questions", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *examRepo) GetByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Exam, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Exam
	if len(courseIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *examRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exam, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Exam
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

type ExamQuestionRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamQuestion, error)
	GetByExamIDs(ctx context.Context, tx *gorm.DB, examIDs []uuid.UUID) ([]*types.ExamQuestion, error)
}

type examQuestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamQuestionRepo(db *gorm.DB, baseLog *logger.Logger) ExamQuestionRepo {
	repoLog := baseLog.With("repo", "ExamQuestionRepo")
	return &examQuestionRepo{db: db, log: repoLog}
}

func (r *examQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamQuestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExamQuestion
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

func (r *examQuestionRepo) GetByExamIDs(ctx context.Context, tx *gorm.DB, examIDs []uuid.UUID) ([]*types.ExamQuestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExamQuestion
	if len(examIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("exam_id IN ?", examIDs).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
