package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type ExamAnswerRepo interface {
	// Upsert inserts the answer, or updates the existing row for the same
	// (attempt, question) pair.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.ExamAnswer) error
	GetByAttemptIDs(ctx context.Context, tx *gorm.DB, attemptIDs []uuid.UUID) ([]*types.ExamAnswer, error)
}

type examAnswerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamAnswerRepo(db *gorm.DB, baseLog *logger.Logger) ExamAnswerRepo {
	repoLog := baseLog.With("repo", "ExamAnswerRepo")
	return &examAnswerRepo{db: db, log: repoLog}
}

func (r *examAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ExamAnswer) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	// Upsert by unique attempt_id + question_id
	if err := transaction.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", row.AttemptID, row.QuestionID).
		Assign(map[string]interface{}{
			"selected_options": row.SelectedOptions,
			"correct":          row.Correct,
		}).
		FirstOrCreate(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *examAnswerRepo) GetByAttemptIDs(ctx context.Context, tx *gorm.DB, attemptIDs []uuid.UUID) ([]*types.ExamAnswer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExamAnswer
	if len(attemptIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("attempt_id IN ?", attemptIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
