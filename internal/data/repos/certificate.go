package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// CertificateFilter narrows ListAll results. Revoked nil means both states.
type CertificateFilter struct {
	Revoked    *bool
	CreditType string
	UserID     uuid.UUID
	CourseID   uuid.UUID
}

type CertificateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Certificate) ([]*types.Certificate, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Certificate, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Certificate, error)
	List(ctx context.Context, tx *gorm.DB, f CertificateFilter) ([]*types.Certificate, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	repoLog := baseLog.With("repo", "CertificateRepo")
	return &certificateRepo{db: db, log: repoLog}
}

func (r *certificateRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Certificate) ([]*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Certificate{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *certificateRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Certificate
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

func (r *certificateRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Certificate
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("completion_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *certificateRepo) List(ctx context.Context, tx *gorm.DB, f CertificateFilter) ([]*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.Certificate{})
	if f.Revoked != nil {
		q = q.Where("revoked = ?", *f.Revoked)
	}
	if f.CreditType != "" {
		q = q.Where("credit_type = ?", f.CreditType)
	}
	if f.UserID != uuid.Nil {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.CourseID != uuid.Nil {
		q = q.Where("course_id = ?", f.CourseID)
	}

	var results []*types.Certificate
	if err := q.Order("completion_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *certificateRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Certificate{}).
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

type CertificateEditRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.CertificateEdit) ([]*types.CertificateEdit, error)
	GetByCertificateIDs(ctx context.Context, tx *gorm.DB, certificateIDs []uuid.UUID) ([]*types.CertificateEdit, error)
}

type certificateEditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateEditRepo(db *gorm.DB, baseLog *logger.Logger) CertificateEditRepo {
	repoLog := baseLog.With("repo", "CertificateEditRepo")
	return &certificateEditRepo{db: db, log: repoLog}
}

func (r *certificateEditRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.CertificateEdit) ([]*types.CertificateEdit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.CertificateEdit{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *certificateEditRepo) GetByCertificateIDs(ctx context.Context, tx *gorm.DB, certificateIDs []uuid.UUID) ([]*types.CertificateEdit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CertificateEdit
	if len(certificateIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("certificate_id IN ?", certificateIDs).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
