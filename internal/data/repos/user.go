package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
	GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.User, error)
	UpdateRole(ctx context.Context, tx *gorm.DB, userID uuid.UUID, role string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(users) == 0 {
		return []*types.User{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.User
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.User
	if len(userEmails) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("email IN ?", userEmails).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.User
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, tx *gorm.DB, userID uuid.UUID, role string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type ProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Profile) ([]*types.Profile, error)
	GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.Profile, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Profile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	repoLog := baseLog.With("repo", "ProfileRepo")
	return &profileRepo{db: db, log: repoLog}
}

func (r *profileRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Profile) ([]*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Profile{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *profileRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Profile
	if len(emails) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("email IN ?", emails).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *profileRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Profile
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type UserTokenRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.UserToken) ([]*types.UserToken, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error)
	GetByTokens(ctx context.Context, tx *gorm.DB, tokens []string) ([]*types.UserToken, error)
	DeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error
}

type userTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	repoLog := baseLog.With("repo", "UserTokenRepo")
	return &userTokenRepo{db: db, log: repoLog}
}

func (r *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.UserToken) ([]*types.UserToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.UserToken{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *userTokenRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserToken
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userTokenRepo) GetByTokens(ctx context.Context, tx *gorm.DB, tokens []string) ([]*types.UserToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserToken
	if len(tokens) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("refresh_token IN ?", tokens).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userTokenRepo) DeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(userIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Delete(&types.UserToken{}).Error; err != nil {
		return err
	}
	return nil
}
