package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// AuthConfig carries token settings injected at startup.
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenPair is the access/refresh token set handed to clients on login and
// refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, *types.User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context) error
	// ContextFromToken validates an access token and attaches the caller's
	// identity to the returned context.
	ContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log      *logger.Logger
	cfg      AuthConfig
	txRunner db.TxRunner
	users    repos.UserRepo
	profiles repos.ProfileRepo
	tokens   repos.UserTokenRepo
}

func NewAuthService(
	baseLog *logger.Logger,
	cfg AuthConfig,
	txRunner db.TxRunner,
	users repos.UserRepo,
	profiles repos.ProfileRepo,
	tokens repos.UserTokenRepo,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	return &authService{
		log:      serviceLog,
		cfg:      cfg,
		txRunner: txRunner,
		users:    users,
		profiles: profiles,
		tokens:   tokens,
	}
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	const op = "AuthService.Register"

	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, workflow.NewError(workflow.CodeValidation, op, "valid email required", nil)
	}
	if len(in.Password) < 8 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "password must be at least 8 characters", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	user := &types.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      types.RoleUser,
	}

	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.Create(ctx, tx, []*types.User{user}); err != nil {
			return err
		}
		profile := &types.Profile{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: user.DisplayName(),
		}
		_, err := s.profiles.Create(ctx, tx, []*types.Profile{profile})
		return err
	})
	if err != nil {
		if repos.IsDuplicate(err) {
			existing, lookupErr := s.users.GetByEmails(ctx, nil, []string{email})
			existingID := uuid.Nil
			if lookupErr == nil && len(existing) > 0 {
				existingID = existing[0].ID
			}
			return nil, workflow.NewConflict(op, "email already registered", existingID)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("registered user", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, *types.User, error) {
	const op = "AuthService.Login"

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, workflow.NewError(workflow.CodeValidation, op, "email and password required", nil)
	}

	users, err := s.users.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, nil, workflow.NewError(workflow.CodeUnauthorized, op, "invalid credentials", nil)
	}
	user := users[0]

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, workflow.NewError(workflow.CodeUnauthorized, op, "invalid credentials", nil)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("user logged in", "user_id", user.ID)
	return pair, user, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "AuthService.Refresh"

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "refresh token required", nil)
	}

	rows, err := s.tokens.GetByTokens(ctx, nil, []string{refreshToken})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(rows) == 0 || time.Now().After(rows[0].ExpiresAt) {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "refresh token invalid or expired", nil)
	}

	users, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{rows[0].UserID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "refresh token invalid or expired", nil)
	}

	return s.issueTokens(ctx, users[0])
}

func (s *authService) Logout(ctx context.Context) error {
	const op = "AuthService.Logout"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if err := s.tokens.DeleteByUserIDs(ctx, nil, []uuid.UUID{rd.UserID}); err != nil {
		return workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return nil
}

func (s *authService) ContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	const op = "AuthService.ContextFromToken"

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return ctx, workflow.NewError(workflow.CodeUnauthorized, op, "invalid token", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, workflow.NewError(workflow.CodeUnauthorized, op, "invalid token subject", err)
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

// issueTokens rotates the refresh token: the previous session rows for the
// user are dropped before the new pair is stored.
func (s *authService) issueTokens(ctx context.Context, user *types.User) (*TokenPair, error) {
	const op = "AuthService.issueTokens"

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.AccessTTL)
	claims := &accessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	refresh := uuid.NewString()
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.tokens.DeleteByUserIDs(ctx, tx, []uuid.UUID{user.ID}); err != nil {
			return err
		}
		row := &types.UserToken{
			UserID:       user.ID,
			RefreshToken: refresh,
			ExpiresAt:    now.Add(s.cfg.RefreshTTL),
		}
		_, err := s.tokens.Create(ctx, tx, []*types.UserToken{row})
		return err
	})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
