package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type RoleSyncItem struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleSyncReport accumulates per-item outcomes; the batch never aborts on a
// single bad row.
type RoleSyncReport struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	List(ctx context.Context) ([]*types.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role string) (*types.User, error)
	BulkRoleSync(ctx context.Context, items []RoleSyncItem) (*RoleSyncReport, error)
}

type userService struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewUserService(baseLog *logger.Logger, users repos.UserRepo) UserService {
	serviceLog := baseLog.With("service", "UserService")
	return &userService{log: serviceLog, users: users}
}

func (s *userService) GetMe(ctx context.Context) (*types.User, error) {
	const op = "UserService.GetMe"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}

	users, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "user not found", nil)
	}
	return users[0], nil
}

func (s *userService) List(ctx context.Context) ([]*types.User, error) {
	const op = "UserService.List"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}

	users, err := s.users.List(ctx, nil)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return users, nil
}

func validRole(role string) bool {
	return role == types.RoleUser || role == types.RoleAdmin
}

func (s *userService) SetRole(ctx context.Context, userID uuid.UUID, role string) (*types.User, error) {
	const op = "UserService.SetRole"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if !validRole(role) {
		return nil, workflow.NewError(workflow.CodeValidation, op, fmt.Sprintf("unknown role %q", role), nil)
	}

	if err := s.users.UpdateRole(ctx, nil, userID, role); err != nil {
		if isRecordNotFound(err) {
			return nil, workflow.NewError(workflow.CodeNotFound, op, "user not found", nil)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	users, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "user not found", nil)
	}

	s.log.Info("role updated", "user_id", userID, "role", role)
	return users[0], nil
}

func (s *userService) BulkRoleSync(ctx context.Context, items []RoleSyncItem) (*RoleSyncReport, error) {
	const op = "UserService.BulkRoleSync"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}

	report := &RoleSyncReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, item := range items {
		item := item
		g.Go(func() error {
			msg := s.syncOne(gctx, item)
			mu.Lock()
			defer mu.Unlock()
			if msg == "" {
				report.Updated++
			} else {
				report.Errors = append(report.Errors, msg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("bulk role sync finished", "updated", report.Updated, "errors", len(report.Errors))
	return report, nil
}

// syncOne returns an empty string on success, otherwise a per-item error
// message for the report.
func (s *userService) syncOne(ctx context.Context, item RoleSyncItem) string {
	email := strings.ToLower(strings.TrimSpace(item.Email))
	if email == "" {
		return "item with empty email skipped"
	}
	if !validRole(item.Role) {
		return fmt.Sprintf("%s: unknown role %q", email, item.Role)
	}

	users, err := s.users.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return fmt.Sprintf("%s: lookup failed: %v", email, err)
	}
	if len(users) == 0 {
		return fmt.Sprintf("%s: no such user", email)
	}
	if users[0].Role == item.Role {
		return ""
	}
	if err := s.users.UpdateRole(ctx, nil, users[0].ID, item.Role); err != nil {
		return fmt.Sprintf("%s: update failed: %v", email, err)
	}
	return ""
}
