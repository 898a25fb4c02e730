package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

func TestSetRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)

	_, err := env.users.SetRole(userCtx(user.ID), user.ID, types.RoleAdmin)
	if !workflow.IsCode(err, workflow.CodeForbidden) {
		t.Fatalf("non-admin caller: expected forbidden, got %v", err)
	}

	_, err = env.users.SetRole(adminCtx(admin.ID), user.ID, "superuser")
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("unknown role: expected validation error, got %v", err)
	}

	_, err = env.users.SetRole(adminCtx(admin.ID), uuid.New(), types.RoleAdmin)
	if !workflow.IsCode(err, workflow.CodeNotFound) {
		t.Fatalf("unknown user: expected not found, got %v", err)
	}

	updated, err := env.users.SetRole(adminCtx(admin.ID), user.ID, types.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if updated.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %s", updated.Role)
	}
}

func TestBulkRoleSyncContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin)
	a := env.seedUser(t, "a@example.com", types.RoleUser)
	b := env.seedUser(t, "b@example.com", types.RoleUser)

	report, err := env.users.BulkRoleSync(adminCtx(admin.ID), []RoleSyncItem{
		{Email: "a@example.com", Role: types.RoleAdmin},
		{Email: "missing@example.com", Role: types.RoleUser},
		{Email: "b@example.com", Role: "superuser"},
		{Email: "  B@Example.com ", Role: types.RoleAdmin},
		{Email: "", Role: types.RoleUser},
	})
	if err != nil {
		t.Fatalf("BulkRoleSync: %v", err)
	}

	if report.Updated != 2 {
		t.Fatalf("expected 2 updated, got %d (errors: %v)", report.Updated, report.Errors)
	}
	if len(report.Errors) != 3 {
		t.Fatalf("expected 3 per-item errors, got %v", report.Errors)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		users, err := env.store.Users().GetByIDs(adminCtx(admin.ID), nil, []uuid.UUID{id})
		if err != nil || len(users) != 1 {
			t.Fatalf("reload user: err=%v len=%d", err, len(users))
		}
		if users[0].Role != types.RoleAdmin {
			t.Fatalf("user %s: expected admin role, got %s", users[0].Email, users[0].Role)
		}
	}
}

func TestBulkRoleSyncRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)

	_, err := env.users.BulkRoleSync(userCtx(user.ID), []RoleSyncItem{
		{Email: "learner@example.com", Role: types.RoleAdmin},
	})
	if !workflow.IsCode(err, workflow.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
