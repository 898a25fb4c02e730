package services

import (
	"context"
	"testing"

	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

func TestRegisterLoginRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, RegisterInput{
		Email:     " Learner@Example.com ",
		Password:  "hunter2hunter2",
		FirstName: "Jordan",
		LastName:  "Smith",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "learner@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.Password == "hunter2hunter2" {
		t.Fatalf("password stored in the clear")
	}
	if user.Role != types.RoleUser {
		t.Fatalf("expected default role, got %s", user.Role)
	}

	pair, loggedIn, err := env.auth.Login(ctx, "learner@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}

	authedCtx, err := env.auth.ContextFromToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authedCtx)
	if rd == nil || rd.UserID != user.ID || rd.Role != types.RoleUser {
		t.Fatalf("request data not attached: %+v", rd)
	}

	next, err := env.auth.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh must rotate the token")
	}

	// The old refresh token died with the rotation.
	if _, err := env.auth.Refresh(ctx, pair.RefreshToken); !workflow.IsCode(err, workflow.CodeUnauthorized) {
		t.Fatalf("stale refresh token: expected unauthorized, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = env.auth.Register(ctx, RegisterInput{Email: "Dup@Example.com", Password: "hunter2hunter2"})
	if !workflow.IsCode(err, workflow.CodeConflict) {
		t.Fatalf("duplicate register: expected conflict, got %v", err)
	}
	if got := workflow.ExistingIDOf(err); got != first.ID {
		t.Fatalf("conflict existing id: expected %s, got %s", first.ID, got)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "hunter2hunter2"},
		{Email: "not-an-email", Password: "hunter2hunter2"},
		{Email: "ok@example.com", Password: "short"},
	}
	for _, in := range cases {
		if _, err := env.auth.Register(ctx, in); !workflow.IsCode(err, workflow.CodeValidation) {
			t.Fatalf("Register(%q, %q): expected validation error, got %v", in.Email, in.Password, err)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.auth.Register(ctx, RegisterInput{Email: "learner@example.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, _, err := env.auth.Login(ctx, "learner@example.com", "wrong-password")
	if !workflow.IsCode(err, workflow.CodeUnauthorized) {
		t.Fatalf("wrong password: expected unauthorized, got %v", err)
	}

	_, _, err = env.auth.Login(ctx, "ghost@example.com", "hunter2hunter2")
	if !workflow.IsCode(err, workflow.CodeUnauthorized) {
		t.Fatalf("unknown email: expected unauthorized, got %v", err)
	}
}
