package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// fakeIdempotencyStore remembers keys in-process, standing in for redis.
type fakeIdempotencyStore struct {
	seen map[string]bool
	err  error
}

func (f *fakeIdempotencyStore) FirstSeen(ctx context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func TestCheckoutProvisionsUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(t, "CHK001", nil)
	ctx := context.Background()

	result, err := env.checkout.HandleCheckoutCompleted(ctx, CheckoutCompletedInput{
		EventID:       "evt_1",
		CustomerEmail: "Buyer@Example.com",
		CourseSKU:     "CHK001",
	})
	if err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}
	if result.Duplicate || result.Replay || result.Enrollment == nil {
		t.Fatalf("expected a fresh enrollment, got %+v", result)
	}
	if result.Enrollment.CourseID != course.ID {
		t.Fatalf("enrollment points at wrong course")
	}

	// The email was normalized before the account was created.
	users, err := env.store.Users().GetByEmails(ctx, nil, []string{"buyer@example.com"})
	if err != nil || len(users) != 1 {
		t.Fatalf("provisioned user lookup: err=%v len=%d", err, len(users))
	}
	if users[0].Role != types.RoleUser {
		t.Fatalf("provisioned user role: got %s", users[0].Role)
	}
	profiles, err := env.store.Profiles().GetByUserIDs(ctx, nil, []uuid.UUID{users[0].ID})
	if err != nil || len(profiles) != 1 {
		t.Fatalf("provisioned profile lookup: err=%v len=%d", err, len(profiles))
	}
}

func TestCheckoutExistingEnrollmentAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "buyer@example.com", types.RoleUser)
	course := env.seedCourse(t, "CHK002", nil)
	existing := env.seedEnrollment(t, user.ID, course.ID)
	ctx := context.Background()

	result, err := env.checkout.HandleCheckoutCompleted(ctx, CheckoutCompletedInput{
		EventID:       "evt_2",
		CustomerEmail: "buyer@example.com",
		CourseSKU:     "CHK002",
	})
	if err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("expected duplicate acknowledgement, got %+v", result)
	}
	if result.Enrollment == nil || result.Enrollment.ID != existing.ID {
		t.Fatalf("duplicate result must carry the existing enrollment")
	}
}

func TestCheckoutReplayShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "CHK003", nil)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	checkout := NewCheckoutService(log, db.NewNoopTxRunner(), &fakeIdempotencyStore{},
		env.store.Users(), env.store.Profiles(), env.store.Courses(), env.store.Enrollments())

	ctx := context.Background()
	in := CheckoutCompletedInput{
		EventID:       "evt_3",
		CustomerEmail: "buyer@example.com",
		CourseSKU:     "CHK003",
	}

	first, err := checkout.HandleCheckoutCompleted(ctx, in)
	if err != nil || first.Replay {
		t.Fatalf("first delivery: err=%v replay=%v", err, first.Replay)
	}

	second, err := checkout.HandleCheckoutCompleted(ctx, in)
	if err != nil {
		t.Fatalf("replay delivery: %v", err)
	}
	if !second.Replay {
		t.Fatalf("expected replay short-circuit, got %+v", second)
	}
}

func TestCheckoutDegradesWhenIdempotencyFails(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "CHK004", nil)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	broken := &fakeIdempotencyStore{err: context.DeadlineExceeded}
	checkout := NewCheckoutService(log, db.NewNoopTxRunner(), broken,
		env.store.Users(), env.store.Profiles(), env.store.Courses(), env.store.Enrollments())

	result, err := checkout.HandleCheckoutCompleted(context.Background(), CheckoutCompletedInput{
		EventID:       "evt_4",
		CustomerEmail: "buyer@example.com",
		CourseSKU:     "CHK004",
	})
	if err != nil {
		t.Fatalf("expected processing despite idempotency failure, got %v", err)
	}
	if result.Enrollment == nil {
		t.Fatalf("expected an enrollment, got %+v", result)
	}
}

func TestCheckoutValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.checkout.HandleCheckoutCompleted(ctx, CheckoutCompletedInput{
		EventID:   "evt_5",
		CourseSKU: "CHK005",
	})
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("missing email: expected validation error, got %v", err)
	}

	_, err = env.checkout.HandleCheckoutCompleted(ctx, CheckoutCompletedInput{
		EventID:       "evt_6",
		CustomerEmail: "buyer@example.com",
	})
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("missing sku: expected validation error, got %v", err)
	}

	_, err = env.checkout.HandleCheckoutCompleted(ctx, CheckoutCompletedInput{
		EventID:       "evt_7",
		CustomerEmail: "buyer@example.com",
		CourseSKU:     "NOPE",
	})
	if !workflow.IsCode(err, workflow.CodeNotFound) {
		t.Fatalf("unknown sku: expected not found, got %v", err)
	}
}
