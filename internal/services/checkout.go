package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/clients/redis"
	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// CheckoutCompletedInput carries the fields extracted from a verified
// checkout.session.completed event. CourseSKU comes from the session
// metadata.
type CheckoutCompletedInput struct {
	EventID       string
	CustomerEmail string
	CourseSKU     string
}

// CheckoutResult reports what the webhook did with the event.
type CheckoutResult struct {
	Enrollment *types.Enrollment `json:"enrollment,omitempty"`
	Duplicate  bool              `json:"duplicate"`
	Replay     bool              `json:"replay"`
}

type CheckoutService interface {
	// HandleCheckoutCompleted provisions the purchasing user when unknown and
	// enrolls them in the purchased course. Replays and already-enrolled
	// conflicts are acknowledged as success so the payment provider stops
	// retrying.
	HandleCheckoutCompleted(ctx context.Context, in CheckoutCompletedInput) (*CheckoutResult, error)
}

type checkoutService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	idempotency redis.IdempotencyStore
	users       repos.UserRepo
	profiles    repos.ProfileRepo
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
}

func NewCheckoutService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	idempotency redis.IdempotencyStore,
	users repos.UserRepo,
	profiles repos.ProfileRepo,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
) CheckoutService {
	serviceLog := baseLog.With("service", "CheckoutService")
	return &checkoutService{
		log:         serviceLog,
		txRunner:    txRunner,
		idempotency: idempotency,
		users:       users,
		profiles:    profiles,
		courses:     courses,
		enrollments: enrollments,
	}
}

func (s *checkoutService) HandleCheckoutCompleted(ctx context.Context, in CheckoutCompletedInput) (*CheckoutResult, error) {
	const op = "CheckoutService.HandleCheckoutCompleted"

	email := strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	sku := strings.TrimSpace(in.CourseSKU)
	if email == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "customer email missing from event", nil)
	}
	if sku == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "course sku missing from event metadata", nil)
	}

	if s.idempotency != nil && in.EventID != "" {
		first, err := s.idempotency.FirstSeen(ctx, "checkout:"+in.EventID)
		if err != nil {
			// Degrade to at-least-once; the enrollment unique index still
			// prevents duplicate rows.
			s.log.Warn("idempotency check failed, continuing", "event_id", in.EventID, "error", err)
		} else if !first {
			s.log.Info("replayed checkout event acknowledged", "event_id", in.EventID)
			return &CheckoutResult{Replay: true}, nil
		}
	}

	courses, err := s.courses.GetBySKUs(ctx, nil, []string{sku})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "no course for sku "+sku, nil)
	}
	course := courses[0]

	user, err := s.findOrProvisionUser(ctx, email)
	if err != nil {
		return nil, err
	}

	existing, err := s.enrollments.GetByUserAndCourse(ctx, nil, user.ID, course.ID)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if existing != nil {
		s.log.Info("checkout for already-enrolled user acknowledged",
			"user_id", user.ID, "course_id", course.ID, "enrollment_id", existing.ID)
		return &CheckoutResult{Enrollment: existing, Duplicate: true}, nil
	}

	enrollment := &types.Enrollment{
		UserID:         user.ID,
		CourseID:       course.ID,
		EnrollmentType: types.EnrollmentTypeSelf,
		Status:         types.EnrollmentStatusActive,
		EnrolledAt:     time.Now().UTC(),
	}
	if _, err := s.enrollments.Create(ctx, nil, []*types.Enrollment{enrollment}); err != nil {
		if repos.IsDuplicate(err) {
			raced, lookupErr := s.enrollments.GetByUserAndCourse(ctx, nil, user.ID, course.ID)
			if lookupErr == nil && raced != nil {
				return &CheckoutResult{Enrollment: raced, Duplicate: true}, nil
			}
			return &CheckoutResult{Duplicate: true}, nil
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("checkout enrollment created",
		"event_id", in.EventID, "user_id", user.ID, "course_id", course.ID, "enrollment_id", enrollment.ID)
	return &CheckoutResult{Enrollment: enrollment}, nil
}

// findOrProvisionUser looks the purchaser up by email and creates a minimal
// account when none exists. The generated password is unusable until the user
// runs a reset flow.
func (s *checkoutService) findOrProvisionUser(ctx context.Context, email string) (*types.User, error) {
	const op = "CheckoutService.findOrProvisionUser"

	users, err := s.users.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) > 0 {
		return users[0], nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	user := &types.User{
		Email:    email,
		Password: string(hashed),
		Role:     types.RoleUser,
	}
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.Create(ctx, tx, []*types.User{user}); err != nil {
			return err
		}
		profile := &types.Profile{UserID: user.ID, Email: email}
		_, err := s.profiles.Create(ctx, tx, []*types.Profile{profile})
		return err
	})
	if err != nil {
		if repos.IsDuplicate(err) {
			// Concurrent webhook delivery provisioned the user first.
			raced, lookupErr := s.users.GetByEmails(ctx, nil, []string{email})
			if lookupErr == nil && len(raced) > 0 {
				return raced[0], nil
			}
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("provisioned user from checkout", "user_id", user.ID, "email", email)
	return user, nil
}
