package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type CreateEnrollmentInput struct {
	UserID         uuid.UUID `json:"user_id"`
	CourseID       uuid.UUID `json:"course_id"`
	EnrollmentType string    `json:"enrollment_type"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
}

type CheckEnrollmentInput struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	CourseID uuid.UUID `json:"course_id"`
}

// EnrollmentCheck is the explicit enrolled/not-enrolled answer; Enrollment is
// nil when Enrolled is false.
type EnrollmentCheck struct {
	Enrolled   bool              `json:"enrolled"`
	Enrollment *types.Enrollment `json:"enrollment,omitempty"`
}

type ProgressUpdateInput struct {
	Progress  int   `json:"progress"`
	Completed *bool `json:"completed,omitempty"`
}

// ReconcileReport summarizes one identity reconciliation run. Per-record
// failures are collected rather than aborting the run.
type ReconcileReport struct {
	Email           string    `json:"email"`
	CanonicalUserID uuid.UUID `json:"canonical_user_id"`
	Fixed           int       `json:"fixed"`
	Errors          []string  `json:"errors,omitempty"`
}

type EnrollmentService interface {
	Create(ctx context.Context, in CreateEnrollmentInput) (*types.Enrollment, error)
	Check(ctx context.Context, in CheckEnrollmentInput) (*EnrollmentCheck, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Enrollment, error)
	UpdateProgress(ctx context.Context, enrollmentID uuid.UUID, in ProgressUpdateInput) (*types.Enrollment, error)
	UpdateStatus(ctx context.Context, enrollmentID uuid.UUID, status string) (*types.Enrollment, error)
	Delete(ctx context.Context, enrollmentID uuid.UUID) error
	ReconcileIdentity(ctx context.Context, email string) (*ReconcileReport, error)
}

type enrollmentService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	enrollments repos.EnrollmentRepo
	users       repos.UserRepo
	profiles    repos.ProfileRepo
	courses     repos.CourseRepo
}

func NewEnrollmentService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	enrollments repos.EnrollmentRepo,
	users repos.UserRepo,
	profiles repos.ProfileRepo,
	courses repos.CourseRepo,
) EnrollmentService {
	serviceLog := baseLog.With("service", "EnrollmentService")
	return &enrollmentService{
		log:         serviceLog,
		txRunner:    txRunner,
		enrollments: enrollments,
		users:       users,
		profiles:    profiles,
		courses:     courses,
	}
}

func validEnrollmentType(t string) bool {
	switch t {
	case types.EnrollmentTypeSelf, types.EnrollmentTypeAdmin, types.EnrollmentTypeGift, types.EnrollmentTypeComp:
		return true
	}
	return false
}

func validEnrollmentStatus(s string) bool {
	switch s {
	case types.EnrollmentStatusPending, types.EnrollmentStatusActive, types.EnrollmentStatusExpired, types.EnrollmentStatusRevoked:
		return true
	}
	return false
}

func (s *enrollmentService) Create(ctx context.Context, in CreateEnrollmentInput) (*types.Enrollment, error) {
	const op = "EnrollmentService.Create"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if in.UserID == uuid.Nil {
		in.UserID = rd.UserID
	}
	if !requestdata.IsAdmin(ctx) {
		if in.UserID != rd.UserID {
			return nil, workflow.NewError(workflow.CodeForbidden, op, "cannot enroll another user", nil)
		}
		in.EnrollmentType = types.EnrollmentTypeSelf
	}
	if in.CourseID == uuid.Nil {
		return nil, workflow.NewError(workflow.CodeValidation, op, "course id required", nil)
	}
	if in.EnrollmentType == "" {
		in.EnrollmentType = types.EnrollmentTypeSelf
	}
	if !validEnrollmentType(in.EnrollmentType) {
		return nil, workflow.NewError(workflow.CodeValidation, op, fmt.Sprintf("unknown enrollment type %q", in.EnrollmentType), nil)
	}
	if in.Status == "" {
		in.Status = types.EnrollmentStatusActive
	}
	if !validEnrollmentStatus(in.Status) {
		return nil, workflow.NewError(workflow.CodeValidation, op, fmt.Sprintf("unknown enrollment status %q", in.Status), nil)
	}

	users, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{in.UserID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "user not found", nil)
	}
	courses, err := s.courses.GetByIDs(ctx, nil, []uuid.UUID{in.CourseID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
	}

	existing, err := s.enrollments.GetByUserAndCourse(ctx, nil, in.UserID, in.CourseID)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if existing != nil {
		return nil, workflow.NewConflict(op, "user already enrolled in course", existing.ID)
	}

	enrollment := &types.Enrollment{
		UserID:         in.UserID,
		CourseID:       in.CourseID,
		Progress:       0,
		Completed:      false,
		EnrollmentType: in.EnrollmentType,
		Status:         in.Status,
		Notes:          in.Notes,
		EnrolledAt:     time.Now().UTC(),
	}
	if _, err := s.enrollments.Create(ctx, nil, []*types.Enrollment{enrollment}); err != nil {
		// A concurrent create can win between the existence check and the
		// insert; the unique index turns that race into a conflict.
		if repos.IsDuplicate(err) {
			raced, lookupErr := s.enrollments.GetByUserAndCourse(ctx, nil, in.UserID, in.CourseID)
			existingID := uuid.Nil
			if lookupErr == nil && raced != nil {
				existingID = raced.ID
			}
			return nil, workflow.NewConflict(op, "user already enrolled in course", existingID)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("enrollment created", "enrollment_id", enrollment.ID, "user_id", in.UserID, "course_id", in.CourseID)
	return enrollment, nil
}

func (s *enrollmentService) Check(ctx context.Context, in CheckEnrollmentInput) (*EnrollmentCheck, error) {
	const op = "EnrollmentService.Check"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if in.CourseID == uuid.Nil {
		return nil, workflow.NewError(workflow.CodeValidation, op, "course id required", nil)
	}

	candidateIDs, err := s.resolveUserIDs(ctx, in.UserID, in.Email)
	if err != nil {
		return nil, err
	}
	if len(candidateIDs) == 0 {
		return &EnrollmentCheck{Enrolled: false}, nil
	}
	if !requestdata.IsAdmin(ctx) && !containsID(candidateIDs, rd.UserID) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "cannot check another user's enrollment", nil)
	}

	for _, id := range candidateIDs {
		enrollment, err := s.enrollments.GetByUserAndCourse(ctx, nil, id, in.CourseID)
		if err != nil {
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
		if enrollment != nil {
			return &EnrollmentCheck{Enrolled: true, Enrollment: enrollment}, nil
		}
	}
	return &EnrollmentCheck{Enrolled: false}, nil
}

// resolveUserIDs collects every id the given user identifier may appear under:
// the canonical id, the legacy id carried on the user row, and the ids on
// matching profile rows.
func (s *enrollmentService) resolveUserIDs(ctx context.Context, userID uuid.UUID, email string) ([]uuid.UUID, error) {
	const op = "EnrollmentService.resolveUserIDs"

	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !containsID(ids, id) {
			ids = append(ids, id)
		}
	}

	if userID != uuid.Nil {
		add(userID)
		users, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{userID})
		if err != nil {
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
		if len(users) > 0 && users[0].LegacyID != nil {
			add(*users[0].LegacyID)
		}
		return ids, nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "user id or email required", nil)
	}

	users, err := s.users.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	for _, u := range users {
		add(u.ID)
		if u.LegacyID != nil {
			add(*u.LegacyID)
		}
	}

	profiles, err := s.profiles.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	for _, p := range profiles {
		add(p.UserID)
	}
	return ids, nil
}

func (s *enrollmentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Enrollment, error) {
	const op = "EnrollmentService.ListForUser"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if userID == uuid.Nil {
		userID = rd.UserID
	}
	if userID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "cannot list another user's enrollments", nil)
	}

	enrollments, err := s.enrollments.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return enrollments, nil
}

func (s *enrollmentService) UpdateProgress(ctx context.Context, enrollmentID uuid.UUID, in ProgressUpdateInput) (*types.Enrollment, error) {
	const op = "EnrollmentService.UpdateProgress"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "progress must be between 0 and 100", nil)
	}

	enrollment, err := s.getEnrollment(ctx, op, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.UserID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "not the enrollment owner", nil)
	}
	if types.EnrollmentStatusTerminal(enrollment.Status) {
		return nil, workflow.NewError(workflow.CodeInvariantViolation, op,
			fmt.Sprintf("enrollment is %s and no longer accepts progress", enrollment.Status), nil)
	}

	now := time.Now().UTC()
	completed := enrollment.Completed
	if in.Completed != nil {
		completed = *in.Completed
	}
	if in.Progress == 100 {
		completed = true
	}

	fields := map[string]interface{}{
		"progress":         in.Progress,
		"completed":        completed,
		"last_accessed_at": now,
		"updated_at":       now,
	}
	if completed && enrollment.CompletedAt == nil {
		fields["completed_at"] = now
	}

	if err := s.enrollments.Update(ctx, nil, enrollmentID, fields); err != nil {
		if isRecordNotFound(err) {
			return nil, workflow.NewError(workflow.CodeNotFound, op, "enrollment not found", nil)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return s.getEnrollment(ctx, op, enrollmentID)
}

func (s *enrollmentService) UpdateStatus(ctx context.Context, enrollmentID uuid.UUID, status string) (*types.Enrollment, error) {
	const op = "EnrollmentService.UpdateStatus"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if !validEnrollmentStatus(status) {
		return nil, workflow.NewError(workflow.CodeValidation, op, fmt.Sprintf("unknown enrollment status %q", status), nil)
	}

	enrollment, err := s.getEnrollment(ctx, op, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !types.EnrollmentStatusCanTransition(enrollment.Status, status) {
		return nil, workflow.NewError(workflow.CodeInvariantViolation, op,
			fmt.Sprintf("cannot transition enrollment from %s to %s", enrollment.Status, status), nil)
	}

	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if err := s.enrollments.Update(ctx, nil, enrollmentID, fields); err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("enrollment status updated", "enrollment_id", enrollmentID, "status", status)
	return s.getEnrollment(ctx, op, enrollmentID)
}

func (s *enrollmentService) Delete(ctx context.Context, enrollmentID uuid.UUID) error {
	const op = "EnrollmentService.Delete"

	if !requestdata.IsAdmin(ctx) {
		return workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if _, err := s.getEnrollment(ctx, op, enrollmentID); err != nil {
		return err
	}
	if err := s.enrollments.FullDeleteByIDs(ctx, nil, []uuid.UUID{enrollmentID}); err != nil {
		return workflow.Wrap(workflow.CodeInternal, op, err)
	}
	s.log.Info("enrollment deleted", "enrollment_id", enrollmentID)
	return nil
}

// ReconcileIdentity re-points enrollments recorded under a stale identity
// (legacy user id or a profile row's user id) at the canonical user row for
// the email. Individual failures are reported and skipped.
func (s *enrollmentService) ReconcileIdentity(ctx context.Context, email string) (*ReconcileReport, error) {
	const op = "EnrollmentService.ReconcileIdentity"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "email required", nil)
	}

	users, err := s.users.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "no user for email", nil)
	}
	canonical := users[0]

	var staleIDs []uuid.UUID
	if canonical.LegacyID != nil && *canonical.LegacyID != canonical.ID {
		staleIDs = append(staleIDs, *canonical.LegacyID)
	}
	profiles, err := s.profiles.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	for _, p := range profiles {
		if p.UserID != canonical.ID && !containsID(staleIDs, p.UserID) {
			staleIDs = append(staleIDs, p.UserID)
		}
	}

	report := &ReconcileReport{Email: email, CanonicalUserID: canonical.ID}
	if len(staleIDs) == 0 {
		return report, nil
	}

	stale, err := s.enrollments.GetByUserIDs(ctx, nil, staleIDs)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	now := time.Now().UTC()
	for _, e := range stale {
		existing, err := s.enrollments.GetByUserAndCourse(ctx, nil, canonical.ID, e.CourseID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("enrollment %s: lookup failed: %v", e.ID, err))
			continue
		}
		if existing != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("enrollment %s: canonical user already enrolled in course %s", e.ID, e.CourseID))
			continue
		}
		err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
			return s.enrollments.Update(ctx, tx, e.ID, map[string]interface{}{
				"user_id":    canonical.ID,
				"updated_at": now,
			})
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("enrollment %s: update failed: %v", e.ID, err))
			continue
		}
		report.Fixed++
	}

	s.log.Info("identity reconciled", "email", email, "fixed", report.Fixed, "errors", len(report.Errors))
	return report, nil
}

func (s *enrollmentService) getEnrollment(ctx context.Context, op string, id uuid.UUID) (*types.Enrollment, error) {
	enrollments, err := s.enrollments.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(enrollments) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "enrollment not found", nil)
	}
	return enrollments[0], nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
