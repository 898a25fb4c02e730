package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

func TestAutoGeneratePerCreditType(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT001", map[string]float64{"CE": 4, "PDH": 6})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)
	ctx := context.Background()

	in := AutoGenerateInput{
		UserID:       user.ID,
		CourseID:     course.ID,
		EnrollmentID: enrollment.ID,
		ExamScore:    85,
		PassingScore: 70,
	}
	certs, err := env.certs.AutoGenerate(ctx, nil, in)
	if err != nil {
		t.Fatalf("AutoGenerate: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("expected one certificate per credit type, got %d", len(certs))
	}
	byType := map[string]*types.Certificate{}
	for _, cert := range certs {
		byType[cert.CreditType] = cert
		if cert.CertificateNumber == "" {
			t.Fatalf("certificate number not assigned")
		}
		if cert.RecipientName != user.Email {
			t.Fatalf("recipient fallback: expected email %s, got %s", user.Email, cert.RecipientName)
		}
	}
	if byType["CE"] == nil || byType["CE"].CreditsEarned != 4 {
		t.Fatalf("CE certificate missing or wrong credits: %+v", byType["CE"])
	}
	if byType["PDH"] == nil || byType["PDH"].CreditsEarned != 6 {
		t.Fatalf("PDH certificate missing or wrong credits: %+v", byType["PDH"])
	}

	// A second pass over the same attempt result mints nothing new.
	again, err := env.certs.AutoGenerate(ctx, nil, in)
	if err != nil {
		t.Fatalf("AutoGenerate (repeat): %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("repeat generation must be idempotent, got %d new", len(again))
	}
}

func TestGenerateForEnrollment(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT004", map[string]float64{"CE": 4, "PDH": 6})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)
	ctx := context.Background()

	if _, err := env.certs.GenerateForEnrollment(userCtx(user.ID), enrollment.ID); !workflow.IsCode(err, workflow.CodeForbidden) {
		t.Fatalf("non-admin caller: expected forbidden, got %v", err)
	}

	if _, err := env.certs.GenerateForEnrollment(adminCtx(admin.ID), enrollment.ID); !workflow.IsCode(err, workflow.CodeInvariantViolation) {
		t.Fatalf("no exam result recorded: expected invariant violation, got %v", err)
	}

	if err := env.store.Enrollments().Update(ctx, nil, enrollment.ID, map[string]interface{}{
		"exam_score":  85.0,
		"exam_passed": true,
	}); err != nil {
		t.Fatalf("record exam result: %v", err)
	}

	certs, err := env.certs.GenerateForEnrollment(adminCtx(admin.ID), enrollment.ID)
	if err != nil {
		t.Fatalf("GenerateForEnrollment: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("expected one certificate per credit type, got %d", len(certs))
	}

	again, err := env.certs.GenerateForEnrollment(adminCtx(admin.ID), enrollment.ID)
	if err != nil {
		t.Fatalf("GenerateForEnrollment (repeat): %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("repeat generation must be idempotent, got %d new", len(again))
	}
}

func TestAutoGenerateBelowPassing(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT002", map[string]float64{"CE": 4})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)
	ctx := context.Background()

	certs, err := env.certs.AutoGenerate(ctx, nil, AutoGenerateInput{
		UserID:       user.ID,
		CourseID:     course.ID,
		EnrollmentID: enrollment.ID,
		ExamScore:    69.9,
		PassingScore: 70,
	})
	if err != nil {
		t.Fatalf("AutoGenerate: %v", err)
	}
	if len(certs) != 0 {
		t.Fatalf("score below passing must mint nothing, got %d", len(certs))
	}

	rows, err := env.store.Certificates().GetByUserIDs(ctx, nil, []uuid.UUID{user.ID})
	if err != nil {
		t.Fatalf("list certificates: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no certificate rows, got %d", len(rows))
	}
}

func TestEditCertificateAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT003", map[string]float64{"CE": 4})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)
	ctx := adminCtx(admin.ID)

	certs, err := env.certs.AutoGenerate(ctx, nil, AutoGenerateInput{
		UserID: user.ID, CourseID: course.ID, EnrollmentID: enrollment.ID,
		ExamScore: 80, PassingScore: 70,
	})
	if err != nil || len(certs) != 1 {
		t.Fatalf("seed certificate: err=%v len=%d", err, len(certs))
	}
	cert := certs[0]

	updated, err := env.certs.Edit(ctx, EditCertificateInput{
		CertificateID: cert.ID,
		FieldName:     "recipient_name",
		NewValue:      "Jordan Smith",
		EditReason:    "name typo on intake form",
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.RecipientName != "Jordan Smith" {
		t.Fatalf("edit not applied: %s", updated.RecipientName)
	}
	if updated.ExamScore != 80 || updated.CreditsEarned != 4 {
		t.Fatalf("edit touched unrelated fields: %+v", updated)
	}

	edits, err := env.certs.ListEdits(ctx, cert.ID)
	if err != nil {
		t.Fatalf("ListEdits: %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("expected exactly one audit row, got %d", len(edits))
	}
	edit := edits[0]
	if edit.FieldName != "recipient_name" || edit.OldValue != user.Email || edit.NewValue != "Jordan Smith" {
		t.Fatalf("audit row wrong: %+v", edit)
	}
	if edit.EditedBy != admin.ID {
		t.Fatalf("audit row must record the editor")
	}

	_, err = env.certs.Edit(ctx, EditCertificateInput{
		CertificateID: cert.ID,
		FieldName:     "certificate_number",
		NewValue:      "CERT-2026-FORGED",
	})
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("editing a protected field: expected validation error, got %v", err)
	}

	_, err = env.certs.Edit(ctx, EditCertificateInput{
		CertificateID: cert.ID,
		FieldName:     "exam_score",
		NewValue:      "150",
	})
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("out-of-range score: expected validation error, got %v", err)
	}
}

func TestEditCertificateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT004", map[string]float64{"CE": 4})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)

	certs, err := env.certs.AutoGenerate(context.Background(), nil, AutoGenerateInput{
		UserID: user.ID, CourseID: course.ID, EnrollmentID: enrollment.ID,
		ExamScore: 80, PassingScore: 70,
	})
	if err != nil || len(certs) != 1 {
		t.Fatalf("seed certificate: err=%v len=%d", err, len(certs))
	}

	_, err = env.certs.Edit(userCtx(user.ID), EditCertificateInput{
		CertificateID: certs[0].ID,
		FieldName:     "recipient_name",
		NewValue:      "Someone Else",
	})
	if !workflow.IsCode(err, workflow.CodeForbidden) {
		t.Fatalf("expected forbidden for non-admin edit, got %v", err)
	}
}

func TestRevokeCertificate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin)
	user := env.seedUser(t, "learner@example.com", types.RoleUser)
	course := env.seedCourse(t, "CRT005", map[string]float64{"CE": 4})
	enrollment := env.seedEnrollment(t, user.ID, course.ID)
	ctx := adminCtx(admin.ID)

	certs, err := env.certs.AutoGenerate(ctx, nil, AutoGenerateInput{
		UserID: user.ID, CourseID: course.ID, EnrollmentID: enrollment.ID,
		ExamScore: 80, PassingScore: 70,
	})
	if err != nil || len(certs) != 1 {
		t.Fatalf("seed certificate: err=%v len=%d", err, len(certs))
	}
	cert := certs[0]

	_, err = env.certs.Revoke(ctx, cert.ID, "  ")
	if !workflow.IsCode(err, workflow.CodeValidation) {
		t.Fatalf("blank reason: expected validation error, got %v", err)
	}

	revoked, err := env.certs.Revoke(ctx, cert.ID, "issued against the wrong course")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked.Revoked || revoked.RevokedAt == nil || revoked.RevokedReason != "issued against the wrong course" {
		t.Fatalf("revocation fields not set: %+v", revoked)
	}

	_, err = env.certs.Revoke(ctx, cert.ID, "again")
	if !workflow.IsCode(err, workflow.CodeConflict) {
		t.Fatalf("re-revoke: expected conflict, got %v", err)
	}

	// Revoked certificates are frozen.
	_, err = env.certs.Edit(ctx, EditCertificateInput{
		CertificateID: cert.ID,
		FieldName:     "recipient_name",
		NewValue:      "New Name",
	})
	if !workflow.IsCode(err, workflow.CodeConflict) {
		t.Fatalf("edit after revoke: expected conflict, got %v", err)
	}

	edits, err := env.certs.ListEdits(ctx, cert.ID)
	if err != nil {
		t.Fatalf("ListEdits: %v", err)
	}
	if len(edits) != 1 || edits[0].FieldName != "revoked" {
		t.Fatalf("expected a single revocation audit row, got %+v", edits)
	}

	// A fresh pass for the same course may mint a replacement.
	replacement, err := env.certs.AutoGenerate(ctx, nil, AutoGenerateInput{
		UserID: user.ID, CourseID: course.ID, EnrollmentID: enrollment.ID,
		ExamScore: 80, PassingScore: 70,
	})
	if err != nil {
		t.Fatalf("AutoGenerate after revoke: %v", err)
	}
	if len(replacement) != 1 {
		t.Fatalf("expected a replacement certificate, got %d", len(replacement))
	}
	if replacement[0].CertificateNumber == cert.CertificateNumber {
		t.Fatalf("replacement must carry a new number")
	}
}
