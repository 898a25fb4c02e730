package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos/testutil"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

func TestCertificateRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewCertificateRepo(db, testutil.Logger(t))

	userID := uuid.New()
	courseID := uuid.New()
	now := time.Now().UTC()

	cert := &types.Certificate{
		UserID:            userID,
		CourseID:          courseID,
		EnrollmentID:      uuid.New(),
		RecipientName:     "Jordan Smith",
		CourseTitle:       "Boiler Handling Fundamentals",
		CertificateNumber: "CERT-2026-TESTDUP001",
		CreditType:        "CE",
		CreditsEarned:     4,
		CompletionDate:    now,
		ExamScore:         85,
	}
	if _, err := repo.Create(ctx, tx, []*types.Certificate{cert}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	revoked := true
	rows, err := repo.List(ctx, tx, CertificateFilter{UserID: userID, Revoked: &revoked})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("List revoked-only: expected none, got %d", len(rows))
	}

	notRevoked := false
	rows, err = repo.List(ctx, tx, CertificateFilter{UserID: userID, Revoked: &notRevoked, CreditType: "CE"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != cert.ID {
		t.Fatalf("List by filter: expected the created certificate, got %d rows", len(rows))
	}

	// Last: the unique violation aborts the transaction.
	clash := &types.Certificate{
		UserID:            uuid.New(),
		CourseID:          courseID,
		EnrollmentID:      uuid.New(),
		RecipientName:     "Someone Else",
		CourseTitle:       "Boiler Handling Fundamentals",
		CertificateNumber: "CERT-2026-TESTDUP001",
		CreditType:        "CE",
		CreditsEarned:     4,
		CompletionDate:    now,
		ExamScore:         90,
	}
	if _, err := repo.Create(ctx, tx, []*types.Certificate{clash}); !IsDuplicate(err) {
		t.Fatalf("Create with reused number: expected unique violation, got %v", err)
	}
}
