package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos/testutil"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

func TestEnrollmentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	userID := uuid.New()
	courseID := uuid.New()
	now := time.Now().UTC()

	first := &types.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentType: types.EnrollmentTypeSelf,
		Status:         types.EnrollmentStatusActive,
		EnrolledAt:     now,
	}
	if _, err := repo.Create(ctx, tx, []*types.Enrollment{first}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatalf("Create: id not assigned")
	}

	got, err := repo.GetByUserAndCourse(ctx, tx, userID, courseID)
	if err != nil {
		t.Fatalf("GetByUserAndCourse: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("GetByUserAndCourse: expected %s, got %+v", first.ID, got)
	}

	missing, err := repo.GetByUserAndCourse(ctx, tx, userID, uuid.New())
	if err != nil {
		t.Fatalf("GetByUserAndCourse (absent): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByUserAndCourse (absent): expected nil, got %+v", missing)
	}

	if err := repo.Update(ctx, tx, first.ID, map[string]interface{}{
		"progress":  75,
		"completed": false,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{first.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	if rows[0].Progress != 75 {
		t.Fatalf("Update: expected progress 75, got %d", rows[0].Progress)
	}

	if err := repo.Update(ctx, tx, uuid.New(), map[string]interface{}{"progress": 1}); err == nil {
		t.Fatalf("Update on missing row: expected error")
	}

	// Last: the unique violation aborts the transaction, so nothing else can
	// run on it afterwards.
	second := &types.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentType: types.EnrollmentTypeAdmin,
		Status:         types.EnrollmentStatusActive,
		EnrolledAt:     now,
	}
	if _, err := repo.Create(ctx, tx, []*types.Enrollment{second}); !IsDuplicate(err) {
		t.Fatalf("Create duplicate: expected unique violation, got %v", err)
	}
}
