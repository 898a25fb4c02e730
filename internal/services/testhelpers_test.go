package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos/memory"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// testEnv wires the full service stack over the in-memory store so workflow
// semantics can be exercised without a database.
type testEnv struct {
	store       *memory.Store
	auth        AuthService
	users       UserService
	courses     CourseService
	enrollments EnrollmentService
	exams       ExamService
	certs       CertificateService
	checkout    CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	store := memory.NewStore()
	txRunner := db.NewNoopTxRunner()

	authCfg := AuthConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	certSvc := NewCertificateService(log, txRunner, store.Certificates(), store.CertificateEdits(), store.Users(), store.Courses(), store.Enrollments())

	return &testEnv{
		store:       store,
		auth:        NewAuthService(log, authCfg, txRunner, store.Users(), store.Profiles(), store.UserTokens()),
		users:       NewUserService(log, store.Users()),
		courses:     NewCourseService(log, txRunner, store.Courses()),
		enrollments: NewEnrollmentService(log, txRunner, store.Enrollments(), store.Users(), store.Profiles(), store.Courses()),
		exams:       NewExamService(log, txRunner, store.Exams(), store.ExamQuestions(), store.ExamAttempts(), store.ExamAnswers(), store.Enrollments(), certSvc),
		certs:       certSvc,
		checkout:    NewCheckoutService(log, txRunner, nil, store.Users(), store.Profiles(), store.Courses(), store.Enrollments()),
	}
}

func userCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: userID,
		Role:   types.RoleUser,
	})
}

func adminCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: userID,
		Role:   types.RoleAdmin,
	})
}

func (e *testEnv) seedUser(t *testing.T, email, role string) *types.User {
	t.Helper()
	user := &types.User{
		Email:    email,
		Password: "not-a-real-hash",
		Role:     role,
	}
	if _, err := e.store.Users().Create(context.Background(), nil, []*types.User{user}); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func (e *testEnv) seedCourse(t *testing.T, sku string, creditTypes map[string]float64) *types.Course {
	t.Helper()
	course := &types.Course{
		SKU:    sku,
		Title:  "Course " + sku,
		Active: true,
	}
	for creditType, amount := range creditTypes {
		course.Credits = append(course.Credits, types.CourseCredit{
			CreditType: creditType,
			Amount:     amount,
		})
	}
	if _, err := e.store.Courses().Create(context.Background(), nil, []*types.Course{course}); err != nil {
		t.Fatalf("seed course %s: %v", sku, err)
	}
	return course
}

func (e *testEnv) seedEnrollment(t *testing.T, userID, courseID uuid.UUID) *types.Enrollment {
	t.Helper()
	enrollment := &types.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentType: types.EnrollmentTypeSelf,
		Status:         types.EnrollmentStatusActive,
		EnrolledAt:     time.Now().UTC(),
	}
	if _, err := e.store.Enrollments().Create(context.Background(), nil, []*types.Enrollment{enrollment}); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	return enrollment
}

func (e *testEnv) seedExam(t *testing.T, courseID uuid.UUID, passingScore float64, attemptLimit *int, correctByPosition ...[]string) *types.Exam {
	t.Helper()
	exam := &types.Exam{
		CourseID:     courseID,
		Title:        "Final Exam",
		PassingScore: passingScore,
		AttemptLimit: attemptLimit,
	}
	for i, correct := range correctByPosition {
		raw, err := json.Marshal(correct)
		if err != nil {
			t.Fatalf("marshal correct options: %v", err)
		}
		exam.Questions = append(exam.Questions, types.ExamQuestion{
			Position:       i + 1,
			Prompt:         "Question",
			Options:        datatypes.JSON([]byte(`[{"key":"a"},{"key":"b"},{"key":"c"}]`)),
			CorrectOptions: datatypes.JSON(raw),
		})
	}
	if _, err := e.store.Exams().Create(context.Background(), nil, []*types.Exam{exam}); err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	return exam
}

func intPtr(v int) *int { return &v }
