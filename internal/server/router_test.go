package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos/memory"
	"github.com/coursebridge/coursebridge-backend/internal/handlers"
	"github.com/coursebridge/coursebridge-backend/internal/middleware"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/services"
)

const testSigningSecret = "whsec_test"

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	store := memory.NewStore()
	txRunner := db.NewNoopTxRunner()

	authCfg := services.AuthConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
	authSvc := services.NewAuthService(log, authCfg, txRunner, store.Users(), store.Profiles(), store.UserTokens())
	certSvc := services.NewCertificateService(log, txRunner, store.Certificates(), store.CertificateEdits(), store.Users(), store.Courses(), store.Enrollments())
	examSvc := services.NewExamService(log, txRunner, store.Exams(), store.ExamQuestions(), store.ExamAttempts(), store.ExamAnswers(), store.Enrollments(), certSvc)
	courseSvc := services.NewCourseService(log, txRunner, store.Courses())
	enrollmentSvc := services.NewEnrollmentService(log, txRunner, store.Enrollments(), store.Users(), store.Profiles(), store.Courses())
	userSvc := services.NewUserService(log, store.Users())
	checkoutSvc := services.NewCheckoutService(log, txRunner, nil, store.Users(), store.Profiles(), store.Courses(), store.Enrollments())

	router := NewRouter(RouterConfig{
		AuthHandler:        handlers.NewAuthHandler(authSvc),
		AuthMiddleware:     middleware.NewAuthMiddleware(log, authSvc),
		UserHandler:        handlers.NewUserHandler(userSvc),
		CourseHandler:      handlers.NewCourseHandler(courseSvc, examSvc),
		EnrollmentHandler:  handlers.NewEnrollmentHandler(enrollmentSvc),
		ExamHandler:        handlers.NewExamHandler(examSvc),
		CertificateHandler: handlers.NewCertificateHandler(certSvc),
		WebhookHandler:     handlers.NewWebhookHandler(log, checkoutSvc, testSigningSecret),
	})
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// register + login, returning the access token and user id.
func signUp(t *testing.T, router *gin.Engine, email, password string) (string, string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/register", "", gin.H{
		"email": email, "password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var user struct {
		ID string `json:"id"`
	}
	decode(t, rec, &user)
	return login(t, router, email, password), user.ID
}

func login(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/login", "", gin.H{
		"email": email, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	decode(t, rec, &resp)
	return resp.Tokens.AccessToken
}

// promoteToAdmin flips the role directly in the store; the change takes
// effect on the next login.
func promoteToAdmin(t *testing.T, store *memory.Store, email string) {
	t.Helper()
	ctx := context.Background()
	users, err := store.Users().GetByEmails(ctx, nil, []string{email})
	if err != nil || len(users) != 1 {
		t.Fatalf("lookup %s: err=%v len=%d", email, err, len(users))
	}
	if err := store.Users().UpdateRole(ctx, nil, users[0].ID, "admin"); err != nil {
		t.Fatalf("promote %s: %v", email, err)
	}
}

func TestPurchaseToCertificateFlow(t *testing.T) {
	router, store := newTestRouter(t)

	learnerToken, _ := signUp(t, router, "learner@example.com", "hunter2hunter2")

	_, _ = signUp(t, router, "admin@example.com", "hunter2hunter2")
	promoteToAdmin(t, store, "admin@example.com")
	adminToken := login(t, router, "admin@example.com", "hunter2hunter2")

	// Admin publishes the course with two credit configurations.
	rec := doJSON(t, router, http.MethodPost, "/api/admin/courses", adminToken, gin.H{
		"sku":   "BHF001",
		"title": "Boiler Handling Fundamentals",
		"credits": []gin.H{
			{"credit_type": "CE", "amount": 4},
			{"credit_type": "PDH", "amount": 6},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create course: status %d body %s", rec.Code, rec.Body.String())
	}
	var course struct {
		ID string `json:"id"`
	}
	decode(t, rec, &course)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/courses/"+course.ID+"/exams", adminToken, gin.H{
		"title":         "Final Exam",
		"passing_score": 70,
		"questions": []gin.H{
			{
				"position":        1,
				"prompt":          "Which valve releases excess pressure?",
				"options":         json.RawMessage(`[{"key":"a","text":"Safety valve"},{"key":"b","text":"Check valve"}]`),
				"correct_options": []string{"a"},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exam: status %d body %s", rec.Code, rec.Body.String())
	}
	var exam struct {
		ID        string `json:"id"`
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	decode(t, rec, &exam)
	if len(exam.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(exam.Questions))
	}

	// Learner self-enrolls.
	rec = doJSON(t, router, http.MethodPost, "/api/enrollments", learnerToken, gin.H{
		"course_id": course.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: status %d body %s", rec.Code, rec.Body.String())
	}

	// Repeat enrollment conflicts and names the existing row.
	rec = doJSON(t, router, http.MethodPost, "/api/enrollments", learnerToken, gin.H{
		"course_id": course.ID,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-enroll: status %d body %s", rec.Code, rec.Body.String())
	}
	var conflict struct {
		Error struct {
			ExistingID string `json:"existing_id"`
		} `json:"error"`
	}
	decode(t, rec, &conflict)
	if conflict.Error.ExistingID == "" {
		t.Fatalf("conflict must carry existing_id: %s", rec.Body.String())
	}

	// Exam attempt, answer, completion.
	rec = doJSON(t, router, http.MethodPost, "/api/exams/"+exam.ID+"/attempts", learnerToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create attempt: status %d body %s", rec.Code, rec.Body.String())
	}
	var attempt struct {
		ID string `json:"id"`
	}
	decode(t, rec, &attempt)

	rec = doJSON(t, router, http.MethodPost, "/api/attempts/"+attempt.ID+"/answers", learnerToken, gin.H{
		"question_id":      exam.Questions[0].ID,
		"selected_options": []string{"a"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit answer: status %d body %s", rec.Code, rec.Body.String())
	}
	var answer struct {
		Correct bool `json:"correct"`
	}
	decode(t, rec, &answer)
	if !answer.Correct {
		t.Fatalf("expected correct answer")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/attempts/"+attempt.ID+"/complete", learnerToken, gin.H{
		"score": 85, "passed": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete attempt: status %d body %s", rec.Code, rec.Body.String())
	}
	var completion struct {
		Certificates []struct {
			CreditType        string  `json:"credit_type"`
			CertificateNumber string  `json:"certificate_number"`
			ExamScore         float64 `json:"exam_score"`
		} `json:"certificates"`
	}
	decode(t, rec, &completion)
	if len(completion.Certificates) != 2 {
		t.Fatalf("expected 2 certificates, got %d: %s", len(completion.Certificates), rec.Body.String())
	}
	for _, cert := range completion.Certificates {
		if cert.ExamScore != 85 || cert.CertificateNumber == "" {
			t.Fatalf("bad certificate: %+v", cert)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/certificates/mine", learnerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("certificates/mine: status %d", rec.Code)
	}
}

func TestWebhookEnrollsPurchaser(t *testing.T) {
	router, store := newTestRouter(t)

	_, _ = signUp(t, router, "admin@example.com", "hunter2hunter2")
	promoteToAdmin(t, store, "admin@example.com")
	adminToken := login(t, router, "admin@example.com", "hunter2hunter2")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/courses", adminToken, gin.H{
		"sku": "BHF001", "title": "Boiler Handling Fundamentals",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create course: status %d body %s", rec.Code, rec.Body.String())
	}
	var course struct {
		ID string `json:"id"`
	}
	decode(t, rec, &course)

	payload := fmt.Sprintf(`{
		"id": "evt_test_1",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"customer_email": "buyer@example.com",
			"metadata": {"course_sku": "BHF001"}
		}}
	}`, stripe.APIVersion)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", signStripePayload(payload, testSigningSecret))
	webhookRec := httptest.NewRecorder()
	router.ServeHTTP(webhookRec, req)
	if webhookRec.Code != http.StatusOK {
		t.Fatalf("webhook: status %d body %s", webhookRec.Code, webhookRec.Body.String())
	}
	var result struct {
		Enrollment *struct {
			ID string `json:"id"`
		} `json:"enrollment"`
		Duplicate bool `json:"duplicate"`
	}
	decode(t, webhookRec, &result)
	if result.Enrollment == nil || result.Duplicate {
		t.Fatalf("expected a fresh enrollment, got %s", webhookRec.Body.String())
	}

	// Admin can confirm access by purchase email.
	rec = doJSON(t, router, http.MethodGet,
		"/api/enrollments?courseId="+course.ID+"&email=buyer@example.com", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check enrollment: status %d body %s", rec.Code, rec.Body.String())
	}
	var check struct {
		Enrolled bool `json:"enrolled"`
	}
	decode(t, rec, &check)
	if !check.Enrolled {
		t.Fatalf("expected enrolled via webhook provisioning")
	}

	// A bad signature never reaches the checkout service.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	webhookRec = httptest.NewRecorder()
	router.ServeHTTP(webhookRec, req)
	if webhookRec.Code != http.StatusBadRequest {
		t.Fatalf("forged webhook: status %d", webhookRec.Code)
	}
}

// signStripePayload builds a Stripe-Signature header the verifier accepts.
func signStripePayload(payload, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestAuthBoundaries(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/user", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/user", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	learnerToken, _ := signUp(t, router, "learner@example.com", "hunter2hunter2")
	rec = doJSON(t, router, http.MethodGet, "/api/admin/users", learnerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin on admin route: status %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: status %d", rec.Code)
	}
}
