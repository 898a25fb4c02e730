package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/coursebridge/coursebridge-backend/internal/handlers"
	"github.com/coursebridge/coursebridge-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	UserHandler        *handlers.UserHandler
	CourseHandler      *handlers.CourseHandler
	EnrollmentHandler  *handlers.EnrollmentHandler
	ExamHandler        *handlers.ExamHandler
	CertificateHandler *handlers.CertificateHandler
	WebhookHandler     *handlers.WebhookHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "Stripe-Signature"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)
	router.POST("/webhooks/stripe", cfg.WebhookHandler.StripeWebhook)
	router.GET("/api/courses", cfg.CourseHandler.List)
	router.GET("/api/courses/:id", cfg.CourseHandler.Get)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)
	protected.GET("/user", cfg.UserHandler.GetMe)

	protected.POST("/enrollments", cfg.EnrollmentHandler.Create)
	protected.GET("/enrollments", cfg.EnrollmentHandler.Check)
	protected.GET("/enrollments/mine", cfg.EnrollmentHandler.ListMine)
	protected.PATCH("/enrollments/:id", cfg.EnrollmentHandler.Update)

	protected.GET("/courses/:id/exams", cfg.CourseHandler.ListExams)
	protected.GET("/exams/:id", cfg.ExamHandler.Get)
	protected.GET("/exams/:id/attempts", cfg.ExamHandler.ListAttempts)
	protected.POST("/exams/:id/attempts", cfg.ExamHandler.CreateAttempt)
	protected.POST("/attempts/:id/answers", cfg.ExamHandler.SubmitAnswer)
	protected.POST("/attempts/:id/complete", cfg.ExamHandler.CompleteAttempt)

	protected.GET("/certificates/mine", cfg.CertificateHandler.ListMine)
	protected.GET("/certificates/:id", cfg.CertificateHandler.Get)

	// ===============
	// || Admin     ||
	// ===============
	admin := protected.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAdmin())

	admin.GET("/users", cfg.UserHandler.List)
	admin.PUT("/users/:id/role", cfg.UserHandler.SetRole)
	admin.POST("/users/role-sync", cfg.UserHandler.BulkRoleSync)

	admin.POST("/courses", cfg.CourseHandler.Create)
	admin.PATCH("/courses/:id", cfg.CourseHandler.Update)
	admin.DELETE("/courses/:id", cfg.CourseHandler.Delete)
	admin.POST("/courses/:id/exams", cfg.CourseHandler.CreateExam)

	admin.DELETE("/enrollments/:id", cfg.EnrollmentHandler.Delete)
	admin.POST("/enrollments/reconcile", cfg.EnrollmentHandler.Reconcile)

	admin.GET("/certificates", cfg.CertificateHandler.ListAll)
	admin.POST("/certificates/generate", cfg.CertificateHandler.Generate)
	admin.PUT("/certificates/:id/edit", cfg.CertificateHandler.Edit)
	admin.PUT("/certificates/:id/revoke", cfg.CertificateHandler.Revoke)
	admin.GET("/certificates/:id/edits", cfg.CertificateHandler.ListEdits)

	return router
}
