package app

import (
	"github.com/gin-gonic/gin"

	"github.com/coursebridge/coursebridge-backend/internal/server"
)

func wireRouter(h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthHandler:        h.Auth,
		AuthMiddleware:     m.Auth,
		UserHandler:        h.User,
		CourseHandler:      h.Course,
		EnrollmentHandler:  h.Enrollment,
		ExamHandler:        h.Exam,
		CertificateHandler: h.Certificate,
		WebhookHandler:     h.Webhook,
	})
}
