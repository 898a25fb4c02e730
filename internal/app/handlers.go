package app

import (
	"github.com/coursebridge/coursebridge-backend/internal/handlers"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Course      *handlers.CourseHandler
	Enrollment  *handlers.EnrollmentHandler
	Exam        *handlers.ExamHandler
	Certificate *handlers.CertificateHandler
	Webhook     *handlers.WebhookHandler
}

func wireHandlers(log *logger.Logger, cfg Config, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:        handlers.NewAuthHandler(s.Auth),
		User:        handlers.NewUserHandler(s.User),
		Course:      handlers.NewCourseHandler(s.Course, s.Exam),
		Enrollment:  handlers.NewEnrollmentHandler(s.Enrollment),
		Exam:        handlers.NewExamHandler(s.Exam),
		Certificate: handlers.NewCertificateHandler(s.Certificate),
		Webhook:     handlers.NewWebhookHandler(log, s.Checkout, cfg.StripeSigningSecret),
	}
}
