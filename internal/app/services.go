package app

import (
	"github.com/coursebridge/coursebridge-backend/internal/clients/redis"
	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Course      services.CourseService
	Enrollment  services.EnrollmentService
	Exam        services.ExamService
	Certificate services.CertificateService
	Checkout    services.CheckoutService
}

func wireServices(
	log *logger.Logger,
	cfg Config,
	txRunner db.TxRunner,
	idempotency redis.IdempotencyStore,
	r Repos,
) Services {
	log.Info("Wiring services...")

	authCfg := services.AuthConfig{
		JWTSecret:  cfg.JWTSecretKey,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}

	certificateService := services.NewCertificateService(log, txRunner, r.Certificate, r.CertificateEdit, r.User, r.Course, r.Enrollment)

	return Services{
		Auth:        services.NewAuthService(log, authCfg, txRunner, r.User, r.Profile, r.UserToken),
		User:        services.NewUserService(log, r.User),
		Course:      services.NewCourseService(log, txRunner, r.Course),
		Enrollment:  services.NewEnrollmentService(log, txRunner, r.Enrollment, r.User, r.Profile, r.Course),
		Exam:        services.NewExamService(log, txRunner, r.Exam, r.ExamQuestion, r.ExamAttempt, r.ExamAnswer, r.Enrollment, certificateService),
		Certificate: certificateService,
		Checkout:    services.NewCheckoutService(log, txRunner, idempotency, r.User, r.Profile, r.Course, r.Enrollment),
	}
}
