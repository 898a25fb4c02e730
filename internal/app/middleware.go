package app

import (
	"github.com/coursebridge/coursebridge-backend/internal/middleware"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, s.Auth),
	}
}
