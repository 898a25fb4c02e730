package app

import (
	"time"

	"github.com/coursebridge/coursebridge-backend/internal/platform/envutil"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port                string
	DataBackend         string
	JWTSecretKey        string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	StripeSigningSecret string
}

func LoadConfig() Config {
	accessTTLSeconds := envutil.Int("ACCESS_TOKEN_TTL", 3600)
	refreshTTLSeconds := envutil.Int("REFRESH_TOKEN_TTL", 86400)
	return Config{
		Port:                envutil.Get("PORT", "8080"),
		DataBackend:         envutil.Get("DATA_BACKEND", BackendPostgres),
		JWTSecretKey:        envutil.Get("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL:      time.Duration(accessTTLSeconds) * time.Second,
		RefreshTokenTTL:     time.Duration(refreshTTLSeconds) * time.Second,
		StripeSigningSecret: envutil.Get("STRIPE_WEBHOOK_SECRET", ""),
	}
}
