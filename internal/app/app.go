package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/clients/redis"
	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos/memory"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	var (
		gdb      *gorm.DB
		reposet  Repos
		txRunner db.TxRunner
	)
	switch cfg.DataBackend {
	case BackendMemory:
		log.Info("Using in-memory data backend")
		reposet = wireMemoryRepos(memory.NewStore(), log)
		txRunner = db.NewNoopTxRunner()
	case BackendPostgres:
		pg, err := db.NewPostgresService(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := pg.AutoMigrateAll(); err != nil {
			log.Sync()
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
		gdb = pg.DB()
		reposet = wireRepos(gdb, log)
		txRunner = db.NewGormTxRunner(gdb)
	default:
		log.Sync()
		return nil, fmt.Errorf("unknown DATA_BACKEND %q", cfg.DataBackend)
	}

	var idempotency redis.IdempotencyStore
	if os.Getenv("REDIS_ADDR") != "" {
		idempotency, err = redis.NewIdempotencyStore(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, webhook replay protection disabled")
	}

	serviceset := wireServices(log, cfg, txRunner, idempotency, reposet)
	handlerset := wireHandlers(log, cfg, serviceset)
	middlewareset := wireMiddleware(log, serviceset)
	router := wireRouter(handlerset, middlewareset)

	return &App{
		Log:      log,
		DB:       gdb,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
