package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coursebridge/coursebridge-backend/internal/platform/envutil"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
)

// IdempotencyStore remembers externally-assigned event ids so webhook
// replays can be acknowledged without re-processing.
type IdempotencyStore interface {
	// FirstSeen returns true the first time key is recorded, false on replay.
	FirstSeen(ctx context.Context, key string) (bool, error)
}

type idempotencyStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewIdempotencyStore(log *logger.Logger) (IdempotencyStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlHours := envutil.Int("REDIS_IDEMPOTENCY_TTL_HOURS", 72)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &idempotencyStore{
		log: log.With("service", "RedisIdempotencyStore"),
		rdb: rdb,
		ttl: time.Duration(ttlHours) * time.Hour,
	}, nil
}

func (s *idempotencyStore) FirstSeen(ctx context.Context, key string) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, fmt.Errorf("idempotency store not initialized")
	}
	ok, err := s.rdb.SetNX(ctx, "idem:"+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
