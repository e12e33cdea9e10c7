package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/campusiq/campusiq/internal/service/logger"
)

// RateLimitService bounds how fast a single actor can push commands into
// the pipeline. Submission is the only expensive entry point (it runs
// classification and impact queries), so limits are keyed per user.
type RateLimitService interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Increment(ctx context.Context, key string, window time.Duration) error
	GetAttempts(ctx context.Context, key string) (int, error)
}

type rateLimitService struct {
	redisClient *redis.Client
	log         logger.Logger
}

// Config configures the rate limiter.
type Config struct {
	Enabled  bool
	RedisURL string
}

// New creates a Redis-backed rate limit service, or a no-op one when
// disabled.
func New(cfg Config, log logger.Logger) (RateLimitService, error) {
	if !cfg.Enabled {
		log.Info(context.Background(), "rate limiting disabled", nil)
		return &noopRateLimitService{}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &rateLimitService{redisClient: redisClient, log: log}, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client, log logger.Logger) RateLimitService {
	return &rateLimitService{redisClient: client, log: log}
}

// CheckLimit reports whether the key is still under its limit
func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	current, err := s.GetAttempts(ctx, key)
	if err != nil {
		return false, err
	}
	return current < limit, nil
}

// Increment bumps the counter for the key, starting the window on first use
func (s *rateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	pipeline := s.redisClient.Pipeline()
	pipeline.Incr(ctx, key)
	pipeline.Expire(ctx, key, window)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.log.Error(ctx, "failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}
	return nil
}

// GetAttempts returns the current counter value for the key
func (s *rateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return count, nil
}

type noopRateLimitService struct{}

func (n *noopRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (n *noopRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return nil
}

func (n *noopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}
