package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/logging"
)

// RedisStore is a Redis-backed Store with graceful degradation. After
// maxFailures consecutive errors the circuit opens and operations fail
// fast until a background ping succeeds.
type RedisStore struct {
	client *redis.Client
	log    *logging.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewRedisStore connects to Redis. A failed initial ping returns the store
// in degraded mode rather than an error, so the engine can start without
// Redis and pick it up when it appears.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	store := &RedisStore{
		client:        client,
		log:           logging.WithComponent("cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		store.log.Warn("initial redis connection failed, starting degraded", "error", err)
		return store, nil
	}

	store.healthy = true
	store.lastCheck = time.Now()
	store.log.Info("redis connected", "address", cfg.Address)
	return store, nil
}

// Healthy reports whether the circuit is closed
func (s *RedisStore) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *RedisStore) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.log.Warn("circuit breaker open, redis marked unhealthy", "failures", s.failureCount)
		}
		s.healthy = false
	}
}

func (s *RedisStore) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.log.Info("circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth schedules a background ping once per checkInterval while the
// circuit is open
func (s *RedisStore) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// Get retrieves and unmarshals the cached value
func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.checkHealth()

	if !s.Healthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrMiss
		}
		s.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}
	s.recordSuccess()

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// Set marshals and stores the value with a TTL
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.checkHealth()

	if !s.Healthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	s.recordSuccess()
	return nil
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	s.checkHealth()

	if !s.Healthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}
	s.recordSuccess()
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
