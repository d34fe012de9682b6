package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/faultline/internal/faultlog"
)

const (
	defaultRedisKey     = "faultline:archives"
	defaultRedisKeep    = 50
	defaultRedisTTL     = 7 * 24 * time.Hour
	redisConnectTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
	Key      string        `yaml:"key"`
	Keep     int           `yaml:"keep"` // newest snapshots retained
}

// redisCmdable is the subset of *redis.Client the sink uses.
type redisCmdable interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Close() error
}

// RedisSink appends snapshots as JSON to a capped Redis list.
type RedisSink struct {
	rdb  redisCmdable
	key  string
	keep int
	ttl  time.Duration
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisSink(rdb, cfg), nil
}

func newRedisSink(rdb redisCmdable, cfg RedisConfig) *RedisSink {
	s := &RedisSink{rdb: rdb, key: cfg.Key, keep: cfg.Keep, ttl: cfg.TTL}
	if s.key == "" {
		s.key = defaultRedisKey
	}
	if s.keep <= 0 {
		s.keep = defaultRedisKeep
	}
	if s.ttl <= 0 {
		s.ttl = defaultRedisTTL
	}
	return s
}

func (s *RedisSink) Name() string { return "redis" }

// Ship appends a, trims the list to the newest Keep entries and refreshes
// the TTL.
func (s *RedisSink) Ship(ctx context.Context, a faultlog.Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	if err := s.rdb.LTrim(ctx, s.key, int64(-s.keep), -1).Err(); err != nil {
		return fmt.Errorf("ltrim failed: %w", err)
	}
	if err := s.rdb.Expire(ctx, s.key, s.ttl).Err(); err != nil {
		return fmt.Errorf("expire failed: %w", err)
	}
	return nil
}

// Recent returns up to n snapshots, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int) ([]faultlog.Archive, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, s.key, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	out := make([]faultlog.Archive, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var a faultlog.Archive
		if err := json.Unmarshal([]byte(raw[i]), &a); err != nil {
			return nil, fmt.Errorf("failed to decode archive: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
