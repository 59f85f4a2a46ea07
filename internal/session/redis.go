package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

const redisKeyPrefix = "medreport:session:"

// RedisStore shares sessions between replicas. Entries expire after ttl of
// inactivity.
type RedisStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStore(log *logger.Logger, opts RedisOptions) (*RedisStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Addr == "" {
		return nil, errors.New("redis store: addr required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStoreWithClient(log, rdb, opts.TTL), nil
}

func newRedisStoreWithClient(log *logger.Logger, rdb *goredis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{log: log.With("service", "RedisSessionStore"), rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrNotFound
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+s.ID, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.rdb.GetEx(ctx, redisKeyPrefix+id, r.ttl).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		r.log.Warn("dropping undecodable session", "session_id", id, "error", err)
		_ = r.rdb.Del(ctx, redisKeyPrefix+id).Err()
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }
