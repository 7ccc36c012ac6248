package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "basket:session:"
	fieldPrior  = "prior"
	fieldIssued = "issued_at"
)

// Redis keeps sessions as hashes under basket:session:<key> with a TTL.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string, log *logger.Logger) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.OrNop(log).Info("redis connected", "addr", addr)
	return rdb, nil
}

func NewRedis(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		rdb: rdb,
		ttl: ttl,
		log: logger.OrNop(log).With("store", "RedisSessions"),
	}
}

func (r *Redis) Issue(ctx context.Context) (string, error) {
	key := uuid.NewString()
	if err := r.write(ctx, key, time.Now()); err != nil {
		return "", err
	}
	return key, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, &domain.StorageError{Op: "session exists", Err: err}
	}
	return n > 0, nil
}

// Rotate drops the old key and issues a fresh one. The new key starts without
// a prior-key marker.
func (r *Redis) Rotate(ctx context.Context, key string) (Rotation, error) {
	n, err := r.rdb.Del(ctx, redisKey(key)).Result()
	if err != nil {
		return Rotation{}, &domain.StorageError{Op: "session rotate", Err: err}
	}
	if n == 0 {
		return Rotation{}, domain.ErrNotFound
	}
	next := uuid.NewString()
	if err := r.write(ctx, next, time.Now()); err != nil {
		return Rotation{}, err
	}
	r.log.Debug("session rotated")
	return Rotation{Old: key, New: next}, nil
}

func (r *Redis) PriorKey(ctx context.Context, key string) (string, error) {
	prior, err := r.rdb.HGet(ctx, redisKey(key), fieldPrior).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", &domain.StorageError{Op: "session prior", Err: err}
	}
	return prior, nil
}

func (r *Redis) SetPriorKey(ctx context.Context, key, prior string) error {
	ok, err := r.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	if err := r.rdb.HSet(ctx, redisKey(key), fieldPrior, prior).Err(); err != nil {
		return &domain.StorageError{Op: "session set prior", Err: err}
	}
	return nil
}

func (r *Redis) ClearPriorKey(ctx context.Context, key string) error {
	if err := r.rdb.HDel(ctx, redisKey(key), fieldPrior).Err(); err != nil {
		return &domain.StorageError{Op: "session clear prior", Err: err}
	}
	return nil
}

func (r *Redis) write(ctx context.Context, key string, issued time.Time) error {
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, redisKey(key), fieldIssued, issued.UTC().Format(time.RFC3339Nano))
		p.Expire(ctx, redisKey(key), r.ttl)
		return nil
	})
	if err != nil {
		return &domain.StorageError{Op: "session issue", Err: err}
	}
	return nil
}

func redisKey(key string) string {
	return keyPrefix + key
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)
