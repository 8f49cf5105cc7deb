package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/whisprlink/relay/internal/config"
)

// Redis stores conversation state in Redis so webhook replicas share it.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedis(cfg config.RedisConfig, pendingTTL time.Duration) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{rdb: rdb, ttl: pendingTTL}, nil
}

func pendingKey(chatID int64) string { return "whispr:pending:" + strconv.FormatInt(chatID, 10) }
func lastKey(chatID int64) string    { return "whispr:last:" + strconv.FormatInt(chatID, 10) }

func (r *Redis) SetPending(ctx context.Context, chatID, target int64) error {
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, pendingKey(chatID), target, r.ttl)
	pipe.Set(ctx, lastKey(chatID), target, lastTargetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Pending(ctx context.Context, chatID int64) (int64, bool, error) {
	return r.get(ctx, pendingKey(chatID))
}

func (r *Redis) Clear(ctx context.Context, chatID int64) error {
	return r.rdb.Del(ctx, pendingKey(chatID)).Err()
}

func (r *Redis) LastTarget(ctx context.Context, chatID int64) (int64, bool, error) {
	return r.get(ctx, lastKey(chatID))
}

func (r *Redis) get(ctx context.Context, key string) (int64, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	target, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt state value %q: %w", val, err)
	}
	return target, true, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
