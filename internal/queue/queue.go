package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/envutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
)

const (
	BeatmapQueue = "pandemonium:beatmap_queue"
	PlayerQueue  = "pandemonium:player_queue"
)

// ErrEmpty is returned by Dequeue when the list has no pending ids.
var ErrEmpty = errors.New("queue empty")

// Queue is a FIFO of entity ids backed by a redis list. Enqueue skips ids
// already waiting in the list so a burst of activity does not schedule the
// same beatmapset twice.
type Queue interface {
	Enqueue(ctx context.Context, name string, id int64) error
	Dequeue(ctx context.Context, name string) (int64, error)
	Len(ctx context.Context, name string) (int64, error)
	StateStore
	Close() error
}

// StateStore keeps short-lived one-time tokens, currently only the oauth
// state nonce. Consume is destructive so a token cannot be replayed.
type StateStore interface {
	PutState(ctx context.Context, token string, ttl time.Duration) error
	ConsumeState(ctx context.Context, token string) (bool, error)
}

type redisQueue struct {
	log *logger.Logger
	rdb *goredis.Client
}

func New(log *logger.Logger) (Queue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := envutil.Str("REDIS_ADDR", "localhost:6379")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.Str("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisQueue{
		log: log.With("service", "RedisQueue"),
		rdb: rdb,
	}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(log *logger.Logger, rdb *goredis.Client) Queue {
	return &redisQueue{log: log.With("service", "RedisQueue"), rdb: rdb}
}

func (q *redisQueue) Enqueue(ctx context.Context, name string, id int64) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("queue not initialized")
	}
	member := strconv.FormatInt(id, 10)

	_, err := q.rdb.LPos(ctx, name, member, goredis.LPosArgs{}).Result()
	if err == nil {
		return nil
	}
	if !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("queue lpos: %w", err)
	}

	if err := q.rdb.RPush(ctx, name, member).Err(); err != nil {
		return fmt.Errorf("queue rpush: %w", err)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, name string) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("queue not initialized")
	}

	raw, err := q.rdb.LPop(ctx, name).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrEmpty
	}
	if err != nil {
		return 0, fmt.Errorf("queue lpop: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.log.Warn("dropping malformed queue member", "queue", name, "member", raw)
		return 0, ErrEmpty
	}
	return id, nil
}

func (q *redisQueue) Len(ctx context.Context, name string) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("queue not initialized")
	}
	return q.rdb.LLen(ctx, name).Result()
}

func (q *redisQueue) PutState(ctx context.Context, token string, ttl time.Duration) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("queue not initialized")
	}
	return q.rdb.SetEx(ctx, stateKey(token), "1", ttl).Err()
}

func (q *redisQueue) ConsumeState(ctx context.Context, token string) (bool, error) {
	if q == nil || q.rdb == nil {
		return false, fmt.Errorf("queue not initialized")
	}
	_, err := q.rdb.GetDel(ctx, stateKey(token)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue getdel: %w", err)
	}
	return true, nil
}

func stateKey(token string) string {
	return "pandemonium:oauth_state:" + token
}

func (q *redisQueue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
