// Package redis provides a Redis list-backed implementation of driven.JobQueue,
// so continuation jobs survive restarts and can be consumed by another process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// DefaultKey is the list jobs are pushed to.
const DefaultKey = "threadline:jobs"

// pollTimeout bounds each BRPOP so Dequeue notices Close and ctx cancellation.
// Redis does not accept blocking timeouts below one second from go-redis.
const pollTimeout = time.Second

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Key is the list name. Defaults to DefaultKey.
	Key string
}

// Queue pushes jobs with LPUSH and pops them with BRPOP, giving FIFO order.
type Queue struct {
	client     *goredis.Client
	key        string
	ownsClient bool
	closed     atomic.Bool
}

// NewQueue connects to Redis and verifies connectivity.
func NewQueue(ctx context.Context, opts Options) (*Queue, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", domain.ErrInvalidInput)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	q := NewQueueWithClient(client, opts.Key)
	q.ownsClient = true
	return q, nil
}

// NewQueueWithClient wraps an existing client. The caller keeps ownership of it.
func NewQueueWithClient(client *goredis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key}
}

// Enqueue adds a job.
func (q *Queue) Enqueue(ctx context.Context, job driven.Job) error {
	if q.closed.Load() {
		return domain.ErrQueueClosed
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (driven.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return driven.Job{}, err
		}

		if q.closed.Load() {
			payload, err := q.client.RPop(ctx, q.key).Bytes()
			if errors.Is(err, goredis.Nil) || errors.Is(err, goredis.ErrClosed) {
				return driven.Job{}, domain.ErrQueueClosed
			}
			if err != nil {
				return driven.Job{}, fmt.Errorf("redis rpop: %w", err)
			}
			return decodeJob(payload)
		}

		// BRPOP returns [key, value].
		res, err := q.client.BRPop(ctx, pollTimeout, q.key).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return driven.Job{}, ctx.Err()
			}
			return driven.Job{}, fmt.Errorf("redis brpop: %w", err)
		}
		if len(res) != 2 {
			return driven.Job{}, fmt.Errorf("redis brpop: unexpected reply of %d elements", len(res))
		}
		return decodeJob([]byte(res[1]))
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops accepting jobs and releases the client if the queue created it.
// Jobs already in the list stay there for the next consumer.
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	if q.ownsClient {
		return q.client.Close()
	}
	return nil
}

func decodeJob(payload []byte) (driven.Job, error) {
	var job driven.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return driven.Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
