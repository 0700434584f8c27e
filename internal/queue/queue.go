// Package queue is a Redis-backed job queue with delayed retries and a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job is one unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// NewJob encodes payload into a job allowed maxAttempts attempts.
func NewJob(name string, payload any, maxAttempts int) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Job{
		ID:          uuid.NewString(),
		Name:        name,
		Payload:     raw,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Enqueuer accepts jobs for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// Backoff returns base·2^(attempts-1), the delay before retrying a job that
// has failed attempts times.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return base << (attempts - 1)
}

// RedisQueue keeps ready jobs in a list, delayed jobs in a sorted set scored by
// due time in milliseconds, and exhausted jobs in a dead-letter list.
type RedisQueue struct {
	rdb     *redis.Client
	ready   string
	delayed string
	dead    string
}

func NewRedisQueue(rdb *redis.Client, ready, delayed, dead string) *RedisQueue {
	return &RedisQueue{rdb: rdb, ready: ready, delayed: delayed, dead: dead}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.RPush(ctx, q.ready, raw).Err()
}

// Dequeue blocks up to timeout for the next ready job. It returns nil, nil on timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.ready).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// ScheduleRetry parks job until at.
func (q *RedisQueue) ScheduleRetry(ctx context.Context, job *Job, at time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.ZAdd(ctx, q.delayed, redis.Z{Score: float64(at.UnixMilli()), Member: raw}).Err()
}

// PromoteDue moves every delayed job due at or before now back to the ready list.
// A member is only pushed by the caller that removed it, so concurrent promoters
// never duplicate a job.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read delayed jobs: %w", err)
	}

	promoted := 0
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.delayed, m).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim delayed job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.RPush(ctx, q.ready, m).Err(); err != nil {
			return promoted, fmt.Errorf("requeue delayed job: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// DeadLetter stores a job that exhausted its attempts.
func (q *RedisQueue) DeadLetter(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.RPush(ctx, q.dead, raw).Err()
}

// Len reports the number of ready, delayed and dead jobs.
func (q *RedisQueue) Len(ctx context.Context) (ready, delayed, dead int64, err error) {
	pipe := q.rdb.Pipeline()
	r := pipe.LLen(ctx, q.ready)
	d := pipe.ZCard(ctx, q.delayed)
	x := pipe.LLen(ctx, q.dead)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return r.Val(), d.Val(), x.Val(), nil
}
