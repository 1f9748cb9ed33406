package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed queue: RPUSH to enqueue, BLPOP to dequeue.
type RedisQueue struct {
	Client redis.UniversalClient
	Key    string
	// Block bounds each BLPOP so workers notice shutdown promptly.
	Block time.Duration
}

// NewRedisQueue returns a queue on key with a one second BLPOP window.
func NewRedisQueue(c redis.UniversalClient, key string) *RedisQueue {
	return &RedisQueue{Client: c, Key: key, Block: time.Second}
}

// Enqueue appends job to the tail of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.Client.RPush(ctx, q.Key, b).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", job, err)
	}
	return nil
}

// Dequeue pops the head of the list, waiting up to Block.
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	block := q.Block
	if block <= 0 {
		block = time.Second
	}
	res, err := q.Client.BLPop(ctx, block, q.Key).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return Job{}, ctx.Err()
		}
		return Job{}, err
	}
	// BLPOP replies with [key, value].
	if len(res) != 2 {
		return Job{}, fmt.Errorf("dequeue: unexpected reply %v", res)
	}
	return decodeJob(res[1])
}

// Drain atomically removes and returns every queued job, oldest first.
func (q *RedisQueue) Drain(ctx context.Context) ([]Job, error) {
	var items *redis.StringSliceCmd
	_, err := q.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		items = p.LRange(ctx, q.Key, 0, -1)
		p.Del(ctx, q.Key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", q.Key, err)
	}
	out := make([]Job, 0, len(items.Val()))
	for _, raw := range items.Val() {
		job, err := decodeJob(raw)
		if err != nil {
			return out, err
		}
		out = append(out, job)
	}
	return out, nil
}

func decodeJob(raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, fmt.Errorf("dequeue: decode %q: %w", raw, err)
	}
	return job, nil
}

// Len reports the number of queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.Client.LLen(ctx, q.Key).Result()
}
