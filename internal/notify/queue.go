package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job is one email waiting to be delivered.
type Job struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	IssueID   string    `json:"issue_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue moves jobs from request handlers to the delivery worker.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to timeout. It returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// RedisQueue is a FIFO list: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue returns a queue stored under key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes job onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Dequeue pops the oldest job.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue notification: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue notification: unexpected reply length %d", len(res))
	}
	return decodeJob(res[1])
}

func encodeJob(job Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}
	return string(data), nil
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &job, nil
}
