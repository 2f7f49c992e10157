package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ONSBigData/parsing-company-accounts/internal/config"
)

// Enqueuer submits extraction jobs to a queue backend.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *JobData) (string, error)
	Close() error
}

// NewEnqueuer returns the producer for the configured backend.
func NewEnqueuer(cfg *config.Config) (Enqueuer, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		return NewRedisProducer(cfg.RedisURL, cfg.QueueName)
	default:
		return NewProducer(cfg.RedisURL, cfg.QueueName)
	}
}

// Producer enqueues asynq extraction tasks.
type Producer struct {
	client *asynq.Client
	queue  string
}

// NewProducer creates an asynq producer for queue.
func NewProducer(redisURL, queue string) (*Producer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Producer{client: asynq.NewClient(redisOpt), queue: queue}, nil
}

// Enqueue submits job, assigning a job id when it has none.
func (p *Producer) Enqueue(ctx context.Context, job *JobData) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	task, err := NewExtractTask(job, asynq.Queue(p.queue))
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return info.ID, nil
}

// Close closes the asynq client.
func (p *Producer) Close() error {
	return p.client.Close()
}

// RedisProducer pushes jobs onto the list queue read by RedisConsumer.
type RedisProducer struct {
	client *redis.Client
	keys   queueKeys
}

// NewRedisProducer creates a list-queue producer.
func NewRedisProducer(redisURL, queue string) (*RedisProducer, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &RedisProducer{client: redis.NewClient(opt), keys: newQueueKeys(queue)}, nil
}

// Enqueue stores the job payload and pushes its id onto the queue.
func (p *RedisProducer) Enqueue(ctx context.Context, job *JobData) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if err := job.Validate(); err != nil {
		return "", err
	}

	entry := RedisJobData{
		ID:         job.JobID,
		Type:       TaskTypeExtract,
		Payload:    *job,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.keys.data, entry.ID, data)
		pipe.LPush(ctx, p.keys.queue, entry.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return entry.ID, nil
}

// Close closes the Redis client.
func (p *RedisProducer) Close() error {
	return p.client.Close()
}
