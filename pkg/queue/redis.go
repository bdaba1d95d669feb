package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"DCAClock/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

// RedisQueue is a list-backed work queue with delayed retries (sorted set)
// and a dead-letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	mode      QueueMode
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		mode:      mode,
		keyPrefix: "dcaclock:queue",
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

func (r *RedisQueue) RegisterJobs(jobs ...Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.logger.Warn("job registration ignored in producer-only mode", logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and, unless producer-only, launches the workers and the
// retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.isRunning = true

	if r.mode != ModeProducerOnly {
		for i := 0; i < r.config.Workers; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.wg.Add(1)
		go r.retryProcessor()
	}
	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("mode", r.modeString()))
	return nil
}

// Stop cancels the workers and waits for in-flight messages.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msgData, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
			return
		default:
			r.processNext()
		}
	}
}

func (r *RedisQueue) processNext() {
	result, err := r.client.BRPop(r.ctx, time.Second, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.process(msg)
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	err := job.Handle(r.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		// Shutdown mid-delivery; put it back for the next run.
		r.scheduleRetry(msg, time.Now())
		return
	}

	r.logger.Warn("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts < r.config.RetryLimit {
		msg.Attempts++
		r.scheduleRetry(msg, time.Now().Add(retryDelay(r.config.RetryDelay, msg.Attempts)))
		return
	}
	r.logger.Error("max retries reached, moving to dead-letter list",
		logger.String("id", msg.ID), logger.String("job", job.Name()))
	r.deadLetter(msg)
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	msgData, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.Unix()),
		Member: msgData,
	}).Err()
	if err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	msgData, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), msgData).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retryProcessor() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, msgData := range due {
		// ZRem decides which mover owns the message when several run.
		removed, err := r.client.ZRem(r.ctx, r.retryKey(), msgData).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.queueKey(), msgData).Err(); err != nil {
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) modeString() string {
	switch r.mode {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
