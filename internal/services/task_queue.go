package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

const (
	TaskTypeSideEffects = "submission:side_effects"
)

// SideEffectTask asks the dispatcher to notify and/or register after a
// transition has been committed.
type SideEffectTask struct {
	Kind         workflow.Kind   `json:"kind"`
	SubmissionID string          `json:"submission_id"`
	Status       workflow.Status `json:"status"`
	ActorID      string          `json:"actor_id,omitempty"`
	Notify       bool            `json:"notify"`
	Register     bool            `json:"register"`
	Force        bool            `json:"force,omitempty"`
}

// TaskProcessor handles a side-effect task.
type TaskProcessor func(context.Context, *SideEffectTask) error

// TaskQueue defines the interface for side-effect task processing
type TaskQueue interface {
	// Enqueue hands a task off for processing
	Enqueue(ctx context.Context, task *SideEffectTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config, processor TaskProcessor) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err == nil {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
				return
			}
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		}
		q := NewSyncQueue()
		q.SetProcessor(processor)
		globalTaskQueue = q
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Test connection by pinging Redis
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a side-effect task to the async queue. Tasks are not retried.
func (q *AsyncQueue) Enqueue(ctx context.Context, task *SideEffectTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeSideEffects, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).
		Str("submission_id", task.SubmissionID).Msg("[AsyncQueue] task enqueued")
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue by running the processor inline, after the
// caller's write has committed and before the response is sent.
type SyncQueue struct {
	processor TaskProcessor
}

// NewSyncQueue creates a new synchronous queue
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process tasks synchronously
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Enqueue processes the task in the current goroutine. The caller's
// cancellation does not interrupt a side effect once started.
func (q *SyncQueue) Enqueue(ctx context.Context, task *SideEffectTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task for %s %s dropped", task.Kind, task.SubmissionID)
		return nil
	}
	return q.processor(context.WithoutCancel(ctx), task)
}

// IsAsync returns false for sync queue
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close is a no-op for sync queue
func (q *SyncQueue) Close() error {
	return nil
}
