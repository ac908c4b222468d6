// Package tasks runs background work on asynq: email delivery and the
// periodic purge of expired stories.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"thriftly_backend/config"
	"thriftly_backend/internal/email"
)

const (
	TypeEmailDelivery = "email:deliver"
	TypeStoryCleanup  = "story:cleanup"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewEmailDeliveryTask(p EmailTaskPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payload, asynq.MaxRetry(5), asynq.Queue(QueueCritical)), nil
}

func NewStoryCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeStoryCleanup, nil, asynq.MaxRetry(1), asynq.Queue(QueueDefault))
}

// RedisOpt is the asynq connection for the configured Redis.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// StoryCleaner deletes stories past their lifetime.
type StoryCleaner interface {
	Expired() time.Time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	from    string
	sender  email.Sender
	stories StoryCleaner
	now     func() time.Time
}

func NewTaskProcessor(from string, sender email.Sender, stories StoryCleaner) *TaskProcessor {
	return &TaskProcessor{from: from, sender: sender, stories: stories, now: time.Now}
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}
	return p.deliver(ctx, payload)
}

func (p *TaskProcessor) deliver(ctx context.Context, payload EmailTaskPayload) error {
	raw := email.BuildMessage(p.from, payload.To, payload.Subject, payload.Body, p.now())
	if err := p.sender.Send(ctx, []string{payload.To}, payload.Subject, raw); err != nil {
		slog.Warn("email delivery failed", "to", payload.To, "subject", payload.Subject, "error", err)
		return err
	}
	return nil
}

func (p *TaskProcessor) HandleStoryCleanupTask(ctx context.Context, _ *asynq.Task) error {
	return p.CleanupStories(ctx)
}

func (p *TaskProcessor) CleanupStories(ctx context.Context) error {
	if p.stories == nil {
		return nil
	}
	deleted, err := p.stories.DeleteExpired(ctx, p.stories.Expired())
	if err != nil {
		return fmt.Errorf("story cleanup: %w", err)
	}
	if deleted > 0 {
		slog.Info("expired stories removed", "count", deleted)
	}
	return nil
}

// NewServeMux routes task types to the processor's handlers.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, p.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeStoryCleanup, p.HandleStoryCleanupTask)
	return mux
}

func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
	})
}

// NewScheduler enqueues the story cleanup every interval.
func NewScheduler(opt asynq.RedisClientOpt, interval time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := scheduler.Register(spec, NewStoryCleanupTask()); err != nil {
		return nil, fmt.Errorf("failed to register story cleanup: %w", err)
	}
	return scheduler, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher queues emails for the worker process.
type AsynqDispatcher struct {
	client Enqueuer
}

func NewAsynqDispatcher(client Enqueuer) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	task, err := NewEmailDeliveryTask(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	slog.Debug("email queued", "task_id", info.ID, "to", to)
	return nil
}

// InlineDispatcher delivers emails from a goroutine in this process. It is
// used when no Redis is configured.
type InlineDispatcher struct {
	processor *TaskProcessor
	wg        sync.WaitGroup
}

func NewInlineDispatcher(p *TaskProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: p}
}

func (d *InlineDispatcher) EnqueueEmail(_ context.Context, to, subject, body string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = d.processor.deliver(ctx, EmailTaskPayload{To: to, Subject: subject, Body: body})
	}()
	return nil
}

// Wait blocks until queued deliveries finish.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// RunCleanupLoop purges expired stories every interval until ctx is done.
func RunCleanupLoop(ctx context.Context, p *TaskProcessor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.CleanupStories(ctx); err != nil {
				slog.Error("story cleanup failed", "error", err)
			}
		}
	}
}
