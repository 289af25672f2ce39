package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/pkg/queue"
)

// Sweeper deletes events past their retention window.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// JobSource is the queue side the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EventSweeper processes event sweep jobs.
type EventSweeper struct {
	sweeper Sweeper
	queue   JobSource
	logger  *zap.Logger
	backoff time.Duration
	poll    time.Duration
}

// NewEventSweeper creates a sweep job processor.
func NewEventSweeper(sweeper Sweeper, q JobSource, logger *zap.Logger) *EventSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventSweeper{sweeper: sweeper, queue: q, logger: logger, backoff: queue.RetryBackoff, poll: 5 * time.Second}
}

// Process executes one job.
func (p *EventSweeper) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEventSweep {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EventSweepPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	n, err := p.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep events: %w", err)
	}
	p.logger.Info("event sweep completed",
		zap.String("job_id", job.ID),
		zap.Time("scheduled_at", payload.ScheduledAt),
		zap.Int64("deleted", n),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EventSweeper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event sweep worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

// Enqueuer schedules sweep jobs.
type Enqueuer interface {
	EnqueueOnce(ctx context.Context, t queue.JobType, payload any, key string, window time.Duration) (bool, error)
}

// Schedule enqueues one sweep job per interval until ctx is done. The first
// job is enqueued immediately.
func Schedule(ctx context.Context, q Enqueuer, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enqueue := func(now time.Time) {
		key := fmt.Sprintf("%s:%d", queue.JobTypeEventSweep, now.UnixNano()/int64(interval))
		pushed, err := q.EnqueueOnce(ctx, queue.JobTypeEventSweep, queue.EventSweepPayload{ScheduledAt: now.UTC()}, key, interval)
		if err != nil {
			logger.Warn("schedule event sweep failed", zap.Error(err))
			return
		}
		if pushed {
			logger.Debug("event sweep scheduled", zap.String("key", key))
		}
	}
	enqueue(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			enqueue(now)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
