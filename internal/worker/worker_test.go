package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocky-roll-call/rrc-backend/pkg/queue"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 2, s.err
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (c *chanSource) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	select {
	case j := <-c.jobs:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *chanSource) Retry(_ context.Context, job *queue.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job.Attempt++
	c.retried = append(c.retried, job)
	return nil
}

func (c *chanSource) retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retried)
}

func sweepJob(t *testing.T) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeEventSweep, queue.EventSweepPayload{ScheduledAt: time.Now()})
	require.NoError(t, err)
	return job
}

func TestProcessSweepJob(t *testing.T) {
	sw := &countingSweeper{}
	p := NewEventSweeper(sw, &chanSource{}, nil)

	require.NoError(t, p.Process(context.Background(), sweepJob(t)))
	assert.Equal(t, 1, sw.count())

	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "photo_resize"})
	assert.Error(t, err)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	src := &chanSource{jobs: make(chan *queue.Job, 1)}
	p := NewEventSweeper(sw, src, nil)
	p.backoff = time.Millisecond
	p.poll = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	src.jobs <- sweepJob(t)
	require.Eventually(t, func() bool { return src.retries() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sw.count())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingEnqueuer) EnqueueOnce(_ context.Context, _ queue.JobType, _ any, key string, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return true, nil
}

func TestScheduleEnqueuesImmediately(t *testing.T) {
	enq := &recordingEnqueuer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Schedule(ctx, enq, time.Hour, nil)

	require.Eventually(t, func() bool {
		enq.mu.Lock()
		defer enq.mu.Unlock()
		return len(enq.keys) == 1
	}, time.Second, 5*time.Millisecond)
}
