// inputs: background_jobs rows, handlers map
// outputs: job status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/skilltrials/internal/models"
)

const defaultPollInterval = 500 * time.Millisecond

type WorkerPool struct {
	queue        Queue
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(queue Queue, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = map[string]Handler{}
	}
	return &WorkerPool{
		queue:        queue,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: defaultPollInterval,
		stop:         make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling again.
// Call it before Start.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Handle registers h for typ. Call it before Start.
func (p *WorkerPool) Handle(typ string, h Handler) {
	p.handlers[typ] = h
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call twice.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// wait pauses for d unless the pool is stopping. It reports whether to go on.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.queue.ClaimNextJob(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("claim job", "err", err)
			}
			if !p.wait(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			if !p.wait(ctx, p.pollInterval) {
				return
			}
			continue
		}

		p.run(ctx, job)
	}
}

func (p *WorkerPool) run(ctx context.Context, job *models.BackgroundJob) {
	logger := p.logger.With("job_id", job.ID, "type", job.Type)

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = "failed"
		job.LastError = "no handler"
		if err := p.queue.MoveToDeadLetter(ctx, job); err != nil {
			logger.Error("move to dead letter", "err", err)
		}
		logger.Warn("job without handler moved to dead letter")
		return
	}

	err := p.safeCall(ctx, h, job)
	if err == nil {
		job.Status = "done"
		if upErr := p.queue.UpdateBackgroundJob(ctx, job); upErr != nil {
			logger.Error("mark job done", "err", upErr)
		}
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = "failed"
		logger.Error("job failed permanently", "attempts", job.Attempts, "err", err)
		if mvErr := p.queue.MoveToDeadLetter(ctx, job); mvErr != nil {
			logger.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = "retry"
	logger.Warn("job failed, retry scheduled", "attempts", job.Attempts, "next_try_at", t, "err", err)
	if upErr := p.queue.UpdateBackgroundJob(ctx, job); upErr != nil {
		logger.Error("update job for retry", "err", upErr)
	}
}

// safeCall turns a handler panic into a failed attempt.
func (p *WorkerPool) safeCall(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// Enqueue marshals payload and persists a queued job.
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	return Enqueue(ctx, p.queue, typ, payload, priority, maxAttempts)
}

// Enqueue persists a job on q without needing a running pool.
func Enqueue(ctx context.Context, q Queue, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return q.EnqueueJob(ctx, j)
}
