// Package worker drains scheduler ready queues with a fixed set of
// goroutines, one group per channel.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/maxkimambo/shed/internal/logger"
)

// Executor is the part of the scheduler a worker needs.
type Executor interface {
	ExecuteOne(channel uint8) (bool, error)
}

// Config controls the shape of the pool.
type Config struct {
	// WorkersPerChannel holds the worker count of each channel, indexed by
	// channel.
	WorkersPerChannel  []int
	IdleBackoffInitial time.Duration
	IdleBackoffMax     time.Duration
}

// Worker runs tasks of one channel until its context ends.
type Worker struct {
	id       int
	channel  uint8
	executor Executor
	waker    *Waker
	metrics  *Metrics
	cfg      Config
	executed int64
}

func (w *Worker) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.IdleBackoffInitial
	bo.MaxInterval = w.cfg.IdleBackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (w *Worker) run(ctx context.Context) error {
	fields := map[string]interface{}{"workerID": w.id, "channel": w.channel}
	logger.Op.WithFields(fields).Debug("Worker started")
	defer func() {
		logger.Op.WithFields(map[string]interface{}{
			"workerID": w.id,
			"channel":  w.channel,
			"executed": w.executed,
		}).Debug("Worker stopped")
	}()

	bo := w.newBackOff()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		ran, err := w.executor.ExecuteOne(w.channel)
		if err != nil {
			w.metrics.addFailure()
			logger.Op.WithFields(map[string]interface{}{
				"workerID": w.id,
				"channel":  w.channel,
				"error":    err.Error(),
			}).Error("Worker stopped by scheduler error")
			return fmt.Errorf("worker %d on channel %d: %w", w.id, w.channel, err)
		}
		if ran {
			w.executed++
			w.metrics.addExecuted()
			bo.Reset()
			continue
		}

		w.metrics.addIdleWait()
		timer.Reset(bo.NextBackOff())
		select {
		case <-ctx.Done():
			return nil
		case <-w.waker.Wait(w.channel):
			timer.Stop()
			w.metrics.addWakeup()
			bo.Reset()
		case <-timer.C:
		}
	}
}

// Pool manages the workers of every channel.
type Pool struct {
	executor Executor
	waker    *Waker
	cfg      Config
	metrics  *Metrics

	workers []*Worker
	group   *errgroup.Group
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex
}

// NewPool creates a pool draining executor. waker must be the notifier the
// scheduler was created with.
func NewPool(executor Executor, waker *Waker, cfg Config) *Pool {
	if cfg.IdleBackoffInitial <= 0 {
		cfg.IdleBackoffInitial = 50 * time.Microsecond
	}
	if cfg.IdleBackoffMax < cfg.IdleBackoffInitial {
		cfg.IdleBackoffMax = cfg.IdleBackoffInitial
	}
	return &Pool{
		executor: executor,
		waker:    waker,
		cfg:      cfg,
		metrics:  NewMetrics(),
	}
}

// Start launches every worker. Workers stop when ctx ends, on Shutdown, or
// when any worker hits a scheduler error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if len(p.cfg.WorkersPerChannel) == 0 {
		return fmt.Errorf("worker pool needs at least one channel")
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	p.cancel = cancel
	p.group = group
	p.workers = p.workers[:0]

	id := 0
	for ch, n := range p.cfg.WorkersPerChannel {
		for i := 0; i < n; i++ {
			id++
			w := &Worker{
				id:       id,
				channel:  uint8(ch),
				executor: p.executor,
				waker:    p.waker,
				metrics:  p.metrics,
				cfg:      p.cfg,
			}
			p.workers = append(p.workers, w)
			group.Go(func() error { return w.run(gctx) })
		}
	}

	p.started = true
	logger.Op.WithFields(map[string]interface{}{
		"workerCount": len(p.workers),
		"channels":    len(p.cfg.WorkersPerChannel),
	}).Info("Worker pool started")
	return nil
}

// Wait blocks until every worker has stopped and returns the first worker
// error, if any.
func (p *Pool) Wait() error {
	p.mu.RLock()
	group := p.group
	p.mu.RUnlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Shutdown stops all workers and waits up to timeout for them to return.
// Workers finish the task they are running first.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not started")
	}
	p.started = false
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	logger.Op.WithFields(map[string]interface{}{
		"timeout": timeout.String(),
	}).Debug("Shutting down worker pool")
	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		logger.Op.Debug("All workers stopped")
		return err
	case <-time.After(timeout):
		logger.Op.Warn("Worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

// IsStarted returns whether the worker pool is currently started
func (p *Pool) IsStarted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// GetWorkerCount returns the number of workers in the pool
func (p *Pool) GetWorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// GetMetrics returns the live pool counters
func (p *Pool) GetMetrics() *Metrics {
	return p.metrics
}
