package queue

import (
	"context"
	"sync"
	"time"
)

// Task is a unit of work executed by the pool.
type Task func(ctx context.Context) error

// PoolConfig contains the configuration for the worker pool.
type PoolConfig struct {
	Workers    int           // number of concurrent workers
	QueueSize  int           // size of the pending task buffer
	RetryLimit int           // number of retries after the first failure
	RetryDelay time.Duration // delay between retries
}

// Pool is a bounded worker pool. Submit enqueues work; Wait blocks until
// every submitted task has finished. The worker count caps upstream
// concurrency no matter how many tasks are submitted.
type Pool struct {
	cfg   PoolConfig
	tasks chan taskEnvelope
	wg    sync.WaitGroup
	start sync.Once
	stop  sync.Once
}

type taskEnvelope struct {
	ctx  context.Context
	task Task
}

// NewPool creates a worker pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	return &Pool{
		cfg:   cfg,
		tasks: make(chan taskEnvelope, cfg.QueueSize),
	}
}

// Start launches the workers. Safe to call more than once.
func (p *Pool) Start() {
	p.start.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	for env := range p.tasks {
		p.run(env)
		p.wg.Done()
	}
}

func (p *Pool) run(env taskEnvelope) {
	err := env.task(env.ctx)
	for attempt := 0; err != nil && attempt < p.cfg.RetryLimit; attempt++ {
		select {
		case <-env.ctx.Done():
			return
		case <-time.After(p.cfg.RetryDelay):
		}
		err = env.task(env.ctx)
	}
}

// Submit enqueues a task. Blocks when the buffer is full, which applies
// backpressure to the producer. Returns ctx.Err if the context ends first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.Start()
	p.wg.Add(1)
	select {
	case p.tasks <- taskEnvelope{ctx: ctx, task: task}:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Wait blocks until all submitted tasks have completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting work and releases the workers after the queue
// drains. The pool cannot be restarted.
func (p *Pool) Close() {
	p.stop.Do(func() {
		p.wg.Wait()
		close(p.tasks)
	})
}
