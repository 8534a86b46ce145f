package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"ops_server/pkg/metrics"
)

// =============================================================================
// go-pkgz/pool based worker pool
// =============================================================================

// Processor runs one message.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers          int
	WorkerChanSize   int
	JobTimeout       time.Duration
	JobTimeoutByType map[JobType]time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration // base of the exponential backoff
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		WorkerChanSize: 64,
		JobTimeout:     time.Minute,
		JobTimeoutByType: map[JobType]time.Duration{
			JobRunbookGenerate: 2 * time.Minute,
		},
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed int64
	JobsFailed    int64
	JobsRetried   int64
	JobsDropped   int64
	Latency       map[string]metrics.LatencyStats
}

// Pool runs messages on a fixed set of workers with per-type timeouts and
// exponential-backoff retries. Messages that exhaust retries are logged and dropped.
type Pool struct {
	processor Processor
	config    *PoolConfig
	log       zerolog.Logger

	group   *pool.WorkerGroup[*Message]
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
	retries sync.WaitGroup

	metrics PoolMetrics
	latency *metrics.Registry
}

type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	w.pool.processJob(ctx, msg)
	return nil
}

// NewPool creates a new worker pool.
func NewPool(processor Processor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Pool{
		processor: processor,
		config:    config,
		log:       log.With().Str("component", "worker_pool").Logger(),
		latency:   metrics.NewRegistry(500),
	}
}

// Start starts the worker pool.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	group := pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(1).
		WithContinueOnError()
	if p.config.WorkerChanSize > 0 {
		group = group.WithWorkerChanSize(p.config.WorkerChanSize)
	}
	if err := group.Go(p.ctx); err != nil {
		p.cancel()
		return err
	}

	p.group = group
	p.started = true
	p.log.Info().Int("workers", p.config.Workers).Msg("worker pool started")
	return nil
}

// Stop waits for queued jobs and stops the workers. Pending retries are dropped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	group := p.group
	p.mu.Unlock()

	err := group.Close(ctx)
	p.cancel()
	p.retries.Wait()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
	return err
}

// Submit queues a message. It returns false if the pool is not running.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		return false
	}
	p.group.Submit(msg)
	return true
}

func (p *Pool) jobTimeout(jobType JobType) time.Duration {
	if timeout, ok := p.config.JobTimeoutByType[jobType]; ok {
		return timeout
	}
	return p.config.JobTimeout
}

func (p *Pool) processJob(ctx context.Context, msg *Message) {
	start := time.Now()
	timeout := p.jobTimeout(msg.Type)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.processor.Process(jobCtx, msg)
	p.latency.Record(msg.Type, time.Since(start))
	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		p.log.Debug().
			Str("job_id", msg.ID).
			Str("job_type", msg.Type).
			Dur("elapsed", time.Since(start)).
			Msg("job processed")
		return
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if msg.Retries >= p.config.MaxRetries {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		p.log.Error().
			Str("job_id", msg.ID).
			Str("job_type", msg.Type).
			RawJSON("data", msg.Data).
			Msg("job permanently failed")
		return
	}

	msg.Retries++
	atomic.AddInt64(&p.metrics.JobsRetried, 1)

	// Exponential backoff with jitter.
	backoff := p.config.RetryBackoff * time.Duration(1<<msg.Retries)
	if p.config.RetryBackoff > 0 {
		backoff += time.Duration(rand.Int63n(int64(p.config.RetryBackoff)))
	}

	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-p.ctx.Done():
			atomic.AddInt64(&p.metrics.JobsDropped, 1)
		case <-timer.C:
			p.Submit(msg)
		}
	}()
}

// GetMetrics returns current pool metrics.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed: atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:    atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsRetried:   atomic.LoadInt64(&p.metrics.JobsRetried),
		JobsDropped:   atomic.LoadInt64(&p.metrics.JobsDropped),
		Latency:       p.latency.Snapshot(),
	}
}
