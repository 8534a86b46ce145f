package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ops_server/adapter/in/worker"
	"ops_server/adapter/out/messaging"
	"ops_server/config"
	"ops_server/core/port/out"
	"ops_server/pkg/logger"
)

const workerStopTimeout = 25 * time.Second

// Worker runs the stream consumer, the job pool and the nightly scheduler.
type Worker struct {
	pool      *worker.Pool
	consumer  *messaging.Consumer
	scheduler *worker.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	zlog      zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	return newWorker(deps), cleanup, nil
}

func newWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := logger.Component("worker")

	poolConfig := worker.DefaultPoolConfig()
	poolConfig.Workers = cfg.WorkerMax
	if cfg.WorkerQueueSize > 0 {
		poolConfig.WorkerChanSize = cfg.WorkerQueueSize
	}
	processor := worker.NewRunbookProcessor(deps.Runbooks, zlog)
	pool := worker.NewPool(processor, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:    "runbook-workers",
			Consumer: cfg.WorkerID,
			Streams:  []string{out.StreamRunbookGenerate},
			Handler:  worker.NewDispatcher(pool),
			Logger:   zlog,
		})
		if cfg.SchedulerEnabled {
			w.scheduler = worker.NewScheduler(deps.Repo, deps.Producer, cfg.SchedulerRunHour, zlog)
		}
	} else {
		logger.Warn("Redis not available, worker has no job source")
	}
	return w
}

// Start blocks until Stop is called.
func (w *Worker) Start() {
	if w.ctx.Err() != nil {
		return
	}
	// The pool outlives w.ctx so Stop can drain queued jobs.
	if err := w.pool.Start(context.Background()); err != nil {
		w.zlog.Error().Err(err).Msg("failed to start worker pool")
		return
	}

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("stream consumer stopped")
			}
		}()
	}

	if w.scheduler != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.scheduler.Run(w.ctx)
		}()
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), workerStopTimeout)
	defer cancel()
	if err := w.pool.Stop(ctx); err != nil {
		w.zlog.Warn().Err(err).Msg("worker pool stop")
	}
}
