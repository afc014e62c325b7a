package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/workgraph/pkg/cmd"
	"github.com/dukex/workgraph/pkg/sources/redisstream"
	"github.com/dukex/workgraph/pkg/sources/schedule"
	"github.com/dukex/workgraph/pkg/worker"
)

type Options struct {
	Scheduler      bool
	ScheduleResync time.Duration
	RedisURL       string
	RedisStream    string
	RedisGroup     string
}

// WorkerManager owns the worker and its trigger sources for the life of the process.
type WorkerManager struct {
	id     string
	worker *worker.Worker
	logger *slog.Logger
}

func NewWorkerManager(id string, rt *cmd.Runtime, opts Options) (*WorkerManager, error) {
	if rt.EventBus == nil && !opts.Scheduler && opts.RedisURL == "" {
		return nil, errors.New("worker has nothing to consume: configure an event bus, the scheduler or a redis stream")
	}

	workerOpts := []worker.Option{worker.WithCache(rt.Engine.Matcher)}

	if opts.Scheduler {
		scheduler := schedule.NewScheduler(rt.Persistence.Workflows(), opts.ScheduleResync, rt.Logger)
		workerOpts = append(workerOpts, worker.WithSource(scheduler), worker.WithReloader(scheduler))
	}

	if opts.RedisURL != "" {
		source, err := redisstream.NewSource(redisstream.Config{
			URL:      opts.RedisURL,
			Stream:   opts.RedisStream,
			Group:    opts.RedisGroup,
			Consumer: id,
		}, rt.Logger)
		if err != nil {
			return nil, err
		}

		workerOpts = append(workerOpts, worker.WithSource(source))
	}

	return &WorkerManager{
		id:     id,
		worker: worker.New(id, rt.EventBus, rt.Engine.Executions, rt.Logger, workerOpts...),
		logger: rt.Logger,
	}, nil
}

// Run starts the worker and blocks until ctx is cancelled.
func (m *WorkerManager) Run(ctx context.Context) error {
	if err := m.worker.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start worker", "error", err)

		return err
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Shutting down worker...")

	return m.worker.Stop(context.WithoutCancel(ctx))
}
