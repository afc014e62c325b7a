// Package main provides the workgraph worker: it runs published workflows for trigger
// events delivered by the event bus, the cron scheduler and an optional Redis stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/workgraph/pkg/cmd"
	"github.com/dukex/workgraph/pkg/log"
	"github.com/dukex/workgraph/pkg/sources/schedule"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func main() {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.BoolFlag{
			Name:    "disable-scheduler",
			Usage:   "Do not fire schedule.cron triggers from this worker",
			Sources: cli.EnvVars("DISABLE_SCHEDULER"),
		},
		&cli.DurationFlag{
			Name:    "schedule-resync",
			Usage:   "Interval at which cron entries are resynced with the store",
			Value:   schedule.DefaultResyncInterval,
			Sources: cli.EnvVars("SCHEDULE_RESYNC"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL of the trigger stream; empty disables the stream source",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-stream",
			Usage:   "Redis stream carrying trigger events",
			Value:   "workgraph:triggers",
			Sources: cli.EnvVars("REDIS_STREAM"),
		},
		&cli.StringFlag{
			Name:    "redis-group",
			Usage:   "Consumer group shared by the workers",
			Value:   "workgraph-workers",
			Sources: cli.EnvVars("REDIS_GROUP"),
		},
	}, cmd.CommonFlags()...)

	command := &cli.Command{
		Name:                  "workgraph-worker",
		EnableShellCompletion: true,
		Usage:                 "Run published workflows for incoming trigger events",
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("workgraph-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing workgraph worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := cmd.NewRuntime(ctx, command, "workgraph-worker", logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				if err := rt.Close(shutdownCtx); err != nil {
					logger.ErrorContext(ctx, "Failed to release resources", "error", err)
				}
			}()

			if err != nil {
				return err
			}

			manager, err := NewWorkerManager(workerID, rt, Options{
				Scheduler:      !command.Bool("disable-scheduler"),
				ScheduleResync: command.Duration("schedule-resync"),
				RedisURL:       command.String("redis-url"),
				RedisStream:    command.String("redis-stream"),
				RedisGroup:     command.String("redis-group"),
			})
			if err != nil {
				return err
			}

			return manager.Run(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
