// Package main provides the workgraph API server.
package main

import (
	"context"
	"os"

	"github.com/dukex/workgraph/pkg/cmd"
	"github.com/dukex/workgraph/pkg/log"
	"github.com/dukex/workgraph/pkg/worker"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := append([]cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
	}, cmd.CommonFlags()...)

	command := &cli.Command{
		Name:                  "workgraph-api",
		Usage:                 "Create, publish and test workflows",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing workgraph API")

			rt, err := cmd.NewRuntime(ctx, command, "workgraph-api", logger)
			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to release resources", "error", err)
				}
			}()

			if err != nil {
				return err
			}

			// The in-memory bus only reaches this process, so it consumes its own deliveries.
			if command.String("event-bus") == "memory" {
				embedded := worker.New("api-embedded", rt.EventBus, rt.Engine.Executions, logger, worker.WithCache(rt.Engine.Matcher))
				if err := embedded.Start(ctx); err != nil {
					return err
				}
			}

			api := NewAPI(logger, rt.Engine, rt.Registry)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
