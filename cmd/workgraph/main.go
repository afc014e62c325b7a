// Package main provides an offline tool to check and dry-run workflow definition files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/workgraph/pkg/cmd"
	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/log"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		code := 1

		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			code = exit.ExitCode()
		}

		os.Exit(code)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "workgraph",
		Usage:                 "Check and dry-run workflow definition files",
		EnableShellCompletion: true,
		// Exit codes are applied by main so the app can run inside tests.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Aliases:   []string{"v"},
				Usage:     "Report structural violations and publish blockers",
				ArgsUsage: "<definition>",
				Action: func(ctx context.Context, command *cli.Command) error {
					wf, err := definitionArg(command)
					if err != nil {
						return err
					}

					reg, err := cmd.NewRegistry(ctx, log.WithModule("registry"), cmd.AgentConfig{})
					if err != nil {
						return err
					}

					result := workflow.CheckPublishable(wf, reg)
					if err := writeJSON(out, result); err != nil {
						return err
					}

					if !result.Valid {
						return cli.Exit(fmt.Sprintf("%s has %d violations", wf.ID, len(result.Violations)), 1)
					}

					return nil
				},
			},
			{
				Name:      "order",
				Usage:     "Print the execution order of the nodes reachable from the trigger",
				ArgsUsage: "<definition>",
				Action: func(_ context.Context, command *cli.Command) error {
					wf, err := definitionArg(command)
					if err != nil {
						return err
					}

					if result := graph.Validate(&wf.Graph); !result.Valid {
						_ = writeJSON(out, result)

						return cli.Exit("definition is invalid, no order exists", 1)
					}

					order, err := graph.TopologicalOrder(&wf.Graph)
					if err != nil {
						return err
					}

					for _, id := range order {
						fmt.Fprintln(out, id)
					}

					return nil
				},
			},
			{
				Name:      "dry-run",
				Aliases:   []string{"test"},
				Usage:     "Run the definition in dry-run mode and print the execution record",
				ArgsUsage: "<definition>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "record", Usage: "YAML or JSON file with the sample record"},
					&cli.StringFlag{Name: "trigger-data", Usage: "YAML or JSON file with the trigger data"},
					&cli.StringFlag{Name: "agents-file", Usage: "YAML file with agent profiles", Sources: cli.EnvVars("AGENTS_FILE")},
					&cli.IntFlag{Name: "max-parallel", Usage: "Independent branches run at once", Value: 1},
					&cli.DurationFlag{Name: "default-node-timeout", Usage: "Timeout of nodes without timeout_seconds", Value: workflow.DefaultNodeTimeout},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					wf, err := definitionArg(command)
					if err != nil {
						return err
					}

					return dryRun(ctx, out, wf, command)
				},
			},
		},
	}
}

func definitionArg(command *cli.Command) (*models.Workflow, error) {
	if command.Args().Len() != 1 {
		return nil, cli.Exit("expected exactly one definition file", 2)
	}

	return readDefinition(command.Args().First())
}

func dryRun(ctx context.Context, out io.Writer, wf *models.Workflow, command *cli.Command) error {
	logger := log.WithModule("workgraph")

	record, err := readObject(command.String("record"))
	if err != nil {
		return err
	}

	triggerData, err := readObject(command.String("trigger-data"))
	if err != nil {
		return err
	}

	reg, err := cmd.NewRegistry(ctx, logger, cmd.AgentConfig{ProfilesFile: command.String("agents-file")})
	if err != nil {
		return err
	}

	pool := workflow.NewPool(workflow.DefaultPoolSize, logger)
	defer func() { _ = pool.Close(ctx) }()

	runner := workflow.NewRunner(reg, pool, logger, workflow.WithConfig(workflow.Config{
		MaxParallel:        command.Int("max-parallel"),
		DefaultNodeTimeout: command.Duration("default-node-timeout"),
	}))

	rec, err := runner.Run(ctx, wf, workflow.RunRequest{
		Mode:        models.ExecutionModeDryRun,
		Record:      record,
		TriggerData: triggerData,
	})
	if err != nil {
		return err
	}

	return writeJSON(out, rec)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

