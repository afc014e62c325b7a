package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/workgraph/pkg/eventbus"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/registry"
	"github.com/dukex/workgraph/pkg/services"
	"github.com/dukex/workgraph/pkg/workflow"
	"github.com/go-playground/validator/v10"
)

// EngineConfig collects the runner settings shared by the API and the workers.
type EngineConfig struct {
	Runner      workflow.Config
	PoolSize    int           `validate:"gte=0"`
	MatcherTTL  time.Duration `validate:"gte=0"`
	RecordsFile string
}

// Engine wires the services over one store, registry and event bus.
type Engine struct {
	Matcher    *workflow.TriggerMatcher
	Notifier   *services.Notifier
	Pool       *workflow.Pool
	Workflows  *services.Workflow
	Publishing *services.Publishing
	Executions *services.Execution
}

func NewEngine(
	ctx context.Context,
	logger *slog.Logger,
	config EngineConfig,
	store persistence.Persistence,
	reg *registry.Registry,
	bus eventbus.EventBus,
) (*Engine, error) {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	var records protocol.RecordProvider

	if config.RecordsFile != "" {
		static, err := registry.LoadStaticRecords(config.RecordsFile)
		if err != nil {
			return nil, err
		}

		logger.InfoContext(ctx, "Loaded seed records", "file", config.RecordsFile)

		records = static
	}

	matcher := workflow.NewTriggerMatcher(store.Workflows(), config.MatcherTTL, logger)
	notifier := services.NewNotifier(bus, logger, matcher)
	pool := workflow.NewPool(config.PoolSize, logger)
	runner := workflow.NewRunner(reg, pool, logger, workflow.WithConfig(config.Runner))

	return &Engine{
		Matcher:    matcher,
		Notifier:   notifier,
		Pool:       pool,
		Workflows:  services.NewWorkflow(store, reg, notifier),
		Publishing: services.NewPublishing(store, reg, notifier),
		Executions: services.NewExecution(store, runner, matcher, records, notifier, logger),
	}, nil
}

// Close drains the fire-and-forget pool.
func (e *Engine) Close(ctx context.Context) error {
	return e.Pool.Close(ctx)
}
