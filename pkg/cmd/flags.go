package cmd

import (
	"github.com/dukex/workgraph/pkg/workflow"
	"github.com/urfave/cli/v3"
)

// CommonFlags are shared by every long-running binary.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://<dir> or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, memory); empty disables the bus",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "agents-file",
			Usage:   "YAML file with agent profiles",
			Sources: cli.EnvVars("AGENTS_FILE"),
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "API key for the agent model provider",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "openai-base-url",
			Usage:   "Base URL of an OpenAI compatible provider",
			Sources: cli.EnvVars("OPENAI_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "openai-model",
			Usage:   "Model used by agent profiles that do not name one",
			Sources: cli.EnvVars("OPENAI_MODEL"),
		},
		&cli.StringFlag{
			Name:    "records-file",
			Usage:   "YAML file with seed records for test runs",
			Sources: cli.EnvVars("RECORDS_FILE"),
		},
		&cli.IntFlag{
			Name:    "max-parallel",
			Usage:   "Synchronous nodes of independent branches run at once per execution",
			Value:   1,
			Sources: cli.EnvVars("MAX_PARALLEL"),
		},
		&cli.DurationFlag{
			Name:    "default-node-timeout",
			Usage:   "Timeout of synchronous nodes without timeout_seconds",
			Value:   workflow.DefaultNodeTimeout,
			Sources: cli.EnvVars("DEFAULT_NODE_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    "pool-size",
			Usage:   "Fire-and-forget invocations running at once",
			Value:   workflow.DefaultPoolSize,
			Sources: cli.EnvVars("POOL_SIZE"),
		},
		&cli.DurationFlag{
			Name:    "matcher-ttl",
			Usage:   "How long trigger match lookups are cached",
			Value:   workflow.DefaultMatcherTTL,
			Sources: cli.EnvVars("MATCHER_TTL"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

func AgentConfigFrom(command *cli.Command) AgentConfig {
	return AgentConfig{
		ProfilesFile: command.String("agents-file"),
		APIKey:       command.String("openai-api-key"),
		BaseURL:      command.String("openai-base-url"),
		Model:        command.String("openai-model"),
	}
}

func EngineConfigFrom(command *cli.Command) EngineConfig {
	return EngineConfig{
		Runner: workflow.Config{
			MaxParallel:        command.Int("max-parallel"),
			DefaultNodeTimeout: command.Duration("default-node-timeout"),
		},
		PoolSize:    command.Int("pool-size"),
		MatcherTTL:  command.Duration("matcher-ttl"),
		RecordsFile: command.String("records-file"),
	}
}
