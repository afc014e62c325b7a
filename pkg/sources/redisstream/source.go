// Package redisstream delivers trigger events read from a Redis stream consumer group.
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "workgraph:triggers"
	DefaultGroup  = "workgraph-workers"

	// EventField holds a JSON encoded TriggerEvent. Without it the message fields are
	// read one by one, with record and trigger_data as JSON objects.
	EventField = "event"
)

var ErrInvalidMessage = errors.New("invalid trigger message")

type Config struct {
	URL      string
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	Count    int64
}

// Source reads a stream with XREADGROUP and acknowledges each message once its callback
// returns. Messages whose callback failed stay pending for redelivery; undecodable
// messages are acknowledged and dropped.
type Source struct {
	config Config
	client redis.UniversalClient
	logger *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ protocol.TriggerSource = (*Source)(nil)

func NewSource(config Config, logger *slog.Logger) (*Source, error) {
	if config.URL == "" {
		return nil, errors.New("redis stream source requires a redis url")
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if config.Stream == "" {
		config.Stream = DefaultStream
	}

	if config.Group == "" {
		config.Group = DefaultGroup
	}

	if config.Consumer == "" {
		config.Consumer = "consumer-1"
	}

	if config.Block <= 0 {
		config.Block = 2 * time.Second
	}

	if config.Count <= 0 {
		config.Count = 10
	}

	return &Source{
		config: config,
		client: redis.NewClient(opts),
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "redis_stream_source",
			"stream", config.Stream,
			"group", config.Group,
		),
	}, nil
}

func (s *Source) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	err := s.client.XGroupCreateMkStream(ctx, s.config.Stream, s.config.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.InfoContext(ctx, "redis stream source started", "consumer", s.config.Consumer)

	s.wg.Add(1)

	go s.consume(ctx, callback)

	return nil
}

func (s *Source) consume(ctx context.Context, callback protocol.TriggerCallback) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.config.Group,
			Consumer: s.config.Consumer,
			Streams:  []string{s.config.Stream, ">"},
			Count:    s.config.Count,
			Block:    s.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}

			s.logger.ErrorContext(ctx, "failed to read stream", "error", err)

			select {
			case <-time.After(time.Second):
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}

			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.handle(ctx, msg, callback)
			}
		}
	}
}

func (s *Source) handle(ctx context.Context, msg redis.XMessage, callback protocol.TriggerCallback) {
	logger := s.logger.With("message_id", msg.ID)

	ev, err := DecodeMessage(msg)
	if err != nil {
		logger.WarnContext(ctx, "dropping undecodable message", "error", err)
		s.ack(ctx, msg.ID)

		return
	}

	if err := callback(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "trigger callback failed, message left pending", "error", err)

		return
	}

	s.ack(ctx, msg.ID)
}

func (s *Source) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.config.Stream, s.config.Group, id).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to ack message", "message_id", id, "error", err)
	}
}

func (s *Source) Stop(ctx context.Context) error {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		s.logger.ErrorContext(ctx, "error closing Redis client", "error", err)
	}

	return nil
}

// DecodeMessage builds a trigger event from a stream entry. The entry id becomes the
// event id when the payload carries none.
func DecodeMessage(msg redis.XMessage) (*models.TriggerEvent, error) {
	var ev models.TriggerEvent

	if raw, ok := msg.Values[EventField]; ok {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a string", ErrInvalidMessage, EventField)
		}

		if err := json.Unmarshal([]byte(str), &ev); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	} else {
		ev.WorkspaceID = field(msg, "workspace_id")
		ev.WorkflowID = field(msg, "workflow_id")
		ev.Module = models.Module(field(msg, "module"))
		ev.TriggerType = field(msg, "trigger_type")

		for name, dst := range map[string]*map[string]any{"record": &ev.Record, "trigger_data": &ev.TriggerData} {
			raw := field(msg, name)
			if raw == "" {
				continue
			}

			if err := json.Unmarshal([]byte(raw), dst); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidMessage, name, err)
			}
		}
	}

	if ev.WorkspaceID == "" || ev.TriggerType == "" {
		return nil, fmt.Errorf("%w: workspace_id and trigger_type are required", ErrInvalidMessage)
	}

	if ev.ID == "" {
		ev.ID = msg.ID
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	return &ev, nil
}

func field(msg redis.XMessage, name string) string {
	s, _ := msg.Values[name].(string)

	return s
}
