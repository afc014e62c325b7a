// Package schedule fires schedule.cron triggers of published workflows.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/workflow"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

const DefaultResyncInterval = time.Minute

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Scheduler keeps one cron entry per published schedule.cron workflow across every
// workspace. Reload resyncs the entries with the store; it runs on Start, on every
// resync tick and whenever the caller learns that a definition was published or
// unpublished.
type Scheduler struct {
	finder   workflow.PublishedFinder
	cron     *cron.Cron
	resync   time.Duration
	logger   *slog.Logger
	callback protocol.TriggerCallback

	mu      sync.Mutex
	entries map[string]entry
	ctx     context.Context // jobs run on the Start context
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

var _ protocol.TriggerSource = (*Scheduler)(nil)

func NewScheduler(finder workflow.PublishedFinder, resync time.Duration, logger *slog.Logger) *Scheduler {
	if resync <= 0 {
		resync = DefaultResyncInterval
	}

	logger = logger.With("module", "scheduler")

	return &Scheduler{
		finder:  finder,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		resync:  resync,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

func key(wf *models.Workflow) string {
	return wf.WorkspaceID + "/" + wf.ID
}

func cronExpr(wf *models.Workflow) string {
	expr, _ := wf.TriggerConfig["cron"].(string)

	return expr
}

func (s *Scheduler) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()

		return nil
	}

	s.callback = callback
	s.ctx = ctx
	s.stopCh = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()

		return err
	}

	s.cron.Start()

	s.wg.Add(1)

	go s.resyncLoop(ctx)

	s.logger.InfoContext(ctx, "scheduler started", "entries", s.Len())

	return nil
}

func (s *Scheduler) resyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.resync)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.logger.ErrorContext(ctx, "failed to resync schedules", "error", err)
			}
		}
	}
}

// Reload adds entries for newly published schedules, replaces entries whose expression
// changed and removes entries of definitions no longer published.
func (s *Scheduler) Reload(ctx context.Context) error {
	workflows, err := s.finder.FindPublishedByTrigger(ctx, "", models.TriggerTypeScheduleCron)
	if err != nil {
		return fmt.Errorf("failed to load scheduled workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(workflows))

	for _, wf := range workflows {
		k := key(wf)
		expr := cronExpr(wf)
		seen[k] = true

		if current, ok := s.entries[k]; ok {
			if current.spec == expr {
				continue
			}

			s.cron.Remove(current.id)
			delete(s.entries, k)
		}

		sched, err := workflow.ParseCron(expr)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping workflow with invalid cron expression", "workflow_id", wf.ID, "cron", expr, "error", err)

			continue
		}

		target := *wf
		id := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(&target, expr) }))
		s.entries[k] = entry{id: id, spec: expr}

		s.logger.InfoContext(ctx, "schedule registered", "workflow_id", wf.ID, "workspace_id", wf.WorkspaceID, "cron", expr)
	}

	for k, e := range s.entries {
		if !seen[k] {
			s.cron.Remove(e.id)
			delete(s.entries, k)

			s.logger.InfoContext(ctx, "schedule removed", "key", k)
		}
	}

	return nil
}

func (s *Scheduler) fire(wf *models.Workflow, expr string) {
	s.mu.Lock()
	ctx, callback := s.ctx, s.callback
	s.mu.Unlock()

	if callback == nil {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()

	ev := &models.TriggerEvent{
		ID:          ulid.Make().String(),
		WorkspaceID: wf.WorkspaceID,
		WorkflowID:  wf.ID,
		Module:      wf.Module,
		TriggerType: models.TriggerTypeScheduleCron,
		TriggerData: map[string]any{
			"cron":         expr,
			"scheduled_at": now.Format(time.RFC3339),
		},
		OccurredAt: now,
	}

	if err := callback(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver schedule trigger", "workflow_id", wf.ID, "error", err)
	}
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "scheduler stopped")

	return nil
}
