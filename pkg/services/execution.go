package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/workflow"
	"golang.org/x/sync/errgroup"
)

const DefaultExecutionListLimit = 20

type Runner interface {
	Run(ctx context.Context, wf *models.Workflow, req workflow.RunRequest) (*models.ExecutionRecord, error)
}

type Matcher interface {
	Match(ctx context.Context, ev *models.TriggerEvent) ([]*models.Workflow, error)
}

// Execution starts runs from trigger events and test requests and keeps their records.
type Execution struct {
	persistence persistence.Persistence
	runner      Runner
	matcher     Matcher
	records     protocol.RecordProvider
	notifier    *Notifier
	logger      *slog.Logger
}

// NewExecution creates the execution service. records and notifier may be nil.
func NewExecution(
	persistence persistence.Persistence,
	runner Runner,
	matcher Matcher,
	records protocol.RecordProvider,
	notifier *Notifier,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		persistence: persistence,
		runner:      runner,
		matcher:     matcher,
		records:     records,
		notifier:    notifier,
		logger:      logger.With("module", "execution_service"),
	}
}

type TestRunRequest struct {
	RecordID    string         `json:"record_id,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// TestRun executes a definition, draft or published, in dry-run mode against sample data
// and stores the record. When RecordID is set and no Record is given the record is loaded
// from the record provider.
func (e *Execution) TestRun(ctx context.Context, workspaceID, id string, req TestRunRequest) (*models.ExecutionRecord, error) {
	wf, err := e.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("test_run", err)
	}

	record := req.Record

	if record == nil && req.RecordID != "" {
		if e.records == nil {
			return nil, NewInvalidRequest("test_run", "no_record_provider", "record_id given but no record provider is configured")
		}

		record, err = e.records.FetchRecord(ctx, workspaceID, wf.Module, req.RecordID)
		if err != nil {
			return nil, translate("test_run", err)
		}
	}

	rec, err := e.runner.Run(ctx, wf, workflow.RunRequest{
		Mode:        models.ExecutionModeDryRun,
		Record:      record,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		return nil, e.runError("test_run", wf, err)
	}

	if err := e.persistence.Executions().Save(ctx, rec); err != nil {
		return nil, translate("test_run", err)
	}

	e.notifier.ExecutionCompleted(ctx, rec)

	return rec, nil
}

func (e *Execution) runError(op string, wf *models.Workflow, err error) error {
	var corrupt *workflow.CorruptDefinitionError
	if errors.As(err, &corrupt) {
		return &ValidationError{Op: op, WorkflowID: wf.ID, Violations: corrupt.Violations}
	}

	return translate(op, err)
}

// HandleTrigger runs every published definition matching ev, concurrently and
// independently. Records of runs that started are returned even when others failed to
// start; those failures are joined into the error.
func (e *Execution) HandleTrigger(ctx context.Context, ev *models.TriggerEvent) ([]*models.ExecutionRecord, error) {
	if ev == nil {
		return nil, NewInvalidRequest("handle_trigger", "nil_event", "trigger event cannot be nil")
	}

	if err := validate.Struct(ev); err != nil {
		return nil, NewInvalidRequest("handle_trigger", "invalid_trigger_event", validationMessage(err))
	}

	matched, err := e.matcher.Match(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("handle_trigger: %w", err)
	}

	logger := e.logger.With("workspace_id", ev.WorkspaceID, "trigger_type", ev.TriggerType, "trigger_event_id", ev.ID)

	if len(matched) == 0 {
		logger.DebugContext(ctx, "no published workflow matches trigger")

		return []*models.ExecutionRecord{}, nil
	}

	logger.InfoContext(ctx, "trigger matched workflows", "count", len(matched))

	records := make([]*models.ExecutionRecord, len(matched))
	errs := make([]error, len(matched))

	var g errgroup.Group

	for i, wf := range matched {
		g.Go(func() error {
			records[i], errs[i] = e.runLive(ctx, wf, ev)

			return nil
		})
	}

	_ = g.Wait()

	out := make([]*models.ExecutionRecord, 0, len(records))

	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}

	return out, errors.Join(errs...)
}

func (e *Execution) runLive(ctx context.Context, wf *models.Workflow, ev *models.TriggerEvent) (*models.ExecutionRecord, error) {
	rec, err := e.runner.Run(ctx, wf, workflow.RunRequest{
		Mode:        models.ExecutionModeLive,
		Record:      ev.Record,
		TriggerData: ev.TriggerData,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "workflow run could not start", "workflow_id", wf.ID, "error", err)

		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	// Save on a detached context: a cancelled host still gets its record stored.
	if err := e.persistence.Executions().Save(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.ErrorContext(ctx, "failed to store execution record", "workflow_id", wf.ID, "execution_id", rec.ID, "error", err)

		return rec, fmt.Errorf("failed to store execution %s: %w", rec.ID, err)
	}

	e.notifier.ExecutionCompleted(ctx, rec)

	return rec, nil
}

func (e *Execution) GetExecution(ctx context.Context, workspaceID, id string) (*models.ExecutionRecord, error) {
	rec, err := e.persistence.Executions().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("get_execution", err)
	}

	return rec, nil
}

// ListExecutions returns the newest records of a definition first.
func (e *Execution) ListExecutions(ctx context.Context, workspaceID, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	if _, err := e.persistence.Workflows().Get(ctx, workspaceID, workflowID); err != nil {
		return nil, translate("list_executions", err)
	}

	if limit <= 0 || limit > persistence.MaxListLimit {
		limit = DefaultExecutionListLimit
	}

	recs, err := e.persistence.Executions().ListByWorkflow(ctx, workspaceID, workflowID, limit)
	if err != nil {
		return nil, translate("list_executions", err)
	}

	return recs, nil
}
