package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/otelhelper"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/resolver"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultNodeTimeout = 300 * time.Second

// Config tunes the runner.
type Config struct {
	// MaxParallel bounds concurrently running synchronous nodes of independent branches.
	MaxParallel int `validate:"gte=0,lte=256"`

	// DefaultNodeTimeout applies to synchronous nodes with timeout_seconds <= 0.
	DefaultNodeTimeout time.Duration `validate:"gte=0"`
}

// RunRequest carries the trigger payload of one run.
type RunRequest struct {
	Mode        models.ExecutionMode
	Record      map[string]any
	TriggerData map[string]any
}

// Runner executes a workflow graph against a trigger payload.
type Runner struct {
	invoker protocol.Invoker
	pool    *Pool
	clock   clockwork.Clock
	tracer  trace.Tracer
	logger  *slog.Logger
	config  Config
	newID   func() string
}

type Option func(*Runner)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) { r.clock = clock }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

func WithConfig(config Config) Option {
	return func(r *Runner) { r.config = config }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

func NewRunner(invoker protocol.Invoker, pool *Pool, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		invoker: invoker,
		pool:    pool,
		clock:   clockwork.NewRealClock(),
		tracer:  otel.Tracer("workgraph/runner"),
		logger:  logger.With("module", "runner"),
		newID:   func() string { return ulid.Make().String() },
	}

	if r.pool == nil {
		r.pool = NewPool(DefaultPoolSize, r.logger)
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.config.MaxParallel <= 0 {
		r.config.MaxParallel = 1
	}

	if r.config.DefaultNodeTimeout <= 0 {
		r.config.DefaultNodeTimeout = DefaultNodeTimeout
	}

	return r
}

// nodeResult is sent by a synchronous node's goroutine when it stops waiting.
type nodeResult struct {
	id        string
	status    models.NodeStatus
	errorKind models.ErrorKind
	err       string
	output    any
}

type run struct {
	*Runner

	wf       *models.Workflow
	record   *models.ExecutionRecord
	mode     models.ExecutionMode
	execCtx  *models.ExecutionContext
	order    []string
	outcomes map[string]*models.NodeOutcome
	parents  map[string][]string
	spans    map[string]trace.Span
	done     chan nodeResult
	running  int
	logger   *slog.Logger
}

// Run executes wf and returns its execution record. Node failures are recorded in the
// record, never returned. Errors are returned only when the run cannot start: a live run
// of an unpublished workflow, or a stored graph that no longer validates.
func (r *Runner) Run(ctx context.Context, wf *models.Workflow, req RunRequest) (*models.ExecutionRecord, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.ExecutionModeLive
	}

	if mode == models.ExecutionModeLive && !wf.IsPublished() {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotPublished, wf.ID)
	}

	validation := graph.Validate(&wf.Graph)
	if !validation.Valid {
		return nil, &CorruptDefinitionError{WorkflowID: wf.ID, Violations: validation.Violations}
	}

	order, err := graph.TopologicalOrder(&wf.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDefinition, err)
	}

	record := &models.ExecutionRecord{
		ID:          r.newID(),
		WorkflowID:  wf.ID,
		WorkspaceID: wf.WorkspaceID,
		TriggerType: wf.TriggerType,
		Mode:        mode,
		Status:      models.ExecutionStatusRunning,
		Nodes:       make([]*models.NodeOutcome, 0, len(order)),
		Warnings:    validation.Warnings,
		StartedAt:   r.clock.Now().UTC(),
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.ExecutionIDKey, record.ID),
		attribute.String(otelhelper.ExecutionModeKey, string(mode)),
	)
	defer span.End()

	rn := &run{
		Runner:   r,
		wf:       wf,
		record:   record,
		mode:     mode,
		execCtx:  models.NewExecutionContext(req.Record, req.TriggerData),
		order:    order,
		outcomes: make(map[string]*models.NodeOutcome, len(order)),
		parents:  graph.Parents(&wf.Graph),
		spans:    make(map[string]trace.Span),
		done:     make(chan nodeResult),
		logger:   r.logger.With("workflow_id", wf.ID, "execution_id", record.ID, "mode", mode),
	}

	for _, id := range order {
		n := wf.Node(id)

		o := &models.NodeOutcome{NodeID: id, Kind: n.Kind(), Status: models.NodeStatusPending}
		if spec, ok := n.Invocation(); ok {
			o.TargetID = spec.TargetID
		}

		rn.outcomes[id] = o
		record.Nodes = append(record.Nodes, o)
	}

	rn.logger.InfoContext(ctx, "execution started", "nodes", len(order))

	rn.loop(ctx)
	rn.finish(ctx)

	span.SetAttributes(attribute.String(otelhelper.ExecutionStatusKey, string(record.Status)))

	rn.logger.InfoContext(ctx, "execution completed", "status", record.Status)

	return record, nil
}

func (rn *run) loop(ctx context.Context) {
	for {
		if ctx.Err() == nil {
			rn.dispatchReady(ctx)
		}

		if rn.running == 0 {
			return
		}

		res := <-rn.done
		rn.running--
		rn.apply(ctx, res)
	}
}

// dispatchReady starts every pending node whose parents are terminal, in topological
// order, up to the parallelism bound. Nodes that complete without waiting (input
// failures, fire-and-forget) unblock their children within the same pass.
func (rn *run) dispatchReady(ctx context.Context) {
	for _, id := range rn.order {
		if rn.running >= rn.config.MaxParallel {
			return
		}

		if ctx.Err() != nil {
			return
		}

		o := rn.outcomes[id]
		if o.Status != models.NodeStatusPending || !rn.parentsTerminal(id) {
			continue
		}

		rn.start(ctx, rn.wf.Node(id), o)
	}
}

func (rn *run) parentsTerminal(id string) bool {
	for _, p := range rn.parents[id] {
		if o, ok := rn.outcomes[p]; ok && !o.Status.Terminal() {
			return false
		}
	}

	return true
}

func (rn *run) start(ctx context.Context, n *models.Node, o *models.NodeOutcome) {
	spec, _ := n.Invocation()

	now := rn.clock.Now().UTC()
	o.StartedAt = &now
	o.Status = models.NodeStatusRunning

	nodeCtx, span := otelhelper.StartSpan(ctx, rn.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, n.ID),
		attribute.String(otelhelper.NodeKindKey, string(n.Kind())),
		attribute.String(otelhelper.TargetIDKey, spec.TargetID),
	)
	rn.spans[n.ID] = span

	resolution, err := resolver.ResolveInputs(spec.InputMapping, rn.execCtx)
	if err != nil {
		rn.apply(ctx, nodeResult{id: n.ID, status: models.NodeStatusFailed, errorKind: models.ErrorKindInvalidMapping, err: err.Error()})

		return
	}

	o.Inputs = resolution.Values

	if err := resolution.Require(spec.RequiredInputs); err != nil {
		rn.apply(ctx, nodeResult{id: n.ID, status: models.NodeStatusFailed, errorKind: models.ErrorKindMissingInput, err: err.Error()})

		return
	}

	inv := protocol.Invocation{
		ExecutionID: rn.record.ID,
		WorkflowID:  rn.wf.ID,
		WorkspaceID: rn.wf.WorkspaceID,
		NodeID:      n.ID,
		Kind:        n.Kind(),
		TargetID:    spec.TargetID,
		Inputs:      models.CloneValues(resolution.Values),
		Mode:        rn.mode,
	}

	if !spec.WaitForCompletion {
		rn.pool.Submit(nodeCtx, n.ID, func(taskCtx context.Context) error {
			res, err := rn.invoker.Invoke(taskCtx, inv)
			if err != nil {
				return err
			}

			if res != nil && res.Status == protocol.ResultStatusFailed {
				return errors.New(res.Error)
			}

			return nil
		})

		rn.logger.DebugContext(ctx, "node dispatched without waiting", "node_id", n.ID)
		rn.apply(ctx, nodeResult{id: n.ID, status: models.NodeStatusSucceeded})

		return
	}

	timeout := time.Duration(spec.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = rn.config.DefaultNodeTimeout
	}

	rn.running++

	go rn.invokeSync(nodeCtx, inv, timeout)
}

// invokeSync waits for the invocation, the node timeout or run cancellation, whichever
// comes first. On timeout or cancellation the invocation context is cancelled and the
// call is abandoned.
func (rn *run) invokeSync(ctx context.Context, inv protocol.Invocation, timeout time.Duration) {
	type reply struct {
		res *protocol.Result
		err error
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan reply, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- reply{err: fmt.Errorf("invoker panic: %v", r)}
			}
		}()

		res, err := rn.invoker.Invoke(callCtx, inv)
		replies <- reply{res: res, err: err}
	}()

	timer := rn.clock.NewTimer(timeout)
	defer timer.Stop()

	result := nodeResult{id: inv.NodeID}

	select {
	case rep := <-replies:
		switch {
		case rep.err != nil && errors.Is(rep.err, protocol.ErrMissingInput):
			result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindMissingInput, rep.err.Error()
		case rep.err != nil && ctx.Err() != nil:
			result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindCancelled, ctx.Err().Error()
		case rep.err != nil:
			result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindInvocation, rep.err.Error()
		case rep.res == nil:
			result.status = models.NodeStatusSucceeded
		case rep.res.Status == protocol.ResultStatusFailed && ctx.Err() != nil:
			result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindCancelled, ctx.Err().Error()
		case rep.res.Status == protocol.ResultStatusFailed:
			result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindInvocation, rep.res.Error
		default:
			result.status, result.output = models.NodeStatusSucceeded, models.CloneValue(rep.res.Output)
		}
	case <-timer.Chan():
		result.status, result.errorKind = models.NodeStatusTimedOut, models.ErrorKindTimeout
		result.err = fmt.Sprintf("node did not complete within %s", timeout)
	case <-ctx.Done():
		result.status, result.errorKind, result.err = models.NodeStatusFailed, models.ErrorKindCancelled, ctx.Err().Error()
	}

	rn.done <- result
}

// apply records a node result, binds its output and skips descendants of failures.
func (rn *run) apply(ctx context.Context, res nodeResult) {
	o := rn.outcomes[res.id]

	now := rn.clock.Now().UTC()
	o.CompletedAt = &now
	o.Status = res.status
	o.ErrorKind = res.errorKind
	o.Error = res.err
	o.Output = res.output

	if span, ok := rn.spans[res.id]; ok {
		span.SetAttributes(attribute.String(otelhelper.NodeStatusKey, string(res.status)))

		if res.err != "" {
			otelhelper.SetError(span, errors.New(res.err), string(res.errorKind))
		}

		span.End()
		delete(rn.spans, res.id)
	}

	n := rn.wf.Node(res.id)
	spec, _ := n.Invocation()

	if warning := resolver.BindOutput(spec, o, rn.execCtx); warning != "" {
		o.Warnings = append(o.Warnings, warning)
	}

	logger := rn.logger.With("node_id", res.id, "status", res.status)

	switch res.status {
	case models.NodeStatusFailed, models.NodeStatusTimedOut:
		logger.WarnContext(ctx, "node did not succeed", "error_kind", res.errorKind, "error", res.err)
		rn.skipDescendants(res.id)
	default:
		logger.DebugContext(ctx, "node completed")
	}
}

func (rn *run) skipDescendants(id string) {
	for _, d := range graph.Descendants(&rn.wf.Graph, id) {
		o, ok := rn.outcomes[d]
		if !ok || o.Status != models.NodeStatusPending {
			continue
		}

		o.Status = models.NodeStatusSkipped
		o.ErrorKind = models.ErrorKindAncestorFailed
		o.Error = fmt.Sprintf("upstream node %q did not succeed", id)
	}
}

func (rn *run) finish(ctx context.Context) {
	var succeeded, failed, cancelled int

	for _, o := range rn.record.Nodes {
		if o.Status == models.NodeStatusPending {
			o.Status = models.NodeStatusSkipped
			o.ErrorKind = models.ErrorKindCancelled
			o.Error = "run cancelled before the node started"
		}

		if o.ErrorKind == models.ErrorKindCancelled {
			cancelled++
		}

		switch o.Status {
		case models.NodeStatusSucceeded:
			succeeded++
		case models.NodeStatusFailed, models.NodeStatusTimedOut:
			failed++
		}
	}

	switch {
	case cancelled > 0 && ctx.Err() != nil:
		rn.record.Status = models.ExecutionStatusCancelled
	case failed == 0:
		rn.record.Status = models.ExecutionStatusSucceeded
	case succeeded > 0:
		rn.record.Status = models.ExecutionStatusPartialFailure
	default:
		rn.record.Status = models.ExecutionStatusFailed
	}

	now := rn.clock.Now().UTC()
	rn.record.CompletedAt = &now
}
