package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/workflow"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Workflow struct {
	persistence persistence.Persistence
	triggers    workflow.TriggerConfigValidator
	notifier    *Notifier
}

// NewWorkflow creates a new workflow service. triggers and notifier may be nil.
func NewWorkflow(persistence persistence.Persistence, triggers workflow.TriggerConfigValidator, notifier *Notifier) *Workflow {
	return &Workflow{
		persistence: persistence,
		triggers:    triggers,
		notifier:    notifier,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}

	return strings.Join(msgs, "; ")
}

// Create stores a new draft definition. A graph is optional; when given, the
// definition's trigger type and config follow its trigger node.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, NewInvalidRequest("create", "nil_workflow", "workflow cannot be nil")
	}

	if err := validate.Struct(wf); err != nil {
		return nil, NewInvalidRequest("create", "invalid_workflow", validationMessage(err))
	}

	if !wf.Module.Valid() {
		return nil, &ServiceError{Op: "create", Code: "invalid_module", Message: fmt.Sprintf("unknown module %q", wf.Module), Err: ErrInvalidModule}
	}

	wf.Status = models.WorkflowStatusDraft
	wf.PublishedAt = nil

	if wf.Nodes == nil {
		wf.Nodes = []*models.Node{}
	}

	if wf.Edges == nil {
		wf.Edges = []*models.Edge{}
	}

	wf.SyncTrigger()

	if err := w.persistence.Workflows().Create(ctx, wf); err != nil {
		return nil, translate("create", err)
	}

	return wf, nil
}

func (w *Workflow) Get(ctx context.Context, workspaceID, id string) (*models.Workflow, error) {
	wf, err := w.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("get", err)
	}

	return wf, nil
}

// ListWorkflowsRequest contains options for listing the workflows of a workspace.
type ListWorkflowsRequest struct {
	WorkspaceID string `validate:"required"`

	// Pagination
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	Module models.Module
	Status *models.WorkflowStatus

	// Sorting
	SortBy    string `validate:"omitempty,oneof=created_at updated_at name"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
}

// List retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) (*persistence.WorkflowListResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewInvalidRequest("list", "invalid_list_request", validationMessage(err))
	}

	if req.Module != "" && !req.Module.Valid() {
		return nil, &ServiceError{Op: "list", Code: "invalid_module", Message: fmt.Sprintf("unknown module %q", req.Module), Err: ErrInvalidModule}
	}

	result, err := w.persistence.Workflows().List(ctx, persistence.ListWorkflowsOptions{
		WorkspaceID: req.WorkspaceID,
		Module:      req.Module,
		Status:      req.Status,
		Limit:       req.Limit,
		Offset:      req.Offset,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		return nil, translate("list", err)
	}

	return result, nil
}

// SaveResult is the outcome of an edit. Violations are informational for drafts. For a
// published definition any violation moves it back to draft in the same save.
type SaveResult struct {
	Workflow        *models.Workflow  `json:"workflow"`
	Violations      []graph.Violation `json:"violations"`
	Warnings        []string          `json:"warnings,omitempty"`
	RevertedToDraft bool              `json:"reverted_to_draft"`
}

// commit stores wf if the stored version still equals expectedVersion.
func (w *Workflow) commit(ctx context.Context, op string, wf *models.Workflow, expectedVersion int64) (*SaveResult, error) {
	wasPublished := wf.IsPublished()

	check := workflow.CheckPublishable(wf, w.triggers)
	result := &SaveResult{
		Workflow:   wf,
		Violations: check.Violations,
		Warnings:   check.Warnings,
	}

	if wasPublished && !check.Valid {
		wf.Status = models.WorkflowStatusDraft
		wf.PublishedAt = nil
		result.RevertedToDraft = true
	}

	if err := w.persistence.Workflows().Save(ctx, wf, expectedVersion); err != nil {
		return nil, translate(op, err)
	}

	switch {
	case result.RevertedToDraft:
		w.notifier.Unpublished(ctx, wf)
	case wasPublished:
		w.notifier.Changed(ctx, wf)
	}

	return result, nil
}

func (w *Workflow) load(ctx context.Context, op, workspaceID, id string, version int64) (*models.Workflow, error) {
	wf, err := w.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate(op, err)
	}

	if wf.Version != version {
		return nil, translate(op, persistence.NewWorkflowError(op, workspaceID, id, persistence.ErrVersionConflict))
	}

	return wf, nil
}

type SaveGraphRequest struct {
	Graph   models.Graph
	Version int64 `validate:"min=1"`
}

// SaveGraph replaces the nodes, edges and viewport of a definition and syncs its
// trigger type and config from the trigger node.
func (w *Workflow) SaveGraph(ctx context.Context, workspaceID, id string, req SaveGraphRequest) (*SaveResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewInvalidRequest("save_graph", "invalid_graph_request", validationMessage(err))
	}

	wf, err := w.load(ctx, "save_graph", workspaceID, id, req.Version)
	if err != nil {
		return nil, err
	}

	wf.Graph = req.Graph
	if wf.Nodes == nil {
		wf.Nodes = []*models.Node{}
	}

	if wf.Edges == nil {
		wf.Edges = []*models.Edge{}
	}

	if wf.Trigger() == nil {
		wf.TriggerType = ""
		wf.TriggerConfig = nil
	}

	wf.SyncTrigger()

	return w.commit(ctx, "save_graph", wf, req.Version)
}

// UpdateDetailsRequest changes descriptive fields. Nil fields are left unchanged.
type UpdateDetailsRequest struct {
	Name        *string        `validate:"omitempty,min=3"`
	Description *string
	Module      *models.Module
	Version     int64 `validate:"min=1"`
}

func (w *Workflow) UpdateDetails(ctx context.Context, workspaceID, id string, req UpdateDetailsRequest) (*SaveResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewInvalidRequest("update_details", "invalid_details", validationMessage(err))
	}

	if req.Module != nil && !req.Module.Valid() {
		return nil, &ServiceError{Op: "update_details", Code: "invalid_module", Message: fmt.Sprintf("unknown module %q", *req.Module), Err: ErrInvalidModule}
	}

	wf, err := w.load(ctx, "update_details", workspaceID, id, req.Version)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.Module != nil {
		wf.Module = *req.Module
	}

	return w.commit(ctx, "update_details", wf, req.Version)
}

type SetTriggerTypeRequest struct {
	TriggerType   string `validate:"required"`
	TriggerConfig map[string]any
	Version       int64 `validate:"min=1"`
}

// DefaultTriggerNodeID names the trigger node SetTriggerType adds to a graph without one.
const DefaultTriggerNodeID = "trigger"

// SetTriggerType sets the trigger type and config on the trigger node, adding a trigger
// node when the graph has none.
func (w *Workflow) SetTriggerType(ctx context.Context, workspaceID, id string, req SetTriggerTypeRequest) (*SaveResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewInvalidRequest("set_trigger_type", "invalid_trigger", validationMessage(err))
	}

	wf, err := w.load(ctx, "set_trigger_type", workspaceID, id, req.Version)
	if err != nil {
		return nil, err
	}

	data := &models.TriggerNode{TriggerType: req.TriggerType, TriggerConfig: req.TriggerConfig}

	if trigger := wf.Trigger(); trigger != nil {
		trigger.Data = data
	} else {
		wf.Nodes = append([]*models.Node{{ID: DefaultTriggerNodeID, Data: data}}, wf.Nodes...)
	}

	wf.SyncTrigger()

	return w.commit(ctx, "set_trigger_type", wf, req.Version)
}

// Delete removes a definition. Deleting a published definition stops its triggers.
func (w *Workflow) Delete(ctx context.Context, workspaceID, id string) error {
	wf, err := w.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return translate("delete", err)
	}

	if err := w.persistence.Workflows().Delete(ctx, workspaceID, id); err != nil {
		return translate("delete", err)
	}

	if wf.IsPublished() {
		w.notifier.Unpublished(ctx, wf)
	}

	return nil
}
