package services

import (
	"context"
	"time"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/workflow"
)

// Publishing moves definitions between draft and published.
type Publishing struct {
	persistence persistence.Persistence
	triggers    workflow.TriggerConfigValidator
	notifier    *Notifier
	now         func() time.Time
}

// NewPublishing creates a new workflow publishing service. triggers and notifier may be nil.
func NewPublishing(persistence persistence.Persistence, triggers workflow.TriggerConfigValidator, notifier *Notifier) *Publishing {
	return &Publishing{
		persistence: persistence,
		triggers:    triggers,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Validate reports every publish precondition the stored definition violates.
func (p *Publishing) Validate(ctx context.Context, workspaceID, id string) (*graph.ValidationResult, error) {
	wf, err := p.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("validate", err)
	}

	return workflow.CheckPublishable(wf, p.triggers), nil
}

// Publish makes a valid draft eligible for live triggers. A failing definition is left
// in draft and a *ValidationError lists every violation.
func (p *Publishing) Publish(ctx context.Context, workspaceID, id string) (*models.Workflow, error) {
	wf, err := p.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("publish", err)
	}

	next, err := workflow.Transition(wf.Status, workflow.EventPublish)
	if err != nil {
		return nil, translate("publish", err)
	}

	wf.SyncTrigger()

	check := workflow.CheckPublishable(wf, p.triggers)
	if !check.Valid {
		return nil, newValidationError("publish", wf.ID, check)
	}

	publishedAt := p.now()
	wf.Status = next
	wf.PublishedAt = &publishedAt

	if err := p.persistence.Workflows().Save(ctx, wf, wf.Version); err != nil {
		return nil, translate("publish", err)
	}

	p.notifier.Published(ctx, wf)

	return wf, nil
}

// Unpublish returns a published definition to draft. In-flight executions keep running.
// Unpublishing a draft changes nothing.
func (p *Publishing) Unpublish(ctx context.Context, workspaceID, id string) (*models.Workflow, error) {
	wf, err := p.persistence.Workflows().Get(ctx, workspaceID, id)
	if err != nil {
		return nil, translate("unpublish", err)
	}

	if !wf.IsPublished() {
		return wf, nil
	}

	next, err := workflow.Transition(wf.Status, workflow.EventUnpublish)
	if err != nil {
		return nil, translate("unpublish", err)
	}

	wf.Status = next
	wf.PublishedAt = nil

	if err := p.persistence.Workflows().Save(ctx, wf, wf.Version); err != nil {
		return nil, translate("unpublish", err)
	}

	p.notifier.Unpublished(ctx, wf)

	return wf, nil
}
