package workflow

import (
	"fmt"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/robfig/cron/v3"
)

// LifecycleEvent is an operation that moves a workflow between statuses.
type LifecycleEvent string

const (
	EventPublish   LifecycleEvent = "publish"
	EventUnpublish LifecycleEvent = "unpublish"
)

// Transition returns the status reached by applying ev to from.
func Transition(from models.WorkflowStatus, ev LifecycleEvent) (models.WorkflowStatus, error) {
	switch {
	case ev == EventPublish && from == models.WorkflowStatusDraft:
		return models.WorkflowStatusPublished, nil
	case ev == EventUnpublish && from == models.WorkflowStatusPublished:
		return models.WorkflowStatusDraft, nil
	default:
		return from, fmt.Errorf("%w: cannot %s a %s workflow", ErrInvalidTransition, ev, from)
	}
}

// TriggerConfigValidator validates trigger_config for a trigger type.
type TriggerConfigValidator interface {
	ValidateTriggerConfig(triggerType string, config map[string]any) error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a five-field cron expression or descriptor such as @hourly.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// CheckPublishable runs structural validation plus the publish preconditions: at least
// one action or agent reachable from the trigger, a trigger type, a trigger config
// accepted by the trigger type and a target on every invocable node.
func CheckPublishable(wf *models.Workflow, triggers TriggerConfigValidator) *graph.ValidationResult {
	result := graph.Validate(&wf.Graph)

	trigger := wf.Trigger()
	if result.Has(graph.ViolationMissingTrigger) || trigger == nil {
		return result
	}

	if len(graph.Reachable(&wf.Graph)) == 0 {
		result.Add(graph.ViolationNoReachableAction, "no action or agent node is reachable from the trigger", trigger.ID)
	}

	for _, n := range wf.Nodes {
		if n == nil {
			continue
		}

		if spec, ok := n.Invocation(); ok && spec.TargetID == "" {
			result.Add(graph.ViolationMissingTarget, fmt.Sprintf("node %q has no target", n.ID), n.ID)
		}
	}

	data, _ := trigger.Data.(*models.TriggerNode)
	if data == nil || data.TriggerType == "" {
		result.Add(graph.ViolationMissingTriggerType, "trigger node has no trigger type", trigger.ID)

		return result
	}

	if triggers != nil {
		if err := triggers.ValidateTriggerConfig(data.TriggerType, data.TriggerConfig); err != nil {
			result.Add(graph.ViolationInvalidTriggerConfig, fmt.Sprintf("trigger config: %s", err), trigger.ID)
		}
	}

	if data.TriggerType == models.TriggerTypeScheduleCron {
		expr, _ := data.TriggerConfig["cron"].(string)
		if _, err := ParseCron(expr); err != nil {
			result.Add(graph.ViolationInvalidTriggerConfig, fmt.Sprintf("invalid cron expression %q: %s", expr, err), trigger.ID)
		}
	}

	return result
}
