package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/patrickmn/go-cache"
)

// PublishedFinder lists the published workflows of a workspace for a trigger type.
type PublishedFinder interface {
	FindPublishedByTrigger(ctx context.Context, workspaceID, triggerType string) ([]*models.Workflow, error)
}

// TriggerMatcher selects the published workflows a trigger event should start.
// Candidates are cached per workspace and trigger type until invalidated or expired.
type TriggerMatcher struct {
	finder PublishedFinder
	cache  *cache.Cache
	logger *slog.Logger
}

// DefaultMatcherTTL bounds how long a match lookup is served from cache.
const DefaultMatcherTTL = 30 * time.Second

func NewTriggerMatcher(finder PublishedFinder, ttl time.Duration, logger *slog.Logger) *TriggerMatcher {
	if ttl <= 0 {
		ttl = DefaultMatcherTTL
	}

	return &TriggerMatcher{
		finder: finder,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger.With("module", "trigger_matcher"),
	}
}

func cacheKey(workspaceID, triggerType string) string {
	return workspaceID + "|" + triggerType
}

// Match returns the workflows matching ev.
func (m *TriggerMatcher) Match(ctx context.Context, ev *models.TriggerEvent) ([]*models.Workflow, error) {
	key := cacheKey(ev.WorkspaceID, ev.TriggerType)

	var candidates []*models.Workflow

	if cached, ok := m.cache.Get(key); ok {
		candidates, _ = cached.([]*models.Workflow)
	} else {
		found, err := m.finder.FindPublishedByTrigger(ctx, ev.WorkspaceID, ev.TriggerType)
		if err != nil {
			return nil, fmt.Errorf("failed to find published workflows: %w", err)
		}

		candidates = found
		m.cache.SetDefault(key, found)
	}

	var out []*models.Workflow

	for _, wf := range candidates {
		if matches(wf, ev) {
			out = append(out, wf)
		}
	}

	m.logger.DebugContext(ctx, "matched trigger event",
		"workspace_id", ev.WorkspaceID,
		"trigger_type", ev.TriggerType,
		"candidates", len(candidates),
		"matches", len(out))

	return out, nil
}

func matches(wf *models.Workflow, ev *models.TriggerEvent) bool {
	if !wf.IsPublished() || wf.TriggerType != ev.TriggerType || wf.WorkspaceID != ev.WorkspaceID {
		return false
	}

	if ev.WorkflowID != "" && ev.WorkflowID != wf.ID {
		return false
	}

	if ev.Module != "" && ev.Module != wf.Module {
		return false
	}

	if wf.TriggerType != models.TriggerTypeFieldChanged {
		return true
	}

	field, _ := wf.TriggerConfig["field"].(string)
	if field != "" && field != fmt.Sprint(ev.TriggerData["field"]) {
		return false
	}

	if to, ok := wf.TriggerConfig["to"]; ok && !reflect.DeepEqual(to, ev.TriggerData["new_value"]) {
		return false
	}

	return true
}

// InvalidateWorkspace drops every cached candidate list of a workspace.
func (m *TriggerMatcher) InvalidateWorkspace(workspaceID string) {
	prefix := workspaceID + "|"

	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
}
