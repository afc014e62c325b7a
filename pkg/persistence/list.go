package persistence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/workgraph/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListWorkflowsOptions filters and pages a workflow listing within one workspace.
type ListWorkflowsOptions struct {
	WorkspaceID string
	Module      models.Module
	Status      *models.WorkflowStatus

	Limit  int
	Offset int

	SortBy    string // created_at, updated_at or name
	SortOrder string // asc or desc
}

type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

var sortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize applies defaults and checks the sort parameters against the allowlist.
func (o *ListWorkflowsOptions) Normalize() error {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if !sortFields[o.SortBy] {
		return fmt.Errorf("%w: %s", ErrInvalidSortField, o.SortBy)
	}

	switch strings.ToLower(o.SortOrder) {
	case "asc":
		o.SortOrder = "asc"
	default:
		o.SortOrder = "desc"
	}

	return nil
}

// Matches reports whether wf passes the filters of o.
func (o *ListWorkflowsOptions) Matches(wf *models.Workflow) bool {
	if o.WorkspaceID != "" && wf.WorkspaceID != o.WorkspaceID {
		return false
	}

	if o.Module != "" && wf.Module != o.Module {
		return false
	}

	if o.Status != nil && wf.Status != *o.Status {
		return false
	}

	return true
}

// Page filters, sorts and paginates an in-memory list. Call Normalize first.
func Page(all []*models.Workflow, opts ListWorkflowsOptions) *WorkflowListResult {
	filtered := make([]*models.Workflow, 0, len(all))

	for _, wf := range all {
		if opts.Matches(wf) {
			filtered = append(filtered, wf)
		}
	}

	slices.SortStableFunc(filtered, func(a, b *models.Workflow) int {
		var c int

		switch opts.SortBy {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}

		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}

		if opts.SortOrder == "desc" {
			return -c
		}

		return c
	})

	total := len(filtered)
	result := &WorkflowListResult{Workflows: make([]*models.Workflow, 0), TotalCount: int64(total)}

	if opts.Offset >= total {
		return result
	}

	end := min(opts.Offset+opts.Limit, total)

	result.Workflows = filtered[opts.Offset:end]
	result.HasNextPage = end < total

	return result
}
