// Package workflow runs workflow graphs and enforces their lifecycle rules.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/workgraph/pkg/graph"
)

var (
	ErrWorkflowNotPublished = errors.New("workflow is not published")
	ErrCorruptDefinition    = errors.New("workflow definition is corrupt")
	ErrInvalidTransition    = errors.New("invalid lifecycle transition")
)

// CorruptDefinitionError is returned when a stored graph fails validation at run time.
type CorruptDefinitionError struct {
	WorkflowID string
	Violations []graph.Violation
}

func (e *CorruptDefinitionError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}

	return fmt.Sprintf("workflow %s: %s: %s", e.WorkflowID, ErrCorruptDefinition, strings.Join(msgs, "; "))
}

func (e *CorruptDefinitionError) Unwrap() error {
	return ErrCorruptDefinition
}
