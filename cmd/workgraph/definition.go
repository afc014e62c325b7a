package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/workgraph/pkg/models"
	"gopkg.in/yaml.v3"
)

const localWorkspace = "local"

// readDefinition loads a workflow from a .json file or, for any other extension, YAML.
func readDefinition(path string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := decodeFile(path, &wf); err != nil {
		return nil, err
	}

	if wf.WorkspaceID == "" {
		wf.WorkspaceID = localWorkspace
	}

	if wf.ID == "" {
		wf.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	wf.SyncTrigger()

	return &wf, nil
}

func readObject(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	var out map[string]any
	if err := decodeFile(path, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func decodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(b, v)
	} else {
		err = yaml.Unmarshal(b, v)
	}

	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}
