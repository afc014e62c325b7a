package registry

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// StaticRecords is an in-memory protocol.RecordProvider for local runs and tests.
type StaticRecords struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

func NewStaticRecords() *StaticRecords {
	return &StaticRecords{records: make(map[string]map[string]any)}
}

func recordKey(workspaceID string, module models.Module, recordID string) string {
	return workspaceID + "/" + string(module) + "/" + recordID
}

func (s *StaticRecords) Put(workspaceID string, module models.Module, recordID string, record map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(workspaceID, module, recordID)] = maps.Clone(record)
}

func (s *StaticRecords) FetchRecord(_ context.Context, workspaceID string, module models.Module, recordID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordKey(workspaceID, module, recordID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", protocol.ErrRecordNotFound, module, recordID)
	}

	return maps.Clone(record), nil
}

type seedRecord struct {
	WorkspaceID string         `yaml:"workspace_id"`
	Module      models.Module  `yaml:"module"`
	ID          string         `yaml:"id"`
	Values      map[string]any `yaml:"values"`
}

// LoadStaticRecords reads seed records from a YAML file with a top-level `records` list.
func LoadStaticRecords(path string) (*StaticRecords, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var f struct {
		Records []seedRecord `yaml:"records"`
	}

	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}

	s := NewStaticRecords()

	for i, r := range f.Records {
		if r.WorkspaceID == "" || r.ID == "" || !r.Module.Valid() {
			return nil, fmt.Errorf("record %d needs workspace_id, a known module and id", i)
		}

		s.Put(r.WorkspaceID, r.Module, r.ID, r.Values)
	}

	return s, nil
}
