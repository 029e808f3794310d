package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// Dataset is a labelled retrieval benchmark: the memories to index and the
// queries to run against them.
type Dataset struct {
	Name     string           `json:"name"`
	Memories []*domain.Memory `json:"memories"`
	Cases    []Case           `json:"cases"`
}

// Case is one labelled query. RelevantIDs lists every memory a perfect
// retriever would return.
type Case struct {
	Name        string            `json:"name"`
	Query       string            `json:"query"`
	RelevantIDs []string          `json:"relevant_ids"`
	Mode        domain.SearchMode `json:"search_type,omitempty"`
	K           int               `json:"k,omitempty"`
}

// LoadDataset reads and validates a JSON dataset file
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks the dataset and fills in missing memory IDs and case names
func (d *Dataset) Validate() error {
	if len(d.Cases) == 0 {
		return fmt.Errorf("%w: dataset has no cases", domain.ErrInvalidInput)
	}

	for i, m := range d.Memories {
		if m == nil {
			return fmt.Errorf("%w: memory %d is null", domain.ErrInvalidInput, i)
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Visibility == "" {
			m.Visibility = domain.VisibilityPublic
		}
	}

	for i := range d.Cases {
		c := &d.Cases[i]
		if strings.TrimSpace(c.Query) == "" {
			return fmt.Errorf("%w: case %d has an empty query", domain.ErrInvalidInput, i)
		}
		if len(c.RelevantIDs) == 0 {
			return fmt.Errorf("%w: case %d has no relevant ids", domain.ErrInvalidInput, i)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("case-%d", i+1)
		}
	}
	return nil
}
