package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataset = `{
  "name": "smoke",
  "memories": [
    {"id": "m1", "content": "payment worker panic on nil map"},
    {"id": "m2", "content": "release checklist for the gateway", "lessons": "roll back on error spikes"},
    {"id": "m3", "content": "quarterly planning notes"}
  ],
  "cases": [
    {"name": "crash", "query": "crash", "relevant_ids": ["m1"]},
    {"name": "deploy", "query": "deploy", "relevant_ids": ["m2"]}
  ]
}`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o600))
	return path
}

func TestRunCommand_JSON(t *testing.T) {
	var out bytes.Buffer
	app := newApp(&out)

	err := app.Run([]string{"hindsight-eval", "run", "--dataset", writeDataset(t), "--format", "json"})
	require.NoError(t, err)

	var report struct {
		Dataset string `json:"dataset"`
		Summary struct {
			Cases          int     `json:"cases"`
			BaselineRecall float64 `json:"baseline_recall"`
			ExpandedRecall float64 `json:"expanded_recall"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))

	assert.Equal(t, "smoke", report.Dataset)
	assert.Equal(t, 2, report.Summary.Cases)
	assert.GreaterOrEqual(t, report.Summary.ExpandedRecall, report.Summary.BaselineRecall)
	assert.InDelta(t, 1.0, report.Summary.ExpandedRecall, 1e-9)
}

func TestRunCommand_Text(t *testing.T) {
	var out bytes.Buffer
	app := newApp(&out)

	err := app.Run([]string{"hindsight-eval", "run", "-d", writeDataset(t)})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Dataset: smoke")
	assert.Contains(t, out.String(), "Mean recall")
}

func TestRunCommand_Flags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "dataset is required",
			args:    []string{"hindsight-eval", "run"},
			wantErr: "dataset",
		},
		{
			name:    "invalid format",
			args:    []string{"hindsight-eval", "run", "--dataset", "x.json", "--format", "xml"},
			wantErr: "invalid format",
		},
		{
			name:    "invalid mode",
			args:    []string{"hindsight-eval", "run", "--dataset", "x.json", "--mode", "fuzzy"},
			wantErr: "invalid mode",
		},
		{
			name:    "missing dataset file",
			args:    []string{"hindsight-eval", "run", "--dataset", "/nonexistent/dataset.json"},
			wantErr: "failed to read dataset",
		},
		{
			name:    "invalid log level",
			args:    []string{"hindsight-eval", "--log-level", "loud", "run", "--dataset", "x.json"},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(&bytes.Buffer{})
			err := app.Run(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
