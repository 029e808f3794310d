package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

type fakeSearch struct {
	got  domain.SearchRequest
	resp *domain.SearchResponse
	err  error
}

func (f *fakeSearch) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeSearch) SearchFulltext(ctx context.Context, query string, filters domain.SearchFilters, limit int, minScore float64) (*domain.SearchResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSearch) SearchSemantic(ctx context.Context, query string, filters domain.SearchFilters, limit int, threshold float64) (*domain.SearchResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSearch) SearchHybrid(ctx context.Context, query string, filters domain.SearchFilters, limit int, opts domain.HybridOptions) (*domain.SearchResponse, error) {
	return nil, errors.New("not implemented")
}

type fakeExpander struct{}

func (fakeExpander) Expand(ctx context.Context, query string) *domain.ExpansionTrace {
	trace := domain.NewExpansionTrace(query)
	trace.ExpandedQueries = []string{query + "s"}
	trace.ExpansionApplied = true
	return trace
}

func (fakeExpander) Enabled() bool { return true }

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleSearchMemories(t *testing.T) {
	search := &fakeSearch{resp: &domain.SearchResponse{
		Items: []*domain.ScoredResult{{
			Memory: &domain.Memory{
				ID:        "mem-1",
				Content:   "deploys were slow",
				Lessons:   "check latency dashboards",
				CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			Score:       0.9,
			Modality:    domain.ModalityHybrid,
			Explanation: "Hybrid match",
		}},
		Metadata: &domain.SearchMetadata{SearchType: "hybrid_expanded", QueriesRun: 3},
	}}
	caller := &domain.Caller{UserID: "agent-user"}
	s := NewServer(Config{Caller: caller, DefaultLimit: 7}, search, nil)

	res, err := s.handleSearchMemories(context.Background(), callRequest("search_memories", map[string]interface{}{
		"query":    "slow deploys",
		"mode":     "fulltext",
		"agent_id": "agent-1",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, domain.SearchModeFulltext, search.got.Mode)
	assert.Equal(t, 7, search.got.Limit)
	assert.Equal(t, "agent-1", search.got.Filters.AgentID)
	vis := search.got.Filters.Visibility.(domain.CallerVisibility)
	assert.Equal(t, caller, vis.Caller)

	var view searchResponseView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &view))
	require.Len(t, view.Results, 1)
	assert.Equal(t, "mem-1", view.Results[0].ID)
	assert.Equal(t, "hybrid", view.Results[0].Modality)
	assert.Equal(t, "2026-03-01T12:00:00Z", view.Results[0].CreatedAt)
	assert.Equal(t, "hybrid_expanded", view.SearchType)
	assert.Equal(t, 3, view.QueriesRun)
}

func TestHandleSearchMemories_InvalidArguments(t *testing.T) {
	s := NewServer(Config{}, &fakeSearch{}, nil)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing query", map[string]interface{}{}},
		{"blank query", map[string]interface{}{"query": "   "}},
		{"limit too high", map[string]interface{}{"query": "q", "limit": float64(500)}},
		{"unknown mode", map[string]interface{}{"query": "q", "mode": "vector"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleSearchMemories(context.Background(), callRequest("search_memories", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandleSearchMemories_ServiceErrors(t *testing.T) {
	search := &fakeSearch{err: domain.NewCallerError("min_score", domain.ErrInvalidWeight)}
	s := NewServer(Config{}, search, nil)

	res, err := s.handleSearchMemories(context.Background(), callRequest("search_memories", map[string]interface{}{"query": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "min_score")

	search.err = errors.New("connection reset")
	res, err = s.handleSearchMemories(context.Background(), callRequest("search_memories", map[string]interface{}{"query": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "search failed", resultText(t, res))
}

func TestHandleSearchMemories_AnonymousByDefault(t *testing.T) {
	search := &fakeSearch{resp: &domain.SearchResponse{Metadata: &domain.SearchMetadata{}}}
	s := NewServer(Config{}, search, nil)

	_, err := s.handleSearchMemories(context.Background(), callRequest("search_memories", map[string]interface{}{"query": "q"}))
	require.NoError(t, err)

	vis := search.got.Filters.Visibility.(domain.CallerVisibility)
	assert.True(t, vis.Caller.IsAnonymous())
	assert.Equal(t, 10, search.got.Limit)
}

func TestHandleExpandQuery(t *testing.T) {
	t.Run("with expander", func(t *testing.T) {
		s := NewServer(Config{}, &fakeSearch{}, fakeExpander{})
		res, err := s.handleExpandQuery(context.Background(), callRequest("expand_query", map[string]interface{}{"query": "deploy"}))
		require.NoError(t, err)

		var trace domain.ExpansionTrace
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &trace))
		assert.Equal(t, []string{"deploys"}, trace.ExpandedQueries)
	})

	t.Run("without expander", func(t *testing.T) {
		s := NewServer(Config{}, &fakeSearch{}, nil)
		res, err := s.handleExpandQuery(context.Background(), callRequest("expand_query", map[string]interface{}{"query": "deploy"}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, res), domain.ExpansionDisabledReason)
	})
}
