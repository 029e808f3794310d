package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// searchResultView is the compact result shape returned to MCP clients
type searchResultView struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	Modality     string  `json:"modality"`
	Explanation  string  `json:"explanation"`
	Content      string  `json:"content"`
	Lessons      string  `json:"lessons,omitempty"`
	Errors       string  `json:"errors,omitempty"`
	AgentID      string  `json:"agent_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
	MatchedQuery string  `json:"matched_query,omitempty"`
}

type searchResponseView struct {
	Results        []searchResultView `json:"results"`
	SearchType     string             `json:"search_type"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	QueriesRun     int                `json:"queries_run,omitempty"`
}

// handleSearchMemories handles the search_memories tool invocation
func (s *Server) handleSearchMemories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return mcp.NewToolResultError("query parameter is required and cannot be empty"), nil
	}

	limit := getIntDefault(args, "limit", s.limit)
	if limit < 1 || limit > 100 {
		return mcp.NewToolResultError("limit must be between 1 and 100"), nil
	}

	mode := domain.SearchMode(getStringDefault(args, "mode", string(domain.SearchModeHybrid)))
	if !mode.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid mode %q", mode)), nil
	}

	resp, err := s.search.Search(ctx, domain.SearchRequest{
		Mode:  mode,
		Query: query,
		Limit: limit,
		Filters: domain.SearchFilters{
			AgentID:         getStringDefault(args, "agent_id", ""),
			ConversationID:  getStringDefault(args, "conversation_id", ""),
			IncludeArchived: getBoolDefault(args, "include_archived", false),
			Visibility:      domain.NewCallerVisibility(s.caller),
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Error("search_memories failed", "err", err)
		return mcp.NewToolResultError("search failed"), nil
	}

	view := searchResponseView{Results: make([]searchResultView, 0, len(resp.Items))}
	if resp.Metadata != nil {
		view.SearchType = resp.Metadata.SearchType
		view.FallbackReason = resp.Metadata.FallbackReason
		view.QueriesRun = resp.Metadata.QueriesRun
	}
	for _, item := range resp.Items {
		view.Results = append(view.Results, searchResultView{
			ID:           item.Memory.ID,
			Score:        item.Score,
			Modality:     string(item.Modality),
			Explanation:  item.Explanation,
			Content:      item.Memory.Content,
			Lessons:      item.Memory.Lessons,
			Errors:       item.Memory.Errors,
			AgentID:      item.Memory.AgentID,
			CreatedAt:    item.Memory.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			MatchedQuery: item.MatchedQuery,
		})
	}

	return mcp.NewToolResultText(formatJSON(view)), nil
}

// handleExpandQuery handles the expand_query tool invocation
func (s *Server) handleExpandQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return mcp.NewToolResultError("query parameter is required and cannot be empty"), nil
	}

	if s.expander == nil {
		trace := domain.NewExpansionTrace(query)
		trace.DisabledReason = domain.ExpansionDisabledReason
		return mcp.NewToolResultText(formatJSON(trace)), nil
	}
	return mcp.NewToolResultText(formatJSON(s.expander.Expand(ctx, query))), nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
