package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchMemoriesTool returns the tool definition for search_memories
func searchMemoriesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memories",
		Description: "Search stored agent memories by keywords or meaning. Results carry a score, the modality that produced them and a short explanation.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look for",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Ranking strategy",
					"enum":        []string{"hybrid", "fulltext", "semantic"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"agent_id": map[string]interface{}{
					"type":        "string",
					"description": "Only memories recorded by this agent",
				},
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Only memories from this conversation",
				},
				"include_archived": map[string]interface{}{
					"type":        "boolean",
					"description": "Include archived memories",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// expandQueryTool returns the tool definition for expand_query
func expandQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "expand_query",
		Description: "Preview the query variants search would also run for a query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to expand",
				},
			},
			Required: []string{"query"},
		},
	}
}
