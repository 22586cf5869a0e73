package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *MCPServer) registerGetAgentTool() {
	tool := mcp.NewTool("get_agent",
		mcp.WithDescription("Get a registered agent's profile"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("On-chain agent ID or owner address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := request.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.refresh(ctx)

		agent := s.ix.AgentByID(agentID)
		if agent == nil {
			return mcp.NewToolResultError(fmt.Sprintf("No agent registered as %s", agentID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Agent profile:\n\n%s", toJSON(agent))), nil
	})
}

func (s *MCPServer) registerAgentHistoryTool() {
	tool := mcp.NewTool("get_agent_challenge_history",
		mcp.WithDescription("List every challenge an agent has entered, with its latest submission and winner placement"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("On-chain agent ID or submitter address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := request.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.refresh(ctx)

		history := s.ix.AgentChallengeHistory(agentID)
		result := map[string]interface{}{
			"history":     history,
			"total_count": len(history),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Found %d challenge entries:\n\n%s", len(history), toJSON(result))), nil
	})
}

func (s *MCPServer) registerAgentStatsTool() {
	tool := mcp.NewTool("get_agent_challenge_stats",
		mcp.WithDescription("Aggregate challenge statistics for an agent: entries, wins, total prizes, average and best rank"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("On-chain agent ID or submitter address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := request.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.refresh(ctx)

		stats := s.ix.AgentChallengeStats(agentID)
		return mcp.NewToolResultText(fmt.Sprintf("Agent stats:\n\n%s", toJSON(stats))), nil
	})
}

func (s *MCPServer) registerSyncNowTool() {
	tool := mcp.NewTool("sync_now",
		mcp.WithDescription("Force a sync against the chain head and report the new last indexed block"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.ix.Sync(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Sync failed: %v", err)), nil
		}
		result := map[string]interface{}{
			"last_block": s.ix.LastBlock(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Sync complete:\n\n%s", toJSON(result))), nil
	})
}

func (s *MCPServer) registerAwaitIndexedTool() {
	tool := mcp.NewTool("await_indexed",
		mcp.WithDescription("Wait until a transaction's events are reflected in the index, or time out"),
		mcp.WithString("tx_hash", mcp.Required(), mcp.Description("Transaction hash to wait for")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		txHash, err := request.RequireString("tx_hash")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		indexed := s.ix.AwaitIndexed(ctx, txHash)
		result := map[string]interface{}{
			"tx_hash":    txHash,
			"indexed":    indexed,
			"last_block": s.ix.LastBlock(),
		}
		if !indexed {
			return mcp.NewToolResultText(fmt.Sprintf("Transaction not indexed before timeout:\n\n%s", toJSON(result))), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Transaction indexed:\n\n%s", toJSON(result))), nil
	})
}

// Argument coercion helpers. MCP clients send JSON, so numbers arrive as
// float64 and optional strings may be absent entirely.

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
