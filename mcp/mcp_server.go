package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	coreindex "clawboard-backend/core/index"
	"clawboard-backend/middleware/indexer"
)

// MCPServer wraps the mcp-go server around the chain indexer.
type MCPServer struct {
	mcpServer *server.MCPServer
	ix        *indexer.Indexer
}

// NewMCPServer creates a new MCP server exposing indexer reads as tools.
func NewMCPServer(ix *indexer.Indexer) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Clawboard Indexer",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		ix:        ix,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup.
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *MCPServer) registerTools() {
	// Bounty tools
	s.registerListOpenBountiesTool()
	s.registerGetBountyTool()

	// Challenge tools
	s.registerListChallengesTool()
	s.registerGetChallengeTool()
	s.registerChallengeLeaderboardTool()

	// Agent tools
	s.registerGetAgentTool()
	s.registerAgentHistoryTool()
	s.registerAgentStatsTool()

	// Sync tools
	s.registerSyncNowTool()
	s.registerAwaitIndexedTool()
}

// refresh runs a proactive sync before a read. A failed sync is not fatal:
// the tool serves the last consistent snapshot instead.
func (s *MCPServer) refresh(ctx context.Context) {
	if err := s.ix.Sync(ctx); err != nil {
		log.WithError(err).Warn("sync before read failed, serving last good snapshot")
	}
}

func (s *MCPServer) registerListOpenBountiesTool() {
	tool := mcp.NewTool("list_open_bounties",
		mcp.WithDescription("List bounties, open ones by default, with optional filtering"),
		mcp.WithString("status", mcp.Description("Filter by bounty status (default: open)")),
		mcp.WithString("skill", mcp.Description("Case-insensitive substring match against skill tags")),
		mcp.WithString("min_amount", mcp.Description("Minimum escrow amount in exact token units")),
		mcp.WithString("max_amount", mcp.Description("Maximum escrow amount in exact token units")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of bounties to return")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		s.refresh(ctx)

		filter := coreindex.BountyFilter{
			Status:    coreindex.BountyStatus(toString(args["status"])),
			Skill:     toString(args["skill"]),
			MinAmount: toString(args["min_amount"]),
			MaxAmount: toString(args["max_amount"]),
			Limit:     int(toInt64(args["limit"])),
		}

		bounties := s.ix.OpenBounties(filter)
		result := map[string]interface{}{
			"bounties":    bounties,
			"total_count": len(bounties),
			"last_block":  s.ix.LastBlock(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Found %d bounties:\n\n%s", len(bounties), toJSON(result))), nil
	})
}

func (s *MCPServer) registerGetBountyTool() {
	tool := mcp.NewTool("get_bounty",
		mcp.WithDescription("Get details of a specific bounty"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Bounty contract address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addr, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.refresh(ctx)

		bounty := s.ix.BountyByAddress(addr)
		if bounty == nil {
			return mcp.NewToolResultError(fmt.Sprintf("No bounty at %s", addr)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Bounty details:\n\n%s", toJSON(bounty))), nil
	})
}

func (s *MCPServer) registerListChallengesTool() {
	tool := mcp.NewTool("list_challenges",
		mcp.WithDescription("List challenges with optional status filtering"),
		mcp.WithString("status", mcp.Description("Filter by challenge status")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of challenges to return")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		s.refresh(ctx)

		challenges := s.ix.Challenges(coreindex.ChallengeFilter{
			Status: coreindex.ChallengeStatus(toString(args["status"])),
			Limit:  int(toInt64(args["limit"])),
		})
		result := map[string]interface{}{
			"challenges":  challenges,
			"total_count": len(challenges),
			"last_block":  s.ix.LastBlock(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Found %d challenges:\n\n%s", len(challenges), toJSON(result))), nil
	})
}

func (s *MCPServer) registerGetChallengeTool() {
	tool := mcp.NewTool("get_challenge",
		mcp.WithDescription("Get details of a specific challenge"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Challenge contract address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addr, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.refresh(ctx)

		challenge := s.ix.ChallengeByAddress(addr)
		if challenge == nil {
			return mcp.NewToolResultError(fmt.Sprintf("No challenge at %s", addr)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Challenge details:\n\n%s", toJSON(challenge))), nil
	})
}

func (s *MCPServer) registerChallengeLeaderboardTool() {
	tool := mcp.NewTool("get_challenge_leaderboard",
		mcp.WithDescription("Get a challenge's leaderboard: scored submissions ranked by score, or all submissions by version before scoring starts"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Challenge contract address")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries to return")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addr, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := request.GetArguments()
		s.refresh(ctx)

		if s.ix.ChallengeByAddress(addr) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("No challenge at %s", addr)), nil
		}
		entries := s.ix.ChallengeLeaderboard(addr, int(toInt64(args["limit"])))
		result := map[string]interface{}{
			"leaderboard": entries,
			"total_count": len(entries),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Leaderboard (%d entries):\n\n%s", len(entries), toJSON(result))), nil
	})
}

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
