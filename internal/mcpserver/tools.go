package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Reclaim MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolPoolStats = mcp.NewTool("pool_stats",
	mcp.WithDescription(
		"Get the Reclaim treasury pool state: current balance plus lifetime "+
			"funded and paid totals. Use this to see whether rewards can be covered."),
)

var ToolUserStats = mcp.NewTool("user_stats",
	mcp.WithDescription(
		"Get a cleaner's cumulative stats: accounts cleaned, sessions reported, "+
			"rewards earned, and the pending balance still waiting to be claimed."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The cleaner's identity (e.g. '0x1234...')")),
)

var ToolPreviewReward = mcp.NewTool("preview_reward",
	mcp.WithDescription(
		"Price a hypothetical cleanup batch without recording anything. "+
			"Shows base pay, tier bonus, and total for the given number of accounts."),
	mcp.WithNumber("accounts",
		mcp.Required(),
		mcp.Description("Number of accounts in the batch")),
	mcp.WithString("address",
		mcp.Description("Identity whose prior work counts toward the bonus tier (optional)")),
)

var ToolCleanupStatus = mcp.NewTool("cleanup_status",
	mcp.WithDescription(
		"Check whether an account is marked for cleanup, and by whom."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The account identity (e.g. '0x1234...')")),
)
