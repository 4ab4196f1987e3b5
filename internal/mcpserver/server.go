package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Reclaim tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("reclaim", "1.0.0")
	client := NewReclaimClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolPoolStats, h.HandlePoolStats)
	s.AddTool(ToolUserStats, h.HandleUserStats)
	s.AddTool(ToolPreviewReward, h.HandlePreviewReward)
	s.AddTool(ToolCleanupStatus, h.HandleCleanupStatus)

	return s
}
