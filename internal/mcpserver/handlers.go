package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ReclaimClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ReclaimClient) *Handlers {
	return &Handlers{client: client}
}

// HandlePoolStats reports the treasury pool state.
func (h *Handlers) HandlePoolStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetTreasury(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch treasury: %v", err)), nil
	}

	var pool struct {
		Balance string `json:"balance"`
		Funded  string `json:"funded"`
		Paid    string `json:"paid"`
	}
	if err := json.Unmarshal(raw, &pool); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse treasury: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("Reward pool:\n")
	fmt.Fprintf(&b, "  Balance: %s\n", pool.Balance)
	fmt.Fprintf(&b, "  Lifetime funded: %s\n", pool.Funded)
	fmt.Fprintf(&b, "  Lifetime paid: %s\n", pool.Paid)
	return mcp.NewToolResultText(b.String()), nil
}

// HandleUserStats reports a cleaner's cumulative stats.
func (h *Handlers) HandleUserStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.GetUserStats(ctx, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch user stats: %v", err)), nil
	}

	var stats struct {
		Identity        string `json:"identity"`
		AccountsCleaned int64  `json:"accountsCleaned"`
		Sessions        int64  `json:"sessions"`
		RewardsEarned   string `json:"rewardsEarned"`
		Pending         string `json:"pending"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %s:\n", stats.Identity)
	fmt.Fprintf(&b, "  Accounts cleaned: %d\n", stats.AccountsCleaned)
	fmt.Fprintf(&b, "  Sessions reported: %d\n", stats.Sessions)
	fmt.Fprintf(&b, "  Rewards earned: %s\n", stats.RewardsEarned)
	fmt.Fprintf(&b, "  Pending balance: %s\n", stats.Pending)
	return mcp.NewToolResultText(b.String()), nil
}

// HandlePreviewReward prices a hypothetical cleanup batch.
func (h *Handlers) HandlePreviewReward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accounts := req.GetInt("accounts", 0)
	if accounts <= 0 {
		return mcp.NewToolResultError("accounts must be a positive number"), nil
	}
	address := req.GetString("address", "")

	raw, err := h.client.PreviewReward(ctx, address, int64(accounts))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to preview reward: %v", err)), nil
	}

	var preview struct {
		Accounts     int64  `json:"accounts"`
		Base         string `json:"base"`
		Bonus        string `json:"bonus"`
		Total        string `json:"total"`
		BonusApplied bool   `json:"bonusApplied"`
	}
	if err := json.Unmarshal(raw, &preview); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse preview: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reward for cleaning %d accounts:\n", preview.Accounts)
	fmt.Fprintf(&b, "  Base: %s\n", preview.Base)
	fmt.Fprintf(&b, "  Bonus: %s\n", preview.Bonus)
	fmt.Fprintf(&b, "  Total: %s\n", preview.Total)
	if preview.BonusApplied {
		b.WriteString("  Tier bonus applies to this batch.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// HandleCleanupStatus reports the cleanup state of an account.
func (h *Handlers) HandleCleanupStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.GetCleanupStatus(ctx, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch cleanup status: %v", err)), nil
	}

	var status struct {
		Account  string `json:"account"`
		Marked   bool   `json:"marked"`
		MarkedBy string `json:"markedBy"`
		MarkedAt string `json:"markedAt"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse status: %v", err)), nil
	}

	if !status.Marked {
		return mcp.NewToolResultText(fmt.Sprintf("%s is not marked for cleanup.", address)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is marked for cleanup:\n", status.Account)
	fmt.Fprintf(&b, "  Marked by: %s\n", status.MarkedBy)
	fmt.Fprintf(&b, "  Marked at: %s\n", status.MarkedAt)
	return mcp.NewToolResultText(b.String()), nil
}
