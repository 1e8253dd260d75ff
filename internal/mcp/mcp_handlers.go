package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	svc Analyzer
}

// snapshotResult is the JSON shape returned for an analysis.
type snapshotResult struct {
	Key           string          `json:"key"`
	CreatedAt     time.Time       `json:"created_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
	Analysis      json.RawMessage `json:"analysis"`
}

func (h *toolHandler) handleGetOrAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := schema.ParseRepositoryKey(request.GetString("target", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target: %v", err)), nil
	}

	snap, err := h.svc.GetOrAnalyze(ctx, key, request.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	return jsonResult(snapshotResult{
		Key:           snap.Key.String(),
		CreatedAt:     snap.CreatedAt,
		LastCheckedAt: snap.LastCheckedAt,
		Analysis:      snap.Payload,
	})
}

func (h *toolHandler) handleQualifyAndRank(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := strings.TrimSpace(request.GetString("owner", ""))
	if owner == "" || strings.Contains(owner, "/") {
		return mcp.NewToolResultError("owner is required and must not contain '/'"), nil
	}
	limit := request.GetInt("limit", 0)
	if limit < 0 || limit > contract.MaxResultLimit {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be between 1 and %d", contract.MaxResultLimit)), nil
	}

	sel, err := h.svc.RankOwner(ctx, owner, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ranking failed: %v", err)), nil
	}
	return jsonResult(sel)
}

func (h *toolHandler) handleGetFileChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := schema.ParseRepositoryKey(request.GetString("target", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target: %v", err)), nil
	}

	report, err := h.svc.GetFileChanges(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("change detection failed: %v", err)), nil
	}
	return jsonResult(report)
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
