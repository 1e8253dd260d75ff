// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/reposcout/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Analyzer is the part of the analysis service exposed as MCP tools.
type Analyzer interface {
	GetOrAnalyze(ctx context.Context, key schema.RepositoryKey, force bool) (*schema.AnalysisSnapshot, error)
	RankOwner(ctx context.Context, owner string, maxResults int) (*schema.SelectionResult, error)
	GetFileChanges(ctx context.Context, key schema.RepositoryKey) (*schema.ChangeReport, error)
}

// NewMCPServer initializes and configures the reposcout MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(svc Analyzer, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Reposcout Analysis Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{svc: svc}

	// --- 1. Tool: get_or_analyze ---
	s.AddTool(mcp.NewTool("get_or_analyze",
		mcp.WithDescription("Return the cached analysis of a GitHub repository or profile, re-analyzing only when it changed meaningfully."),
		mcp.WithString("target", mcp.Description("Repository as owner/repo, or a bare owner for the whole profile."), mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Discard the stored snapshot and analyze from scratch.")),
	), h.handleGetOrAnalyze)

	// --- 2. Tool: qualify_and_rank ---
	s.AddTool(mcp.NewTool("qualify_and_rank",
		mcp.WithDescription("Qualify, score and rank every public repository of a GitHub user."),
		mcp.WithString("owner", mcp.Description("GitHub user or organization."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Number of repositories to select (1-5).")),
	), h.handleQualifyAndRank)

	// --- 3. Tool: get_file_changes ---
	s.AddTool(mcp.NewTool("get_file_changes",
		mcp.WithDescription("List files added, modified or removed since the stored analysis, with the impact level."),
		mcp.WithString("target", mcp.Description("Repository as owner/repo, or a bare owner for the whole profile."), mcp.Required()),
	), h.handleGetFileChanges)

	return s
}

// StartMCPServer starts the reposcout MCP server on stdio.
func StartMCPServer(_ context.Context, svc Analyzer, version string) error {
	s := NewMCPServer(svc, version)
	return server.ServeStdio(s)
}
