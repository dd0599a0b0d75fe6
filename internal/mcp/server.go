// Package mcp exposes document generation as MCP tools.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// Backend is the orchestration API the tools delegate to.
type Backend interface {
	GuidedStart(ctx context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error)
	GuidedAnswer(ctx context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error)
	GuidedFinalize(ctx context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error)
	GenerateDual(ctx context.Context, req *models.DualGenerateRequest) (*models.DualGenerateResponse, error)
	GenerateIterative(ctx context.Context, req *models.IterativeGenerateRequest, timeout time.Duration) (*models.IterativeGenerateResponse, error)
	Usage(ctx context.Context, since time.Time) (*models.UsageSummary, error)
}

const instructions = `Nexora drafts requirements documents with a generator model and a reviewer model.

Use prd_generate for a single pass and prd_refine for several rounds.
For a vague idea, start a guided session with prd_guided_start, answer its
questions with prd_guided_answer until isComplete is true, then call
prd_guided_finalize. prd_usage reports token usage and cost.`

// NewServer creates an MCP server with every tool registered.
func NewServer(backend Backend, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"nexora",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, t := range toolset(backend) {
		s.AddTool(t.Definition(), logged(t.Definition().Name, t.Handle, logger))
	}
	return s
}

// ServeStdio serves s on in and out until in closes or ctx is done.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func logged(name string, h server.ToolHandlerFunc, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)
		logger.Info("tool call",
			"tool", name,
			"is_error", err != nil || (res != nil && res.IsError),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}
}
