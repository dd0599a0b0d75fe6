package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/pipeline"
)

// Tool is one registered MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func toolset(b Backend) []Tool {
	return []Tool{
		&generateTool{b},
		&refineTool{b},
		&guidedStartTool{b},
		&guidedAnswerTool{b},
		&guidedFinalizeTool{b},
		&usageTool{b},
	}
}

// bind decodes the call arguments into v.
func bind(req mcp.CallToolRequest, v any) error {
	data, err := json.Marshal(req.GetArguments())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func failure(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.Message(err))
}

func document(content string, modelsUsed []string, tokens int) *mcp.CallToolResult {
	var b strings.Builder
	b.WriteString(content)
	fmt.Fprintf(&b, "\n\n---\nmodels: %s\ntokens: %d\n", strings.Join(modelsUsed, ", "), tokens)
	return mcp.NewToolResultText(b.String())
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("marshal error: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

type generateTool struct{ backend Backend }

func (t *generateTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_generate",
		mcp.WithDescription("Draft or improve a requirements document in one pass: the generator model writes, "+
			"the reviewer model polishes."),
		mcp.WithString("userInput", mcp.Description("What the document should cover")),
		mcp.WithString("existingContent", mcp.Description("Current document to improve instead of drafting from scratch")),
		mcp.WithString("prdId", mcp.Description("Document id; collaborators watching it are notified")),
	)
}

func (t *generateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.DualGenerateRequest
	if err := bind(req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in.Mode = pipeline.ModeFor(in.ExistingContent)
	resp, err := t.backend.GenerateDual(ctx, &in)
	if err != nil {
		return failure(err), nil
	}
	return document(resp.FinalContent, resp.ModelsUsed, resp.TokensUsed), nil
}

type refineTool struct{ backend Backend }

func (t *refineTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_refine",
		mcp.WithDescription("Refine a document over several alternating generator/reviewer rounds. "+
			"Slower than prd_generate; use for deeper work."),
		mcp.WithString("additionalRequirements", mcp.Description("Requirements to fold in")),
		mcp.WithString("existingContent", mcp.Description("Current document")),
		mcp.WithNumber("iterationCount",
			mcp.Required(),
			mcp.Description("Rounds to run"),
			mcp.Min(models.MinIterationCount),
			mcp.Max(models.MaxIterationCount),
		),
		mcp.WithBoolean("useFinalReview", mcp.Description("Append one quality pass after the last round")),
		mcp.WithString("prdId", mcp.Description("Document id")),
	)
}

func (t *refineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.IterativeGenerateRequest
	if err := bind(req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in.Mode = pipeline.ModeFor(in.ExistingContent)
	resp, err := t.backend.GenerateIterative(ctx, &in, 0)
	if err != nil {
		return failure(err), nil
	}
	return document(resp.FinalContent, resp.ModelsUsed, resp.TokensUsed), nil
}

type guidedStartTool struct{ backend Backend }

func (t *guidedStartTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_guided_start",
		mcp.WithDescription("Start a guided session. Returns a feature overview and clarifying questions to "+
			"answer with prd_guided_answer."),
		mcp.WithString("projectIdea", mcp.Required(), mcp.Description("The project idea, at least 10 characters")),
		mcp.WithString("prdId", mcp.Description("Document id")),
	)
}

func (t *guidedStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.GuidedStartRequest
	if err := bind(req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.backend.GuidedStart(ctx, &in)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(resp), nil
}

type guidedAnswerTool struct{ backend Backend }

func (t *guidedAnswerTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_guided_answer",
		mcp.WithDescription("Answer the open questions of a guided session. When the reply says isComplete, "+
			"call prd_guided_finalize."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session id from prd_guided_start")),
		mcp.WithArray("answers",
			mcp.Required(),
			mcp.Description("One entry per answered question"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questionId":       map[string]any{"type": "string"},
					"selectedOptionId": map[string]any{"type": "string", "description": `Option id, or "custom" with customText`},
					"customText":       map[string]any{"type": "string"},
				},
				"required": []string{"questionId", "selectedOptionId"},
			}),
		),
	)
}

func (t *guidedAnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.GuidedAnswerRequest
	if err := bind(req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.backend.GuidedAnswer(ctx, &in)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(resp), nil
}

type guidedFinalizeTool struct{ backend Backend }

func (t *guidedFinalizeTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_guided_finalize",
		mcp.WithDescription("Write the final document for a guided session."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session id")),
	)
}

func (t *guidedFinalizeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.GuidedFinalizeRequest
	if err := bind(req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.backend.GuidedFinalize(ctx, &in)
	if err != nil {
		return failure(err), nil
	}
	return document(resp.PrdContent, resp.ModelsUsed, resp.TokensUsed), nil
}

type usageTool struct{ backend Backend }

func (t *usageTool) Definition() mcp.Tool {
	return mcp.NewTool("prd_usage",
		mcp.WithDescription("Summarize model usage and cost."),
		mcp.WithString("since", mcp.Description("RFC 3339 start time; omit for all time")),
	)
}

func (t *usageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var since time.Time
	if s := req.GetString("since", ""); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return mcp.NewToolResultError("since must be an RFC 3339 timestamp"), nil
		}
		since = parsed
	}
	summary, err := t.backend.Usage(ctx, since)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(summary), nil
}
