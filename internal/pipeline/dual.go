// Package pipeline implements the dual-model and iterative generation
// protocols on top of the model resolver.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/modelselect"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

// Invoker runs one role through its fallback chain.
type Invoker interface {
	Invoke(ctx context.Context, pref models.ModelPreference, role models.Role, prdID string, req provider.Request) (*modelselect.Result, error)
}

// DualInput describes one generate-then-review pass.
type DualInput struct {
	UserInput       string
	ExistingContent string
	Mode            models.GenerationMode
	PrdID           string
	Preference      models.ModelPreference
}

// Dual runs a single generator call followed by a single reviewer call. The
// reviewer's output is the final content.
type Dual struct {
	invoker Invoker
	logger  *slog.Logger
}

func NewDual(invoker Invoker, logger *slog.Logger) *Dual {
	return &Dual{invoker: invoker, logger: logger}
}

func (d *Dual) Run(ctx context.Context, in DualInput) (*models.DualGenerateResponse, error) {
	if strings.TrimSpace(in.UserInput) == "" && strings.TrimSpace(in.ExistingContent) == "" {
		return nil, apperr.Validation("userInput", "is required when there is no existing content")
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeFor(in.ExistingContent)
	}
	if !mode.IsValid() {
		return nil, apperr.Validation("mode", "must be generate or improve")
	}

	draft, err := d.invoker.Invoke(ctx, in.Preference, models.RoleGenerator, in.PrdID, provider.Request{
		System: generatorSystem,
		Prompt: generatorPrompt(mode, in.UserInput, in.ExistingContent),
	})
	if err != nil {
		return nil, fmt.Errorf("generate draft: %w", err)
	}
	if strings.TrimSpace(draft.Response.Content) == "" {
		return nil, &apperr.EmptyResultError{Stage: "generator"}
	}

	instructions := in.UserInput
	if strings.TrimSpace(instructions) == "" {
		instructions = "Improve the existing document."
	}
	review, err := d.invoker.Invoke(ctx, in.Preference, models.RoleReviewer, in.PrdID, provider.Request{
		System: reviewerSystem,
		Prompt: reviewerPrompt(instructions, draft.Response.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("review draft: %w", err)
	}

	final := strings.TrimSpace(review.Response.Content)
	if final == "" {
		return nil, &apperr.EmptyResultError{Stage: "reviewer"}
	}

	d.logger.Info("dual generation complete",
		"mode", mode,
		"generator", draft.Model,
		"reviewer", review.Model,
		"prd_id", in.PrdID,
	)

	return &models.DualGenerateResponse{
		FinalContent:      final,
		GeneratorResponse: modelResponse(draft),
		ReviewerResponse:  modelResponse(review),
		ModelsUsed:        distinct([]string{draft.Model, review.Model}),
		TokensUsed:        draft.TotalTokens() + review.TotalTokens(),
	}, nil
}

func modelResponse(r *modelselect.Result) models.ModelResponse {
	return models.ModelResponse{
		Model:        r.Model,
		InputTokens:  r.Response.InputTokens,
		OutputTokens: r.Response.OutputTokens,
	}
}

// distinct keeps the first occurrence of every id, in order.
func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
