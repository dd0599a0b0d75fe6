package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

// IterativeInput describes an N-round refinement.
type IterativeInput struct {
	ExistingContent        string
	AdditionalRequirements string
	Mode                   models.GenerationMode
	IterationCount         int
	UseFinalReview         bool
	PrdID                  string
	Preference             models.ModelPreference
	// OnRound is called after each completed round, in order.
	OnRound func(models.IterationRound)
}

// Iterative alternates generator and reviewer for a fixed number of rounds,
// each round consuming the previous round's output.
type Iterative struct {
	invoker Invoker
	logger  *slog.Logger
}

func NewIterative(invoker Invoker, logger *slog.Logger) *Iterative {
	return &Iterative{invoker: invoker, logger: logger}
}

// RoleForRound returns the role that drives round n (1-based).
func RoleForRound(n int) models.Role {
	if n%2 == 1 {
		return models.RoleGenerator
	}
	return models.RoleReviewer
}

func (it *Iterative) Run(ctx context.Context, in IterativeInput) (*models.IterativeGenerateResponse, error) {
	if in.IterationCount < models.MinIterationCount || in.IterationCount > models.MaxIterationCount {
		return nil, apperr.Validation("iterationCount", "must be between %d and %d",
			models.MinIterationCount, models.MaxIterationCount)
	}
	if strings.TrimSpace(in.ExistingContent) == "" && strings.TrimSpace(in.AdditionalRequirements) == "" {
		return nil, apperr.Validation("additionalRequirements", "is required when there is no existing content")
	}
	if in.Mode != "" && !in.Mode.IsValid() {
		return nil, apperr.Validation("mode", "must be generate or improve")
	}

	current := in.ExistingContent
	if in.Mode == models.GenerationModeGenerate || (in.Mode == "" && IsScaffold(current)) {
		current = ""
	}

	total := in.IterationCount
	var (
		rounds []models.IterationRound
		used   []string
		tokens int
	)

	for n := 1; n <= total; n++ {
		role := RoleForRound(n)
		system := generatorSystem
		if role == models.RoleReviewer {
			system = reviewerSystem
		}

		res, err := it.invoker.Invoke(ctx, in.Preference, role, in.PrdID, provider.Request{
			System: system,
			Prompt: roundPrompt(n, total, in.AdditionalRequirements, current),
		})
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", n, err)
		}
		out := strings.TrimSpace(res.Response.Content)
		if out == "" {
			return nil, &apperr.EmptyResultError{Stage: fmt.Sprintf("round %d", n)}
		}

		current = out
		round := models.IterationRound{
			Round:        n,
			Role:         role,
			Model:        res.Model,
			InputTokens:  res.Response.InputTokens,
			OutputTokens: res.Response.OutputTokens,
		}
		rounds = append(rounds, round)
		used = append(used, res.Model)
		tokens += res.TotalTokens()
		if in.OnRound != nil {
			in.OnRound(round)
		}
		it.logger.Debug("refinement round complete", "round", n, "of", total, "role", role, "model", res.Model)
	}

	if in.UseFinalReview {
		res, err := it.invoker.Invoke(ctx, in.Preference, models.RoleReviewer, in.PrdID, provider.Request{
			System: finalReviewSystem,
			Prompt: reviewerPrompt(in.AdditionalRequirements, current),
		})
		if err != nil {
			return nil, fmt.Errorf("final review: %w", err)
		}
		out := strings.TrimSpace(res.Response.Content)
		if out == "" {
			return nil, &apperr.EmptyResultError{Stage: "final review"}
		}

		current = out
		round := models.IterationRound{
			Round:        total + 1,
			Role:         models.RoleReviewer,
			Model:        res.Model,
			FinalReview:  true,
			InputTokens:  res.Response.InputTokens,
			OutputTokens: res.Response.OutputTokens,
		}
		rounds = append(rounds, round)
		used = append(used, res.Model)
		tokens += res.TotalTokens()
		if in.OnRound != nil {
			in.OnRound(round)
		}
	}

	it.logger.Info("iterative generation complete",
		"rounds", total,
		"final_review", in.UseFinalReview,
		"tokens", tokens,
		"prd_id", in.PrdID,
	)

	return &models.IterativeGenerateResponse{
		FinalContent: current,
		ModelsUsed:   distinct(used),
		TokensUsed:   tokens,
		Rounds:       rounds,
	}, nil
}
