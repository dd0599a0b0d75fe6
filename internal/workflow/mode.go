package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// Mode selects the protocol a submission runs. The set is closed: every
// variant implements the unexported run method.
type Mode interface {
	fmt.Stringer
	run(ctx context.Context, c *Controller, in Input) (*Result, error)
}

// Simple runs one generate-then-review pass.
type Simple struct{}

// Iterative runs Count alternating rounds, plus a final review when asked.
// A zero Count uses the saved iteration count.
type Iterative struct {
	Count       int
	FinalReview bool
}

// Guided opens a question/answer session.
type Guided struct{}

func (Simple) String() string    { return "simple" }
func (Iterative) String() string { return "iterative" }
func (Guided) String() string    { return "guided" }

// ParseMode maps a mode name to its variant using saved settings for the
// iterative parameters.
func ParseMode(name string, s models.AISettings) (Mode, error) {
	switch name {
	case "simple", "":
		if s.IterativeMode {
			return Iterative{Count: s.IterationCount, FinalReview: s.UseFinalReview}, nil
		}
		return Simple{}, nil
	case "iterative":
		return Iterative{Count: s.IterationCount, FinalReview: s.UseFinalReview}, nil
	case "guided":
		return Guided{}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", name)
}

func (Simple) run(ctx context.Context, c *Controller, in Input) (*Result, error) {
	c.transition(StateProcessing)
	resp, err := c.api.GenerateDual(ctx, &models.DualGenerateRequest{
		UserInput:       in.Text,
		ExistingContent: in.ExistingContent,
		Mode:            in.generationMode(),
		PrdID:           in.PrdID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Content: resp.FinalContent, ModelsUsed: resp.ModelsUsed, TokensUsed: resp.TokensUsed}, nil
}

func (m Iterative) run(ctx context.Context, c *Controller, in Input) (*Result, error) {
	settings := c.Settings()
	count := m.Count
	if count == 0 {
		count = settings.IterationCount
	}
	timeout := time.Duration(settings.IterativeTimeoutMinutes) * time.Minute

	c.transition(StateProcessing)
	stop := c.simulateProgress(ctx, count)
	defer stop()

	resp, err := c.api.GenerateIterative(ctx, &models.IterativeGenerateRequest{
		ExistingContent:        in.ExistingContent,
		AdditionalRequirements: in.Text,
		Mode:                   in.generationMode(),
		IterationCount:         count,
		UseFinalReview:         m.FinalReview,
		PrdID:                  in.PrdID,
	}, timeout)
	if err != nil {
		return nil, err
	}
	return &Result{Content: resp.FinalContent, ModelsUsed: resp.ModelsUsed, TokensUsed: resp.TokensUsed}, nil
}

func (Guided) run(ctx context.Context, c *Controller, in Input) (*Result, error) {
	c.transition(StateAnalyzing)
	resp, err := c.api.GuidedStart(ctx, &models.GuidedStartRequest{ProjectIdea: in.Text, PrdID: in.PrdID})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = &session{
		id:        resp.SessionID,
		overview:  resp.FeatureOverview,
		questions: resp.Questions,
	}
	c.mu.Unlock()
	c.transition(StateQuestions)
	return nil, nil
}
