package modelselect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

// Catalog supplies tier defaults and prices.
type Catalog interface {
	Defaults
	Cost(model string, inputTokens, outputTokens int) float64
}

// UsageRecorder appends usage records.
type UsageRecorder interface {
	Record(rec *models.UsageRecord) error
}

// Attempt is one step of a fallback chain.
type Attempt struct {
	Model string
	// Served is the slot the model came from; it is RoleFallback when the
	// fallback slot stands in for the requested role.
	Served models.Role
}

// Result is a successful invocation.
type Result struct {
	Response  *provider.Response
	Model     string
	Role      models.Role
	Served    models.Role
	Attempted []string
}

// TotalTokens returns input plus output tokens of the response.
func (r *Result) TotalTokens() int {
	return r.Response.InputTokens + r.Response.OutputTokens
}

// Resolver invokes a role through its fallback chain and records usage.
type Resolver struct {
	provider provider.Provider
	catalog  Catalog
	usage    UsageRecorder
	logger   *slog.Logger
}

func NewResolver(p provider.Provider, catalog Catalog, usage UsageRecorder, logger *slog.Logger) *Resolver {
	return &Resolver{
		provider: p,
		catalog:  catalog,
		usage:    usage,
		logger:   logger,
	}
}

// Chain returns the ordered attempts for role: the configured model, then the
// fallback model acting as role, then the tier default for role. Another
// role's configured model is never part of the chain. Repeated ids are tried
// once.
func (r *Resolver) Chain(pref models.ModelPreference, role models.Role) []Attempt {
	pref = Resolve(pref, r.catalog)
	candidates := []Attempt{
		{Model: ModelFor(pref, role), Served: role},
		{Model: pref.FallbackModel, Served: models.RoleFallback},
		{Model: r.catalog.Defaults(pref.Tier).Slot(role), Served: role},
	}

	seen := make(map[string]bool, len(candidates))
	chain := make([]Attempt, 0, len(candidates))
	for _, c := range candidates {
		if c.Model == "" || seen[c.Model] {
			continue
		}
		seen[c.Model] = true
		chain = append(chain, c)
	}
	return chain
}

// Invoke runs req for role. The request's Model field is overwritten by each
// attempt. When every attempt fails a *apperr.ModelInvocationError lists the
// models tried. Context cancellation ends the chain immediately.
func (r *Resolver) Invoke(ctx context.Context, pref models.ModelPreference, role models.Role, prdID string, req provider.Request) (*Result, error) {
	if role != models.RoleGenerator && role != models.RoleReviewer {
		return nil, fmt.Errorf("invoke: unsupported role %q", role)
	}
	pref = Resolve(pref, r.catalog)

	var attempted []string
	var lastErr error
	for _, a := range r.Chain(pref, role) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("invoke %s: %w", role, err)
		}

		attempted = append(attempted, a.Model)
		req.Model = a.Model
		resp, err := r.provider.Generate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("invoke %s with %s: %w", role, a.Model, ctx.Err())
			}
			lastErr = err
			r.logger.Warn("model invocation failed",
				"role", role,
				"model", a.Model,
				"served_as", a.Served,
				"error", err,
			)
			continue
		}

		r.record(pref.Tier, a, prdID, resp)
		return &Result{
			Response:  resp,
			Model:     a.Model,
			Role:      role,
			Served:    a.Served,
			Attempted: attempted,
		}, nil
	}

	return nil, &apperr.ModelInvocationError{Role: role, Attempted: attempted, Last: lastErr}
}

func (r *Resolver) record(tier models.Tier, a Attempt, prdID string, resp *provider.Response) {
	if r.usage == nil {
		return
	}
	rec := &models.UsageRecord{
		Model:        a.Model,
		ModelType:    a.Served,
		Tier:         tier,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         r.catalog.Cost(a.Model, resp.InputTokens, resp.OutputTokens),
		PrdID:        prdID,
	}
	if err := r.usage.Record(rec); err != nil {
		// Non-fatal: the generation itself succeeded
		r.logger.Warn("failed to record usage", "model", a.Model, "error", err)
	}
}
