package modelselect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

type staticCatalog map[models.Tier]models.TierModels

func (c staticCatalog) Defaults(tier models.Tier) models.TierModels { return c[tier] }
func (c staticCatalog) Cost(model string, in, out int) float64   { return float64(in+out) / 1000 }

var testCatalog = staticCatalog{
	models.TierDevelopment: {GeneratorModel: "dev-gen", ReviewerModel: "dev-rev", FallbackModel: "dev-fb"},
	models.TierProduction:  {GeneratorModel: "prod-gen", ReviewerModel: "prod-rev", FallbackModel: "prod-fb"},
	models.TierPremium:     {GeneratorModel: "prem-gen", ReviewerModel: "prem-rev", FallbackModel: "prem-fb"},
}

// scriptedProvider fails for every model listed in failing.
type scriptedProvider struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   []string
}

func (p *scriptedProvider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req.Model)
	p.mu.Unlock()
	if p.failing[req.Model] {
		return nil, errors.New("boom")
	}
	return &provider.Response{Model: req.Model, Content: "ok from " + req.Model, InputTokens: 10, OutputTokens: 5}, nil
}

type memUsage struct {
	records []*models.UsageRecord
}

func (m *memUsage) Record(rec *models.UsageRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func customizedPref() models.ModelPreference {
	return models.ModelPreference{
		Tier:           models.TierDevelopment,
		GeneratorModel: "my-gen",
		ReviewerModel:  "my-rev",
		FallbackModel:  "my-fb",
	}
}

func TestResolveFillsEveryRole(t *testing.T) {
	got := Resolve(models.ModelPreference{}, testCatalog)
	assert.Equal(t, models.TierDevelopment, got.Tier)
	assert.Equal(t, "dev-gen", got.GeneratorModel)
	assert.Equal(t, "dev-rev", got.ReviewerModel)
	assert.Equal(t, "dev-fb", got.FallbackModel)
}

func TestSwitchTierRestoresCustomizedSlots(t *testing.T) {
	pref := Resolve(models.ModelPreference{Tier: models.TierDevelopment}, testCatalog)
	pref = SetSlot(pref, models.RoleGenerator, "my-gen", testCatalog)
	pref = SetSlot(pref, models.RoleReviewer, "my-rev", testCatalog)
	pref = SetSlot(pref, models.RoleFallback, "my-fb", testCatalog)
	before := pref.Slots()

	prod := SwitchTier(pref, models.TierProduction, testCatalog)
	assert.Equal(t, models.TierProduction, prod.Tier)
	assert.Equal(t, testCatalog[models.TierProduction], prod.Slots())

	back := SwitchTier(prod, models.TierDevelopment, testCatalog)
	if diff := cmp.Diff(before, back.Slots()); diff != "" {
		t.Fatalf("development slots not restored (-want +got):\n%s", diff)
	}
}

func TestSwitchTierUsesDedicatedFallbackDefault(t *testing.T) {
	pref := Resolve(models.ModelPreference{}, testCatalog)
	got := SwitchTier(pref, models.TierPremium, testCatalog)
	assert.Equal(t, "prem-fb", got.FallbackModel)
	assert.NotEqual(t, got.GeneratorModel, got.FallbackModel)
}

func TestSwitchTierRemembersUnsavedCustomization(t *testing.T) {
	pref := customizedPref()
	prod := SwitchTier(pref, models.TierProduction, testCatalog)
	back := SwitchTier(prod, models.TierDevelopment, testCatalog)
	assert.Equal(t, pref.Slots(), back.Slots())
}

func TestSetSlotEmptyRestoresDefault(t *testing.T) {
	pref := Resolve(models.ModelPreference{}, testCatalog)
	pref = SetSlot(pref, models.RoleGenerator, "my-gen", testCatalog)
	require.Contains(t, pref.TierModels, models.TierDevelopment)

	pref = SetSlot(pref, models.RoleGenerator, "", testCatalog)
	assert.Equal(t, "dev-gen", pref.GeneratorModel)
	assert.NotContains(t, pref.TierModels, models.TierDevelopment)
}

func TestChainNeverCrossesRoles(t *testing.T) {
	r := NewResolver(&scriptedProvider{}, testCatalog, nil, discardLogger())

	chain := r.Chain(customizedPref(), models.RoleGenerator)
	var ids []string
	for _, a := range chain {
		ids = append(ids, a.Model)
	}
	assert.Equal(t, []string{"my-gen", "my-fb", "dev-gen"}, ids)
	assert.NotContains(t, ids, "my-rev")
	assert.Equal(t, models.RoleFallback, chain[1].Served)
}

func TestChainDeduplicates(t *testing.T) {
	r := NewResolver(&scriptedProvider{}, testCatalog, nil, discardLogger())
	pref := Resolve(models.ModelPreference{}, testCatalog)

	chain := r.Chain(pref, models.RoleReviewer)
	require.Len(t, chain, 2)
	assert.Equal(t, "dev-rev", chain[0].Model)
	assert.Equal(t, "dev-fb", chain[1].Model)
}

func TestInvokeFallsBackInOrder(t *testing.T) {
	p := &scriptedProvider{failing: map[string]bool{"my-gen": true}}
	usage := &memUsage{}
	r := NewResolver(p, testCatalog, usage, discardLogger())

	res, err := r.Invoke(context.Background(), customizedPref(), models.RoleGenerator, "prd-1", provider.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "my-fb", res.Model)
	assert.Equal(t, models.RoleFallback, res.Served)
	assert.Equal(t, []string{"my-gen", "my-fb"}, p.calls)

	require.Len(t, usage.records, 1)
	assert.Equal(t, models.RoleFallback, usage.records[0].ModelType)
	assert.Equal(t, "prd-1", usage.records[0].PrdID)
	assert.InDelta(t, 0.015, usage.records[0].Cost, 1e-9)
}

func TestInvokeForcedGeneratorFailureTriesTierDefault(t *testing.T) {
	p := &scriptedProvider{failing: map[string]bool{"my-gen": true, "my-fb": true}}
	r := NewResolver(p, testCatalog, nil, discardLogger())

	res, err := r.Invoke(context.Background(), customizedPref(), models.RoleGenerator, "", provider.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "dev-gen", res.Model)
	assert.Equal(t, []string{"my-gen", "my-fb", "dev-gen"}, p.calls)
	assert.NotContains(t, p.calls, "my-rev")
}

func TestInvokeExhaustedListsEveryModel(t *testing.T) {
	p := &scriptedProvider{failing: map[string]bool{"my-gen": true, "my-fb": true, "dev-gen": true}}
	r := NewResolver(p, testCatalog, nil, discardLogger())

	_, err := r.Invoke(context.Background(), customizedPref(), models.RoleGenerator, "", provider.Request{Prompt: "x"})
	require.Error(t, err)

	var invErr *apperr.ModelInvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, models.RoleGenerator, invErr.Role)
	assert.Equal(t, []string{"my-gen", "my-fb", "dev-gen"}, invErr.Attempted)
	assert.True(t, apperr.Retryable(err))
}

func TestInvokeStopsOnCancelledContext(t *testing.T) {
	p := &scriptedProvider{}
	r := NewResolver(p, testCatalog, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, customizedPref(), models.RoleReviewer, "", provider.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, p.calls)
}
