package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

func TestDefaultCatalogCoversEveryTier(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.validate())

	for _, tier := range models.Tiers {
		d := c.Defaults(tier)
		assert.NotEmpty(t, d.GeneratorModel, tier)
		assert.NotEmpty(t, d.ReviewerModel, tier)
		assert.NotEmpty(t, d.FallbackModel, tier)
		assert.NotEqual(t, d.GeneratorModel, d.FallbackModel, "fallback default must be its own model for %s", tier)
		assert.NotEqual(t, d.ReviewerModel, d.FallbackModel, "fallback default must be its own model for %s", tier)
	}
}

func TestLoadMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`
tiers:
  production:
    generator: custom-gen
pricing:
  custom-gen: {input: 1.0, output: 2.0}
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	def, _ := Default()
	prod := c.Defaults(models.TierProduction)
	assert.Equal(t, "custom-gen", prod.GeneratorModel)
	assert.Equal(t, def.Defaults(models.TierProduction).ReviewerModel, prod.ReviewerModel)
	assert.Equal(t, def.Defaults(models.TierPremium), c.Defaults(models.TierPremium))
	assert.InDelta(t, 3.0, c.Cost("custom-gen", 1_000_000, 1_000_000), 1e-9)
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers:\n  enterprise:\n    generator: x\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestCostUnknownModelIsFree(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Zero(t, c.Cost("not-in-catalog", 1000, 1000))
}
