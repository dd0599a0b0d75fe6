// Package catalog loads per-tier default models and model pricing.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

//go:embed default.yaml
var defaultCatalog []byte

// Price is USD per million tokens.
type Price struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

// Catalog maps tiers to default models and models to prices.
type Catalog struct {
	Tiers   map[models.Tier]models.TierModels `yaml:"tiers" json:"tiers"`
	Pricing map[string]Price                  `yaml:"pricing" json:"pricing"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded default when path is
// empty. Tiers missing from the file are filled from the default.
func Load(path string) (*Catalog, error) {
	def, err := Default()
	if err != nil {
		return nil, fmt.Errorf("parse default catalog: %w", err)
	}
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, tier := range models.Tiers {
		c.Tiers[tier] = mergeSlots(c.Tiers[tier], def.Tiers[tier])
	}
	for model, price := range def.Pricing {
		if _, ok := c.Pricing[model]; !ok {
			c.Pricing[model] = price
		}
	}
	return c, c.validate()
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Tiers == nil {
		c.Tiers = map[models.Tier]models.TierModels{}
	}
	if c.Pricing == nil {
		c.Pricing = map[string]Price{}
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for tier := range c.Tiers {
		if !tier.IsValid() {
			return fmt.Errorf("catalog: unknown tier %q", tier)
		}
	}
	for _, tier := range models.Tiers {
		d := c.Tiers[tier]
		if d.GeneratorModel == "" || d.ReviewerModel == "" || d.FallbackModel == "" {
			return fmt.Errorf("catalog: tier %s must define generator, reviewer and fallback", tier)
		}
	}
	return nil
}

// Defaults returns the default slots for tier.
func (c *Catalog) Defaults(tier models.Tier) models.TierModels {
	return c.Tiers[tier]
}

// Cost prices a call. Unknown models cost nothing.
func (c *Catalog) Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := c.Pricing[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.Input + float64(outputTokens)*p.Output) / 1_000_000
}

func mergeSlots(primary, fallback models.TierModels) models.TierModels {
	if primary.GeneratorModel == "" {
		primary.GeneratorModel = fallback.GeneratorModel
	}
	if primary.ReviewerModel == "" {
		primary.ReviewerModel = fallback.ReviewerModel
	}
	if primary.FallbackModel == "" {
		primary.FallbackModel = fallback.FallbackModel
	}
	return primary
}
