// Package modelselect resolves which model serves each role and drives the
// fallback chain when an invocation fails.
package modelselect

import (
	"github.com/hanno79/Nexora-sub001/internal/models"
)

// Defaults supplies the system default slots for a tier.
type Defaults interface {
	Defaults(tier models.Tier) models.TierModels
}

// Resolve returns pref with a valid tier and every slot non-empty: saved
// per-tier customizations first, then system defaults.
func Resolve(pref models.ModelPreference, defaults Defaults) models.ModelPreference {
	if !pref.Tier.IsValid() {
		pref.Tier = models.TierDevelopment
	}
	pref.TierModels = cloneTierModels(pref.TierModels)

	saved := pref.TierModels[pref.Tier]
	def := defaults.Defaults(pref.Tier)
	pref.GeneratorModel = firstNonEmpty(pref.GeneratorModel, saved.GeneratorModel, def.GeneratorModel)
	pref.ReviewerModel = firstNonEmpty(pref.ReviewerModel, saved.ReviewerModel, def.ReviewerModel)
	pref.FallbackModel = firstNonEmpty(pref.FallbackModel, saved.FallbackModel, def.FallbackModel)
	return pref
}

// SwitchTier moves pref to target. Slots the user customized for target are
// restored; the rest take the tier defaults, including the dedicated fallback
// default.
func SwitchTier(pref models.ModelPreference, target models.Tier, defaults Defaults) models.ModelPreference {
	if target == pref.Tier {
		return Resolve(pref, defaults)
	}
	pref.TierModels = cloneTierModels(pref.TierModels)
	if pref.Tier.IsValid() {
		rememberCustomized(&pref, defaults.Defaults(pref.Tier))
	}

	saved := pref.TierModels[target]
	def := defaults.Defaults(target)
	pref.Tier = target
	pref.GeneratorModel = firstNonEmpty(saved.GeneratorModel, def.GeneratorModel)
	pref.ReviewerModel = firstNonEmpty(saved.ReviewerModel, def.ReviewerModel)
	pref.FallbackModel = firstNonEmpty(saved.FallbackModel, def.FallbackModel)
	return pref
}

// SetSlot assigns model to role for the current tier and remembers it as a
// customization of that tier. An empty model clears the customization and
// restores the tier default.
func SetSlot(pref models.ModelPreference, role models.Role, model string, defaults Defaults) models.ModelPreference {
	pref.TierModels = cloneTierModels(pref.TierModels)
	if !pref.Tier.IsValid() {
		pref.Tier = models.TierDevelopment
	}

	saved := pref.TierModels[pref.Tier]
	def := defaults.Defaults(pref.Tier)
	value := firstNonEmpty(model, def.Slot(role))

	switch role {
	case models.RoleGenerator:
		pref.GeneratorModel = value
		saved.GeneratorModel = model
	case models.RoleReviewer:
		pref.ReviewerModel = value
		saved.ReviewerModel = model
	case models.RoleFallback:
		pref.FallbackModel = value
		saved.FallbackModel = model
	default:
		return pref
	}

	if saved.IsZero() {
		delete(pref.TierModels, pref.Tier)
	} else {
		pref.TierModels[pref.Tier] = saved
	}
	return pref
}

// rememberCustomized saves every current slot that differs from the tier
// default, so leaving the tier never loses a customization.
func rememberCustomized(pref *models.ModelPreference, def models.TierModels) {
	saved := pref.TierModels[pref.Tier]
	if pref.GeneratorModel != "" && pref.GeneratorModel != def.GeneratorModel {
		saved.GeneratorModel = pref.GeneratorModel
	}
	if pref.ReviewerModel != "" && pref.ReviewerModel != def.ReviewerModel {
		saved.ReviewerModel = pref.ReviewerModel
	}
	if pref.FallbackModel != "" && pref.FallbackModel != def.FallbackModel {
		saved.FallbackModel = pref.FallbackModel
	}
	if !saved.IsZero() {
		pref.TierModels[pref.Tier] = saved
	}
}

// ModelFor returns the configured model for role.
func ModelFor(pref models.ModelPreference, role models.Role) string {
	return pref.Slots().Slot(role)
}

func cloneTierModels(in map[models.Tier]models.TierModels) map[models.Tier]models.TierModels {
	out := make(map[models.Tier]models.TierModels, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
