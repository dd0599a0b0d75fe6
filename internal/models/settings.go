package models

// Tier is a named preset bundling default model choices by cost/quality.
type Tier string

const (
	TierDevelopment Tier = "development"
	TierProduction  Tier = "production"
	TierPremium     Tier = "premium"
)

// Tiers lists every tier in ascending cost order.
var Tiers = []Tier{TierDevelopment, TierProduction, TierPremium}

func (t Tier) IsValid() bool {
	return t == TierDevelopment || t == TierProduction || t == TierPremium
}

// Role is a model role within a pipeline.
type Role string

const (
	RoleGenerator Role = "generator"
	RoleReviewer  Role = "reviewer"
	RoleFallback  Role = "fallback"
)

func (r Role) IsValid() bool {
	return r == RoleGenerator || r == RoleReviewer || r == RoleFallback
}

// TierModels holds the slots the user saved for one tier. Empty fields mean
// "not customized".
type TierModels struct {
	GeneratorModel string `json:"generatorModel,omitempty" yaml:"generator"`
	ReviewerModel  string `json:"reviewerModel,omitempty" yaml:"reviewer"`
	FallbackModel  string `json:"fallbackModel,omitempty" yaml:"fallback"`
}

// IsZero reports whether no slot is set.
func (m TierModels) IsZero() bool {
	return m.GeneratorModel == "" && m.ReviewerModel == "" && m.FallbackModel == ""
}

// Slot returns the model configured for role.
func (m TierModels) Slot(role Role) string {
	switch role {
	case RoleGenerator:
		return m.GeneratorModel
	case RoleReviewer:
		return m.ReviewerModel
	case RoleFallback:
		return m.FallbackModel
	}
	return ""
}

// ModelPreference is the current model selection plus per-tier customizations.
type ModelPreference struct {
	Tier           Tier                `json:"tier"`
	GeneratorModel string              `json:"generatorModel"`
	ReviewerModel  string              `json:"reviewerModel"`
	FallbackModel  string              `json:"fallbackModel"`
	TierModels     map[Tier]TierModels `json:"tierModels"`
}

// Slots returns the current three slots as a TierModels value.
func (p ModelPreference) Slots() TierModels {
	return TierModels{
		GeneratorModel: p.GeneratorModel,
		ReviewerModel:  p.ReviewerModel,
		FallbackModel:  p.FallbackModel,
	}
}

// Iteration bounds for the iterative refinement engine.
const (
	MinIterationCount = 2
	MaxIterationCount = 5
)

// AISettings is the persisted AI configuration exposed at /settings/ai.
type AISettings struct {
	ModelPreference
	IterativeMode           bool `json:"iterativeMode"`
	IterationCount          int  `json:"iterationCount"`
	IterativeTimeoutMinutes int  `json:"iterativeTimeoutMinutes"`
	UseFinalReview          bool `json:"useFinalReview"`
	GuidedQuestionRounds    int  `json:"guidedQuestionRounds"`
}

// Clone returns a deep copy so callers can mutate the tier map safely.
func (s AISettings) Clone() AISettings {
	out := s
	if s.TierModels != nil {
		out.TierModels = make(map[Tier]TierModels, len(s.TierModels))
		for k, v := range s.TierModels {
			out.TierModels[k] = v
		}
	}
	return out
}

// UpdateSettingsRequest is the payload for PATCH /settings/ai. Nil fields are
// left unchanged.
type UpdateSettingsRequest struct {
	Tier                    *Tier               `json:"tier,omitempty"`
	GeneratorModel          *string             `json:"generatorModel,omitempty"`
	ReviewerModel           *string             `json:"reviewerModel,omitempty"`
	FallbackModel           *string             `json:"fallbackModel,omitempty"`
	TierModels              map[Tier]TierModels `json:"tierModels,omitempty"`
	IterativeMode           *bool               `json:"iterativeMode,omitempty"`
	IterationCount          *int                `json:"iterationCount,omitempty"`
	IterativeTimeoutMinutes *int                `json:"iterativeTimeoutMinutes,omitempty"`
	UseFinalReview          *bool               `json:"useFinalReview,omitempty"`
	GuidedQuestionRounds    *int                `json:"guidedQuestionRounds,omitempty"`
}
