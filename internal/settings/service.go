// Package settings owns the persisted AI settings document.
package settings

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/modelselect"
)

const (
	defaultIterationCount  = 3
	defaultTimeoutMinutes  = 10
	maxTimeoutMinutes      = 120
	maxGuidedQuestionRound = 10
)

// Store loads and saves the settings document.
type Store interface {
	LoadAI() (*models.AISettings, error)
	SaveAI(s *models.AISettings) error
}

// Service applies partial updates with tier switching semantics.
type Service struct {
	store        Store
	defaults     modelselect.Defaults
	guidedRounds int
	logger       *slog.Logger
	mu           sync.Mutex
}

func NewService(store Store, defaults modelselect.Defaults, guidedRounds int, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		defaults:     defaults,
		guidedRounds: guidedRounds,
		logger:       logger,
	}
}

// Defaults returns the settings used before anything was saved.
func (s *Service) Defaults() models.AISettings {
	return models.AISettings{
		ModelPreference:         modelselect.Resolve(models.ModelPreference{Tier: models.TierDevelopment}, s.defaults),
		IterativeMode:           false,
		IterationCount:          defaultIterationCount,
		IterativeTimeoutMinutes: defaultTimeoutMinutes,
		UseFinalReview:          true,
		GuidedQuestionRounds:    s.guidedRounds,
	}
}

// Get returns the current settings with every model role resolved.
func (s *Service) Get() (models.AISettings, error) {
	stored, err := s.store.LoadAI()
	if err != nil {
		return models.AISettings{}, fmt.Errorf("load settings: %w", err)
	}
	if stored == nil {
		return s.Defaults(), nil
	}
	return s.normalize(*stored), nil
}

// Update applies req and persists the result. A tier change is applied before
// slot changes, so slots in the same request customize the new tier.
func (s *Service) Update(req *models.UpdateSettingsRequest) (models.AISettings, error) {
	if err := validate(req); err != nil {
		return models.AISettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Get()
	if err != nil {
		return models.AISettings{}, err
	}
	next := cur.Clone()

	for tier, slots := range req.TierModels {
		if slots.IsZero() {
			delete(next.TierModels, tier)
		} else {
			next.TierModels[tier] = slots
		}
	}
	if req.Tier != nil && *req.Tier != next.Tier {
		next.ModelPreference = modelselect.SwitchTier(next.ModelPreference, *req.Tier, s.defaults)
		s.logger.Info("model tier switched", "from", cur.Tier, "to", next.Tier)
	}
	if req.GeneratorModel != nil {
		next.ModelPreference = modelselect.SetSlot(next.ModelPreference, models.RoleGenerator, *req.GeneratorModel, s.defaults)
	}
	if req.ReviewerModel != nil {
		next.ModelPreference = modelselect.SetSlot(next.ModelPreference, models.RoleReviewer, *req.ReviewerModel, s.defaults)
	}
	if req.FallbackModel != nil {
		next.ModelPreference = modelselect.SetSlot(next.ModelPreference, models.RoleFallback, *req.FallbackModel, s.defaults)
	}
	if req.IterativeMode != nil {
		next.IterativeMode = *req.IterativeMode
	}
	if req.IterationCount != nil {
		next.IterationCount = *req.IterationCount
	}
	if req.IterativeTimeoutMinutes != nil {
		next.IterativeTimeoutMinutes = *req.IterativeTimeoutMinutes
	}
	if req.UseFinalReview != nil {
		next.UseFinalReview = *req.UseFinalReview
	}
	if req.GuidedQuestionRounds != nil {
		next.GuidedQuestionRounds = *req.GuidedQuestionRounds
	}

	next = s.normalize(next)
	if err := s.store.SaveAI(&next); err != nil {
		return models.AISettings{}, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

func (s *Service) normalize(in models.AISettings) models.AISettings {
	in.ModelPreference = modelselect.Resolve(in.ModelPreference, s.defaults)
	if in.IterationCount < models.MinIterationCount || in.IterationCount > models.MaxIterationCount {
		in.IterationCount = defaultIterationCount
	}
	if in.IterativeTimeoutMinutes < 1 {
		in.IterativeTimeoutMinutes = defaultTimeoutMinutes
	}
	if in.GuidedQuestionRounds < 1 {
		in.GuidedQuestionRounds = s.guidedRounds
	}
	return in
}

func validate(req *models.UpdateSettingsRequest) error {
	if req.Tier != nil && !req.Tier.IsValid() {
		return apperr.Validation("tier", "must be one of development, production, premium")
	}
	for tier := range req.TierModels {
		if !tier.IsValid() {
			return apperr.Validation("tierModels", "unknown tier %q", tier)
		}
	}
	if req.IterationCount != nil {
		if n := *req.IterationCount; n < models.MinIterationCount || n > models.MaxIterationCount {
			return apperr.Validation("iterationCount", "must be between %d and %d", models.MinIterationCount, models.MaxIterationCount)
		}
	}
	if req.IterativeTimeoutMinutes != nil {
		if n := *req.IterativeTimeoutMinutes; n < 1 || n > maxTimeoutMinutes {
			return apperr.Validation("iterativeTimeoutMinutes", "must be between 1 and %d", maxTimeoutMinutes)
		}
	}
	if req.GuidedQuestionRounds != nil {
		if n := *req.GuidedQuestionRounds; n < 1 || n > maxGuidedQuestionRound {
			return apperr.Validation("guidedQuestionRounds", "must be between 1 and %d", maxGuidedQuestionRound)
		}
	}
	return nil
}
