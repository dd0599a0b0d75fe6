package workflow

import (
	"context"
	"reflect"

	"github.com/hanno79/Nexora-sub001/internal/autosave"
	"github.com/hanno79/Nexora-sub001/internal/models"
)

// LoadSettings fetches the saved settings and starts autosaving edits
// against that snapshot.
func (c *Controller) LoadSettings(ctx context.Context) (models.AISettings, error) {
	if err := c.Close(ctx); err != nil {
		c.logger.Warn("discarding unsaved settings", "error", err)
	}

	saved, err := c.api.Settings(ctx)
	if err != nil {
		return models.AISettings{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = saved.Clone()
	c.loaded = true
	c.autosave = autosave.New(saved.Clone(), c.opts.AutosaveDelay, c.saveSettings, sameSettings,
		autosave.Options[models.AISettings]{
			OnSaved: c.settingsSaved,
			OnError: func(err error) {
				c.mu.Lock()
				c.lastErr = "Settings could not be saved: " + err.Error()
				c.mu.Unlock()
			},
			Logger: c.logger,
		})
	return c.settings.Clone(), nil
}

// Settings returns the local settings, including unsaved edits.
func (c *Controller) Settings() models.AISettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// UpdateSettings applies edit locally and schedules a save.
func (c *Controller) UpdateSettings(edit func(*models.AISettings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrSettingsNotLoaded
	}
	next := c.settings.Clone()
	edit(&next)
	c.settings = next
	c.autosave.Change(next.Clone())
	return nil
}

// FlushSettings saves pending edits now.
func (c *Controller) FlushSettings(ctx context.Context) error {
	c.mu.Lock()
	s := c.autosave
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Flush(ctx)
}

// Close flushes pending settings edits.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.autosave
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}

// saveSettings sends only the fields that differ from the snapshot, so a
// tier switch alone lets the server restore that tier's saved models.
func (c *Controller) saveSettings(ctx context.Context, prev, next models.AISettings) (models.AISettings, error) {
	req := diffSettings(prev, next)
	if req == nil {
		return next, nil
	}
	saved, err := c.api.UpdateSettings(ctx, req)
	if err != nil {
		return models.AISettings{}, err
	}
	return *saved, nil
}

func (c *Controller) settingsSaved(saved models.AISettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autosave != nil && c.autosave.Pending() {
		return
	}
	c.settings = saved.Clone()
}

func sameSettings(a, b models.AISettings) bool {
	return reflect.DeepEqual(a, b)
}

func diffSettings(prev, next models.AISettings) *models.UpdateSettingsRequest {
	var req models.UpdateSettingsRequest
	changed := false

	if next.Tier != prev.Tier {
		req.Tier = &next.Tier
		changed = true
	}
	if next.GeneratorModel != prev.GeneratorModel {
		req.GeneratorModel = &next.GeneratorModel
		changed = true
	}
	if next.ReviewerModel != prev.ReviewerModel {
		req.ReviewerModel = &next.ReviewerModel
		changed = true
	}
	if next.FallbackModel != prev.FallbackModel {
		req.FallbackModel = &next.FallbackModel
		changed = true
	}
	if !reflect.DeepEqual(next.TierModels, prev.TierModels) {
		req.TierModels = next.TierModels
		changed = true
	}
	if next.IterativeMode != prev.IterativeMode {
		req.IterativeMode = &next.IterativeMode
		changed = true
	}
	if next.IterationCount != prev.IterationCount {
		req.IterationCount = &next.IterationCount
		changed = true
	}
	if next.IterativeTimeoutMinutes != prev.IterativeTimeoutMinutes {
		req.IterativeTimeoutMinutes = &next.IterativeTimeoutMinutes
		changed = true
	}
	if next.UseFinalReview != prev.UseFinalReview {
		req.UseFinalReview = &next.UseFinalReview
		changed = true
	}
	if next.GuidedQuestionRounds != prev.GuidedQuestionRounds {
		req.GuidedQuestionRounds = &next.GuidedQuestionRounds
		changed = true
	}
	if !changed {
		return nil
	}
	return &req
}
