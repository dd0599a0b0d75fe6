package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	startResp    *models.GuidedStartResponse
	answerResps  []*models.GuidedAnswerResponse
	answerReqs   []*models.GuidedAnswerRequest
	finalizeErr  error
	dualErr      error
	dualReq      *models.DualGenerateRequest
	iterReq      *models.IterativeGenerateRequest
	iterTimeout  time.Duration
	block        chan struct{}
	settings     models.AISettings
	updates      []*models.UpdateSettingsRequest
	updateResult func(req *models.UpdateSettingsRequest) models.AISettings
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GuidedStart(_ context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error) {
	f.record("start")
	return f.startResp, nil
}

func (f *fakeAPI) GuidedAnswer(_ context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error) {
	f.record("answer")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerReqs = append(f.answerReqs, req)
	resp := f.answerResps[0]
	f.answerResps = f.answerResps[1:]
	return resp, nil
}

func (f *fakeAPI) GuidedFinalize(_ context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error) {
	f.record("finalize")
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &models.FinalContentResponse{PrdContent: "# PRD " + req.SessionID, TokensUsed: 90, ModelsUsed: []string{"gen", "rev"}}, nil
}

func (f *fakeAPI) GuidedSkip(_ context.Context, req *models.GuidedSkipRequest) (*models.FinalContentResponse, error) {
	f.record("skip")
	return &models.FinalContentResponse{PrdContent: "# PRD from " + req.ProjectIdea, TokensUsed: 30, ModelsUsed: []string{"gen", "rev"}}, nil
}

func (f *fakeAPI) GenerateDual(ctx context.Context, req *models.DualGenerateRequest) (*models.DualGenerateResponse, error) {
	f.record("dual")
	f.mu.Lock()
	f.dualReq = req
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.dualErr != nil {
		return nil, f.dualErr
	}
	return &models.DualGenerateResponse{FinalContent: "dual: " + req.UserInput, ModelsUsed: []string{"gen", "rev"}, TokensUsed: 20}, nil
}

func (f *fakeAPI) GenerateIterative(_ context.Context, req *models.IterativeGenerateRequest, timeout time.Duration) (*models.IterativeGenerateResponse, error) {
	f.record("iterative")
	f.mu.Lock()
	f.iterReq = req
	f.iterTimeout = timeout
	f.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	return &models.IterativeGenerateResponse{FinalContent: "iterated", ModelsUsed: []string{"gen", "rev"}, TokensUsed: 60}, nil
}

func (f *fakeAPI) Settings(context.Context) (*models.AISettings, error) {
	f.record("settings")
	s := f.settings.Clone()
	return &s, nil
}

func (f *fakeAPI) UpdateSettings(_ context.Context, req *models.UpdateSettingsRequest) (*models.AISettings, error) {
	f.record("update-settings")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	out := f.updateResult(req)
	return &out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func questions(ids ...string) []models.Question {
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Question{ID: id, Question: "Q " + id, Options: []models.QuestionOption{{ID: "a", Label: "A"}}})
	}
	return out
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newController(api API) (*Controller, *stateLog) {
	log := &stateLog{}
	return New(api, Options{OnState: log.add, Logger: quietLogger(), AutosaveDelay: 10 * time.Millisecond}), log
}

func TestSimpleRun(t *testing.T) {
	api := &fakeAPI{}
	c, log := newController(api)

	res, err := c.Submit(context.Background(), Input{Text: "water tracker"}, Simple{})
	require.NoError(t, err)
	assert.Equal(t, "dual: water tracker", res.Content)
	assert.Equal(t, 20, res.TokensUsed)
	assert.Equal(t, StateDone, c.State())
	assert.Equal(t, []State{StateProcessing, StateDone}, log.all())
}

func TestTemplateContentIsGenerated(t *testing.T) {
	template := "# Title\n\n## Goals\n<!-- describe goals -->\n\n## Requirements\n- \n"
	tests := []struct {
		name     string
		existing string
		want     models.GenerationMode
	}{
		{"no content", "", models.GenerationModeGenerate},
		{"headings and comments", template, models.GenerationModeGenerate},
		{"real content", template + "- Users can log a glass of water\n", models.GenerationModeImprove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			c, _ := newController(api)
			_, err := c.Submit(context.Background(), Input{Text: "water tracker", ExistingContent: tt.existing}, Simple{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, api.dualReq.Mode)
		})
	}
}

func TestFailureReturnsToInput(t *testing.T) {
	api := &fakeAPI{dualErr: &apperr.ModelInvocationError{Attempted: []string{"gen", "fb"}, Last: errors.New("down")}}
	c, _ := newController(api)

	_, err := c.Submit(context.Background(), Input{Text: "water tracker"}, Simple{})
	require.Error(t, err)
	assert.Equal(t, StateInput, c.State())
	assert.NotEmpty(t, c.LastError())
	assert.False(t, c.Busy())

	api.dualErr = nil
	res, err := c.Submit(context.Background(), Input{Text: "water tracker"}, Simple{})
	require.NoError(t, err, "same input can be resubmitted")
	assert.NotNil(t, res)
	assert.Empty(t, c.LastError())
}

func TestResubmissionWhileBusy(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	c, _ := newController(api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), Input{Text: "first"}, Simple{})
		done <- err
	}()
	require.Eventually(t, c.Busy, time.Second, time.Millisecond)

	_, err := c.Submit(context.Background(), Input{Text: "second"}, Simple{})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Skip(context.Background(), Input{Text: "second"})
	assert.ErrorIs(t, err, ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"dual"}, api.Calls())
}

func TestGuidedRounds(t *testing.T) {
	api := &fakeAPI{
		startResp: &models.GuidedStartResponse{SessionID: "s1", FeatureOverview: "overview", Questions: questions("q1", "q2")},
		answerResps: []*models.GuidedAnswerResponse{
			{RefinedPlan: "plan 2", RoundNumber: 2, FollowUpQuestions: questions("q3")},
			{RefinedPlan: "plan 3", RoundNumber: 3, IsComplete: true, FollowUpQuestions: []models.Question{}},
		},
	}
	c, log := newController(api)
	ctx := context.Background()

	res, err := c.Submit(ctx, Input{Text: "a habit tracking app"}, Guided{})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, StateQuestions, c.State())
	assert.Equal(t, "overview", c.FeatureOverview())
	assert.Len(t, c.Questions(), 2)

	res, err = c.Answer(ctx, []models.Answer{{QuestionID: "q1", SelectedOptionID: "a"}})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, StateQuestions, c.State())
	assert.Equal(t, "plan 2", c.RefinedPlan())
	assert.Equal(t, []string{"q3"}, []string{c.Questions()[0].ID})
	assert.Len(t, api.answerReqs[0].Questions, 2, "cached questions travel with the answers")

	res, err = c.Answer(ctx, []models.Answer{{QuestionID: "q3", SelectedOptionID: "a"}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "# PRD s1", res.Content)
	assert.Equal(t, StateDone, c.State())
	assert.Empty(t, c.SessionID())

	assert.Equal(t, []string{"start", "answer", "answer", "finalize"}, api.Calls())
	assert.Equal(t, []State{
		StateAnalyzing, StateQuestions,
		StateProcessing, StateQuestions,
		StateProcessing, StateFinalizing, StateDone,
	}, log.all())
}

func TestEmptyFollowUpsFinalizeDirectly(t *testing.T) {
	api := &fakeAPI{
		startResp:   &models.GuidedStartResponse{SessionID: "s1", Questions: questions("q1")},
		answerResps: []*models.GuidedAnswerResponse{{RefinedPlan: "plan", RoundNumber: 2}},
	}
	c, log := newController(api)
	ctx := context.Background()

	_, err := c.Submit(ctx, Input{Text: "a habit tracking app"}, Guided{})
	require.NoError(t, err)
	res, err := c.Answer(ctx, []models.Answer{{QuestionID: "q1", SelectedOptionID: "a"}})
	require.NoError(t, err)
	require.NotNil(t, res)

	states := log.all()
	assert.Equal(t, StateQuestions, states[1])
	assert.NotContains(t, states[2:], StateQuestions)
}

func TestFinalizeFailureKeepsSession(t *testing.T) {
	api := &fakeAPI{
		startResp:   &models.GuidedStartResponse{SessionID: "s1", Questions: questions("q1")},
		finalizeErr: &apperr.EmptyResultError{Stage: "finalize"},
	}
	c, _ := newController(api)
	ctx := context.Background()

	_, err := c.Submit(ctx, Input{Text: "a habit tracking app"}, Guided{})
	require.NoError(t, err)

	_, err = c.Skip(ctx, Input{})
	require.Error(t, err)
	assert.Equal(t, StateQuestions, c.State())
	assert.Equal(t, "s1", c.SessionID())

	api.finalizeErr = nil
	res, err := c.Skip(ctx, Input{})
	require.NoError(t, err)
	assert.Equal(t, "# PRD s1", res.Content)
}

func TestSkipFromInput(t *testing.T) {
	api := &fakeAPI{}
	c, log := newController(api)

	res, err := c.Skip(context.Background(), Input{Text: "a habit tracking app"})
	require.NoError(t, err)
	assert.Equal(t, "# PRD from a habit tracking app", res.Content)
	assert.Equal(t, []string{"skip"}, api.Calls())
	assert.Equal(t, []State{StateFinalizing, StateDone}, log.all())
}

func TestSkipRejectedAfterDone(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newController(api)
	ctx := context.Background()

	_, err := c.Submit(ctx, Input{Text: "water tracker"}, Simple{})
	require.NoError(t, err)
	require.Equal(t, StateDone, c.State())

	_, err = c.Skip(ctx, Input{Text: "a habit tracking app"})
	assert.ErrorIs(t, err, ErrCannotSkip)
	assert.Equal(t, StateDone, c.State())
	assert.Equal(t, []string{"dual"}, api.Calls())

	require.NoError(t, c.Reset())
	_, err = c.Skip(ctx, Input{Text: "a habit tracking app"})
	require.NoError(t, err)
}

func TestAnswerWithoutSession(t *testing.T) {
	c, _ := newController(&fakeAPI{})
	_, err := c.Answer(context.Background(), []models.Answer{{QuestionID: "q1", SelectedOptionID: "a"}})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestIterativeUsesSettings(t *testing.T) {
	api := &fakeAPI{settings: models.AISettings{IterationCount: 4, IterativeTimeoutMinutes: 7}}
	var mu sync.Mutex
	var ticks []Progress
	c := New(api, Options{
		Logger:           quietLogger(),
		ProgressInterval: 5 * time.Millisecond,
		OnProgress: func(p Progress) {
			mu.Lock()
			ticks = append(ticks, p)
			mu.Unlock()
		},
	})
	ctx := context.Background()
	_, err := c.LoadSettings(ctx)
	require.NoError(t, err)

	res, err := c.Submit(ctx, Input{Text: "improve it", ExistingContent: "# Old\n\nUsers log water intake."}, Iterative{FinalReview: true})
	require.NoError(t, err)
	assert.Equal(t, "iterated", res.Content)

	assert.Equal(t, 4, api.iterReq.IterationCount)
	assert.True(t, api.iterReq.UseFinalReview)
	assert.Equal(t, models.GenerationModeImprove, api.iterReq.Mode)
	assert.Equal(t, 7*time.Minute, api.iterTimeout)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, ticks)
	for _, p := range ticks {
		assert.LessOrEqual(t, p.Round, 4)
		assert.Equal(t, 4, p.Total)
	}
}

func TestParseMode(t *testing.T) {
	s := models.AISettings{IterationCount: 3, UseFinalReview: true}

	m, err := ParseMode("simple", s)
	require.NoError(t, err)
	assert.Equal(t, Simple{}, m)

	s.IterativeMode = true
	m, err = ParseMode("", s)
	require.NoError(t, err)
	assert.Equal(t, Iterative{Count: 3, FinalReview: true}, m)

	m, err = ParseMode("guided", s)
	require.NoError(t, err)
	assert.Equal(t, Guided{}, m)

	_, err = ParseMode("turbo", s)
	assert.Error(t, err)
}

func TestSettingsAutosaveSendsDiff(t *testing.T) {
	api := &fakeAPI{
		settings: models.AISettings{
			ModelPreference: models.ModelPreference{Tier: models.TierDevelopment, GeneratorModel: "llama3.2:3b"},
			IterationCount:  3,
		},
	}
	api.updateResult = func(req *models.UpdateSettingsRequest) models.AISettings {
		out := api.settings.Clone()
		if req.Tier != nil {
			out.Tier = *req.Tier
			out.GeneratorModel = "production-gen"
		}
		if req.IterationCount != nil {
			out.IterationCount = *req.IterationCount
		}
		api.settings = out
		return out
	}
	c, _ := newController(api)
	ctx := context.Background()
	_, err := c.LoadSettings(ctx)
	require.NoError(t, err)

	require.NoError(t, c.UpdateSettings(func(s *models.AISettings) { s.IterationCount = 5 }))
	require.NoError(t, c.UpdateSettings(func(s *models.AISettings) { s.Tier = models.TierProduction }))
	require.NoError(t, c.FlushSettings(ctx))

	require.Len(t, api.updates, 1, "debounced edits are saved once")
	req := api.updates[0]
	require.NotNil(t, req.Tier)
	assert.Equal(t, models.TierProduction, *req.Tier)
	assert.Nil(t, req.GeneratorModel, "unchanged slots are not sent")
	require.NotNil(t, req.IterationCount)
	assert.Equal(t, 5, *req.IterationCount)

	assert.Equal(t, "production-gen", c.Settings().GeneratorModel)

	require.NoError(t, c.UpdateSettings(func(s *models.AISettings) { s.IterationCount = 5 }))
	require.NoError(t, c.FlushSettings(ctx))
	assert.Len(t, api.updates, 1, "no-op edit is not saved")
}

func TestUpdateSettingsBeforeLoad(t *testing.T) {
	c, _ := newController(&fakeAPI{})
	err := c.UpdateSettings(func(s *models.AISettings) {})
	assert.ErrorIs(t, err, ErrSettingsNotLoaded)
}
