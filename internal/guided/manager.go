// Package guided runs the question-and-answer flow that turns a short project
// idea into a finished document.
package guided

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/pipeline"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

const sessionMode = "guided"

// SessionStore persists sessions. Get returns nil, nil for unknown ids.
type SessionStore interface {
	Create(sess *models.GenerationSession) error
	Get(id string) (*models.GenerationSession, error)
	Update(sess *models.GenerationSession) error
	SetStatus(id string, status models.SessionStatus) error
	AbandonIdle(before time.Time) (int64, error)
	ListActiveForDocument(prdID string) ([]*models.GenerationSession, error)
}

// SettingsSource supplies the caller's current AI settings.
type SettingsSource interface {
	Get() (models.AISettings, error)
}

// Manager owns guided sessions. Operations on the same session are
// serialized; different sessions proceed independently.
type Manager struct {
	store    SessionStore
	settings SettingsSource
	invoker  pipeline.Invoker
	dual     *pipeline.Dual
	logger   *slog.Logger

	locks sync.Map // session id -> *sync.Mutex
	now   func() time.Time
}

func NewManager(store SessionStore, settings SettingsSource, invoker pipeline.Invoker, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		settings: settings,
		invoker:  invoker,
		dual:     pipeline.NewDual(invoker, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Start analyzes the idea and opens a session at round 1.
func (m *Manager) Start(ctx context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error) {
	idea, err := ValidateIdea(req.ProjectIdea)
	if err != nil {
		return nil, err
	}
	ai, err := m.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if req.PrdID != "" {
		if open, err := m.store.ListActiveForDocument(req.PrdID); err == nil && len(open) > 0 {
			m.logger.Warn("document already has an active guided session", "prd_id", req.PrdID, "session_id", open[0].ID)
		}
	}

	res, err := m.invoker.Invoke(ctx, ai.ModelPreference, models.RoleGenerator, req.PrdID, provider.Request{
		System: analystSystem,
		Prompt: startPrompt(idea),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze idea: %w", err)
	}

	var payload startPayload
	if err := decodeModelJSON(res.Response.Content, &payload); err != nil {
		return nil, err
	}
	questions := normalizeQuestions(payload.Questions, 1, map[string]bool{})
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: analysis returned no questions", apperr.ErrMalformedOutput)
	}

	now := m.now().Unix()
	sess := &models.GenerationSession{
		ID:              uuid.New().String(),
		Mode:            sessionMode,
		PrdID:           req.PrdID,
		RoundNumber:     1,
		Status:          models.SessionStatusActive,
		ProjectIdea:     idea,
		FeatureOverview: strings.TrimSpace(payload.FeatureOverview),
		Questions:       questions,
		Answers:         map[string]models.Answer{},
		TokensUsed:      res.TotalTokens(),
		ModelsUsed:      []string{res.Model},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.Create(sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.logger.Info("guided session started", "session_id", sess.ID, "prd_id", sess.PrdID, "questions", len(questions))

	return &models.GuidedStartResponse{
		SessionID:       sess.ID,
		FeatureOverview: sess.FeatureOverview,
		Questions:       questions,
	}, nil
}

// Answer records a round of answers and advances the session by one round.
// Once the configured round limit is reached the response is always complete.
func (m *Manager) Answer(ctx context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error) {
	if err := ValidateAnswers(req.Answers); err != nil {
		return nil, err
	}

	unlock := m.lock(req.SessionID)
	defer unlock()

	sess, err := m.load(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := CheckAnswers(req.Answers, sess.Questions); err != nil {
		return nil, err
	}

	ai, err := m.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	for _, a := range req.Answers {
		a.CustomText = strings.TrimSpace(a.CustomText)
		sess.Answers[a.QuestionID] = a
	}
	lastRound := sess.RoundNumber >= ai.GuidedQuestionRounds

	res, err := m.invoker.Invoke(ctx, ai.ModelPreference, models.RoleGenerator, sess.PrdID, provider.Request{
		System: analystSystem,
		Prompt: roundPrompt(sess, lastRound),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("refine plan: %w", err)
	}
	var payload roundPayload
	if err := decodeModelJSON(res.Response.Content, &payload); err != nil {
		return nil, err
	}

	nextRound := sess.RoundNumber + 1
	var followUps []models.Question
	if !lastRound && !payload.IsComplete {
		taken := make(map[string]bool, len(sess.Questions))
		for _, q := range sess.Questions {
			taken[q.ID] = true
		}
		followUps = normalizeQuestions(payload.FollowUpQuestions, nextRound, taken)
	}
	complete := len(followUps) == 0

	sess.RoundNumber = nextRound
	if plan := strings.TrimSpace(payload.RefinedPlan); plan != "" {
		sess.RefinedPlan = plan
	}
	sess.Questions = append(sess.Questions, followUps...)
	sess.TokensUsed += res.TotalTokens()
	sess.ModelsUsed = appendDistinct(sess.ModelsUsed, res.Model)
	if err := m.store.Update(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.logger.Info("guided round answered",
		"session_id", sess.ID,
		"round", sess.RoundNumber,
		"complete", complete,
		"follow_ups", len(followUps),
	)

	if followUps == nil {
		followUps = []models.Question{}
	}
	return &models.GuidedAnswerResponse{
		RefinedPlan:       sess.RefinedPlan,
		RoundNumber:       sess.RoundNumber,
		IsComplete:        complete,
		FollowUpQuestions: followUps,
	}, nil
}

// Finalize produces the document from everything the session gathered and
// closes the session. A failed generation leaves the session active.
func (m *Manager) Finalize(ctx context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error) {
	unlock := m.lock(req.SessionID)
	defer unlock()

	sess, err := m.load(req.SessionID)
	if err != nil {
		return nil, err
	}
	ai, err := m.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	out, err := m.dual.Run(ctx, pipeline.DualInput{
		UserInput:  briefFromSession(sess),
		Mode:       models.GenerationModeGenerate,
		PrdID:      sess.PrdID,
		Preference: ai.ModelPreference,
	})
	if err != nil {
		return nil, err
	}

	sess.Status = models.SessionStatusFinalized
	sess.TokensUsed += out.TokensUsed
	sess.ModelsUsed = appendDistinct(sess.ModelsUsed, out.ModelsUsed...)
	if err := m.store.Update(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.locks.Delete(sess.ID)

	m.logger.Info("guided session finalized", "session_id", sess.ID, "tokens", sess.TokensUsed)

	return &models.FinalContentResponse{
		PrdContent: out.FinalContent,
		TokensUsed: sess.TokensUsed,
		ModelsUsed: sess.ModelsUsed,
	}, nil
}

// Skip generates a document straight from the idea without a session.
func (m *Manager) Skip(ctx context.Context, req *models.GuidedSkipRequest) (*models.FinalContentResponse, error) {
	idea, err := ValidateIdea(req.ProjectIdea)
	if err != nil {
		return nil, err
	}
	ai, err := m.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	out, err := m.dual.Run(ctx, pipeline.DualInput{
		UserInput:  briefFromIdea(idea),
		Mode:       models.GenerationModeGenerate,
		PrdID:      req.PrdID,
		Preference: ai.ModelPreference,
	})
	if err != nil {
		return nil, err
	}
	return &models.FinalContentResponse{
		PrdContent: out.FinalContent,
		TokensUsed: out.TokensUsed,
		ModelsUsed: out.ModelsUsed,
	}, nil
}

// Abandon closes an active session without producing a document.
func (m *Manager) Abandon(sessionID string) error {
	unlock := m.lock(sessionID)
	defer unlock()

	if _, err := m.load(sessionID); err != nil {
		return err
	}
	if err := m.store.SetStatus(sessionID, models.SessionStatusAbandoned); err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}
	m.locks.Delete(sessionID)
	m.logger.Info("guided session abandoned", "session_id", sessionID)
	return nil
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (*models.GenerationSession, error) {
	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.ErrSessionNotFound
	}
	return sess, nil
}

// SweepIdle abandons active sessions untouched for longer than ttl.
func (m *Manager) SweepIdle(ttl time.Duration) (int64, error) {
	n, err := m.store.AbandonIdle(m.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("abandoned idle guided sessions", "count", n)
	}
	return n, nil
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.SweepIdle(ttl); err != nil {
				m.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}

// load fetches an open session or returns the matching sentinel.
func (m *Manager) load(id string) (*models.GenerationSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("sessionId", "is required")
	}
	sess, err := m.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		return nil, apperr.ErrSessionClosed
	}
	return sess, nil
}

func (m *Manager) lock(id string) func() {
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ValidateIdea trims idea and checks its minimum length.
func ValidateIdea(idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if utf8.RuneCountInString(idea) < models.MinProjectIdeaLength {
		return "", apperr.Validation("projectIdea", "must be at least %d characters", models.MinProjectIdeaLength)
	}
	return idea, nil
}

// ValidateAnswers checks the shape of a round of answers. Ids are checked
// against the session separately.
func ValidateAnswers(answers []models.Answer) error {
	if len(answers) == 0 {
		return apperr.Validation("answers", "at least one answer is required")
	}
	for _, a := range answers {
		if a.QuestionID == "" || a.SelectedOptionID == "" {
			return apperr.Validation("answers", "questionId and selectedOptionId are required")
		}
		if a.SelectedOptionID == models.CustomOptionID && strings.TrimSpace(a.CustomText) == "" {
			return apperr.Validation("answers", "custom answer for %q needs text", a.QuestionID)
		}
	}
	return nil
}

// CheckAnswers verifies that every answer targets one of questions and picks
// an option that question offers.
func CheckAnswers(answers []models.Answer, questions []models.Question) error {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return apperr.Validation("answers", "unknown question %q", a.QuestionID)
		}
		if !q.HasOption(a.SelectedOptionID) {
			return apperr.Validation("answers", "question %q has no option %q", a.QuestionID, a.SelectedOptionID)
		}
	}
	return nil
}

func appendDistinct(ids []string, more ...string) []string {
	for _, id := range more {
		found := false
		for _, have := range ids {
			if have == id {
				found = true
				break
			}
		}
		if !found && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
