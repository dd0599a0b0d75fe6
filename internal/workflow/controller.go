// Package workflow drives one generation request from input to final content.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/autosave"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/pipeline"
)

// State is a controller state.
type State string

const (
	StateInput      State = "input"
	StateAnalyzing  State = "analyzing"
	StateQuestions  State = "questions"
	StateProcessing State = "processing"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
)

var (
	// ErrBusy is returned when a request is already outstanding.
	ErrBusy = errors.New("a request is already in progress")
	// ErrNoSession is returned when answers arrive without open questions.
	ErrNoSession = errors.New("no guided session is waiting for answers")
	// ErrCannotSkip is returned by Skip outside the input and questions states.
	ErrCannotSkip = errors.New("skip is only possible from input or open questions")
	// ErrSettingsNotLoaded is returned by UpdateSettings before LoadSettings.
	ErrSettingsNotLoaded = errors.New("settings have not been loaded")
)

// API is the server surface the controller drives.
type API interface {
	GuidedStart(ctx context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error)
	GuidedAnswer(ctx context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error)
	GuidedFinalize(ctx context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error)
	GuidedSkip(ctx context.Context, req *models.GuidedSkipRequest) (*models.FinalContentResponse, error)
	GenerateDual(ctx context.Context, req *models.DualGenerateRequest) (*models.DualGenerateResponse, error)
	GenerateIterative(ctx context.Context, req *models.IterativeGenerateRequest, timeout time.Duration) (*models.IterativeGenerateResponse, error)
	Settings(ctx context.Context) (*models.AISettings, error)
	UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) (*models.AISettings, error)
}

// Input is what the user submitted.
type Input struct {
	Text            string
	ExistingContent string
	PrdID           string
}

// generationMode is improve only when the existing content is more than a
// template.
func (in Input) generationMode() models.GenerationMode {
	return pipeline.ModeFor(in.ExistingContent)
}

// Result is the final content of a completed run.
type Result struct {
	Content    string
	ModelsUsed []string
	TokensUsed int
}

// Progress is a simulated round counter. It does not reflect server state.
type Progress struct {
	Round int
	Total int
}

// Options configures a Controller.
type Options struct {
	OnState    func(State)
	OnProgress func(Progress)
	// ProgressInterval is the simulated time per iterative round.
	ProgressInterval time.Duration
	// AutosaveDelay debounces settings changes.
	AutosaveDelay time.Duration
	Logger        *slog.Logger
}

type session struct {
	id        string
	overview  string
	questions []models.Question
	plan      string
	round     int
}

// Controller owns the state machine. Methods are safe for concurrent use but
// only one request runs at a time.
type Controller struct {
	api    API
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	busy     bool
	session  *session
	result   *Result
	lastErr  string
	settings models.AISettings
	loaded   bool
	autosave *autosave.Scheduler[models.AISettings]
}

// New creates a controller in the input state.
func New(api API, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 3 * time.Second
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = time.Second
	}
	return &Controller{
		api:    api,
		opts:   opts,
		logger: opts.Logger,
		state:  StateInput,
	}
}

// Submit starts a run in the given mode. Guided runs return a nil result and
// leave the controller in the questions state.
func (c *Controller) Submit(ctx context.Context, in Input, mode Mode) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	c.mu.Lock()
	c.session = nil
	c.result = nil
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.Debug("workflow submit", "mode", mode.String())
	res, err := mode.run(ctx, c, in)
	return c.settle(res, err)
}

// Answer submits one round of answers for the live session. When the server
// reports completion or sends no follow-ups the session is finalized in the
// same call.
func (c *Controller) Answer(ctx context.Context, answers []models.Answer) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	c.mu.Lock()
	sess := c.session
	ready := sess != nil && c.state == StateQuestions
	var asked []models.Question
	if ready {
		asked = append(asked, sess.questions...)
	}
	c.lastErr = ""
	c.mu.Unlock()
	if !ready {
		return nil, ErrNoSession
	}

	c.transition(StateProcessing)
	resp, err := c.api.GuidedAnswer(ctx, &models.GuidedAnswerRequest{
		SessionID: sess.id,
		Answers:   answers,
		Questions: asked,
	})
	if err != nil {
		return c.settle(nil, err)
	}

	c.mu.Lock()
	sess.plan = resp.RefinedPlan
	sess.round = resp.RoundNumber
	c.mu.Unlock()

	if resp.IsComplete || len(resp.FollowUpQuestions) == 0 {
		return c.settle(c.finalize(ctx, sess))
	}

	c.mu.Lock()
	sess.questions = resp.FollowUpQuestions
	c.mu.Unlock()
	c.transition(StateQuestions)
	return nil, nil
}

// Skip goes straight to finalizing. With a live session it finalizes that
// session; otherwise it generates directly from in.
func (c *Controller) Skip(ctx context.Context, in Input) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	c.mu.Lock()
	sess := c.session
	state := c.state
	c.lastErr = ""
	c.mu.Unlock()

	if sess != nil && state == StateQuestions {
		return c.settle(c.finalize(ctx, sess))
	}
	if state != StateInput {
		return nil, ErrCannotSkip
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.transition(StateFinalizing)
	resp, err := c.api.GuidedSkip(ctx, &models.GuidedSkipRequest{ProjectIdea: in.Text, PrdID: in.PrdID})
	if err != nil {
		return c.settle(nil, err)
	}
	return c.settle(&Result{Content: resp.PrdContent, ModelsUsed: resp.ModelsUsed, TokensUsed: resp.TokensUsed}, nil)
}

// Reset abandons any local session state and returns to input.
func (c *Controller) Reset() error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()
	c.mu.Lock()
	c.session = nil
	c.result = nil
	c.lastErr = ""
	c.mu.Unlock()
	c.transition(StateInput)
	return nil
}

func (c *Controller) finalize(ctx context.Context, sess *session) (*Result, error) {
	c.transition(StateFinalizing)
	resp, err := c.api.GuidedFinalize(ctx, &models.GuidedFinalizeRequest{SessionID: sess.id})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return &Result{Content: resp.PrdContent, ModelsUsed: resp.ModelsUsed, TokensUsed: resp.TokensUsed}, nil
}

// settle moves to done on success. On failure it records a user-facing
// message and returns to questions when a session is live, else to input.
func (c *Controller) settle(res *Result, err error) (*Result, error) {
	if err != nil {
		c.mu.Lock()
		c.lastErr = apperr.Message(err)
		next := StateInput
		if c.session != nil {
			next = StateQuestions
		}
		c.mu.Unlock()
		c.logger.Warn("workflow step failed", "error", err, "next_state", next)
		c.transition(next)
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
	c.transition(StateDone)
	return res, nil
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// simulateProgress ticks a round counter until stop is called. The counter
// holds at total rather than running past it.
func (c *Controller) simulateProgress(ctx context.Context, total int) (stop func()) {
	if c.opts.OnProgress == nil || total <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.opts.ProgressInterval)
		defer ticker.Stop()
		round := 1
		c.opts.OnProgress(Progress{Round: round, Total: total})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if round < total {
					round++
					c.opts.OnProgress(Progress{Round: round, Total: total})
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a request is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Questions returns the cached questions of the live session.
func (c *Controller) Questions() []models.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return append([]models.Question(nil), c.session.questions...)
}

// FeatureOverview returns the overview produced when the session started.
func (c *Controller) FeatureOverview() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.overview
}

// RefinedPlan returns the plan after the latest answered round.
func (c *Controller) RefinedPlan() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.plan
}

// SessionID returns the live guided session id, if any.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.id
}

// Result returns the last successful result.
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// LastError returns the message of the most recent failure, if any.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
