package models

// GenerationMode selects between drafting from scratch and improving content.
type GenerationMode string

const (
	GenerationModeGenerate GenerationMode = "generate"
	GenerationModeImprove  GenerationMode = "improve"
)

func (m GenerationMode) IsValid() bool {
	return m == GenerationModeGenerate || m == GenerationModeImprove
}

// ModelResponse identifies which model served a role.
type ModelResponse struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// DualGenerateRequest is the payload for POST /generate-dual.
type DualGenerateRequest struct {
	UserInput       string         `json:"userInput"`
	ExistingContent string         `json:"existingContent,omitempty"`
	Mode            GenerationMode `json:"mode,omitempty"`
	PrdID           string         `json:"prdId,omitempty"`
}

// DualGenerateResponse is returned from POST /generate-dual.
type DualGenerateResponse struct {
	FinalContent      string        `json:"finalContent"`
	GeneratorResponse ModelResponse `json:"generatorResponse"`
	ReviewerResponse  ModelResponse `json:"reviewerResponse"`
	ModelsUsed        []string      `json:"modelsUsed"`
	TokensUsed        int           `json:"tokensUsed"`
}

// IterativeGenerateRequest is the payload for POST /generate-iterative.
type IterativeGenerateRequest struct {
	ExistingContent        string         `json:"existingContent,omitempty"`
	AdditionalRequirements string         `json:"additionalRequirements,omitempty"`
	Mode                   GenerationMode `json:"mode,omitempty"`
	IterationCount         int            `json:"iterationCount"`
	UseFinalReview         bool           `json:"useFinalReview"`
	PrdID                  string         `json:"prdId,omitempty"`
}

// IterationRound records one completed refinement round.
type IterationRound struct {
	Round        int    `json:"round"`
	Role         Role   `json:"role"`
	Model        string `json:"model"`
	FinalReview  bool   `json:"finalReview,omitempty"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// IterativeGenerateResponse is returned from POST /generate-iterative.
type IterativeGenerateResponse struct {
	FinalContent string           `json:"finalContent"`
	ModelsUsed   []string         `json:"modelsUsed"`
	TokensUsed   int              `json:"tokensUsed"`
	Rounds       []IterationRound `json:"rounds"`
}
