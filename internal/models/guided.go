package models

// CustomOptionID is the reserved option id that requires accompanying free text.
const CustomOptionID = "custom"

// MinProjectIdeaLength is the minimum trimmed length of a guided project idea.
const MinProjectIdeaLength = 10

// SessionStatus represents the lifecycle state of a guided session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusFinalized SessionStatus = "finalized"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

func (s SessionStatus) IsValid() bool {
	return s == SessionStatusActive || s == SessionStatusFinalized || s == SessionStatusAbandoned
}

// IsTerminal reports whether no further operations are accepted.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusFinalized || s == SessionStatusAbandoned
}

// QuestionOption is one selectable answer for a guided question.
type QuestionOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is a clarifying question produced by the generator model.
type Question struct {
	ID       string           `json:"id"`
	Question string           `json:"question"`
	Context  string           `json:"context,omitempty"`
	Options  []QuestionOption `json:"options"`
}

// HasOption reports whether optionID is selectable for this question. The
// custom option is always selectable.
func (q Question) HasOption(optionID string) bool {
	if optionID == CustomOptionID {
		return true
	}
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Answer is a user's response to one question.
type Answer struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	CustomText       string `json:"customText,omitempty"`
}

// GenerationSession is the server-held state of a guided conversation.
type GenerationSession struct {
	ID              string            `json:"sessionId"`
	Mode            string            `json:"mode"`
	PrdID           string            `json:"prdId,omitempty"`
	RoundNumber     int               `json:"roundNumber"`
	Status          SessionStatus     `json:"status"`
	ProjectIdea     string            `json:"projectIdea"`
	FeatureOverview string            `json:"featureOverview"`
	Questions       []Question        `json:"questions"` // every question asked, across rounds
	Answers         map[string]Answer `json:"answers"`
	RefinedPlan     string            `json:"refinedPlan"`
	TokensUsed      int               `json:"tokensUsed"`
	ModelsUsed      []string          `json:"modelsUsed"`
	CreatedAt       int64             `json:"createdAt"`
	UpdatedAt       int64             `json:"updatedAt"`
}

// Question looks up a question asked in any round.
func (s *GenerationSession) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// --- Request / Response types ---

// GuidedStartRequest is the payload for POST /guided-start.
type GuidedStartRequest struct {
	ProjectIdea string `json:"projectIdea"`
	PrdID       string `json:"prdId,omitempty"`
}

// GuidedStartResponse is returned from POST /guided-start.
type GuidedStartResponse struct {
	SessionID       string     `json:"sessionId"`
	FeatureOverview string     `json:"featureOverview"`
	Questions       []Question `json:"questions"`
}

// GuidedAnswerRequest is the payload for POST /guided-answer. Questions is the
// client's cached copy; the server validates against its own session state.
type GuidedAnswerRequest struct {
	SessionID string     `json:"sessionId"`
	Answers   []Answer   `json:"answers"`
	Questions []Question `json:"questions,omitempty"`
}

// GuidedAnswerResponse is returned from POST /guided-answer.
type GuidedAnswerResponse struct {
	RefinedPlan       string     `json:"refinedPlan"`
	RoundNumber       int        `json:"roundNumber"`
	IsComplete        bool       `json:"isComplete"`
	FollowUpQuestions []Question `json:"followUpQuestions"`
}

// GuidedFinalizeRequest is the payload for POST /guided-finalize.
type GuidedFinalizeRequest struct {
	SessionID string `json:"sessionId"`
}

// GuidedSkipRequest is the payload for POST /guided-skip.
type GuidedSkipRequest struct {
	ProjectIdea string `json:"projectIdea"`
	PrdID       string `json:"prdId,omitempty"`
}

// FinalContentResponse is returned from /guided-finalize and /guided-skip.
type FinalContentResponse struct {
	PrdContent string   `json:"prdContent"`
	TokensUsed int      `json:"tokensUsed"`
	ModelsUsed []string `json:"modelsUsed"`
}
