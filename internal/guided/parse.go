package guided

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
)

// startPayload is the generator's reply to the opening prompt.
type startPayload struct {
	FeatureOverview string            `json:"featureOverview"`
	Questions       []models.Question `json:"questions"`
}

// roundPayload is the generator's reply after a round of answers.
type roundPayload struct {
	RefinedPlan       string            `json:"refinedPlan"`
	IsComplete        bool              `json:"isComplete"`
	FollowUpQuestions []models.Question `json:"followUpQuestions"`
}

// decodeModelJSON extracts the outermost JSON object from a model reply,
// tolerating code fences and prose around it.
func decodeModelJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object found", apperr.ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedOutput, err)
	}
	return nil
}

// normalizeQuestions drops empty questions and fills missing ids. taken holds
// ids already used in the session; colliding ids get a round prefix.
func normalizeQuestions(in []models.Question, round int, taken map[string]bool) []models.Question {
	out := make([]models.Question, 0, len(in))
	for i, q := range in {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if taken[q.ID] {
			q.ID = fmt.Sprintf("r%d-%s", round, q.ID)
		}
		taken[q.ID] = true

		opts := make([]models.QuestionOption, 0, len(q.Options))
		for j, o := range q.Options {
			if strings.TrimSpace(o.Label) == "" {
				continue
			}
			if strings.TrimSpace(o.ID) == "" {
				o.ID = string(rune('a' + j))
			}
			opts = append(opts, o)
		}
		q.Options = opts
		out = append(out, q)
	}
	return out
}
