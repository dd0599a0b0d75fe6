package guided

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const analystSystem = `You are a product analyst helping a user turn a rough idea into a Product Requirements Document.
Always answer with a single JSON object and nothing else.`

const startTemplate = `Analyze the project idea below.

Return JSON with this shape:
{
  "featureOverview": "short overview of the product and its main features",
  "questions": [
    {
      "id": "q1",
      "question": "clarifying question",
      "context": "why this matters",
      "options": [{"id": "a", "label": "option", "description": "what it implies"}]
    }
  ]
}

Ask 3 to 5 questions, each with 2 to 4 options. The user can always answer in their own words.

## Project idea
%s`

const roundTemplate = `Refine the product plan with the user's latest answers.

Return JSON with this shape:
{
  "refinedPlan": "the updated plan in Markdown",
  "isComplete": false,
  "followUpQuestions": [ same shape as before ]
}

%s
## Project idea
%s

## Feature overview
%s

## Current plan
%s

## Answers so far
%s`

const askMore = "Ask up to 3 follow-up questions only where real ambiguity remains; set isComplete to true and return no questions when the plan is clear enough."

const noMoreQuestions = "This is the last round: set isComplete to true and return an empty followUpQuestions list."

func startPrompt(idea string) string {
	return fmt.Sprintf(startTemplate, strings.TrimSpace(idea))
}

func roundPrompt(sess *models.GenerationSession, lastRound bool) string {
	instruction := askMore
	if lastRound {
		instruction = noMoreQuestions
	}
	plan := sess.RefinedPlan
	if plan == "" {
		plan = "(none yet)"
	}
	return fmt.Sprintf(roundTemplate, instruction, sess.ProjectIdea, sess.FeatureOverview, plan, formatAnswers(sess))
}

// briefFromSession compiles everything the session learned into the
// instructions for the final document.
func briefFromSession(sess *models.GenerationSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the PRD for this project.\n\n## Project idea\n%s\n", sess.ProjectIdea)
	if sess.FeatureOverview != "" {
		fmt.Fprintf(&b, "\n## Feature overview\n%s\n", sess.FeatureOverview)
	}
	if sess.RefinedPlan != "" {
		fmt.Fprintf(&b, "\n## Agreed plan\n%s\n", sess.RefinedPlan)
	}
	if len(sess.Answers) > 0 {
		fmt.Fprintf(&b, "\n## Clarifications\n%s", formatAnswers(sess))
	}
	return b.String()
}

func briefFromIdea(idea string) string {
	return fmt.Sprintf("Write the PRD for this project. Make reasonable assumptions and list them under Open Questions.\n\n## Project idea\n%s\n",
		strings.TrimSpace(idea))
}

// formatAnswers renders answered questions in a stable order.
func formatAnswers(sess *models.GenerationSession) string {
	if len(sess.Answers) == 0 {
		return "(none)\n"
	}
	ids := make([]string, 0, len(sess.Answers))
	for id := range sess.Answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		a := sess.Answers[id]
		fmt.Fprintf(&b, "- %s: %s\n", questionText(sess, id), answerText(sess, a))
	}
	return b.String()
}

func questionText(sess *models.GenerationSession, id string) string {
	if q, ok := sess.Question(id); ok {
		return q.Question
	}
	return id
}

func answerText(sess *models.GenerationSession, a models.Answer) string {
	if a.SelectedOptionID == models.CustomOptionID {
		return a.CustomText
	}
	if q, ok := sess.Question(a.QuestionID); ok {
		for _, o := range q.Options {
			if o.ID == a.SelectedOptionID {
				return o.Label
			}
		}
	}
	return a.SelectedOptionID
}
