package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const generatorSystem = `You are a senior product manager writing a Product Requirements Document (PRD) in Markdown.
Be specific and complete: problem statement, goals, non-goals, user stories, functional and
non-functional requirements, success metrics, open questions. Output only the document.`

const reviewerSystem = `You are a critical reviewer of Product Requirements Documents.
Identify gaps, ambiguities and contradictions in the draft, then output the complete improved
document in Markdown. Output only the improved document, never the critique on its own.`

const finalReviewSystem = `You are doing the final quality pass on a Product Requirements Document.
Fix inconsistencies, tighten wording, make sure every section is complete and that requirements
are testable. Output only the final document in Markdown.`

var (
	headingLine     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s.*$`)
	htmlComment     = regexp.MustCompile(`(?s)<!--.*?-->`)
	placeholderText = regexp.MustCompile(`(?i)\[(?:todo|tbd|placeholder|describe[^\]]*|add[^\]]*)\]|\{\{[^}]*\}\}`)
	listMarkerOnly  = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s*$`)
)

// IsScaffold reports whether content carries nothing beyond template
// structure: headings, HTML comments, placeholders, empty list markers and
// whitespace.
func IsScaffold(content string) bool {
	s := htmlComment.ReplaceAllString(content, "")
	s = headingLine.ReplaceAllString(s, "")
	s = placeholderText.ReplaceAllString(s, "")
	s = listMarkerOnly.ReplaceAllString(s, "")
	return strings.TrimSpace(s) == ""
}

// ModeFor picks improve when existing content has real substance.
func ModeFor(existing string) models.GenerationMode {
	if IsScaffold(existing) {
		return models.GenerationModeGenerate
	}
	return models.GenerationModeImprove
}

func generatorPrompt(mode models.GenerationMode, userInput, existing string) string {
	var b strings.Builder
	if mode == models.GenerationModeImprove {
		b.WriteString("Improve and extend the existing PRD below according to the instructions.\n\n")
		fmt.Fprintf(&b, "## Existing PRD\n%s\n\n", existing)
	} else {
		b.WriteString("Write a complete PRD for the request below.\n\n")
		if strings.TrimSpace(existing) != "" {
			fmt.Fprintf(&b, "## Template to follow\n%s\n\n", existing)
		}
	}
	fmt.Fprintf(&b, "## Instructions\n%s\n", strings.TrimSpace(userInput))
	return b.String()
}

func reviewerPrompt(userInput, draft string) string {
	return fmt.Sprintf("## Original instructions\n%s\n\n## Draft PRD\n%s\n", strings.TrimSpace(userInput), draft)
}

func roundPrompt(round, total int, requirements, current string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is refinement round %d of %d.\n\n", round, total)
	if strings.TrimSpace(requirements) != "" {
		fmt.Fprintf(&b, "## Additional requirements\n%s\n\n", strings.TrimSpace(requirements))
	}
	if strings.TrimSpace(current) == "" {
		b.WriteString("## Current PRD\n(empty: write the first complete version)\n")
	} else {
		fmt.Fprintf(&b, "## Current PRD\n%s\n", current)
	}
	return b.String()
}
