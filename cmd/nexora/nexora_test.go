package main

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

func TestParseSetting(t *testing.T) {
	var s models.AISettings
	for _, arg := range []string{"tier=premium", "iterations=4", "final-review=true", "generator=qwen2.5:7b", "guided-rounds=2"} {
		edit, err := parseSetting(arg)
		require.NoError(t, err, arg)
		edit(&s)
	}
	assert.Equal(t, models.TierPremium, s.Tier)
	assert.Equal(t, 4, s.IterationCount)
	assert.True(t, s.UseFinalReview)
	assert.Equal(t, "qwen2.5:7b", s.GeneratorModel)
	assert.Equal(t, 2, s.GuidedQuestionRounds)

	for _, bad := range []string{"tier", "tier=gold", "iterations=many", "colour=blue", "iterative=maybe"} {
		_, err := parseSetting(bad)
		assert.Error(t, err, bad)
	}
}

func TestAskCollectsAnswers(t *testing.T) {
	qs := []models.Question{
		{ID: "q1", Question: "Platform?", Options: []models.QuestionOption{{ID: "a", Label: "Web"}, {ID: "b", Label: "Mobile"}}},
		{ID: "q2", Question: "Auth?", Options: []models.QuestionOption{{ID: "a", Label: "None"}}},
		{ID: "q3", Question: "Sync?", Options: []models.QuestionOption{{ID: "a", Label: "Yes"}}},
	}
	input := "9\n2\nc\nmagic links\n\n"
	answers, err := ask(bufio.NewReader(strings.NewReader(input)), io.Discard, qs)
	require.NoError(t, err)
	assert.Equal(t, []models.Answer{
		{QuestionID: "q1", SelectedOptionID: "b"},
		{QuestionID: "q2", SelectedOptionID: models.CustomOptionID, CustomText: "magic links"},
	}, answers)

	_, err = ask(bufio.NewReader(strings.NewReader("s\n")), io.Discard, qs)
	assert.ErrorIs(t, err, errSkip)
}

func TestAskStopsWhenInputEnds(t *testing.T) {
	qs := []models.Question{
		{ID: "q1", Question: "Platform?", Options: []models.QuestionOption{{ID: "a", Label: "Web"}}},
		{ID: "q2", Question: "Auth?", Options: []models.QuestionOption{{ID: "a", Label: "None"}}},
	}
	answers, err := ask(bufio.NewReader(strings.NewReader("1\n")), io.Discard, qs)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []models.Answer{{QuestionID: "q1", SelectedOptionID: "a"}}, answers)

	answers, err = ask(bufio.NewReader(strings.NewReader("")), io.Discard, qs)
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, answers)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrap("one two three", 8))
	assert.Equal(t, "a\nb", wrap("a\nb", 80))
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "free", formatCost(0))
	assert.Equal(t, "$0.0015", formatCost(0.0015))
	assert.Equal(t, "$1,234.5", formatCost(1234.5))
}
