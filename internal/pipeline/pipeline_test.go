package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/modelselect"
	"github.com/hanno79/Nexora-sub001/internal/provider"
)

type call struct {
	role   models.Role
	prompt string
	system string
}

// fakeInvoker answers each role with a fixed model and records call order.
// It fails the test if two invocations ever overlap.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []call
	active  int32
	overlap bool
	content func(n int, role models.Role) string
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, pref models.ModelPreference, role models.Role, prdID string, req provider.Request) (*modelselect.Result, error) {
	if atomic.AddInt32(&f.active, 1) > 1 {
		f.overlap = true
	}
	defer atomic.AddInt32(&f.active, -1)
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, call{role: role, prompt: req.Prompt, system: req.System})
	n := len(f.calls)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	text := fmt.Sprintf("output %d by %s", n, role)
	if f.content != nil {
		text = f.content(n, role)
	}
	model := "gen-model"
	if role == models.RoleReviewer {
		model = "rev-model"
	}
	return &modelselect.Result{
		Response: &provider.Response{Model: model, Content: text, InputTokens: 3, OutputTokens: 2},
		Model:    model,
		Role:     role,
		Served:   role,
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsScaffold(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", true},
		{"headings only", "# Title\n\n## Goals\n\n## Non-goals\n", true},
		{"placeholders", "# Title\n[TODO]\n- \n<!-- fill me -->\n{{problem}}\n", true},
		{"real text", "# Title\nUsers forget to drink water.", false},
		{"list items", "## Goals\n- Track intake\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsScaffold(tt.content))
		})
	}
}

func TestDualRunsGeneratorThenReviewerOnce(t *testing.T) {
	inv := &fakeInvoker{}
	d := NewDual(inv, testLogger())

	out, err := d.Run(context.Background(), DualInput{UserInput: "A water tracking app"})
	require.NoError(t, err)

	require.Len(t, inv.calls, 2)
	assert.Equal(t, models.RoleGenerator, inv.calls[0].role)
	assert.Equal(t, models.RoleReviewer, inv.calls[1].role)
	assert.Contains(t, inv.calls[1].prompt, "output 1 by generator")
	assert.Contains(t, inv.calls[1].prompt, "A water tracking app")

	assert.Equal(t, "output 2 by reviewer", out.FinalContent)
	assert.Equal(t, "gen-model", out.GeneratorResponse.Model)
	assert.Equal(t, "rev-model", out.ReviewerResponse.Model)
	assert.Equal(t, 10, out.TokensUsed)
}

func TestDualPicksImproveForRealContent(t *testing.T) {
	inv := &fakeInvoker{}
	d := NewDual(inv, testLogger())

	_, err := d.Run(context.Background(), DualInput{UserInput: "add metrics", ExistingContent: "# PRD\nExisting body text."})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inv.calls[0].prompt, "Improve and extend"))
}

func TestDualEmptyResultIsDistinct(t *testing.T) {
	inv := &fakeInvoker{content: func(n int, role models.Role) string {
		if role == models.RoleReviewer {
			return "   \n"
		}
		return "draft"
	}}
	d := NewDual(inv, testLogger())

	_, err := d.Run(context.Background(), DualInput{UserInput: "x"})
	var empty *apperr.EmptyResultError
	require.True(t, errors.As(err, &empty))
	var invErr *apperr.ModelInvocationError
	assert.False(t, errors.As(err, &invErr))
	assert.True(t, apperr.Retryable(err))
}

func TestDualValidation(t *testing.T) {
	d := NewDual(&fakeInvoker{}, testLogger())
	_, err := d.Run(context.Background(), DualInput{})
	var vErr *apperr.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = d.Run(context.Background(), DualInput{UserInput: "x", Mode: "rewrite"})
	assert.True(t, errors.As(err, &vErr))
}

func TestDualPropagatesInvocationError(t *testing.T) {
	inv := &fakeInvoker{err: &apperr.ModelInvocationError{Role: models.RoleGenerator, Attempted: []string{"a", "b"}}}
	d := NewDual(inv, testLogger())

	_, err := d.Run(context.Background(), DualInput{UserInput: "x"})
	var invErr *apperr.ModelInvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, []string{"a", "b"}, invErr.Attempted)
	assert.Len(t, inv.calls, 1)
}

func TestIterativeRunsExactRoundCount(t *testing.T) {
	for count := models.MinIterationCount; count <= models.MaxIterationCount; count++ {
		t.Run(fmt.Sprintf("%d rounds", count), func(t *testing.T) {
			inv := &fakeInvoker{}
			it := NewIterative(inv, testLogger())

			var seen []int
			out, err := it.Run(context.Background(), IterativeInput{
				AdditionalRequirements: "water app",
				IterationCount:         count,
				OnRound:                func(r models.IterationRound) { seen = append(seen, r.Round) },
			})
			require.NoError(t, err)
			assert.Len(t, inv.calls, count)
			assert.Len(t, out.Rounds, count)
			assert.False(t, inv.overlap, "rounds must never overlap")
			for i, r := range seen {
				assert.Equal(t, i+1, r)
			}
		})
	}
}

func TestIterativeEachRoundConsumesPrevious(t *testing.T) {
	inv := &fakeInvoker{}
	it := NewIterative(inv, testLogger())

	_, err := it.Run(context.Background(), IterativeInput{AdditionalRequirements: "water app", IterationCount: 3})
	require.NoError(t, err)

	for i := 1; i < len(inv.calls); i++ {
		prev := fmt.Sprintf("output %d by %s", i, RoleForRound(i))
		assert.Contains(t, inv.calls[i].prompt, prev, "round %d should consume round %d output", i+1, i)
	}
}

func TestIterativeThreeRoundsWithFinalReview(t *testing.T) {
	inv := &fakeInvoker{}
	it := NewIterative(inv, testLogger())

	out, err := it.Run(context.Background(), IterativeInput{
		AdditionalRequirements: "water app",
		IterationCount:         3,
		UseFinalReview:         true,
	})
	require.NoError(t, err)

	require.Len(t, inv.calls, 4)
	roles := []models.Role{inv.calls[0].role, inv.calls[1].role, inv.calls[2].role, inv.calls[3].role}
	assert.Equal(t, []models.Role{models.RoleGenerator, models.RoleReviewer, models.RoleGenerator, models.RoleReviewer}, roles)
	assert.Equal(t, finalReviewSystem, inv.calls[3].system)
	assert.True(t, out.Rounds[3].FinalReview)
	assert.GreaterOrEqual(t, len(out.ModelsUsed), 2)
	assert.Equal(t, []string{"gen-model", "rev-model"}, out.ModelsUsed)
	assert.Equal(t, "output 4 by reviewer", out.FinalContent)
}

func TestIterativeRejectsOutOfRangeCount(t *testing.T) {
	it := NewIterative(&fakeInvoker{}, testLogger())
	for _, n := range []int{0, 1, 6} {
		_, err := it.Run(context.Background(), IterativeInput{AdditionalRequirements: "x", IterationCount: n})
		var vErr *apperr.ValidationError
		assert.True(t, errors.As(err, &vErr), "count %d", n)
	}
}

func TestIterativeStopsAtFailingRound(t *testing.T) {
	inv := &fakeInvoker{content: func(n int, role models.Role) string {
		if n == 2 {
			return ""
		}
		return "text"
	}}
	it := NewIterative(inv, testLogger())

	_, err := it.Run(context.Background(), IterativeInput{AdditionalRequirements: "x", IterationCount: 4})
	var empty *apperr.EmptyResultError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "round 2", empty.Stage)
	assert.Len(t, inv.calls, 2)
}
