package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestSessionStore(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)

	now := time.Now().Unix()
	sess := &models.GenerationSession{
		ID:              uuid.New().String(),
		Mode:            "guided",
		PrdID:           "prd-1",
		RoundNumber:     1,
		Status:          models.SessionStatusActive,
		ProjectIdea:     "A mobile app for tracking daily water intake",
		FeatureOverview: "Hydration tracker",
		Questions: []models.Question{{
			ID:       "q1",
			Question: "Who is the audience?",
			Options:  []models.QuestionOption{{ID: "a", Label: "Athletes"}},
		}},
		Answers:   map[string]models.Answer{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("Create and Get round-trip", func(t *testing.T) {
		if err := ss.Create(sess); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := ss.Get(sess.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got == nil {
			t.Fatal("expected session, got nil")
		}
		if got.PrdID != "prd-1" || got.RoundNumber != 1 || len(got.Questions) != 1 {
			t.Fatalf("unexpected session: %+v", got)
		}
	})

	t.Run("Get missing returns nil", func(t *testing.T) {
		got, err := ss.Get("missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
	})

	t.Run("Update persists answers and round", func(t *testing.T) {
		sess.RoundNumber = 2
		sess.Answers["q1"] = models.Answer{QuestionID: "q1", SelectedOptionID: "a"}
		sess.ModelsUsed = []string{"gen-model"}
		sess.TokensUsed = 120
		if err := ss.Update(sess); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, _ := ss.Get(sess.ID)
		if got.RoundNumber != 2 {
			t.Errorf("expected round 2, got %d", got.RoundNumber)
		}
		if got.Answers["q1"].SelectedOptionID != "a" {
			t.Errorf("expected stored answer, got %+v", got.Answers)
		}
		if got.TokensUsed != 120 || len(got.ModelsUsed) != 1 {
			t.Errorf("expected token accounting, got %d %v", got.TokensUsed, got.ModelsUsed)
		}
	})

	t.Run("ListActiveForDocument", func(t *testing.T) {
		list, err := ss.ListActiveForDocument("prd-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 active session, got %d", len(list))
		}
	})

	t.Run("AbandonIdle", func(t *testing.T) {
		n, err := ss.AbandonIdle(time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("abandon: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 abandoned, got %d", n)
		}
		got, _ := ss.Get(sess.ID)
		if got.Status != models.SessionStatusAbandoned {
			t.Fatalf("expected abandoned, got %s", got.Status)
		}
	})
}

func TestUsageStore(t *testing.T) {
	db := setupTestDB(t)
	us := NewUsageStore(db)

	old := time.Now().Add(-48 * time.Hour).Unix()
	records := []*models.UsageRecord{
		{Model: "llama3", ModelType: models.RoleGenerator, Tier: models.TierDevelopment, InputTokens: 100, OutputTokens: 50, Cost: 0.01, CreatedAt: old},
		{Model: "llama3", ModelType: models.RoleGenerator, Tier: models.TierDevelopment, InputTokens: 10, OutputTokens: 5, Cost: 0.001},
		{Model: "qwen", ModelType: models.RoleReviewer, Tier: models.TierProduction, InputTokens: 20, OutputTokens: 20, Cost: 0.002, PrdID: "prd-9"},
	}
	for _, r := range records {
		if err := us.Record(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	t.Run("all time", func(t *testing.T) {
		sum, err := us.Summary(time.Time{})
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if sum.TotalCalls != 3 {
			t.Errorf("expected 3 calls, got %d", sum.TotalCalls)
		}
		if sum.TotalTokens != 205 {
			t.Errorf("expected 205 tokens, got %d", sum.TotalTokens)
		}
		if sum.ByModel["llama3"].Calls != 2 {
			t.Errorf("expected 2 llama3 calls, got %d", sum.ByModel["llama3"].Calls)
		}
		if sum.ByTier["production"].Tokens != 40 {
			t.Errorf("expected 40 production tokens, got %d", sum.ByTier["production"].Tokens)
		}
		if len(sum.RecentCalls) != 3 {
			t.Errorf("expected 3 recent calls, got %d", len(sum.RecentCalls))
		}
	})

	t.Run("since filters old records", func(t *testing.T) {
		sum, err := us.Summary(time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if sum.TotalCalls != 2 {
			t.Errorf("expected 2 calls, got %d", sum.TotalCalls)
		}
		if sum.RecentCalls[0].PrdID != "prd-9" && sum.RecentCalls[1].PrdID != "prd-9" {
			t.Errorf("expected prdId to round-trip, got %+v", sum.RecentCalls)
		}
	})
}

func TestSettingsStore(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSettingsStore(db)

	got, err := ss.LoadAI()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before first save, got %+v", got)
	}

	in := &models.AISettings{
		ModelPreference: models.ModelPreference{
			Tier:           models.TierPremium,
			GeneratorModel: "big",
			ReviewerModel:  "bigger",
			FallbackModel:  "small",
			TierModels: map[models.Tier]models.TierModels{
				models.TierPremium: {GeneratorModel: "big"},
			},
		},
		IterationCount: 4,
	}
	if err := ss.SaveAI(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	in.IterationCount = 5
	if err := ss.SaveAI(in); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err = ss.LoadAI()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.IterationCount != 5 || got.TierModels[models.TierPremium].GeneratorModel != "big" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}
