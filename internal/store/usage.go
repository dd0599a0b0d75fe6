package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const recentCallsLimit = 20

// UsageStore appends and aggregates model usage records.
type UsageStore struct {
	db *DB
}

func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Record appends one usage record. CreatedAt defaults to now.
func (s *UsageStore) Record(rec *models.UsageRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	res, err := s.db.Exec(`
		INSERT INTO usage_records (
			model, model_type, tier, input_tokens, output_tokens, cost, prd_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Model, string(rec.ModelType), string(rec.Tier), rec.InputTokens, rec.OutputTokens,
		rec.Cost, nullIfEmpty(rec.PrdID), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// Summary aggregates records created at or after since. A zero since covers
// all records.
func (s *UsageStore) Summary(since time.Time) (*models.UsageSummary, error) {
	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}

	summary := &models.UsageSummary{
		ByTier:      map[string]models.UsageBucket{},
		ByModel:     map[string]models.UsageBucket{},
		RecentCalls: []models.UsageRecord{},
	}

	rows, err := s.db.Query(`
		SELECT tier, model, COUNT(*), COALESCE(SUM(input_tokens + output_tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE created_at >= ?
		GROUP BY tier, model
	`, sinceUnix)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	for rows.Next() {
		var tier, model string
		var b models.UsageBucket
		if err := rows.Scan(&tier, &model, &b.Calls, &b.Tokens, &b.Cost); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan usage aggregate: %w", err)
		}
		summary.ByTier[tier] = addBucket(summary.ByTier[tier], b)
		summary.ByModel[model] = addBucket(summary.ByModel[model], b)
		summary.TotalCalls += b.Calls
		summary.TotalTokens += b.Tokens
		summary.TotalCost += b.Cost
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := s.db.Query(`
		SELECT id, model, model_type, tier, input_tokens, output_tokens, cost, prd_id, created_at
		FROM usage_records
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sinceUnix, recentCallsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent usage: %w", err)
	}
	defer recent.Close()

	for recent.Next() {
		var rec models.UsageRecord
		var modelType, tier string
		var prdID sql.NullString
		if err := recent.Scan(&rec.ID, &rec.Model, &modelType, &tier, &rec.InputTokens,
			&rec.OutputTokens, &rec.Cost, &prdID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.ModelType = models.Role(modelType)
		rec.Tier = models.Tier(tier)
		rec.PrdID = prdID.String
		summary.RecentCalls = append(summary.RecentCalls, rec)
	}
	return summary, recent.Err()
}

func addBucket(a, b models.UsageBucket) models.UsageBucket {
	return models.UsageBucket{
		Calls:  a.Calls + b.Calls,
		Tokens: a.Tokens + b.Tokens,
		Cost:   a.Cost + b.Cost,
	}
}
