package models

// UsageRecord is one model invocation. Records are append-only.
type UsageRecord struct {
	ID           int64   `json:"id"`
	Model        string  `json:"model"`
	ModelType    Role    `json:"modelType"`
	Tier         Tier    `json:"tier"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
	PrdID        string  `json:"prdId,omitempty"`
	CreatedAt    int64   `json:"createdAt"`
}

// TotalTokens returns input plus output tokens.
func (r UsageRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// UsageBucket aggregates calls for one tier or model.
type UsageBucket struct {
	Calls  int     `json:"calls"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// UsageSummary is returned from GET /usage.
type UsageSummary struct {
	TotalCost   float64                `json:"totalCost"`
	TotalCalls  int                    `json:"totalCalls"`
	TotalTokens int                    `json:"totalTokens"`
	ByTier      map[string]UsageBucket `json:"byTier"`
	ByModel     map[string]UsageBucket `json:"byModel"`
	RecentCalls []UsageRecord          `json:"recentCalls"`
}
