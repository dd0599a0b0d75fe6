package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const aiSettingsKey = "ai"

// SettingsStore persists the AI settings document as a single JSON row.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// LoadAI returns the stored settings, or nil when none were ever saved.
func (s *SettingsStore) LoadAI() (*models.AISettings, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, aiSettingsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var out models.AISettings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &out, nil
}

// SaveAI upserts the settings document.
func (s *SettingsStore) SaveAI(settings *models.AISettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, aiSettingsKey, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
