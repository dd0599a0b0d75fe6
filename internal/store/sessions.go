package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// SessionStore persists guided generation sessions.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session.
func (s *SessionStore) Create(sess *models.GenerationSession) error {
	questionsJSON, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answersJSON, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	modelsJSON, err := json.Marshal(sess.ModelsUsed)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO guided_sessions (
			id, mode, prd_id, round_number, status, project_idea,
			feature_overview, questions, answers, refined_plan,
			tokens_used, models_used, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID, sess.Mode, nullIfEmpty(sess.PrdID), sess.RoundNumber, string(sess.Status), sess.ProjectIdea,
		sess.FeatureOverview, string(questionsJSON), string(answersJSON), sess.RefinedPlan,
		sess.TokensUsed, string(modelsJSON), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get fetches a session by ID. It returns nil, nil when no row exists.
func (s *SessionStore) Get(id string) (*models.GenerationSession, error) {
	sess, err := s.scanSession(s.db.QueryRow(`
		SELECT id, mode, prd_id, round_number, status, project_idea,
			feature_overview, questions, answers, refined_plan,
			tokens_used, models_used, created_at, updated_at
		FROM guided_sessions WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// Update writes the mutable fields of a session back.
func (s *SessionStore) Update(sess *models.GenerationSession) error {
	questionsJSON, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answersJSON, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	modelsJSON, err := json.Marshal(sess.ModelsUsed)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}

	sess.UpdatedAt = time.Now().Unix()
	res, err := s.db.Exec(`
		UPDATE guided_sessions SET
			round_number = ?, status = ?, feature_overview = ?, questions = ?,
			answers = ?, refined_plan = ?, tokens_used = ?, models_used = ?, updated_at = ?
		WHERE id = ?
	`,
		sess.RoundNumber, string(sess.Status), sess.FeatureOverview, string(questionsJSON),
		string(answersJSON), sess.RefinedPlan, sess.TokensUsed, string(modelsJSON), sess.UpdatedAt,
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update session %s: no rows", sess.ID)
	}
	return nil
}

// SetStatus changes only the status of a session.
func (s *SessionStore) SetStatus(id string, status models.SessionStatus) error {
	_, err := s.db.Exec(`UPDATE guided_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), id)
	return err
}

// AbandonIdle marks active sessions not touched since before as abandoned and
// returns how many were affected.
func (s *SessionStore) AbandonIdle(before time.Time) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE guided_sessions SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`, string(models.SessionStatusAbandoned), time.Now().Unix(), string(models.SessionStatusActive), before.Unix())
	if err != nil {
		return 0, fmt.Errorf("abandon idle sessions: %w", err)
	}
	return res.RowsAffected()
}

// ListActiveForDocument returns active sessions started for prdID, newest first.
func (s *SessionStore) ListActiveForDocument(prdID string) ([]*models.GenerationSession, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, prd_id, round_number, status, project_idea,
			feature_overview, questions, answers, refined_plan,
			tokens_used, models_used, created_at, updated_at
		FROM guided_sessions
		WHERE prd_id = ? AND status = ?
		ORDER BY created_at DESC
	`, prdID, string(models.SessionStatusActive))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.GenerationSession
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SessionStore) scanSession(row scanner) (*models.GenerationSession, error) {
	var sess models.GenerationSession
	var prdID, questionsJSON, answersJSON, modelsJSON sql.NullString
	var status string

	err := row.Scan(
		&sess.ID, &sess.Mode, &prdID, &sess.RoundNumber, &status, &sess.ProjectIdea,
		&sess.FeatureOverview, &questionsJSON, &answersJSON, &sess.RefinedPlan,
		&sess.TokensUsed, &modelsJSON, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = models.SessionStatus(status)
	sess.PrdID = prdID.String
	if questionsJSON.Valid && questionsJSON.String != "" {
		if err := json.Unmarshal([]byte(questionsJSON.String), &sess.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	if answersJSON.Valid && answersJSON.String != "" {
		if err := json.Unmarshal([]byte(answersJSON.String), &sess.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if modelsJSON.Valid && modelsJSON.String != "" {
		if err := json.Unmarshal([]byte(modelsJSON.String), &sess.ModelsUsed); err != nil {
			return nil, fmt.Errorf("decode models: %w", err)
		}
	}
	if sess.Answers == nil {
		sess.Answers = map[string]models.Answer{}
	}
	return &sess, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
