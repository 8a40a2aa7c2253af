package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/promptkit/promptkit/pkg/models"
)

// SessionStore provides session-related database operations.
type SessionStore struct {
	store *Store
}

// NewSessionStore creates a new session store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store}
}

// Create persists a new session.
func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	row := &Session{
		ID:             sess.ID,
		OriginalPrompt: sess.OriginalPrompt,
		SessionType:    string(sess.SessionType),
		Status:         string(sess.Status),
		CurrentStep:    sess.CurrentStep,
		SelectedFormat: string(sess.SelectedFormat),
	}
	if err := s.store.DB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	sess.CreatedAt = row.CreatedAt
	sess.CreatedAtEpoch = row.CreatedAtEpoch
	return nil
}

// GetByID retrieves a session by ID. Returns (nil, nil) when the
// session does not exist.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var row Session
	err := s.store.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return toDomainSession(&row), nil
}

// AdvanceStep moves a session from one step to the next, optionally
// changing status. The current_step predicate is a compare-and-set:
// if another command already advanced the session, no row matches and
// ErrStale is returned.
func (s *SessionStore) AdvanceStep(ctx context.Context, id string, fromStep, toStep int, status models.SessionStatus) error {
	res := s.store.DB.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND current_step = ?", id, fromStep).
		Updates(map[string]interface{}{
			"current_step": toStep,
			"status":       string(status),
		})
	if res.Error != nil {
		return fmt.Errorf("advance step: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// SetEnhanced records the generated enhanced prompt and forces the
// session to complete. The enhanced_prompt IS NULL predicate makes
// the write-back idempotent under duplicate task delivery; the second
// delivery simply matches no row and reports false.
func (s *SessionStore) SetEnhanced(ctx context.Context, id, enhanced string) (bool, error) {
	res := s.store.DB.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND enhanced_prompt IS NULL", id).
		Updates(map[string]interface{}{
			"enhanced_prompt": sql.NullString{String: enhanced, Valid: true},
			"status":          string(models.StatusComplete),
		})
	if res.Error != nil {
		return false, fmt.Errorf("set enhanced prompt: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// sessionWithCount is the scan target for ListCompleted.
type sessionWithCount struct {
	Session
	QuestionCount int
}

// ListCompleted returns completed sessions (enhanced prompt present),
// newest first, each with its question count.
func (s *SessionStore) ListCompleted(ctx context.Context) ([]*models.CompletedSession, error) {
	const query = `
		SELECT s.*,
		       (SELECT COUNT(*) FROM questions q WHERE q.session_id = s.id) AS question_count
		FROM sessions s
		WHERE s.status = 'complete' AND s.enhanced_prompt IS NOT NULL
		ORDER BY s.created_at_epoch DESC
	`

	var rows []sessionWithCount
	if err := s.store.DB.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}

	completed := make([]*models.CompletedSession, 0, len(rows))
	for i := range rows {
		completed = append(completed, &models.CompletedSession{
			Session:       *toDomainSession(&rows[i].Session),
			QuestionCount: rows[i].QuestionCount,
		})
	}
	return completed, nil
}
