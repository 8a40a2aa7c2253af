package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/promptkit/promptkit/pkg/models"
)

// QuestionStore provides question-related database operations.
type QuestionStore struct {
	store *Store
}

// NewQuestionStore creates a new question store.
func NewQuestionStore(store *Store) *QuestionStore {
	return &QuestionStore{store: store}
}

// Insert writes a new question at the given position. The unique
// (session_id, position) index rejects duplicate write-backs; those
// surface as ErrDuplicateQuestion.
func (q *QuestionStore) Insert(ctx context.Context, sessionID string, position int, text string) (int64, error) {
	row := &Question{
		SessionID: sessionID,
		Position:  position,
		Question:  text,
	}
	if err := q.store.DB.WithContext(ctx).Create(row).Error; err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, ErrDuplicateQuestion
		}
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return row.ID, nil
}

// AttachAnswer records the answer for the question at the given
// position. The answer IS NULL predicate makes this a single-winner
// operation: when two submissions race for the same open question,
// exactly one update matches and the other reports false.
func (q *QuestionStore) AttachAnswer(ctx context.Context, sessionID string, position int, answer string) (bool, error) {
	res := q.store.DB.WithContext(ctx).
		Model(&Question{}).
		Where("session_id = ? AND position = ? AND answer IS NULL", sessionID, position).
		Update("answer", sql.NullString{String: answer, Valid: true})
	if res.Error != nil {
		return false, fmt.Errorf("attach answer: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListBySession returns a session's questions ordered by position.
func (q *QuestionStore) ListBySession(ctx context.Context, sessionID string) ([]*models.Question, error) {
	var rows []Question
	err := q.store.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	questions := make([]*models.Question, 0, len(rows))
	for i := range rows {
		questions = append(questions, toDomainQuestion(&rows[i]))
	}
	return questions, nil
}

// GetByPosition retrieves the question at a position. Returns
// (nil, nil) when no question exists there.
func (q *QuestionStore) GetByPosition(ctx context.Context, sessionID string, position int) (*models.Question, error) {
	var row Question
	err := q.store.DB.WithContext(ctx).
		First(&row, "session_id = ? AND position = ?", sessionID, position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return toDomainQuestion(&row), nil
}

// CountBySession returns how many questions a session has.
func (q *QuestionStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int64
	err := q.store.DB.WithContext(ctx).
		Model(&Question{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return int(count), nil
}
