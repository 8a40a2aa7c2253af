package db

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/promptkit/promptkit/pkg/models"
)

// Session is the persisted form of a prompt-enhancement session.
type Session struct {
	ID             string `gorm:"primaryKey"`
	OriginalPrompt string `gorm:"type:text;not null"`
	SessionType    string `gorm:"type:text;check:session_type IN ('interactive', 'oneshot');default:'interactive';not null"`
	Status         string `gorm:"type:text;check:status IN ('questioning', 'enhancing', 'complete');index;not null"`
	CurrentStep    int    `gorm:"default:0;not null"`
	SelectedFormat string `gorm:"type:text;default:'markdown';not null"`
	EnhancedPrompt sql.NullString
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_sessions_created,sort:desc;not null"`
}

func (Session) TableName() string { return "sessions" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Question is one turn of the clarifying dialogue. The composite
// unique index is the duplicate write-back guard: a re-delivered
// generation task cannot insert a second question at the same position.
type Question struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"index;uniqueIndex:idx_questions_session_position,priority:1;not null"`
	Position       int    `gorm:"uniqueIndex:idx_questions_session_position,priority:2;not null"`
	Question       string `gorm:"type:text;not null"`
	Answer         sql.NullString
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (Question) TableName() string { return "questions" }

// BeforeCreate hook to ensure timestamps are set.
func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.CreatedAtEpoch == 0 {
		q.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if q.CreatedAt == "" {
		q.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Export is a persisted export artifact, one per (session, format).
type Export struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"index;uniqueIndex:idx_exports_session_format,priority:1;not null"`
	Format         string `gorm:"type:text;check:format IN ('markdown', 'json', 'xml');uniqueIndex:idx_exports_session_format,priority:2;not null"`
	Content        string `gorm:"type:text;not null"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (Export) TableName() string { return "exports" }

// BeforeCreate hook to ensure timestamps are set.
func (e *Export) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Task statuses for the durable task queue.
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// Task is a deferred unit of work persisted so generation survives a
// process restart. Payload is a JSON document owned by the handler.
type Task struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Kind           string `gorm:"type:text;index;not null"`
	Payload        string `gorm:"type:text;not null"`
	Status         string `gorm:"type:text;check:status IN ('pending', 'running', 'done', 'failed');default:'pending';index;not null"`
	Attempts       int    `gorm:"default:0;not null"`
	LastError      sql.NullString
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index;not null"`
}

func (Task) TableName() string { return "tasks" }

// BeforeCreate hook to ensure timestamps are set.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAtEpoch == 0 {
		t.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// toDomainSession converts a persisted session to the domain model.
func toDomainSession(row *Session) *models.Session {
	sess := &models.Session{
		ID:             row.ID,
		OriginalPrompt: row.OriginalPrompt,
		SessionType:    models.SessionType(row.SessionType),
		Status:         models.SessionStatus(row.Status),
		CurrentStep:    row.CurrentStep,
		SelectedFormat: models.ExportFormat(row.SelectedFormat),
		CreatedAt:      row.CreatedAt,
		CreatedAtEpoch: row.CreatedAtEpoch,
	}
	if row.EnhancedPrompt.Valid {
		sess.EnhancedPrompt = row.EnhancedPrompt.String
	}
	return sess
}

// toDomainQuestion converts a persisted question to the domain model.
func toDomainQuestion(row *Question) *models.Question {
	q := &models.Question{
		ID:             row.ID,
		SessionID:      row.SessionID,
		Position:       row.Position,
		Question:       row.Question,
		CreatedAt:      row.CreatedAt,
		CreatedAtEpoch: row.CreatedAtEpoch,
	}
	if row.Answer.Valid {
		q.Answer = row.Answer.String
		q.Answered = true
	}
	return q
}
