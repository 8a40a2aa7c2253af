package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExportStore persists export artifacts, one per (session, format).
type ExportStore struct {
	store *Store
}

// NewExportStore creates a new export store.
func NewExportStore(store *Store) *ExportStore {
	return &ExportStore{store: store}
}

// Upsert saves an export artifact, replacing any previous artifact
// for the same session and format. Exports are deterministic for an
// unchanged session, so replacement is safe.
func (e *ExportStore) Upsert(ctx context.Context, sessionID, format, content string) error {
	row := &Export{
		SessionID: sessionID,
		Format:    format,
		Content:   content,
	}
	err := e.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "format"}},
			DoUpdates: clause.AssignmentColumns([]string{"content"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	return nil
}

// Get retrieves a stored export artifact. Returns ("", nil) when no
// artifact exists for the session and format.
func (e *ExportStore) Get(ctx context.Context, sessionID, format string) (string, error) {
	var row Export
	err := e.store.DB.WithContext(ctx).
		First(&row, "session_id = ? AND format = ?", sessionID, format).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get export: %w", err)
	}
	return row.Content, nil
}
