package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// TaskStore persists deferred tasks so generation work survives a
// process restart. Claiming is a compare-and-set on the task status,
// so concurrent dispatchers never run the same task twice.
type TaskStore struct {
	store *Store
}

// NewTaskStore creates a new task store.
func NewTaskStore(store *Store) *TaskStore {
	return &TaskStore{store: store}
}

// Enqueue inserts a pending task and returns its ID.
func (t *TaskStore) Enqueue(ctx context.Context, kind, payload string) (int64, error) {
	row := &Task{
		Kind:    kind,
		Payload: payload,
		Status:  TaskStatusPending,
	}
	if err := t.store.DB.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("enqueue task: %w", err)
	}
	return row.ID, nil
}

// ClaimNext atomically claims the oldest pending task, moving it to
// running. Returns (nil, nil) when no pending task exists.
func (t *TaskStore) ClaimNext(ctx context.Context) (*Task, error) {
	for {
		var row Task
		err := t.store.DB.WithContext(ctx).
			Where("status = ?", TaskStatusPending).
			Order("id ASC").
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find pending task: %w", err)
		}

		res := t.store.DB.WithContext(ctx).
			Model(&Task{}).
			Where("id = ? AND status = ?", row.ID, TaskStatusPending).
			Updates(map[string]interface{}{
				"status":   TaskStatusRunning,
				"attempts": row.Attempts + 1,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("claim task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the claim race, try the next pending task.
			continue
		}

		row.Status = TaskStatusRunning
		row.Attempts++
		return &row, nil
	}
}

// MarkDone marks a task as successfully completed.
func (t *TaskStore) MarkDone(ctx context.Context, id int64) error {
	err := t.store.DB.WithContext(ctx).
		Model(&Task{}).
		Where("id = ?", id).
		Update("status", TaskStatusDone).Error
	if err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	return nil
}

// MarkFailed marks a task as failed and records the error.
func (t *TaskStore) MarkFailed(ctx context.Context, id int64, taskErr error) error {
	updates := map[string]interface{}{
		"status": TaskStatusFailed,
	}
	if taskErr != nil {
		updates["last_error"] = sql.NullString{String: taskErr.Error(), Valid: true}
	}
	err := t.store.DB.WithContext(ctx).
		Model(&Task{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return nil
}

// Requeue moves a claimed task back to pending so it is delivered
// again, clearing any recorded error. Used when shutdown interrupts a
// handler: the work is not failed, just not finished.
func (t *TaskStore) Requeue(ctx context.Context, id int64) error {
	err := t.store.DB.WithContext(ctx).
		Model(&Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     TaskStatusPending,
			"last_error": sql.NullString{},
		}).Error
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	return nil
}

// ResetRunning moves tasks left running by a crashed process back to
// pending so they are delivered again. At-least-once, not exactly-once:
// the write-back guards absorb the resulting duplicates.
func (t *TaskStore) ResetRunning(ctx context.Context) (int64, error) {
	res := t.store.DB.WithContext(ctx).
		Model(&Task{}).
		Where("status = ?", TaskStatusRunning).
		Update("status", TaskStatusPending)
	if res.Error != nil {
		return 0, fmt.Errorf("reset running tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
