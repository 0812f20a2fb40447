package datastore

import (
	"time"
)

// CreateTask inserts a new task row. The investigation foreign key is
// enforced by the schema; a dangling investigation_id fails the insert.
func (ds *DataStore) CreateTask(task *Task) error {
	if err := ds.DB.Create(task).Error; err != nil {
		return dbError(err, "create", "task", task.ID)
	}
	return nil
}

// GetTask fetches one task by id.
func (ds *DataStore) GetTask(id string) (*Task, error) {
	var task Task
	if err := ds.DB.First(&task, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "get", "task", id)
	}
	return &task, nil
}

// ListTasks returns all tasks of an investigation in creation order.
func (ds *DataStore) ListTasks(investigationID string) ([]Task, error) {
	var tasks []Task
	if err := ds.DB.Where("investigation_id = ?", investigationID).
		Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, dbError(err, "list", "task", investigationID)
	}
	return tasks, nil
}

// UpdateTaskGuarded applies updates only if updated_at still matches the
// caller's version token.
func (ds *DataStore) UpdateTaskGuarded(id string, expectedUpdatedAt time.Time, updates map[string]any) (int64, error) {
	result := ds.DB.Model(&Task{}).
		Where("id = ? AND updated_at = ?", id, expectedUpdatedAt).
		Updates(updates)
	if result.Error != nil {
		return 0, dbError(result.Error, "update", "task", id)
	}
	return result.RowsAffected, nil
}

// DeleteTask removes a task. Evidence rows keep their content with task_id
// cleared by the schema's SET NULL rule.
func (ds *DataStore) DeleteTask(id string) error {
	result := ds.DB.Delete(&Task{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error, "delete", "task", id)
	}
	if result.RowsAffected == 0 {
		return dbError(recordNotFound(), "delete", "task", id)
	}
	return nil
}
