package investigation

import (
	"time"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
)

// TaskParams carries the fields for task creation.
type TaskParams struct {
	Title       string
	Description string
	Priority    string
	AssignedTo  string
	DueDate     *time.Time
	Metadata    map[string]any
}

// TaskPatch carries updatable task fields plus the caller's version token.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *string
	AssignedTo  *string
	DueDate     *time.Time
	UpdatedAt   time.Time
}

// CreateTask adds a task to an investigation. Tasks can only be created
// while the investigation is Active or Pending.
func (s *Service) CreateTask(actor auth.Actor, investigationID string, params *TaskParams) (task *datastore.Task, err error) {
	defer func() { s.metrics.RecordMutation("task_create", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if params == nil || params.Title == "" {
		return nil, errors.Newf("task title must not be empty").
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "title").
			Build()
	}
	priority := params.Priority
	if priority == "" {
		priority = datastore.PriorityMedium
	}
	if !datastore.ValidPriority(priority) {
		return nil, errors.Newf("invalid priority: %s", priority).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "priority").
			Build()
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		inv, err := tx.GetInvestigation(investigationID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case datastore.InvestigationArchived:
			return archivedError(investigationID)
		case datastore.InvestigationCompleted:
			return errors.Newf("investigation %s is completed; tasks can only be created while Active or Pending", investigationID).
				Component("investigation").
				Category(errors.CategoryState).
				Context("investigation_id", investigationID).
				Build()
		}

		now := time.Now().UTC()
		task = &datastore.Task{
			ID:              datastore.NewID(),
			InvestigationID: investigationID,
			Title:           params.Title,
			Description:     params.Description,
			Status:          datastore.TaskOpen,
			Priority:        priority,
			CreatedAt:       now,
			UpdatedAt:       now,
			DueDate:         params.DueDate,
			Metadata:        params.Metadata,
		}
		if params.AssignedTo != "" {
			assignee := params.AssignedTo
			task.AssignedTo = &assignee
		}
		if err := tx.CreateTask(task); err != nil {
			return err
		}
		return activity.Append(tx, investigationID, actor.UserID, activity.TypeTaskCreated,
			"task created: "+params.Title, map[string]any{
				"task_id":     task.ID,
				"title":       params.Title,
				"status":      task.Status,
				"priority":    priority,
				"assigned_to": params.AssignedTo,
			})
	})
	if err != nil {
		return nil, err
	}
	getLogger().Info("task created", "id", task.ID, "investigation_id", investigationID)
	return task, nil
}

// GetTask fetches one task.
func (s *Service) GetTask(id string) (*datastore.Task, error) {
	return s.store.GetTask(id)
}

// ListTasks returns an investigation's tasks in creation order.
func (s *Service) ListTasks(investigationID string) ([]datastore.Task, error) {
	return s.store.ListTasks(investigationID)
}

// taskStatusGraph permits any move between the four task states except
// re-entering the same state; the gate that matters is the owning
// investigation not being Archived.
func validTaskTransition(from, to string) bool {
	return from != to
}

// UpdateTaskStatus moves a task to a new status. Rejected when the owning
// investigation is Archived.
func (s *Service) UpdateTaskStatus(actor auth.Actor, taskID, target string) (task *datastore.Task, err error) {
	defer func() { s.metrics.RecordMutation("task_status", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if !datastore.ValidTaskStatus(target) {
		return nil, errors.Newf("invalid task status: %s", target).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "status").
			Build()
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		current, err := tx.GetTask(taskID)
		if err != nil {
			return err
		}
		inv, err := tx.GetInvestigation(current.InvestigationID)
		if err != nil {
			return err
		}
		if inv.Status == datastore.InvestigationArchived {
			return archivedError(inv.ID)
		}
		if !validTaskTransition(current.Status, target) {
			return errors.Newf("task is already %s", target).
				Component("investigation").
				Category(errors.CategoryInvalidTransition).
				Context("task_id", taskID).
				Context("from", current.Status).
				Context("to", target).
				Build()
		}

		now := time.Now().UTC()
		rows, err := tx.UpdateTaskGuarded(taskID, current.UpdatedAt, map[string]any{
			"status":     target,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return concurrentModification("task", taskID)
		}

		if err := activity.Append(tx, inv.ID, actor.UserID, activity.TypeTaskStatusChanged,
			"task status changed from "+current.Status+" to "+target, map[string]any{
				"task_id": taskID,
				"from":    current.Status,
				"to":      target,
			}); err != nil {
			return err
		}
		task, err = tx.GetTask(taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a field patch to a task under optimistic concurrency.
func (s *Service) UpdateTask(actor auth.Actor, taskID string, patch *TaskPatch) (task *datastore.Task, err error) {
	defer func() { s.metrics.RecordMutation("task_update", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if patch == nil || patch.UpdatedAt.IsZero() {
		return nil, errors.Newf("task update requires the caller's version token").
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "updated_at").
			Build()
	}
	if patch.Priority != nil && !datastore.ValidPriority(*patch.Priority) {
		return nil, errors.Newf("invalid priority: %s", *patch.Priority).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "priority").
			Build()
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		current, err := tx.GetTask(taskID)
		if err != nil {
			return err
		}
		inv, err := tx.GetInvestigation(current.InvestigationID)
		if err != nil {
			return err
		}
		if inv.Status == datastore.InvestigationArchived {
			return archivedError(inv.ID)
		}

		now := time.Now().UTC()
		updates := map[string]any{"updated_at": now}
		changes := map[string]any{}
		applyField(updates, changes, "title", current.Title, patch.Title)
		applyField(updates, changes, "description", current.Description, patch.Description)
		applyField(updates, changes, "priority", current.Priority, patch.Priority)
		if patch.AssignedTo != nil {
			from := ""
			if current.AssignedTo != nil {
				from = *current.AssignedTo
			}
			if from != *patch.AssignedTo {
				updates["assigned_to"] = *patch.AssignedTo
				changes["assigned_to"] = map[string]any{"from": from, "to": *patch.AssignedTo}
			}
		}
		if patch.DueDate != nil {
			updates["due_date"] = *patch.DueDate
		}
		if len(changes) == 0 && patch.DueDate == nil {
			task = current
			return nil
		}

		rows, err := tx.UpdateTaskGuarded(taskID, patch.UpdatedAt, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			return concurrentModification("task", taskID)
		}
		if err := activity.Append(tx, inv.ID, actor.UserID, activity.TypeTaskUpdated,
			"task updated", map[string]any{
				"task_id": taskID,
				"changes": changes,
			}); err != nil {
			return err
		}
		task, err = tx.GetTask(taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
