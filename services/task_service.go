package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

type TaskService struct {
	store store.Store
}

func NewTaskService(st store.Store) *TaskService {
	return &TaskService{store: st}
}

// CreateTask inserts the task, its CREATION history record and the parent
// project's task-id append in one transaction. Fails with ErrNotFound if
// the project vanished, ErrAborted if the conflict retries ran out.
func (s *TaskService) CreateTask(ctx context.Context, actorID, actorName, projectID string, task models.Task) (*models.Task, error) {
	prepareNewTask(&task, projectID)
	record := creationRecord(actorID, actorName, &task, time.Now())
	task.History = append(task.History, record.ID)

	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var project models.Project
		if err := tx.Get(store.Projects, projectID, &project); err != nil {
			return err
		}
		task.ProjectName = project.ProjectName
		tx.Set(store.History, record.ID, record)
		tx.Set(store.Tasks, task.ID, task)
		tx.Push(store.Projects, projectID, "tasks", task.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create task in project %s: %w", projectID, err)
	}
	logging.Logger.Infof("Task %s created in project %s by %s", task.ID, projectID, actorID)
	return &task, nil
}

// CreateRecursiveTasks inserts every occurrence of a repeating task in a
// single transaction; each occurrence gets its own CREATION record. If the
// project is gone the transaction aborts and nothing is written.
func (s *TaskService) CreateRecursiveTasks(ctx context.Context, actorID, actorName, projectID string, tasks []models.Task) ([]models.Task, error) {
	now := time.Now()
	records := make([]models.History, len(tasks))
	for i := range tasks {
		prepareNewTask(&tasks[i], projectID)
		records[i] = creationRecord(actorID, actorName, &tasks[i], now)
		tasks[i].History = append(tasks[i].History, records[i].ID)
	}

	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var project models.Project
		if err := tx.Get(store.Projects, projectID, &project); err != nil {
			return err
		}
		taskIDs := make([]any, len(tasks))
		for i := range tasks {
			tasks[i].ProjectName = project.ProjectName
			tx.Set(store.History, records[i].ID, records[i])
			tx.Set(store.Tasks, tasks[i].ID, tasks[i])
			taskIDs[i] = tasks[i].ID
		}
		tx.Push(store.Projects, projectID, "tasks", taskIDs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create %d recurring tasks in project %s: %w", len(tasks), projectID, err)
	}
	logging.Logger.Infof("%d recurring tasks created in project %s by %s", len(tasks), projectID, actorID)
	return tasks, nil
}

// UpdateTask reads the current task, diffs the watched fields and writes
// the new values together with the generated history records, all in one
// transaction. Returns the records that were written.
func (s *TaskService) UpdateTask(ctx context.Context, actorID, actorName, taskID string, updated models.Task) ([]models.History, error) {
	var written []models.History
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var current models.Task
		if err := tx.Get(store.Tasks, taskID, &current); err != nil {
			return err
		}
		records := diffTask(actorID, actorName, &current, &updated, time.Now())

		tx.Update(store.Tasks, taskID, map[string]any{
			"taskName":      updated.TaskName,
			"description":   updated.Description,
			"tag":           updated.Tag,
			"status":        updated.Status,
			"priority":      updated.Priority,
			"endDate":       updated.EndDate,
			"listUser":      updated.ListUser,
			"repeat":        updated.Repeat,
			"recurringType": updated.RecurringType,
			"endRepeat":     updated.EndRepeat,
		})
		for _, record := range records {
			tx.Set(store.History, record.ID, record)
			tx.Push(store.Tasks, taskID, "history", record.ID)
		}
		written = records
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}
	logging.Logger.Infof("Task %s updated by %s, %d history record(s)", taskID, actorID, len(written))
	return written, nil
}

// DeleteTask removes the task id from its project and deletes the task
// document in one transaction.
func (s *TaskService) DeleteTask(ctx context.Context, projectID, taskID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Pull(store.Projects, projectID, "tasks", taskID)
		tx.Delete(store.Tasks, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	logging.Logger.Infof("Task %s deleted from project %s", taskID, projectID)
	return nil
}

// AddComment appends an immutable comment to the task.
func (s *TaskService) AddComment(ctx context.Context, authorID, taskID, text string) (*models.Comment, error) {
	comment := models.Comment{
		ID:        uuid.NewString(),
		Author:    authorID,
		Text:      text,
		Timestamp: time.Now(),
	}
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var task models.Task
		if err := tx.Get(store.Tasks, taskID, &task); err != nil {
			return err
		}
		tx.Set(store.Comments, comment.ID, comment)
		tx.Push(store.Tasks, taskID, "comments", comment.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("comment on task %s: %w", taskID, err)
	}
	return &comment, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.store.Get(ctx, store.Tasks, taskID, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskHistory resolves the task's history ids into records, oldest
// first. Records whose document is missing are skipped.
func (s *TaskService) GetTaskHistory(ctx context.Context, taskID string) ([]models.History, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	records := make([]models.History, 0, len(task.History))
	for _, id := range task.History {
		var record models.History
		if err := s.store.Get(ctx, store.History, id, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// StreamTasks is a live view over a project's tasks.
func (s *TaskService) StreamTasks(ctx context.Context, projectID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, store.Tasks, store.Where().Eq("projectId", projectID))
}

func prepareNewTask(task *models.Task, projectID string) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.ProjectID = projectID
	if task.CreationDate.IsZero() {
		task.CreationDate = time.Now()
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityLow
	}
	if task.Repeat == "" {
		task.Repeat = models.RepeatNever
	}
}
