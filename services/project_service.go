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

type ProjectService struct {
	store store.Store
}

func NewProjectService(st store.Store) *ProjectService {
	return &ProjectService{store: st}
}

func (s *ProjectService) CreateProject(ctx context.Context, project models.Project) (*models.Project, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CreationDate.IsZero() {
		project.CreationDate = time.Now()
	}
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Set(store.Projects, project.ID, project)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logging.Logger.Infof("Project %s (%s) created", project.ID, project.ProjectName)
	return &project, nil
}

func (s *ProjectService) UpdateProject(ctx context.Context, projectID string, updated models.Project) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var current models.Project
		if err := tx.Get(store.Projects, projectID, &current); err != nil {
			return err
		}
		tx.Update(store.Projects, projectID, map[string]any{
			"projectName":  updated.ProjectName,
			"description":  updated.Description,
			"tag":          updated.Tag,
			"projectImage": updated.ProjectImage,
			"endDate":      updated.EndDate,
			"teams":        updated.Teams,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("update project %s: %w", projectID, err)
	}
	return nil
}

func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.store.Get(ctx, store.Projects, projectID, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes every task on the project's list and the project
// itself in one transaction: either everything vanishes or nothing does.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var project models.Project
		if err := tx.Get(store.Projects, projectID, &project); err != nil {
			return err
		}
		for _, taskID := range project.Tasks {
			tx.Delete(store.Tasks, taskID)
		}
		tx.Delete(store.Projects, projectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	logging.Logger.Infof("Project %s deleted with its tasks", projectID)
	return nil
}

// GetProjectsForTeam lists projects the team participates in.
func (s *ProjectService) GetProjectsForTeam(ctx context.Context, teamID string) ([]models.Project, error) {
	var projects []models.Project
	err := s.store.Query(ctx, store.Projects, store.Where().Contains("teams", teamID), &projects)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// StreamProjectsForTeam is a live view over the team's projects.
func (s *ProjectService) StreamProjectsForTeam(ctx context.Context, teamID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, store.Projects, store.Where().Contains("teams", teamID))
}
