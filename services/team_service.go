package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

var ErrNotMember = errors.New("user is not a member of the team")

// TeamService covers team lifecycle and membership. The single-document
// mutations run with the single-attempt policy: a membership change is
// never re-applied under contention.
type TeamService struct {
	store store.Store
}

func NewTeamService(st store.Store) *TeamService {
	return &TeamService{store: st}
}

// AddTeam creates the team with the creator as first member and admin.
func (s *TeamService) AddTeam(ctx context.Context, creatorID string, team models.Team) (*models.Team, error) {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreationDate.IsZero() {
		team.CreationDate = time.Now()
	}
	if !containsID(team.Users, creatorID) {
		team.Users = append(team.Users, creatorID)
	}
	if !containsID(team.Admin, creatorID) {
		team.Admin = append(team.Admin, creatorID)
	}
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		tx.Set(store.Teams, team.ID, team)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add team: %w", err)
	}
	logging.Logger.Infof("Team %s (%s) created by %s", team.ID, team.TeamName, creatorID)
	return &team, nil
}

func (s *TeamService) UpdateTeam(ctx context.Context, teamID string, updated models.Team) error {
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		var current models.Team
		if err := tx.Get(store.Teams, teamID, &current); err != nil {
			return err
		}
		tx.Update(store.Teams, teamID, map[string]any{
			"teamName":    updated.TeamName,
			"description": updated.Description,
			"teamImage":   updated.TeamImage,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("update team %s: %w", teamID, err)
	}
	return nil
}

func (s *TeamService) AddTeamMember(ctx context.Context, teamID, userID string) error {
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		var team models.Team
		if err := tx.Get(store.Teams, teamID, &team); err != nil {
			return err
		}
		tx.Push(store.Teams, teamID, "users", userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add member %s to team %s: %w", userID, teamID, err)
	}
	logging.Logger.Infof("User %s added to team %s", userID, teamID)
	return nil
}

// RemoveMemberFromTeam drops the user from both the member and the admin
// list, so admins always stay a subset of members.
func (s *TeamService) RemoveMemberFromTeam(ctx context.Context, teamID, userID string) error {
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		var team models.Team
		if err := tx.Get(store.Teams, teamID, &team); err != nil {
			return err
		}
		tx.Pull(store.Teams, teamID, "users", userID)
		tx.Pull(store.Teams, teamID, "admin", userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove member %s from team %s: %w", userID, teamID, err)
	}
	logging.Logger.Infof("User %s removed from team %s", userID, teamID)
	return nil
}

func (s *TeamService) PromoteMemberToAdmin(ctx context.Context, teamID, userID string) error {
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		var team models.Team
		if err := tx.Get(store.Teams, teamID, &team); err != nil {
			return err
		}
		if !team.HasMember(userID) {
			return fmt.Errorf("promote %s in team %s: %w", userID, teamID, ErrNotMember)
		}
		tx.Push(store.Teams, teamID, "admin", userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("promote member in team %s: %w", teamID, err)
	}
	return nil
}

func (s *TeamService) DemoteAdmin(ctx context.Context, teamID, userID string) error {
	err := s.store.Transaction(ctx, store.SingleAttempt, func(tx store.Tx) error {
		var team models.Team
		if err := tx.Get(store.Teams, teamID, &team); err != nil {
			return err
		}
		tx.Pull(store.Teams, teamID, "admin", userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("demote admin in team %s: %w", teamID, err)
	}
	return nil
}

func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	if err := s.store.Get(ctx, store.Teams, teamID, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// StreamTeamsForUser is a live view over the teams the user belongs to.
func (s *TeamService) StreamTeamsForUser(ctx context.Context, userID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, store.Teams, store.Where().Contains("users", userID))
}

// DeleteTeam cascades over projects, chats and messages with best-effort
// batched updates, then deletes the team. The cascade is deliberately NOT
// one transaction (it can touch an unbounded number of documents); a
// failure partway through leaves earlier steps applied and is reported as
// ErrPartialCascade. Every step is idempotent, so re-running the whole
// cascade is the recovery path.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID string) error {
	var projects []models.Project
	if err := s.store.Query(ctx, store.Projects, store.Where().Contains("teams", teamID), &projects); err != nil {
		return fmt.Errorf("delete team %s: list projects: %w", teamID, err)
	}
	var chats []models.Chat
	if err := s.store.Query(ctx, store.Chats, store.Where().Eq("teamId", teamID), &chats); err != nil {
		return fmt.Errorf("delete team %s: list chats: %w", teamID, err)
	}
	var messages []models.Message
	for _, chat := range chats {
		var chatMessages []models.Message
		if err := s.store.Query(ctx, store.Messages, store.Where().Eq("chatId", chat.ID), &chatMessages); err != nil {
			return fmt.Errorf("delete team %s: list messages of chat %s: %w", teamID, chat.ID, err)
		}
		messages = append(messages, chatMessages...)
	}

	applied := 0
	step := func(body func(tx store.Tx) error) error {
		err := s.store.Transaction(ctx, store.RetryDefault, body)
		if err == nil {
			applied++
		}
		return err
	}

	for _, project := range projects {
		projectID := project.ID
		if err := step(func(tx store.Tx) error {
			tx.Pull(store.Projects, projectID, "teams", teamID)
			return nil
		}); err != nil {
			return s.cascadeFailure(teamID, applied, err)
		}
	}
	if err := step(func(tx store.Tx) error {
		for _, message := range messages {
			tx.Delete(store.Messages, message.ID)
		}
		for _, chat := range chats {
			tx.Delete(store.Chats, chat.ID)
		}
		return nil
	}); err != nil {
		return s.cascadeFailure(teamID, applied, err)
	}
	if err := step(func(tx store.Tx) error {
		tx.Delete(store.Teams, teamID)
		return nil
	}); err != nil {
		return s.cascadeFailure(teamID, applied, err)
	}

	logging.Logger.Infof("Team %s deleted: %d project(s) detached, %d chat(s), %d message(s) removed",
		teamID, len(projects), len(chats), len(messages))
	return nil
}

func (s *TeamService) cascadeFailure(teamID string, applied int, err error) error {
	if applied == 0 {
		return fmt.Errorf("delete team %s: %w", teamID, err)
	}
	logging.Logger.Warnf("Team %s cascade stopped after %d step(s): %v", teamID, applied, err)
	return fmt.Errorf("delete team %s after %d step(s): %v: %w", teamID, applied, err, store.ErrPartialCascade)
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
