package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

func TestAddTeamCreatorIsMemberAndAdmin(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)

	created, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core", Users: []string{"bob"}})
	require.NoError(t, err)
	assert.True(t, created.HasMember("alice"))
	assert.True(t, created.HasMember("bob"))
	assert.True(t, created.IsAdmin("alice"))
	assert.False(t, created.IsAdmin("bob"))
}

func TestMembershipLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)

	created, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core"})
	require.NoError(t, err)

	require.NoError(t, teams.AddTeamMember(ctx, created.ID, "bob"))
	require.NoError(t, teams.AddTeamMember(ctx, created.ID, "bob"), "re-adding is a no-op")

	team, err := teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, team.Users)

	require.NoError(t, teams.PromoteMemberToAdmin(ctx, created.ID, "bob"))
	team, err = teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, team.IsAdmin("bob"))

	// Promotion requires membership.
	err = teams.PromoteMemberToAdmin(ctx, created.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotMember)

	require.NoError(t, teams.DemoteAdmin(ctx, created.ID, "bob"))
	team, err = teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, team.IsAdmin("bob"))
	assert.True(t, team.HasMember("bob"), "demotion keeps membership")
}

func TestRemoveMemberAlsoDropsAdmin(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)

	created, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core"})
	require.NoError(t, err)
	require.NoError(t, teams.AddTeamMember(ctx, created.ID, "bob"))
	require.NoError(t, teams.PromoteMemberToAdmin(ctx, created.ID, "bob"))

	require.NoError(t, teams.RemoveMemberFromTeam(ctx, created.ID, "bob"))
	team, err := teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, team.HasMember("bob"))
	assert.False(t, team.IsAdmin("bob"), "admins stay a subset of members")

	err = teams.AddTeamMember(ctx, "ghost", "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteTeamCascade(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)
	chats := NewChatService(st)
	projects := NewProjectService(st)

	created, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core", Users: []string{"bob"}})
	require.NoError(t, err)

	project, err := projects.CreateProject(ctx, models.Project{
		ProjectName: "Launch",
		Teams:       []string{created.ID, "other-team"},
	})
	require.NoError(t, err)

	message, err := chats.SendTeamMessage(ctx, created.ID, "alice", "kickoff")
	require.NoError(t, err)
	_, err = chats.SendDirectMessage(ctx, "alice", "bob", created.ID, "psst")
	require.NoError(t, err)

	require.NoError(t, teams.DeleteTeam(ctx, created.ID))

	var team models.Team
	assert.ErrorIs(t, st.Get(ctx, store.Teams, created.ID, &team), store.ErrNotFound)

	// The project survives, detached from the deleted team only.
	fresh, err := projects.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"other-team"}, fresh.Teams)

	var remainingChats []models.Chat
	require.NoError(t, st.Query(ctx, store.Chats, store.Where().Eq("teamId", created.ID), &remainingChats))
	assert.Empty(t, remainingChats)
	var remainingMessages []models.Message
	require.NoError(t, st.Query(ctx, store.Messages, store.Where().Eq("chatId", message.ChatID), &remainingMessages))
	assert.Empty(t, remainingMessages)
}

func TestDeleteTeamPartialCascadeRecoverable(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)
	chats := NewChatService(st)
	projects := NewProjectService(st)

	created, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core", Users: []string{"bob"}})
	require.NoError(t, err)
	project, err := projects.CreateProject(ctx, models.Project{
		ProjectName: "Launch",
		Teams:       []string{created.ID},
	})
	require.NoError(t, err)
	_, err = chats.SendTeamMessage(ctx, created.ID, "alice", "kickoff")
	require.NoError(t, err)

	// Fail the second cascade step: the project detach lands, the
	// chat/message wipe does not.
	commits := 0
	st.SetCommitHook(func() error {
		commits++
		if commits > 1 {
			return errors.New("storage failed")
		}
		return nil
	})
	err = teams.DeleteTeam(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrPartialCascade)
	st.SetCommitHook(nil)

	fresh, err := projects.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Teams, "first step stays applied")
	var team models.Team
	require.NoError(t, st.Get(ctx, store.Teams, created.ID, &team), "team itself survives the partial cascade")

	// Re-running the cascade finishes the job.
	require.NoError(t, teams.DeleteTeam(ctx, created.ID))
	assert.ErrorIs(t, st.Get(ctx, store.Teams, created.ID, &team), store.ErrNotFound)
	var remainingChats []models.Chat
	require.NoError(t, st.Query(ctx, store.Chats, store.Where().Eq("teamId", created.ID), &remainingChats))
	assert.Empty(t, remainingChats)
}

func TestAddFeedbackTargets(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)
	projects := NewProjectService(st)
	feedbacks := NewFeedbackService(st)

	team, err := teams.AddTeam(ctx, "alice", models.Team{TeamName: "Core"})
	require.NoError(t, err)
	project, err := projects.CreateProject(ctx, models.Project{ProjectName: "Launch"})
	require.NoError(t, err)

	_, err = feedbacks.AddFeedback(ctx, FeedbackForTeam, team.ID, models.Feedback{
		AuthorID: "bob", Value: 8, Description: "solid team",
	})
	require.NoError(t, err)
	_, err = feedbacks.AddFeedback(ctx, FeedbackForProject, project.ID, models.Feedback{
		AuthorID: "bob", Value: 6, Anonymous: true,
	})
	require.NoError(t, err)

	got, err := feedbacks.GetFeedbacks(ctx, FeedbackForTeam, team.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 8, got[0].Value)

	got, err = feedbacks.GetFeedbacks(ctx, FeedbackForProject, project.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Anonymous)
}

func TestAddFeedbackValidation(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	feedbacks := NewFeedbackService(st)

	_, err := feedbacks.AddFeedback(ctx, FeedbackForTeam, "t1", models.Feedback{Value: 11})
	assert.ErrorIs(t, err, ErrBadFeedback)
	_, err = feedbacks.AddFeedback(ctx, FeedbackForTeam, "t1", models.Feedback{Value: -1})
	assert.ErrorIs(t, err, ErrBadFeedback)
	_, err = feedbacks.AddFeedback(ctx, "planet", "p1", models.Feedback{Value: 5})
	assert.Error(t, err)
}

func TestAddFeedbackMissingParentLeavesOrphan(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	feedbacks := NewFeedbackService(st)

	_, err := feedbacks.AddFeedback(ctx, FeedbackForTeam, "ghost", models.Feedback{
		ID: "f1", AuthorID: "bob", Value: 5,
	})
	assert.ErrorIs(t, err, store.ErrPartialCascade)

	// The create step already committed; the link step never did.
	var orphan models.Feedback
	require.NoError(t, st.Get(ctx, store.Feedbacks, "f1", &orphan))
}

func TestGetFeedbacksSkipsOrphanIDs(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	teams := NewTeamService(st)
	feedbacks := NewFeedbackService(st)

	team, err := teams.AddTeam(ctx, "alice", models.Team{
		TeamName: "Core",
		Feedback: []string{"dangling"},
	})
	require.NoError(t, err)

	got, err := feedbacks.GetFeedbacks(ctx, FeedbackForTeam, team.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
