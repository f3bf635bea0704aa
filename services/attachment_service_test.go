package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

func TestCreateAttachmentLinksTask(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	ctx := context.Background()
	seedProject(t, st, models.Project{ID: "p1", ProjectName: "Launch"})
	tasks := NewTaskService(st)
	attachments := NewAttachmentService(st, blobs)

	task, err := tasks.CreateTask(ctx, "u1", "Mario", "p1", models.Task{TaskName: "Design"})
	require.NoError(t, err)

	payload := strings.NewReader("mockup bytes")
	created, err := attachments.CreateAttachment(ctx, task.ID, models.Attachment{
		Name:     "mockup.png",
		FileType: "image/png",
		FileSize: 12,
	}, payload)
	require.NoError(t, err)
	assert.Equal(t, task.ID, created.OwnerID)
	assert.Equal(t, "/api/blobs/files/"+created.ID, created.DownloadURL)

	fresh, err := tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, fresh.Attachments)

	data, ok := blobs.Blob("files/" + created.ID)
	require.True(t, ok)
	assert.Equal(t, "mockup bytes", string(data))
}

func TestCreateAttachmentMissingTaskCleansBlob(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	ctx := context.Background()
	attachments := NewAttachmentService(st, blobs)

	created, err := attachments.CreateAttachment(ctx, "ghost", models.Attachment{
		ID: "a1", Name: "mockup.png",
	}, strings.NewReader("bytes"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, created)

	_, ok := blobs.Blob("files/a1")
	assert.False(t, ok, "failed link must not leave the payload behind")
	var orphan models.Attachment
	assert.ErrorIs(t, st.Get(ctx, store.Attachments, "a1", &orphan), store.ErrNotFound)
}

func TestDeleteAttachmentRemovesEverything(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	ctx := context.Background()
	seedProject(t, st, models.Project{ID: "p1", ProjectName: "Launch"})
	tasks := NewTaskService(st)
	attachments := NewAttachmentService(st, blobs)

	task, err := tasks.CreateTask(ctx, "u1", "Mario", "p1", models.Task{TaskName: "Design"})
	require.NoError(t, err)
	created, err := attachments.CreateAttachment(ctx, task.ID, models.Attachment{
		Name: "mockup.png", FileSize: 5,
	}, strings.NewReader("bytes"))
	require.NoError(t, err)

	require.NoError(t, attachments.DeleteAttachment(ctx, task.ID, created.ID))

	fresh, err := tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Attachments)
	_, err = attachments.GetAttachment(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, ok := blobs.Blob("files/" + created.ID)
	assert.False(t, ok)
}

func TestUpdateAttachmentRename(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	ctx := context.Background()
	seedProject(t, st, models.Project{ID: "p1", ProjectName: "Launch"})
	tasks := NewTaskService(st)
	attachments := NewAttachmentService(st, blobs)

	task, err := tasks.CreateTask(ctx, "u1", "Mario", "p1", models.Task{TaskName: "Design"})
	require.NoError(t, err)
	created, err := attachments.CreateAttachment(ctx, task.ID, models.Attachment{
		Name: "draft.png", FileSize: 5,
	}, strings.NewReader("bytes"))
	require.NoError(t, err)

	require.NoError(t, attachments.UpdateAttachment(ctx, created.ID, "final.png"))
	fresh, err := attachments.GetAttachment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.png", fresh.Name)

	assert.ErrorIs(t, attachments.UpdateAttachment(ctx, "ghost", "x"), store.ErrNotFound)
}

func TestSetProfileImage(t *testing.T) {
	st := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	ctx := context.Background()
	users := NewUserService(st, blobs)

	_, err := users.CreateUser(ctx, models.User{ID: "u1", Name: "Mario"})
	require.NoError(t, err)

	url, err := users.SetProfileImage(ctx, "u1", strings.NewReader("png bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "/api/blobs/images/u1", url)

	user, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, url, user.ProfileImage)

	_, err = users.SetProfileImage(ctx, "ghost", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleFavorite(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	users := NewUserService(st, store.NewMemoryBlobStore())

	_, err := users.CreateUser(ctx, models.User{ID: "u1"})
	require.NoError(t, err)

	require.NoError(t, users.ToggleFavorite(ctx, "u1", "p1"))
	user, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, user.Favorites)

	require.NoError(t, users.ToggleFavorite(ctx, "u1", "p1"))
	user, err = users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Favorites)
}
