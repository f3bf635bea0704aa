package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

var ErrUploadFailed = errors.New("upload failed")

// AttachmentService ties attachment documents to their owning task's
// attachments list and moves payloads through the blob channel under
// "files/{id}".
type AttachmentService struct {
	store store.Store
	blobs store.BlobChannel
}

func NewAttachmentService(st store.Store, blobs store.BlobChannel) *AttachmentService {
	return &AttachmentService{store: st, blobs: blobs}
}

// CreateAttachment uploads the payload, then links the attachment to its
// task in one transaction. If the link transaction fails, the uploaded
// blob is removed again on a best-effort basis.
func (s *AttachmentService) CreateAttachment(ctx context.Context, taskID string, attachment models.Attachment, payload io.Reader) (*models.Attachment, error) {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	attachment.OwnerID = taskID

	path := "files/" + attachment.ID
	url, err := s.uploadBlocking(ctx, path, payload, attachment.FileSize)
	if err != nil {
		return nil, fmt.Errorf("attachment %s: %w", attachment.Name, err)
	}
	attachment.DownloadURL = url

	err = s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var task models.Task
		if err := tx.Get(store.Tasks, taskID, &task); err != nil {
			return err
		}
		tx.Set(store.Attachments, attachment.ID, attachment)
		tx.Push(store.Tasks, taskID, "attachments", attachment.ID)
		return nil
	})
	if err != nil {
		if cleanupErr := s.blobs.Delete(ctx, path); cleanupErr != nil {
			logging.Logger.Warnf("Orphan blob %s left behind: %v", path, cleanupErr)
		}
		return nil, fmt.Errorf("link attachment to task %s: %w", taskID, err)
	}
	logging.Logger.Infof("Attachment %s (%s) added to task %s", attachment.ID, attachment.Name, taskID)
	return &attachment, nil
}

// UpdateAttachment renames the attachment metadata.
func (s *AttachmentService) UpdateAttachment(ctx context.Context, attachmentID, name string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var attachment models.Attachment
		if err := tx.Get(store.Attachments, attachmentID, &attachment); err != nil {
			return err
		}
		tx.Update(store.Attachments, attachmentID, map[string]any{"name": name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("update attachment %s: %w", attachmentID, err)
	}
	return nil
}

// DeleteAttachment removes the document and the task's back-reference in
// one transaction, then drops the payload.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, taskID, attachmentID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Pull(store.Tasks, taskID, "attachments", attachmentID)
		tx.Delete(store.Attachments, attachmentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", attachmentID, err)
	}
	if err := s.blobs.Delete(ctx, "files/"+attachmentID); err != nil {
		logging.Logger.Warnf("Payload of deleted attachment %s not removed: %v", attachmentID, err)
	}
	logging.Logger.Infof("Attachment %s removed from task %s", attachmentID, taskID)
	return nil
}

func (s *AttachmentService) GetAttachment(ctx context.Context, attachmentID string) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := s.store.Get(ctx, store.Attachments, attachmentID, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// uploadBlocking drains the upload stream and returns the final URL.
func (s *AttachmentService) uploadBlocking(ctx context.Context, path string, payload io.Reader, size int64) (string, error) {
	for event := range s.blobs.Upload(ctx, path, payload, size) {
		switch event.Kind {
		case store.UploadSuccess:
			return event.URL, nil
		case store.UploadError:
			return "", fmt.Errorf("%v: %w", event.Err, ErrUploadFailed)
		}
	}
	return "", fmt.Errorf("upload stream closed without result: %w", ErrUploadFailed)
}
