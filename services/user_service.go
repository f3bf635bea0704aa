package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

type UserService struct {
	store store.Store
	blobs store.BlobChannel
}

func NewUserService(st store.Store, blobs store.BlobChannel) *UserService {
	return &UserService{store: st, blobs: blobs}
}

// CreateUser registers a profile. The id is usually the auth uid handed in
// by the caller; a fresh one is minted only when absent. Once created the
// id never changes.
func (s *UserService) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Set(store.Users, user.ID, user)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	logging.Logger.Infof("User %s (%s) created", user.ID, user.Nickname)
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, updated models.User) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var current models.User
		if err := tx.Get(store.Users, userID, &current); err != nil {
			return err
		}
		tx.Update(store.Users, userID, map[string]any{
			"name":     updated.Name,
			"surname":  updated.Surname,
			"nickname": updated.Nickname,
			"location": updated.Location,
			"bio":      updated.Bio,
			"color":    updated.Color,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("update profile %s: %w", userID, err)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.store.Get(ctx, store.Users, userID, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// StreamUser is a live view over one profile document.
func (s *UserService) StreamUser(ctx context.Context, userID string) (*store.Subscription, error) {
	return s.store.SubscribeDoc(ctx, store.Users, userID)
}

// ToggleFavorite adds the project to the user's favorites, or removes it
// if already present.
func (s *UserService) ToggleFavorite(ctx context.Context, userID, projectID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var user models.User
		if err := tx.Get(store.Users, userID, &user); err != nil {
			return err
		}
		if containsID(user.Favorites, projectID) {
			tx.Pull(store.Users, userID, "favorites", projectID)
		} else {
			tx.Push(store.Users, userID, "favorites", projectID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("toggle favorite %s for user %s: %w", projectID, userID, err)
	}
	return nil
}

// SetProfileImage uploads the image under images/{userID} and stores the
// resulting URL on the profile.
func (s *UserService) SetProfileImage(ctx context.Context, userID string, image io.Reader, size int64) (string, error) {
	path := "images/" + userID
	var url string
	for event := range s.blobs.Upload(ctx, path, image, size) {
		switch event.Kind {
		case store.UploadSuccess:
			url = event.URL
		case store.UploadError:
			return "", fmt.Errorf("profile image for %s: %v: %w", userID, event.Err, ErrUploadFailed)
		}
	}
	if url == "" {
		return "", fmt.Errorf("profile image for %s: %w", userID, ErrUploadFailed)
	}

	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var user models.User
		if err := tx.Get(store.Users, userID, &user); err != nil {
			return err
		}
		tx.Update(store.Users, userID, map[string]any{"profileImage": url})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store profile image url for %s: %w", userID, err)
	}
	return url, nil
}
