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

// FeedbackTarget names the entity a feedback attaches to.
type FeedbackTarget string

const (
	FeedbackForUser    FeedbackTarget = "user"
	FeedbackForProject FeedbackTarget = "project"
	FeedbackForTeam    FeedbackTarget = "team"
)

var ErrBadFeedback = errors.New("invalid feedback")

type FeedbackService struct {
	store store.Store
}

func NewFeedbackService(st store.Store) *FeedbackService {
	return &FeedbackService{store: st}
}

func (t FeedbackTarget) collectionAndField() (collection, field string, err error) {
	switch t {
	case FeedbackForUser:
		return store.Users, "feedback", nil
	case FeedbackForProject:
		return store.Projects, "feedbacks", nil
	case FeedbackForTeam:
		return store.Teams, "feedback", nil
	default:
		return "", "", fmt.Errorf("unknown feedback target %q", t)
	}
}

// AddFeedback creates the feedback document, then appends its id to the
// target's list. The two steps are separate transactions on purpose: a
// crash between them leaves an orphan feedback document rather than a
// half-written parent. Re-running the second step is idempotent.
func (s *FeedbackService) AddFeedback(ctx context.Context, target FeedbackTarget, targetID string, feedback models.Feedback) (*models.Feedback, error) {
	collection, field, err := target.collectionAndField()
	if err != nil {
		return nil, err
	}
	if feedback.Value < 0 || feedback.Value > 10 {
		return nil, fmt.Errorf("value %d out of range 0-10: %w", feedback.Value, ErrBadFeedback)
	}
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.Timestamp.IsZero() {
		feedback.Timestamp = time.Now()
	}

	err = s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Set(store.Feedbacks, feedback.ID, feedback)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	err = s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		switch collection {
		case store.Users:
			var user models.User
			if err := tx.Get(collection, targetID, &user); err != nil {
				return err
			}
		case store.Projects:
			var project models.Project
			if err := tx.Get(collection, targetID, &project); err != nil {
				return err
			}
		case store.Teams:
			var team models.Team
			if err := tx.Get(collection, targetID, &team); err != nil {
				return err
			}
		}
		tx.Push(collection, targetID, field, feedback.ID)
		return nil
	})
	if err != nil {
		// The feedback document exists but the parent was never linked.
		logging.Logger.Warnf("Feedback %s created but not linked to %s %s: %v", feedback.ID, target, targetID, err)
		return nil, fmt.Errorf("link feedback %s to %s %s: %v: %w",
			feedback.ID, target, targetID, err, store.ErrPartialCascade)
	}
	logging.Logger.Infof("Feedback %s attached to %s %s", feedback.ID, target, targetID)
	return &feedback, nil
}

// GetFeedbacks resolves the target's feedback ids. Orphan ids whose
// document is missing are skipped.
func (s *FeedbackService) GetFeedbacks(ctx context.Context, target FeedbackTarget, targetID string) ([]models.Feedback, error) {
	collection, _, err := target.collectionAndField()
	if err != nil {
		return nil, err
	}

	var ids []string
	switch collection {
	case store.Users:
		var user models.User
		if err := s.store.Get(ctx, collection, targetID, &user); err != nil {
			return nil, err
		}
		ids = user.Feedback
	case store.Projects:
		var project models.Project
		if err := s.store.Get(ctx, collection, targetID, &project); err != nil {
			return nil, err
		}
		ids = project.Feedbacks
	case store.Teams:
		var team models.Team
		if err := s.store.Get(ctx, collection, targetID, &team); err != nil {
			return nil, err
		}
		ids = team.Feedback
	}

	feedbacks := make([]models.Feedback, 0, len(ids))
	for _, id := range ids {
		var feedback models.Feedback
		if err := s.store.Get(ctx, store.Feedbacks, id, &feedback); err != nil {
			continue
		}
		feedbacks = append(feedbacks, feedback)
	}
	return feedbacks, nil
}
