package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/store"
)

var ErrNotSender = errors.New("only the sender may modify a message")

// ChatService covers the chat/message lifecycle. Chats are created lazily
// on the first message between a pair (or within a team); messages carry a
// per-recipient unread set that only ever shrinks.
type ChatService struct {
	store store.Store
}

func NewChatService(st store.Store) *ChatService {
	return &ChatService{store: st}
}

// SendDirectMessage finds the personal chat between the pair within the
// team, creating it on first contact, and appends the message with the
// recipient as the only unread entry.
func (s *ChatService) SendDirectMessage(ctx context.Context, from, to, teamID, text string) (*models.Message, error) {
	chat, err := s.findPersonalChat(ctx, teamID, from, to)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		chat = &models.Chat{
			ID:       uuid.NewString(),
			TeamID:   teamID,
			Personal: true,
			UserIDs:  []string{from, to},
		}
		err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
			tx.Set(store.Chats, chat.ID, chat)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("create personal chat in team %s: %w", teamID, err)
		}
		logging.Logger.Infof("Personal chat %s created in team %s", chat.ID, teamID)
	}
	return s.appendMessage(ctx, chat.ID, from, text, []string{to})
}

// SendTeamMessage appends to the team's single group chat, creating it on
// first use. Everyone on the team except the author starts unread.
func (s *ChatService) SendTeamMessage(ctx context.Context, teamID, authorID, text string) (*models.Message, error) {
	var team models.Team
	if err := s.store.Get(ctx, store.Teams, teamID, &team); err != nil {
		return nil, err
	}

	var chats []models.Chat
	err := s.store.Query(ctx, store.Chats,
		store.Where().Eq("teamId", teamID).Eq("personal", false), &chats)
	if err != nil {
		return nil, fmt.Errorf("find group chat of team %s: %w", teamID, err)
	}

	var chatID string
	if len(chats) > 0 {
		chatID = chats[0].ID
	} else {
		chat := models.Chat{
			ID:       uuid.NewString(),
			TeamID:   teamID,
			Personal: false,
			UserIDs:  []string{},
		}
		err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
			tx.Set(store.Chats, chat.ID, chat)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("create group chat for team %s: %w", teamID, err)
		}
		chatID = chat.ID
		logging.Logger.Infof("Group chat %s created for team %s", chatID, teamID)
	}

	unread := make([]string, 0, len(team.Users))
	for _, userID := range team.Users {
		if userID != authorID {
			unread = append(unread, userID)
		}
	}
	return s.appendMessage(ctx, chatID, authorID, text, unread)
}

// MarkRead removes the user from the message's unread set. Idempotent: a
// repeat call, or a call for a user that was never unread, is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, messageID, userID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		tx.Pull(store.Messages, messageID, "unread", userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark message %s read for %s: %w", messageID, userID, err)
	}
	return nil
}

// UnreadCount counts the chat's messages still unread by the user.
func (s *ChatService) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	var messages []models.Message
	err := s.store.Query(ctx, store.Messages,
		store.Where().Eq("chatId", chatID).Contains("unread", userID), &messages)
	if err != nil {
		return 0, err
	}
	return len(messages), nil
}

// TotalUnread counts every message, in any chat, still unread by the user.
func (s *ChatService) TotalUnread(ctx context.Context, userID string) (int, error) {
	var messages []models.Message
	err := s.store.Query(ctx, store.Messages, store.Where().Contains("unread", userID), &messages)
	if err != nil {
		return 0, err
	}
	return len(messages), nil
}

func (s *ChatService) EditMessage(ctx context.Context, senderID, messageID, content string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var message models.Message
		if err := tx.Get(store.Messages, messageID, &message); err != nil {
			return err
		}
		if message.SenderID != senderID {
			return fmt.Errorf("edit message %s: %w", messageID, ErrNotSender)
		}
		tx.Update(store.Messages, messageID, map[string]any{"content": content})
		return nil
	})
	if err != nil {
		return fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, senderID, messageID string) error {
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var message models.Message
		if err := tx.Get(store.Messages, messageID, &message); err != nil {
			return err
		}
		if message.SenderID != senderID {
			return fmt.Errorf("delete message %s: %w", messageID, ErrNotSender)
		}
		tx.Delete(store.Messages, messageID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// DeleteChat locates the chat's messages with a plain query, then deletes
// them plus the chat document in one transaction. Deleting an already
// deleted chat is a no-op.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	var messages []models.Message
	if err := s.store.Query(ctx, store.Messages, store.Where().Eq("chatId", chatID), &messages); err != nil {
		return fmt.Errorf("delete chat %s: list messages: %w", chatID, err)
	}
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		for _, message := range messages {
			tx.Delete(store.Messages, message.ID)
		}
		tx.Delete(store.Chats, chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	logging.Logger.Infof("Chat %s deleted with %d message(s)", chatID, len(messages))
	return nil
}

// GetMessages returns the chat's messages, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.store.Query(ctx, store.Messages, store.Where().Eq("chatId", chatID), &messages)
	if err != nil {
		return nil, err
	}
	sortMessages(messages)
	return messages, nil
}

// StreamMessages is a live view over the chat's messages.
func (s *ChatService) StreamMessages(ctx context.Context, chatID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, store.Messages, store.Where().Eq("chatId", chatID))
}

// GetChatsForUser lists the team chats visible to a user: the group chat
// plus any personal chats they participate in.
func (s *ChatService) GetChatsForUser(ctx context.Context, teamID, userID string) ([]models.Chat, error) {
	var all []models.Chat
	if err := s.store.Query(ctx, store.Chats, store.Where().Eq("teamId", teamID), &all); err != nil {
		return nil, err
	}
	visible := make([]models.Chat, 0, len(all))
	for _, chat := range all {
		if !chat.Personal || containsID(chat.UserIDs, userID) {
			visible = append(visible, chat)
		}
	}
	return visible, nil
}

// findPersonalChat matches the unordered pair within the team.
func (s *ChatService) findPersonalChat(ctx context.Context, teamID, a, b string) (*models.Chat, error) {
	var chats []models.Chat
	err := s.store.Query(ctx, store.Chats,
		store.Where().Eq("teamId", teamID).Eq("personal", true).Contains("userIds", a), &chats)
	if err != nil {
		return nil, fmt.Errorf("find personal chat in team %s: %w", teamID, err)
	}
	for i := range chats {
		if containsID(chats[i].UserIDs, b) {
			return &chats[i], nil
		}
	}
	return nil, nil
}

// appendMessage writes the message inside a transaction that re-reads the
// chat, so a concurrently deleted chat aborts with NotFound instead of
// resurrecting orphan messages.
func (s *ChatService) appendMessage(ctx context.Context, chatID, senderID, text string, unread []string) (*models.Message, error) {
	message := models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   text,
		Timestamp: time.Now(),
		Unread:    unread,
	}
	err := s.store.Transaction(ctx, store.RetryDefault, func(tx store.Tx) error {
		var chat models.Chat
		if err := tx.Get(store.Chats, chatID, &chat); err != nil {
			return err
		}
		tx.Set(store.Messages, message.ID, message)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("send message to chat %s: %w", chatID, err)
	}
	return &message, nil
}

func sortMessages(messages []models.Message) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
