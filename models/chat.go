package models

import "time"

type Chat struct {
	ID       string   `json:"id" bson:"_id,omitempty"`
	TeamID   string   `json:"teamId" bson:"teamId"`
	Personal bool     `json:"personal" bson:"personal"`
	UserIDs  []string `json:"userIds" bson:"userIds"`
}

type Message struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	ChatID    string    `json:"chatId" bson:"chatId"`
	SenderID  string    `json:"senderId" bson:"senderId"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	// Unread holds the recipients that have not acknowledged the message
	// yet. It only ever shrinks after creation.
	Unread []string `json:"unread" bson:"unread"`
}
