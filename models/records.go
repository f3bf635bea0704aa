package models

import "time"

// HistoryIcon tags a history entry with the field it describes, so the
// presentation layer can pick an icon without parsing the text.
type HistoryIcon string

const (
	IconCreation      HistoryIcon = "creation"
	IconTitle         HistoryIcon = "title"
	IconDescription   HistoryIcon = "description"
	IconTag           HistoryIcon = "tag"
	IconStatus        HistoryIcon = "status"
	IconEndDate       HistoryIcon = "end_date"
	IconCollaborators HistoryIcon = "collaborators"
	IconPriority      HistoryIcon = "priority"
)

// History is one immutable audit entry on a task. Entries are never
// updated or deleted independent of their task.
type History struct {
	ID        string      `json:"id" bson:"_id,omitempty"`
	Text      string      `json:"text" bson:"text"`
	Icon      HistoryIcon `json:"icon" bson:"icon"`
	User      string      `json:"user" bson:"user"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

type Comment struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Author    string    `json:"author" bson:"author"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type Attachment struct {
	ID          string `json:"id" bson:"_id,omitempty"`
	OwnerID     string `json:"ownerId" bson:"ownerId"`
	Name        string `json:"name" bson:"name"`
	FileType    string `json:"fileType" bson:"fileType"`
	FileSize    int64  `json:"fileSize" bson:"fileSize"`
	DownloadURL string `json:"downloadUrl" bson:"downloadUrl"`
}

type Feedback struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	AuthorID    string    `json:"authorId" bson:"authorId"`
	Description string    `json:"description" bson:"description"`
	Value       int       `json:"value" bson:"value"`
	Anonymous   bool      `json:"anonymous" bson:"anonymous"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}
