package models

import "time"

type Team struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	TeamName     string    `json:"teamName" bson:"teamName"`
	Description  string    `json:"description" bson:"description"`
	TeamImage    string    `json:"teamImage" bson:"teamImage"`
	CreationDate time.Time `json:"creationDate" bson:"creationDate"`
	Users        []string  `json:"users" bson:"users"`
	Admin        []string  `json:"admin" bson:"admin"`
	Feedback     []string  `json:"feedback" bson:"feedback"`
}

// IsAdmin reports whether the given user id is one of the team admins.
func (t *Team) IsAdmin(userID string) bool {
	for _, id := range t.Admin {
		if id == userID {
			return true
		}
	}
	return false
}

// HasMember reports whether the given user id belongs to the team.
func (t *Team) HasMember(userID string) bool {
	for _, id := range t.Users {
		if id == userID {
			return true
		}
	}
	return false
}
