package models

type User struct {
	ID           string   `json:"id" bson:"_id,omitempty"`
	Name         string   `json:"name" bson:"name"`
	Surname      string   `json:"surname" bson:"surname"`
	Nickname     string   `json:"nickname" bson:"nickname"`
	Email        string   `json:"email" bson:"email"`
	Location     string   `json:"location" bson:"location"`
	Bio          string   `json:"bio" bson:"bio"`
	ProfileImage string   `json:"profileImage" bson:"profileImage"`
	Color        string   `json:"color" bson:"color"`
	Favorites    []string `json:"favorites" bson:"favorites"`
	Feedback     []string `json:"feedback" bson:"feedback"`
}

// FullName is the display form used in audit history texts.
func (u *User) FullName() string {
	if u.Surname == "" {
		return u.Name
	}
	return u.Name + " " + u.Surname
}
