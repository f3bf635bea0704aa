package models

import "time"

type Project struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	ProjectName  string    `json:"projectName" bson:"projectName"`
	Description  string    `json:"description" bson:"description"`
	Tag          string    `json:"tag" bson:"tag"`
	ProjectImage string    `json:"projectImage" bson:"projectImage"`
	CreationDate time.Time `json:"creationDate" bson:"creationDate"`
	EndDate      time.Time `json:"endDate" bson:"endDate"`
	Teams        []string  `json:"teams" bson:"teams"`
	Tasks        []string  `json:"tasks" bson:"tasks"`
	Feedbacks    []string  `json:"feedbacks" bson:"feedbacks"`
}
