package models

import "time"

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusOnHold     TaskStatus = "On Hold"
	StatusCompleted  TaskStatus = "Completed"
	StatusOverdue    TaskStatus = "Overdue"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

type Repeat string

const (
	RepeatNever   Repeat = "Never"
	RepeatDaily   Repeat = "Daily"
	RepeatWeekly  Repeat = "Weekly"
	RepeatMonthly Repeat = "Monthly"
	RepeatYearly  Repeat = "Yearly"
)

type Task struct {
	ID            string       `json:"id" bson:"_id,omitempty"`
	ProjectID     string       `json:"projectId" bson:"projectId"`
	ProjectName   string       `json:"projectName" bson:"projectName"`
	TaskName      string       `json:"taskName" bson:"taskName"`
	Description   string       `json:"description" bson:"description"`
	Tag           string       `json:"tag" bson:"tag"`
	Status        TaskStatus   `json:"status" bson:"status"`
	Priority      TaskPriority `json:"priority" bson:"priority"`
	Repeat        Repeat       `json:"repeat" bson:"repeat"`
	RecurringType string       `json:"recurringType" bson:"recurringType"`
	CreationDate  time.Time    `json:"creationDate" bson:"creationDate"`
	EndDate       time.Time    `json:"endDate" bson:"endDate"`
	EndRepeat     time.Time    `json:"endRepeat" bson:"endRepeat"`
	ListUser      []string     `json:"listUser" bson:"listUser"`
	History       []string     `json:"history" bson:"history"`
	Comments      []string     `json:"comments" bson:"comments"`
	Attachments   []string     `json:"attachments" bson:"attachments"`
}
